package engine

import (
	"context"
	"regexp"

	goversion "github.com/hashicorp/go-version"
)

// minSQLiteReturning is the first SQLite release with the RETURNING clause.
var minSQLiteReturning = goversion.Must(goversion.NewVersion("3.35.0"))

var versionPrefixRe = regexp.MustCompile(`\d+(\.\d+)*`)

// SupportsReturning reports whether the session's engine can echo the
// affected row in the same round trip. The answer is detected once per
// session and cached until Close. Detection failure conservatively reports
// false rather than failing the run.
func (s *Session) SupportsReturning(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.returning != nil {
		return *s.returning
	}
	supported := s.detectReturning(ctx)
	s.returning = &supported
	return supported
}

func (s *Session) detectReturning(ctx context.Context) bool {
	switch s.provider {
	case "postgres":
		return true
	case "mysql":
		return false
	case "sqlite":
		var raw string
		if err := s.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&raw); err != nil {
			s.logger.Warn("version detection failed, assuming no RETURNING support", "error", err)
			return false
		}
		v, err := parseEngineVersion(raw)
		if err != nil {
			s.logger.Warn("unparseable engine version, assuming no RETURNING support", "version", raw)
			return false
		}
		supported := v.GreaterThanOrEqual(minSQLiteReturning)
		s.logger.Debug("detected engine version", "version", raw, "returning", supported)
		return supported
	default:
		return false
	}
}

// parseEngineVersion extracts the leading dotted numeric version from an
// engine's self-reported version string. Missing components compare as zero.
func parseEngineVersion(raw string) (*goversion.Version, error) {
	match := versionPrefixRe.FindString(raw)
	if match == "" {
		match = raw
	}
	return goversion.NewVersion(match)
}
