// Package sqlgen generates the single parameterized INSERT statement used
// for every row of a bulk load, for different database providers.
package sqlgen

import (
	"fmt"
	"regexp"
	"strings"
)

// IDAlias is the fixed alias under which the identifier column is returned
// by a RETURNING clause, so the executor can read it back without knowing
// the configured column name.
const IDAlias = "__rowforge_id"

// Strategy selects how a uniqueness violation on insert is handled.
type Strategy uint8

const (
	StrategyNone Strategy = iota
	StrategyIgnore
	StrategyReplace
	StrategyUpsert
)

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case StrategyIgnore:
		return "ignore"
	case StrategyReplace:
		return "replace"
	case StrategyUpsert:
		return "upsert"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

// ParseStrategy parses a configuration value into a Strategy.
// Unknown values are rejected rather than defaulted.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "insert":
		return StrategyNone, nil
	case "ignore":
		return StrategyIgnore, nil
	case "replace":
		return StrategyReplace, nil
	case "upsert":
		return StrategyUpsert, nil
	default:
		return StrategyNone, fmt.Errorf("unknown conflict strategy: %q", s)
	}
}

// ReturnMode selects how much per-row result data the caller wants back.
type ReturnMode uint8

const (
	ReturnNone ReturnMode = iota
	ReturnInserted
	ReturnAffected
)

// String returns the configuration name of the return mode.
func (m ReturnMode) String() string {
	switch m {
	case ReturnNone:
		return "none"
	case ReturnInserted:
		return "inserted"
	case ReturnAffected:
		return "affected"
	default:
		return fmt.Sprintf("returnmode(%d)", uint8(m))
	}
}

// ParseReturnMode parses a configuration value into a ReturnMode.
func ParseReturnMode(s string) (ReturnMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ReturnNone, nil
	case "inserted":
		return ReturnInserted, nil
	case "affected":
		return ReturnAffected, nil
	default:
		return ReturnNone, fmt.Errorf("unknown return mode: %q", s)
	}
}

// ConflictPolicy describes the conflict handling for a run.
type ConflictPolicy struct {
	Strategy Strategy

	// Keys are the conflict-detection columns. Required and non-empty
	// when Strategy is StrategyUpsert.
	Keys []string

	// UpdateColumns are the columns refreshed on conflict. May be empty,
	// in which case a no-op self-assignment of the first key is emitted
	// to keep the clause syntactically valid.
	UpdateColumns []string
}

// ReturnPolicy describes the per-row result capture for a run.
type ReturnPolicy struct {
	Mode ReturnMode

	// IDColumn is the identifier column returned per row. Empty means the
	// engine's implicit row identifier (rowid on SQLite).
	IDColumn string
}

// Statement is the built SQL text plus metadata the executor needs to bind
// and read back rows.
type Statement struct {
	SQL     string
	Columns []string

	// Returning reports whether the statement carries a RETURNING clause,
	// i.e. each execution yields a result row instead of an exec result.
	Returning bool
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is usable as a table or column name.
func ValidIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

func quoteIdentifier(provider, name string) string {
	switch provider {
	case "mysql":
		return fmt.Sprintf("`%s`", name)
	default:
		return fmt.Sprintf(`"%s"`, name)
	}
}

func placeholder(provider string, index int) string {
	switch provider {
	case "postgres", "postgresql":
		return fmt.Sprintf("$%d", index)
	default:
		return "?"
	}
}

// BuildInsert builds the parameterized statement for one run. It is pure and
// deterministic; all values are bound as parameters, only validated
// identifiers are interpolated.
//
// supportsReturning is the capability flag detected for the connection; the
// RETURNING clause is only emitted when it is set and the return policy asks
// for result capture.
func BuildInsert(provider, table string, columns []string, conflict ConflictPolicy, ret ReturnPolicy, supportsReturning bool) (*Statement, error) {
	if table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns mapped")
	}
	for _, name := range append([]string{table}, columns...) {
		if !ValidIdentifier(name) {
			return nil, &InvalidIdentifierError{Name: name}
		}
	}
	for _, name := range conflict.Keys {
		if !ValidIdentifier(name) {
			return nil, &InvalidIdentifierError{Name: name}
		}
	}
	for _, name := range conflict.UpdateColumns {
		if !ValidIdentifier(name) {
			return nil, &InvalidIdentifierError{Name: name}
		}
	}
	if ret.IDColumn != "" && !ValidIdentifier(ret.IDColumn) {
		return nil, &InvalidIdentifierError{Name: ret.IDColumn}
	}
	if conflict.Strategy == StrategyUpsert && len(conflict.Keys) == 0 {
		return nil, fmt.Errorf("upsert strategy requires at least one conflict key")
	}

	var parts []string

	parts = append(parts, insertVerb(provider, conflict.Strategy))
	parts = append(parts, quoteIdentifier(provider, table))

	quotedCols := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quotedCols[i] = quoteIdentifier(provider, col)
		placeholders[i] = placeholder(provider, i+1)
	}
	parts = append(parts, fmt.Sprintf("(%s)", strings.Join(quotedCols, ", ")))
	parts = append(parts, fmt.Sprintf("VALUES (%s)", strings.Join(placeholders, ", ")))

	if conflict.Strategy == StrategyUpsert {
		clause, err := upsertClause(provider, conflict)
		if err != nil {
			return nil, err
		}
		parts = append(parts, clause)
	}
	if provider == "postgres" || provider == "postgresql" {
		if conflict.Strategy == StrategyIgnore {
			parts = append(parts, "ON CONFLICT DO NOTHING")
		}
		if conflict.Strategy == StrategyReplace {
			return nil, fmt.Errorf("replace strategy is not supported by provider %q", provider)
		}
	}

	returning := supportsReturning && ret.Mode != ReturnNone
	if returning {
		idCol := ret.IDColumn
		if idCol == "" {
			idCol = "rowid"
		}
		retCols := make([]string, 0, len(columns)+1)
		retCols = append(retCols, fmt.Sprintf("%s AS %s", quoteIdentifier(provider, idCol), IDAlias))
		for _, col := range columns {
			retCols = append(retCols, quoteIdentifier(provider, col))
		}
		parts = append(parts, "RETURNING "+strings.Join(retCols, ", "))
	}

	return &Statement{
		SQL:       strings.Join(parts, " "),
		Columns:   columns,
		Returning: returning,
	}, nil
}

func insertVerb(provider string, strategy Strategy) string {
	if provider == "mysql" {
		switch strategy {
		case StrategyIgnore:
			return "INSERT IGNORE INTO"
		case StrategyReplace:
			return "REPLACE INTO"
		default:
			return "INSERT INTO"
		}
	}
	switch strategy {
	case StrategyIgnore:
		return "INSERT OR IGNORE INTO"
	case StrategyReplace:
		return "INSERT OR REPLACE INTO"
	default:
		return "INSERT INTO"
	}
}

func upsertClause(provider string, conflict ConflictPolicy) (string, error) {
	update := conflict.UpdateColumns
	noop := len(update) == 0
	if noop {
		// Self-assignment of the first key keeps the clause valid while
		// writing nothing new.
		update = conflict.Keys[:1]
	}

	if provider == "mysql" {
		setParts := make([]string, len(update))
		for i, col := range update {
			quoted := quoteIdentifier(provider, col)
			setParts[i] = fmt.Sprintf("%s = VALUES(%s)", quoted, quoted)
		}
		if noop {
			quoted := quoteIdentifier(provider, update[0])
			setParts[0] = fmt.Sprintf("%s = %s", quoted, quoted)
		}
		return "ON DUPLICATE KEY UPDATE " + strings.Join(setParts, ", "), nil
	}

	quotedKeys := make([]string, len(conflict.Keys))
	for i, key := range conflict.Keys {
		quotedKeys[i] = quoteIdentifier(provider, key)
	}
	setParts := make([]string, len(update))
	for i, col := range update {
		quoted := quoteIdentifier(provider, col)
		if noop {
			// Assign the existing value, not excluded, so nothing changes.
			setParts[i] = fmt.Sprintf("%s = %s", quoted, quoted)
		} else {
			setParts[i] = fmt.Sprintf("%s = excluded.%s", quoted, quoted)
		}
	}
	return fmt.Sprintf("ON CONFLICT(%s) DO UPDATE SET %s", strings.Join(quotedKeys, ", "), strings.Join(setParts, ", ")), nil
}

// BuildIDLookup builds the supplementary identifier lookup used by the
// fallback execution path to recover the id of an updated row by its
// conflict keys.
func BuildIDLookup(provider, table, idColumn string, keys []string) (string, error) {
	if idColumn == "" {
		idColumn = "rowid"
	}
	for _, name := range append([]string{table, idColumn}, keys...) {
		if !ValidIdentifier(name) {
			return "", &InvalidIdentifierError{Name: name}
		}
	}
	conds := make([]string, len(keys))
	for i, key := range keys {
		conds[i] = fmt.Sprintf("%s = %s", quoteIdentifier(provider, key), placeholder(provider, i+1))
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		quoteIdentifier(provider, idColumn),
		quoteIdentifier(provider, table),
		strings.Join(conds, " AND ")), nil
}

// InvalidIdentifierError reports a malformed table or column name. It is
// returned before any statement executes.
type InvalidIdentifierError struct {
	Name string
}

// Error implements the error interface.
func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid SQL identifier: %q", e.Name)
}
