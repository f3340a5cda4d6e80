// Package engine drives bulk loads against a single database session: it
// binds resolved rows to one prepared statement, executes them under the
// configured transaction policy, and reconciles per-row outcomes into an
// ExecutionSummary.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Session owns one open database connection handle and its cached
// capability flag. A session serves one run at a time; the capability cache
// lives exactly as long as the session.
type Session struct {
	db       *sql.DB
	provider string
	logger   Logger

	mu        sync.Mutex
	returning *bool
}

// Option configures a session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// Open opens a database session for the given provider ("sqlite",
// "postgres", or "mysql") and connection string.
func Open(provider, dsn string, opts ...Option) (*Session, error) {
	driver, normalized, err := driverName(provider)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	// One run owns one connection; last-insert-id tracking and transaction
	// scopes both depend on never rotating connections mid-run.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	s := &Session{
		db:       db,
		provider: normalized,
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func driverName(provider string) (driver, normalized string, err error) {
	switch provider {
	case "sqlite", "sqlite3":
		return "sqlite3", "sqlite", nil
	case "postgres", "postgresql":
		return "postgres", "postgres", nil
	case "mysql":
		return "mysql", "mysql", nil
	default:
		return "", "", fmt.Errorf("%w: unknown provider %q", ErrConfiguration, provider)
	}
}

// Wrap adopts an already open *sql.DB. The caller remains responsible for
// having registered the matching driver; provider selects placeholder style
// and capability rules.
func Wrap(db *sql.DB, provider string, opts ...Option) (*Session, error) {
	_, normalized, err := driverName(provider)
	if err != nil {
		return nil, err
	}
	s := &Session{db: db, provider: normalized, logger: nopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB exposes the underlying handle.
func (s *Session) DB() *sql.DB {
	return s.db
}

// Provider returns the normalized provider name.
func (s *Session) Provider() string {
	return s.provider
}

// Close releases the connection and invalidates the capability cache.
func (s *Session) Close() error {
	s.mu.Lock()
	s.returning = nil
	s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
