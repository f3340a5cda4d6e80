package engine

import (
	"errors"
	"fmt"
)

// Error kinds for load execution. Fatal kinds abort the run before or during
// execution; RowError is recoverable when the transaction policy tolerates
// row failures.
var (
	// ErrConfiguration is returned for an invalid load configuration
	// (missing table, no mappings, duplicate columns, bad enum values).
	ErrConfiguration = errors.New("invalid load configuration")

	// ErrConnection is returned when the database cannot be opened or the
	// statement cannot be prepared.
	ErrConnection = errors.New("database connection failed")

	// ErrBracketStatement is returned when a pre- or post-run bracket
	// statement fails. Distinct from row-level failures.
	ErrBracketStatement = errors.New("bracket statement failed")
)

// RowError reports the failure of a single row's statement. Index is the
// zero-based position of the row in the input sequence.
type RowError struct {
	Index int
	Cause error
}

// Error implements the error interface.
func (e *RowError) Error() string {
	return fmt.Sprintf("row %d failed: %v", e.Index, e.Cause)
}

// Unwrap returns the underlying error.
func (e *RowError) Unwrap() error {
	return e.Cause
}

// ChunkAbortError reports that a failure rolled back its enclosing
// transaction scope and halted processing of that scope. Rows holds how many
// rows of the scope were rolled back with it.
type ChunkAbortError struct {
	Cause error
	Rows  int
}

// Error implements the error interface.
func (e *ChunkAbortError) Error() string {
	return fmt.Sprintf("transaction scope rolled back (%d rows): %v", e.Rows, e.Cause)
}

// Unwrap returns the row error that triggered the abort.
func (e *ChunkAbortError) Unwrap() error {
	return e.Cause
}
