package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rowforge/rowforge/resolve"
	"github.com/rowforge/rowforge/sqlgen"
)

// TxMode selects the transaction batching policy for a run.
type TxMode uint8

const (
	// TxSingle wraps the whole row sequence in one transaction.
	TxSingle TxMode = iota
	// TxChunked commits after every ChunkSize rows.
	TxChunked
	// TxNone executes every row without a surrounding transaction.
	TxNone
)

// String returns the configuration name of the mode.
func (m TxMode) String() string {
	switch m {
	case TxSingle:
		return "single"
	case TxChunked:
		return "chunked"
	case TxNone:
		return "none"
	default:
		return fmt.Sprintf("txmode(%d)", uint8(m))
	}
}

// ParseTxMode parses a configuration value into a TxMode.
// Unknown values are rejected rather than defaulted.
func ParseTxMode(s string) (TxMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single":
		return TxSingle, nil
	case "chunked", "chunk":
		return TxChunked, nil
	case "none":
		return TxNone, nil
	default:
		return TxSingle, fmt.Errorf("unknown transaction mode: %q", s)
	}
}

// TransactionPolicy describes transaction batching and error tolerance.
type TransactionPolicy struct {
	Mode TxMode

	// ChunkSize is the number of rows per transaction in chunked mode.
	ChunkSize int

	// ContinueOnError tolerates row failures instead of aborting the run.
	// In chunked mode a failing chunk still rolls back, but later chunks
	// run; in single and none modes the failing row is counted as errored
	// and processing continues.
	ContinueOnError bool
}

// Loader configures and executes one bulk load. A loader owns its session
// for the duration of a run; runs are strictly sequential, one row at a
// time, in input order.
//
// When the upsert strategy executes over the RETURNING path, the engine
// cannot distinguish a true insert from an update-on-conflict: both come
// back as a returned row, and every affected row is reported as updated.
// The same holds for upsert on postgres with result capture disabled: the
// driver reports no last-insert id, so the fallback classifier has no
// insert signal and reports every affected row as updated there too.
type Loader struct {
	Session  *Session
	Table    string
	Mappings []resolve.Mapping
	Conflict sqlgen.ConflictPolicy
	Return   sqlgen.ReturnPolicy
	Tx       TransactionPolicy

	// PreSQL and PostSQL bracket the run, outside the timed window.
	PreSQL  string
	PostSQL string

	// Env is the ambient message/state visible to expression and typed
	// mappings alongside each row.
	Env map[string]interface{}

	// Typed resolves typed-value mappings. Optional.
	Typed resolve.TypedResolver

	// Writer, when set together with WriteScope/WritePath, receives the
	// final counts after a completed run. Fire-and-forget.
	Writer     resolve.TypedWriter
	WriteScope string
	WritePath  string

	// Progress, when set, is called after each processed row.
	Progress func(done, total int)
}

// Validate checks the load configuration without touching data.
func (l *Loader) Validate() error {
	if l.Session == nil {
		return fmt.Errorf("%w: session is required", ErrConfiguration)
	}
	if l.Table == "" {
		return fmt.Errorf("%w: table name is required", ErrConfiguration)
	}
	if len(l.Mappings) == 0 {
		return fmt.Errorf("%w: at least one column mapping is required", ErrConfiguration)
	}
	seen := make(map[string]struct{}, len(l.Mappings))
	for _, m := range l.Mappings {
		if _, dup := seen[m.Column]; dup {
			return fmt.Errorf("%w: duplicate column mapping %q", ErrConfiguration, m.Column)
		}
		seen[m.Column] = struct{}{}
	}
	if l.Tx.Mode == TxChunked && l.Tx.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunked mode requires a positive chunk size", ErrConfiguration)
	}
	if l.Conflict.Strategy == sqlgen.StrategyUpsert && len(l.Conflict.Keys) == 0 {
		return fmt.Errorf("%w: upsert strategy requires conflict keys", ErrConfiguration)
	}
	if l.Session.Provider() == "postgres" && l.Return.Mode != sqlgen.ReturnNone && l.Return.IDColumn == "" {
		return fmt.Errorf("%w: postgres has no implicit row identifier, set the id column", ErrConfiguration)
	}
	return nil
}

// Run executes the load over rows. The summary is returned alongside any
// abort error, reflecting exactly what was durable when the run stopped.
func (l *Loader) Run(ctx context.Context, rows []interface{}) (*ExecutionSummary, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}

	provider := l.Session.Provider()
	supportsReturning := l.Session.SupportsReturning(ctx)

	columns := make([]string, len(l.Mappings))
	for i, m := range l.Mappings {
		columns[i] = m.Column
	}
	stmt, err := sqlgen.BuildInsert(provider, l.Table, columns, l.Conflict, l.Return, supportsReturning)
	if err != nil {
		var idErr *sqlgen.InvalidIdentifierError
		if errors.As(err, &idErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	strategy, err := l.newStrategy(stmt, provider)
	if err != nil {
		return nil, err
	}
	if l.PreSQL != "" {
		if _, err := l.Session.db.ExecContext(ctx, l.PreSQL); err != nil {
			return nil, fmt.Errorf("%w: pre-run: %v", ErrBracketStatement, err)
		}
	}

	// Primed after the pre-run statement so that writes it performs are part
	// of the baseline.
	if es, ok := strategy.(*execStrategy); ok && es.upsert {
		es.prime(ctx, l.Session.db, provider)
	}

	prepared, err := l.Session.db.PrepareContext(ctx, stmt.SQL)
	if err != nil {
		return nil, fmt.Errorf("%w: prepare: %v", ErrConnection, err)
	}
	defer prepared.Close()

	l.Session.logger.Info("starting load",
		"table", l.Table, "rows", len(rows),
		"strategy", l.Conflict.Strategy.String(),
		"tx", l.Tx.Mode.String(),
		"returning", stmt.Returning)

	b := newSummaryBuilder(l.Return.Mode != sqlgen.ReturnNone)
	resolver := resolve.New(l.Typed)

	b.summary.Timings.StartedAt = time.Now()
	runErr := l.execute(ctx, prepared, strategy, resolver, rows, b)
	b.summary.Timings.Duration = time.Since(b.summary.Timings.StartedAt)

	if runErr == nil && l.PostSQL != "" {
		if _, err := l.Session.db.ExecContext(ctx, l.PostSQL); err != nil {
			runErr = fmt.Errorf("%w: post-run: %v", ErrBracketStatement, err)
		}
	}
	if runErr == nil && l.Writer != nil && l.WritePath != "" {
		l.Writer.Write(l.WriteScope, l.WritePath, map[string]interface{}{
			"inserted": b.summary.Counts.Inserted,
			"updated":  b.summary.Counts.Updated,
			"skipped":  b.summary.Counts.Skipped,
			"errors":   b.summary.Counts.Errors,
			"total":    b.summary.Counts.Total,
			"first_id": b.summary.FirstID,
			"last_id":  b.summary.LastID,
		})
	}
	return b.summary, runErr
}

// RunOnce executes Run and releases the session on every exit path,
// including bracket statement failures.
func (l *Loader) RunOnce(ctx context.Context, rows []interface{}) (*ExecutionSummary, error) {
	defer l.Session.Close()
	return l.Run(ctx, rows)
}

func (l *Loader) execute(ctx context.Context, prepared *sql.Stmt, strategy rowStrategy, resolver *resolve.Resolver, rows []interface{}, b *summaryBuilder) error {
	total := len(rows)
	done := 0

	switch l.Tx.Mode {
	case TxNone:
		for i, row := range rows {
			outcome, err := l.execRow(ctx, l.Session.db, prepared, strategy, resolver, row)
			done++
			l.reportProgress(done, total)
			if err != nil {
				rowErr := &RowError{Index: i, Cause: err}
				l.Session.logger.Warn("row failed", "row", i, "error", err)
				b.commit([]RowOutcome{{Action: ActionErrored}})
				if !l.Tx.ContinueOnError {
					return rowErr
				}
				continue
			}
			b.commit([]RowOutcome{outcome})
		}
		return nil

	case TxChunked:
		for start := 0; start < total; start += l.Tx.ChunkSize {
			end := start + l.Tx.ChunkSize
			if end > total {
				end = total
			}
			err := l.runScope(ctx, prepared, strategy, resolver, rows[start:end], start, b, &done, total)
			if err != nil {
				var abort *ChunkAbortError
				if errors.As(err, &abort) && l.Tx.ContinueOnError {
					l.Session.logger.Warn("chunk rolled back, continuing", "offset", start, "error", abort.Cause)
					continue
				}
				return err
			}
		}
		return nil

	default: // TxSingle
		return l.runScope(ctx, prepared, strategy, resolver, rows, 0, b, &done, total)
	}
}

// runScope executes one transaction scope. In single mode with
// ContinueOnError, row failures are recorded and the transaction still
// commits; otherwise any failure rolls the scope back, its staged outcomes
// are relabeled errored, and a ChunkAbortError is returned.
func (l *Loader) runScope(ctx context.Context, prepared *sql.Stmt, strategy rowStrategy, resolver *resolve.Resolver, rows []interface{}, offset int, b *summaryBuilder, done *int, total int) error {
	tolerant := l.Tx.Mode == TxSingle && l.Tx.ContinueOnError

	tx, err := l.Session.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrConnection, err)
	}
	st := tx.StmtContext(ctx, prepared)

	staged := make([]RowOutcome, 0, len(rows))
	for i, row := range rows {
		outcome, err := l.execRow(ctx, tx, st, strategy, resolver, row)
		*done++
		l.reportProgress(*done, total)
		if err != nil {
			rowErr := &RowError{Index: offset + i, Cause: err}
			l.Session.logger.Warn("row failed", "row", offset+i, "error", err)
			if tolerant {
				staged = append(staged, RowOutcome{Action: ActionErrored})
				continue
			}
			tx.Rollback()
			staged = append(staged, RowOutcome{Action: ActionErrored})
			b.commit(erroredAll(staged))
			return &ChunkAbortError{Cause: rowErr, Rows: len(staged)}
		}
		staged = append(staged, outcome)
	}

	if err := tx.Commit(); err != nil {
		b.commit(erroredAll(staged))
		return &ChunkAbortError{Cause: fmt.Errorf("commit: %w", err), Rows: len(staged)}
	}
	b.commit(staged)
	return nil
}

func (l *Loader) execRow(ctx context.Context, q dbtx, st *sql.Stmt, strategy rowStrategy, resolver *resolve.Resolver, row interface{}) (RowOutcome, error) {
	args := make([]interface{}, len(l.Mappings))
	sent := make(map[string]interface{}, len(l.Mappings))
	for i, m := range l.Mappings {
		v := resolver.Resolve(row, m, l.Env)
		args[i] = v
		sent[m.Column] = v
	}
	return strategy.execRow(ctx, q, st, args, sent)
}

func (l *Loader) reportProgress(done, total int) {
	if l.Progress != nil {
		l.Progress(done, total)
	}
}

func (l *Loader) newStrategy(stmt *sqlgen.Statement, provider string) (rowStrategy, error) {
	upsert := l.Conflict.Strategy == sqlgen.StrategyUpsert
	if stmt.Returning {
		return &returningStrategy{upsert: upsert, columns: stmt.Columns}, nil
	}
	s := &execStrategy{upsert: upsert}
	if upsert && l.Return.Mode == sqlgen.ReturnAffected && len(l.Conflict.Keys) > 0 {
		lookup, err := sqlgen.BuildIDLookup(provider, l.Table, l.Return.IDColumn, l.Conflict.Keys)
		if err != nil {
			return nil, err
		}
		s.lookupSQL = lookup
		s.lookupKeys = l.Conflict.Keys
	}
	return s, nil
}

// dbtx is the subset of *sql.DB and *sql.Tx the row loop needs.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// rowStrategy executes one row and classifies what happened. The strategy is
// selected once per run, never per row.
type rowStrategy interface {
	execRow(ctx context.Context, q dbtx, st *sql.Stmt, args []interface{}, sent map[string]interface{}) (RowOutcome, error)
}

// returningStrategy drives the native-capture path: every execution expects
// at most one echoed result row. No result row means the engine suppressed
// the write (skipped); a result row means inserted, or updated for upsert
// since the clause cannot tell the two apart.
type returningStrategy struct {
	upsert  bool
	columns []string
}

func (s *returningStrategy) execRow(ctx context.Context, q dbtx, st *sql.Stmt, args []interface{}, sent map[string]interface{}) (RowOutcome, error) {
	vals := make([]interface{}, len(s.columns)+1)
	dests := make([]interface{}, len(vals))
	for i := range vals {
		dests[i] = &vals[i]
	}

	err := st.QueryRowContext(ctx, args...).Scan(dests...)
	if errors.Is(err, sql.ErrNoRows) {
		return RowOutcome{Action: ActionSkipped}, nil
	}
	if err != nil {
		return RowOutcome{}, err
	}

	action := ActionInserted
	if s.upsert {
		action = ActionUpdated
	}
	data := make(map[string]interface{}, len(s.columns))
	for i, col := range s.columns {
		data[col] = normalizeValue(vals[i+1])
	}
	return RowOutcome{Action: action, ID: normalizeValue(vals[0]), Data: data}, nil
}

// execStrategy drives the fallback path for engines without RETURNING: zero
// reported changes means skipped, a fresh last-insert id means inserted, and
// anything else under upsert means updated. The id of an updated row is
// recovered with one supplementary lookup only in affected return mode.
type execStrategy struct {
	upsert     bool
	lookupSQL  string
	lookupKeys []string

	lastID int64
	seenID bool
}

// prime records the connection's current last-insert id so the first row of
// the run has a baseline to compare against. Without it an update-on-conflict
// following earlier inserts on the same connection would read as an insert.
func (s *execStrategy) prime(ctx context.Context, q dbtx, provider string) {
	var query string
	switch provider {
	case "sqlite":
		query = "SELECT last_insert_rowid()"
	case "mysql":
		query = "SELECT LAST_INSERT_ID()"
	default:
		return
	}
	var id int64
	if err := q.QueryRowContext(ctx, query).Scan(&id); err == nil && id != 0 {
		s.lastID = id
		s.seenID = true
	}
}

func (s *execStrategy) execRow(ctx context.Context, q dbtx, st *sql.Stmt, args []interface{}, sent map[string]interface{}) (RowOutcome, error) {
	res, err := st.ExecContext(ctx, args...)
	if err != nil {
		return RowOutcome{}, err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return RowOutcome{Action: ActionSkipped}, nil
	}

	id, idErr := res.LastInsertId()
	fresh := idErr == nil && id != 0 && (!s.seenID || id != s.lastID)
	if idErr == nil && id != 0 {
		s.lastID = id
		s.seenID = true
	}

	if s.upsert && !fresh {
		out := RowOutcome{Action: ActionUpdated, Data: sent}
		if s.lookupSQL != "" {
			largs := make([]interface{}, len(s.lookupKeys))
			for i, key := range s.lookupKeys {
				largs[i] = sent[key]
			}
			var lid interface{}
			if err := q.QueryRowContext(ctx, s.lookupSQL, largs...).Scan(&lid); err == nil {
				out.ID = normalizeValue(lid)
			}
		}
		return out, nil
	}

	out := RowOutcome{Action: ActionInserted, Data: sent}
	if idErr == nil && id != 0 {
		out.ID = id
	}
	return out, nil
}
