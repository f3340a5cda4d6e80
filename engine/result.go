package engine

import (
	"fmt"
	"time"
)

// Action is the reconciled per-row outcome.
type Action uint8

const (
	ActionInserted Action = iota
	ActionUpdated
	ActionSkipped
	ActionErrored
)

// String returns the reporting name of the action.
func (a Action) String() string {
	switch a {
	case ActionInserted:
		return "inserted"
	case ActionUpdated:
		return "updated"
	case ActionSkipped:
		return "skipped"
	case ActionErrored:
		return "errored"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// MarshalJSON renders the action by name.
func (a Action) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// RowOutcome records what happened to one input row. Outcomes are immutable
// once appended to the result sequence.
type RowOutcome struct {
	Action Action                 `json:"action"`
	ID     interface{}            `json:"id,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// Counts aggregates per-row outcomes. Total counts attempted rows, so
// Inserted+Updated+Skipped+Errors always equals Total; input rows the run
// never reached after an abort appear in no counter.
type Counts struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
	Total    int `json:"total"`
}

// Timings covers the row-execution window. Bracket statements run outside it.
type Timings struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// ExecutionSummary is the aggregate result of one run.
type ExecutionSummary struct {
	Counts Counts `json:"counts"`

	// FirstID and LastID are the first and most recent non-null identifiers
	// observed in input order, not a min/max.
	FirstID interface{} `json:"first_id,omitempty"`
	LastID  interface{} `json:"last_id,omitempty"`

	// Rows holds the ordered per-row outcomes when the return policy
	// requested them.
	Rows []RowOutcome `json:"rows,omitempty"`

	Timings Timings `json:"timings"`
}

// summaryBuilder reconciles per-row results from either execution path into
// the uniform outcome shape and keeps the aggregate consistent.
type summaryBuilder struct {
	keepRows bool
	summary  *ExecutionSummary
}

func newSummaryBuilder(keepRows bool) *summaryBuilder {
	return &summaryBuilder{keepRows: keepRows, summary: &ExecutionSummary{}}
}

// commit appends outcomes that became durable (or, for errored outcomes,
// were finally accounted) to the summary.
func (b *summaryBuilder) commit(outcomes []RowOutcome) {
	for _, o := range outcomes {
		b.summary.Counts.Total++
		switch o.Action {
		case ActionInserted:
			b.summary.Counts.Inserted++
		case ActionUpdated:
			b.summary.Counts.Updated++
		case ActionSkipped:
			b.summary.Counts.Skipped++
		case ActionErrored:
			b.summary.Counts.Errors++
		}
		if o.ID != nil {
			if b.summary.FirstID == nil {
				b.summary.FirstID = o.ID
			}
			b.summary.LastID = o.ID
		}
		if b.keepRows {
			b.summary.Rows = append(b.summary.Rows, o)
		}
	}
}

// erroredAll strips ids and data from rolled-back outcomes and relabels them
// errored, so the counts reflect only what was durable.
func erroredAll(outcomes []RowOutcome) []RowOutcome {
	relabeled := make([]RowOutcome, len(outcomes))
	for i := range outcomes {
		relabeled[i] = RowOutcome{Action: ActionErrored}
	}
	return relabeled
}

// normalizeValue converts driver byte slices into strings so outcome data is
// comparable across drivers and paths.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
