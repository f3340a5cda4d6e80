// Package resolve extracts and normalizes column values from input rows.
//
// A Mapping describes where one target column's value comes from: a dotted
// path into the row, an expression evaluated against the row plus ambient
// context, or a typed lookup delegated to an external TypedResolver.
// Missing data is a first-class normal value: every resolution failure
// surfaces as nil, never as an error.
package resolve

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// SourceKind identifies how a mapping extracts its raw value.
type SourceKind uint8

const (
	SourcePath SourceKind = iota
	SourceExpr
	SourceTyped
)

// String returns the configuration name of the source kind.
func (k SourceKind) String() string {
	switch k {
	case SourcePath:
		return "path"
	case SourceExpr:
		return "expr"
	case SourceTyped:
		return "typed"
	default:
		return fmt.Sprintf("source(%d)", uint8(k))
	}
}

// ParseSourceKind parses a configuration value into a SourceKind.
// Unknown values are rejected rather than defaulted.
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "path":
		return SourcePath, nil
	case "expr", "expression":
		return SourceExpr, nil
	case "typed":
		return SourceTyped, nil
	default:
		return SourcePath, fmt.Errorf("unknown source kind: %q", s)
	}
}

// Mapping binds one target column to a value source and a transform.
type Mapping struct {
	// Column is the target column name. Validated as a SQL identifier
	// before any statement is built.
	Column string

	// Source selects the extraction mechanism.
	Source SourceKind

	// Spec is the path, expression text, or typed lookup spec.
	Spec string

	// TypedKind names the typed value class for SourceTyped mappings
	// (e.g. "str", "num", "bool", "env", "flow", "global", "expr").
	TypedKind string

	// Transform is applied to the resolved raw value.
	Transform TransformKind
}

// TypedResolver resolves a typed configuration value. Implementations must
// never fail for a missing key; they report absence through ok=false.
type TypedResolver interface {
	Resolve(kind, spec string, env map[string]interface{}) (value interface{}, ok bool)
}

// TypedWriter durably stores a value under a scope and path for downstream
// consumption. Failures are the implementation's concern; the engine treats
// writes as fire-and-forget.
type TypedWriter interface {
	Write(scope, path string, value interface{})
}

// Resolver resolves mappings against input rows. Compiled expressions are
// cached for the lifetime of the resolver, so one run compiles each
// expression mapping at most once.
type Resolver struct {
	typed    TypedResolver
	mu       sync.Mutex
	programs map[string]*vm.Program
}

// New creates a resolver. typed may be nil when no typed mappings are used.
func New(typed TypedResolver) *Resolver {
	return &Resolver{
		typed:    typed,
		programs: make(map[string]*vm.Program),
	}
}

// Resolve extracts the raw value for one mapping from row. env carries the
// invocation's ambient message/state; expressions see the row merged over it.
// The result is the raw value before transforms; absent data resolves to nil.
func (r *Resolver) Resolve(row interface{}, m Mapping, env map[string]interface{}) interface{} {
	var raw interface{}
	switch m.Source {
	case SourcePath:
		raw, _ = PathValue(row, m.Spec)
	case SourceExpr:
		raw = r.eval(m.Spec, exprEnv(row, env))
	case SourceTyped:
		if m.TypedKind == "expr" {
			raw = r.eval(m.Spec, exprEnv(row, env))
		} else if r.typed != nil {
			raw, _ = r.typed.Resolve(m.TypedKind, m.Spec, exprEnv(row, env))
		}
	}
	return Apply(m.Transform, raw)
}

// eval runs an expression, compiling and caching it on first use. Any
// compile or run failure yields nil; malformed expressions are a
// configuration smell, not a row-level error.
func (r *Resolver) eval(code string, env map[string]interface{}) interface{} {
	r.mu.Lock()
	program, ok := r.programs[code]
	r.mu.Unlock()

	if !ok {
		var err error
		program, err = expr.Compile(code, expr.AllowUndefinedVariables())
		if err != nil {
			return nil
		}
		r.mu.Lock()
		r.programs[code] = program
		r.mu.Unlock()
	}

	out, err := vm.Run(program, env)
	if err != nil {
		return nil
	}
	return out
}

// exprEnv merges the current row over the ambient context. Row fields win;
// the whole row is also reachable as "row".
func exprEnv(row interface{}, env map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(env)+2)
	for k, v := range env {
		merged[k] = v
	}
	if fields, ok := row.(map[string]interface{}); ok {
		for k, v := range fields {
			merged[k] = v
		}
	}
	merged["row"] = row
	return merged
}

// PathValue walks a dot-separated key sequence into row. Any missing key or
// non-container intermediate yields ok=false, not an error. Slice elements
// are addressable by decimal index.
func PathValue(row interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	current := row
	for _, key := range strings.Split(path, ".") {
		switch c := current.(type) {
		case map[string]interface{}:
			v, ok := c[key]
			if !ok {
				return nil, false
			}
			current = v
		case []interface{}:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			current = c[i]
		default:
			return nil, false
		}
	}
	return current, true
}
