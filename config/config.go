// Package config loads and validates rowforge load specs.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/rowforge/rowforge/engine"
	"github.com/rowforge/rowforge/resolve"
	"github.com/rowforge/rowforge/sqlgen"
)

// AppFs is the filesystem handle; tests swap it for an in-memory fs.
var AppFs = afero.NewOsFs()

// Spec is the raw load spec as written in rowforge.yaml. All enum-like
// fields stay strings here; Compile turns them into typed policies with
// strict validation.
type Spec struct {
	Provider string        `mapstructure:"provider"`
	DSN      string        `mapstructure:"dsn"`
	Table    string        `mapstructure:"table"`
	Mappings []MappingSpec `mapstructure:"mappings"`
	Conflict ConflictSpec  `mapstructure:"conflict"`
	Tx       TxSpec        `mapstructure:"transaction"`
	Return   ReturnSpec    `mapstructure:"return"`
	PreSQL   string        `mapstructure:"pre_sql"`
	PostSQL  string        `mapstructure:"post_sql"`
}

// MappingSpec is one column mapping entry.
type MappingSpec struct {
	Column    string `mapstructure:"column"`
	Source    string `mapstructure:"source"`
	Spec      string `mapstructure:"spec"`
	TypedKind string `mapstructure:"typed_kind"`
	Transform string `mapstructure:"transform"`
}

// ConflictSpec configures conflict handling.
type ConflictSpec struct {
	Strategy string   `mapstructure:"strategy"`
	Keys     []string `mapstructure:"keys"`
	Update   []string `mapstructure:"update"`
}

// TxSpec configures transaction batching.
type TxSpec struct {
	Mode            string `mapstructure:"mode"`
	ChunkSize       int    `mapstructure:"chunk_size"`
	ContinueOnError bool   `mapstructure:"continue_on_error"`
}

// ReturnSpec configures result capture.
type ReturnSpec struct {
	Mode     string `mapstructure:"mode"`
	IDColumn string `mapstructure:"id_column"`
}

// Load reads a spec file. When path is empty, rowforge.yaml is searched in
// the working directory and the home directory. Environment variables with
// the ROWFORGE prefix override file values; .env and .env.local are loaded
// first when present.
func Load(path string) (*Spec, error) {
	// Load .env files if they exist (ignore load failures, they are not
	// required).
	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}

	v := viper.New()
	v.SetFs(AppFs)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rowforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix("ROWFORGE")
	v.AutomaticEnv()

	v.SetDefault("provider", "sqlite")
	v.SetDefault("transaction.mode", "single")
	v.SetDefault("return.mode", "none")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read load spec: %w", err)
	}

	var spec Spec
	if err := v.Unmarshal(&spec); err != nil {
		return nil, fmt.Errorf("failed to parse load spec: %w", err)
	}
	if dsn := v.GetString("dsn"); dsn != "" {
		spec.DSN = dsn
	}
	return &spec, nil
}

// Plan is a compiled spec: every enum parsed, every policy typed.
type Plan struct {
	Provider string
	DSN      string
	Table    string
	Mappings []resolve.Mapping
	Conflict sqlgen.ConflictPolicy
	Return   sqlgen.ReturnPolicy
	Tx       engine.TransactionPolicy
	PreSQL   string
	PostSQL  string
}

// Compile validates the raw spec and produces a typed plan. Unknown enum
// values are rejected, never defaulted.
func (s *Spec) Compile() (*Plan, error) {
	plan := &Plan{
		Provider: s.Provider,
		DSN:      s.DSN,
		Table:    s.Table,
		PreSQL:   s.PreSQL,
		PostSQL:  s.PostSQL,
	}

	if s.Table == "" {
		return nil, fmt.Errorf("spec: table is required")
	}
	if len(s.Mappings) == 0 {
		return nil, fmt.Errorf("spec: at least one mapping is required")
	}

	for i, raw := range s.Mappings {
		if raw.Column == "" {
			return nil, fmt.Errorf("spec: mapping %d has no column", i)
		}
		source, err := resolve.ParseSourceKind(raw.Source)
		if err != nil {
			return nil, fmt.Errorf("spec: mapping %q: %w", raw.Column, err)
		}
		transform, err := resolve.ParseTransform(raw.Transform)
		if err != nil {
			return nil, fmt.Errorf("spec: mapping %q: %w", raw.Column, err)
		}
		spec := raw.Spec
		if spec == "" && source == resolve.SourcePath {
			// A bare column maps from the same-named row field.
			spec = raw.Column
		}
		plan.Mappings = append(plan.Mappings, resolve.Mapping{
			Column:    raw.Column,
			Source:    source,
			Spec:      spec,
			TypedKind: raw.TypedKind,
			Transform: transform,
		})
	}

	strategy, err := sqlgen.ParseStrategy(s.Conflict.Strategy)
	if err != nil {
		return nil, fmt.Errorf("spec: %w", err)
	}
	plan.Conflict = sqlgen.ConflictPolicy{
		Strategy:      strategy,
		Keys:          s.Conflict.Keys,
		UpdateColumns: s.Conflict.Update,
	}

	mode, err := engine.ParseTxMode(s.Tx.Mode)
	if err != nil {
		return nil, fmt.Errorf("spec: %w", err)
	}
	plan.Tx = engine.TransactionPolicy{
		Mode:            mode,
		ChunkSize:       s.Tx.ChunkSize,
		ContinueOnError: s.Tx.ContinueOnError,
	}

	retMode, err := sqlgen.ParseReturnMode(s.Return.Mode)
	if err != nil {
		return nil, fmt.Errorf("spec: %w", err)
	}
	plan.Return = sqlgen.ReturnPolicy{
		Mode:     retMode,
		IDColumn: s.Return.IDColumn,
	}

	return plan, nil
}

// Loader builds an engine loader from the plan over an open session. A
// fresh state store backs typed mappings and result write-back; hosts with
// their own state mechanism replace Typed and Writer on the returned loader.
func (p *Plan) Loader(sess *engine.Session) *engine.Loader {
	store := resolve.NewStateStore()
	return &engine.Loader{
		Session:  sess,
		Table:    p.Table,
		Mappings: p.Mappings,
		Conflict: p.Conflict,
		Return:   p.Return,
		Tx:       p.Tx,
		PreSQL:   p.PreSQL,
		PostSQL:  p.PostSQL,
		Typed:    store,
		Writer:   store,
	}
}
