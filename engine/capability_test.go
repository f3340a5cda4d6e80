package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEngineVersion(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "3.35.0", want: "3.35.0"},
		{raw: "3.35", want: "3.35.0"},
		{raw: "3", want: "3.0.0"},
		{raw: "8.0.32-0ubuntu0.22.04.1", want: "8.0.32"},
		{raw: "15.4 (Debian 15.4-1)", want: "15.4.0"},
		{raw: "garbage", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := parseEngineVersion(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Core().String())
		})
	}
}

func TestSQLiteVersionGate(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{raw: "3.34.1", want: false},
		{raw: "3.35.0", want: true},
		{raw: "3.35", want: true},
		{raw: "3.49.2", want: true},
		{raw: "2.8.17", want: false},
	}

	for _, tt := range tests {
		v, err := parseEngineVersion(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, v.GreaterThanOrEqual(minSQLiteReturning), tt.raw)
	}
}

func TestSupportsReturningCached(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()

	// Bundled SQLite is well past 3.35.
	assert.True(t, sess.SupportsReturning(ctx))

	// Cached for the session lifetime.
	require.NotNil(t, sess.returning)
	*sess.returning = false
	assert.False(t, sess.SupportsReturning(ctx))

	// Close invalidates the cache.
	require.NoError(t, sess.Close())
	assert.Nil(t, sess.returning)
}

func TestDetectReturningByProvider(t *testing.T) {
	s := &Session{provider: "postgres", logger: nopLogger{}}
	assert.True(t, s.detectReturning(context.Background()))

	s = &Session{provider: "mysql", logger: nopLogger{}}
	assert.False(t, s.detectReturning(context.Background()))
}
