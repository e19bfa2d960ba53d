package duckdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapconn/internal/testutil"
	"github.com/leapstack-labs/leapconn/pkg/datadir"
	"github.com/leapstack-labs/leapconn/pkg/provider"
)

func TestRegistered(t *testing.T) {
	assert.True(t, provider.IsRegistered("duckdb"))
}

func TestProvider_DSN(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{
			name:  "in-memory default",
			input: "",
			want:  ":memory:",
		},
		{
			name:  "data directory with settings",
			input: "Path=|DataDirectory|warehouse.duckdb;Access Mode=Read Only;Threads=4;Memory Limit=1GB",
			want:  filepath.Join(root, "warehouse.duckdb") + "?access_mode=read_only&memory_limit=1GB&threads=4",
		},
		{
			name:    "invalid access mode",
			input:   "access mode=sometimes",
			wantErr: "invalid duckdb access mode",
		},
		{
			name:    "invalid threads",
			input:   "threads=many",
			wantErr: "invalid connection option",
		},
	}

	p := New(testutil.NewTestLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := provider.BuildDSN(p, tt.input, datadir.Expander{Root: root})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_InMemory(t *testing.T) {
	ctx := context.Background()
	db, err := provider.Open(ctx, New(nil), "Data Source=:memory:;Threads=2", datadir.Expander{})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT 42").Scan(&n))
	assert.Equal(t, 42, n)
}
