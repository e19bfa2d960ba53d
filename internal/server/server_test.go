package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapconn/internal/cli/config"
	"github.com/leapstack-labs/leapconn/internal/testutil"
	"github.com/leapstack-labs/leapconn/pkg/entityclient"
	_ "github.com/leapstack-labs/leapconn/pkg/providers/sqlite"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDirectory: t.TempDir(),
		OutputFormat:  config.DefaultOutput,
		Connections: map[string]config.ConnectionConfig{
			"shop": {
				ProviderName:     entityclient.EntityClientProviderName,
				ConnectionString: "metadata=|DataDirectory|shop.csdl|res://shop;provider=sqlite;provider connection string='Data Source=|DataDirectory|shop.db'",
			},
			"pg": {
				ProviderName:     entityclient.EntityClientProviderName,
				ConnectionString: "metadata=res://pg;provider=postgres;provider connection string='Host=db;Password=hunter2'",
			},
			"raw": {
				ProviderName:     "sqlite",
				ConnectionString: "Data Source=raw.db",
			},
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(Config{Config: testConfig(t), Logger: testutil.NewTestLogger(t)})
	t.Cleanup(func() { _ = s.pool.Close() })
	return s
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec, body := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestParse(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name:       "last value wins",
			body:       `{"connection_string": "a=1;a=2"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, map[string]any{"a": "2"}, body["entries"])
				assert.Len(t, body["chain"], 2)
				assert.Equal(t, false, body["empty"])
			},
		},
		{
			name:       "passwords masked",
			body:       `{"connection_string": "Server=db;Password=hunter2"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "*****", body["entries"].(map[string]any)["password"])
				assert.NotContains(t, body["normalized"], "hunter2")
			},
		},
		{
			name:       "nested passwords masked",
			body:       `{"connection_string": "metadata=m;provider=postgres;provider connection string='Host=db;Password=hunter2'"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "host=db;password=*****", body["entries"].(map[string]any)["provider connection string"])
			},
		},
		{
			name:       "empty",
			body:       `{"connection_string": ""}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, true, body["empty"])
			},
		},
		{
			name:       "malformed reports offset",
			body:       `{"connection_string": "a=1;k='abc"}`,
			wantStatus: http.StatusUnprocessableEntity,
			check: func(t *testing.T, body map[string]any) {
				assert.Contains(t, body["error"], "does not conform")
				assert.EqualValues(t, 4, body["offset"])
			},
		},
		{
			name:       "unsupported keyword",
			body:       `{"connection_string": "server=db", "synonyms": "entity"}`,
			wantStatus: http.StatusUnprocessableEntity,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "server", body["keyword"])
			},
		},
		{
			name:       "provider synonyms",
			body:       `{"connection_string": "Filename=app.db", "synonyms": "sqlite"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "app.db", body["entries"].(map[string]any)["data source"])
			},
		},
		{
			name:       "unknown synonym table",
			body:       `{"connection_string": "a=1", "synonyms": "oracle"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid body",
			body:       `{"connection_string": 1}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			body:       `{"cs": "a=1"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, s, http.MethodPost, "/api/parse", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "hunter2")
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodPost, "/api/resolve", `{"connection_string": "name=shop"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "shop", body["name"])
	assert.Equal(t, "sqlite", body["provider"])
	assert.Equal(t, []any{"|DataDirectory|shop.csdl", "res://shop"}, body["metadata"])

	rec, body = do(t, s, http.MethodPost, "/api/resolve", `{"connection_string": "name=pg"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "postgres", body["provider"])
	assert.Equal(t, "host=db;password=*****", body["provider_connection_string"])
	assert.NotContains(t, rec.Body.String(), "hunter2")

	rec, body = do(t, s, http.MethodPost, "/api/resolve", `{"connection_string": "name=raw"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["error"], "named connection")

	rec, _ = do(t, s, http.MethodPost, "/api/resolve", `{"connection_string": "metadata=m"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPing(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodPost, "/api/ping", `{"connection_string": "name=shop"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "sqlite", body["provider"])
	dataDir := s.Config().DataDirectory
	assert.Contains(t, body["metadata"], filepath.Join(dataDir, "shop.csdl"))
	_, err := os.Stat(filepath.Join(dataDir, "shop.db"))
	assert.NoError(t, err, "sqlite creates the database under the data directory")

	rec, _ = do(t, s, http.MethodPost, "/api/ping", `{"connection_string": "Data Source=:memory:", "provider": "sqlite"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, groups := doList(t, s, "/api/pool")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, groups, 2)

	rec, _ = do(t, s, http.MethodPost, "/api/ping", `{"connection_string": "a=1", "provider": "oracle"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/ping", `{"connection_string": "metadata=m;provider=sqlite;provider connection string='Data Source=|DataDirectory|../escape.db'"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func doList(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, []map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func TestProvidersAndConnections(t *testing.T) {
	s := newTestServer(t)

	rec, providers := doList(t, s, "/api/providers")
	require.Equal(t, http.StatusOK, rec.Code)
	var names []string
	for _, p := range providers {
		names = append(names, p["name"].(string))
	}
	assert.Contains(t, names, "sqlite")

	rec, conns := doList(t, s, "/api/connections")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, conns, 3)
	assert.Equal(t, "pg", conns[0]["name"])
	assert.Equal(t, "raw", conns[1]["name"])
	assert.Equal(t, "shop", conns[2]["name"])
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestReload(t *testing.T) {
	s := newTestServer(t)

	s.reload(nil, assert.AnError)
	assert.Len(t, s.Config().Connections, 3, "failed reload keeps the previous config")

	s.reload(&config.Config{DataDirectory: "/elsewhere"}, nil)
	assert.Empty(t, s.Config().Connections)
}

func TestServeListener(t *testing.T) {
	s := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
