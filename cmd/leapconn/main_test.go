// Package main provides end-to-end tests for the leapconn CLI.
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapconn/internal/cli"
)

// run executes the root command with args from inside dir.
func run(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	t.Chdir(dir)

	cmd := cli.NewRootCmd()
	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := `data_directory: data
connections:
  shop:
    connection_string: "metadata=|DataDirectory|shop.csdl;provider=sqlite;provider connection string='Data Source=|DataDirectory|shop.db'"
  nested:
    connection_string: "name=shop"
  memory:
    connection_string: "metadata=res://mem;provider=duckdb;provider connection string='Data Source=:memory:;Threads=2'"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leapconn.yaml"), []byte(cfg), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "leapconn v")
}

func TestHelpCommand(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "--help")
	require.NoError(t, err)
	for _, expected := range []string{"parse", "resolve", "ping", "build", "providers", "repl", "serve", "completion"} {
		assert.Contains(t, out, expected)
	}
}

func TestParseCommand(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "parse", "-o", "json", "a=1;A=2;b='x;y'")
	require.NoError(t, err)

	var result struct {
		Entries []struct{ Key, Value string } `json:"entries"`
		Chain   []struct{ Key, Value string } `json:"chain"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "a", result.Entries[0].Key)
	assert.Equal(t, "2", result.Entries[0].Value)
	assert.Equal(t, "x;y", result.Entries[1].Value)
	assert.Len(t, result.Chain, 3)
}

func TestParseCommand_Malformed(t *testing.T) {
	_, _, err := run(t, t.TempDir(), "parse", "a=1;k='abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 4")
	assert.Contains(t, err.Error(), "      ^")
}

func TestParseCommand_ProviderSynonyms(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "parse", "-o", "yaml", "--synonyms", "postgres", "Server=db;Initial Catalog=shop")
	require.NoError(t, err)

	var result struct {
		Normalized string `yaml:"normalized"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &result))
	assert.Equal(t, "host=db;database=shop", result.Normalized)

	_, _, err = run(t, t.TempDir(), "parse", "--synonyms", "postgres", "Flavor=x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyword not supported")
}

func TestBuildCommand(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "build", "-o", "text", "Data Source=my db.sqlite", "Password=a;b", "a=b=c")
	require.NoError(t, err)
	assert.Equal(t, `Data Source="my db.sqlite";Password="a;b";a="b=c"`+"\n", out)

	_, _, err = run(t, t.TempDir(), "build", "novalue")
	require.Error(t, err)
}

func TestResolveCommand(t *testing.T) {
	dir := writeProject(t)

	out, _, err := run(t, dir, "resolve", "-o", "json", "name=shop")
	require.NoError(t, err)
	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "shop", result["name"])
	assert.Equal(t, "sqlite", result["provider"])

	_, _, err = run(t, dir, "resolve", "name=nested")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another named connection")

	_, _, err = run(t, dir, "resolve", "name=missing")
	require.Error(t, err)
}

func TestPingCommand(t *testing.T) {
	dir := writeProject(t)

	out, _, err := run(t, dir, "ping", "-o", "json", "name=shop")
	require.NoError(t, err)
	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "ok", result["status"])
	assert.Equal(t, "sqlite", result["provider"])

	_, err = os.Stat(filepath.Join(dir, "data", "shop.db"))
	assert.NoError(t, err, "database is created under the data directory")

	out, _, err = run(t, dir, "ping", "-o", "markdown", "--provider", "duckdb", "Data Source=:memory:")
	require.NoError(t, err)
	assert.Contains(t, out, "duckdb connection is alive")

	_, _, err = run(t, dir, "ping", "--provider", "sqlite", "Data Source=|DataDirectory|../../escape.db")
	require.Error(t, err)
}

func TestProvidersCommand(t *testing.T) {
	out, _, err := run(t, t.TempDir(), "providers", "-o", "json")
	require.NoError(t, err)

	var infos []struct {
		Name   string `json:"name"`
		Driver string `json:"driver"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"duckdb", "mysql", "postgres", "sqlite"}, names)
}

func TestInvalidOutputFlag(t *testing.T) {
	_, _, err := run(t, t.TempDir(), "parse", "-o", "html", "a=1")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid output format"))
}
