package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapconn/internal/cli/config"
	"github.com/leapstack-labs/leapconn/internal/cli/testutil"
	ltestutil "github.com/leapstack-labs/leapconn/internal/testutil"
	"github.com/leapstack-labs/leapconn/pkg/connstr"
	_ "github.com/leapstack-labs/leapconn/pkg/providers/postgres"
	_ "github.com/leapstack-labs/leapconn/pkg/providers/sqlite"
)

// newTestContext loads the test project config and renders into tr.
func newTestContext(t *testing.T, tr *testutil.TestRenderer) *CommandContext {
	t.Helper()
	dir := testutil.SetupTestProject(t)
	cfg, err := config.LoadConfig(filepath.Join(dir, "leapconn.yaml"), nil)
	require.NoError(t, err)
	return &CommandContext{
		Cfg:      cfg,
		Logger:   ltestutil.NewTestLogger(t),
		Renderer: tr.Renderer,
	}
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewParseCommand(), "parse <connection-string>", []string{"synonyms", "show-secrets"}},
		{NewResolveCommand(), "resolve <connection-string>", []string{"watch", "show-secrets"}},
		{NewPingCommand(), "ping <connection-string>", []string{"provider", "timeout"}},
		{NewBuildCommand(), "build <key=value>...", nil},
		{NewProvidersCommand(), "providers", nil},
		{NewREPLCommand(), "repl", []string{"synonyms", "show-secrets"}},
		{NewServeCommand(), "serve", []string{"addr", "watch"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, tt.cmd.Long, "Long should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestNewVersionCommand(t *testing.T) {
	for _, version := range []string{"0.1.0", "1.2.3", "dev"} {
		t.Run(version, func(t *testing.T) {
			cmd := NewVersionCommand(version)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)

			require.NoError(t, cmd.Execute())
			assert.Contains(t, buf.String(), "leapconn v"+version)
			assert.Equal(t, "version", cmd.Use)
		})
	}
}

func TestBuildConnectionString(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr string
	}{
		{
			name: "plain values",
			args: []string{"Server=db", "Database=shop"},
			want: "Server=db;Database=shop",
		},
		{
			name: "values needing quotes",
			args: []string{"Password=a;b", "Name= padded "},
			want: `Password="a;b";Name=" padded "`,
		},
		{
			name: "equals in value",
			args: []string{"a=b=c"},
			want: `a="b=c"`,
		},
		{
			name: "nested connection string",
			args: []string{"provider connection string=Data Source=x.db;Mode=ro"},
			want: `provider connection string="Data Source=x.db;Mode=ro"`,
		},
		{
			name:    "missing equals",
			args:    []string{"novalue"},
			wantErr: "Use key=value",
		},
		{
			name:    "empty keyword",
			args:    []string{" =x"},
			wantErr: "empty keyword",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildConnectionString(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ConnectionString)
			assert.Len(t, got.Pairs, len(tt.args))
		})
	}
}

func TestParseConnectionString(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	cmdCtx := newTestContext(t, tr)

	result, err := parseConnectionString(cmdCtx, "Server=db;Password=hunter2;server=db2", &ParseOptions{Synonyms: synonymsNone})
	require.NoError(t, err)
	assert.Equal(t, []PairInfo{{"password", "*****"}, {"server", "db2"}}, result.Entries)
	assert.Len(t, result.Chain, 3)
	assert.NotContains(t, result.Input, "hunter2")
	assert.NotContains(t, result.Normalized, "hunter2")

	result, err = parseConnectionString(cmdCtx, "Password=hunter2", &ParseOptions{ShowSecrets: true})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", result.Entries[0].Value)
	assert.Equal(t, "Password=hunter2", result.Input)

	result, err = parseConnectionString(cmdCtx, "Server=db;Initial Catalog=shop", &ParseOptions{Synonyms: "postgres"})
	require.NoError(t, err)
	assert.Equal(t, "host=db;database=shop", result.Normalized)

	_, err = parseConnectionString(cmdCtx, "a=1", &ParseOptions{Synonyms: "oracle"})
	require.Error(t, err)

	_, err = parseConnectionString(cmdCtx, "server=db", &ParseOptions{Synonyms: synonymsEntity})
	require.ErrorIs(t, err, connstr.ErrUnsupportedKeyword)
}

func TestDescribeParseError(t *testing.T) {
	input := "a=1;k='abc"
	_, err := connstr.Parse(input, nil)
	require.Error(t, err)

	described := describeParseError(input, err)
	require.ErrorIs(t, described, connstr.ErrMalformed)
	lines := strings.Split(described.Error(), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "  "+input, lines[1])
	assert.Equal(t, "      ^", lines[2])

	input = "a=1;\tb"
	_, err = connstr.Parse(input, nil)
	require.Error(t, err)
	lines = strings.Split(describeParseError(input, err).Error(), "\n")
	assert.Equal(t, "  a=1;·b", lines[1])

	other := assert.AnError
	assert.Equal(t, other, describeParseError(input, other))
}

func TestSynonymsFor(t *testing.T) {
	logger := ltestutil.NewTestLogger(t)

	for _, name := range []string{"", "none", " NONE "} {
		syn, err := synonymsFor(name, logger)
		require.NoError(t, err)
		assert.Nil(t, syn)
	}

	syn, err := synonymsFor("entity", logger)
	require.NoError(t, err)
	assert.NotNil(t, syn)

	syn, err = synonymsFor("sqlite", logger)
	require.NoError(t, err)
	assert.NotNil(t, syn)

	_, err = synonymsFor("oracle", logger)
	require.Error(t, err)

	choices := synonymChoices()
	assert.Equal(t, []string{"none", "entity"}, choices[:2])
	assert.Contains(t, choices, "sqlite")
}

func TestRedactConnectionString(t *testing.T) {
	assert.Equal(t, "", redactConnectionString("", false))
	assert.Equal(t, "host=db;password=*****", redactConnectionString("Host=db;Password=x", false))
	assert.Equal(t, "Host=db;Password=x", redactConnectionString("Host=db;Password=x", true))
	assert.Equal(t, "(unparseable)", redactConnectionString("a='open", false))
}

func TestRenderParse_Markdown(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	cmdCtx := newTestContext(t, tr)

	result, err := parseConnectionString(cmdCtx, "Server=db;Password=hunter2", &ParseOptions{})
	require.NoError(t, err)
	require.NoError(t, renderParse(tr.Renderer, result))

	out := tr.Output()
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# Connection String")
	assert.Contains(t, out, "- **Keywords**: 2")
	assert.Contains(t, out, "## Chain")
	assert.NotContains(t, out, "hunter2")

	tr.Reset()
	result, err = parseConnectionString(cmdCtx, "  ", &ParseOptions{})
	require.NoError(t, err)
	require.NoError(t, renderParse(tr.Renderer, result))
	assert.Contains(t, tr.Output(), "(empty connection string)")
}

func TestRenderParse_JSON(t *testing.T) {
	tr := testutil.NewTestRendererJSON()
	cmdCtx := newTestContext(t, tr)

	result, err := parseConnectionString(cmdCtx, "a=1", &ParseOptions{})
	require.NoError(t, err)
	require.NoError(t, renderParse(tr.Renderer, result))
	assert.True(t, strings.HasPrefix(tr.Output(), "{"))
	assert.Contains(t, tr.Output(), `"normalized": "a=1"`)
}

func TestResolveConnectionString(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	cmdCtx := newTestContext(t, tr)

	result, err := resolveConnectionString(cmdCtx.Resolver(), "name=warehouse", &ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "warehouse", result.Name)
	assert.Equal(t, "postgres", result.Provider)
	assert.Equal(t, []string{"res://wh"}, result.Metadata)
	assert.Equal(t, "host=db;database=wh;password=*****", result.ProviderConnectionString)

	require.NoError(t, renderResolve(tr.Renderer, result))
	out := tr.Output()
	assert.Contains(t, out, "# Entity Connection warehouse")
	assert.NotContains(t, out, "hunter2")
	testutil.AssertValidMarkdown(t, out)

	_, err = resolveConnectionString(cmdCtx.Resolver(), "name=nested", &ResolveOptions{})
	require.Error(t, err)

	_, err = resolveConnectionString(cmdCtx.Resolver(), "name=shop;provider=sqlite", &ResolveOptions{})
	require.Error(t, err)
}

func TestListProviders(t *testing.T) {
	tr := testutil.NewTestRendererText()
	cmdCtx := newTestContext(t, tr)

	infos, err := listProviders(cmdCtx)
	require.NoError(t, err)
	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.Contains(t, names, "sqlite")
	assert.Contains(t, names, "postgres")

	require.NoError(t, renderProviders(tr.Renderer, infos))
	assert.Contains(t, tr.Output(), "sqlite")
}

func newTestSession(t *testing.T) (*replSession, *testutil.TestRenderer) {
	t.Helper()
	tr := testutil.NewTestRendererMarkdown()
	return &replSession{
		cmdCtx: newTestContext(t, tr),
		opts:   ParseOptions{Synonyms: synonymsNone},
		out:    tr.Out,
		errOut: tr.ErrOut,
	}, tr
}

func TestREPLSession(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantQuit  bool
		wantOut   string
		wantErr   string
		noOutputs bool
	}{
		{name: "blank line", line: "   ", noOutputs: true},
		{name: "quit", line: ".quit", wantQuit: true},
		{name: "exit is case insensitive", line: ".EXIT", wantQuit: true},
		{name: "help", line: ".help", wantOut: ".resolve <string>"},
		{name: "parse", line: "Server=db;Database=shop", wantOut: "# Connection String"},
		{name: "parse error", line: "a='open", wantErr: "Error: "},
		{name: "show synonyms", line: ".synonyms", wantOut: "synonyms: none"},
		{name: "set synonyms", line: ".synonyms sqlite", wantOut: "synonyms: sqlite"},
		{name: "bad synonyms", line: ".synonyms oracle", wantErr: "Error: "},
		{name: "resolve", line: ".resolve name=shop", wantOut: "# Entity Connection shop"},
		{name: "resolve usage", line: ".resolve", wantErr: "Usage: .resolve"},
		{name: "build", line: ".build a=1 b=x;y", wantOut: `a=1;b="x;y"`},
		{name: "build usage", line: ".build", wantErr: "Usage: .build"},
		{name: "providers", line: ".providers", wantOut: "postgres"},
		{name: "unknown", line: ".bogus", wantErr: "Unknown command: .bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, tr := newTestSession(t)

			quit := session.handleLine(tt.line)
			assert.Equal(t, tt.wantQuit, quit)
			if tt.wantOut != "" {
				assert.Contains(t, tr.Output(), tt.wantOut)
			}
			if tt.wantErr != "" {
				assert.Contains(t, tr.ErrorOutput(), tt.wantErr)
			}
			if tt.noOutputs {
				assert.Empty(t, tr.Output())
				assert.Empty(t, tr.ErrorOutput())
			}
		})
	}
}

func TestREPLSession_SynonymsApplyToLaterLines(t *testing.T) {
	session, tr := newTestSession(t)

	session.handleLine(".synonyms entity")
	assert.Equal(t, "entity", session.opts.Synonyms)

	tr.Reset()
	session.handleLine("server=db")
	assert.Contains(t, tr.ErrorOutput(), "keyword not supported")
}

func TestNewREPLCompleter(t *testing.T) {
	completer := newREPLCompleter()
	var names []string
	for _, child := range completer.GetChildren() {
		names = append(names, strings.TrimSpace(string(child.GetName())))
	}
	assert.Contains(t, names, ".synonyms")
	assert.Contains(t, names, ".quit")
}
