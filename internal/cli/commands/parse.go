package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapconn/internal/cli/output"
	"github.com/leapstack-labs/leapconn/pkg/connstr"
)

// ParseOptions holds options for the parse command.
type ParseOptions struct {
	Synonyms    string
	ShowSecrets bool
}

// PairInfo is a keyword/value pair in command output.
type PairInfo struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// ParseOutput is the structured result of the parse command.
type ParseOutput struct {
	Input      string     `json:"input" yaml:"input"`
	Synonyms   string     `json:"synonyms" yaml:"synonyms"`
	Empty      bool       `json:"empty" yaml:"empty"`
	Entries    []PairInfo `json:"entries" yaml:"entries"`
	Chain      []PairInfo `json:"chain" yaml:"chain"`
	Normalized string     `json:"normalized" yaml:"normalized"`
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	opts := &ParseOptions{}

	cmd := &cobra.Command{
		Use:   "parse <connection-string>",
		Short: "Parse a connection string and show its keywords",
		Long: `Parse a key=value;... connection string and show the resulting entries
(last value wins) and the full pair chain in the order it was written.

Keywords are validated against a synonym table selected with --synonyms:
  none      accept any keyword (default)
  entity    entity-client keywords (metadata, provider, ...)
  <name>    the keywords of a registered provider (see 'leapconn providers')

Password values are masked unless --show-secrets is given.`,
		Example: `  # Parse without keyword validation
  leapconn parse "Server=db;Database=shop;User Id=app"

  # Validate against the postgres provider's keywords
  leapconn parse --synonyms postgres "Host=db;Initial Catalog=shop"

  # Machine readable output
  leapconn parse -o json "a=1;a=2"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Synonyms, "synonyms", synonymsNone, "Keyword table: none, entity or a provider name")
	cmd.Flags().BoolVar(&opts.ShowSecrets, "show-secrets", false, "Show password values")
	_ = cmd.RegisterFlagCompletionFunc("synonyms", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return synonymChoices(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runParse(cmd *cobra.Command, input string, opts *ParseOptions) error {
	cmdCtx := NewCommandContext(cmd)

	result, err := parseConnectionString(cmdCtx, input, opts)
	if err != nil {
		return err
	}
	return renderParse(cmdCtx.Renderer, result)
}

// parseConnectionString parses input with the selected synonym table and
// builds the command output.
func parseConnectionString(cmdCtx *CommandContext, input string, opts *ParseOptions) (*ParseOutput, error) {
	synonyms, err := synonymsFor(opts.Synonyms, cmdCtx.Logger)
	if err != nil {
		return nil, err
	}

	parsed, err := connstr.Parse(input, synonyms)
	if err != nil {
		return nil, describeParseError(input, err)
	}
	cmdCtx.Logger.Debug("parsed connection string",
		"synonyms", opts.Synonyms,
		"pairs", parsed.Chain().Len(),
		"keywords", parsed.Len())

	return newParseOutput(input, opts, parsed), nil
}

func newParseOutput(input string, opts *ParseOptions, parsed *connstr.Options) *ParseOutput {
	out := &ParseOutput{
		Input:    input,
		Synonyms: opts.Synonyms,
		Empty:    parsed.IsEmpty(),
		Entries:  make([]PairInfo, 0, parsed.Len()),
		Chain:    make([]PairInfo, 0, parsed.Chain().Len()),
	}
	if !opts.ShowSecrets {
		out.Input = redactConnectionString(input, false)
	}

	keys := parsed.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		out.Entries = append(out.Entries, PairInfo{Key: k, Value: displayValue(k, parsed.Get(k), opts.ShowSecrets)})
	}
	for _, p := range parsed.Chain().All() {
		out.Chain = append(out.Chain, PairInfo{Key: p.Key, Value: displayValue(p.Key, p.Value, opts.ShowSecrets)})
	}

	if opts.ShowSecrets {
		out.Normalized = parsed.String()
	} else {
		out.Normalized = parsed.Redacted()
	}
	return out
}

func renderParse(r *output.Renderer, result *ParseOutput) error {
	if ok, err := r.Structured(result); ok {
		return err
	}

	r.Header(1, "Connection String")
	r.Println("")
	if result.Empty {
		r.Println("(empty connection string)")
		return nil
	}

	r.KeyValue("Keywords", fmt.Sprintf("%d", len(result.Entries)))
	r.KeyValue("Pairs", fmt.Sprintf("%d", len(result.Chain)))
	if r.EffectiveMode() == output.ModeMarkdown {
		r.KeyValue("Normalized", output.FormatCode(result.Normalized))
	} else {
		r.KeyValue("Normalized", result.Normalized)
	}
	r.Println("")

	r.Header(2, "Entries")
	r.Println("")
	r.Table([]string{"Keyword", "Value"}, pairRows(result.Entries, false))
	r.Println("")

	r.Header(2, "Chain")
	r.Println("")
	r.Table([]string{"#", "Keyword", "Value"}, pairRows(result.Chain, true))
	return nil
}

func pairRows(pairs []PairInfo, numbered bool) [][]string {
	rows := make([][]string, 0, len(pairs))
	for i, p := range pairs {
		if numbered {
			rows = append(rows, []string{fmt.Sprintf("%d", i+1), p.Key, p.Value})
			continue
		}
		rows = append(rows, []string{p.Key, p.Value})
	}
	return rows
}
