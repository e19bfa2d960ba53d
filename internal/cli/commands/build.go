package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapconn/pkg/connstr"
)

// BuildOutput is the structured result of the build command.
type BuildOutput struct {
	ConnectionString string     `json:"connection_string" yaml:"connection_string"`
	Pairs            []PairInfo `json:"pairs" yaml:"pairs"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <key=value>...",
		Short: "Build a correctly quoted connection string",
		Long: `Build a connection string from key=value arguments.

Each argument is split at its first '='. Values are quoted when they need
it (leading or trailing spaces, ';', quotes, control characters) and '='
inside keys is doubled, so the result parses back to the same pairs.`,
		Example: `  leapconn build "Data Source=C:\data\shop.db" "Password=a;b"
  leapconn build metadata=res://shop provider=sqlite "provider connection string=Data Source=shop.db"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args)
		},
	}
	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	cmdCtx := NewCommandContext(cmd)

	result, err := buildConnectionString(args)
	if err != nil {
		return err
	}

	if ok, err := cmdCtx.Renderer.Structured(result); ok {
		return err
	}
	cmdCtx.Renderer.Println(result.ConnectionString)
	return nil
}

// buildConnectionString appends each key=value argument and checks that the
// result parses back to the same pairs.
func buildConnectionString(args []string) (*BuildOutput, error) {
	var b connstr.Builder
	out := &BuildOutput{Pairs: make([]PairInfo, 0, len(args))}

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid argument %q\nHint: Use key=value", arg)
		}
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid argument %q: empty keyword", arg)
		}
		b.Append(key, value)
		out.Pairs = append(out.Pairs, PairInfo{Key: connstr.FoldKey(strings.TrimSpace(key)), Value: value})
	}
	out.ConnectionString = b.String()

	parsed, err := connstr.Parse(out.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("built connection string does not parse: %w", err)
	}
	chain := parsed.Chain()
	if chain.Len() != len(out.Pairs) {
		return nil, fmt.Errorf("built connection string has %d pairs, want %d", chain.Len(), len(out.Pairs))
	}
	for i, p := range chain.All() {
		if p != (connstr.Pair{Key: out.Pairs[i].Key, Value: out.Pairs[i].Value}) {
			return nil, fmt.Errorf("value of %q does not survive quoting", out.Pairs[i].Key)
		}
	}
	return out, nil
}
