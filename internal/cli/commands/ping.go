package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapconn/internal/cli/output"
	"github.com/leapstack-labs/leapconn/pkg/entityclient"
	"github.com/leapstack-labs/leapconn/pkg/provider"
)

// PingOptions holds options for the ping command.
type PingOptions struct {
	Provider string
	Timeout  time.Duration
}

// PingOutput is the structured result of the ping command.
type PingOutput struct {
	Provider  string   `json:"provider" yaml:"provider"`
	Driver    string   `json:"driver" yaml:"driver"`
	Group     string   `json:"group" yaml:"group"`
	Metadata  []string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	LatencyMS int64    `json:"latency_ms" yaml:"latency_ms"`
	Status    string   `json:"status" yaml:"status"`
}

// NewPingCommand creates the ping command.
func NewPingCommand() *cobra.Command {
	opts := &PingOptions{}

	cmd := &cobra.Command{
		Use:   "ping <connection-string>",
		Short: "Open a store connection and ping it",
		Long: `Open the store connection described by a connection string and ping it.

By default the argument is an entity-client connection string (inline or
name=<connection>). With --provider it is passed straight to that provider.
|DataDirectory| in paths expands to the configured data directory.`,
		Example: `  # Ping a named entity connection
  leapconn ping name=shop

  # Ping a provider connection string directly
  leapconn ping --provider sqlite "Data Source=|DataDirectory|shop.db"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPing(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Provider, "provider", "", "Treat the argument as a connection string of this provider")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "Timeout for opening and pinging")
	_ = cmd.RegisterFlagCompletionFunc("provider", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return provider.List(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runPing(cmd *cobra.Command, input string, opts *PingOptions) error {
	cmdCtx := NewCommandContext(cmd)

	ctx := cmd.Context()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	pool := cmdCtx.Pool()
	defer func() {
		if err := pool.Close(); err != nil {
			cmdCtx.Logger.Warn("failed to close store connections", "error", err)
		}
	}()

	result, err := pingConnection(ctx, cmdCtx, pool, input, opts)
	if err != nil {
		return err
	}
	return renderPing(cmdCtx.Renderer, result)
}

// pingConnection opens the store connection through pool and pings it.
func pingConnection(ctx context.Context, cmdCtx *CommandContext, pool *entityclient.Pool, input string, opts *PingOptions) (*PingOutput, error) {
	start := time.Now()

	if strings.TrimSpace(opts.Provider) != "" {
		p, err := provider.New(opts.Provider, cmdCtx.Logger)
		if err != nil {
			return nil, err
		}
		db, err := pool.Acquire(ctx, p, input)
		if err != nil {
			return nil, describeParseError(input, err)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("failed to ping %s: %w", p.Name(), err)
		}
		return newPingOutput(p, pool, nil, time.Since(start)), nil
	}

	conn := entityclient.NewConnection(cmdCtx.Resolver(), pool, cmdCtx.Logger)
	if err := conn.ChangeConnectionString(input); err != nil {
		return nil, describeParseError(input, err)
	}
	if err := conn.Open(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	p, err := conn.Provider()
	if err != nil {
		return nil, err
	}
	return newPingOutput(p, pool, conn.MetadataPaths(), time.Since(start)), nil
}

func newPingOutput(p provider.Provider, pool *entityclient.Pool, metadata []string, elapsed time.Duration) *PingOutput {
	out := &PingOutput{
		Provider:  p.Name(),
		Driver:    p.DriverName(),
		Metadata:  metadata,
		LatencyMS: elapsed.Milliseconds(),
		Status:    "ok",
	}
	if groups := pool.Groups(); len(groups) > 0 {
		out.Group = groups[0].ID.String()
	}
	return out
}

func renderPing(r *output.Renderer, result *PingOutput) error {
	if ok, err := r.Structured(result); ok {
		return err
	}

	r.Success(fmt.Sprintf("%s connection is alive (%d ms)", result.Provider, result.LatencyMS))
	r.KeyValue("Driver", result.Driver)
	r.KeyValue("Group", result.Group)
	for _, path := range result.Metadata {
		r.KeyValue("Metadata", path)
	}
	return nil
}
