package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapconn/internal/server"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr  string
	Watch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the connection string API over HTTP",
		Long: `Start a local JSON API for parsing, resolving and pinging connection strings.

Endpoints:
  GET  /healthz
  GET  /api/providers
  GET  /api/connections
  GET  /api/pool
  POST /api/parse     {"connection_string": "...", "synonyms": "none|entity|<provider>"}
  POST /api/resolve   {"connection_string": "..."}
  POST /api/ping      {"connection_string": "...", "provider": "<optional>"}

Passwords are masked in every response.`,
		Example: `  # Serve on the default address
  leapconn serve

  # Serve on another port and reload named connections on config changes
  leapconn serve --addr 127.0.0.1:9000 --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", server.DefaultAddr, "Address to listen on")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Reload named connections when the config file changes")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx := NewCommandContext(cmd)

	if opts.Watch && cmdCtx.Cfg.ConfigFile == "" {
		cmdCtx.Renderer.Warning("no config file found, --watch has no effect")
	}

	srv := server.NewServer(server.Config{
		Addr:   opts.Addr,
		Config: cmdCtx.Cfg,
		Watch:  opts.Watch,
		Logger: cmdCtx.Logger,
	})

	_, _ = fmt.Fprintf(cmdCtx.Renderer.ErrWriter(), "Serving on http://%s (Ctrl+C to stop)\n", opts.Addr)
	return srv.Serve(cmd.Context())
}
