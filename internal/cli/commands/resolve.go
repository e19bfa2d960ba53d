package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapconn/internal/cli/config"
	"github.com/leapstack-labs/leapconn/internal/cli/output"
	"github.com/leapstack-labs/leapconn/pkg/entityclient"
)

// ResolveOptions holds options for the resolve command.
type ResolveOptions struct {
	Watch       bool
	ShowSecrets bool
}

// ResolveOutput is the structured result of the resolve command.
type ResolveOutput struct {
	Name                        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Empty                       bool     `json:"empty" yaml:"empty"`
	Metadata                    []string `json:"metadata" yaml:"metadata"`
	Provider                    string   `json:"provider" yaml:"provider"`
	ProviderConnectionString    string   `json:"provider_connection_string" yaml:"provider_connection_string"`
	HasProviderConnectionString bool     `json:"has_provider_connection_string" yaml:"has_provider_connection_string"`
	Effective                   string   `json:"effective" yaml:"effective"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand() *cobra.Command {
	opts := &ResolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve <connection-string>",
		Short: "Resolve an entity-client connection string",
		Long: `Resolve an entity-client connection string into its metadata paths, store
provider and provider connection string.

A string of the form name=<connection> is looked up in the connections
section of leapconn.yaml; the named entry must use the leapconn.entityclient
provider. With --watch the configuration file is watched and the string is
resolved again whenever the file changes.`,
		Example: `  # Resolve an inline connection string
  leapconn resolve "metadata=res://shop;provider=sqlite;provider connection string='Data Source=shop.db'"

  # Resolve a named connection and follow config changes
  leapconn resolve --watch name=shop`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Re-resolve when the config file changes")
	cmd.Flags().BoolVar(&opts.ShowSecrets, "show-secrets", false, "Show password values")

	return cmd
}

func runResolve(cmd *cobra.Command, input string, opts *ResolveOptions) error {
	cmdCtx := NewCommandContext(cmd)

	result, err := resolveConnectionString(cmdCtx.Resolver(), input, opts)
	if err != nil {
		if !opts.Watch {
			return err
		}
		cmdCtx.Renderer.Warning(err.Error())
	} else if err := renderResolve(cmdCtx.Renderer, result); err != nil {
		return err
	}

	if !opts.Watch {
		return nil
	}
	if cmdCtx.Cfg.ConfigFile == "" {
		return errors.New("--watch requires a config file\nHint: Create leapconn.yaml or pass --config")
	}

	_, _ = fmt.Fprintf(cmdCtx.Renderer.ErrWriter(), "Watching %s for changes (Ctrl+C to stop)\n", cmdCtx.Cfg.ConfigFile)
	ctx := config.WithLogger(cmd.Context(), cmdCtx.Logger)
	return config.Watch(ctx, cmdCtx.Cfg.ConfigFile, func(cfg *config.Config, err error) {
		if err != nil {
			cmdCtx.Renderer.Warning(fmt.Sprintf("config reload failed: %v", err))
			return
		}
		resolver := entityclient.NewResolver(cfg, cmdCtx.Logger)
		result, err := resolveConnectionString(resolver, input, opts)
		if err != nil {
			cmdCtx.Renderer.Warning(err.Error())
			return
		}
		cmdCtx.Renderer.Println("")
		if err := renderResolve(cmdCtx.Renderer, result); err != nil {
			cmdCtx.Renderer.Warning(err.Error())
		}
	})
}

// resolveConnectionString resolves input and builds the command output.
func resolveConnectionString(resolver *entityclient.Resolver, input string, opts *ResolveOptions) (*ResolveOutput, error) {
	settings, err := resolver.Resolve(input)
	if err != nil {
		return nil, describeParseError(input, err)
	}
	return newResolveOutput(settings, opts.ShowSecrets), nil
}

func newResolveOutput(settings *entityclient.Settings, showSecrets bool) *ResolveOutput {
	out := &ResolveOutput{
		Name:                        settings.Name,
		Empty:                       settings.IsEmpty(),
		Metadata:                    append([]string{}, settings.Metadata...),
		Provider:                    settings.Provider,
		ProviderConnectionString:    redactConnectionString(settings.ProviderConnectionString, showSecrets),
		HasProviderConnectionString: settings.HasProviderConnectionString,
	}
	if settings.Effective != nil {
		if showSecrets {
			out.Effective = settings.Effective.String()
		} else {
			out.Effective = settings.Effective.Redacted()
		}
	}
	return out
}

func renderResolve(r *output.Renderer, result *ResolveOutput) error {
	if ok, err := r.Structured(result); ok {
		return err
	}

	title := "Entity Connection"
	if result.Name != "" {
		title += " " + result.Name
	}
	r.Header(1, title)
	r.Println("")
	if result.Empty {
		r.Println("(empty connection string)")
		return nil
	}

	r.KeyValue("Provider", result.Provider)
	r.KeyValue("Metadata", strings.Join(result.Metadata, " | "))
	switch {
	case !result.HasProviderConnectionString:
		r.KeyValue("Provider connection string", "(not set)")
	case r.EffectiveMode() == output.ModeMarkdown:
		r.KeyValue("Provider connection string", output.FormatCode(result.ProviderConnectionString))
	default:
		r.KeyValue("Provider connection string", result.ProviderConnectionString)
	}
	if result.Name != "" {
		r.KeyValue("Effective", result.Effective)
	}
	return nil
}
