package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapconn/internal/cli/config"
	"github.com/leapstack-labs/leapconn/internal/cli/output"
	"github.com/leapstack-labs/leapconn/pkg/connstr"
	"github.com/leapstack-labs/leapconn/pkg/datadir"
	"github.com/leapstack-labs/leapconn/pkg/entityclient"
	"github.com/leapstack-labs/leapconn/pkg/provider"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the command's context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Resolver returns an entity-client resolver backed by the configured
// named connections.
func (c *CommandContext) Resolver() *entityclient.Resolver {
	return entityclient.NewResolver(c.Cfg, c.Logger)
}

// Pool returns a store connection pool rooted at the configured data
// directory. The caller closes it.
func (c *CommandContext) Pool() *entityclient.Pool {
	return entityclient.NewPool(datadir.Expander{Root: c.Cfg.DataDirectory}, c.Logger)
}

// Synonym table names accepted by --synonyms.
const (
	synonymsNone   = "none"
	synonymsEntity = "entity"
)

// synonymsFor returns the keyword table selected by name: none, entity or
// a registered provider.
func synonymsFor(name string, logger *slog.Logger) (connstr.Synonyms, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", synonymsNone:
		return nil, nil
	case synonymsEntity, entityclient.EntityClientProviderName:
		return entityclient.Keywords, nil
	}
	p, err := provider.New(name, logger)
	if err != nil {
		return nil, err
	}
	return p.Synonyms(), nil
}

// synonymChoices lists the accepted --synonyms values for completion.
func synonymChoices() []string {
	return append([]string{synonymsNone, synonymsEntity}, provider.List()...)
}

// displayValue masks secret values unless showSecrets is set.
func displayValue(key, value string, showSecrets bool) string {
	if showSecrets {
		return value
	}
	return connstr.RedactValue(key, value)
}

// redactConnectionString masks secrets in a store connection string.
// Strings that do not parse are hidden entirely unless showSecrets is set.
func redactConnectionString(cs string, showSecrets bool) string {
	if showSecrets || cs == "" {
		return cs
	}
	opts, err := connstr.Parse(cs, nil)
	if err != nil {
		return "(unparseable)"
	}
	return opts.Redacted()
}

// describeParseError adds a caret diagnostic to malformed connection string
// errors.
func describeParseError(input string, err error) error {
	var syntaxErr *connstr.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return err
	}
	runes := []rune(input)
	offset := syntaxErr.Offset
	if offset > len(runes) {
		offset = len(runes)
	}
	return fmt.Errorf("%w\n  %s\n  %s^", err, visible(string(runes)), strings.Repeat(" ", offset))
}

// visible replaces control characters so the caret lines up.
func visible(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '·'
		}
		return r
	}, s)
}
