package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapconn/internal/cli/output"
	"github.com/leapstack-labs/leapconn/pkg/provider"
)

// ProviderInfo describes a registered provider.
type ProviderInfo struct {
	Name         string   `json:"name" yaml:"name"`
	Driver       string   `json:"driver" yaml:"driver"`
	Keywords     []string `json:"keywords" yaml:"keywords"`
	PathKeywords []string `json:"path_keywords,omitempty" yaml:"path_keywords,omitempty"`
}

// NewProvidersCommand creates the providers command.
func NewProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered store providers",
		Long: `List the store providers compiled into leapconn with their database/sql
driver and the canonical keywords their connection strings accept.
Path keywords support the |DataDirectory| placeholder.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			infos, err := listProviders(cmdCtx)
			if err != nil {
				return err
			}
			return renderProviders(cmdCtx.Renderer, infos)
		},
	}
}

func listProviders(cmdCtx *CommandContext) ([]ProviderInfo, error) {
	names := provider.List()
	infos := make([]ProviderInfo, 0, len(names))
	for _, name := range names {
		p, err := provider.New(name, cmdCtx.Logger)
		if err != nil {
			return nil, err
		}
		infos = append(infos, ProviderInfo{
			Name:         p.Name(),
			Driver:       p.DriverName(),
			Keywords:     p.Synonyms().Canonical(),
			PathKeywords: p.PathKeywords(),
		})
	}
	return infos, nil
}

func renderProviders(r *output.Renderer, infos []ProviderInfo) error {
	if ok, err := r.Structured(infos); ok {
		return err
	}

	if len(infos) == 0 {
		r.Println("No providers registered.")
		return nil
	}

	r.Header(1, "Providers")
	r.Println("")
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.Name,
			info.Driver,
			strings.Join(info.Keywords, ", "),
			strings.Join(info.PathKeywords, ", "),
		})
	}
	r.Table([]string{"Name", "Driver", "Keywords", "Paths"}, rows)
	return nil
}
