package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapconn/pkg/provider"
)

const (
	replPrompt      = "leapconn> "
	historyFileName = ".leapconn_history"
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	opts := &ParseOptions{}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Parse connection strings interactively",
		Long: `Start an interactive session. Each line is parsed as a connection string
with the current synonym table; dot-commands switch tables, resolve entity
connections and build strings. Type .help inside the session for details.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Synonyms, "synonyms", synonymsNone, "Initial keyword table: none, entity or a provider name")
	cmd.Flags().BoolVar(&opts.ShowSecrets, "show-secrets", false, "Show password values")

	return cmd
}

// replSession holds the state of an interactive session.
type replSession struct {
	cmdCtx *CommandContext
	opts   ParseOptions
	out    io.Writer
	errOut io.Writer
}

func runREPL(cmd *cobra.Command, opts *ParseOptions) error {
	cmdCtx := NewCommandContext(cmd)
	if _, err := synonymsFor(opts.Synonyms, cmdCtx.Logger); err != nil {
		return err
	}

	historyFile := ""
	if cmdCtx.Cfg.ProjectRoot != "" {
		historyFile = filepath.Join(cmdCtx.Cfg.ProjectRoot, historyFileName)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newREPLCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	session := &replSession{
		cmdCtx: cmdCtx,
		opts:   *opts,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}

	_, _ = fmt.Fprintln(session.out, "leapconn connection string REPL")
	_, _ = fmt.Fprintln(session.out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(session.out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if session.handleLine(line) {
			break
		}
	}
	return nil
}

// handleLine evaluates one input line and reports whether the session ends.
func (s *replSession) handleLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, ".") {
		return s.handleDotCommand(line)
	}

	result, err := parseConnectionString(s.cmdCtx, line, &s.opts)
	if err != nil {
		s.printError(err)
		return false
	}
	if err := renderParse(s.cmdCtx.Renderer, result); err != nil {
		s.printError(err)
	}
	_, _ = fmt.Fprintln(s.out)
	return false
}

func (s *replSession) handleDotCommand(line string) bool {
	command, rest, _ := strings.Cut(line, " ")
	command = strings.ToLower(command)
	rest = strings.TrimSpace(rest)

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.out)

	case ".synonyms":
		if rest == "" {
			_, _ = fmt.Fprintf(s.out, "synonyms: %s\n", s.opts.Synonyms)
			return false
		}
		if _, err := synonymsFor(rest, s.cmdCtx.Logger); err != nil {
			s.printError(err)
			return false
		}
		s.opts.Synonyms = rest
		_, _ = fmt.Fprintf(s.out, "synonyms: %s\n", rest)

	case ".resolve":
		if rest == "" {
			_, _ = fmt.Fprintln(s.errOut, "Usage: .resolve <connection-string>")
			return false
		}
		result, err := resolveConnectionString(s.cmdCtx.Resolver(), rest, &ResolveOptions{ShowSecrets: s.opts.ShowSecrets})
		if err != nil {
			s.printError(err)
			return false
		}
		if err := renderResolve(s.cmdCtx.Renderer, result); err != nil {
			s.printError(err)
		}

	case ".build":
		args := strings.Fields(rest)
		if len(args) == 0 {
			_, _ = fmt.Fprintln(s.errOut, "Usage: .build key=value ...")
			return false
		}
		result, err := buildConnectionString(args)
		if err != nil {
			s.printError(err)
			return false
		}
		_, _ = fmt.Fprintln(s.out, result.ConnectionString)

	case ".providers":
		infos, err := listProviders(s.cmdCtx)
		if err != nil {
			s.printError(err)
			return false
		}
		if err := renderProviders(s.cmdCtx.Renderer, infos); err != nil {
			s.printError(err)
		}

	case ".clear":
		_, _ = fmt.Fprint(s.out, "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func (s *replSession) printError(err error) {
	_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help                  Show this help message
  .synonyms [table]      Show or set the keyword table (none, entity, <provider>)
  .resolve <string>      Resolve an entity-client connection string
  .build key=value ...   Build a quoted connection string
  .providers             List registered providers
  .clear                 Clear the screen
  .quit / .exit          Exit the REPL

Any other line is parsed as a connection string.
`
	_, _ = fmt.Fprintln(w, help)
}

// newREPLCompleter creates a readline completer for dot-commands and
// synonym table names.
func newREPLCompleter() *readline.PrefixCompleter {
	tables := []readline.PrefixCompleterInterface{
		readline.PcItem(synonymsNone),
		readline.PcItem(synonymsEntity),
	}
	for _, name := range provider.List() {
		tables = append(tables, readline.PcItem(name))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".synonyms", tables...),
		readline.PcItem(".resolve"),
		readline.PcItem(".build"),
		readline.PcItem(".providers"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
