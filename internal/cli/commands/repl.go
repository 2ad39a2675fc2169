package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlsense/internal/cli/output"
	"github.com/leapstack-labs/sqlsense/pkg/engine"
	"github.com/leapstack-labs/sqlsense/pkg/token"
)

const (
	replPrompt         = "sqlsense> "
	replContinuePrompt = "     ...> "
)

var replCommands = []string{
	".help", ".complete", ".joins", ".check", ".scope", ".show",
	".clear", ".tables", ".columns", ".reload", ".quit", ".exit",
}

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Type SQL with live completion against the catalog",
		Long: `Start an interactive session. Lines you type build up a SQL
document; Tab completes tables and columns at the end of it, and dot
commands inspect the document (.complete, .joins, .check, .scope).`,
		Args: cobra.NoArgs,
		RunE: runREPL,
	}
}

func runREPL(cmd *cobra.Command, _ []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	s := newREPLSession(cmd, cc)

	historyFile := ""
	if dir := filepath.Dir(cc.Cfg.Catalog.Store); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err == nil {
			historyFile = filepath.Join(dir, "repl_history")
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    &replCompleter{session: s},
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	snap := cc.Engine.Catalog()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sqlsense REPL (catalog: %s, %d objects)\n", snap.Database, len(snap.Objects()))
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if s.handle(line) {
			return nil
		}
		if s.text == "" {
			rl.SetPrompt(replPrompt)
		} else {
			rl.SetPrompt(replContinuePrompt)
		}
	}
}

// replSession is the document being typed plus the engine it is
// resolved against.
type replSession struct {
	cmd  *cobra.Command
	cc   *CommandContext
	text string
}

func newREPLSession(cmd *cobra.Command, cc *CommandContext) *replSession {
	// The REPL always renders for a terminal, whatever -o says.
	if cc.Renderer.EffectiveMode() == output.ModeJSON {
		cc.Renderer = output.NewRendererWithTTY(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ModeText, cc.Renderer.IsTTY())
	}
	return &replSession{cmd: cmd, cc: cc}
}

func (s *replSession) reset() { s.text = "" }

func (s *replSession) eng() *engine.Engine { return s.cc.Engine }

// end returns the position just past the document.
func (s *replSession) end() (int, int) {
	p := engine.PositionOf(s.text, len(s.text))
	return p.Line, p.Column
}

// handle processes one input line and reports whether to quit.
func (s *replSession) handle(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, ".") {
		if trimmed == "" && s.text == "" {
			return false
		}
		s.text += line + "\n"
		return false
	}

	r := s.cc.Renderer
	fields := strings.Fields(trimmed)
	switch strings.ToLower(fields[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(r.Writer())
	case ".show":
		r.Println(strings.TrimRight(s.text, "\n"))
	case ".clear":
		s.reset()
	case ".complete":
		s.complete()
	case ".joins":
		s.joins()
	case ".check":
		s.check()
	case ".scope":
		s.scope()
	case ".tables":
		s.tables(fields[1:])
	case ".columns":
		if len(fields) < 2 {
			r.Warning("usage: .columns <table>")
			break
		}
		if err := showObject(r, s.eng().Catalog(), fields[1]); err != nil {
			r.Warning(err.Error())
		}
	case ".reload":
		snap, err := LoadCatalog(s.cmd.Context(), s.cc.Cfg, s.cc.Logger)
		if err != nil {
			r.Warning(err.Error())
			break
		}
		s.eng().SetCatalog(snap)
		r.Success(fmt.Sprintf("catalog reloaded (%d objects)", len(snap.Objects())))
	default:
		r.Warning(fmt.Sprintf("unknown command %s (type .help for commands)", fields[0]))
	}
	return false
}

func (s *replSession) complete() {
	line, col := s.end()
	rows := [][]string{}
	for _, c := range s.eng().Complete(s.text, line, col) {
		rows = append(rows, []string{c.Label, c.Kind.String(), c.Detail})
	}
	s.cc.Renderer.Table([]string{"Label", "Kind", "Detail"}, rows)
}

func (s *replSession) joins() {
	line, col := s.end()
	rows := [][]string{}
	for _, j := range s.eng().SuggestJoins(s.text, line, col) {
		rows = append(rows, []string{j.Target.QualifiedName() + " " + j.Alias, j.OnClause})
	}
	s.cc.Renderer.Table([]string{"Table", "On"}, rows)
}

func (s *replSession) check() {
	r := s.cc.Renderer
	warnings := s.eng().Warnings(s.text)
	for _, w := range warnings {
		r.Printf("%d:%d: %s\n", w.Start.Line+1, w.Start.Column+1, w.Message)
	}
	if len(warnings) == 0 {
		r.Success("no type warnings")
	}
}

func (s *replSession) scope() {
	line, col := s.end()
	sc := s.eng().ScopeAt(s.text, line, col)
	cat := s.eng().Catalog()
	rows := [][]string{}
	for _, b := range sc.Visible() {
		rows = append(rows, []string{b.Qualifier, b.Entity.Name(), b.Entity.Kind().String(), strings.Join(columnNames(b.Entity.Columns(cat)), ", ")})
	}
	s.cc.Renderer.Table([]string{"Qualifier", "Name", "Kind", "Columns"}, rows)
}

func (s *replSession) tables(args []string) {
	rows := [][]string{}
	for _, o := range s.eng().Catalog().Objects() {
		if len(args) > 0 && token.Fold(o.Schema) != token.Fold(args[0]) {
			continue
		}
		rows = append(rows, []string{o.QualifiedName(), o.Kind.String()})
	}
	s.cc.Renderer.Table([]string{"Object", "Kind"}, rows)
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .complete          List candidates at the end of the document
  .joins             Suggest joins at the end of the document
  .check             Report type warnings in the document
  .scope             Show the sources visible at the end of the document
  .show              Print the document
  .clear             Start a new document (Ctrl-C also clears)
  .tables [schema]   List catalog objects
  .columns <table>   Show a table's columns
  .reload            Reload the catalog
  .quit / .exit      Exit the REPL

Tips:
  - Every other line is appended to the document
  - Tab completes tables and columns at the cursor
`
	_, _ = fmt.Fprintln(w, help)
}

// replCompleter feeds engine candidates to readline. Readline inserts
// suffixes, so only candidates that extend what was typed are offered.
type replCompleter struct {
	session *replSession
}

// Do implements readline.AutoCompleter.
func (c *replCompleter) Do(line []rune, pos int) ([][]rune, int) {
	typedLine := string(line[:pos])
	if strings.HasPrefix(strings.TrimSpace(typedLine), ".") {
		return completeWords(strings.TrimSpace(typedLine), replCommands)
	}

	s := c.session
	text := s.text + typedLine
	p := engine.PositionOf(text, len(text))
	cands := s.eng().Complete(text, p.Line, p.Column)

	var words []string
	typed := ""
	for _, cand := range cands {
		if cand.Replace.Start > len(text) {
			continue
		}
		typed = text[cand.Replace.Start:]
		words = append(words, cand.InsertText)
	}
	return completeWords(typed, words)
}

// completeWords returns the suffixes of words that extend typed,
// matching case-insensitively, in the order given.
func completeWords(typed string, words []string) ([][]rune, int) {
	seen := make(map[string]bool)
	var out []string
	for _, w := range words {
		if len(w) < len(typed) || !strings.EqualFold(w[:len(typed)], typed) {
			continue
		}
		suffix := w[len(typed):]
		if !seen[suffix] {
			seen[suffix] = true
			out = append(out, suffix)
		}
	}
	res := make([][]rune, len(out))
	for i, s := range out {
		res[i] = []rune(s)
	}
	return res, len([]rune(typed))
}
