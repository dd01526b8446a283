package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caffeineduck/wasmui/host"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var replCmd = &cobra.Command{
	Use:   "repl [module.wasm]",
	Short: "Interactive session with one mounted tree",
	Long: `Start an interactive session against a loaded module.

Commands:
  mount <name> [json]   Mount or replace the tree with a plain component
  boxed <name> [json]   Mount or replace the tree with a new boxed component
  update [json]         Re-render the current component with new props
  tree                  Print the rendered tree
  live                  Print the number of live guest handles
  components            List exported components
  unmount               Unmount the tree
  exit                  End the session

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.wasmui_history)")
	rootCmd.AddCommand(replCmd)
}

var errQuit = errors.New("quit")

// replSession holds the single tree a REPL works on.
type replSession struct {
	app   *app
	root  *host.Root
	name  string
	boxed bool
}

func runRepl(cmd *cobra.Command, args []string) error {
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".wasmui_history")
	}

	a, err := openApp(context.Background(), modulePath(args))
	if err != nil {
		return err
	}
	defer a.Close()

	s := &replSession{app: a}
	defer s.unmount()

	out := cmd.OutOrStdout()

	// Piped input runs as a script without line editing.
	if f, ok := cmd.InOrStdin().(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return s.script(cmd.InOrStdin(), out, cmd.ErrOrStderr())
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "wasmui> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(cmd.ErrOrStderr(), "wasmui REPL for %s (type 'exit' to quit, Ctrl+D to exit)\n", a.mod.Name())

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		if err := s.exec(line, out); err != nil {
			if err == errQuit {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}
}

func (s *replSession) script(in io.Reader, out, errOut io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := s.exec(scanner.Text(), out); err != nil {
			if err == errQuit {
				return nil
			}
			fmt.Fprintf(errOut, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

// exec runs one REPL line.
func (s *replSession) exec(line string, out io.Writer) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "exit", "quit":
		return errQuit
	case "mount", "boxed":
		name, propsJSON, _ := strings.Cut(rest, " ")
		if name == "" {
			return fmt.Errorf("usage: %s <name> [json]", cmd)
		}
		props, err := parseProps(propsJSON)
		if err != nil {
			return err
		}
		return s.show(s.render(name, props, cmd == "boxed"), out)
	case "update":
		if s.root == nil {
			return fmt.Errorf("nothing mounted")
		}
		props, err := parseProps(rest)
		if err != nil {
			return err
		}
		return s.show(s.render(s.name, props, s.boxed), out)
	case "tree":
		if s.root == nil {
			return fmt.Errorf("nothing mounted")
		}
		return s.show(nil, out)
	case "live":
		fmt.Fprintln(out, s.app.mod.Live())
		return nil
	case "components":
		for _, e := range s.app.mod.Components() {
			fmt.Fprintf(out, "%s (%s)\n", e.Name, e.Kind)
		}
		return nil
	case "unmount":
		if s.root == nil {
			return fmt.Errorf("nothing mounted")
		}
		s.unmount()
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// render mounts the component, or updates the existing tree so the renderer
// decides what survives.
func (s *replSession) render(name string, props map[string]any, boxed bool) error {
	el, err := s.app.element(name, props, boxed)
	if err != nil {
		return err
	}
	s.name, s.boxed = name, boxed
	if s.root != nil {
		return s.root.Update(el)
	}
	root, err := s.app.r.Mount(el)
	if err != nil {
		return err
	}
	s.root = root
	return nil
}

func (s *replSession) show(err error, out io.Writer) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(out, s.root.Tree().String())
	return nil
}

func (s *replSession) unmount() {
	if s.root != nil {
		s.root.Unmount()
		s.root = nil
	}
}
