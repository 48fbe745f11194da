package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/calvinalkan/nandsim/pkg/nand"
	"github.com/peterh/liner"

	flag "github.com/spf13/pflag"
)

// ShellCmd returns the shell command.
func ShellCmd(env *deviceEnv) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell",
		Short: "Interactive device shell",
		Long: `Open the device once and read commands line by line.

Every device command (read, write, exec, ...) is available, plus
flush, help and exit. On a terminal the shell offers line editing,
history and tab completion.`,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return env.with(func(dev *nand.Device) error {
				sh := &shell{
					env: &deviceEnv{cfg: env.cfg, log: env.log, dev: dev},
					dev: dev,
				}

				return sh.run(ctx, o)
			})
		},
	}
}

// lineReader yields input lines. It returns io.EOF when input ends.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

type shell struct {
	env *deviceEnv
	dev *nand.Device
}

// commands returns fresh commands for one line, so flag values do not leak
// between lines.
func (s *shell) commands() []*Command {
	return []*Command{
		InfoCmd(s.env),
		StatusCmd(s.env),
		ReadCmd(s.env),
		WriteCmd(s.env),
		EraseCmd(s.env),
		CheckCmd(s.env),
		MarkBadCmd(s.env),
		ExecCmd(s.env),
		SelftestCmd(s.env),
	}
}

func (s *shell) run(ctx context.Context, o *IO) error {
	lines := s.reader(o)
	defer func() { _ = lines.Close() }()

	o.Printf("nandsim shell (device=%s session=%s)\n", s.dev.Name(), s.dev.Session())
	o.Println("Type 'help' for available commands.")

	prompt := s.dev.Name() + "> "

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := lines.Prompt(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				o.Println("Bye!")

				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		name, args := strings.ToLower(fields[0]), fields[1:]

		switch name {
		case "exit", "quit", "q":
			o.Println("Bye!")

			return nil
		case "help", "?":
			s.printHelp(o)
		case "flush":
			err := s.dev.Flush()
			if err != nil {
				o.ErrPrintln("error:", err)
			} else {
				o.Println("flushed")
			}
		default:
			s.dispatch(ctx, o, name, args)
		}
	}
}

func (s *shell) dispatch(ctx context.Context, o *IO, name string, args []string) {
	for _, cmd := range s.commands() {
		if cmd.Name() == name {
			// Per-line IO so warnings are reported with the line that caused them.
			_ = cmd.Run(ctx, NewIO(o.in, o.out, o.errOut), args)

			return
		}
	}

	o.ErrPrintln("error: unknown command:", name, "(type 'help' for commands)")
}

func (s *shell) printHelp(o *IO) {
	o.Println("Commands:")

	for _, cmd := range s.commands() {
		o.Println(cmd.HelpLine())
	}

	o.Printf("  %-26s %s\n", "flush", "Write cached blocks and device state to disk")
	o.Printf("  %-26s %s\n", "help", "Show this help")
	o.Printf("  %-26s %s\n", "exit / quit / q", "Leave the shell")
}

func (s *shell) completer(line string) []string {
	names := []string{"flush", "help", "exit", "quit"}
	for _, cmd := range s.commands() {
		names = append(names, cmd.Name())
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, name := range names {
		if strings.HasPrefix(name, lower) {
			completions = append(completions, name)
		}
	}

	return completions
}

// reader returns a liner-backed reader on the process stdin, and a plain
// line scanner for any other input.
func (s *shell) reader(o *IO) lineReader {
	if f, ok := o.In().(*os.File); ok && f == os.Stdin {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		state.SetCompleter(s.completer)

		r := &linerReader{State: state, history: historyFile()}
		r.load()

		return r
	}

	in := o.In()
	if in == nil {
		in = strings.NewReader("")
	}

	return &scanReader{scanner: bufio.NewScanner(in)}
}

type linerReader struct {
	*liner.State

	history string
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	line, err := r.State.Prompt(prompt)
	if err == nil && strings.TrimSpace(line) != "" {
		r.AppendHistory(line)
	}

	return line, err
}

func (r *linerReader) load() {
	if r.history == "" {
		return
	}

	if f, err := os.Open(r.history); err == nil {
		_, _ = r.ReadHistory(f)
		_ = f.Close()
	}
}

func (r *linerReader) Close() error {
	if r.history != "" {
		if f, err := os.Create(r.history); err == nil {
			_, _ = r.WriteHistory(f)
			_ = f.Close()
		}
	}

	return r.State.Close()
}

type scanReader struct {
	scanner *bufio.Scanner
}

func (r *scanReader) Prompt(string) (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}

	if err := r.scanner.Err(); err != nil {
		return "", err
	}

	return "", io.EOF
}

func (*scanReader) Close() error { return nil }

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".nandsim_history")
}
