package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/calvinalkan/nandsim/internal/config"

	flag "github.com/spf13/pflag"
)

// Run is the main entry point. Returns exit code.
//
// sigCh, when non-nil, cancels the command context on the first signal;
// long-running commands (selftest, shell) stop at the next page boundary.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globals := flag.NewFlagSet("nandsim", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(&strings.Builder{})

	var (
		workDir    = globals.StringP("cwd", "C", "", "Run as if started in `dir`")
		configPath = globals.StringP("config", "c", "", "Use specified config `file`")
		help       = globals.BoolP("help", "h", false, "Show help")
		overrides  config.Overrides
	)

	globals.StringVar(&overrides.Root, "root", "", "Directory holding device state")
	globals.StringVar(&overrides.Device, "device", "", "Device `name`")
	globals.StringVar(&overrides.Variant, "variant", "", "Device variant")
	globals.StringVar(&overrides.Compression, "compression", "", "Block file compression (none, brotli)")
	globals.IntVar(&overrides.CacheHandles, "cache-handles", 0, "Number of cached blocks")
	globals.StringVar(&overrides.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	if len(args) > 0 {
		args = args[1:]
	}

	err := globals.Parse(args)
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, globals, nil)

		return 1
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: *workDir,
		ConfigPath:      *configPath,
		Overrides:       overrides,
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	logger, err := newLogger(errOut, cfg)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	commands := allCommands(cfg, logger)

	rest := globals.Args()
	if *help || len(rest) == 0 {
		printUsage(out, globals, commands)

		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				logger.Info("interrupted")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	name := rest[0]

	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd.Run(ctx, NewIO(in, out, errOut), rest[1:])
		}
	}

	fprintln(errOut, "error: unknown command:", name)
	printUsage(errOut, globals, commands)

	return 1
}

// allCommands returns every command in help order.
func allCommands(cfg config.Config, logger *slog.Logger) []*Command {
	env := &deviceEnv{cfg: cfg, log: logger}

	return []*Command{
		InfoCmd(env),
		StatusCmd(env),
		ReadCmd(env),
		WriteCmd(env),
		EraseCmd(env),
		CheckCmd(env),
		MarkBadCmd(env),
		ExecCmd(env),
		SelftestCmd(env),
		ShellCmd(env),
		PrintConfigCmd(cfg),
	}
}

func newLogger(w io.Writer, cfg config.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler

	switch cfg.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("%w: log_format %q", config.ErrConfigInvalid, cfg.LogFormat)
	}

	return slog.New(handler).With("component", "nandsim"), nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, globals *flag.FlagSet, commands []*Command) {
	fprintln(w, `nandsim - file-backed NAND flash simulator

Usage: nandsim [options] <command> [args]

Options:`)

	var buf strings.Builder

	globals.SetOutput(&buf)
	globals.PrintDefaults()
	globals.SetOutput(&strings.Builder{})

	_, _ = io.WriteString(w, buf.String())

	if len(commands) == 0 {
		return
	}

	fprintln(w)
	fprintln(w, "Commands:")

	for _, cmd := range commands {
		fprintln(w, cmd.HelpLine())
	}
}

// errArgs reports a missing or malformed positional argument.
var errArgs = errors.New("invalid arguments")
