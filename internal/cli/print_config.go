package cli

import (
	"context"
	"strconv"

	"github.com/calvinalkan/nandsim/internal/config"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execPrintConfig(io, cfg)
		},
	}
}

func execPrintConfig(io *IO, cfg config.Config) error {
	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("root=" + cfg.RootAbs)
	io.Println("device=" + cfg.Device)
	io.Println("variant=" + cfg.Variant)
	io.Println("compression=" + cfg.Compression)
	io.Println("cache_handles=" + strconv.Itoa(cfg.CacheHandles))

	if path := cfg.CommandLogPath(); path != "" {
		io.Println("command_log=" + path)
	} else {
		io.Println("command_log=(disabled)")
	}

	io.Println("log_level=" + cfg.LogLevel)
	io.Println("log_format=" + cfg.LogFormat)

	if cfg.Seed != 0 {
		io.Println("seed=" + strconv.FormatUint(cfg.Seed, 10))
	}

	io.Println("")
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
