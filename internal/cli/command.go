package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// exitInterrupted is returned when a command stops because its context was
// cancelled by a signal.
const exitInterrupted = 130

// Command is one nandsim subcommand. Its name is the first word of Usage,
// e.g. "read" for "read <row> [flags]".
type Command struct {
	Flags *flag.FlagSet
	Usage string
	Short string
	// Long replaces Short in "nandsim <cmd> --help" when set.
	Long string
	Exec func(ctx context.Context, o *IO, args []string) error
}

func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// HelpLine is the command's row in the command listing.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-26s %s", c.Usage, c.Short)
}

func (c *Command) PrintHelp(o *IO) {
	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	o.Printf("Usage: nandsim %s\n\n%s\n", c.Usage, desc)

	if c.Flags == nil || !c.Flags.HasFlags() {
		return
	}

	o.Printf("\nFlags:\n%s", c.Flags.FlagUsages())
}

// Run parses args into c.Flags, runs Exec and returns the exit code: 0 on
// success, 1 on errors or pending warnings, 130 when interrupted.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{})

	switch err := c.Flags.Parse(args); {
	case errors.Is(err, flag.ErrHelp):
		c.PrintHelp(o)

		return 0
	case err != nil:
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(o)

		return 1
	}

	err := c.Exec(ctx, o, c.Flags.Args())

	switch {
	case err == nil:
		return o.Finish()
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		o.ErrPrintln("error: interrupted:", c.Name())
		o.Finish()

		return exitInterrupted
	default:
		o.ErrPrintln("error:", err)

		return 1
	}
}
