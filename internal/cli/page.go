package cli

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/calvinalkan/nandsim/pkg/nand"

	flag "github.com/spf13/pflag"
)

const defaultDumpLen = 64

// ReadCmd returns the read command.
func ReadCmd(env *deviceEnv) *Command {
	flags := flag.NewFlagSet("read", flag.ContinueOnError)
	col := flags.Int("col", 0, "Start `column` within the page")
	length := flags.Int("len", defaultDumpLen, "Bytes to dump (0 = rest of page)")
	oob := flags.Bool("oob", false, "Also dump the spare area")

	return &Command{
		Flags: flags,
		Usage: "read <row> [flags]",
		Short: "Read a page and hex-dump it",
		Long: `Read page <row> through the command sequencer and hex-dump its data.

Correctable bit errors are reported as a warning (exit code 1).
Uncorrectable errors and bad blocks fail the command.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			row, err := rowArg(args)
			if err != nil {
				return err
			}

			return env.with(func(dev *nand.Device) error {
				return execRead(o, dev, row, *col, *length, *oob)
			})
		},
	}
}

func execRead(o *IO, dev *nand.Device, row, col, length int, withOOB bool) error {
	geo := dev.Geometry()

	if col < 0 || col > geo.PageSize {
		return fmt.Errorf("%w: column %d outside page of %d bytes", errArgs, col, geo.PageSize)
	}

	data := make([]byte, geo.PageSize-col)
	oob := make([]byte, geo.SpareSize)

	outcome, err := dev.ReadPage(row, col, data, oob)
	if err != nil {
		return err
	}

	if outcome == nand.OutcomeBitflip {
		o.Warn(fmt.Sprintf("row %d has correctable bit errors", row), "copy its data elsewhere and erase the block")
	}

	if length <= 0 || length > len(data) {
		length = len(data)
	}

	o.Printf("row=%d block=%d col=%d outcome=%s\n", row, geo.Block(row), col, outcome)
	o.Printf("%s", hex.Dump(data[:length]))

	if withOOB {
		o.Println("oob:")
		o.Printf("%s", hex.Dump(oob))
	}

	return nil
}

// WriteCmd returns the write command.
func WriteCmd(env *deviceEnv) *Command {
	flags := flag.NewFlagSet("write", flag.ContinueOnError)
	col := flags.Int("col", 0, "Start `column` within the page")
	fill := flags.String("fill", "", "Fill data with `byte` (default: low byte of row)")
	oobFill := flags.String("oob-fill", "", "Fill spare area with `byte` (default: same as data)")
	stdin := flags.Bool("stdin", false, "Read page data from stdin instead of filling")

	return &Command{
		Flags: flags,
		Usage: "write <row> [flags]",
		Short: "Program a page",
		Long: `Program page <row>. Pages can be programmed once per erase.

Without --stdin the page is filled with a single byte, which defaults
to the low byte of the row number.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			row, err := rowArg(args)
			if err != nil {
				return err
			}

			dataByte, err := parseFill(*fill, byte(row))
			if err != nil {
				return err
			}

			oobByte, err := parseFill(*oobFill, dataByte)
			if err != nil {
				return err
			}

			return env.with(func(dev *nand.Device) error {
				geo := dev.Geometry()

				if *col < 0 || *col > geo.PageSize {
					return fmt.Errorf("%w: column %d outside page of %d bytes", errArgs, *col, geo.PageSize)
				}

				data := bytes.Repeat([]byte{dataByte}, geo.PageSize-*col)

				if *stdin {
					n, err := io.ReadFull(o.In(), data)
					if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
						return fmt.Errorf("read stdin: %w", err)
					}

					data = data[:n]
				}

				oob := bytes.Repeat([]byte{oobByte}, geo.SpareSize)

				outcome, err := dev.WritePage(row, *col, data, oob)
				if err != nil {
					return err
				}

				o.Printf("row=%d block=%d bytes=%d outcome=%s\n", row, geo.Block(row), len(data), outcome)

				return nil
			})
		},
	}
}

func parseFill(s string, def byte) (byte, error) {
	if s == "" {
		return def, nil
	}

	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: fill byte %q", errArgs, s)
	}

	return byte(v), nil
}

// EraseCmd returns the erase command.
func EraseCmd(env *deviceEnv) *Command {
	return &Command{
		Flags: flag.NewFlagSet("erase", flag.ContinueOnError),
		Usage: "erase <row>",
		Short: "Erase the block containing a row",
		Exec: func(_ context.Context, o *IO, args []string) error {
			row, err := rowArg(args)
			if err != nil {
				return err
			}

			return env.with(func(dev *nand.Device) error {
				outcome, err := dev.EraseBlock(row)
				if err != nil {
					return err
				}

				o.Printf("block=%d outcome=%s\n", dev.Geometry().Block(row), outcome)

				return nil
			})
		},
	}
}

// CheckCmd returns the check command.
func CheckCmd(env *deviceEnv) *Command {
	return &Command{
		Flags: flag.NewFlagSet("check", flag.ContinueOnError),
		Usage: "check <row>",
		Short: "Probe whether a block is bad",
		Long:  "Probe the block containing <row> with a read and print ok or bad.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			row, err := rowArg(args)
			if err != nil {
				return err
			}

			return env.with(func(dev *nand.Device) error {
				outcome, err := dev.CheckBlock(row)
				if err != nil {
					return err
				}

				o.Printf("block=%d outcome=%s\n", dev.Geometry().Block(row), outcome)

				return nil
			})
		},
	}
}

// MarkBadCmd returns the mark-bad command.
func MarkBadCmd(env *deviceEnv) *Command {
	return &Command{
		Flags: flag.NewFlagSet("mark-bad", flag.ContinueOnError),
		Usage: "mark-bad <row>",
		Short: "Mark the block containing a row as bad",
		Long: `Erase the block containing <row> and program its bad-block signature.
Marking a block that is already bad does nothing.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			row, err := rowArg(args)
			if err != nil {
				return err
			}

			return env.with(func(dev *nand.Device) error {
				err := dev.MarkBlockBad(row)
				if err != nil {
					return err
				}

				o.Printf("block=%d marked bad\n", dev.Geometry().Block(row))

				return nil
			})
		},
	}
}
