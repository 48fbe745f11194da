package cli

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/calvinalkan/nandsim/pkg/nand"

	flag "github.com/spf13/pflag"
)

// ExecCmd returns the exec command.
func ExecCmd(env *deviceEnv) *Command {
	flags := flag.NewFlagSet("exec", flag.ContinueOnError)
	size := flags.Int("buffer", 0, "Data buffer size in `bytes` (default: one page per addressed entry)")
	fill := flags.String("fill", "0xff", "Initial buffer `byte`")
	dump := flags.Int("dump", 0, "Hex-dump the first `n` buffer bytes after execution")

	return &Command{
		Flags: flags,
		Usage: "exec <[row:]code>...",
		Short: "Run a raw command batch",
		Long: `Run a batch of protocol command cycles through the sequencer.

Each entry is a command code, optionally prefixed by a row address.
Codes are names (read, read-2nd, erase, ...) or hex values (0x60).
Entries without a row address carry no address.

Example: nandsim exec erase 8:erase-2nd read 8:read-2nd`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			entries, err := parseEntries(args)
			if err != nil {
				return err
			}

			fillByte, err := parseFill(*fill, 0xFF)
			if err != nil {
				return err
			}

			return env.with(func(dev *nand.Device) error {
				return execBatch(o, dev, entries, *size, fillByte, *dump)
			})
		},
	}
}

func execBatch(o *IO, dev *nand.Device, entries []nand.Entry, size int, fill byte, dump int) error {
	if size <= 0 {
		addressed := 0

		for _, e := range entries {
			if e.Row >= 0 {
				addressed++
			}
		}

		size = max(addressed, 1) * dev.Geometry().PageBytes()
	}

	buf := bytes.Repeat([]byte{fill}, size)

	res, err := dev.Execute(nand.Batch{Entries: entries, Buffer: buf})

	o.Printf("reads=%d programs=%d erases=%d admin=%d skipped=%d max_bit_errors=%d\n",
		res.Reads, res.Programs, res.Erases, res.Admin, res.Skipped, res.MaxBitErrors)

	if err != nil {
		return err
	}

	if dump > 0 {
		o.Printf("%s", hex.Dump(buf[:min(dump, len(buf))]))
	}

	return nil
}

// parseEntries parses "[row:]code" arguments into batch entries.
func parseEntries(args []string) ([]nand.Entry, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: expected at least one <[row:]code>", errArgs)
	}

	entries := make([]nand.Entry, 0, len(args))

	for _, arg := range args {
		entry := nand.Entry{Row: -1}

		codeStr := arg

		if rowStr, rest, ok := strings.Cut(arg, ":"); ok {
			row, err := parseRow(rowStr)
			if err != nil {
				return nil, err
			}

			entry.Row = row
			codeStr = rest
		}

		code, err := nand.ParseCode(codeStr)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q: %w", errArgs, arg, err)
		}

		entry.Code = code
		entries = append(entries, entry)
	}

	return entries, nil
}
