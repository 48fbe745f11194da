package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/calvinalkan/nandsim/pkg/nand"

	flag "github.com/spf13/pflag"
)

const defaultSelftestRounds = 5

var errSelftestFailed = errors.New("selftest failed")

// SelftestCmd returns the selftest command.
func SelftestCmd(env *deviceEnv) *Command {
	flags := flag.NewFlagSet("selftest", flag.ContinueOnError)
	rounds := flags.Int("rounds", defaultSelftestRounds, "Number of blocks to exercise")
	seed := flags.Uint64("seed", 0, "Block selection seed")

	return &Command{
		Flags: flags,
		Usage: "selftest [flags]",
		Short: "Erase, program and verify random blocks",
		Long: `Pick random blocks, erase them, then program every page with a
row-derived pattern and read it back. Blocks that fail to program or read
are marked bad. The first exercised block is read back again at the end,
after the rest of the run has pushed it out of the block cache.

Data mismatches fail the command; blocks marked bad produce a warning.`,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			if *rounds < 1 {
				return fmt.Errorf("%w: rounds must be positive", errArgs)
			}

			return env.with(func(dev *nand.Device) error {
				return execSelftest(ctx, o, dev, *rounds, *seed)
			})
		},
	}
}

type selftestStats struct {
	passed     int
	skipped    int
	markedBad  int
	mismatches int
}

func execSelftest(ctx context.Context, o *IO, dev *nand.Device, rounds int, seed uint64) error {
	geo := dev.Geometry()
	rng := rand.New(rand.NewPCG(seed, 0))

	o.Printf("block_size=%d page_size=%d spare_size=%d block_count=%d ecc_required=%d max_pe_cycle=%d\n",
		geo.BlockSize, geo.PageSize, geo.SpareSize, geo.BlockCount, geo.ECCRequired, geo.MaxPECycle)

	var (
		stats      selftestStats
		firstBlock = -1
	)

	for round := range rounds {
		if err := ctx.Err(); err != nil {
			return err
		}

		block := rng.IntN(geo.BlockCount)
		row := geo.FirstRow(block)

		o.Printf("round=%d block=%d row=%d\n", round, block, row)

		_, err := dev.EraseBlock(row)
		if err != nil {
			o.Printf("  erase failed: %v\n", err)

			stats.skipped++

			continue
		}

		if firstBlock == -1 {
			firstBlock = block
		}

		ok, err := verifyBlock(ctx, o, dev, block, true, &stats)
		if err != nil {
			return err
		}

		if ok {
			stats.passed++
		}
	}

	if firstBlock >= 0 {
		o.Printf("readback block=%d\n", firstBlock)

		_, err := verifyBlock(ctx, o, dev, firstBlock, false, &stats)
		if err != nil {
			return err
		}
	}

	o.Printf("passed=%d skipped=%d marked_bad=%d mismatches=%d\n",
		stats.passed, stats.skipped, stats.markedBad, stats.mismatches)

	if stats.markedBad > 0 {
		o.Warn(fmt.Sprintf("%d block(s) marked bad during selftest", stats.markedBad), "check 'nandsim info' for the updated bad-block list")
	}

	if stats.mismatches > 0 {
		return fmt.Errorf("%w: %d mismatching page(s)", errSelftestFailed, stats.mismatches)
	}

	return nil
}

// verifyBlock checks every page of block against its pattern, programming
// it first when program is set. It stops at the first failing page.
func verifyBlock(ctx context.Context, o *IO, dev *nand.Device, block int, program bool, stats *selftestStats) (bool, error) {
	geo := dev.Geometry()
	first := geo.FirstRow(block)

	readData := make([]byte, geo.PageSize)
	readOOB := make([]byte, geo.SpareSize)

	for row := first; row < first+geo.PagesPerBlock; row++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		data := bytes.Repeat([]byte{byte(row)}, geo.PageSize)
		oob := bytes.Repeat([]byte{byte(row)}, geo.SpareSize)

		if program {
			_, err := dev.WritePage(row, 0, data, oob)
			if err != nil {
				o.Printf("  program failed at row %d: %v\n", row, err)

				return false, markBad(dev, first, stats)
			}
		}

		clear(readData)
		clear(readOOB)

		_, err := dev.ReadPage(row, 0, readData, readOOB)
		if err != nil {
			o.Printf("  read failed at row %d: %v\n", row, err)

			return false, markBad(dev, first, stats)
		}

		if !bytes.Equal(data, readData) {
			o.Printf("  data mismatch at row %d\n", row)

			stats.mismatches++

			return false, nil
		}

		if !bytes.Equal(oob, readOOB) {
			o.Printf("  oob mismatch at row %d\n", row)

			stats.mismatches++

			return false, nil
		}
	}

	return true, nil
}

func markBad(dev *nand.Device, row int, stats *selftestStats) error {
	err := dev.MarkBlockBad(row)
	if err != nil {
		return fmt.Errorf("mark block %d bad: %w", dev.Geometry().Block(row), err)
	}

	stats.markedBad++

	return nil
}
