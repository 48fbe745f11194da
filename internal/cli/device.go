package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"

	"github.com/calvinalkan/nandsim/internal/config"
	"github.com/calvinalkan/nandsim/pkg/nand"
)

// deviceEnv opens the configured device for a single command. Inside the
// shell dev holds the session's device and commands share it.
type deviceEnv struct {
	cfg config.Config
	log *slog.Logger
	dev *nand.Device
}

// options translates the resolved config into [nand.Options].
func (e *deviceEnv) options() (nand.Options, error) {
	variant, err := e.cfg.ParsedVariant()
	if err != nil {
		return nand.Options{}, err
	}

	comp, err := e.cfg.ParsedCompression()
	if err != nil {
		return nand.Options{}, err
	}

	opts := nand.Options{
		Root:        e.cfg.RootAbs,
		Name:        e.cfg.Device,
		Variant:     variant,
		Handles:     e.cfg.CacheHandles,
		Compression: comp,
		CommandLog:  e.cfg.CommandLogPath(),
		Logger:      e.log,
	}

	// Seed 0 keeps the clock-seeded default.
	if e.cfg.Seed != 0 {
		opts.Rand = rand.New(rand.NewPCG(e.cfg.Seed, e.cfg.Seed))
	}

	return opts, nil
}

// with opens the device, runs fn and closes the device. The close error is
// reported alongside fn's error.
func (e *deviceEnv) with(fn func(dev *nand.Device) error) (err error) {
	if e.dev != nil {
		return fn(e.dev)
	}

	opts, err := e.options()
	if err != nil {
		return err
	}

	dev, err := nand.Open(opts)
	if err != nil {
		return fmt.Errorf("open device %s: %w", e.cfg.Device, err)
	}

	defer func() {
		closeErr := dev.Close()
		if closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close device: %w", closeErr))
		}
	}()

	return fn(dev)
}

// parseRow parses a row argument, accepting decimal or 0x-prefixed hex.
func parseRow(s string) (int, error) {
	row, err := strconv.ParseInt(s, 0, 32)
	if err != nil || row < 0 {
		return 0, fmt.Errorf("%w: row %q", errArgs, s)
	}

	return int(row), nil
}

// rowArg returns the single row positional argument.
func rowArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected exactly one <row>", errArgs)
	}

	return parseRow(args[0])
}
