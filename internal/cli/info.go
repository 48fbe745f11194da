package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/calvinalkan/nandsim/pkg/nand"

	flag "github.com/spf13/pflag"
)

// InfoCmd returns the info command.
func InfoCmd(env *deviceEnv) *Command {
	flags := flag.NewFlagSet("info", flag.ContinueOnError)
	blocks := flags.Bool("blocks", false, "List wear and read counters of every block")

	return &Command{
		Flags: flags,
		Usage: "info [--blocks]",
		Short: "Show device geometry and bad blocks",
		Long: `Show the device info file, derived geometry, and bad and weak blocks.
Opening a device for the first time creates its info file and state.`,
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return env.with(func(dev *nand.Device) error {
				return execInfo(o, dev, *blocks)
			})
		},
	}
}

func execInfo(o *IO, dev *nand.Device, listBlocks bool) error {
	info := dev.Info()
	geo := dev.Geometry()

	o.Println("name=" + info.Name)
	o.Println("session=" + dev.Session())
	o.Printf("block_size=%d\n", geo.BlockSize)
	o.Printf("page_size=%d\n", geo.PageSize)
	o.Printf("spare_size=%d\n", geo.SpareSize)
	o.Printf("pages_per_block=%d\n", geo.PagesPerBlock)
	o.Printf("block_count=%d\n", geo.BlockCount)
	o.Printf("ecc_required=%d\n", geo.ECCRequired)
	o.Printf("max_pe_cycle=%d\n", geo.MaxPECycle)
	o.Printf("temperature=%d (%s)\n", info.TemperatureC, geo.Band)

	common, ok := dev.Model().(*nand.CommonModel)
	if !ok {
		return fmt.Errorf("%w: block diagnostics", nand.ErrUnsupported)
	}

	o.Println("bad_blocks=" + joinInts(common.BadBlocks()))
	o.Println("weak_blocks=" + joinInts(common.WeakBlocks()))

	if !listBlocks {
		return nil
	}

	o.Println()
	o.Println("# block pe_cycles reads state")

	for b := range geo.BlockCount {
		bi := common.BlockInfo(b)

		state := "ok"

		switch {
		case common.IsWeak(b):
			state = "weak"
		case common.IsBad(b):
			state = "bad"
		}

		o.Printf("%d %d %d %s\n", b, bi.PECycles, bi.ReadCount, state)
	}

	return nil
}

// StatusCmd returns the status command.
func StatusCmd(env *deviceEnv) *Command {
	return &Command{
		Flags: flag.NewFlagSet("status", flag.ContinueOnError),
		Usage: "status",
		Short: "Read the status register and device ID",
		Long: `Read and clear the status register, and read the device ID.
The status register does not survive reopening the device.`,
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return env.with(func(dev *nand.Device) error {
				st, err := dev.ReadStatus()
				if err != nil {
					return err
				}

				id, err := dev.ReadID()
				if err != nil {
					return err
				}

				o.Printf("status=0x%02x (%s)\n", uint8(st), st)
				o.Println("id=" + hex.EncodeToString(id))

				return nil
			})
		},
	}
}

func joinInts(vals []int) string {
	if len(vals) == 0 {
		return "-"
	}

	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}

	return strings.Join(parts, ",")
}
