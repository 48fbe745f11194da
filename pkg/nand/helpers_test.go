package nand

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/calvinalkan/nandsim/pkg/blockstore"
	"github.com/stretchr/testify/require"
)

// smallInfo is a 10-block device with 4 pages of 256+16 bytes per block and
// no generated bad blocks.
func smallInfo() Info {
	return Info{
		Name:         "TEST_NAND",
		BlockSizeKB:  1,
		PageSize:     256,
		SpareSize:    16,
		BlockCount:   10,
		ECCRequired:  60,
		BadBlocks:    0,
		WeakBlocks:   0,
		MaxPECycle:   3000,
		WeakPECycle:  2000,
		TemperatureC: 25,
	}
}

func openDevice(t *testing.T, root string, info Info, seed uint64) *Device {
	t.Helper()

	dev, err := Open(Options{
		Root:        root,
		Name:        info.Name,
		Defaults:    &info,
		Handles:     2,
		Compression: blockstore.CompressBrotli,
		Rand:        rand.New(rand.NewPCG(seed, seed)),
	})
	require.NoError(t, err)

	return dev
}

func newTestDevice(t *testing.T, info Info) *Device {
	t.Helper()

	dev := openDevice(t, t.TempDir(), info, 1)

	t.Cleanup(func() {
		if !dev.closed {
			_ = dev.Close()
		}
	})

	return dev
}

func commonModel(t *testing.T, dev *Device) *CommonModel {
	t.Helper()

	m, ok := dev.Model().(*CommonModel)
	require.True(t, ok, "model is %T", dev.Model())

	return m
}

func pattern(n int, v byte) []byte {
	return bytes.Repeat([]byte{v}, n)
}
