package nand

import "fmt"

// minPagesPerBlock is the smallest block that can carry the bad-block
// signature (first, second and last page set, third page clear).
const minPagesPerBlock = 4

// TemperatureBand selects the bit-error formula.
type TemperatureBand uint8

const (
	BandLow    TemperatureBand = iota // <= 20 °C
	BandNormal                        // 21..60 °C
	BandHigh                          // > 60 °C
)

// BandFor returns the band of an ambient temperature in °C.
func BandFor(celsius int) TemperatureBand {
	switch {
	case celsius > 60:
		return BandHigh
	case celsius > 20:
		return BandNormal
	default:
		return BandLow
	}
}

func (b TemperatureBand) String() string {
	switch b {
	case BandLow:
		return "low"
	case BandNormal:
		return "normal"
	case BandHigh:
		return "high"
	default:
		return fmt.Sprintf("band(%d)", uint8(b))
	}
}

// Geometry is the addressing view of an [Info].
//
// A row is a global page address: block*PagesPerBlock + page offset.
type Geometry struct {
	BlockSize     int // bytes of page data per block, spare excluded
	PageSize      int
	SpareSize     int
	BlockCount    int
	PagesPerBlock int
	ECCRequired   int
	MaxPECycle    int
	Band          TemperatureBand
}

// Geometry derives the addressing view of i. i should be valid.
func (i Info) Geometry() Geometry {
	blockSize := i.BlockSizeKB << 10

	ppb := 0
	if i.PageSize > 0 {
		ppb = blockSize / i.PageSize
	}

	return Geometry{
		BlockSize:     blockSize,
		PageSize:      i.PageSize,
		SpareSize:     i.SpareSize,
		BlockCount:    i.BlockCount,
		PagesPerBlock: ppb,
		ECCRequired:   i.ECCRequired,
		MaxPECycle:    i.MaxPECycle,
		Band:          BandFor(i.TemperatureC),
	}
}

// PageBytes is the size of one page record: data plus spare.
func (g Geometry) PageBytes() int { return g.PageSize + g.SpareSize }

// BlockBytes is the size of one block record: PagesPerBlock page records.
func (g Geometry) BlockBytes() int { return g.PagesPerBlock * g.PageBytes() }

// Rows is the number of pages on the device.
func (g Geometry) Rows() int { return g.BlockCount * g.PagesPerBlock }

// Block returns the block containing row.
func (g Geometry) Block(row int) int { return row / g.PagesPerBlock }

// PageOffset returns the page index of row within its block.
func (g Geometry) PageOffset(row int) int { return row % g.PagesPerBlock }

// FirstRow returns the row of page 0 of block.
func (g Geometry) FirstRow(block int) int { return block * g.PagesPerBlock }

func (g Geometry) checkRow(row int) error {
	if row < 0 || row >= g.Rows() {
		return fmt.Errorf("%w: row %d not in [0, %d)", ErrOutOfRange, row, g.Rows())
	}

	return nil
}
