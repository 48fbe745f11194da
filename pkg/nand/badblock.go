package nand

import (
	"math/rand/v2"
	"slices"

	"github.com/calvinalkan/nandsim/pkg/bitmap"
)

// allocateBadBlocks picks bad+weak distinct blocks, never block 0, and stamps
// the bad-block signature of each into pageMap. Weak blocks start at weakPE
// program/erase cycles. The first bad entries of the result are bad, the rest
// weak.
func allocateBadBlocks(rng *rand.Rand, geo Geometry, bad, weak int,
	pageMap *bitmap.Bitmap, blocks []BlockInfo, weakPE int,
) []int {
	list := make([]int, 0, bad+weak)

	for len(list) < bad+weak {
		block := rng.IntN(geo.BlockCount-1) + 1
		if slices.Contains(list, block) {
			continue
		}

		stampSignature(pageMap, geo, block)

		if len(list) >= bad {
			blocks[block] = BlockInfo{PECycles: uint32(weakPE)}
		}

		list = append(list, block)
	}

	return list
}

// stampSignature sets the first, second and last page of block.
func stampSignature(pageMap *bitmap.Bitmap, geo Geometry, block int) {
	row := uint(geo.FirstRow(block))

	pageMap.Set(row)
	pageMap.Set(row + 1)
	pageMap.Set(row + uint(geo.PagesPerBlock) - 1)
}

// clearSignature undoes [stampSignature] for block if its pages still carry
// the signature. Blocks outside the device are ignored.
func clearSignature(pageMap *bitmap.Bitmap, geo Geometry, block int) {
	if block < 0 || block >= geo.BlockCount || !hasSignature(pageMap, geo, block) {
		return
	}

	row := uint(geo.FirstRow(block))

	pageMap.Clear(row)
	pageMap.Clear(row + 1)
	pageMap.Clear(row + uint(geo.PagesPerBlock) - 1)
}

// hasSignature reports whether block's pages match the bad-block signature:
// first and second set, third clear, last set.
func hasSignature(pageMap *bitmap.Bitmap, geo Geometry, block int) bool {
	row := uint(geo.FirstRow(block))

	return pageMap.Get(row) == 1 &&
		pageMap.Get(row+1) == 1 &&
		pageMap.Get(row+2) == 0 &&
		pageMap.Get(row+uint(geo.PagesPerBlock)-1) == 1
}
