// Package nand simulates a NAND flash device on top of ordinary files.
//
// A [Device] owns a [Model] (the per-variant device behaviour) and a
// [Sequencer] that turns multi-cycle protocol commands into model operations:
//
//	dev, err := nand.Open(nand.Options{Root: dir, Compression: blockstore.CompressBrotli})
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//
//	_, err = dev.WritePage(row, 0, data, oob)
//	outcome, err := dev.ReadPage(row, 0, data, oob)
//
// Raw command batches go through [Device.Execute]:
//
//	res, err := dev.Execute(nand.Batch{
//	    Entries: []nand.Entry{{Row: -1, Code: nand.CmdRead1st}, {Row: row, Code: nand.CmdRead2nd}},
//	    Buffer:  buf,
//	})
//
// # On-disk layout
//
// Under Options.Root:
//
//	NandInfo/<name>.ini            device info (Key: value lines)
//	NandInfo/<name>.lock           held while the device is open
//	NandInfo/<name>/page_map.bin   one bit per page, 1 = programmed
//	NandInfo/<name>/block_info.bin per block: PE cycles, read count (LE uint32)
//	NandInfo/<name>/bad_block.bin  bad then weak block ids (LE int32)
//	<name>/<block>                 block data, see package blockstore
//
// # Device behaviour
//
// Pages are program-once: programming a page twice without erasing its block
// fails with [ErrOverProgram]. Bad blocks are chosen on first open and carry
// a signature in the page map (first, second and last page programmed, third
// erased), so a block stays bad even if the bad-block list is lost. Reads
// inject a bit-error count derived from the block's wear and read count; see
// [EstimateBitErrors].
package nand
