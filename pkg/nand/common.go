package nand

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/calvinalkan/nandsim/pkg/bitmap"
	"github.com/calvinalkan/nandsim/pkg/blockstore"
	"github.com/calvinalkan/nandsim/pkg/fs"
)

// erasedByte is the value of every byte of an erased page.
const erasedByte = 0xFF

const (
	idByte      = 0xCC // every byte of the ID read
	idLength    = 6
	unknownByte = 0xEE // written for unrecognised admin commands
)

type modelConfig struct {
	variant     Variant
	fs          fs.FS
	info        Info
	stateDir    string
	blockDir    string
	handles     int
	compression blockstore.Compression
	rng         *rand.Rand
	log         *slog.Logger
}

// CommonModel is the generic NAND device: program-once pages, bad and weak
// blocks, wear tracking and temperature-dependent bit errors. Blocks are
// stored one file per block through a [blockstore.Store].
type CommonModel struct {
	info    Info
	geo     Geometry
	pageMap *bitmap.Bitmap
	blocks  []BlockInfo
	bad     []int // first info.BadBlocks entries bad, the rest weak
	status  Status
	store   *blockstore.Store
	state   stateFiles
	log     *slog.Logger
}

var _ Model = (*CommonModel)(nil)

func newCommonModel(cfg modelConfig) (*CommonModel, error) {
	geo := cfg.info.Geometry()

	err := cfg.fs.MkdirAll(cfg.stateDir, 0o777)
	if err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	store, err := blockstore.New(blockstore.Options{
		FS:          cfg.fs,
		Dir:         cfg.blockDir,
		PayloadSize: geo.BlockBytes(),
		Handles:     cfg.handles,
		Compression: cfg.compression,
		Logger:      cfg.log,
	})
	if err != nil {
		return nil, err
	}

	m := &CommonModel{
		info:    cfg.info,
		geo:     geo,
		pageMap: bitmap.New(uint(geo.Rows()), 0),
		blocks:  make([]BlockInfo, geo.BlockCount),
		store:   store,
		state:   stateFiles{fs: cfg.fs, dir: cfg.stateDir},
		log:     cfg.log,
	}

	err = m.loadState(cfg.rng)
	if err != nil {
		_ = store.Close()

		return nil, err
	}

	return m, nil
}

// loadState restores the page map, wear table and bad-block list. A missing
// or mismatched bad-block list is regenerated, after clearing the signatures
// of the old entries, and everything is persisted at once. Wear counters are
// kept.
func (m *CommonModel) loadState(rng *rand.Rand) error {
	raw, err := m.state.read(pageMapFile)
	if err != nil {
		return err
	}

	if raw != nil {
		n := m.pageMap.Load(raw)
		if n != len(m.pageMap.Bytes()) {
			m.log.Warn("page map size mismatch", "want", len(m.pageMap.Bytes()), "got", len(raw))
		}
	}

	raw, err = m.state.read(blockInfoFile)
	if err != nil {
		return err
	}

	if raw != nil {
		decodeBlockInfo(m.blocks, raw)
	}

	raw, err = m.state.read(badBlockFile)
	if err != nil {
		return err
	}

	want := m.info.BadBlocks + m.info.WeakBlocks

	if raw != nil {
		list := decodeBlockList(raw)
		if len(list) == want {
			m.bad = list

			return nil
		}

		// Signatures of the stale list go with it. Blocks marked bad at
		// runtime are not in the list and keep theirs.
		for _, block := range list {
			clearSignature(m.pageMap, m.geo, block)
		}

		m.log.Warn("bad block list does not match device info, regenerating",
			"want", want, "got", len(list), "cleared", list)
	}

	m.bad = allocateBadBlocks(rng, m.geo, m.info.BadBlocks, m.info.WeakBlocks,
		m.pageMap, m.blocks, m.info.WeakPECycle)

	m.log.Info("generated bad blocks",
		"bad", m.BadBlocks(), "weak", m.WeakBlocks())

	return m.saveState()
}

func (m *CommonModel) saveState() error {
	return errors.Join(
		m.state.write(pageMapFile, m.pageMap.Bytes()),
		m.state.write(blockInfoFile, encodeBlockInfo(m.blocks)),
		m.state.write(badBlockFile, encodeBlockList(m.bad)),
	)
}

// Geometry implements [Model].
func (m *CommonModel) Geometry() Geometry { return m.geo }

// Info returns the device info the model was built from.
func (m *CommonModel) Info() Info { return m.info }

// Status implements [Model].
func (m *CommonModel) Status() Status { return m.status }

// Store exposes the block store for diagnostics.
func (m *CommonModel) Store() *blockstore.Store { return m.store }

// IsBad reports whether block is bad, either by the bad-block list or by the
// bad-block signature in the page map.
func (m *CommonModel) IsBad(block int) bool {
	if hasSignature(m.pageMap, m.geo, block) {
		return true
	}

	return slices.Contains(m.bad[:min(m.info.BadBlocks, len(m.bad))], block)
}

// IsWeak reports whether block is in the weak part of the bad-block list.
func (m *CommonModel) IsWeak(block int) bool {
	if len(m.bad) <= m.info.BadBlocks {
		return false
	}

	return slices.Contains(m.bad[m.info.BadBlocks:], block)
}

// BadBlocks returns the listed bad blocks in allocation order.
func (m *CommonModel) BadBlocks() []int {
	return slices.Clone(m.bad[:min(m.info.BadBlocks, len(m.bad))])
}

// WeakBlocks returns the listed weak blocks in allocation order.
func (m *CommonModel) WeakBlocks() []int {
	if len(m.bad) <= m.info.BadBlocks {
		return nil
	}

	return slices.Clone(m.bad[m.info.BadBlocks:])
}

// BlockInfo returns the wear state of block. Out-of-range blocks report zero.
func (m *CommonModel) BlockInfo(block int) BlockInfo {
	if block < 0 || block >= len(m.blocks) {
		return BlockInfo{}
	}

	return m.blocks[block]
}

// Programmed reports whether page row is marked programmed.
func (m *CommonModel) Programmed(row int) bool {
	return m.pageMap.Get(uint(row)) == 1
}

func (m *CommonModel) fail(err error) error {
	m.status |= StatusFail

	return err
}

// Erase implements [Model].
func (m *CommonModel) Erase(row int) error {
	m.status = 0

	err := m.geo.checkRow(row)
	if err != nil {
		return m.fail(err)
	}

	block := m.geo.Block(row)
	if m.IsBad(block) {
		m.log.Warn("erase of bad block", "block", block)

		return m.fail(fmt.Errorf("%w: erase block %d", ErrBadBlock, block))
	}

	first := uint(m.geo.FirstRow(block))
	for i := range uint(m.geo.PagesPerBlock) {
		m.pageMap.Clear(first + i)
	}

	m.blocks[block].PECycles++

	return nil
}

// ReadPage implements [Model].
func (m *CommonModel) ReadPage(row int, buf []byte) (int, error) {
	m.status = 0

	err := m.geo.checkRow(row)
	if err != nil {
		return 0, m.fail(err)
	}

	size := m.geo.PageBytes()
	if len(buf) < size {
		return 0, m.fail(fmt.Errorf("%w: read needs %d bytes, have %d", ErrShortBuffer, size, len(buf)))
	}

	block := m.geo.Block(row)
	if m.IsBad(block) {
		m.log.Warn("read of bad block", "block", block, "row", row)

		return 0, m.fail(fmt.Errorf("%w: read row %d (block %d)", ErrBadBlock, row, block))
	}

	page := buf[:size]

	if !m.Programmed(row) {
		fillErased(page)

		return 0, nil
	}

	payload, err := m.store.Read(uint32(block))

	switch {
	case errors.Is(err, blockstore.ErrNotFound):
		// Marked programmed without data.
		fillErased(page)
	case err != nil:
		return 0, m.fail(err)
	default:
		off := m.geo.PageOffset(row) * size
		copy(page, payload[off:off+size])
	}

	m.blocks[block].ReadCount++

	info := m.blocks[block]

	bits := EstimateBitErrors(info.PECycles, info.ReadCount, m.geo.Band)
	if bits > 0 {
		m.log.Debug("injected bit errors", "row", row, "bits", bits)
	}

	return bits, nil
}

// ProgramPage implements [Model].
//
// The page is marked programmed before the wear check, so a page that fails
// with [ErrWearExceeded] needs an erase before it can be retried.
func (m *CommonModel) ProgramPage(row int, data []byte) error {
	m.status = 0

	err := m.geo.checkRow(row)
	if err != nil {
		return m.fail(err)
	}

	size := m.geo.PageBytes()
	if data != nil && len(data) < size {
		return m.fail(fmt.Errorf("%w: program needs %d bytes, have %d", ErrShortBuffer, size, len(data)))
	}

	if m.Programmed(row) {
		m.log.Warn("re-program of page", "row", row)

		return m.fail(fmt.Errorf("%w: row %d", ErrOverProgram, row))
	}

	block := m.geo.Block(row)
	if m.IsBad(block) {
		m.log.Warn("program of bad block", "block", block, "row", row)

		return m.fail(fmt.Errorf("%w: program row %d (block %d)", ErrBadBlock, row, block))
	}

	m.pageMap.Set(uint(row))

	if data == nil {
		m.log.Debug("program without data", "row", row)

		return m.eraseResidentPage(block, row)
	}

	if pe := m.blocks[block].PECycles; int64(pe) > int64(m.geo.MaxPECycle) {
		m.log.Warn("wear limit exceeded", "block", block, "pe", pe, "max", m.geo.MaxPECycle)

		return m.fail(fmt.Errorf("%w: block %d at %d cycles", ErrWearExceeded, block, pe))
	}

	payload, err := m.store.WriteCache(uint32(block))
	if err != nil {
		return m.fail(err)
	}

	off := m.geo.PageOffset(row) * size
	copy(payload[off:off+size], data[:size])

	return nil
}

// eraseResidentPage resets the bytes of row to the erased pattern when its
// block already has data, so a page programmed without data never exposes
// stale or zeroed bytes. Blocks without a file stay unstored.
func (m *CommonModel) eraseResidentPage(block, row int) error {
	_, err := m.store.Read(uint32(block))
	if errors.Is(err, blockstore.ErrNotFound) {
		return nil
	}

	if err != nil {
		return m.fail(err)
	}

	payload, err := m.store.WriteCache(uint32(block))
	if err != nil {
		return m.fail(err)
	}

	size := m.geo.PageBytes()
	off := m.geo.PageOffset(row) * size
	fillErased(payload[off : off+size])

	return nil
}

// Command implements [Model]. Feature get/set are accepted and ignored. The
// reset family flushes the block store.
func (m *CommonModel) Command(code Code, _ int, buf []byte) error {
	switch code {
	case CmdReadStatus, CmdReadStatusEx:
		if len(buf) > 0 {
			buf[0] = byte(m.status)
		}

		m.status = 0
	case CmdReadID:
		n := min(len(buf), idLength)
		for i := range n {
			buf[i] = idByte
		}
	case CmdGetFeature, CmdLUNGetFeature, CmdSetFeature, CmdLUNSetFeature:
	case CmdResetLUN, CmdSyncReset, CmdReset:
		return m.store.Flush()
	default:
		if len(buf) > 0 {
			buf[0] = unknownByte
		}
	}

	return nil
}

// Flush implements [Model].
func (m *CommonModel) Flush() error {
	return errors.Join(m.store.Flush(), m.saveState())
}

// Close implements [Model].
func (m *CommonModel) Close() error {
	return errors.Join(m.saveState(), m.store.Close())
}

func fillErased(b []byte) {
	for i := range b {
		b[i] = erasedByte
	}
}
