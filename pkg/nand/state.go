package nand

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/calvinalkan/nandsim/pkg/fs"
)

const (
	pageMapFile   = "page_map.bin"
	blockInfoFile = "block_info.bin"
	badBlockFile  = "bad_block.bin"

	blockInfoRecord = 8 // two little-endian uint32
	badBlockRecord  = 4 // one little-endian int32
)

// BlockInfo is the wear state of one block.
type BlockInfo struct {
	PECycles  uint32
	ReadCount uint32
}

// stateFiles reads and writes the flat binary dumps a device keeps between
// runs. Every write is atomic.
type stateFiles struct {
	fs  fs.FS
	dir string
}

// StateDir returns the directory holding persisted state of device name.
func StateDir(root, name string) string {
	return filepath.Join(root, InfoDir, name)
}

func (s stateFiles) path(name string) string {
	return filepath.Join(s.dir, name)
}

// read returns the file's contents, or nil if it does not exist.
func (s stateFiles) read(name string) ([]byte, error) {
	data, err := s.fs.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return data, nil
}

func (s stateFiles) write(name string, data []byte) error {
	err := s.fs.WriteFileAtomic(s.path(name), data, 0o644)
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	return nil
}

func encodeBlockInfo(blocks []BlockInfo) []byte {
	out := make([]byte, len(blocks)*blockInfoRecord)

	for i, b := range blocks {
		binary.LittleEndian.PutUint32(out[i*blockInfoRecord:], b.PECycles)
		binary.LittleEndian.PutUint32(out[i*blockInfoRecord+4:], b.ReadCount)
	}

	return out
}

// decodeBlockInfo fills blocks from raw and returns the number of records
// decoded. Trailing partial records are ignored.
func decodeBlockInfo(blocks []BlockInfo, raw []byte) int {
	n := min(len(blocks), len(raw)/blockInfoRecord)

	for i := range n {
		blocks[i] = BlockInfo{
			PECycles:  binary.LittleEndian.Uint32(raw[i*blockInfoRecord:]),
			ReadCount: binary.LittleEndian.Uint32(raw[i*blockInfoRecord+4:]),
		}
	}

	return n
}

func encodeBlockList(list []int) []byte {
	out := make([]byte, len(list)*badBlockRecord)

	for i, b := range list {
		binary.LittleEndian.PutUint32(out[i*badBlockRecord:], uint32(int32(b)))
	}

	return out
}

func decodeBlockList(raw []byte) []int {
	list := make([]int, len(raw)/badBlockRecord)

	for i := range list {
		list[i] = int(int32(binary.LittleEndian.Uint32(raw[i*badBlockRecord:])))
	}

	return list
}
