package nand

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/calvinalkan/nandsim/pkg/fs"
)

// DefaultName is the device name used when none is given.
const DefaultName = "COMMON_NAND"

// InfoDir is the directory (under the device root) holding device-info files
// and persisted device state.
const InfoDir = "NandInfo"

// Info describes a device as read from its info file:
//
//	Name: COMMON_NAND
//	Block_Size(KB): 4096
//	Page_Size(B): 16384
//	...
type Info struct {
	Name         string
	BlockSizeKB  int
	PageSize     int
	SpareSize    int
	BlockCount   int
	ECCRequired  int
	BadBlocks    int
	WeakBlocks   int
	MaxPECycle   int
	WeakPECycle  int
	TemperatureC int
}

const keyName = "Name"

// infoKeys lists the numeric keys in file order.
var infoKeys = []string{
	"Block_Size(KB)",
	"Page_Size(B)",
	"Spare_Size(B)",
	"Block_Num",
	"ECC_Required",
	"Bad_Block_Num",
	"Weak_Block_NUM",
	"Max_PE_Cycle",
	"Weak_PE_Cycle",
	"Temperature(C)",
}

// DefaultInfo returns the geometry written when a device has no info file.
func DefaultInfo() Info {
	return Info{
		Name:         DefaultName,
		BlockSizeKB:  4096,
		PageSize:     16384,
		SpareSize:    2048,
		BlockCount:   2048,
		ECCRequired:  60,
		BadBlocks:    40,
		WeakBlocks:   10,
		MaxPECycle:   3000,
		WeakPECycle:  2000,
		TemperatureC: 25,
	}
}

func (i *Info) field(key string) *int {
	switch key {
	case "Block_Size(KB)":
		return &i.BlockSizeKB
	case "Page_Size(B)":
		return &i.PageSize
	case "Spare_Size(B)":
		return &i.SpareSize
	case "Block_Num":
		return &i.BlockCount
	case "ECC_Required":
		return &i.ECCRequired
	case "Bad_Block_Num":
		return &i.BadBlocks
	case "Weak_Block_NUM":
		return &i.WeakBlocks
	case "Max_PE_Cycle":
		return &i.MaxPECycle
	case "Weak_PE_Cycle":
		return &i.WeakPECycle
	case "Temperature(C)":
		return &i.TemperatureC
	default:
		return nil
	}
}

// ParseInfo reads `Key: value` lines. Keys absent from the input keep their
// [DefaultInfo] value. Unknown keys are vendor extensions and are ignored.
// Blank lines and lines starting with '#' are skipped.
func ParseInfo(r io.Reader) (Info, error) {
	info := DefaultInfo()
	sc := bufio.NewScanner(r)
	lineNo := 0

	for sc.Scan() {
		lineNo++

		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return Info{}, fmt.Errorf("%w: line %d: missing ':'", ErrInfoInvalid, lineNo)
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if key == keyName {
			info.Name = value

			continue
		}

		dst := info.field(key)
		if dst == nil {
			continue
		}

		n, err := strconv.Atoi(value)
		if err != nil {
			return Info{}, fmt.Errorf("%w: line %d: %s: %q is not an integer", ErrInfoInvalid, lineNo, key, value)
		}

		*dst = n
	}

	err := sc.Err()
	if err != nil {
		return Info{}, fmt.Errorf("read info: %w", err)
	}

	return info, nil
}

// WriteTo writes i in the info file format.
func (i Info) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s\n", keyName, i.Name)

	for _, key := range infoKeys {
		fmt.Fprintf(&b, "%s: %d\n", key, *i.field(key))
	}

	n, err := io.WriteString(w, b.String())

	return int64(n), err
}

// Validate checks that i describes a usable device.
func (i Info) Validate() error {
	var errs []error

	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(i.PageSize > 0, "page size %d must be > 0", i.PageSize)
	check(i.SpareSize >= 0, "spare size %d must be >= 0", i.SpareSize)
	check(i.BlockSizeKB > 0, "block size %d KB must be > 0", i.BlockSizeKB)
	check(i.BlockCount >= 2, "block count %d must be >= 2", i.BlockCount)
	check(i.ECCRequired >= 0, "ecc required %d must be >= 0", i.ECCRequired)
	check(i.BadBlocks >= 0 && i.WeakBlocks >= 0, "bad/weak block counts must be >= 0")
	check(i.MaxPECycle > 0, "max pe cycle %d must be > 0", i.MaxPECycle)
	check(i.WeakPECycle >= 0, "weak pe cycle %d must be >= 0", i.WeakPECycle)

	if i.PageSize > 0 && i.BlockSizeKB > 0 {
		blockBytes := i.BlockSizeKB << 10
		check(blockBytes%i.PageSize == 0, "block size %d is not a multiple of page size %d", blockBytes, i.PageSize)
		check(blockBytes/i.PageSize >= minPagesPerBlock, "need at least %d pages per block, have %d",
			minPagesPerBlock, blockBytes/i.PageSize)
	}

	if i.BlockCount >= 2 {
		check(i.BadBlocks+i.WeakBlocks <= i.BlockCount-1,
			"%d bad + %d weak blocks do not fit in %d blocks (block 0 is never bad)",
			i.BadBlocks, i.WeakBlocks, i.BlockCount)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInfoInvalid, errors.Join(errs...))
	}

	return nil
}

// InfoPath returns the info file of device name under root.
func InfoPath(root, name string) string {
	return filepath.Join(root, InfoDir, name+".ini")
}

// LoadOrCreateInfo reads the info file at path. If it does not exist, defaults
// are written there and returned; created reports that case.
func LoadOrCreateInfo(fsys fs.FS, path string, defaults Info) (info Info, created bool, err error) {
	data, err := fsys.ReadFile(path)
	if err == nil {
		info, err = ParseInfo(bytes.NewReader(data))
		if err != nil {
			return Info{}, false, fmt.Errorf("%s: %w", path, err)
		}

		return info, false, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return Info{}, false, fmt.Errorf("read info: %w", err)
	}

	err = fsys.MkdirAll(filepath.Dir(path), 0o777)
	if err != nil {
		return Info{}, false, fmt.Errorf("create info dir: %w", err)
	}

	var buf bytes.Buffer

	_, _ = defaults.WriteTo(&buf)

	err = fsys.WriteFileAtomic(path, buf.Bytes(), 0o644)
	if err != nil {
		return Info{}, false, fmt.Errorf("write info: %w", err)
	}

	return defaults, true, nil
}
