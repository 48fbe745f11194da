package nand

import (
	"fmt"
	"strings"
)

// Model is one device variant's behaviour. Each operation is synchronous and
// atomic; a Model is not safe for concurrent use.
//
// Erase, ReadPage and ProgramPage clear the status register on entry and set
// [StatusFail] when they fail. Command leaves it alone so a status read sees
// the result of the previous operation.
type Model interface {
	Geometry() Geometry

	// Erase clears every page of the block containing row.
	Erase(row int) error

	// ReadPage copies page row (data and spare) into buf and returns the
	// number of injected bit errors. Never-programmed pages read as 0xFF.
	ReadPage(row int, buf []byte) (int, error)

	// ProgramPage writes data (data and spare) to page row. A nil data marks
	// the page programmed without storing anything.
	ProgramPage(row int, data []byte) error

	// Command executes an administrative command. buf may be nil.
	Command(code Code, addr int, buf []byte) error

	// Status returns the status register without clearing it.
	Status() Status

	// Flush writes all cached blocks and persisted state.
	Flush() error

	// Close flushes and releases the model.
	Close() error
}

// Variant selects a [Model] implementation at [Open].
type Variant uint8

const (
	VariantCommon Variant = iota
	VariantMicron
	VariantToshiba
	VariantSandisk
	VariantHynix
	VariantSamsung
)

var variantNames = [...]string{
	VariantCommon:  "common",
	VariantMicron:  "micron",
	VariantToshiba: "toshiba",
	VariantSandisk: "sandisk",
	VariantHynix:   "hynix",
	VariantSamsung: "samsung",
}

func (v Variant) String() string {
	if int(v) < len(variantNames) {
		return variantNames[v]
	}

	return fmt.Sprintf("variant(%d)", uint8(v))
}

// ParseVariant parses a variant name (case-insensitive). An empty string is
// [VariantCommon].
func ParseVariant(s string) (Variant, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return VariantCommon, nil
	}

	for i, name := range variantNames {
		if name == s {
			return Variant(i), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// newModel builds the model for cfg.variant. Only [VariantCommon] has one.
func newModel(cfg modelConfig) (Model, error) {
	switch cfg.variant {
	case VariantCommon:
		return newCommonModel(cfg)
	case VariantMicron, VariantToshiba, VariantSandisk, VariantHynix, VariantSamsung:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, cfg.variant)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariant, cfg.variant)
	}
}
