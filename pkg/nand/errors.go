package nand

import "errors"

// Sentinel errors returned by device operations.
//
// Callers should use [errors.Is] to check error types:
//
//	outcome, err := dev.WritePage(row, 0, data, oob)
//	if errors.Is(err, nand.ErrBadBlock) {
//	    dev.MarkBlockBad(row)
//	}
var (
	// ErrInvalidSequence indicates a second command cycle arrived without
	// exactly one matching first cycle, or a command could not be parsed.
	ErrInvalidSequence = errors.New("nand: invalid command sequence")

	// ErrBadBlock indicates the addressed block is bad.
	ErrBadBlock = errors.New("nand: bad block")

	// ErrOverProgram indicates a page was programmed twice without an
	// intervening erase.
	//
	// Recovery: erase the block.
	ErrOverProgram = errors.New("nand: page already programmed")

	// ErrWearExceeded indicates the block is past its program/erase limit.
	// The page is still marked programmed.
	ErrWearExceeded = errors.New("nand: wear limit exceeded")

	// ErrUncorrectable indicates a read produced more bit errors than the
	// device's ECC can correct.
	ErrUncorrectable = errors.New("nand: uncorrectable bit errors")

	// ErrUnsupported indicates the requested device variant has no model.
	ErrUnsupported = errors.New("nand: unsupported variant")

	// ErrUnknownVariant indicates a variant name could not be parsed.
	ErrUnknownVariant = errors.New("nand: unknown variant")

	// ErrOutOfRange indicates a row, block or column outside the device.
	//
	// This is a programming error.
	ErrOutOfRange = errors.New("nand: address out of range")

	// ErrShortBuffer indicates a data buffer smaller than the transfer.
	//
	// This is a programming error.
	ErrShortBuffer = errors.New("nand: buffer too short")

	// ErrClosed indicates the [Device] has already been closed.
	ErrClosed = errors.New("nand: closed")

	// ErrInfoInvalid indicates a device-info file that cannot be parsed or
	// describes an impossible geometry.
	ErrInfoInvalid = errors.New("nand: invalid device info")
)
