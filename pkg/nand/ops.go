package nand

import (
	"errors"
	"fmt"
)

// Outcome classifies a high-level page operation.
type Outcome int8

const (
	OutcomeOK      Outcome = iota // no bit errors
	OutcomeBitflip                // correctable bit errors
	OutcomeError                  // uncorrectable bit errors
	OutcomeBad                    // bad block or failed operation
)

// Code returns the classic numeric result: 0, -1, -2 or -3.
func (o Outcome) Code() int { return -int(o) }

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeBitflip:
		return "bitflip"
	case OutcomeError:
		return "error"
	case OutcomeBad:
		return "bad"
	default:
		return fmt.Sprintf("outcome(%d)", int8(o))
	}
}

func (d *Device) pageBuffer() []byte {
	return make([]byte, d.model.Geometry().PageBytes())
}

func (d *Device) checkColumn(col int) error {
	if col < 0 || col > d.model.Geometry().PageSize {
		return fmt.Errorf("%w: column %d", ErrOutOfRange, col)
	}

	return nil
}

// ReadPage reads page row starting at column col into data, and the spare
// area into oob. Data is copied only for [OutcomeOK] and [OutcomeBitflip].
// [OutcomeError] comes with [ErrUncorrectable]; any failed read is
// [OutcomeBad].
func (d *Device) ReadPage(row, col int, data, oob []byte) (Outcome, error) {
	err := d.checkColumn(col)
	if err != nil {
		return OutcomeBad, err
	}

	buf := d.pageBuffer()

	res, err := d.Execute(Batch{
		Entries: []Entry{{Row: -1, Code: CmdRead1st}, {Row: row, Code: CmdRead2nd}},
		Buffer:  buf,
	})
	if err != nil {
		return OutcomeBad, err
	}

	geo := d.model.Geometry()

	if res.MaxBitErrors > geo.ECCRequired {
		d.log.Warn("uncorrectable read", "row", row, "bits", res.MaxBitErrors, "ecc", geo.ECCRequired)

		return OutcomeError, fmt.Errorf("%w: %d bits at row %d (ecc %d)",
			ErrUncorrectable, res.MaxBitErrors, row, geo.ECCRequired)
	}

	copy(data, buf[col:geo.PageSize])
	copy(oob, buf[geo.PageSize:])

	if res.MaxBitErrors > 0 {
		return OutcomeBitflip, nil
	}

	return OutcomeOK, nil
}

// WritePage programs page row with data placed at column col and oob in the
// spare area. Bytes not covered by data or oob keep the erased pattern.
func (d *Device) WritePage(row, col int, data, oob []byte) (Outcome, error) {
	err := d.checkColumn(col)
	if err != nil {
		return OutcomeBad, err
	}

	geo := d.model.Geometry()
	buf := d.pageBuffer()

	fillErased(buf)
	copy(buf[col:geo.PageSize], data)
	copy(buf[geo.PageSize:], oob)

	_, err = d.Execute(Batch{
		Entries: []Entry{{Row: -1, Code: CmdProgram1st}, {Row: row, Code: CmdProgram2nd}},
		Buffer:  buf,
	})
	if err != nil {
		return OutcomeBad, err
	}

	return OutcomeOK, nil
}

// EraseBlock erases the block containing row.
func (d *Device) EraseBlock(row int) (Outcome, error) {
	_, err := d.Execute(Batch{
		Entries: []Entry{{Row: -1, Code: CmdErase1st}, {Row: row, Code: CmdErase2nd}},
	})
	if err != nil {
		return OutcomeBad, err
	}

	return OutcomeOK, nil
}

// CheckBlock probes the block containing row with a read. A bad block is
// reported as [OutcomeBad] with a nil error; other failures return the error.
func (d *Device) CheckBlock(row int) (Outcome, error) {
	_, err := d.Execute(Batch{
		Entries: []Entry{{Row: -1, Code: CmdRead1st}, {Row: row, Code: CmdRead2nd}},
		Buffer:  d.pageBuffer(),
	})

	switch {
	case errors.Is(err, ErrBadBlock):
		return OutcomeBad, nil
	case err != nil:
		return OutcomeBad, err
	default:
		return OutcomeOK, nil
	}
}

// MarkBlockBad erases the block containing row and programs its first, second
// and last page without data, leaving the bad-block signature. Marking a block
// that is already bad is a no-op.
func (d *Device) MarkBlockBad(row int) error {
	if d.closed {
		return ErrClosed
	}

	geo := d.model.Geometry()

	err := geo.checkRow(row)
	if err != nil {
		return err
	}

	first := geo.FirstRow(geo.Block(row))

	_, err = d.EraseBlock(first)
	if errors.Is(err, ErrBadBlock) {
		return nil
	}

	if err != nil {
		return err
	}

	var errs []error

	for _, r := range []int{first, first + 1, first + geo.PagesPerBlock - 1} {
		_, err = d.Execute(Batch{
			Entries: []Entry{{Row: -1, Code: CmdProgram1st}, {Row: r, Code: CmdProgram2nd}},
		})
		errs = append(errs, err)
	}

	d.log.Info("marked block bad", "block", geo.Block(row))

	return errors.Join(errs...)
}

// ReadStatus returns and clears the status register.
func (d *Device) ReadStatus() (Status, error) {
	buf := make([]byte, 1)

	_, err := d.Execute(Batch{Entries: []Entry{{Row: -1, Code: CmdReadStatus}}, Buffer: buf})
	if err != nil {
		return 0, err
	}

	return Status(buf[0]), nil
}

// ReadID returns the device ID bytes.
func (d *Device) ReadID() ([]byte, error) {
	buf := make([]byte, idLength)

	_, err := d.Execute(Batch{Entries: []Entry{{Row: -1, Code: CmdReadID}}, Buffer: buf})
	if err != nil {
		return nil, err
	}

	return buf, nil
}

// Reset issues [CmdReset], flushing cached blocks.
func (d *Device) Reset() error {
	_, err := d.Execute(Batch{Entries: []Entry{{Row: -1, Code: CmdReset}}})

	return err
}
