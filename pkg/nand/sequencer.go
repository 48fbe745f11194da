package nand

import (
	"fmt"
	"log/slog"
)

// Entry is one command cycle.
type Entry struct {
	Row  int
	Code Code
}

// Batch is an ordered list of cycles sharing one I/O buffer. Cache read and
// cache program cycles each take the next page-sized slice of Buffer. A nil
// Buffer programs pages without data.
type Batch struct {
	Entries []Entry
	Buffer  []byte
}

// Result summarises an executed batch.
type Result struct {
	Reads    int
	Programs int
	Erases   int
	Admin    int
	Skipped  int // unknown codes

	// MaxBitErrors is the largest bit-error count of any read.
	MaxBitErrors int
}

// Sequencer groups command cycles into [Model] operations. Each read, program
// or erase second cycle needs exactly one pending first cycle of its kind.
type Sequencer struct {
	model Model
	cmds  *CommandLog
	log   *slog.Logger
}

// NewSequencer returns a sequencer driving m. cmds may be nil.
func NewSequencer(m Model, cmds *CommandLog, logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Sequencer{model: m, cmds: cmds, log: logger}
}

// Execute runs b in order and stops at the first failing operation. The batch
// is recorded in the command log either way.
func (s *Sequencer) Execute(b Batch) (Result, error) {
	res, err := s.run(b)

	if s.cmds != nil {
		logErr := s.cmds.Record(b.Entries)
		if logErr != nil {
			s.log.Warn("command log write failed", "err", logErr)
		}
	}

	if err != nil {
		s.log.Warn("command failed", "err", err)
	}

	return res, err
}

func (s *Sequencer) run(b Batch) (Result, error) {
	var (
		res                     Result
		reads, programs, erases int
		cacheRead, cacheProgram int
	)

	pageBytes := s.model.Geometry().PageBytes()

	for i, e := range b.Entries {
		buf := b.Buffer

		var err error

		switch e.Code {
		case CmdRead1st:
			reads++

		case CmdReadCacheSeq, CmdReadCacheEnd:
			buf, err = slicePage(b.Buffer, cacheRead, pageBytes)
			cacheRead++

			if err != nil {
				break
			}

			fallthrough

		case CmdCopybackRead2nd, CmdRead2nd, CmdReadMultiPlane2nd:
			if reads != 1 {
				err = sequenceError(e, "read", reads)

				break
			}

			reads = 0

			var bits int

			bits, err = s.model.ReadPage(e.Row, buf)
			res.Reads++
			res.MaxBitErrors = max(res.MaxBitErrors, bits)

		case CmdErase1st:
			erases++

		case CmdErase2nd, CmdEraseMultiPlane2nd:
			if erases != 1 {
				err = sequenceError(e, "erase", erases)

				break
			}

			erases = 0
			err = s.model.Erase(e.Row)
			res.Erases++

		case CmdProgram1st, CmdCopybackProgram1st:
			programs++

		case CmdCacheProgram2nd:
			if b.Buffer != nil {
				buf, err = slicePage(b.Buffer, cacheProgram, pageBytes)
			}

			cacheProgram++

			if err != nil {
				break
			}

			fallthrough

		case CmdProgram2nd, CmdProgramMultiPlane2nd:
			if programs != 1 {
				err = sequenceError(e, "program", programs)

				break
			}

			programs = 0
			err = s.model.ProgramPage(e.Row, buf)
			res.Programs++

		default:
			if !e.Code.IsAdmin() {
				s.log.Warn("unknown command", "code", e.Code, "row", e.Row)
				res.Skipped++

				continue
			}

			err = s.model.Command(e.Code, e.Row, buf)
			res.Admin++
		}

		if err != nil {
			return res, fmt.Errorf("entry %d (%s row %d): %w", i, e.Code, e.Row, err)
		}
	}

	return res, nil
}

func sequenceError(e Entry, kind string, pending int) error {
	return fmt.Errorf("%w: %s with %d pending %s cycles", ErrInvalidSequence, e.Code, pending, kind)
}

func slicePage(buf []byte, index, pageBytes int) ([]byte, error) {
	start := index * pageBytes
	if start+pageBytes > len(buf) {
		return nil, fmt.Errorf("%w: cache cycle %d needs %d bytes, have %d",
			ErrShortBuffer, index, start+pageBytes, len(buf))
	}

	return buf[start : start+pageBytes], nil
}
