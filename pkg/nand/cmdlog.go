package nand

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/calvinalkan/nandsim/pkg/fs"
)

const cmdLogTimeFormat = "2006-01-02 15:04:05"

// CommandLog appends one record per executed batch:
//
//	[2024-01-01 00:00:01]
//	  ffffffff 00
//	  0000000c 30
//
// Open and close notes are "#" comment lines between records. Rows are printed as 32-bit two's complement, so -1 reads ffffffff.
type CommandLog struct {
	w   io.Writer
	c   io.Closer
	now func() time.Time
}

// NewCommandLog writes records to w. A nil now uses [time.Now].
func NewCommandLog(w io.Writer, now func() time.Time) *CommandLog {
	if now == nil {
		now = time.Now
	}

	return &CommandLog{w: w, now: now}
}

// OpenCommandLog opens path for appending, creating it if needed.
func OpenCommandLog(fsys fs.FS, path string, now func() time.Time) (*CommandLog, error) {
	f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open command log: %w", err)
	}

	l := NewCommandLog(f, now)
	l.c = f

	return l, nil
}

// Record appends a batch record.
func (l *CommandLog) Record(entries []Entry) error {
	var b strings.Builder

	b.WriteString("[" + l.now().Format(cmdLogTimeFormat) + "]\n")

	for _, e := range entries {
		fmt.Fprintf(&b, "  %08x %02x\n", uint32(e.Row), uint8(e.Code))
	}

	_, err := io.WriteString(l.w, b.String())

	return err
}

// Note appends a free-form comment line starting with "#". Only batch
// records start with "[", so readers can count batches by header lines.
func (l *CommandLog) Note(msg string) error {
	_, err := io.WriteString(l.w, "# "+l.now().Format(cmdLogTimeFormat)+" "+msg+"\n")

	return err
}

// Close closes the underlying file, if the log owns one.
func (l *CommandLog) Close() error {
	if l.c == nil {
		return nil
	}

	err := l.c.Close()
	l.c = nil

	return err
}
