package fs

import (
	"errors"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection. Partially initialized configs
// only inject faults for the specified rates; unset fields default to 0.0.
type ChaosConfig struct {
	// OpenFailRate controls how often FS.Open and FS.OpenFile fail to open a
	// file. For read-only opens: EACCES, EIO, EMFILE. For write opens: adds
	// ENOSPC and EROFS.
	OpenFailRate float64

	// ReadFailRate controls how often FS.ReadFile and File.Read fail entirely,
	// returning zero bytes and EIO.
	ReadFailRate float64

	// WriteFailRate controls how often File.Write fails entirely, writing zero
	// bytes and returning EIO, ENOSPC or EROFS.
	WriteFailRate float64

	// PartialWriteRate controls how often File.Write writes only a prefix
	// before failing with EIO.
	PartialWriteRate float64

	// AtomicWriteFailRate controls how often FS.WriteFileAtomic fails. The
	// target file is left untouched, as with a failed rename.
	AtomicWriteFailRate float64

	// CloseFailRate controls how often File.Close reports an error. The
	// underlying file descriptor is always closed.
	CloseFailRate float64

	// MkdirAllFailRate controls how often FS.MkdirAll fails.
	MkdirAllFailRate float64
}

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault-rate injection.
	// This is the default mode for a new [Chaos].
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	ChaosModeNoOp
)

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	OpenFails        int64
	ReadFails        int64
	WriteFails       int64
	PartialWrites    int64
	AtomicWriteFails int64
	CloseFails       int64
	MkdirAllFails    int64
}

// Total returns the number of injected faults of any kind.
func (s ChaosStats) Total() int64 {
	return s.OpenFails + s.ReadFails + s.WriteFails + s.PartialWrites +
		s.AtomicWriteFails + s.CloseFails + s.MkdirAllFails
}

// chaosError marks an error as intentionally injected by [Chaos].
//
// It wraps the underlying error so errors.Is/As continue to work.
type chaosError struct {
	Err error
}

// Error returns a formatted error message.
func (e *chaosError) Error() string {
	return "chaos: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *chaosError) Unwrap() error {
	return e.Err
}

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
// Returns false if err is nil.
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and injects random failures for testing.
//
// Injected filesystem errors are [*fs.PathError] values carrying a real
// [syscall.Errno], wrapped so [IsChaosErr] can tell them apart from real
// failures. Chaos never injects ENOENT; any os.IsNotExist result originates
// from the wrapped [FS].
type Chaos struct {
	fs     FS
	rng    *rand.Rand
	config ChaosConfig
	mode   atomic.Uint32

	rngMu sync.Mutex

	openFails        atomic.Int64
	readFails        atomic.Int64
	writeFails       atomic.Int64
	partialWrites    atomic.Int64
	atomicWriteFails atomic.Int64
	closeFails       atomic.Int64
	mkdirAllFails    atomic.Int64
}

// NewChaos creates a new [Chaos] filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
// Panics if underlying is nil.
func NewChaos(underlying FS, seed int64, config ChaosConfig) *Chaos {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	return &Chaos{
		fs:     underlying,
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
		config: config,
	}
}

// SetMode updates [Chaos] behavior. It is safe to call concurrently with
// filesystem operations.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// Stats returns the current fault injection counts.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:        c.openFails.Load(),
		ReadFails:        c.readFails.Load(),
		WriteFails:       c.writeFails.Load(),
		PartialWrites:    c.partialWrites.Load(),
		AtomicWriteFails: c.atomicWriteFails.Load(),
		CloseFails:       c.closeFails.Load(),
		MkdirAllFails:    c.mkdirAllFails.Load(),
	}
}

// Open opens a file for reading with fault injection.
func (c *Chaos) Open(path string) (File, error) {
	return c.OpenFile(path, os.O_RDONLY, 0)
}

// OpenFile opens a file with the specified flags and permissions with fault injection.
func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if c.should(c.config.OpenFailRate) {
		c.openFails.Add(1)

		errnos := []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.EMFILE}
		if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
			errnos = append(errnos, syscall.ENOSPC, syscall.EROFS)
		}

		return nil, injected("open", path, errnos[c.randIntn(len(errnos))])
	}

	f, err := c.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &chaosFile{File: f, chaos: c, path: path}, nil
}

// ReadFile reads a file's contents with fault injection.
func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if c.should(c.config.ReadFailRate) {
		c.readFails.Add(1)

		return nil, injected("read", path, syscall.EIO)
	}

	return c.fs.ReadFile(path)
}

// WriteFileAtomic writes a file atomically with fault injection. An injected
// failure leaves the previous contents in place.
func (c *Chaos) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if c.should(c.config.AtomicWriteFailRate) {
		c.atomicWriteFails.Add(1)

		return injected("rename", path, syscall.EIO)
	}

	return c.fs.WriteFileAtomic(path, data, perm)
}

// MkdirAll creates a directory and parents with fault injection.
func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	if c.should(c.config.MkdirAllFailRate) {
		c.mkdirAllFails.Add(1)

		return injected("mkdir", path, syscall.EIO)
	}

	return c.fs.MkdirAll(path, perm)
}

// Stat passes through to the underlying [FS].
func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	return c.fs.Stat(path)
}

// Exists passes through to the underlying [FS].
func (c *Chaos) Exists(path string) (bool, error) {
	return c.fs.Exists(path)
}

// Remove passes through to the underlying [FS].
func (c *Chaos) Remove(path string) error {
	return c.fs.Remove(path)
}

// RemoveAll passes through to the underlying [FS].
func (c *Chaos) RemoveAll(path string) error {
	return c.fs.RemoveAll(path)
}

func (c *Chaos) should(rate float64) bool {
	if ChaosMode(c.mode.Load()) == ChaosModeNoOp || rate <= 0 {
		return false
	}

	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.Float64() < rate
}

func (c *Chaos) randIntn(n int) int {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.IntN(n)
}

func injected(op, path string, errno syscall.Errno) error {
	return &chaosError{Err: &fs.PathError{Op: op, Path: path, Err: errno}}
}

// chaosFile wraps a [File] and injects read, write and close failures.
type chaosFile struct {
	File

	chaos *Chaos
	path  string
}

func (f *chaosFile) Read(p []byte) (int, error) {
	if f.chaos.should(f.chaos.config.ReadFailRate) {
		f.chaos.readFails.Add(1)

		return 0, injected("read", f.path, syscall.EIO)
	}

	return f.File.Read(p)
}

func (f *chaosFile) Write(p []byte) (int, error) {
	c := f.chaos

	if c.should(c.config.WriteFailRate) {
		c.writeFails.Add(1)

		errnos := []syscall.Errno{syscall.EIO, syscall.ENOSPC, syscall.EROFS}

		return 0, injected("write", f.path, errnos[c.randIntn(len(errnos))])
	}

	if len(p) > 1 && c.should(c.config.PartialWriteRate) {
		c.partialWrites.Add(1)

		n, err := f.File.Write(p[:c.randIntn(len(p)-1)+1])
		if err != nil {
			return n, err
		}

		return n, injected("write", f.path, syscall.EIO)
	}

	return f.File.Write(p)
}

func (f *chaosFile) Close() error {
	err := f.File.Close()
	if err != nil {
		return err
	}

	if f.chaos.should(f.chaos.config.CloseFailRate) {
		f.chaos.closeFails.Add(1)

		return injected("close", f.path, syscall.EIO)
	}

	return nil
}

// Compile-time interface checks.
var (
	_ FS        = (*Chaos)(nil)
	_ File      = (*chaosFile)(nil)
	_ io.Writer = (*chaosFile)(nil)
)
