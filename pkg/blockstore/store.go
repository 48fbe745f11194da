package blockstore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"path/filepath"
	"strconv"

	"github.com/calvinalkan/nandsim/pkg/fs"
	"github.com/calvinalkan/nandsim/pkg/lru"
)

// MaxHandles caps the number of cached blocks (and thus open files).
const MaxHandles = 32

const (
	dirPerms  = 0o777
	filePerms = 0o644
)

// Options configures [New].
type Options struct {
	// FS is the filesystem holding block files. Defaults to [fs.NewReal].
	FS fs.FS

	// Dir is the directory holding one file per block. Created if absent.
	Dir string

	// PayloadSize is the decoded size of every block in bytes.
	PayloadSize int

	// Handles is the number of cache slots. Rounded up to a power of two and
	// clamped to [MaxHandles]. Values < 1 mean 1.
	Handles int

	// Compression selects the codec when Codec is nil.
	Compression Compression

	// Codec overrides Compression.
	Codec Codec

	// Logger receives diagnostics. Defaults to a discarding logger.
	Logger *slog.Logger
}

// Stats counts cache and I/O activity since [New].
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Writes    uint64
	Fallbacks uint64
}

// slot is a cached block: its payload and, while writes are deferred, the
// handle the payload will be written through.
type slot struct {
	payload []byte
	file    fs.File
}

// Store is a write-back cache of per-block files. See the package docs.
type Store struct {
	fs          fs.FS
	dir         string
	payloadSize int
	codec       Codec
	cache       *lru.Cache[slot]
	log         *slog.Logger
	stats       Stats
	closed      bool
}

// New creates a store rooted at opts.Dir.
func New(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: dir is empty", ErrInvalidOptions)
	}

	if opts.PayloadSize <= 0 {
		return nil, fmt.Errorf("%w: payload size %d", ErrInvalidOptions, opts.PayloadSize)
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	codec := opts.Codec
	if codec == nil {
		var err error

		codec, err = codecFor(opts.Compression)
		if err != nil {
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	handles := roundHandles(opts.Handles)
	payloadSize := opts.PayloadSize

	cache, err := lru.New(handles, func() slot {
		return slot{payload: make([]byte, payloadSize)}
	})
	if err != nil {
		return nil, fmt.Errorf("blockstore: %w", err)
	}

	err = fsys.MkdirAll(opts.Dir, dirPerms)
	if err != nil {
		return nil, fmt.Errorf("blockstore: create dir: %w", err)
	}

	logger.Debug("block store opened",
		"dir", opts.Dir, "payload", payloadSize, "handles", handles)

	return &Store{
		fs:          fsys,
		dir:         opts.Dir,
		payloadSize: payloadSize,
		codec:       codec,
		cache:       cache,
		log:         logger,
	}, nil
}

func roundHandles(n int) int {
	if n <= 1 {
		return 1
	}

	n = 1 << bits.Len(uint(n-1))

	return min(n, MaxHandles)
}

// Handles returns the number of cache slots.
func (s *Store) Handles() int {
	return s.cache.Cap()
}

// PayloadSize returns the decoded size of every block.
func (s *Store) PayloadSize() int {
	return s.payloadSize
}

// Stats returns activity counters.
func (s *Store) Stats() Stats {
	return s.stats
}

// Path returns the file backing block id.
func (s *Store) Path(id uint32) string {
	return filepath.Join(s.dir, strconv.FormatUint(uint64(id), 10))
}

// Cached reports whether block id is resident.
func (s *Store) Cached(id uint32) bool {
	return s.cache.Contains(id)
}

// Read returns the payload of block id, loading it from disk on a miss. It
// returns [ErrNotFound] if the block has no file. A loaded block keeps a
// handle open so later modifications are written back on eviction.
func (s *Store) Read(id uint32) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}

	if sl, ok := s.cache.Get(id); ok {
		s.stats.Hits++

		return sl.payload, nil
	}

	s.stats.Misses++

	path := s.Path(id)

	raw, err := s.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: block %d", ErrNotFound, id)
		}

		return nil, fmt.Errorf("blockstore: read block %d: %w", id, err)
	}

	sl, err := s.cache.Set(id, s.evict)
	if err != nil {
		return nil, fmt.Errorf("blockstore: %w", err)
	}

	s.decode(id, sl.payload, raw)

	err = s.openHandle(id, sl)
	if err != nil {
		return nil, err
	}

	return sl.payload, nil
}

// WriteCache returns a mutable payload for block id with writes deferred
// until eviction, [Store.Write] or [Store.Flush]. A block that is not cached
// is loaded from its file when one exists and zero-filled otherwise.
func (s *Store) WriteCache(id uint32) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}

	sl, ok := s.cache.Get(id)
	if ok {
		s.stats.Hits++
	} else {
		s.stats.Misses++

		raw, err := s.fs.ReadFile(s.Path(id))

		exists := err == nil
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blockstore: read block %d: %w", id, err)
		}

		sl, err = s.cache.Set(id, s.evict)
		if err != nil {
			return nil, fmt.Errorf("blockstore: %w", err)
		}

		if exists {
			s.decode(id, sl.payload, raw)
		} else {
			clear(sl.payload)
		}
	}

	if sl.file == nil {
		err := s.openHandle(id, sl)
		if err != nil {
			return nil, err
		}
	}

	return sl.payload, nil
}

// Write persists cached block id through its open handle and closes the
// handle. Returns [ErrNotCached] if the block is not resident. Writing a block
// without an open handle is a no-op.
func (s *Store) Write(id uint32) error {
	if s.closed {
		return ErrClosed
	}

	sl, ok := s.cache.Get(id)
	if !ok {
		return fmt.Errorf("%w: block %d", ErrNotCached, id)
	}

	return s.persist(id, sl)
}

// Flush writes back every cached block with deferred writes. All blocks are
// attempted; failures are joined.
func (s *Store) Flush() error {
	if s.closed {
		return ErrClosed
	}

	var errs []error

	_ = s.cache.ForEach(func(id uint32, sl *slot) error {
		err := s.persist(id, sl)
		if err != nil {
			errs = append(errs, err)
		}

		return nil
	})

	return errors.Join(errs...)
}

// Close flushes the store and releases every handle. Further calls return
// [ErrClosed].
func (s *Store) Close() error {
	if s.closed {
		return ErrClosed
	}

	flushErr := s.Flush()

	var closeErrs []error

	_ = s.cache.ForEach(func(_ uint32, sl *slot) error {
		if sl.file != nil {
			closeErrs = append(closeErrs, sl.file.Close())
			sl.file = nil
		}

		return nil
	})

	s.closed = true

	return errors.Join(flushErr, errors.Join(closeErrs...))
}

func (s *Store) evict(id uint32, sl *slot) error {
	err := s.persist(id, sl)
	if err != nil {
		return err
	}

	s.stats.Evictions++

	return nil
}

func (s *Store) openHandle(id uint32, sl *slot) error {
	f, err := s.fs.OpenFile(s.Path(id), os.O_RDWR|os.O_CREATE, filePerms)
	if err != nil {
		return fmt.Errorf("blockstore: open block %d: %w", id, err)
	}

	sl.file = f

	return nil
}

// persist encodes sl's payload and writes it through the slot's handle. On a
// write failure the handle stays open so a later flush can retry.
func (s *Store) persist(id uint32, sl *slot) error {
	if sl.file == nil {
		s.log.Debug("no open handle, skipping write", "block", id)

		return nil
	}

	out := s.encode(id, sl.payload)

	err := writeAll(sl.file, out)
	if err != nil {
		return fmt.Errorf("blockstore: write block %d: %w", id, err)
	}

	closeErr := sl.file.Close()
	sl.file = nil
	s.stats.Writes++

	if closeErr != nil {
		return fmt.Errorf("blockstore: close block %d: %w", id, closeErr)
	}

	return nil
}

func writeAll(f fs.File, data []byte) error {
	_, err := f.Seek(0, io.SeekStart)
	if err != nil {
		return err
	}

	_, err = f.Write(data)
	if err != nil {
		return err
	}

	return f.Truncate(int64(len(data)))
}

func (s *Store) encode(id uint32, payload []byte) []byte {
	out, err := s.codec.Compress(payload, s.payloadSize)
	if err != nil {
		s.stats.Fallbacks++
		s.log.Debug("compress failed, storing raw", "block", id, "err", err)

		return payload
	}

	return out
}

func (s *Store) decode(id uint32, dst, raw []byte) {
	n, err := s.codec.Decompress(dst, raw)
	if err != nil {
		s.stats.Fallbacks++
		s.log.Debug("decompress failed, loading raw", "block", id, "err", err)

		n = copy(dst, raw)
	}

	clear(dst[n:])
}
