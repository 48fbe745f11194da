package nand

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/calvinalkan/nandsim/pkg/blockstore"
	"github.com/calvinalkan/nandsim/pkg/fs"
	"github.com/google/uuid"
)

// DefaultHandles is the block cache size used when Options.Handles is 0.
const DefaultHandles = 4

// Options configures [Open].
type Options struct {
	// Root is the directory holding NandInfo/ and the block directories.
	// Defaults to the working directory.
	Root string

	// Name is the device name. Defaults to [DefaultName].
	Name string

	// Variant selects the device model. Only [VariantCommon] is implemented.
	Variant Variant

	// Defaults is written as the info file when none exists. Nil means
	// [DefaultInfo] with Name set to the device name.
	Defaults *Info

	// Handles is the number of cached blocks. Defaults to [DefaultHandles].
	Handles int

	// Compression selects how block files are stored.
	Compression blockstore.Compression

	// CommandLog is the batch log path, relative to Root unless absolute.
	// Empty disables the log.
	CommandLog string

	// Rand places bad blocks on first open. Nil seeds from the clock.
	Rand *rand.Rand

	// Clock stamps command log records. Defaults to [time.Now].
	Clock func() time.Time

	// Logger receives diagnostics. Defaults to a discarding logger.
	Logger *slog.Logger

	// FS defaults to [fs.NewReal].
	FS fs.FS
}

// Device is an open simulated NAND device: a [Model] driven through a
// [Sequencer], plus the high-level page operations built on it.
//
// A Device is not safe for concurrent use. The device directory is locked for
// the lifetime of the Device so a second process fails fast with
// [fs.ErrWouldBlock].
type Device struct {
	name    string
	session string
	info    Info
	model   Model
	seq     *Sequencer
	cmds    *CommandLog
	lock    *fs.Lock
	log     *slog.Logger
	closed  bool
}

// Open opens device opts.Name under opts.Root, creating its info file and
// state on first use.
func Open(opts Options) (*Device, error) {
	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	root := opts.Root
	if root == "" {
		root = "."
	}

	name := opts.Name
	if name == "" {
		name = DefaultName
	}

	if name != filepath.Base(name) {
		return nil, fmt.Errorf("%w: device name %q must not contain a path", ErrInfoInvalid, name)
	}

	handles := opts.Handles
	if handles <= 0 {
		handles = DefaultHandles
	}

	session := uuid.NewString()

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger = logger.With("component", "nand", "device", name, "session", session)

	if opts.Variant != VariantCommon {
		// Fail before touching the filesystem.
		_, err := newModel(modelConfig{variant: opts.Variant})

		return nil, err
	}

	err := fsys.MkdirAll(filepath.Join(root, InfoDir), 0o777)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", InfoDir, err)
	}

	lock, err := fs.NewLocker(fsys).TryLock(filepath.Join(root, InfoDir, name+".lock"))
	if err != nil {
		return nil, fmt.Errorf("lock device %s: %w", name, err)
	}

	d, err := open(fsys, root, name, handles, session, lock, logger, opts)
	if err != nil {
		return nil, errors.Join(err, lock.Close())
	}

	return d, nil
}

func open(fsys fs.FS, root, name string, handles int, session string,
	lock *fs.Lock, logger *slog.Logger, opts Options,
) (*Device, error) {
	defaults := DefaultInfo()
	defaults.Name = name

	if opts.Defaults != nil {
		defaults = *opts.Defaults
	}

	info, created, err := LoadOrCreateInfo(fsys, InfoPath(root, name), defaults)
	if err != nil {
		return nil, err
	}

	if created {
		logger.Warn("device info not found, wrote defaults", "path", InfoPath(root, name))
	}

	err = info.Validate()
	if err != nil {
		return nil, err
	}

	rng := opts.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}

	model, err := newModel(modelConfig{
		variant:     opts.Variant,
		fs:          fsys,
		info:        info,
		stateDir:    StateDir(root, name),
		blockDir:    filepath.Join(root, name),
		handles:     handles,
		compression: opts.Compression,
		rng:         rng,
		log:         logger,
	})
	if err != nil {
		return nil, err
	}

	var cmds *CommandLog

	if opts.CommandLog != "" {
		path := opts.CommandLog
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}

		cmds, err = OpenCommandLog(fsys, path, opts.Clock)
		if err != nil {
			return nil, errors.Join(err, model.Close())
		}

		_ = cmds.Note("open " + name + " session " + session)
	}

	geo := info.Geometry()

	logger.Info("device opened",
		"blocks", geo.BlockCount,
		"pages_per_block", geo.PagesPerBlock,
		"page", geo.PageSize,
		"spare", geo.SpareSize,
		"band", geo.Band.String(),
		"compression", opts.Compression.String())

	return &Device{
		name:    name,
		session: session,
		info:    info,
		model:   model,
		seq:     NewSequencer(model, cmds, logger),
		cmds:    cmds,
		lock:    lock,
		log:     logger,
	}, nil
}

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// Session returns the id generated for this open.
func (d *Device) Session() string { return d.session }

// Info returns the device info.
func (d *Device) Info() Info { return d.info }

// Geometry returns the device geometry.
func (d *Device) Geometry() Geometry { return d.model.Geometry() }

// Model returns the underlying model.
func (d *Device) Model() Model { return d.model }

// Execute runs a raw command batch. See [Sequencer.Execute].
func (d *Device) Execute(b Batch) (Result, error) {
	if d.closed {
		return Result{}, ErrClosed
	}

	return d.seq.Execute(b)
}

// Flush writes cached blocks and persisted state.
func (d *Device) Flush() error {
	if d.closed {
		return ErrClosed
	}

	return d.model.Flush()
}

// Close persists state, releases the block cache and unlocks the device.
func (d *Device) Close() error {
	if d.closed {
		return ErrClosed
	}

	d.closed = true

	errs := []error{d.model.Close()}

	if d.cmds != nil {
		_ = d.cmds.Note("close " + d.name + " session " + d.session)
		errs = append(errs, d.cmds.Close())
	}

	errs = append(errs, d.lock.Close())

	err := errors.Join(errs...)
	if err != nil {
		d.log.Error("device close failed", "err", err)
	} else {
		d.log.Info("device closed")
	}

	return err
}
