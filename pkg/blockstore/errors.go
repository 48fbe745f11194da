package blockstore

import "errors"

// Sentinel errors returned by [Store] operations.
//
// Callers should use [errors.Is] to check error types.
var (
	// ErrNotFound indicates [Store.Read] was asked for a block whose file does
	// not exist. The block has never been written.
	ErrNotFound = errors.New("blockstore: block not found")

	// ErrNotCached indicates [Store.Write] was called for a block that is not
	// resident in the cache.
	//
	// This is a programming error: obtain the buffer with [Store.WriteCache]
	// or [Store.Read] first.
	ErrNotCached = errors.New("blockstore: block not cached")

	// ErrClosed indicates the [Store] has already been closed.
	ErrClosed = errors.New("blockstore: closed")

	// ErrInvalidOptions indicates invalid [Options] were passed to [New].
	ErrInvalidOptions = errors.New("blockstore: invalid options")
)
