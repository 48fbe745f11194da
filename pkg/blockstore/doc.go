// Package blockstore keeps one file per flash block and fronts the files with
// a small write-back cache.
//
// A [Store] maps a block id to a fixed-size payload buffer. Buffers live in an
// [lru.Cache] with a handful of slots; each slot pairs its payload with an
// optional open file handle. A slot holding a handle has deferred writes: its
// payload is encoded with the configured [Codec] and written back when the
// slot is evicted, when [Store.Write] is called, or on [Store.Flush].
//
// # Basic Usage
//
//	store, err := blockstore.New(blockstore.Options{
//	    Dir:         "COMMON_NAND",
//	    PayloadSize: pagesPerBlock * (pageSize + spareSize),
//	    Handles:     4,
//	    Compression: blockstore.CompressBrotli,
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	buf, err := store.WriteCache(12) // mutable payload of block 12
//	copy(buf[off:], page)
//
//	buf, err = store.Read(12)        // ErrNotFound if never written
//
// # Compression fallback
//
// When the codec fails to encode a payload within the payload size, the raw
// payload is written instead. When a stored file fails to decode, its bytes
// are copied verbatim. Raw bytes are always a valid payload, so the fallback
// never loses data.
//
// # Concurrency
//
// A Store is not safe for concurrent use. Payload slices returned by Read and
// WriteCache stay valid only until the next call that may evict.
package blockstore
