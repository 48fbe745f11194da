// Package bitmap provides a fixed-size bit array addressed through a base offset.
//
// Indices are absolute: a bitmap created with base 100 and size 8 covers
// indices 100..107. Accesses outside that window are ignored by [Bitmap.Set]
// and [Bitmap.Clear] and reported as -1 by [Bitmap.Get]; they never panic.
//
// A Bitmap is not safe for concurrent use.
package bitmap

import "math/bits"

// Bitmap is a bit array covering [base, base+size).
type Bitmap struct {
	base uint
	size uint
	bits []byte
}

// New returns a zeroed bitmap of size bits starting at base.
func New(size, base uint) *Bitmap {
	return &Bitmap{
		base: base,
		size: size,
		bits: make([]byte, (size+7)/8),
	}
}

// Len returns the number of addressable bits.
func (b *Bitmap) Len() uint {
	return b.size
}

// Base returns the first addressable index.
func (b *Bitmap) Base() uint {
	return b.base
}

func (b *Bitmap) locate(index uint) (int, byte, bool) {
	if index < b.base || index-b.base >= b.size {
		return 0, 0, false
	}

	off := index - b.base

	return int(off >> 3), byte(1) << (off & 7), true
}

// Set sets the bit at index.
func (b *Bitmap) Set(index uint) {
	i, mask, ok := b.locate(index)
	if !ok {
		return
	}

	b.bits[i] |= mask
}

// Clear clears the bit at index.
func (b *Bitmap) Clear(index uint) {
	i, mask, ok := b.locate(index)
	if !ok {
		return
	}

	b.bits[i] &^= mask
}

// Get returns 1 if the bit at index is set, 0 if it is clear and -1 if index
// is out of range.
func (b *Bitmap) Get(index uint) int {
	i, mask, ok := b.locate(index)
	if !ok {
		return -1
	}

	if b.bits[i]&mask != 0 {
		return 1
	}

	return 0
}

// Count returns the number of set bits.
func (b *Bitmap) Count() int {
	n := 0
	for _, v := range b.bits {
		n += bits.OnesCount8(v)
	}

	return n
}

// Bytes returns the backing storage. The slice aliases the bitmap; bit i of
// the window is bit (i%8) of byte i/8.
func (b *Bitmap) Bytes() []byte {
	return b.bits
}

// Load overwrites the backing storage with raw, copying at most len(Bytes())
// bytes. It returns the number of bytes copied. Bits beyond size in the final
// byte are masked off.
func (b *Bitmap) Load(raw []byte) int {
	n := copy(b.bits, raw)

	if rem := b.size & 7; rem != 0 && n == len(b.bits) {
		b.bits[len(b.bits)-1] &= byte(1)<<rem - 1
	}

	return n
}
