// Package bitio turns a byte-at-a-time producer into an on-demand supply
// of small, LSB-first bit fields, the way DEFLATE (RFC 1951) wants them.
package bitio

import (
	"errors"
	"io"

	"github.com/pullflate/pullflate/capnslog"
)

var plog = capnslog.NewPackageLogger("github.com/pullflate/pullflate", "bitio")

// ErrEndOfStream is returned by Require when the underlying producer is
// exhausted before the requested number of bits could be supplied.
var ErrEndOfStream = errors.New("bitio: end of stream")

// maxBits is the widest field any caller may Peek or Get in one call:
// enough for DEFLATE's longest (15-bit) canonical Huffman code or its
// widest (13-bit) extra-bits field.
const maxBits = 16

// Reader accumulates bytes from an io.ByteReader into a bit register,
// low bit first, and hands out 1-16 bit fields from the low end of it.
// It mirrors the B/Nb accumulator every compress/flate-derived decoder
// keeps inline, but as its own type so huffman and inflate can share one
// without reaching into each other's state.
type Reader struct {
	r   io.ByteReader
	b   uint32
	nb  uint
	eof bool
}

// New wraps r for bit-at-a-time reading.
func New(r io.ByteReader) *Reader {
	return &Reader{r: r}
}

// fill pulls bytes from the producer until at least n bits are buffered
// or the producer is exhausted. Peek and Get ask for at most maxBits;
// Require may ask for up to 32 bits (a stored block's LEN/NLEN, the ZLIB
// trailer). Each pulled byte adds 8 bits, so this never needs more than
// four iterations.
func (r *Reader) fill(n uint) {
	for r.nb < n && !r.eof {
		c, err := r.r.ReadByte()
		if err != nil {
			r.eof = true
			if !errors.Is(err, io.EOF) {
				plog.Debugf("bitio: ReadByte: %v", err)
			}
			return
		}
		r.b |= uint32(c) << r.nb
		r.nb += 8
	}
}

// Peek returns the low n bits of the register (1 <= n <= 16) without
// consuming them. If the producer runs out before n bits accumulate, the
// low Available() bits of the result are valid and the rest are zero;
// callers must cross-check with Available before trusting the result.
func (r *Reader) Peek(n uint) uint32 {
	r.fill(n)
	return r.b & (1<<n - 1)
}

// Get returns the low n bits and consumes them. Callers must first know,
// via Require or Available, that n bits are actually buffered.
func (r *Reader) Get(n uint) uint32 {
	v := r.Peek(n)
	r.Skip(n)
	return v
}

// Skip discards n already-buffered bits.
func (r *Reader) Skip(n uint) {
	r.b >>= n
	if n >= r.nb {
		r.nb = 0
		return
	}
	r.nb -= n
}

// SkipToByteBoundary discards bits until Available is a multiple of 8,
// the way a stored block's header realigns the stream.
func (r *Reader) SkipToByteBoundary() {
	r.Skip(r.nb % 8)
}

// Available reports how many bits are currently buffered.
func (r *Reader) Available() uint {
	return r.nb
}

// Require ensures at least n bits are buffered, pulling from the
// underlying producer as needed. It returns ErrEndOfStream if the
// producer is exhausted before n bits could be supplied.
func (r *Reader) Require(n uint) error {
	r.fill(n)
	if r.nb < n {
		return ErrEndOfStream
	}
	return nil
}
