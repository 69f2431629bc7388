// Package window implements DEFLATE's 32 KiB sliding window: the
// circular history buffer that both serves length/distance
// back-references and queues decoded bytes for the caller to take.
package window

import "github.com/pullflate/pullflate/capnslog"

var plog = capnslog.NewPackageLogger("github.com/pullflate/pullflate", "window")

// Size is the fixed history/output-queue capacity RFC 1951 fixes for
// DEFLATE's sliding window.
const Size = 32768

// MaxCopy is the longest single length/distance back-reference DEFLATE
// can encode; DecodingBlock loops refuse to start a new symbol once
// free space drops to this, so a copy never has to wrap mid-write.
const MaxCopy = 258

// Checksummer receives every byte as it is written to the window, the
// hook point an Adler-32 digest (or nothing, for tests) attaches to.
type Checksummer interface {
	Update(b byte)
}

// Window is a fixed 32 KiB circular buffer holding the most recently
// decoded output. Bytes land via PutLiteral/PutCopy and leave one at a
// time via Take, in write order.
type Window struct {
	buf     [Size]byte
	end     int // next write position
	pending int // bytes written but not yet taken
	sum     Checksummer
}

// New returns an empty window. sum may be nil, in which case writes are
// not checksummed (used by raw DEFLATE decoding with no ZLIB framing).
func New(sum Checksummer) *Window {
	return &Window{sum: sum}
}

func floorMod(a, m int) int {
	a %= m
	if a < 0 {
		a += m
	}
	return a
}

func (w *Window) put(b byte) {
	w.buf[w.end] = b
	w.end = floorMod(w.end+1, Size)
	w.pending++
	if w.sum != nil {
		w.sum.Update(b)
	}
}

// PutLiteral appends a single decoded byte to the window.
func (w *Window) PutLiteral(b byte) {
	w.put(b)
}

// PutCopy appends length bytes read distance positions back in the
// window's own contents (1 <= length <= MaxCopy, 1 <= distance <=
// Size). The copy proceeds one byte at a time so that when length >
// distance, the source legitimately overlaps bytes this same call has
// already written — the mechanism that lets a single (length,
// distance=1) pair encode a run of identical bytes.
func (w *Window) PutCopy(length, distance int) {
	for i := 0; i < length; i++ {
		src := floorMod(w.end-distance, Size)
		w.put(w.buf[src])
	}
}

// Pending reports how many decoded bytes are queued but not yet taken.
func (w *Window) Pending() int {
	return w.pending
}

// Free reports how much room remains before the window must be drained
// with Take before decoding another symbol.
func (w *Window) Free() int {
	return Size - w.pending
}

// Take returns the oldest queued byte and removes it from the queue.
// Callers must check Pending() > 0 first.
func (w *Window) Take() byte {
	w.pending--
	idx := floorMod(w.end-w.pending-1, Size)
	return w.buf[idx]
}
