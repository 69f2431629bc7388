// Package huffman builds RFC 1951 canonical Huffman decode tables and
// decodes symbols from them one at a time.
package huffman

import (
	"math/bits"
	"sync"

	"github.com/pullflate/pullflate/bitio"
	"github.com/pullflate/pullflate/capnslog"
)

var plog = capnslog.NewPackageLogger("github.com/pullflate/pullflate", "huffman")

// maxCodeLen is RFC 1951's hard limit on canonical code length.
const maxCodeLen = 15

const unassigned = -1

// InvalidDataError reports a malformed canonical Huffman code table: an
// overfull table, or a slot that construction tried to assign twice.
type InvalidDataError string

func (e InvalidDataError) Error() string {
	return "huffman: invalid table: " + string(e)
}

// Table is an immutable canonical Huffman decoder. Codes no longer than
// tableBits resolve with one lookup in direct; longer codes spill into a
// binary tree walked one bit at a time through left/right.
type Table struct {
	lengths   []uint8
	maxLen    uint
	tableBits uint
	direct    []int32
	left      []int32
	right     []int32
	base      int32
}

// New builds a canonical Huffman table from a code-length vector cl,
// where cl[i] == 0 means symbol i is absent from the alphabet. tableBits
// sizes the direct lookup table: 9 for the literal/length alphabet, 7
// for the distance and code-length alphabets, per RFC 1951 §3.2.2.
func New(cl []uint8, tableBits uint) (*Table, error) {
	var count [maxCodeLen + 1]int
	var maxLen uint
	for _, l := range cl {
		if l == 0 {
			continue
		}
		count[l]++
		if uint(l) > maxLen {
			maxLen = uint(l)
		}
	}
	if maxLen == 0 {
		return nil, InvalidDataError("empty code-length table")
	}

	var next [maxCodeLen + 1]uint32
	var code uint32
	for l := 1; l <= maxCodeLen; l++ {
		code = (code + uint32(count[l-1])) << 1
		next[l] = code
	}

	t := &Table{
		lengths:   cl,
		maxLen:    maxLen,
		tableBits: tableBits,
		direct:    make([]int32, 1<<tableBits),
		base:      int32(len(cl)),
	}
	for i := range t.direct {
		t.direct[i] = unassigned
	}

	for sym, l := range cl {
		if l == 0 {
			continue
		}
		c := next[l]
		next[l]++
		if c >= 1<<l {
			return nil, InvalidDataError("overfull code table")
		}
		if err := t.insert(sym, uint(l), Reverse(c, uint(l))); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// insert places symbol sym, whose canonical code is the bit-reversed
// rcode of the given length, into the direct table or the overflow tree.
func (t *Table) insert(sym int, length uint, rcode uint32) error {
	if length <= t.tableBits {
		step := uint32(1) << length
		for slot := rcode; slot < uint32(len(t.direct)); slot += step {
			if t.direct[slot] != unassigned {
				return InvalidDataError("duplicate direct-table slot")
			}
			t.direct[slot] = int32(sym)
		}
		return nil
	}

	root := rcode & (1<<t.tableBits - 1)
	node, err := t.childFor(&t.direct[root])
	if err != nil {
		return err
	}
	for bit := t.tableBits; bit < length; bit++ {
		idx := node - t.base
		var slot *int32
		if (rcode>>bit)&1 == 0 {
			slot = &t.left[idx]
		} else {
			slot = &t.right[idx]
		}
		if bit == length-1 {
			if *slot != unassigned {
				return InvalidDataError("duplicate tree leaf")
			}
			*slot = int32(sym)
			return nil
		}
		node, err = t.childFor(slot)
		if err != nil {
			return err
		}
	}
	return nil
}

// childFor returns the node id rooted at *slot, allocating a fresh
// internal node on first visit. The arrays grow lazily rather than
// being pre-sized at 2*L, since the exact internal-node count depends
// on the code lengths actually present.
func (t *Table) childFor(slot *int32) (int32, error) {
	switch {
	case *slot == unassigned:
		node := t.base + int32(len(t.left))
		t.left = append(t.left, unassigned)
		t.right = append(t.right, unassigned)
		*slot = -node - 1
		return node, nil
	case *slot < 0:
		return -*slot - 1, nil
	default:
		return 0, InvalidDataError("intermediate slot already holds a leaf")
	}
}

// NextSymbol decodes one symbol from r. It returns bitio.ErrEndOfStream
// if the producer ran out before the symbol's full code was available,
// and InvalidDataError if the bits read don't correspond to any
// assigned codeword. The direct/tree lookup itself only ever needs
// maxLen bits of lookahead, decided from whatever Peek actually
// returned.
func (t *Table) NextSymbol(r *bitio.Reader) (int, error) {
	peek := r.Peek(t.maxLen)
	node := t.direct[peek&(1<<t.tableBits-1)]
	bit := t.tableBits
	for node < 0 {
		if node == unassigned {
			return 0, InvalidDataError("unused codeword: incomplete Huffman code")
		}
		idx := -node - 1 - t.base
		if (peek>>bit)&1 == 0 {
			node = t.left[idx]
		} else {
			node = t.right[idx]
		}
		bit++
	}
	sym := int(node)
	codeLen := uint(t.lengths[sym])
	if r.Available() < codeLen {
		return 0, bitio.ErrEndOfStream
	}
	r.Skip(codeLen)
	return sym, nil
}

// Reverse returns the low n bits of x with their bit order reversed
// (1 <= n <= 16), the operation that turns a canonical MSB-first code
// into the LSB-first form a raw bitstream read produces directly.
func Reverse(x uint32, n uint) uint32 {
	return uint32(bits.Reverse16(uint16(x) << (16 - n)))
}

var (
	fixedLitLenOnce sync.Once
	fixedLitLen     *Table
)

// fixedLiteralLengthLengths is the code-length vector RFC 1951 §3.2.6
// fixes for the static literal/length alphabet.
func fixedLiteralLengthLengths() []uint8 {
	cl := make([]uint8, 288)
	for i := 0; i < 144; i++ {
		cl[i] = 8
	}
	for i := 144; i < 256; i++ {
		cl[i] = 9
	}
	for i := 256; i < 280; i++ {
		cl[i] = 7
	}
	for i := 280; i < 288; i++ {
		cl[i] = 8
	}
	return cl
}

// FixedLiteralLengthTable returns the process-wide static literal/length
// Huffman table defined by RFC 1951 §3.2.6, building it on first use.
// Every construction of this table from the same fixed lengths produces
// identical content, so concurrent first calls racing through sync.Once
// still converge on one correct table.
func FixedLiteralLengthTable() *Table {
	fixedLitLenOnce.Do(func() {
		t, err := New(fixedLiteralLengthLengths(), 9)
		if err != nil {
			panic(err) // the fixed table is a compile-time constant; it cannot be invalid
		}
		fixedLitLen = t
		plog.Debugf("built static literal/length table")
	})
	return fixedLitLen
}

// StaticDistanceReverse maps a raw 5-bit LSB-first read to the distance
// symbol it encodes, since every static-block distance code has the
// same length (RFC 1951 §3.2.6) and needs no tree at all, just a
// bit-reversal of the fixed-width read.
func StaticDistanceReverse(raw uint32) int {
	return int(Reverse(raw, 5))
}
