package inflate

import (
	"bytes"
	"testing"

	"github.com/pullflate/pullflate/huffman"
)

// bitWriter is the write-side counterpart of bitio.Reader: it packs
// values LSB-first into a byte buffer, low bit first within each byte.
type bitWriter struct {
	buf []byte
	cur uint32
	n   uint
}

func (w *bitWriter) writeBits(v uint32, n uint) {
	w.cur |= v << w.n
	w.n += n
	for w.n >= 8 {
		w.buf = append(w.buf, byte(w.cur))
		w.cur >>= 8
		w.n -= 8
	}
}

func (w *bitWriter) bytes() []byte {
	out := append([]byte(nil), w.buf...)
	if w.n > 0 {
		out = append(out, byte(w.cur))
	}
	return out
}

type code struct {
	value  uint32
	length uint
}

// canonicalCodes assigns each non-zero-length symbol in cl its RFC 1951
// canonical code, using the same bucket-and-next recurrence
// huffman.New builds its decode tables from. It exists only on the
// encoding side of these tests; the production decoder never needs to
// name a symbol's code value, only its length.
func canonicalCodes(cl []uint8) map[int]code {
	const maxLen = 15
	var count [maxLen + 1]int
	for _, l := range cl {
		if l != 0 {
			count[l]++
		}
	}
	var next [maxLen + 1]uint32
	var c uint32
	for l := 1; l <= maxLen; l++ {
		c = (c + uint32(count[l-1])) << 1
		next[l] = c
	}
	out := make(map[int]code)
	for sym, l := range cl {
		if l == 0 {
			continue
		}
		out[sym] = code{value: next[l], length: uint(l)}
		next[l]++
	}
	return out
}

// writeSymbol emits sym's canonical code from codes, bit-reversed the
// way every canonical-code bit field is packed into a DEFLATE stream.
func writeSymbol(w *bitWriter, codes map[int]code, sym int) {
	c := codes[sym]
	w.writeBits(huffman.Reverse(c.value, c.length), c.length)
}

// fixedLitLenLengths is RFC 1951 §3.2.6's code-length vector for the
// static literal/length alphabet, duplicated here (rather than
// exported from package huffman) so this test depends only on the RFC
// constant, not on the production package's internal helper.
func fixedLitLenLengths() []uint8 {
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

// encodeStaticLiteralBlock builds a single final BTYPE=01 block
// encoding payload as literals followed by end-of-block, using no
// back-references.
func encodeStaticLiteralBlock(payload []byte) []byte {
	w := &bitWriter{}
	w.writeBits(1, 1) // BFINAL
	w.writeBits(1, 2) // BTYPE=01 (static)

	codes := canonicalCodes(fixedLitLenLengths())
	for _, b := range payload {
		writeSymbol(w, codes, int(b))
	}
	writeSymbol(w, codes, 256) // end-of-block
	return w.bytes()
}

// encodeDynamicLiteralBlock builds a single final BTYPE=10 block that
// declares, via a full dynamic header, exactly the same literal/length
// code lengths as the static alphabet (RFC 1951 never requires a
// dynamic block's codes to differ from the fixed ones, only that they
// are valid) and a single zero-length distance code (RFC 1951 §3.2.7:
// a block with no back-references). Since the literal/length codes
// are bit-for-bit identical to encodeStaticLiteralBlock's, any
// difference in decoded output between the two can only come from the
// BTYPE/header handling, not from the literal coding itself.
func encodeDynamicLiteralBlock(payload []byte) []byte {
	w := &bitWriter{}
	w.writeBits(1, 1) // BFINAL
	w.writeBits(2, 2) // BTYPE=10 (dynamic)

	const hlit = 288 - 257
	const hdist = 1 - 1
	w.writeBits(hlit, 5)
	w.writeBits(hdist, 5)

	// Code-length alphabet: only values 0 (the distance placeholder),
	// 7, 8, and 9 (the literal/length lengths) ever appear, so a
	// 4-symbol, all-length-2 code suffices; no repeat codes (16/17/18)
	// are used.
	var clLens [19]uint8
	clLens[0] = 2
	clLens[7] = 2
	clLens[8] = 2
	clLens[9] = 2
	clCodes := canonicalCodes(clLens[:])

	// codeLengthOrder must reach index 9 (value 9's position) before
	// hclen may stop; positions 0..6 of the standard order cover
	// values 16,17,18,0,8,7,9, which is enough.
	hclen := 7
	w.writeBits(uint32(hclen-4), 4)
	for i := 0; i < hclen; i++ {
		w.writeBits(uint32(clLens[codeLengthOrder[i]]), 3)
	}

	litLens := fixedLitLenLengths()
	for _, l := range litLens {
		writeSymbol(w, clCodes, int(l))
	}
	writeSymbol(w, clCodes, 0) // the single distance code's length

	codes := canonicalCodes(litLens)
	for _, b := range payload {
		writeSymbol(w, codes, int(b))
	}
	writeSymbol(w, codes, 256)
	return w.bytes()
}

// TestStaticAndDynamicEncodingsAgree is testable property 4: for any
// payload, both a static-only and a dynamic-only encoding of it decode
// to the same bytes.
func TestStaticAndDynamicEncodingsAgree(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte("A"),
		[]byte("Hello, world!"),
		bytes.Repeat([]byte{0x00, 0xFF, 0x7F}, 100),
	}
	for _, payload := range payloads {
		static := New(bytes.NewReader(encodeStaticLiteralBlock(payload)), nil, nil)
		gotStatic := drainAll(t, static)
		if !bytes.Equal(gotStatic, payload) {
			t.Errorf("static encoding of %q decoded to %q", payload, gotStatic)
		}

		dynamic := New(bytes.NewReader(encodeDynamicLiteralBlock(payload)), nil, nil)
		gotDynamic := drainAll(t, dynamic)
		if !bytes.Equal(gotDynamic, payload) {
			t.Errorf("dynamic encoding of %q decoded to %q", payload, gotDynamic)
		}

		if !bytes.Equal(gotStatic, gotDynamic) {
			t.Errorf("static/dynamic disagreement for payload %q: %q vs %q", payload, gotStatic, gotDynamic)
		}
	}
}
