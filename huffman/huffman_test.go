package huffman

import (
	"bytes"
	"testing"

	"github.com/pullflate/pullflate/bitio"
)

func TestReverseInvolution(t *testing.T) {
	for n := uint(1); n <= 16; n++ {
		for x := uint32(0); x < 1<<n && x < 1<<12; x++ {
			got := Reverse(Reverse(x, n), n)
			if got != x {
				t.Fatalf("Reverse(Reverse(%#x, %d), %d) = %#x, want %#x", x, n, n, got, x)
			}
		}
	}
}

func TestNewRejectsOverfullTable(t *testing.T) {
	// three symbols all claiming length 1: only two length-1 codes exist.
	cl := []uint8{1, 1, 1}
	if _, err := New(cl, 2); err == nil {
		t.Error("expected an error for an overfull code table")
	}
}

func TestNewSingleSymbolAlphabet(t *testing.T) {
	cl := []uint8{0, 1}
	tbl, err := New(cl, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// symbol 1's only codeword is "0"; byte 0x00 supplies that bit.
	r := bitio.New(bytes.NewReader([]byte{0x00}))
	sym, err := tbl.NextSymbol(r)
	if err != nil {
		t.Fatalf("NextSymbol: %v", err)
	}
	if sym != 1 {
		t.Errorf("got symbol %d, want 1", sym)
	}
}

func TestNextSymbolRejectsUnusedCodeword(t *testing.T) {
	// same single-symbol alphabet as above, but "1" was never assigned
	// to any symbol; decoding it must fail cleanly rather than index
	// into the (empty) overflow tree.
	cl := []uint8{0, 1}
	tbl, err := New(cl, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := bitio.New(bytes.NewReader([]byte{0xFF}))
	if _, err := tbl.NextSymbol(r); err == nil {
		t.Fatal("expected an error decoding an unused codeword, got nil")
	}
}

func TestFixedLiteralLengthTableDecodesA(t *testing.T) {
	// S3 from the test scenarios: BFINAL=1, BTYPE=01 (static), one
	// literal 'A', then end-of-block.
	r := bitio.New(bytes.NewReader([]byte{0x73, 0x04, 0x00}))
	r.Get(3) // BFINAL + BTYPE, already covered by inflate's own tests

	tbl := FixedLiteralLengthTable()
	sym, err := tbl.NextSymbol(r)
	if err != nil {
		t.Fatalf("NextSymbol (literal): %v", err)
	}
	if sym != 'A' {
		t.Errorf("got symbol %d (%q), want 'A'", sym, rune(sym))
	}

	sym, err = tbl.NextSymbol(r)
	if err != nil {
		t.Fatalf("NextSymbol (end-of-block): %v", err)
	}
	if sym != 256 {
		t.Errorf("got symbol %d, want 256 (end-of-block)", sym)
	}
}

func TestStaticDistanceReverseInvolution(t *testing.T) {
	for d := 0; d < 32; d++ {
		w := Reverse(uint32(d), 5)
		if got := StaticDistanceReverse(w); got != d {
			t.Errorf("StaticDistanceReverse(Reverse(%d)) = %d, want %d", d, got, d)
		}
	}
}

func TestNextSymbolEndOfStream(t *testing.T) {
	cl := make([]uint8, 288)
	copy(cl, fixedLiteralLengthLengths())
	tbl, err := New(cl, 9)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := bitio.New(bytes.NewReader(nil))
	if _, err := tbl.NextSymbol(r); err != bitio.ErrEndOfStream {
		t.Errorf("NextSymbol on empty input: got %v, want bitio.ErrEndOfStream", err)
	}
}
