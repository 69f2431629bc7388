package zlib

import (
	"bytes"
	stdzlib "compress/zlib"
	"fmt"
	"io"
	"math/rand"
	"testing"
)

// pseudoRandomBytes returns n deterministically-generated bytes. The
// payload content doesn't matter here, only that it is reproducible
// and varied enough for compress/zlib's encoder to exercise its own
// full range of literal and back-reference coding.
func pseudoRandomBytes(n int, seed int64) []byte {
	b := make([]byte, n)
	rng := rand.New(rand.NewSource(seed))
	rng.Read(b)
	return b
}

// TestRoundTripAgainstReferenceEncoder is testable property 1: a
// compliant encoder's output, run back through this decoder, yields
// the original bytes exactly. compress/zlib is the trusted reference
// encoder; this also exercises property 5 (Adler-32 agreement), since
// a checksum mismatch against compress/zlib's own trailer would fail
// the decode with *AdlerMismatchError.
func TestRoundTripAgainstReferenceEncoder(t *testing.T) {
	lengths := []int{0, 1, 2, 3, 258, 259, 32767, 32768, 32769, 1 << 20}
	for _, n := range lengths {
		n := n
		t.Run(fmt.Sprintf("len=%d", n), func(t *testing.T) {
			want := pseudoRandomBytes(n, int64(n)+1)

			var encoded bytes.Buffer
			w := stdzlib.NewWriter(&encoded)
			if _, err := w.Write(want); err != nil {
				t.Fatalf("reference encoder Write: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("reference encoder Close: %v", err)
			}

			r, err := NewReader(bytes.NewReader(encoded.Bytes()))
			if err != nil {
				t.Fatalf("NewReader: %v", err)
			}
			got, err := io.ReadAll(r.AsReader())
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Fatalf("round trip mismatch for n=%d: got %d bytes, want %d", n, len(got), len(want))
			}
		})
	}
}
