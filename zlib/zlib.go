// Package zlib implements the RFC 1950 ZLIB container: a 2-byte header
// in front of a DEFLATE stream, and a trailing big-endian Adler-32
// integrity check behind it.
package zlib

import (
	"fmt"
	"io"

	"github.com/pullflate/pullflate/adler32"
	"github.com/pullflate/pullflate/bitio"
	"github.com/pullflate/pullflate/capnslog"
	"github.com/pullflate/pullflate/inflate"
)

var plog = capnslog.NewPackageLogger("github.com/pullflate/pullflate", "zlib")

// HeaderError reports a ZLIB header that fails one of RFC 1950's fixed
// validity checks.
type HeaderError string

func (e HeaderError) Error() string { return "zlib: " + string(e) }

var (
	ErrUnsupportedZlibMethod  = HeaderError("unsupported compression method (CMF low nibble must be 8)")
	ErrInvalidZlibWindow      = HeaderError("invalid window size in CMF")
	ErrInvalidZlibHeaderCheck = HeaderError("(CMF*256+FLG) is not a multiple of 31")
	ErrUnsupportedPreset      = HeaderError("FDICT preset dictionary is not supported")
)

// AdlerMismatchError reports that the trailing Adler-32 in the stream
// does not match the checksum computed over the decoded output.
type AdlerMismatchError struct {
	Expected, Computed uint32
}

func (e *AdlerMismatchError) Error() string {
	return fmt.Sprintf("zlib: adler-32 mismatch: stream says %08x, computed %08x", e.Expected, e.Computed)
}

const fdictMask = 0x20

// Reader decodes a ZLIB stream: it validates the 2-byte header, drives
// an inflate.Engine over the DEFLATE payload, and verifies the
// trailing Adler-32 once the payload is fully decoded.
type Reader struct {
	engine *inflate.Engine
}

// NewReader validates r's ZLIB header and returns a Reader positioned
// to decode the DEFLATE payload that follows. r is consumed byte by
// byte throughout the Reader's lifetime; nothing is buffered ahead of
// what ZLIB framing and DEFLATE decoding actually need.
func NewReader(r io.ByteReader) (*Reader, error) {
	cmf, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	flg, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	if cmf&0x0F != 8 {
		return nil, ErrUnsupportedZlibMethod
	}
	if (cmf>>4)+8 > 15 {
		return nil, ErrInvalidZlibWindow
	}
	if (uint(cmf)*256+uint(flg))%31 != 0 {
		return nil, ErrInvalidZlibHeaderCheck
	}
	if flg&fdictMask != 0 {
		return nil, ErrUnsupportedPreset
	}

	sum := adler32.NewDigest()
	eng := inflate.New(r, sum, verifyTrailer)
	plog.Debugf("zlib header ok: cmf=%#02x flg=%#02x", cmf, flg)
	return &Reader{engine: eng}, nil
}

// verifyTrailer reads the 4 big-endian trailing Adler-32 bytes through
// br (picking up wherever the engine's bit buffering left off, which
// may already be byte-aligned or may need realigning first) and checks
// them against the computed checksum.
func verifyTrailer(br *bitio.Reader, computed uint32) error {
	br.SkipToByteBoundary()
	if err := br.Require(32); err != nil {
		return err
	}
	expected := get4be(br)
	if expected != computed {
		return &AdlerMismatchError{Expected: expected, Computed: computed}
	}
	return nil
}

// get4be assembles 4 already-buffered bytes from br into a big-endian
// uint32, the big-endian counterpart of a little-endian Get4 helper
// for gzip's CRC-32/ISIZE trailer.
func get4be(br *bitio.Reader) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v = v<<8 | br.Get(8)
	}
	return v
}

// Next returns the next decoded byte, or ok=false once the stream is
// exhausted and its Adler-32 has been verified.
func (z *Reader) Next() (byte, bool, error) {
	return z.engine.Next()
}

// AsReader adapts z to io.Reader for bulk reads.
func (z *Reader) AsReader() io.Reader {
	return inflate.NewReader(z.engine)
}
