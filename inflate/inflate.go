// Package inflate implements the RFC 1951 DEFLATE block state machine:
// it drives bit input, Huffman table construction, and the sliding
// window to turn a compressed byte producer into a decoded one, one
// byte per pull.
package inflate

import (
	"io"

	"github.com/pullflate/pullflate/bitio"
	"github.com/pullflate/pullflate/capnslog"
	"github.com/pullflate/pullflate/huffman"
	"github.com/pullflate/pullflate/window"
)

var plog = capnslog.NewPackageLogger("github.com/pullflate/pullflate", "inflate")

// CorruptInputError reports a DEFLATE stream that violates RFC 1951:
// an invalid block type, a stored-block length mismatch, a dynamic
// header that omits the end-of-block code, an out-of-range repeat
// code, or a literal/length or distance symbol outside its alphabet.
type CorruptInputError string

func (e CorruptInputError) Error() string { return "inflate: " + string(e) }

var (
	ErrInvalidBlockType         = CorruptInputError("invalid block type (BTYPE 3)")
	ErrInvalidStoredBlockLength = CorruptInputError("stored block LEN is not one's complement of NLEN")
	ErrMissingEndOfBlock        = CorruptInputError("dynamic header: literal/length table has no end-of-block code")
	ErrInvalidRepeatCode        = CorruptInputError("dynamic header: invalid or overrunning repeat code")
	ErrGenericInvalidData       = CorruptInputError("literal/length or distance symbol out of range")
)

type blockState int

const (
	readingFinalBit blockState = iota
	readingBlockType
	readingStored
	readingStatic
	readingDynamic
	decodingBlock
	done
)

// RFC 1951 §3.2.5 length/distance tables.
var (
	extraLengthBits = [29]uint{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0}
	lengthBase      = [29]int{3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31, 35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258}
	distanceBase    = [30]int{1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193, 257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577}
	codeLengthOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}
)

// ChecksumFunc is invoked exactly once, when the final block's
// end-of-block has been consumed and the window fully drained. It
// receives the engine's bit reader (so it can pull trailing bytes in
// stream order, picking up wherever bit-level buffering left off) and
// the Adler-32 computed over every byte the engine produced.
type ChecksumFunc func(br *bitio.Reader, computed uint32) error

// Engine is the DEFLATE decoder. Construct one per stream with New;
// pull decoded bytes one at a time with Next.
type Engine struct {
	br         *bitio.Reader
	win        *window.Window
	sum        adler32Digest
	onDone     ChecksumFunc
	state      blockState
	final      bool
	litlen     *huffman.Table
	dist       *huffman.Table // nil: either static (use distStatic) or no-distance-codes block
	distStatic bool
	rawPending int
	err        error
}

// adler32Digest is the minimal surface Engine needs from an Adler-32
// accumulator; satisfied by *adler32.Digest. Kept narrow here so this
// package does not need to import adler32 just to name its type in a
// field declaration used only internally.
type adler32Digest interface {
	window.Checksummer
	Sum32() uint32
}

// New constructs an engine pulling compressed bits from r. sum may be
// nil (no checksum tracked, for raw DEFLATE with no framing). onDone
// may be nil or a callback invoked once at end-of-stream with the
// running Adler-32 (0 when sum is nil).
func New(r io.ByteReader, sum adler32Digest, onDone ChecksumFunc) *Engine {
	var cs window.Checksummer
	if sum != nil {
		cs = sum
	}
	return &Engine{
		br:     bitio.New(r),
		win:    window.New(cs),
		sum:    sum,
		onDone: onDone,
		state:  readingFinalBit,
	}
}

// Next returns the next decoded byte, or ok=false once the stream is
// exhausted. Once Next returns a non-nil error, every subsequent call
// returns that same error.
func (e *Engine) Next() (byte, bool, error) {
	if e.err != nil {
		return 0, false, e.err
	}
	for {
		if e.win.Pending() > 0 {
			return e.win.Take(), true, nil
		}
		if e.rawPending > 0 {
			if err := e.br.Require(8); err != nil {
				return e.fail(err)
			}
			b := byte(e.br.Get(8))
			e.win.PutLiteral(b)
			e.rawPending--
			if e.rawPending == 0 {
				e.blockComplete()
			}
			// b is now queued in the window; the Take at the top of the
			// loop hands it out, so it is emitted exactly once.
			continue
		}
		if e.state == done {
			if e.onDone != nil {
				cb := e.onDone
				e.onDone = nil
				var computed uint32
				if e.sum != nil {
					computed = e.sum.Sum32()
				}
				if err := cb(e.br, computed); err != nil {
					return e.fail(err)
				}
			}
			return 0, false, nil
		}
		if err := e.step(); err != nil {
			return e.fail(err)
		}
	}
}

func (e *Engine) fail(err error) (byte, bool, error) {
	e.err = err
	return 0, false, err
}

// blockComplete transitions out of a block whose end has just been
// reached, either by exhausting a stored block's raw_pending count or
// by decoding a Huffman end-of-block symbol.
func (e *Engine) blockComplete() {
	if e.final {
		e.state = done
		return
	}
	e.state = readingFinalBit
}

func (e *Engine) step() error {
	switch e.state {
	case readingFinalBit:
		if err := e.br.Require(1); err != nil {
			return err
		}
		e.final = e.br.Get(1) != 0
		e.state = readingBlockType
	case readingBlockType:
		if err := e.br.Require(2); err != nil {
			return err
		}
		switch e.br.Get(2) {
		case 0:
			e.state = readingStored
		case 1:
			e.state = readingStatic
		case 2:
			e.state = readingDynamic
		default:
			return ErrInvalidBlockType
		}
	case readingStored:
		return e.readStoredHeader()
	case readingStatic:
		e.litlen = huffman.FixedLiteralLengthTable()
		e.dist = nil
		e.distStatic = true
		e.state = decodingBlock
	case readingDynamic:
		if err := e.readDynamicHeader(); err != nil {
			return err
		}
		e.distStatic = false
		e.state = decodingBlock
	case decodingBlock:
		return e.decodeSymbols()
	}
	return nil
}

func (e *Engine) readStoredHeader() error {
	e.br.SkipToByteBoundary()
	if err := e.br.Require(32); err != nil {
		return err
	}
	length := e.br.Get(16)
	nlen := e.br.Get(16)
	if length != (^nlen)&0xFFFF {
		return ErrInvalidStoredBlockLength
	}
	e.rawPending = int(length)
	if e.rawPending == 0 {
		e.blockComplete()
	}
	// else: state stays readingStored; Next's raw_pending branch drains
	// it and calls blockComplete itself once the count reaches zero.
	return nil
}

// decodeSymbols decodes literal/length and length/distance symbols
// into the window until either an end-of-block symbol is seen or free
// space drops to window.MaxCopy, at which point control returns to
// Next so the caller can drain the window before more is decoded.
func (e *Engine) decodeSymbols() error {
	for e.win.Free() > window.MaxCopy {
		sym, err := e.litlen.NextSymbol(e.br)
		if err != nil {
			return err
		}
		switch {
		case sym < 256:
			e.win.PutLiteral(byte(sym))
		case sym == 256:
			e.blockComplete()
			return nil
		case sym <= 285:
			length, err := e.matchLength(sym)
			if err != nil {
				return err
			}
			d, err := e.decodeDistanceSymbol()
			if err != nil {
				return err
			}
			distance, err := e.matchDistance(d)
			if err != nil {
				return err
			}
			e.win.PutCopy(length, distance)
		default:
			return ErrGenericInvalidData
		}
	}
	return nil
}

func (e *Engine) matchLength(sym int) (int, error) {
	idx := sym - 257
	extra := extraLengthBits[idx]
	if extra == 0 {
		return lengthBase[idx], nil
	}
	if err := e.br.Require(extra); err != nil {
		return 0, err
	}
	return lengthBase[idx] + int(e.br.Get(extra)), nil
}

func (e *Engine) decodeDistanceSymbol() (int, error) {
	if e.distStatic {
		if err := e.br.Require(5); err != nil {
			return 0, err
		}
		return huffman.StaticDistanceReverse(e.br.Get(5)), nil
	}
	if e.dist == nil {
		return 0, ErrGenericInvalidData
	}
	return e.dist.NextSymbol(e.br)
}

func (e *Engine) matchDistance(d int) (int, error) {
	if d <= 3 {
		return d + 1, nil
	}
	if d < 0 || d > 29 {
		return 0, ErrGenericInvalidData
	}
	extra := uint(d-2) >> 1
	if extra == 0 {
		return distanceBase[d], nil
	}
	if err := e.br.Require(extra); err != nil {
		return 0, err
	}
	return distanceBase[d] + int(e.br.Get(extra)), nil
}

// readDynamicHeader implements spec's §4.5: decode HLIT/HDIST/HCLEN,
// the code-length alphabet, then the literal/length and distance code
// lengths themselves, and build both tables.
func (e *Engine) readDynamicHeader() error {
	if err := e.br.Require(14); err != nil {
		return err
	}
	hlit := int(e.br.Get(5)) + 257
	hdist := int(e.br.Get(5)) + 1
	hclen := int(e.br.Get(4)) + 4

	var clLens [19]uint8
	for i := 0; i < hclen; i++ {
		if err := e.br.Require(3); err != nil {
			return err
		}
		clLens[codeLengthOrder[i]] = uint8(e.br.Get(3))
	}
	clTable, err := huffman.New(clLens[:], 7)
	if err != nil {
		return err
	}

	total := hlit + hdist
	codeList := make([]uint8, 0, total)
	for len(codeList) < total {
		sym, err := clTable.NextSymbol(e.br)
		if err != nil {
			return err
		}
		switch {
		case sym <= 15:
			codeList = append(codeList, uint8(sym))
		case sym == 16:
			if len(codeList) == 0 {
				return ErrInvalidRepeatCode
			}
			if err := e.br.Require(2); err != nil {
				return err
			}
			n := int(e.br.Get(2)) + 3
			if len(codeList)+n > total {
				return ErrInvalidRepeatCode
			}
			prev := codeList[len(codeList)-1]
			for i := 0; i < n; i++ {
				codeList = append(codeList, prev)
			}
		case sym == 17:
			if err := e.br.Require(3); err != nil {
				return err
			}
			n := int(e.br.Get(3)) + 3
			if len(codeList)+n > total {
				return ErrInvalidRepeatCode
			}
			codeList = append(codeList, make([]uint8, n)...)
		case sym == 18:
			if err := e.br.Require(7); err != nil {
				return err
			}
			n := int(e.br.Get(7)) + 11
			if len(codeList)+n > total {
				return ErrInvalidRepeatCode
			}
			codeList = append(codeList, make([]uint8, n)...)
		default:
			return ErrGenericInvalidData
		}
	}

	litLens := make([]uint8, 288)
	copy(litLens, codeList[:hlit])
	if litLens[256] == 0 {
		return ErrMissingEndOfBlock
	}
	litTable, err := huffman.New(litLens, 9)
	if err != nil {
		return err
	}

	distLens := make([]uint8, 32)
	copy(distLens, codeList[hlit:hlit+hdist])
	// RFC 1951 §3.2.7: a single distance code of length 0 means the
	// block contains no back-references at all; huffman.New would
	// reject an all-absent alphabet, so that legal case is handled
	// here instead of inside table construction.
	var distTable *huffman.Table
	if anyNonZero(distLens) {
		distTable, err = huffman.New(distLens, 7)
		if err != nil {
			return err
		}
	}

	e.litlen = litTable
	e.dist = distTable
	plog.Debugf("dynamic header: hlit=%d hdist=%d hclen=%d", hlit, hdist, hclen)
	return nil
}

func anyNonZero(lens []uint8) bool {
	for _, l := range lens {
		if l != 0 {
			return true
		}
	}
	return false
}

// AsReader adapts an Engine to io.Reader for callers that want ordinary
// bulk reads instead of the one-byte pull contract, the same role the
// teacher's Decompressor.Read plays over its own ToRead buffer.
type AsReader struct {
	e *Engine
}

// NewReader wraps e as an io.Reader.
func NewReader(e *Engine) *AsReader {
	return &AsReader{e: e}
}

func (r *AsReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := 0
	for n < len(p) {
		b, ok, err := r.e.Next()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		if !ok {
			if n > 0 {
				return n, nil
			}
			return 0, io.EOF
		}
		p[n] = b
		n++
	}
	return n, nil
}
