package flate

import (
	"github.com/shitpoet/ungz/internal/bitreader"
	"github.com/shitpoet/ungz/internal/huffman"
)

// Decompressor holds the state a full DEFLATE stream decode needs: the bit
// cursor and the output window. Trees are scoped to a single block and never
// stored on the Decompressor itself (spec.md §3, "Lifecycle").
//
// A Decompressor is not safe for concurrent use (spec.md §5); construct one
// per stream with NewDecompressor.
type Decompressor struct {
	br *bitreader.Reader
	w  *window
}

// NewDecompressor wraps payload — the DEFLATE byte stream, with any
// container framing (e.g. the gzip header) already stripped — for decoding.
// sizeHint, if nonzero, is used only to presize the output window.
func NewDecompressor(payload []byte, sizeHint int) *Decompressor {
	return &Decompressor{
		br: bitreader.New(payload),
		w:  newWindow(sizeHint),
	}
}

// Decode runs the block dispatcher (spec.md §4.6) to completion: for each
// DEFLATE block, read the 3-bit header and route to stored/fixed/dynamic
// decoding, until the block with last=1 finishes. It returns the fully
// decoded byte stream.
func (d *Decompressor) Decode() ([]byte, error) {
	for {
		last, err := d.br.ReadBit()
		if err != nil {
			return nil, err
		}
		typ, err := d.br.ReadBitsLSB(2)
		if err != nil {
			return nil, err
		}

		switch typ {
		case 0:
			if err := d.storedBlock(); err != nil {
				return nil, err
			}
		case 1:
			lit, err := fixedLiteralTree()
			if err != nil {
				return nil, err
			}
			if err := d.huffmanBlock(lit, nil); err != nil {
				return nil, err
			}
		case 2:
			lit, dist, err := readDynamicTrees(d.br)
			if err != nil {
				return nil, err
			}
			if err := d.huffmanBlock(lit, dist); err != nil {
				return nil, err
			}
		default: // 3
			return nil, corruptAt(d.br)
		}

		if last == 1 {
			return d.w.bytes(), nil
		}
	}
}

// BytesConsumed returns how many bytes of the input payload the block
// dispatcher has read so far, rounded up to the containing byte. Callers
// that strip an outer container (e.g. package gzip, locating the trailer
// that immediately follows the DEFLATE payload) use this after Decode
// returns rather than assuming the payload runs to the end of the buffer.
func (d *Decompressor) BytesConsumed() int {
	byteIdx, bitIdx := d.br.Pos()
	if bitIdx > 0 {
		return byteIdx + 1
	}
	return byteIdx
}

// storedBlock copies a type-00 block verbatim (spec.md §4.6): align to a
// byte boundary, read LEN then its ones'-complement NLEN, then copy LEN raw
// bytes. Per spec.md's "Open question — stored block I/O" resolution, the
// bytes are written into the sliding window (not just handed to the
// caller), so a later back-reference that spans a stored block sees them.
func (d *Decompressor) storedBlock() error {
	d.br.AlignToByte()

	lenBytes, err := d.br.ReadBytes(4)
	if err != nil {
		return err
	}
	n := int(lenBytes[0]) | int(lenBytes[1])<<8
	nn := int(lenBytes[2]) | int(lenBytes[3])<<8
	if uint16(nn) != uint16(^uint16(n)) {
		return corruptAt(d.br)
	}

	data, err := d.br.ReadBytes(n)
	if err != nil {
		return err
	}
	d.w.writeBytes(data)
	return nil
}

// huffmanBlock runs the block inflater (spec.md §4.5): walk lit one bit at a
// time until a leaf is reached, emit literals, expand back-references via
// dist (or the fixed 5-bit raw distance when dist is nil), and stop at the
// end-of-block symbol.
func (d *Decompressor) huffmanBlock(lit, dist *huffman.Tree) error {
	for {
		sym, err := lit.Decode(d.br)
		if err != nil {
			return err
		}

		switch {
		case sym < 256:
			d.w.writeByte(byte(sym))
			continue
		case sym == endBlockMarker:
			return nil
		case sym > maxNumLit-1:
			return corruptAt(d.br)
		}

		length, err := d.decodeLength(sym)
		if err != nil {
			return err
		}
		distance, err := d.decodeDistance(dist)
		if err != nil {
			return err
		}
		if distance < 1 || distance > d.w.size() {
			return corruptAt(d.br)
		}
		d.w.copyBackref(distance, length)
	}
}

// decodeLength implements the length table in spec.md §4.5 for a
// literal/length symbol in 257..285.
func (d *Decompressor) decodeLength(sym int) (int, error) {
	switch {
	case sym <= 264:
		return sym - 254, nil
	case sym == 285:
		return 258, nil
	case sym <= 284:
		extraBits := (sym - 261) / 4
		extra, err := d.br.ReadBitsLSB(extraBits)
		if err != nil {
			return 0, err
		}
		return lengthBase[sym-265] + int(extra), nil
	default:
		return 0, InternalError("literal/length symbol outside the back-reference range")
	}
}

// decodeDistance implements the distance table in spec.md §4.5. When dist is
// nil (a fixed block), the 5-bit raw code is read MSB-first per §4.3.
func (d *Decompressor) decodeDistance(dist *huffman.Tree) (int, error) {
	var sym int
	if dist == nil {
		v, err := d.br.ReadBitsMSB(5)
		if err != nil {
			return 0, err
		}
		sym = int(v)
	} else {
		s, err := dist.Decode(d.br)
		if err != nil {
			return 0, err
		}
		sym = s
	}

	switch {
	case sym >= 30: // symbols 30 and 31 are reserved and must never appear
		return 0, corruptAt(d.br)
	case sym < 4:
		return sym + 1, nil
	default:
		extraBits := (sym - 2) / 2
		extra, err := d.br.ReadBitsLSB(extraBits)
		if err != nil {
			return 0, err
		}
		return distBase[sym-4] + int(extra), nil
	}
}
