// Package gzip implements the gzip container (RFC 1952) as the outer
// collaborator spec.md §1 explicitly scopes out of the DEFLATE core: header
// parsing, flag-driven optional-field skipping, and trailer verification.
// The DEFLATE payload itself is handed to internal/flate.
package gzip

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"github.com/shitpoet/ungz/internal/flate"
)

const (
	idByte1 = 0x1f
	idByte2 = 0x8b

	methodDeflate = 8

	flagFTEXT    = 1 << 0
	flagFHCRC    = 1 << 1
	flagFEXTRA   = 1 << 2
	flagFNAME    = 1 << 3
	flagFCOMMENT = 1 << 4

	knownFlags = flagFTEXT | flagFHCRC | flagFEXTRA | flagFNAME | flagFCOMMENT

	headerSize  = 10
	trailerSize = 8
)

// HeaderError reports a malformed gzip container: a bad magic number, an
// unsupported compression method, or flag bits outside the known set.
// Grounded on the teacher's sgzip/internal/flate CorruptInputError shape
// (a distinct named error type per failure class, not an opaque string),
// extended here for the container layer that package flate doesn't own.
type HeaderError string

func (e HeaderError) Error() string { return "gzip: " + string(e) }

// Trailer is the 8 bytes (CRC32 of the uncompressed data, ISIZE mod 2^32)
// that follow the DEFLATE payload. spec.md §1 treats these as optional to
// verify; SPEC_FULL.md's Open Question resolution has this package verify
// them and surface a mismatch as a fatal error, per original_source/ungz.c's
// fields that the reference parses but never checks.
type Trailer struct {
	CRC32 uint32
	ISIZE uint32
}

// ErrTrailerMismatch is returned when the stream decodes successfully but
// its CRC32 or ISIZE trailer disagrees with the decoded bytes.
var ErrTrailerMismatch = errors.New("gzip: trailer CRC32/ISIZE does not match decoded data")

// Decode consumes a complete gzip byte stream and returns the decompressed
// original bytes plus the parsed trailer. It is the Core entry point spec.md
// §6 describes: decode until the DEFLATE stream's final block completes,
// then return.
func Decode(b []byte) ([]byte, Trailer, error) {
	payload, headerEnd, err := stripHeader(b)
	if err != nil {
		return nil, Trailer{}, err
	}

	d := flate.NewDecompressor(payload, len(payload)*3)
	out, err := d.Decode()
	if err != nil {
		return nil, Trailer{}, err
	}

	trailerStart := headerEnd + d.BytesConsumed()
	trailer, err := readTrailer(b, trailerStart, out)
	if err != nil {
		return nil, Trailer{}, err
	}

	return out, trailer, nil
}

// stripHeader validates and skips the fixed 10-byte header plus any
// optional fields FEXTRA/FNAME/FCOMMENT/FHCRC select (spec.md §6), and
// returns the remaining DEFLATE payload along with the byte offset in b
// where that payload begins.
func stripHeader(b []byte) (payload []byte, headerEnd int, err error) {
	if len(b) < headerSize {
		return nil, 0, HeaderError("input shorter than a gzip header")
	}
	if b[0] != idByte1 || b[1] != idByte2 {
		return nil, 0, HeaderError("bad magic number")
	}
	if b[2] != methodDeflate {
		return nil, 0, HeaderError("unsupported compression method")
	}
	flags := b[3]
	// Header fields: FLG byte 3, MTIME bytes 4-7, XFL byte 8, OS byte 9.

	if flags&^byte(knownFlags) != 0 {
		return nil, 0, HeaderError("unknown flag bits set")
	}

	pos := headerSize

	if flags&flagFEXTRA != 0 {
		if pos+2 > len(b) {
			return nil, 0, HeaderError("truncated FEXTRA length")
		}
		xlen := int(binary.LittleEndian.Uint16(b[pos:]))
		pos += 2
		if pos+xlen > len(b) {
			return nil, 0, HeaderError("truncated FEXTRA field")
		}
		pos += xlen
	}

	if flags&flagFNAME != 0 {
		pos, err = skipNulTerminated(b, pos)
		if err != nil {
			return nil, 0, err
		}
	}

	if flags&flagFCOMMENT != 0 {
		pos, err = skipNulTerminated(b, pos)
		if err != nil {
			return nil, 0, err
		}
	}

	if flags&flagFHCRC != 0 {
		if pos+2 > len(b) {
			return nil, 0, HeaderError("truncated FHCRC field")
		}
		pos += 2
	}

	if pos > len(b) {
		return nil, 0, HeaderError("truncated header")
	}

	return b[pos:], pos, nil
}

func skipNulTerminated(b []byte, pos int) (int, error) {
	for i := pos; i < len(b); i++ {
		if b[i] == 0 {
			return i + 1, nil
		}
	}
	return 0, HeaderError("unterminated name/comment field")
}

// readTrailer reads the 8-byte trailer immediately following the DEFLATE
// payload (trailerStart) and verifies it against the decoded output. Any
// bytes in b beyond the trailer are trailing garbage, which spec.md §7
// treats as non-fatal.
func readTrailer(b []byte, trailerStart int, decoded []byte) (Trailer, error) {
	if len(b) < trailerStart+trailerSize {
		return Trailer{}, HeaderError("truncated trailer")
	}
	tail := b[trailerStart : trailerStart+trailerSize]
	tr := Trailer{
		CRC32: binary.LittleEndian.Uint32(tail[0:4]),
		ISIZE: binary.LittleEndian.Uint32(tail[4:8]),
	}

	gotCRC := crc32.ChecksumIEEE(decoded)
	gotSize := uint32(len(decoded))
	if gotCRC != tr.CRC32 || gotSize != tr.ISIZE {
		return tr, ErrTrailerMismatch
	}
	return tr, nil
}
