package gzip

import (
	"bytes"
	ogzip "compress/gzip"
	"testing"

	"github.com/stretchr/testify/require"
)

func hexBytes(t *testing.T, hex string) []byte {
	t.Helper()
	b, err := decodeHex(hex)
	require.NoError(t, err)
	return b
}

func decodeHex(s string) ([]byte, error) {
	var out []byte
	var hi byte
	have := false
	for _, c := range s {
		if c == ' ' || c == '\n' || c == '\t' {
			continue
		}
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = byte(c - '0')
		case c >= 'a' && c <= 'f':
			v = byte(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v = byte(c-'A') + 10
		}
		if !have {
			hi = v
			have = true
		} else {
			out = append(out, hi<<4|v)
			have = false
		}
	}
	return out, nil
}

// TestScenario1EmptyInput is spec.md §8 scenario 1.
func TestScenario1EmptyInput(t *testing.T) {
	in := hexBytes(t, "1f 8b 08 00 00 00 00 00 00 03 03 00 00 00 00 00 00 00 00 00")
	got, _, err := Decode(in)
	require.NoError(t, err)
	require.Empty(t, got)
}

// TestScenario2ABC is spec.md §8 scenario 2.
func TestScenario2ABC(t *testing.T) {
	in := hexBytes(t, "1f 8b 08 00 00 00 00 00 00 03 4b 4c 4a 06 00 c2 41 24 35 03 00 00 00")
	got, _, err := Decode(in)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
}

// TestScenario3SelfOverlap is spec.md §8 scenario 3: a fixed block holding
// the literal 'a' followed by a distance=1, length=5 back-reference.
func TestScenario3SelfOverlap(t *testing.T) {
	in := hexBytes(t, "1f 8b 08 00 00 00 00 00 00 03 4b 04 03 00 f8 19 e4 5a 06 00 00 00")
	got, _, err := Decode(in)
	require.NoError(t, err)
	require.Equal(t, []byte("aaaaaa"), got)
}

// TestScenario4RepeatedPattern is spec.md §8 scenario 4: a fixed block
// holding "abc" followed by a distance=3, length=9 back-reference.
func TestScenario4RepeatedPattern(t *testing.T) {
	in := hexBytes(t, "1f 8b 08 00 00 00 00 00 00 03 4a 4c 4a 86 23 c0 00 34 2a 6e 5a 0c 00 00 00")
	got, _, err := Decode(in)
	require.NoError(t, err)
	require.Equal(t, []byte("abcabcabcabc"), got)
}

// TestScenario5LargeDynamicBlock is spec.md §8 scenario 5: 1024 bytes of
// 0x00..0xFF repeated four times, forcing a dynamic Huffman block.
func TestScenario5LargeDynamicBlock(t *testing.T) {
	data := make([]byte, 0, 1024)
	for i := 0; i < 4; i++ {
		for v := 0; v < 256; v++ {
			data = append(data, byte(v))
		}
	}
	in := gzipOf(t, data)
	got, _, err := Decode(in)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

// TestScenario6ReservedBlockTypeFails is spec.md §8 scenario 6: a valid gzip
// header followed by DEFLATE bytes whose first block header is type 11.
func TestScenario6ReservedBlockTypeFails(t *testing.T) {
	hdr := hexBytes(t, "1f 8b 08 00 00 00 00 00 00 03")
	body := []byte{0x07} // last=1, type=11
	in := append(append([]byte{}, hdr...), body...)

	_, _, err := Decode(in)
	require.Error(t, err)
}

func TestBadMagicIsFatal(t *testing.T) {
	_, _, err := Decode([]byte{0x00, 0x00, 0x08, 0, 0, 0, 0, 0, 0, 0})
	require.Error(t, err)
}

func TestUnknownFlagBitIsFatal(t *testing.T) {
	hdr := []byte{idByte1, idByte2, methodDeflate, 0x20, 0, 0, 0, 0, 0, 0} // bit 5 unknown
	_, _, err := Decode(hdr)
	require.Error(t, err)
}

func TestFNAMEAndFCOMMENTAreSkipped(t *testing.T) {
	var buf bytes.Buffer
	w, err := ogzip.NewWriterLevel(&buf, ogzip.BestCompression)
	require.NoError(t, err)
	w.Name = "example.txt"
	w.Comment = "a comment"
	_, err = w.Write([]byte("hello with header extras"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, _, err := Decode(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, []byte("hello with header extras"), got)
}

func TestTrailerMismatchIsFatal(t *testing.T) {
	in := gzipOf(t, []byte("trailer check"))
	// Flip a byte in the ISIZE trailer field.
	in[len(in)-1] ^= 0xff

	_, _, err := Decode(in)
	require.Error(t, err)
}

// gzipOf compresses data with the standard library's gzip writer so these
// tests exercise this package's decoder against a real, independent encoder.
func gzipOf(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := ogzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}
