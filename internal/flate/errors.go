package flate

import (
	"strconv"

	"github.com/shitpoet/ungz/internal/bitreader"
)

// CorruptInputError reports the presence of corrupt DEFLATE input at a given
// bit-stream byte offset. Grounded on the teacher's
// sgzip/internal/flate/inflate.go CorruptInputError, which carries the same
// byte-offset-as-error-value shape.
type CorruptInputError int64

func (e CorruptInputError) Error() string {
	return "flate: corrupt input before offset " + strconv.FormatInt(int64(e), 10)
}

// InternalError reports a bug in this package rather than a malformed input
// stream — a condition the decode loop believes can never occur.
type InternalError string

func (e InternalError) Error() string { return "flate: internal error: " + string(e) }

// corruptAt builds a CorruptInputError carrying br's current byte offset.
func corruptAt(br *bitreader.Reader) CorruptInputError {
	byteIdx, _ := br.Pos()
	return CorruptInputError(byteIdx)
}
