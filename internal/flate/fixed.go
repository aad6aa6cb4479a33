package flate

import (
	"sync"

	"github.com/shitpoet/ungz/internal/huffman"
)

// fixedLiteralLengths holds the static code lengths RFC 1951 §3.2.6 defines
// for block type 01: 0-143 get 8 bits, 144-255 get 9, 256-279 get 7, and
// 280-287 get 8. Built once and cached, the way the teacher's
// fixedHuffmanDecoderInit (guarded by sync.Once) does for its table-driven
// decoder.
var (
	fixedOnce    sync.Once
	fixedTree    *huffman.Tree
	fixedTreeErr error
)

func fixedLiteralTree() (*huffman.Tree, error) {
	fixedOnce.Do(func() {
		var lengths [288]uint8
		for i := 0; i < 144; i++ {
			lengths[i] = 8
		}
		for i := 144; i < 256; i++ {
			lengths[i] = 9
		}
		for i := 256; i < 280; i++ {
			lengths[i] = 7
		}
		for i := 280; i < 288; i++ {
			lengths[i] = 8
		}
		fixedTree, fixedTreeErr = huffman.Build(lengths[:])
	})
	return fixedTree, fixedTreeErr
}
