// Package flate implements the DEFLATE decompressor described in RFC 1951: a
// bit-level stream reader, canonical Huffman code trees built from compact
// length descriptions, a dynamic meta-tree for block-local trees, and LZ77
// back-reference expansion into a sliding output window.
//
// This is a decoder only — there is no compressor here, mirroring
// spec.md §1's scope (the encoder direction is explicitly out of scope).
package flate

const (
	endBlockMarker = 256

	maxNumLit  = 286 // symbols 286-287 are reserved and must never appear
	maxNumDist = 32
	numCodes   = 19 // symbols in the code-length meta-alphabet

	maxWindowDistance = 1 << 15 // DEFLATE's 32 KiB sliding window
)

// codeOrder is the fixed permutation RFC 1951 §3.2.7 uses to pack the 19
// code-length-code lengths into the dynamic block header.
var codeOrder = [numCodes]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// lengthBase holds the base lengths for length codes 265..284 (257..264 and
// 285 are special-cased in decodeLength, which also computes the extra-bit
// count from the symbol).
var lengthBase = [20]int{11, 13, 15, 17, 19, 23, 27, 31, 35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227}

// distBase holds the RFC 1951 §3.2.5 base distances for distance codes 4..29.
var distBase = [26]int{
	5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193, 257, 385, 513, 769,
	1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
}
