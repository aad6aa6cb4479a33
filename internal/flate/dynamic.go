package flate

import (
	"github.com/shitpoet/ungz/internal/bitreader"
	"github.com/shitpoet/ungz/internal/huffman"
)

// readDynamicTrees decodes the meta-description at the start of a type-10
// block (RFC 1951 §3.2.7, spec.md §4.4) and materializes the block's
// literal/length and distance trees.
func readDynamicTrees(br *bitreader.Reader) (lit, dist *huffman.Tree, err error) {
	hlit, err := br.ReadBitsLSB(5)
	if err != nil {
		return nil, nil, err
	}
	nlit := int(hlit) + 257
	if nlit > maxNumLit {
		return nil, nil, corruptAt(br)
	}

	hdist, err := br.ReadBitsLSB(5)
	if err != nil {
		return nil, nil, err
	}
	ndist := int(hdist) + 1
	if ndist > maxNumDist {
		return nil, nil, corruptAt(br)
	}

	hclen, err := br.ReadBitsLSB(4)
	if err != nil {
		return nil, nil, err
	}
	nclen := int(hclen) + 4

	var codeLengths [numCodes]uint8
	for i := 0; i < nclen; i++ {
		v, err := br.ReadBitsLSB(3)
		if err != nil {
			return nil, nil, err
		}
		codeLengths[codeOrder[i]] = uint8(v)
	}
	// Positions codeOrder[nclen:] are left at their zero value: absent.

	metaTree, err := huffman.Build(codeLengths[:])
	if err != nil {
		return nil, nil, corruptAt(br)
	}

	total := nlit + ndist
	lengths := make([]uint8, total)
	prevLen := -1
	for i := 0; i < total; {
		sym, err := metaTree.Decode(br)
		if err != nil {
			return nil, nil, err
		}

		switch {
		case sym <= 15:
			lengths[i] = uint8(sym)
			prevLen = sym
			i++

		case sym == 16:
			if prevLen < 0 {
				return nil, nil, corruptAt(br)
			}
			n, err := br.ReadBitsLSB(2)
			if err != nil {
				return nil, nil, err
			}
			rep := int(n) + 3
			if i+rep > total {
				return nil, nil, corruptAt(br)
			}
			for j := 0; j < rep; j++ {
				lengths[i] = uint8(prevLen)
				i++
			}

		case sym == 17:
			n, err := br.ReadBitsLSB(3)
			if err != nil {
				return nil, nil, err
			}
			rep := int(n) + 3
			if i+rep > total {
				return nil, nil, corruptAt(br)
			}
			for j := 0; j < rep; j++ {
				lengths[i] = 0
				i++
			}
			prevLen = 0

		case sym == 18:
			n, err := br.ReadBitsLSB(7)
			if err != nil {
				return nil, nil, err
			}
			rep := int(n) + 11
			if i+rep > total {
				return nil, nil, corruptAt(br)
			}
			for j := 0; j < rep; j++ {
				lengths[i] = 0
				i++
			}
			prevLen = 0

		default:
			return nil, nil, InternalError("meta-tree produced a symbol outside 0..18")
		}
	}

	lit, err = huffman.Build(lengths[:nlit])
	if err != nil {
		return nil, nil, corruptAt(br)
	}
	dist, err = huffman.Build(lengths[nlit : nlit+ndist])
	if err != nil {
		return nil, nil, corruptAt(br)
	}
	return lit, dist, nil
}
