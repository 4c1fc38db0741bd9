// Package bitmap implements the compressed-bitmap representation (C2): a
// two-level (control-mask + packed-element) encoding of a single sorted,
// deduplicated posting list, with O(popcount) random-access chunk
// expansion to a dense 512-bit word.
package bitmap

import (
	"math/bits"

	"github.com/pkg/errors"

	"github.com/fastscancount/go-scancount/internal/wordops"
)

// ChunkBits is the width of one chunk: the unit the bitscan engine folds
// through its accumulator tree.
const ChunkBits = wordops.Bits // 512

// SubChunkBits is the width of one control-bit's worth of elements: for a
// uint16 control word over 512 bits, 16 sub-chunks of 32 bits each.
const SubChunkBits = 32

const subChunksPerChunk = ChunkBits / SubChunkBits // 16

// elementCushion is the number of trailing unused element slots reserved so
// a 64-byte-wide expand never reads past the backing array.
const elementCushion = 64 / 4 // sizeof(uint32) == 4

// ErrEmptyList is returned by New when asked to build a bitmap from an
// empty posting list.
var ErrEmptyList = errors.New("bitmap: posting list must not be empty")

// Bitmap is the compressed-bitmap encoding of one posting list.
type Bitmap struct {
	control  []uint16 // one per chunk; bit k set iff sub-chunk k is nonzero
	elements []uint32 // packed nonzero sub-chunk values, chunk-then-subchunk order
}

// New builds a compressed bitmap from a sorted, strictly increasing,
// non-empty list of identifiers. If largest is non-negative it fixes the
// chunk count (so bitmaps built against the same corpus line up); otherwise
// the list's own last element is used.
func New(sorted []uint32, largest int64) (*Bitmap, error) {
	if len(sorted) == 0 {
		return nil, ErrEmptyList
	}
	if largest < 0 {
		largest = int64(sorted[len(sorted)-1])
	}

	chunkCount := int(largest/ChunkBits) + 1
	bm := &Bitmap{
		control:  make([]uint16, chunkCount),
		elements: make([]uint32, 0, len(sorted)+elementCushion),
	}

	i := 0
	for c := 0; c < chunkCount; c++ {
		lower := uint32(c) * ChunkBits
		upper := lower + ChunkBits

		var chunk wordops.Word
		for i < len(sorted) && sorted[i] < upper {
			if sorted[i] < lower {
				return nil, errors.Errorf("bitmap: value %d out of order for chunk starting at %d", sorted[i], lower)
			}
			chunk.SetBit(int(sorted[i] - lower))
			i++
		}

		var controlWord uint16
		for sub := 0; sub < subChunksPerChunk; sub++ {
			word := subChunkValue(chunk, sub)
			if word != 0 {
				bm.elements = append(bm.elements, word)
				controlWord |= 1 << uint(sub)
			}
		}
		bm.control[c] = controlWord
	}

	// trailing cushion so a fixed-width expand never reads out of bounds
	bm.elements = bm.elements[:len(bm.elements):cap(bm.elements)]
	return bm, nil
}

func subChunkValue(chunk wordops.Word, sub int) uint32 {
	base := sub * SubChunkBits
	lane := chunk[base/64]
	shift := uint(base % 64)
	return uint32(lane >> shift)
}

// ChunkCount returns the number of chunks (including any all-zero trailing
// chunks implied by a shared corpus-wide largest value).
func (b *Bitmap) ChunkCount() int { return len(b.control) }

// ByteSize returns the encoded size in bytes, ignoring slice header
// overhead: 2 bytes per control word plus 4 bytes per stored element.
func (b *Bitmap) ByteSize() int {
	return len(b.control)*2 + len(b.elements)*4
}

// Cursor tracks the read position into the elements array across successive
// calls to Expand; reusing one across a whole corpus scan lets every
// expansion advance the same backing slice instead of recomputing an
// offset from popcounts each time.
type Cursor struct{ pos int }

// Expand decodes chunk idx into a dense 512-bit word, advancing cur past
// the elements it consumed. Runs in O(popcount(control[idx])).
func (b *Bitmap) Expand(idx int, cur *Cursor) (wordops.Word, error) {
	if idx < 0 || idx >= len(b.control) {
		return wordops.Word{}, errors.Errorf("bitmap: chunk index %d out of range [0,%d)", idx, len(b.control))
	}
	if cur.pos < 0 || cur.pos > len(b.elements) {
		return wordops.Word{}, errors.Errorf("bitmap: cursor %d out of range [0,%d]", cur.pos, len(b.elements))
	}

	var chunk wordops.Word
	c := b.control[idx]
	for c != 0 {
		sub := bits.TrailingZeros16(c)
		if cur.pos >= len(b.elements) {
			return wordops.Word{}, errors.New("bitmap: element cursor ran past end of elements array")
		}
		elem := b.elements[cur.pos]
		cur.pos++
		if elem == 0 {
			return wordops.Word{}, errors.New("bitmap: stored element must not be zero")
		}
		base := sub * SubChunkBits
		for elem != 0 {
			bit := bits.TrailingZeros32(elem)
			chunk.SetBit(base + bit)
			elem &= elem - 1
		}
		c &= c - 1
	}
	return chunk, nil
}

// Chunks decodes every chunk in order. Convenience wrapper over repeated
// Expand, used by Indices; the bitscan engine calls Expand directly.
func (b *Bitmap) Chunks() ([]wordops.Word, error) {
	out := make([]wordops.Word, len(b.control))
	var cur Cursor
	for i := range out {
		chunk, err := b.Expand(i, &cur)
		if err != nil {
			return nil, err
		}
		out[i] = chunk
	}
	return out, nil
}

// Indices reconstructs the complete sorted identifier list by walking every
// chunk. Not the fast path — intended for round-trip tests.
func (b *Bitmap) Indices() ([]uint32, error) {
	chunks, err := b.Chunks()
	if err != nil {
		return nil, err
	}
	var ret []uint32
	for c, chunk := range chunks {
		base := uint32(c) * ChunkBits
		for pos := chunk.NextSet(0); pos != -1; pos = chunk.NextSet(pos + 1) {
			ret = append(ret, base+uint32(pos))
		}
	}
	return ret, nil
}
