// Package bitscan implements the bitscan engine (C3): threshold-counting
// over a query by folding compressed-bitmap chunks through a saturating
// carry-save accumulator tree, parameterised by the query threshold.
package bitscan

import (
	"math/bits"

	"github.com/pkg/errors"

	"github.com/fastscancount/go-scancount/internal/accum"
	"github.com/fastscancount/go-scancount/internal/bitmap"
	"github.com/fastscancount/go-scancount/internal/wordops"
)

// MaxThreshold bounds the query threshold: 0 <= t < MaxThreshold. This is
// the dispatch table size from the source's template-instantiated
// specialisations, kept here as a small runtime-computed bit width instead
// of a compile-time table of specialisations per t.
const MaxThreshold = 11

// PassSize is the number of chunks processed together before accumulators
// are reset and hits are emitted (P in the design notes).
const PassSize = 128

// ErrThresholdTooLarge is returned when a query's threshold is out of range.
var ErrThresholdTooLarge = errors.Errorf("bitscan: threshold must be < %d", MaxThreshold)

// ErrInvalidListIndex is returned when a query names a list outside the
// corpus.
var ErrInvalidListIndex = errors.New("bitscan: list index out of range")

// Corpus is the pre-built, immutable set of compressed bitmaps for every
// posting list, sharing one chunk count so lists can be folded together.
type Corpus struct {
	bitmaps    []*bitmap.Bitmap
	chunkCount int
}

// Build constructs a Corpus from sorted, deduplicated posting lists. Every
// bitmap is built against the same corpus-wide largest value so their
// chunk counts line up.
func Build(lists [][]uint32) (*Corpus, error) {
	var largest int64 = -1
	for _, list := range lists {
		if len(list) == 0 {
			return nil, bitmap.ErrEmptyList
		}
		if v := int64(list[len(list)-1]); v > largest {
			largest = v
		}
	}

	bitmaps := make([]*bitmap.Bitmap, len(lists))
	for i, list := range lists {
		bm, err := bitmap.New(list, largest)
		if err != nil {
			return nil, errors.Wrapf(err, "bitscan: building bitmap for list %d", i)
		}
		bitmaps[i] = bm
	}

	chunkCount := 0
	if len(bitmaps) > 0 {
		chunkCount = bitmaps[0].ChunkCount()
	}
	return &Corpus{bitmaps: bitmaps, chunkCount: chunkCount}, nil
}

// ChunkCount returns the shared chunk count across every bitmap in the
// corpus.
func (c *Corpus) ChunkCount() int { return c.chunkCount }

// NumLists returns the number of posting lists in the corpus.
func (c *Corpus) NumLists() int { return len(c.bitmaps) }

// ByteSize returns the total encoded size of every bitmap in the corpus,
// in bytes.
func (c *Corpus) ByteSize() int {
	total := 0
	for _, bm := range c.bitmaps {
		total += bm.ByteSize()
	}
	return total
}

// bitsNeeded returns B = ceil(log2(t+1)), the minimal counter width whose
// 2^B distinguishes every count in [0, t+1].
func bitsNeeded(t int) int {
	x := t + 1
	if x <= 1 {
		return 0
	}
	return bits.Len(uint(x - 1))
}

// Run evaluates the query (listIDs, threshold) against the corpus and
// appends every identifier occurring in strictly more than threshold of the
// named lists to out, in ascending order. out is caller-owned and is not
// cleared by Run.
func (c *Corpus) Run(listIDs []int, threshold int, out []uint32) ([]uint32, error) {
	if threshold < 0 || threshold >= MaxThreshold {
		return out, ErrThresholdTooLarge
	}
	for _, id := range listIDs {
		if id < 0 || id >= len(c.bitmaps) {
			return out, errors.Wrapf(ErrInvalidListIndex, "index %d (have %d lists)", id, len(c.bitmaps))
		}
	}
	if len(listIDs) == 0 || c.chunkCount == 0 {
		return out, nil
	}

	bms := make([]*bitmap.Bitmap, len(listIDs))
	cursors := make([]bitmap.Cursor, len(listIDs))
	for i, id := range listIDs {
		bms[i] = c.bitmaps[id]
	}

	b := bitsNeeded(threshold)
	bias := (1 << uint(b)) - threshold - 1
	traits := wordops.Traits{}

	for passStart := 0; passStart < c.chunkCount; passStart += PassSize {
		passLen := PassSize
		if rem := c.chunkCount - passStart; rem < passLen {
			passLen = rem
		}

		accums := make([]*accum.Accumulator[wordops.Word], passLen)
		for i := range accums {
			accums[i] = accum.New[wordops.Word](b, traits, bias)
		}

		li := 0
		for ; li+8 <= len(bms); li += 8 {
			for ch := 0; ch < passLen; ch++ {
				var words [8]wordops.Word
				for k := 0; k < 8; k++ {
					w, err := bms[li+k].Expand(passStart+ch, &cursors[li+k])
					if err != nil {
						return out, errors.Wrapf(err, "bitscan: expanding list %d chunk %d", listIDs[li+k], passStart+ch)
					}
					words[k] = w
				}
				accums[ch].Accept8(words[0], words[1], words[2], words[3], words[4], words[5], words[6], words[7])
			}
		}
		for ; li < len(bms); li++ {
			for ch := 0; ch < passLen; ch++ {
				w, err := bms[li].Expand(passStart+ch, &cursors[li])
				if err != nil {
					return out, errors.Wrapf(err, "bitscan: expanding list %d chunk %d", listIDs[li], passStart+ch)
				}
				accums[ch].Accept(w)
			}
		}

		for ch := 0; ch < passLen; ch++ {
			sat := accums[ch].GetSaturated()
			base := uint32(passStart+ch) * bitmap.ChunkBits
			for pos := sat.NextSet(0); pos != -1; pos = sat.NextSet(pos + 1) {
				out = append(out, base+uint32(pos))
			}
		}
	}

	return out, nil
}
