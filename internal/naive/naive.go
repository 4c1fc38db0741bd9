// Package naive implements the reference "naive scancount": a
// straightforward, unblocked, unvectorized counting pass used only as an
// independent correctness oracle for the bitscan and cache-blocked
// scancount engines. It shares no code with either and must stay that way.
package naive

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrInvalidListIndex is returned when a query names a list outside the
// corpus.
var ErrInvalidListIndex = errors.New("naive: list index out of range")

// Scancount counts, across the named lists, how many contain each
// identifier, and returns every identifier counted in strictly more than
// threshold of them, in ascending order. It does no pre-processing: every
// call walks the raw posting lists from scratch.
func Scancount(lists [][]uint32, listIDs []int, threshold int) ([]uint32, error) {
	for _, id := range listIDs {
		if id < 0 || id >= len(lists) {
			return nil, errors.Wrapf(ErrInvalidListIndex, "index %d (have %d lists)", id, len(lists))
		}
	}

	counts := make(map[uint32]int)
	for _, id := range listIDs {
		for _, v := range lists[id] {
			counts[v]++
		}
	}

	var hits []uint32
	for v, c := range counts {
		if c > threshold {
			hits = append(hits, v)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i] < hits[j] })
	return hits, nil
}
