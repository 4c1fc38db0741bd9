// Package kernel implements the scancount kernel (C5): the inner loop that
// increments a window's counter array once per identifier contributed by
// each posting list's rewritten-data groups.
package kernel

import "github.com/fastscancount/go-scancount/internal/rewrite"

// Counts is the per-window counter array, sized Window+Offset by the
// caller. Counters are bytes: a query is validated to name at most 255
// lists (see the root package's ErrCounterOverflow) so a counter can never
// wrap before a threshold comparison observes it.
type Counts []uint8

// Portable runs the straightforward scalar variant: one increment per
// identifier, no unrolling. Grounded as the baseline the unrolled variant
// is checked against.
func Portable(counts Counts, w rewrite.ListWindow) {
	for _, group := range w.Groups {
		for _, off := range group {
			counts[off]++
		}
	}
}

// Unrolled runs the cache-blocked variant: when the corpus's unroll factor
// r is 16, every 16-long group is processed by an explicitly unrolled
// body, trading branch count for a few extra lines of kernel code; any
// other group (a shorter last group in a window, or every group when
// r != 16) goes through a scalar loop.
func Unrolled(counts Counts, w rewrite.ListWindow, r int) {
	for _, group := range w.Groups {
		if r != 16 || len(group) != 16 {
			for _, off := range group {
				counts[off]++
			}
			continue
		}
		unroll16(counts, group)
	}
}

// unroll16 is the unrolled body for the r=16 case named in the design
// notes. Groups of any other width fall back to the scalar loop in
// Unrolled, so this is only ever reached when r == 16.
func unroll16(counts Counts, group []uint32) {
	_ = group[15] // bounds-check hoist: one check covers all sixteen accesses below
	counts[group[0]]++
	counts[group[1]]++
	counts[group[2]]++
	counts[group[3]]++
	counts[group[4]]++
	counts[group[5]]++
	counts[group[6]]++
	counts[group[7]]++
	counts[group[8]]++
	counts[group[9]]++
	counts[group[10]]++
	counts[group[11]]++
	counts[group[12]]++
	counts[group[13]]++
	counts[group[14]]++
	counts[group[15]]++
}
