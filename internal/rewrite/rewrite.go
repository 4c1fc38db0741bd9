// Package rewrite builds the cache-blocked rewritten-data layout (C4) that
// the scancount kernel scans: each posting list's identifiers are rebased
// into fixed-size cache windows and grouped into fixed-width unroll
// batches, so the kernel's inner loop never branches on list boundaries or
// window edges.
package rewrite

import "github.com/pkg/errors"

// Options controls the cache-blocked layout.
type Options struct {
	// Window is the number of distinct counter slots scanned per pass
	// (W in the design notes): small enough that the counts array for one
	// window stays resident in cache across every list's contribution.
	Window int
	// Unroll is the fixed group width the kernel's unrolled variant
	// consumes without a bounds check (r in the design notes).
	Unroll int
	// Offset is the tail cushion past Window (K in the design notes): the
	// counts array is sized Window+Offset, and slots [Window, Window+Offset)
	// hold increments borrowed from the next window's identifiers so the
	// last unroll group of a window is filled out to full width wherever
	// the cushion holds enough of them (see ListWindow).
	Offset int
}

// DefaultOptions returns the layout parameters grounded in the design
// notes: a 40000-slot window, 16-wide unroll groups, and a 64-slot
// overshoot cushion.
func DefaultOptions() Options {
	return Options{Window: 40000, Unroll: 16, Offset: 64}
}

// Option mutates Options; used by the root package's functional-options
// corpus builders.
type Option func(*Options)

// WithWindow overrides the cache window size.
func WithWindow(w int) Option { return func(o *Options) { o.Window = w } }

// WithUnroll overrides the unroll group width.
func WithUnroll(r int) Option { return func(o *Options) { o.Unroll = r } }

// WithOffset overrides the overshoot cushion width.
func WithOffset(k int) Option { return func(o *Options) { o.Offset = k } }

var (
	// ErrInvalidWindow is returned when Options describes a degenerate
	// layout.
	ErrInvalidWindow = errors.New("rewrite: window, unroll and offset must be positive")
	// ErrEmptyList is returned when Build is given an empty posting list;
	// every list must contain at least one identifier.
	ErrEmptyList = errors.New("rewrite: posting list must not be empty")
)

// ListWindow is one list's contribution to one cache window: its
// identifiers, rebased to [0, Window+Offset), grouped into Unroll-wide
// batches. Every group has length Unroll except possibly the last, which
// may be shorter when neither this window's own identifiers nor the next
// window's borrowed ones filled it out.
type ListWindow struct {
	Groups [][]uint32
}

// Aux is the complete rewritten-data layout for a corpus: every list's
// identifiers, partitioned into windows and pre-grouped for the kernel.
type Aux struct {
	opts       Options
	numWindows int
	perList    [][]ListWindow // perList[listIdx][windowIdx]
}

// Options returns the layout parameters this Aux was built with.
func (a *Aux) Options() Options { return a.opts }

// NumWindows returns the number of cache windows spanning the corpus.
func (a *Aux) NumWindows() int { return a.numWindows }

// NumLists returns the number of posting lists this Aux was built from.
func (a *Aux) NumLists() int { return len(a.perList) }

// Window returns list listIdx's contribution to window windowIdx.
func (a *Aux) Window(listIdx, windowIdx int) ListWindow {
	return a.perList[listIdx][windowIdx]
}

// Build partitions every list into cache windows and pre-groups each
// window's identifiers into fixed-width unroll batches, borrowing leading
// identifiers from the following window to complete a window's final
// group wherever they fall inside the overshoot cushion.
func Build(lists [][]uint32, opts Options) (*Aux, error) {
	if opts.Window <= 0 || opts.Unroll <= 0 || opts.Offset <= 0 {
		return nil, ErrInvalidWindow
	}

	var largest int64 = -1
	for i, list := range lists {
		if len(list) == 0 {
			return nil, errors.Wrapf(ErrEmptyList, "list %d", i)
		}
		if v := int64(list[len(list)-1]); v > largest {
			largest = v
		}
	}

	numWindows := 0
	if largest >= 0 {
		numWindows = int(largest/int64(opts.Window)) + 1
	}

	perList := make([][]ListWindow, len(lists))
	for li, list := range lists {
		windows := make([]ListWindow, numWindows)
		pos := 0
		for w := 0; w < numWindows; w++ {
			lower := int64(w) * int64(opts.Window)
			upper := lower + int64(opts.Window)

			var offs []uint32
			for pos < len(list) && int64(list[pos]) < upper {
				offs = append(offs, list[pos]-uint32(lower))
				pos++
			}

			if w < numWindows-1 {
				need := (opts.Unroll - len(offs)%opts.Unroll) % opts.Unroll
				cushionEnd := upper + int64(opts.Offset)
				for need > 0 && pos < len(list) && int64(list[pos]) < cushionEnd {
					offs = append(offs, list[pos]-uint32(lower))
					pos++
					need--
				}
			}

			windows[w] = ListWindow{Groups: chunkGroups(offs, opts.Unroll)}
		}
		perList[li] = windows
	}

	return &Aux{opts: opts, numWindows: numWindows, perList: perList}, nil
}

func chunkGroups(offs []uint32, r int) [][]uint32 {
	if len(offs) == 0 {
		return nil
	}
	groups := make([][]uint32, 0, (len(offs)+r-1)/r)
	for i := 0; i < len(offs); i += r {
		end := i + r
		if end > len(offs) {
			end = len(offs)
		}
		groups = append(groups, offs[i:end])
	}
	return groups
}
