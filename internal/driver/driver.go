// Package driver implements the scancount driver (C7): per-query
// orchestration of the cache-blocked kernel and hit extractor across every
// window of the rewritten-data layout.
package driver

import (
	"github.com/pkg/errors"

	"github.com/fastscancount/go-scancount/internal/hitscan"
	"github.com/fastscancount/go-scancount/internal/kernel"
	"github.com/fastscancount/go-scancount/internal/rewrite"
)

// MaxLists bounds how many posting lists a single query may name: counters
// are bytes, so a count can never legally need to represent more than 255
// contributions.
const MaxLists = 255

var (
	// ErrInvalidListIndex is returned when a query names a list outside
	// the corpus the Aux was built from.
	ErrInvalidListIndex = errors.New("driver: list index out of range")
	// ErrCounterOverflow is returned when a query names more lists than a
	// byte counter can ever need to saturate-free represent.
	ErrCounterOverflow = errors.New("driver: query names too many lists for a byte counter")
)

// Executor owns one worker's scratch counts buffer and hit-output slice,
// reused across queries to keep the query path allocation-free after
// warmup. An Executor must not be shared across goroutines; each worker
// owns its own, matching the single-threaded-per-query model the
// rewritten-data layout and byte counters are sized for.
type Executor struct {
	counts kernel.Counts
	out    []uint32
}

// NewExecutor allocates an Executor sized for the given layout options.
func NewExecutor(opts rewrite.Options) *Executor {
	return &Executor{
		counts: make(kernel.Counts, opts.Window+opts.Offset),
	}
}

// Run scans aux for every cache window, folding in the named lists'
// contributions via the scancount kernel and extracting every identifier
// counted in strictly more than threshold of them. Hits are returned in
// ascending order. The returned slice aliases the Executor's internal
// buffer and is only valid until the Executor's next Run call.
func (e *Executor) Run(aux *rewrite.Aux, listIDs []int, threshold int, unrolled bool) ([]uint32, error) {
	if len(listIDs) > MaxLists {
		return nil, ErrCounterOverflow
	}
	for _, id := range listIDs {
		if id < 0 || id >= aux.NumLists() {
			return nil, errors.Wrapf(ErrInvalidListIndex, "index %d (have %d lists)", id, aux.NumLists())
		}
	}

	opts := aux.Options()
	if len(e.counts) != opts.Window+opts.Offset {
		e.counts = make(kernel.Counts, opts.Window+opts.Offset)
	} else {
		for i := range e.counts {
			e.counts[i] = 0
		}
	}
	e.out = e.out[:0]

	for w := 0; w < aux.NumWindows(); w++ {
		for _, id := range listIDs {
			lw := aux.Window(id, w)
			if unrolled {
				kernel.Unrolled(e.counts, lw, opts.Unroll)
			} else {
				kernel.Portable(e.counts, lw)
			}
		}

		base := uint32(w) * uint32(opts.Window)
		e.out = hitscan.Extract(e.counts[:opts.Window], threshold, base, e.out)

		// The overshoot cushion [Window, Window+Offset) already holds real
		// increments for identifiers that belong to window w+1, borrowed
		// during rewrite so window w's final unroll group stayed full
		// width. Carry them forward instead of discarding them.
		copy(e.counts[:opts.Offset], e.counts[opts.Window:opts.Window+opts.Offset])
		for i := opts.Offset; i < len(e.counts); i++ {
			e.counts[i] = 0
		}
	}

	return e.out, nil
}
