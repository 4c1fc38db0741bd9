// Package scancount implements threshold-counting ("at least t of n")
// retrieval over disjunctive posting lists: given a set of sorted,
// deduplicated identifier lists and a threshold t, find every identifier
// occurring in strictly more than t of the named lists.
//
// Two independent engines answer the same query. Bitscan folds a
// compressed-bitmap representation of every list through a saturating
// carry-save accumulator tree, and is the better fit for small corpora or
// high selectivity. Scancount rewrites every list into a cache-blocked
// counter layout and scans it with an unrolled kernel, and is the better
// fit for large corpora scanned with many queries. NaiveScancount is a
// third, deliberately unoptimized path kept only as a correctness oracle
// for the other two.
package scancount

import (
	"github.com/pkg/errors"

	"github.com/fastscancount/go-scancount/internal/bitmap"
	"github.com/fastscancount/go-scancount/internal/bitscan"
	"github.com/fastscancount/go-scancount/internal/driver"
	"github.com/fastscancount/go-scancount/internal/naive"
	"github.com/fastscancount/go-scancount/internal/rewrite"
)

// MaxThreshold bounds every query's threshold: 0 <= t < MaxThreshold,
// shared by both engines so a query is portable between them.
const MaxThreshold = bitscan.MaxThreshold

var (
	// ErrEmptyList is returned when a posting list passed to a corpus
	// builder is empty; every list must contain at least one identifier.
	ErrEmptyList = bitmap.ErrEmptyList
	// ErrThresholdTooLarge is returned when a query's threshold is not in
	// [0, MaxThreshold).
	ErrThresholdTooLarge = bitscan.ErrThresholdTooLarge
	// ErrInvalidListIndex is returned when a query names a list index
	// outside the corpus it was built from.
	ErrInvalidListIndex = errors.New("scancount: list index out of range")
	// ErrInvalidWindow is returned when functional options describe a
	// degenerate cache-blocked layout.
	ErrInvalidWindow = rewrite.ErrInvalidWindow
	// ErrCounterOverflow is returned when a query names more lists than a
	// byte counter can represent.
	ErrCounterOverflow = driver.ErrCounterOverflow
)

func checkThreshold(t int) error {
	if t < 0 || t >= MaxThreshold {
		return ErrThresholdTooLarge
	}
	return nil
}

// BitmapCorpus is a corpus of posting lists pre-built into compressed
// bitmaps, ready for Bitscan queries.
type BitmapCorpus struct {
	inner *bitscan.Corpus
}

// BuildBitmapCorpus builds a BitmapCorpus from sorted, deduplicated,
// non-empty posting lists.
func BuildBitmapCorpus(lists [][]uint32) (*BitmapCorpus, error) {
	inner, err := bitscan.Build(lists)
	if err != nil {
		return nil, err
	}
	return &BitmapCorpus{inner: inner}, nil
}

// NumLists returns the number of posting lists in the corpus.
func (c *BitmapCorpus) NumLists() int { return c.inner.NumLists() }

// Stats summarises a built corpus, the rough equivalent of a cache/build
// report: how big it is and how it is laid out.
type Stats struct {
	Lists      int
	ChunkCount int
	ByteSize   int
}

// Stats reports size information about the compressed-bitmap corpus.
func (c *BitmapCorpus) Stats() Stats {
	return Stats{
		Lists:      c.inner.NumLists(),
		ChunkCount: c.inner.ChunkCount(),
		ByteSize:   c.inner.ByteSize(),
	}
}

// Bitscan runs a threshold query against the bitmap corpus, appending
// every identifier occurring in strictly more than threshold of the named
// lists to out (which may be nil), in ascending order.
func (c *BitmapCorpus) Bitscan(listIDs []int, threshold int, out []uint32) ([]uint32, error) {
	if err := checkThreshold(threshold); err != nil {
		return out, err
	}
	res, err := c.inner.Run(listIDs, threshold, out)
	return res, wrapListErr(err)
}

// ScancountCorpus is a corpus of posting lists pre-built into the
// cache-blocked rewritten-data layout, ready for Scancount queries via an
// Executor.
type ScancountCorpus struct {
	aux *rewrite.Aux
}

// Option configures the cache-blocked layout a ScancountCorpus is built
// with.
type Option = rewrite.Option

// WithWindow overrides the cache window size (default 40000).
func WithWindow(w int) Option { return rewrite.WithWindow(w) }

// WithUnroll overrides the kernel's unroll group width (default 16).
func WithUnroll(r int) Option { return rewrite.WithUnroll(r) }

// WithOffset overrides the overshoot cushion width (default 64).
func WithOffset(k int) Option { return rewrite.WithOffset(k) }

// BuildScancountCorpus builds a ScancountCorpus from sorted, deduplicated
// posting lists, applying any layout options over the defaults.
func BuildScancountCorpus(lists [][]uint32, opts ...Option) (*ScancountCorpus, error) {
	o := rewrite.DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	aux, err := rewrite.Build(lists, o)
	if err != nil {
		if errors.Cause(err) == rewrite.ErrEmptyList {
			return nil, errors.Wrap(ErrEmptyList, err.Error())
		}
		return nil, err
	}
	return &ScancountCorpus{aux: aux}, nil
}

// NumLists returns the number of posting lists in the corpus.
func (c *ScancountCorpus) NumLists() int { return c.aux.NumLists() }

// Stats reports size information about the cache-blocked layout.
func (c *ScancountCorpus) Stats() Stats {
	return Stats{
		Lists:      c.aux.NumLists(),
		ChunkCount: c.aux.NumWindows(),
	}
}

// Executor runs Scancount queries against a ScancountCorpus, owning a
// reusable scratch counts buffer. An Executor is not safe for concurrent
// use; give each worker goroutine its own, built from the corpus it will
// query.
type Executor struct {
	inner *driver.Executor
}

// NewExecutor allocates an Executor sized for this corpus's layout.
func (c *ScancountCorpus) NewExecutor() *Executor {
	return &Executor{inner: driver.NewExecutor(c.aux.Options())}
}

// Scancount runs a threshold query against corpus using this Executor's
// scratch buffers, returning every identifier occurring in strictly more
// than threshold of the named lists, in ascending order. unrolled selects
// the kernel's unrolled variant over the portable scalar one; both compute
// the same result. The returned slice aliases the Executor's internal
// buffer and is only valid until the next call.
func (e *Executor) Scancount(corpus *ScancountCorpus, listIDs []int, threshold int, unrolled bool) ([]uint32, error) {
	if err := checkThreshold(threshold); err != nil {
		return nil, err
	}
	res, err := e.inner.Run(corpus.aux, listIDs, threshold, unrolled)
	return res, wrapListErr(err)
}

// NaiveScancount runs the unblocked, unvectorized reference
// implementation directly against raw posting lists, with no corpus
// pre-build step. It exists only as a correctness oracle for the other
// two engines and is unsuitable for production query volume.
func NaiveScancount(lists [][]uint32, listIDs []int, threshold int) ([]uint32, error) {
	if err := checkThreshold(threshold); err != nil {
		return nil, err
	}
	res, err := naive.Scancount(lists, listIDs, threshold)
	return res, wrapListErr(err)
}

func wrapListErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == bitscan.ErrInvalidListIndex ||
		errors.Cause(err) == driver.ErrInvalidListIndex ||
		errors.Cause(err) == naive.ErrInvalidListIndex {
		return errors.Wrap(ErrInvalidListIndex, err.Error())
	}
	return err
}
