// Package integration holds cross-package tests that exercise the public
// scancount API the way a real caller would: concurrent workers each owning
// their own Executor, and the three-engine agreement law over boundary
// scenarios spec.md calls out explicitly.
package integration

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	scancount "github.com/fastscancount/go-scancount"
)

func randomSortedList(rng *rand.Rand, n, universe int) []uint32 {
	seen := make(map[uint32]struct{}, n)
	out := make([]uint32, 0, n)
	for len(out) < n {
		v := uint32(rng.Intn(universe))
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func assertEqualU32(t *testing.T, got, want []uint32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v (len %d), want %v (len %d)", got, len(got), want, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

// TestConcurrentWorkersEachOwnExecutor exercises spec.md §5: compressed
// bitmaps and scancount aux are immutable and freely shareable across
// concurrent queries, provided each worker owns its own Executor (scratch
// counts buffer and output slice). Running many goroutines against one
// shared ScancountCorpus, each with its own Executor, must never produce a
// wrong or cross-contaminated result.
func TestConcurrentWorkersEachOwnExecutor(t *testing.T) {
	rng := rand.New(rand.NewSource(77))
	const numLists = 40
	lists := make([][]uint32, numLists)
	for i := range lists {
		lists[i] = randomSortedList(rng, 300, 20000)
	}

	sc, err := scancount.BuildScancountCorpus(lists)
	if err != nil {
		t.Fatalf("BuildScancountCorpus: %v", err)
	}

	const workers = 16
	const queriesPerWorker = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			localRng := rand.New(rand.NewSource(seed))
			exec := sc.NewExecutor()
			for q := 0; q < queriesPerWorker; q++ {
				n := 1 + localRng.Intn(numLists)
				perm := localRng.Perm(numLists)
				ids := append([]int(nil), perm[:n]...)
				threshold := localRng.Intn(5)

				want, err := scancount.NaiveScancount(lists, ids, threshold)
				if err != nil {
					errs <- err
					return
				}
				got, err := exec.Scancount(sc, ids, threshold, true)
				if err != nil {
					errs <- err
					return
				}
				gotCopy := append([]uint32(nil), got...)
				if len(gotCopy) != len(want) {
					errs <- fmt.Errorf("query %d: got %v, want %v", q, gotCopy, want)
					return
				}
				for i := range want {
					if gotCopy[i] != want[i] {
						errs <- fmt.Errorf("query %d: got %v, want %v", q, gotCopy, want)
						return
					}
				}
			}
		}(int64(1000 + w))
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
}

// TestBoundaryScenarios walks boundary cases: identifiers 0, 511, 512 and
// the corpus's largest identifier 1023, a single-element list at 0, a
// length-1 query, and identifiers 511/512 straddling both a 512-bit chunk
// boundary and (with a 64-wide window) a window boundary.
func TestBoundaryScenarios(t *testing.T) {
	lists := [][]uint32{
		{0, 511, 512, 1023},
		{511, 512},
		{0},
	}

	bmc, err := scancount.BuildBitmapCorpus(lists)
	if err != nil {
		t.Fatalf("BuildBitmapCorpus: %v", err)
	}
	sc, err := scancount.BuildScancountCorpus(lists, scancount.WithWindow(64), scancount.WithUnroll(4), scancount.WithOffset(16))
	if err != nil {
		t.Fatalf("BuildScancountCorpus: %v", err)
	}
	exec := sc.NewExecutor()

	cases := []struct {
		name      string
		listIDs   []int
		threshold int
	}{
		{"single list t=0", []int{0}, 0},
		{"two lists sharing boundary t=1", []int{0, 1}, 1},
		{"all lists t=0", []int{0, 1, 2}, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			want, err := scancount.NaiveScancount(lists, c.listIDs, c.threshold)
			if err != nil {
				t.Fatalf("NaiveScancount: %v", err)
			}
			gotBitmap, err := bmc.Bitscan(c.listIDs, c.threshold, nil)
			if err != nil {
				t.Fatalf("Bitscan: %v", err)
			}
			gotScan, err := exec.Scancount(sc, c.listIDs, c.threshold, true)
			if err != nil {
				t.Fatalf("Scancount: %v", err)
			}
			assertEqualU32(t, gotBitmap, want)
			assertEqualU32(t, gotScan, want)
		})
	}
}
