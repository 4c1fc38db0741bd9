package bitscan

import (
	"math/rand"
	"testing"
)

func buildCorpus(t *testing.T, lists [][]uint32) *Corpus {
	t.Helper()
	c, err := Build(lists)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return c
}

func runQuery(t *testing.T, c *Corpus, listIDs []int, threshold int) []uint32 {
	t.Helper()
	out, err := c.Run(listIDs, threshold, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out
}

func TestScenario1ThreeShortLists(t *testing.T) {
	lists := [][]uint32{
		{1, 3},
		{3, 5},
		{3},
	}
	c := buildCorpus(t, lists)
	got := runQuery(t, c, []int{0, 1, 2}, 1)
	assertEqualU32(t, got, []uint32{3})
}

func TestScenario2ThresholdZeroIsUnion(t *testing.T) {
	l0 := rangeList(0, 601)
	l1 := rangeList(500, 701)
	lists := [][]uint32{l0, l1}
	c := buildCorpus(t, lists)

	t0 := runQuery(t, c, []int{0, 1}, 0)
	assertEqualU32(t, t0, rangeList(0, 701))

	t1 := runQuery(t, c, []int{0, 1}, 1)
	assertEqualU32(t, t1, rangeList(500, 601))
}

func TestScenario3ChunkBoundary(t *testing.T) {
	lists := [][]uint32{{511}, {512}}
	c := buildCorpus(t, lists)
	got := runQuery(t, c, []int{0, 1}, 0)
	assertEqualU32(t, got, []uint32{511, 512})
}

func TestThresholdTooLargeRejected(t *testing.T) {
	lists := [][]uint32{{1}, {2}}
	c := buildCorpus(t, lists)
	if _, err := c.Run([]int{0, 1}, MaxThreshold, nil); err != ErrThresholdTooLarge {
		t.Fatalf("Run with t=MaxThreshold error = %v, want ErrThresholdTooLarge", err)
	}
}

func TestEmptyListRejectedAtBuild(t *testing.T) {
	if _, err := Build([][]uint32{{1, 2}, {}}); err == nil {
		t.Fatalf("Build with an empty list should fail")
	}
}

func TestInvalidListIndex(t *testing.T) {
	c := buildCorpus(t, [][]uint32{{1}, {2}})
	if _, err := c.Run([]int{5}, 0, nil); err == nil {
		t.Fatalf("Run with out-of-range list index should fail")
	}
}

// TestDuplicateListIndexVotesTwice covers spec.md's "duplicates allowed"
// query shape: naming the same list index twice must count its members
// twice toward the threshold, matching the naive oracle, not be rejected.
func TestDuplicateListIndexVotesTwice(t *testing.T) {
	c := buildCorpus(t, [][]uint32{{1}, {2}})
	got := runQuery(t, c, []int{0, 0}, 1)
	assertEqualU32(t, got, []uint32{1})

	got = runQuery(t, c, []int{0, 0}, 2)
	assertEqualU32(t, got, nil)
}

func TestQueryOfLengthOneThresholdZero(t *testing.T) {
	lists := [][]uint32{{7, 9, 20}, {1, 2, 3}}
	c := buildCorpus(t, lists)
	got := runQuery(t, c, []int{0}, 0)
	assertEqualU32(t, got, []uint32{7, 9, 20})
}

func TestAgreesWithBruteForceAcrossManyLists(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	const numLists = 20
	lists := make([][]uint32, numLists)
	for i := range lists {
		lists[i] = randomSortedList(rng, 300, 5000)
	}
	c := buildCorpus(t, lists)

	listIDs := make([]int, numLists)
	for i := range listIDs {
		listIDs[i] = i
	}

	for threshold := 0; threshold < 8; threshold++ {
		got := runQuery(t, c, listIDs, threshold)
		want := bruteForce(lists, listIDs, threshold)
		assertEqualU32(t, got, want)
	}
}

func bruteForce(lists [][]uint32, listIDs []int, threshold int) []uint32 {
	counts := make(map[uint32]int)
	for _, id := range listIDs {
		for _, v := range lists[id] {
			counts[v]++
		}
	}
	var out []uint32
	for v, c := range counts {
		if c > threshold {
			out = append(out, v)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

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

func rangeList(lo, hi int) []uint32 {
	out := make([]uint32, 0, hi-lo)
	for v := lo; v < hi; v++ {
		out = append(out, uint32(v))
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
			t.Fatalf("index %d: got %d, want %d\nfull got=%v\nfull want=%v", i, got[i], want[i], got, want)
		}
	}
}
