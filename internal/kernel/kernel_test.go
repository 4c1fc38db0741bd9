package kernel

import (
	"math/rand"
	"testing"

	"github.com/fastscancount/go-scancount/internal/rewrite"
)

func TestPortableIncrementsEachOffsetOnce(t *testing.T) {
	counts := make(Counts, 20)
	w := rewrite.ListWindow{Groups: [][]uint32{{1, 2, 3}, {5}}}
	Portable(counts, w)
	for _, off := range []int{1, 2, 3, 5} {
		if counts[off] != 1 {
			t.Fatalf("counts[%d] = %d, want 1", off, counts[off])
		}
	}
	for _, off := range []int{0, 4, 6} {
		if counts[off] != 0 {
			t.Fatalf("counts[%d] = %d, want 0", off, counts[off])
		}
	}
}

func TestPortableAccumulatesAcrossCalls(t *testing.T) {
	counts := make(Counts, 4)
	w1 := rewrite.ListWindow{Groups: [][]uint32{{0, 1}}}
	w2 := rewrite.ListWindow{Groups: [][]uint32{{1, 1}}}
	Portable(counts, w1)
	Portable(counts, w2)
	if counts[0] != 1 || counts[1] != 3 {
		t.Fatalf("counts = %v, want [1 3 0 0]", counts)
	}
}

func TestUnrolledMatchesPortable(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(50)
		offs := make([]uint32, n)
		for i := range offs {
			offs[i] = uint32(rng.Intn(100))
		}

		var groups [][]uint32
		for i := 0; i < len(offs); i += 16 {
			end := i + 16
			if end > len(offs) {
				end = len(offs)
			}
			groups = append(groups, offs[i:end])
		}
		w := rewrite.ListWindow{Groups: groups}

		portable := make(Counts, 100)
		Portable(portable, w)

		unrolled := make(Counts, 100)
		Unrolled(unrolled, w, 16)

		for i := range portable {
			if portable[i] != unrolled[i] {
				t.Fatalf("trial %d offset %d: portable=%d unrolled=%d", trial, i, portable[i], unrolled[i])
			}
		}
	}
}

func TestUnrolledFallsBackForShortGroups(t *testing.T) {
	counts16 := make(Counts, 20)
	counts4 := make(Counts, 20)
	w := rewrite.ListWindow{Groups: [][]uint32{{0, 1, 2}}} // shorter than r=16
	Unrolled(counts16, w, 16)
	Unrolled(counts4, w, 4) // r != 16, also must fall back
	for i, off := range []int{0, 1, 2} {
		_ = i
		if counts16[off] != 1 || counts4[off] != 1 {
			t.Fatalf("offset %d: counts16=%d counts4=%d, want 1 each", off, counts16[off], counts4[off])
		}
	}
}
