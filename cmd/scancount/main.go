// Command scancount is a self-test harness: it builds synthetic posting
// lists, runs every engine against the same queries, and reports whether
// they agree. It does not load or serve any external index format.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	scancount "github.com/fastscancount/go-scancount"
)

var (
	flagLists     int
	flagMaxID     int
	flagQueries   int
	flagListSize  int
	flagSeed      int64
	flagThreshold int
)

var rootCmd = &cobra.Command{
	Use:   "scancount",
	Short: "Threshold-counting retrieval self-test",
	Long: `scancount builds a synthetic corpus of posting lists and cross-checks
the bitscan engine, the cache-blocked scancount engine, and the naive
reference implementation against each other.

It exists to exercise the three engines end to end; it does not read or
write any on-disk index format.`,
}

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run synthetic queries through all three engines and report agreement",
	RunE:  runSelftest,
}

func init() {
	selftestCmd.Flags().IntVar(&flagLists, "lists", 64, "number of synthetic posting lists")
	selftestCmd.Flags().IntVar(&flagMaxID, "max-id", 200000, "exclusive upper bound on synthetic identifiers")
	selftestCmd.Flags().IntVar(&flagListSize, "list-size", 2000, "identifiers per synthetic posting list")
	selftestCmd.Flags().IntVar(&flagQueries, "queries", 20, "number of random queries to run")
	selftestCmd.Flags().Int64Var(&flagSeed, "seed", 1, "random seed for synthetic data generation")
	selftestCmd.Flags().IntVar(&flagThreshold, "max-threshold", scancount.MaxThreshold-1, "largest threshold a generated query may use")
	rootCmd.AddCommand(selftestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSelftest(cmd *cobra.Command, args []string) error {
	rng := rand.New(rand.NewSource(flagSeed))
	lists := syntheticLists(rng, flagLists, flagListSize, flagMaxID)

	bitmapCorpus, err := scancount.BuildBitmapCorpus(lists)
	if err != nil {
		return fmt.Errorf("building bitmap corpus: %w", err)
	}
	scanCorpus, err := scancount.BuildScancountCorpus(lists)
	if err != nil {
		return fmt.Errorf("building scancount corpus: %w", err)
	}
	exec := scanCorpus.NewExecutor()

	fmt.Printf("corpus: %d lists, bitmap %d bytes across %d chunks, scancount %d windows\n",
		bitmapCorpus.NumLists(), bitmapCorpus.Stats().ByteSize, bitmapCorpus.Stats().ChunkCount,
		scanCorpus.Stats().ChunkCount)

	mismatches := 0
	start := time.Now()
	for q := 0; q < flagQueries; q++ {
		n := 1 + rng.Intn(flagLists)
		ids := sampleListIDs(rng, flagLists, n)
		threshold := rng.Intn(flagThreshold + 1)

		naiveHits, err := scancount.NaiveScancount(lists, ids, threshold)
		if err != nil {
			return fmt.Errorf("query %d: naive: %w", q, err)
		}
		bitmapHits, err := bitmapCorpus.Bitscan(ids, threshold, nil)
		if err != nil {
			return fmt.Errorf("query %d: bitscan: %w", q, err)
		}
		scanHits, err := exec.Scancount(scanCorpus, ids, threshold, true)
		if err != nil {
			return fmt.Errorf("query %d: scancount: %w", q, err)
		}

		ok1 := sameIDs(naiveHits, bitmapHits)
		ok2 := sameIDs(naiveHits, scanHits)
		status := "ok"
		if !ok1 || !ok2 {
			mismatches++
			status = "MISMATCH"
		}
		fmt.Printf("query %2d: lists=%-3d threshold=%-2d hits=%-6d %s\n", q, n, threshold, len(naiveHits), status)
	}

	fmt.Printf("%d/%d queries agreed, elapsed %s\n", flagQueries-mismatches, flagQueries, time.Since(start))
	if mismatches > 0 {
		return fmt.Errorf("%d queries disagreed across engines", mismatches)
	}
	return nil
}

func syntheticLists(rng *rand.Rand, numLists, listSize, maxID int) [][]uint32 {
	lists := make([][]uint32, numLists)
	for i := range lists {
		seen := make(map[uint32]struct{}, listSize)
		list := make([]uint32, 0, listSize)
		for len(list) < listSize {
			v := uint32(rng.Intn(maxID))
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			list = append(list, v)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		lists[i] = list
	}
	return lists
}

func sampleListIDs(rng *rand.Rand, numLists, n int) []int {
	perm := rng.Perm(numLists)
	ids := append([]int(nil), perm[:n]...)
	return ids
}

func sameIDs(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
