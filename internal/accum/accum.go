// Package accum implements the saturating carry-save bit-accumulator (C1):
// a vertical, fixed-width counter that sums one-bit inputs in parallel
// across every bit-position of a wide word, saturating rather than
// overflowing.
//
// The accumulator is parameterised by a small trait interface over the word
// type (Ops[T]) rather than compiled per word type, the Go equivalent of the
// source's trait-class template parameter noted in the design's redesign
// flags: one algorithm, pluggable word operations.
package accum

// Ops is the set of word operations an Accumulator needs. T is typically a
// fixed-width bit vector (see internal/wordops.Word) but any type
// implementing bitwise AND/OR/XOR/NOT and per-bit test works.
type Ops[T any] interface {
	And(a, b T) T
	Or(a, b T) T
	Xor(a, b T) T
	Not(a T) T
	Zero() T
	Bit(v T, idx int) bool
}

// Accumulator sums B-bit-wide vertical counters, one per bit position of T,
// saturating at 2^B rather than wrapping.
type Accumulator[T any] struct {
	ops  Ops[T]
	bits []T // B elements, bit i holds the i-th bit of every counter
	sat  T   // sticky saturation flag, one bit per counter
}

// Max returns 2^B, the value at which a counter saturates.
func Max(b int) int { return 1 << uint(b) }

// New creates a B-bit accumulator. If initial > 0 every counter starts at
// that value (by accepting the all-ones word `initial` times) — used by the
// bitscan engine to bias the saturation point to exactly "strictly more
// than t".
func New[T any](b int, ops Ops[T], initial int) *Accumulator[T] {
	a := &Accumulator[T]{
		ops:  ops,
		bits: make([]T, b),
		sat:  ops.Zero(),
	}
	for i := range a.bits {
		a.bits[i] = ops.Zero()
	}
	if initial > 0 {
		ones := ops.Not(ops.Zero())
		for ; initial > 0; initial-- {
			a.Accept(ones)
		}
	}
	return a
}

// fullAdder computes carry = majority(a,b,c), sum = parity(a,b,c).
func fullAdder[T any](ops Ops[T], a, b, c T) (carry, sum T) {
	xor01 := ops.Xor(a, b)
	carry = ops.Or(ops.And(a, b), ops.And(c, xor01))
	sum = ops.Xor(xor01, c)
	return
}

// halfAdder computes carry = a&b, sum = a^b.
func halfAdder[T any](ops Ops[T], a, b T) (carry, sum T) {
	return ops.And(a, b), ops.Xor(a, b)
}

// Accept increments each vertical counter by 1 where addend has a set bit.
func (a *Accumulator[T]) Accept(addend T) {
	carry := addend
	for i := range a.bits {
		sum := a.ops.Xor(a.bits[i], carry)
		carry = a.ops.And(a.bits[i], carry)
		a.bits[i] = sum
	}
	a.sat = a.ops.Or(a.sat, carry)
}

// weighted pairs a partial-sum word with the power-of-two weight it carries.
type weighted[T any] struct {
	weight int
	word   T
}

// wallaceReduce collapses n equally-weighted (weight 1) input words into a
// minimal set of weighted partial sums using layered full/half adders (a
// carry-save "Wallace tree" reduction): groups of three at the same weight
// collapse via a full adder (the sum is fed back into that weight's bucket
// so it combines with any remaining peers, the carry moves up one weight);
// a final leftover pair collapses via a half adder. Each weight bucket is
// fully drained to at most one word before moving to the next weight, so
// the result has exactly one word per weight actually produced.
func wallaceReduce[T any](ops Ops[T], words []T) []weighted[T] {
	buckets := map[int][]T{0: append([]T(nil), words...)}
	maxWeight := 0
	var out []weighted[T]

	for w := 0; w <= maxWeight; w++ {
		bucket := buckets[w]
		for len(bucket) >= 3 {
			c, s := fullAdder(ops, bucket[0], bucket[1], bucket[2])
			bucket = append(append([]T(nil), bucket[3:]...), s)
			buckets[w+1] = append(buckets[w+1], c)
			if w+1 > maxWeight {
				maxWeight = w + 1
			}
		}
		if len(bucket) == 2 {
			c, s := halfAdder(ops, bucket[0], bucket[1])
			bucket = []T{s}
			buckets[w+1] = append(buckets[w+1], c)
			if w+1 > maxWeight {
				maxWeight = w + 1
			}
		}
		if len(bucket) == 1 {
			out = append(out, weighted[T]{weight: w, word: bucket[0]})
		}
	}
	return out
}

// AcceptWeighted folds a set of power-of-two-weighted words into the
// accumulator: word parts[i].word adds 2^parts[i].weight to counter j for
// every set bit j. This generalises the source's
// accept_weighted (fixed at three inputs, weights 1/2/4) to an arbitrary
// weighted list with at most one word per weight (as produced by
// wallaceReduce), propagating carries up through the bit array and OR-ing
// anything that spills past the top bit, or past the end of the array,
// into the saturation flag.
func (a *Accumulator[T]) AcceptWeighted(parts []weighted[T]) {
	byWeight := make(map[int]T, len(parts))
	for _, p := range parts {
		byWeight[p.weight] = p.word
	}

	carry := a.ops.Zero()
	for bit := 0; bit < len(a.bits); bit++ {
		in, ok := byWeight[bit]
		if !ok {
			in = a.ops.Zero()
		}
		c, s := fullAdder(a.ops, carry, in, a.bits[bit])
		a.bits[bit] = s
		carry = c
	}
	a.sat = a.ops.Or(a.sat, carry)

	maxWeight := len(a.bits) - 1
	for _, p := range parts {
		if p.weight > maxWeight {
			maxWeight = p.weight
		}
	}
	for bit := len(a.bits); bit <= maxWeight; bit++ {
		if in, ok := byWeight[bit]; ok {
			a.sat = a.ops.Or(a.sat, in)
		}
	}
}

// AcceptN folds n one-bit-weighted addends into the accumulator in a single
// carry-save pass, equivalent to calling Accept n times but doing the
// cross-addend reduction with a Wallace tree instead of n sequential ripple
// passes through the full bit array.
func (a *Accumulator[T]) AcceptN(addends ...T) {
	a.AcceptWeighted(wallaceReduce(a.ops, addends))
}

// Accept7 folds seven one-bit addends using the 3-level Wallace-tree
// reduction named in the design: three full adders reduce seven words to
// three with weights (1,1,2,2,4) collapsed into (1,2,4), then
// AcceptWeighted folds the three survivors in.
func (a *Accumulator[T]) Accept7(v0, v1, v2, v3, v4, v5, v6 T) {
	a.AcceptN(v0, v1, v2, v3, v4, v5, v6)
}

// Accept8 folds eight one-bit addends (the bitscan engine's group-of-8
// fold) the same way.
func (a *Accumulator[T]) Accept8(v0, v1, v2, v3, v4, v5, v6, v7 T) {
	a.AcceptN(v0, v1, v2, v3, v4, v5, v6, v7)
}

// GetSaturated returns the saturation word: bit i is set iff counter i has
// reached 2^B.
func (a *Accumulator[T]) GetSaturated() T {
	return a.sat
}

// GetSums returns the full per-lane integer sum (saturating at 2^B). It is
// O(B * laneCount) and intended for tests, not the query hot path.
func (a *Accumulator[T]) GetSums(laneCount int) []int {
	ret := make([]int, laneCount)
	for i := 0; i < laneCount; i++ {
		if a.ops.Bit(a.sat, i) {
			ret[i] = Max(len(a.bits))
			continue
		}
		mult := 1
		for _, word := range a.bits {
			if a.ops.Bit(word, i) {
				ret[i] += mult
			}
			mult *= 2
		}
	}
	return ret
}
