package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// Stratified split errors.
var (
	ErrInvalidTestSize = errors.New("test size must be in (0, 1)")
	ErrTooFewRows      = errors.New("not enough rows for a stratified split")
	ErrClassTooSmall   = errors.New("stratum has fewer than 2 members")
)

// StratifiedShuffleSplit draws one train/test partition whose per-stratum
// proportions match the input as closely as integer counts allow.
type StratifiedShuffleSplit struct {
	TestSize float64
	Seed     uint64
}

// Split partitions row indices 0..len(labels)-1. The test set has
// ceil(TestSize*n) rows. Both index slices come back in ascending order.
func (s StratifiedShuffleSplit) Split(labels []int) (train, test []int, err error) {
	if s.TestSize <= 0 || s.TestSize >= 1 {
		return nil, nil, ErrInvalidTestSize
	}

	n := len(labels)
	nTest := int(math.Ceil(s.TestSize * float64(n)))
	nTrain := n - nTest
	if nTrain <= 0 || nTest <= 0 {
		return nil, nil, fmt.Errorf("%w: %d rows gives %d train and %d test", ErrTooFewRows, n, nTrain, nTest)
	}

	classes, members := groupByLabel(labels)
	counts := make([]int, len(classes))
	for i, c := range classes {
		counts[i] = len(members[c])
		if counts[i] < 2 {
			return nil, nil, fmt.Errorf("%w: bucket %d has %d row", ErrClassTooSmall, c, counts[i])
		}
	}
	if nTrain < len(classes) || nTest < len(classes) {
		return nil, nil, fmt.Errorf("%w: %d train and %d test rows for %d buckets",
			ErrTooFewRows, nTrain, nTest, len(classes))
	}

	rng := rand.New(rand.NewPCG(s.Seed, s.Seed))

	// Every row not drawn for train goes to test, so the test allocation is
	// the per-stratum remainder.
	trainCounts := approximateMode(counts, nTrain, rng)
	testCounts := make([]int, len(counts))
	for i := range counts {
		testCounts[i] = counts[i] - trainCounts[i]
	}

	train = make([]int, 0, nTrain)
	test = make([]int, 0, nTest)
	for i, c := range classes {
		idx := members[c]
		perm := rng.Perm(len(idx))
		for _, p := range perm[:trainCounts[i]] {
			train = append(train, idx[p])
		}
		for _, p := range perm[trainCounts[i] : trainCounts[i]+testCounts[i]] {
			test = append(test, idx[p])
		}
	}

	slices.Sort(train)
	slices.Sort(test)
	return train, test, nil
}

// groupByLabel returns the distinct labels in ascending order and the row
// indices holding each one, in row order.
func groupByLabel(labels []int) ([]int, map[int][]int) {
	members := make(map[int][]int)
	for i, l := range labels {
		members[l] = append(members[l], i)
	}
	classes := make([]int, 0, len(members))
	for c := range members {
		classes = append(classes, c)
	}
	slices.Sort(classes)
	return classes, members
}

// approximateMode allocates nDraws across strata in proportion to counts.
// Each stratum gets the floor of its share; leftover draws go to the largest
// fractional remainders, with ties broken at random.
func approximateMode(counts []int, nDraws int, rng *rand.Rand) []int {
	total := 0
	for _, c := range counts {
		total += c
	}

	continuous := make([]float64, len(counts))
	floored := make([]int, len(counts))
	assigned := 0
	for i, c := range counts {
		continuous[i] = float64(c) / float64(total) * float64(nDraws)
		floored[i] = int(math.Floor(continuous[i]))
		assigned += floored[i]
	}

	need := nDraws - assigned
	if need <= 0 {
		return floored
	}

	remainder := make([]float64, len(counts))
	for i := range counts {
		remainder[i] = continuous[i] - float64(floored[i])
	}
	values := slices.Clone(remainder)
	slices.Sort(values)
	values = slices.Compact(values)
	slices.Reverse(values)

	for _, v := range values {
		var inds []int
		for i, r := range remainder {
			if r == v {
				inds = append(inds, i)
			}
		}
		add := min(len(inds), need)
		for _, p := range rng.Perm(len(inds))[:add] {
			floored[inds[p]]++
		}
		need -= add
		if need == 0 {
			break
		}
	}
	return floored
}
