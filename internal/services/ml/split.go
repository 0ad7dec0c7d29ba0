package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
)

// SplitMode selects how rows are partitioned into train and test.
type SplitMode string

const (
	SplitRandom        SplitMode = "random"
	SplitChronological SplitMode = "chronological"
)

func testSize(n int, frac float64) (int, error) {
	if frac <= 0 || frac >= 1 {
		return 0, fmt.Errorf("test fraction %v: %w", frac, models.ErrInvalidArgument)
	}
	nTest := int(math.Ceil(float64(n) * frac))
	if nTest < 1 || n-nTest < 1 {
		return 0, fmt.Errorf("cannot split %d rows: %w", n, models.ErrInsufficientData)
	}
	return nTest, nil
}

// Split partitions row indices 0..n-1 using mode. Random splits are seeded.
func Split(mode SplitMode, n int, frac float64, seed int64) (train, test []int, err error) {
	nTest, err := testSize(n, frac)
	if err != nil {
		return nil, nil, err
	}
	switch mode {
	case SplitChronological:
		train = make([]int, 0, n-nTest)
		test = make([]int, 0, nTest)
		for i := 0; i < n; i++ {
			if i < n-nTest {
				train = append(train, i)
			} else {
				test = append(test, i)
			}
		}
		return train, test, nil
	case SplitRandom, "":
		perm := rand.New(rand.NewSource(seed)).Perm(n)
		return perm[nTest:], perm[:nTest], nil
	default:
		return nil, nil, fmt.Errorf("split mode %q: %w", mode, models.ErrInvalidArgument)
	}
}

// StratifiedSplit partitions indices so each class keeps its share in both halves.
// Every class needs at least two members.
func StratifiedSplit(y []int, frac float64, seed int64) (train, test []int, err error) {
	nTest, err := testSize(len(y), frac)
	if err != nil {
		return nil, nil, err
	}
	byClass := map[int][]int{}
	for i, v := range y {
		byClass[v] = append(byClass[v], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	if len(classes) < 2 {
		return nil, nil, fmt.Errorf("single class in labels: %w", models.ErrInsufficientData)
	}

	// Allocate test counts by largest remainder, then clamp so each class stays on both sides.
	// The test side holds exactly nTest rows whenever the clamp bounds allow it.
	alloc := make([]int, len(classes))
	rem := make([]float64, len(classes))
	assigned := 0
	for k, c := range classes {
		exact := float64(nTest) * float64(len(byClass[c])) / float64(len(y))
		alloc[k] = int(math.Floor(exact))
		rem[k] = exact - float64(alloc[k])
		assigned += alloc[k]
	}
	order := make([]int, len(classes))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool { return rem[order[a]] > rem[order[b]] })
	for k := 0; assigned < nTest; k = (k + 1) % len(order) {
		alloc[order[k]]++
		assigned++
	}
	for k, c := range classes {
		size := len(byClass[c])
		if size < 2 {
			return nil, nil, fmt.Errorf("class %d has %d member: %w", c, size, models.ErrInsufficientData)
		}
		if alloc[k] < 1 {
			alloc[k] = 1
		}
		if alloc[k] > size-1 {
			alloc[k] = size - 1
		}
	}
	rebalance(alloc, classes, byClass, nTest)

	rng := rand.New(rand.NewSource(seed))
	for k, c := range classes {
		members := byClass[c]
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		test = append(test, members[:alloc[k]]...)
		train = append(train, members[alloc[k]:]...)
	}
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}

// rebalance moves the clamped allocation back towards nTest, one row at a time from or to
// the class with the most room, keeping 1 <= alloc[k] <= size-1. The total stays off nTest
// only when those bounds make it unreachable.
func rebalance(alloc, classes []int, byClass map[int][]int, nTest int) {
	total := 0
	for _, a := range alloc {
		total += a
	}
	for total != nTest {
		best, room := -1, 0
		for k, c := range classes {
			r := len(byClass[c]) - 1 - alloc[k]
			if total > nTest {
				r = alloc[k] - 1
			}
			if r > room {
				best, room = k, r
			}
		}
		if best < 0 {
			return
		}
		if total > nTest {
			alloc[best]--
			total--
		} else {
			alloc[best]++
			total++
		}
	}
}

// Rows selects rows of x by index.
func Rows(x [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for k, i := range idx {
		out[k] = x[i]
	}
	return out
}

// Values selects elements of v by index.
func Values[T any](v []T, idx []int) []T {
	out := make([]T, len(idx))
	for k, i := range idx {
		out[k] = v[i]
	}
	return out
}
