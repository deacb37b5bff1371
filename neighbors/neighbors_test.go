package neighbors

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/uboost/pkg/errors"
)

func randomPoints(n, dims int, seed uint64) [][]float64 {
	rng := rand.New(rand.NewPCG(seed, 7))
	points := make([][]float64, n)
	for i := range points {
		p := make([]float64, dims)
		for d := range p {
			p[d] = rng.NormFloat64()
		}
		points[i] = p
	}
	return points
}

func everyOther(n int) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = i%2 == 0
	}
	return mask
}

func TestBruteForceSmall(t *testing.T) {
	points := [][]float64{{0}, {1}, {3}, {4}, {10}}
	mask := []bool{true, true, true, true, true}

	groups, err := BruteForce{}.Find(points, mask, 2)
	require.NoError(t, err)

	assert.Equal(t, Groups{
		{0, 1},
		{1, 0},
		{2, 3},
		{3, 2},
		{4, 3},
	}, groups)
	assert.Equal(t, 2, groups.K())
}

func TestTiesBreakByLowerIndex(t *testing.T) {
	// 1 and 3 are both at distance 1 from 2
	points := [][]float64{{5}, {1}, {2}, {3}}
	mask := []bool{true, true, false, true}

	for name, s := range map[string]Searcher{"brute": BruteForce{}, "kdtree": KDTree{}} {
		t.Run(name, func(t *testing.T) {
			groups, err := s.Find(points, mask, 1)
			require.NoError(t, err)
			assert.Equal(t, []int{1}, groups[2])
		})
	}
}

func TestKDTreeMatchesBruteForce(t *testing.T) {
	for _, dims := range []int{1, 2, 3} {
		points := randomPoints(600, dims, uint64(dims))
		mask := everyOther(len(points))

		want, err := BruteForce{}.Find(points, mask, 5)
		require.NoError(t, err)
		got, err := KDTree{Threshold: 50}.Find(points, mask, 5)
		require.NoError(t, err)

		assert.Equal(t, want, got, "dims=%d", dims)
	}
}

func TestKDTreeWithDuplicates(t *testing.T) {
	points := make([][]float64, 40)
	for i := range points {
		points[i] = []float64{float64(i % 4), 0}
	}
	mask := make([]bool, len(points))
	for i := range mask {
		mask[i] = true
	}

	want, err := BruteForce{}.Find(points, mask, 7)
	require.NoError(t, err)
	got, err := KDTree{}.Find(points, mask, 7)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMembersAreTheirOwnNearest(t *testing.T) {
	points := randomPoints(200, 2, 3)
	mask := everyOther(len(points))

	groups, err := KDTree{}.Find(points, mask, 3)
	require.NoError(t, err)
	for i, row := range groups {
		require.Len(t, row, 3)
		if mask[i] {
			assert.Equal(t, i, row[0])
		}
		for _, j := range row {
			assert.True(t, mask[j], "neighbor %d of %d is outside the partition", j, i)
		}
	}
}

func TestFindErrors(t *testing.T) {
	points := randomPoints(10, 2, 1)
	mask := make([]bool, 10)
	mask[0], mask[1] = true, true

	for name, s := range map[string]Searcher{"brute": BruteForce{}, "kdtree": KDTree{}} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Find(points, mask, 3)
			assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

			_, err = s.Find(points, mask, 0)
			assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

			_, err = s.Find(points, mask[:5], 1)
			assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
		})
	}
}

func TestSameLabelGroupsArePure(t *testing.T) {
	points := randomPoints(500, 2, 11)
	isSignal := make([]bool, len(points))
	for i := range isSignal {
		isSignal[i] = i%3 == 0
	}

	groups, err := SameLabelGroups(points, isSignal, 4, KDTree{})
	require.NoError(t, err)
	require.Len(t, groups, len(points))
	for i, row := range groups {
		require.Len(t, row, 4)
		for _, j := range row {
			assert.Equal(t, isSignal[i], isSignal[j], "sample %d grouped with %d", i, j)
		}
	}
}

func TestSameLabelGroupsSmallPartition(t *testing.T) {
	points := randomPoints(20, 1, 5)
	isSignal := make([]bool, 20)
	isSignal[0] = true

	_, err := SameLabelGroups(points, isSignal, 2, BruteForce{})
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}
