package stream

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(v int64) int64 { return v }

func TestMergeDescending(t *testing.T) {
	ctx := context.Background()
	merged := MergeDescending(identity,
		FromSlice([]int64{9, 5, 1}),
		FromSlice([]int64{8, 4}),
		FromSlice([]int64{7, 6, 3, 2}),
	)

	got, err := Collect(ctx, merged)
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 8, 7, 6, 5, 4, 3, 2, 1}, got)
}

func TestMergeDescendingEmptyInputs(t *testing.T) {
	ctx := context.Background()

	got, err := Collect(ctx, MergeDescending[int64](identity))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Collect(ctx, MergeDescending(identity, FromSlice[int64](nil), FromSlice([]int64{3})))
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, got)
}

type tagged struct {
	key int64
	src string
}

func TestMergeDescendingTiesFollowInputOrder(t *testing.T) {
	ctx := context.Background()
	key := func(v tagged) int64 { return v.key }

	merged := MergeDescending(key,
		FromSlice([]tagged{{5, "a"}, {1, "a"}}),
		FromSlice([]tagged{{5, "b"}}),
	)

	got, err := Collect(ctx, merged)
	require.NoError(t, err)
	assert.Equal(t, []tagged{{5, "a"}, {5, "b"}, {1, "a"}}, got)
}

// countingIterator records how many values were pulled
type countingIterator struct {
	items  []int64
	pulled int
}

func (c *countingIterator) Next(ctx context.Context) (int64, bool, error) {
	if c.pulled >= len(c.items) {
		return 0, false, nil
	}
	v := c.items[c.pulled]
	c.pulled++
	return v, true, nil
}

func TestMergeDescendingIsLazy(t *testing.T) {
	ctx := context.Background()
	a := &countingIterator{items: []int64{10, 9, 8}}
	b := &countingIterator{items: []int64{1, 0}}

	merged := MergeDescending(identity, a, b)

	v, ok, err := merged.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), v)
	assert.Equal(t, 1, a.pulled)
	assert.Equal(t, 1, b.pulled)

	_, _, err = merged.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, a.pulled)
	assert.Equal(t, 1, b.pulled, "only the consumed input is refilled")
}

func TestMergeDescendingPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := Func[int64](func(ctx context.Context) (int64, bool, error) {
		return 0, false, boom
	})

	_, err := Collect(context.Background(), MergeDescending(identity, FromSlice([]int64{1}), failing))
	assert.ErrorIs(t, err, boom)
}

type tx struct {
	time int64
	hash string
}

func TestDedupeWithinRun(t *testing.T) {
	ctx := context.Background()
	// Two addresses see a and b in the same block; the merge interleaves them
	in := FromSlice([]tx{{9, "a"}, {9, "b"}, {9, "a"}, {7, "c"}, {7, "c"}, {5, "a"}})

	got, err := Collect(ctx, DedupeWithinRun(in,
		func(v tx) int64 { return v.time },
		func(v tx) string { return v.hash }))
	require.NoError(t, err)
	assert.Equal(t, []tx{{9, "a"}, {9, "b"}, {7, "c"}, {5, "a"}}, got)
}

func TestDedupeAfterMerge(t *testing.T) {
	ctx := context.Background()
	addr1 := FromSlice([]tx{{9, "a"}, {9, "b"}, {4, "d"}})
	addr2 := FromSlice([]tx{{9, "a"}, {6, "c"}, {4, "d"}})

	merged := MergeDescending(func(v tx) int64 { return v.time }, addr1, addr2)
	got, err := Collect(ctx, DedupeWithinRun(merged,
		func(v tx) int64 { return v.time },
		func(v tx) string { return v.hash }))
	require.NoError(t, err)
	assert.Equal(t, []tx{{9, "a"}, {9, "b"}, {6, "c"}, {4, "d"}}, got)
}

func TestFilterAndMap(t *testing.T) {
	ctx := context.Background()
	evens := Filter(FromSlice([]int64{1, 2, 3, 4}), func(v int64) bool { return v%2 == 0 })
	strs := Map(evens, func(ctx context.Context, v int64) (string, error) {
		return strconv.FormatInt(v, 10), nil
	})

	got, err := Collect(ctx, strs)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4"}, got)
}

func TestReverse(t *testing.T) {
	assert.Equal(t, []int{3, 2, 1}, Reverse([]int{1, 2, 3}))
	assert.Empty(t, Reverse([]int{}))
}

// Property: merging descending runs equals sorting their union descending
func TestMergeDescendingProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("merge equals sorted union", prop.ForAll(
		func(a, b, c []int64) bool {
			inputs := [][]int64{a, b, c}
			var union []int64
			iters := make([]Iterator[int64], 0, len(inputs))
			for _, in := range inputs {
				sorted := append([]int64(nil), in...)
				sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
				union = append(union, sorted...)
				iters = append(iters, FromSlice(sorted))
			}
			sort.Slice(union, func(i, j int) bool { return union[i] > union[j] })

			got, err := Collect(context.Background(), MergeDescending(identity, iters...))
			if err != nil || len(got) != len(union) {
				return false
			}
			for i := range got {
				if got[i] != union[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(0, 1000)),
		gen.SliceOf(gen.Int64Range(0, 1000)),
		gen.SliceOf(gen.Int64Range(0, 1000)),
	))

	properties.TestingRun(t)
}
