package pagination

import (
	"context"
	stderrors "errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chain-ledger/internal/errors"
)

func ints(from, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = from + i
	}
	return out
}

func TestOffsetStopsOnShortPage(t *testing.T) {
	var requests []Request
	fetch := func(ctx context.Context, req Request) (Page[int], error) {
		requests = append(requests, req)
		switch req.Page {
		case 1:
			return Page[int]{Items: ints(0, 100)}, nil
		case 2:
			return Page[int]{Items: ints(100, 37)}, nil
		}
		t.Fatalf("unexpected page %d", req.Page)
		return Page[int]{}, nil
	}

	items, err := Collect(context.Background(), Config{Style: Offset, PageSize: 100, FirstPage: 1, Endpoint: "test"}, fetch)
	require.NoError(t, err)

	assert.Len(t, items, 137)
	assert.Len(t, requests, 2)
	assert.Equal(t, 1, requests[0].Page)
	assert.Equal(t, 2, requests[1].Page)
	assert.Equal(t, 100, requests[1].PageSize)
}

func TestOffsetStopsOnEmptyPage(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, req Request) (Page[int], error) {
		calls++
		if req.Page == 0 {
			return Page[int]{Items: ints(0, 10)}, nil
		}
		return Page[int]{}, nil
	}

	items, err := Collect(context.Background(), Config{Style: Offset, PageSize: 10, Endpoint: "test"}, fetch)
	require.NoError(t, err)
	assert.Len(t, items, 10)
	assert.Equal(t, 2, calls)
}

func TestCursorTermination(t *testing.T) {
	tests := []struct {
		name      string
		last      Page[int]
		shortStop bool
		wantCalls int
	}{
		{name: "empty next cursor", last: Page[int]{Items: ints(0, 2), Next: "", HasMore: true}, wantCalls: 2},
		{name: "has more false", last: Page[int]{Items: ints(0, 2), Next: "c2", HasMore: false}, wantCalls: 2},
		{name: "empty page", last: Page[int]{Next: "c2", HasMore: true}, wantCalls: 2},
		{name: "short page with stop", last: Page[int]{Items: ints(0, 1), Next: "c2", HasMore: true}, shortStop: true, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cursors []string
			fetch := func(ctx context.Context, req Request) (Page[int], error) {
				cursors = append(cursors, req.Cursor)
				if req.Cursor == "" {
					return Page[int]{Items: ints(0, 2), Next: "c1", HasMore: true}, nil
				}
				if len(cursors) > 2 {
					t.Fatalf("fetched past the last page")
				}
				return tt.last, nil
			}

			cfg := Config{Style: Cursor, PageSize: 2, StopOnShortPage: tt.shortStop, Endpoint: "test"}
			_, err := Collect(context.Background(), cfg, fetch)
			require.NoError(t, err)
			assert.Len(t, cursors, tt.wantCalls)
			assert.Equal(t, []string{"", "c1"}, cursors)
		})
	}
}

func TestRunawayPagination(t *testing.T) {
	fetch := func(ctx context.Context, req Request) (Page[int], error) {
		return Page[int]{Items: ints(0, 5), Next: "p" + strconv.Itoa(req.Page), HasMore: true}, nil
	}

	_, err := Collect(context.Background(), Config{Style: Offset, PageSize: 5, MaxPages: 3, Endpoint: "loop"}, fetch)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRunawayPagination)
	assert.True(t, errors.IsCategory(err, errors.CategoryPagination))
}

func TestFetchErrorStopsIteration(t *testing.T) {
	boom := stderrors.New("boom")
	calls := 0
	fetch := func(ctx context.Context, req Request) (Page[int], error) {
		calls++
		if calls == 2 {
			return Page[int]{}, boom
		}
		return Page[int]{Items: ints(0, 3)}, nil
	}

	it := Iterate(Config{Style: Offset, PageSize: 3, Endpoint: "test"}, fetch)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, ok, err := it.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
	}
	_, _, err := it.Next(ctx)
	assert.ErrorIs(t, err, boom)

	_, ok, err := it.Next(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, calls)
}

func TestIterateIsLazy(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, req Request) (Page[int], error) {
		calls++
		return Page[int]{Items: ints(0, 2)}, nil
	}

	it := Iterate(Config{Style: Offset, PageSize: 2, Endpoint: "test"}, fetch)
	assert.Equal(t, 0, calls)

	_, _, err := it.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
