// Package stream provides pull-based iterators used to walk paginated
// upstream histories without materialising them.
package stream

import (
	"context"
)

// Iterator yields values one at a time. ok is false once the iterator is
// exhausted; an error ends iteration.
type Iterator[T any] interface {
	Next(ctx context.Context) (value T, ok bool, err error)
}

// Func adapts a plain function to Iterator
type Func[T any] func(ctx context.Context) (T, bool, error)

// Next calls f
func (f Func[T]) Next(ctx context.Context) (T, bool, error) {
	return f(ctx)
}

// FromSlice iterates over items in order
func FromSlice[T any](items []T) Iterator[T] {
	i := 0
	return Func[T](func(ctx context.Context) (T, bool, error) {
		var zero T
		if i >= len(items) {
			return zero, false, nil
		}
		v := items[i]
		i++
		return v, true, nil
	})
}

// Collect drains it into a slice
func Collect[T any](ctx context.Context, it Iterator[T]) ([]T, error) {
	var out []T
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		v, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// Filter yields only values for which keep returns true
func Filter[T any](it Iterator[T], keep func(T) bool) Iterator[T] {
	return Func[T](func(ctx context.Context) (T, bool, error) {
		for {
			v, ok, err := it.Next(ctx)
			if err != nil || !ok {
				return v, ok, err
			}
			if keep(v) {
				return v, true, nil
			}
		}
	})
}

// Map transforms each value. An error from fn ends iteration.
func Map[T, U any](it Iterator[T], fn func(context.Context, T) (U, error)) Iterator[U] {
	return Func[U](func(ctx context.Context) (U, bool, error) {
		var zero U
		v, ok, err := it.Next(ctx)
		if err != nil || !ok {
			return zero, ok, err
		}
		u, err := fn(ctx, v)
		if err != nil {
			return zero, false, err
		}
		return u, true, nil
	})
}

// DedupeWithinRun drops values whose key was already yielded within the
// current run of values sharing one run key. On a stream sorted by the run
// key every key therefore comes out once, even when equal run keys
// interleave several inputs.
func DedupeWithinRun[T any, R comparable, K comparable](it Iterator[T], run func(T) R, key func(T) K) Iterator[T] {
	var (
		current R
		started bool
		seen    = make(map[K]struct{})
	)
	return Func[T](func(ctx context.Context) (T, bool, error) {
		for {
			v, ok, err := it.Next(ctx)
			if err != nil || !ok {
				return v, ok, err
			}
			if r := run(v); !started || r != current {
				current, started = r, true
				clear(seen)
			}
			k := key(v)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			return v, true, nil
		}
	})
}

// Reverse returns a reversed copy of items
func Reverse[T any](items []T) []T {
	out := make([]T, len(items))
	for i, v := range items {
		out[len(items)-1-i] = v
	}
	return out
}
