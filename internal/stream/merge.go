package stream

import (
	"context"
)

type head[T any] struct {
	value  T
	loaded bool
	done   bool
}

type descendingMerge[T any] struct {
	key    func(T) int64
	inputs []Iterator[T]
	heads  []head[T]
	last   int // input consumed on the previous call, -1 if none
}

// MergeDescending merges inputs that are each sorted by key descending into
// one descending sequence. Inputs are pulled lazily: only the input whose
// head was emitted is advanced on the next call. Equal keys are emitted in
// input order.
func MergeDescending[T any](key func(T) int64, inputs ...Iterator[T]) Iterator[T] {
	return &descendingMerge[T]{
		key:    key,
		inputs: inputs,
		heads:  make([]head[T], len(inputs)),
		last:   -1,
	}
}

func (m *descendingMerge[T]) fill(ctx context.Context, i int) error {
	h := &m.heads[i]
	if h.loaded || h.done {
		return nil
	}
	v, ok, err := m.inputs[i].Next(ctx)
	if err != nil {
		return err
	}
	if !ok {
		h.done = true
		return nil
	}
	h.value, h.loaded = v, true
	return nil
}

func (m *descendingMerge[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T

	if m.last >= 0 {
		if err := m.fill(ctx, m.last); err != nil {
			return zero, false, err
		}
	} else {
		for i := range m.inputs {
			if err := m.fill(ctx, i); err != nil {
				return zero, false, err
			}
		}
	}

	best := -1
	for i := range m.heads {
		h := m.heads[i]
		if !h.loaded {
			continue
		}
		if best < 0 || m.key(h.value) > m.key(m.heads[best].value) {
			best = i
		}
	}
	if best < 0 {
		return zero, false, nil
	}

	v := m.heads[best].value
	m.heads[best] = head[T]{}
	m.last = best
	return v, true, nil
}
