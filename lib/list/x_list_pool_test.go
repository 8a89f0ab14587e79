package list

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benz9527/xpool/xlog"
)

func newTestListPool[T any](t *testing.T, opts ...ListPoolOption) ListPool[T, ListHandle] {
	pool, err := NewListPool[T](opts...)
	require.NoError(t, err)
	require.NotNil(t, pool)
	return pool
}

func TestListPool_Scenarios(t *testing.T) {
	t.Run("push front", func(tt *testing.T) {
		pool := newTestListPool[int](tt)
		l := pool.NewList()
		require.Equal(tt, ListHandle(0), l)
		require.True(tt, pool.IsEmpty(l))

		h1, err := pool.PushFront(5, l)
		require.NoError(tt, err)
		require.NotEqual(tt, ListHandle(0), h1)
		v, err := pool.Value(h1)
		require.NoError(tt, err)
		require.Equal(tt, 5, v)
		next, err := pool.Next(h1)
		require.NoError(tt, err)
		require.Equal(tt, pool.End(), next)

		h2, err := pool.PushFront(3, h1)
		require.NoError(tt, err)
		require.Equal(tt, []int{3, 5}, pool.Values(h2))
	})
	t.Run("push back", func(tt *testing.T) {
		pool := newTestListPool[int](tt)
		h, err := pool.PushBack(1, pool.NewList())
		require.NoError(tt, err)
		h2, err := pool.PushBack(2, h)
		require.NoError(tt, err)
		require.Equal(tt, h, h2)
		require.Equal(tt, []int{1, 2}, pool.Values(h))
	})
	t.Run("free then reuse", func(tt *testing.T) {
		pool := newTestListPool[int](tt)
		head := pool.NewList()
		var err error
		for _, v := range []int{1, 2, 3} {
			head, err = pool.PushBack(v, head)
			require.NoError(tt, err)
		}
		freed := head
		head = pool.Free(head)
		v, err := pool.Value(head)
		require.NoError(tt, err)
		require.Equal(tt, 2, v)
		require.Equal(tt, 1, pool.FreeLen())

		capacity := pool.Capacity()
		h, err := pool.AddNode(4, pool.End())
		require.NoError(tt, err)
		require.Equal(tt, freed, h)
		require.Equal(tt, capacity, pool.Capacity())
		require.Equal(tt, 3, pool.Len())
		require.Equal(tt, 0, pool.FreeLen())
		require.Equal(tt, []int{2, 3}, pool.Values(head))
	})
}

func TestListPool_PushOrder(t *testing.T) {
	testcases := []struct {
		name   string
		ops    []bool // true: push front; false: push back
		values []int
		expect []int
	}{
		{"empty", nil, nil, []int{}},
		{"front only", []bool{true, true, true}, []int{1, 2, 3}, []int{3, 2, 1}},
		{"back only", []bool{false, false, false}, []int{1, 2, 3}, []int{1, 2, 3}},
		{"mixed", []bool{false, true, false, true, false}, []int{1, 2, 3, 4, 5}, []int{4, 2, 1, 3, 5}},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			pool := newTestListPool[int](tt)
			head := pool.NewList()
			var err error
			for i, front := range tc.ops {
				if front {
					head, err = pool.PushFront(tc.values[i], head)
				} else {
					head, err = pool.PushBack(tc.values[i], head)
				}
				require.NoError(tt, err)
			}
			require.Equal(tt, tc.expect, pool.Values(head))
			require.Equal(tt, int64(len(tc.expect)), pool.Count(head))
		})
	}
}

func TestListPool_PushBackRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 10, 1000} {
		t.Run(fmt.Sprintf("n=%d", n), func(tt *testing.T) {
			pool := newTestListPool[int](tt)
			head := pool.NewList()
			expected := make([]int, 0, n)
			var err error
			for i := 0; i < n; i++ {
				head, err = pool.PushBack(i, head)
				require.NoError(tt, err)
				expected = append(expected, i)
			}
			require.Equal(tt, expected, pool.Values(head))
			require.Equal(tt, n, pool.LiveLen())
		})
	}
}

func TestListPool_PushBackTail(t *testing.T) {
	pool := newTestListPool[string](t)
	tail, err := pool.PushBackTail("a", pool.End())
	require.NoError(t, err)
	head := tail
	for _, v := range []string{"b", "c", "d"} {
		tail, err = pool.PushBackTail(v, tail)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, pool.Values(head))
	next, err := pool.Next(tail)
	require.NoError(t, err)
	require.True(t, pool.IsEmpty(next))
}

func TestListPool_Free(t *testing.T) {
	pool := newTestListPool[int](t)
	require.Equal(t, pool.End(), pool.Free(pool.End()))
	require.Equal(t, pool.End(), pool.Free(pool.Free(pool.End())))
	require.Equal(t, 0, pool.FreeLen())

	// Freeing the last node of a list, whose next is the end sentinel.
	single, err := pool.PushFront(1, pool.NewList())
	require.NoError(t, err)
	require.Equal(t, pool.End(), pool.Free(single))
	require.Equal(t, 1, pool.FreeLen())

	// The free list is empty before, the freed node must point to end.
	next, err := pool.Next(single)
	require.NoError(t, err)
	require.Equal(t, pool.End(), next)

	// Second free links to the first freed one.
	other, err := pool.PushFront(2, pool.NewList())
	require.NoError(t, err)
	require.Equal(t, single, other)
	another, err := pool.PushFront(3, pool.NewList())
	require.NoError(t, err)
	require.Equal(t, pool.End(), pool.Free(other))
	require.Equal(t, pool.End(), pool.Free(another))
	next, err = pool.Next(another)
	require.NoError(t, err)
	require.Equal(t, other, next)
	require.Equal(t, 2, pool.FreeLen())
	require.Equal(t, 0, pool.LiveLen())

	// Freed value is reset.
	v, err := pool.Value(another)
	require.NoError(t, err)
	require.Equal(t, 0, v)

	// LIFO reuse.
	h, err := pool.AddNode(4, pool.End())
	require.NoError(t, err)
	require.Equal(t, another, h)
	h, err = pool.AddNode(5, pool.End())
	require.NoError(t, err)
	require.Equal(t, other, h)
	require.Equal(t, 2, pool.Len())
}

func TestListPool_FreeList(t *testing.T) {
	pool := newTestListPool[int](t)
	require.Equal(t, pool.End(), pool.FreeList(pool.NewList()))

	l1, l2 := pool.NewList(), pool.NewList()
	var err error
	for i := 0; i < 10; i++ {
		l1, err = pool.PushFront(i, l1)
		require.NoError(t, err)
		l2, err = pool.PushBack(i*10, l2)
		require.NoError(t, err)
	}
	require.Equal(t, 20, pool.LiveLen())
	capacity := pool.Capacity()

	require.Equal(t, pool.End(), pool.FreeList(l1))
	require.Equal(t, 10, pool.FreeLen())
	require.Equal(t, []int{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}, pool.Values(l2))

	l3 := pool.NewList()
	for i := 0; i < 10; i++ {
		l3, err = pool.PushBack(i, l3)
		require.NoError(t, err)
	}
	require.Equal(t, 20, pool.Len())
	require.Equal(t, capacity, pool.Capacity())
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, pool.Values(l3))
	require.Equal(t, []int{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}, pool.Values(l2))
}

func TestListPool_Reserve(t *testing.T) {
	pool := newTestListPool[int](t, WithListPoolCapacity(16))
	require.GreaterOrEqual(t, pool.Capacity(), 16)
	require.Equal(t, 0, pool.Len())

	capacity := pool.Capacity()
	require.NoError(t, pool.Reserve(8))
	require.Equal(t, capacity, pool.Capacity())

	head := pool.NewList()
	var err error
	for i := 0; i < 10; i++ {
		head, err = pool.PushBack(i, head)
		require.NoError(t, err)
	}
	require.NoError(t, pool.Reserve(1024))
	require.GreaterOrEqual(t, pool.Capacity(), 1024)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, pool.Values(head))

	prev := pool.Capacity()
	for i := 0; i < 2048; i++ {
		head, err = pool.PushFront(i, head)
		require.NoError(t, err)
		require.GreaterOrEqual(t, pool.Capacity(), prev)
		prev = pool.Capacity()
	}
}

func TestListPool_StrictAccessors(t *testing.T) {
	pool := newTestListPool[int](t)
	h, err := pool.PushFront(7, pool.NewList())
	require.NoError(t, err)

	invalid := []ListHandle{pool.End(), h + 1, 1 << 40}
	for _, ih := range invalid {
		_, err = pool.Value(ih)
		require.ErrorIs(t, err, ErrListPoolInvalidHandle)
		_, err = pool.ValueRef(ih)
		require.ErrorIs(t, err, ErrListPoolInvalidHandle)
		_, err = pool.Next(ih)
		require.ErrorIs(t, err, ErrListPoolInvalidHandle)
		require.ErrorIs(t, pool.SetValue(ih, 1), ErrListPoolInvalidHandle)
		require.ErrorIs(t, pool.SetNext(ih, pool.End()), ErrListPoolInvalidHandle)
	}
	require.ErrorIs(t, pool.SetNext(h, h+1), ErrListPoolInvalidHandle)

	require.NoError(t, pool.SetValue(h, 8))
	ref, err := pool.ValueRef(h)
	require.NoError(t, err)
	*ref += 1
	v, err := pool.Value(h)
	require.NoError(t, err)
	require.Equal(t, 9, v)

	h2, err := pool.PushFront(1, pool.NewList())
	require.NoError(t, err)
	require.NoError(t, pool.SetNext(h2, h))
	require.Equal(t, []int{1, 9}, pool.Values(h2))
}

func TestListPool_UncheckedAccessors(t *testing.T) {
	pool := newTestListPool[string](t)
	h, err := pool.PushFront("a", pool.NewList())
	require.NoError(t, err)
	*pool.UncheckedValue(h) = "b"
	require.Equal(t, "b", *pool.UncheckedValue(h))
	require.Equal(t, pool.End(), *pool.UncheckedNext(h))

	require.Panics(t, func() { _ = pool.UncheckedValue(pool.End()) })
	require.Panics(t, func() { _ = pool.UncheckedNext(h + 1) })
}

func TestListPool_HandleSpaceExhausted(t *testing.T) {
	pool, err := NewListPoolOf[int, uint8]()
	require.NoError(t, err)
	head := pool.NewList()
	for i := 0; i < 255; i++ {
		head, err = pool.PushFront(i, head)
		require.NoError(t, err)
	}
	require.Equal(t, uint8(255), head)
	_, err = pool.PushFront(255, head)
	require.ErrorIs(t, err, ErrListPoolExhausted)
	_, err = pool.PushBack(255, head)
	require.ErrorIs(t, err, ErrListPoolExhausted)
	require.ErrorIs(t, pool.Reserve(256), ErrListPoolExhausted)

	// Free slot reuse still works at the limit.
	head = pool.Free(head)
	head, err = pool.PushFront(0, head)
	require.NoError(t, err)
	require.Equal(t, int64(255), pool.Count(head))

	_, err = NewListPoolOf[int, uint8](WithListPoolCapacity(300))
	require.ErrorIs(t, err, ErrListPoolExhausted)
}

func TestListPool_MaxSlots(t *testing.T) {
	pool := newTestListPool[int](t, WithListPoolMaxSlots(3))
	head := pool.NewList()
	var err error
	for i := 0; i < 3; i++ {
		head, err = pool.PushBack(i, head)
		require.NoError(t, err)
	}
	_, err = pool.PushBack(3, head)
	require.ErrorIs(t, err, ErrListPoolExhausted)
	require.Equal(t, []int{0, 1, 2}, pool.Values(head))
	require.ErrorIs(t, pool.Reserve(pool.Capacity()+1), ErrListPoolExhausted)
}

func TestListPool_ReserveWithinCapacityOverMaxSlots(t *testing.T) {
	pool := newTestListPool[int](t, WithListPoolMaxSlots(10))
	head := pool.NewList()
	var err error
	for i := 0; i < 10; i++ {
		head, err = pool.PushFront(i, head)
		require.NoError(t, err)
	}
	// Append growth leaves more room than the slot cap.
	capacity := pool.Capacity()
	require.Greater(t, capacity, 10)
	require.NoError(t, pool.Reserve(12))
	require.NoError(t, pool.Reserve(capacity))
	require.Equal(t, capacity, pool.Capacity())
	require.ErrorIs(t, pool.Reserve(capacity+1), ErrListPoolExhausted)
	require.Equal(t, int64(10), pool.Count(head))
}

func TestListPool_InvalidOptions(t *testing.T) {
	testcases := []struct {
		name string
		opts []ListPoolOption
	}{
		{"negative capacity", []ListPoolOption{WithListPoolCapacity(-1)}},
		{"zero max slots", []ListPoolOption{WithListPoolMaxSlots(0)}},
		{"nil logger", []ListPoolOption{WithListPoolLogger(nil)}},
		{"nil cloner", []ListPoolOption{WithListPoolValueCloner[int](nil)}},
		{"mismatched cloner", []ListPoolOption{WithListPoolValueCloner(func(s string) string { return s })}},
		{"capacity over max slots", []ListPoolOption{WithListPoolCapacity(10), WithListPoolMaxSlots(5)}},
		{"multiple", []ListPoolOption{WithListPoolCapacity(-1), WithListPoolMaxSlots(-1)}},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			pool, err := NewListPool[int](tc.opts...)
			require.ErrorIs(tt, err, ErrListPoolInvalidOption)
			require.Nil(tt, pool)
		})
	}

	pool, err := NewListPool[int](nil)
	require.NoError(t, err)
	require.NotNil(t, pool)
}

func TestListPool_Clone(t *testing.T) {
	pool := newTestListPool[int](t)
	l1, l2 := pool.NewList(), pool.NewList()
	var err error
	for i := 1; i <= 5; i++ {
		l1, err = pool.PushBack(i, l1)
		require.NoError(t, err)
		l2, err = pool.PushFront(i*10, l2)
		require.NoError(t, err)
	}
	l1 = pool.Free(l1)

	cloned := pool.Clone()
	require.Equal(t, pool.Len(), cloned.Len())
	require.Equal(t, pool.FreeLen(), cloned.FreeLen())
	require.Equal(t, pool.Capacity(), cloned.Capacity())
	require.Equal(t, pool.Values(l1), cloned.Values(l1))
	require.Equal(t, pool.Values(l2), cloned.Values(l2))

	for it := cloned.Iter(l1); !it.IsEnd(); it.Advance() {
		*it.Value() *= 100
	}
	cl1 := cloned.FreeList(l1)
	require.True(t, cloned.IsEmpty(cl1))
	_, err = cloned.PushBack(-1, l2)
	require.NoError(t, err)

	require.Equal(t, []int{2, 3, 4, 5}, pool.Values(l1))
	require.Equal(t, []int{50, 40, 30, 20, 10}, pool.Values(l2))
	require.Equal(t, []int{50, 40, 30, 20, 10, -1}, cloned.Values(l2))

	// The same free slot is reissued in both pools independently.
	h1, err := pool.AddNode(0, pool.End())
	require.NoError(t, err)
	h2, err := pool.Clone().AddNode(0, pool.End())
	require.NoError(t, err)
	assert.NotEqual(t, pool.End(), h1)
	assert.NotEqual(t, pool.End(), h2)
}

type testListPoolObject struct {
	id string
}

func TestListPool_CloneWithValueCloner(t *testing.T) {
	calls := 0
	pool := newTestListPool[*testListPoolObject](t,
		WithListPoolValueCloner(func(o *testListPoolObject) *testListPoolObject {
			calls++
			return &testListPoolObject{id: o.id}
		}),
	)
	head := pool.NewList()
	var err error
	for i := 0; i < 4; i++ {
		head, err = pool.PushBack(&testListPoolObject{id: fmt.Sprintf("%d", i)}, head)
		require.NoError(t, err)
	}
	// The freed slot holds nil, it must be skipped by the cloner.
	head = pool.Free(head)

	cloned := pool.Clone()
	require.Equal(t, 3, calls)
	for it := cloned.Iter(head); !it.IsEnd(); it.Advance() {
		(*it.Value()).id += "-cloned"
	}
	ids := make([]string, 0, 3)
	pool.Foreach(head, func(idx int64, h ListHandle, v **testListPoolObject) bool {
		ids = append(ids, (*v).id)
		return true
	})
	require.Equal(t, []string{"1", "2", "3"}, ids)

	ids = ids[:0]
	cloned.Foreach(head, func(idx int64, h ListHandle, v **testListPoolObject) bool {
		ids = append(ids, (*v).id)
		return true
	})
	require.Equal(t, []string{"1-cloned", "2-cloned", "3-cloned"}, ids)
}

func TestListPool_Move(t *testing.T) {
	pool := newTestListPool[int](t)
	head := pool.NewList()
	var err error
	for i := 0; i < 8; i++ {
		head, err = pool.PushBack(i, head)
		require.NoError(t, err)
	}
	head = pool.Free(head)

	moved := pool.Move()
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, moved.Values(head))
	require.Equal(t, 1, moved.FreeLen())
	require.Equal(t, 8, moved.Len())

	require.Equal(t, 0, pool.Len())
	require.Equal(t, 0, pool.Capacity())
	require.Equal(t, 0, pool.FreeLen())
	_, err = pool.Value(head)
	require.ErrorIs(t, err, ErrListPoolInvalidHandle)

	// The moved-from pool is still usable.
	h, err := pool.PushBack(42, pool.NewList())
	require.NoError(t, err)
	require.Equal(t, ListHandle(1), h)
	require.Equal(t, []int{42}, pool.Values(h))
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, moved.Values(head))
}

func TestListPool_Reset(t *testing.T) {
	pool := newTestListPool[int](t)
	head := pool.NewList()
	var err error
	for i := 0; i < 100; i++ {
		head, err = pool.PushFront(i, head)
		require.NoError(t, err)
	}
	pool.Free(head)
	capacity := pool.Capacity()

	pool.Reset()
	require.Equal(t, 0, pool.Len())
	require.Equal(t, 0, pool.FreeLen())
	require.Equal(t, capacity, pool.Capacity())

	h, err := pool.PushFront(1, pool.NewList())
	require.NoError(t, err)
	require.Equal(t, ListHandle(1), h)
}

func TestListPool_Foreach(t *testing.T) {
	pool := newTestListPool[int](t)
	head := pool.NewList()
	var err error
	for i := 0; i < 10; i++ {
		head, err = pool.PushBack(i, head)
		require.NoError(t, err)
	}

	visited := make([]int64, 0, 10)
	pool.Foreach(head, func(idx int64, h ListHandle, v *int) bool {
		require.Equal(t, int(idx), *v)
		visited = append(visited, idx)
		*v *= 2
		return idx < 4
	})
	require.Equal(t, []int64{0, 1, 2, 3, 4}, visited)
	require.Equal(t, []int{0, 2, 4, 6, 8, 5, 6, 7, 8, 9}, pool.Values(head))

	pool.Foreach(head, nil)
	pool.Foreach(pool.NewList(), func(idx int64, h ListHandle, v *int) bool {
		t.Fatal("empty list must not be visited")
		return true
	})
}

func TestListPool_Logger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := xlog.NewXLogger(
		xlog.WithXLoggerWriter(buf),
		xlog.WithXLoggerLevel(xlog.LogLevelDebug),
	)
	require.NoError(t, err)

	pool := newTestListPool[int](t, WithListPoolLogger(logger), WithListPoolMaxSlots(1))
	head, err := pool.PushFront(1, pool.NewList())
	require.NoError(t, err)
	_, err = pool.PushFront(2, head)
	require.ErrorIs(t, err, ErrListPoolExhausted)

	msgs := make([]string, 0, 4)
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		require.Equal(t, listPoolLoggerName, entry["component"])
		msgs = append(msgs, entry["msg"].(string))
	}
	require.Contains(t, msgs, "list pool backing storage grown")
	require.Contains(t, msgs, "list pool allocation rejected")
}

func BenchmarkListPool_PushFront(b *testing.B) {
	pool, _ := NewListPool[int]()
	head := pool.NewList()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		head, _ = pool.PushFront(i, head)
	}
	b.ReportAllocs()
}

func BenchmarkListPool_PushFrontFreeReuse(b *testing.B) {
	pool, _ := NewListPool[int](WithListPoolCapacity(1024))
	head := pool.NewList()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		head, _ = pool.PushFront(i, head)
		if i%1024 == 1023 {
			head = pool.FreeList(head)
		}
	}
	b.ReportAllocs()
}

func BenchmarkListPool_PushBackTail(b *testing.B) {
	pool, _ := NewListPool[int]()
	tail := pool.NewList()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tail, _ = pool.PushBackTail(i, tail)
	}
	b.ReportAllocs()
}
