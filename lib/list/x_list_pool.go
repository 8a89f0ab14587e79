package list

import (
	"fmt"
	"slices"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xpool/lib/infra"
	"github.com/benz9527/xpool/xlog"
)

// References:
// https://github.com/boltdb/bolt/blob/master/freelist.go
// https://en.wikipedia.org/wiki/Free_list
//
// Slots and handles:
//
//	 handle:   1      2      3      4      5
//	        +------+------+------+------+------+
//	 slots: |  A   |  x   |  B   |  y   |  C   |  free head = 4
//	        +------+------+------+------+------+
//	 next:     3      0      5      2      0
//
//	 list (head 1): A -> B -> C -> end
//	 free list:     4 -> 2 -> end

const listPoolEnd = 0

var _ ListPool[int, ListHandle] = (*xListPool[int, ListHandle])(nil)

type xListPool[T any, N infra.Unsigned] struct {
	nodes    []xListPoolNode[T, N]
	freeHead N
	freeLen  int
	maxSlots int
	cloner   func(T) T
	logger   xlog.XLogger
	stats    *listPoolStats
}

func (pool *xListPool[T, N]) Capacity() int {
	return cap(pool.nodes)
}

func (pool *xListPool[T, N]) Len() int {
	return len(pool.nodes)
}

func (pool *xListPool[T, N]) FreeLen() int {
	return pool.freeLen
}

func (pool *xListPool[T, N]) LiveLen() int {
	return len(pool.nodes) - pool.freeLen
}

// slotLimit returns the max number of slots, limited by both handle type and options.
func (pool *xListPool[T, N]) slotLimit() int {
	limit := pool.maxSlots
	if limit <= 0 || !infra.FitsIn[N](limit) {
		if hmax := infra.MaxOf[N](); uint64(hmax) < uint64(^uint(0)>>1) {
			limit = int(hmax)
		} else {
			limit = int(^uint(0) >> 1)
		}
	}
	return limit
}

func (pool *xListPool[T, N]) Reserve(n int) error {
	if n <= cap(pool.nodes) {
		return nil
	}
	if limit := pool.slotLimit(); n > limit {
		pool.logger.Warn("list pool reserve rejected",
			zap.Int("request", n),
			zap.Int("limit", limit),
		)
		return infra.WrapErrorStackWithMessage(ErrListPoolExhausted,
			fmt.Sprintf("reserve %d slots over the limit %d", n, limit))
	}
	old := cap(pool.nodes)
	// Handles are indices, the copied storage keeps all of them valid.
	pool.nodes = slices.Grow(pool.nodes, n-len(pool.nodes))
	pool.logger.Debug("list pool reserved",
		zap.Int("oldCapacity", old),
		zap.Int("newCapacity", cap(pool.nodes)),
	)
	pool.stats.RecordCapacity(cap(pool.nodes))
	return nil
}

func (pool *xListPool[T, N]) NewList() N {
	return N(listPoolEnd)
}

func (pool *xListPool[T, N]) End() N {
	return N(listPoolEnd)
}

func (pool *xListPool[T, N]) IsEmpty(head N) bool {
	return head == listPoolEnd
}

func (pool *xListPool[T, N]) isSlotHandle(h N) bool {
	return h != listPoolEnd && uint64(h) <= uint64(len(pool.nodes))
}

func (pool *xListPool[T, N]) checkedNode(h N) (*xListPoolNode[T, N], error) {
	if !pool.isSlotHandle(h) {
		return nil, infra.WrapErrorStackWithMessage(ErrListPoolInvalidHandle,
			fmt.Sprintf("handle %d out of slots range [1, %d]", uint64(h), len(pool.nodes)))
	}
	return &pool.nodes[slotOf(h)], nil
}

func (pool *xListPool[T, N]) Value(h N) (T, error) {
	node, err := pool.checkedNode(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return node.value, nil
}

func (pool *xListPool[T, N]) ValueRef(h N) (*T, error) {
	node, err := pool.checkedNode(h)
	if err != nil {
		return nil, err
	}
	return &node.value, nil
}

func (pool *xListPool[T, N]) SetValue(h N, v T) error {
	node, err := pool.checkedNode(h)
	if err != nil {
		return err
	}
	node.value = v
	return nil
}

func (pool *xListPool[T, N]) Next(h N) (N, error) {
	node, err := pool.checkedNode(h)
	if err != nil {
		return N(listPoolEnd), err
	}
	return node.next, nil
}

func (pool *xListPool[T, N]) SetNext(h, next N) error {
	node, err := pool.checkedNode(h)
	if err != nil {
		return err
	}
	if next != listPoolEnd && !pool.isSlotHandle(next) {
		return infra.WrapErrorStackWithMessage(ErrListPoolInvalidHandle,
			fmt.Sprintf("next handle %d out of slots range [1, %d]", uint64(next), len(pool.nodes)))
	}
	node.next = next
	return nil
}

func (pool *xListPool[T, N]) UncheckedValue(h N) *T {
	return &pool.nodes[slotOf(h)].value
}

func (pool *xListPool[T, N]) UncheckedNext(h N) *N {
	return &pool.nodes[slotOf(h)].next
}

func (pool *xListPool[T, N]) AddNode(v T, next N) (N, error) {
	if /* reuse */ pool.freeHead != listPoolEnd {
		h := pool.freeHead
		node := &pool.nodes[slotOf(h)]
		pool.freeHead = node.next
		pool.freeLen--
		node.value = v
		node.next = next
		pool.stats.RecordSlotAllocated(true)
		return h, nil
	}

	if limit := pool.slotLimit(); len(pool.nodes) >= limit {
		pool.logger.Warn("list pool allocation rejected",
			zap.Int("slots", len(pool.nodes)),
			zap.Int("limit", limit),
		)
		return N(listPoolEnd), infra.WrapErrorStackWithMessage(ErrListPoolExhausted,
			fmt.Sprintf("slots reach to the limit %d", limit))
	}
	old := cap(pool.nodes)
	pool.nodes = append(pool.nodes, xListPoolNode[T, N]{value: v, next: next})
	if /* grown */ cap(pool.nodes) != old {
		pool.logger.Debug("list pool backing storage grown",
			zap.Int("oldCapacity", old),
			zap.Int("newCapacity", cap(pool.nodes)),
		)
		pool.stats.RecordCapacity(cap(pool.nodes))
	}
	pool.stats.RecordSlotAllocated(false)
	return handleOf[N](len(pool.nodes) - 1), nil
}

func (pool *xListPool[T, N]) PushFront(v T, head N) (N, error) {
	return pool.AddNode(v, head)
}

func (pool *xListPool[T, N]) PushBack(v T, head N) (N, error) {
	if pool.IsEmpty(head) {
		return pool.AddNode(v, N(listPoolEnd))
	}
	it := pool.Iter(head)
	for it.NextHandle() != listPoolEnd {
		it.Advance()
	}
	if _, err := pool.PushBackTail(v, it.Index()); err != nil {
		return head, err
	}
	return head, nil
}

func (pool *xListPool[T, N]) PushBackTail(v T, tail N) (N, error) {
	h, err := pool.AddNode(v, N(listPoolEnd))
	if err != nil || tail == listPoolEnd {
		return h, err
	}
	// The backing storage may be reallocated by AddNode, relink by handle.
	pool.nodes[slotOf(tail)].next = h
	return h, nil
}

func (pool *xListPool[T, N]) Free(head N) N {
	if pool.IsEmpty(head) {
		return head
	}
	node := &pool.nodes[slotOf(head)]
	newHead := node.next
	var zero T
	node.value = zero // Release the references for GC.
	node.next = pool.freeHead
	pool.freeHead = head
	pool.freeLen++
	pool.stats.RecordSlotFreed(1)
	return newHead
}

func (pool *xListPool[T, N]) FreeList(head N) N {
	for !pool.IsEmpty(head) {
		head = pool.Free(head)
	}
	return head
}

func (pool *xListPool[T, N]) Iter(head N) ListPoolIter[T, N] {
	return ListPoolIter[T, N]{pool: pool, index: head}
}

func (pool *xListPool[T, N]) IterEnd() ListPoolIter[T, N] {
	return ListPoolIter[T, N]{pool: pool, index: N(listPoolEnd)}
}

func (pool *xListPool[T, N]) ConstIter(head N) ListPoolConstIter[T, N] {
	return pool.Iter(head).ReadOnly()
}

func (pool *xListPool[T, N]) ConstIterEnd() ListPoolConstIter[T, N] {
	return pool.IterEnd().ReadOnly()
}

func (pool *xListPool[T, N]) Foreach(head N, fn func(idx int64, h N, v *T) bool) {
	if fn == nil {
		return
	}
	idx := int64(0)
	for it := pool.Iter(head); !it.IsEnd(); it.Advance() {
		if !fn(idx, it.Index(), it.Value()) {
			return
		}
		idx++
	}
}

func (pool *xListPool[T, N]) Count(head N) int64 {
	count := int64(0)
	for it := pool.Iter(head); !it.IsEnd(); it.Advance() {
		count++
	}
	return count
}

func (pool *xListPool[T, N]) Values(head N) []T {
	values := make([]T, 0, 8)
	for it := pool.ConstIter(head); !it.IsEnd(); it.Advance() {
		values = append(values, it.Value())
	}
	return values
}

// freeSlots marks the slots threaded by the free list.
func (pool *xListPool[T, N]) freeSlots() []bool {
	marks := make([]bool, len(pool.nodes))
	for h := pool.freeHead; h != listPoolEnd; h = pool.nodes[slotOf(h)].next {
		marks[slotOf(h)] = true
	}
	return marks
}

func (pool *xListPool[T, N]) Clone() ListPool[T, N] {
	nodes := make([]xListPoolNode[T, N], len(pool.nodes), cap(pool.nodes))
	copy(nodes, pool.nodes)
	if pool.cloner != nil {
		free := pool.freeSlots()
		for i := range nodes {
			if !free[i] {
				nodes[i].value = pool.cloner(nodes[i].value)
			}
		}
	}
	pool.logger.Debug("list pool cloned",
		zap.Int("slots", len(nodes)),
		zap.Int("freeSlots", pool.freeLen),
	)
	// The clone is not observed by the source stats.
	return &xListPool[T, N]{
		nodes:    nodes,
		freeHead: pool.freeHead,
		freeLen:  pool.freeLen,
		maxSlots: pool.maxSlots,
		cloner:   pool.cloner,
		logger:   pool.logger,
	}
}

func (pool *xListPool[T, N]) Move() ListPool[T, N] {
	dst := &xListPool[T, N]{
		nodes:    pool.nodes,
		freeHead: pool.freeHead,
		freeLen:  pool.freeLen,
		maxSlots: pool.maxSlots,
		cloner:   pool.cloner,
		logger:   pool.logger,
		stats:    pool.stats,
	}
	pool.nodes = nil
	pool.freeHead = N(listPoolEnd)
	pool.freeLen = 0
	pool.stats = nil
	pool.logger.Debug("list pool moved", zap.Int("slots", len(dst.nodes)))
	return dst
}

func (pool *xListPool[T, N]) Reset() {
	live := int64(pool.LiveLen())
	clear(pool.nodes)
	pool.nodes = pool.nodes[:0]
	pool.freeHead = N(listPoolEnd)
	pool.freeLen = 0
	pool.stats.RecordSlotFreed(live)
	pool.logger.Debug("list pool reset", zap.Int64("releasedSlots", live))
}

func (pool *xListPool[T, N]) Close() error {
	stats := pool.stats
	pool.stats = nil
	if err := stats.Close(); err != nil {
		return infra.WrapErrorStackWithMessage(err, "list pool stats unregister failed")
	}
	return nil
}

// NewListPoolOf creates a list pool addressed by the handle type N.
func NewListPoolOf[T any, N infra.Unsigned](opts ...ListPoolOption) (ListPool[T, N], error) {
	o := &listPoolOptions{}
	var merr error
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		merr = multierr.Append(merr, opt(o))
	}
	pool := &xListPool[T, N]{
		freeHead: N(listPoolEnd),
		maxSlots: o.maxSlots,
		logger:   o.getLogger().Named(listPoolLoggerName),
	}
	if o.valueCloner != nil {
		cloner, ok := o.valueCloner.(func(T) T)
		if !ok {
			merr = multierr.Append(merr, infra.WrapErrorStackWithMessage(ErrListPoolInvalidOption,
				fmt.Sprintf("value cloner %T mismatches the value type", o.valueCloner)))
		}
		pool.cloner = cloner
	}
	if o.maxSlots > 0 && o.capacity > o.maxSlots {
		merr = multierr.Append(merr, infra.WrapErrorStackWithMessage(ErrListPoolInvalidOption,
			fmt.Sprintf("capacity %d over max slots %d", o.capacity, o.maxSlots)))
	}
	if merr != nil {
		return nil, merr
	}
	if err := pool.Reserve(o.capacity); err != nil {
		return nil, err
	}
	if o.enableStats {
		pool.stats = newListPoolStats(o.getStatsName())
		pool.stats.RecordCapacity(pool.Capacity())
	}
	return pool, nil
}

// NewListPool creates a list pool addressed by ListHandle.
func NewListPool[T any](opts ...ListPoolOption) (ListPool[T, ListHandle], error) {
	return NewListPoolOf[T, ListHandle](opts...)
}
