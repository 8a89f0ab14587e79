package list

import (
	"github.com/benz9527/xpool/lib/infra"
)

// ListPoolIter is a forward cursor over the nodes of one list.
// It starts at any handle and stops at the end sentinel.
// The cursor doesn't rewind, restart it from the stored head handle.
type ListPoolIter[T any, N infra.Unsigned] struct {
	pool  *xListPool[T, N]
	index N
}

func (it ListPoolIter[T, N]) node() *xListPoolNode[T, N] {
	return &it.pool.nodes[slotOf(it.index)]
}

func (it ListPoolIter[T, N]) IsEnd() bool {
	return it.index == listPoolEnd
}

// Value dereferences the cursor. It panics at the end sentinel.
func (it ListPoolIter[T, N]) Value() *T {
	return &it.node().value
}

// NextHandle returns the next handle of current node. It panics at the end sentinel.
func (it ListPoolIter[T, N]) NextHandle() N {
	return it.node().next
}

// Index returns the current handle.
func (it ListPoolIter[T, N]) Index() N {
	return it.index
}

// Advance moves the cursor to the next node.
func (it *ListPoolIter[T, N]) Advance() {
	it.index = it.node().next
}

// PostAdvance moves the cursor to the next node and returns the cursor before moving.
func (it *ListPoolIter[T, N]) PostAdvance() ListPoolIter[T, N] {
	prev := *it
	it.Advance()
	return prev
}

// Equal reports whether both cursors point to the same handle of the same pool.
func (it ListPoolIter[T, N]) Equal(that ListPoolIter[T, N]) bool {
	return it.pool == that.pool && it.index == that.index
}

func (it ListPoolIter[T, N]) ReadOnly() ListPoolConstIter[T, N] {
	return ListPoolConstIter[T, N]{it: it}
}

// ListPoolConstIter is the read-only view of ListPoolIter.
type ListPoolConstIter[T any, N infra.Unsigned] struct {
	it ListPoolIter[T, N]
}

func (cit ListPoolConstIter[T, N]) IsEnd() bool   { return cit.it.IsEnd() }
func (cit ListPoolConstIter[T, N]) Value() T      { return *cit.it.Value() }
func (cit ListPoolConstIter[T, N]) NextHandle() N { return cit.it.NextHandle() }
func (cit ListPoolConstIter[T, N]) Index() N      { return cit.it.Index() }
func (cit *ListPoolConstIter[T, N]) Advance()     { cit.it.Advance() }
func (cit *ListPoolConstIter[T, N]) PostAdvance() ListPoolConstIter[T, N] {
	return ListPoolConstIter[T, N]{it: cit.it.PostAdvance()}
}
func (cit ListPoolConstIter[T, N]) Equal(that ListPoolConstIter[T, N]) bool {
	return cit.it.Equal(that.it)
}
