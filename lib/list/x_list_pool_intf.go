package list

import (
	"errors"

	"github.com/benz9527/xpool/lib/infra"
)

// Note that the list pool is not thread safe.
// Lists sharing one pool also share its free list, so concurrent
// mutation of two different lists is a data race as well.
// Serialize the access externally or use one pool per goroutine.

var (
	ErrListPoolInvalidHandle = errors.New("[x-list-pool] invalid handle")
	ErrListPoolExhausted     = errors.New("[x-list-pool] handle space or max slots exhausted")
	ErrListPoolInvalidOption = errors.New("[x-list-pool] invalid option")
)

// ListHandle is the default handle type of NewListPool.
// 0 is the end (empty list) sentinel, the others are 1 + slot index.
type ListHandle uint64

// ListPool stores the nodes of many singly linked lists in one
// growable backing slice. A list is identified by its head handle only,
// the pool hands back the updated head from every mutation.
//
// The handles are plain integers without lifetime. A handle which has
// been freed and then reissued by a later allocation silently aliases
// the new content. It is not detected.
type ListPool[T any, N infra.Unsigned] interface {
	// Capacity returns the number of slots the backing storage holds without growth.
	Capacity() int
	// Len returns the number of slots ever appended, live or free.
	Len() int
	// FreeLen returns the number of slots in the free list.
	FreeLen() int
	// LiveLen returns the number of slots held by lists.
	LiveLen() int
	// Reserve guarantees the backing storage holds at least n slots.
	// It is a no-op if the capacity is sufficient already, and fails with
	// ErrListPoolExhausted if n is over the handle space or the max slots.
	Reserve(n int) error

	// NewList returns an empty list, which is the end sentinel.
	NewList() N
	// End returns the end sentinel.
	End() N
	IsEmpty(head N) bool

	// Value returns a copy of the value addressed by handle h.
	Value(h N) (T, error)
	// ValueRef returns the reference of the value addressed by handle h.
	// The reference is only valid until the next allocation grows the backing storage.
	ValueRef(h N) (*T, error)
	SetValue(h N, v T) error
	// Next returns the handle the node h points to.
	Next(h N) (N, error)
	// SetNext relinks the node h to next, which must be the end sentinel or a slot handle.
	SetNext(h, next N) error
	// UncheckedValue is the bounds unchecked version of ValueRef.
	// It panics if h is the end sentinel or out of the slots range.
	UncheckedValue(h N) *T
	// UncheckedNext is the bounds unchecked reference of the node h's next handle.
	UncheckedNext(h N) *N

	// AddNode allocates a node holding v and pointing to next.
	// Freed slots are reused before the backing storage is grown.
	AddNode(v T, next N) (N, error)
	// PushFront inserts v before head and returns the new head. O(1).
	PushFront(v T, head N) (N, error)
	// PushBack appends v after the last node of the list and returns the head,
	// which only changes if the list was empty. O(list length).
	PushBack(v T, head N) (N, error)
	// PushBackTail links v after the tail node and returns the new tail. O(1).
	// If tail is the end sentinel, the new node is a single node list, whose
	// handle is both the head and the tail.
	PushBackTail(v T, tail N) (N, error)
	// Free releases the head node of the list and returns the new head.
	// Freeing the empty list is a no-op.
	Free(head N) N
	// FreeList releases all nodes of the list and returns the end sentinel.
	FreeList(head N) N

	Iter(head N) ListPoolIter[T, N]
	IterEnd() ListPoolIter[T, N]
	ConstIter(head N) ListPoolConstIter[T, N]
	ConstIterEnd() ListPoolConstIter[T, N]
	// Foreach traverses the list from head and executes fn for each node,
	// until fn returns false.
	Foreach(head N, fn func(idx int64, h N, v *T) bool)
	// Count returns the number of nodes of the list. O(list length).
	Count(head N) int64
	// Values returns the copies of the list values in order.
	Values(head N) []T

	// Clone deep copies the backing storage and the free list.
	Clone() ListPool[T, N]
	// Move transfers the backing storage into a new pool and leaves this one empty.
	Move() ListPool[T, N]
	// Reset releases all the lists at once and keeps the capacity.
	Reset()
	// Close stops reporting the pool stats. The pool stays usable, unobserved.
	Close() error
}
