package list

import (
	"github.com/benz9527/xpool/lib/infra"
)

// The next field is shared by the lists and the free list.
// Only the pool's free list head tells which chain a slot belongs to.
type xListPoolNode[T any, N infra.Unsigned] struct {
	next  N
	value T
}

// The handle of a slot is 1 + slot index, so 0 is left for the end sentinel.
// slotOf and handleOf are the only places to do the translation.

func slotOf[N infra.Unsigned](h N) int {
	return int(h) - 1
}

func handleOf[N infra.Unsigned](slot int) N {
	return N(slot + 1)
}
