package bridge

import (
	"sync/atomic"

	"github.com/caffeineduck/wasmui/vnode"
)

// Adapter is the set of primitives the host framework supplies.
type Adapter interface {
	// CreateElement builds a component node for c with props passed through
	// unchanged.
	CreateElement(c Component, props Props) *vnode.Node

	// UseState returns the current value of the calling instance's next state
	// slot, running init on the first render only. The setter applies update
	// to the latest value and schedules a re-render.
	UseState(init func() any) (any, func(update func(prev any) any))

	// UseEffect schedules effect after the render commits. The cleanup it
	// returns runs before the effect runs again and on unmount. A nil deps
	// slice re-runs every render; an empty one runs once.
	UseEffect(effect func() func(), deps []any)
}

type adapterSlot struct {
	a Adapter
}

var slot atomic.Pointer[adapterSlot]

// SetAdapter installs the host framework's primitives. Call it once at
// startup before any component renders.
func SetAdapter(a Adapter) {
	slot.Store(&adapterSlot{a: a})
}

// adapter returns the installed adapter. Rendering before SetAdapter is a
// programming error and panics.
func adapter() Adapter {
	s := slot.Load()
	if s == nil || s.a == nil {
		panic("bridge: adapter not set; call SetAdapter before rendering")
	}
	return s.a
}
