package bridge

import "go.uber.org/zap"

type bridgedState[H any] struct {
	ptr H
}

// UseBridgedState holds a foreign handle for the lifetime of the calling
// component instance. create runs on the instance's first render only and
// onFree runs once, on unmount.
//
// The returned apply runs mutator, which changes foreign state in place,
// inside the host's state update, and stores a fresh state container around
// the same handle so the host sees a change and re-renders. The host skips
// updates to unmounted instances, so a mutator applied after release never
// touches the freed handle.
func UseBridgedState[H any](create func() H, onFree func(H)) (H, func(mutator func())) {
	a := adapter()

	v, set := a.UseState(func() any {
		observer().StateCreated()
		return &bridgedState[H]{ptr: create()}
	})
	st := v.(*bridgedState[H])

	newLease(func() {
		Logger().Debug("releasing bridged state", zap.Any("handle", st.ptr))
		onFree(st.ptr)
		observer().StateFreed()
	}).bind(a, []any{})

	apply := func(mutator func()) {
		set(func(prev any) any {
			mutator()
			return &bridgedState[H]{ptr: prev.(*bridgedState[H]).ptr}
		})
	}
	return st.ptr, apply
}

// Cast returns v unchanged. Call sites use it to pin a value to a static type.
func Cast[T any](v T) T { return v }
