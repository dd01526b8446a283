// Package bridge binds components whose state lives in foreign,
// non-garbage-collected memory to a hook-based component framework.
//
// # Overview
//
// A host framework re-renders components by calling them repeatedly and
// rebuilds their props every time. Foreign state is invisible to Go's
// garbage collector and to the host's change detection, so the bridge
// decides when it is released: on the lifecycle edges the host reports.
//
// # Setup
//
// Install the host's primitives once, before anything renders:
//
//	bridge.SetAdapter(renderer)
//	bridge.BindExports(module)
//
// # Components
//
// The [Registry] hands out exactly one [Wrapper] per component name. The
// host compares component identity to decide whether to keep or remount an
// instance's hook state, so the same name must always map to the same
// pointer:
//
//	el := bridge.CreateElement("Counter", bridge.BoxedProps(counter))
//
// Props are a tagged union. [BoxedProps] transfers ownership of a foreign
// component into the rendered tree: the bridge frees it once a different
// instance replaces it or the host unmounts it. [PlainProps] carry no
// ownership and are passed to the name's exported render function.
//
// # Bridged State
//
// [UseBridgedState] keeps one foreign handle alive for the lifetime of a
// mounted instance:
//
//	h, apply := bridge.UseBridgedState(newCounter, freeCounter)
//	apply(func() { increment(h) }) // mutates in place, forces a re-render
package bridge
