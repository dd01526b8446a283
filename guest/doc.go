// Package guest loads WebAssembly component modules with wazero and exposes
// them to the bridge.
//
// # Overview
//
// A guest module owns its component state in linear memory, outside the Go
// garbage collector. The [Runtime] compiles and caches modules; a [Module]
// is one instantiated guest and implements [bridge.Exports] for its plain
// components.
//
// # Guest ABI
//
// Byte ranges returned by the guest are packed into an i64 as ptr<<32|len and
// stay owned by the guest. Input buffers are allocated with wasmui_alloc and
// released with wasmui_dealloc after the call.
//
//	memory                               linear memory
//	wasmui_alloc(size) -> ptr            allocator
//	wasmui_dealloc(ptr, size)
//	render_<N>(ptr, len) -> i64          plain component N, props JSON in
//	boxed_<N>_new(ptr, len) -> handle    boxed component N
//	boxed_<N>_render(handle) -> i64
//	boxed_<N>_free(handle)
//	state_<N>_new() -> handle            bridged state N
//	state_<N>_<op>(handle)               mutator
//	state_<N>_get(handle) -> i32         optional getter
//	state_<N>_free(handle)
//
// Handles are nonzero; a constructor returning 0 reports failure. The
// mutator names new, get and free are reserved. Elements are JSON in the
// shape accepted by [vnode.Decode].
//
// # Basic Usage
//
//	rt, _ := guest.NewRuntime()
//	defer rt.Close()
//
//	mod, _ := rt.Load(ctx, "app", wasm)
//	bridge.BindExports(mod)
//
//	counter, _ := mod.NewComponent("Counter", map[string]any{"step": 1})
//	el := bridge.CreateElement("Counter", bridge.BoxedProps(counter))
package guest
