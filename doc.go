// Package wasmui renders UI components exported by WebAssembly guests.
//
// # Overview
//
// A guest keeps component state in its own linear memory, outside the Go
// garbage collector. wasmui gives every exported component a stable Go
// identity so the renderer can keep instance state across renders, and it
// frees guest memory exactly once, when the renderer lets go of it.
//
// # Packages
//
//	bridge   wrapper registry, props dispatch, UseBridgedState, Cast
//	host     reference renderer implementing bridge.Adapter
//	guest    wazero loader and the guest ABI
//	vnode    element trees and their JSON form
//	metrics  Prometheus observer for bridge lifecycle events
//
// # Basic Usage
//
//	rt, _ := guest.NewRuntime()
//	defer rt.Close()
//	mod, _ := rt.Load(ctx, "app", wasm)
//
//	r := host.New()
//	bridge.SetAdapter(r)
//	bridge.BindExports(mod)
//
//	// Plain props: rendered by the guest's render_Label export
//	root, _ := r.Mount(bridge.CreateElement("Label", bridge.PlainProps(props)))
//
//	// Boxed props: the tree owns c and frees it when replaced or unmounted
//	c, _ := mod.NewComponent("Counter", nil)
//	root.Update(bridge.CreateElement("Counter", bridge.BoxedProps(c)))
//	root.Unmount()
//
// # Bridged State
//
// A component can hold guest state for its lifetime:
//
//	st, _ := mod.UseState("Counter")
//	v, _ := st.Get()
//	onClick := func() { st.Apply("increment") }
//
// The state is created on the first render and freed on unmount.
package wasmui
