package bridge

import "github.com/caffeineduck/wasmui/vnode"

// Component is a renderable component value. The host keys instance state on
// its identity.
type Component interface {
	vnode.Component
	Render(props Props) (*vnode.Node, error)
}

// Boxed is a component owned by the foreign runtime. Free releases its
// foreign memory and must be called exactly once.
type Boxed interface {
	Render() (*vnode.Node, error)
	Free()
}

// RenderFunc renders a component from plain props.
type RenderFunc func(props map[string]any) (*vnode.Node, error)

// Exports is the foreign runtime's table of plain-props render functions.
type Exports interface {
	Lookup(name string) (RenderFunc, bool)
}

// Props is what a wrapper receives from the host: either a boxed foreign
// component or plain data, never both.
type Props struct {
	key   string
	boxed Boxed
	plain map[string]any
}

// BoxedProps wraps c. Passing the result to the host hands ownership of c to
// the rendered tree; the caller must not free c afterwards.
func BoxedProps(c Boxed) Props {
	return Props{boxed: c}
}

// PlainProps wraps ordinary data with no ownership obligation.
func PlainProps(m map[string]any) Props {
	return Props{plain: m}
}

// WithKey returns a copy of p carrying a reconciliation key.
func (p Props) WithKey(key string) Props {
	p.key = key
	return p
}

// Key returns the reconciliation key, if any.
func (p Props) Key() string { return p.key }

// Component returns the boxed component, if p carries one.
func (p Props) Component() (Boxed, bool) {
	return p.boxed, p.boxed != nil
}

// Plain returns the plain props. It is nil for boxed props.
func (p Props) Plain() map[string]any { return p.plain }
