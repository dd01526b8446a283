package bridge

import (
	"fmt"
	"sort"
	"sync"

	"github.com/caffeineduck/wasmui/vnode"
	"go.uber.org/zap"
)

// Wrapper is the stable component value the host sees for one name.
type Wrapper struct {
	name   string
	render RenderFunc // nil when the name has no plain export
}

// Name returns the component name.
func (w *Wrapper) Name() string { return w.name }

// Render dispatches on props. Boxed props bind the component's release to
// the lifetime of this props identity and render through the component
// itself; plain props go to the name's render function.
func (w *Wrapper) Render(props Props) (*vnode.Node, error) {
	a := adapter()

	if c, ok := props.Component(); ok {
		name := w.name
		newLease(func() {
			Logger().Debug("releasing boxed component", zap.String("component", name))
			c.Free()
			observer().BoxedReleased(name)
		}).bind(a, []any{c})

		observer().Rendered(w.name, true)
		return c.Render()
	}

	if w.render == nil {
		return nil, fmt.Errorf("render %q: %w", w.name, ErrUnknownComponent)
	}
	observer().Rendered(w.name, false)
	return w.render(props.Plain())
}

// Registry maps component names to wrappers. Entries are never replaced or
// removed.
type Registry struct {
	mu       sync.RWMutex
	exports  Exports
	wrappers map[string]*Wrapper
}

// NewRegistry creates a registry resolving plain render functions from
// exports. exports may be nil when every name is supplied through Define.
func NewRegistry(exports Exports) *Registry {
	return &Registry{
		exports:  exports,
		wrappers: make(map[string]*Wrapper),
	}
}

// BindExports sets the export table consulted by names registered after
// this call.
func (r *Registry) BindExports(exports Exports) {
	r.mu.Lock()
	r.exports = exports
	r.mu.Unlock()
}

// Register creates the wrapper for name if it does not exist yet.
func (r *Registry) Register(name string) {
	r.Get(name)
}

// Get returns the wrapper for name, registering it on first use. Every call
// with the same name returns the same pointer.
func (r *Registry) Get(name string) *Wrapper {
	r.mu.RLock()
	if w, ok := r.wrappers[name]; ok {
		r.mu.RUnlock()
		return w
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.wrappers[name]; ok {
		return w
	}

	w := &Wrapper{name: name}
	if r.exports != nil {
		if fn, ok := r.exports.Lookup(name); ok {
			w.render = fn
		}
	}
	r.insert(w)
	return w
}

// Define registers name with an explicit render function instead of one
// looked up from the export table.
func (r *Registry) Define(name string, fn RenderFunc) (*Wrapper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.wrappers[name]; ok {
		return nil, fmt.Errorf("define %q: %w", name, ErrAlreadyRegistered)
	}
	w := &Wrapper{name: name, render: fn}
	r.insert(w)
	return w, nil
}

// insert must be called with r.mu held.
func (r *Registry) insert(w *Wrapper) {
	r.wrappers[w.name] = w
	Logger().Debug("component registered",
		zap.String("component", w.name),
		zap.Bool("plain_export", w.render != nil))
	observer().WrapperRegistered(w.name)
}

// CreateElement builds a host element for the named component.
func (r *Registry) CreateElement(name string, props Props) *vnode.Node {
	return adapter().CreateElement(r.Get(name), props)
}

// Names returns the registered component names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.wrappers))
	for name := range r.wrappers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var std = NewRegistry(nil)

// Default returns the process-wide registry used by the package-level
// functions.
func Default() *Registry { return std }

// BindExports sets the export table of the default registry.
func BindExports(exports Exports) { std.BindExports(exports) }

// Register registers name in the default registry.
func Register(name string) { std.Register(name) }

// Get returns the default registry's wrapper for name.
func Get(name string) *Wrapper { return std.Get(name) }

// Define registers name in the default registry with an explicit render
// function.
func Define(name string, fn RenderFunc) (*Wrapper, error) { return std.Define(name, fn) }

// CreateElement builds a host element for name from the default registry.
func CreateElement(name string, props Props) *vnode.Node {
	return std.CreateElement(name, props)
}
