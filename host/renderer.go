package host

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/caffeineduck/wasmui/bridge"
	"github.com/caffeineduck/wasmui/vnode"
)

var (
	ErrUnmounted     = errors.New("root unmounted")
	ErrNotRenderable = errors.New("component node is not renderable")
	ErrDuplicateKey  = errors.New("duplicate component key")
	ErrUpdateLoop    = errors.New("too many nested updates")
)

// maxFlushPasses bounds state updates scheduled by effects.
const maxFlushPasses = 100

// Renderer mounts component trees and implements bridge.Adapter for them.
type Renderer struct {
	current *instance
	dirty   []*instance
	pending []*pendingEffect
	renders map[string]int
}

// New returns an empty Renderer.
func New() *Renderer {
	return &Renderer{renders: make(map[string]int)}
}

var _ bridge.Adapter = (*Renderer)(nil)

type instance struct {
	comp     bridge.Component
	props    bridge.Props
	raw      *vnode.Node
	slots    []any
	cursor   int
	children map[string]*instance
	order    []string

	dirty     bool
	unmounted bool
}

type stateSlot struct {
	value any
}

type effectSlot struct {
	deps    []any // of the committed effect
	cleanup func()
	ran     bool
	queued  *pendingEffect
}

// pendingEffect is a slot's effect awaiting commit. A slot has at most one;
// a later render of the same instance replaces it.
type pendingEffect struct {
	inst   *instance
	slot   *effectSlot
	effect func() func()
	deps   []any
}

// CreateElement builds a component node for c. It may be called anywhere,
// not only during render.
func (r *Renderer) CreateElement(c bridge.Component, props bridge.Props) *vnode.Node {
	return &vnode.Node{
		Kind:  vnode.KindComponent,
		Comp:  c,
		Input: props,
		Key:   props.Key(),
	}
}

// UseState implements bridge.Adapter.
func (r *Renderer) UseState(init func() any) (any, func(update func(prev any) any)) {
	inst := r.hookOwner("UseState")
	i := inst.cursor
	inst.cursor++
	if i == len(inst.slots) {
		inst.slots = append(inst.slots, &stateSlot{value: init()})
	}
	s, ok := inst.slots[i].(*stateSlot)
	if !ok {
		panic(fmt.Sprintf("host: hook %d of %s changed kind between renders", i, inst.comp.Name()))
	}

	set := func(update func(prev any) any) {
		if inst.unmounted {
			return
		}
		next := update(s.value)
		if sameValue(next, s.value) {
			return
		}
		s.value = next
		r.schedule(inst)
	}
	return s.value, set
}

// UseEffect implements bridge.Adapter.
func (r *Renderer) UseEffect(effect func() func(), deps []any) {
	inst := r.hookOwner("UseEffect")
	i := inst.cursor
	inst.cursor++
	if i == len(inst.slots) {
		inst.slots = append(inst.slots, &effectSlot{})
	}
	e, ok := inst.slots[i].(*effectSlot)
	if !ok {
		panic(fmt.Sprintf("host: hook %d of %s changed kind between renders", i, inst.comp.Name()))
	}

	if e.ran && deps != nil && depsEqual(e.deps, deps) {
		e.queued = nil
		return
	}
	if q := e.queued; q != nil {
		q.effect, q.deps = effect, deps
		return
	}
	e.queued = &pendingEffect{inst: inst, slot: e, effect: effect, deps: deps}
	r.pending = append(r.pending, e.queued)
}

func (r *Renderer) hookOwner(hook string) *instance {
	if r.current == nil {
		panic("host: " + hook + " called outside of component render")
	}
	return r.current
}

func (r *Renderer) schedule(inst *instance) {
	if inst.dirty {
		return
	}
	inst.dirty = true
	r.dirty = append(r.dirty, inst)
}

// Renders reports how many times components named name have rendered.
func (r *Renderer) Renders(name string) int {
	return r.renders[name]
}

// Flush re-renders every instance whose state changed and commits the
// resulting effects, repeating while effects schedule more updates.
func (r *Renderer) Flush() error {
	var errs []error
	for pass := 0; len(r.dirty) > 0; pass++ {
		if pass == maxFlushPasses {
			return ErrUpdateLoop
		}
		batch := r.dirty
		r.dirty = nil
		for _, inst := range batch {
			if inst.unmounted || !inst.dirty {
				continue
			}
			if err := r.render(inst); err != nil {
				errs = append(errs, err)
			}
		}
		r.commit()
	}
	return errors.Join(errs...)
}

// Act runs fn, typically an event handler that sets state, and then flushes.
func (r *Renderer) Act(fn func()) error {
	fn()
	return r.Flush()
}

func (r *Renderer) newInstance(comp bridge.Component, props bridge.Props) *instance {
	return &instance{
		comp:     comp,
		props:    props,
		children: make(map[string]*instance),
	}
}

func (r *Renderer) render(inst *instance) error {
	prev := r.current
	r.current = inst
	inst.cursor = 0
	raw, err := inst.comp.Render(inst.props)
	r.current = prev

	inst.dirty = false
	r.renders[inst.comp.Name()]++
	if err != nil {
		return fmt.Errorf("render %s: %w", inst.comp.Name(), err)
	}
	inst.raw = raw
	return r.reconcile(inst, raw)
}

// reconcile matches the component nodes in raw against inst's existing
// children. A child survives only if the component at its key is the same
// value; everything else is unmounted. A failing node does not stop the
// walk: its siblings are still mounted so their leases reach commit, and
// the errors are joined.
func (r *Renderer) reconcile(inst *instance, raw *vnode.Node) error {
	stale := inst.children
	staleOrder := inst.order
	next := make(map[string]*instance)
	var order []string
	var errs []error

	var k keyer
	vnode.Walk(raw, func(n *vnode.Node) bool {
		if n.Kind != vnode.KindComponent {
			return true
		}
		key, dup := k.next(n)

		comp, ok := n.Comp.(bridge.Component)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %T", ErrNotRenderable, n.Comp))
			return false
		}
		if dup {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateKey, n.Key))
		}
		props, _ := n.Input.(bridge.Props)

		child, ok := stale[key]
		if ok && child.comp == comp {
			child.props = props
		} else {
			if ok {
				r.unmount(child)
			}
			child = r.newInstance(comp, props)
		}
		delete(stale, key)
		next[key] = child
		order = append(order, key)

		if err := r.render(child); err != nil {
			errs = append(errs, err)
		}
		return false
	})

	for _, key := range staleOrder {
		if child, ok := stale[key]; ok {
			r.unmount(child)
		}
	}
	inst.children = next
	inst.order = order
	return errors.Join(errs...)
}

func (r *Renderer) commit() {
	pending := r.pending
	r.pending = nil
	for _, p := range pending {
		if p.slot.queued != p || p.inst.unmounted {
			continue
		}
		p.slot.queued = nil
		p.slot.run(p)
	}
}

func (e *effectSlot) run(p *pendingEffect) {
	if c := e.cleanup; c != nil {
		e.cleanup = nil
		c()
	}
	e.deps = p.deps
	e.cleanup = p.effect()
	e.ran = true
}

func (r *Renderer) unmount(inst *instance) {
	if inst.unmounted {
		return
	}
	inst.unmounted = true
	for _, key := range inst.order {
		r.unmount(inst.children[key])
	}
	// An effect rendered but never committed is run and cleaned up here,
	// so every cleanup handed to the renderer runs exactly once.
	for _, s := range inst.slots {
		e, ok := s.(*effectSlot)
		if !ok {
			continue
		}
		if p := e.queued; p != nil {
			e.queued = nil
			e.run(p)
		}
		if c := e.cleanup; c != nil {
			e.cleanup = nil
			c()
		}
	}
}

func (inst *instance) resolve() *vnode.Node {
	var k keyer
	return inst.resolveNode(inst.raw, &k)
}

func (inst *instance) resolveNode(n *vnode.Node, k *keyer) *vnode.Node {
	if n == nil {
		return nil
	}
	if n.Kind == vnode.KindComponent {
		key, _ := k.next(n)
		if c, ok := inst.children[key]; ok {
			return c.resolve()
		}
		return nil
	}
	if len(n.Children) == 0 {
		return n
	}
	cp := *n
	cp.Children = make([]*vnode.Node, 0, len(n.Children))
	for _, c := range n.Children {
		if rc := inst.resolveNode(c, k); rc != nil {
			cp.Children = append(cp.Children, rc)
		}
	}
	return &cp
}

// keyer assigns child keys in walk order. An explicit key seen twice falls
// back to the node's ordinal key, which cannot collide with an explicit one.
type keyer struct {
	ordinal int
	seen    map[string]bool
}

func (k *keyer) next(n *vnode.Node) (key string, dup bool) {
	ord := "#" + strconv.Itoa(k.ordinal)
	k.ordinal++
	if n.Key == "" {
		return ord, false
	}
	key = "k:" + n.Key
	if k.seen[key] {
		return ord, true
	}
	if k.seen == nil {
		k.seen = make(map[string]bool)
	}
	k.seen[key] = true
	return key, false
}

func depsEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameValue(a[i], b[i]) {
			return false
		}
	}
	return true
}

// sameValue reports identity for comparable values. Values of
// non-comparable types are never the same.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
