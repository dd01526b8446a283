package host

import (
	"errors"
	"strconv"
	"testing"

	"github.com/caffeineduck/wasmui/bridge"
	"github.com/caffeineduck/wasmui/vnode"
)

type testComponent struct {
	name   string
	render func(p bridge.Props) (*vnode.Node, error)
}

func (c *testComponent) Name() string { return c.name }

func (c *testComponent) Render(p bridge.Props) (*vnode.Node, error) { return c.render(p) }

func component(name string, render func(p bridge.Props) (*vnode.Node, error)) *testComponent {
	return &testComponent{name: name, render: render}
}

// counter returns a component with one int state slot and exposes its setter.
func counter(r *Renderer, name string, set *func(func(any) any)) *testComponent {
	return component(name, func(bridge.Props) (*vnode.Node, error) {
		v, s := r.UseState(func() any { return 0 })
		*set = s
		return vnode.Element("span", nil, vnode.Text(strconv.Itoa(v.(int)))), nil
	})
}

func increment(prev any) any { return prev.(int) + 1 }

func TestStatePersistsAcrossRenders(t *testing.T) {
	r := New()
	var set func(func(any) any)
	c := counter(r, "Counter", &set)

	root, err := r.Mount(r.CreateElement(c, bridge.Props{}))
	if err != nil {
		t.Fatalf("mount failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := root.Act(func() { set(increment) }); err != nil {
			t.Fatalf("act failed: %v", err)
		}
	}

	if got := root.Tree().String(); got != "<span>3</span>" {
		t.Errorf("expected <span>3</span>, got %s", got)
	}
	if got := r.Renders("Counter"); got != 4 {
		t.Errorf("expected 4 renders, got %d", got)
	}
}

func TestSetStateWithSameValueSkipsRender(t *testing.T) {
	r := New()
	var set func(func(any) any)
	c := counter(r, "Counter", &set)

	root, err := r.Mount(r.CreateElement(c, bridge.Props{}))
	if err != nil {
		t.Fatalf("mount failed: %v", err)
	}
	root.Act(func() { set(func(prev any) any { return prev }) })

	if got := r.Renders("Counter"); got != 1 {
		t.Errorf("expected 1 render, got %d", got)
	}
}

func TestComponentIdentityDecidesRemount(t *testing.T) {
	r := New()
	var set func(func(any) any)
	first := counter(r, "Counter", &set)
	second := counter(r, "Counter", &set) // same name, different value

	root, err := r.Mount(r.CreateElement(first, bridge.Props{}))
	if err != nil {
		t.Fatalf("mount failed: %v", err)
	}
	root.Act(func() { set(increment) })

	// Same component value keeps state.
	if err := root.Update(r.CreateElement(first, bridge.Props{})); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got := root.Tree().String(); got != "<span>1</span>" {
		t.Errorf("expected state kept, got %s", got)
	}

	// A different component value with the same name remounts.
	if err := root.Update(r.CreateElement(second, bridge.Props{})); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got := root.Tree().String(); got != "<span>0</span>" {
		t.Errorf("expected fresh state after remount, got %s", got)
	}
}

func TestEffectDeps(t *testing.T) {
	r := New()
	var everyRender, once, keyed, keyedCleanups int

	c := component("Effects", func(p bridge.Props) (*vnode.Node, error) {
		r.UseEffect(func() func() { everyRender++; return nil }, nil)
		r.UseEffect(func() func() { once++; return nil }, []any{})
		r.UseEffect(func() func() {
			keyed++
			return func() { keyedCleanups++ }
		}, []any{p.Plain()["id"]})
		return nil, nil
	})

	el := func(id string) *vnode.Node {
		return r.CreateElement(c, bridge.PlainProps(map[string]any{"id": id}))
	}

	root, err := r.Mount(el("a"))
	if err != nil {
		t.Fatalf("mount failed: %v", err)
	}
	root.Update(el("a"))
	root.Update(el("b"))

	if everyRender != 3 {
		t.Errorf("nil deps: expected 3 runs, got %d", everyRender)
	}
	if once != 1 {
		t.Errorf("empty deps: expected 1 run, got %d", once)
	}
	if keyed != 2 || keyedCleanups != 1 {
		t.Errorf("keyed deps: expected 2 runs and 1 cleanup, got %d and %d", keyed, keyedCleanups)
	}

	root.Unmount()
	root.Unmount()
	if keyedCleanups != 2 {
		t.Errorf("expected cleanup on unmount exactly once, got %d cleanups", keyedCleanups)
	}
	if root.Mounted() || root.Tree() != nil {
		t.Error("expected root to report unmounted")
	}
	if err := root.Update(el("c")); !errors.Is(err, ErrUnmounted) {
		t.Errorf("expected ErrUnmounted, got %v", err)
	}
}

func TestHookOutsideRenderPanics(t *testing.T) {
	r := New()
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	r.UseState(func() any { return nil })
}

func TestKeyedChildrenKeepState(t *testing.T) {
	r := New()
	var setA, setB func(func(any) any)
	a := counter(r, "A", &setA)
	b := counter(r, "B", &setB)

	list := func(order ...*testComponent) *vnode.Node {
		children := make([]*vnode.Node, 0, len(order))
		for _, c := range order {
			children = append(children, r.CreateElement(c, bridge.Props{}.WithKey(c.name)))
		}
		return vnode.Element("ul", nil, children...)
	}

	root, err := r.Mount(list(a, b))
	if err != nil {
		t.Fatalf("mount failed: %v", err)
	}
	root.Act(func() { setA(increment) })

	if err := root.Update(list(b, a)); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got := root.Tree().String(); got != "<ul><span>0</span><span>1</span></ul>" {
		t.Errorf("unexpected tree %s", got)
	}
}

func TestRemovedChildIsUnmounted(t *testing.T) {
	r := New()
	cleanups := 0
	child := component("Child", func(bridge.Props) (*vnode.Node, error) {
		r.UseEffect(func() func() { return func() { cleanups++ } }, []any{})
		return vnode.Text("child"), nil
	})

	root, err := r.Mount(vnode.Element("div", nil, r.CreateElement(child, bridge.Props{})))
	if err != nil {
		t.Fatalf("mount failed: %v", err)
	}
	if err := root.Update(vnode.Element("div", nil)); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if cleanups != 1 {
		t.Errorf("expected 1 cleanup, got %d", cleanups)
	}
}

func TestMountErrorSettlesEffects(t *testing.T) {
	r := New()
	boom := errors.New("boom")
	ran, cleaned := 0, 0

	ok := component("Ok", func(bridge.Props) (*vnode.Node, error) {
		r.UseEffect(func() func() {
			ran++
			return func() { cleaned++ }
		}, []any{})
		return vnode.Text("ok"), nil
	})
	bad := component("Bad", func(bridge.Props) (*vnode.Node, error) {
		return nil, boom
	})

	_, err := r.Mount(vnode.Fragment(
		r.CreateElement(ok, bridge.Props{}),
		r.CreateElement(bad, bridge.Props{}),
	))
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if ran != 1 || cleaned != 1 {
		t.Errorf("expected effect to run and clean up once, got %d/%d", ran, cleaned)
	}
}

func TestNonRenderableComponent(t *testing.T) {
	r := New()
	_, err := r.Mount(&vnode.Node{Kind: vnode.KindComponent})
	if !errors.Is(err, ErrNotRenderable) {
		t.Errorf("expected ErrNotRenderable, got %v", err)
	}
}

func TestUpdateLoopDetected(t *testing.T) {
	r := New()
	loop := component("Loop", func(bridge.Props) (*vnode.Node, error) {
		v, set := r.UseState(func() any { return 0 })
		r.UseEffect(func() func() {
			set(increment)
			return nil
		}, []any{v})
		return nil, nil
	})

	root, err := r.Mount(r.CreateElement(loop, bridge.Props{}))
	if err != nil {
		t.Fatalf("mount failed: %v", err)
	}
	if err := root.Act(func() {}); !errors.Is(err, ErrUpdateLoop) {
		t.Errorf("expected ErrUpdateLoop, got %v", err)
	}
}

// nested builds Outer > Inner > Leaf, where Inner only renders Leaf once
// shown and Outer drops Inner once hidden. Leaf counts its effect runs and
// cleanups.
type nested struct {
	outer, inner, leaf  *testComponent
	setHidden, setShown func(func(any) any)
	setTick             func(func(any) any)
	ran, cleaned        int
}

func newNested(r *Renderer) *nested {
	n := &nested{}
	n.leaf = component("Leaf", func(bridge.Props) (*vnode.Node, error) {
		r.UseEffect(func() func() {
			n.ran++
			return func() { n.cleaned++ }
		}, []any{})
		return vnode.Text("leaf"), nil
	})
	n.inner = component("Inner", func(bridge.Props) (*vnode.Node, error) {
		v, set := r.UseState(func() any { return false })
		n.setShown = set
		if !v.(bool) {
			return nil, nil
		}
		return r.CreateElement(n.leaf, bridge.Props{}), nil
	})
	n.outer = component("Outer", func(bridge.Props) (*vnode.Node, error) {
		tick, setTick := r.UseState(func() any { return 0 })
		hidden, setHidden := r.UseState(func() any { return false })
		n.setTick, n.setHidden = setTick, setHidden
		if hidden.(bool) {
			return vnode.Text("hidden"), nil
		}
		return vnode.Element("div", nil,
			vnode.Text(strconv.Itoa(tick.(int))),
			r.CreateElement(n.inner, bridge.Props{}),
		), nil
	})
	return n
}

func setTrue(any) any { return true }

func TestEffectRunsOnceWhenRenderedTwiceBeforeCommit(t *testing.T) {
	r := New()
	n := newNested(r)
	root, err := r.Mount(r.CreateElement(n.outer, bridge.Props{}))
	if err != nil {
		t.Fatalf("mount failed: %v", err)
	}

	// Inner is queued ahead of its ancestor, so Leaf mounts under Inner and
	// renders again under Outer before the pass commits.
	if err := root.Act(func() {
		n.setShown(setTrue)
		n.setTick(increment)
	}); err != nil {
		t.Fatalf("act failed: %v", err)
	}
	if got := r.Renders("Leaf"); got != 2 {
		t.Fatalf("expected Leaf rendered twice, got %d", got)
	}
	if n.ran != 1 || n.cleaned != 0 {
		t.Errorf("expected one run and no cleanup while mounted, got %d/%d", n.ran, n.cleaned)
	}

	root.Unmount()
	if n.ran != 1 || n.cleaned != 1 {
		t.Errorf("expected one run and one cleanup after unmount, got %d/%d", n.ran, n.cleaned)
	}
}

func TestUnmountBeforeCommitSettlesEffect(t *testing.T) {
	r := New()
	n := newNested(r)
	root, err := r.Mount(r.CreateElement(n.outer, bridge.Props{}))
	if err != nil {
		t.Fatalf("mount failed: %v", err)
	}

	// Leaf mounts under Inner, then Outer drops Inner in the same pass.
	if err := root.Act(func() {
		n.setShown(setTrue)
		n.setHidden(setTrue)
	}); err != nil {
		t.Fatalf("act failed: %v", err)
	}
	if got := r.Renders("Leaf"); got != 1 {
		t.Fatalf("expected Leaf rendered once, got %d", got)
	}
	if n.ran != 1 || n.cleaned != 1 {
		t.Errorf("expected the uncommitted effect run and cleaned up, got %d/%d", n.ran, n.cleaned)
	}

	root.Unmount()
	if n.cleaned != 1 {
		t.Errorf("expected no further cleanup, got %d", n.cleaned)
	}
}

func TestMountErrorMountsLaterSiblings(t *testing.T) {
	r := New()
	boom := errors.New("boom")
	ran, cleaned := map[string]int{}, map[string]int{}

	effectful := func(name string) *testComponent {
		return component(name, func(bridge.Props) (*vnode.Node, error) {
			r.UseEffect(func() func() {
				ran[name]++
				return func() { cleaned[name]++ }
			}, []any{})
			return vnode.Text(name), nil
		})
	}
	bad := component("Bad", func(bridge.Props) (*vnode.Node, error) {
		return nil, boom
	})

	_, err := r.Mount(vnode.Fragment(
		r.CreateElement(bad, bridge.Props{}),
		r.CreateElement(effectful("A"), bridge.Props{}),
		&vnode.Node{Kind: vnode.KindComponent},
		r.CreateElement(effectful("B"), bridge.Props{}),
	))
	if !errors.Is(err, boom) || !errors.Is(err, ErrNotRenderable) {
		t.Fatalf("expected boom joined with ErrNotRenderable, got %v", err)
	}
	for _, name := range []string{"A", "B"} {
		if ran[name] != 1 || cleaned[name] != 1 {
			t.Errorf("%s: expected effect run and cleaned once, got %d/%d", name, ran[name], cleaned[name])
		}
	}
}

func TestDuplicateKeyStillMountsBoth(t *testing.T) {
	r := New()
	cleanups := 0
	leaf := component("Leaf", func(bridge.Props) (*vnode.Node, error) {
		r.UseEffect(func() func() { return func() { cleanups++ } }, []any{})
		return vnode.Text("leaf"), nil
	})

	root, err := r.Mount(vnode.Element("div", nil,
		r.CreateElement(leaf, bridge.Props{}.WithKey("x")),
		r.CreateElement(leaf, bridge.Props{}.WithKey("x")),
	))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if root != nil {
		t.Error("expected no root after a failed mount")
	}
	if cleanups != 2 {
		t.Errorf("expected both duplicates cleaned up, got %d", cleanups)
	}
}
