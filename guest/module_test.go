package guest

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/caffeineduck/wasmui/bridge"
	"github.com/caffeineduck/wasmui/host"
	"github.com/caffeineduck/wasmui/internal/wasmtest"
	"github.com/caffeineduck/wasmui/vnode"
)

func TestMain(m *testing.M) {
	code := m.Run()
	CloseTestRuntime()
	os.Exit(code)
}

func loadCounter(t *testing.T) *Module {
	t.Helper()
	rt, err := GetTestRuntime()
	if err != nil {
		t.Fatalf("failed to create runtime: %v", err)
	}
	// Each test gets its own instance so live counts don't leak between tests.
	mod, err := rt.Load(context.Background(), "counter", wasmtest.CounterGuest())
	if err != nil {
		t.Fatalf("failed to load guest: %v", err)
	}
	t.Cleanup(func() { mod.Close() })
	return mod
}

// guestLive asks the guest how many handles it still holds.
func guestLive(t *testing.T, m *Module) int {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	res, err := m.call("wasmui_live")
	if err != nil {
		t.Fatalf("wasmui_live: %v", err)
	}
	return int(int32(uint32(res[0])))
}

func TestLoadRequiresAllocator(t *testing.T) {
	rt, err := GetTestRuntime()
	if err != nil {
		t.Fatal(err)
	}

	_, err = rt.Load(context.Background(), "bare", wasmtest.BareGuest())
	if !errors.Is(err, ErrMissingExport) {
		t.Errorf("expected ErrMissingExport, got %v", err)
	}
}

func TestRuntimeCachesCompiledModules(t *testing.T) {
	rt, err := NewRuntime(WithPrecompile(Source{Name: "counter", Wasm: wasmtest.CounterGuest()}))
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	for i := 0; i < 2; i++ {
		mod, err := rt.Load(context.Background(), "counter", wasmtest.CounterGuest())
		if err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
		mod.Close()
	}
	if len(rt.compiled) != 1 {
		t.Errorf("expected 1 compiled module, got %d", len(rt.compiled))
	}
}

func TestLoadAfterCloseFails(t *testing.T) {
	rt, err := NewRuntime()
	if err != nil {
		t.Fatal(err)
	}
	rt.Close()

	if _, err := rt.Load(context.Background(), "counter", wasmtest.CounterGuest()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestComponentsListsExports(t *testing.T) {
	mod := loadCounter(t)

	got := mod.Components()
	want := []Export{
		{Name: "Counter", Kind: KindBoxed},
		{Name: "Counter", Kind: KindState},
		{Name: "Echo", Kind: KindPlain},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("export %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestLookupRendersPlainProps(t *testing.T) {
	mod := loadCounter(t)

	if _, ok := mod.Lookup("Missing"); ok {
		t.Error("expected no render function for Missing")
	}

	render, ok := mod.Lookup("Echo")
	if !ok {
		t.Fatal("expected render function for Echo")
	}
	n, err := render(map[string]any{"tag": "p", "text": "hi"})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if got := n.String(); got != "<p>hi</p>" {
		t.Errorf("expected <p>hi</p>, got %s", got)
	}
}

func TestBoxedComponentLifecycle(t *testing.T) {
	mod := loadCounter(t)

	c, err := mod.NewComponent("Counter", map[string]any{"step": 1})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if c.Handle() == 0 {
		t.Error("expected nonzero handle")
	}
	if guestLive(t, mod) != 1 || mod.Live() != 1 {
		t.Fatalf("expected one live handle, guest=%d host=%d", guestLive(t, mod), mod.Live())
	}

	n, err := c.Render()
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if got := n.String(); got != "<div class=counter>counter</div>" {
		t.Errorf("unexpected element %s", got)
	}

	c.Free()
	if guestLive(t, mod) != 0 || mod.Live() != 0 {
		t.Errorf("expected no live handles, guest=%d host=%d", guestLive(t, mod), mod.Live())
	}
	if _, err := c.Render(); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("expected ErrInvalidHandle rendering a freed component, got %v", err)
	}
}

func TestBoxedComponentDoubleFreePanics(t *testing.T) {
	mod := loadCounter(t)

	c, err := mod.NewComponent("Counter", nil)
	if err != nil {
		t.Fatal(err)
	}
	c.Free()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on second free")
		}
		if msg, _ := r.(string); !strings.Contains(msg, "freed twice") {
			t.Errorf("unexpected panic %v", r)
		}
		if mod.Live() != 0 {
			t.Errorf("expected no live handles, got %d", mod.Live())
		}
	}()
	c.Free()
}

func TestNewComponentMissingExport(t *testing.T) {
	mod := loadCounter(t)

	if _, err := mod.NewComponent("Echo", nil); !errors.Is(err, ErrMissingExport) {
		t.Errorf("expected ErrMissingExport, got %v", err)
	}
}

func TestBoxedThroughRegistry(t *testing.T) {
	mod := loadCounter(t)
	r := host.New()
	bridge.SetAdapter(r)
	reg := bridge.NewRegistry(mod)

	a, err := mod.NewComponent("Counter", nil)
	if err != nil {
		t.Fatal(err)
	}
	root, err := r.Mount(reg.CreateElement("Counter", bridge.BoxedProps(a)))
	if err != nil {
		t.Fatalf("mount failed: %v", err)
	}
	if got := root.Tree().String(); got != "<div class=counter>counter</div>" {
		t.Errorf("unexpected tree %s", got)
	}

	b, err := mod.NewComponent("Counter", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := root.Update(reg.CreateElement("Counter", bridge.BoxedProps(b))); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got := guestLive(t, mod); got != 1 {
		t.Errorf("expected superseded component freed, guest holds %d", got)
	}

	root.Unmount()
	if got := guestLive(t, mod); got != 0 {
		t.Errorf("expected nothing live after unmount, guest holds %d", got)
	}
}

func TestBridgedStateAgainstGuest(t *testing.T) {
	mod := loadCounter(t)
	r := host.New()
	bridge.SetAdapter(r)
	reg := bridge.NewRegistry(mod)

	var st *State
	_, err := reg.Define("Clicker", func(map[string]any) (*vnode.Node, error) {
		var err error
		st, err = mod.UseState("Counter")
		if err != nil {
			return nil, err
		}
		v, err := st.Get()
		if err != nil {
			return nil, err
		}
		return vnode.Element("span", nil, vnode.Text(strconv.Itoa(int(v)))), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	root, err := r.Mount(reg.CreateElement("Clicker", bridge.PlainProps(nil)))
	if err != nil {
		t.Fatalf("mount failed: %v", err)
	}
	handle := st.Handle()

	for i := 1; i <= 3; i++ {
		if err := root.Act(func() {
			if err := st.Apply("increment"); err != nil {
				t.Errorf("apply: %v", err)
			}
		}); err != nil {
			t.Fatalf("act %d: %v", i, err)
		}
		if got, want := root.Tree().String(), "<span>"+strconv.Itoa(i)+"</span>"; got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
	if st.Handle() != handle {
		t.Error("state handle changed across renders")
	}
	if got := r.Renders("Clicker"); got != 4 {
		t.Errorf("expected 4 renders, got %d", got)
	}
	if guestLive(t, mod) != 1 {
		t.Errorf("expected the state live while mounted")
	}

	root.Unmount()
	if guestLive(t, mod) != 0 || mod.Live() != 0 {
		t.Errorf("expected state freed on unmount, guest=%d host=%d", guestLive(t, mod), mod.Live())
	}

	if err := st.Apply("increment"); !errors.Is(err, ErrStateReleased) {
		t.Errorf("expected ErrStateReleased applying after unmount, got %v", err)
	}
}

func TestApplyRejectsUnknownAndReservedOps(t *testing.T) {
	mod := loadCounter(t)
	r := host.New()
	bridge.SetAdapter(r)
	reg := bridge.NewRegistry(mod)

	var st *State
	reg.Define("Holder", func(map[string]any) (*vnode.Node, error) {
		var err error
		st, err = mod.UseState("Counter")
		return nil, err
	})
	root, err := r.Mount(reg.CreateElement("Holder", bridge.PlainProps(nil)))
	if err != nil {
		t.Fatal(err)
	}
	defer root.Unmount()

	if err := st.Apply("decrement"); !errors.Is(err, ErrMissingExport) {
		t.Errorf("expected ErrMissingExport, got %v", err)
	}
	if err := st.Apply("free"); err == nil {
		t.Error("expected free to be rejected as a mutator")
	}
	if guestLive(t, mod) != 1 {
		t.Error("rejected ops must not touch the state")
	}
}

func TestUseStateUnknownName(t *testing.T) {
	mod := loadCounter(t)
	r := host.New()
	bridge.SetAdapter(r)
	reg := bridge.NewRegistry(mod)

	reg.Define("Broken", func(map[string]any) (*vnode.Node, error) {
		_, err := mod.UseState("Nope")
		return nil, err
	})
	_, err := r.Mount(reg.CreateElement("Broken", bridge.PlainProps(nil)))
	if !errors.Is(err, ErrStateUnavailable) || !errors.Is(err, ErrMissingExport) {
		t.Errorf("expected ErrStateUnavailable wrapping ErrMissingExport, got %v", err)
	}
}

func TestParseMemoryLimit(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"1mb", MemoryLimit1MB},
		{"64MB", MemoryLimit64MB},
		{"1GB", MemoryLimit1GB},
		{"", 0},
		{"lots", 0},
	}
	for _, tt := range tests {
		if got := ParseMemoryLimit(tt.in); got != tt.want {
			t.Errorf("ParseMemoryLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
