package guest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/caffeineduck/wasmui/bridge"
	"github.com/caffeineduck/wasmui/vnode"
	"github.com/tetratelabs/wazero/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	allocExport   = "wasmui_alloc"
	deallocExport = "wasmui_dealloc"
	renderPrefix  = "render_"
	boxedPrefix   = "boxed_"
	statePrefix   = "state_"
)

// ErrStateUnavailable is returned by UseState when the guest failed to
// create the state for the calling instance.
var ErrStateUnavailable = errors.New("bridged state unavailable")

// ErrStateReleased is returned by Apply once the owning instance has
// unmounted and the guest state is freed.
var ErrStateReleased = errors.New("bridged state released")

var tracer = otel.Tracer("github.com/caffeineduck/wasmui/guest")

// Kind classifies a guest export.
type Kind string

const (
	KindPlain Kind = "plain"
	KindBoxed Kind = "boxed"
	KindState Kind = "state"
)

// Export describes one component or state type offered by a guest.
type Export struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Module is an instantiated guest. It is safe for concurrent use; calls into
// the guest are serialized.
type Module struct {
	name    string
	ctx     context.Context
	mod     api.Module
	exports map[string]api.FunctionDefinition

	mu     sync.Mutex
	live   int
	closed bool
}

// Name returns the name the module was loaded under.
func (m *Module) Name() string { return m.name }

// Lookup returns the plain render function for name. It implements
// bridge.Exports.
func (m *Module) Lookup(name string) (bridge.RenderFunc, bool) {
	export := renderPrefix + name
	if _, ok := m.exports[export]; !ok {
		return nil, false
	}
	return func(props map[string]any) (*vnode.Node, error) {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.closed {
			return nil, ErrClosed
		}
		var n *vnode.Node
		err := m.callWithJSON(export, props, func(res uint64) error {
			var err error
			n, err = m.decodePacked(export, res)
			return err
		})
		return n, err
	}, true
}

// Components lists the guest's exports by kind, sorted by name.
func (m *Module) Components() []Export {
	var out []Export
	for export := range m.exports {
		switch {
		case strings.HasPrefix(export, renderPrefix):
			out = append(out, Export{Name: strings.TrimPrefix(export, renderPrefix), Kind: KindPlain})
		case strings.HasPrefix(export, boxedPrefix) && strings.HasSuffix(export, "_new"):
			out = append(out, Export{Name: strings.TrimSuffix(strings.TrimPrefix(export, boxedPrefix), "_new"), Kind: KindBoxed})
		case strings.HasPrefix(export, statePrefix) && strings.HasSuffix(export, "_new"):
			out = append(out, Export{Name: strings.TrimSuffix(strings.TrimPrefix(export, statePrefix), "_new"), Kind: KindState})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Live returns the number of boxed components and bridged states created
// through this module and not yet freed.
func (m *Module) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// Close closes the guest instance. Handles still live are dropped with it.
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	if m.live > 0 {
		Logger().Warn("closing guest with live handles",
			zap.String("module", m.name),
			zap.Int("live", m.live))
	}
	return m.mod.Close(context.Background())
}

// Component is a boxed component living in guest memory. Ownership passes to
// the rendered tree once it is handed to bridge.BoxedProps.
type Component struct {
	m      *Module
	name   string
	handle uint32
	freed  bool
}

// NewComponent constructs the boxed component name with props.
func (m *Module) NewComponent(name string, props map[string]any) (*Component, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	var handle uint32
	err := m.callWithJSON(boxedPrefix+name+"_new", props, func(res uint64) error {
		handle = uint32(res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if handle == 0 {
		return nil, fmt.Errorf("new %s: %w", name, ErrInvalidHandle)
	}
	m.live++
	return &Component{m: m, name: name, handle: handle}, nil
}

// Name returns the component's export name.
func (c *Component) Name() string { return c.name }

// Handle returns the guest-side handle.
func (c *Component) Handle() uint32 { return c.handle }

// Render renders the component's current state.
func (c *Component) Render() (*vnode.Node, error) {
	m := c.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if c.freed {
		return nil, fmt.Errorf("render %s: %w", c.name, ErrInvalidHandle)
	}
	export := boxedPrefix + c.name + "_render"
	res, err := m.call(export, uint64(c.handle))
	if err != nil {
		return nil, err
	}
	return m.decodePacked(export, res[0])
}

// Free releases the component's guest memory. It panics if called twice:
// a second free means two leases claimed the same handle.
func (c *Component) Free() {
	m := c.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.freed {
		panic(fmt.Sprintf("guest: boxed component %s (handle %d) freed twice", c.name, c.handle))
	}
	c.freed = true
	m.release(boxedPrefix+c.name+"_free", c.handle)
}

// State is a bridged state owned by one host component instance.
type State struct {
	m      *Module
	name   string
	handle uint32
	apply  func(mutator func())
}

// UseState holds the guest state name for the lifetime of the calling
// component instance. It must be called during render, in the same order on
// every render.
func (m *Module) UseState(name string) (*State, error) {
	var createErr error
	handle, apply := bridge.UseBridgedState(func() uint32 {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.closed {
			createErr = ErrClosed
			return 0
		}
		res, err := m.call(statePrefix + name + "_new")
		if err != nil {
			createErr = err
			return 0
		}
		h := uint32(res[0])
		if h != 0 {
			m.live++
		}
		return h
	}, func(h uint32) {
		if h == 0 {
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		m.release(statePrefix+name+"_free", h)
	})

	if handle == 0 {
		if createErr != nil {
			return nil, fmt.Errorf("state %s: %w: %w", name, ErrStateUnavailable, createErr)
		}
		return nil, fmt.Errorf("state %s: %w", name, ErrStateUnavailable)
	}
	return &State{m: m, name: name, handle: handle, apply: apply}, nil
}

// Handle returns the guest-side handle.
func (s *State) Handle() uint32 { return s.handle }

// Get reads the state through its getter export.
func (s *State) Get() (int32, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	res, err := m.call(statePrefix+s.name+"_get", uint64(s.handle))
	if err != nil {
		return 0, err
	}
	return int32(uint32(res[0])), nil
}

// Apply runs the mutator op on the guest state and schedules a re-render of
// the owning instance. After unmount it returns ErrStateReleased without
// calling the guest.
func (s *State) Apply(op string) error {
	switch op {
	case "new", "get", "free":
		return fmt.Errorf("state %s: %q is not a mutator", s.name, op)
	}
	export := statePrefix + s.name + "_" + op
	if _, ok := s.m.exports[export]; !ok {
		return fmt.Errorf("%w: %s", ErrMissingExport, export)
	}

	var err error
	ran := false
	s.apply(func() {
		ran = true
		m := s.m
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.closed {
			err = ErrClosed
			return
		}
		_, err = m.call(export, uint64(s.handle))
	})
	if !ran {
		return fmt.Errorf("state %s: %w", s.name, ErrStateReleased)
	}
	return err
}

// release calls a free export. m.mu must be held.
func (m *Module) release(export string, handle uint32) {
	if m.closed {
		Logger().Debug("guest closed, dropping release",
			zap.String("export", export),
			zap.Uint32("handle", handle))
		return
	}
	if _, err := m.call(export, uint64(handle)); err != nil {
		Logger().Warn("guest release failed",
			zap.String("export", export),
			zap.Uint32("handle", handle),
			zap.Error(err))
		return
	}
	m.live--
}

// call invokes export. m.mu must be held.
func (m *Module) call(export string, params ...uint64) ([]uint64, error) {
	ctx, span := tracer.Start(m.ctx, "guest.call", trace.WithAttributes(
		attribute.String("wasm.module", m.name),
		attribute.String("wasm.export", export),
	))
	defer span.End()

	fn := m.mod.ExportedFunction(export)
	if fn == nil {
		err := fmt.Errorf("%w: %s", ErrMissingExport, export)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res, err := fn.Call(ctx, params...)
	if err != nil {
		err = fmt.Errorf("call %s: %w", export, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		Logger().Warn("guest call failed",
			zap.String("module", m.name),
			zap.String("export", export),
			zap.Error(err))
		return nil, err
	}
	return res, nil
}

// callWithJSON passes v as a JSON input buffer to export and hands the
// result to use before the buffer is released. m.mu must be held.
func (m *Module) callWithJSON(export string, v any, use func(res uint64) error) error {
	if m.mod.ExportedFunction(export) == nil {
		return fmt.Errorf("%w: %s", ErrMissingExport, export)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode props for %s: %w", export, err)
	}
	ptr, err := m.write(data)
	if err != nil {
		return err
	}
	defer m.dealloc(ptr, uint32(len(data)))

	res, err := m.call(export, uint64(ptr), uint64(len(data)))
	if err != nil {
		return err
	}
	if len(res) == 0 {
		return fmt.Errorf("call %s: no result", export)
	}
	return use(res[0])
}

func (m *Module) write(data []byte) (uint32, error) {
	res, err := m.call(allocExport, uint64(len(data)))
	if err != nil {
		return 0, err
	}
	ptr := uint32(res[0])
	if !m.mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("write %d bytes at %#x: %w", len(data), ptr, ErrOutOfBounds)
	}
	return ptr, nil
}

func (m *Module) dealloc(ptr, size uint32) {
	if m.mod.ExportedFunction(deallocExport) == nil {
		return
	}
	m.call(deallocExport, uint64(ptr), uint64(size))
}

// decodePacked reads a ptr<<32|len result and decodes it as an element. The
// range stays owned by the guest.
func (m *Module) decodePacked(export string, packed uint64) (*vnode.Node, error) {
	ptr, size := uint32(packed>>32), uint32(packed)
	data, ok := m.mod.Memory().Read(ptr, size)
	if !ok {
		return nil, fmt.Errorf("%s: read %d bytes at %#x: %w", export, size, ptr, ErrOutOfBounds)
	}
	n, err := vnode.Decode(bytes.Clone(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", export, err)
	}
	return n, nil
}
