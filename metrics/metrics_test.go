package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/caffeineduck/wasmui/bridge"
	"github.com/caffeineduck/wasmui/host"
	"github.com/caffeineduck/wasmui/vnode"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	return m.GetGauge().GetValue()
}

type freeable struct{ frees int }

func (f *freeable) Render() (*vnode.Node, error) { return vnode.Text("boxed"), nil }
func (f *freeable) Free()                        { f.frees++ }

func TestCollectorObservesBridge(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()))
	bridge.SetObserver(c)
	defer bridge.SetObserver(nil)

	r := host.New()
	bridge.SetAdapter(r)
	reg := bridge.NewRegistry(nil)
	reg.Define("Label", func(map[string]any) (*vnode.Node, error) {
		bridge.UseBridgedState(func() int { return 1 }, func(int) {})
		return vnode.Text("plain"), nil
	})

	root, err := r.Mount(vnode.Fragment(
		reg.CreateElement("Label", bridge.PlainProps(nil)),
		reg.CreateElement("Box", bridge.BoxedProps(&freeable{})),
	))
	if err != nil {
		t.Fatalf("mount failed: %v", err)
	}

	if got := counterValue(t, c.wrappersRegistered); got != 2 {
		t.Errorf("wrappers_registered_total=%v, want 2", got)
	}
	if got := counterValue(t, c.renders.WithLabelValues("Label", "plain")); got != 1 {
		t.Errorf("renders_total{Label,plain}=%v, want 1", got)
	}
	if got := counterValue(t, c.renders.WithLabelValues("Box", "boxed")); got != 1 {
		t.Errorf("renders_total{Box,boxed}=%v, want 1", got)
	}
	if got := gaugeValue(t, c.stateLive); got != 1 {
		t.Errorf("bridged_state_live=%v, want 1", got)
	}

	root.Unmount()
	if got := counterValue(t, c.boxedReleased.WithLabelValues("Box")); got != 1 {
		t.Errorf("boxed_released_total{Box}=%v, want 1", got)
	}
	if got := gaugeValue(t, c.stateLive); got != 0 {
		t.Errorf("bridged_state_live=%v, want 0", got)
	}
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()), WithNamespace("test"))

	router := chi.NewRouter()
	router.Use(c.Middleware)
	router.Get("/render/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, path := range []string{"/render/a", "/render/b"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := counterValue(t, c.requests.WithLabelValues("/render/{name}", "418")); got != 2 {
		t.Errorf("http_requests_total=%v, want 2", got)
	}
}
