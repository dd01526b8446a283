package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/caffeineduck/wasmui/bridge"
	"github.com/caffeineduck/wasmui/host"
	"github.com/caffeineduck/wasmui/metrics"
	"github.com/caffeineduck/wasmui/vnode"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve [module.wasm]",
	Short: "Start HTTP server for rendering components",
	Long: `Start an HTTP server that renders components of one module.

Endpoints:
  GET    /components      List exported components
  POST   /render/{name}   Render once, returns {"tree":...}
  POST   /mounts          Mount a tree, returns {"id":"...","tree":...}
  GET    /mounts/{id}     Current tree of a mount
  PUT    /mounts/{id}     Re-render a mount with new props
  DELETE /mounts/{id}     Unmount
  GET    /metrics         Prometheus metrics
  GET    /health          Health check

Request bodies are {"name":"...","props":{...},"boxed":false}. Mounts idle
for longer than the TTL are unmounted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default :8080)")
	serveCmd.Flags().Duration("ttl", 0, "Idle mount lifetime (default 5m)")
	rootCmd.AddCommand(serveCmd)
}

var tracer = otel.Tracer("github.com/caffeineduck/wasmui/cmd/wasmui")

// mountManager owns the renderer. Every tree operation runs under mu.
type mountManager struct {
	app    *app
	mounts map[string]*serverMount
	mu     sync.Mutex
	ttl    time.Duration
	done   chan struct{}
}

type serverMount struct {
	root     *host.Root
	name     string
	boxed    bool
	lastUsed time.Time
}

var errMountNotFound = errors.New("mount not found")

func newMountManager(a *app, ttl time.Duration) *mountManager {
	mm := &mountManager{
		app:    a,
		mounts: make(map[string]*serverMount),
		ttl:    ttl,
		done:   make(chan struct{}),
	}
	go mm.cleanup()
	return mm
}

// renderOnce mounts, reads and unmounts a tree.
func (mm *mountManager) renderOnce(name string, props map[string]any, boxed bool) (*vnode.Node, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	el, err := mm.app.element(name, props, boxed)
	if err != nil {
		return nil, err
	}
	root, err := mm.app.r.Mount(el)
	if err != nil {
		return nil, err
	}
	tree := root.Tree()
	root.Unmount()
	return tree, nil
}

func (mm *mountManager) create(name string, props map[string]any, boxed bool) (string, *vnode.Node, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	el, err := mm.app.element(name, props, boxed)
	if err != nil {
		return "", nil, err
	}
	root, err := mm.app.r.Mount(el)
	if err != nil {
		return "", nil, err
	}

	id := generateMountID()
	mm.mounts[id] = &serverMount{
		root:     root,
		name:     name,
		boxed:    boxed,
		lastUsed: time.Now(),
	}
	return id, root.Tree(), nil
}

func (mm *mountManager) tree(id string) (*vnode.Node, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	m, ok := mm.mounts[id]
	if !ok {
		return nil, errMountNotFound
	}
	m.lastUsed = time.Now()
	return m.root.Tree(), nil
}

// update re-renders a mount. A boxed mount gets a fresh boxed component,
// which supersedes and frees the previous one.
func (mm *mountManager) update(id string, props map[string]any) (*vnode.Node, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	m, ok := mm.mounts[id]
	if !ok {
		return nil, errMountNotFound
	}
	m.lastUsed = time.Now()

	el, err := mm.app.element(m.name, props, m.boxed)
	if err != nil {
		return nil, err
	}
	if err := m.root.Update(el); err != nil {
		return nil, err
	}
	return m.root.Tree(), nil
}

func (mm *mountManager) close(id string) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	m, ok := mm.mounts[id]
	if ok {
		m.root.Unmount()
		delete(mm.mounts, id)
	}
	return ok
}

func (mm *mountManager) cleanup() {
	ticker := time.NewTicker(mm.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-mm.done:
			return
		case now := <-ticker.C:
			mm.sweep(now)
		}
	}
}

// sweep unmounts every mount idle since before now minus the TTL.
func (mm *mountManager) sweep(now time.Time) int {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	n := 0
	for id, m := range mm.mounts {
		if now.Sub(m.lastUsed) > mm.ttl {
			m.root.Unmount()
			delete(mm.mounts, id)
			n++
		}
	}
	if n > 0 {
		bridge.Logger().Info("unmounted idle trees", zap.Int("count", n))
	}
	return n
}

func (mm *mountManager) closeAll() {
	close(mm.done)
	mm.mu.Lock()
	for id, m := range mm.mounts {
		m.root.Unmount()
		delete(mm.mounts, id)
	}
	mm.mu.Unlock()
}

func generateMountID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}

type renderRequest struct {
	Name  string         `json:"name,omitempty"`
	Props map[string]any `json:"props,omitempty"`
	Boxed bool           `json:"boxed,omitempty"`
}

type renderResponse struct {
	ID   string      `json:"id,omitempty"`
	Tree *vnode.Node `json:"tree"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if addr == "" {
		addr = settings.ServeAddr
	}
	if ttl <= 0 {
		ttl = settings.ServeTTL
	}

	a, err := openApp(context.Background(), modulePath(args))
	if err != nil {
		return err
	}
	defer a.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(metrics.WithRegistry(reg))
	bridge.SetObserver(collector)
	defer bridge.SetObserver(nil)

	mounts := newMountManager(a, ttl)
	defer mounts.closeAll()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(mounts, reg, collector),
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wasmui server listening on %s\n", addr)
	return srv.ListenAndServe()
}

func newRouter(mounts *mountManager, reg *prometheus.Registry, collector *metrics.Collector) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(collector.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Get("/components", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, mounts.app.mod.Components())
	})

	r.Post("/render/{name}", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeRequest(w, r)
		if !ok {
			return
		}
		name := chi.URLParam(r, "name")
		_, span := startSpan(r, "serve.render", name)
		defer span.End()

		tree, err := mounts.renderOnce(name, req.Props, req.Boxed)
		if err != nil {
			fail(w, span, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusOK, renderResponse{Tree: tree})
	})

	r.Route("/mounts", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			req, ok := decodeRequest(w, r)
			if !ok {
				return
			}
			if req.Name == "" {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name required"})
				return
			}
			_, span := startSpan(r, "serve.mount", req.Name)
			defer span.End()

			id, tree, err := mounts.create(req.Name, req.Props, req.Boxed)
			if err != nil {
				fail(w, span, http.StatusUnprocessableEntity, err)
				return
			}
			writeJSON(w, http.StatusCreated, renderResponse{ID: id, Tree: tree})
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			tree, err := mounts.tree(id)
			if err != nil {
				writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, renderResponse{ID: id, Tree: tree})
		})

		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			req, ok := decodeRequest(w, r)
			if !ok {
				return
			}
			id := chi.URLParam(r, "id")
			_, span := startSpan(r, "serve.update", id)
			defer span.End()

			tree, err := mounts.update(id, req.Props)
			if errors.Is(err, errMountNotFound) {
				fail(w, span, http.StatusNotFound, err)
				return
			}
			if err != nil {
				fail(w, span, http.StatusUnprocessableEntity, err)
				return
			}
			writeJSON(w, http.StatusOK, renderResponse{ID: id, Tree: tree})
		})

		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			if mounts.close(chi.URLParam(r, "id")) {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			writeJSON(w, http.StatusNotFound, errorResponse{Error: errMountNotFound.Error()})
		})
	})

	return r
}

func startSpan(r *http.Request, op, target string) (context.Context, trace.Span) {
	return tracer.Start(r.Context(), op, trace.WithAttributes(
		attribute.String("wasmui.target", target),
		attribute.String("http.request_id", middleware.GetReqID(r.Context())),
	))
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (renderRequest, bool) {
	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return req, false
	}
	return req, true
}

func fail(w http.ResponseWriter, span trace.Span, status int, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
