package guest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

var (
	ErrClosed        = errors.New("guest closed")
	ErrMissingExport = errors.New("missing export")
	ErrOutOfBounds   = errors.New("guest memory access out of bounds")
	ErrInvalidHandle = errors.New("invalid guest handle")
)

// Runtime manages the wazero runtime and compiled module caching.
type Runtime struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled map[string]wazero.CompiledModule
	mu       sync.RWMutex
	closed   bool
}

// NewRuntime creates a Runtime with WASI preview1 available to guests.
func NewRuntime(opts ...Option) (*Runtime, error) {
	cfg := defaultRuntimeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	r := &Runtime{
		runtime:  rt,
		cache:    cache,
		compiled: make(map[string]wazero.CompiledModule),
	}

	for _, src := range cfg.precompile {
		if _, err := r.getCompiled(ctx, src.Name, src.Wasm); err != nil {
			r.Close()
			return nil, fmt.Errorf("precompile %s: %w", src.Name, err)
		}
	}

	return r, nil
}

// Load instantiates the guest binary wasm. Compiled code is cached under
// name, so one name must always refer to the same binary. ctx bounds the
// lifetime of the returned Module.
func (r *Runtime) Load(ctx context.Context, name string, wasm []byte) (*Module, error) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	compiled, err := r.getCompiled(ctx, name, wasm)
	if err != nil {
		return nil, err
	}

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(outputWriter{module: name, stream: "stdout"}).
		WithStderr(outputWriter{module: name, stream: "stderr"}).
		WithStartFunctions("_initialize").
		WithName("")

	mod, err := r.runtime.InstantiateModule(ctx, compiled, moduleConfig)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", name, err)
	}

	if mod.Memory() == nil || mod.ExportedFunction(allocExport) == nil {
		mod.Close(ctx)
		return nil, fmt.Errorf("load %s: %w: memory and %s are required", name, ErrMissingExport, allocExport)
	}

	m := &Module{
		name:    name,
		ctx:     ctx,
		mod:     mod,
		exports: compiled.ExportedFunctions(),
	}
	Logger().Info("guest module loaded",
		zap.String("module", name),
		zap.Int("exports", len(m.exports)))
	return m, nil
}

// getCompiled returns a cached compiled module, compiling if necessary.
func (r *Runtime) getCompiled(ctx context.Context, name string, wasm []byte) (wazero.CompiledModule, error) {
	r.mu.RLock()
	if compiled, ok := r.compiled[name]; ok {
		r.mu.RUnlock()
		return compiled, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if compiled, ok := r.compiled[name]; ok {
		return compiled, nil
	}

	compiled, err := r.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}

	r.compiled[name] = compiled
	return compiled, nil
}

// Close releases all resources held by the Runtime, including every module
// loaded from it.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	ctx := context.Background()

	var errs []error
	if err := r.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.cache != nil {
		if err := r.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "wasmui")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "wasmui")
	}
	return filepath.Join(os.TempDir(), "wasmui-cache")
}
