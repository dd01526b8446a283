package guest

import "strings"

// Option configures the Runtime at creation time.
type Option func(*runtimeConfig)

type runtimeConfig struct {
	diskCache        bool
	cacheDir         string
	precompile       []Source
	memoryLimitPages uint32 // Max memory pages (each page = 64KB), 0 = default (4GB)
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		diskCache:        false,
		memoryLimitPages: 0, // 0 means use wazero default (65536 pages = 4GB)
	}
}

// Source is a named guest binary.
type Source struct {
	Name string
	Wasm []byte
}

// WithDiskCache enables a persistent compilation cache for faster startup.
// Optionally provide a custom directory; otherwise uses ~/.cache/wasmui or
// XDG_CACHE_HOME/wasmui.
//
// Examples:
//
//	guest.NewRuntime(guest.WithDiskCache())            // default dir
//	guest.NewRuntime(guest.WithDiskCache("/tmp/cache")) // custom dir
func WithDiskCache(dir ...string) Option {
	return func(c *runtimeConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithPrecompile compiles the given modules when the Runtime is created,
// moving compilation cost to startup.
func WithPrecompile(srcs ...Source) Option {
	return func(c *runtimeConfig) {
		c.precompile = srcs
	}
}

// WithMemoryLimit sets the maximum memory available to guest modules.
// Each page is 64KB. Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) Option {
	return func(c *runtimeConfig) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)

// ParseMemoryLimit maps a size such as "64mb" to pages. Unknown sizes map
// to 0, the runtime default.
func ParseMemoryLimit(s string) uint32 {
	switch strings.ToLower(s) {
	case "1mb":
		return MemoryLimit1MB
	case "16mb":
		return MemoryLimit16MB
	case "64mb":
		return MemoryLimit64MB
	case "256mb":
		return MemoryLimit256MB
	case "1gb":
		return MemoryLimit1GB
	default:
		return 0
	}
}
