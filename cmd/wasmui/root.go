package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/caffeineduck/wasmui/bridge"
	"github.com/caffeineduck/wasmui/guest"
	"github.com/caffeineduck/wasmui/host"
	"github.com/caffeineduck/wasmui/internal/config"
	"github.com/caffeineduck/wasmui/vnode"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var rootCmd = &cobra.Command{
	Use:   "wasmui",
	Short: "Render WebAssembly UI components",
	Long: `wasmui - Mount components exported by a WebAssembly guest.

Components come in two forms: plain components render from JSON props, boxed
components live in guest memory and are freed by the renderer when they are
replaced or unmounted. Settings are read from wasmui.yaml when present; flags
override the file.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// settings holds the resolved configuration for the running command.
var settings *config.Resolved

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", config.FileName, "Config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default: warn)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")
	rootCmd.PersistentFlags().String("memory", "", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
}

func setup(cmd *cobra.Command, args []string) error {
	flags := cmd.Root().PersistentFlags()
	path, _ := flags.GetString("config")

	res, err := config.Resolve(path)
	if err != nil {
		return err
	}

	if flags.Changed("no-cache") {
		noCache, _ := flags.GetBool("no-cache")
		res.Cache = !noCache
	}
	if flags.Changed("memory") {
		mem, _ := flags.GetString("memory")
		pages := guest.ParseMemoryLimit(mem)
		if pages == 0 {
			return fmt.Errorf("invalid memory %q (expected 1mb, 16mb, 64mb, 256mb, or 1gb)", mem)
		}
		res.MemoryPages = pages
	}
	if flags.Changed("log-level") {
		res.LogLevel, _ = flags.GetString("log-level")
	}

	logger, err := newLogger(res.LogLevel)
	if err != nil {
		return err
	}
	bridge.SetLogger(logger.Named("bridge"))
	guest.SetLogger(logger.Named("guest"))

	settings = res
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// app is one loaded guest module with a renderer bound to the bridge.
type app struct {
	rt  *guest.Runtime
	mod *guest.Module
	r   *host.Renderer
	reg *bridge.Registry
}

func openApp(ctx context.Context, path string) (*app, error) {
	if path == "" {
		return nil, fmt.Errorf("module required: pass a .wasm file or set module in %s", config.FileName)
	}
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}

	var opts []guest.Option
	if settings.Cache {
		opts = append(opts, guest.WithDiskCache())
	}
	if settings.MemoryPages > 0 {
		opts = append(opts, guest.WithMemoryLimit(settings.MemoryPages))
	}

	rt, err := guest.NewRuntime(opts...)
	if err != nil {
		return nil, err
	}
	mod, err := rt.Load(ctx, path, wasm)
	if err != nil {
		rt.Close()
		return nil, err
	}

	a := &app{
		rt:  rt,
		mod: mod,
		r:   host.New(),
		reg: bridge.NewRegistry(mod),
	}
	bridge.SetAdapter(a.r)
	for _, name := range settings.Components {
		a.reg.Register(name)
	}
	return a, nil
}

// element builds an element for name. With boxed set, a new guest component
// is constructed from props and handed to the tree.
func (a *app) element(name string, props map[string]any, boxed bool) (*vnode.Node, error) {
	if !boxed {
		return a.reg.CreateElement(name, bridge.PlainProps(props)), nil
	}
	c, err := a.mod.NewComponent(name, props)
	if err != nil {
		return nil, err
	}
	return a.reg.CreateElement(name, bridge.BoxedProps(c)), nil
}

func (a *app) Close() {
	if n := a.mod.Live(); n > 0 {
		guest.Logger().Warn("guest handles still live at exit", zap.Int("live", n))
	}
	a.mod.Close()
	a.rt.Close()
}

// modulePath picks the module from args, falling back to the config file.
func modulePath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return settings.Module
}

func parseProps(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(s), &props); err != nil {
		return nil, fmt.Errorf("invalid props: %w", err)
	}
	return props, nil
}
