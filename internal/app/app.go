package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/vk/flowgrid/internal/coordinator"
	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flow"
	"github.com/vk/flowgrid/internal/flowdoc"
	"github.com/vk/flowgrid/internal/nodeid"
	"github.com/vk/flowgrid/internal/processor"
	"github.com/vk/flowgrid/internal/worker"
	"github.com/vk/flowgrid/internal/workspace"
)

// Transport is a connected worker session.
type Transport interface {
	coordinator.Transport
	Close() error
}

// Dialer opens a worker session that delivers events to sink.
type Dialer func(ctx context.Context, opts worker.Options, sink chan<- coordinator.Event) (Transport, error)

// dialWorker is the production Dialer.
func dialWorker(ctx context.Context, opts worker.Options, sink chan<- coordinator.Event) (Transport, error) {
	c, err := worker.Dial(ctx, opts, sink)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Option customizes an App.
type Option func(*App)

// WithDialer replaces the socket.io dialer.
func WithDialer(d Dialer) Option {
	return func(a *App) { a.dial = d }
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *processor.Registry
	store    *workspace.Store
	flowTab  int // tab holding the imported flow
	dial     Dialer

	httpServer *http.Server
}

// NewApp is the constructor for the main application. It loads processor
// manifests, the workspace and the flow document, and panics if any of them
// cannot be loaded.
func NewApp(outW io.Writer, cfg *Config, opts ...Option) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	var manifestPaths []string
	if cfg.ProcessorsPath != "" {
		manifestPaths = append(manifestPaths, cfg.ProcessorsPath)
	}
	reg, err := processor.LoadManifests(ctx, manifestPaths...)
	if err != nil {
		panic(fmt.Errorf("failed to load processor manifests: %w", err))
	}
	logger.Debug("Processor manifests loaded.", "types", len(reg.Types()))

	store := workspace.New()
	if cfg.StatePath != "" {
		store, err = workspace.Load(ctx, cfg.StatePath, flowdoc.WithRegistry(reg), flowdoc.WithAllocator(nodeid.Random{}))
		if err != nil {
			panic(fmt.Errorf("failed to load workspace: %w", err))
		}
	}

	g, err := importFlow(cfg.FlowPath, reg)
	if err != nil {
		panic(fmt.Errorf("failed to import flow: %w", err))
	}
	tab := store.AddTab(g)
	if err := store.SwitchTab(tab); err != nil {
		panic(err)
	}
	logger.Debug("Flow imported.", "path", cfg.FlowPath, "nodes", g.Len(), "tab", tab)

	a := &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		store:    store,
		flowTab:  tab,
		dial:     dialWorker,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func importFlow(path string, reg *processor.Registry) (*flow.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := flowdoc.Decode(f, flowdoc.FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	snap, err := flowdoc.FromDocument(doc, flowdoc.WithRegistry(reg), flowdoc.WithAllocator(nodeid.Random{}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return flow.FromSnapshot(snap)
}

// Registry returns the processor registry. This is primarily for testing.
func (a *App) Registry() *processor.Registry {
	return a.registry
}

// Workspace returns the workspace store. This is primarily for testing.
func (a *App) Workspace() *workspace.Store {
	return a.store
}
