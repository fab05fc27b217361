package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/flowgrid/internal/coordinator"
	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flow"
	"github.com/vk/flowgrid/internal/worker"
	"github.com/vk/flowgrid/internal/workspace"
)

// Run connects to the worker, runs the imported flow and waits for it to
// finish. Outputs are printed and the workspace is saved even when the run
// fails.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	cfg := a.config
	a.logger.Debug("App.Run method started.")

	notifier := coordinator.LogNotifier{Logger: a.logger}
	var creds coordinator.CredentialSource = a.store
	if cfg.EnvCredentials {
		creds = workspace.Merge(a.store, workspace.EnvCredentials{})
	}

	events := make(chan coordinator.Event, 64)
	client, err := a.dial(ctx, worker.Options{
		URL:                cfg.WorkerURL,
		Namespace:          cfg.Namespace,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}, events)
	if err != nil {
		return fmt.Errorf("failed to connect to worker: %w", err)
	}
	defer client.Close()

	coord := coordinator.New(client, creds, notifier,
		coordinator.WithEvents(events),
		coordinator.WithCyclePolicy(cfg.CyclePolicy),
		coordinator.WithLogger(a.logger),
	)
	a.store.SetGate(coord, notifier)

	if cfg.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx, coord.Status)
		defer a.closeHealthcheckServer(ctx)
	}

	serveCtx, stopServe := context.WithCancel(ctx)
	defer stopServe()
	go coord.Serve(serveCtx)

	g, err := a.store.Tab(a.flowTab)
	if err != nil {
		return fmt.Errorf("imported flow: %w", err)
	}
	a.warnMissingFields(g)

	if cfg.RunNode != "" {
		a.logger.Info("🚀 Running single node...", "node", cfg.RunNode)
		err = coord.RunNode(ctx, g, cfg.RunNode)
	} else {
		a.logger.Info("🚀 Running flow...", "nodes", g.Len())
		err = coord.Run(ctx, g)
	}
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}

	waitCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	state, waitErr := coord.Wait(waitCtx)
	status := coord.Status()
	coord.Acknowledge()

	a.printOutputs(g)

	if cfg.StatePath != "" {
		a.store.MarkVisited()
		if err := a.store.Save(ctx, cfg.StatePath); err != nil {
			a.logger.Error("Failed to save workspace.", "path", cfg.StatePath, "error", err)
		}
	}

	if waitErr != nil {
		return fmt.Errorf("waiting for run to finish: %w", waitErr)
	}
	switch state {
	case coordinator.Completed:
		a.logger.Info("🏁 Run finished.", "run_id", status.RunID)
		return nil
	case coordinator.Errored:
		return fmt.Errorf("run failed: %s", status.LastError)
	case coordinator.Disconnected:
		return errors.New("worker disconnected before the run finished")
	default:
		return fmt.Errorf("run ended in unexpected state %s", state)
	}
}

func (a *App) warnMissingFields(g *flow.Graph) {
	for _, n := range g.Nodes() {
		if len(n.Data.MissingFields) > 0 {
			a.logger.Warn("Node is missing required fields.", "node", n.Data.Name, "fields", n.Data.MissingFields)
		}
	}
}

// printOutputs writes each node's output in execution order.
func (a *App) printOutputs(g *flow.Graph) {
	snap := g.Snapshot()
	order, err := flow.Sort(snap, flow.CycleDegrade)
	if err != nil {
		a.logger.Error("Failed to order outputs.", "error", err)
		return
	}
	for _, n := range snap.Ordered(order) {
		if n.Data.OutputData == nil {
			continue
		}
		out := n.Data.OutputData
		if out.IsList() {
			fmt.Fprintf(a.outW, "%s:\n", n.Data.Name)
			for _, item := range out.Items() {
				fmt.Fprintf(a.outW, "  - %s\n", item)
			}
			continue
		}
		fmt.Fprintf(a.outW, "%s: %s\n", n.Data.Name, strings.TrimSpace(out.Text()))
	}
}
