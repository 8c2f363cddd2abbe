// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package scheduler drives the biosensor simulation: a background updater
// runs one evolve+scan cycle on a fixed interval, forever, until the process
// stops. The updater coordinates with the sensor node strictly through its
// locked public operations and never touches mode fields directly.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/qbionet/photosynthos/services/sensor/core"
	"github.com/qbionet/photosynthos/services/sensor/datatypes"
	"github.com/qbionet/photosynthos/services/sensor/eventlog"
	"github.com/qbionet/photosynthos/services/sensor/observability"
	"github.com/qbionet/photosynthos/services/sensor/persistence"
)

// =============================================================================
// Updater Configuration
// =============================================================================

// Config holds settings for the background updater.
//
// # Fields
//
//   - Interval: How often to run an evolve+scan cycle. Default: 8 seconds.
type Config struct {
	Interval time.Duration
}

// DefaultConfig returns the production defaults: one scan cycle every
// 8 seconds, matching the reference deployment's cadence.
func DefaultConfig() Config {
	return Config{
		Interval: 8 * time.Second,
	}
}

// =============================================================================
// Updater
// =============================================================================

// Updater owns the background goroutine that advances the simulation.
//
// # Description
//
// Each tick runs node.Tick() (evolve+scan under one lock acquisition),
// records metrics, then takes a consistent snapshot and hands it to every
// persistence sink outside the node lock. Sink failures are logged and
// swallowed; no single tick's failure can kill the loop.
//
// # Thread Safety
//
// All public methods are thread-safe. Stop waits for an in-flight tick to
// finish, so shutdown never tears a persistence write.
type Updater struct {
	node    *core.SensorNode
	log     *eventlog.Log
	sinks   []persistence.Sink
	metrics *observability.Metrics
	config  Config

	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New creates an updater for the given node.
//
// # Inputs
//
//   - node: The sensor node to advance each tick.
//   - log: The shared event log (used only for the size gauge; the node
//     itself appends events).
//   - sinks: Persistence sinks called once per tick. May be empty.
//   - metrics: Metrics recorder. May be nil to disable instrumentation.
//   - config: Tick interval. A non-positive interval falls back to default.
func New(node *core.SensorNode, log *eventlog.Log, sinks []persistence.Sink,
	metrics *observability.Metrics, config Config) *Updater {

	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	return &Updater{
		node:    node,
		log:     log,
		sinks:   sinks,
		metrics: metrics,
		config:  config,
		done:    make(chan struct{}),
	}
}

// Start begins the background update loop.
//
// # Description
//
// Runs an initial tick immediately, then one per interval until Stop() is
// called or the context is cancelled.
//
// # Outputs
//
//   - error: Non-nil if the updater is already running.
func (u *Updater) Start(ctx context.Context) error {
	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		return fmt.Errorf("updater is already running")
	}
	u.running = true
	u.done = make(chan struct{}) // reset for restart
	u.mu.Unlock()

	slog.Info("sensor updater starting",
		"interval", u.config.Interval.String(),
		"node_id", u.node.NodeID(),
		"sinks", len(u.sinks),
	)

	u.wg.Add(1)
	go u.runLoop(ctx)
	return nil
}

// Stop halts the loop and waits for any in-flight tick to complete.
// Safe to call multiple times.
func (u *Updater) Stop() error {
	u.mu.Lock()
	if !u.running {
		u.mu.Unlock()
		return nil
	}
	slog.Info("sensor updater stopping")
	close(u.done)
	u.running = false
	u.mu.Unlock()

	u.wg.Wait()
	return nil
}

// RunNow performs one tick immediately without waiting for the next
// scheduled interval. Useful for manual invocation and tests.
//
// # Outputs
//
//   - []datatypes.AnomalyEvent: Anomalies detected by this cycle.
func (u *Updater) RunNow(ctx context.Context) []datatypes.AnomalyEvent {
	return u.executeTick(ctx)
}

// =============================================================================
// Internal Methods
// =============================================================================

// runLoop is the main updater goroutine.
func (u *Updater) runLoop(ctx context.Context) {
	defer u.wg.Done()

	ticker := time.NewTicker(u.config.Interval)
	defer ticker.Stop()

	// Initial scan immediately on start, like the first observation after
	// the node comes online.
	u.executeTick(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("sensor updater stopped (context cancelled)")
			return
		case <-u.done:
			slog.Info("sensor updater stopped (stop requested)")
			return
		case <-ticker.C:
			u.executeTick(ctx)
		}
	}
}

// executeTick runs one evolve+scan cycle and persists the result.
//
// # Description
//
// The evolve+scan step happens atomically inside node.Tick. Snapshots for
// persistence are taken afterwards under their own short lock acquisitions;
// sink I/O runs with no lock held.
func (u *Updater) executeTick(ctx context.Context) []datatypes.AnomalyEvent {
	start := time.Now()
	anomalies := u.node.Tick()

	for _, a := range anomalies {
		slog.Warn("quantum squeezing detected",
			"node_id", a.NodeID,
			"mode_index", a.ModeIndex,
			"delta_x", a.DeltaX,
			"uncertainty_product", a.UncertaintyProduct,
		)
	}

	if u.metrics != nil {
		status := u.node.Status()
		u.metrics.RecordScan(len(anomalies), status.SqueezedCount, time.Since(start).Seconds())
		u.metrics.SetEventLogEntries(u.log.Len())
	}

	snap := u.node.Snapshot()
	for _, sink := range u.sinks {
		if err := sink.Persist(ctx, snap); err != nil {
			// Persistence failures are never fatal; the next tick retries.
			slog.Warn("failed to persist node snapshot",
				"sink", sink.Name(),
				"node_id", snap.NodeID,
				"error", err,
			)
			if u.metrics != nil {
				u.metrics.RecordPersistFailure(sink.Name())
			}
		}
	}
	return anomalies
}
