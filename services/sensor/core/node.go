// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package core implements the biosensor node's state machine: vibrational
// mode evolution under a damping rule, squeezing detection, external
// actuation, and consistent status snapshots.
//
// # Concurrency Model
//
// A single mutex guards the whole node. Every mutating operation (Evolve,
// Scan, Actuate) and the Status read hold it for their full duration, so a
// reader never observes a half-evolved mode collection and two concurrent
// actuations are serialized rather than interleaved per mode. The updater
// uses Tick, which runs evolve and scan under one lock acquisition so no
// other mutator can slip between them.
//
// Event log appends happen while the node lock is held; the log carries its
// own lock for append atomicity but never calls back into the node, so lock
// ordering is always node -> log.
package core

import (
	"math"
	"sync"
	"time"

	"github.com/qbionet/photosynthos/services/sensor/datatypes"
	"github.com/qbionet/photosynthos/services/sensor/eventlog"
)

// Config carries the identity and sizing of a sensor node.
type Config struct {
	NodeID    string
	Location  string
	Kind      string
	ModeCount int
}

// DefaultConfig returns the node identity used when none is configured,
// matching the reference deployment.
func DefaultConfig() Config {
	return Config{
		NodeID:    "POthos_001",
		Location:  "kitchen_windowsill_north",
		Kind:      "Epipremnum aureum",
		ModeCount: datatypes.DefaultModeCount,
	}
}

// SensorNode owns the ordered, fixed-length collection of vibrational modes
// and the per-node metadata. It is created once at process start and lives
// until process exit.
type SensorNode struct {
	mu sync.Mutex

	nodeID   string
	location string
	kind     string

	modes         []datatypes.Mode
	lastReading   *time.Time
	lastActuation *datatypes.ActuationRecord
	anomalies     []datatypes.AnomalyEvent

	clock Clock
	log   *eventlog.Log
}

// NewSensorNode constructs a node with cfg.ModeCount modes.
//
// # Description
//
// For each mode, frequency and both uncertainties are drawn uniformly
// (frequency from [10,50) THz, uncertainties from [0.45,0.6)); while the
// uncertainty product is below the Heisenberg limit, p-uncertainty is raised
// in fixed steps until the invariant holds. This is the only place modes are
// created and the only place randomness is consumed: the collection length
// is fixed for the node's lifetime and evolution is deterministic.
//
// # Inputs
//
//   - cfg: Node identity and mode count. A non-positive ModeCount falls
//     back to the default of 12.
//   - clock: Timestamp source for all state changes.
//   - rng: Uniform draw source, consulted only here.
//   - log: Shared event log the node appends anomalies and actuations to.
func NewSensorNode(cfg Config, clock Clock, rng RandSource, log *eventlog.Log) *SensorNode {
	if cfg.ModeCount <= 0 {
		cfg.ModeCount = datatypes.DefaultModeCount
	}

	now := clock.Now()
	modes := make([]datatypes.Mode, cfg.ModeCount)
	for i := range modes {
		m := datatypes.Mode{
			Index:        i,
			FrequencyTHz: rng.UniformFloat(datatypes.FrequencyLowTHz, datatypes.FrequencyHighTHz),
			XUncertainty: rng.UniformFloat(datatypes.InitUncertaintyLow, datatypes.InitUncertaintyHigh),
			PUncertainty: rng.UniformFloat(datatypes.InitUncertaintyLow, datatypes.InitUncertaintyHigh),
			Squeezed:     false,
			LastUpdate:   now,
		}
		for m.XUncertainty*m.PUncertainty < datatypes.HeisenbergLimit {
			m.PUncertainty += datatypes.UncertaintyRestoreStep
		}
		modes[i] = m
	}

	return &SensorNode{
		nodeID:   cfg.NodeID,
		location: cfg.Location,
		kind:     cfg.Kind,
		modes:    modes,
		clock:    clock,
		log:      log,
	}
}

// =============================================================================
// Mutating Operations
// =============================================================================

// Evolve advances every mode by one damping step.
//
// # Description
//
// Applies decay = exp(-DampingRate * EvolutionStep) to each mode's
// x-uncertainty, floored at 0.8 * SqueezingThreshold to prevent runaway
// collapse, then grows p-uncertainty by the compensating factor and raises
// it to the Heisenberg floor if needed. Deterministic given current state.
func (n *SensorNode) Evolve() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.evolveLocked()
}

// Scan detects newly squeezed modes and logs one anomaly event for each.
//
// # Description
//
// A mode triggers when its x-uncertainty sits below the squeezing threshold
// and its latch is still clear. Detection sets the latch, so each mode
// produces at most one anomaly over the node's lifetime. last_reading is
// updated exactly once per call regardless of how many anomalies were found.
//
// # Outputs
//
//   - []datatypes.AnomalyEvent: Events created by this call; empty is not
//     an error.
func (n *SensorNode) Scan() []datatypes.AnomalyEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.scanLocked()
}

// Tick runs one evolve+scan cycle as a single atomic step under the node
// lock. This is the updater's entry point: no other mutator can interleave
// between the evolution and the detection pass.
func (n *SensorNode) Tick() []datatypes.AnomalyEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.evolveLocked()
	return n.scanLocked()
}

// Actuate applies an external squeeze input to the first affected modes.
//
// # Description
//
// affected = floor(intensity * 6), capped at the mode count and taken in
// index order from 0 ("how hard the bellows were pressed" scaling: a full
// press drives six modes). Each affected mode's x-uncertainty is reduced by
// factor (0.95 - 0.2*intensity), p-uncertainty is raised to restore the
// Heisenberg floor, and the squeezed latch is force-set even if already
// latched. Exactly one ActuationRecord is appended to the event log, even
// when affected == 0, and the record overwrites the node's last_actuation.
//
// # Inputs
//
//   - playerID: Who drove the actuation.
//   - intensity: Bellows pressure in [0.0, 1.0].
//   - note: Which note was played; empty defaults to "C#".
//
// # Outputs
//
//   - datatypes.ActuationRecord: The record stored and logged.
//   - error: ErrInvalidIntensity if intensity is out of range; the node and
//     the log are left untouched in that case.
func (n *SensorNode) Actuate(playerID string, intensity float64, note string) (datatypes.ActuationRecord, error) {
	if intensity < 0.0 || intensity > 1.0 {
		return datatypes.ActuationRecord{}, ErrInvalidIntensity
	}
	if note == "" {
		note = datatypes.DefaultNote
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now()
	affected := int(intensity * datatypes.MaxActuatedModes)
	if affected > len(n.modes) {
		affected = len(n.modes)
	}

	reduction := 0.95 - 0.2*intensity
	for i := 0; i < affected; i++ {
		m := &n.modes[i]
		m.XUncertainty *= reduction
		m.PUncertainty = math.Max(datatypes.HeisenbergLimit/m.XUncertainty, m.PUncertainty)
		m.Squeezed = true
		m.LastUpdate = now
	}

	rec := datatypes.ActuationRecord{
		PlayerID:      playerID,
		Intensity:     datatypes.Round3(intensity),
		Note:          note,
		ModesAffected: affected,
		NodeID:        n.nodeID,
		Timestamp:     now,
	}
	n.lastActuation = &rec
	n.log.Append(rec)
	return rec, nil
}

// evolveLocked applies one damping step. Caller holds n.mu.
func (n *SensorNode) evolveLocked() {
	now := n.clock.Now()
	decay := math.Exp(-datatypes.DampingRate * datatypes.EvolutionStep)

	for i := range n.modes {
		m := &n.modes[i]
		m.XUncertainty = math.Max(datatypes.SqueezingThreshold*0.8, m.XUncertainty*decay)
		m.PUncertainty = math.Max(
			datatypes.HeisenbergLimit/m.XUncertainty,
			m.PUncertainty*(1.0+0.5*(1.0-decay)),
		)
		m.LastUpdate = now
	}
}

// scanLocked detects newly squeezed modes. Caller holds n.mu.
func (n *SensorNode) scanLocked() []datatypes.AnomalyEvent {
	now := n.clock.Now()
	var found []datatypes.AnomalyEvent

	for i := range n.modes {
		m := &n.modes[i]
		if m.XUncertainty >= datatypes.SqueezingThreshold || m.Squeezed {
			continue
		}
		event := datatypes.AnomalyEvent{
			ModeIndex:          m.Index,
			DeltaX:             datatypes.Round3(m.XUncertainty),
			DeltaP:             datatypes.Round3(m.PUncertainty),
			UncertaintyProduct: datatypes.Round3(m.XUncertainty * m.PUncertainty),
			Timestamp:          now,
			NodeID:             n.nodeID,
			Location:           n.location,
		}
		m.Squeezed = true
		n.anomalies = append(n.anomalies, event)
		n.log.Append(event)
		found = append(found, event)
	}

	n.lastReading = &now
	return found
}

// =============================================================================
// Read Operations
// =============================================================================

// Status returns the immutable status snapshot served by the read API.
// Computed under the node lock so it never reflects a torn intermediate
// state; the returned value shares no memory with the node.
func (n *SensorNode) Status() datatypes.StatusSnapshot {
	n.mu.Lock()
	defer n.mu.Unlock()

	squeezed := 0
	for i := range n.modes {
		if n.modes[i].Squeezed {
			squeezed++
		}
	}

	return datatypes.StatusSnapshot{
		NodeID:         n.nodeID,
		Location:       n.location,
		Kind:           n.kind,
		LastReading:    copyTime(n.lastReading),
		SqueezedCount:  squeezed,
		BaselineStable: squeezed == 0,
		LastActuation:  copyActuation(n.lastActuation),
		TotalAnomalies: len(n.anomalies),
		Timestamp:      n.clock.Now(),
	}
}

// Snapshot returns the full persistence view of the node. Slices are
// defensive copies; callers may retain the result without locking.
func (n *SensorNode) Snapshot() datatypes.NodeSnapshot {
	n.mu.Lock()
	defer n.mu.Unlock()

	modes := make([]datatypes.Mode, len(n.modes))
	copy(modes, n.modes)
	anomalies := make([]datatypes.AnomalyEvent, len(n.anomalies))
	copy(anomalies, n.anomalies)

	return datatypes.NodeSnapshot{
		NodeID:        n.nodeID,
		Location:      n.location,
		Kind:          n.kind,
		LastReading:   copyTime(n.lastReading),
		Modes:         modes,
		AnomalyEvents: anomalies,
		LastActuation: copyActuation(n.lastActuation),
		Timestamp:     n.clock.Now(),
	}
}

// Anomalies returns a copy of every anomaly event this node has logged.
func (n *SensorNode) Anomalies() []datatypes.AnomalyEvent {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]datatypes.AnomalyEvent, len(n.anomalies))
	copy(out, n.anomalies)
	return out
}

// NodeID returns the node's immutable identifier.
func (n *SensorNode) NodeID() string { return n.nodeID }

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyActuation(a *datatypes.ActuationRecord) *datatypes.ActuationRecord {
	if a == nil {
		return nil
	}
	v := *a
	return &v
}
