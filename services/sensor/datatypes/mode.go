// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the wire and domain types shared by the
// biosensor node service: vibrational modes, the tagged event union, and
// the snapshot shapes served over the read API and written by the
// persistence sinks.
package datatypes

import "time"

// =============================================================================
// Physical Constants
// =============================================================================

const (
	// DefaultModeCount is the number of vibrational modes per node.
	DefaultModeCount = 12

	// DampingRate is the oscillator damping rate in THz.
	DampingRate = 0.003

	// EvolutionStep is the dimensionless time step applied per evolution cycle.
	EvolutionStep = 0.1

	// HeisenbergLimit is the minimum allowed product of x and p uncertainty
	// (h-bar/2 in natural units). No operation may leave a mode below it.
	HeisenbergLimit = 0.5

	// SqueezingThreshold is the x-uncertainty below which a mode counts as
	// squeezed.
	SqueezingThreshold = 0.4

	// InitUncertaintyLow and InitUncertaintyHigh bound the uniform draw for
	// initial x and p uncertainties at construction.
	InitUncertaintyLow  = 0.45
	InitUncertaintyHigh = 0.6

	// UncertaintyRestoreStep is added to p-uncertainty until a freshly drawn
	// mode satisfies the Heisenberg limit.
	UncertaintyRestoreStep = 0.05

	// MaxActuatedModes caps how many modes a single actuation can drive.
	// affected = floor(intensity * MaxActuatedModes), taken in index order.
	MaxActuatedModes = 6

	// FrequencyLowTHz and FrequencyHighTHz bound the decorative mode
	// frequency drawn at construction. Frequency plays no role in evolution.
	FrequencyLowTHz  = 10.0
	FrequencyHighTHz = 50.0

	// DefaultNote is the actuation note used when the caller does not name one.
	DefaultNote = "C#"
)

// Mode is one simulated oscillator with a quantum uncertainty pair.
//
// # Invariants
//
//   - XUncertainty * PUncertainty >= HeisenbergLimit at all times.
//   - Squeezed is a monotonic latch: once true it is never cleared.
//   - Index and FrequencyTHz are set at construction and never change.
type Mode struct {
	Index        int       `json:"index"`
	FrequencyTHz float64   `json:"freq_thz"`
	XUncertainty float64   `json:"x_uncertainty"`
	PUncertainty float64   `json:"p_uncertainty"`
	Squeezed     bool      `json:"squeezed"`
	LastUpdate   time.Time `json:"last_update"`
}

// UncertaintyProduct returns the current Heisenberg product for the mode.
func (m Mode) UncertaintyProduct() float64 {
	return m.XUncertainty * m.PUncertainty
}
