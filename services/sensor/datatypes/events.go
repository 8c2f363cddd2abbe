// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"fmt"
	"math"
	"time"
)

// =============================================================================
// Event Union
// =============================================================================

// EventKind discriminates the concrete event types carried by the event log.
type EventKind string

const (
	// KindAnomaly marks a quantum squeezing detection produced by a scan.
	KindAnomaly EventKind = "quantum_squeezing"

	// KindActuation marks an external squeeze input applied to the node.
	KindActuation EventKind = "actuation"

	// KindMessage marks a generic free-form log entry.
	KindMessage EventKind = "message"
)

// Event is the closed union of records the event log accepts. Exactly three
// concrete types implement it: AnomalyEvent, ActuationRecord, and Message.
// Events are immutable once constructed.
type Event interface {
	// Kind returns the discriminator for the concrete type.
	Kind() EventKind

	// OccurredAt returns the wall-clock time the event was produced.
	OccurredAt() time.Time
}

// AnomalyEvent records one mode newly entering a squeezed state. A mode
// produces at most one AnomalyEvent over the node's lifetime; the squeezed
// latch guards against re-detection.
type AnomalyEvent struct {
	ModeIndex          int       `json:"mode_index"`
	DeltaX             float64   `json:"delta_x"`
	DeltaP             float64   `json:"delta_p"`
	UncertaintyProduct float64   `json:"uncertainty_product"`
	Timestamp          time.Time `json:"timestamp"`
	NodeID             string    `json:"node_id"`
	Location           string    `json:"location"`
}

// Kind implements Event.
func (e AnomalyEvent) Kind() EventKind { return KindAnomaly }

// OccurredAt implements Event.
func (e AnomalyEvent) OccurredAt() time.Time { return e.Timestamp }

// ActuationRecord describes one external actuation call. Every actuation is
// logged, even when it affected zero modes; records are never deduplicated.
type ActuationRecord struct {
	PlayerID      string    `json:"player_id"`
	Intensity     float64   `json:"intensity"`
	Note          string    `json:"note"`
	ModesAffected int       `json:"modes_affected"`
	NodeID        string    `json:"node_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// Kind implements Event.
func (e ActuationRecord) Kind() EventKind { return KindActuation }

// OccurredAt implements Event.
func (e ActuationRecord) OccurredAt() time.Time { return e.Timestamp }

// Message is a generic log entry for operational notes (service start,
// detection summaries). Core sensor operations never append Messages so that
// log-length accounting stays one entry per anomaly or actuation.
type Message struct {
	Text      string    `json:"text"`
	NodeID    string    `json:"node_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Kind implements Event.
func (e Message) Kind() EventKind { return KindMessage }

// OccurredAt implements Event.
func (e Message) OccurredAt() time.Time { return e.Timestamp }

// =============================================================================
// Boundary Serialization
// =============================================================================

// EventEnvelope is the polymorphic JSON shape used at the API and
// persistence boundaries. Exactly one of the payload pointers is set,
// matching Kind. Inside the process events stay as their concrete types.
type EventEnvelope struct {
	ID        string           `json:"id"`
	Seq       uint64           `json:"seq"`
	Kind      EventKind        `json:"kind"`
	Anomaly   *AnomalyEvent    `json:"anomaly,omitempty"`
	Actuation *ActuationRecord `json:"actuation,omitempty"`
	Message   *Message         `json:"message,omitempty"`
}

// NewEnvelope wraps a concrete event for boundary serialization.
//
// # Inputs
//
//   - id: Stable identifier assigned by the event log at append time.
//   - seq: Append-order sequence number assigned by the event log.
//   - event: One of the three concrete event types.
//
// # Outputs
//
//   - EventEnvelope: Tagged envelope with the matching payload field set.
//   - error: Non-nil if the event is not a known concrete type.
func NewEnvelope(id string, seq uint64, event Event) (EventEnvelope, error) {
	env := EventEnvelope{ID: id, Seq: seq, Kind: event.Kind()}
	switch e := event.(type) {
	case AnomalyEvent:
		env.Anomaly = &e
	case ActuationRecord:
		env.Actuation = &e
	case Message:
		env.Message = &e
	default:
		return EventEnvelope{}, fmt.Errorf("unknown event type %T", event)
	}
	return env, nil
}

// Round3 rounds a float to three decimal places for event reporting.
// Detection events carry rounded readings; mode state itself is never rounded.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
