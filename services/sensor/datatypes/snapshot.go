// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// StatusSnapshot is the immutable read model served by GET /v1/status.
// It is computed under the node lock so a reader never observes a state
// where an evolution cycle has touched some modes but not others.
type StatusSnapshot struct {
	NodeID         string           `json:"node_id"`
	Location       string           `json:"location"`
	Kind           string           `json:"kind"`
	LastReading    *time.Time       `json:"last_reading"`
	SqueezedCount  int              `json:"squeezed_count"`
	BaselineStable bool             `json:"baseline_stable"`
	LastActuation  *ActuationRecord `json:"last_actuation"`
	TotalAnomalies int              `json:"total_anomalies"`
	Timestamp      time.Time        `json:"timestamp"`
}

// NodeSnapshot is the full persistence view of a node: one JSON document
// per day per node, written by the file sink on every updater tick.
// Mode and event fields all coerce to JSON primitives.
type NodeSnapshot struct {
	NodeID        string           `json:"node_id"`
	Location      string           `json:"location"`
	Kind          string           `json:"kind"`
	LastReading   *time.Time       `json:"last_reading"`
	Modes         []Mode           `json:"modes"`
	AnomalyEvents []AnomalyEvent   `json:"anomaly_events"`
	LastActuation *ActuationRecord `json:"last_actuation"`
	Timestamp     time.Time        `json:"timestamp"`
}
