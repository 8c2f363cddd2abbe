// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package persistence

import (
	"context"
	"fmt"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/qbionet/photosynthos/services/sensor/datatypes"
)

// InfluxSink writes per-mode uncertainty telemetry to InfluxDB on every
// tick. Optional: the service only wires it when an InfluxDB token is
// configured. The JSON file sink remains the system of record; this sink
// exists for dashboarding the uncertainty drift over time.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInfluxSink connects a blocking write API for the given org and bucket.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	client := influxdb2.NewClient(url, token)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}
}

// Name implements Sink.
func (s *InfluxSink) Name() string { return "influxdb" }

// Persist implements Sink. One point per mode plus a node summary point,
// all stamped with the snapshot time.
func (s *InfluxSink) Persist(ctx context.Context, snap datatypes.NodeSnapshot) error {
	points := make([]*write.Point, 0, len(snap.Modes)+1)

	squeezed := 0
	for _, m := range snap.Modes {
		if m.Squeezed {
			squeezed++
		}
		p := influxdb2.NewPoint(
			"mode_uncertainty",
			map[string]string{
				"node_id":    snap.NodeID,
				"mode_index": strconv.Itoa(m.Index),
			},
			map[string]interface{}{
				"x_uncertainty":       m.XUncertainty,
				"p_uncertainty":       m.PUncertainty,
				"uncertainty_product": m.UncertaintyProduct(),
				"squeezed":            m.Squeezed,
			},
			snap.Timestamp,
		)
		points = append(points, p)
	}

	points = append(points, influxdb2.NewPoint(
		"node_status",
		map[string]string{
			"node_id":  snap.NodeID,
			"location": snap.Location,
		},
		map[string]interface{}{
			"squeezed_modes": squeezed,
			"anomaly_events": len(snap.AnomalyEvents),
		},
		snap.Timestamp,
	))

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write telemetry points: %w", err)
	}
	return nil
}

// Close releases the underlying InfluxDB client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
