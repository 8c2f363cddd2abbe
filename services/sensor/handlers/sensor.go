// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the gin handlers for the biosensor node's read
// and actuation API. Handlers only call the sensor node's locked public
// operations and the event log's snapshot reads; they never touch mode
// state directly.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qbionet/photosynthos/services/sensor/core"
	"github.com/qbionet/photosynthos/services/sensor/datatypes"
	"github.com/qbionet/photosynthos/services/sensor/eventlog"
	"github.com/qbionet/photosynthos/services/sensor/observability"
)

// GetStatus serves the node's current status snapshot.
func GetStatus(node *core.SensorNode) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, node.Status())
	}
}

// GetAnomalies serves every squeezing anomaly the node has recorded.
func GetAnomalies(node *core.SensorNode) gin.HandlerFunc {
	return func(c *gin.Context) {
		anomalies := node.Anomalies()
		if anomalies == nil {
			anomalies = []datatypes.AnomalyEvent{}
		}
		c.JSON(http.StatusOK, anomalies)
	}
}

// GetEvents serves the full event log as tagged envelopes, in append order.
func GetEvents(log *eventlog.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		records := log.Snapshot()
		envelopes := make([]datatypes.EventEnvelope, 0, len(records))
		for _, rec := range records {
			env, err := rec.Envelope()
			if err != nil {
				slog.Error("failed to serialize event record", "seq", rec.Seq, "error", err)
				continue
			}
			envelopes = append(envelopes, env)
		}
		c.JSON(http.StatusOK, envelopes)
	}
}

// ActuateRequest is the body of POST /v1/actuate.
// Intensity is a pointer so an explicit 0.0 passes the required check;
// range validation belongs to the core operation.
type ActuateRequest struct {
	PlayerID  string   `json:"player_id" binding:"required"`
	Intensity *float64 `json:"intensity" binding:"required"`
	Note      string   `json:"note"`
}

// HandleActuate applies an external squeeze input to the node.
//
// # Description
//
// Validates the body, delegates to the node's Actuate operation, and maps
// ErrInvalidIntensity to 400 with no state change. On success the created
// ActuationRecord is returned; it has also been appended to the event log
// and stored as the node's last actuation.
func HandleActuate(node *core.SensorNode, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ActuateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}

		rec, err := node.Actuate(req.PlayerID, *req.Intensity, req.Note)
		if err != nil {
			if metrics != nil {
				metrics.RecordActuation(false)
			}
			if errors.Is(err, core.ErrInvalidIntensity) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			slog.Error("actuation failed", "player_id", req.PlayerID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "actuation failed"})
			return
		}

		if metrics != nil {
			metrics.RecordActuation(true)
		}
		slog.Info("squeeze input applied",
			"player_id", rec.PlayerID,
			"note", rec.Note,
			"intensity", rec.Intensity,
			"modes_affected", rec.ModesAffected,
		)
		c.JSON(http.StatusOK, rec)
	}
}
