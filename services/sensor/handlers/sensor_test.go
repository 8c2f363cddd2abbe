// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbionet/photosynthos/services/sensor/core"
	"github.com/qbionet/photosynthos/services/sensor/datatypes"
	"github.com/qbionet/photosynthos/services/sensor/eventlog"
	"github.com/qbionet/photosynthos/services/sensor/observability"
)

// newTestRouter wires a fresh node, log, and metrics into a gin engine with
// the sensor API registered.
func newTestRouter() (*gin.Engine, *core.SensorNode, *eventlog.Log) {
	log := eventlog.New()
	node := core.NewSensorNode(core.Config{
		NodeID:    "TEST_node",
		Location:  "lab_bench_3",
		Kind:      "Epipremnum aureum",
		ModeCount: datatypes.DefaultModeCount,
	}, core.NewSystemClock(), core.NewSeededRand(1), log)
	metrics := observability.NewTestMetrics()

	router := gin.New()
	router.GET("/v1/status", GetStatus(node))
	router.GET("/v1/anomalies", GetAnomalies(node))
	router.GET("/v1/events", GetEvents(log))
	router.POST("/v1/actuate", HandleActuate(node, metrics))
	router.GET("/", Home(node))
	return router, node, log
}

func actuateBody(t *testing.T, playerID string, intensity float64, note string) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"player_id": playerID,
		"intensity": intensity,
		"note":      note,
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

// =============================================================================
// Status Endpoint Tests
// =============================================================================

func TestGetStatus_FreshNode(t *testing.T) {
	router, _, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var status datatypes.StatusSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "TEST_node", status.NodeID)
	assert.Equal(t, "lab_bench_3", status.Location)
	assert.Equal(t, "Epipremnum aureum", status.Kind)
	assert.Zero(t, status.SqueezedCount)
	assert.True(t, status.BaselineStable)
	assert.Nil(t, status.LastReading)
	assert.Nil(t, status.LastActuation)
	assert.Zero(t, status.TotalAnomalies)
}

func TestGetStatus_ReflectsActuation(t *testing.T) {
	router, node, _ := newTestRouter()

	_, err := node.Actuate("player-1", 1.0, "C#")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var status datatypes.StatusSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, datatypes.MaxActuatedModes, status.SqueezedCount)
	assert.False(t, status.BaselineStable)
	require.NotNil(t, status.LastActuation)
	assert.Equal(t, "player-1", status.LastActuation.PlayerID)
}

// =============================================================================
// Anomalies Endpoint Tests
// =============================================================================

func TestGetAnomalies_EmptyIsJSONArray(t *testing.T) {
	router, _, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/anomalies", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestGetAnomalies_ListsDetections(t *testing.T) {
	router, node, _ := newTestRouter()

	// Drive the node until every mode has latched.
	for i := 0; i < 5000; i++ {
		node.Tick()
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/anomalies", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var anomalies []datatypes.AnomalyEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &anomalies))
	require.Len(t, anomalies, datatypes.DefaultModeCount)
	for _, a := range anomalies {
		assert.Equal(t, "TEST_node", a.NodeID)
		// DeltaX is rounded to three decimals, so it may land exactly on
		// the threshold for a reading just below it.
		assert.LessOrEqual(t, a.DeltaX, datatypes.SqueezingThreshold)
	}
}

// =============================================================================
// Events Endpoint Tests
// =============================================================================

func TestGetEvents_ReturnsTaggedEnvelopesInOrder(t *testing.T) {
	router, node, log := newTestRouter()

	log.Append(datatypes.Message{Text: "node online", NodeID: "TEST_node", Timestamp: time.Now().UTC()})
	_, err := node.Actuate("player-1", 0.5, "C#")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var envelopes []datatypes.EventEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelopes))
	require.Len(t, envelopes, 2)

	assert.Equal(t, uint64(1), envelopes[0].Seq)
	assert.Equal(t, datatypes.KindMessage, envelopes[0].Kind)
	require.NotNil(t, envelopes[0].Message)
	assert.Equal(t, "node online", envelopes[0].Message.Text)
	assert.Nil(t, envelopes[0].Anomaly)

	assert.Equal(t, uint64(2), envelopes[1].Seq)
	assert.Equal(t, datatypes.KindActuation, envelopes[1].Kind)
	require.NotNil(t, envelopes[1].Actuation)
	assert.Equal(t, "player-1", envelopes[1].Actuation.PlayerID)
}

// =============================================================================
// Actuation Endpoint Tests
// =============================================================================

func TestHandleActuate_Success(t *testing.T) {
	router, node, log := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/actuate", actuateBody(t, "player-1", 0.8, "C#"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var rec datatypes.ActuationRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "player-1", rec.PlayerID)
	assert.Equal(t, 0.8, rec.Intensity)
	assert.Equal(t, "C#", rec.Note)
	assert.Equal(t, 4, rec.ModesAffected) // floor(0.8 * 6)
	assert.Equal(t, "TEST_node", rec.NodeID)

	assert.Equal(t, 1, log.Len())
	require.NotNil(t, node.Status().LastActuation)
}

func TestHandleActuate_ZeroIntensityAccepted(t *testing.T) {
	router, _, log := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/actuate", actuateBody(t, "player-1", 0.0, ""))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var rec datatypes.ActuationRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Zero(t, rec.ModesAffected)
	assert.Equal(t, datatypes.DefaultNote, rec.Note)
	assert.Equal(t, 1, log.Len())
}

func TestHandleActuate_OutOfRangeIntensityRejected(t *testing.T) {
	for _, intensity := range []float64{1.5, -0.1} {
		t.Run(fmt.Sprintf("intensity_%v", intensity), func(t *testing.T) {
			router, node, log := newTestRouter()

			req := httptest.NewRequest(http.MethodPost, "/v1/actuate",
				actuateBody(t, "player-1", intensity, "C#"))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Zero(t, log.Len())
			assert.Nil(t, node.Status().LastActuation)
		})
	}
}

func TestHandleActuate_MissingFieldsRejected(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing player_id", `{"intensity": 0.5}`},
		{"missing intensity", `{"player_id": "player-1"}`},
		{"malformed body", `{not json`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, _, log := newTestRouter()

			req := httptest.NewRequest(http.MethodPost, "/v1/actuate",
				bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Zero(t, log.Len())
		})
	}
}

// =============================================================================
// Dashboard Tests
// =============================================================================

func TestHome_RendersDashboard(t *testing.T) {
	router, _, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "TEST_node")
}
