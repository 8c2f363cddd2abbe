// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qbionet/photosynthos/services/sensor/core"
	"github.com/qbionet/photosynthos/services/sensor/eventlog"
	"github.com/qbionet/photosynthos/services/sensor/handlers"
	"github.com/qbionet/photosynthos/services/sensor/observability"
)

// SetupRoutes wires the biosensor node's HTTP surface onto the router.
func SetupRoutes(router *gin.Engine, node *core.SensorNode, log *eventlog.Log,
	metrics *observability.Metrics) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/", handlers.Home(node))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.GET("/status", handlers.GetStatus(node))
		v1.GET("/anomalies", handlers.GetAnomalies(node))
		v1.GET("/events", handlers.GetEvents(log))
		v1.GET("/events/ws", handlers.StreamEvents(log))
		v1.POST("/actuate", handlers.HandleActuate(node, metrics))
	}
}
