// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qbionet/photosynthos/services/sensor/core"
)

const dashboardTemplate = `<html>
<head>
    <title>Quantum Biosensor Dashboard</title>
    <meta http-equiv="refresh" content="5">
    <style>
        body { font-family: 'Courier New', monospace; background: #f0fff0; color: #0b3d0b; padding: 20px; margin: 0; }
        h1 { color: #2e7d32; border-bottom: 2px solid #8bc34a; padding-bottom: 10px; }
        .link { color: #1b5e20; text-decoration: none; font-weight: bold; font-size: 1.1em; }
        .link:hover { text-decoration: underline; }
        .card { background: #ffffff; border: 1px solid #c8e6c9; border-radius: 8px; padding: 15px; margin: 10px 0; }
        .footer { margin-top: 40px; font-size: 0.8em; color: #666; }
    </style>
</head>
<body>
    <h1>Quantum Biosensor &mdash; Live Node</h1>

    <div class="card">
        <h2>Sensor Status</h2>
        <p><a href="/v1/status" class="link">View Full Status</a></p>
    </div>

    <div class="card">
        <h2>Quantum Events</h2>
        <p><a href="/v1/anomalies" class="link">View Squeezing Anomalies</a></p>
    </div>

    <div class="card">
        <h2>Event Log</h2>
        <p><a href="/v1/events" class="link">View Full Event Log</a></p>
    </div>

    <div class="footer">
        <p><strong>Node ID:</strong> %s | <strong>Location:</strong> %s | <strong>Kind:</strong> %s</p>
        <p>Squeezed modes: %d | Total anomalies: %d | Auto-refresh every 5 seconds</p>
    </div>
</body>
</html>
`

// Home serves the auto-refreshing dashboard page with links to the JSON
// views, carried over from the node's original web dashboard.
func Home(node *core.SensorNode) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := node.Status()
		page := fmt.Sprintf(dashboardTemplate,
			status.NodeID, status.Location, status.Kind,
			status.SqueezedCount, status.TotalAnomalies,
		)
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
	}
}
