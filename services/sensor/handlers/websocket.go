// Copyright (C) 2025 Quantum Bio-Net (ops@qbionet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/qbionet/photosynthos/services/sensor/eventlog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

// streamBufferSize is the per-client event buffer. A client that falls this
// far behind misses events on the live stream; the full history stays
// available via GET /v1/events.
const streamBufferSize = 64

// StreamEvents upgrades the connection and pushes every event appended to
// the log after connect, as tagged envelopes, until the client disconnects.
func StreamEvents(log *eventlog.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		sub := log.Subscribe(streamBufferSize)
		defer sub.Close()
		slog.Info("event stream client connected", "remote", ws.RemoteAddr().String())

		// Drain reads so we notice the client going away.
		clientGone := make(chan struct{})
		go func() {
			defer close(clientGone)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case rec, ok := <-sub.C:
				if !ok {
					return
				}
				env, err := rec.Envelope()
				if err != nil {
					slog.Error("failed to serialize event for stream", "seq", rec.Seq, "error", err)
					continue
				}
				if err := ws.WriteJSON(env); err != nil {
					slog.Warn("failed to write event to stream", "error", err)
					return
				}
			case <-clientGone:
				slog.Info("event stream client disconnected", "remote", ws.RemoteAddr().String())
				return
			case <-c.Request.Context().Done():
				return
			}
		}
	}
}
