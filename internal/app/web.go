// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/virtual_trackers/internal/driver"
	"github.com/relabs-tech/virtual_trackers/internal/observability"
	"github.com/relabs-tech/virtual_trackers/internal/tracker"
)

// posePushInterval is how often /ws/poses pushes the latest poses.
const posePushInterval = 50 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// NewWebHandler serves device status, a pose stream and metrics.
func NewWebHandler(p *driver.Provider, rt *driver.Runtime) http.Handler {
	observability.RegisterMetrics()

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/trackers", func(w http.ResponseWriter, r *http.Request) {
		devices := p.Devices()
		out := make([]tracker.Status, 0, len(devices))
		for _, d := range devices {
			out = append(out, d.Status())
		}
		writeJSON(w, out)
	})

	mux.HandleFunc("GET /api/trackers/{serial}", func(w http.ResponseWriter, r *http.Request) {
		serial := r.PathValue("serial")
		for _, d := range p.Devices() {
			if d.Serial() == serial {
				writeJSON(w, d.Status())
				return
			}
		}
		http.Error(w, "unknown tracker", http.StatusNotFound)
	})

	mux.HandleFunc("GET /ws/poses", func(w http.ResponseWriter, r *http.Request) {
		handlePoseStream(w, r, rt)
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("web: json encode error")
	}
}

// handlePoseStream pushes the latest published poses until the client
// goes away.
func handlePoseStream(w http.ResponseWriter, r *http.Request, rt *driver.Runtime) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("web: websocket upgrade failed")
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(posePushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := conn.WriteJSON(rt.LastPublished()); err != nil {
				log.Debug().Err(err).Msg("web: pose stream closed")
				return
			}
		}
	}
}
