// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/frame_recorder/internal/frame"
	"github.com/relabs-tech/frame_recorder/internal/session"
	"github.com/relabs-tech/frame_recorder/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebServer exposes the recorder controls over HTTP and streams controller
// events to websocket clients.
type WebServer struct {
	ctrl    *session.Controller
	depth   *session.Depth
	catalog *store.Catalog // nil when no catalog is configured
	logger  *slog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	stop    func()
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewWebServer wires the handlers and subscribes to controller events.
// Close releases the subscription and disconnects websocket clients.
func NewWebServer(ctrl *session.Controller, depth *session.Depth, catalog *store.Catalog, logger *slog.Logger) *WebServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &WebServer{
		ctrl:    ctrl,
		depth:   depth,
		catalog: catalog,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
	s.stop = ctrl.Subscribe(s.broadcast)
	return s
}

// Handler returns the HTTP routes.
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/stop", s.handleStop)
	mux.HandleFunc("POST /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("POST /api/depth", s.handleDepth)
	mux.HandleFunc("GET /api/recordings", s.handleRecordings)
	mux.HandleFunc("POST /api/recordings/{id}/retry", s.handleRetry)
	mux.HandleFunc("GET /ws/events", s.handleEvents)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *WebServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("web server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Close()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close unsubscribes from the controller and drops all websocket clients.
func (s *WebServer) Close() {
	s.stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
}

func (s *WebServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("json encode error", "err", err)
	}
}

func (s *WebServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrAlreadyRecording), errors.Is(err, session.ErrNotRecording):
		status = http.StatusConflict
	case errors.Is(err, session.ErrUnknownSession):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrClosed), errors.Is(err, frame.ErrFrameUnavailable), errors.Is(err, frame.ErrDisconnected):
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *WebServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *WebServer) handleStart(w http.ResponseWriter, _ *http.Request) {
	id, err := s.ctrl.Start()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

func (s *WebServer) handleStop(w http.ResponseWriter, _ *http.Request) {
	f, err := s.ctrl.Stop()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"session_id": f.SessionID, "records": f.Len()})
}

func (s *WebServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := s.ctrl.SaveFrame(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"session_id": id})
}

func (s *WebServer) handleDepth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Depth float64 `json:"depth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if err := s.depth.Set(req.Depth); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.logger.Info("scan depth changed", "depth", req.Depth)
	s.writeJSON(w, http.StatusOK, map[string]float64{"depth": s.depth.Get()})
}

func (s *WebServer) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no catalog configured"})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	entries, err := s.catalog.List(limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *WebServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.ctrl.Retry(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"session_id": id})
}

// handleEvents upgrades to a websocket and streams controller events until
// the client goes away.
func (s *WebServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade error", "err", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, eventQueueSize)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.writeLoop(c)

	// Inbound messages are ignored; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(c)
}

func (s *WebServer) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.logger.Debug("websocket write error", "err", err)
			s.drop(c)
			return
		}
	}
}

func (s *WebServer) drop(c *wsClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *WebServer) broadcast(e session.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("event marshal error", "err", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			s.logger.Warn("websocket client too slow, dropping event", "kind", e.Kind)
		}
	}
}
