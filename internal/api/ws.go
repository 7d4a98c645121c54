package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/rflorenc/iot-device-migrator/internal/logger"
	"github.com/rflorenc/iot-device-migrator/internal/migration"
	"github.com/rflorenc/iot-device-migrator/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamOperationLogs streams operation log lines over WebSocket and closes
// once the operation finished and every line was sent.
func (s *Server) StreamOperationLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	op := s.Operations.Get(id)
	if op == nil {
		http.Error(w, "operation not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	offset := 0
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		// Read the state before the lines so nothing logged in between is lost.
		status := op.State()
		lines := op.LogsSince(offset)
		for _, line := range lines {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
			offset++
		}
		if status != models.OperationRunning && len(lines) == 0 {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, status))
			return
		}
	}
}

// StreamJobs sends a status snapshot every poll interval until the client
// goes away.
func (s *Server) StreamJobs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The client never sends anything; a read error means it closed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := s.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	poller := migration.NewPoller(interval, s.Migrations.Snapshot)
	defer poller.Stop()

	for snap := range poller.Start(ctx) {
		if err := conn.WriteJSON(snap); err != nil {
			slog.Debug("Job stream closed", logger.Err(err))
			return
		}
	}
}
