package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/vectorwave/traceview/internal/store"
)

// wsControl is the client-sent control message on the WebSocket.
type wsControl struct {
	Paused bool `json:"paused"`
}

// wsUpdate is the server-sent update message.
type wsUpdate struct {
	Generation    uint64               `json:"generation"`
	SpansReceived uint64               `json:"spans_received"`
	RecentTraces  []store.TraceSummary `json:"recent_traces"`
}

// handleWebSocket upgrades to WebSocket and streams live ingest updates:
// the generation counter, span totals, and the recent-trace listing.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow any origin for localhost dev
	})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	notifyCh, unsubscribe := s.store.Activity().Subscribe()
	defer unsubscribe()

	// Read control messages from the client in a goroutine.
	controlCh := make(chan wsControl, 4)
	go func() {
		defer close(controlCh)
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var c wsControl
			if json.Unmarshal(data, &c) == nil {
				select {
				case controlCh <- c:
				default:
				}
			}
		}
	}()

	var paused bool

	// Send initial state immediately.
	s.sendWSUpdate(ctx, conn)

	// Keepalive so the client knows we're alive with no data changes.
	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return

		case c, ok := <-controlCh:
			if !ok {
				return
			}
			paused = c.Paused

		case <-notifyCh:
			if paused {
				continue
			}
			s.sendWSUpdate(ctx, conn)

		case <-keepalive.C:
			if paused {
				continue
			}
			s.sendWSUpdate(ctx, conn)
		}
	}
}

// sendWSUpdate sends one update message over the connection.
func (s *Server) sendWSUpdate(ctx context.Context, conn *websocket.Conn) {
	ac := s.store.Activity()
	update := wsUpdate{
		Generation:    ac.Generation(),
		SpansReceived: ac.SpansReceived(),
		RecentTraces:  ac.RecentTraces(store.DefaultRecentTracesCapacity),
	}

	data, err := json.Marshal(update)
	if err != nil {
		s.logger.Error("failed to marshal ws update", "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		// Connection closed; the main loop handles cleanup.
		return
	}
}
