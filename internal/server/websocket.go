package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/franckalain/grocerylens/internal/database"
	"github.com/franckalain/grocerylens/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, this should be more restrictive
	},
}

// Message is the envelope for every WebSocket frame in both directions.
type Message struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

type scanPayload struct {
	Barcode string `json:"barcode"`
	ListID  string `json:"list_id"`
}

type startSessionPayload struct {
	ListID string `json:"list_id"`
}

type historyPayload struct {
	Limit int `json:"limit"`
}

// client is one WebSocket connection. Scans run in their own goroutine so
// the read loop keeps accepting frames; writes are serialised by mu.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
	wg   sync.WaitGroup

	state     sync.Mutex
	sessionID string
	listID    string
}

func (c *client) send(messageType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(Message{Type: messageType, Data: raw})
}

func (c *client) sendError(message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(Message{Type: "error", Message: message})
}

func (c *client) session() (string, string) {
	c.state.Lock()
	defer c.state.Unlock()
	return c.sessionID, c.listID
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn, sessionID: s.pipeline.StartSession()}
	c.send("session_started", map[string]string{"session_id": c.sessionID})
	defer func() {
		c.wg.Wait()
		if id, _ := c.session(); id != "" {
			s.pipeline.EndSession(id)
		}
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debugw("Error reading message", "error", err)
			}
			break
		}
		s.handleWebSocketMessage(r.Context(), c, msg)
	}
}

func (s *Server) handleWebSocketMessage(ctx context.Context, c *client, msg Message) {
	switch msg.Type {
	case "start_session":
		s.handleStartSession(ctx, c, msg.Data)
	case "end_session":
		s.handleEndSession(c)
	case "scan":
		var p scanPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			c.sendError("Invalid scan payload")
			return
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			s.handleScan(ctx, c, p)
		}()
	case "cache_stats":
		st, err := s.pipeline.CacheStats(ctx)
		if err != nil {
			s.logger.Errorw("Cache stats failed", "error", err)
			c.sendError("Failed to read cache stats")
			return
		}
		c.send("cache_stats", newCacheStatsResponse(st))
	case "clear_cache":
		if err := s.pipeline.ClearCache(ctx); err != nil {
			s.logger.Errorw("Cache clear failed", "error", err)
			c.sendError("Failed to clear cache")
			return
		}
		c.send("cache_cleared", nil)
	case "get_history":
		var p historyPayload
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &p); err != nil {
				c.sendError("Invalid history payload")
				return
			}
		}
		limit := defaultHistoryLimit
		if p.Limit > 0 {
			limit = min(p.Limit, maxHistoryLimit)
		}
		events, err := s.db.GetRecentScanEvents(ctx, limit)
		if err != nil {
			s.logger.Errorw("Error retrieving history", "error", err)
			c.sendError("Failed to retrieve history")
			return
		}
		c.send("history", events)
	default:
		c.sendError("Unknown message type")
	}
}

func (s *Server) handleStartSession(ctx context.Context, c *client, data json.RawMessage) {
	var p startSessionPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			c.sendError("Invalid session payload")
			return
		}
	}
	if p.ListID != "" {
		if _, err := s.db.GetShoppingList(ctx, p.ListID); err != nil {
			if errors.Is(err, database.ErrListNotFound) {
				c.sendError("Shopping list not found")
			} else {
				s.logger.Errorw("Error loading shopping list", "list_id", p.ListID, "error", err)
				c.sendError("Failed to load shopping list")
			}
			return
		}
	}

	id := s.pipeline.StartSession()
	c.state.Lock()
	previous := c.sessionID
	c.sessionID, c.listID = id, p.ListID
	c.state.Unlock()
	if previous != "" {
		s.pipeline.EndSession(previous)
	}

	c.send("session_started", map[string]string{"session_id": id, "list_id": p.ListID})
}

func (s *Server) handleEndSession(c *client) {
	c.state.Lock()
	id := c.sessionID
	c.sessionID, c.listID = "", ""
	c.state.Unlock()
	if id != "" {
		s.pipeline.EndSession(id)
	}
	c.send("session_ended", map[string]string{"session_id": id})
}

func (s *Server) handleScan(ctx context.Context, c *client, p scanPayload) {
	sessionID, listID := c.session()
	if sessionID == "" {
		c.sendError("No active scanning session")
		return
	}
	if p.ListID != "" {
		listID = p.ListID
	}

	event, err := s.pipeline.Scan(ctx, pipeline.ScanRequest{
		SessionID: sessionID,
		Barcode:   p.Barcode,
		ListID:    listID,
	})
	switch {
	case errors.Is(err, pipeline.ErrInvalidBarcode):
		c.sendError("Invalid barcode")
		return
	case errors.Is(err, pipeline.ErrScanInProgress):
		c.sendError("Scan already in progress")
		return
	case errors.Is(err, pipeline.ErrSessionClosed):
		// Stale result for a session the client has left; nothing to show.
		s.logger.Debugw("Dropping scan for inactive session", "session_id", sessionID, "barcode", p.Barcode)
		return
	case errors.Is(err, pipeline.ErrNotFound):
		c.send("not_found", map[string]string{"barcode": p.Barcode})
		return
	case err != nil:
		s.logger.Errorw("Scan failed", "barcode", p.Barcode, "error", err)
		c.sendError("Failed to process scan")
		return
	}

	if err := c.send("scan_result", event); err != nil {
		s.logger.Debugw("Error sending scan result", "error", err)
		return
	}
	if event.ListComplete {
		c.send("list_complete", map[string]string{"list_id": event.ListID})
	}
}
