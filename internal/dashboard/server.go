// Package dashboard streams sync activity to WebSocket clients.
//
// While a migration runs, the engine's progress callbacks are fanned out
// here so a browser (or the web app's dev tools) can watch the family move
// online: stage-by-stage progress, queue depth changes, and the final
// identifier handoff.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/syncer"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeSyncProgress reports one migration stage advancing
	MessageTypeSyncProgress MessageType = "sync_progress"

	// MessageTypeSyncComplete reports a finished migration
	MessageTypeSyncComplete MessageType = "sync_complete"

	// MessageTypeQueueDepth reports pending/dead queue counts
	MessageTypeQueueDepth MessageType = "queue_depth"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SyncProgressData mirrors one engine progress callback.
type SyncProgressData struct {
	FamilyID string `json:"family_id"`
	Stage    string `json:"stage"`
	Done     int    `json:"done"`
	Total    int    `json:"total"`
	Details  string `json:"details,omitempty"`
}

// SyncCompleteData reports the identifier handoff of a finished migration.
type SyncCompleteData struct {
	OldFamilyID string        `json:"old_family_id"`
	NewFamilyID string        `json:"new_family_id"`
	Migrated    int           `json:"migrated"`
	Drained     int           `json:"drained"`
	Duration    time.Duration `json:"duration"`
}

// QueueDepthData reports the queue state for one family.
type QueueDepthData struct {
	FamilyID string `json:"family_id"`
	Pending  int    `json:"pending"`
	Dead     int    `json:"dead"`
}

// Server manages WebSocket connections and broadcasts sync messages
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Port to listen on (default: 8080)
	Port int

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:   8080,
		Logger: log.Default(),
	}
}

// NewServer creates a new dashboard WebSocket server
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("[dashboard] listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("[dashboard] server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.wg.Wait()
	return nil
}

// ProgressFunc returns an engine callback that mirrors migration progress
// to every connected client.
func (s *Server) ProgressFunc(familyID string) syncer.ProgressFunc {
	return func(p syncer.Progress) {
		s.publish(MessageTypeSyncProgress, SyncProgressData{
			FamilyID: familyID,
			Stage:    p.Stage,
			Done:     p.Done,
			Total:    p.Total,
			Details:  p.Details,
		})
	}
}

// PublishComplete broadcasts a finished migration.
func (s *Server) PublishComplete(res *syncer.Result, duration time.Duration) {
	s.publish(MessageTypeSyncComplete, SyncCompleteData{
		OldFamilyID: res.OldFamilyID,
		NewFamilyID: res.NewFamilyID,
		Migrated:    res.Migrated,
		Drained:     res.Drained,
		Duration:    duration,
	})
}

// PublishQueueDepth broadcasts the family's queue counts.
func (s *Server) PublishQueueDepth(familyID string, pending, dead int) {
	s.publish(MessageTypeQueueDepth, QueueDepthData{
		FamilyID: familyID,
		Pending:  pending,
		Dead:     dead,
	})
}

func (s *Server) publish(t MessageType, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("[dashboard] failed to marshal %s: %v", t, err)
		return
	}
	s.Broadcast(Message{Type: t, Data: payload})
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("[dashboard] broadcast channel full, dropping message")
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("[dashboard] failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Send outside the read lock to avoid blocking broadcasts.
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("[dashboard] upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("[dashboard] client connected (total: %d)", clientCount)
	go s.readLoop(conn)
}

// readLoop keeps the connection alive and notices disconnects. Client
// messages are not processed.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("[dashboard] client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": clientCount,
	})
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
