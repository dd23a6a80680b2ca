// Package livefeed serves live task lists over WebSocket.
//
// Each client subscribes to one board (or all tasks) with /ws?board=<id>
// and receives a snapshot message whenever the board's tasks or the
// offline queue change, starting with the current state on connect.
package livefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DaveSongnata/BitTask/internal/live"
	"github.com/DaveSongnata/BitTask/internal/queue"
	"github.com/DaveSongnata/BitTask/internal/service"
	"github.com/DaveSongnata/BitTask/internal/store"
	"github.com/DaveSongnata/BitTask/internal/types"
)

// MessageType names the kind of feed message.
type MessageType string

const (
	MessageTypeSnapshot MessageType = "snapshot"
	MessageTypeError    MessageType = "error"
)

// Message is what clients receive.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Snapshot is the state of one subscription.
type Snapshot struct {
	BoardID int64         `json:"boardId,omitempty"`
	Tasks   []*types.Task `json:"tasks"`
	Pending int           `json:"pending"`
}

// Config holds server configuration.
type Config struct {
	// Port to listen on; 0 picks a free port.
	Port int

	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Port: 8080, Logger: zap.NewNop()}
}

// Server streams snapshots to WebSocket clients.
type Server struct {
	db     *store.DB
	svc    *service.Services
	queue  *queue.Queue
	addr   string
	logger *zap.Logger

	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]context.CancelFunc
	clientsMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a feed server over db.
func NewServer(db *store.DB, svc *service.Services, q *queue.Queue, config Config) *Server {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		db:      db,
		svc:     svc,
		queue:   q,
		addr:    fmt.Sprintf(":%d", config.Port),
		logger:  config.Logger.With(zap.String("component", "livefeed")),
		clients: make(map[*websocket.Conn]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)
	r.Route("/api", func(r chi.Router) {
		r.Get("/boards", s.handleBoards)
		r.Get("/boards/{id}/tasks", s.handleBoardTasks)
	})
	return r
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("live feed listening", zap.String("addr", ln.Addr().String()))
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop closes every client and shuts the server down.
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn, stop := range s.clients {
		stop()
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.wg.Wait()
	s.logger.Info("live feed stopped")
	return nil
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// snapshotQuery builds the live query behind one subscription.
func (s *Server) snapshotQuery(boardID int64) live.QueryFunc[*Snapshot] {
	return func(ctx context.Context) (*Snapshot, error) {
		filter := types.TaskFilter{}
		if boardID != 0 {
			filter.BoardID = &boardID
		}
		tasks, err := s.svc.Tasks.ListTasks(ctx, filter)
		if err != nil {
			return nil, err
		}
		pending, err := s.queue.CountPending(ctx)
		if err != nil {
			return nil, err
		}
		return &Snapshot{BoardID: boardID, Tasks: tasks, Pending: pending}, nil
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var boardID int64
	if raw := r.URL.Query().Get("board"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "board must be a positive integer", http.StatusBadRequest)
			return
		}
		boardID = id
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	// CloseRead discards client frames and cancels ctx when the peer goes.
	ctx, stop := context.WithCancel(conn.CloseRead(s.ctx))
	s.clientsMu.Lock()
	s.clients[conn] = stop
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Debug("client connected", zap.Int64("board", boardID), zap.Int("clients", count))

	defer s.removeClient(conn)

	q := live.Watch(ctx, s.db, []store.Table{store.TableTasks, store.TableOfflineOps}, s.snapshotQuery(boardID))
	defer q.Close()

	for res := range q.Updates() {
		msg := Message{Type: MessageTypeSnapshot, Timestamp: time.Now()}
		if res.Err != nil {
			msg.Type = MessageTypeError
			msg.Data, _ = json.Marshal(map[string]string{"error": res.Err.Error()})
		} else if msg.Data, err = json.Marshal(res.Value); err != nil {
			s.logger.Error("failed to marshal snapshot", zap.Error(err))
			continue
		}

		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = conn.Write(writeCtx, websocket.MessageText, data)
		cancel()
		if err != nil {
			s.logger.Debug("client write failed", zap.Error(err))
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	stop, ok := s.clients[conn]
	delete(s.clients, conn)
	count := len(s.clients)
	s.clientsMu.Unlock()

	if ok {
		stop()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Debug("client disconnected", zap.Int("clients", count))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	pending, err := s.queue.CountPending(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
		"pending": pending,
	})
}

func (s *Server) handleBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := s.svc.Boards.ListBoards(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, boards)
}

func (s *Server) handleBoardTasks(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid board id"})
		return
	}
	board, err := s.svc.Boards.GetBoard(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if board == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "board not found"})
		return
	}

	tasks, err := s.svc.Tasks.ListTasks(r.Context(), types.TaskFilter{
		BoardID: &id,
		Search:  r.URL.Query().Get("q"),
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
