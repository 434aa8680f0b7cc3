package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"duxwatch/pkg/notify"
	"duxwatch/pkg/store"
	"duxwatch/pkg/watcher"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server exposes the cached node state over HTTP and pushes watcher events
// and notifications to websocket clients.
type Server struct {
	watcher *watcher.Watcher
	queue   *notify.Queue
	logger  *log.Logger
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	router  *mux.Router
}

// NewServer wires the routes. queue may be nil.
func NewServer(w *watcher.Watcher, q *notify.Queue, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{
		watcher: w,
		queue:   q,
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/state", s.handleGETState).Methods("GET")
	s.router.HandleFunc("/api/state/{category}", s.handleGETCategory).Methods("GET")
	s.router.HandleFunc("/api/refresh/{category}", s.handlePOSTRefresh).Methods("POST")
	s.router.HandleFunc("/api/notification", s.handleGETNotification).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWS)
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on port until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	s.Listen(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("state server listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleGETState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.watcher.Store().Snapshot(false))
}

func parseCategory(raw string) (store.Category, bool) {
	for _, c := range store.Categories {
		if string(c) == raw {
			return c, true
		}
	}
	return "", false
}

func (s *Server) categoryValue(c store.Category) (interface{}, bool) {
	st := s.watcher.Store()
	switch c {
	case store.CategoryStatus:
		return st.GetStatus()
	case store.CategoryStats:
		return st.GetStats()
	case store.CategoryBalances:
		return st.GetBalances()
	case store.CategoryAddresses:
		return st.GetAddresses()
	case store.CategoryTransactions:
		return st.GetTransactions()
	case store.CategoryKeys:
		kp, ok := st.GetKeys()
		kp.PrivateKey = ""
		return kp, ok
	case store.CategoryPreferred:
		return st.GetPreferredCurrency()
	}
	return nil, false
}

func (s *Server) handleGETCategory(w http.ResponseWriter, r *http.Request) {
	c, ok := parseCategory(mux.Vars(r)["category"])
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown category")
		return
	}
	v, loaded := s.categoryValue(c)
	if !loaded {
		writeError(w, http.StatusNotFound, "not yet loaded")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePOSTRefresh(w http.ResponseWriter, r *http.Request) {
	c, ok := parseCategory(mux.Vars(r)["category"])
	if !ok || c == store.CategoryPreferred {
		writeError(w, http.StatusBadRequest, "category cannot be refreshed")
		return
	}
	s.watcher.Refresh(c)
	writeJSON(w, http.StatusAccepted, map[string]string{"refreshing": string(c)})
}

func (s *Server) handleGETNotification(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	n, ok := s.queue.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	// Written under the broadcast lock so the initial state always comes first.
	s.mu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteJSON(map[string]interface{}{
		"type": "initial",
		"data": s.watcher.Store().Snapshot(false),
	})
	if err == nil {
		s.clients[conn] = true
	}
	s.mu.Unlock()
	if err != nil {
		return
	}

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Listen subscribes to the watcher (and the notification queue) and relays
// everything to websocket clients until ctx is done.
func (s *Server) Listen(ctx context.Context) {
	events := s.watcher.Subscribe()
	go func() {
		defer s.watcher.Unsubscribe(events)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				s.broadcast(event)
			case <-ctx.Done():
				return
			}
		}
	}()

	if s.queue == nil {
		return
	}
	notes := s.queue.Subscribe()
	go func() {
		defer s.queue.Unsubscribe(notes)
		for {
			select {
			case n, ok := <-notes:
				if !ok {
					return
				}
				s.broadcast(map[string]interface{}{"type": "notification", "data": n})
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Server) broadcast(msg interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		_ = client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteJSON(msg); err != nil {
			s.logger.Debug("dropping websocket client", "err", err)
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}
