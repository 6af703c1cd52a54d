package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

// message is sent to websocket clients.
type message struct {
	Type   string         `json:"type"`
	Hub    string         `json:"hub,omitempty"`
	State  map[string]any `json:"state,omitempty"`
	Action *Action        `json:"action,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// command is received from websocket clients.
type command struct {
	Type  string         `json:"type"`
	ID    string         `json:"id,omitempty"`
	State map[string]any `json:"state,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Handler returns the devtools HTTP API.
//
//	GET  /state         current state of every registered model
//	POST /state         jump to the posted state
//	GET  /actions       recorded actions
//	GET  /actions/{id}  one recorded action
//	POST /jump/{id}     jump to the state recorded with an action
//	GET  /ws            live action stream; accepts jump commands
//	GET  /metrics       Prometheus metrics from gatherer
//
// A nil gatherer serves prometheus.DefaultGatherer.
func (h *Hub) Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/state", h.handleState)
	r.Post("/state", h.handleSetState)
	r.Get("/actions", h.handleActions)
	r.Get("/actions/{id}", h.handleAction)
	r.Post("/jump/{id}", h.handleJump)
	r.Get("/ws", h.handleWebSocket)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

// ListenAndServe serves the devtools API on addr and records activity
// until ctx is done.
func (h *Hub) ListenAndServe(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Handler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go h.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	h.log.Info("devtools listening", "addr", addr, "hub", h.id)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Hub) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.State())
}

func (h *Hub) handleSetState(w http.ResponseWriter, r *http.Request) {
	var state map[string]any
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.Jump(state)
	writeJSON(w, http.StatusOK, h.State())
}

func (h *Hub) handleActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.History())
}

func (h *Hub) handleAction(w http.ResponseWriter, r *http.Request) {
	a, ok := h.Action(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("action not found"))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Hub) handleJump(w http.ResponseWriter, r *http.Request) {
	if err := h.JumpTo(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, h.State())
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if data, err := json.Marshal(message{Type: "init", Hub: h.id, State: h.State()}); err == nil {
		c.send <- data
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()

	// Read commands until the client disconnects
	for {
		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			break
		}
		h.handleCommand(c, cmd)
	}

	h.removeClient(c)
}

func (h *Hub) handleCommand(c *client, cmd command) {
	var err error
	switch cmd.Type {
	case "jump":
		err = h.JumpTo(cmd.ID)
	case "state":
		h.Jump(cmd.State)
	default:
		err = errors.New("unknown command " + cmd.Type)
	}

	reply := message{Type: "state", State: h.State()}
	if err != nil {
		reply = message{Type: "error", Error: err.Error()}
	}
	if data, mErr := json.Marshal(reply); mErr == nil {
		h.sendTo(c, data)
	}
}

// sendTo queues data for c unless c was already dropped.
func (h *Hub) sendTo(c *client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// broadcast sends a message to all clients. Clients that cannot keep up
// are dropped.
func (h *Hub) broadcast(msg message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Warn("devtools: cannot encode message", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// ClientCount returns the number of connected websocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
