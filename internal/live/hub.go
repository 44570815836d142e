package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"portal/internal/account"
	"portal/internal/auth"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Message is what the hub writes to a dashboard socket.
type Message struct {
	Type  string `json:"type"`
	Query string `json:"query,omitempty"`
	Data  any    `json:"data,omitempty"`
	To    string `json:"to,omitempty"`
	Error string `json:"error,omitempty"`
}

const (
	TypeSnapshot = "snapshot"
	TypeRedirect = "redirect"
	TypeError    = "error"
)

// Authorizer runs the session guard for a token and page.
type Authorizer interface {
	Evaluate(ctx context.Context, token, page string) (account.Verdict, error)
}

// ConnectionRecorder tracks open sockets.
type ConnectionRecorder interface {
	LiveConnections(delta int)
}

// Hub fans Redis notifications out to connected dashboards.
type Hub struct {
	client   *redis.Client
	registry *Registry
	auth     Authorizer
	recorder ConnectionRecorder
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*conn]struct{}
	ready chan struct{}
}

// NewHub wires a hub. checkOrigin may be nil to accept same-origin requests only.
func NewHub(client *redis.Client, registry *Registry, authz Authorizer, recorder ConnectionRecorder, log *zap.Logger, checkOrigin func(*http.Request) bool) *Hub {
	return &Hub{
		client:   client,
		registry: registry,
		auth:     authz,
		recorder: recorder,
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		conns:    map[*conn]struct{}{},
		ready:    make(chan struct{}),
	}
}

// Ready is closed once Run has subscribed to the notification channels.
func (h *Hub) Ready() <-chan struct{} { return h.ready }

// Run listens for notifications until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	sub := h.client.Subscribe(ctx, ChannelChanges, ChannelAuth)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	close(h.ready)
	h.log.Info("live hub subscribed", zap.Strings("channels", []string{ChannelChanges, ChannelAuth}))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("live: subscription closed")
			}
			switch msg.Channel {
			case ChannelChanges:
				h.each(func(c *conn) { c.markChanged(msg.Payload) })
			case ChannelAuth:
				h.each(func(c *conn) {
					if c.uid == msg.Payload {
						c.markAuth()
					}
				})
			}
		}
	}
}

// Connections reports how many sockets are open.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// ServeHTTP authorizes the request, upgrades it and streams snapshots of the
// queries named by the repeated q parameter. page is the dashboard the socket
// belongs to and is re-checked on every auth-state change.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	page := r.URL.Query().Get("page")

	verdict, err := h.auth.Evaluate(r.Context(), token, page)
	if err != nil {
		h.log.Error("live authorize", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if verdict.Profile == nil {
		writeError(w, http.StatusUnauthorized, "missing session")
		return
	}
	if verdict.Redirect != "" {
		writeError(w, http.StatusForbidden, "page belongs to another role")
		return
	}
	queries, err := h.registry.Resolve(r.URL.Query()["q"], verdict.Profile.Role)
	switch {
	case errors.Is(err, ErrUnknownQuery):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrQueryForbidden):
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	if len(queries) == 0 {
		writeError(w, http.StatusBadRequest, "at least one query is required")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("live upgrade", zap.Error(err))
		return
	}

	c := &conn{
		hub:     h,
		ws:      ws,
		uid:     verdict.Profile.UID,
		token:   token,
		page:    page,
		viewer:  *verdict.Profile,
		queries: queries,
		dirty:   map[string]bool{},
		wake:    make(chan struct{}, 1),
	}
	h.add(c)
	defer h.remove(c)

	h.log.Info("live connected", zap.String("uid", c.uid), zap.String("role", string(c.viewer.Role)), zap.Int("queries", len(queries)))
	c.serve(r.Context())
	h.log.Info("live disconnected", zap.String("uid", c.uid))
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	if h.recorder != nil {
		h.recorder.LiveConnections(1)
	}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	_, ok := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()
	if ok && h.recorder != nil {
		h.recorder.LiveConnections(-1)
	}
}

func (h *Hub) each(fn func(*conn)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		fn(c)
	}
}

func (h *Hub) closeAll() {
	h.each(func(c *conn) { _ = c.ws.Close() })
}

// conn is one dashboard socket. Only serve writes to ws.
type conn struct {
	hub     *Hub
	ws      *websocket.Conn
	uid     string
	token   string
	page    string
	viewer  account.Profile
	queries []Query

	mu     sync.Mutex
	dirty  map[string]bool
	reauth bool
	wake   chan struct{}
}

func (c *conn) markChanged(collection string) {
	c.mu.Lock()
	c.dirty[collection] = true
	c.mu.Unlock()
	c.poke()
}

func (c *conn) markAuth() {
	c.mu.Lock()
	c.reauth = true
	c.mu.Unlock()
	c.poke()
}

func (c *conn) poke() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *conn) take() (map[string]bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dirty, reauth := c.dirty, c.reauth
	c.dirty, c.reauth = map[string]bool{}, false
	return dirty, reauth
}

func (c *conn) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer c.ws.Close()

	go c.readLoop(cancel)

	for _, q := range c.queries {
		if !c.snapshot(ctx, q) {
			return
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.wake:
			dirty, reauth := c.take()
			if reauth && !c.authorize(ctx) {
				return
			}
			for _, q := range c.queries {
				if !reauth && !readsAny(q, dirty) {
					continue
				}
				if !c.snapshot(ctx, q) {
					return
				}
			}
		}
	}
}

// readLoop drains client frames so pongs and close frames are processed.
func (c *conn) readLoop(cancel context.CancelFunc) {
	defer cancel()
	c.ws.SetReadLimit(4096)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// authorize re-runs the guard and reports whether the socket may stay open.
func (c *conn) authorize(ctx context.Context) bool {
	verdict, err := c.hub.auth.Evaluate(ctx, c.token, c.page)
	if err != nil {
		c.hub.log.Error("live reauthorize", zap.String("uid", c.uid), zap.Error(err))
		c.write(Message{Type: TypeError, Error: "internal error"})
		return false
	}
	if verdict.Profile == nil || verdict.Redirect != "" {
		to := verdict.Redirect
		if to == "" {
			to = account.PageLanding
		}
		c.write(Message{Type: TypeRedirect, To: to})
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "redirect"),
			time.Now().Add(writeWait))
		return false
	}
	c.viewer = *verdict.Profile
	return true
}

func (c *conn) snapshot(ctx context.Context, q Query) bool {
	data, err := q.Run(ctx, c.viewer)
	if err != nil {
		c.hub.log.Error("live query", zap.String("query", q.Name), zap.String("uid", c.uid), zap.Error(err))
		return c.write(Message{Type: TypeError, Query: q.Name, Error: "query failed"})
	}
	return c.write(Message{Type: TypeSnapshot, Query: q.Name, Data: data})
}

func (c *conn) write(m Message) bool {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(m) == nil
}

func readsAny(q Query, collections map[string]bool) bool {
	for c := range collections {
		if q.Reads(c) {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
