package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/coreleven/coreleven-server/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Clients only send small subscribe/unsubscribe frames.
	maxControlFrame = 4 << 10

	outboxSize = 64
)

// Message is the JSON frame pushed to subscribed clients.
type Message struct {
	Stream string         `json:"stream"`
	Event  string         `json:"event"`
	Data   any            `json:"data,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

type controlFrame struct {
	Action  string   `json:"action"`
	Streams []string `json:"streams"`
}

// Hub fans grove and room events out to connected members. Sessions are
// keyed by user so membership events can target exactly the users that
// belong to a grove.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*session]struct{}

	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]map[*session]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     sameOriginOrLoopback,
		},
		log: logger.WithModule("realtime"),
	}
}

// Serve upgrades the request and pumps events until the client disconnects.
// Unknown stream names are ignored; a client that names no streams is
// subscribed to every known stream.
func (h *Hub) Serve(userID string, streams []string, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if len(streams) == 0 {
		streams = KnownStreams()
	}

	sess := &session{
		hub:     h,
		conn:    conn,
		userID:  userID,
		streams: make(map[string]struct{}),
		outbox:  make(chan Message, outboxSize),
	}
	sess.setStreams(streams, true)

	h.mu.Lock()
	if h.sessions[userID] == nil {
		h.sessions[userID] = make(map[*session]struct{})
	}
	h.sessions[userID][sess] = struct{}{}
	h.mu.Unlock()

	go sess.writeLoop()
	sess.readLoop()
}

// BroadcastToUser sends a message to every session the user has open on the stream.
func (h *Hub) BroadcastToUser(stream, userID string, message Message) {
	stream = normalizeStream(stream)
	if stream == "" || userID == "" {
		return
	}
	message.Stream = stream

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sess := range h.sessions[userID] {
		sess.deliver(stream, message)
	}
}

// BroadcastToUsers fans a message out to each listed user. Grove events use
// this to reach exactly the grove's member set.
func (h *Hub) BroadcastToUsers(stream string, userIDs []string, message Message) {
	for _, userID := range userIDs {
		h.BroadcastToUser(stream, userID, message)
	}
}

// BroadcastStream sends a message to every session subscribed to the stream.
func (h *Hub) BroadcastStream(stream string, message Message) {
	stream = normalizeStream(stream)
	if stream == "" {
		return
	}
	message.Stream = stream

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sessions := range h.sessions {
		for sess := range sessions {
			sess.deliver(stream, message)
		}
	}
}

func (h *Hub) drop(sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions := h.sessions[sess.userID]
	delete(sessions, sess)
	if len(sessions) == 0 {
		delete(h.sessions, sess.userID)
	}
}

// session is one WebSocket connection with its own stream subscriptions.
type session struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	outbox chan Message
	once   sync.Once

	mu      sync.Mutex
	closed  bool
	streams map[string]struct{}
}

func (s *session) setStreams(streams []string, subscribed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stream := range streams {
		stream = normalizeStream(stream)
		if !IsKnownStream(stream) {
			continue
		}
		if subscribed {
			s.streams[stream] = struct{}{}
		} else {
			delete(s.streams, stream)
		}
	}
}

func (s *session) trySend(message Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.outbox <- message:
	default:
	}
}

func (s *session) deliver(stream string, message Message) {
	s.mu.Lock()
	_, subscribed := s.streams[stream]
	if !subscribed || s.closed {
		s.mu.Unlock()
		return
	}

	select {
	case s.outbox <- message:
		s.mu.Unlock()
		return
	default:
	}
	s.mu.Unlock()

	// Slow consumer: closing beats blocking event emitters. Callers hold the
	// hub's read lock here, and close takes the write lock to deregister, so
	// the drop must happen off this goroutine.
	s.hub.log.Warn("dropping backpressured session", zap.String("user_id", s.userID))
	go s.close()
}

func (s *session) readLoop() {
	defer s.close()

	s.conn.SetReadLimit(maxControlFrame)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.hub.log.Debug("unexpected close", zap.String("user_id", s.userID), zap.Error(err))
			}
			return
		}
		if len(payload) == 0 {
			continue
		}

		var frame controlFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			s.hub.log.Debug("invalid control frame", zap.String("user_id", s.userID), zap.Error(err))
			continue
		}

		switch strings.ToLower(strings.TrimSpace(frame.Action)) {
		case "subscribe":
			s.setStreams(frame.Streams, true)
		case "unsubscribe":
			s.setStreams(frame.Streams, false)
		case "ping":
			s.trySend(Message{Event: "pong"})
		}
	}
}

func (s *session) writeLoop() {
	defer s.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-s.outbox:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.outbox)
		s.mu.Unlock()

		s.hub.drop(s)
		_ = s.conn.Close()
	})
}

func sameOriginOrLoopback(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	originHost := parsed.Hostname()
	requestHost := r.Host
	if h, _, splitErr := net.SplitHostPort(requestHost); splitErr == nil {
		requestHost = h
	}

	if strings.EqualFold(originHost, requestHost) {
		return true
	}
	if ip := net.ParseIP(originHost); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(originHost, "localhost")
}

func normalizeStream(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}
