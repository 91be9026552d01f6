package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/websocket"
	"golang.org/x/text/language"

	"github.com/parlorchat/parlor/internal/chat"
	"github.com/parlorchat/parlor/internal/platform/id"
)

// peerSendBuffer bounds the per-connection outbound queue. A peer that falls
// this far behind starts losing frames rather than stalling the room.
const peerSendBuffer = 64

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type joinPayload struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

type sendPayload struct {
	Text string `json:"text"`
}

type typingPayload struct {
	IsTyping bool `json:"is_typing"`
}

// ackPayload reports a join or send outcome. Error carries the human-readable
// message the client shows; Code is the machine-readable counterpart.
type ackPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// wsPeer owns the outbound side of one WebSocket connection. Frames are
// enqueued without blocking and drained by a single write loop so callers
// holding room locks never wait on a slow socket.
type wsPeer struct {
	out  chan wsFrame
	done chan struct{}
}

func newWSPeer() *wsPeer {
	return &wsPeer{
		out:  make(chan wsFrame, peerSendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue queues a frame for delivery. It reports false when the frame was
// dropped because the peer's buffer is full or the peer is closed.
func (p *wsPeer) enqueue(frame wsFrame) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.out <- frame:
		return true
	default:
		return false
	}
}

// writeLoop drains the outbound queue onto the socket until close is called
// or a write fails.
func (p *wsPeer) writeLoop(encoder *json.Encoder) {
	for {
		select {
		case <-p.done:
			return
		case frame := <-p.out:
			if err := encoder.Encode(frame); err != nil {
				return
			}
		}
	}
}

func (p *wsPeer) close() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

// wsGateway fans coordinator output out to live peers. Room recipients are
// resolved through the session table so gateway state never duplicates room
// membership.
type wsGateway struct {
	peers    *peerTable
	sessions *chat.SessionTable
}

func newWSGateway(sessions *chat.SessionTable) *wsGateway {
	return &wsGateway{
		peers:    newPeerTable(),
		sessions: sessions,
	}
}

func (g *wsGateway) SendToConnection(connID string, event string, payload any) {
	peer, ok := g.peers.get(connID)
	if !ok {
		return
	}
	if !peer.enqueue(wsFrame{Type: event, Payload: mustJSON(payload)}) {
		log.Printf("relay: dropped %s frame for slow connection %s", event, connID)
	}
}

func (g *wsGateway) SendToRoom(room string, event string, payload any, excludeConnID string) {
	frame := wsFrame{Type: event, Payload: mustJSON(payload)}
	for _, connID := range g.sessions.ConnectionsInRoom(room) {
		if connID == excludeConnID {
			continue
		}
		peer, ok := g.peers.get(connID)
		if !ok {
			continue
		}
		if !peer.enqueue(frame) {
			log.Printf("relay: dropped %s frame for slow connection %s in room %q", event, connID, room)
		}
	}
}

// relayHandler wires the HTTP surface over the chat coordinator.
type relayHandler struct {
	registry    *chat.Registry
	sessions    *chat.SessionTable
	gateway     *wsGateway
	coordinator *chat.Coordinator
	metrics     *relayMetrics
	origins     []string
	startedAt   time.Time
}

func newRelayHandler(historyLimit int, allowedOrigins []string) *relayHandler {
	registry := chat.NewRegistry(historyLimitOrDefault(historyLimit))
	sessions := chat.NewSessionTable()
	gateway := newWSGateway(sessions)
	return &relayHandler{
		registry:    registry,
		sessions:    sessions,
		gateway:     gateway,
		coordinator: chat.NewCoordinator(registry, sessions, gateway),
		metrics:     newRelayMetrics(registry, sessions),
		origins:     allowedOrigins,
		startedAt:   time.Now().UTC(),
	}
}

// NewHandler creates relay routes for tests and offline paths.
func NewHandler() http.Handler {
	return newRelayHandler(0, nil).routes()
}

func (h *relayHandler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.Handle("/metrics", promhttp.HandlerFor(h.metrics.registry, promhttp.HandlerOpts{}))

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		h.handleWSConn(conn)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})

	if len(h.origins) == 0 {
		return mux
	}
	return cors.New(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowCredentials: true,
	}).Handler(mux)
}

func (h *relayHandler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"rooms":          h.registry.Count(),
		"sessions":       h.sessions.Count(),
	})
}

func (h *relayHandler) handleWSConn(conn *websocket.Conn) {
	connID := newConnID()
	peer := newWSPeer()
	h.gateway.peers.put(connID, peer)

	locale := language.AmericanEnglish
	if request := conn.Request(); request != nil {
		locale = resolveLocale(request.Header.Get("Accept-Language"))
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		peer.writeLoop(json.NewEncoder(conn))
	}()

	defer func() {
		h.coordinator.Handle(chat.DisconnectEvent(connID))
		h.metrics.disconnects.Inc()
		h.gateway.peers.remove(connID)
		peer.close()
		_ = conn.Close()
		<-writerDone
	}()

	decoder := json.NewDecoder(conn)
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			writeWSError(peer, "", "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			writeWSError(peer, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		h.dispatchFrame(connID, peer, locale, frame)
	}
}

var frameTracer = otel.Tracer("parlorchat/parlor/relay")

// dispatchFrame applies one inbound frame. A panic in the coordinator is
// contained to the frame: the connection gets an internal-error ack and stays
// open.
func (h *relayHandler) dispatchFrame(connID string, peer *wsPeer, locale language.Tag, frame wsFrame) {
	_, span := frameTracer.Start(context.Background(), "relay.frame")
	span.SetAttributes(attribute.String("frame.type", frame.Type))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("relay: panic handling %s frame for connection %s: %v", frame.Type, connID, r)
			writeWSError(peer, frame.RequestID, "INTERNAL", "internal error")
		}
	}()

	switch frame.Type {
	case "chat.join":
		h.handleJoinFrame(connID, peer, locale, frame)
	case "chat.send":
		h.handleSendFrame(connID, peer, frame)
	case "chat.typing":
		h.handleTypingFrame(connID, frame)
	default:
		writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "unsupported frame type")
	}
}

func (h *relayHandler) handleJoinFrame(connID string, peer *wsPeer, locale language.Tag, frame wsFrame) {
	var payload joinPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "invalid join payload")
		return
	}

	outcome := h.coordinator.Handle(chat.JoinEvent(connID, payload.Username, payload.Room))
	if outcome.Err != nil {
		writeWSAck(peer, frame.RequestID, outcome.Err)
		return
	}
	h.metrics.joins.Inc()

	// The coordinator already enqueued chat.joined; the ack and welcome
	// follow it on the same outbound queue.
	writeWSAck(peer, frame.RequestID, nil)
	result := outcome.Join
	peer.enqueue(wsFrame{
		Type: chat.EventNameMessage,
		Payload: mustJSON(chat.MessagePayload{Message: chat.Message{
			ID:        fmt.Sprintf("sys_%d", time.Now().UnixNano()),
			Username:  localizedSystemLabel(locale),
			Text:      localizedJoinWelcomeBody(locale, result.User.Username, result.Room.Name),
			Timestamp: time.Now().UTC(),
			Room:      result.Room.Name,
		}}),
	})
}

func (h *relayHandler) handleSendFrame(connID string, peer *wsPeer, frame wsFrame) {
	var payload sendPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "invalid send payload")
		return
	}

	outcome := h.coordinator.Handle(chat.SendMessageEvent(connID, payload.Text))
	if outcome.Err == nil {
		h.metrics.messages.Inc()
	}
	writeWSAck(peer, frame.RequestID, outcome.Err)
}

func (h *relayHandler) handleTypingFrame(connID string, frame wsFrame) {
	var payload typingPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		// Typing is fire-and-forget; a malformed indicator is dropped.
		return
	}
	h.coordinator.Handle(chat.TypingEvent(connID, payload.IsTyping))
}

// writeWSAck acknowledges a join or send frame. A nil err acknowledges
// success; otherwise the coordinator error is mapped onto the wire shape.
func writeWSAck(peer *wsPeer, requestID string, err error) {
	ack := ackPayload{Success: err == nil}
	if err != nil {
		wire := wireError(err)
		ack.Error = wire.Message
		ack.Code = wire.Code
	}
	peer.enqueue(wsFrame{
		Type:      "chat.ack",
		RequestID: requestID,
		Payload:   mustJSON(ack),
	})
}

func writeWSError(peer *wsPeer, requestID string, code string, message string) {
	peer.enqueue(wsFrame{
		Type:      "chat.error",
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{
			Error: wsError{Code: code, Message: message},
		}),
	})
}

// wireError maps a coordinator error onto the wire. Unknown errors surface as
// INTERNAL without leaking internals to the client.
func wireError(err error) wsError {
	var coordErr *chat.Error
	if errors.As(err, &coordErr) {
		return wsError{
			Code:    string(coordErr.Code),
			Message: coordErr.Message,
		}
	}
	return wsError{Code: string(chat.CodeInternal), Message: "internal error"}
}

func newConnID() string {
	generated, err := id.NewID()
	if err != nil {
		return fmt.Sprintf("conn_%d", time.Now().UnixNano())
	}
	return generated
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
