package webchat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/crystalcare-intake/internal/conversation"
	httpmiddleware "github.com/wolfman30/crystalcare-intake/internal/http/middleware"
	"github.com/wolfman30/crystalcare-intake/internal/leads"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
	"golang.org/x/net/websocket"
)

// SessionSource opens and resumes chat sessions.
type SessionSource interface {
	Start(ctx context.Context) *conversation.Session
	Get(ctx context.Context, id string) (*conversation.Session, error)
}

// TurnLimiter decides whether a client IP may send another chat turn.
type TurnLimiter interface {
	Allow(ip string) bool
}

const rateLimitedText = "You're sending messages too quickly. Please wait a moment and try again."

// Handler serves the live chat channel over WebSocket.
type Handler struct {
	sessions SessionSource
	limiter  TurnLimiter
	logger   *logging.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithTurnLimiter applies l to every message frame. Pass the limiter that
// guards the HTTP turn endpoint so both channels share one budget.
func WithTurnLimiter(l TurnLimiter) Option {
	return func(h *Handler) { h.limiter = l }
}

// InboundMessage is what the chat widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string                     `json:"type"` // "session", "message", "typing", "error", "pong"
	Text      string                     `json:"text,omitempty"`
	Role      string                     `json:"role,omitempty"`
	SessionID string                     `json:"session_id,omitempty"`
	Code      string                     `json:"code,omitempty"`
	Timestamp string                     `json:"timestamp,omitempty"`
	Messages  []conversation.ChatMessage `json:"messages,omitempty"`
	Leads     []leads.Lead               `json:"leads,omitempty"`
}

// NewHandler creates a web chat handler.
func NewHandler(sessions SessionSource, logger *logging.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		sessions: sessions,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleWebSocket upgrades to WebSocket and relays chat turns.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()
	ip := httpmiddleware.ClientIP(r)

	var session *conversation.Session
	if id := r.URL.Query().Get("session"); id != "" {
		s, err := h.sessions.Get(ctx, id)
		if err != nil {
			text := "unable to resume chat session"
			if errors.Is(err, conversation.ErrSessionNotFound) {
				text = "chat session not found"
			}
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: text})
			return
		}
		session = s
	} else {
		session = h.sessions.Start(ctx)
	}

	_ = websocket.JSON.Send(conn, OutboundMessage{
		Type:      "session",
		SessionID: session.ID(),
		Code:      session.Code(),
		Messages:  session.Messages(),
	})

	h.logger.Info("webchat: connection opened", "session_id", session.ID(), "session_code", session.Code())

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", session.ID(), "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}

		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		if h.limiter != nil && !h.limiter.Allow(ip) {
			h.logger.Warn("webchat: turn rate limited", "session_id", session.ID(), "ip", ip)
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: rateLimitedText})
			continue
		}

		h.processMessage(ctx, conn, session, msg.Text)
	}
}

func (h *Handler) processMessage(ctx context.Context, conn *websocket.Conn, session *conversation.Session, text string) {
	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing"})

	result, err := session.HandleTurn(ctx, text)
	if err != nil {
		reply := "Sorry, something went wrong. Please try again."
		if errors.Is(err, conversation.ErrTurnInFlight) {
			reply = "Please wait for the current reply."
		}
		h.logger.Warn("webchat: turn rejected", "error", err, "session_id", session.ID())
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: reply})
		return
	}

	_ = websocket.JSON.Send(conn, OutboundMessage{
		Type:      "message",
		Role:      result.Reply.Role,
		Text:      result.Reply.Text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Leads:     result.Leads,
	})
}
