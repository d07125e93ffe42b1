package webchat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/crystalcare-intake/internal/conversation"
	"github.com/wolfman30/crystalcare-intake/internal/leads"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

type echoCapability struct{}

func (echoCapability) Generate(_ context.Context, req conversation.DialogueRequest) (conversation.DialogueResponse, error) {
	last := req.History[len(req.History)-1]
	if last.Text == "HEALTY" {
		return conversation.DialogueResponse{ToolCalls: []conversation.ToolCall{{
			Name:      conversation.SaveLeadToolName,
			Arguments: map[string]any{"name": "Bob", "contact": "555-0000", "service": "Neurology"},
		}}}, nil
	}
	return conversation.DialogueResponse{Text: "echo: " + last.Text}, nil
}

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *conversation.Manager) {
	t.Helper()
	manager := conversation.NewManager(conversation.ManagerConfig{
		Capability: echoCapability{},
		Store:      leads.NewStore(leads.NewMemoryKV(), logging.New("error")),
		NewCode:    func() string { return "CHAT-5555" },
	}, logging.New("error"))
	h := NewHandler(manager, logging.New("error"), opts...)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(srv.Close)
	return srv, manager
}

func dial(t *testing.T, srv *httptest.Server, query string) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := gws.DefaultDialer.Dial(url, http.Header{"Origin": {srv.URL}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestWebSocket_NewSessionAndTurn(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "/chat/ws")

	var hello OutboundMessage
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "session", hello.Type)
	assert.Equal(t, "CHAT-5555", hello.Code)
	require.Len(t, hello.Messages, 1)
	assert.Equal(t, conversation.Greeting, hello.Messages[0].Text)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "hello"}))

	var typing, reply OutboundMessage
	require.NoError(t, conn.ReadJSON(&typing))
	assert.Equal(t, "typing", typing.Type)
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "assistant", reply.Role)
	assert.Equal(t, "echo: hello", reply.Text)
}

func TestWebSocket_LeadConfirmation(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "/chat/ws")

	var msg OutboundMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "HEALTY"}))
	require.NoError(t, conn.ReadJSON(&msg))
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Contains(t, msg.Text, `code "CHAT-5555"`)
	require.Len(t, msg.Leads, 1)
	assert.Equal(t, leads.SourceAIChatbot, msg.Leads[0].Source)
}

func TestWebSocket_ResumeAndPing(t *testing.T) {
	srv, manager := newTestServer(t)
	s := manager.Start(context.Background())
	conn := dial(t, srv, "/chat/ws?session="+s.ID())

	var hello OutboundMessage
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, s.ID(), hello.SessionID)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "ping"}))
	var pong OutboundMessage
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Type)
}

func TestWebSocket_UnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv, "/chat/ws?session=missing")

	var msg OutboundMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "chat session not found", msg.Text)
}

type budgetLimiter struct {
	mu        sync.Mutex
	remaining int
	ips       []string
}

func (b *budgetLimiter) Allow(ip string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ips = append(b.ips, ip)
	if b.remaining == 0 {
		return false
	}
	b.remaining--
	return true
}

func TestWebSocket_TurnsAreRateLimited(t *testing.T) {
	limiter := &budgetLimiter{remaining: 1}
	srv, _ := newTestServer(t, WithTurnLimiter(limiter))
	conn := dial(t, srv, "/chat/ws")

	var msg OutboundMessage
	require.NoError(t, conn.ReadJSON(&msg))

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "first"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "typing", msg.Type)
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "echo: first", msg.Text)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "second"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, rateLimitedText, msg.Text)

	// Pings are not chat turns.
	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "ping"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg.Type)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Equal(t, []string{"127.0.0.1", "127.0.0.1"}, limiter.ips)
}
