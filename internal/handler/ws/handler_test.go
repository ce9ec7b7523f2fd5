package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ilyasfares/sakina/backend/internal/model/chat"
	"github.com/ilyasfares/sakina/backend/internal/model/suggestion"
	"github.com/ilyasfares/sakina/backend/internal/profile"
	chatservice "github.com/ilyasfares/sakina/backend/internal/service/chat"
	"github.com/ilyasfares/sakina/backend/internal/service/provider"
	"github.com/ilyasfares/sakina/backend/internal/service/ratelimit"
	suggestservice "github.com/ilyasfares/sakina/backend/internal/service/suggest"
	"github.com/ilyasfares/sakina/backend/internal/telemetry"
)

func setupHandler() (*Handler, *chatservice.Service) {
	return setupHandlerWith(nil)
}

func setupHandlerWith(p provider.Provider) (*Handler, *chatservice.Service) {
	var providers []provider.Provider
	if p != nil {
		providers = []provider.Provider{p}
	}
	sink := telemetry.NewMemoryStore()
	gateway := provider.NewGateway(providers, 0)
	limiter := ratelimit.New(sink, 20, 60, false)
	suggestSvc := suggestservice.NewService(gateway, limiter, sink, profile.NewMemoryStore(profile.Seed()), nil)
	chatSvc := chatservice.NewService()
	return New(chatSvc, suggestSvc), chatSvc
}

// scriptedProvider streams a fixed set of chunks.
type scriptedProvider struct {
	chunks []string
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(context.Context, provider.Request) (*suggestion.Result, error) {
	return nil, errors.New("batch generation not scripted")
}

func (p *scriptedProvider) GenerateStream(context.Context, provider.Request) (*schema.StreamReader[string], error) {
	return schema.StreamReaderFromArray(p.chunks), nil
}

func TestTurnsFromMapsRoles(t *testing.T) {
	turns := turnsFrom([]chat.Message{
		{Role: chat.RoleUser, Content: "hello"},
		{Role: chat.RoleAssistant, Content: "hi there"},
	})

	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != chat.RoleUser || turns[0].Content != "hello" {
		t.Fatalf("unexpected first turn: %+v", turns[0])
	}
	if turns[1].Role != chat.RoleAssistant {
		t.Fatalf("unexpected second turn: %+v", turns[1])
	}
}

func TestSupportiveReplacementPerLanguage(t *testing.T) {
	if got := supportiveReplacement("fr"); !strings.Contains(got, "respirer") {
		t.Fatalf("unexpected french replacement: %s", got)
	}
	if got := supportiveReplacement("ar"); got == "" {
		t.Fatal("expected arabic replacement")
	}
	if got := supportiveReplacement("de"); !strings.Contains(got, "breathe") {
		t.Fatalf("expected english fallback, got: %s", got)
	}
}

func TestWebSocketUnknownConversation(t *testing.T) {
	handler, _ := setupHandler()
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/ws/chat/missing", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

// payloadType digs the inner type field out of an outgoing frame.
func payloadType(raw map[string]any) string {
	data, _ := raw["data"].(map[string]any)
	typ, _ := data["type"].(string)
	return typ
}

func TestWebSocketChatRoundTrip(t *testing.T) {
	handler, chatSvc := setupHandler()
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	conv, err := chatSvc.GetOrCreate(context.Background(), "amina", "en")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/" + conv.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()

	msg := map[string]any{
		"type": "text",
		"data": map[string]string{"text": "everything feels hopeless lately"},
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write err: %v", err)
	}

	// The state frame with both turns arrives after the assistant message
	// has been persisted; waiting for it avoids racing the transcript check.
	seen := map[string]bool{}
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read err (seen so far: %v): %v", seen, err)
		}
		seen[payloadType(frame)] = true
		if payloadType(frame) == "state" {
			data, _ := frame["data"].(map[string]any)
			if count, _ := data["messageCount"].(float64); count == 2 {
				break
			}
		}
	}

	// Low mood without explicit self-harm intent: the emergency overlay
	// fires while the reply still streams.
	if !seen["emergency"] {
		t.Fatalf("expected emergency event, saw: %v", seen)
	}
	if !seen["ai"] {
		t.Fatalf("expected final ai frame, saw: %v", seen)
	}

	transcript, err := chatSvc.Transcript(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	if len(transcript) != 2 {
		t.Fatalf("expected user + assistant messages, got %d", len(transcript))
	}
	if transcript[1].Role != chat.RoleAssistant || transcript[1].Content == "" {
		t.Fatalf("unexpected assistant message: %+v", transcript[1])
	}
}

func TestWebSocketUnsafeReplyReplacedNeverShown(t *testing.T) {
	p := &scriptedProvider{chunks: []string{"you could ", "attack them"}}
	handler, chatSvc := setupHandlerWith(p)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	conv, err := chatSvc.GetOrCreate(context.Background(), "amina", "en")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/" + conv.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()

	msg := map[string]any{
		"type": "text",
		"data": map[string]string{"text": "I had a fight with my coworker"},
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write err: %v", err)
	}

	var finals []string
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read err: %v", err)
		}
		data, _ := frame["data"].(map[string]any)
		if payloadType(frame) == "ai" {
			text, _ := data["text"].(string)
			finals = append(finals, text)
		}
		if payloadType(frame) == "state" {
			if count, _ := data["messageCount"].(float64); count == 2 {
				break
			}
		}
	}

	// Exactly one final frame, carrying the replacement, not the reply
	// the filter rejected.
	if len(finals) != 1 {
		t.Fatalf("expected exactly one final ai frame, got %d: %v", len(finals), finals)
	}
	if want := supportiveReplacement("en"); finals[0] != want {
		t.Fatalf("expected replacement %q, got %q", want, finals[0])
	}
	if strings.Contains(finals[0], "attack") {
		t.Fatalf("screened reply leaked to the client: %q", finals[0])
	}

	transcript, err := chatSvc.Transcript(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	if got := transcript[1].Content; got != supportiveReplacement("en") {
		t.Fatalf("expected replacement persisted, got %q", got)
	}
}

func TestWebSocketOversizedMessageRejected(t *testing.T) {
	handler, chatSvc := setupHandler()
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	conv, err := chatSvc.GetOrCreate(context.Background(), "amina", "en")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/" + conv.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()

	msg := map[string]any{
		"type": "text",
		"data": map[string]string{"text": strings.Repeat("a", suggestservice.MaxContentLength+1)},
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write err: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read err: %v", err)
		}
		if payloadType(frame) != "rejected" {
			continue
		}
		data, _ := frame["data"].(map[string]any)
		if data["reason"] != "content_too_long" {
			t.Fatalf("expected content_too_long rejection, got: %v", data)
		}
		return
	}
}

func TestWebSocketRejectsForeignIdentityOnUpgrade(t *testing.T) {
	handler, chatSvc := setupHandler()
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	conv, err := chatSvc.GetOrCreate(context.Background(), "amina", "en")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/" + conv.ID

	header := http.Header{"X-User-ID": []string{"someone-else"}}
	if _, resp, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("expected handshake rejection for foreign identity")
	} else if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on upgrade, got %+v", resp)
	}

	owner := http.Header{"X-User-ID": []string{"amina"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, owner)
	if err != nil {
		t.Fatalf("owner identity should connect: %v", err)
	}
	conn.Close()
}

func TestWebSocketConfigUpdatesSession(t *testing.T) {
	handler, chatSvc := setupHandler()
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	conv, err := chatSvc.GetOrCreate(context.Background(), "amina", "fr")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/" + conv.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()

	cfg := map[string]any{
		"type": "config",
		"data": map[string]string{"language": "ar", "mood": "anxious"},
	}
	if err := conn.WriteJSON(cfg); err != nil {
		t.Fatalf("write err: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read err: %v", err)
		}
		if payloadType(frame) != "config" {
			continue
		}
		data, _ := frame["data"].(map[string]any)
		if data["language"] != "ar" || data["mood"] != "anxious" {
			t.Fatalf("unexpected config ack: %v", data)
		}
		return
	}
}

func TestWebSocketMismatchedConversationID(t *testing.T) {
	handler, chatSvc := setupHandler()
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	conv, err := chatSvc.GetOrCreate(context.Background(), "amina", "en")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/" + conv.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()

	msg := map[string]any{
		"type":           "text",
		"conversationId": "someone-elses-conversation",
		"data":           map[string]string{"text": "hello"},
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write err: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var frame struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read err: %v", err)
		}
		if frame.Type == "error" {
			return
		}
	}
}
