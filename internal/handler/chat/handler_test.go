package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ilyasfares/sakina/backend/internal/middleware"
	"github.com/ilyasfares/sakina/backend/internal/model/chat"
	chatservice "github.com/ilyasfares/sakina/backend/internal/service/chat"
	"github.com/ilyasfares/sakina/backend/internal/state"
)

func setupRouter() (*chi.Mux, *chatservice.Service) {
	chatSvc := chatservice.NewService()
	r := chi.NewRouter()
	r.Use(middleware.Auth)
	New(chatSvc).RegisterRoutes(r)
	return r, chatSvc
}

func doJSON(r http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	} else {
		payload = []byte(`{}`)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestGetOrCreateIsIdempotentPerUser(t *testing.T) {
	r, _ := setupRouter()

	first := doJSON(r, http.MethodPost, "/conversations", "amina", map[string]string{"language": "fr"})
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}

	var conv chat.Conversation
	if err := json.Unmarshal(first.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}
	if conv.ID == "" || conv.Language != "fr" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	second := doJSON(r, http.MethodPost, "/conversations", "amina", map[string]string{"language": "fr"})
	var again chat.Conversation
	if err := json.Unmarshal(second.Body.Bytes(), &again); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}
	if again.ID != conv.ID {
		t.Fatalf("expected same conversation on repeat call, got %s and %s", conv.ID, again.ID)
	}
}

func TestTranscriptHiddenFromOtherUsers(t *testing.T) {
	r, _ := setupRouter()

	resp := doJSON(r, http.MethodPost, "/conversations", "amina", map[string]string{"language": "ar"})
	var conv chat.Conversation
	if err := json.Unmarshal(resp.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}

	other := doJSON(r, http.MethodGet, fmt.Sprintf("/conversations/%s/messages", conv.ID), "someone-else", nil)
	if other.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign conversation, got %d", other.Code)
	}
}

func TestAppendAndTranscript(t *testing.T) {
	r, _ := setupRouter()

	resp := doJSON(r, http.MethodPost, "/conversations", "amina", map[string]string{"language": "en"})
	var conv chat.Conversation
	if err := json.Unmarshal(resp.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}

	appendResp := doJSON(r, http.MethodPost, fmt.Sprintf("/conversations/%s/messages", conv.ID), "amina", map[string]string{
		"role":    chat.RoleUser,
		"content": "today was a long day",
	})
	if appendResp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", appendResp.Code)
	}

	var saved chat.Message
	if err := json.Unmarshal(appendResp.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if saved.ID == "" || saved.CreatedAt.IsZero() {
		t.Fatalf("expected assigned id and timestamp, got %+v", saved)
	}

	listResp := doJSON(r, http.MethodGet, fmt.Sprintf("/conversations/%s/messages", conv.ID), "amina", nil)
	if listResp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", listResp.Code)
	}

	var transcript struct {
		Messages []chat.Message `json:"messages"`
	}
	if err := json.Unmarshal(listResp.Body.Bytes(), &transcript); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(transcript.Messages) != 1 || transcript.Messages[0].Content != "today was a long day" {
		t.Fatalf("unexpected transcript: %+v", transcript.Messages)
	}
}

func TestAppendValidatesRole(t *testing.T) {
	r, _ := setupRouter()

	resp := doJSON(r, http.MethodPost, "/conversations", "amina", map[string]string{"language": "en"})
	var conv chat.Conversation
	if err := json.Unmarshal(resp.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}

	bad := doJSON(r, http.MethodPost, fmt.Sprintf("/conversations/%s/messages", conv.ID), "amina", map[string]string{
		"role":    "system",
		"content": "prompt injection attempt",
	})
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for system role, got %d", bad.Code)
	}
}

func TestStateReflectsTranscript(t *testing.T) {
	r, _ := setupRouter()

	resp := doJSON(r, http.MethodPost, "/conversations", "amina", map[string]string{"language": "en"})
	var conv chat.Conversation
	if err := json.Unmarshal(resp.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}

	doJSON(r, http.MethodPost, fmt.Sprintf("/conversations/%s/messages", conv.ID), "amina", map[string]string{
		"role":    chat.RoleUser,
		"content": "hello",
	})

	stateResp := doJSON(r, http.MethodGet, fmt.Sprintf("/conversations/%s/state", conv.ID), "amina", nil)
	if stateResp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", stateResp.Code)
	}

	var st state.ChatState
	if err := json.Unmarshal(stateResp.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.Stage != state.StageExploring {
		t.Fatalf("expected stage %s, got %s", state.StageExploring, st.Stage)
	}
	if st.ShowSuggestions {
		t.Fatal("expected suggestions hidden right after a user message")
	}
	if len(st.Messages) != 1 {
		t.Fatalf("expected 1 message in state, got %d", len(st.Messages))
	}
}

func TestResetEvictsConversation(t *testing.T) {
	r, _ := setupRouter()

	resp := doJSON(r, http.MethodPost, "/conversations", "amina", map[string]string{"language": "fr"})
	var conv chat.Conversation
	if err := json.Unmarshal(resp.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}

	reset := doJSON(r, http.MethodDelete, "/conversations", "amina", nil)
	if reset.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", reset.Code)
	}

	gone := doJSON(r, http.MethodGet, fmt.Sprintf("/conversations/%s/messages", conv.ID), "amina", nil)
	if gone.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after reset, got %d", gone.Code)
	}
}
