package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ilyasfares/sakina/backend/internal/model/chat"
	"github.com/ilyasfares/sakina/backend/internal/state"
)

var (
	ErrUserRequired         = errors.New("user id is required")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrGenerationInFlight   = errors.New("a generation is already in flight for this conversation")
)

const storageKeyPrefix = "conv:"

// Service owns conversation persistence, partitioned per user so cross-user
// interference is structurally impossible. One conversation per user key; a
// reset or sign-out evicts it.
type Service struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
	messages      map[string][]chat.Message
	byUserKey     map[string]string
	inflight      map[string]bool
}

// NewService bootstraps the in-memory conversation store.
func NewService() *Service {
	return &Service{
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string][]chat.Message),
		byUserKey:     make(map[string]string),
		inflight:      make(map[string]bool),
	}
}

// GetOrCreate returns the user's active conversation, provisioning one on
// first use.
func (s *Service) GetOrCreate(_ context.Context, userID, language string) (chat.Conversation, error) {
	if userID == "" {
		return chat.Conversation{}, ErrUserRequired
	}

	key := storageKeyPrefix + userID

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byUserKey[key]; ok {
		return s.conversations[id], nil
	}

	conv := chat.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Language:  language,
		CreatedAt: time.Now().UTC(),
	}
	s.conversations[conv.ID] = conv
	s.messages[conv.ID] = make([]chat.Message, 0, 16)
	s.byUserKey[key] = conv.ID
	return conv, nil
}

// Get retrieves a conversation by identifier.
func (s *Service) Get(_ context.Context, conversationID string) (chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return chat.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// AppendMessage appends a message in submission order. The id and timestamp
// are assigned here so callers cannot forge them.
func (s *Service) AppendMessage(_ context.Context, message chat.Message) (chat.Message, error) {
	if message.ConversationID == "" {
		return chat.Message{}, ErrConversationNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[message.ConversationID]; !ok {
		return chat.Message{}, ErrConversationNotFound
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.messages[message.ConversationID] = append(s.messages[message.ConversationID], message)
	return message, nil
}

// Transcript returns a copy of the stored messages for a conversation.
func (s *Service) Transcript(_ context.Context, conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// State folds the transcript through the reducer, yielding the same derived
// state the client computes (stage, suggestion visibility).
func (s *Service) State(ctx context.Context, conversationID string) (state.ChatState, error) {
	transcript, err := s.Transcript(ctx, conversationID)
	if err != nil {
		return state.ChatState{}, err
	}

	st := state.Initial()
	for _, msg := range transcript {
		actionType := state.ActionAddUserMessage
		if msg.Role == chat.RoleAssistant {
			actionType = state.ActionAddAiMessage
		}
		st = state.Reduce(st, state.Action{Type: actionType, Message: msg})
	}
	return st, nil
}

// BeginGeneration acquires the per-conversation in-flight guard. A second
// submission while a generation is running is rejected so messages are never
// interleaved.
func (s *Service) BeginGeneration(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return ErrConversationNotFound
	}
	if s.inflight[conversationID] {
		return ErrGenerationInFlight
	}
	s.inflight[conversationID] = true
	return nil
}

// EndGeneration releases the in-flight guard.
func (s *Service) EndGeneration(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, conversationID)
}

// Reset evicts the user's conversation and history (explicit reset or
// sign-out).
func (s *Service) Reset(_ context.Context, userID string) {
	key := storageKeyPrefix + userID

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byUserKey[key]
	if !ok {
		return
	}
	delete(s.byUserKey, key)
	delete(s.conversations, id)
	delete(s.messages, id)
	delete(s.inflight, id)
}
