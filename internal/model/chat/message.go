package chat

import "time"

// Roles a stored message can carry. System prompts are never persisted.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single immutable turn in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"timestamp"`
}

// Turn is the lightweight history element accepted on generation requests.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
