package chat

import "time"

// Conversation captures one user's ordered message history. Stage and
// suggestion visibility are derived from the messages, never stored.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
}
