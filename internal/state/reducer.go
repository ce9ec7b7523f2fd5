// Package state holds the pure conversation state machine mirrored by the
// client. Every transition is total: unknown actions return the state
// unchanged, so no action sequence can produce an invalid combination.
package state

import "github.com/ilyasfares/sakina/backend/internal/model/chat"

// Stage is the derived conversation phase used to bias prompt framing.
type Stage string

const (
	StageGreeting   Stage = "greeting"
	StageExploring  Stage = "exploring"
	StageSupporting Stage = "supporting"
	StageClosing    Stage = "closing"
)

// StageForCount derives the stage purely from message count.
func StageForCount(count int) Stage {
	switch {
	case count == 0:
		return StageGreeting
	case count <= 4:
		return StageExploring
	case count <= 10:
		return StageSupporting
	default:
		return StageClosing
	}
}

// ChatState is the full conversation UI state.
type ChatState struct {
	Messages         []chat.Message `json:"messages"`
	Loading          bool           `json:"loading"`
	EmergencyVisible bool           `json:"emergencyVisible"`
	Stage            Stage          `json:"stage"`
	ShowSuggestions  bool           `json:"showSuggestions"`
}

// ActionType enumerates the reducer's vocabulary.
type ActionType string

const (
	ActionAddUserMessage   ActionType = "addUserMessage"
	ActionAddAiMessage     ActionType = "addAiMessage"
	ActionSetLoading       ActionType = "setLoading"
	ActionToggleEmergency  ActionType = "toggleEmergency"
	ActionSetStage         ActionType = "setConversationStage"
	ActionToggleSuggestion ActionType = "toggleSuggestions"
	ActionReset            ActionType = "reset"
)

// Action carries a type plus the payload fields the type reads.
type Action struct {
	Type    ActionType
	Message chat.Message
	Flag    bool
	Stage   Stage
}

// Initial is the exact state a reset returns to.
func Initial() ChatState {
	return ChatState{
		Messages:         []chat.Message{},
		Loading:          false,
		EmergencyVisible: false,
		Stage:            StageGreeting,
		ShowSuggestions:  true,
	}
}

// Reduce applies one action. The input state is never mutated; message
// slices are copied on append.
func Reduce(s ChatState, a Action) ChatState {
	switch a.Type {
	case ActionAddUserMessage:
		msg := a.Message
		msg.Role = chat.RoleUser
		next := s
		next.Messages = appendMessage(s.Messages, msg)
		next.ShowSuggestions = false
		next.Stage = StageForCount(len(next.Messages))
		return next

	case ActionAddAiMessage:
		msg := a.Message
		msg.Role = chat.RoleAssistant
		next := s
		next.Messages = appendMessage(s.Messages, msg)
		next.Stage = StageForCount(len(next.Messages))
		return next

	case ActionSetLoading:
		next := s
		next.Loading = a.Flag
		return next

	case ActionToggleEmergency:
		next := s
		next.EmergencyVisible = a.Flag
		return next

	case ActionSetStage:
		next := s
		next.Stage = a.Stage
		return next

	case ActionToggleSuggestion:
		next := s
		next.ShowSuggestions = a.Flag
		return next

	case ActionReset:
		return Initial()

	default:
		return s
	}
}

func appendMessage(messages []chat.Message, msg chat.Message) []chat.Message {
	out := make([]chat.Message, len(messages), len(messages)+1)
	copy(out, messages)
	return append(out, msg)
}
