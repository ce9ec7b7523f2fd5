package chat_test

import (
	"context"
	"errors"
	"testing"

	model "github.com/ilyasfares/sakina/backend/internal/model/chat"
	chat "github.com/ilyasfares/sakina/backend/internal/service/chat"
	"github.com/ilyasfares/sakina/backend/internal/state"
)

func TestGetOrCreateIsStablePerUser(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	first, err := svc.GetOrCreate(ctx, "amina", "fr")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	second, err := svc.GetOrCreate(ctx, "amina", "fr")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected stable conversation, got %s and %s", first.ID, second.ID)
	}

	other, err := svc.GetOrCreate(ctx, "karim", "ar")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("conversations must be partitioned by user")
	}
}

func TestGetOrCreateRequiresUser(t *testing.T) {
	svc := chat.NewService()
	if _, err := svc.GetOrCreate(context.Background(), "", "fr"); !errors.Is(err, chat.ErrUserRequired) {
		t.Fatalf("err = %v, want ErrUserRequired", err)
	}
}

func TestAppendMessagePreservesOrder(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	conv, _ := svc.GetOrCreate(ctx, "amina", "fr")

	for _, content := range []string{"one", "two", "three"} {
		if _, err := svc.AppendMessage(ctx, model.Message{
			ConversationID: conv.ID, Role: model.RoleUser, Content: content,
		}); err != nil {
			t.Fatalf("AppendMessage err: %v", err)
		}
	}

	transcript, err := svc.Transcript(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	if len(transcript) != 3 {
		t.Fatalf("got %d messages", len(transcript))
	}
	for i, want := range []string{"one", "two", "three"} {
		if transcript[i].Content != want {
			t.Fatalf("position %d = %q, want %q", i, transcript[i].Content, want)
		}
		if transcript[i].ID == "" || transcript[i].CreatedAt.IsZero() {
			t.Fatal("store must assign id and timestamp")
		}
	}
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	svc := chat.NewService()
	if _, err := svc.AppendMessage(context.Background(), model.Message{ConversationID: "missing"}); !errors.Is(err, chat.ErrConversationNotFound) {
		t.Fatalf("err = %v, want ErrConversationNotFound", err)
	}
}

func TestInFlightGuard(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	conv, _ := svc.GetOrCreate(ctx, "amina", "fr")

	if err := svc.BeginGeneration(conv.ID); err != nil {
		t.Fatalf("BeginGeneration err: %v", err)
	}
	if err := svc.BeginGeneration(conv.ID); !errors.Is(err, chat.ErrGenerationInFlight) {
		t.Fatalf("err = %v, want ErrGenerationInFlight", err)
	}

	svc.EndGeneration(conv.ID)
	if err := svc.BeginGeneration(conv.ID); err != nil {
		t.Fatalf("BeginGeneration after End err: %v", err)
	}
}

func TestStateDerivedFromTranscript(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	conv, _ := svc.GetOrCreate(ctx, "amina", "fr")

	st, err := svc.State(ctx, conv.ID)
	if err != nil {
		t.Fatalf("State err: %v", err)
	}
	if st.Stage != state.StageGreeting || !st.ShowSuggestions {
		t.Fatalf("initial state = %+v", st)
	}

	svc.AppendMessage(ctx, model.Message{ConversationID: conv.ID, Role: model.RoleUser, Content: "hi"})
	svc.AppendMessage(ctx, model.Message{ConversationID: conv.ID, Role: model.RoleAssistant, Content: "welcome"})

	st, err = svc.State(ctx, conv.ID)
	if err != nil {
		t.Fatalf("State err: %v", err)
	}
	if st.Stage != state.StageExploring {
		t.Fatalf("stage = %s, want exploring", st.Stage)
	}
	if st.ShowSuggestions {
		t.Fatal("suggestions must hide after the first user message")
	}
}

func TestResetEvictsConversation(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	conv, _ := svc.GetOrCreate(ctx, "amina", "fr")
	svc.AppendMessage(ctx, model.Message{ConversationID: conv.ID, Role: model.RoleUser, Content: "hi"})

	svc.Reset(ctx, "amina")

	if _, err := svc.Transcript(ctx, conv.ID); !errors.Is(err, chat.ErrConversationNotFound) {
		t.Fatalf("err = %v, want ErrConversationNotFound", err)
	}

	fresh, _ := svc.GetOrCreate(ctx, "amina", "fr")
	if fresh.ID == conv.ID {
		t.Fatal("reset must provision a fresh conversation")
	}
}
