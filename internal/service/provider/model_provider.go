package provider

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/ilyasfares/sakina/backend/internal/config"
	"github.com/ilyasfares/sakina/backend/internal/model/chat"
	"github.com/ilyasfares/sakina/backend/internal/model/suggestion"
)

// historyLimit caps how many prior turns are sent to a model.
const historyLimit = 10

// modelProvider backs one failover slot with a compiled prompt/model chain.
type modelProvider struct {
	name  string
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewModelProvider compiles the generation chain for one configured endpoint.
func NewModelProvider(ctx context.Context, cfg config.ProviderConfig) (Provider, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile generation chain: %w", err)
	}

	return &modelProvider{name: cfg.Name, chain: runnable}, nil
}

func (p *modelProvider) Name() string { return p.name }

// Generate invokes the chain once and defensively parses the structured
// output. Any parse failure is returned as an error so the gateway advances.
func (p *modelProvider) Generate(ctx context.Context, req Request) (*suggestion.Result, error) {
	response, err := p.chain.Invoke(ctx, chainInput(req))
	if err != nil {
		return nil, fmt.Errorf("provider %s invoke: %w", p.name, err)
	}
	if response == nil {
		return nil, fmt.Errorf("provider %s returned empty response", p.name)
	}

	suggestions, err := parseSuggestions(response.Content)
	if err != nil {
		return nil, fmt.Errorf("provider %s output: %w", p.name, err)
	}

	result := &suggestion.Result{
		Provider:    p.name,
		Suggestions: suggestions,
		TokensUsed:  tokensUsed(response),
	}
	log.Printf("[provider] %s returned %d suggestions, tokens=%d", p.name, len(suggestions), result.TokensUsed)
	return result, nil
}

// GenerateStream yields raw content chunks from the chain. The caller closes
// the reader to stop pulling; no work continues after that.
func (p *modelProvider) GenerateStream(ctx context.Context, req Request) (*schema.StreamReader[string], error) {
	stream, err := p.chain.Stream(ctx, chainInput(req))
	if err != nil {
		return nil, fmt.Errorf("provider %s stream: %w", p.name, err)
	}

	return schema.StreamReaderWithConvert(stream, func(msg *schema.Message) (string, error) {
		if msg == nil || msg.Content == "" {
			return "", schema.ErrNoValue
		}
		return msg.Content, nil
	}), nil
}

func chainInput(req Request) map[string]any {
	return map[string]any{
		"system":  req.System,
		"history": historyMessages(req.History),
		"query":   req.Content,
	}
}

func historyMessages(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	startIdx := 0
	if len(turns) > historyLimit {
		startIdx = len(turns) - historyLimit
	}

	history := make([]*schema.Message, 0, len(turns)-startIdx)
	for _, turn := range turns[startIdx:] {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}

func tokensUsed(msg *schema.Message) int {
	if msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return 0
	}
	return msg.ResponseMeta.Usage.TotalTokens
}
