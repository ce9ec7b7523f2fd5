// Package provider orchestrates the generation backends: an ordered failover
// chain of hosted models terminating in a deterministic local pool.
package provider

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/ilyasfares/sakina/backend/internal/analysis/mood"
	"github.com/ilyasfares/sakina/backend/internal/model/chat"
	"github.com/ilyasfares/sakina/backend/internal/model/suggestion"
)

// Request carries everything a provider needs for one generation call. System
// is the stage-and-mood-aware framing built by the orchestrator; Content is
// the raw user text.
type Request struct {
	Language string
	Mood     mood.Mood
	Content  string
	History  []chat.Turn
	System   string
}

// Provider is a single generation backend. GenerateStream yields raw text
// chunks; the consumer assembles them and stops pulling to cancel.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*suggestion.Result, error)
	GenerateStream(ctx context.Context, req Request) (*schema.StreamReader[string], error)
}
