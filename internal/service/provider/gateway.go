package provider

import (
	"context"
	"log"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/ilyasfares/sakina/backend/internal/model/suggestion"
	"github.com/ilyasfares/sakina/backend/internal/safety"
)

// Gateway walks an ordered provider chain and terminates in the local
// fallback, so generation never fails from the caller's point of view.
type Gateway struct {
	providers []Provider
	fallback  *LocalFallback
	timeout   time.Duration
	screen    func(string) safety.Verdict
}

// NewGateway builds a gateway over the configured providers. A zero-length
// provider list is valid and means local-fallback-only mode.
func NewGateway(providers []Provider, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		providers: providers,
		fallback:  NewLocalFallback(),
		timeout:   timeout,
		screen:    safety.Check,
	}
}

// Configured reports whether at least one hosted provider is in the chain.
func (g *Gateway) Configured() bool {
	return len(g.providers) > 0
}

// Generate tries each provider in order. A provider "fails" on error, on
// timeout, or when none of its suggestions survive the safety screen; the
// chain then advances, ending at the pre-authored local pool.
func (g *Gateway) Generate(ctx context.Context, req Request) (*suggestion.Result, error) {
	for _, p := range g.providers {
		result, err := g.generateOnce(ctx, p, req)
		if err != nil {
			log.Printf("[gateway] provider %s failed, advancing: %v", p.Name(), err)
			continue
		}

		survivors := g.screenSuggestions(result.Suggestions)
		if len(survivors) == 0 {
			log.Printf("[gateway] provider %s: all suggestions filtered, advancing", p.Name())
			continue
		}

		result.Suggestions = survivors
		return result, nil
	}

	// Pool content is pre-authored and screened at authoring time.
	return g.fallback.Generate(ctx, req)
}

// GenerateStream mirrors Generate for the streaming path. The returned reader
// is finite and not restartable; closing it stops all further pulls.
func (g *Gateway) GenerateStream(ctx context.Context, req Request) (*schema.StreamReader[string], string, error) {
	for _, p := range g.providers {
		stream, err := p.GenerateStream(ctx, req)
		if err != nil {
			log.Printf("[gateway] provider %s stream failed, advancing: %v", p.Name(), err)
			continue
		}
		return stream, p.Name(), nil
	}

	stream, err := g.fallback.GenerateStream(ctx, req)
	if err != nil {
		return nil, "", err
	}
	return stream, LocalName, nil
}

// GenerateFallback serves the local pool directly, bypassing hosted
// providers. Used when the rate limiter degrades a call in bypass mode.
func (g *Gateway) GenerateFallback(ctx context.Context, req Request) (*suggestion.Result, error) {
	return g.fallback.Generate(ctx, req)
}

// GenerateFallbackStream is the streaming analogue of GenerateFallback.
func (g *Gateway) GenerateFallbackStream(ctx context.Context, req Request) (*schema.StreamReader[string], error) {
	return g.fallback.GenerateStream(ctx, req)
}

func (g *Gateway) generateOnce(ctx context.Context, p Provider, req Request) (*suggestion.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return p.Generate(callCtx, req)
}

func (g *Gateway) screenSuggestions(items []suggestion.Suggestion) []suggestion.Suggestion {
	out := make([]suggestion.Suggestion, 0, len(items))
	for _, item := range items {
		if verdict := g.screen(item.Content); verdict.Unsafe {
			log.Printf("[gateway] dropping unsafe suggestion (%s)", verdict.Reason)
			continue
		}
		out = append(out, item)
	}
	return out
}
