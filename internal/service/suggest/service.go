// Package suggest is the single entry point turning user text into
// moderated, provider-backed suggestions: safety gate, crisis signal, rate
// limit, prompt framing, gateway call, output screening.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/ilyasfares/sakina/backend/internal/analysis/crisis"
	"github.com/ilyasfares/sakina/backend/internal/analysis/mood"
	"github.com/ilyasfares/sakina/backend/internal/model/chat"
	"github.com/ilyasfares/sakina/backend/internal/model/suggestion"
	"github.com/ilyasfares/sakina/backend/internal/profile"
	"github.com/ilyasfares/sakina/backend/internal/safety"
	"github.com/ilyasfares/sakina/backend/internal/service/provider"
	"github.com/ilyasfares/sakina/backend/internal/service/ratelimit"
	"github.com/ilyasfares/sakina/backend/internal/state"
	"github.com/ilyasfares/sakina/backend/internal/telemetry"
)

// MaxContentLength bounds inbound journal/chat text.
const MaxContentLength = 4000

// ErrContentTooLong rejects oversized inbound text before any processing.
var ErrContentTooLong = fmt.Errorf("content exceeds %d characters", MaxContentLength)

// UnsafeContentError rejects a generation request whose input tripped the
// safety filter. Unlike output-side filtering, nothing is substituted.
// CrisisLevel is carried so the caller can still surface the emergency
// overlay alongside the rejection.
type UnsafeContentError struct {
	Reason      string
	CrisisLevel int
}

func (e *UnsafeContentError) Error() string {
	return "inbound content rejected by safety filter: " + e.Reason
}

// RateLimitError carries the limiter decision for the retry-after hint.
type RateLimitError struct {
	Decision ratelimit.Decision
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d/%d calls in %d minutes",
		e.Decision.Count, e.Decision.Max, e.Decision.WindowMinutes)
}

// Request is one generation cycle for an authenticated user.
type Request struct {
	UserID   string
	Language string
	Mood     string
	Content  string
	History  []chat.Turn
}

// Meta describes how a response was produced. CrisisLevel > 0 tells the
// client to surface the emergency overlay; it never blocks generation.
type Meta struct {
	Provider      string              `json:"provider"`
	CrisisLevel   int                 `json:"crisisLevel,omitempty"`
	ShowEmergency bool                `json:"showEmergency,omitempty"`
	RateLimit     *ratelimit.Decision `json:"rateLimit,omitempty"`
}

// Response is the normalized non-streaming result.
type Response struct {
	Suggestions []suggestion.Suggestion `json:"suggestions"`
	Meta        Meta                    `json:"meta"`
}

// Service combines detector, filter, limiter and gateway into one
// request/response cycle.
type Service struct {
	gateway  *provider.Gateway
	limiter  *ratelimit.Limiter
	sink     telemetry.Store
	profiles profile.Store
	cache    *Cache
}

// NewService wires the orchestrator. The cache is injected so its scope and
// eviction policy are owned by the caller, not a package global.
func NewService(gateway *provider.Gateway, limiter *ratelimit.Limiter, sink telemetry.Store, profiles profile.Store, cache *Cache) *Service {
	if cache == nil {
		cache = NewCache(0, 0)
	}
	return &Service{
		gateway:  gateway,
		limiter:  limiter,
		sink:     sink,
		profiles: profiles,
		cache:    cache,
	}
}

// Generate runs the full non-streaming cycle. Generation-layer failures are
// never surfaced: the gateway terminates in the local pool, so the only
// errors are inbound-safety, validation, and quota.
func (s *Service) Generate(ctx context.Context, req Request) (*Response, error) {
	meta, degraded, err := s.preflight(ctx, req)
	if err != nil {
		return nil, err
	}

	providerReq := s.buildProviderRequest(req)

	if degraded {
		result, err := s.gateway.GenerateFallback(ctx, providerReq)
		if err != nil {
			return nil, err
		}
		s.limiter.Record(ctx, req.UserID, result.TokensUsed)
		meta.Provider = result.Provider
		return &Response{Suggestions: result.Suggestions, Meta: *meta}, nil
	}

	cacheKey := fmt.Sprintf("%s|%s|%s", req.Language, providerReq.Mood, req.Content)
	if cached, ok := s.cache.Get(cacheKey); ok {
		s.limiter.Record(ctx, req.UserID, 0)
		meta.Provider = cached.Provider
		return &Response{Suggestions: cached.Suggestions, Meta: *meta}, nil
	}

	result, err := s.gateway.Generate(ctx, providerReq)
	if err != nil {
		return nil, err
	}

	s.cache.Put(cacheKey, *result)
	s.limiter.Record(ctx, req.UserID, result.TokensUsed)

	meta.Provider = result.Provider
	return &Response{Suggestions: result.Suggestions, Meta: *meta}, nil
}

// GenerateStream mirrors Generate but yields raw text chunks. The assembled
// message must still pass through ScreenOutput before being persisted.
func (s *Service) GenerateStream(ctx context.Context, req Request) (*schema.StreamReader[string], *Meta, error) {
	meta, degraded, err := s.preflight(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	providerReq := s.buildProviderRequest(req)

	var stream *schema.StreamReader[string]
	var providerName string
	if degraded {
		stream, err = s.gateway.GenerateFallbackStream(ctx, providerReq)
		providerName = provider.LocalName
	} else {
		stream, providerName, err = s.gateway.GenerateStream(ctx, providerReq)
	}
	if err != nil {
		return nil, nil, err
	}

	// Streamed token counts are unknown up front; the call itself is what
	// the quota window counts.
	s.limiter.Record(ctx, req.UserID, 0)

	meta.Provider = providerName
	return stream, meta, nil
}

// GenerateChatStream streams a free-form companion reply instead of the
// structured suggestion payload. Preflight, degradation and quota handling
// match GenerateStream.
func (s *Service) GenerateChatStream(ctx context.Context, req Request) (*schema.StreamReader[string], *Meta, error) {
	meta, degraded, err := s.preflight(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	providerReq := s.buildProviderRequest(req)
	providerReq.System = buildChatSystemPrompt(s.profileFor(req.Language), state.StageForCount(len(req.History)), providerReq.Mood)

	var stream *schema.StreamReader[string]
	var providerName string
	if degraded {
		stream, err = s.gateway.GenerateFallbackStream(ctx, providerReq)
		providerName = provider.LocalName
	} else {
		stream, providerName, err = s.gateway.GenerateStream(ctx, providerReq)
	}
	if err != nil {
		return nil, nil, err
	}

	s.limiter.Record(ctx, req.UserID, 0)

	meta.Provider = providerName
	return stream, meta, nil
}

// ScreenOutput applies the safety filter to a fully-assembled streamed
// message before it is appended to conversation history.
func (s *Service) ScreenOutput(text string) safety.Verdict {
	return safety.Check(text)
}

// preflight runs validation, the inbound safety gate, crisis detection and
// the rate limiter. It returns the partially-filled meta and whether the
// call must degrade to the local pool.
func (s *Service) preflight(ctx context.Context, req Request) (*Meta, bool, error) {
	if len(req.Content) > MaxContentLength {
		return nil, false, ErrContentTooLong
	}

	// Crisis detection runs before the safety gate: the emergency overlay
	// and telemetry fire even when the request is about to be rejected.
	level := crisis.Detect(req.Content)
	if level > crisis.LevelNone {
		s.recordCrisis(ctx, req.UserID, level, crisis.Snippet(req.Content))
	}

	if verdict := safety.Check(req.Content); verdict.Unsafe {
		return nil, false, &UnsafeContentError{Reason: verdict.Reason, CrisisLevel: level}
	}

	meta := &Meta{}
	if level > crisis.LevelNone {
		meta.CrisisLevel = level
		meta.ShowEmergency = true
	}

	decision := s.limiter.Check(ctx, req.UserID)
	meta.RateLimit = &decision
	if !decision.Allowed {
		return nil, false, &RateLimitError{Decision: decision}
	}
	return meta, decision.Degraded, nil
}

func (s *Service) buildProviderRequest(req Request) provider.Request {
	m, ok := mood.Parse(req.Mood)
	if !ok {
		m = mood.Classify(req.Content)
	}

	stage := state.StageForCount(len(req.History))
	prof := s.profileFor(req.Language)

	return provider.Request{
		Language: req.Language,
		Mood:     m,
		Content:  req.Content,
		History:  req.History,
		System:   buildSystemPrompt(prof, stage, m),
	}
}

func (s *Service) profileFor(language string) profile.Profile {
	prof, _ := s.profiles.FindByLanguage(language)
	return prof
}

// recordCrisis persists the signal best-effort; failures are logged and
// never block or fail the response.
func (s *Service) recordCrisis(ctx context.Context, userID string, level int, snippet string) {
	rec := telemetry.CrisisRecord{
		UserID:      userID,
		Level:       level,
		Description: snippet,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.sink.AppendCrisis(ctx, rec); err != nil {
		log.Printf("[suggest] failed to record crisis signal: %v", err)
	}
}

// IsInputError reports whether err should map to a 4xx rather than a 5xx.
func IsInputError(err error) bool {
	var unsafeErr *UnsafeContentError
	var rateErr *RateLimitError
	return errors.Is(err, ErrContentTooLong) || errors.As(err, &unsafeErr) || errors.As(err, &rateErr)
}
