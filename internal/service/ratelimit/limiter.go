// Package ratelimit bounds generation calls per user over a trailing window.
package ratelimit

import (
	"context"
	"log"
	"time"

	"github.com/ilyasfares/sakina/backend/internal/telemetry"
)

// Decision is the limiter verdict for one prospective generation call.
type Decision struct {
	Allowed       bool `json:"allowed"`
	Degraded      bool `json:"degraded,omitempty"`
	Count         int  `json:"count"`
	Max           int  `json:"max"`
	WindowMinutes int  `json:"windowMinutes"`
	RetryAfterSec int  `json:"retryAfterSeconds,omitempty"`
}

// Limiter counts usage records in the trailing window. It owns no storage of
// its own; the usage sink is the single source of truth so fallback-path
// calls stay visible to the window.
type Limiter struct {
	store  telemetry.Store
	max    int
	window time.Duration
	bypass bool
	now    func() time.Time
}

// New builds a limiter over the usage sink. bypass keeps requests flowing in
// dev setups but callers must degrade them to the local pool.
func New(store telemetry.Store, max, windowMinutes int, bypass bool) *Limiter {
	if max <= 0 {
		max = 20
	}
	if windowMinutes <= 0 {
		windowMinutes = 60
	}
	return &Limiter{
		store:  store,
		max:    max,
		window: time.Duration(windowMinutes) * time.Minute,
		bypass: bypass,
		now:    time.Now,
	}
}

// Check evaluates the window for userID without recording anything. If the
// usage log is unreadable the limiter fails open: availability wins over
// strict quota enforcement.
func (l *Limiter) Check(ctx context.Context, userID string) Decision {
	windowMinutes := int(l.window / time.Minute)
	decision := Decision{Allowed: true, Max: l.max, WindowMinutes: windowMinutes}

	count, err := l.store.CountUsageSince(ctx, userID, l.now().Add(-l.window))
	if err != nil {
		log.Printf("[ratelimit] usage log unreadable, failing open: %v", err)
		return decision
	}

	decision.Count = count
	if count < l.max {
		return decision
	}

	if l.bypass {
		// Over quota in dev mode: allow, but the caller must serve the
		// local pool instead of a paid provider.
		decision.Degraded = true
		return decision
	}

	decision.Allowed = false
	decision.RetryAfterSec = int(l.window / time.Second)
	return decision
}

// Record appends one usage event so the window stays accurate. Failures are
// logged only; recording is best-effort.
func (l *Limiter) Record(ctx context.Context, userID string, tokensUsed int) {
	rec := telemetry.UsageRecord{UserID: userID, TokensUsed: tokensUsed, CreatedAt: l.now().UTC()}
	if err := l.store.AppendUsage(ctx, rec); err != nil {
		log.Printf("[ratelimit] failed to append usage record: %v", err)
	}
}
