package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// autoDisableThreshold is the consecutive failure count at which a
	// source is disabled. Re-enabling is an operator action; success alone
	// never flips a disabled source back on.
	autoDisableThreshold = 10

	// degradedThreshold is the consecutive failure count at which an active
	// source stops counting as healthy.
	degradedThreshold = 5

	// minSuccessRate is the success rate a source must exceed to count as
	// healthy.
	minSuccessRate = 0.8
)

// Tracker keeps per-source health counters in memory, serialized per source,
// with periodic flushes to the persistent store. Keeping the hot path in
// memory avoids a database row lock on every upstream call.
type Tracker struct {
	mu      sync.RWMutex
	sources map[string]*trackedSource
	logger  zerolog.Logger
}

type trackedSource struct {
	mu     sync.Mutex
	health Health
}

// NewTracker creates an empty health tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		sources: make(map[string]*trackedSource),
		logger:  logger,
	}
}

// source returns the record for code, creating it active on first sight.
func (t *Tracker) source(code string) *trackedSource {
	t.mu.RLock()
	s, ok := t.sources[code]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.sources[code]; ok {
		return s
	}
	s = &trackedSource{health: Health{Source: code, IsActive: true}}
	t.sources[code] = s
	return s
}

// RecordSuccess registers a successful upstream call. Consecutive failures
// reset to zero; a disabled source stays disabled.
func (t *Tracker) RecordSuccess(code string) {
	s := t.source(code)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.health.TotalRequests++
	s.health.LastSuccessAt = &now
	s.health.ConsecutiveFailures = 0
	s.health.StatusMessage = ""
	s.health.UpdatedAt = now
}

// RecordFailure registers a failed upstream call and auto-disables the
// source once the consecutive failure threshold is reached.
func (t *Tracker) RecordFailure(code string, errMsg string) {
	s := t.source(code)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.health.TotalRequests++
	s.health.TotalFailures++
	s.health.ConsecutiveFailures++
	s.health.LastFailureAt = &now
	s.health.StatusMessage = errMsg
	s.health.UpdatedAt = now

	if s.health.ConsecutiveFailures >= autoDisableThreshold && s.health.IsActive {
		s.health.IsActive = false
		t.logger.Error().
			Str("source", code).
			Int("consecutive_failures", s.health.ConsecutiveFailures).
			Msg("source auto-disabled")
	}
}

// Reset re-enables a source and clears its consecutive failure count. This
// is the only path out of the disabled state.
func (t *Tracker) Reset(code string) {
	s := t.source(code)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.health.IsActive = true
	s.health.ConsecutiveFailures = 0
	s.health.StatusMessage = ""
	s.health.UpdatedAt = time.Now().UTC()

	t.logger.Info().Str("source", code).Msg("source health reset")
}

// Get returns a copy of the health record for code. The second return is
// false when the source has never been seen.
func (t *Tracker) Get(code string) (Health, bool) {
	t.mu.RLock()
	s, ok := t.sources[code]
	t.mu.RUnlock()
	if !ok {
		return Health{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health, true
}

// HealthyOrUnknown reports whether the source may be called: either no
// calls have been recorded yet, or the record passes the healthy rule.
func (t *Tracker) HealthyOrUnknown(code string) bool {
	h, ok := t.Get(code)
	if !ok {
		return true
	}
	return h.Healthy()
}

// All returns copies of every tracked health record.
func (t *Tracker) All() []Health {
	t.mu.RLock()
	codes := make([]string, 0, len(t.sources))
	for code := range t.sources {
		codes = append(codes, code)
	}
	t.mu.RUnlock()

	records := make([]Health, 0, len(codes))
	for _, code := range codes {
		if h, ok := t.Get(code); ok {
			records = append(records, h)
		}
	}
	return records
}

// Flush persists a snapshot of every record. Flush errors are logged and
// swallowed; the in-memory state stays authoritative.
func (t *Tracker) Flush(ctx context.Context, repo HealthRepository) {
	for _, h := range t.All() {
		if err := repo.Upsert(ctx, h); err != nil {
			t.logger.Error().Err(err).Str("source", h.Source).Msg("failed to flush adapter health")
		}
	}
}

// StartFlusher flushes the tracker on the given interval until ctx is
// cancelled, with a final flush on the way out.
func (t *Tracker) StartFlusher(ctx context.Context, repo HealthRepository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			t.Flush(flushCtx, repo)
			cancel()
			return
		case <-ticker.C:
			t.Flush(ctx, repo)
		}
	}
}
