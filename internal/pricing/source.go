package pricing

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"vidforge/server/internal/domain"
	"vidforge/server/internal/infra"
)

// Source loads the cost policy from the persisted store with a short cache,
// falling back to the compiled-in policy when the store is empty, unreadable
// or invalid. The resolved policy is handed to callers by value.
type Source struct {
	repo   domain.PolicyRepository
	logger *infra.Logger
	ttl    time.Duration

	mu        sync.Mutex
	cached    CostPolicy
	fetchedAt time.Time
}

// NewSource wires a policy repository with a cache TTL. A nil repo means the
// compiled-in policy is always used.
func NewSource(repo domain.PolicyRepository, logger *infra.Logger, ttl time.Duration) *Source {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Source{repo: repo, logger: logger, ttl: ttl}
}

// Policy returns the current cost policy.
func (s *Source) Policy(ctx context.Context) CostPolicy {
	if s == nil || s.repo == nil {
		return DefaultPolicy()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fetchedAt.IsZero() && time.Since(s.fetchedAt) < s.ttl {
		return s.cached
	}
	s.cached = s.load(ctx)
	s.fetchedAt = time.Now()
	return s.cached
}

func (s *Source) load(ctx context.Context) CostPolicy {
	raw, err := s.repo.FetchCostPolicy(ctx)
	if err != nil {
		s.warn(err, "pricing: fetch cost policy failed, using compiled-in policy")
		return DefaultPolicy()
	}
	if len(raw) == 0 {
		return DefaultPolicy()
	}
	var policy CostPolicy
	if err := json.Unmarshal(raw, &policy); err != nil {
		s.warn(err, "pricing: stored cost policy is not valid JSON, using compiled-in policy")
		return DefaultPolicy()
	}
	if err := policy.Validate(); err != nil {
		s.warn(err, "pricing: stored cost policy is invalid, using compiled-in policy")
		return DefaultPolicy()
	}
	return policy
}

func (s *Source) warn(err error, msg string) {
	if s.logger == nil {
		return
	}
	s.logger.Warn().Err(err).Msg(msg)
}
