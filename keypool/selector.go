package keypool

import (
	"fmt"
	"time"

	"github.com/longsihua2026/promptulate/utils"
)

// Selector picks the best available credential for a requested model:
// least-recently-used among those whose cooldown has elapsed, with insertion
// order breaking ties so selection is reproducible.
type Selector struct {
	store  *Store
	policy CooldownPolicy
	logger utils.Logger
	now    func() time.Time
}

func NewSelector(store *Store, policy CooldownPolicy, logger utils.Logger) *Selector {
	return &Selector{
		store:  store,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// SelectAndReserve returns the eligible credential with the oldest
// last_used_at and reserves it by bumping that timestamp in the same atomic
// step. Two concurrent selections therefore never pick the same credential
// while at least two are eligible. An empty model matches any credential.
//
// A caller that abandons the dispatch afterwards does not get the
// reservation rolled back; the bump stands, like a completed attempt.
func (s *Selector) SelectAndReserve(model string) (Credential, error) {
	now := s.now()

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var best *Credential
	for _, c := range s.store.order {
		if model != "" && c.Model != model {
			continue
		}
		if !s.policy.Eligible(c, now) {
			continue
		}
		// Strict Before keeps the earliest-inserted credential on ties.
		if best == nil || c.LastUsedAt.Before(best.LastUsedAt) {
			best = c
		}
	}

	if best == nil {
		return Credential{}, NewPoolError(ErrorTypeExhausted,
			fmt.Sprintf("no eligible credential for model %q", model), nil)
	}

	best.LastUsedAt = now
	s.logger.Debug("Credential selected", "secret", Redact(best.Secret), "model", best.Model)
	return *best, nil
}
