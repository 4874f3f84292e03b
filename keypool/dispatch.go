package keypool

import (
	"context"
	"fmt"
	"time"

	"github.com/longsihua2026/promptulate/utils"
)

// DefaultMaxAttempts bounds the credential failover loop of one dispatch.
const DefaultMaxAttempts = 3

// CallFunc is the externally supplied operation run once a credential is
// acquired. It returns the call result, the caller's classification of how
// the call went, and the underlying error for anything but Success.
type CallFunc func(ctx context.Context, cred Credential) (string, Outcome, error)

// Dispatcher wraps an outbound call with credential acquisition, failover
// across candidates and usage-state updates. It is the only component that
// mutates credential state as a side effect of a real call outcome.
type Dispatcher struct {
	store     *Store
	selector  *Selector
	policy    CooldownPolicy
	logger    utils.Logger
	persister Persister

	maxAttempts   int
	writeThrough  bool
	modelFallback bool
	now           func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxAttempts bounds the failover loop; values below 1 are ignored.
func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n >= 1 {
			d.maxAttempts = n
		}
	}
}

// WithWriteThrough flushes pool state to the persister after every
// state-changing update instead of only on explicit Flush calls.
func WithWriteThrough(p Persister) DispatcherOption {
	return func(d *Dispatcher) {
		d.persister = p
		d.writeThrough = true
	}
}

// WithModelFallback lets a dispatch for a specific model fall back to
// credentials of any model once that model's partition is exhausted.
func WithModelFallback() DispatcherOption {
	return func(d *Dispatcher) {
		d.modelFallback = true
	}
}

func NewDispatcher(store *Store, policy CooldownPolicy, logger utils.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:       store,
		selector:    NewSelector(store, policy, logger),
		policy:      policy,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs call with a credential acquired for model, failing over to a
// different candidate on RateLimited, AuthFailure and TransientError
// outcomes. It returns a PoolExhausted error when no eligible credential
// exists and a DispatchFailed error when the attempt budget is spent without
// a success. An empty model accepts credentials of any model.
func (d *Dispatcher) Dispatch(ctx context.Context, model string, call CallFunc) (string, error) {
	var lastErr error

	for attempt := 0; attempt < d.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		cred, err := d.acquire(model)
		if err != nil {
			return "", err
		}
		d.flush()

		result, outcome, callErr := call(ctx, cred)
		d.logger.Debug("Call completed",
			"secret", Redact(cred.Secret),
			"outcome", outcome.String(),
			"attempt", attempt+1)

		switch outcome {
		case Success:
			d.recordSuccess(cred.Secret)
			d.flush()
			return result, nil
		case RateLimited:
			d.recordRateLimit(cred.Secret)
			d.flush()
			lastErr = callErr
		case AuthFailure:
			d.recordAuthFailure(cred.Secret)
			d.flush()
			lastErr = callErr
		case TransientError:
			// The credential is not at fault; leave its state alone.
			lastErr = callErr
		}
	}

	return "", NewPoolError(ErrorTypeDispatchFailed,
		fmt.Sprintf("no success after %d attempts", d.maxAttempts), lastErr)
}

func (d *Dispatcher) acquire(model string) (Credential, error) {
	cred, err := d.selector.SelectAndReserve(model)
	if err == nil {
		return cred, nil
	}
	if d.modelFallback && model != "" {
		if cred, fbErr := d.selector.SelectAndReserve(""); fbErr == nil {
			d.logger.Debug("Model partition exhausted, falling back", "model", model)
			return cred, nil
		}
	}
	return Credential{}, err
}

// ResetCredential clears cooldown and failure state, bringing an
// auth-disabled credential back into rotation. Administrative use only.
func (d *Dispatcher) ResetCredential(secret string) error {
	err := d.store.Update(secret, func(c *Credential) {
		c.CooldownUntil = time.Time{}
		c.Failures = 0
	})
	if err != nil {
		return err
	}
	d.logger.Info("Credential reset", "secret", Redact(secret))
	d.flush()
	return nil
}

func (d *Dispatcher) recordSuccess(secret string) {
	_ = d.store.Update(secret, func(c *Credential) {
		c.Failures = 0
		c.CooldownUntil = time.Time{}
	})
}

func (d *Dispatcher) recordRateLimit(secret string) {
	now := d.now()
	_ = d.store.Update(secret, func(c *Credential) {
		if c.Disabled() {
			// A stale rate-limit signal must not revive a disabled credential.
			return
		}
		c.Failures++
		window := d.policy.Window(c.Failures)
		extendCooldown(c, now.Add(window))
		d.logger.Info("Credential cooling down",
			"secret", Redact(secret),
			"failures", c.Failures,
			"window", window)
	})
}

func (d *Dispatcher) recordAuthFailure(secret string) {
	_ = d.store.Update(secret, func(c *Credential) {
		c.Failures++
		c.CooldownUntil = disabledUntil
		d.logger.Warn("Credential disabled after auth failure", "secret", Redact(secret))
	})
}

// flush persists the pool after a state change when write-through is on.
// Persistence is best effort: a write failure is logged and in-memory
// scheduling carries on.
func (d *Dispatcher) flush() {
	if !d.writeThrough || d.persister == nil {
		return
	}
	if err := d.persister.Save(snapshotRecords(d.store)); err != nil {
		d.logger.Error("Failed to persist pool state", "error", err)
	}
}
