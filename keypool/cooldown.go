package keypool

import "time"

// disabledUntil marks a credential knocked out by an auth failure. It sorts
// after any realistic cooldown and survives a persistence round trip.
var disabledUntil = time.Date(9999, time.January, 1, 0, 0, 0, 0, time.UTC)

const maxShiftAmount = 30 // cap at 2^30 to prevent overflow

// CooldownPolicy decides when a rate-limited credential becomes eligible
// again. Each consecutive failure doubles the window, up to a factor cap and
// an absolute bound.
type CooldownPolicy struct {
	// Base scales the window; a single failure already waits 2*Base.
	Base time.Duration
	// Max bounds the window regardless of failure count.
	Max time.Duration
	// CapFactor caps the exponent: window = Base * 2^min(failures, CapFactor).
	CapFactor int
}

// DefaultCooldownPolicy matches one rate-limit window of the usual hosted
// API tiers: a one-second base, never backing off more than ten minutes.
func DefaultCooldownPolicy() CooldownPolicy {
	return CooldownPolicy{
		Base:      time.Second,
		Max:       10 * time.Minute,
		CapFactor: 6,
	}
}

// Eligible reports whether the credential may be selected at now.
func (p CooldownPolicy) Eligible(c *Credential, now time.Time) bool {
	return !now.Before(c.CooldownUntil)
}

// Window computes the cooldown duration after the given consecutive failure
// count. failures is the counter value including the failure being handled.
func (p CooldownPolicy) Window(failures int) time.Duration {
	shift := failures
	if shift > p.CapFactor {
		shift = p.CapFactor
	}
	if shift > maxShiftAmount {
		shift = maxShiftAmount
	}
	d := p.Base * time.Duration(1<<shift)
	if d > p.Max {
		d = p.Max
	}
	return d
}

// extendCooldown moves cooldown_until forward, never backward: a stale
// rate-limit signal cannot shorten a window set by a fresher one.
func extendCooldown(c *Credential, until time.Time) {
	if until.After(c.CooldownUntil) {
		c.CooldownUntil = until
	}
}
