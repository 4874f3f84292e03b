// Package keypool schedules a bounded set of shared API credentials across
// concurrent callers: least-recently-used selection, rate-limit cooldowns and
// bounded failover on dispatch.
package keypool

import "time"

// Outcome classifies the result of one external call made with a credential.
// The scheduler never inspects provider responses itself; the caller maps the
// raw API error to an Outcome and reports it back.
type Outcome int

const (
	Success Outcome = iota
	RateLimited
	AuthFailure
	TransientError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RateLimited:
		return "rate_limited"
	case AuthFailure:
		return "auth_failure"
	case TransientError:
		return "transient_error"
	default:
		return "unknown"
	}
}

// Credential pairs a secret token with the backend model it authorizes.
// Identity is the secret itself; several credentials may serve the same model.
type Credential struct {
	Secret        string    `json:"secret" validate:"required"`
	Model         string    `json:"model"`
	LastUsedAt    time.Time `json:"last_used_at"`
	CooldownUntil time.Time `json:"cooldown_until"`
	Failures      int       `json:"failures"`
}

// Disabled reports whether the credential was taken out of rotation by an
// auth failure. Only an administrative reset brings it back.
func (c *Credential) Disabled() bool {
	return c.CooldownUntil.Equal(disabledUntil)
}

// CredentialStatus is the diagnostic view of one pool entry. The secret is
// redacted so status output can be logged or displayed safely.
type CredentialStatus struct {
	Secret        string    `json:"secret"`
	Model         string    `json:"model"`
	LastUsedAt    time.Time `json:"last_used_at"`
	CooldownUntil time.Time `json:"cooldown_until"`
	Failures      int       `json:"failures"`
	Disabled      bool      `json:"disabled"`
}

// Redact keeps enough of a secret to identify it in diagnostics.
func Redact(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
