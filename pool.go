// This file re-exports keypool types so callers of the facade never need to
// import the keypool package directly.
package promptulate

import "github.com/longsihua2026/promptulate/keypool"

type (
	// Credential pairs a secret token with the backend model it authorizes.
	Credential = keypool.Credential

	// CredentialStatus is the redacted diagnostic view returned by ListStatus.
	CredentialStatus = keypool.CredentialStatus

	// Outcome is the caller's classification of one external call.
	Outcome = keypool.Outcome

	// CallFunc is the externally supplied operation run with an acquired
	// credential.
	CallFunc = keypool.CallFunc
)

const (
	Success        = keypool.Success
	RateLimited    = keypool.RateLimited
	AuthFailure    = keypool.AuthFailure
	TransientError = keypool.TransientError
)

// Error classification helpers for typed scheduler errors.
var (
	IsDuplicate      = keypool.IsDuplicate
	IsNotFound       = keypool.IsNotFound
	IsExhausted      = keypool.IsExhausted
	IsDispatchFailed = keypool.IsDispatchFailed
)

// StateSchema returns the JSON Schema of the persisted state file format.
var StateSchema = keypool.StateSchema
