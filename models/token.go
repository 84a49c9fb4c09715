package models

import "time"

// VerificationToken is a short-lived, single-use credential binding one
// identity to one exact operation instance (name plus canonical argument
// hash). Minted by the policy engine on an allow decision, consumed by the
// tool server on invocation, or discarded unused when the TTL lapses.
type VerificationToken struct {
	ID         string    `json:"id"` // jti
	Signed     string    `json:"-"`  // compact JWS, never serialized outward
	IdentityID string    `json:"identity_id"`
	Role       Role      `json:"role"`
	Operation  string    `json:"operation"`
	ArgsHash   string    `json:"args_hash"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the token's window has lapsed at the given instant.
func (t *VerificationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
