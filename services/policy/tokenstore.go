package policy

import (
	"sync"
	"time"
)

// TokenStore tracks issued token ids so consumption can be single-use.
// Expiry is checked lazily at consumption time; tokens are short-lived and
// low-cardinality, so there is no background sweep.
type TokenStore struct {
	mu     sync.Mutex
	issued map[string]*tokenState
}

type tokenState struct {
	expiresAt time.Time
	consumed  bool
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{issued: make(map[string]*tokenState)}
}

// Issue records a freshly minted token id with its expiry.
func (s *TokenStore) Issue(jti string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[jti] = &tokenState{expiresAt: expiresAt}
	s.sweepLocked(time.Now())
}

// ConsumeResult is the outcome of an atomic check-and-mark attempt.
type ConsumeResult int

const (
	ConsumeOK ConsumeResult = iota
	ConsumeUnknown
	ConsumeExpired
	ConsumeAlreadyUsed
)

// Consume atomically checks and marks a token id as used. A concurrently
// replayed id cannot be consumed twice: exactly one caller observes
// ConsumeOK.
func (s *TokenStore) Consume(jti string, now time.Time) ConsumeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.issued[jti]
	if !ok {
		return ConsumeUnknown
	}
	if state.consumed {
		return ConsumeAlreadyUsed
	}
	if now.After(state.expiresAt) {
		delete(s.issued, jti)
		return ConsumeExpired
	}
	state.consumed = true
	return ConsumeOK
}

// Pending returns the number of tracked, unconsumed, unexpired token ids.
func (s *TokenStore) Pending(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, state := range s.issued {
		if !state.consumed && !now.After(state.expiresAt) {
			n++
		}
	}
	return n
}

// sweepLocked drops entries long past expiry so abandoned tokens do not
// accumulate. Caller holds the lock. The grace period keeps recently expired
// ids around so a late presentation reports "expired" rather than "unknown".
func (s *TokenStore) sweepLocked(now time.Time) {
	const grace = 10 * time.Minute
	for jti, state := range s.issued {
		if now.Sub(state.expiresAt) > grace {
			delete(s.issued, jti)
		}
	}
}
