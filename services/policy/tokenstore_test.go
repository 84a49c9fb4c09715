package policy

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenStore_ConsumeOnce(t *testing.T) {
	store := NewTokenStore()
	now := time.Now()
	store.Issue("tok-1", now.Add(time.Minute))

	assert.Equal(t, ConsumeOK, store.Consume("tok-1", now))
	assert.Equal(t, ConsumeAlreadyUsed, store.Consume("tok-1", now))
}

func TestTokenStore_UnknownToken(t *testing.T) {
	store := NewTokenStore()
	assert.Equal(t, ConsumeUnknown, store.Consume("never-issued", time.Now()))
}

func TestTokenStore_Expiry(t *testing.T) {
	store := NewTokenStore()
	now := time.Now()
	store.Issue("tok-1", now.Add(time.Minute))

	// Expiry is checked lazily at consumption time.
	assert.Equal(t, ConsumeExpired, store.Consume("tok-1", now.Add(2*time.Minute)))
	// An expired token stays dead even if time looks earlier afterwards.
	assert.Equal(t, ConsumeUnknown, store.Consume("tok-1", now))
}

func TestTokenStore_ConcurrentDoubleSpend(t *testing.T) {
	store := NewTokenStore()
	now := time.Now()
	store.Issue("tok-1", now.Add(time.Minute))

	const attempts = 64
	results := make(chan ConsumeResult, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.Consume("tok-1", now)
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for r := range results {
		if r == ConsumeOK {
			ok++
		} else {
			assert.Equal(t, ConsumeAlreadyUsed, r)
		}
	}
	assert.Equal(t, 1, ok, "exactly one consumer wins")
}

func TestTokenStore_Pending(t *testing.T) {
	store := NewTokenStore()
	now := time.Now()

	store.Issue("a", now.Add(time.Minute))
	store.Issue("b", now.Add(time.Minute))
	assert.Equal(t, 2, store.Pending(now))

	store.Consume("a", now)
	assert.Equal(t, 1, store.Pending(now))
	assert.Equal(t, 0, store.Pending(now.Add(2*time.Minute)))
}

func TestTokenStore_SweepKeepsRecentlyExpired(t *testing.T) {
	store := NewTokenStore()
	now := time.Now()

	store.Issue("old", now.Add(-20*time.Minute)) // well past grace
	store.Issue("stale", now.Add(-time.Minute))  // expired, inside grace
	store.Issue("fresh", now.Add(time.Minute))

	// Issuing triggers the sweep; long-dead ids are gone, recent ones report
	// expired rather than unknown.
	assert.Equal(t, ConsumeUnknown, store.Consume("old", now))
	assert.Equal(t, ConsumeExpired, store.Consume("stale", now))
	assert.Equal(t, ConsumeOK, store.Consume("fresh", now))
}
