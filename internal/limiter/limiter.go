// Package limiter locks out clients that keep presenting a wrong shared
// token. Attempts are counted per (scope, client) inside a sliding window;
// reaching the threshold blocks the client for a fixed period.
package limiter

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"
)

// Limiter controls token attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether an attempt is currently allowed and an optional retry-after.
	Allow(ctx context.Context, scope string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after an accepted token.
	Success(ctx context.Context, scope string, ipHash []byte) error
	// Failure records a rejected attempt; may place a temporary block.
	Failure(ctx context.Context, scope string, ipHash []byte) (bool, time.Duration, error)
}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}

type key struct {
	scope string
	ip    [sha256.Size]byte
}

type entry struct {
	fails        int
	blockedUntil time.Time
	updatedAt    time.Time
}

// Memory is a process-local Limiter used with the memory driver.
type Memory struct {
	mu       sync.Mutex
	entries  map[key]entry
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

// NewMemory constructs a process-local limiter.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{
		entries:  make(map[key]entry),
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      time.Now,
	}
}

func keyOf(scope string, ipHash []byte) key {
	k := key{scope: scope}
	copy(k.ip[:], ipHash)
	return k
}

// Allow reports whether the client is outside any block.
func (m *Memory) Allow(_ context.Context, scope string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[keyOf(scope, ipHash)]
	if !ok {
		return true, 0, nil
	}
	if now := m.now(); e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success forgets the client.
func (m *Memory) Success(_ context.Context, scope string, ipHash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, keyOf(scope, ipHash))
	return nil
}

// Failure counts a rejected attempt, restarting the count when the previous
// one is older than the window.
func (m *Memory) Failure(_ context.Context, scope string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	k := keyOf(scope, ipHash)
	e := m.entries[k]
	if now.Sub(e.updatedAt) > m.window {
		e.fails = 0
	}
	e.fails++
	e.updatedAt = now
	blocked := e.fails >= m.maxFails
	if blocked {
		e.blockedUntil = now.Add(m.blockFor)
	}
	m.entries[k] = e
	if blocked {
		return true, m.blockFor, nil
	}
	return false, 0, nil
}
