// Package limiter throttles repeated failed logins per (email, client IP).
package limiter

import (
	"context"
	"crypto/sha256"
	"strings"
	"sync"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, email string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error)
}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}

// normalize folds emails so "A@x" and "a@x" share a counter.
func normalize(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Memory is an in-process Limiter used with the in-memory repositories.
type Memory struct {
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time

	mu    sync.Mutex
	state map[string]*memState
}

type memState struct {
	fails        int
	updatedAt    time.Time
	blockedUntil time.Time
}

var _ Limiter = (*Memory)(nil)

// NewMemory constructs an in-memory limiter.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{window: window, maxFails: maxFails, blockFor: blockFor, now: time.Now, state: map[string]*memState{}}
}

func memKey(email string, ipHash []byte) string { return normalize(email) + "|" + string(ipHash) }

// Allow reports whether login is currently allowed and a retry-after duration.
func (m *Memory) Allow(_ context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.state[memKey(email, ipHash)]
	if !ok {
		return true, 0, nil
	}
	if now := m.now(); st.blockedUntil.After(now) {
		return false, st.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success resets counters for (email, ip).
func (m *Memory) Success(_ context.Context, email string, ipHash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, memKey(email, ipHash))
	return nil
}

// Failure records a failed attempt; reaching maxFails inside the window blocks for blockFor.
func (m *Memory) Failure(_ context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	k := memKey(email, ipHash)
	st, ok := m.state[k]
	if !ok {
		st = &memState{}
		m.state[k] = st
	}
	if now.Sub(st.updatedAt) > m.window {
		st.fails = 0
	}
	st.fails++
	st.updatedAt = now
	if st.fails >= m.maxFails {
		st.blockedUntil = now.Add(m.blockFor)
		return true, m.blockFor, nil
	}
	return false, 0, nil
}
