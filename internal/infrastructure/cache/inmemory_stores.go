package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
)

// NonceStore issues one-time tokens that guard mutating admin actions
type NonceStore interface {
	Issue(ctx context.Context, subject string, ttl time.Duration) (string, error)
	// Consume returns true exactly once per issued nonce, and only for its subject
	Consume(ctx context.Context, subject, nonce string) (bool, error)
}

// entry is a stored value with expiration
type entry struct {
	value     string
	expiresAt time.Time
}

// ttlMap is a mutex-guarded map whose entries expire. A background loop
// sweeps expired entries until Close.
type ttlMap struct {
	mu        sync.Mutex
	entries   map[string]entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newTTLMap(sweep time.Duration) *ttlMap {
	m := &ttlMap{
		entries:  make(map[string]entry),
		stopChan: make(chan struct{}),
	}
	m.wg.Add(1)
	go m.cleanupLoop(sweep)
	return m
}

// setNX stores value when the key is absent or expired
func (m *ttlMap) setNX(key, value string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && time.Now().Before(e.expiresAt) {
		return false
	}
	m.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	return true
}

func (m *ttlMap) set(key, value string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

// getDel removes the key and returns its value if it had not expired
func (m *ttlMap) getDel(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false
	}
	delete(m.entries, key)
	if time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

// delIf removes the key only while it holds value
func (m *ttlMap) delIf(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && e.value == value {
		delete(m.entries, key)
	}
}

func (m *ttlMap) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *ttlMap) close() {
	m.closeOnce.Do(func() {
		close(m.stopChan)
		m.wg.Wait()
	})
}

func (m *ttlMap) cleanupLoop(every time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *ttlMap) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, key)
		}
	}
}

// ---------------------------------------------------------------------------
// In-memory implementations
// ---------------------------------------------------------------------------

// InMemoryPassLock implements integration.PassLock for a single process
type InMemoryPassLock struct {
	m     *ttlMap
	owner string
}

var _ integration.PassLock = (*InMemoryPassLock)(nil)

// NewInMemoryPassLock creates an in-process pass lock
func NewInMemoryPassLock() *InMemoryPassLock {
	return &InMemoryPassLock{m: newTTLMap(time.Minute), owner: uuid.NewString()}
}

// Acquire returns false when the key is already held
func (l *InMemoryPassLock) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	return l.m.setNX(key, l.owner, ttl), nil
}

// Release frees the key
func (l *InMemoryPassLock) Release(_ context.Context, key string) error {
	l.m.delIf(key, l.owner)
	return nil
}

// Close stops the sweeper
func (l *InMemoryPassLock) Close() error {
	l.m.close()
	return nil
}

// InMemoryNonceStore implements NonceStore for a single process
type InMemoryNonceStore struct {
	m *ttlMap
}

var _ NonceStore = (*InMemoryNonceStore)(nil)

// NewInMemoryNonceStore creates an in-process nonce store
func NewInMemoryNonceStore() *InMemoryNonceStore {
	return &InMemoryNonceStore{m: newTTLMap(5 * time.Minute)}
}

// Issue creates a nonce bound to subject
func (s *InMemoryNonceStore) Issue(_ context.Context, subject string, ttl time.Duration) (string, error) {
	nonce := uuid.NewString()
	s.m.set(nonce, subject, ttl)
	return nonce, nil
}

// Consume returns true exactly once per issued nonce, and only for its subject
func (s *InMemoryNonceStore) Consume(_ context.Context, subject, nonce string) (bool, error) {
	owner, ok := s.m.getDel(nonce)
	return ok && owner == subject, nil
}

// Size returns the number of live or unswept nonces
func (s *InMemoryNonceStore) Size() int {
	return s.m.size()
}

// Close stops the sweeper
func (s *InMemoryNonceStore) Close() error {
	s.m.close()
	return nil
}
