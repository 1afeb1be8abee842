package storage

import (
	"context"
	"sync"
	"time"
)

// expireOption mirrors the redis SET/GETEX modifiers scripts may pass.
type expireOption struct {
	ex *int64
	px *int64
	xx bool
	nx bool
}

// ttl returns the expiry to apply; EX wins over PX.
func (o expireOption) ttl() time.Duration {
	if o.ex != nil {
		return time.Duration(*o.ex) * time.Second
	}
	if o.px != nil {
		return time.Duration(*o.px) * time.Millisecond
	}
	return 0
}

// Store is the key/value backend of the kv builtin. found is false for missing keys.
type Store interface {
	Get(ctx context.Context, key string) (val string, found bool, err error)
	Set(ctx context.Context, key, val string, opt expireOption) (bool, error)
	GetEx(ctx context.Context, key string, opt expireOption) (val string, found bool, err error)
	Del(ctx context.Context, keys ...string) (int64, error)
}

type memoryEntry struct {
	val      string
	deadline time.Time
}

// MemoryStore is an in-process Store for hosts without redis.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]memoryEntry
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) live(key string) (memoryEntry, bool) {
	e, ok := m.data[key]
	if !ok {
		return e, false
	}
	if !e.deadline.IsZero() && !m.now().Before(e.deadline) {
		delete(m.data, key)
		return e, false
	}
	return e, true
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	return e.val, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, val string, opt expireOption) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.live(key)
	if opt.nx && exists || !opt.nx && opt.xx && !exists {
		return false, nil
	}
	e := memoryEntry{val: val}
	if ttl := opt.ttl(); ttl > 0 {
		e.deadline = m.now().Add(ttl)
	}
	m.data[key] = e
	return true, nil
}

func (m *MemoryStore) GetEx(_ context.Context, key string, opt expireOption) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return "", false, nil
	}
	if ttl := opt.ttl(); ttl > 0 {
		e.deadline = m.now().Add(ttl)
		m.data[key] = e
	}
	return e.val, true, nil
}

func (m *MemoryStore) Del(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.live(k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}
