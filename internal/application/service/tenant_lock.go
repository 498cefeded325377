package service

import "sync"

// TenantLocker serializes write workflows per tenant inside one process.
// The database write lock covers concurrent processes.
// One mutex is kept per tenant ever seen; entries are never evicted, which
// assumes a bounded tenant set.
type TenantLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTenantLocker creates an empty locker
func NewTenantLocker() *TenantLocker {
	return &TenantLocker{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until the tenant's lock is held and returns its release function
func (l *TenantLocker) Lock(tenantID string) func() {
	l.mu.Lock()
	m, ok := l.locks[tenantID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[tenantID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
