package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/invoice-reconciler/internal/application/port"
	"github.com/garyjia/invoice-reconciler/internal/domain/entity"
	"github.com/garyjia/invoice-reconciler/internal/domain/event"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory backing store shared by the fake repositories.
// WithTransaction snapshots every table and restores it when fn fails.
type memStore struct {
	mu       sync.Mutex
	tenants  map[string]entity.Tenant
	vendors  map[string]entity.Vendor
	invoices map[string]entity.Invoice
	txns     map[string]entity.BankTransaction
	matches  map[string]entity.MatchCandidate
	keys     map[string]entity.IdempotencyKey

	failInvoiceStatusUpdate error
	failMatchCreate         error
}

func newMemStore() *memStore {
	return &memStore{
		tenants:  map[string]entity.Tenant{},
		vendors:  map[string]entity.Vendor{},
		invoices: map[string]entity.Invoice{},
		txns:     map[string]entity.BankTransaction{},
		matches:  map[string]entity.MatchCandidate{},
		keys:     map[string]entity.IdempotencyKey{},
	}
}

type memSnapshot struct {
	tenants  map[string]entity.Tenant
	vendors  map[string]entity.Vendor
	invoices map[string]entity.Invoice
	txns     map[string]entity.BankTransaction
	matches  map[string]entity.MatchCandidate
	keys     map[string]entity.IdempotencyKey
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		tenants:  copyMap(s.tenants),
		vendors:  copyMap(s.vendors),
		invoices: copyMap(s.invoices),
		txns:     copyMap(s.txns),
		matches:  copyMap(s.matches),
		keys:     copyMap(s.keys),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants = snap.tenants
	s.vendors = snap.vendors
	s.invoices = snap.invoices
	s.txns = snap.txns
	s.matches = snap.matches
	s.keys = snap.keys
}

func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// seed helpers

func (s *memStore) addTenant(id string) {
	s.tenants[id] = entity.Tenant{ID: id, Name: "tenant " + id, CreatedAt: time.Now()}
}

func (s *memStore) addInvoice(inv entity.Invoice) {
	if inv.Status == "" {
		inv.Status = entity.InvoiceStatusOpen
	}
	if inv.Currency == "" {
		inv.Currency = "USD"
	}
	s.invoices[inv.ID] = inv
}

func (s *memStore) addTxn(txn entity.BankTransaction) {
	if txn.Currency == "" {
		txn.Currency = "USD"
	}
	s.txns[txn.ID] = txn
}

func (s *memStore) addMatch(m entity.MatchCandidate) {
	s.matches[m.ID] = m
}

func (s *memStore) matchesByStatus(status entity.MatchStatus) []entity.MatchCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.MatchCandidate
	for _, m := range s.matches {
		if m.Status == status {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// tenants

type memTenantRepo struct{ s *memStore }

func (r memTenantRepo) Create(_ context.Context, t *entity.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.tenants {
		if existing.Name == t.Name {
			return port.ErrDuplicate
		}
	}
	r.s.tenants[t.ID] = *t
	return nil
}

func (r memTenantRepo) GetByID(_ context.Context, id string) (*entity.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r memTenantRepo) GetByName(_ context.Context, name string) (*entity.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tenants {
		if t.Name == name {
			t := t
			return &t, nil
		}
	}
	return nil, nil
}

func (r memTenantRepo) List(_ context.Context) ([]*entity.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*entity.Tenant{}
	for _, t := range r.s.tenants {
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// vendors

type memVendorRepo struct{ s *memStore }

func (r memVendorRepo) Create(_ context.Context, v *entity.Vendor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.vendors {
		if existing.TenantID == v.TenantID && existing.Name == v.Name {
			return port.ErrDuplicate
		}
	}
	r.s.vendors[v.ID] = *v
	return nil
}

func (r memVendorRepo) GetByID(_ context.Context, tenantID, id string) (*entity.Vendor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.vendors[id]
	if !ok || v.TenantID != tenantID {
		return nil, nil
	}
	return &v, nil
}

func (r memVendorRepo) ListByTenant(_ context.Context, tenantID string) ([]*entity.Vendor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*entity.Vendor{}
	for _, v := range r.s.vendors {
		if v.TenantID == tenantID {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// invoices

type memInvoiceRepo struct{ s *memStore }

func (r memInvoiceRepo) Create(_ context.Context, inv *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if inv.InvoiceNumber != "" {
		for _, existing := range r.s.invoices {
			if existing.TenantID == inv.TenantID && existing.InvoiceNumber == inv.InvoiceNumber {
				return port.ErrDuplicate
			}
		}
	}
	r.s.invoices[inv.ID] = *inv
	return nil
}

func (r memInvoiceRepo) GetByID(_ context.Context, tenantID, id string) (*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return nil, nil
	}
	return &inv, nil
}

func (r memInvoiceRepo) filtered(tenantID string, f entity.InvoiceFilter) []*entity.Invoice {
	out := []*entity.Invoice{}
	for _, inv := range r.s.invoices {
		if inv.TenantID != tenantID {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if f.VendorID != "" && inv.VendorID != f.VendorID {
			continue
		}
		if f.AmountMin != nil && inv.Amount.LessThan(*f.AmountMin) {
			continue
		}
		if f.AmountMax != nil && inv.Amount.GreaterThan(*f.AmountMax) {
			continue
		}
		inv := inv
		out = append(out, &inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memInvoiceRepo) List(_ context.Context, tenantID string, f entity.InvoiceFilter, limit, offset int) ([]*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.filtered(tenantID, f)
	if offset >= len(all) {
		return []*entity.Invoice{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r memInvoiceRepo) Count(_ context.Context, tenantID string, f entity.InvoiceFilter) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.filtered(tenantID, f)), nil
}

func (r memInvoiceRepo) ListOpen(_ context.Context, tenantID string) ([]*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filtered(tenantID, entity.InvoiceFilter{Status: entity.InvoiceStatusOpen}), nil
}

func (r memInvoiceRepo) UpdateStatus(_ context.Context, tenantID, id string, status entity.InvoiceStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failInvoiceStatusUpdate != nil {
		return r.s.failInvoiceStatusUpdate
	}
	inv, ok := r.s.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return errors.New("invoice not found")
	}
	inv.Status = status
	r.s.invoices[id] = inv
	return nil
}

func (r memInvoiceRepo) Delete(_ context.Context, tenantID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.invoices, id)
	for mid, m := range r.s.matches {
		if m.InvoiceID == id {
			delete(r.s.matches, mid)
		}
	}
	return nil
}

// bank transactions

type memTxnRepo struct{ s *memStore }

func (r memTxnRepo) CreateBatch(_ context.Context, txns []*entity.BankTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range txns {
		r.s.txns[t.ID] = *t
	}
	return nil
}

func (r memTxnRepo) GetByID(_ context.Context, tenantID, id string) (*entity.BankTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.txns[id]
	if !ok || t.TenantID != tenantID {
		return nil, nil
	}
	return &t, nil
}

func (r memTxnRepo) ExistingExternalIDs(_ context.Context, tenantID string, ids []string) (map[string]bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	out := map[string]bool{}
	for _, t := range r.s.txns {
		if t.TenantID == tenantID && wanted[t.ExternalID] {
			out[t.ExternalID] = true
		}
	}
	return out, nil
}

func (r memTxnRepo) ListAll(_ context.Context, tenantID string) ([]*entity.BankTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*entity.BankTransaction{}
	for _, t := range r.s.txns {
		if t.TenantID == tenantID {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memTxnRepo) List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.BankTransaction, error) {
	all, _ := r.ListAll(ctx, tenantID)
	if offset >= len(all) {
		return []*entity.BankTransaction{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// match candidates

type memMatchRepo struct{ s *memStore }

func (r memMatchRepo) CreateBatch(_ context.Context, matches []*entity.MatchCandidate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failMatchCreate != nil {
		return r.s.failMatchCreate
	}
	for _, m := range matches {
		for _, existing := range r.s.matches {
			if existing.TenantID == m.TenantID && existing.Pair() == m.Pair() {
				return port.ErrDuplicate
			}
		}
		r.s.matches[m.ID] = *m
	}
	return nil
}

func (r memMatchRepo) GetByID(_ context.Context, tenantID, id string) (*entity.MatchCandidate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok || m.TenantID != tenantID {
		return nil, nil
	}
	return &m, nil
}

func (r memMatchRepo) List(_ context.Context, tenantID string, status *entity.MatchStatus) ([]*entity.MatchCandidate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*entity.MatchCandidate{}
	for _, m := range r.s.matches {
		if m.TenantID != tenantID || (status != nil && m.Status != *status) {
			continue
		}
		m := m
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Score.Cmp(out[j].Score); c != 0 {
			return c > 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memMatchRepo) confirmed(tenantID string, key func(entity.MatchCandidate) string) map[string]bool {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]bool{}
	for _, m := range r.s.matches {
		if m.TenantID == tenantID && m.Status == entity.MatchStatusConfirmed {
			out[key(m)] = true
		}
	}
	return out
}

func (r memMatchRepo) ConfirmedInvoiceIDs(_ context.Context, tenantID string) (map[string]bool, error) {
	return r.confirmed(tenantID, func(m entity.MatchCandidate) string { return m.InvoiceID }), nil
}

func (r memMatchRepo) ConfirmedTransactionIDs(_ context.Context, tenantID string) (map[string]bool, error) {
	return r.confirmed(tenantID, func(m entity.MatchCandidate) string { return m.BankTransactionID }), nil
}

func (r memMatchRepo) ExistingPairs(_ context.Context, tenantID string) (map[entity.Pair]entity.MatchStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[entity.Pair]entity.MatchStatus{}
	for _, m := range r.s.matches {
		if m.TenantID == tenantID {
			out[m.Pair()] = m.Status
		}
	}
	return out, nil
}

func (r memMatchRepo) DeleteProposed(_ context.Context, tenantID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, m := range r.s.matches {
		if m.TenantID == tenantID && m.Status == entity.MatchStatusProposed {
			delete(r.s.matches, id)
			n++
		}
	}
	return n, nil
}

func (r memMatchRepo) UpdateStatus(_ context.Context, tenantID, id string, status entity.MatchStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok || m.TenantID != tenantID {
		return errors.New("match not found")
	}
	m.Status = status
	r.s.matches[id] = m
	return nil
}

func (r memMatchRepo) RejectProposedSiblings(_ context.Context, tenantID, invoiceID, keepID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, m := range r.s.matches {
		if m.TenantID == tenantID && m.InvoiceID == invoiceID && id != keepID && m.Status == entity.MatchStatusProposed {
			m.Status = entity.MatchStatusRejected
			r.s.matches[id] = m
			n++
		}
	}
	return n, nil
}

// idempotency keys

type memIdempotencyRepo struct{ s *memStore }

func idempotencyMapKey(tenantID, endpoint, key string) string {
	return tenantID + "|" + endpoint + "|" + key
}

func (r memIdempotencyRepo) Get(_ context.Context, tenantID, endpoint, key string) (*entity.IdempotencyKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.keys[idempotencyMapKey(tenantID, endpoint, key)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r memIdempotencyRepo) Create(_ context.Context, rec *entity.IdempotencyKey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := idempotencyMapKey(rec.TenantID, rec.Endpoint, rec.Key)
	if _, ok := r.s.keys[k]; ok {
		return port.ErrDuplicate
	}
	r.s.keys[k] = *rec
	return nil
}

// collaborators

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) DispatchAsync(_ context.Context, evt *event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(t time.Time) *time.Time {
	return &t
}
