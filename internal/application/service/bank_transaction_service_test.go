package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBankTransactionFixture() (*memStore, BankTransactionService) {
	store := newMemStore()
	store.addTenant(tenantA)
	svc := NewBankTransactionService(memTxnRepo{store}, memIdempotencyRepo{store}, store, NewTenantLocker(), &mockLogger{})
	return store, svc
}

func sampleImport() []ImportTransactionInput {
	return []ImportTransactionInput{
		{ExternalID: "bank-1", PostedAt: date(2024, 1, 10), Amount: money("150.00"), Currency: "usd", Description: "Office supplies"},
		{ExternalID: "bank-2", PostedAt: date(2024, 1, 11), Amount: money("75.25"), Description: "Coffee"},
	}
}

func TestImport_StoresTransactions(t *testing.T) {
	store, svc := newBankTransactionFixture()

	result, err := svc.Import(context.Background(), tenantA, sampleImport(), "")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 0, result.Duplicates)
	assert.False(t, result.Replayed)
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "USD", result.Transactions[0].Currency)
	assert.Len(t, store.txns, 2)
}

func TestImport_SkipsKnownExternalIDs(t *testing.T) {
	store, svc := newBankTransactionFixture()
	ctx := context.Background()

	_, err := svc.Import(ctx, tenantA, sampleImport()[:1], "")
	require.NoError(t, err)

	result, err := svc.Import(ctx, tenantA, sampleImport(), "")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Duplicates)
	assert.Len(t, store.txns, 2)
}

func TestImport_IdempotencyKeyReplaysFirstResult(t *testing.T) {
	store, svc := newBankTransactionFixture()
	ctx := context.Background()

	first, err := svc.Import(ctx, tenantA, sampleImport(), "key-1")
	require.NoError(t, err)
	second, err := svc.Import(ctx, tenantA, sampleImport(), "key-1")
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Imported, second.Imported)
	require.Len(t, second.Transactions, len(first.Transactions))
	assert.Equal(t, first.Transactions[0].ID, second.Transactions[0].ID)
	assert.True(t, first.Transactions[0].Amount.Equal(second.Transactions[0].Amount))
	assert.Len(t, store.txns, 2)
}

func TestImport_IdempotencyKeyWithDifferentPayload(t *testing.T) {
	_, svc := newBankTransactionFixture()
	ctx := context.Background()

	_, err := svc.Import(ctx, tenantA, sampleImport(), "key-1")
	require.NoError(t, err)

	changed := sampleImport()
	changed[1].Amount = money("80.00")
	_, err = svc.Import(ctx, tenantA, changed, "key-1")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestImport_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func([]ImportTransactionInput) []ImportTransactionInput
		wantErr error
	}{
		{
			name:    "empty payload",
			mutate:  func([]ImportTransactionInput) []ImportTransactionInput { return nil },
			wantErr: ErrValidation,
		},
		{
			name: "negative amount",
			mutate: func(items []ImportTransactionInput) []ImportTransactionInput {
				items[0].Amount = money("-1.00")
				return items
			},
			wantErr: ErrValidation,
		},
		{
			name: "sub-cent amount",
			mutate: func(items []ImportTransactionInput) []ImportTransactionInput {
				items[0].Amount = money("1.001")
				return items
			},
			wantErr: ErrValidation,
		},
		{
			name: "missing posted_at",
			mutate: func(items []ImportTransactionInput) []ImportTransactionInput {
				items[0].PostedAt = time.Time{}
				return items
			},
			wantErr: ErrValidation,
		},
		{
			name: "bad currency",
			mutate: func(items []ImportTransactionInput) []ImportTransactionInput {
				items[0].Currency = "dollars"
				return items
			},
			wantErr: ErrValidation,
		},
		{
			name: "duplicate external id in payload",
			mutate: func(items []ImportTransactionInput) []ImportTransactionInput {
				items[1].ExternalID = items[0].ExternalID
				return items
			},
			wantErr: ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, svc := newBankTransactionFixture()
			_, err := svc.Import(context.Background(), tenantA, tt.mutate(sampleImport()), "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, store.txns)
		})
	}
}

func TestListTransactions_Pagination(t *testing.T) {
	_, svc := newBankTransactionFixture()
	ctx := context.Background()
	_, err := svc.Import(ctx, tenantA, sampleImport(), "")
	require.NoError(t, err)

	page, err := svc.ListTransactions(ctx, tenantA, 1, 0)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.Limit)

	_, err = svc.ListTransactions(ctx, tenantA, 500, 0)
	assert.ErrorIs(t, err, ErrValidation)
}
