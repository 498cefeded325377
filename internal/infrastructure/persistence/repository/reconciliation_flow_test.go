package repository

import (
	"context"
	"testing"

	"github.com/garyjia/invoice-reconciler/internal/application/service"
	"github.com/garyjia/invoice-reconciler/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopServiceLogger struct{}

func (nopServiceLogger) Info(string, ...interface{})  {}
func (nopServiceLogger) Error(string, ...interface{}) {}

func TestReconciliationFlowOnSQLite(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	logger := nopServiceLogger{}
	locks := service.NewTenantLocker()

	tenants := service.NewTenantService(repos.tenants, repos.vendors, logger)
	invoices := service.NewInvoiceService(repos.invoices, repos.vendors, logger)
	txns := service.NewBankTransactionService(repos.txns, repos.idempotency, repos.tx, locks, logger)
	recon := service.NewReconciliationService(
		repos.tenants, repos.invoices, repos.txns, repos.matches, repos.tx,
		nil, locks, service.DefaultReconciliationConfig(), logger,
	)

	tenant, err := tenants.CreateTenant(ctx, "Acme Holdings")
	require.NoError(t, err)

	invoiceDate := day(2024, 1, 10)
	inv, err := invoices.CreateInvoice(ctx, tenant.ID, service.CreateInvoiceInput{
		InvoiceNumber: "INV-100",
		Amount:        amount("150.00"),
		InvoiceDate:   &invoiceDate,
		Description:   "Office supplies",
	})
	require.NoError(t, err)

	items := []service.ImportTransactionInput{
		{ExternalID: "bank-1", PostedAt: day(2024, 1, 11), Amount: amount("150.00"), Description: "Office supplies"},
		{ExternalID: "bank-2", PostedAt: day(2024, 3, 1), Amount: amount("9.99"), Description: "Coffee"},
	}
	imported, err := txns.Import(ctx, tenant.ID, items, "import-1")
	require.NoError(t, err)
	assert.Equal(t, 2, imported.Imported)

	replay, err := txns.Import(ctx, tenant.ID, items, "import-1")
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, 2, replay.Imported)

	first, err := recon.Reconcile(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, first.Matches, 1)
	proposal := first.Matches[0]
	assert.Equal(t, inv.ID, proposal.InvoiceID)
	assert.Equal(t, entity.MatchStatusProposed, proposal.Status)
	assert.True(t, proposal.Score.GreaterThan(amount("0.9")))

	second, err := recon.Reconcile(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, second.Matches, 1)
	assert.Equal(t, int64(1), second.ClearedProposals)
	assert.Equal(t, proposal.Pair(), second.Matches[0].Pair())

	confirmed, err := recon.ConfirmMatch(ctx, tenant.ID, second.Matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entity.MatchStatusConfirmed, confirmed.Match.Status)
	assert.Equal(t, entity.InvoiceStatusMatched, confirmed.InvoiceStatus)

	stored, err := repos.invoices.GetByID(ctx, tenant.ID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusMatched, stored.Status)

	third, err := recon.Reconcile(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, third.Matches)
	assert.Equal(t, 0, third.InvoicesConsidered)

	all, err := recon.ListMatches(ctx, tenant.ID, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, entity.MatchStatusConfirmed, all[0].Status)
}

func TestReconcileRollbackKeepsPriorProposalsOnSQLite(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	repos.seedTenant(t, "t1")
	d := day(2024, 1, 10)
	repos.seedInvoice(t, &entity.Invoice{ID: "inv-1", TenantID: "t1", Amount: amount("150.00"), InvoiceDate: &d, Description: "Office supplies"})
	for _, id := range []string{"txn-1", "txn-2", "txn-3"} {
		repos.seedTxn(t, &entity.BankTransaction{ID: id, TenantID: "t1", ExternalID: "ext-" + id, PostedAt: d, Amount: amount("150.00"), Description: "Office supplies"})
	}

	recon := service.NewReconciliationService(
		repos.tenants, repos.invoices, repos.txns, repos.matches, repos.tx,
		nil, service.NewTenantLocker(), service.DefaultReconciliationConfig(), nopServiceLogger{},
	)
	first, err := recon.Reconcile(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, first.Matches, 3)

	_, err = repos.db.ExecContext(ctx, `
		CREATE TRIGGER block_match_insert BEFORE INSERT ON match_candidates
		BEGIN SELECT RAISE(ABORT, 'insert blocked'); END`)
	require.NoError(t, err)

	_, err = recon.Reconcile(ctx, "t1")
	require.ErrorContains(t, err, "persist proposals")

	status := entity.MatchStatusProposed
	remaining, err := repos.matches.List(ctx, "t1", &status)
	require.NoError(t, err)
	require.Len(t, remaining, 3)
	ids := map[string]bool{}
	for _, m := range first.Matches {
		ids[m.ID] = true
	}
	for _, m := range remaining {
		assert.True(t, ids[m.ID], "unexpected proposal %s", m.ID)
	}
}
