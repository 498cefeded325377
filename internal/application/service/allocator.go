package service

import (
	"context"
	"sort"

	"github.com/garyjia/invoice-reconciler/internal/domain/entity"
	"github.com/garyjia/invoice-reconciler/internal/domain/scoring"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// scoredPair is an (invoice, transaction) combination that cleared the threshold
type scoredPair struct {
	invoice *entity.Invoice
	txn     *entity.BankTransaction
	score   scoring.MatchScore
}

// allocationInput is the tenant snapshot one reconciliation run works from
type allocationInput struct {
	invoices      []*entity.Invoice
	transactions  []*entity.BankTransaction
	confirmedInvs map[string]bool
	confirmedTxns map[string]bool
	// decided holds pairs a user already confirmed or rejected; they are never re-proposed
	decided map[entity.Pair]bool
}

type allocator struct {
	threshold  decimal.Decimal
	perInvoice int
	workers    int
}

// shortlist scores every eligible pair and keeps the top candidates of each invoice.
// Invoices are scored concurrently; results are collected by invoice index so the
// returned pool does not depend on scheduling.
func (a *allocator) shortlist(ctx context.Context, in allocationInput) ([]scoredPair, error) {
	txnInputs := make([]scoring.TransactionInput, len(in.transactions))
	for i, txn := range in.transactions {
		txnInputs[i] = scoring.TransactionInputFrom(txn)
	}

	lists := make([][]scoredPair, len(in.invoices))

	g, gctx := errgroup.WithContext(ctx)
	if a.workers > 0 {
		g.SetLimit(a.workers)
	}
	for i, inv := range in.invoices {
		if in.confirmedInvs[inv.ID] {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lists[i] = a.shortlistInvoice(inv, in, txnInputs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pool []scoredPair
	for _, list := range lists {
		pool = append(pool, list...)
	}
	return pool, nil
}

func (a *allocator) shortlistInvoice(inv *entity.Invoice, in allocationInput, txnInputs []scoring.TransactionInput) []scoredPair {
	invInput := scoring.InvoiceInputFrom(inv)

	var candidates []scoredPair
	for i, txn := range in.transactions {
		if in.confirmedTxns[txn.ID] {
			continue
		}
		if in.decided[entity.Pair{InvoiceID: inv.ID, TransactionID: txn.ID}] {
			continue
		}

		result := scoring.Score(invInput, txnInputs[i])
		if result.Total.LessThan(a.threshold) {
			continue
		}
		candidates = append(candidates, scoredPair{invoice: inv, txn: txn, score: result})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if c := candidates[i].score.Total.Cmp(candidates[j].score.Total); c != 0 {
			return c > 0
		}
		return candidates[i].txn.ID < candidates[j].txn.ID
	})
	if len(candidates) > a.perInvoice {
		candidates = candidates[:a.perInvoice]
	}
	return candidates
}

// allocate walks the pooled shortlists best-first and lets each transaction be
// claimed once. Ties break on invoice id then transaction id, so the outcome is
// independent of input order. The result is in acceptance order.
func (a *allocator) allocate(pool []scoredPair, claimed map[string]bool) []scoredPair {
	sorted := make([]scoredPair, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rankBefore(sorted[i], sorted[j])
	})

	claimedTxns := make(map[string]bool, len(claimed))
	for id := range claimed {
		claimedTxns[id] = true
	}
	perInvoice := make(map[string]int)

	var accepted []scoredPair
	for _, c := range sorted {
		if claimedTxns[c.txn.ID] {
			continue
		}
		if perInvoice[c.invoice.ID] >= a.perInvoice {
			continue
		}
		claimedTxns[c.txn.ID] = true
		perInvoice[c.invoice.ID]++
		accepted = append(accepted, c)
	}
	return accepted
}

func rankBefore(a, b scoredPair) bool {
	if c := a.score.Total.Cmp(b.score.Total); c != 0 {
		return c > 0
	}
	if a.invoice.ID != b.invoice.ID {
		return a.invoice.ID < b.invoice.ID
	}
	return a.txn.ID < b.txn.ID
}
