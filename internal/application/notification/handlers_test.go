package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/garyjia/invoice-reconciler/internal/application/dispatcher"
	"github.com/garyjia/invoice-reconciler/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return n.err
}

func TestRegister_SubscribesBothEvents(t *testing.T) {
	d := dispatcher.NewDispatcher()
	Register(d, &recordingNotifier{})

	assert.Equal(t, []string{handlerName}, d.Handlers(event.TypeReconciliationCompleted))
	assert.Equal(t, []string{handlerName}, d.Handlers(event.TypeMatchConfirmed))
}

func TestReconciliationCompleted(t *testing.T) {
	t.Run("sends a summary", func(t *testing.T) {
		notifier := &recordingNotifier{}
		d := dispatcher.NewDispatcher()
		Register(d, notifier)

		err := d.Dispatch(context.Background(), event.NewEvent(event.TypeReconciliationCompleted, "tenant-a", map[string]interface{}{
			event.KeyProposed:           2,
			event.KeyInvoicesConsidered: 5,
		}))
		require.NoError(t, err)

		require.Len(t, notifier.messages, 1)
		assert.Equal(t, "Reconciliation for tenant tenant-a proposed 2 match(es) across 5 open invoice(s).", notifier.messages[0])
	})

	t.Run("stays quiet when nothing was proposed", func(t *testing.T) {
		notifier := &recordingNotifier{}
		d := dispatcher.NewDispatcher()
		Register(d, notifier)

		err := d.Dispatch(context.Background(), event.NewEvent(event.TypeReconciliationCompleted, "tenant-a", map[string]interface{}{
			event.KeyProposed: 0,
		}))
		require.NoError(t, err)
		assert.Empty(t, notifier.messages)
	})
}

func TestMatchConfirmed(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("chat unavailable")}
	d := dispatcher.NewDispatcher()
	Register(d, notifier)

	err := d.Dispatch(context.Background(), event.NewEvent(event.TypeMatchConfirmed, "tenant-a", map[string]interface{}{
		event.KeyMatchID:          "m-1",
		event.KeyInvoiceID:        "inv-1",
		event.KeyTransactionID:    "txn-9",
		event.KeyScore:            "0.9500",
		event.KeyRejectedSiblings: int64(2),
	}))
	require.ErrorContains(t, err, "chat unavailable")

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "Match m-1 confirmed for tenant tenant-a")
	assert.Contains(t, notifier.messages[0], "invoice inv-1 paired with bank transaction txn-9")
	assert.Contains(t, notifier.messages[0], "score 0.9500, 2 sibling proposal(s) rejected")
}
