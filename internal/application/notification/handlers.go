// Package notification turns committed reconciliation events into chat messages.
package notification

import (
	"context"
	"fmt"

	"github.com/garyjia/invoice-reconciler/internal/application/dispatcher"
	"github.com/garyjia/invoice-reconciler/internal/application/port"
	"github.com/garyjia/invoice-reconciler/internal/domain/event"
)

const handlerName = "chat-notification"

// Register subscribes the notifier to reconciliation and confirmation events
func Register(d dispatcher.Dispatcher, notifier port.Notifier) {
	d.Subscribe(event.TypeReconciliationCompleted, handlerName, handle(notifier, reconciliationMessage))
	d.Subscribe(event.TypeMatchConfirmed, handlerName, handle(notifier, confirmationMessage))
}

func handle(notifier port.Notifier, format func(*event.Event) string) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		text := format(evt)
		if text == "" {
			return nil
		}
		return notifier.Notify(ctx, text)
	}
}

// reconciliationMessage is empty for runs that proposed nothing
func reconciliationMessage(evt *event.Event) string {
	proposed := evt.GetPayloadInt(event.KeyProposed)
	if proposed == 0 {
		return ""
	}
	return fmt.Sprintf("Reconciliation for tenant %s proposed %d match(es) across %d open invoice(s).",
		evt.TenantID, proposed, evt.GetPayloadInt(event.KeyInvoicesConsidered))
}

func confirmationMessage(evt *event.Event) string {
	return fmt.Sprintf("Match %s confirmed for tenant %s: invoice %s paired with bank transaction %s (score %s, %d sibling proposal(s) rejected).",
		evt.GetPayloadString(event.KeyMatchID),
		evt.TenantID,
		evt.GetPayloadString(event.KeyInvoiceID),
		evt.GetPayloadString(event.KeyTransactionID),
		evt.GetPayloadString(event.KeyScore),
		evt.GetPayloadInt(event.KeyRejectedSiblings),
	)
}
