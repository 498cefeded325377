package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		want bool
	}{
		{"reconciliation completed", TypeReconciliationCompleted, true},
		{"match confirmed", TypeMatchConfirmed, true},
		{"empty", Type(""), false},
		{"unknown", Type("invoice.deleted"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.IsValid())
		})
	}
	assert.Equal(t, "match.confirmed", TypeMatchConfirmed.String())
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeReconciliationCompleted, "tenant-a", map[string]interface{}{KeyProposed: 2})

	assert.NotEmpty(t, evt.ID)
	assert.NotEmpty(t, evt.CorrelationID)
	assert.Equal(t, "tenant-a", evt.TenantID)
	assert.Equal(t, TypeReconciliationCompleted, evt.Type)
	assert.False(t, evt.Timestamp.IsZero())
	assert.Equal(t, int64(2), evt.GetPayloadInt(KeyProposed))

	other := NewEvent(TypeReconciliationCompleted, "tenant-a", nil)
	assert.NotEqual(t, evt.ID, other.ID)
	assert.NotNil(t, other.Payload)
}

func TestNewEventWithCorrelation(t *testing.T) {
	first := NewEvent(TypeReconciliationCompleted, "tenant-a", nil)
	second := NewEventWithCorrelation(TypeMatchConfirmed, "tenant-a", nil, first.CorrelationID)

	assert.Equal(t, first.CorrelationID, second.CorrelationID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeMatchConfirmed, "tenant-a", map[string]interface{}{KeyMatchID: "m-1"})

	updated := original.WithPayload(KeyScore, "0.9500")

	require.NotSame(t, original, updated)
	assert.Equal(t, original.ID, updated.ID)
	assert.Equal(t, "m-1", updated.GetPayloadString(KeyMatchID))
	assert.Equal(t, "0.9500", updated.GetPayloadString(KeyScore))
	assert.Empty(t, original.GetPayloadString(KeyScore))
}

func TestEvent_PayloadAccessors(t *testing.T) {
	evt := NewEvent(TypeMatchConfirmed, "tenant-a", map[string]interface{}{
		"s":   "text",
		"i":   3,
		"i64": int64(4),
		"f":   float64(5),
		"bad": true,
	})

	assert.Equal(t, "text", evt.GetPayloadString("s"))
	assert.Empty(t, evt.GetPayloadString("i"))
	assert.Empty(t, evt.GetPayloadString("missing"))

	assert.Equal(t, int64(3), evt.GetPayloadInt("i"))
	assert.Equal(t, int64(4), evt.GetPayloadInt("i64"))
	assert.Equal(t, int64(5), evt.GetPayloadInt("f"))
	assert.Zero(t, evt.GetPayloadInt("bad"))
	assert.Zero(t, evt.GetPayloadInt("missing"))
}
