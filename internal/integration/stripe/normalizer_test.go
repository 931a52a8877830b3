package stripe

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/Dhoini/Entitlement-service/internal/domain"
	"github.com/Dhoini/Entitlement-service/pkg/logger"
)

func testEvent(t *testing.T, eventType string, created int64, payload any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return stripe.Event{
		ID:      "evt_test",
		Type:    stripe.EventType(eventType),
		Created: created,
		Data:    &stripe.EventData{Raw: raw},
	}
}

func TestNormalize_CheckoutCompleted(t *testing.T) {
	n := NewNormalizer(logger.New(logger.FATAL))

	event := testEvent(t, EventCheckoutCompleted, 1700000000, map[string]string{
		"customer":     "cus_a",
		"subscription": "sub_1",
	})

	intent, ok := n.Normalize(event)
	require.True(t, ok)
	assert.Equal(t, domain.IntentActivate, intent.Kind)
	assert.Equal(t, "cus_a", intent.CustomerID)
	assert.Equal(t, "sub_1", intent.SubscriptionID)
	assert.Equal(t, int64(1700000000), intent.OccurredAt)
	require.NotNil(t, intent.PaidAt)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), *intent.PaidAt)
}

func TestNormalize_InvoicePaid(t *testing.T) {
	n := NewNormalizer(logger.New(logger.FATAL))

	event := testEvent(t, EventInvoicePaid, 1700000100, map[string]string{
		"customer":     "cus_a",
		"subscription": "sub_1",
	})

	intent, ok := n.Normalize(event)
	require.True(t, ok)
	assert.Equal(t, domain.IntentRenew, intent.Kind)
	assert.Equal(t, "cus_a", intent.CustomerID)
	require.NotNil(t, intent.PaidAt)
}

func TestNormalize_SubscriptionDeleted(t *testing.T) {
	n := NewNormalizer(logger.New(logger.FATAL))

	event := testEvent(t, EventSubscriptionDeleted, 1700000200, map[string]string{
		"id":       "sub_1",
		"customer": "cus_a",
	})

	intent, ok := n.Normalize(event)
	require.True(t, ok)
	assert.Equal(t, domain.IntentDeactivate, intent.Kind)
	assert.Equal(t, "cus_a", intent.CustomerID)
	assert.Empty(t, intent.SubscriptionID)
	assert.Nil(t, intent.PaidAt)
	assert.Equal(t, int64(1700000200), intent.OccurredAt)
}

func TestNormalize_UnknownEventTypeIgnored(t *testing.T) {
	n := NewNormalizer(logger.New(logger.FATAL))

	event := testEvent(t, "charge.refunded", 1700000300, map[string]string{
		"customer": "cus_a",
	})

	_, ok := n.Normalize(event)
	assert.False(t, ok)
}

func TestNormalize_MissingCustomerIgnored(t *testing.T) {
	n := NewNormalizer(logger.New(logger.FATAL))

	for _, eventType := range []string{EventCheckoutCompleted, EventInvoicePaid, EventSubscriptionDeleted} {
		event := testEvent(t, eventType, 1700000400, map[string]string{})
		_, ok := n.Normalize(event)
		assert.False(t, ok, eventType)
	}
}

func TestNormalize_MalformedPayloadIgnored(t *testing.T) {
	n := NewNormalizer(logger.New(logger.FATAL))

	event := stripe.Event{
		ID:      "evt_bad",
		Type:    stripe.EventType(EventCheckoutCompleted),
		Created: 1700000500,
		Data:    &stripe.EventData{Raw: []byte(`{"customer": 42`)},
	}

	_, ok := n.Normalize(event)
	assert.False(t, ok)
}
