package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyIntent_Activate(t *testing.T) {
	paidAt := time.Unix(100, 0).UTC()
	e := Entitlement{UserID: "user-1", BillingCustomerID: "cus_a"}

	e.ApplyIntent(Intent{
		Kind:           IntentActivate,
		CustomerID:     "cus_a",
		SubscriptionID: "sub_1",
		PaidAt:         &paidAt,
		OccurredAt:     100,
	})

	assert.True(t, e.IsPremium)
	assert.Equal(t, "sub_1", e.BillingSubscriptionID)
	assert.Equal(t, int64(100), e.LastEventAt)
	require.NotNil(t, e.LastPaidAt)
	assert.Equal(t, paidAt, *e.LastPaidAt)
}

func TestApplyIntent_DeactivateClearsSubscriptionOnly(t *testing.T) {
	paidAt := time.Unix(100, 0).UTC()
	e := Entitlement{
		UserID:                "user-1",
		BillingCustomerID:     "cus_a",
		BillingSubscriptionID: "sub_1",
		IsPremium:             true,
		LastPaidAt:            &paidAt,
		LastEventAt:           100,
	}

	e.ApplyIntent(Intent{
		Kind:       IntentDeactivate,
		CustomerID: "cus_a",
		OccurredAt: 200,
	})

	assert.False(t, e.IsPremium)
	assert.Empty(t, e.BillingSubscriptionID)
	assert.Equal(t, int64(200), e.LastEventAt)
	// Привязка клиента и история оплат не затираются
	assert.Equal(t, "cus_a", e.BillingCustomerID)
	assert.NotNil(t, e.LastPaidAt)
}

func TestApplyIntent_RenewWithoutPaidAtKeepsPrevious(t *testing.T) {
	paidAt := time.Unix(100, 0).UTC()
	e := Entitlement{UserID: "user-1", IsPremium: true, LastPaidAt: &paidAt, LastEventAt: 100}

	e.ApplyIntent(Intent{
		Kind:           IntentRenew,
		CustomerID:     "cus_a",
		SubscriptionID: "sub_1",
		OccurredAt:     200,
	})

	assert.True(t, e.IsPremium)
	require.NotNil(t, e.LastPaidAt)
	assert.Equal(t, paidAt, *e.LastPaidAt)
	assert.Equal(t, int64(200), e.LastEventAt)
}
