package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"

	"github.com/clawdbot/platform/provisioning-service/internal/config"
	"github.com/clawdbot/platform/provisioning-service/internal/models"
)

func newBillingFixture() (*BillingService, *fakeSubscriptionStore) {
	subs := newFakeSubscriptionStore()
	svc := NewBillingService(&config.Config{
		Stripe: config.StripeConfig{
			SecretKey:     "sk_test_dummy",
			WebhookSecret: "whsec_dummy",
			AppBaseURL:    "https://app.example.com",
		},
	}, subs)
	return svc, subs
}

func billingEvent(t *testing.T, eventType string, payload any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleCheckoutCompleted(t *testing.T) {
	t.Parallel()

	svc, subs := newBillingFixture()

	event := billingEvent(t, "checkout.session.completed", map[string]any{
		"metadata":     map[string]string{"user_id": "user-1", "plan": models.PlanPro},
		"customer":     map[string]any{"id": "cus_123"},
		"subscription": map[string]any{"id": "sub_123"},
	})

	require.NoError(t, svc.HandleEvent(context.Background(), event))

	sub, err := subs.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, sub.Plan)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.StripeCustomerID)
	assert.Equal(t, "cus_123", *sub.StripeCustomerID)
	require.NotNil(t, sub.StripeSubscriptionID)
	assert.Equal(t, "sub_123", *sub.StripeSubscriptionID)

	// a replayed delivery lands on the same record
	firstID := sub.ID
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	sub, err = subs.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, firstID, sub.ID)
}

func TestHandleCheckoutCompletedWithoutMetadata(t *testing.T) {
	t.Parallel()

	svc, subs := newBillingFixture()

	event := billingEvent(t, "checkout.session.completed", map[string]any{
		"customer": map[string]any{"id": "cus_123"},
	})

	// sessions not created by this service carry no user metadata and are
	// ignored without error
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Empty(t, subs.subs)
}

func TestHandleSubscriptionUpdated(t *testing.T) {
	t.Parallel()

	svc, subs := newBillingFixture()

	stripeSubID := "sub_123"
	require.NoError(t, subs.Upsert(context.Background(), &models.Subscription{
		ID:                   "local-1",
		UserID:               "user-1",
		Plan:                 models.PlanStarter,
		Status:               models.SubscriptionStatusActive,
		StripeSubscriptionID: &stripeSubID,
	}))

	periodEnd := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	event := billingEvent(t, "customer.subscription.updated", map[string]any{
		"id":                 stripeSubID,
		"status":             "past_due",
		"current_period_end": periodEnd.Unix(),
	})

	require.NoError(t, svc.HandleEvent(context.Background(), event))

	sub, err := subs.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "past_due", sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, periodEnd.Equal(*sub.CurrentPeriodEnd))
}

func TestHandleSubscriptionDeleted(t *testing.T) {
	t.Parallel()

	svc, subs := newBillingFixture()

	stripeSubID := "sub_123"
	require.NoError(t, subs.Upsert(context.Background(), &models.Subscription{
		ID:                   "local-1",
		UserID:               "user-1",
		Plan:                 models.PlanStarter,
		Status:               models.SubscriptionStatusActive,
		StripeSubscriptionID: &stripeSubID,
	}))

	event := billingEvent(t, "customer.subscription.deleted", map[string]any{
		"id": stripeSubID,
	})

	require.NoError(t, svc.HandleEvent(context.Background(), event))

	sub, err := subs.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
}

func TestHandleEventIgnoresUnknownTypes(t *testing.T) {
	t.Parallel()

	svc, subs := newBillingFixture()

	event := billingEvent(t, "invoice.payment_succeeded", map[string]any{"id": "in_123"})

	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Empty(t, subs.subs)
	assert.Empty(t, subs.updates)
}

func TestCreateCheckoutSessionUnknownPlan(t *testing.T) {
	t.Parallel()

	svc, _ := newBillingFixture()

	_, err := svc.CreateCheckoutSession(context.Background(), "user-1", "u@example.com", "enterprise", "mxn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown plan")
}
