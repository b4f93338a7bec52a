package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/clawdbot/platform/provisioning-service/internal/config"
	"github.com/clawdbot/platform/provisioning-service/internal/models"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
)

// BillingService creates checkout sessions and reconciles Stripe webhook
// events onto subscription records. It is the only writer of subscriptions.
type BillingService struct {
	subs          SubscriptionStore
	webhookSecret string
	appBaseURL    string
}

// NewBillingService creates a billing service and configures the Stripe SDK
func NewBillingService(cfg *config.Config, subs SubscriptionStore) *BillingService {
	stripe.Key = cfg.Stripe.SecretKey
	return &BillingService{
		subs:          subs,
		webhookSecret: cfg.Stripe.WebhookSecret,
		appBaseURL:    cfg.Stripe.AppBaseURL,
	}
}

// CreateCheckoutSession starts a subscription checkout for a plan and returns
// the hosted checkout URL
func (s *BillingService) CreateCheckoutSession(ctx context.Context, userID, email, planKey, currency string) (string, error) {
	plan, ok := models.Plans[planKey]
	if !ok {
		return "", fmt.Errorf("unknown plan %q", planKey)
	}

	if currency != "usd" {
		currency = "mxn"
	}
	amount := plan.PriceMXN
	if currency == "usd" {
		amount = plan.PriceUSD
	}

	params := &stripe.CheckoutSessionParams{
		CustomerEmail:      stripe.String(email),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("ClawdBot " + plan.Name),
					},
					UnitAmount: stripe.Int64(amount),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String("month"),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.appBaseURL + "/dashboard?checkout=success"),
		CancelURL:  stripe.String(s.appBaseURL + "/pricing?checkout=cancelled"),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	params.AddMetadata("plan", planKey)

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	log.Printf("[Billing] Checkout session created for user %s (plan: %s)", userID, planKey)
	return sess.URL, nil
}

// GetSubscription retrieves a user's subscription
func (s *BillingService) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	return s.subs.GetByUserID(ctx, userID)
}

// VerifyWebhook authenticates a raw webhook payload against the signing
// secret. Nothing is processed before this passes. The signature is the only
// check: the SDK's API-version gate is disabled, the endpoint's pinned
// version need not track the SDK's release train.
func (s *BillingService) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
}

// HandleEvent maps a verified billing event onto subscription records.
// Unhandled event types are ignored.
func (s *BillingService) HandleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.updated":
		return s.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	default:
		return nil
	}
}

func (s *BillingService) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("unmarshal checkout session: %w", err)
	}

	userID := sess.Metadata["user_id"]
	plan := sess.Metadata["plan"]
	if userID == "" || plan == "" {
		log.Printf("[Billing] checkout.session.completed without user metadata, ignoring")
		return nil
	}

	sub := &models.Subscription{
		ID:     uuid.New().String(),
		UserID: userID,
		Plan:   plan,
		Status: models.SubscriptionStatusActive,
	}
	if sess.Customer != nil {
		sub.StripeCustomerID = &sess.Customer.ID
	}
	if sess.Subscription != nil {
		sub.StripeSubscriptionID = &sess.Subscription.ID
	}

	if err := s.subs.Upsert(ctx, sub); err != nil {
		return err
	}

	log.Printf("[Billing] Subscription activated for user %s (plan: %s)", userID, plan)
	return nil
}

func (s *BillingService) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}

	var periodEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}

	return s.subs.UpdateByStripeSubscriptionID(ctx, sub.ID, string(sub.Status), periodEnd)
}

func (s *BillingService) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}

	return s.subs.UpdateByStripeSubscriptionID(ctx, sub.ID, models.SubscriptionStatusCancelled, nil)
}
