package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clawdbot/platform/provisioning-service/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

// Upsert inserts or replaces the subscription for a user. user_id carries a
// unique constraint, so replaying the same checkout event stays one row.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO provisioning.subscriptions (
			id, user_id, plan, status, stripe_customer_id, stripe_subscription_id, current_period_end
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			current_period_end = EXCLUDED.current_period_end
	`

	_, err := r.pool.Exec(ctx, query,
		sub.ID, sub.UserID, sub.Plan, sub.Status,
		sub.StripeCustomerID, sub.StripeSubscriptionID, sub.CurrentPeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	return nil
}

// GetByUserID retrieves a user's subscription
func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	query := `
		SELECT id, user_id, plan, status, stripe_customer_id, stripe_subscription_id,
			   current_period_end, created_at
		FROM provisioning.subscriptions
		WHERE user_id = $1
	`

	sub := &models.Subscription{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&sub.ID, &sub.UserID, &sub.Plan, &sub.Status,
		&sub.StripeCustomerID, &sub.StripeSubscriptionID,
		&sub.CurrentPeriodEnd, &sub.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}

	return sub, nil
}

// UpdateByStripeSubscriptionID updates the status (and period end, when the
// provider supplied one) of the subscription matching a Stripe subscription ID
func (r *SubscriptionRepository) UpdateByStripeSubscriptionID(ctx context.Context, stripeSubID, status string, periodEnd *time.Time) error {
	query := `
		UPDATE provisioning.subscriptions
		SET status = $2,
		    current_period_end = COALESCE($3, current_period_end)
		WHERE stripe_subscription_id = $1
	`
	_, err := r.pool.Exec(ctx, query, stripeSubID, status, periodEnd)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}
