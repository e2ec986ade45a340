package store

import (
	"database/sql"
	"fmt"
	"time"

	"streamhub/internal/model"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

const subscriptionCols = `id, user_id, stripe_customer_id, stripe_subscription_id, plan, status, current_period_end, created_at, updated_at`

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.PlanSubscription, error) {
	var sub model.PlanSubscription
	err := scanner.Scan(&sub.ID, &sub.UserID, &sub.StripeCustomerID, &sub.StripeSubscriptionID,
		&sub.Plan, &sub.Status, &sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Upsert creates or replaces the single subscription row for a user.
func (s *SubscriptionStore) Upsert(userID int64, customerID, subscriptionID, plan, status string, periodEnd *time.Time) (*model.PlanSubscription, error) {
	_, err := s.db.Exec(
		`INSERT INTO plan_subscriptions (user_id, stripe_customer_id, stripe_subscription_id, plan, status, current_period_end, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id) DO UPDATE SET
		   stripe_customer_id = excluded.stripe_customer_id,
		   stripe_subscription_id = excluded.stripe_subscription_id,
		   plan = excluded.plan,
		   status = excluded.status,
		   current_period_end = excluded.current_period_end,
		   updated_at = CURRENT_TIMESTAMP`,
		userID, customerID, subscriptionID, plan, status, periodEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert subscription: %w", err)
	}
	return s.GetByUser(userID)
}

func (s *SubscriptionStore) GetByUser(userID int64) (*model.PlanSubscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM plan_subscriptions WHERE user_id = ?`, userID)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) GetByStripeSubscription(subscriptionID string) (*model.PlanSubscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM plan_subscriptions WHERE stripe_subscription_id = ?`, subscriptionID)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by stripe id: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) UpdateStatus(subscriptionID, status string, periodEnd *time.Time) error {
	_, err := s.db.Exec(
		`UPDATE plan_subscriptions SET status = ?, current_period_end = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE stripe_subscription_id = ?`,
		status, periodEnd, subscriptionID,
	)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	return nil
}
