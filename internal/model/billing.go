package model

import "time"

type GiftCard struct {
	ID           int64      `json:"id"`
	Code         string     `json:"code"`
	InitialCents int64      `json:"initial_cents"`
	BalanceCents int64      `json:"balance_cents"`
	Currency     string     `json:"currency"`
	PurchasedBy  *int64     `json:"purchased_by"`
	RedeemedBy   *int64     `json:"redeemed_by"`
	RedeemedAt   *time.Time `json:"redeemed_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

type PlanSubscription struct {
	ID                   int64      `json:"id"`
	UserID               int64      `json:"user_id"`
	StripeCustomerID     string     `json:"stripe_customer_id"`
	StripeSubscriptionID string     `json:"stripe_subscription_id"`
	Plan                 string     `json:"plan"`
	Status               string     `json:"status"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type ArchiveRun struct {
	ID           int64      `json:"id"`
	StreamID     int64      `json:"stream_id"`
	ObjectKey    string     `json:"object_key"`
	MessageCount int        `json:"message_count"`
	Status       string     `json:"status"`
	Error        string     `json:"error"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}
