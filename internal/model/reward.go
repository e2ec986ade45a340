package model

import "time"

type Reward struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PointCost   int       `json:"point_cost"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type RewardRedemption struct {
	ID          int64     `json:"id"`
	RewardID    int64     `json:"reward_id"`
	RedeemedBy  *int64    `json:"redeemed_by"`
	PointsSpent int       `json:"points_spent"`
	RedeemedAt  time.Time `json:"redeemed_at"`
}

// PointBalance summarizes a viewer's point ledger. LastEarnedAt is nil for
// viewers who have never earned points.
type PointBalance struct {
	UserID        int64      `json:"user_id"`
	Username      string     `json:"username"`
	TotalEarned   int        `json:"total_earned"`
	TotalSpent    int        `json:"total_spent"`
	Balance       int        `json:"balance"`
	LedgerEntries int        `json:"ledger_entries"`
	LastEarnedAt  *time.Time `json:"last_earned_at,omitempty"`
}
