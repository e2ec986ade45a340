package store

import (
	"database/sql"
	"errors"
	"fmt"

	"streamhub/internal/model"
)

// ErrInsufficientPoints is returned when a redemption costs more than the
// viewer's balance.
var ErrInsufficientPoints = errors.New("insufficient points")

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var active int

	err := scanner.Scan(&r.ID, &r.Title, &r.Description, &r.PointCost, &active, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.Active = active != 0
	return &r, nil
}

const rewardCols = `id, title, description, point_cost, active, created_at`

func (s *RewardStore) Create(title, description string, pointCost int, active bool) (*model.Reward, error) {
	var a int
	if active {
		a = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO rewards (title, description, point_cost, active) VALUES (?, ?, ?, ?)`,
		title, description, pointCost, a,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// List returns all rewards, active first, then by title.
func (s *RewardStore) List() ([]model.Reward, error) {
	rows, err := s.db.Query(`SELECT ` + rewardCols + ` FROM rewards ORDER BY active DESC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Update(id int64, title, description string, pointCost int, active bool) (*model.Reward, error) {
	var a int
	if active {
		a = 1
	}
	_, err := s.db.Exec(
		`UPDATE rewards SET title = ?, description = ?, point_cost = ?, active = ? WHERE id = ?`,
		title, description, pointCost, a, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	return nil
}

// AddPoints appends an earn entry to the point ledger.
func (s *RewardStore) AddPoints(userID int64, points int, reason string, streamID *int64) error {
	_, err := s.db.Exec(
		`INSERT INTO point_ledger (user_id, delta, reason, stream_id) VALUES (?, ?, ?, ?)`,
		userID, points, reason, streamID,
	)
	if err != nil {
		return fmt.Errorf("add points: %w", err)
	}
	return nil
}

// Redeem spends points on a reward inside a transaction: checks the balance,
// records the redemption, and appends the spend to the ledger.
func (s *RewardStore) Redeem(rewardID, userID int64) (*model.RewardRedemption, error) {
	reward, err := s.GetByID(rewardID)
	if err != nil {
		return nil, err
	}
	if reward == nil || !reward.Active {
		return nil, fmt.Errorf("reward %d not available", rewardID)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin redeem tx: %w", err)
	}
	defer tx.Rollback()

	var balance int
	err = tx.QueryRow(
		`SELECT COALESCE(SUM(delta), 0) FROM point_ledger WHERE user_id = ?`, userID,
	).Scan(&balance)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	if balance < reward.PointCost {
		return nil, ErrInsufficientPoints
	}

	result, err := tx.Exec(
		`INSERT INTO reward_redemptions (reward_id, user_id, points_spent) VALUES (?, ?, ?)`,
		rewardID, userID, reward.PointCost,
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	redemptionID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO point_ledger (user_id, delta, reason) VALUES (?, ?, ?)`,
		userID, -reward.PointCost, "reward_redemption",
	)
	if err != nil {
		return nil, fmt.Errorf("insert spend entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit redeem tx: %w", err)
	}

	var redemption model.RewardRedemption
	err = s.db.QueryRow(
		`SELECT id, reward_id, user_id, points_spent, redeemed_at FROM reward_redemptions WHERE id = ?`,
		redemptionID,
	).Scan(&redemption.ID, &redemption.RewardID, &redemption.RedeemedBy, &redemption.PointsSpent, &redemption.RedeemedAt)
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return &redemption, nil
}

// GetBalance returns the point ledger summary for a user.
func (s *RewardStore) GetBalance(userID int64) (*model.PointBalance, error) {
	var b model.PointBalance
	var lastEarned sql.NullTime
	err := s.db.QueryRow(
		`SELECT u.id, u.username,
		        COALESCE((SELECT SUM(delta) FROM point_ledger WHERE user_id = u.id AND delta > 0), 0),
		        COALESCE((SELECT -SUM(delta) FROM point_ledger WHERE user_id = u.id AND delta < 0), 0),
		        (SELECT COUNT(*) FROM point_ledger WHERE user_id = u.id),
		        (SELECT MAX(created_at) FROM point_ledger WHERE user_id = u.id AND delta > 0)
		 FROM users u WHERE u.id = ?`, userID,
	).Scan(&b.UserID, &b.Username, &b.TotalEarned, &b.TotalSpent, &b.LedgerEntries, &lastEarned)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get point balance: %w", err)
	}
	b.Balance = b.TotalEarned - b.TotalSpent
	if lastEarned.Valid {
		t := lastEarned.Time
		b.LastEarnedAt = &t
	}
	return &b, nil
}

// Leaderboard returns balances for all users, highest balance first.
func (s *RewardStore) Leaderboard(limit int) ([]model.PointBalance, error) {
	rows, err := s.db.Query(
		`SELECT u.id, u.username,
		        COALESCE((SELECT SUM(delta) FROM point_ledger WHERE user_id = u.id AND delta > 0), 0) AS earned,
		        COALESCE((SELECT -SUM(delta) FROM point_ledger WHERE user_id = u.id AND delta < 0), 0) AS spent,
		        (SELECT COUNT(*) FROM point_ledger WHERE user_id = u.id),
		        (SELECT MAX(created_at) FROM point_ledger WHERE user_id = u.id AND delta > 0)
		 FROM users u ORDER BY earned - spent DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var balances []model.PointBalance
	for rows.Next() {
		var b model.PointBalance
		var lastEarned sql.NullTime
		if err := rows.Scan(&b.UserID, &b.Username, &b.TotalEarned, &b.TotalSpent, &b.LedgerEntries, &lastEarned); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		b.Balance = b.TotalEarned - b.TotalSpent
		if lastEarned.Valid {
			t := lastEarned.Time
			b.LastEarnedAt = &t
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}
