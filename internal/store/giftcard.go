package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"streamhub/internal/model"

	"github.com/google/uuid"
)

var (
	// ErrGiftCardRedeemed is returned when a code has already been claimed.
	ErrGiftCardRedeemed = errors.New("gift card already redeemed")
	// ErrGiftCardNotFound is returned for an unknown code.
	ErrGiftCardNotFound = errors.New("gift card not found")
)

type GiftCardStore struct {
	db *sql.DB
}

func NewGiftCardStore(db *sql.DB) *GiftCardStore {
	return &GiftCardStore{db: db}
}

const giftCardCols = `id, code, initial_cents, balance_cents, currency, purchased_by, redeemed_by, redeemed_at, created_at`

func scanGiftCard(scanner interface{ Scan(...any) error }) (*model.GiftCard, error) {
	var g model.GiftCard
	err := scanner.Scan(&g.ID, &g.Code, &g.InitialCents, &g.BalanceCents, &g.Currency,
		&g.PurchasedBy, &g.RedeemedBy, &g.RedeemedAt, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Create issues a gift card with a fresh uppercase code.
func (s *GiftCardStore) Create(amountCents int64, currency string, purchasedBy *int64) (*model.GiftCard, error) {
	code := strings.ToUpper(uuid.NewString())

	result, err := s.db.Exec(
		`INSERT INTO gift_cards (code, initial_cents, balance_cents, currency, purchased_by)
		 VALUES (?, ?, ?, ?, ?)`,
		code, amountCents, amountCents, currency, purchasedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert gift card: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *GiftCardStore) GetByID(id int64) (*model.GiftCard, error) {
	row := s.db.QueryRow(`SELECT `+giftCardCols+` FROM gift_cards WHERE id = ?`, id)
	g, err := scanGiftCard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get gift card: %w", err)
	}
	return g, nil
}

func (s *GiftCardStore) GetByCode(code string) (*model.GiftCard, error) {
	row := s.db.QueryRow(`SELECT `+giftCardCols+` FROM gift_cards WHERE code = ?`, strings.ToUpper(code))
	g, err := scanGiftCard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get gift card by code: %w", err)
	}
	return g, nil
}

// Redeem claims a gift card for a user. A card redeems exactly once; the
// guarded UPDATE makes concurrent claims lose cleanly.
func (s *GiftCardStore) Redeem(code string, userID int64) (*model.GiftCard, error) {
	card, err := s.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, ErrGiftCardNotFound
	}

	result, err := s.db.Exec(
		`UPDATE gift_cards SET redeemed_by = ?, redeemed_at = ? WHERE code = ? AND redeemed_by IS NULL`,
		userID, time.Now().UTC(), strings.ToUpper(code),
	)
	if err != nil {
		return nil, fmt.Errorf("redeem gift card: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return nil, ErrGiftCardRedeemed
	}
	return s.GetByCode(code)
}

func (s *GiftCardStore) ListByPurchaser(userID int64) ([]model.GiftCard, error) {
	rows, err := s.db.Query(
		`SELECT `+giftCardCols+` FROM gift_cards WHERE purchased_by = ? ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list gift cards: %w", err)
	}
	defer rows.Close()

	var cards []model.GiftCard
	for rows.Next() {
		g, err := scanGiftCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gift card: %w", err)
		}
		cards = append(cards, *g)
	}
	return cards, rows.Err()
}
