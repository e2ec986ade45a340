package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"streamhub/internal/auth"
	"streamhub/internal/billing"
	"streamhub/internal/locale"
	"streamhub/internal/store"
)

type BillingHandler struct {
	stripeClient      *billing.Client
	userStore         *store.UserStore
	subscriptionStore *store.SubscriptionStore
	giftCardStore     *store.GiftCardStore
	logger            *slog.Logger
}

func NewBillingHandler(
	sc *billing.Client,
	us *store.UserStore,
	ss *store.SubscriptionStore,
	gcs *store.GiftCardStore,
	logger *slog.Logger,
) *BillingHandler {
	return &BillingHandler{
		stripeClient:      sc,
		userStore:         us,
		subscriptionStore: ss,
		giftCardStore:     gcs,
		logger:            logger,
	}
}

type checkoutRequest struct {
	Interval string `json:"interval"` // "monthly" or "annual"
}

// CreateCheckout handles POST /api/billing/checkout. It returns the hosted
// checkout URL for a premium plan.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	customerID, err := h.ensureCustomer(userID)
	if err != nil {
		h.logger.Error("ensure stripe customer", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start checkout")
		return
	}

	url, err := h.stripeClient.CreateSubscriptionCheckout(userID, customerID, h.stripeClient.PriceIDForPlan(req.Interval))
	if err != nil {
		h.logger.Error("create subscription checkout", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start checkout")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"url": url})
}

type giftCardCheckoutRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// CreateGiftCardCheckout handles POST /api/billing/gift-cards/checkout. The
// card itself is issued by the webhook once payment completes.
func (h *BillingHandler) CreateGiftCardCheckout(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req giftCardCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.AmountCents < 500 || req.AmountCents > 50000 {
		writeError(w, http.StatusBadRequest, "amount must be between 500 and 50000 cents")
		return
	}
	if !locale.CurrencySupported(req.Currency) {
		writeError(w, http.StatusBadRequest, "unsupported currency code")
		return
	}

	customerID, err := h.ensureCustomer(userID)
	if err != nil {
		h.logger.Error("ensure stripe customer", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start checkout")
		return
	}

	url, err := h.stripeClient.CreateGiftCardCheckout(userID, customerID, req.AmountCents, req.Currency)
	if err != nil {
		h.logger.Error("create gift card checkout", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start checkout")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"url": url})
}

type redeemGiftCardRequest struct {
	Code string `json:"code"`
}

// RedeemGiftCard handles POST /api/billing/gift-cards/redeem. A code can be
// claimed exactly once.
func (h *BillingHandler) RedeemGiftCard(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req redeemGiftCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	card, err := h.giftCardStore.Redeem(req.Code, userID)
	if errors.Is(err, store.ErrGiftCardNotFound) {
		writeError(w, http.StatusNotFound, "gift card not found")
		return
	}
	if errors.Is(err, store.ErrGiftCardRedeemed) {
		writeError(w, http.StatusConflict, "gift card already redeemed")
		return
	}
	if err != nil {
		h.logger.Error("redeem gift card", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to redeem gift card")
		return
	}
	writeData(w, http.StatusOK, card)
}

// GetSubscription handles GET /api/billing/subscription
func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	sub, err := h.subscriptionStore.GetByUser(userID)
	if err != nil {
		h.logger.Error("get subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "no subscription")
		return
	}
	writeData(w, http.StatusOK, sub)
}

type portalRequest struct {
	ReturnURL string `json:"return_url"`
}

// Portal handles POST /api/billing/portal
func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req portalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReturnURL == "" {
		writeError(w, http.StatusBadRequest, "return_url is required")
		return
	}

	sub, err := h.subscriptionStore.GetByUser(userID)
	if err != nil || sub == nil {
		writeError(w, http.StatusNotFound, "no subscription")
		return
	}

	url, err := h.stripeClient.CreateBillingPortalSession(sub.StripeCustomerID, req.ReturnURL)
	if err != nil {
		h.logger.Error("create billing portal session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to open billing portal")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"url": url})
}

// ensureCustomer returns the user's Stripe customer ID, creating one when the
// user has never been through billing.
func (h *BillingHandler) ensureCustomer(userID int64) (string, error) {
	sub, err := h.subscriptionStore.GetByUser(userID)
	if err != nil {
		return "", err
	}
	if sub != nil && sub.StripeCustomerID != "" {
		return sub.StripeCustomerID, nil
	}

	user, err := h.userStore.GetByID(userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", errors.New("user not found")
	}
	return h.stripeClient.CreateCustomer(user.Email)
}
