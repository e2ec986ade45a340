package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"streamhub/internal/billing"
	"streamhub/internal/email"
	"streamhub/internal/store"
)

type WebhookHandler struct {
	stripeClient      *billing.Client
	subscriptionStore *store.SubscriptionStore
	giftCardStore     *store.GiftCardStore
	userStore         *store.UserStore
	mailer            *email.Client // nil when email is not configured
	logger            *slog.Logger
}

func NewWebhookHandler(
	sc *billing.Client,
	ss *store.SubscriptionStore,
	gcs *store.GiftCardStore,
	us *store.UserStore,
	mailer *email.Client,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		stripeClient:      sc,
		subscriptionStore: ss,
		giftCardStore:     gcs,
		userStore:         us,
		mailer:            mailer,
		logger:            logger,
	}
}

// HandleStripeWebhook handles POST /api/billing/webhook. Signature
// verification happens before any event is looked at.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	event, err := h.stripeClient.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(event)
	case "invoice.paid":
		h.handleInvoicePaid(event)
	case "invoice.payment_failed":
		h.handleInvoicePaymentFailed(event)
	case "customer.subscription.updated":
		h.handleSubscriptionUpdated(event)
	case "customer.subscription.deleted":
		h.handleSubscriptionDeleted(event)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleCheckoutCompleted(event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.logger.Error("webhook: unmarshal checkout session", "error", err)
		return
	}

	userID, err := strconv.ParseInt(sess.ClientReferenceID, 10, 64)
	if err != nil {
		h.logger.Error("webhook: checkout session missing client reference", "session", sess.ID)
		return
	}

	if sess.Metadata["purchase_type"] == "gift_card" {
		h.issueGiftCard(sess, userID)
		return
	}

	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	subscriptionID := ""
	if sess.Subscription != nil {
		subscriptionID = sess.Subscription.ID
	}

	if _, err := h.subscriptionStore.Upsert(userID, customerID, subscriptionID, "premium", "active", nil); err != nil {
		h.logger.Error("webhook: upsert subscription", "error", err)
		return
	}
	h.logger.Info("webhook: checkout completed", "user_id", userID, "subscription", subscriptionID)
}

// issueGiftCard mints the card only after payment settles; the buyer gets
// the code out of band.
func (h *WebhookHandler) issueGiftCard(sess stripe.CheckoutSession, userID int64) {
	currency := string(sess.Currency)
	if currency == "" {
		currency = "usd"
	}

	card, err := h.giftCardStore.Create(sess.AmountTotal, currency, &userID)
	if err != nil {
		h.logger.Error("webhook: create gift card", "error", err)
		return
	}
	h.logger.Info("webhook: gift card issued", "card_id", card.ID, "purchased_by", userID)

	if h.mailer != nil {
		buyer, err := h.userStore.GetByID(userID)
		if err != nil || buyer == nil {
			h.logger.Error("webhook: look up gift card buyer", "user_id", userID, "error", err)
			return
		}
		go func() {
			if err := h.mailer.SendGiftCardReceipt(buyer.Email, card.Code, card.InitialCents, card.Currency); err != nil {
				h.logger.Error("webhook: send gift card receipt", "error", err)
			}
		}()
	}
}

func subscriptionIDFromInvoice(invoice stripe.Invoice) string {
	if invoice.Parent != nil &&
		invoice.Parent.SubscriptionDetails != nil &&
		invoice.Parent.SubscriptionDetails.Subscription != nil {
		return invoice.Parent.SubscriptionDetails.Subscription.ID
	}
	return ""
}

func (h *WebhookHandler) handleInvoicePaid(event stripe.Event) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("webhook: unmarshal invoice", "error", err)
		return
	}

	subID := subscriptionIDFromInvoice(invoice)
	if subID == "" {
		return
	}

	periodEnd := time.Unix(invoice.PeriodEnd, 0).UTC()
	if err := h.subscriptionStore.UpdateStatus(subID, "active", &periodEnd); err != nil {
		h.logger.Error("webhook: update subscription status", "error", err)
	}
}

func (h *WebhookHandler) handleInvoicePaymentFailed(event stripe.Event) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("webhook: unmarshal invoice", "error", err)
		return
	}

	subID := subscriptionIDFromInvoice(invoice)
	if subID == "" {
		return
	}

	if err := h.subscriptionStore.UpdateStatus(subID, "past_due", nil); err != nil {
		h.logger.Error("webhook: update subscription status", "error", err)
	}
}

func (h *WebhookHandler) handleSubscriptionUpdated(event stripe.Event) {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		h.logger.Error("webhook: unmarshal subscription", "error", err)
		return
	}

	if err := h.subscriptionStore.UpdateStatus(stripeSub.ID, string(stripeSub.Status), nil); err != nil {
		h.logger.Error("webhook: update subscription status", "error", err)
	}
}

func (h *WebhookHandler) handleSubscriptionDeleted(event stripe.Event) {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		h.logger.Error("webhook: unmarshal subscription", "error", err)
		return
	}

	if err := h.subscriptionStore.UpdateStatus(stripeSub.ID, "canceled", nil); err != nil {
		h.logger.Error("webhook: update subscription status", "error", err)
	}
}
