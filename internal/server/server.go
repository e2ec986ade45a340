// Package server wires the stores, handlers, and chat hub into one HTTP
// router.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"streamhub/internal/archive"
	"streamhub/internal/auth"
	"streamhub/internal/billing"
	"streamhub/internal/chat"
	"streamhub/internal/email"
	"streamhub/internal/handler"
	"streamhub/internal/middleware"
	"streamhub/internal/push"
	"streamhub/internal/store"
)

// Config holds server-level settings.
type Config struct {
	SecureCookies bool
	Experiments   []handler.Experiment
}

type Server struct {
	db          *sql.DB
	hub         *chat.Hub
	issuer      *auth.TokenIssuer
	authH       *handler.AuthHandler
	streamH     *handler.StreamHandler
	preferenceH *handler.PreferenceHandler
	pushH       *handler.PushHandler
	rewardH     *handler.RewardHandler
	billingH    *handler.BillingHandler
	webhookH    *handler.WebhookHandler
	experimentH *handler.ExperimentHandler
	archiveH    *handler.ArchiveHandler

	sessionStore *store.SessionStore
	userStore    *store.UserStore
	messageStore *store.MessageStore
	pushStore    *store.PushStore
	rateLimiter  *middleware.RateLimiter
	notifier     *push.Notifier
	logger       *slog.Logger
}

func New(
	db *sql.DB,
	issuer *auth.TokenIssuer,
	stripeClient *billing.Client,
	mailer *email.Client,
	pushCfg push.Config,
	archiveMgr *archive.Manager,
	cfg Config,
	logger *slog.Logger,
) *Server {
	hub := chat.NewHub(logger.With("component", "chat"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	streamStore := store.NewStreamStore(db)
	messageStore := store.NewMessageStore(db)
	preferenceStore := store.NewPreferenceStore(db)
	pushStore := store.NewPushStore(db)
	rewardStore := store.NewRewardStore(db)
	giftCardStore := store.NewGiftCardStore(db)
	subscriptionStore := store.NewSubscriptionStore(db)
	archiveStore := store.NewArchiveStore(db)

	pushLogger := logger.With("component", "push")
	var pushSvc *push.Service
	var notifier *push.Notifier
	var pushH *handler.PushHandler
	if pushCfg.VAPIDPublicKey != "" && pushCfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(pushCfg)
		notifier = push.NewNotifier(pushSvc, pushStore, pushLogger)
		pushH = handler.NewPushHandler(pushStore, pushSvc, pushLogger)
	}

	var billingH *handler.BillingHandler
	var webhookH *handler.WebhookHandler
	if stripeClient != nil {
		billingH = handler.NewBillingHandler(stripeClient, userStore, subscriptionStore, giftCardStore, logger.With("component", "billing"))
		webhookH = handler.NewWebhookHandler(stripeClient, subscriptionStore, giftCardStore, userStore, mailer, logger.With("component", "webhook"))
	}

	return &Server{
		db:          db,
		hub:         hub,
		issuer:      issuer,
		authH:       handler.NewAuthHandler(userStore, sessionStore, issuer, mailer, cfg.SecureCookies, logger.With("component", "auth")),
		streamH:     handler.NewStreamHandler(streamStore, messageStore, logger.With("component", "stream")),
		preferenceH: handler.NewPreferenceHandler(preferenceStore, logger.With("component", "preference")),
		pushH:       pushH,
		rewardH:     handler.NewRewardHandler(rewardStore, notifier, logger.With("component", "reward")),
		billingH:    billingH,
		webhookH:    webhookH,
		experimentH: handler.NewExperimentHandler(cfg.Experiments, logger.With("component", "experiment")),
		archiveH:    handler.NewArchiveHandler(archiveMgr, archiveStore, logger.With("component", "archive")),

		sessionStore: sessionStore,
		userStore:    userStore,
		messageStore: messageStore,
		pushStore:    pushStore,
		rateLimiter:  middleware.NewRateLimiter(),
		notifier:     notifier,
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the chat hub.
func (s *Server) Hub() *chat.Hub {
	return s.hub
}

// Notifier returns the push notifier, or nil when push is not configured.
func (s *Server) Notifier() *push.Notifier {
	return s.notifier
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /api/streams", s.streamH.List)
	outerMux.HandleFunc("GET /api/streams/{id}", s.streamH.Get)
	outerMux.HandleFunc("GET /api/streams/{id}/messages", s.streamH.History)
	outerMux.HandleFunc("GET /api/preferences/suggest-language", s.preferenceH.SuggestLanguage)
	var mentions *chat.Mentions
	if s.notifier != nil {
		mentions = chat.NewMentions(s.userStore, s.notifier, s.logger.With("component", "mentions"))
	}
	outerMux.HandleFunc("GET /ws", chat.HandleWebSocket(s.hub, s.issuer, s.messageStore, mentions, s.logger.With("component", "chat")))
	outerMux.HandleFunc("GET /health", s.healthHandler)
	if s.webhookH != nil {
		outerMux.HandleFunc("POST /api/billing/webhook", s.webhookH.HandleStripeWebhook)
	}

	// Protected routes, wrapped with RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/api/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)
	mux.HandleFunc("POST /api/auth/channel-token", s.authH.ChannelToken)

	// Locale preference API routes
	mux.HandleFunc("GET /api/preferences/locale", s.preferenceH.GetLocale)
	mux.HandleFunc("PUT /api/preferences/locale", s.preferenceH.PutLocale)

	// Push notification API routes
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("GET /api/push/preferences", s.pushH.GetPreferences)
		mux.HandleFunc("PUT /api/push/preferences", s.pushH.UpdatePreferences)
		mux.HandleFunc("POST /api/push/test", s.pushH.SendTest)
	}

	// Rewards API routes
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.HandleFunc("POST /api/rewards/{id}/redeem", s.rewardH.Redeem)
	mux.HandleFunc("GET /api/rewards/balance", s.rewardH.Balance)
	mux.HandleFunc("GET /api/rewards/leaderboard", s.rewardH.Leaderboard)

	// Billing API routes
	if s.billingH != nil {
		mux.HandleFunc("POST /api/billing/checkout", s.billingH.CreateCheckout)
		mux.HandleFunc("POST /api/billing/gift-cards/checkout", s.billingH.CreateGiftCardCheckout)
		mux.HandleFunc("POST /api/billing/gift-cards/redeem", s.billingH.RedeemGiftCard)
		mux.HandleFunc("GET /api/billing/subscription", s.billingH.GetSubscription)
		mux.HandleFunc("POST /api/billing/portal", s.billingH.Portal)
	}

	// Experiment API routes
	mux.HandleFunc("GET /api/experiments/{name}", s.experimentH.GetAssignment)

	// Archive API routes
	mux.HandleFunc("GET /api/archive/status", s.archiveH.Status)
	mux.HandleFunc("POST /api/archive/run", s.archiveH.RunNow)
	mux.HandleFunc("GET /api/streams/{id}/archive-runs", s.archiveH.ListRuns)
}
