package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"streamhub/internal/auth"
	"streamhub/internal/model"
	"streamhub/internal/push"
	"streamhub/internal/store"
)

type RewardHandler struct {
	rewardStore *store.RewardStore
	notifier    *push.Notifier
	logger      *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, notifier *push.Notifier, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewardStore: rs, notifier: notifier, logger: logger}
}

// List handles GET /api/rewards
func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewardStore.List()
	if err != nil {
		h.logger.Error("list rewards", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeData(w, http.StatusOK, rewards)
}

// Redeem handles POST /api/rewards/{id}/redeem
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	redemption, err := h.rewardStore.Redeem(id, userID)
	if errors.Is(err, store.ErrInsufficientPoints) {
		writeError(w, http.StatusConflict, "not enough points")
		return
	}
	if err != nil {
		h.logger.Error("redeem reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to redeem reward")
		return
	}

	writeData(w, http.StatusOK, redemption)
}

// Balance handles GET /api/rewards/balance
func (h *RewardHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	balance, err := h.rewardStore.GetBalance(userID)
	if err != nil {
		h.logger.Error("get point balance", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get balance")
		return
	}
	writeData(w, http.StatusOK, balance)
}

// Leaderboard handles GET /api/rewards/leaderboard
func (h *RewardHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	board, err := h.rewardStore.Leaderboard(limit)
	if err != nil {
		h.logger.Error("leaderboard", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	if board == nil {
		board = []model.PointBalance{}
	}
	writeData(w, http.StatusOK, board)
}

// Award grants points for watch activity and fires a notification. Called
// internally, not routed.
func (h *RewardHandler) Award(userID int64, points int, reason string, streamID *int64) {
	if err := h.rewardStore.AddPoints(userID, points, reason, streamID); err != nil {
		h.logger.Error("award points", "user_id", userID, "error", err)
		return
	}
	if h.notifier != nil {
		h.notifier.NotifyRewardEarned(userID, int64(points))
	}
}
