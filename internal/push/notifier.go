package push

import (
	"errors"
	"fmt"
	"log/slog"

	"streamhub/internal/model"
	"streamhub/internal/store"
)

// Notifier fans a notification out to every device a user has registered,
// honoring per-type preferences and pruning subscriptions the push service
// reports as gone.
type Notifier struct {
	service *Service
	subs    *store.PushStore
	logger  *slog.Logger
}

func NewNotifier(service *Service, subs *store.PushStore, logger *slog.Logger) *Notifier {
	return &Notifier{service: service, subs: subs, logger: logger}
}

// NotifyUser sends payload to all of userID's devices if notifType is enabled
// for them. Individual device failures are logged and do not stop the fanout.
func (n *Notifier) NotifyUser(userID int64, notifType string, payload Payload) {
	enabled, err := n.subs.IsPreferenceEnabled(userID, notifType)
	if err != nil {
		n.logger.Error("check notification preference", "user_id", userID, "error", err)
		return
	}
	if !enabled {
		return
	}

	subs, err := n.subs.ListByUser(userID)
	if err != nil {
		n.logger.Error("list push subscriptions", "user_id", userID, "error", err)
		return
	}

	for _, sub := range subs {
		if err := n.service.Send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if err := n.subs.DeleteExpired(sub.Endpoint); err != nil {
					n.logger.Error("prune expired subscription", "endpoint", sub.Endpoint, "error", err)
				}
				continue
			}
			n.logger.Warn("push send failed", "endpoint", sub.Endpoint, "error", err)
		}
	}
}

// NotifyMention alerts a user that they were mentioned in stream chat.
func (n *Notifier) NotifyMention(userID int64, fromUsername string, streamID int64) {
	n.NotifyUser(userID, model.NotifTypeChatMention, Payload{
		Title: "You were mentioned",
		Body:  fmt.Sprintf("%s mentioned you in chat", fromUsername),
		URL:   fmt.Sprintf("/streams/%d", streamID),
		Tag:   fmt.Sprintf("mention-%d", streamID),
	})
}

// NotifyRewardEarned alerts a user that points landed in their balance.
func (n *Notifier) NotifyRewardEarned(userID int64, points int64) {
	n.NotifyUser(userID, model.NotifTypeRewardEarned, Payload{
		Title: "Points earned",
		Body:  fmt.Sprintf("You earned %d points", points),
		URL:   "/rewards",
		Tag:   "reward-earned",
	})
}
