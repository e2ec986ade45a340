package chat

import (
	"log/slog"

	"streamhub/internal/model"
	"streamhub/internal/store"
)

// MentionNotifier delivers a mention notification. Satisfied by
// *push.Notifier.
type MentionNotifier interface {
	NotifyMention(userID int64, fromUsername string, streamID int64)
}

// Mentions scans sent messages for @username references and notifies the
// mentioned users. Lookups and delivery run off the hot path; a bad or
// unknown mention is simply ignored.
type Mentions struct {
	users    *store.UserStore
	notifier MentionNotifier
	logger   *slog.Logger
}

func NewMentions(users *store.UserStore, notifier MentionNotifier, logger *slog.Logger) *Mentions {
	return &Mentions{users: users, notifier: notifier, logger: logger}
}

// Notify resolves every distinct @username in the message and fires a
// notification per mentioned user. Self-mentions are skipped.
func (m *Mentions) Notify(msg model.ChatMessage) {
	if msg.Author == nil {
		return
	}
	for _, username := range parseMentions(msg.Body) {
		if username == msg.Author.Username {
			continue
		}
		user, err := m.users.GetByUsername(username)
		if err != nil {
			m.logger.Error("mention lookup", "username", username, "error", err)
			continue
		}
		if user == nil {
			continue
		}
		m.notifier.NotifyMention(user.ID, msg.Author.Username, msg.StreamID)
	}
}

// parseMentions returns the distinct usernames referenced as @name tokens, in
// order of first appearance.
func parseMentions(body string) []string {
	var names []string
	seen := make(map[string]struct{})

	for i := 0; i < len(body); i++ {
		if body[i] != '@' {
			continue
		}
		// An @ inside a word (like an email address) is not a mention
		if i > 0 && isMentionChar(body[i-1]) {
			continue
		}
		j := i + 1
		for j < len(body) && isMentionChar(body[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		name := body[i+1 : j]
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
		i = j - 1
	}
	return names
}

func isMentionChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
}
