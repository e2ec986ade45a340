package auth

import "context"

// PromptFunc is invoked when a gated action is attempted without a signed-in
// user. It receives the label of the action so the prompt can name what the
// user was trying to do. The prompt is dismissible; nothing is retried.
type PromptFunc func(actionLabel string)

// Guard gates actions behind authentication. The check is a synchronous
// predicate over the request context; no network call is involved.
type Guard struct {
	prompt PromptFunc
}

func NewGuard(prompt PromptFunc) *Guard {
	return &Guard{prompt: prompt}
}

// Require returns true immediately if the context carries a signed-in user.
// Otherwise it fires the prompt with the action label and returns false.
func (g *Guard) Require(ctx context.Context, actionLabel string) bool {
	if IsAuthenticated(ctx) {
		return true
	}
	if g.prompt != nil {
		g.prompt(actionLabel)
	}
	return false
}
