package chatclient

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	reconnectInitialDelay = time.Second
	reconnectMaxDelay     = 30 * time.Second
	reconnectMaxAttempts  = 8
)

// Supervisor watches a client for connection loss and rejoins with bounded
// exponential backoff. It runs independently of any consumer lifecycle, so a
// view coming and going does not cancel an in-flight recovery.
type Supervisor struct {
	client *Client
	logger *slog.Logger
}

func NewSupervisor(client *Client, logger *slog.Logger) *Supervisor {
	return &Supervisor{client: client, logger: logger}
}

// Run blocks until ctx is cancelled, rejoining whenever the channel drops.
// If every attempt fails the client stays in the error state; a later
// explicit Connect can still retry.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-s.client.downs():
			s.logger.Warn("chat channel lost", "error", err)
		}

		backoff := retry.WithMaxRetries(reconnectMaxAttempts,
			retry.WithCappedDuration(reconnectMaxDelay,
				retry.NewExponential(reconnectInitialDelay)))

		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := s.client.Reconnect(ctx); err != nil {
				s.logger.Debug("rejoin attempt failed", "error", err)
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("giving up rejoining chat channel", "error", err)
			continue
		}

		s.logger.Info("chat channel recovered")
	}
}
