package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"streamhub/internal/api"
	"streamhub/internal/model"
)

// Status is the terminal outcome of an enrollment attempt.
type Status string

const (
	// StatusUnsupported means the device cannot do push at all.
	StatusUnsupported Status = "unsupported"
	// StatusDenied means the user refused the permission prompt.
	StatusDenied Status = "denied"
	// StatusFailed means a step errored after support and permission checks.
	StatusFailed Status = "failed"
	// StatusSubscribed means the device is registered end to end.
	StatusSubscribed Status = "subscribed"
)

// Permission is the platform's notification permission state.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// DeviceSubscription is what the platform hands back after subscribing.
type DeviceSubscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Platform abstracts the device capabilities the pipeline depends on:
// support detection, the service-worker lifecycle, the permission prompt,
// and the push manager itself.
type Platform interface {
	Supported() bool
	EnsureWorker(ctx context.Context) error
	RequestPermission(ctx context.Context) (Permission, error)
	Subscribe(ctx context.Context, vapidKey string) (*DeviceSubscription, error)
	Unsubscribe(ctx context.Context, endpoint string) error
}

// Backend is the server side of enrollment. Satisfied by *api.Client.
type Backend interface {
	VAPIDKey(ctx context.Context) (string, error)
	RegisterPush(ctx context.Context, reg api.PushRegistration) error
	UnregisterPush(ctx context.Context, endpoint string) error
}

// Result reports how an Enroll attempt ended. Err is set only for
// StatusFailed.
type Result struct {
	Status   Status
	Endpoint string
	Err      error
}

// Pipeline walks a device through push enrollment. Each step must succeed
// before the next runs; the first failure short-circuits with a status that
// says which kind of dead end was hit.
type Pipeline struct {
	platform    Platform
	backend     Backend
	deviceClass string
	logger      *slog.Logger

	mu       sync.Mutex
	vapidKey string
}

func NewPipeline(platform Platform, backend Backend, deviceClass string, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		platform:    platform,
		backend:     backend,
		deviceClass: deviceClass,
		logger:      logger,
	}
}

// Enroll runs the steps in order: capability check, service-worker
// registration, permission prompt, VAPID key fetch, device subscribe, backend
// register. The key fetch is cached across attempts; nothing later in the
// chain runs once a step fails.
func (p *Pipeline) Enroll(ctx context.Context) Result {
	if !p.platform.Supported() {
		return Result{Status: StatusUnsupported}
	}

	if err := p.platform.EnsureWorker(ctx); err != nil {
		return p.fail(fmt.Errorf("service worker registration: %w", err))
	}

	perm, err := p.platform.RequestPermission(ctx)
	if err != nil {
		return p.fail(fmt.Errorf("permission prompt: %w", err))
	}
	if perm != PermissionGranted {
		return Result{Status: StatusDenied}
	}

	key, err := p.fetchKey(ctx)
	if err != nil {
		return p.fail(fmt.Errorf("fetch VAPID key: %w", err))
	}

	sub, err := p.platform.Subscribe(ctx, key)
	if err != nil {
		return p.fail(fmt.Errorf("device subscribe: %w", err))
	}

	reg := api.PushRegistration{
		Endpoint:    sub.Endpoint,
		P256dh:      sub.P256dh,
		Auth:        sub.Auth,
		DeviceClass: p.deviceClass,
	}
	if err := p.backend.RegisterPush(ctx, reg); err != nil {
		return p.fail(fmt.Errorf("backend register: %w", err))
	}

	return Result{Status: StatusSubscribed, Endpoint: sub.Endpoint}
}

// Unenroll tears down by endpoint: the device's own subscription first, then
// the backend record. Only the named endpoint is touched; the user's other
// devices keep their registrations.
func (p *Pipeline) Unenroll(ctx context.Context, endpoint string) error {
	if err := p.platform.Unsubscribe(ctx, endpoint); err != nil {
		return fmt.Errorf("device unsubscribe: %w", err)
	}
	if err := p.backend.UnregisterPush(ctx, endpoint); err != nil {
		return fmt.Errorf("backend unregister: %w", err)
	}
	return nil
}

func (p *Pipeline) fetchKey(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.vapidKey != "" {
		return p.vapidKey, nil
	}

	key, err := p.backend.VAPIDKey(ctx)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", errors.New("server returned empty VAPID key")
	}
	p.vapidKey = key
	return key, nil
}

func (p *Pipeline) fail(err error) Result {
	p.logger.Warn("push enrollment failed", "error", err)
	return Result{Status: StatusFailed, Err: err}
}

// ClassifyDevice buckets a user agent into the coarse device classes the
// backend records.
func ClassifyDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return model.DeviceTablet
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return model.DeviceMobile
	default:
		return model.DeviceDesktop
	}
}
