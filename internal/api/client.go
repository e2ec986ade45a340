// Package api is the typed client for the platform's remote API. Every call
// returns the standard envelope; callers branch on Success and surface
// Error.Message on failure.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"streamhub/internal/model"
)

// Envelope is the wrapper returned by every remote API call.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *APIError       `json:"error,omitempty"`
}

// APIError carries the user-facing failure message.
type APIError struct {
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Client calls the remote API over HTTP.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAuthToken attaches a bearer token to every request.
func WithAuthToken(token string) Option {
	return func(cl *Client) {
		cl.authToken = token
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do issues a request and decodes the envelope, unwrapping Data into out when
// the call succeeded and out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	if !env.Success {
		if env.Error != nil {
			return env.Error
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// Me returns the signed-in user's profile.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ChannelToken mints a short-lived token authenticating the holder on the
// live chat channel. Requires an authenticated client.
func (c *Client) ChannelToken(ctx context.Context) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/channel-token", nil, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// LocalePreferences is the language/currency pair stored on the profile.
type LocalePreferences struct {
	Language string `json:"language"`
	Currency string `json:"currency"`
}

// FetchPreferences returns the profile's stored locale preferences.
func (c *Client) FetchPreferences(ctx context.Context) (*LocalePreferences, error) {
	var prefs LocalePreferences
	if err := c.do(ctx, http.MethodGet, "/api/preferences/locale", nil, &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

// SavePreferences writes the locale preferences to the profile.
func (c *Client) SavePreferences(ctx context.Context, prefs LocalePreferences) error {
	return c.do(ctx, http.MethodPut, "/api/preferences/locale", prefs, nil)
}

// ChatHistory fetches up to limit of the most recent messages for a stream,
// oldest first.
func (c *Client) ChatHistory(ctx context.Context, streamID int64, limit int) ([]model.ChatMessage, error) {
	path := fmt.Sprintf("/api/streams/%d/messages?limit=%s", streamID, url.QueryEscape(strconv.Itoa(limit)))
	var msgs []model.ChatMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// VAPIDKey fetches the push signing public key.
func (c *Client) VAPIDKey(ctx context.Context) (string, error) {
	var resp struct {
		PublicKey string `json:"public_key"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/push/vapid-key", nil, &resp); err != nil {
		return "", err
	}
	return resp.PublicKey, nil
}

// PushRegistration is the subscription registered with the backend after a
// successful subscribe.
type PushRegistration struct {
	Endpoint    string `json:"endpoint"`
	P256dh      string `json:"p256dh"`
	Auth        string `json:"auth"`
	DeviceClass string `json:"device_class"`
}

// RegisterPush registers a push subscription with the backend.
func (c *Client) RegisterPush(ctx context.Context, reg PushRegistration) error {
	return c.do(ctx, http.MethodPost, "/api/push/subscribe", reg, nil)
}

// UnregisterPush removes the subscription for an endpoint. Other devices'
// subscriptions are unaffected.
func (c *Client) UnregisterPush(ctx context.Context, endpoint string) error {
	body := map[string]string{"endpoint": endpoint}
	return c.do(ctx, http.MethodDelete, "/api/push/subscriptions", body, nil)
}

// ExperimentAssignment is a variant assignment for one experiment.
type ExperimentAssignment struct {
	Experiment string `json:"experiment"`
	Variant    string `json:"variant"`
	Enrolled   bool   `json:"enrolled"`
}

// FetchAssignment returns the variant assignment for an experiment.
func (c *Client) FetchAssignment(ctx context.Context, experiment string) (*ExperimentAssignment, error) {
	var a ExperimentAssignment
	path := "/api/experiments/" + url.PathEscape(experiment)
	if err := c.do(ctx, http.MethodGet, path, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
