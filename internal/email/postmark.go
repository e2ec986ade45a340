// Package email sends transactional mail through Postmark. All sends are
// best-effort: callers fire them from goroutines and log failures rather than
// blocking a request on the mail provider.
package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

const postmarkURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL overrides the Postmark endpoint, for tests.
func WithAPIURL(u string) Option {
	return func(cl *Client) {
		cl.apiURL = u
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		apiURL:      postmarkURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendWelcome greets a newly registered user.
func (c *Client) SendWelcome(toEmail, displayName string) error {
	textBody := fmt.Sprintf(
		"Hi %s,\n\nYour StreamHub account is ready. Jump into a live stream and say hello in chat.\n",
		displayName,
	)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p>Your StreamHub account is ready. Jump into a live stream and say hello in chat.</p>`,
		displayName,
	)
	return c.send(postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  "Welcome to StreamHub",
		TextBody: textBody,
		HtmlBody: htmlBody,
	})
}

// SendGiftCardReceipt delivers the redemption code after a gift card
// purchase settles.
func (c *Client) SendGiftCardReceipt(toEmail, code string, amountCents int64, currency string) error {
	amount := fmt.Sprintf("%.2f %s", float64(amountCents)/100, currency)
	textBody := fmt.Sprintf(
		"Thanks for your purchase!\n\nGift card value: %s\nRedemption code: %s\n\nThe recipient can redeem it from their account page.",
		amount, code,
	)
	htmlBody := fmt.Sprintf(
		`<p>Thanks for your purchase!</p><p>Gift card value: <strong>%s</strong><br>Redemption code: <code>%s</code></p><p>The recipient can redeem it from their account page.</p>`,
		amount, code,
	)
	return c.send(postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  "Your StreamHub gift card",
		TextBody: textBody,
		HtmlBody: htmlBody,
	})
}

func (c *Client) send(msg postmarkEmail) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}
	return nil
}
