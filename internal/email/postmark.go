// Package email sends transactional mail through Postmark.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const postmarkURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	httpClient  *http.Client
	apiURL      string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL points the client at a different endpoint, for tests.
func WithAPIURL(url string) Option {
	return func(cl *Client) {
		cl.apiURL = url
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		httpClient:  http.DefaultClient,
		apiURL:      postmarkURL,
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

// SendInvitation emails a household invitation code to a recipient.
func (c *Client) SendInvitation(ctx context.Context, to, code, householdName string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	subject := fmt.Sprintf("You've been invited to %s on Larder", householdName)
	textBody := fmt.Sprintf(
		"You've been invited to join %s.\n\nOpen the Larder app, choose \"Join household\" and enter this code:\n\n    %s\n\nThe code expires in 7 days.",
		householdName, code,
	)
	htmlBody := fmt.Sprintf(
		`<p>You've been invited to join <strong>%s</strong>.</p><p>Open the Larder app, choose "Join household" and enter this code:</p><p style="font-size:1.5em;letter-spacing:0.2em"><strong>%s</strong></p><p>The code expires in 7 days.</p>`,
		householdName, code,
	)

	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       to,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(body))
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
