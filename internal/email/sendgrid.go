package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Sender delivers a composed email to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, plainBody, htmlBody string) (*SendResult, error)
	Configured() bool
}

// SendResult records the provider's answer for one delivery attempt.
type SendResult struct {
	StatusCode int    `json:"status_code"`
	MessageID  string `json:"message_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SendgridClient sends mail through the SendGrid v3 API.
type SendgridClient struct {
	baseURL    string
	apiKey     string
	fromEmail  string
	httpClient *http.Client
}

// NewSendgridClient constructs a client. An empty apiKey yields an
// unconfigured client; Send reports an error without calling out.
func NewSendgridClient(apiKey, fromEmail string) *SendgridClient {
	return &SendgridClient{
		baseURL:    "https://api.sendgrid.com",
		apiKey:     strings.TrimSpace(apiKey),
		fromEmail:  strings.TrimSpace(fromEmail),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the client at a different endpoint, used in tests.
func (c *SendgridClient) WithBaseURL(base string) *SendgridClient {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

// Configured reports whether the client holds credentials.
func (c *SendgridClient) Configured() bool {
	return c.apiKey != "" && c.fromEmail != ""
}

type mailRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type emailAddress struct {
	Email string `json:"email"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Send delivers one message. A non-2xx answer from SendGrid is returned
// as an error alongside a SendResult carrying the provider's body.
func (c *SendgridClient) Send(ctx context.Context, to, subject, plainBody, htmlBody string) (*SendResult, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("sendgrid client not configured")
	}
	if strings.TrimSpace(to) == "" {
		return nil, fmt.Errorf("recipient address required")
	}
	payload := mailRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: to}}}},
		From:             emailAddress{Email: c.fromEmail},
		Subject:          subject,
	}
	if plainBody != "" {
		payload.Content = append(payload.Content, mailContent{Type: "text/plain", Value: plainBody})
	}
	if htmlBody != "" {
		payload.Content = append(payload.Content, mailContent{Type: "text/html", Value: htmlBody})
	}
	if len(payload.Content) == 0 {
		return nil, fmt.Errorf("email body required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sendgrid request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	result := &SendResult{
		StatusCode: resp.StatusCode,
		MessageID:  resp.Header.Get("X-Message-Id"),
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Error = strings.TrimSpace(string(respBody))
		return result, fmt.Errorf("sendgrid api error: status %d", resp.StatusCode)
	}
	return result, nil
}
