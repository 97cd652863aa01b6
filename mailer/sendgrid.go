// Package mailer sends transactional email through the SendGrid v3 Mail Send API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jaytaylor/html2text"
)

const (
	sendgridMailEndpoint = "https://api.sendgrid.com/v3/mail/send"
	messageIDHeader      = "X-Message-Id"
	DefaultTimeout       = 10 * time.Second
	maxErrorBodyBytes    = 64 << 10
)

// ErrNotConfigured is returned when the API key or sender address is missing.
var ErrNotConfigured = errors.New("sendgrid is not configured")

// ProviderError is returned when SendGrid answers with a non-success status.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("SendGrid returned status %d: %s", e.StatusCode, e.Body)
}

// Message is a single HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Receipt describes an accepted message.
type Receipt struct {
	StatusCode int
	// MessageID is empty when SendGrid accepted the message without an id.
	MessageID string
}

// SendGridSender sends HTML email via SendGrid.
type SendGridSender struct {
	apiKey    string
	fromEmail string
	fromName  string
	endpoint  string
	timeout   time.Duration
	client    *http.Client
}

type Option func(*SendGridSender)

// WithEndpoint overrides the mail/send URL.
func WithEndpoint(endpoint string) Option {
	return func(s *SendGridSender) { s.endpoint = endpoint }
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(s *SendGridSender) { s.client = client }
}

// WithTimeout bounds every send. A non-positive value keeps DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *SendGridSender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewSendGridSender(apiKey, fromEmail, fromName string, opts ...Option) *SendGridSender {
	s := &SendGridSender{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
		endpoint:  sendgridMailEndpoint,
		timeout:   DefaultTimeout,
		client:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SendGridSender) From() string { return s.fromEmail }

func (s *SendGridSender) HasAPIKey() bool { return s.apiKey != "" }

// Configured reports whether both the API key and sender address are set.
func (s *SendGridSender) Configured() bool {
	return s.apiKey != "" && s.fromEmail != ""
}

// Send issues one POST to SendGrid. 200 and 202 are treated as accepted.
func (s *SendGridSender) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if msg.To == "" {
		return nil, fmt.Errorf("recipient address is required")
	}

	content := make([]sgContent, 0, 2)
	if text, err := html2text.FromString(msg.HTML); err == nil && text != "" {
		content = append(content, sgContent{Type: "text/plain", Value: text})
	}
	content = append(content, sgContent{Type: "text/html", Value: msg.HTML})

	payload := sgMailPayload{
		Personalizations: []sgPersonalization{{
			To:      []sgAddress{{Email: msg.To}},
			Subject: msg.Subject,
		}},
		From:    sgAddress{Email: s.fromEmail, Name: s.fromName},
		Content: content,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SendGrid payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create SendGrid request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SendGrid request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return &Receipt{
		StatusCode: resp.StatusCode,
		MessageID:  resp.Header.Get(messageIDHeader),
	}, nil
}

// SendGrid v3 Mail Send API payload types.
type sgMailPayload struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Content          []sgContent         `json:"content"`
}

type sgPersonalization struct {
	To      []sgAddress `json:"to"`
	Subject string      `json:"subject"`
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}
