// Package gateway sends outbound WhatsApp messages through the HTTP
// gateway that hosts each merchant's session.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/wacommerce-backend/internal/fields"
	"github.com/angelmondragon/wacommerce-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
	"github.com/angelmondragon/wacommerce-backend/pkg/httpretry"
)

const chatSuffix = "@c.us"

// Document is a file reachable by URL.
type Document struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	MimeType string `json:"mimetype,omitempty"`
}

// Client posts to the gateway send endpoints.
type Client struct {
	http    httpretry.Doer
	baseURL string
	apiKey  string
	policy  httpretry.Policy
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(doer httpretry.Doer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithPolicy overrides the retry policy.
func WithPolicy(p httpretry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// NewClient builds a gateway client from config.
func NewClient(cfg config.GatewayConfig, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("gateway base url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	policy := httpretry.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries

	c := &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: base,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		policy:  policy,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// ChatID turns a phone number into the gateway chat id.
func ChatID(phone string) string {
	return fields.DigitsOnly(phone) + chatSuffix
}

// SendText sends a text message from session to phone.
func (c *Client) SendText(ctx context.Context, session, phone, text string) error {
	if strings.TrimSpace(text) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message text required")
	}
	return c.post(ctx, "/api/sendText", session, phone, map[string]any{
		"session": session,
		"chatId":  ChatID(phone),
		"text":    text,
	})
}

// SendDocument sends a file with an optional caption.
func (c *Client) SendDocument(ctx context.Context, session, phone string, doc Document, caption string) error {
	if strings.TrimSpace(doc.URL) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "document url required")
	}
	if doc.MimeType == "" {
		doc.MimeType = "application/pdf"
	}
	return c.post(ctx, "/api/sendFile", session, phone, map[string]any{
		"session": session,
		"chatId":  ChatID(phone),
		"file":    doc,
		"caption": caption,
	})
}

func (c *Client) post(ctx context.Context, path, session, phone string, body map[string]any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "gateway client not configured")
	}
	if strings.TrimSpace(session) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway session required")
	}
	if fields.DigitsOnly(phone) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient phone required")
	}
	return httpretry.DoJSON(ctx, c.http, c.policy, httpretry.Request{
		URL:     c.baseURL + path,
		Body:    body,
		Headers: map[string]string{"X-Api-Key": c.apiKey},
	}, nil)
}
