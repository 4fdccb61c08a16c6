// Package agent calls the external AI agent that chooses the reply and the
// actions for a customer message.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/wacommerce-backend/internal/cart"
	"github.com/angelmondragon/wacommerce-backend/pkg/config"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
	"github.com/angelmondragon/wacommerce-backend/pkg/httpretry"
	"github.com/angelmondragon/wacommerce-backend/pkg/types"
)

// FallbackMessage is sent when the agent cannot be reached.
const FallbackMessage = "Désolé, je rencontre un petit souci technique 🙏 Pouvez-vous réessayer dans quelques instants ? Tapez LISTE pour voir nos produits."

type MerchantInfo struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Currency enums.Currency `json:"currency"`
}

type CustomerInfo struct {
	ID            int64               `json:"id"`
	Phone         string              `json:"phone"`
	Name          string              `json:"name,omitempty"`
	Address       string              `json:"address,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"payment_method,omitempty"`
}

type ProductInfo struct {
	ID       int64           `json:"id"`
	Code     string          `json:"code,omitempty"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Currency enums.Currency  `json:"currency"`
}

// Request is the full context the agent decides on.
type Request struct {
	Message           string         `json:"message"`
	Merchant          MerchantInfo   `json:"merchant"`
	Customer          CustomerInfo   `json:"customer"`
	Cart              cart.View      `json:"cart"`
	Products          []ProductInfo  `json:"products"`
	ConversationState types.Document `json:"conversation_state"`
}

// Response is the agent's untrusted answer. Actions are parsed downstream.
type Response struct {
	Message string            `json:"message"`
	Actions []json.RawMessage `json:"actions"`
}

// NewRequest assembles the agent context from domain records.
func NewRequest(message string, merchant *models.Merchant, customer *models.Customer, view cart.View, catalog []models.Product, state types.Document) Request {
	req := Request{
		Message:  message,
		Merchant: MerchantInfo{ID: merchant.ID, Name: merchant.Name, Currency: merchant.Currency},
		Customer: CustomerInfo{
			ID:            customer.ID,
			Phone:         customer.Phone,
			Name:          customer.DisplayName(),
			Address:       customer.AddressValue(),
			PaymentMethod: customer.PaymentMethodValue(),
		},
		Cart:              view,
		Products:          make([]ProductInfo, 0, len(catalog)),
		ConversationState: state,
	}
	if req.ConversationState == nil {
		req.ConversationState = types.Document{}
	}
	if req.Cart.Lines == nil {
		req.Cart.Lines = []cart.Line{}
	}
	for _, p := range catalog {
		info := ProductInfo{ID: p.ID, Name: p.Name, Price: p.Price, Currency: p.Currency}
		if p.Code != nil {
			info.Code = *p.Code
		}
		req.Products = append(req.Products, info)
	}
	return req
}

// Client talks to the agent endpoint.
type Client struct {
	http   httpretry.Doer
	url    string
	apiKey string
	policy httpretry.Policy
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

// NewClient builds an agent client from config.
func NewClient(cfg config.AgentConfig, opts ...Option) (*Client, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, fmt.Errorf("agent url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	policy := httpretry.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries

	c := &Client{
		http:   &http.Client{Timeout: timeout},
		url:    url,
		apiKey: strings.TrimSpace(cfg.APIKey),
		policy: policy,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Decide asks the agent for a reply and actions.
func (c *Client) Decide(ctx context.Context, req Request) (Response, error) {
	if c == nil {
		return Response{}, pkgerrors.New(pkgerrors.CodeDependency, "agent client not configured")
	}
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	var resp Response
	if err := httpretry.DoJSON(ctx, c.http, c.policy, httpretry.Request{
		URL:     c.url,
		Body:    req,
		Headers: headers,
	}, &resp); err != nil {
		return Response{}, err
	}
	resp.Message = strings.TrimSpace(resp.Message)
	return resp, nil
}
