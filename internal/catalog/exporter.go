package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/wacommerce-backend/pkg/config"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
	"github.com/angelmondragon/wacommerce-backend/pkg/httpretry"
)

var (
	// ErrNotConfigured means no export service URL is set.
	ErrNotConfigured = errors.New("catalog export not configured")
	// ErrTooLarge means the rendered document exceeds the send limit.
	ErrTooLarge = errors.New("catalog document too large")
)

// Document is a rendered catalog reachable by URL.
type Document struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

type exportItem struct {
	ID       int64           `json:"id"`
	Code     string          `json:"code,omitempty"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Currency enums.Currency  `json:"currency"`
}

type exportRequest struct {
	MerchantID   int64          `json:"merchant_id"`
	MerchantName string         `json:"merchant_name"`
	Currency     enums.Currency `json:"currency"`
	Products     []exportItem   `json:"products"`
}

type exportResponse struct {
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
}

// Exporter asks the document service to render a catalog.
type Exporter struct {
	http     httpretry.Doer
	url      string
	timeout  time.Duration
	maxBytes int64
	policy   httpretry.Policy
}

// NewExporter builds an exporter; an empty URL yields one that always
// returns ErrNotConfigured.
func NewExporter(cfg config.CatalogConfig, doer httpretry.Doer) *Exporter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}
	policy := httpretry.DefaultPolicy()
	policy.MaxRetries = 1
	return &Exporter{
		http:     doer,
		url:      strings.TrimSpace(cfg.ExportURL),
		timeout:  timeout,
		maxBytes: cfg.MaxDocumentBytes,
		policy:   policy,
	}
}

// Export renders the merchant's active products. The whole call, retries
// included, is bounded by the configured timeout.
func (e *Exporter) Export(ctx context.Context, merchant *models.Merchant, rows []models.Product) (Document, error) {
	if e == nil || e.url == "" {
		return Document{}, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req := exportRequest{
		MerchantID:   merchant.ID,
		MerchantName: merchant.Name,
		Currency:     merchant.Currency,
		Products:     make([]exportItem, 0, len(rows)),
	}
	for _, p := range rows {
		item := exportItem{ID: p.ID, Name: p.Name, Price: p.Price, Currency: p.Currency}
		if p.Code != nil {
			item.Code = *p.Code
		}
		req.Products = append(req.Products, item)
	}

	var resp exportResponse
	if err := httpretry.DoJSON(ctx, e.http, e.policy, httpretry.Request{URL: e.url, Body: req}, &resp); err != nil {
		return Document{}, err
	}
	if resp.URL == "" {
		return Document{}, pkgerrors.New(pkgerrors.CodeDependency, "export returned no document url")
	}
	if e.maxBytes > 0 && resp.SizeBytes > e.maxBytes {
		return Document{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.SizeBytes)
	}
	if resp.Filename == "" {
		resp.Filename = "catalogue.pdf"
	}
	return Document{URL: resp.URL, Filename: resp.Filename}, nil
}
