package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wacommerce-backend/pkg/config"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
)

type memoryKV struct {
	data map[string]string
	ttls map[string]time.Duration
	fail error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	if m.fail != nil {
		return "", m.fail
	}
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryKV) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryKV) CatalogKey(merchantID int64) string {
	return fmt.Sprintf("wac:catalog:%d", merchantID)
}

type stubProducts struct {
	rows []models.Product
}

func (s stubProducts) ListActive(context.Context, int64) ([]models.Product, error) {
	return s.rows, nil
}

type countingExporter struct {
	calls atomic.Int32
	doc   Document
	err   error
}

func (e *countingExporter) Export(context.Context, *models.Merchant, []models.Product) (Document, error) {
	e.calls.Add(1)
	return e.doc, e.err
}

var merchant = &models.Merchant{ID: 5, Name: "Chez Awa", Currency: enums.CurrencyXOF}

var rice = models.Product{ID: 1, MerchantID: 5, Name: "Riz 5kg", Price: decimal.NewFromInt(5000), Currency: enums.CurrencyXOF}

func TestDocumentIsCachedUntilInvalidated(t *testing.T) {
	kv := newMemoryKV()
	cache, err := NewCache(kv, time.Hour)
	require.NoError(t, err)
	exporter := &countingExporter{doc: Document{URL: "https://cdn/c.pdf", Filename: "c.pdf"}}
	svc, err := NewService(stubProducts{rows: []models.Product{rice}}, exporter, cache, nil)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		doc, err := svc.Document(ctx, merchant)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn/c.pdf", doc.URL)
	}
	assert.Equal(t, int32(1), exporter.calls.Load())
	assert.Equal(t, time.Hour, kv.ttls["wac:catalog:5"])

	require.NoError(t, svc.Invalidate(ctx, merchant.ID))
	_, err = svc.Document(ctx, merchant)
	require.NoError(t, err)
	assert.Equal(t, int32(2), exporter.calls.Load())
}

func TestDocumentSurvivesCacheOutage(t *testing.T) {
	kv := newMemoryKV()
	kv.fail = errors.New("connection refused")
	cache, err := NewCache(kv, time.Minute)
	require.NoError(t, err)
	exporter := &countingExporter{doc: Document{URL: "https://cdn/c.pdf"}}
	svc, err := NewService(stubProducts{rows: []models.Product{rice}}, exporter, cache, nil)
	require.NoError(t, err)

	doc, err := svc.Document(context.Background(), merchant)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/c.pdf", doc.URL)
}

func TestDocumentEmptyCatalog(t *testing.T) {
	exporter := &countingExporter{}
	svc, err := NewService(stubProducts{}, exporter, nil, nil)
	require.NoError(t, err)
	_, err = svc.Document(context.Background(), merchant)
	assert.ErrorIs(t, err, ErrEmptyCatalog)
	assert.Zero(t, exporter.calls.Load())
}

func TestListing(t *testing.T) {
	svc, err := NewService(stubProducts{rows: []models.Product{rice}}, &countingExporter{}, nil, nil)
	require.NoError(t, err)
	text, err := svc.Listing(context.Background(), merchant)
	require.NoError(t, err)
	assert.Contains(t, text, "Riz 5kg")
	assert.Contains(t, text, "5 000")
}

func TestExporter(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		_, err := NewExporter(config.CatalogConfig{}, nil).Export(context.Background(), merchant, nil)
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("renders and defaults filename", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Chez Awa", body["merchant_name"])
			assert.Len(t, body["products"], 1)
			_, _ = w.Write([]byte(`{"url":"https://cdn/x.pdf","size_bytes":2048}`))
		}))
		defer srv.Close()

		exporter := NewExporter(config.CatalogConfig{ExportURL: srv.URL, Timeout: time.Second, MaxDocumentBytes: 4096}, srv.Client())
		doc, err := exporter.Export(context.Background(), merchant, []models.Product{rice})
		require.NoError(t, err)
		assert.Equal(t, Document{URL: "https://cdn/x.pdf", Filename: "catalogue.pdf"}, doc)
	})

	t.Run("too large", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"url":"https://cdn/x.pdf","size_bytes":9999}`))
		}))
		defer srv.Close()

		exporter := NewExporter(config.CatalogConfig{ExportURL: srv.URL, Timeout: time.Second, MaxDocumentBytes: 4096}, srv.Client())
		_, err := exporter.Export(context.Background(), merchant, []models.Product{rice})
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		exporter := NewExporter(config.CatalogConfig{ExportURL: srv.URL, Timeout: 50 * time.Millisecond}, srv.Client())
		start := time.Now()
		_, err := exporter.Export(context.Background(), merchant, []models.Product{rice})
		require.Error(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}
