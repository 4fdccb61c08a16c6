// Package catalog serves the merchant catalog as an exported document,
// cached per merchant, or as a plain-text listing.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/wacommerce-backend/internal/products"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/logger"
)

// ErrEmptyCatalog means the merchant has no active product.
var ErrEmptyCatalog = errors.New("catalog is empty")

// FailureMessage is sent when the document cannot be produced.
const FailureMessage = "Le catalogue n'est pas disponible pour le moment 😕 Tapez LISTE pour recevoir la liste de nos produits."

// ProductLister lists active products.
type ProductLister interface {
	ListActive(ctx context.Context, merchantID int64) ([]models.Product, error)
}

// DocumentExporter renders a catalog document.
type DocumentExporter interface {
	Export(ctx context.Context, merchant *models.Merchant, rows []models.Product) (Document, error)
}

// Service resolves catalog documents and listings.
type Service struct {
	products ProductLister
	exporter DocumentExporter
	cache    *Cache
	logg     *logger.Logger
}

// NewService builds a catalog service. cache may be nil.
func NewService(productSvc ProductLister, exporter DocumentExporter, cache *Cache, logg *logger.Logger) (*Service, error) {
	if productSvc == nil {
		return nil, fmt.Errorf("product lister required")
	}
	if exporter == nil {
		return nil, fmt.Errorf("exporter required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{products: productSvc, exporter: exporter, cache: cache, logg: logg}, nil
}

// Document returns the cached catalog document or exports a fresh one.
// Cache failures are logged and never block an export.
func (s *Service) Document(ctx context.Context, merchant *models.Merchant) (Document, error) {
	if s.cache != nil {
		doc, ok, err := s.cache.Get(ctx, merchant.ID)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "catalog cache read failed")
		}
		if ok {
			return doc, nil
		}
	}

	rows, err := s.products.ListActive(ctx, merchant.ID)
	if err != nil {
		return Document{}, err
	}
	if len(rows) == 0 {
		return Document{}, ErrEmptyCatalog
	}
	doc, err := s.exporter.Export(ctx, merchant, rows)
	if err != nil {
		return Document{}, err
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, merchant.ID, doc); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "catalog cache write failed")
		}
	}
	return doc, nil
}

// Invalidate forgets the cached document of a merchant.
func (s *Service) Invalidate(ctx context.Context, merchantID int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, merchantID)
}

// Listing renders the active products as text.
func (s *Service) Listing(ctx context.Context, merchant *models.Merchant) (string, error) {
	rows, err := s.products.ListActive(ctx, merchant.ID)
	if err != nil {
		return "", err
	}
	return products.PlainTextListing(merchant.Name, rows), nil
}
