package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
)

// ErrUnknownProduct marks a product id that is not an active catalog entry.
var ErrUnknownProduct = errors.New("unknown product")

// Service exposes read-only catalog lookups.
type Service struct {
	repo Repository
}

// NewService builds a product service.
func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &Service{repo: repo}, nil
}

// ListActive returns the merchant's sellable products.
func (s *Service) ListActive(ctx context.Context, merchantID int64) ([]models.Product, error) {
	rows, err := s.repo.ListActive(ctx, merchantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return rows, nil
}

// Lookup returns an active product or a validation error wrapping
// ErrUnknownProduct.
func (s *Service) Lookup(ctx context.Context, merchantID, productID int64) (*models.Product, error) {
	if productID <= 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrUnknownProduct, "product id must be positive")
	}
	product, err := s.repo.FindActive(ctx, merchantID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrUnknownProduct, fmt.Sprintf("product %d not found", productID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// PlainTextListing renders the catalog as a numbered WhatsApp message.
func PlainTextListing(merchantName string, rows []models.Product) string {
	if len(rows) == 0 {
		return "Notre catalogue est vide pour le moment."
	}
	var b strings.Builder
	if merchantName != "" {
		fmt.Fprintf(&b, "📋 Catalogue %s\n\n", merchantName)
	} else {
		b.WriteString("📋 Catalogue\n\n")
	}
	for i, p := range rows {
		fmt.Fprintf(&b, "%d. %s - %s %s", i+1, p.Name, FormatAmount(p.Price), p.Currency)
		if p.Code != nil && *p.Code != "" {
			fmt.Fprintf(&b, " (réf. %s)", *p.Code)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nDites-moi ce que vous souhaitez commander.")
	return b.String()
}
