package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacommerce-backend/internal/products"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ProductLookup resolves an active catalog entry.
type ProductLookup interface {
	Lookup(ctx context.Context, merchantID, productID int64) (*models.Product, error)
}

// Line is a cart line enriched with its product name.
type Line struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// View is the current cart of a customer.
type View struct {
	Lines    []Line          `json:"items"`
	Total    decimal.Decimal `json:"total"`
	Currency enums.Currency  `json:"currency"`
}

// IsEmpty reports whether the cart has no lines.
func (v View) IsEmpty() bool {
	return len(v.Lines) == 0
}

// Summary renders the cart lines and total for a WhatsApp message.
func (v View) Summary() string {
	var b strings.Builder
	for _, line := range v.Lines {
		fmt.Fprintf(&b, "• %s x%d = %s %s\n", line.ProductName, line.Quantity, products.FormatAmount(line.TotalPrice), v.Currency)
	}
	fmt.Fprintf(&b, "Total : %s %s", products.FormatAmount(v.Total), v.Currency)
	return b.String()
}

// Service applies cart mutations requested by the conversation.
type Service struct {
	repo     Repository
	products ProductLookup
	tx       txRunner
	now      func() time.Time
}

// NewService builds a cart service.
func NewService(repo Repository, products ProductLookup, tx txRunner) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Service{repo: repo, products: products, tx: tx, now: time.Now}, nil
}

// Add puts quantity units of a product in the cart, summing with any
// existing line.
func (s *Service) Add(ctx context.Context, merchantID, customerID, productID int64, quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	product, err := s.products.Lookup(ctx, merchantID, productID)
	if err != nil {
		return err
	}
	now := s.now()
	item := &models.CartItem{
		MerchantID: merchantID,
		CustomerID: customerID,
		ProductID:  product.ID,
		Quantity:   quantity,
		UnitPrice:  product.Price,
		TotalPrice: product.Price.Mul(decimalFromInt(quantity)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Upsert(ctx, item); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert cart item")
	}
	return nil
}

// Remove drops quantity units of a product, or the whole line when quantity
// is nil or covers the line.
func (s *Service) Remove(ctx context.Context, merchantID, customerID, productID int64, quantity *int) error {
	if productID <= 0 {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, products.ErrUnknownProduct, "product id must be positive")
	}
	if quantity != nil && *quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.Find(ctx, merchantID, customerID, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, products.ErrUnknownProduct, "product not in cart")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if quantity == nil || *quantity >= item.Quantity {
			if err := repo.Delete(ctx, merchantID, customerID, productID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
			}
			return nil
		}
		if err := repo.UpdateQuantity(ctx, item, item.Quantity-*quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return nil
	})
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, merchantID, customerID int64) error {
	if err := s.repo.Clear(ctx, merchantID, customerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// Replace swaps the whole cart for the given lines in one transaction.
func (s *Service) Replace(ctx context.Context, merchantID, customerID int64, lines []Line) error {
	now := s.now()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Clear(ctx, merchantID, customerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		for _, line := range lines {
			item := &models.CartItem{
				MerchantID: merchantID,
				CustomerID: customerID,
				ProductID:  line.ProductID,
				Quantity:   line.Quantity,
				UnitPrice:  line.UnitPrice,
				TotalPrice: line.UnitPrice.Mul(decimalFromInt(line.Quantity)),
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := repo.Upsert(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore cart item")
			}
		}
		return nil
	})
}

// Get returns the cart with totals. Currency falls back to the merchant's.
func (s *Service) Get(ctx context.Context, merchantID, customerID int64, currency enums.Currency) (View, error) {
	rows, err := s.repo.List(ctx, merchantID, customerID)
	if err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart")
	}
	return BuildView(rows, currency), nil
}

// BuildView totals cart rows.
func BuildView(rows []models.CartItem, currency enums.Currency) View {
	view := View{Lines: make([]Line, 0, len(rows)), Total: decimal.Zero, Currency: currency}
	for _, row := range rows {
		name := fmt.Sprintf("Produit #%d", row.ProductID)
		if row.Product != nil {
			name = row.Product.Name
			if row.Product.Currency != "" {
				view.Currency = row.Product.Currency
			}
		}
		view.Lines = append(view.Lines, Line{
			ProductID:   row.ProductID,
			ProductName: name,
			Quantity:    row.Quantity,
			UnitPrice:   row.UnitPrice,
			TotalPrice:  row.TotalPrice,
		})
		view.Total = view.Total.Add(row.TotalPrice)
	}
	if view.Currency == "" {
		view.Currency = enums.DefaultCurrency
	}
	return view
}

// PurgeStale deletes cart lines untouched since before.
func (s *Service) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.repo.DeleteStale(ctx, before)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete stale cart items")
	}
	return n, nil
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
