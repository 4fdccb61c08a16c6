package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacommerce-backend/internal/cart"
	"github.com/angelmondragon/wacommerce-backend/internal/products"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
)

var (
	// ErrEmptyCart is returned when a commit finds no cart lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNoOrder is returned when the customer has never ordered.
	ErrNoOrder = errors.New("no previous order")
	// ErrTerminalOrder is returned when a delivered or canceled order would change.
	ErrTerminalOrder = errors.New("order is already delivered or canceled")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CommitInput carries the recipient, delivery and payment snapshot that is
// frozen onto the order.
type CommitInput struct {
	MerchantID      int64
	CustomerID      int64
	Currency        enums.Currency
	RecipientMode   enums.RecipientMode
	RecipientName   string
	RecipientPhone  string
	DeliveryAddress string
	DeliveryRaw     string
	DeliveryAt      *time.Time
	PaymentMethod   enums.PaymentMethod
}

// Service owns the cart-to-order transition and later order mutations.
type Service struct {
	repo     Repository
	carts    cart.Repository
	products products.Repository
	tx       txRunner
}

// NewService builds an order service.
func NewService(repo Repository, carts cart.Repository, productRepo products.Repository, tx txRunner) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Service{repo: repo, carts: carts, products: productRepo, tx: tx}, nil
}

// CommitFromCart converts the customer's cart into an order in one
// transaction: lock and read the cart rows, fail on an empty cart, write the
// header and the items, then delete exactly the rows that were read. Lines
// added concurrently after the read stay in the cart.
func (s *Service) CommitFromCart(ctx context.Context, in CommitInput) (*models.Order, error) {
	if !in.RecipientMode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient mode required")
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		rows, err := carts.ListForUpdate(ctx, in.MerchantID, in.CustomerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		if len(rows) == 0 {
			return ErrEmptyCart
		}

		names, err := s.productNames(ctx, tx, in.MerchantID, rows)
		if err != nil {
			return err
		}

		total := decimal.Zero
		ids := make([]int64, 0, len(rows))
		for _, row := range rows {
			total = total.Add(row.TotalPrice)
			ids = append(ids, row.ID)
		}

		order := &models.Order{
			Reference:            NewReference(),
			MerchantID:           in.MerchantID,
			CustomerID:           in.CustomerID,
			RecipientMode:        in.RecipientMode,
			RecipientName:        in.RecipientName,
			RecipientPhone:       in.RecipientPhone,
			DeliveryAddress:      optional(in.DeliveryAddress),
			DeliveryRequestedRaw: in.DeliveryRaw,
			DeliveryRequestedAt:  in.DeliveryAt,
			TotalAmount:          total,
			Currency:             in.Currency,
			Status:               enums.OrderStatusPending,
		}
		if order.Currency == "" {
			order.Currency = enums.DefaultCurrency
		}
		if in.PaymentMethod != "" {
			method := in.PaymentMethod
			order.PaymentMethod = &method
		}

		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		items := make([]models.OrderItem, 0, len(rows))
		for _, row := range rows {
			items = append(items, models.OrderItem{
				OrderID:     order.ID,
				ProductID:   row.ProductID,
				ProductName: names[row.ProductID],
				Quantity:    row.Quantity,
				UnitPrice:   row.UnitPrice,
				TotalPrice:  row.TotalPrice,
			})
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		if err := carts.DeleteByIDs(ctx, ids); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "empty cart")
		}

		order.Items = items
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Last returns the customer's most recent order with its items.
func (s *Service) Last(ctx context.Context, merchantID, customerID int64) (*models.Order, error) {
	order, err := s.repo.FindLastForCustomer(ctx, merchantID, customerID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoOrder
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load last order")
	}
	return order, nil
}

// CancelLast cancels the most recent order unless it is terminal.
func (s *Service) CancelLast(ctx context.Context, merchantID, customerID int64) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.lockLast(ctx, tx, merchantID, customerID)
		if err != nil {
			return err
		}
		return s.cancel(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ModifyLast cancels the most recent non-terminal order and replaces the
// live cart with its lines so the customer can edit and confirm again.
func (s *Service) ModifyLast(ctx context.Context, merchantID, customerID int64) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.lockLast(ctx, tx, merchantID, customerID)
		if err != nil {
			return err
		}
		if err := s.cancel(ctx, tx, order); err != nil {
			return err
		}

		carts := s.carts.WithTx(tx)
		if err := carts.Clear(ctx, merchantID, customerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		now := time.Now()
		for _, item := range order.Items {
			line := &models.CartItem{
				MerchantID: merchantID,
				CustomerID: customerID,
				ProductID:  item.ProductID,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
				TotalPrice: item.TotalPrice,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := carts.Upsert(ctx, line); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore cart line")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateStatus applies a merchant-initiated status transition.
func (s *Service) UpdateStatus(ctx context.Context, merchantID, orderID int64, status enums.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", status))
	}
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = repo.FindByID(ctx, merchantID, orderID, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == status {
			return nil
		}
		if !order.Status.CanTransitionTo(status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order cannot move from %s to %s", order.Status, status))
		}
		if err := repo.UpdateStatus(ctx, order.ID, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) lockLast(ctx context.Context, tx *gorm.DB, merchantID, customerID int64) (*models.Order, error) {
	order, err := s.repo.WithTx(tx).FindLastForCustomer(ctx, merchantID, customerID, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoOrder
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load last order")
	}
	return order, nil
}

func (s *Service) cancel(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order.Status.IsTerminal() {
		return ErrTerminalOrder
	}
	if err := s.repo.WithTx(tx).UpdateStatus(ctx, order.ID, enums.OrderStatusCanceled); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	order.Status = enums.OrderStatusCanceled
	return nil
}

func (s *Service) productNames(ctx context.Context, tx *gorm.DB, merchantID int64, rows []models.CartItem) (map[int64]string, error) {
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProductID)
	}
	found, err := s.products.WithTx(tx).FindByIDs(ctx, merchantID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order products")
	}
	names := make(map[int64]string, len(rows))
	for _, p := range found {
		names[p.ID] = p.Name
	}
	for _, id := range ids {
		if names[id] == "" {
			names[id] = fmt.Sprintf("Produit #%d", id)
		}
	}
	return names, nil
}

// NewReference derives a short customer-facing order reference from a UUID.
func NewReference() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "CMD-" + strings.ToUpper(raw[:8])
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
