package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/wacommerce-backend/internal/fields"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
)

// ErrInvalidValue is returned when a profile value fails field validation.
var ErrInvalidValue = errors.New("invalid customer field value")

// profileColumns maps the updatable profile fields onto their columns.
var profileColumns = map[fields.Field]string{
	fields.Name:          "name",
	fields.Address:       "address",
	fields.PaymentMethod: "payment_method",
}

// Service manages customer identity and accreting profile fields.
type Service struct {
	repo Repository
}

// NewService builds a customer service.
func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	return &Service{repo: repo}, nil
}

// IsProfileField reports whether f may be written through UpdateField.
func IsProfileField(f fields.Field) bool {
	_, ok := profileColumns[f]
	return ok
}

// FindOrCreate returns the customer for phone, creating it on first contact.
func (s *Service) FindOrCreate(ctx context.Context, merchantID int64, phone string) (*models.Customer, error) {
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer phone required")
	}
	customer, err := s.repo.FindOrCreate(ctx, merchantID, phone)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find or create customer")
	}
	return customer, nil
}

// Get reloads a customer.
func (s *Service) Get(ctx context.Context, merchantID, id int64) (*models.Customer, error) {
	customer, err := s.repo.FindByID(ctx, merchantID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	return customer, nil
}

// UpdateField validates raw against field and writes the canonical value onto
// customer. Payment methods are stored in canonical form. ErrInvalidValue is
// returned without touching storage when validation fails.
func (s *Service) UpdateField(ctx context.Context, customer *models.Customer, field fields.Field, raw string) error {
	column, ok := profileColumns[field]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("field %q is not a customer profile field", field))
	}
	if !fields.Validate(field, raw) {
		return ErrInvalidValue
	}

	value := strings.TrimSpace(raw)
	var stored any = value
	if field == fields.PaymentMethod {
		method, _ := fields.ParsePaymentMethod(raw)
		stored = method
	}

	if err := s.repo.UpdateColumn(ctx, customer.ID, column, stored); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update customer")
	}

	switch field {
	case fields.Name:
		customer.Name = &value
	case fields.Address:
		customer.Address = &value
	case fields.PaymentMethod:
		method, _ := fields.ParsePaymentMethod(raw)
		customer.PaymentMethod = &method
	}
	return nil
}
