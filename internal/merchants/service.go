package merchants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/wacommerce-backend/internal/fields"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
)

// Service resolves inbound routing keys to merchants and applies the access gate.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a merchant service.
func NewService(repo Repository, now func() time.Time) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("merchant repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}, nil
}

// Resolve finds the merchant addressed by a gateway session name or by the
// merchant's WhatsApp number, then checks it may receive messages.
func (s *Service) Resolve(ctx context.Context, routingKey string) (*models.Merchant, error) {
	if routingKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "routing key required")
	}

	merchant, err := s.repo.FindBySessionName(ctx, routingKey)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if digits := fields.DigitsOnly(routingKey); digits != "" {
			merchant, err = s.repo.FindByWhatsAppNumber(ctx, digits)
		}
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "merchant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
	}
	if merchant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "merchant not found")
	}
	if err := s.Authorize(merchant); err != nil {
		return nil, err
	}
	return merchant, nil
}

// Get loads a merchant by id without the access gate.
func (s *Service) Get(ctx context.Context, id int64) (*models.Merchant, error) {
	merchant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "merchant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
	}
	return merchant, nil
}

// Authorize rejects suspended merchants and lapsed subscriptions.
func (s *Service) Authorize(merchant *models.Merchant) error {
	if merchant.Suspended {
		return pkgerrors.New(pkgerrors.CodeForbidden, "merchant suspended")
	}
	if !merchant.CanReceiveMessages(s.now()) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "merchant subscription expired")
	}
	return nil
}
