// Package merchant holds the admin endpoints a merchant uses next to the bot.
package merchant

import (
	"context"
	"net/http"

	"github.com/angelmondragon/wacommerce-backend/api/middleware"
	"github.com/angelmondragon/wacommerce-backend/api/responses"
	"github.com/angelmondragon/wacommerce-backend/api/validators"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
	"github.com/angelmondragon/wacommerce-backend/pkg/logger"
)

// OrderStatusUpdater applies a merchant-driven order status transition.
type OrderStatusUpdater interface {
	UpdateStatus(ctx context.Context, merchantID, orderID int64, status enums.OrderStatus) (*models.Order, error)
}

// CustomerGetter loads a customer scoped to the merchant.
type CustomerGetter interface {
	Get(ctx context.Context, merchantID, id int64) (*models.Customer, error)
}

// ConversationResetter clears a customer's conversation state.
type ConversationResetter interface {
	Reset(ctx context.Context, merchantID, customerID int64) error
}

// CatalogInvalidator drops the cached catalog document.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context, merchantID int64) error
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed preparing in_delivery delivered canceled"`
}

type orderResponse struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Total     string `json:"total"`
	Currency  string `json:"currency"`
}

// UpdateOrderStatus moves one of the merchant's orders to a new status.
func UpdateOrderStatus(svc OrderStatusUpdater, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		merchantID, ok := merchantFrom(ctx, w, logg)
		if !ok {
			return
		}
		orderID, err := validators.PathID(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body updateStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.UpdateStatus(ctx, merchantID, orderID, enums.OrderStatus(body.Status))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderResponse{
			ID:        order.ID,
			Reference: order.Reference,
			Status:    string(order.Status),
			Total:     order.TotalAmount.StringFixed(0),
			Currency:  string(order.Currency),
		})
	}
}

// ReleaseConversation clears a customer's conversation so the bot answers
// again after a human handoff.
func ReleaseConversation(customers CustomerGetter, states ConversationResetter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		merchantID, ok := merchantFrom(ctx, w, logg)
		if !ok {
			return
		}
		customerID, err := validators.PathID(r, "customerId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if _, err := customers.Get(ctx, merchantID, customerID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := states.Reset(ctx, merchantID, customerID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithCustomerID(ctx, customerID), "conversation released")
		}
		responses.WriteSuccess(w, map[string]any{"customer_id": customerID, "released": true})
	}
}

// InvalidateCatalog drops the cached catalog document.
func InvalidateCatalog(catalog CatalogInvalidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		merchantID, ok := merchantFrom(ctx, w, logg)
		if !ok {
			return
		}
		if err := catalog.Invalidate(ctx, merchantID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"invalidated": true})
	}
}

func merchantFrom(ctx context.Context, w http.ResponseWriter, logg *logger.Logger) (int64, bool) {
	id := middleware.MerchantIDFromContext(ctx)
	if id == 0 {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "merchant context missing"))
		return 0, false
	}
	return id, true
}
