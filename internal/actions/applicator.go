package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/wacommerce-backend/internal/cart"
	"github.com/angelmondragon/wacommerce-backend/internal/conversation"
	"github.com/angelmondragon/wacommerce-backend/internal/customers"
	"github.com/angelmondragon/wacommerce-backend/internal/fields"
	"github.com/angelmondragon/wacommerce-backend/internal/orders"
	"github.com/angelmondragon/wacommerce-backend/internal/products"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
	"github.com/angelmondragon/wacommerce-backend/pkg/logger"
	"github.com/angelmondragon/wacommerce-backend/pkg/metrics"
)

// Action results recorded in metrics.
const (
	ResultApplied  = "applied"
	ResultRejected = "rejected"
	ResultUnknown  = "unknown"
)

const (
	msgUnknownProduct = "Je ne trouve pas ce produit dans notre catalogue 🤔 Tapez CATALOGUE pour voir nos produits."
	msgNoOrder        = "Vous n'avez pas encore passé de commande."
	msgTerminalOrder  = "Votre dernière commande est déjà livrée ou annulée, elle ne peut plus être modifiée."
)

// Carts is the cart surface actions mutate.
type Carts interface {
	Add(ctx context.Context, merchantID, customerID, productID int64, quantity int) error
	Remove(ctx context.Context, merchantID, customerID, productID int64, quantity *int) error
	Clear(ctx context.Context, merchantID, customerID int64) error
	Get(ctx context.Context, merchantID, customerID int64, currency enums.Currency) (cart.View, error)
}

// Orders is the post-confirmation order surface.
type Orders interface {
	Last(ctx context.Context, merchantID, customerID int64) (*models.Order, error)
	CancelLast(ctx context.Context, merchantID, customerID int64) (*models.Order, error)
	ModifyLast(ctx context.Context, merchantID, customerID int64) (*models.Order, error)
}

// Customers writes profile fields.
type Customers interface {
	UpdateField(ctx context.Context, customer *models.Customer, field fields.Field, raw string) error
}

// Result aggregates what applying a list of actions produced.
type Result struct {
	// Override replaces the agent's own message when non-empty.
	Override  string
	Escalated bool
	Order     *models.Order
}

// Applicator executes validated actions for one session.
type Applicator struct {
	machine   *conversation.Machine
	carts     Carts
	customers Customers
	orders    Orders
	metrics   *metrics.ConversationMetrics
	logg      *logger.Logger
}

// NewApplicator wires an applicator. Metrics may be nil.
func NewApplicator(machine *conversation.Machine, carts Carts, customerSvc Customers, orderSvc Orders, m *metrics.ConversationMetrics, logg *logger.Logger) (*Applicator, error) {
	if machine == nil {
		return nil, fmt.Errorf("conversation machine required")
	}
	if carts == nil {
		return nil, fmt.Errorf("carts required")
	}
	if customerSvc == nil {
		return nil, fmt.Errorf("customers required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("orders required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Applicator{machine: machine, carts: carts, customers: customerSvc, orders: orderSvc, metrics: m, logg: logg}, nil
}

// ApplyRaw parses and applies the agent's actions in order. Unknown or
// malformed actions are dropped with a warning. A persistence failure
// aborts the remaining actions and is returned.
func (a *Applicator) ApplyRaw(ctx context.Context, sess *conversation.Session, raw []json.RawMessage) (Result, error) {
	var out Result
	for i, item := range raw {
		action, err := Parse(item)
		if err != nil {
			result := ResultRejected
			if errors.Is(err, ErrUnknownType) {
				result = ResultUnknown
			}
			a.metrics.IncAction("invalid", result)
			a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), fmt.Sprintf("dropping agent action #%d", i))
			continue
		}
		step, err := a.Apply(ctx, sess, action)
		if err != nil {
			return out, err
		}
		if step.Override != "" {
			out.Override = step.Override
		}
		out.Escalated = out.Escalated || step.Escalated
		if step.Order != nil {
			out.Order = step.Order
		}
	}
	return out, nil
}

// Apply executes one action. Business rule violations become an override
// message; only dependency failures are returned as errors.
func (a *Applicator) Apply(ctx context.Context, sess *conversation.Session, action Action) (Result, error) {
	res, err := a.apply(ctx, sess, action)
	label := string(action.Type())
	switch {
	case err == nil:
		a.metrics.IncAction(label, ResultApplied)
		return res, nil
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
		a.metrics.IncAction(label, ResultRejected)
		a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), fmt.Sprintf("rejected %s action", label))
		if errors.Is(err, products.ErrUnknownProduct) {
			return Result{Override: msgUnknownProduct}, nil
		}
		return Result{}, nil
	default:
		a.metrics.IncAction(label, "failed")
		return Result{}, err
	}
}

func (a *Applicator) apply(ctx context.Context, sess *conversation.Session, action Action) (Result, error) {
	merchantID, customerID := sess.Merchant.ID, sess.Customer.ID

	switch act := action.(type) {
	case AddToCart:
		return Result{}, a.carts.Add(ctx, merchantID, customerID, act.ProductID, act.Quantity)

	case RemoveFromCart:
		return Result{}, a.carts.Remove(ctx, merchantID, customerID, act.ProductID, act.Quantity)

	case ClearCart:
		return Result{}, a.carts.Clear(ctx, merchantID, customerID)

	case SetState:
		if len(act.Patch) == 0 {
			return Result{}, nil
		}
		patch := conversation.SanitizePatch(sess.State, act.Patch)
		return Result{}, a.machine.Patch(ctx, sess, patch)

	case UpdateCustomer:
		err := a.customers.UpdateField(ctx, sess.Customer, act.Field, act.Value)
		if errors.Is(err, customers.ErrInvalidValue) {
			reply, err := a.machine.Fail(ctx, sess, act.Field, "")
			return fromReply(reply), err
		}
		return Result{}, err

	case AskInfo:
		return Result{}, a.machine.Patch(ctx, sess, conversation.PhasePatch(conversation.AskingInfo{WaitingField: act.Field}))

	case ShowLastOrder:
		order, err := a.orders.Last(ctx, merchantID, customerID)
		if errors.Is(err, orders.ErrNoOrder) {
			return Result{Override: msgNoOrder}, nil
		}
		if err != nil {
			return Result{}, err
		}
		return Result{Override: orders.Describe(order)}, nil

	case CancelLastOrder:
		order, err := a.orders.CancelLast(ctx, merchantID, customerID)
		if text, ok := orderRuleMessage(err); ok {
			return Result{Override: text}, nil
		}
		if err != nil {
			return Result{}, err
		}
		return Result{Override: fmt.Sprintf("Votre commande %s a été annulée ❌", order.Reference)}, nil

	case ModifyLastOrder:
		order, err := a.orders.ModifyLast(ctx, merchantID, customerID)
		if text, ok := orderRuleMessage(err); ok {
			return Result{Override: text}, nil
		}
		if err != nil {
			return Result{}, err
		}
		view, err := a.carts.Get(ctx, merchantID, customerID, sess.Merchant.Currency)
		if err != nil {
			return Result{}, err
		}
		return Result{Override: fmt.Sprintf(
			"La commande %s a été remise dans votre panier 🛒\n%s\nDites-moi ce que vous souhaitez changer.",
			order.Reference, view.Summary(),
		)}, nil

	case ConfirmOrder:
		reply, err := a.machine.Confirm(ctx, sess)
		return fromReply(reply), err
	}
	return Result{}, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrUnknownType, fmt.Sprintf("unhandled action %T", action))
}

func orderRuleMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, orders.ErrNoOrder):
		return msgNoOrder, true
	case errors.Is(err, orders.ErrTerminalOrder):
		return msgTerminalOrder, true
	}
	return "", false
}

func fromReply(r conversation.Reply) Result {
	return Result{Override: r.Text, Escalated: r.Escalated, Order: r.Order}
}
