package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/wacommerce-backend/internal/cart"
	"github.com/angelmondragon/wacommerce-backend/internal/fields"
	"github.com/angelmondragon/wacommerce-backend/internal/orders"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	"github.com/angelmondragon/wacommerce-backend/pkg/logger"
	"github.com/angelmondragon/wacommerce-backend/pkg/types"
)

// DefaultLoopGuardThreshold is how many consecutive invalid answers to one
// question are tolerated before the conversation is handed to a human.
const DefaultLoopGuardThreshold = 3

// StateStore persists conversation documents.
type StateStore interface {
	Merge(ctx context.Context, merchantID, customerID int64, patch types.Document) (types.Document, error)
	Replace(ctx context.Context, merchantID, customerID int64, doc types.Document) (types.Document, error)
}

// CustomerUpdater writes validated profile fields.
type CustomerUpdater interface {
	UpdateField(ctx context.Context, customer *models.Customer, field fields.Field, raw string) error
}

// CartReader exposes the cart operations the dialogue needs.
type CartReader interface {
	Get(ctx context.Context, merchantID, customerID int64, currency enums.Currency) (cart.View, error)
	Clear(ctx context.Context, merchantID, customerID int64) error
}

// OrderCommitter turns the cart into an order.
type OrderCommitter interface {
	CommitFromCart(ctx context.Context, in orders.CommitInput) (*models.Order, error)
}

// DeliveryParser resolves delivery text into a timestamp.
type DeliveryParser interface {
	Parse(raw string) (time.Time, bool)
	IsPastTime(t time.Time) bool
}

// Session is the per-message context the machine works on. State is kept
// in sync with every write.
type Session struct {
	Merchant *models.Merchant
	Customer *models.Customer
	State    State
}

// Reply is the outcome of a dialogue step.
type Reply struct {
	Text      string
	Escalated bool
	Order     *models.Order
}

// Machine drives order collection: which field to ask next, answer
// validation, the loop guard, confirmation and cancellation.
type Machine struct {
	store     StateStore
	customers CustomerUpdater
	carts     CartReader
	orders    OrderCommitter
	parser    DeliveryParser
	logg      *logger.Logger
	threshold int
}

// Option customizes a Machine.
type Option func(*Machine)

// WithLoopGuardThreshold overrides DefaultLoopGuardThreshold. Non-positive
// values are ignored.
func WithLoopGuardThreshold(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.threshold = n
		}
	}
}

// NewMachine wires the dialogue dependencies.
func NewMachine(store StateStore, customers CustomerUpdater, carts CartReader, orderSvc OrderCommitter, parser DeliveryParser, logg *logger.Logger, opts ...Option) (*Machine, error) {
	if store == nil {
		return nil, fmt.Errorf("state store required")
	}
	if customers == nil {
		return nil, fmt.Errorf("customer updater required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order committer required")
	}
	if parser == nil {
		return nil, fmt.Errorf("delivery parser required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	m := &Machine{
		store:     store,
		customers: customers,
		carts:     carts,
		orders:    orderSvc,
		parser:    parser,
		logg:      logg,
		threshold: DefaultLoopGuardThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NextMissing returns the first requirement not yet met for an order:
// recipient mode, then the name (self) or recipient name, phone and
// address (third party), then payment method, then delivery.
func NextMissing(customer *models.Customer, d Draft) (fields.Field, bool) {
	switch d.RecipientMode {
	case enums.RecipientModeSelf:
		if customer.DisplayName() == "" {
			return fields.Name, true
		}
	case enums.RecipientModeThirdParty:
		if d.RecipientName == "" {
			return fields.RecipientName, true
		}
		if d.RecipientPhone == "" {
			return fields.RecipientPhone, true
		}
		if d.RecipientAddress == "" {
			return fields.RecipientAddress, true
		}
	default:
		return fields.RecipientMode, true
	}
	if customer.PaymentMethodValue() == "" {
		return fields.PaymentMethod, true
	}
	if d.DeliveryRaw == "" || d.DeliveryAt == nil {
		return fields.Delivery, true
	}
	return "", false
}

// Patch merges patch into the session state.
func (m *Machine) Patch(ctx context.Context, sess *Session, patch types.Document) error {
	if len(patch) == 0 {
		return nil
	}
	doc, err := m.store.Merge(ctx, sess.Merchant.ID, sess.Customer.ID, patch)
	if err != nil {
		return err
	}
	sess.State = Decode(doc)
	return nil
}

// Reset clears the session state entirely.
func (m *Machine) Reset(ctx context.Context, sess *Session) error {
	return m.replace(ctx, sess, types.Document{})
}

func (m *Machine) replace(ctx context.Context, sess *Session, doc types.Document) error {
	out, err := m.store.Replace(ctx, sess.Merchant.ID, sess.Customer.ID, doc)
	if err != nil {
		return err
	}
	sess.State = Decode(out)
	return nil
}

// Ask moves to ASKING_INFO for f and returns its question, prefixed by
// lead when given. A fresh question starts with a clear loop guard.
func (m *Machine) Ask(ctx context.Context, sess *Session, f fields.Field, lead string) (Reply, error) {
	patch := PhasePatch(AskingInfo{WaitingField: f})
	patch[KeyLoopGuard] = nil
	if err := m.Patch(ctx, sess, patch); err != nil {
		return Reply{}, err
	}
	text := Question(f)
	if lead != "" {
		text = lead + "\n" + text
	}
	return Reply{Text: text}, nil
}

// Fail records an invalid answer to f. Once the same question has failed
// more than the threshold in a row the conversation escalates to a human;
// until then it is re-asked with a hint.
func (m *Machine) Fail(ctx context.Context, sess *Session, f fields.Field, hint string) (Reply, error) {
	key := f.QuestionKey()
	guard := &LoopGuard{Key: key, Count: 1}
	if current := sess.State.LoopGuard; current != nil && current.Key == key {
		guard.Count = current.Count + 1
	}
	if guard.Count > m.threshold {
		m.logg.Warn(ctx, fmt.Sprintf("loop guard tripped on %s after %d attempts", key, guard.Count))
		return m.Escalate(ctx, sess)
	}

	patch := PhasePatch(AskingInfo{WaitingField: f})
	patch[KeyLoopGuard] = LoopGuardValue(guard)
	if err := m.Patch(ctx, sess, patch); err != nil {
		return Reply{}, err
	}
	if hint == "" {
		hint = clarification(f)
	}
	return Reply{Text: hint + "\n" + Question(f)}, nil
}

// Escalate hands the conversation to a human. The bot stays silent until
// the merchant releases it.
func (m *Machine) Escalate(ctx context.Context, sess *Session) (Reply, error) {
	patch := PhasePatch(NeedsHuman{})
	patch[KeyLoopGuard] = nil
	if err := m.Patch(ctx, sess, patch); err != nil {
		return Reply{}, err
	}
	return Reply{Text: handoffMessage(sess.Merchant), Escalated: true}, nil
}

// Advance asks the next missing field, or moves to AWAITING_CONFIRMATION
// with the order summary once everything is collected.
func (m *Machine) Advance(ctx context.Context, sess *Session) (Reply, error) {
	if f, missing := NextMissing(sess.Customer, sess.State.Draft); missing {
		return m.Ask(ctx, sess, f, "")
	}
	view, err := m.carts.Get(ctx, sess.Merchant.ID, sess.Customer.ID, sess.Merchant.Currency)
	if err != nil {
		return Reply{}, err
	}
	if view.IsEmpty() {
		if err := m.Patch(ctx, sess, PhasePatch(Unset{})); err != nil {
			return Reply{}, err
		}
		return Reply{Text: msgCartEmpty}, nil
	}
	if err := m.Patch(ctx, sess, PhasePatch(AwaitingConfirmation{})); err != nil {
		return Reply{}, err
	}
	return Reply{Text: summaryMessage(view, sess.Customer, sess.State.Draft)}, nil
}

// Confirm handles an order confirmation. Outside AWAITING_CONFIRMATION it
// only leads to the summary; inside it re-checks every requirement and the
// delivery date before committing the cart.
func (m *Machine) Confirm(ctx context.Context, sess *Session) (Reply, error) {
	if !sess.State.AwaitingConfirmation() {
		return m.Advance(ctx, sess)
	}
	draft := sess.State.Draft
	if f, missing := NextMissing(sess.Customer, draft); missing {
		return m.Ask(ctx, sess, f, "")
	}
	if m.parser.IsPastTime(*draft.DeliveryAt) {
		patch := PhasePatch(AskingInfo{WaitingField: fields.Delivery})
		patch[KeyDeliveryRaw] = nil
		patch[KeyDeliveryAt] = nil
		if err := m.Patch(ctx, sess, patch); err != nil {
			return Reply{}, err
		}
		return Reply{Text: msgDeliveryPast + "\n" + Question(fields.Delivery)}, nil
	}

	r := recipientOf(sess.Customer, draft)
	order, err := m.orders.CommitFromCart(ctx, orders.CommitInput{
		MerchantID:      sess.Merchant.ID,
		CustomerID:      sess.Customer.ID,
		Currency:        sess.Merchant.Currency,
		RecipientMode:   draft.RecipientMode,
		RecipientName:   r.name,
		RecipientPhone:  r.phone,
		DeliveryAddress: r.address,
		DeliveryRaw:     draft.DeliveryRaw,
		DeliveryAt:      draft.DeliveryAt,
		PaymentMethod:   sess.Customer.PaymentMethodValue(),
	})
	if err != nil {
		if errors.Is(err, orders.ErrEmptyCart) {
			if err := m.Patch(ctx, sess, PhasePatch(Unset{})); err != nil {
				return Reply{}, err
			}
			return Reply{Text: msgCartEmpty}, nil
		}
		return Reply{}, err
	}

	if err := m.replace(ctx, sess, types.Document{
		KeyStep:           string(enums.ConversationStepCompleted),
		KeyOrderCompleted: true,
	}); err != nil {
		// the order exists; a stale state only re-shows the summary
		m.logg.Error(ctx, fmt.Sprintf("reset state after order %s", order.Reference), err)
	}
	return Reply{Text: orderCreatedMessage(order), Order: order}, nil
}

// Cancel abandons the order in progress: the cart and all draft data are
// cleared. Profile fields stay on the customer.
func (m *Machine) Cancel(ctx context.Context, sess *Session) (Reply, error) {
	if err := m.carts.Clear(ctx, sess.Merchant.ID, sess.Customer.ID); err != nil {
		return Reply{}, err
	}
	if err := m.Reset(ctx, sess); err != nil {
		return Reply{}, err
	}
	return Reply{Text: msgCanceled}, nil
}

// OptOut silences the bot for this customer and clears the pending question.
func (m *Machine) OptOut(ctx context.Context, sess *Session) (Reply, error) {
	patch := PhasePatch(Unset{})
	patch[KeyOptedOut] = true
	patch[KeyLoopGuard] = nil
	if err := m.Patch(ctx, sess, patch); err != nil {
		return Reply{}, err
	}
	return Reply{Text: msgOptedOut}, nil
}

// OptIn lifts an opt-out.
func (m *Machine) OptIn(ctx context.Context, sess *Session) (Reply, error) {
	if err := m.Patch(ctx, sess, types.Document{KeyOptedOut: nil}); err != nil {
		return Reply{}, err
	}
	return Reply{Text: msgOptedIn}, nil
}
