// Package orchestrator runs one inbound WhatsApp message through the
// merchant gate, deduplication, the deterministic dialogue and finally the
// external agent, then sends the resulting reply.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/wacommerce-backend/internal/actions"
	"github.com/angelmondragon/wacommerce-backend/internal/agent"
	"github.com/angelmondragon/wacommerce-backend/internal/cart"
	"github.com/angelmondragon/wacommerce-backend/internal/catalog"
	"github.com/angelmondragon/wacommerce-backend/internal/conversation"
	"github.com/angelmondragon/wacommerce-backend/internal/gateway"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
	"github.com/angelmondragon/wacommerce-backend/pkg/logger"
	"github.com/angelmondragon/wacommerce-backend/pkg/metrics"
	"github.com/angelmondragon/wacommerce-backend/pkg/redis"
	"github.com/angelmondragon/wacommerce-backend/pkg/types"
)

// GenericErrorMessage is sent when a message could not be processed.
const GenericErrorMessage = "Oups, un problème technique est survenu 😕 Merci de réessayer dans un instant."

const catalogCaption = "📒 Voici notre catalogue. Dites-moi ce qui vous fait plaisir !"

// Inbound is a normalized customer message.
type Inbound struct {
	MessageID  string
	RoutingKey string
	From       string
	Text       string
}

// MerchantResolver maps a gateway routing key to an active merchant.
type MerchantResolver interface {
	Resolve(ctx context.Context, routingKey string) (*models.Merchant, error)
}

// CustomerFinder returns the customer behind a phone number, creating it on first contact.
type CustomerFinder interface {
	FindOrCreate(ctx context.Context, merchantID int64, phone string) (*models.Customer, error)
}

// StateLoader reads the raw conversation document.
type StateLoader interface {
	Load(ctx context.Context, merchantID, customerID int64) (types.Document, error)
}

// CartReader returns the priced live cart.
type CartReader interface {
	Get(ctx context.Context, merchantID, customerID int64, currency enums.Currency) (cart.View, error)
}

// ProductLister lists the products offered to the agent.
type ProductLister interface {
	ListActive(ctx context.Context, merchantID int64) ([]models.Product, error)
}

// CatalogProvider answers catalog keywords with a document or a text listing.
type CatalogProvider interface {
	Document(ctx context.Context, merchant *models.Merchant) (catalog.Document, error)
	Listing(ctx context.Context, merchant *models.Merchant) (string, error)
}

// Agent is the external AI agent. Its answer is untrusted.
type Agent interface {
	Decide(ctx context.Context, req agent.Request) (agent.Response, error)
}

// ActionApplier validates and executes the agent's raw actions.
type ActionApplier interface {
	ApplyRaw(ctx context.Context, sess *conversation.Session, raw []json.RawMessage) (actions.Result, error)
}

// Sender delivers replies through the WhatsApp gateway.
type Sender interface {
	SendText(ctx context.Context, session, phone, text string) error
	SendDocument(ctx context.Context, session, phone string, doc gateway.Document, caption string) error
}

// Deps groups the collaborators of an Orchestrator.
type Deps struct {
	Merchants MerchantResolver
	Customers CustomerFinder
	States    StateLoader
	Machine   *conversation.Machine
	Actions   ActionApplier
	Carts     CartReader
	Products  ProductLister
	Catalog   CatalogProvider
	Agent     Agent
	Sender    Sender
	// Dedupe is optional; without it redelivered messages are processed again.
	Dedupe    redis.IdempotencyStore
	DedupeTTL time.Duration
	Metrics   *metrics.ConversationMetrics
	Logger    *logger.Logger
	// ExposeErrors appends internal error text to the apology (dev only).
	ExposeErrors bool
}

// Orchestrator handles inbound messages.
type Orchestrator struct {
	d Deps
}

// New validates deps and builds an Orchestrator.
func New(d Deps) (*Orchestrator, error) {
	switch {
	case d.Merchants == nil:
		return nil, fmt.Errorf("merchant resolver required")
	case d.Customers == nil:
		return nil, fmt.Errorf("customer finder required")
	case d.States == nil:
		return nil, fmt.Errorf("state loader required")
	case d.Machine == nil:
		return nil, fmt.Errorf("conversation machine required")
	case d.Actions == nil:
		return nil, fmt.Errorf("action applier required")
	case d.Carts == nil:
		return nil, fmt.Errorf("cart reader required")
	case d.Products == nil:
		return nil, fmt.Errorf("product lister required")
	case d.Catalog == nil:
		return nil, fmt.Errorf("catalog provider required")
	case d.Agent == nil:
		return nil, fmt.Errorf("agent required")
	case d.Sender == nil:
		return nil, fmt.Errorf("sender required")
	}
	if d.DedupeTTL <= 0 {
		d.DedupeTTL = 24 * time.Hour
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return &Orchestrator{d: d}, nil
}

// Handle processes one message and returns its outcome label. Errors are
// only returned for failures the customer could not be told about.
func (o *Orchestrator) Handle(ctx context.Context, msg Inbound) (string, error) {
	outcome, err := o.handle(ctx, msg)
	o.d.Metrics.IncInbound(outcome)
	return outcome, err
}

func (o *Orchestrator) handle(ctx context.Context, msg Inbound) (string, error) {
	logg := o.d.Logger
	merchant, err := o.d.Merchants.Resolve(ctx, msg.RoutingKey)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) || pkgerrors.IsCode(err, pkgerrors.CodeForbidden) || pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			logg.Info(logg.WithFields(ctx, map[string]any{"routing_key": msg.RoutingKey, "reason": err.Error()}), "inbound message dropped")
			return metrics.OutcomeIgnored, nil
		}
		return metrics.OutcomeFailed, err
	}
	ctx = logg.WithMerchantID(ctx, merchant.ID)

	if dup := o.seen(ctx, msg.MessageID); dup {
		return metrics.OutcomeDuplicate, nil
	}

	customer, err := o.d.Customers.FindOrCreate(ctx, merchant.ID, msg.From)
	if err != nil {
		return o.fail(ctx, merchant, msg.From, err)
	}
	ctx = logg.WithCustomerID(ctx, customer.ID)

	doc, err := o.d.States.Load(ctx, merchant.ID, customer.ID)
	if err != nil {
		return o.fail(ctx, merchant, customer.Phone, err)
	}
	sess := &conversation.Session{Merchant: merchant, Customer: customer, State: conversation.Decode(doc)}

	outcome, reply, err := o.route(ctx, sess, msg.Text)
	if err != nil {
		return o.fail(ctx, merchant, customer.Phone, err)
	}
	if reply.Escalated {
		o.d.Metrics.IncEscalations()
	}
	if reply.Order != nil {
		o.d.Metrics.IncOrdersCreated()
		logg.Info(logg.WithField(ctx, "order_reference", reply.Order.Reference), "order created")
	}
	if reply.Text == "" {
		return outcome, nil
	}
	if err := o.sendText(ctx, merchant, customer.Phone, reply.Text); err != nil {
		return metrics.OutcomeFailed, err
	}
	return outcome, nil
}

// route applies the short-circuit order and returns the reply to send.
func (o *Orchestrator) route(ctx context.Context, sess *conversation.Session, text string) (string, conversation.Reply, error) {
	m := o.d.Machine
	st := sess.State

	if st.OptedOut {
		if conversation.IsOptIn(text) {
			o.d.Metrics.IncRoute("opt_in")
			reply, err := m.OptIn(ctx, sess)
			return metrics.OutcomeHandled, reply, err
		}
		return metrics.OutcomeOptedOut, conversation.Reply{}, nil
	}
	if conversation.IsOptOut(text) {
		o.d.Metrics.IncRoute("opt_out")
		reply, err := m.OptOut(ctx, sess)
		return metrics.OutcomeOptedOut, reply, err
	}
	if st.NeedsHuman() {
		return metrics.OutcomeHandoff, conversation.Reply{}, nil
	}

	if st.AwaitingConfirmation() {
		if conversation.IsCancel(text) {
			o.d.Metrics.IncRoute("cancel")
			reply, err := m.Cancel(ctx, sess)
			return metrics.OutcomeHandled, reply, err
		}
		if conversation.IsConfirm(text) {
			o.d.Metrics.IncRoute("confirm")
			reply, err := m.Confirm(ctx, sess)
			return outcomeOf(reply), reply, err
		}
	}

	reply, handled, err := m.HandleStructured(ctx, sess, text)
	if err != nil {
		return metrics.OutcomeFailed, conversation.Reply{}, err
	}
	if handled {
		o.d.Metrics.IncRoute("structured")
		return outcomeOf(reply), reply, nil
	}

	if conversation.IsCatalogRequest(text) {
		o.d.Metrics.IncRoute("catalog")
		return metrics.OutcomeHandled, o.sendCatalog(ctx, sess), nil
	}
	if conversation.IsListRequest(text) {
		o.d.Metrics.IncRoute("listing")
		listing, err := o.d.Catalog.Listing(ctx, sess.Merchant)
		return metrics.OutcomeHandled, conversation.Reply{Text: listing}, err
	}

	o.d.Metrics.IncRoute("agent")
	reply, err = o.askAgent(ctx, sess, text)
	return outcomeOf(reply), reply, err
}

func (o *Orchestrator) askAgent(ctx context.Context, sess *conversation.Session, text string) (conversation.Reply, error) {
	merchantID, customerID := sess.Merchant.ID, sess.Customer.ID
	view, err := o.d.Carts.Get(ctx, merchantID, customerID, sess.Merchant.Currency)
	if err != nil {
		return conversation.Reply{}, err
	}
	rows, err := o.d.Products.ListActive(ctx, merchantID)
	if err != nil {
		return conversation.Reply{}, err
	}

	req := agent.NewRequest(text, sess.Merchant, sess.Customer, view, rows, sess.State.Encode())
	start := time.Now()
	resp, err := o.d.Agent.Decide(ctx, req)
	o.d.Metrics.ObserveUpstream("agent", err, time.Since(start))
	if err != nil {
		o.d.Logger.Error(ctx, "agent call failed", err)
		return conversation.Reply{Text: agent.FallbackMessage}, nil
	}

	result, err := o.d.Actions.ApplyRaw(ctx, sess, resp.Actions)
	if err != nil {
		return conversation.Reply{}, err
	}
	reply := conversation.Reply{Text: resp.Message, Escalated: result.Escalated, Order: result.Order}
	if result.Override != "" {
		reply.Text = result.Override
	}
	return reply, nil
}

func (o *Orchestrator) sendCatalog(ctx context.Context, sess *conversation.Session) conversation.Reply {
	start := time.Now()
	doc, err := o.d.Catalog.Document(ctx, sess.Merchant)
	o.d.Metrics.ObserveUpstream("catalog", err, time.Since(start))
	if err != nil {
		o.d.Logger.Warn(o.d.Logger.WithField(ctx, "error", err.Error()), "catalog export failed")
		return conversation.Reply{Text: catalog.FailureMessage}
	}
	err = o.d.Sender.SendDocument(ctx, sess.Merchant.SessionName, sess.Customer.Phone,
		gateway.Document{URL: doc.URL, Filename: doc.Filename}, catalogCaption)
	o.d.Metrics.IncOutbound("document", err)
	if err != nil {
		o.d.Logger.Error(ctx, "send catalog document failed", err)
		return conversation.Reply{Text: catalog.FailureMessage}
	}
	return conversation.Reply{}
}

func (o *Orchestrator) sendText(ctx context.Context, merchant *models.Merchant, phone, text string) error {
	err := o.d.Sender.SendText(ctx, merchant.SessionName, phone, text)
	o.d.Metrics.IncOutbound("text", err)
	if err != nil {
		o.d.Logger.Error(ctx, "send reply failed", err)
	}
	return err
}

// fail logs err and tells the customer something went wrong.
func (o *Orchestrator) fail(ctx context.Context, merchant *models.Merchant, phone string, err error) (string, error) {
	o.d.Logger.Error(ctx, "message processing failed", err)
	text := GenericErrorMessage
	if o.d.ExposeErrors {
		text = text + "\n(" + strings.TrimSpace(err.Error()) + ")"
	}
	if sendErr := o.sendText(ctx, merchant, phone, text); sendErr != nil {
		return metrics.OutcomeFailed, sendErr
	}
	return metrics.OutcomeFailed, nil
}

// seen reports a redelivered message. Redis failures let the message through.
func (o *Orchestrator) seen(ctx context.Context, messageID string) bool {
	if o.d.Dedupe == nil || strings.TrimSpace(messageID) == "" {
		return false
	}
	first, err := o.d.Dedupe.SetNX(ctx, o.d.Dedupe.IdempotencyKey("inbound", messageID), "1", o.d.DedupeTTL)
	if err != nil {
		o.d.Logger.Warn(o.d.Logger.WithField(ctx, "error", err.Error()), "inbound dedupe unavailable")
		return false
	}
	return !first
}

func outcomeOf(r conversation.Reply) string {
	if r.Escalated {
		return metrics.OutcomeHandoff
	}
	return metrics.OutcomeHandled
}
