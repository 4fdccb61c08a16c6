package actions

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacommerce-backend/internal/cart"
	"github.com/angelmondragon/wacommerce-backend/internal/conversation"
	"github.com/angelmondragon/wacommerce-backend/internal/customers"
	"github.com/angelmondragon/wacommerce-backend/internal/delivery"
	"github.com/angelmondragon/wacommerce-backend/internal/fields"
	"github.com/angelmondragon/wacommerce-backend/internal/orders"
	"github.com/angelmondragon/wacommerce-backend/internal/products"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/dbtest"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	"github.com/angelmondragon/wacommerce-backend/pkg/logger"
	"github.com/angelmondragon/wacommerce-backend/pkg/metrics"
)

type fixture struct {
	app      *Applicator
	store    *conversation.Store
	carts    *cart.Service
	orders   *orders.Service
	registry *prometheus.Registry
	conn     *gorm.DB
	merchant *models.Merchant
	customer *models.Customer
	rice     *models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	merchant := dbtest.MustCreateMerchant(t, conn)
	customer := dbtest.MustCreateCustomer(t, conn, merchant.ID, "2250708080808")
	rice := dbtest.MustCreateProduct(t, conn, merchant.ID, "Riz 5kg", 5000)

	productRepo := products.NewRepository(conn)
	productSvc, err := products.NewService(productRepo)
	require.NoError(t, err)
	cartRepo := cart.NewRepository(conn)
	carts, err := cart.NewService(cartRepo, productSvc, client)
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orders.NewRepository(conn), cartRepo, productRepo, client)
	require.NoError(t, err)
	customerSvc, err := customers.NewService(customers.NewRepository(conn))
	require.NoError(t, err)
	store, err := conversation.NewStore(conversation.NewRepository(conn), client)
	require.NoError(t, err)
	parser := delivery.NewParser(time.UTC)
	machine, err := conversation.NewMachine(store, customerSvc, carts, orderSvc, parser, logger.Nop())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	app, err := NewApplicator(machine, carts, customerSvc, orderSvc, metrics.NewConversationMetrics(reg), logger.Nop())
	require.NoError(t, err)
	return &fixture{
		app: app, store: store, carts: carts, orders: orderSvc, registry: reg, conn: conn,
		merchant: merchant, customer: customer, rice: rice,
	}
}

func (f *fixture) session(t *testing.T) *conversation.Session {
	t.Helper()
	st, err := f.store.LoadState(context.Background(), f.merchant.ID, f.customer.ID)
	require.NoError(t, err)
	return &conversation.Session{Merchant: f.merchant, Customer: f.customer, State: st}
}

func (f *fixture) cartView(t *testing.T) cart.View {
	t.Helper()
	view, err := f.carts.Get(context.Background(), f.merchant.ID, f.customer.ID, enums.CurrencyXOF)
	require.NoError(t, err)
	return view
}

func raws(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		out = append(out, json.RawMessage(item))
	}
	return out
}

func TestApplyRawRunsActionsInOrderAndDropsUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t)

	res, err := f.app.ApplyRaw(ctx, sess, raws(
		`{"type":"ADD_TO_CART","product_id":`+itoa(f.rice.ID)+`,"quantity":3}`,
		`{"type":"DANCE"}`,
		`{"type":"REMOVE_FROM_CART","product_id":`+itoa(f.rice.ID)+`,"quantity":1}`,
	))
	require.NoError(t, err)
	assert.Empty(t, res.Override)

	view := f.cartView(t)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
	assert.Equal(t, float64(1), actionCount(t, f.registry, "invalid", ResultUnknown))
	assert.Equal(t, float64(1), actionCount(t, f.registry, "ADD_TO_CART", ResultApplied))
}

func TestUnknownProductOverridesReply(t *testing.T) {
	f := newFixture(t)
	res, err := f.app.Apply(context.Background(), f.session(t), AddToCart{ProductID: 9999, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, msgUnknownProduct, res.Override)
	assert.True(t, f.cartView(t).IsEmpty())
}

func TestConcurrentAddToCartSums(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, qty := range []int{2, 5} {
		wg.Add(1)
		go func(qty int) {
			defer wg.Done()
			sess := &conversation.Session{Merchant: f.merchant, Customer: f.customer, State: conversation.State{Phase: conversation.Unset{}}}
			if _, err := f.app.Apply(ctx, sess, AddToCart{ProductID: f.rice.ID, Quantity: qty}); err != nil {
				t.Errorf("add %d: %v", qty, err)
			}
		}(qty)
	}
	wg.Wait()

	view := f.cartView(t)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 7, view.Lines[0].Quantity)
	assert.True(t, view.Total.Equal(decimal.NewFromInt(35000)), "total %s", view.Total)
}

func TestUpdateCustomerRejectsAckAndAsksField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t)

	res, err := f.app.Apply(ctx, sess, UpdateCustomer{Field: fields.Name, Value: "ok"})
	require.NoError(t, err)
	assert.Contains(t, res.Override, conversation.Question(fields.Name))

	sess = f.session(t)
	field, ok := sess.State.WaitingField()
	require.True(t, ok)
	assert.Equal(t, fields.Name, field)

	var stored models.Customer
	require.NoError(t, f.conn.First(&stored, f.customer.ID).Error)
	assert.Nil(t, stored.Name)

	_, err = f.app.Apply(ctx, sess, UpdateCustomer{Field: fields.PaymentMethod, Value: "je paie avec orange money"})
	require.NoError(t, err)
	require.NoError(t, f.conn.First(&stored, f.customer.ID).Error)
	assert.Equal(t, enums.PaymentMethodOrangeMoney, stored.PaymentMethodValue())
}

func TestSetStateEmptyPatchIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t)
	_, err := f.app.Apply(ctx, sess, AskInfo{Field: fields.Delivery})
	require.NoError(t, err)

	_, err = f.app.Apply(ctx, sess, SetState{})
	require.NoError(t, err)
	field, ok := f.session(t).State.WaitingField()
	require.True(t, ok)
	assert.Equal(t, fields.Delivery, field)

	_, err = f.app.Apply(ctx, sess, SetState{Patch: map[string]any{"recipient_mode": "third_party", "secret": "x"}})
	require.NoError(t, err)
	doc, err := f.store.Load(ctx, f.merchant.ID, f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "third_party", doc["recipient_mode"])
	assert.NotContains(t, doc, "secret")
	assert.Equal(t, "ASKING_INFO", doc["step"])
}

func TestLastOrderActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t)

	res, err := f.app.Apply(ctx, sess, ShowLastOrder{})
	require.NoError(t, err)
	assert.Equal(t, msgNoOrder, res.Override)

	require.NoError(t, f.carts.Add(ctx, f.merchant.ID, f.customer.ID, f.rice.ID, 2))
	at := time.Now().Add(48 * time.Hour)
	order, err := f.orders.CommitFromCart(ctx, orders.CommitInput{
		MerchantID: f.merchant.ID, CustomerID: f.customer.ID, Currency: enums.CurrencyXOF,
		RecipientMode: enums.RecipientModeSelf, RecipientName: "Awa", RecipientPhone: f.customer.Phone,
		DeliveryRaw: "après-demain", DeliveryAt: &at, PaymentMethod: enums.PaymentMethodCash,
	})
	require.NoError(t, err)

	res, err = f.app.Apply(ctx, sess, ShowLastOrder{})
	require.NoError(t, err)
	assert.Contains(t, res.Override, order.Reference)

	res, err = f.app.Apply(ctx, sess, ModifyLastOrder{})
	require.NoError(t, err)
	assert.Contains(t, res.Override, "10 000")
	assert.Equal(t, 2, f.cartView(t).Lines[0].Quantity)

	res, err = f.app.Apply(ctx, sess, CancelLastOrder{})
	require.NoError(t, err)
	assert.Equal(t, msgTerminalOrder, res.Override)
}

func TestConfirmOrderOutsideAwaitingShowsFirstQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.carts.Add(ctx, f.merchant.ID, f.customer.ID, f.rice.ID, 1))

	res, err := f.app.Apply(ctx, f.session(t), ConfirmOrder{})
	require.NoError(t, err)
	assert.Equal(t, conversation.Question(fields.RecipientMode), res.Override)
	assert.Nil(t, res.Order)
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func actionCount(t *testing.T, reg *prometheus.Registry, actionType, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "wacommerce_agent_actions_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelsMatch(metric, map[string]string{"type": actionType, "result": result}) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, want map[string]string) bool {
	matched := 0
	for _, pair := range metric.GetLabel() {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
