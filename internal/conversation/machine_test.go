package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacommerce-backend/internal/cart"
	"github.com/angelmondragon/wacommerce-backend/internal/customers"
	"github.com/angelmondragon/wacommerce-backend/internal/delivery"
	"github.com/angelmondragon/wacommerce-backend/internal/fields"
	"github.com/angelmondragon/wacommerce-backend/internal/orders"
	"github.com/angelmondragon/wacommerce-backend/internal/products"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/dbtest"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	"github.com/angelmondragon/wacommerce-backend/pkg/logger"
	"github.com/angelmondragon/wacommerce-backend/pkg/types"
)

var clockNow = time.Date(2030, 6, 10, 9, 0, 0, 0, time.UTC)

type machineFixture struct {
	machine  *Machine
	store    *Store
	carts    *cart.Service
	conn     *gorm.DB
	merchant *models.Merchant
	customer *models.Customer
	rice     *models.Product
}

func newMachineFixture(t *testing.T) *machineFixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	merchant := dbtest.MustCreateMerchant(t, conn)
	customer := dbtest.MustCreateCustomer(t, conn, merchant.ID, "2250707070707")
	rice := dbtest.MustCreateProduct(t, conn, merchant.ID, "Riz parfumé 5kg", 5000)

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
	store, err := NewStore(NewRepository(conn), client)
	require.NoError(t, err)
	parser := delivery.NewParser(time.UTC, delivery.WithClock(func() time.Time { return clockNow }))

	machine, err := NewMachine(store, customerSvc, carts, orderSvc, parser, logger.Nop())
	require.NoError(t, err)
	return &machineFixture{
		machine: machine, store: store, carts: carts, conn: conn,
		merchant: merchant, customer: customer, rice: rice,
	}
}

func (f *machineFixture) session(t *testing.T) *Session {
	t.Helper()
	st, err := f.store.LoadState(context.Background(), f.merchant.ID, f.customer.ID)
	require.NoError(t, err)
	return &Session{Merchant: f.merchant, Customer: f.customer, State: st}
}

func (f *machineFixture) answer(t *testing.T, sess *Session, text string) Reply {
	t.Helper()
	reply, handled, err := f.machine.HandleStructured(context.Background(), sess, text)
	require.NoError(t, err)
	require.True(t, handled, "answer %q was not consumed", text)
	return reply
}

func (f *machineFixture) countOrders(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&n).Error)
	return n
}

func waiting(t *testing.T, sess *Session) fields.Field {
	t.Helper()
	field, ok := sess.State.WaitingField()
	require.True(t, ok, "expected a waiting field, phase is %T", sess.State.Phase)
	return field
}

func TestNextMissingOrder(t *testing.T) {
	name := "Awa"
	wave := enums.PaymentMethodWave
	at := clockNow.Add(24 * time.Hour)

	bare := &models.Customer{Phone: "2250700000001"}
	named := &models.Customer{Phone: "2250700000001", Name: &name}
	full := &models.Customer{Phone: "2250700000001", Name: &name, PaymentMethod: &wave}

	tests := []struct {
		name     string
		customer *models.Customer
		draft    Draft
		want     fields.Field
	}{
		{"mode first", full, Draft{}, fields.RecipientMode},
		{"self needs name", bare, Draft{RecipientMode: enums.RecipientModeSelf}, fields.Name},
		{"third party name", full, Draft{RecipientMode: enums.RecipientModeThirdParty}, fields.RecipientName},
		{"third party phone", full, Draft{RecipientMode: enums.RecipientModeThirdParty, RecipientName: "Ali"}, fields.RecipientPhone},
		{"third party address", full, Draft{RecipientMode: enums.RecipientModeThirdParty, RecipientName: "Ali", RecipientPhone: "0700000001"}, fields.RecipientAddress},
		{"payment", named, Draft{RecipientMode: enums.RecipientModeSelf}, fields.PaymentMethod},
		{"delivery", full, Draft{RecipientMode: enums.RecipientModeSelf}, fields.Delivery},
		{"delivery needs timestamp", full, Draft{RecipientMode: enums.RecipientModeSelf, DeliveryRaw: "demain"}, fields.Delivery},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, missing := NextMissing(tc.customer, tc.draft)
			assert.True(t, missing)
			assert.Equal(t, tc.want, got)
		})
	}

	_, missing := NextMissing(full, Draft{RecipientMode: enums.RecipientModeSelf, DeliveryRaw: "demain", DeliveryAt: &at})
	assert.False(t, missing)
}

func TestSelfFlowReachesConfirmationAndCreatesOrder(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.carts.Add(ctx, f.merchant.ID, f.customer.ID, f.rice.ID, 1))

	sess := f.session(t)
	reply, err := f.machine.Confirm(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, fields.RecipientMode, waiting(t, sess))
	assert.Contains(t, reply.Text, "Pour moi")

	f.answer(t, sess, "1")
	assert.Equal(t, fields.Name, waiting(t, sess))
	f.answer(t, sess, "Awa Koné")
	assert.Equal(t, fields.PaymentMethod, waiting(t, sess))
	f.answer(t, sess, "wave")
	assert.Equal(t, fields.Delivery, waiting(t, sess))
	reply = f.answer(t, sess, "demain 10h")

	require.True(t, sess.State.AwaitingConfirmation())
	assert.Contains(t, reply.Text, "5 000")
	assert.Contains(t, reply.Text, "demain 10h")
	assert.Contains(t, reply.Text, "Awa Koné")
	assert.Contains(t, reply.Text, "Wave")

	// a fresh load sees the same state
	sess = f.session(t)
	require.True(t, sess.State.AwaitingConfirmation())
	require.NotNil(t, sess.State.Draft.DeliveryAt)
	assert.Equal(t, time.Date(2030, 6, 11, 10, 0, 0, 0, time.UTC), sess.State.Draft.DeliveryAt.UTC())

	reply, err = f.machine.Confirm(ctx, sess)
	require.NoError(t, err)
	require.NotNil(t, reply.Order)
	assert.Contains(t, reply.Text, reply.Order.Reference)
	assert.Equal(t, "Awa Koné", reply.Order.RecipientName)
	assert.Equal(t, f.customer.Phone, reply.Order.RecipientPhone)
	assert.Equal(t, int64(1), f.countOrders(t))

	view, err := f.carts.Get(ctx, f.merchant.ID, f.customer.ID, enums.CurrencyXOF)
	require.NoError(t, err)
	assert.True(t, view.IsEmpty())

	sess = f.session(t)
	assert.Equal(t, Completed{}, sess.State.Phase)
	assert.True(t, sess.State.OrderCompleted)
	assert.Equal(t, Draft{}, sess.State.Draft)
}

func TestAckIsRejectedForWaitingField(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	sess := f.session(t)
	_, err := f.machine.Ask(ctx, sess, fields.Name, "")
	require.NoError(t, err)

	reply := f.answer(t, sess, "ok 👍")
	assert.Equal(t, fields.Name, waiting(t, sess))
	assert.Contains(t, reply.Text, Question(fields.Name))
	require.NotNil(t, sess.State.LoopGuard)
	assert.Equal(t, 1, sess.State.LoopGuard.Count)

	var stored models.Customer
	require.NoError(t, f.conn.First(&stored, f.customer.ID).Error)
	assert.Nil(t, stored.Name)
}

func TestRepeatedInvalidAddressEscalates(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	sess := f.session(t)
	_, err := f.machine.Ask(ctx, sess, fields.RecipientMode, "")
	require.NoError(t, err)
	f.answer(t, sess, "2")
	f.answer(t, sess, "Fatou Diallo")
	f.answer(t, sess, "07 00 00 00 01")
	require.Equal(t, fields.RecipientAddress, waiting(t, sess))

	for i, text := range []string{"12", "ok", "??"} {
		reply := f.answer(t, sess, text)
		assert.False(t, reply.Escalated, "attempt %d", i+1)
		assert.Equal(t, i+1, sess.State.LoopGuard.Count)
	}
	reply := f.answer(t, sess, "1")
	assert.True(t, reply.Escalated)
	assert.Contains(t, reply.Text, f.merchant.Name)
	assert.True(t, sess.State.NeedsHuman())
	assert.Nil(t, sess.State.LoopGuard)

	sess = f.session(t)
	assert.True(t, sess.State.NeedsHuman())
}

func TestDifferentQuestionRestartsLoopGuard(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	sess := f.session(t)
	_, err := f.machine.Fail(ctx, sess, fields.Name, "")
	require.NoError(t, err)
	_, err = f.machine.Fail(ctx, sess, fields.Name, "")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.State.LoopGuard.Count)

	_, err = f.machine.Fail(ctx, sess, fields.PaymentMethod, "")
	require.NoError(t, err)
	assert.Equal(t, &LoopGuard{Key: "payment_method_question", Count: 1}, sess.State.LoopGuard)

	f.answer(t, sess, "orange money")
	assert.Nil(t, sess.State.LoopGuard)
}

func TestPastDeliveryIsRejected(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	sess := f.session(t)
	_, err := f.machine.Ask(ctx, sess, fields.Delivery, "")
	require.NoError(t, err)

	reply := f.answer(t, sess, "01/01/2020")
	assert.Contains(t, reply.Text, msgDeliveryPast)
	assert.Equal(t, fields.Delivery, waiting(t, sess))
	assert.Empty(t, sess.State.Draft.DeliveryRaw)

	f.answer(t, sess, "2030-06-12 15:00")
	assert.Equal(t, "2030-06-12 15:00", sess.State.Draft.DeliveryRaw)
}

func seedCompleteDraft(t *testing.T, f *machineFixture, sess *Session, at time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.machine.customers.UpdateField(ctx, f.customer, fields.Name, "Awa Koné"))
	require.NoError(t, f.machine.customers.UpdateField(ctx, f.customer, fields.PaymentMethod, "cash"))
	patch := DraftPatch(Draft{RecipientMode: enums.RecipientModeSelf, DeliveryRaw: "plus tard", DeliveryAt: &at})
	for k, v := range PhasePatch(AwaitingConfirmation{}) {
		patch[k] = v
	}
	require.NoError(t, f.machine.Patch(ctx, sess, patch))
}

func TestConfirmOnEmptyCartRedirects(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	sess := f.session(t)
	seedCompleteDraft(t, f, sess, clockNow.Add(48*time.Hour))

	reply, err := f.machine.Confirm(ctx, sess)
	require.NoError(t, err)
	assert.Nil(t, reply.Order)
	assert.Equal(t, msgCartEmpty, reply.Text)
	assert.Equal(t, int64(0), f.countOrders(t))
	assert.Equal(t, Unset{}, sess.State.Phase)
	assert.Equal(t, enums.RecipientModeSelf, sess.State.Draft.RecipientMode)
}

func TestConfirmWithMissingFieldAsksIt(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.carts.Add(ctx, f.merchant.ID, f.customer.ID, f.rice.ID, 1))
	sess := f.session(t)
	require.NoError(t, f.machine.Patch(ctx, sess, PhasePatch(AwaitingConfirmation{})))

	_, err := f.machine.Confirm(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, fields.RecipientMode, waiting(t, sess))
	assert.Equal(t, int64(0), f.countOrders(t))
}

func TestConfirmRechecksDeliveryDate(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.carts.Add(ctx, f.merchant.ID, f.customer.ID, f.rice.ID, 1))
	sess := f.session(t)
	seedCompleteDraft(t, f, sess, clockNow.Add(-time.Hour))

	reply, err := f.machine.Confirm(ctx, sess)
	require.NoError(t, err)
	assert.Nil(t, reply.Order)
	assert.Contains(t, reply.Text, msgDeliveryPast)
	assert.Equal(t, fields.Delivery, waiting(t, sess))
	assert.Nil(t, sess.State.Draft.DeliveryAt)
	assert.Equal(t, int64(0), f.countOrders(t))
}

func TestCancelClearsCartAndDraft(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.carts.Add(ctx, f.merchant.ID, f.customer.ID, f.rice.ID, 2))
	sess := f.session(t)
	seedCompleteDraft(t, f, sess, clockNow.Add(48*time.Hour))

	reply, err := f.machine.Cancel(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, msgCanceled, reply.Text)
	assert.Equal(t, State{Phase: Unset{}}, sess.State)

	view, err := f.carts.Get(ctx, f.merchant.ID, f.customer.ID, enums.CurrencyXOF)
	require.NoError(t, err)
	assert.True(t, view.IsEmpty())

	var stored models.Customer
	require.NoError(t, f.conn.First(&stored, f.customer.ID).Error)
	assert.Equal(t, "Awa Koné", stored.DisplayName())
}

func TestUnknownWaitingFieldFallsThrough(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	sess := f.session(t)
	require.NoError(t, f.machine.Patch(ctx, sess, types.Document{KeyWaitingField: "favourite_color"}))

	reply, handled, err := f.machine.HandleStructured(ctx, sess, "ok")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Contains(t, reply.Text, msgGenericQuestion)

	_, handled, err = f.machine.HandleStructured(ctx, sess, "je veux du riz")
	require.NoError(t, err)
	assert.False(t, handled)
	_, ok := sess.State.WaitingField()
	assert.False(t, ok)
	assert.Nil(t, sess.State.LoopGuard)
}

func TestOptOutRoundTrip(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	sess := f.session(t)
	_, err := f.machine.Ask(ctx, sess, fields.Name, "")
	require.NoError(t, err)

	_, err = f.machine.OptOut(ctx, sess)
	require.NoError(t, err)
	stored := f.session(t).State
	assert.True(t, stored.OptedOut)
	assert.Equal(t, Unset{}, stored.Phase)

	_, err = f.machine.OptIn(ctx, sess)
	require.NoError(t, err)
	assert.False(t, f.session(t).State.OptedOut)
}

func TestRepeatedInvalidCustomerAddressNeverAskedFifthTime(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	sess := f.session(t)
	_, err := f.machine.Ask(ctx, sess, fields.Address, "")
	require.NoError(t, err)

	var replies []Reply
	for i := 0; i < 4; i++ {
		replies = append(replies, f.answer(t, sess, "x1"))
	}
	for _, r := range replies[:3] {
		assert.Contains(t, r.Text, Question(fields.Address))
	}
	assert.True(t, replies[3].Escalated)
	assert.NotContains(t, replies[3].Text, Question(fields.Address))
	assert.True(t, sess.State.NeedsHuman())
}

func TestLoopGuardThresholdOption(t *testing.T) {
	f := newMachineFixture(t)
	WithLoopGuardThreshold(1)(f.machine)
	ctx := context.Background()
	sess := f.session(t)

	reply, err := f.machine.Fail(ctx, sess, fields.Name, "")
	require.NoError(t, err)
	assert.False(t, reply.Escalated)
	reply, err = f.machine.Fail(ctx, sess, fields.Name, "")
	require.NoError(t, err)
	assert.True(t, reply.Escalated)
}

func TestAskClearsStaleLoopGuard(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	sess := f.session(t)
	_, err := f.machine.Fail(ctx, sess, fields.PaymentMethod, "")
	require.NoError(t, err)
	_, err = f.machine.Fail(ctx, sess, fields.PaymentMethod, "")
	require.NoError(t, err)
	require.Equal(t, 2, sess.State.LoopGuard.Count)

	reply, err := f.machine.Confirm(ctx, sess)
	require.NoError(t, err)
	_, asking := sess.State.WaitingField()
	assert.True(t, asking)
	assert.NotEmpty(t, reply.Text)
	assert.Nil(t, sess.State.LoopGuard)
	assert.Nil(t, f.session(t).State.LoopGuard)
}

func TestPhoneWaitingFieldIsValidatedBeforeAgent(t *testing.T) {
	f := newMachineFixture(t)
	ctx := context.Background()
	sess := f.session(t)
	require.NoError(t, f.machine.Patch(ctx, sess, PhasePatch(AskingInfo{WaitingField: fields.Phone})))

	reply := f.answer(t, sess, "12")
	assert.Contains(t, reply.Text, Question(fields.Phone))
	assert.Equal(t, fields.Phone, waiting(t, sess))
	require.NotNil(t, sess.State.LoopGuard)
	assert.Equal(t, 1, sess.State.LoopGuard.Count)

	_, handled, err := f.machine.HandleStructured(ctx, sess, "07 00 00 00 01")
	require.NoError(t, err)
	assert.False(t, handled)
	_, ok := sess.State.WaitingField()
	assert.False(t, ok)
	assert.Nil(t, sess.State.LoopGuard)
}
