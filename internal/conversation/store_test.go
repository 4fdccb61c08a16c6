package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wacommerce-backend/pkg/db/dbtest"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
	"github.com/angelmondragon/wacommerce-backend/pkg/types"
)

func newTestStore(t *testing.T) (*Store, int64, int64) {
	t.Helper()
	client, conn := dbtest.Client(t)
	merchant := dbtest.MustCreateMerchant(t, conn)
	customer := dbtest.MustCreateCustomer(t, conn, merchant.ID, "2250701010101")
	store, err := NewStore(NewRepository(conn), client)
	require.NoError(t, err)
	return store, merchant.ID, customer.ID
}

func TestStoreLoadMissingIsEmpty(t *testing.T) {
	store, m, c := newTestStore(t)
	doc, err := store.Load(context.Background(), m, c)
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestStoreMergeSemantics(t *testing.T) {
	store, m, c := newTestStore(t)
	ctx := context.Background()

	_, err := store.Merge(ctx, m, c, types.Document{"a": "1", "b": "2"})
	require.NoError(t, err)
	doc, err := store.Merge(ctx, m, c, types.Document{"b": nil, "c": "3"})
	require.NoError(t, err)
	assert.Equal(t, types.Document{"a": "1", "c": "3"}, doc)

	loaded, err := store.Load(ctx, m, c)
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)

	doc, err = store.Merge(ctx, m, c, types.Document{})
	require.NoError(t, err)
	assert.Empty(t, doc)
	loaded, err = store.Load(ctx, m, c)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestStoreKeepsStepColumnInSync(t *testing.T) {
	client, conn := dbtest.Client(t)
	merchant := dbtest.MustCreateMerchant(t, conn)
	customer := dbtest.MustCreateCustomer(t, conn, merchant.ID, "2250701010102")
	store, err := NewStore(NewRepository(conn), client)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Merge(ctx, merchant.ID, customer.ID, PhasePatch(NeedsHuman{}))
	require.NoError(t, err)

	var row models.ConversationState
	require.NoError(t, conn.Where("customer_id = ?", customer.ID).First(&row).Error)
	assert.Equal(t, enums.ConversationStepNeedsHuman, row.Step)

	require.NoError(t, store.Reset(ctx, merchant.ID, customer.ID))
	require.NoError(t, conn.Where("customer_id = ?", customer.ID).First(&row).Error)
	assert.Equal(t, enums.ConversationStepUnset, row.Step)
	assert.Empty(t, row.Data)
}

func TestStoreConcurrentMergesKeepEveryKey(t *testing.T) {
	store, m, c := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.Merge(ctx, m, c, types.Document{fmt.Sprintf("k%d", i): i}); err != nil {
				t.Errorf("merge %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	doc, err := store.Load(ctx, m, c)
	require.NoError(t, err)
	assert.Len(t, doc, 10)
}

func TestStoreResetStale(t *testing.T) {
	client, conn := dbtest.Client(t)
	merchant := dbtest.MustCreateMerchant(t, conn)
	stuck := dbtest.MustCreateCustomer(t, conn, merchant.ID, "2250701010103")
	fresh := dbtest.MustCreateCustomer(t, conn, merchant.ID, "2250701010104")
	store, err := NewStore(NewRepository(conn), client)
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []int64{stuck.ID, fresh.ID} {
		_, err := store.Merge(ctx, merchant.ID, id, PhasePatch(AwaitingConfirmation{}))
		require.NoError(t, err)
	}
	old := time.Now().UTC().Add(-72 * time.Hour)
	require.NoError(t, conn.Model(&models.ConversationState{}).
		Where("customer_id = ?", stuck.ID).
		UpdateColumn("updated_at", old).Error)

	n, err := store.ResetStale(ctx, []enums.ConversationStep{enums.ConversationStepAwaitingConfirmation}, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	st, err := store.LoadState(ctx, merchant.ID, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, Unset{}, st.Phase)
	st, err = store.LoadState(ctx, merchant.ID, fresh.ID)
	require.NoError(t, err)
	assert.True(t, st.AwaitingConfirmation())
}
