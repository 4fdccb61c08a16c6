package products

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wacommerce-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
)

func TestLookupOnlyActiveMerchantProducts(t *testing.T) {
	conn := dbtest.Open(t)
	merchant := dbtest.MustCreateMerchant(t, conn)
	other := dbtest.MustCreateMerchant(t, conn)
	rice := dbtest.MustCreateProduct(t, conn, merchant.ID, "Riz 5kg", 5000)
	foreign := dbtest.MustCreateProduct(t, conn, other.ID, "Huile", 1500)
	retired := dbtest.MustCreateProduct(t, conn, merchant.ID, "Ancien", 100)
	require.NoError(t, conn.Model(retired).Update("is_active", false).Error)

	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	ctx := context.Background()

	got, err := svc.Lookup(ctx, merchant.ID, rice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Riz 5kg", got.Name)

	for _, id := range []int64{foreign.ID, retired.ID, 0, -3, 9999} {
		_, err := svc.Lookup(ctx, merchant.ID, id)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownProduct), "id %d", id)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	}

	rows, err := svc.ListActive(ctx, merchant.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestPlainTextListing(t *testing.T) {
	conn := dbtest.Open(t)
	merchant := dbtest.MustCreateMerchant(t, conn)
	dbtest.MustCreateProduct(t, conn, merchant.ID, "Riz 5kg", 5000)
	dbtest.MustCreateProduct(t, conn, merchant.ID, "Attiéké", 12500)

	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	rows, err := svc.ListActive(context.Background(), merchant.ID)
	require.NoError(t, err)

	text := PlainTextListing("Chez Awa", rows)
	assert.Contains(t, text, "Catalogue Chez Awa")
	assert.Contains(t, text, "1. Attiéké - 12 500 XOF")
	assert.Contains(t, text, "2. Riz 5kg - 5 000 XOF")

	assert.Equal(t, "Notre catalogue est vide pour le moment.", PlainTextListing("x", nil))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", FormatAmount(decimal.Zero))
	assert.Equal(t, "950", FormatAmount(decimal.NewFromInt(950)))
	assert.Equal(t, "1 000", FormatAmount(decimal.NewFromInt(1000)))
	assert.Equal(t, "1 234 567", FormatAmount(decimal.NewFromInt(1234567)))
	assert.Equal(t, "1 999.50", FormatAmount(decimal.RequireFromString("1999.5")))
	assert.Equal(t, "-2 500", FormatAmount(decimal.NewFromInt(-2500)))
}
