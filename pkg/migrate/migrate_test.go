package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateEmbedded())
}

func TestSchemaConstraints(t *testing.T) {
	checks := map[string][]string{
		"create_products_cart_items": {
			"CONSTRAINT idx_cart_items_owner_product UNIQUE (merchant_id, customer_id, product_id)",
			"CHECK (quantity > 0)",
		},
		"create_conversation_states": {
			"CONSTRAINT idx_conversation_states_owner UNIQUE (merchant_id, customer_id)",
			"data JSONB NOT NULL",
		},
		"create_orders": {
			"CONSTRAINT uq_orders_reference UNIQUE (reference)",
			"REFERENCES orders(id) ON DELETE CASCADE",
			"DROP TABLE IF EXISTS order_items",
		},
	}

	matches, err := fs.Glob(embedded, embeddedDir+"/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	for suffix, needles := range checks {
		var content string
		for _, name := range matches {
			if strings.HasSuffix(name, "_"+suffix+".sql") {
				data, err := fs.ReadFile(embedded, name)
				require.NoError(t, err)
				content = string(data)
			}
		}
		require.NotEmpty(t, content, "missing migration %s", suffix)
		for _, needle := range needles {
			require.Contains(t, content, needle, "migration %s", suffix)
		}
	}
}

func TestValidateFSRejectsBadFiles(t *testing.T) {
	bad := fstest.MapFS{
		"m/20260101000000_ok.sql":   {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"m/20260101000000_dupe.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
	}
	require.ErrorContains(t, ValidateFS(bad, "m"), "duplicate migration version")

	missing := fstest.MapFS{
		"m/20260101000000_ok.sql": {Data: []byte("-- +goose Up\n")},
	}
	require.ErrorContains(t, ValidateFS(missing, "m"), "-- +goose Down")

	badName := fstest.MapFS{
		"m/create_things.sql": {Data: []byte("")},
	}
	require.ErrorContains(t, ValidateFS(badName, "m"), "invalid migration filename")
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Order Notes!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_order_notes.sql"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "-- +goose Up")
	require.NoError(t, ValidateDir(filepath.Dir(path)))

	_, err = CreateSQLMigration(dir, "  !!  ")
	require.Error(t, err)
}
