// Package dbtest opens isolated in-memory SQLite databases carrying the same
// schema as the Postgres migrations.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacommerce-backend/pkg/db"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
)

var schema = []string{
	`CREATE TABLE merchants (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  whatsapp_number TEXT NOT NULL UNIQUE,
  session_name TEXT NOT NULL UNIQUE,
  currency TEXT NOT NULL DEFAULT 'XOF',
  suspended INTEGER NOT NULL DEFAULT 0,
  subscription_expires_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE customers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  merchant_id INTEGER NOT NULL,
  phone TEXT NOT NULL,
  name TEXT,
  address TEXT,
  payment_method TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (merchant_id, phone)
);`,
	`CREATE TABLE products (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  merchant_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  code TEXT,
  price NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'XOF',
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE cart_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  merchant_id INTEGER NOT NULL,
  customer_id INTEGER NOT NULL,
  product_id INTEGER NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  unit_price NUMERIC NOT NULL,
  total_price NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (merchant_id, customer_id, product_id)
);`,
	`CREATE TABLE conversation_states (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  merchant_id INTEGER NOT NULL,
  customer_id INTEGER NOT NULL,
  data TEXT NOT NULL DEFAULT '{}',
  step TEXT NOT NULL DEFAULT '',
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (merchant_id, customer_id)
);`,
	`CREATE TABLE orders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  reference TEXT NOT NULL UNIQUE,
  merchant_id INTEGER NOT NULL,
  customer_id INTEGER NOT NULL,
  recipient_mode TEXT NOT NULL,
  recipient_name TEXT NOT NULL,
  recipient_phone TEXT NOT NULL,
  delivery_address TEXT,
  delivery_requested_raw TEXT NOT NULL,
  delivery_requested_at DATETIME,
  payment_method TEXT,
  total_amount NUMERIC NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE order_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id INTEGER NOT NULL,
  product_id INTEGER NOT NULL,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  total_price NUMERIC NOT NULL,
  created_at DATETIME
);`,
}

// Open returns a fresh database private to the test. A single connection is
// used so concurrent writers serialize instead of failing with SQLITE_LOCKED.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}

// Client wraps Open in a db.Client for services that need WithTx.
func Client(t *testing.T) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.NewFromGorm(conn), conn
}

var merchantSeq atomic.Int64

// MustCreateMerchant inserts an active merchant.
func MustCreateMerchant(t *testing.T, conn *gorm.DB) *models.Merchant {
	t.Helper()
	suffix := uuid.NewString()[:8]
	merchant := &models.Merchant{
		Name:           "Boutique " + suffix,
		WhatsAppNumber: fmt.Sprintf("2250700%06d", merchantSeq.Add(1)),
		SessionName:    "session-" + suffix,
		Currency:       enums.CurrencyXOF,
	}
	if err := conn.Create(merchant).Error; err != nil {
		t.Fatalf("create merchant: %v", err)
	}
	return merchant
}

// MustCreateCustomer inserts a customer with no profile fields.
func MustCreateCustomer(t *testing.T, conn *gorm.DB, merchantID int64, phone string) *models.Customer {
	t.Helper()
	customer := &models.Customer{MerchantID: merchantID, Phone: phone}
	if err := conn.Create(customer).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return customer
}

// MustCreateProduct inserts an active product priced in XOF.
func MustCreateProduct(t *testing.T, conn *gorm.DB, merchantID int64, name string, price int64) *models.Product {
	t.Helper()
	product := &models.Product{
		MerchantID: merchantID,
		Name:       name,
		Price:      decimal.NewFromInt(price),
		Currency:   enums.CurrencyXOF,
		IsActive:   true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}
