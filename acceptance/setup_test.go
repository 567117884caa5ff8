// Package acceptance exercises the SQL repositories against a real Postgres.
// Tests skip when DATABASE_URL does not point at a reachable database.
package acceptance

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sanujarubasinghe/cyclechain/bike"
	"github.com/sanujarubasinghe/cyclechain/customer"
	"github.com/sanujarubasinghe/cyclechain/internal/migrate"
	"github.com/sanujarubasinghe/cyclechain/product"
)

type testDB struct {
	*sqlx.DB
}

func newTestDB(t *testing.T) *testDB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := sqlx.Connect("pgx", dbURL)
	if err != nil {
		t.Skipf("database not reachable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := migrate.Run(context.Background(), db, logger); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	cleanupTestData(t, db)
	return &testDB{DB: db}
}

func cleanupTestData(t *testing.T, db *sqlx.DB) {
	t.Helper()

	_, err := db.Exec(`TRUNCATE feedback, payment_items, payments, cart_items, products,
		reservations, customer_cards, customers, bikes, stations CASCADE`)
	if err != nil {
		t.Fatalf("failed to clean test data: %v", err)
	}
}

func (db *testDB) createStation(t *testing.T, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO stations (id, name, address, opening_hours, location, type)
		VALUES ($1, $2, 'Test Address', '6-22', point(6.93, 79.84), 'public')
	`, id, name)
	if err != nil {
		t.Fatalf("failed to create test station: %v", err)
	}
	return id
}

func (db *testDB) createBike(t *testing.T, label string, stationID *uuid.UUID) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO bikes (id, label, name, location, price_per_km, station_id)
		VALUES ($1, $2, $3, point(6.92, 79.86), 50, $4)
	`, id, label, "Bike "+label, stationID)
	if err != nil {
		t.Fatalf("failed to create test bike: %v", err)
	}
	return id
}

func (db *testDB) getBike(t *testing.T, id uuid.UUID) bike.Bike {
	t.Helper()
	b, err := bike.NewRepository(db.DB).GetBike(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to get bike: %v", err)
	}
	return b
}

func (db *testDB) createCustomer(t *testing.T, auth0ID string) *customer.Customer {
	t.Helper()
	c, err := customer.NewRepository(db.DB).CreateCustomer(context.Background(), auth0ID)
	if err != nil {
		t.Fatalf("failed to create customer: %v", err)
	}
	return c
}

func (db *testDB) createProduct(t *testing.T, name string, price int64, stock int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO products (id, name, category, price, stock)
		VALUES ($1, $2, $3, $4, $5)
	`, id, name, product.CategoryAccessory, decimal.NewFromInt(price), stock)
	if err != nil {
		t.Fatalf("failed to create test product: %v", err)
	}
	return id
}

func point(x, y float64) pgtype.Point {
	return pgtype.Point{P: pgtype.Vec2{X: x, Y: y}, Valid: true}
}
