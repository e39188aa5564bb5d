package cart_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhtruong/restaurant-pos/internal/cart"
)

var db *pgxpool.Pool

func testEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestMain(m *testing.M) {
	host := testEnv("TEST_DB_HOST", "localhost")
	port := testEnv("TEST_DB_PORT", "5432")
	user := testEnv("TEST_DB_USER", "postgres")
	password := testEnv("TEST_DB_PASSWORD", "postgres")
	dbName := testEnv("TEST_DB_NAME", "pos_test")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbName)

	var err error
	db, err = pgxpool.New(context.Background(), connStr)
	if err == nil {
		err = db.Ping(context.Background())
	}
	if err != nil {
		fmt.Printf("skipping cart repository tests: test database not reachable: %v\n", err)
		os.Exit(0)
	}

	dsn := fmt.Sprintf("pgx5://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, dbName)
	mig, err := migrate.New("file://../../migrations", dsn)
	if err != nil {
		log.Fatalf("failed to initialize migrations: %v", err)
	}
	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	exitCode := m.Run()

	db.Close()
	os.Exit(exitCode)
}

func setupRepo(t *testing.T) cart.Repository {
	t.Helper()

	truncate := func() {
		_, err := db.Exec(context.Background(),
			"TRUNCATE TABLE invoices, payments, order_items, orders, cart_items, carts, reservations, products, tables RESTART IDENTITY CASCADE")
		if err != nil {
			t.Fatalf("failed to truncate tables: %v", err)
		}
	}

	truncate()
	t.Cleanup(truncate)

	return cart.NewRepository(db)
}

func seedTableAndProduct(t *testing.T) (int64, int64) {
	t.Helper()

	var tableID int64
	err := db.QueryRow(context.Background(),
		"INSERT INTO tables (number, capacity, status) VALUES (1, 4, 'available') RETURNING id",
	).Scan(&tableID)
	require.NoError(t, err)

	var productID int64
	err = db.QueryRow(context.Background(),
		"INSERT INTO products (name, price) VALUES ('Pho Bo', 50000) RETURNING id",
	).Scan(&productID)
	require.NoError(t, err)

	return tableID, productID
}

func TestRepositoryUpsertItem_Accumulates(t *testing.T) {
	repo := setupRepo(t)

	tableID, productID := seedTableAndProduct(t)
	created, err := repo.CreateCart(context.Background(), tableID)
	require.NoError(t, err)

	require.NoError(t, repo.UpsertItem(context.Background(), created.ID, productID, 2, "no onions"))
	require.NoError(t, repo.UpsertItem(context.Background(), created.ID, productID, 3, "extra chili"))

	var rows, quantity int
	var note string
	require.NoError(t, db.QueryRow(context.Background(),
		"SELECT count(*) FROM cart_items WHERE cart_id = $1", created.ID).Scan(&rows))
	require.NoError(t, db.QueryRow(context.Background(),
		"SELECT quantity, note FROM cart_items WHERE cart_id = $1 AND product_id = $2",
		created.ID, productID).Scan(&quantity, &note))

	assert.Equal(t, 1, rows, "repeated adds of one product must stay a single line")
	assert.Equal(t, 5, quantity, "quantities accumulate on merge")
	assert.Equal(t, "extra chili", note, "the note is last-write-wins")
}

func TestRepositoryCreateCart_SecondActiveCartConflicts(t *testing.T) {
	repo := setupRepo(t)

	tableID, _ := seedTableAndProduct(t)

	_, err := repo.CreateCart(context.Background(), tableID)
	require.NoError(t, err)

	_, err = repo.CreateCart(context.Background(), tableID)
	assert.ErrorIs(t, err, cart.ErrActiveCartExists)
}
