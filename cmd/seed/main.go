package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"grocer/internal/auth"
	"grocer/internal/config"
	"grocer/internal/database"
	"grocer/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type demoUser struct {
	name  string
	email string
	role  model.Role
}

type demoProduct struct {
	name     string
	price    string
	stock    int
	category string
	supplier string // email of the supplying user
}

var users = []demoUser{
	{"Administración", "admin@grocer.local", model.RoleAdmin},
	{"Caja 1", "caja@grocer.local", model.RoleCashier},
	{"Cliente Demo", "cliente@grocer.local", model.RoleCustomer},
	{"Repartidor Norte", "repartidor.norte@grocer.local", model.RoleCourier},
	{"Repartidor Sur", "repartidor.sur@grocer.local", model.RoleCourier},
	{"Lácteos del Valle", "lacteos@grocer.local", model.RoleSupplier},
	{"Abarrotes Centrales", "abarrotes@grocer.local", model.RoleSupplier},
}

// Some products start at or below the default low-stock threshold so the
// restock report has something to show.
var products = []demoProduct{
	{"Leche entera 1L", "28.00", 40, "Lácteos", "lacteos@grocer.local"},
	{"Queso panela 400g", "62.50", 3, "Lácteos", "lacteos@grocer.local"},
	{"Yogur natural 1kg", "45.90", 0, "Lácteos", "lacteos@grocer.local"},
	{"Arroz 1kg", "31.00", 25, "Abarrotes", "abarrotes@grocer.local"},
	{"Frijol negro 1kg", "38.00", 4, "Abarrotes", "abarrotes@grocer.local"},
	{"Aceite vegetal 1L", "52.00", 12, "Abarrotes", "abarrotes@grocer.local"},
	{"Tortillas 1kg", "22.00", 60, "Tortillería", ""},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	printTokens := flag.Bool("tokens", true, "print a bearer token for every demo user (needs JWT_SECRET)")
	flag.Parse()

	_ = godotenv.Load()

	dbCfg, logCfg, err := config.LoadMigration()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := config.NewLogger(logCfg)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPool(ctx, dbCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	ids, err := seedUsers(ctx, tx)
	if err != nil {
		return err
	}
	created, err := seedProducts(ctx, tx, ids)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit seed data: %w", err)
	}

	fmt.Printf("Seeded %d users and %d new products\n", len(ids), created)

	authCfg := config.LoadAuth()
	if !*printTokens || authCfg.JWTSecret == "" {
		return nil
	}

	fmt.Println("\nBearer tokens:")
	for _, u := range users {
		token, err := auth.MintToken(authCfg, time.Now(), ids[u.email], u.role)
		if err != nil {
			return fmt.Errorf("failed to mint token for %s: %w", u.email, err)
		}
		fmt.Printf("  %-9s %-32s %s\n", u.role, u.email, token)
	}
	return nil
}

// seedUsers upserts the demo users by email and returns their ids.
func seedUsers(ctx context.Context, tx pgx.Tx) (map[string]uuid.UUID, error) {
	query := `
		INSERT INTO users (id, name, email, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role
		RETURNING id
	`

	ids := make(map[string]uuid.UUID, len(users))
	for _, u := range users {
		var id uuid.UUID
		if err := tx.QueryRow(ctx, query, uuid.New(), u.name, u.email, string(u.role)).Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to seed user %s: %w", u.email, err)
		}
		ids[u.email] = id
	}
	return ids, nil
}

// seedProducts inserts missing categories and products, matched by name.
func seedProducts(ctx context.Context, tx pgx.Tx, userIDs map[string]uuid.UUID) (int, error) {
	categoryQuery := `
		INSERT INTO categories (id, name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`
	productQuery := `
		INSERT INTO products (id, name, price_cents, stock, supplier_id, category_id)
		SELECT $1::uuid, $2::text, $3::bigint, $4::integer, $5::uuid, $6::uuid
		WHERE NOT EXISTS (SELECT 1 FROM products WHERE name = $2::text)
	`

	categories := make(map[string]uuid.UUID)
	created := 0
	for _, p := range products {
		categoryID, ok := categories[p.category]
		if !ok {
			if err := tx.QueryRow(ctx, categoryQuery, uuid.New(), p.category).Scan(&categoryID); err != nil {
				return 0, fmt.Errorf("failed to seed category %s: %w", p.category, err)
			}
			categories[p.category] = categoryID
		}

		var supplierID *uuid.UUID
		if id, ok := userIDs[p.supplier]; ok {
			supplierID = &id
		}

		cents := decimal.RequireFromString(p.price).Shift(2).IntPart()
		tag, err := tx.Exec(ctx, productQuery, uuid.New(), p.name, cents, p.stock, supplierID, categoryID)
		if err != nil {
			return 0, fmt.Errorf("failed to seed product %s: %w", p.name, err)
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}
