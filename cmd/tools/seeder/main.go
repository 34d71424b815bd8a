package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	agreementID := seedAgreement(ctx, pool)
	seedProducts(ctx, pool)
	seedPromotions(ctx, pool, agreementID)
	seedConditions(ctx, pool, agreementID)

	log.Println("Seeding completed successfully!")
}

func seedAgreement(ctx context.Context, pool *pgxpool.Pool) string {
	fmt.Println("Seeding Agreement...")
	var id string
	err := pool.QueryRow(ctx, `
		INSERT INTO agreements (name, prices_include_vat, vat_percentage)
		VALUES ('Convenio Mayorista Demo', false, 21.00)
		ON CONFLICT (name) DO UPDATE SET vat_percentage = EXCLUDED.vat_percentage
		RETURNING id`).Scan(&id)
	if err != nil {
		log.Fatalf("Failed to seed agreement: %v", err)
	}
	return id
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) {
	fmt.Println("Seeding Products...")
	products := []struct {
		ID          string
		Name        string
		Category    string
		Price       string
		VolumePrice *string
	}{
		{"sugar-1kg", "Azucar 1kg", "groceries", "12.50", ptr("11.00")},
		{"flour-1kg", "Harina 1kg", "groceries", "8.00", ptr("7.20")},
		{"rice-1kg", "Arroz 1kg", "groceries", "10.00", nil},
		{"oil-1l", "Aceite 1L", "groceries", "22.00", ptr("19.80")},
		{"soap-bar", "Jabon de tocador", "cleaning", "4.50", nil},
		{"detergent-1l", "Detergente 1L", "cleaning", "15.00", ptr("13.50")},
	}
	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, category, price, volume_price)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET price = EXCLUDED.price, volume_price = EXCLUDED.volume_price`,
			p.ID, p.Name, p.Category, p.Price, p.VolumePrice)
		if err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.ID, err)
		}
	}
}

func seedPromotions(ctx context.Context, pool *pgxpool.Pool, agreementID string) {
	fmt.Println("Seeding Promotions...")
	promotions := []struct {
		Name        string
		Description string
		Rules       string
	}{
		{"5+1 groceries", "Buy five, get one free on groceries",
			`{"type":"buy_x_get_y_free","buy":5,"get":1,"categoryNames":["groceries"]}`},
		{"Free shipping 50", "Free shipping from 50 units",
			`{"type":"free_shipping","minUnits":50}`},
		{"10% over 1000", "Ten percent off carts over 1000",
			`{"type":"min_amount_discount","minAmount":1000,"percentage":10}`},
	}
	for _, p := range promotions {
		_, err := pool.Exec(ctx, `
			INSERT INTO promotions (agreement_id, name, description, rules, active)
			VALUES ($1, $2, $3, $4, true)
			ON CONFLICT (agreement_id, name) DO UPDATE SET rules = EXCLUDED.rules`,
			agreementID, p.Name, p.Description, p.Rules)
		if err != nil {
			log.Fatalf("Failed to seed promotion %s: %v", p.Name, err)
		}
	}
}

func seedConditions(ctx context.Context, pool *pgxpool.Pool, agreementID string) {
	fmt.Println("Seeding Sales Conditions...")
	conditions := []struct {
		Name        string
		Description string
		Rules       string
	}{
		{"Net 30", "Payment due in 30 days", `{"type":"net_days","days":30}`},
		{"Loyalty discount", "Flat discount for the agreement", `{"type":"discount","percentage":5}`},
		{"Minimum order", "Orders below 200 are rejected", `{"type":"min_order_amount","minimum":200}`},
	}
	for _, c := range conditions {
		_, err := pool.Exec(ctx, `
			INSERT INTO sales_conditions (agreement_id, name, description, rules, active)
			VALUES ($1, $2, $3, $4, true)
			ON CONFLICT (agreement_id, name) DO UPDATE SET rules = EXCLUDED.rules`,
			agreementID, c.Name, c.Description, c.Rules)
		if err != nil {
			log.Fatalf("Failed to seed condition %s: %v", c.Name, err)
		}
	}
}

func ptr(s string) *string {
	return &s
}
