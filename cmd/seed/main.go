package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"lms-payments/internal/config"
	"lms-payments/internal/domain/model"
	pg "lms-payments/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	planRepo := pg.NewPlanRepo(pool)

	// If plans already exist, do nothing.
	existing, err := planRepo.ListActive(ctx, nil)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(existing))
		for _, p := range existing {
			fmt.Printf("  - %s (%s, %d %s)\n", p.Name, p.Cycle, p.Amount, p.Currency)
		}
		return
	}

	seed := []struct {
		Name    string
		Amount  int64
		Cycle   model.BillingCycle
		PriceID string
	}{
		{"Pro Monthly", 2_000, model.BillingCycleMonthly, "price_pro_monthly"},
		{"Pro Annual", 20_000, model.BillingCycleAnnual, "price_pro_annual"},
	}

	for _, s := range seed {
		p, err := model.NewSubscriptionPlan(uuid.NewString(), s.Name, s.Amount, "usd", s.Cycle, s.PriceID)
		if err != nil {
			log.Fatalf("build plan %q: %v", s.Name, err)
		}
		if err := planRepo.Save(ctx, nil, p); err != nil {
			log.Fatalf("save plan %q: %v", s.Name, err)
		}
		fmt.Printf("seeded: %s (id=%s, %d %s / %s)\n", p.Name, p.ID, p.Amount, p.Currency, p.Cycle)
	}

	fmt.Println("Seeding complete.")
}
