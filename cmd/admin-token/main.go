// Command admin-token mints a merchant admin token for the dashboard API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/wacommerce-backend/internal/merchants"
	"github.com/angelmondragon/wacommerce-backend/pkg/auth"
	"github.com/angelmondragon/wacommerce-backend/pkg/config"
	"github.com/angelmondragon/wacommerce-backend/pkg/db"
	"github.com/angelmondragon/wacommerce-backend/pkg/logger"
)

func main() {
	merchantID := flag.Int64("merchant", 0, "merchant id the token is scoped to")
	ttl := flag.Duration("ttl", 0, "override WACOMMERCE_JWT_TTL")
	flag.Parse()

	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "admin-token"})
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	if *ttl > 0 {
		cfg.JWT.TTL = *ttl
	}

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	merchantSvc, err := merchants.NewService(merchants.NewRepository(dbClient.DB()), time.Now)
	if err != nil {
		logg.Error(ctx, "failed to create merchant service", err)
		os.Exit(1)
	}
	merchant, err := merchantSvc.Get(ctx, *merchantID)
	if err != nil {
		logg.Error(logg.WithMerchantID(ctx, *merchantID), "merchant lookup failed", err)
		os.Exit(1)
	}

	token, err := auth.MintMerchantToken(cfg.JWT, time.Now(), merchant.ID)
	if err != nil {
		logg.Error(ctx, "failed to mint token", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
