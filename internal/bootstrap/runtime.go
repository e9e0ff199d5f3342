// Package bootstrap wires the process-level runtime shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"courier/internal/cache"
	"courier/internal/config"
	"courier/internal/database"
	"courier/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo builds the demo network after the schema is applied.
	// Ignored in production.
	SeedDemo bool
	Seed     seed.Options
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedDemo {
		if cfg.IsProduction() {
			log.Println("WARNING: demo seeding requested in production; skipping")
			return db, r, nil
		}
		res, err := seed.NewSeeder(db, opts.Seed).Run(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
		log.Printf("demo data ready: target=%d users=%d connections=%d messengers=%d shipments=%d",
			res.TargetUserID, res.UsersCreated, res.ConnectionsCreated, res.MessengersCreated, res.ShipmentsDispatched)
	}

	return db, r, nil
}
