// Command catalog-import replaces the stored food catalog index with the
// foods of a JSON file.
//
// Running API processes pick the new index up once their cached copy
// expires (catalog.ttl).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/alchemorsel/dietgen/internal/application/catalog"
	"github.com/alchemorsel/dietgen/internal/infrastructure/cache"
	"github.com/alchemorsel/dietgen/internal/infrastructure/config"
	"github.com/alchemorsel/dietgen/internal/infrastructure/persistence"
	"github.com/alchemorsel/dietgen/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("DIETGEN_CONFIG"), "path to the configuration file")
	file := flag.String("file", "", "JSON array of foods to import")
	dryRun := flag.Bool("dry-run", false, "validate the file without storing it")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: catalog-import -file foods.json [-config config.yaml] [-dry-run]")
		os.Exit(2)
	}

	if err := run(*configPath, *file, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "catalog-import: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, file string, dryRun bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	l, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		Development: cfg.App.Debug,
	})
	if err != nil {
		return err
	}
	log := l.Named("catalog-import")
	defer func() { _ = log.Sync() }()

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	if dryRun {
		foods, err := catalog.DecodeFoods(f)
		if err != nil {
			return err
		}
		log.Info("Catalog file is valid", zap.String("file", file), zap.Int("foods", len(foods)))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	repos, err := persistence.Open(ctx, cfg.Database, cfg.GetDSN(), log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repos.Close()

	svc := catalog.NewService(repos.Catalog, cache.NewLocalCache(1, time.Now), cfg.Catalog.TTL, log)
	idx, err := svc.Import(ctx, f)
	if err != nil {
		return err
	}

	log.Info("Catalog imported",
		zap.String("file", file),
		zap.Int("foods", len(idx.AllFoods)),
		zap.Int("names", len(idx.AllNames)),
		zap.String("database", cfg.Database.Driver),
	)
	return nil
}
