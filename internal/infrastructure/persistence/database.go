// Package persistence opens the configured database and builds the
// repositories the application depends on.
package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/infrastructure/config"
	gormrepo "github.com/alchemorsel/dietgen/internal/infrastructure/persistence/gorm"
	"github.com/alchemorsel/dietgen/internal/infrastructure/persistence/memory"
	"github.com/alchemorsel/dietgen/internal/infrastructure/persistence/postgres"
	"github.com/alchemorsel/dietgen/internal/infrastructure/persistence/sqlite"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repositories groups every persistence port.
type Repositories struct {
	Jobs     outbound.JobRepository
	Diets    outbound.DietRepository
	Counters outbound.CounterRepository
	Catalog  outbound.CatalogIndexRepository

	db *gorm.DB
}

// DB returns the underlying connection, nil for the memory driver.
func (r *Repositories) DB() *gorm.DB { return r.db }

// Ping checks the database connection.
func (r *Repositories) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (r *Repositories) Close() error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewMemoryRepositories returns map-backed repositories. seed may be nil.
func NewMemoryRepositories(seed *food.CatalogIndex) *Repositories {
	return &Repositories{
		Jobs:     memory.NewJobRepository(),
		Diets:    memory.NewDietRepository(),
		Counters: memory.NewCounterRepository(),
		Catalog:  memory.NewCatalogIndexRepository(seed),
	}
}

// NewGormRepositories wraps an open connection.
func NewGormRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Jobs:     gormrepo.NewJobRepository(db),
		Diets:    gormrepo.NewDietRepository(db),
		Counters: gormrepo.NewCounterRepository(db),
		Catalog:  gormrepo.NewCatalogIndexRepository(db),
		db:       db,
	}
}

// Open builds repositories for the configured driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, dsn string, log *zap.Logger) (*Repositories, error) {
	if cfg.Driver == "memory" {
		log.Info("Using in-memory repositories")
		return NewMemoryRepositories(nil), nil
	}

	gcfg := &gorm.Config{
		Logger:                 NewGormLogger(log, cfg.LogLevel),
		SkipDefaultTransaction: true,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = postgres.Open(dsn, gcfg)
	case "sqlite", "":
		db, err = sqlite.Open(cfg.Path, gcfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.Driver == "postgres" || cfg.Path != "" {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(db); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	log.Info("Database connection established",
		zap.String("driver", cfg.Driver),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Bool("auto_migrate", cfg.AutoMigrate))
	return NewGormRepositories(db), nil
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(gormrepo.AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// NewGormLogger routes GORM logs through zap.
func NewGormLogger(log *zap.Logger, level string) logger.Interface {
	logLevel := logger.Silent
	switch strings.ToLower(level) {
	case "debug", "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "error":
		logLevel = logger.Error
	}
	return logger.New(
		&logWriter{logger: log.Named("gorm")},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// logWriter implements GORM's Writer interface
type logWriter struct {
	logger *zap.Logger
}

func (w *logWriter) Printf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	switch {
	case strings.Contains(msg, "SLOW SQL"):
		w.logger.Warn("GORM slow query", zap.String("message", msg))
	case strings.Contains(msg, "error"), strings.Contains(msg, "ERROR"):
		w.logger.Error("GORM error", zap.String("message", msg))
	default:
		w.logger.Debug("GORM log", zap.String("message", msg))
	}
}
