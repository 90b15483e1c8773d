package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/ontorelease/internal/platform/envutil"
	"github.com/yungbote/ontorelease/internal/platform/logger"
)

type Config struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SQLitePath string
}

func ConfigFromEnv() Config {
	return Config{
		Driver:     strings.ToLower(envutil.String("DATABASE_DRIVER", "postgres")),
		Host:       envutil.String("POSTGRES_HOST", "localhost"),
		Port:       envutil.String("POSTGRES_PORT", "5432"),
		User:       envutil.String("POSTGRES_USER", "postgres"),
		Password:   envutil.String("POSTGRES_PASSWORD", ""),
		Name:       envutil.String("POSTGRES_NAME", "ontorelease"),
		SQLitePath: envutil.String("SQLITE_PATH", "ontorelease.db"),
	}
}

type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects to postgres, or to a sqlite file for single-node setups and
// the offline CLI.
func Open(cfg Config, logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "DatabaseService", "driver", cfg.Driver)

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dial gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dial = sqlite.Open(cfg.SQLitePath)
	case "postgres", "":
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.Name,
		)
		dial = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.Driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	serviceLog.Info("database connected")
	return &Service{db: db, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
