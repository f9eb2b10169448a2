// Package db opens the gorm connection shared by the indicator store and the
// candle reader.
package db

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	gmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	candleadapters "indicator_backend/internal/feature/candles/adapters"
	indicatoradapters "indicator_backend/internal/feature/indicator/adapters"
	symbolentity "indicator_backend/internal/feature/symbollist/domain/entity"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	retryInterval         = 3 * time.Second
	defaultConnectTimeout = 60 * time.Second
)

// Config holds database connection settings.
type Config struct {
	Driver       string
	User         string
	Password     string
	Name         string
	Host         string
	Port         string
	InstanceName string // Cloud SQL instance; takes precedence over Host/Port
	SSLMode      string // postgres only

	ConnectTimeout time.Duration
	RunMigrations  bool
}

// LoadConfigFromEnv は環境変数からデータベース設定を読み込みます。
func LoadConfigFromEnv() Config {
	cfg := Config{
		Driver:         strings.ToLower(os.Getenv("DB_DRIVER")),
		User:           os.Getenv("DB_USER"),
		Password:       os.Getenv("DB_PASSWORD"),
		Name:           os.Getenv("DB_NAME"),
		Host:           os.Getenv("DB_HOST"),
		Port:           os.Getenv("DB_PORT"),
		InstanceName:   os.Getenv("INSTANCE_CONNECTION_NAME"),
		SSLMode:        os.Getenv("DB_SSLMODE"),
		ConnectTimeout: defaultConnectTimeout,
		RunMigrations:  os.Getenv("RUN_MIGRATIONS") == "true",
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverMySQL
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if v := os.Getenv("DB_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ConnectTimeout = d
		}
	}
	return cfg
}

// BuildDSN builds the driver specific DSN. For sqlite, Name is the file path.
func BuildDSN(cfg Config) string {
	switch cfg.Driver {
	case DriverPostgres:
		host := cfg.Host
		if cfg.InstanceName != "" {
			host = "/cloudsql/" + cfg.InstanceName
		}
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			host, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
		if cfg.InstanceName == "" && cfg.Port != "" {
			dsn += " port=" + cfg.Port
		}
		return dsn
	case DriverSQLite:
		if cfg.Name == "" {
			return "file::memory:?cache=shared"
		}
		return cfg.Name
	default:
		if cfg.InstanceName != "" {
			return fmt.Sprintf("%s:%s@unix(/cloudsql/%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
				cfg.User, cfg.Password, cfg.InstanceName, cfg.Name)
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
	}
}

// Opener returns the gorm opener for the configured driver.
func Opener(driver string) (func(dsn string) (*gorm.DB, error), error) {
	var dialect func(string) gorm.Dialector
	switch driver {
	case DriverMySQL, "":
		dialect = gmysql.Open
	case DriverPostgres:
		dialect = postgres.Open
	case DriverSQLite:
		dialect = sqlite.Open
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
	return func(dsn string) (*gorm.DB, error) {
		return gorm.Open(dialect(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
	}, nil
}

// ConnectWithRetry calls opener every 3 seconds until it succeeds or the next
// attempt would start after timeout.
func ConnectWithRetry(dsn string, timeout time.Duration, opener func(string) (*gorm.DB, error)) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		db, err := opener(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return nil, fmt.Errorf("db connect failed after %d attempts: %w", attempt, err)
		}
		logrus.WithError(err).WithField("attempt", attempt).Warn("DB connect failed, retrying")
		time.Sleep(retryInterval)
	}
}

// OpenDB connects with retry and migrates the schema when RunMigrations is set.
func OpenDB(cfg Config) (*gorm.DB, error) {
	opener, err := Opener(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := ConnectWithRetry(BuildDSN(cfg), cfg.ConnectTimeout, opener)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"driver": cfg.Driver, "database": cfg.Name}).Info("DB connection established")

	if cfg.RunMigrations {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate creates or updates every table this service touches.
func Migrate(db *gorm.DB) error {
	// マイグレーション（Indicator, Candle, Symbol）
	if err := db.AutoMigrate(
		&indicatoradapters.IndicatorModel{},
		&candleadapters.CandleModel{},
		&symbolentity.Symbol{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
