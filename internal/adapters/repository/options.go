package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultSQLiteDSN = "techrank.db"
)

type options struct {
	gormLogLevel gormlogger.LogLevel
}

func defaultOptions() options {
	return options{gormLogLevel: gormlogger.Silent}
}

// Option applies a configuration option to a SQL-backed store.
type Option func(*options)

// WithSQLLogging turns on gorm's statement logger at warn level (slow
// queries and errors) or info level (every statement) when verbose.
func WithSQLLogging(verbose bool) Option {
	return func(o *options) {
		o.gormLogLevel = gormlogger.Warn
		if verbose {
			o.gormLogLevel = gormlogger.Info
		}
	}
}

// Open builds the Store for driver. An empty sqlite dsn selects techrank.db
// in the working directory; postgres requires a dsn.
func Open(_ context.Context, driver, dsn string, opts ...Option) (Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("%w: postgres driver needs a dsn", ErrStore)
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", ErrStore, driver)
	}
	s, err := OpenGorm(dialector, opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}
