package sql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"go.opentelemetry.io/otel/attribute"

	// import the postgres driver - "pgx"
	_ "github.com/jackc/pgx/v5/stdlib"

	// import the sqlite driver - "sqlite"
	_ "modernc.org/sqlite"

	"github.com/wes-dispatch/wes-dispatch/internal/abstractions"
)

const (
	// These are the only drivers currently supported
	SQLITE_DRIVER   = "sqlite"
	POSTGRES_DRIVER = "pgx"

	// This is the only table currently supported
	TABLE_RUNS = "runs"
)

type SQLStorage struct {
	sqlConfig *SQLDatabaseConfig
	pool      *sql.DB
	ctx       context.Context
	logger    *slog.Logger
}

func NewStorage(config map[string]any, logger *slog.Logger) (abstractions.Storage, error) {
	var sqlConfig SQLDatabaseConfig
	err := mapstructure.Decode(config, &sqlConfig)
	if err != nil {
		return nil, err
	}

	// check that the driver is supported
	switch sqlConfig.Driver {
	case SQLITE_DRIVER:
		break
	case POSTGRES_DRIVER:
		break
	default:
		return nil, getUnsupportedDriverError(sqlConfig.Driver)
	}

	logger.Info("Creating SQL storage", "driver", sqlConfig.Driver, "url", redactURL(sqlConfig.URL))

	dsn, err := connectionURL(&sqlConfig)
	if err != nil {
		return nil, err
	}
	pool, err := otelsql.Open(sqlConfig.Driver, dsn,
		otelsql.WithAttributes(attribute.String("db.system", dbSystem(sqlConfig.Driver))),
		otelsql.WithDBName(sqlConfig.DatabaseName),
	)
	if err != nil {
		return nil, err
	}

	if sqlConfig.ConnMaxLifetime != nil {
		pool.SetConnMaxLifetime(*sqlConfig.ConnMaxLifetime)
	}
	if sqlConfig.MaxIdleConns != nil {
		pool.SetMaxIdleConns(*sqlConfig.MaxIdleConns)
	}
	if sqlConfig.MaxOpenConns != nil {
		pool.SetMaxOpenConns(*sqlConfig.MaxOpenConns)
	}

	storage := &SQLStorage{
		sqlConfig: &sqlConfig,
		pool:      pool,
		ctx:       context.Background(),
		logger:    logger,
	}

	// ping the database to verify the DSN provided by the user is valid and the server is accessible
	logger.Info("Pinging SQL storage", "driver", sqlConfig.Driver)
	err = storage.Ping(1 * time.Second)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}

	// ensure the schemas are created
	logger.Info("Ensuring schemas are created", "driver", sqlConfig.Driver)
	if err := storage.ensureSchema(); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return storage, nil
}

func (s *SQLStorage) WithLogger(logger *slog.Logger) abstractions.Storage {
	return &SQLStorage{
		sqlConfig: s.sqlConfig,
		pool:      s.pool,
		ctx:       s.ctx,
		logger:    logger,
	}
}

func (s *SQLStorage) WithContext(ctx context.Context) abstractions.Storage {
	return &SQLStorage{
		sqlConfig: s.sqlConfig,
		pool:      s.pool,
		ctx:       ctx,
		logger:    s.logger,
	}
}

// Ping the database to verify DSN provided by the user is valid and the
// server accessible.
func (s *SQLStorage) Ping(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	return s.pool.PingContext(ctx)
}

func (s *SQLStorage) GetDatasourceName() string {
	return s.sqlConfig.Driver
}

func (s *SQLStorage) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.pool.ExecContext(ctx, query, args...)
}

func (s *SQLStorage) ensureSchema() error {
	schemas, err := schemasForDriver(s.sqlConfig.Driver)
	if err != nil {
		return err
	}
	if _, err := s.exec(s.ctx, schemas); err != nil {
		return err
	}

	return nil
}

func (s *SQLStorage) Close() error {
	return s.pool.Close()
}

func dbSystem(driver string) string {
	if driver == POSTGRES_DRIVER {
		return "postgresql"
	}
	return driver
}

// connectionURL adds the configured password, usually mounted as a secret, to a postgres URL.
func connectionURL(sqlConfig *SQLDatabaseConfig) (string, error) {
	if sqlConfig.Password == "" || sqlConfig.Driver != POSTGRES_DRIVER {
		return sqlConfig.URL, nil
	}
	u, err := url.Parse(sqlConfig.URL)
	if err != nil {
		return "", fmt.Errorf("invalid database url: %w", err)
	}
	username := ""
	if u.User != nil {
		username = u.User.Username()
	}
	u.User = url.UserPassword(username, sqlConfig.Password)
	return u.String(), nil
}

func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	return u.Redacted()
}
