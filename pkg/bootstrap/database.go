package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"herald/internal/config"
	"herald/internal/constants"
	"herald/internal/logger"
)

// ErrNotConfigured is returned when a store a service requires has no
// connection settings.
var ErrNotConfigured = errors.New("store not configured")

// Store is a bit set of the backing stores a service connects to.
type Store uint8

const (
	Postgres Store = 1 << iota
	Redis
	MongoDB
)

func (s Store) String() string {
	var names []string
	if s&Postgres != 0 {
		names = append(names, "postgres")
	}
	if s&Redis != 0 {
		names = append(names, "redis")
	}
	if s&MongoDB != 0 {
		names = append(names, "mongodb")
	}
	return strings.Join(names, "+")
}

// Stores holds the connections opened by Connect. Fields for stores that were
// not requested, or optional and unconfigured, are nil.
type Stores struct {
	Postgres    *sql.DB
	Redis       *redis.Client
	MongoClient *mongo.Client
	MongoDB     *mongo.Database
}

// Close releases every open connection and returns the errors it met.
func (s *Stores) Close(ctx context.Context) []error {
	if s == nil {
		return nil
	}

	var errs []error
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}
	if s.Postgres != nil {
		if err := s.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
	}
	if s.MongoClient != nil {
		if err := s.MongoClient.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
	}
	return errs
}

type DatabaseConnector struct {
	config      config.DatabaseConfig
	serviceName string
	logger      logger.Logger
}

func NewDatabaseConnector(cfg config.DatabaseConfig, serviceName string, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		config:      cfg,
		serviceName: serviceName,
		logger:      log,
	}
}

// Connect opens the required stores and whichever optional ones are configured.
// A required store without settings fails with ErrNotConfigured. On any error
// the connections opened so far are closed.
func (dc *DatabaseConnector) Connect(ctx context.Context, required, optional Store) (*Stores, error) {
	stores := &Stores{}
	wanted := required | optional

	fail := func(err error) (*Stores, error) {
		for _, closeErr := range stores.Close(ctx) {
			dc.logger.Warnw("Failed to close connection after startup error", "error", closeErr)
		}
		return nil, err
	}

	for _, store := range []Store{Postgres, Redis, MongoDB} {
		if wanted&store == 0 {
			continue
		}

		if !dc.configured(store) {
			if required&store != 0 {
				return fail(fmt.Errorf("%s requires %s: %w", dc.serviceName, store, ErrNotConfigured))
			}
			dc.logger.Infow("Optional store not configured, skipping", "store", store.String())
			continue
		}

		var err error
		switch store {
		case Postgres:
			stores.Postgres, err = dc.connectPostgres(ctx)
		case Redis:
			stores.Redis, err = dc.connectRedis(ctx)
		case MongoDB:
			stores.MongoClient, stores.MongoDB, err = dc.connectMongoDB(ctx)
		}
		if err != nil {
			return fail(err)
		}

		dc.logger.Infow("Store connected", "store", store.String(), "service_name", dc.serviceName)
	}

	return stores, nil
}

func (dc *DatabaseConnector) configured(store Store) bool {
	switch store {
	case Postgres:
		return dc.config.Postgres.Host != ""
	case Redis:
		return dc.config.Redis.Host != ""
	case MongoDB:
		return dc.config.MongoDB.URI != ""
	}
	return false
}

// PostgresDSN builds a lib/pq URL with the credentials escaped.
func PostgresDSN(cfg config.PostgresConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.DBName,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String()
}

func (dc *DatabaseConnector) connectPostgres(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("postgres", PostgresDSN(dc.config.Postgres))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func (dc *DatabaseConnector) connectRedis(ctx context.Context) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(dc.config.Redis.Host, strconv.Itoa(dc.config.Redis.Port)),
		Password: dc.config.Redis.Password,
		DB:       dc.config.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return rdb, nil
}

func (dc *DatabaseConnector) connectMongoDB(ctx context.Context) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(dc.config.MongoDB.URI).
		SetAppName(dc.serviceName)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := dc.config.MongoDB.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}
	return client, client.Database(dbName), nil
}
