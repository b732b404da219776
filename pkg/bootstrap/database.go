package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"alertflow/internal/config"
	"alertflow/internal/constants"
	"alertflow/internal/logger"
	"alertflow/pkg/health"
	"alertflow/pkg/migrations"
)

// Databases holds the connections of every configured backend. Unconfigured backends stay nil.
type Databases struct {
	Postgres *sql.DB
	Redis    *redis.Client
	Mongo    *mongo.Client

	cfg    *config.Config
	logger logger.Logger
}

func NewDatabases(cfg *config.Config, log logger.Logger) *Databases {
	return &Databases{cfg: cfg, logger: log}
}

// Connect opens every enabled backend and, when database.run_migrations is set, applies the
// Postgres schema and the MongoDB alert indexes. Connections opened before a failure are closed.
func (d *Databases) Connect(ctx context.Context) error {
	db := d.cfg.Database

	if db.Postgres.Enabled() {
		pg, err := d.initPostgreSQL(ctx)
		if err != nil {
			d.Close(ctx)
			return err
		}
		d.Postgres = pg

		if db.RunMigrations {
			if err := migrations.MigratePostgres(pg, d.logger); err != nil {
				d.Close(ctx)
				return fmt.Errorf("failed to migrate postgres: %w", err)
			}
		}
	}

	if db.Redis.Enabled() {
		rdb, err := d.initRedis(ctx)
		if err != nil {
			d.Close(ctx)
			return err
		}
		d.Redis = rdb
	}

	if db.MongoDB.Enabled() {
		client, err := d.initMongoDB(ctx)
		if err != nil {
			d.Close(ctx)
			return err
		}
		d.Mongo = client

		if db.RunMigrations {
			if err := migrations.EnsureAlertIndexes(ctx, d.MongoDatabase(), d.cfg.Alerts.OpenStatuses); err != nil {
				d.Close(ctx)
				return fmt.Errorf("failed to ensure mongodb indexes: %w", err)
			}
		}
	}

	return nil
}

// MongoDatabase returns the configured database, or nil without a MongoDB connection.
func (d *Databases) MongoDatabase() *mongo.Database {
	if d.Mongo == nil {
		return nil
	}
	name := d.cfg.Database.MongoDB.Database
	if name == "" {
		name = constants.DefaultMongoDBName
	}
	return d.Mongo.Database(name)
}

// RegisterChecks adds a health check per connection. Redis only backs trigger counting, so
// losing it degrades the service instead of failing it.
func (d *Databases) RegisterChecks(r *health.CheckerRegistry) {
	if d.Postgres != nil {
		r.Register(health.NewPostgreSQLChecker(d.Postgres))
	}
	if d.Mongo != nil {
		r.Register(health.NewMongoDBChecker(d.Mongo))
	}
	if d.Redis != nil {
		r.RegisterOptional(health.NewRedisChecker(d.Redis))
	}
}

func (d *Databases) initRedis(ctx context.Context) (*redis.Client, error) {
	cfg := d.cfg.Database.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	d.logger.Info("Redis connected successfully")
	return rdb, nil
}

func (d *Databases) initPostgreSQL(ctx context.Context) (*sql.DB, error) {
	cfg := d.cfg.Database.Postgres
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d.logger.Info("PostgreSQL connected successfully")
	return db, nil
}

func (d *Databases) initMongoDB(ctx context.Context) (*mongo.Client, error) {
	mongoOpts := options.Client().ApplyURI(d.cfg.Database.MongoDB.URI)
	mongoClient, err := mongo.Connect(ctx, mongoOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := mongoClient.Ping(ctx, nil); err != nil {
		mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	d.logger.Info("MongoDB connected successfully")
	return mongoClient, nil
}

// Close releases every open connection and returns the errors it ran into.
func (d *Databases) Close(ctx context.Context) []error {
	var errs []error

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
		d.Redis = nil
	}

	if d.Postgres != nil {
		if err := d.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
		d.Postgres = nil
	}

	if d.Mongo != nil {
		if err := d.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
		d.Mongo = nil
	}

	return errs
}
