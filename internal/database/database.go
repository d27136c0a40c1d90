package database

import (
	"context"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gocql/gocql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront_back_end/internal/config"
)

// Databases regroupe les connexions ouvertes au démarrage.
// Elastic et Scylla sont optionnels : nil si non configurés.
type Databases struct {
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	MinIO    *minio.Client
	Elastic  *elasticsearch.Client
	Scylla   *gocql.Session
}

// Connect ouvre toutes les connexions. Postgres, Redis et MinIO sont obligatoires.
func Connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Databases, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	dbs := &Databases{}

	pool, err := ConnectPostgres(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, err
	}
	dbs.Postgres = pool

	rdb, err := connectRedis(ctx, cfg.Redis, log)
	if err != nil {
		dbs.Close()
		return nil, err
	}
	dbs.Redis = rdb

	mc, err := connectMinIO(ctx, cfg.MinIO, log)
	if err != nil {
		dbs.Close()
		return nil, err
	}
	dbs.MinIO = mc

	if cfg.Elastic.URL != "" {
		es, err := connectElastic(cfg.Elastic, log)
		if err != nil {
			log.Warn("⚠️ Elasticsearch indisponible, recherche via Postgres", zap.Error(err))
		} else {
			dbs.Elastic = es
		}
	}

	if len(cfg.Scylla.Hosts) > 0 && cfg.Scylla.Keyspace != "" {
		session, err := connectScylla(cfg.Scylla, log)
		if err != nil {
			log.Warn("⚠️ ScyllaDB indisponible, audit dans les logs", zap.Error(err))
		} else {
			dbs.Scylla = session
		}
	}

	log.Info("✅ Toutes les bases de données sont connectées")
	return dbs, nil
}

// Close ferme les connexions ouvertes
func (d *Databases) Close() {
	if d.Scylla != nil {
		d.Scylla.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.Postgres != nil {
		d.Postgres.Close()
	}
}

// =============================================
// POSTGRES
// =============================================

// ConnectPostgres ouvre le pool pgx et vérifie la connexion
func ConnectPostgres(ctx context.Context, cfg config.PostgresSettings, log *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse pgx pool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Info("✅ Connecté à Postgres",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.Int32("max_conns", poolConfig.MaxConns),
	)
	return pool, nil
}

// =============================================
// REDIS
// =============================================

func connectRedis(ctx context.Context, cfg config.RedisSettings, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connexion redis: %w", err)
	}
	log.Info("✅ Connecté à Redis", zap.String("addr", cfg.Addr))
	return client, nil
}

// =============================================
// ELASTICSEARCH
// =============================================

func connectElastic(cfg config.ElasticSettings, log *zap.Logger) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("création client elasticsearch: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("connexion elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch: %s", res.Status())
	}

	log.Info("✅ Connecté à Elasticsearch", zap.String("url", cfg.URL))
	return client, nil
}

// =============================================
// MINIO
// =============================================

func connectMinIO(ctx context.Context, cfg config.MinIOSettings, log *zap.Logger) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connexion minio: %w", err)
	}
	log.Info("✅ Connecté à MinIO", zap.String("endpoint", cfg.Endpoint))
	return client, nil
}

// =============================================
// SCYLLA DB (journal d'audit)
// =============================================

func createScyllaCluster(cfg config.ScyllaSettings) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = cfg.Timeout
	cluster.NumConns = 4
	cluster.ReconnectInterval = 1 * time.Second
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())
	return cluster
}

func connectScylla(cfg config.ScyllaSettings, log *zap.Logger) (*gocql.Session, error) {
	session, err := createScyllaCluster(cfg).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("création session scylla %s: %w", cfg.Keyspace, err)
	}
	log.Info("✅ Session ScyllaDB ouverte", zap.String("keyspace", cfg.Keyspace))
	return session, nil
}
