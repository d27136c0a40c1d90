package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	MinIO     MinIOSettings     `mapstructure:"minio"`
	Elastic   ElasticSettings   `mapstructure:"elastic"`
	Scylla    ScyllaSettings    `mapstructure:"scylla"`
	Stripe    StripeSettings    `mapstructure:"stripe"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	SMTP      SMTPSettings      `mapstructure:"smtp"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
}

type AppSettings struct {
	Env            string        `mapstructure:"env"`
	Port           string        `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
}

type PostgresSettings struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type RedisSettings struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MinIOSettings struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	// PublicURL préfixe les URLs d'images ; par défaut http(s)://endpoint/bucket
	PublicURL string `mapstructure:"public_url"`
}

type ElasticSettings struct {
	URL      string `mapstructure:"url"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Index    string `mapstructure:"index"`
}

type ScyllaSettings struct {
	Hosts    []string      `mapstructure:"hosts"`
	Keyspace string        `mapstructure:"keyspace"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type StripeSettings struct {
	SecretKey      string `mapstructure:"secret_key"`
	PublishableKey string `mapstructure:"publishable_key"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	Currency       string `mapstructure:"currency"`
	// EphemeralKeyVersion est la version d'API demandée pour les clés éphémères mobiles
	EphemeralKeyVersion string `mapstructure:"ephemeral_key_version"`
}

type JWTSettings struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type SMTPSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type RateLimitSettings struct {
	LoginMaxAttempts    int           `mapstructure:"login_max_attempts"`
	LoginCooldown       time.Duration `mapstructure:"login_cooldown"`
	RegisterMaxAttempts int           `mapstructure:"register_max_attempts"`
	RegisterCooldown    time.Duration `mapstructure:"register_cooldown"`
	APIMaxRequests      int           `mapstructure:"api_max_requests"`
	APIWindow           time.Duration `mapstructure:"api_window"`
}

// clé viper → variable d'environnement
var envBindings = map[string]string{
	"app.env":                      "APP_ENV",
	"app.port":                     "PORT",
	"app.request_timeout":          "REQUEST_TIMEOUT",
	"app.cors_origins":             "CORS_ORIGINS",
	"postgres.url":                 "DATABASE_URL",
	"postgres.max_conns":           "DATABASE_MAX_CONNS",
	"postgres.max_conn_lifetime":   "DATABASE_MAX_CONN_LIFETIME",
	"redis.addr":                   "REDIS_HOST",
	"redis.password":               "REDIS_PASSWORD",
	"redis.db":                     "REDIS_DB",
	"minio.endpoint":               "MINIO_ENDPOINT",
	"minio.access_key":             "MINIO_ACCESS_KEY",
	"minio.secret_key":             "MINIO_SECRET_KEY",
	"minio.use_ssl":                "MINIO_USE_SSL",
	"minio.bucket":                 "MINIO_BUCKET",
	"minio.public_url":             "MINIO_PUBLIC_URL",
	"elastic.url":                  "ELASTIC_URL",
	"elastic.user":                 "ELASTIC_USER",
	"elastic.password":             "ELASTIC_PASSWORD",
	"elastic.index":                "ELASTIC_INDEX",
	"scylla.hosts":                 "SCYLLA_HOSTS",
	"scylla.keyspace":              "SCYLLA_KEYSPACE",
	"scylla.username":              "SCYLLA_USERNAME",
	"scylla.password":              "SCYLLA_PASSWORD",
	"scylla.timeout":               "SCYLLA_TIMEOUT",
	"stripe.secret_key":            "STRIPE_SECRET_KEY",
	"stripe.publishable_key":       "STRIPE_PUBLISHABLE_KEY",
	"stripe.webhook_secret":        "STRIPE_WEBHOOK_SECRET",
	"stripe.currency":              "STRIPE_CURRENCY",
	"stripe.ephemeral_key_version": "STRIPE_EPHEMERAL_KEY_VERSION",
	"jwt.secret":                   "JWT_SECRET",
	"jwt.token_ttl":                "JWT_TOKEN_TTL",
	"smtp.host":                    "SMTP_HOST",
	"smtp.port":                    "SMTP_PORT",
	"smtp.username":                "SMTP_USERNAME",
	"smtp.password":                "SMTP_PASSWORD",
	"smtp.from":                    "SMTP_FROM",
	"rate_limit.login_max_attempts":    "RATE_LIMIT_LOGIN_MAX_ATTEMPTS",
	"rate_limit.login_cooldown":        "RATE_LIMIT_LOGIN_COOLDOWN",
	"rate_limit.register_max_attempts": "RATE_LIMIT_REGISTER_MAX_ATTEMPTS",
	"rate_limit.register_cooldown":     "RATE_LIMIT_REGISTER_COOLDOWN",
	"rate_limit.api_max_requests":      "RATE_LIMIT_API_MAX_REQUESTS",
	"rate_limit.api_window":            "RATE_LIMIT_API_WINDOW",
}

// Load charge le .env s'il existe puis lit l'environnement du processus
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  Aucun fichier .env trouvé, on continue avec les variables d'environnement du système")
	} else {
		log.Println("✅ Fichier .env chargé avec succès")
	}

	return fromViper(viper.New())
}

func fromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// les listes arrivent de l'environnement sous forme "a,b,c"
	cfg.App.CORSOrigins = splitList(cfg.App.CORSOrigins)
	cfg.Scylla.Hosts = splitList(cfg.Scylla.Hosts)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.request_timeout", "15s")
	v.SetDefault("app.cors_origins", []string{"*"})

	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.max_conn_lifetime", "60m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("minio.bucket", "products")
	v.SetDefault("minio.use_ssl", false)

	v.SetDefault("elastic.index", "products")

	v.SetDefault("scylla.timeout", "5s")

	v.SetDefault("stripe.currency", "usd")
	v.SetDefault("stripe.ephemeral_key_version", "2023-10-16")

	v.SetDefault("jwt.token_ttl", "24h")

	v.SetDefault("smtp.port", 587)

	v.SetDefault("rate_limit.login_max_attempts", 5)
	v.SetDefault("rate_limit.login_cooldown", "15m")
	v.SetDefault("rate_limit.register_max_attempts", 3)
	v.SetDefault("rate_limit.register_cooldown", "30m")
	v.SetDefault("rate_limit.api_max_requests", 100)
	v.SetDefault("rate_limit.api_window", "1m")
}

// Validate refuse de démarrer sans les secrets obligatoires
func (c *Config) Validate() error {
	var errs []error
	if c.Postgres.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL manquant"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET manquant"))
	}
	if c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY manquant"))
	}
	if c.MinIO.Endpoint == "" {
		errs = append(errs, errors.New("MINIO_ENDPOINT manquant"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// ImageBaseURL retourne le préfixe public des objets du bucket
func (m MinIOSettings) ImageBaseURL() string {
	if m.PublicURL != "" {
		return strings.TrimRight(m.PublicURL, "/")
	}
	scheme := "http"
	if m.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, m.Endpoint, m.Bucket)
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
