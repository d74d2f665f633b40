package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string        `env:"HTTP_PORT,default=3000"`
	AppEnv          string        `env:"APP_ENV,default=production"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
	LogFormat       string        `env:"LOG_FORMAT,default=json"`
	PostgresDSN     string        `env:"DATABASE_URL"`
	DBMaxOpenConns  int           `env:"DB_MAX_OPEN_CONNS,default=10"`
	DBMaxIdleConns  int           `env:"DB_MAX_IDLE_CONNS,default=5"`
	DBConnMaxIdle   time.Duration `env:"DB_CONN_MAX_IDLE,default=5m"`
	DBConnMaxLife   time.Duration `env:"DB_CONN_MAX_LIFE,default=30m"`
	MigrateOnStart  bool          `env:"MIGRATE_ON_START,default=true"`
	JWTSecret       string        `env:"JWT_SECRET"`
	TokenTTL        time.Duration `env:"TOKEN_TTL,default=24h"`
	UploadDir       string        `env:"UPLOAD_DIR,default=uploads"`
	DocumentMaxSize int64         `env:"DOCUMENT_MAX_BYTES,default=5242880"`
	RedisURL        string        `env:"REDIS_URL"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT,default=30s"`
	TrustProxy      bool          `env:"TRUST_PROXY_HEADERS,default=false"`

	ScorerCommand       string        `env:"SCORER_COMMAND,default=stage-scorer"`
	ScorerTimeout       time.Duration `env:"SCORER_TIMEOUT,default=2m"`
	ScoringWorkers      int           `env:"SCORING_WORKERS,default=2"`
	ScoringMaxAttempts  int           `env:"SCORING_MAX_ATTEMPTS,default=3"`
	ScoringSweepEvery   time.Duration `env:"SCORING_SWEEP_INTERVAL,default=1m"`
	ScoringStaleAfter   time.Duration `env:"SCORING_STALE_AFTER,default=10m"`
	LoginRatePerMin     int           `env:"RATE_LIMIT_LOGIN_PER_MIN,default=10"`
	SubmitRatePerMin    int           `env:"RATE_LIMIT_SUBMIT_PER_MIN,default=5"`
	RegisterRatePerMin  int           `env:"RATE_LIMIT_REGISTER_PER_MIN,default=5"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv decodes the process environment without touching .env files.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode env: %w", err)
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))

	missing := make([]string, 0, 2)
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	invalid := make([]string, 0, 4)
	if cfg.TokenTTL <= 0 {
		invalid = append(invalid, "TOKEN_TTL")
	}
	if cfg.DocumentMaxSize <= 0 {
		invalid = append(invalid, "DOCUMENT_MAX_BYTES")
	}
	if cfg.ScoringWorkers <= 0 {
		invalid = append(invalid, "SCORING_WORKERS")
	}
	if cfg.ScoringMaxAttempts <= 0 {
		invalid = append(invalid, "SCORING_MAX_ATTEMPTS")
	}
	if cfg.ScorerTimeout <= 0 {
		invalid = append(invalid, "SCORER_TIMEOUT")
	}
	if cfg.DBMaxOpenConns <= 0 {
		invalid = append(invalid, "DB_MAX_OPEN_CONNS")
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("values must be positive: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev"
}
