package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	Dispatch DispatchConfig
	Cron     CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FRESHPRESS_APP_ENV" required:"true"`
	Port         string `envconfig:"FRESHPRESS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FRESHPRESS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FRESHPRESS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FRESHPRESS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FRESHPRESS_DB_DSN"`
	Driver string `envconfig:"FRESHPRESS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"FRESHPRESS_DB_HOST"`
	Port     int    `envconfig:"FRESHPRESS_DB_PORT" default:"5432"`
	User     string `envconfig:"FRESHPRESS_DB_USER"`
	Password string `envconfig:"FRESHPRESS_DB_PASSWORD"`
	Name     string `envconfig:"FRESHPRESS_DB_NAME"`
	SSLMode  string `envconfig:"FRESHPRESS_DB_SSLMODE" default:"disable"`

	AutoMigrate bool `envconfig:"FRESHPRESS_AUTO_MIGRATE" default:"false"`

	MaxOpenConns    int           `envconfig:"FRESHPRESS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FRESHPRESS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FRESHPRESS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FRESHPRESS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FRESHPRESS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FRESHPRESS_REDIS_ADDR"`
	Password     string        `envconfig:"FRESHPRESS_REDIS_PASSWORD"`
	DB           int           `envconfig:"FRESHPRESS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FRESHPRESS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FRESHPRESS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FRESHPRESS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FRESHPRESS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FRESHPRESS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// DispatchConfig tunes the order dispatch engine.
type DispatchConfig struct {
	// WorkerURL points at the standalone dispatch worker. When the worker's
	// /health answers, the api process suppresses its own Telegram polling.
	WorkerURL    string        `envconfig:"FRESHPRESS_DISPATCH_WORKER_URL"`
	ProbeTimeout time.Duration `envconfig:"FRESHPRESS_DISPATCH_PROBE_TIMEOUT" default:"1s"`

	DefaultReminderInterval time.Duration `envconfig:"FRESHPRESS_DISPATCH_REMINDER_INTERVAL" default:"5m"`
	ExpireAfter             time.Duration `envconfig:"FRESHPRESS_DISPATCH_EXPIRE_AFTER" default:"24h"`

	PollTimeoutSeconds int           `envconfig:"FRESHPRESS_DISPATCH_POLL_TIMEOUT_SECONDS" default:"30"`
	PollRetryDelay     time.Duration `envconfig:"FRESHPRESS_DISPATCH_POLL_RETRY_DELAY" default:"3s"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"FRESHPRESS_CRON_INTERVAL" default:"1h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
