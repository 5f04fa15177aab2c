package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr            string        `yaml:"addr"`
		MaxBodyBytes    int64         `yaml:"max_body_bytes"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // postgres | sqlite
		DSN      string `yaml:"dsn"`
		Migrate  bool   `yaml:"migrate"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Signing struct {
		MasterKey  string        `yaml:"master_key"` // >= 32 bytes; el seed Ed25519 se deriva con HKDF
		Issuer     string        `yaml:"issuer"`
		DefaultTTL time.Duration `yaml:"default_ttl"` // 0 = tokens sin exp
	} `yaml:"signing"`

	Rate struct {
		Backend string `yaml:"backend"` // memory | redis
		Redis   struct {
			Addr     string `yaml:"addr"`
			DB       int    `yaml:"db"`
			Password string `yaml:"password"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`

		// Límites por clase de endpoint
		Single struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"single"`
		Batch struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"batch"`
	} `yaml:"rate"`

	Usage struct {
		Workers   int `yaml:"workers"`
		QueueSize int `yaml:"queue_size"`
	} `yaml:"usage"`

	Ingest struct {
		MaxBatchItems int `yaml:"max_batch_items"`
	} `yaml:"ingest"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load lee el YAML en path, aplica defaults y luego overrides de entorno.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	c.Storage.Migrate = true // yaml solo lo pisa si la key está presente
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFromEnv arma la config solo con defaults + variables de entorno (sin YAML).
func LoadFromEnv() (*Config, error) {
	var c Config
	c.Storage.Migrate = true
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// sane defaults
func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.DSN == "" && c.Storage.Driver == "sqlite" {
		c.Storage.DSN = "caixa.db"
	}
	if c.Storage.Postgres.MaxOpenConns == 0 {
		c.Storage.Postgres.MaxOpenConns = 10
	}
	if c.Storage.Postgres.MaxIdleConns == 0 {
		c.Storage.Postgres.MaxIdleConns = 2
	}
	if c.Storage.Postgres.ConnMaxLifetime == "" {
		c.Storage.Postgres.ConnMaxLifetime = "30m"
	}
	if c.Signing.Issuer == "" {
		c.Signing.Issuer = "caixa"
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	if c.Rate.Redis.Addr == "" {
		c.Rate.Redis.Addr = "localhost:6379"
	}
	if c.Rate.Redis.Prefix == "" {
		c.Rate.Redis.Prefix = "rl:"
	}
	if c.Rate.Single.Limit == 0 {
		c.Rate.Single.Limit = 100
	}
	if c.Rate.Single.Window == "" {
		c.Rate.Single.Window = "1m"
	}
	if c.Rate.Batch.Limit == 0 {
		c.Rate.Batch.Limit = 20
	}
	if c.Rate.Batch.Window == "" {
		c.Rate.Batch.Window = "1m"
	}
	if c.Usage.Workers == 0 {
		c.Usage.Workers = 2
	}
	if c.Usage.QueueSize == 0 {
		c.Usage.QueueSize = 256
	}
	if c.Ingest.MaxBatchItems == 0 {
		c.Ingest.MaxBatchItems = 500
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvInt("SERVER_MAX_BODY_BYTES"); ok {
		c.Server.MaxBodyBytes = int64(v)
	}
	if v, ok := getEnvDur("SERVER_READ_TIMEOUT"); ok {
		c.Server.ReadTimeout = v
	}
	if v, ok := getEnvDur("SERVER_WRITE_TIMEOUT"); ok {
		c.Server.WriteTimeout = v
	}
	if v, ok := getEnvDur("SERVER_SHUTDOWN_TIMEOUT"); ok {
		c.Server.ShutdownTimeout = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvBool("FLAGS_MIGRATE"); ok {
		c.Storage.Migrate = v
	}
	if v, ok := getEnvInt("STORAGE_PG_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("STORAGE_PG_MAX_IDLE_CONNS"); ok {
		c.Storage.Postgres.MaxIdleConns = v
	}
	if v, ok := getEnvStr("STORAGE_PG_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// SIGNING
	if v, ok := getEnvStr("SIGNING_MASTER_KEY"); ok {
		c.Signing.MasterKey = v
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.Signing.Issuer = v
	}
	if v, ok := getEnvDur("JWT_DEFAULT_TTL"); ok {
		c.Signing.DefaultTTL = v
	}

	// RATE
	if v, ok := getEnvStr("RATE_BACKEND"); ok {
		c.Rate.Backend = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Rate.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Rate.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Rate.Redis.Password = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Rate.Redis.Prefix = v
	}
	if v, ok := getEnvInt("RATE_SINGLE_LIMIT"); ok {
		c.Rate.Single.Limit = v
	}
	if v, ok := getEnvStr("RATE_SINGLE_WINDOW"); ok {
		c.Rate.Single.Window = v
	}
	if v, ok := getEnvInt("RATE_BATCH_LIMIT"); ok {
		c.Rate.Batch.Limit = v
	}
	if v, ok := getEnvStr("RATE_BATCH_WINDOW"); ok {
		c.Rate.Batch.Window = v
	}

	// USAGE
	if v, ok := getEnvInt("USAGE_WORKERS"); ok {
		c.Usage.Workers = v
	}
	if v, ok := getEnvInt("USAGE_QUEUE_SIZE"); ok {
		c.Usage.QueueSize = v
	}

	// INGEST
	if v, ok := getEnvInt("INGEST_MAX_BATCH_ITEMS"); ok {
		c.Ingest.MaxBatchItems = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}

// Validate chequea lo mínimo para poder arrancar.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q no soportado (postgres|sqlite)", c.Storage.Driver))
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		errs = append(errs, errors.New("storage.dsn requerido"))
	}
	if len(c.Signing.MasterKey) < 32 {
		errs = append(errs, errors.New("signing.master_key (SIGNING_MASTER_KEY) debe tener al menos 32 bytes"))
	}
	switch c.Rate.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("rate.backend %q no soportado (memory|redis)", c.Rate.Backend))
	}
	if c.Rate.Single.Limit < 1 || c.Rate.Batch.Limit < 1 {
		errs = append(errs, errors.New("rate.*.limit debe ser >= 1"))
	}
	if _, err := c.SingleWindow(); err != nil {
		errs = append(errs, fmt.Errorf("rate.single.window: %w", err))
	}
	if _, err := c.BatchWindow(); err != nil {
		errs = append(errs, fmt.Errorf("rate.batch.window: %w", err))
	}
	if c.Usage.Workers < 1 || c.Usage.QueueSize < 1 {
		errs = append(errs, errors.New("usage.workers y usage.queue_size deben ser >= 1"))
	}
	return errors.Join(errs...)
}

// SingleWindow devuelve la ventana del limiter de POST /inbox.
func (c *Config) SingleWindow() (time.Duration, error) {
	return parseWindow(c.Rate.Single.Window)
}

// BatchWindow devuelve la ventana del limiter de POST /inbox/batch.
func (c *Config) BatchWindow() (time.Duration, error) {
	return parseWindow(c.Rate.Batch.Window)
}

// ConnMaxLifetime parsea storage.postgres.conn_max_lifetime (0 si vacío o inválido).
func (c *Config) ConnMaxLifetime() time.Duration {
	d, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime)
	if err != nil {
		return 0
	}
	return d
}

func parseWindow(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < time.Second {
		return 0, fmt.Errorf("ventana %s demasiado corta", d)
	}
	return d, nil
}
