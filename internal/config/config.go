package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	NATS     NATSConfig
	Metrics  MetricsConfig
	Routing  RoutingConfig
	Fleet    FleetConfig
	Wallet   WalletConfig
	Ledger   LedgerConfig
	Location *time.Location `validate:"required"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        `validate:"required,numeric"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gte=0"`
	CORSOrigins  []string
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string `validate:"oneof=memory postgres"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Driver         string `validate:"oneof=postgres pgx"`
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	Migrate        bool
	MigrationsPath string
}

// DSN returns the URL form used by pgx and golang-migrate.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// NATSConfig holds the fleet relay configuration. An empty URL disables it.
type NATSConfig struct {
	URL           string
	SubjectPrefix string `validate:"required"`
	LogSubjects   bool
}

// MetricsConfig holds the Prometheus exporter configuration. An empty Addr
// serves /metrics on the main router only.
type MetricsConfig struct {
	Addr string
}

// RoutingConfig holds route resolution configuration.
type RoutingConfig struct {
	OSRMURL         string
	Timeout         time.Duration `validate:"gt=0"`
	CorridorWidthSq float64       `validate:"gt=0"`
	CacheTTL        time.Duration
	StopsFile       string
}

// FleetConfig holds live fleet hub configuration.
type FleetConfig struct {
	SubscriberBuffer int `validate:"gt=0"`
	MaxOpenTickets   int `validate:"gt=0"`
}

// WalletConfig holds token wallet configuration.
type WalletConfig struct {
	StartingBalance int64  `validate:"gte=0"`
	TreasuryID      string `validate:"required"`
	LockTTL         time.Duration
}

// LedgerConfig holds ledger configuration.
type LedgerConfig struct {
	ValidatorID string `validate:"required"`
}

// Load loads configuration from environment variables, reading a local .env
// first when one exists.
func Load() *Config {
	_ = godotenv.Load()

	loc, err := time.LoadLocation(getEnv("TZ", "Asia/Kolkata"))
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 0),
			CORSOrigins:  []string{getEnv("CORS_ALLOWED_ORIGIN", "*")},
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", StorageMemory),
		},
		Database: DatabaseConfig{
			Driver:         getEnv("DB_DRIVER", "postgres"),
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "villagelink"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			Migrate:        getBoolEnv("DB_MIGRATE", false),
			MigrationsPath: getEnv("DB_MIGRATIONS", "file://migrations"),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "villagelink-fleet"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "fleet"),
			LogSubjects:   getBoolEnv("NATS_LOG_SUBJECTS", false),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ""),
		},
		Routing: RoutingConfig{
			OSRMURL:         getEnv("OSRM_URL", "https://router.project-osrm.org"),
			Timeout:         getDurationEnv("ROUTING_TIMEOUT", 5*time.Second),
			CorridorWidthSq: getFloatEnv("ROUTING_CORRIDOR_WIDTH_SQ", 0.0001),
			CacheTTL:        getDurationEnv("ROUTE_CACHE_TTL", 10*time.Minute),
			StopsFile:       getEnv("STOPS_FILE", ""),
		},
		Fleet: FleetConfig{
			SubscriberBuffer: getIntEnv("FLEET_SUBSCRIBER_BUFFER", 64),
			MaxOpenTickets:   getIntEnv("FLEET_MAX_OPEN_TICKETS", 1000),
		},
		Wallet: WalletConfig{
			StartingBalance: int64(getIntEnv("WALLET_STARTING_BALANCE", 50)),
			TreasuryID:      getEnv("WALLET_TREASURY_ID", "VL-TREASURY"),
			LockTTL:         getDurationEnv("WALLET_LOCK_TTL", 5*time.Second),
		},
		Ledger: LedgerConfig{
			ValidatorID: getEnv("LEDGER_VALIDATOR_ID", "VL-SERVER"),
		},
		Location: loc,
	}
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
