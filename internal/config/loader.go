package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/example/lab-reservations/internal/logging"
)

// DefaultSQLiteDSN is used when LABS_DB_DRIVER is sqlite and no DSN is set.
const DefaultSQLiteDSN = "file:labs.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// Config captures environment driven configuration values for the reservation service.
type Config struct {
	HTTPPort         int
	DBDriver         string
	DBDSN            string
	CatalogPath      string
	Location         *time.Location
	QueryParallelism int
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	LockTTL          time.Duration
	AMQPURL          string
	AMQPQueue        string
	LogLevel         slog.Level
}

// minLockTTL keeps the Redis lease long enough to be renewed between ticks.
const minLockTTL = time.Second

// Load reads the .env file named by LABS_ENV_FILE (default ".env") when it
// exists and then parses the process environment.
func Load() (Config, error) {
	envFile := strings.TrimSpace(os.Getenv("LABS_ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	return LoadWithFile(envFile)
}

// LoadWithFile loads an optional .env file and then the environment.
// Variables already set in the environment win over the file.
func LoadWithFile(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("error loading .env file: %w", err)
		}
	}
	return parse()
}

// parse applies defaults for optional fields and reports every missing or
// invalid key at once.
func parse() (Config, error) {
	cfg := Config{
		HTTPPort:         8080,
		DBDriver:         "sqlite",
		QueryParallelism: 4,
		LockTTL:          10 * time.Second,
		AMQPQueue:        "reservations.changed",
		LogLevel:         slog.LevelInfo,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if value := env("LABS_HTTP_PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "LABS_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if value := env("LABS_DB_DRIVER"); value != "" {
		switch driver := strings.ToLower(value); driver {
		case "sqlite", "mysql", "postgres", "postgresql", "pgx":
			cfg.DBDriver = driver
		default:
			invalid = append(invalid, "LABS_DB_DRIVER")
		}
	}

	cfg.DBDSN = env("LABS_DB_DSN")
	if cfg.DBDSN == "" {
		if cfg.DBDriver == "sqlite" {
			cfg.DBDSN = DefaultSQLiteDSN
		} else {
			missing = append(missing, "LABS_DB_DSN")
		}
	}

	cfg.CatalogPath = env("LABS_CATALOG_PATH")

	zone := env("LABS_TIMEZONE")
	if zone == "" {
		zone = "Europe/Madrid"
	}
	if loc, err := time.LoadLocation(zone); err != nil {
		invalid = append(invalid, "LABS_TIMEZONE")
	} else {
		cfg.Location = loc
	}

	if value := env("LABS_QUERY_PARALLELISM"); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			invalid = append(invalid, "LABS_QUERY_PARALLELISM")
		} else {
			cfg.QueryParallelism = n
		}
	}

	cfg.RedisAddr = env("LABS_REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("LABS_REDIS_PASSWORD")
	if value := env("LABS_REDIS_DB"); value != "" {
		db, err := strconv.Atoi(value)
		if err != nil || db < 0 {
			invalid = append(invalid, "LABS_REDIS_DB")
		} else {
			cfg.RedisDB = db
		}
	}

	if value := env("LABS_LOCK_TTL"); value != "" {
		ttl, err := time.ParseDuration(value)
		if err != nil || ttl < minLockTTL {
			invalid = append(invalid, "LABS_LOCK_TTL")
		} else {
			cfg.LockTTL = ttl
		}
	}

	cfg.AMQPURL = env("LABS_AMQP_URL")
	if value := env("LABS_AMQP_QUEUE"); value != "" {
		cfg.AMQPQueue = value
	}

	if level, err := logging.ParseLevel(os.Getenv("LABS_LOG_LEVEL")); err != nil {
		invalid = append(invalid, "LABS_LOG_LEVEL")
	} else {
		cfg.LogLevel = level
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
