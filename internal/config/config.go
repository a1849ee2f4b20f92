package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverMemory   = "memory"

	DefaultSQLitePath   = "./betterreads.db"
	DefaultMaxLineBytes = 16 << 20
)

type (
	Config struct {
		App
		Dumps
		Store
		Ingest
	}

	App struct {
		Env      string
		LogLevel string
	}
	Dumps struct {
		AuthorsPath string
		WorksPath   string
	}
	Store struct {
		Driver        string // postgres, sqlite, redis or memory
		DSN           string
		SQLitePath    string
		RedisAddr     string
		RedisPassword string
		RedisDB       int
		RedisPrefix   string
	}
	Ingest struct {
		Limit        int     // 0 reads whole files
		WriteRate    float64 // saves per second, 0 is unthrottled
		MaxLineBytes int
	}
)

// LoadEnvFiles reads .env and then .env.local from the working directory.
// Variables already set in the environment are left alone.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

func New() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("datadump_location_authors", "")
	v.SetDefault("datadump_location_works", "")
	v.SetDefault("store_driver", DriverSQLite)
	v.SetDefault("db_dsn", "")
	v.SetDefault("sqlite_path", DefaultSQLitePath)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_key_prefix", "betterreads:")
	v.SetDefault("ingest_limit", 0)
	v.SetDefault("ingest_write_rate", 0)
	v.SetDefault("ingest_max_line_bytes", DefaultMaxLineBytes)

	return &Config{
		App: App{
			Env:      v.GetString("APP_ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Dumps: Dumps{
			AuthorsPath: v.GetString("DATADUMP_LOCATION_AUTHORS"),
			WorksPath:   v.GetString("DATADUMP_LOCATION_WORKS"),
		},
		Store: Store{
			Driver:        strings.ToLower(v.GetString("STORE_DRIVER")),
			DSN:           v.GetString("DB_DSN"),
			SQLitePath:    v.GetString("SQLITE_PATH"),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			RedisPrefix:   v.GetString("REDIS_KEY_PREFIX"),
		},
		Ingest: Ingest{
			Limit:        v.GetInt("INGEST_LIMIT"),
			WriteRate:    v.GetFloat64("INGEST_WRITE_RATE"),
			MaxLineBytes: v.GetInt("INGEST_MAX_LINE_BYTES"),
		},
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Driver {
	case DriverPostgres:
		if c.DSN == "" {
			errs = append(errs, errors.New("DB_DSN is required for the postgres driver"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	case DriverRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Driver))
	}
	if c.Limit < 0 {
		errs = append(errs, fmt.Errorf("ingest limit must not be negative, got %d", c.Limit))
	}
	if c.WriteRate < 0 {
		errs = append(errs, fmt.Errorf("write rate must not be negative, got %g", c.WriteRate))
	}
	if c.MaxLineBytes < 0 {
		errs = append(errs, fmt.Errorf("max line bytes must not be negative, got %d", c.MaxLineBytes))
	}
	return errors.Join(errs...)
}
