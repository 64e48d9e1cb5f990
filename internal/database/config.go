package database

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32

	RedisURL      string
	RedisPassword string
	RedisDB       int
	CacheEnabled  bool
	CacheTTL      time.Duration

	StoreDriver string
	HTTPAddr    string
	LogLevel    string
	LogFormat   string
	AuthUsers   []AuthUser
}

type AuthUser struct {
	Name     string
	Password string
	Role     string
}

const defaultAuthUsers = "user:password:USER,user2:password:USER,admin:admin:ADMIN"

// LoadConfig reads .env when present and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	users, err := parseAuthUsers(getEnv("AUTH_USERS", defaultAuthUsers))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Host:          getEnv("DB_HOST", "localhost"),
		Port:          getEnv("DB_PORT", "5432"),
		User:          getEnv("DB_USER", "app_user"),
		Password:      getEnv("DB_PASSWORD", "postgres_password"),
		DBName:        getEnv("DB_NAME", "store_db"),
		SSLMode:       getEnv("DB_SSLMODE", "disable"),
		MaxConns:      int32(getEnvAsInt("DB_MAX_CONNS", 10)),
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		CacheEnabled:  getEnvAsBool("CACHE_ENABLED", false),
		CacheTTL:      getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		AuthUsers:     users,
	}

	if cfg.StoreDriver != "postgres" && cfg.StoreDriver != "memory" {
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	return cfg, nil
}

// DSN is the keyword/value connection string for pgx.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.DBName,
		c.SSLMode,
	)
}

func parseAuthUsers(raw string) ([]AuthUser, error) {
	var users []AuthUser
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		// passwords may contain ':', names and roles may not
		first := strings.Index(entry, ":")
		last := strings.LastIndex(entry, ":")
		if first <= 0 || last == first || last == len(entry)-1 {
			return nil, fmt.Errorf("invalid AUTH_USERS entry %q: want name:password:ROLE", entry)
		}

		users = append(users, AuthUser{
			Name:     entry[:first],
			Password: entry[first+1 : last],
			Role:     strings.ToUpper(entry[last+1:]),
		})
	}

	if len(users) == 0 {
		return nil, errors.New("AUTH_USERS has no entries")
	}

	return users, nil
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
