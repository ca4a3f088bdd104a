package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/iliyamo/library-reservation/internal/database"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	DBMaxOpen      int    // connection pool size
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	LogFormat     string // "json" or "text"
	LogLevel      string // debug, info, warn, error
	AMQPURL       string // RabbitMQ URL; empty disables lending events
	EventsEnabled bool   // publish lending events after commit
	EventsLogPath string // file the lending consumer appends to
}

// Load reads configuration values from the environment, after merging a
// .env file when one is present.  Required variables are enforced by
// must() and missing values cause the program to exit.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		DBMaxOpen:      envInt("DB_MAX_OPEN_CONNS", 25),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		LogFormat:     envStr("LOG_FORMAT", "json"),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		AMQPURL:       amqpURL(),
		EventsEnabled: envBool("EVENTS_ENABLED", true),
		EventsLogPath: envStr("EVENTS_LOG_PATH", "logs/lending.log"),
	}
}

// LoadDatabase reads only what the operator CLI needs to reach MySQL.
func LoadDatabase() Config {
	_ = godotenv.Load()
	return Config{
		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		DBMaxOpen:     envInt("DB_MAX_OPEN_CONNS", 5),
		BcryptCost:    envInt("BCRYPT_COST", 12),
		LogFormat:     envStr("LOG_FORMAT", "text"),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		AMQPURL:       amqpURL(),
		EventsEnabled: envBool("EVENTS_ENABLED", true),
		EventsLogPath: envStr("EVENTS_LOG_PATH", "logs/lending.log"),
	}
}

// Database returns the connection options for database.Open.
func (c Config) Database() database.Options {
	return database.Options{
		User:         c.DBUser,
		Pass:         c.DBPass,
		Host:         c.DBHost,
		Port:         c.DBPort,
		Name:         c.DBName,
		MaxOpenConns: c.DBMaxOpen,
	}
}

// amqpURL accepts either AMQP_URL or RABBITMQ_URL.
func amqpURL() string {
	if v := os.Getenv("AMQP_URL"); v != "" {
		return v
	}
	return os.Getenv("RABBITMQ_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
