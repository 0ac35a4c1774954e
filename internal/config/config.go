package config

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config centralises runtime configuration.
type Config struct {
	HTTPPort        string
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
	AllowedOrigins  []string

	StoreDriver string
	DatabaseURL string

	JWTSecret        string
	JWTExpiry        time.Duration
	JWTRefreshSecret string
	JWTRefreshExpiry time.Duration
	JWTIssuer        string
	BcryptCost       int

	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
}

// Load reads configuration from environment variables providing sane defaults.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	httpPort := getEnv("HTTP_PORT", "")
	if httpPort == "" {
		httpPort = getEnv("PORT", "8080")
	}

	var env envReader
	cfg := Config{
		HTTPPort:         httpPort,
		ReadTimeoutSec:   env.intVar("HTTP_READ_TIMEOUT", 15),
		WriteTimeoutSec:  env.intVar("HTTP_WRITE_TIMEOUT", 15),
		IdleTimeoutSec:   env.intVar("HTTP_IDLE_TIMEOUT", 60),
		AllowedOrigins:   splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		DatabaseURL:      resolveDatabaseURL(),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTExpiry:        env.durationVar("JWT_EXPIRES_IN", 7*24*time.Hour),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
		JWTRefreshExpiry: env.durationVar("JWT_REFRESH_EXPIRES_IN", 30*24*time.Hour),
		JWTIssuer:        getEnv("JWT_ISSUER", "credauth"),
		BcryptCost:       env.intVar("BCRYPT_COST", 10),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
		MetricsEnabled:   env.boolVar("METRICS_ENABLED", true),
	}
	if err := env.err(); err != nil {
		return Config{}, err
	}

	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", ""))
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = StoreMemory
		if cfg.DatabaseURL != "" {
			cfg.StoreDriver = StorePostgres
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DatabaseURL resolves only the database settings, for tooling that does not
// need the token secrets.
func DatabaseURL() (string, error) {
	if err := loadDotEnv(".env"); err != nil {
		return "", fmt.Errorf("loading .env: %w", err)
	}
	url := resolveDatabaseURL()
	if url == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("database configuration missing: provide DATABASE_URL or PG* env vars")
	}
	return url, nil
}

// Validate checks the settings the auth core depends on.
func (c Config) Validate() error {
	errs := oops.Code("CONFIG_INVALID")

	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errs.Errorf("database configuration missing: provide DATABASE_URL or PG* env vars")
		}
	default:
		return errs.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.JWTSecret == "" {
		return errs.Errorf("JWT_SECRET is required")
	}
	if c.JWTRefreshSecret == "" {
		return errs.Errorf("JWT_REFRESH_SECRET is required")
	}
	if c.JWTSecret == c.JWTRefreshSecret {
		return errs.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must be different")
	}
	if c.JWTExpiry <= 0 {
		return errs.Errorf("JWT_EXPIRES_IN must be positive")
	}
	if c.JWTRefreshExpiry <= c.JWTExpiry {
		return errs.Errorf("JWT_REFRESH_EXPIRES_IN must be longer than JWT_EXPIRES_IN")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return errs.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

// envReader parses typed variables and collects every value it could not parse.
type envReader struct {
	errs []error
}

func (e *envReader) invalid(key, val, kind string) {
	e.errs = append(e.errs, fmt.Errorf("%s: cannot parse %q as %s", key, val, kind))
}

func (e *envReader) err() error {
	if len(e.errs) == 0 {
		return nil
	}
	return oops.Code("CONFIG_INVALID").Wrap(errors.Join(e.errs...))
}

func (e *envReader) durationVar(key string, fallback time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	d, err := parseDuration(val)
	if err != nil {
		e.invalid(key, val, "a duration")
		return fallback
	}
	return d
}

func (e *envReader) intVar(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		e.invalid(key, val, "an integer")
		return fallback
	}
	return n
}

func (e *envReader) boolVar(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		e.invalid(key, val, "a boolean")
		return fallback
	}
	return b
}

// parseDuration accepts Go durations plus a whole-day form such as "7d".
func parseDuration(val string) (time.Duration, error) {
	val = strings.TrimSpace(val)
	if days, ok := strings.CutSuffix(val, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(val)
}

func splitCSV(value string) []string {
	parts := []string{}
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return []string{"*"}
	}
	return parts
}

func resolveDatabaseURL() string {
	for _, key := range []string{"DATABASE_URL", "POSTGRES_URL", "PGURL"} {
		if url := os.Getenv(key); url != "" {
			if coerced := coerceDatabaseURL(url); coerced != "" {
				return coerced
			}
		}
	}

	if urlFromFile := readEnvFile("DATABASE_URL_FILE"); urlFromFile != "" {
		if coerced := coerceDatabaseURL(urlFromFile); coerced != "" {
			return coerced
		}
	}

	host := firstNonEmpty(os.Getenv("PGHOST"), os.Getenv("POSTGRES_HOST"))
	user := firstNonEmpty(os.Getenv("PGUSER"), os.Getenv("POSTGRES_USER"))
	if host == "" || user == "" {
		return ""
	}
	password := firstNonEmpty(os.Getenv("PGPASSWORD"), os.Getenv("POSTGRES_PASSWORD"))
	database := firstNonEmpty(os.Getenv("PGDATABASE"), os.Getenv("POSTGRES_DB"), user)
	port := firstNonEmpty(os.Getenv("PGPORT"), os.Getenv("POSTGRES_PORT"), "5432")
	sslMode := firstNonEmpty(os.Getenv("PGSSLMODE"), "require")

	dsn := &neturl.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + database,
		User:   neturl.User(user),
	}
	if password != "" {
		dsn.User = neturl.UserPassword(user, password)
	}
	query := dsn.Query()
	query.Set("sslmode", sslMode)
	dsn.RawQuery = query.Encode()

	return dsn.String()
}

func normalisePostgresScheme(url string) string {
	if strings.HasPrefix(url, "postgresql://") {
		return "postgres://" + strings.TrimPrefix(url, "postgresql://")
	}
	return url
}

func coerceDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		return normalisePostgresScheme(raw)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func readEnvFile(key string) string {
	path := os.Getenv(key)
	if path == "" {
		return ""
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func loadDotEnv(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf(".env line %d: missing '='", lineNum)
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			return fmt.Errorf(".env line %d: empty key", lineNum)
		}

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		// Real environment wins over the file.
		if existing, ok := os.LookupEnv(key); ok && existing != "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf(".env line %d: %w", lineNum, err)
		}
	}
	return scanner.Err()
}
