// Пакет config — загрузка и валидация конфигурации шлюза obras-gateway
// из переменных окружения (и необязательного .env-файла).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые драйверы хранилища.
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

// Допустимые провайдеры аутентификации.
const (
	AuthProviderLocal    = "local"
	AuthProviderKeycloak = "keycloak"
)

// Config содержит все параметры конфигурации шлюза.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Максимальный размер multipart-запроса (фото, BIM)
	MaxUploadSize int64

	// --- Backend (REST API obras) ---

	// Базовый URL backend
	BackendURL string
	// Таймаут исходящих запросов к backend
	BackendTimeout time.Duration
	// Путь к CA-сертификату backend (пустая строка — системный пул)
	BackendCACertPath string
	// Путь health endpoint backend для мониторинга зависимостей
	BackendHealthPath string

	// --- Хранилище ---

	// Драйвер хранилища: sqlite или postgres
	StoreDriver string
	// Путь к файлу SQLite
	SQLitePath string
	// Параметры PostgreSQL (используются при StoreDriver=postgres)
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// --- Аутентификация ---

	// Провайдер аутентификации: local или keycloak
	AuthProvider string
	// Секрет HS256 для сессионных токенов (local)
	SessionSecret string
	// Время жизни сессии
	SessionTTL time.Duration
	// Размер и TTL кэша сессий
	SessionCacheSize int
	SessionCacheTTL  time.Duration
	// Первый general-admin, создаваемый при старте (local)
	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	// --- Keycloak ---

	KeycloakURL          string
	KeycloakRealm        string
	KeycloakClientID     string
	KeycloakClientSecret string
	// Путь к CA-сертификату Keycloak (пустая строка — системный пул)
	KeycloakCACertPath string
	// Ожидаемый issuer JWT (по умолчанию {KeycloakURL}/realms/{realm})
	JWTIssuer string
	// URL JWKS (по умолчанию {issuer}/protocol/openid-connect/certs)
	JWTJWKSURL string
	// Интервал обновления JWKS
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение часов при проверке JWT
	JWTLeeway time.Duration

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Если в рабочем каталоге есть .env (или файл из OG_ENV_FILE), он загружается первым;
// уже заданные переменные окружения не перезаписываются.
func Load() (*Config, error) {
	if err := loadEnvFile(getEnvDefault("OG_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("OG_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("OG_PORT: %w", err)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("OG_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("OG_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("OG_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("OG_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	maxUpload, err := getEnvInt("OG_MAX_UPLOAD_SIZE", 200<<20)
	if err != nil {
		return nil, fmt.Errorf("OG_MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUpload <= 0 {
		return nil, fmt.Errorf("OG_MAX_UPLOAD_SIZE: значение должно быть > 0")
	}
	cfg.MaxUploadSize = int64(maxUpload)

	// --- Backend ---

	cfg.BackendURL, err = getEnvRequired("OG_BACKEND_URL")
	if err != nil {
		return nil, err
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")

	cfg.BackendTimeout, err = getEnvDuration("OG_BACKEND_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OG_BACKEND_TIMEOUT: %w", err)
	}
	cfg.BackendCACertPath = os.Getenv("OG_BACKEND_CA_CERT_PATH")
	cfg.BackendHealthPath = getEnvDefault("OG_BACKEND_HEALTH_PATH", "/health")

	// --- Хранилище ---

	cfg.StoreDriver = getEnvDefault("OG_STORE_DRIVER", StoreDriverSQLite)
	switch cfg.StoreDriver {
	case StoreDriverSQLite:
		cfg.SQLitePath = getEnvDefault("OG_SQLITE_PATH", "obras-gateway.db")
	case StoreDriverPostgres:
		if err := loadPostgres(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("OG_STORE_DRIVER: недопустимый драйвер %q, допустимые: sqlite, postgres", cfg.StoreDriver)
	}

	// --- Аутентификация ---

	cfg.AuthProvider = getEnvDefault("OG_AUTH_PROVIDER", AuthProviderLocal)
	switch cfg.AuthProvider {
	case AuthProviderLocal:
		cfg.SessionSecret, err = getEnvRequired("OG_SESSION_SECRET")
		if err != nil {
			return nil, err
		}
	case AuthProviderKeycloak:
		if err := loadKeycloak(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("OG_AUTH_PROVIDER: недопустимый провайдер %q, допустимые: local, keycloak", cfg.AuthProvider)
	}

	cfg.SessionTTL, err = getEnvDuration("OG_SESSION_TTL", 12*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("OG_SESSION_TTL: %w", err)
	}
	cfg.SessionCacheSize, err = getEnvInt("OG_SESSION_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("OG_SESSION_CACHE_SIZE: %w", err)
	}
	cfg.SessionCacheTTL, err = getEnvDuration("OG_SESSION_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OG_SESSION_CACHE_TTL: %w", err)
	}
	cfg.BootstrapAdminEmail = os.Getenv("OG_BOOTSTRAP_ADMIN_EMAIL")
	cfg.BootstrapAdminPassword = os.Getenv("OG_BOOTSTRAP_ADMIN_PASSWORD")
	if (cfg.BootstrapAdminEmail == "") != (cfg.BootstrapAdminPassword == "") {
		return nil, fmt.Errorf("OG_BOOTSTRAP_ADMIN_EMAIL и OG_BOOTSTRAP_ADMIN_PASSWORD задаются только вместе")
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("OG_DEPHEALTH_GROUP", "obras")
	cfg.DephealthCheckInterval, err = getEnvDuration("OG_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OG_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("OG_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OG_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("OG_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OG_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("OG_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OG_HTTP_IDLE_TIMEOUT: %w", err)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("OG_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OG_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// loadPostgres читает параметры подключения к PostgreSQL.
func loadPostgres(cfg *Config) error {
	var err error

	cfg.DBHost, err = getEnvRequired("OG_DB_HOST")
	if err != nil {
		return err
	}
	cfg.DBPort, err = getEnvInt("OG_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("OG_DB_PORT: %w", err)
	}
	cfg.DBName, err = getEnvRequired("OG_DB_NAME")
	if err != nil {
		return err
	}
	cfg.DBUser, err = getEnvRequired("OG_DB_USER")
	if err != nil {
		return err
	}
	cfg.DBPassword, err = getEnvRequired("OG_DB_PASSWORD")
	if err != nil {
		return err
	}
	cfg.DBSSLMode = getEnvDefault("OG_DB_SSL_MODE", "disable")
	return nil
}

// loadKeycloak читает параметры Keycloak и выводит issuer/JWKS URL, если они не заданы явно.
func loadKeycloak(cfg *Config) error {
	var err error

	cfg.KeycloakURL, err = getEnvRequired("OG_KEYCLOAK_URL")
	if err != nil {
		return err
	}
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")
	cfg.KeycloakRealm = getEnvDefault("OG_KEYCLOAK_REALM", "obras")
	cfg.KeycloakClientID, err = getEnvRequired("OG_KEYCLOAK_CLIENT_ID")
	if err != nil {
		return err
	}
	cfg.KeycloakClientSecret, err = getEnvRequired("OG_KEYCLOAK_CLIENT_SECRET")
	if err != nil {
		return err
	}

	cfg.KeycloakCACertPath = os.Getenv("OG_KEYCLOAK_CA_CERT_PATH")

	cfg.JWTIssuer = getEnvDefault("OG_JWT_ISSUER", cfg.KeycloakURL+"/realms/"+cfg.KeycloakRealm)
	cfg.JWTJWKSURL = getEnvDefault("OG_JWT_JWKS_URL", cfg.JWTIssuer+"/protocol/openid-connect/certs")

	cfg.JWKSRefreshInterval, err = getEnvDuration("OG_JWKS_REFRESH_INTERVAL", 15*time.Second)
	if err != nil {
		return fmt.Errorf("OG_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWTLeeway, err = getEnvDuration("OG_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return fmt.Errorf("OG_JWT_LEEWAY: %w", err)
	}
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL (для меток topologymetrics, без пароля).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// loadEnvFile загружает переменные из .env-файла. Отсутствие файла — не ошибка.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("загрузка %s: %w", path, err)
	}
	return nil
}

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
