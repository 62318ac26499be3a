package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTP     HTTPConfig
	API      APIConfig
	Realtime RealtimeConfig
	DB       DBConfig
	Redis    RedisConfig
	Session  SessionConfig
	Telegram TelegramConfig
	Log      LogConfig
}

type HTTPConfig struct {
	Addr         string
	CookieName   string
	SecureCookie bool
	PublicURL    string // absolute site address, used for tracking links sent outside the browser
	// TrustProxy takes the client address from X-Forwarded-For and X-Real-IP.
	// Only set it when a reverse proxy in front overwrites those headers.
	TrustProxy bool
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// RealtimeConfig points at the Pusher-protocol broadcast server (Laravel Reverb).
type RealtimeConfig struct {
	AppKey       string
	Host         string
	Port         int
	Scheme       string // "http" or "https"
	AuthEndpoint string // private channel authorization, defaults to API base + /broadcasting/auth
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// AutoMigrate applies the embedded migrations at startup.
	AutoMigrate bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

const (
	SessionStoreMemory   = "memory"
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
)

type SessionConfig struct {
	Store string
	TTL   time.Duration
}

type TelegramConfig struct {
	Token         string
	AdminChatID   int64
	AdminEmail    string // backend admin account the notifier logs in with
	AdminPassword string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	rtPort, _ := strconv.Atoi(getEnv("REVERB_PORT", "8080"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	adminChat, _ := strconv.ParseInt(getEnv("TELEGRAM_ADMIN_CHAT_ID", "0"), 10, 64)

	apiTimeout, err := time.ParseDuration(getEnv("API_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("API_TIMEOUT: %w", err)
	}
	sessionTTL, err := time.ParseDuration(getEnv("SESSION_TTL", "168h"))
	if err != nil {
		return nil, fmt.Errorf("SESSION_TTL: %w", err)
	}

	apiURL := strings.TrimRight(getEnv("API_URL", "http://localhost:8000/api"), "/")

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:         getEnv("HTTP_ADDR", ":3000"),
			CookieName:   getEnv("SESSION_COOKIE", "bomsabor_session"),
			SecureCookie: getBool("SESSION_COOKIE_SECURE"),
			PublicURL:    strings.TrimRight(getEnv("PUBLIC_URL", ""), "/"),
			TrustProxy:   getBool("TRUST_PROXY"),
		},
		API: APIConfig{
			BaseURL: apiURL,
			Timeout: apiTimeout,
		},
		Realtime: RealtimeConfig{
			AppKey:       getEnv("REVERB_APP_KEY", ""),
			Host:         getEnv("REVERB_HOST", "localhost"),
			Port:         rtPort,
			Scheme:       getEnv("REVERB_SCHEME", "http"),
			AuthEndpoint: getEnv("REVERB_AUTH_ENDPOINT", apiURL+"/broadcasting/auth"),
		},
		DB: DBConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        dbPort,
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", ""),
			Database:    getEnv("DB_NAME", "bomsabor"),
			AutoMigrate: getBool("AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Session: SessionConfig{
			Store: strings.ToLower(getEnv("SESSION_STORE", SessionStoreMemory)),
			TTL:   sessionTTL,
		},
		Telegram: TelegramConfig{
			Token:         getEnv("TELEGRAM_TOKEN", ""),
			AdminChatID:   adminChat,
			AdminEmail:    getEnv("TELEGRAM_BACKEND_EMAIL", ""),
			AdminPassword: getEnv("TELEGRAM_BACKEND_PASSWORD", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getBool("LOG_PRETTY"),
		},
	}

	switch cfg.Session.Store {
	case SessionStoreMemory, SessionStorePostgres, SessionStoreRedis:
	default:
		return nil, fmt.Errorf("SESSION_STORE: unknown store %q", cfg.Session.Store)
	}
	return cfg, nil
}

// NeedsDB reports whether any configured component uses Postgres.
func (c *Config) NeedsDB() bool {
	return c.Session.Store == SessionStorePostgres || c.Telegram.Token != ""
}

// URL is the websocket endpoint for the configured app key.
func (c RealtimeConfig) URL() string {
	scheme := "ws"
	if c.Scheme == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/app/%s?protocol=7&client=go&version=1.0&flash=false", scheme, c.Host, c.Port, c.AppKey)
}

func (c DBConfig) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	return u.String()
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	return v == "1" || strings.EqualFold(v, "true")
}
