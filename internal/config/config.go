package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Google   GoogleConfig
	Firebase FirebaseConfig
	Storage  StorageConfig
	Catalog  CatalogConfig
	Session  SessionConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

// DatabaseConfig points at the account database. An empty URL disables
// credential sign-in.
type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type GoogleConfig struct {
	ClientIDs    []string
	ClientSecret string
	RedirectURL  string
	// Client page that receives the code and completes the popup sign-in
	PopupCallbackURL string
}

// FirebaseConfig selects the remote document store: "firestore" or
// "memory".
type FirebaseConfig struct {
	Mode            string
	ProjectID       string
	CredentialsFile string
}

// StorageConfig locates the durable device store. An empty path keeps it
// in memory.
type StorageConfig struct {
	BadgerPath string
}

type CatalogConfig struct {
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

type SessionConfig struct {
	IdleTimeout  time.Duration
	ReapInterval time.Duration
}

type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            getEnv("ENV", "development"),
			AllowedOrigins: parseCSV(getEnv("ALLOWED_ORIGINS", "")),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-me-in-production"),
			Expiry: getDuration("JWT_EXPIRY", 30*24*time.Hour),
		},
		Google: GoogleConfig{
			ClientIDs:        parseCSV(getEnv("GOOGLE_CLIENT_ID", "")), // comma separated for multiple
			ClientSecret:     getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:      getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
			PopupCallbackURL: getEnv("POPUP_CALLBACK_URL", "http://localhost:3000/auth/callback"),
		},
		Firebase: FirebaseConfig{
			Mode:            getEnv("REMOTE_STORE", "memory"),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		Storage: StorageConfig{
			BadgerPath: getEnv("BADGER_PATH", "./data/devices"),
		},
		Catalog: CatalogConfig{
			BaseURL:   getEnv("CATALOG_API_URL", "http://localhost:5000"),
			Timeout:   getDuration("CATALOG_TIMEOUT", 8*time.Second),
			CacheSize: getInt("CATALOG_CACHE_BYTES", 16<<20),
			CacheTTL:  getDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		},
		Session: SessionConfig{
			IdleTimeout:  getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			ReapInterval: getDuration("SESSION_REAP_INTERVAL", time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "debug"),
		},
	}, nil
}

// getEnv gets an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getDuration parses a duration variable, falling back on absence or error
func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// parseCSV parses a comma-separated string into a slice of strings
func parseCSV(value string) []string {
	if value == "" {
		return []string{}
	}
	var result []string
	parts := strings.Split(value, ",")
	for _, s := range parts {
		trimmed := strings.TrimSpace(s)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// UseFirestore reports whether the remote store is Firestore rather than the
// in-process development store.
func (c *Config) UseFirestore() bool {
	return c.Firebase.Mode == "firestore"
}
