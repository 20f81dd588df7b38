// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageDrive      = "drive"
	StorageFilesystem = "filesystem"

	RendererNative   = "native"
	RendererChromedp = "chromedp"
)

// Config represents application configuration loaded from environment variables
type Config struct {
	Env  string
	Port string

	DatabaseURL string

	StorageBackend  string
	CredentialsPath string
	CredentialsJSON string
	DriveFolderID   string
	StorageDir      string
	StorageBaseURL  string

	AllowedOrigin      string
	AssetOriginAllowed []string

	PreviewSize    int
	ProductionSize int
	UploadTimeout  time.Duration

	Renderer              string
	ChromePath            string
	RegenerationURL       string
	RegenerationPerMinute int

	ReprocessSchedule string
	RedisURL          string
	PricingConfigPath string
}

// Load reads the configuration and applies defaults
func Load() (*Config, error) {
	port := strings.TrimPrefix(getEnv("PORT", "8080"), ":")
	cfg := &Config{
		Env:                   getEnv("ENV", "development"),
		Port:                  port,
		DatabaseURL:           databaseURL(),
		StorageBackend:        strings.ToLower(getEnv("STORAGE_BACKEND", StorageFilesystem)),
		CredentialsPath:       os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		CredentialsJSON:       os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"),
		DriveFolderID:         os.Getenv("DRIVE_FOLDER_ID"),
		StorageDir:            getEnv("STORAGE_DIR", "storage"),
		StorageBaseURL:        getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		PreviewSize:           getEnvInt("PREVIEW_SIZE", 600),
		ProductionSize:        getEnvInt("PRODUCTION_SIZE", 3500),
		UploadTimeout:         time.Second * time.Duration(getEnvInt("UPLOAD_TIMEOUT_SECONDS", 60)),
		Renderer:              strings.ToLower(getEnv("RENDERER", RendererNative)),
		ChromePath:            os.Getenv("CHROME_PATH"),
		RegenerationURL:       os.Getenv("REGENERATION_URL"),
		RegenerationPerMinute: getEnvInt("REGENERATION_RATE_PER_MINUTE", 30),
		ReprocessSchedule:     getEnv("REPROCESS_SCHEDULE", "@every 15m"),
		RedisURL:              os.Getenv("REDIS_URL"),
		PricingConfigPath:     os.Getenv("PRICING_CONFIG"),
	}
	cfg.AssetOriginAllowed = allowlist(os.Getenv("ASSET_ORIGIN_ALLOWLIST"), cfg.StorageBaseURL)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database connection variables not set. Set DATABASE_URL or DB_HOST, DB_USER, DB_NAME")
	}
	switch cfg.StorageBackend {
	case StorageFilesystem:
	case StorageDrive:
		if cfg.CredentialsPath == "" && cfg.CredentialsJSON == "" {
			return nil, fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS is required for the drive storage backend")
		}
		if cfg.DriveFolderID == "" {
			return nil, fmt.Errorf("DRIVE_FOLDER_ID is required for the drive storage backend")
		}
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q. Valid values: drive, filesystem", cfg.StorageBackend)
	}
	if cfg.Renderer != RendererNative && cfg.Renderer != RendererChromedp {
		return nil, fmt.Errorf("invalid RENDERER %q. Valid values: native, chromedp", cfg.Renderer)
	}
	if cfg.PreviewSize <= 0 || cfg.ProductionSize <= 0 {
		return nil, fmt.Errorf("PREVIEW_SIZE and PRODUCTION_SIZE must be positive")
	}
	return cfg, nil
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// databaseURL prefers DATABASE_URL and otherwise builds a DSN from DB_* variables
func databaseURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	host := os.Getenv("DB_HOST")
	user := os.Getenv("DB_USER")
	dbname := os.Getenv("DB_NAME")
	if host == "" || user == "" || dbname == "" {
		return ""
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, getEnv("DB_PORT", "5432"), user, os.Getenv("DB_PASSWORD"), dbname, getEnv("DB_SSLMODE", "disable"))
}

// allowlist always trusts the host of our own storage
func allowlist(raw, storageBaseURL string) []string {
	var hosts []string
	seen := map[string]bool{}
	add := func(h string) {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" && !seen[h] {
			seen[h] = true
			hosts = append(hosts, h)
		}
	}
	if u, err := url.Parse(storageBaseURL); err == nil {
		add(u.Hostname())
	}
	for _, h := range strings.Split(raw, ",") {
		add(h)
	}
	return hosts
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
