package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultAPIBaseURL      = "http://localhost:8080/api/v1"
	defaultHTTPTimeout     = 15 * time.Second
	defaultLoginURL        = "http://localhost:3000/login"
	defaultStorageBackend  = StorageBackendFile
	defaultStorageDirName  = "shopctl"
	defaultStorageKeySpace = "shopctl"
)

// Storage backends for the client-side blob store.
const (
	StorageBackendFile   = "file"
	StorageBackendRedis  = "redis"
	StorageBackendMemory = "memory"
)

// ClientConfig captures shopctl configuration.
type ClientConfig struct {
	APIBaseURL  string
	HTTPTimeout time.Duration
	LoginURL    string
	Storage     ClientStorageConfig
}

// ClientStorageConfig selects where the local cart, profile and checkout blobs live.
type ClientStorageConfig struct {
	Backend   string
	Dir       string
	RedisAddr string
	RedisDB   int
	Namespace string
}

// LoadClient assembles the client configuration using the same precedence rules as Load.
func LoadClient(opts ...Option) (ClientConfig, error) {
	_, lookup, err := newLookup(opts...)
	if err != nil {
		return ClientConfig{}, err
	}

	cfg := ClientConfig{
		APIBaseURL:  strings.TrimRight(stringWithDefault(lookup, "SHOPCTL_API_BASE_URL", defaultAPIBaseURL), "/"),
		HTTPTimeout: durationWithDefault(lookup, "SHOPCTL_HTTP_TIMEOUT", defaultHTTPTimeout),
		LoginURL:    stringWithDefault(lookup, "SHOPCTL_LOGIN_URL", defaultLoginURL),
		Storage: ClientStorageConfig{
			Backend:   strings.ToLower(stringWithDefault(lookup, "SHOPCTL_STORAGE_BACKEND", defaultStorageBackend)),
			Dir:       stringWithDefault(lookup, "SHOPCTL_STORAGE_DIR", defaultStorageDir()),
			RedisAddr: stringWithDefault(lookup, "SHOPCTL_REDIS_ADDR", ""),
			RedisDB:   intWithDefault(lookup, "SHOPCTL_REDIS_DB", 0),
			Namespace: stringWithDefault(lookup, "SHOPCTL_STORAGE_NAMESPACE", defaultStorageKeySpace),
		},
	}

	if err := validateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func validateClientConfig(cfg ClientConfig) error {
	var missing []string
	if cfg.APIBaseURL == "" {
		missing = append(missing, "APIBaseURL")
	}
	if cfg.HTTPTimeout <= 0 {
		missing = append(missing, "HTTPTimeout")
	}
	switch cfg.Storage.Backend {
	case StorageBackendFile:
		if cfg.Storage.Dir == "" {
			missing = append(missing, "Storage.Dir")
		}
	case StorageBackendRedis:
		if cfg.Storage.RedisAddr == "" {
			missing = append(missing, "Storage.RedisAddr")
		}
	case StorageBackendMemory:
	default:
		missing = append(missing, "Storage.Backend")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func defaultStorageDir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return ""
	}
	return filepath.Join(base, defaultStorageDirName)
}
