package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_FIRESTORE_PROJECT_ID": "sf-dev",
		"STOREFRONT_AUTH_JWT_SECRET":      "dev-secret",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Repository.Backend != RepositoryBackendFirestore {
		t.Errorf("expected firestore backend, got %s", cfg.Repository.Backend)
	}
	if cfg.Auth.Issuer != defaultJWTIssuer {
		t.Errorf("expected default issuer, got %s", cfg.Auth.Issuer)
	}
	if cfg.Events.Topic != "" {
		t.Errorf("expected events disabled by default, got topic %q", cfg.Events.Topic)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
	if cfg.Redis.KeyPrefix != defaultRedisKeyPrefix {
		t.Errorf("unexpected redis prefix: %s", cfg.Redis.KeyPrefix)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_SERVER_PORT":          "9090",
		"STOREFRONT_SERVER_IDLE_TIMEOUT":  "2m",
		"STOREFRONT_REPOSITORY_BACKEND":   "Memory",
		"STOREFRONT_AUTH_JWT_SECRET":      "sm://auth/jwt",
		"STOREFRONT_REDIS_ADDR":           "localhost:6379",
		"STOREFRONT_REDIS_PASSWORD":       "secret://redis/password",
		"STOREFRONT_REDIS_DB":             "3",
		"STOREFRONT_EVENTS_ENABLED":       "true",
		"STOREFRONT_EVENTS_PROJECT_ID":    "sf-events",
		"STOREFRONT_IDEMPOTENCY_TTL":      "1h",
		"STOREFRONT_FIRESTORE_PROJECT_ID": "",
	}

	resolved := map[string]string{}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		resolved[ref] = "value-for-" + ref
		return resolved[ref], nil
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.IdleTimeout != 2*time.Minute {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Repository.Backend != RepositoryBackendMemory {
		t.Fatalf("expected memory backend, got %s", cfg.Repository.Backend)
	}
	if cfg.Auth.JWTSecret != "value-for-secret://auth/jwt" {
		t.Fatalf("expected resolved jwt secret, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Redis.Password != "value-for-secret://redis/password" {
		t.Fatalf("expected resolved redis password, got %q", cfg.Redis.Password)
	}
	if cfg.Redis.DB != 3 {
		t.Fatalf("expected redis db 3, got %d", cfg.Redis.DB)
	}
	if cfg.Events.Topic != defaultOrderEventsTopic || cfg.Events.ProjectID != "sf-events" {
		t.Fatalf("unexpected events config: %+v", cfg.Events)
	}
	if cfg.Idempotency.TTL != time.Hour {
		t.Fatalf("unexpected idempotency ttl: %s", cfg.Idempotency.TTL)
	}
	if len(resolved) != 2 {
		t.Fatalf("expected two secrets resolved, got %v", resolved)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nexport STOREFRONT_FIRESTORE_PROJECT_ID=\"sf-dotenv\"\nSTOREFRONT_AUTH_JWT_SECRET='dotenv-secret'\nSTOREFRONT_SERVER_PORT=7000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(path), WithoutSystemEnv(), WithEnvMap(map[string]string{
		"STOREFRONT_SERVER_PORT": "7100",
	}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firestore.ProjectID != "sf-dotenv" {
		t.Errorf("expected project from dotenv, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Auth.JWTSecret != "dotenv-secret" {
		t.Errorf("expected secret from dotenv, got %s", cfg.Auth.JWTSecret)
	}
	if cfg.Server.Port != "7100" {
		t.Errorf("expected explicit env map to win over dotenv, got %s", cfg.Server.Port)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := vErr.Fields()
	want := map[string]bool{"Firestore.ProjectID": false, "Auth.JWTSecret": false}
	for _, f := range fields {
		if _, ok := want[f]; ok {
			want[f] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("expected %s in missing fields %v", name, fields)
		}
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_REPOSITORY_BACKEND": "mongo",
		"STOREFRONT_AUTH_JWT_SECRET":    "s",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := vErr.Fields(); len(got) != 1 || got[0] != "Repository.Backend" {
		t.Fatalf("unexpected fields %v", got)
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_REPOSITORY_BACKEND": "memory",
		"STOREFRONT_AUTH_JWT_SECRET":    "secret://auth/jwt",
	}
	boom := errors.New("boom")
	resolver := SecretResolverFunc(func(context.Context, string) (string, error) {
		return "", boom
	})

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	var sErr *SecretError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected secret error, got %v", err)
	}
	if sErr.Ref != "secret://auth/jwt" {
		t.Fatalf("unexpected ref %s", sErr.Ref)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped resolver error")
	}
}

func TestLoadSecretWithoutResolver(t *testing.T) {
	env := map[string]string{
		"STOREFRONT_REPOSITORY_BACKEND": "memory",
		"STOREFRONT_AUTH_JWT_SECRET":    "sm://auth/jwt",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if !errors.Is(err, errSecretResolverNotConfigured) {
		t.Fatalf("expected resolver not configured error, got %v", err)
	}
}

func TestLoadClientDefaults(t *testing.T) {
	cfg, err := LoadClient(WithEnvMap(map[string]string{
		"SHOPCTL_STORAGE_DIR":  "/tmp/shopctl",
		"SHOPCTL_API_BASE_URL": "http://api.local/api/v1/",
	}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("LoadClient returned error: %v", err)
	}
	if cfg.APIBaseURL != "http://api.local/api/v1" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.APIBaseURL)
	}
	if cfg.HTTPTimeout != defaultHTTPTimeout {
		t.Errorf("unexpected timeout %s", cfg.HTTPTimeout)
	}
	if cfg.Storage.Backend != StorageBackendFile || cfg.Storage.Dir != "/tmp/shopctl" {
		t.Errorf("unexpected storage config %+v", cfg.Storage)
	}
}

func TestLoadClientRedisRequiresAddr(t *testing.T) {
	_, err := LoadClient(WithEnvMap(map[string]string{
		"SHOPCTL_STORAGE_BACKEND": "redis",
	}), WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := vErr.Fields(); len(got) != 1 || got[0] != "Storage.RedisAddr" {
		t.Fatalf("unexpected fields %v", got)
	}
}
