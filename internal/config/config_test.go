package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.DataBackend != BackendMemory || cfg.AccessTTL != 8*time.Hour || cfg.Location == nil {
		t.Fatalf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATA_BACKEND", BackendPostgres)
	t.Setenv("QUEUE_BACKEND", BackendRedis)
	t.Setenv("ALLOWED_ORIGINS", "https://a.edu, ,https://b.edu")
	t.Setenv("SCHOOL_TZ", "UTC")
	t.Setenv("SEED_MOCK_DATA", "false")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")

	cfg := Load()
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.edu" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
	if cfg.Location != time.UTC || cfg.SeedMockData || cfg.RateLimitPerMin != 30 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidate(t *testing.T) {
	base := Load()
	cases := map[string]func(*App){
		"unknown data backend":    func(a *App) { a.DataBackend = "mongo" },
		"unknown queue backend":   func(a *App) { a.QueueBackend = "kafka" },
		"redis queue with memory": func(a *App) { a.QueueBackend = BackendRedis },
		"prod default key":        func(a *App) { a.Env = "production" },
	}
	for name, mutate := range cases {
		cfg := base
		cfg.DataBackend = BackendMemory
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
}
