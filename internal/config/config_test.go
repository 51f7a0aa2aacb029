package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CACHE_POLICY", "")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorageType != "bbolt" {
		t.Fatalf("StorageType = %q", cfg.StorageType)
	}
	if cfg.CachePolicy != CachePolicyCacheThenFetch {
		t.Fatalf("CachePolicy = %q", cfg.CachePolicy)
	}
	if cfg.HTTPTimeout != 15*time.Second {
		t.Fatalf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.RefreshInterval != 0 {
		t.Fatalf("RefreshInterval = %v", cfg.RefreshInterval)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("CACHE_POLICY", " Cache_First ")
	t.Setenv("REFRESH_INTERVAL", "30")
	t.Setenv("STORAGE_TYPE", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CachePolicy != CachePolicyCacheFirst {
		t.Fatalf("CachePolicy = %q", cfg.CachePolicy)
	}
	if cfg.RefreshInterval != 30*time.Second {
		t.Fatalf("RefreshInterval = %v", cfg.RefreshInterval)
	}
	if cfg.StorageType != "memory" {
		t.Fatalf("StorageType = %q", cfg.StorageType)
	}
}

func TestLoadRejectsUnknownCachePolicy(t *testing.T) {
	t.Setenv("CACHE_POLICY", "sometimes")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown cache policy")
	}
}

func TestLoadRejectsNegativeRefresh(t *testing.T) {
	t.Setenv("CACHE_POLICY", "")
	t.Setenv("REFRESH_INTERVAL", "-5")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative refresh interval")
	}
}
