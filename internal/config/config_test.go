package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DefaultWarehouseID != "main-warehouse" {
		t.Fatalf("expected default warehouse id, got %s", cfg.DefaultWarehouseID)
	}
	if cfg.ExtractionTTLSeconds != 3600 {
		t.Fatalf("expected default extraction ttl 3600, got %d", cfg.ExtractionTTLSeconds)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Fatalf("expected default max upload 10MiB, got %d", cfg.MaxUploadBytes)
	}
}
