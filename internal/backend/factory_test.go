package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"salestracker/internal/config"
)

func TestBackendTypeIsValid(t *testing.T) {
	for _, bt := range GetBackendTypes() {
		if !bt.IsValid() {
			t.Errorf("%s should be valid", bt)
		}
	}
	if BackendType("sqlite").IsValid() {
		t.Error("sqlite is not a record store")
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}

	app := &config.Config{RecordBackend: "mongo", MongoURI: "mongodb://x", MongoDatabase: "db", MongoCollection: "sales"}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != MongoBackend || cfg.MongoURI != "mongodb://x" || cfg.MongoCollection != "sales" {
		t.Errorf("unexpected config %+v", cfg)
	}

	if _, err := FromAppConfig(&config.Config{RecordBackend: "csv"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sheets without id", Config{Type: SheetsBackend}, true},
		{"mongo without uri", Config{Type: MongoBackend, MongoDatabase: "db"}, true},
		{"mongo without db", Config{Type: MongoBackend, MongoURI: "mongodb://x"}, true},
		{"unknown", Config{Type: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	f := NewFactory(nil)
	ctx := context.Background()

	res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if res.Store == nil || res.Cleanup != nil {
		t.Fatalf("unexpected result %+v", res)
	}

	seed := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(seed, []byte(`[{"date":"2025-01-01","cashAmount":10,"onlineAmount":"5,5"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err = f.CreateBackend(ctx, Config{Type: MemoryBackend, SeedFile: seed})
	if err != nil {
		t.Fatalf("CreateBackend with seed: %v", err)
	}
	recs, err := res.Store.ListAll(ctx)
	if err != nil || len(recs) != 1 {
		t.Fatalf("seeded store = %v, %v", recs, err)
	}
	if recs[0].Online.Cents != 550 {
		t.Errorf("online = %d, want 550", recs[0].Online.Cents)
	}
}
