package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catz.conf")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"catalog_zones": [
			{"name": "catalog.example.", "server": "192.0.2.1", "tsig_key": "xfer", "pattern": "member"}
		],
		"keys": [
			{"name": "xfer", "algorithm": "hmac-sha256", "secret": "c2VjcmV0"}
		],
		"group_patterns": {"internal": "internal-pattern"},
		"default_pattern": "default",
		"control_command": "nsd-control -c /etc/nsd/nsd.conf",
		"cache": "/var/cache/catz/catz.db",
		"verify_labels": true
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if len(cfg.CatalogZones) != 1 {
		t.Fatalf("Expected 1 catalog zone, got %d", len(cfg.CatalogZones))
	}
	cz := cfg.CatalogZones[0]
	if cz.Name != "catalog.example." || cz.Server != "192.0.2.1" || cz.Pattern != "member" {
		t.Errorf("Unexpected catalog zone: %+v", cz)
	}
	if cfg.GroupPatterns["internal"] != "internal-pattern" {
		t.Errorf("Unexpected group patterns: %v", cfg.GroupPatterns)
	}
	if cfg.ZoneList != DefaultZoneList {
		t.Errorf("Expected default zone list %s, got %s", DefaultZoneList, cfg.ZoneList)
	}
	if !cfg.VerifyLabels {
		t.Error("Expected verify_labels to be set")
	}

	key, ok := cfg.Key("xfer")
	if !ok {
		t.Fatal("Expected key xfer to resolve")
	}
	if key.Algorithm != "hmac-sha256" || key.Secret != "c2VjcmV0" {
		t.Errorf("Unexpected key: %+v", key)
	}
	if _, ok := cfg.Key("missing"); ok {
		t.Error("Expected missing key to not resolve")
	}
}

func TestLoad_ZoneListOverride(t *testing.T) {
	path := writeConfig(t, `{
		"catalog_zones": [{"name": "catalog.example.", "server": "192.0.2.1"}],
		"zone_list": "/tmp/zone.list"
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ZoneList != "/tmp/zone.list" {
		t.Errorf("Expected zone list override, got %s", cfg.ZoneList)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "no-such-file")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoad_BadJSON(t *testing.T) {
	path := writeConfig(t, `{"catalog_zones": [`)
	if _, err := Load(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "no catalogs",
			cfg:     Config{},
			wantErr: "no catalog zones",
		},
		{
			name: "empty catalog name",
			cfg: Config{
				CatalogZones: []CatalogZoneConfig{{Server: "192.0.2.1"}},
			},
			wantErr: "empty name",
		},
		{
			name: "missing server",
			cfg: Config{
				CatalogZones: []CatalogZoneConfig{{Name: "catalog.example."}},
			},
			wantErr: "server required",
		},
		{
			name: "duplicate catalog",
			cfg: Config{
				CatalogZones: []CatalogZoneConfig{
					{Name: "catalog.example.", Server: "192.0.2.1"},
					{Name: "CATALOG.EXAMPLE", Server: "192.0.2.2"},
				},
			},
			wantErr: "duplicate catalog zone",
		},
		{
			name: "unknown key",
			cfg: Config{
				CatalogZones: []CatalogZoneConfig{
					{Name: "catalog.example.", Server: "192.0.2.1", TSIGKey: "nope"},
				},
			},
			wantErr: "unknown key",
		},
		{
			name: "key without name",
			cfg: Config{
				Keys:         []TSIGKeyConfig{{Secret: "c2VjcmV0"}},
				CatalogZones: []CatalogZoneConfig{{Name: "catalog.example.", Server: "192.0.2.1"}},
			},
			wantErr: "empty name",
		},
		{
			name: "duplicate key",
			cfg: Config{
				Keys: []TSIGKeyConfig{
					{Name: "xfer", Secret: "c2VjcmV0"},
					{Name: "xfer", Secret: "c2VjcmV0"},
				},
				CatalogZones: []CatalogZoneConfig{{Name: "catalog.example.", Server: "192.0.2.1"}},
			},
			wantErr: "duplicate key",
		},
		{
			name: "key without secret",
			cfg: Config{
				Keys:         []TSIGKeyConfig{{Name: "xfer"}},
				CatalogZones: []CatalogZoneConfig{{Name: "catalog.example.", Server: "192.0.2.1"}},
			},
			wantErr: "secret required",
		},
		{
			name: "valid",
			cfg: Config{
				Keys: []TSIGKeyConfig{{Name: "xfer", Algorithm: "hmac-sha256", Secret: "c2VjcmV0"}},
				CatalogZones: []CatalogZoneConfig{
					{Name: "catalog.example.", Server: "192.0.2.1", TSIGKey: "xfer"},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
