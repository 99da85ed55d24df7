// Package config defines the sync configuration file format.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/miekg/dns"
)

// Defaults for paths and the control utility.
const (
	DefaultZoneList = "/var/lib/nsd/zone.list"
)

// TSIGKeyConfig defines one transaction signature key.
type TSIGKeyConfig struct {
	// Name is the key name, e.g. "transfer-key".
	Name string `json:"name"`
	// Algorithm is the HMAC algorithm, e.g. "hmac-sha256".
	Algorithm string `json:"algorithm"`
	// Secret is the base64 key material.
	Secret string `json:"secret"`
}

// CatalogZoneConfig defines one catalog zone to fetch and reconcile.
type CatalogZoneConfig struct {
	// Name is the catalog zone's FQDN.
	Name string `json:"name"`
	// Server is the authoritative source, "host" or "host:port".
	Server string `json:"server"`
	// TSIGKey names a key from the top-level keys list. Empty means an
	// unsigned transfer.
	TSIGKey string `json:"tsig_key,omitempty"`
	// Pattern is the nameserver pattern applied to this catalog's
	// ungrouped members.
	Pattern string `json:"pattern,omitempty"`
}

// Config is the sync configuration file.
type Config struct {
	// CatalogZones lists the catalog zones to reconcile against.
	CatalogZones []CatalogZoneConfig `json:"catalog_zones"`
	// Keys lists the TSIG keys referenced by catalog zones.
	Keys []TSIGKeyConfig `json:"keys,omitempty"`
	// GroupPatterns maps a catalog group tag to a nameserver pattern.
	GroupPatterns map[string]string `json:"group_patterns,omitempty"`
	// DefaultPattern is the fallback pattern for ungrouped members of
	// catalogs that configure no pattern of their own.
	DefaultPattern string `json:"default_pattern,omitempty"`
	// ZoneList is the nameserver's zone list file (observed state).
	ZoneList string `json:"zone_list,omitempty"`
	// ControlCommand is the control utility, e.g. "nsd-control" or
	// "nsd-control -c /etc/nsd/nsd.conf".
	ControlCommand string `json:"control_command,omitempty"`
	// Cache is the path of the bbolt database caching fetched catalogs.
	// Empty disables caching.
	Cache string `json:"cache,omitempty"`
	// VerifyLabels rejects catalog entries whose owner label does not
	// match the hash of the member name.
	VerifyLabels bool `json:"verify_labels,omitempty"`
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if cfg.ZoneList == "" {
		cfg.ZoneList = DefaultZoneList
	}
	return &cfg, nil
}

// Validate checks the configuration for duplicate or dangling references.
func (c *Config) Validate() error {
	keys := make(map[string]bool)
	for _, k := range c.Keys {
		if k.Name == "" {
			return fmt.Errorf("key with empty name")
		}
		if keys[k.Name] {
			return fmt.Errorf("duplicate key %s", k.Name)
		}
		if k.Secret == "" {
			return fmt.Errorf("key %s: secret required", k.Name)
		}
		keys[k.Name] = true
	}

	if len(c.CatalogZones) == 0 {
		return fmt.Errorf("no catalog zones configured")
	}

	seen := make(map[string]bool)
	for _, cz := range c.CatalogZones {
		if cz.Name == "" {
			return fmt.Errorf("catalog zone with empty name")
		}
		name := dns.Fqdn(strings.ToLower(cz.Name))
		if seen[name] {
			return fmt.Errorf("duplicate catalog zone %s", name)
		}
		seen[name] = true
		if cz.Server == "" {
			return fmt.Errorf("catalog zone %s: server required", name)
		}
		if cz.TSIGKey != "" && !keys[cz.TSIGKey] {
			return fmt.Errorf("catalog zone %s: unknown key %s", name, cz.TSIGKey)
		}
	}
	return nil
}

// Key returns the named TSIG key config, if present.
func (c *Config) Key(name string) (TSIGKeyConfig, bool) {
	for _, k := range c.Keys {
		if k.Name == name {
			return k, true
		}
	}
	return TSIGKeyConfig{}, false
}
