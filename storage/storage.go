// Package storage provides a persistent cache of fetched catalog zones
// using a bbolt database. Caching lets a sync run skip catalogs whose SOA
// serial has not changed and keeps the last good copy across a primary
// being unreachable.
package storage

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/miekg/dns"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	BucketCatalogs = []byte("catalogs")
)

var allBuckets = [][]byte{
	BucketCatalogs,
}

// Store caches fetched catalog record sets, backed by bbolt.
type Store struct {
	db   *bolt.DB
	path string
}

// CatalogCache is the persisted form of one fetched catalog zone.
type CatalogCache struct {
	Origin    string    `json:"origin"`
	Serial    uint32    `json:"serial"`
	Records   []string  `json:"records"` // Wire format, base64 encoded
	FetchedAt time.Time `json:"fetched_at"`
}

// Open opens or creates the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
}

// SaveCatalog persists the record set of one fetched catalog zone.
func (s *Store) SaveCatalog(origin string, serial uint32, records []dns.RR) error {
	cache := &CatalogCache{
		Origin:    dns.Fqdn(origin),
		Serial:    serial,
		Records:   encodeRecords(records),
		FetchedAt: time.Now(),
	}
	data, err := json.Marshal(cache)
	if err != nil {
		return fmt.Errorf("marshal catalog cache: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketCatalogs).Put([]byte(cache.Origin), data)
	})
}

// GetCatalog loads the cached record set for a catalog zone. Returns
// ErrNotFound when the catalog has never been cached.
func (s *Store) GetCatalog(origin string) (*CatalogCache, []dns.RR, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(BucketCatalogs).Get([]byte(dns.Fqdn(origin)))
		if v == nil {
			return ErrNotFound
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var cache CatalogCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, nil, fmt.Errorf("unmarshal catalog cache: %w", err)
	}
	return &cache, decodeRecords(cache.Origin, cache.Records), nil
}

// DeleteCatalog drops the cached copy of a catalog zone.
func (s *Store) DeleteCatalog(origin string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(BucketCatalogs).Delete([]byte(dns.Fqdn(origin)))
	})
}

// encodeRecords packs records to wire format, base64 encoded for JSON.
func encodeRecords(records []dns.RR) []string {
	encoded := make([]string, 0, len(records))
	for _, rr := range records {
		buf := make([]byte, dns.MaxMsgSize)
		off, err := dns.PackRR(rr, buf, 0, nil, false)
		if err != nil {
			log.Printf("Storage: Failed to pack record for cache: %v", err)
			continue
		}
		encoded = append(encoded, base64.StdEncoding.EncodeToString(buf[:off]))
	}
	return encoded
}

func decodeRecords(origin string, encoded []string) []dns.RR {
	var records []dns.RR
	for _, e := range encoded {
		data, err := base64.StdEncoding.DecodeString(e)
		if err != nil {
			log.Printf("Storage: Failed to decode cached record for %s: %v", origin, err)
			continue
		}
		rr, _, err := dns.UnpackRR(data, 0)
		if err != nil {
			log.Printf("Storage: Failed to unpack cached record for %s: %v", origin, err)
			continue
		}
		records = append(records, rr)
	}
	return records
}
