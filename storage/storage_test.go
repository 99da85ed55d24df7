package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/miekg/dns"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catz.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	if err != nil {
		t.Fatalf("Failed to parse record %q: %v", s, err)
	}
	return rr
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "catz.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open store in nested directory: %v", err)
	}
	defer s.Close()
	if s.Path() != path {
		t.Errorf("Expected path %s, got %s", path, s.Path())
	}
}

func TestSaveGetCatalog(t *testing.T) {
	s := testStore(t)

	records := []dns.RR{
		mustRR(t, "catalog.example. 0 IN SOA invalid. invalid. 100 3600 600 2147483647 0"),
		mustRR(t, "catalog.example. 0 IN NS invalid."),
		mustRR(t, "version.catalog.example. 0 IN TXT \"2\""),
		mustRR(t, "5960775ba382e7a4e86abc0e0957ea5977b74d99.zones.catalog.example. 0 IN PTR a.example."),
	}
	if err := s.SaveCatalog("catalog.example.", 100, records); err != nil {
		t.Fatalf("SaveCatalog failed: %v", err)
	}

	cache, got, err := s.GetCatalog("catalog.example.")
	if err != nil {
		t.Fatalf("GetCatalog failed: %v", err)
	}
	if cache.Origin != "catalog.example." || cache.Serial != 100 {
		t.Errorf("Unexpected cache metadata: %+v", cache)
	}
	if cache.FetchedAt.IsZero() {
		t.Error("Expected FetchedAt to be set")
	}
	if len(got) != len(records) {
		t.Fatalf("Expected %d records, got %d", len(records), len(got))
	}
	for i := range records {
		if got[i].String() != records[i].String() {
			t.Errorf("Record %d: expected %s, got %s", i, records[i], got[i])
		}
	}
}

func TestGetCatalog_NormalizesOrigin(t *testing.T) {
	s := testStore(t)
	records := []dns.RR{
		mustRR(t, "catalog.example. 0 IN SOA invalid. invalid. 1 3600 600 2147483647 0"),
	}
	if err := s.SaveCatalog("catalog.example", 1, records); err != nil {
		t.Fatalf("SaveCatalog failed: %v", err)
	}
	if _, _, err := s.GetCatalog("catalog.example."); err != nil {
		t.Errorf("Expected lookup with trailing dot to hit, got %v", err)
	}
}

func TestGetCatalog_NotFound(t *testing.T) {
	s := testStore(t)
	_, _, err := s.GetCatalog("missing.example.")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSaveCatalog_Overwrite(t *testing.T) {
	s := testStore(t)
	first := []dns.RR{
		mustRR(t, "catalog.example. 0 IN SOA invalid. invalid. 1 3600 600 2147483647 0"),
	}
	second := []dns.RR{
		mustRR(t, "catalog.example. 0 IN SOA invalid. invalid. 2 3600 600 2147483647 0"),
		mustRR(t, "version.catalog.example. 0 IN TXT \"2\""),
	}
	if err := s.SaveCatalog("catalog.example.", 1, first); err != nil {
		t.Fatalf("SaveCatalog failed: %v", err)
	}
	if err := s.SaveCatalog("catalog.example.", 2, second); err != nil {
		t.Fatalf("SaveCatalog failed: %v", err)
	}

	cache, got, err := s.GetCatalog("catalog.example.")
	if err != nil {
		t.Fatalf("GetCatalog failed: %v", err)
	}
	if cache.Serial != 2 || len(got) != 2 {
		t.Errorf("Expected overwritten cache with serial 2 and 2 records, got serial %d, %d records", cache.Serial, len(got))
	}
}

func TestDeleteCatalog(t *testing.T) {
	s := testStore(t)
	records := []dns.RR{
		mustRR(t, "catalog.example. 0 IN SOA invalid. invalid. 1 3600 600 2147483647 0"),
	}
	if err := s.SaveCatalog("catalog.example.", 1, records); err != nil {
		t.Fatalf("SaveCatalog failed: %v", err)
	}
	if err := s.DeleteCatalog("catalog.example."); err != nil {
		t.Fatalf("DeleteCatalog failed: %v", err)
	}
	if _, _, err := s.GetCatalog("catalog.example."); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	// Deleting a missing catalog is a no-op.
	if err := s.DeleteCatalog("missing.example."); err != nil {
		t.Errorf("Expected delete of missing catalog to succeed, got %v", err)
	}
}
