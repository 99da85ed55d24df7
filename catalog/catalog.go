// Package catalog implements encoding and decoding of DNS catalog zones
// per the dns-catalog-zones specification (schema version 2).
package catalog

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/miekg/dns"
)

// SupportedVersions lists the catalog zone schema versions the decoder accepts.
var SupportedVersions = []int{2}

// SOA timer defaults for generated catalog zones. Catalog zones carry no
// ordinary DNS data, so the timers only matter for transfer scheduling.
const (
	DefaultSOARefresh = 3600
	DefaultSOARetry   = 600
	DefaultSOAExpire  = 1<<31 - 1
	DefaultSOAMinimum = 0
)

// Entry is one member zone provisioned through a catalog zone.
type Entry struct {
	// Label is the owner label carrying the entry, derived from the member
	// zone name. The decoder uses it only as a stable key.
	Label string
	// Name is the member zone's FQDN, recovered from the PTR payload.
	Name string
	// Group is the optional group tag. Empty means the default group.
	Group string
}

// Zone is the structured form of a catalog zone.
type Zone struct {
	// Origin is the catalog zone's own FQDN.
	Origin string
	// Serial is the SOA serial. Transfer freshness only, no business meaning.
	Serial uint32
	// Version is the schema version from the version TXT marker.
	Version int
	// Members holds the decoded entries, keyed by member zone FQDN.
	Members map[string]Entry
}

// MemberNames returns the member zone names in lexical order.
func (z *Zone) MemberNames() []string {
	names := make([]string, 0, len(z.Members))
	for name := range z.Members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MemberLabel returns the content-derived owner label for a member zone name:
// a UUIDv5 over the DNS namespace of the lowercased FQDN. The label is a pure
// function of the name, so no mapping state needs to be kept anywhere.
func MemberLabel(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(Normalize(name))).String()
}

// Normalize lowercases a zone name and makes it fully qualified.
func Normalize(name string) string {
	return dns.Fqdn(strings.ToLower(name))
}
