package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Member is one (zone name, optional group) input pair for the Builder.
type Member struct {
	Name  string
	Group string
}

// Builder produces a well-formed catalog zone record set from a list of
// member zones.
type Builder struct {
	// Origin is the catalog zone name. Need not be fully qualified.
	Origin string
	// Serial overrides the SOA serial. Zero means current unix time.
	Serial uint32
}

// Build validates the members and returns the complete catalog zone record
// set: SOA, NS, version marker, one PTR per member and a group TXT for each
// grouped member. All validation problems are collected before failing; no
// partial zone is ever returned. Zero members yields a minimal valid catalog
// (structural records only).
func (b *Builder) Build(members []Member) ([]dns.RR, error) {
	origin := Normalize(b.Origin)
	if _, ok := dns.IsDomainName(origin); !ok || origin == "." {
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("invalid catalog origin %q", b.Origin)}}
	}

	var problems []string
	seen := make(map[string]string)
	entries := make([]Entry, 0, len(members))

	for _, m := range members {
		name := Normalize(m.Name)
		if _, ok := dns.IsDomainName(name); !ok || strings.TrimSuffix(name, ".") == "" {
			problems = append(problems, fmt.Sprintf("invalid zone name %q", m.Name))
			continue
		}
		if name == origin {
			problems = append(problems, fmt.Sprintf("catalog zone %s cannot be a member of itself", name))
			continue
		}
		if _, dup := seen[name]; dup {
			// Never silently deduplicate: a repeated name usually means a
			// mistake in the operator's zone list.
			problems = append(problems, fmt.Sprintf("duplicate zone name %s", name))
			continue
		}
		seen[name] = m.Group
		entries = append(entries, Entry{Label: MemberLabel(name), Name: name, Group: m.Group})
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	serial := b.Serial
	if serial == 0 {
		serial = uint32(time.Now().Unix())
	}

	rrs := make([]dns.RR, 0, 3+2*len(entries))
	rrs = append(rrs, &dns.SOA{
		Hdr:     dns.RR_Header{Name: origin, Rrtype: dns.TypeSOA, Class: dns.ClassINET, Ttl: 0},
		Ns:      "invalid.",
		Mbox:    "invalid.",
		Serial:  serial,
		Refresh: DefaultSOARefresh,
		Retry:   DefaultSOARetry,
		Expire:  DefaultSOAExpire,
		Minttl:  DefaultSOAMinimum,
	})
	rrs = append(rrs, &dns.NS{
		Hdr: dns.RR_Header{Name: origin, Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: 0},
		Ns:  "invalid.",
	})
	rrs = append(rrs, &dns.TXT{
		Hdr: dns.RR_Header{Name: "version." + origin, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 0},
		Txt: []string{"2"},
	})

	for _, e := range entries {
		owner := e.Label + ".zones." + origin
		rrs = append(rrs, &dns.PTR{
			Hdr: dns.RR_Header{Name: owner, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 0},
			Ptr: e.Name,
		})
		if e.Group != "" {
			rrs = append(rrs, &dns.TXT{
				Hdr: dns.RR_Header{Name: "group." + owner, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 0},
				Txt: []string{e.Group},
			})
		}
	}

	return rrs, nil
}

// Text renders a record set in master-file form, one record per line.
func Text(rrs []dns.RR) string {
	var sb strings.Builder
	for _, rr := range rrs {
		sb.WriteString(rr.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
