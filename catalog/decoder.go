package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// Decoder recovers the structured Zone form from a raw fetched record set.
type Decoder struct {
	// VerifyLabels makes the decoder reject entries whose owner label does
	// not match the hash of the PTR payload. Off by default: decoding trusts
	// the payload and uses the label only as a stable key, so catalogs
	// produced with a different label derivation still decode.
	VerifyLabels bool
}

// Decode parses a catalog zone record set. A missing or unsupported version
// marker fails the whole catalog with *SchemaError. Broken individual
// entries are collected as *MalformedEntryError and returned alongside the
// well-formed remainder, so one bad entry does not block reconciliation of
// the rest.
func (d *Decoder) Decode(origin string, rrs []dns.RR) (*Zone, []error, error) {
	origin = Normalize(origin)
	zone := &Zone{Origin: origin, Members: make(map[string]Entry)}

	var malformed []error
	memberSuffix := ".zones." + origin
	groups := make(map[string]string)  // label -> group
	byLabel := make(map[string]string) // label -> member name, for group association

	versionSeen := false
	for _, rr := range rrs {
		owner := strings.ToLower(rr.Header().Name)

		switch {
		case owner == origin:
			if soa, ok := rr.(*dns.SOA); ok {
				zone.Serial = soa.Serial
			}

		case owner == "version."+origin:
			txt, ok := rr.(*dns.TXT)
			if !ok || len(txt.Txt) == 0 {
				continue
			}
			versionSeen = true
			if v, err := strconv.Atoi(txt.Txt[0]); err == nil {
				zone.Version = v
			}

		case strings.HasSuffix(owner, memberSuffix):
			rest := strings.TrimSuffix(owner, memberSuffix)
			if label, found := strings.CutPrefix(rest, "group."); found && !strings.Contains(label, ".") {
				if txt, ok := rr.(*dns.TXT); ok && len(txt.Txt) > 0 {
					groups[label] = txt.Txt[0]
				}
				continue
			}
			if strings.HasPrefix(rest, "coo.") || strings.HasPrefix(rest, "serial.") {
				// Change-of-ownership and serial properties are not
				// supported; skipping them leaves the entry itself intact.
				continue
			}
			if strings.Contains(rest, ".") {
				continue
			}
			ptr, ok := rr.(*dns.PTR)
			if !ok {
				continue
			}
			if err := validLabel(rest); err != "" {
				malformed = append(malformed, &MalformedEntryError{Origin: origin, Owner: owner, Reason: err})
				continue
			}
			name := Normalize(ptr.Ptr)
			if _, ok := dns.IsDomainName(name); !ok || strings.TrimSuffix(name, ".") == "" {
				malformed = append(malformed, &MalformedEntryError{Origin: origin, Owner: owner,
					Reason: fmt.Sprintf("invalid member zone name %q", ptr.Ptr)})
				continue
			}
			if name == origin {
				malformed = append(malformed, &MalformedEntryError{Origin: origin, Owner: owner,
					Reason: "catalog zone listed as its own member"})
				continue
			}
			if prev, dup := zone.Members[name]; dup {
				if prev.Label != rest {
					malformed = append(malformed, &MalformedEntryError{Origin: origin, Owner: owner,
						Reason: fmt.Sprintf("duplicate member zone %s", name)})
				}
				continue
			}
			if d.VerifyLabels && rest != MemberLabel(name) {
				malformed = append(malformed, &MalformedEntryError{Origin: origin, Owner: owner,
					Reason: fmt.Sprintf("label does not match hash of %s", name)})
				continue
			}
			zone.Members[name] = Entry{Label: rest, Name: name}
			byLabel[rest] = name
		}
	}

	if !versionSeen {
		return nil, nil, &SchemaError{Origin: origin, Missing: true}
	}
	if !supportedVersion(zone.Version) {
		return nil, nil, &SchemaError{Origin: origin, Version: zone.Version}
	}

	// Attach group tags. Entries without a group record stay in the default
	// group; group records without a matching entry are reported.
	for label, group := range groups {
		name, ok := byLabel[label]
		if !ok {
			malformed = append(malformed, &MalformedEntryError{Origin: origin,
				Owner: "group." + label + memberSuffix, Reason: "group record without matching entry"})
			continue
		}
		e := zone.Members[name]
		e.Group = group
		zone.Members[name] = e
	}

	return zone, malformed, nil
}

func supportedVersion(v int) bool {
	for _, s := range SupportedVersions {
		if v == s {
			return true
		}
	}
	return false
}

// validLabel reports why a member owner label is unusable, or "" if it is a
// legal single DNS label.
func validLabel(label string) string {
	if label == "" {
		return "empty entry label"
	}
	if len(label) > 63 {
		return "entry label exceeds 63 octets"
	}
	for _, c := range label {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return fmt.Sprintf("entry label contains invalid character %q", c)
		}
	}
	return ""
}
