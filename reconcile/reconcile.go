// Package reconcile computes and applies the change set that brings a
// nameserver's configured zone set into agreement with one or more decoded
// catalog zones.
package reconcile

import (
	"fmt"
	"sort"
	"strings"
)

// Member is one desired zone, decoded from a catalog.
type Member struct {
	// Zone is the member zone FQDN.
	Zone string
	// Group is the catalog group tag. Empty means the default group.
	Group string
	// Catalog is the origin of the catalog zone the member came from.
	Catalog string
}

// Observed is one zone currently configured on the nameserver. A nil
// Pattern means the current pattern could not be recovered; such zones are
// conservatively treated as needing an update.
type Observed struct {
	Zone    string
	Pattern *string
}

// Change is one zone plus the pattern to apply to it.
type Change struct {
	Zone    string
	Pattern string
}

// Plan is the ordered command sequence needed to align observed state with
// desired state. The three lists are disjoint by zone name, each sorted by
// zone name, and removals are always applied before additions and updates.
type Plan struct {
	Add    []Change
	Update []Change
	Remove []string
}

// Empty reports whether the plan contains no operations.
func (p *Plan) Empty() bool {
	return len(p.Add) == 0 && len(p.Update) == 0 && len(p.Remove) == 0
}

// PatternTable maps catalog groups to nameserver configuration patterns.
// It is immutable for the duration of one run; build one per nameserver
// instance rather than sharing process-wide state.
type PatternTable struct {
	// Groups maps a group tag to a pattern name.
	Groups map[string]string
	// CatalogDefaults maps a catalog origin to the pattern for its
	// ungrouped members.
	CatalogDefaults map[string]string
	// Default is the fallback pattern for ungrouped members of catalogs
	// with no default of their own.
	Default string
}

// Resolve returns the pattern for a member, or false if its group has no
// configured pattern.
func (t PatternTable) Resolve(m Member) (string, bool) {
	if m.Group != "" {
		p, ok := t.Groups[m.Group]
		return p, ok && p != ""
	}
	if p := t.CatalogDefaults[m.Catalog]; p != "" {
		return p, true
	}
	return t.Default, t.Default != ""
}

// ConflictError means the same zone is claimed by more than one catalog.
// Fatal for the run: no plan is produced from inconsistent desired state.
type ConflictError struct {
	Zone     string
	Catalogs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("zone %s defined in multiple catalogs: %s", e.Zone, strings.Join(e.Catalogs, ", "))
}

// UnresolvedPatternError means a member's group has no mapped pattern. The
// member is skipped, not silently defaulted; the rest of the plan stands.
type UnresolvedPatternError struct {
	Zone    string
	Group   string
	Catalog string
}

func (e *UnresolvedPatternError) Error() string {
	if e.Group == "" {
		return fmt.Sprintf("zone %s (catalog %s): no pattern configured for default group", e.Zone, e.Catalog)
	}
	return fmt.Sprintf("zone %s (catalog %s): no pattern configured for group %q", e.Zone, e.Catalog, e.Group)
}

// Compute diffs desired state against observed state and returns a Plan.
// Members whose pattern cannot be resolved are skipped and reported in the
// second return value. A zone claimed by two catalogs is a *ConflictError
// and aborts the computation.
func Compute(desired []Member, observed []Observed, patterns PatternTable) (*Plan, []error, error) {
	byZone := make(map[string]Member, len(desired))
	for _, m := range desired {
		if prev, dup := byZone[m.Zone]; dup {
			cats := []string{prev.Catalog, m.Catalog}
			sort.Strings(cats)
			return nil, nil, &ConflictError{Zone: m.Zone, Catalogs: cats}
		}
		byZone[m.Zone] = m
	}

	current := make(map[string]*string, len(observed))
	for _, o := range observed {
		current[o.Zone] = o.Pattern
	}

	plan := &Plan{}
	var skipped []error

	names := make([]string, 0, len(byZone))
	for zone := range byZone {
		names = append(names, zone)
	}
	sort.Strings(names)

	for _, zone := range names {
		m := byZone[zone]
		pattern, ok := patterns.Resolve(m)
		if !ok {
			skipped = append(skipped, &UnresolvedPatternError{Zone: zone, Group: m.Group, Catalog: m.Catalog})
			continue
		}
		cur, exists := current[zone]
		switch {
		case !exists:
			plan.Add = append(plan.Add, Change{Zone: zone, Pattern: pattern})
		case cur == nil || *cur != pattern:
			plan.Update = append(plan.Update, Change{Zone: zone, Pattern: pattern})
		}
	}

	for zone := range current {
		if _, wanted := byZone[zone]; !wanted {
			plan.Remove = append(plan.Remove, zone)
		}
	}
	sort.Strings(plan.Remove)

	return plan, skipped, nil
}
