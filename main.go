// Command catz builds DNS catalog zones from zone lists and keeps a
// nameserver's configured zone set synchronized with one or more catalog
// zones fetched from authoritative sources.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/miekg/dns"

	"github.com/scott/catz/catalog"
	"github.com/scott/catz/config"
	"github.com/scott/catz/nsdctl"
	"github.com/scott/catz/reconcile"
	"github.com/scott/catz/storage"
	"github.com/scott/catz/transfer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "build":
		os.Exit(runBuild(os.Args[2:]))
	case "sync":
		os.Exit(runSync(os.Args[2:]))
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: catz <command> [flags]

commands:
  build   generate a catalog zone from a zone list file
  sync    reconcile a nameserver's zone set with catalog zones
`)
}

func runBuild(args []string) int {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	origin := fs.String("origin", "", "Catalog zone name (origin)")
	zonelist := fs.String("zonelist", "zones.txt", "Zone list file (zone[,group] per line)")
	output := fs.String("output", "", "Output zone file (default stdout)")
	serial := fs.Uint("serial", 0, "SOA serial override (default current unix time)")
	fs.Parse(args)

	if *origin == "" {
		log.Print("build: -origin is required")
		return 2
	}

	members, err := readMemberList(*zonelist)
	if err != nil {
		log.Printf("build: %v", err)
		return 1
	}

	builder := &catalog.Builder{Origin: *origin, Serial: uint32(*serial)}
	rrs, err := builder.Build(members)
	if err != nil {
		log.Printf("build: %v", err)
		return 1
	}

	text := catalog.Text(rrs)
	if *output == "" {
		fmt.Print(text)
		return 0
	}
	if err := os.WriteFile(*output, []byte(text), 0644); err != nil {
		log.Printf("build: writing %s: %v", *output, err)
		return 1
	}
	log.Printf("Wrote catalog zone %s with %d members to %s", *origin, len(members), *output)
	return 0
}

// readMemberList reads zone[,group] lines. Blank lines and # comments are
// skipped.
func readMemberList(path string) ([]catalog.Member, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.Comment = '#'
	r.TrimLeadingSpace = true

	var members []catalog.Member
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		m := catalog.Member{Name: strings.TrimSpace(rec[0])}
		if len(rec) > 1 {
			m.Group = strings.TrimSpace(rec[1])
		}
		members = append(members, m)
	}
	return members, nil
}

func runSync(args []string) int {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	configPath := fs.String("config", "/etc/nsd/catz.conf", "Configuration file")
	zonelist := fs.String("zonelist", "", "Nameserver zone list file (overrides config)")
	dryRun := fs.Bool("dry-run", false, "Compute and log the plan without executing commands")
	watch := fs.Bool("watch", false, "Keep running and re-sync when the config file changes")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	run := func() int {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Printf("sync: %v", err)
			return 1
		}
		if err := cfg.Validate(); err != nil {
			log.Printf("sync: %v", err)
			return 1
		}
		if *zonelist != "" {
			cfg.ZoneList = *zonelist
		}
		return syncOnce(cfg, *dryRun, *debug)
	}

	if !*watch {
		return run()
	}

	run()
	if err := watchConfig(*configPath, func() { run() }); err != nil {
		log.Printf("sync: %v", err)
		return 1
	}
	return 0
}

// syncOnce performs one full fetch, decode, diff, apply cycle.
func syncOnce(cfg *config.Config, dryRun, debug bool) int {
	var store *storage.Store
	if cfg.Cache != "" {
		s, err := storage.Open(cfg.Cache)
		if err != nil {
			log.Printf("sync: %v", err)
			return 1
		}
		defer s.Close()
		store = s
	}

	catalogs, err := fetchCatalogs(cfg, store)
	if err != nil {
		log.Printf("sync: %v", err)
		return 1
	}

	var runErrs []error
	decoder := &catalog.Decoder{VerifyLabels: cfg.VerifyLabels}
	table := reconcile.PatternTable{
		Groups:          cfg.GroupPatterns,
		CatalogDefaults: make(map[string]string),
		Default:         cfg.DefaultPattern,
	}

	var desired []reconcile.Member
	for _, fc := range catalogs {
		zone, malformed, err := decoder.Decode(fc.name, fc.records)
		if err != nil {
			// Unsupported or missing schema version fails the whole run:
			// a plan built from a half-understood catalog must never be
			// applied.
			log.Printf("sync: %v", err)
			return 1
		}
		for _, e := range malformed {
			log.Printf("sync: %v", e)
			runErrs = append(runErrs, e)
		}
		if fc.pattern != "" {
			table.CatalogDefaults[zone.Origin] = fc.pattern
		}
		for _, name := range zone.MemberNames() {
			desired = append(desired, reconcile.Member{
				Zone:    name,
				Group:   zone.Members[name].Group,
				Catalog: zone.Origin,
			})
		}
		if debug {
			log.Printf("Catalog %s: %d members (serial %d)", zone.Origin, len(zone.Members), zone.Serial)
		}
	}

	current, err := nsdctl.ReadZoneList(cfg.ZoneList)
	if err != nil {
		log.Printf("sync: %v", err)
		return 1
	}
	observed := make([]reconcile.Observed, 0, len(current))
	for zone, pattern := range current {
		p := pattern
		observed = append(observed, reconcile.Observed{Zone: dns.Fqdn(zone), Pattern: &p})
	}

	plan, skipped, err := reconcile.Compute(desired, observed, table)
	if err != nil {
		log.Printf("sync: %v", err)
		return 1
	}
	for _, e := range skipped {
		log.Printf("sync: %v", e)
		runErrs = append(runErrs, e)
	}

	if plan.Empty() {
		log.Print("No changes")
	}

	var ctrl reconcile.Controller
	if dryRun {
		ctrl = &nsdctl.DryRun{}
	} else {
		ctrl = nsdctl.NewExecController(cfg.ControlCommand)
	}

	report := reconcile.Apply(plan, ctrl)
	for _, res := range report.Results {
		if res.Err != nil {
			log.Printf("sync: %v", res.Err)
			runErrs = append(runErrs, res.Err)
		} else if debug || dryRun {
			log.Printf("%s %s %s: ok", res.Op, res.Zone, res.Pattern)
		}
	}

	log.Printf("Sync complete: %d added, %d updated, %d removed, %d errors",
		len(plan.Add), len(plan.Update), len(plan.Remove), len(runErrs))
	if len(runErrs) > 0 {
		return 1
	}
	return 0
}

// fetchedCatalog is one catalog's raw record set plus its configured
// default pattern.
type fetchedCatalog struct {
	name    string
	pattern string
	records []dns.RR
}

// fetchCatalogs transfers all configured catalog zones, fanning the
// fetches out and joining before the diff stage. A catalog whose cached
// serial is still current is served from the cache; a failed fetch falls
// back to the cache when one exists and is fatal otherwise.
func fetchCatalogs(cfg *config.Config, store *storage.Store) ([]fetchedCatalog, error) {
	client := &transfer.Client{}

	results := make([]fetchedCatalog, len(cfg.CatalogZones))
	errs := make([]error, len(cfg.CatalogZones))

	var wg sync.WaitGroup
	for i, cz := range cfg.CatalogZones {
		wg.Add(1)
		go func(i int, cz config.CatalogZoneConfig) {
			defer wg.Done()
			records, err := fetchOne(client, store, cfg, cz)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = fetchedCatalog{
				name:    catalog.Normalize(cz.Name),
				pattern: cz.Pattern,
				records: records,
			}
		}(i, cz)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func fetchOne(client *transfer.Client, store *storage.Store, cfg *config.Config, cz config.CatalogZoneConfig) ([]dns.RR, error) {
	var key *transfer.TSIG
	if cz.TSIGKey != "" {
		kc, ok := cfg.Key(cz.TSIGKey)
		if !ok {
			return nil, fmt.Errorf("catalog zone %s: unknown key %s", cz.Name, cz.TSIGKey)
		}
		key = &transfer.TSIG{Name: kc.Name, Algorithm: kc.Algorithm, Secret: kc.Secret}
	}

	var cached *storage.CatalogCache
	var cachedRecords []dns.RR
	if store != nil {
		c, records, err := store.GetCatalog(cz.Name)
		if err == nil {
			cached, cachedRecords = c, records
		} else if err != storage.ErrNotFound {
			log.Printf("sync: reading cache for %s: %v", cz.Name, err)
		}
	}

	if cached != nil {
		serial, err := client.Serial(cz.Name, cz.Server, key)
		if err == nil && !transfer.SerialGreater(serial, cached.Serial) {
			log.Printf("Catalog %s not changed (serial %d)", cz.Name, cached.Serial)
			return cachedRecords, nil
		}
	}

	records, err := client.Fetch(cz.Name, cz.Server, key)
	if err != nil {
		if cached != nil {
			log.Printf("sync: %v, using cached copy (serial %d, fetched %s)",
				err, cached.Serial, cached.FetchedAt.Format("2006-01-02 15:04:05"))
			return cachedRecords, nil
		}
		return nil, err
	}

	if store != nil {
		serial := recordSerial(records)
		if err := store.SaveCatalog(cz.Name, serial, records); err != nil {
			log.Printf("sync: caching %s: %v", cz.Name, err)
		}
	}
	return records, nil
}

func recordSerial(records []dns.RR) uint32 {
	for _, rr := range records {
		if soa, ok := rr.(*dns.SOA); ok {
			return soa.Serial
		}
	}
	return 0
}

// watchConfig blocks, re-running sync whenever the config file is written.
func watchConfig(path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}
	log.Printf("Watching %s for changes", path)

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				log.Printf("Config changed, re-syncing")
				onChange()
				// Editors replace the file; re-add to keep watching.
				watcher.Add(path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("sync: watch error: %v", err)
		}
	}
}
