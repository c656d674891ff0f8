// Package knowledge maps USB vendor/product ids and free-text names to
// equipment descriptors. The database is the static table merged with the
// upstream driver catalogs and is persisted as JSON between runs.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/utils/clock"

	"github.com/sigreer/astrogod/internal/cache"
	"github.com/sigreer/astrogod/internal/drivers"
	"github.com/sigreer/astrogod/internal/logger"
)

// Catalog lists driver packages published upstream.
type Catalog interface {
	Fetch(ctx context.Context) ([]drivers.CatalogEntry, error)
}

type Options struct {
	CachePath string
	TTL       time.Duration
}

// Base is the equipment knowledge base.
type Base struct {
	opts    Options
	catalog Catalog
	clock   clock.PassiveClock
	log     zerolog.Logger

	mu          sync.RWMutex
	byID        map[string]Entry
	byName      []Entry
	lastUpdated time.Time
	source      string
}

// New returns a knowledge base holding only the static table. Call Init to
// load the cache and refresh.
func New(opts Options, catalog Catalog, clk clock.PassiveClock, log zerolog.Logger) *Base {
	if opts.TTL <= 0 {
		opts.TTL = cache.TTLKnowledgeBase
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	b := &Base{
		opts:    opts,
		catalog: catalog,
		clock:   clk,
		log:     logger.WithComponent(log, "knowledge"),
		source:  SourceStatic,
	}
	b.byID = cloneStatic()
	return b
}

func cloneStatic() map[string]Entry {
	m := make(map[string]Entry, len(staticEntries))
	for k, v := range staticEntries {
		m[k] = v
	}
	return m
}

// Init loads the local cache and refreshes from the catalogs when the cache
// is missing or older than the TTL. Catalog failures never fail Init.
func (b *Base) Init(ctx context.Context) error {
	if err := b.load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			b.log.Warn().Err(err).Str("path", b.opts.CachePath).Msg("ignoring unreadable knowledge base cache")
		}
	} else if !b.stale() {
		b.log.Info().Time("last_updated", b.LastUpdated()).Int("entries", b.Len()).Msg("knowledge base loaded from cache")
		return nil
	}
	return b.update(ctx)
}

// ForceUpdate refreshes from the catalogs regardless of the TTL.
func (b *Base) ForceUpdate(ctx context.Context) error {
	return b.update(ctx)
}

func (b *Base) stale() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdated.IsZero() || b.clock.Since(b.lastUpdated) > b.opts.TTL
}

func (b *Base) load() error {
	if b.opts.CachePath == "" {
		return os.ErrNotExist
	}
	data, err := os.ReadFile(b.opts.CachePath)
	if err != nil {
		return err
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse %s: %w", b.opts.CachePath, err)
	}

	// Static entries are always present, cached ones override them
	merged := cloneStatic()
	for k, v := range cf.Entries {
		merged[normalizeKey(k)] = v
	}

	b.mu.Lock()
	b.byID = merged
	b.byName = cf.Drivers
	b.lastUpdated = cf.LastUpdated
	b.source = SourceCache
	b.mu.Unlock()
	return nil
}

func (b *Base) update(ctx context.Context) error {
	merged := cloneStatic()
	source := SourceStatic

	var aux []Entry
	if b.catalog != nil {
		entries, err := b.catalog.Fetch(ctx)
		if err != nil {
			b.mu.RLock()
			aux = b.byName
			if len(aux) > 0 {
				source = b.source
			}
			b.mu.RUnlock()
			b.log.Warn().Err(err).Int("drivers", len(aux)).Msg("driver catalogs unavailable, keeping previous driver list")
		} else {
			aux = catalogEntries(entries, merged)
			source = SourceRemote
		}
	}

	now := b.clock.Now()
	b.mu.Lock()
	b.byID = merged
	b.byName = aux
	b.lastUpdated = now
	b.source = source
	b.mu.Unlock()

	b.log.Info().Str("source", source).Int("entries", len(merged)).Int("drivers", len(aux)).Msg("knowledge base updated")

	if err := b.save(); err != nil {
		b.log.Warn().Err(err).Str("path", b.opts.CachePath).Msg("failed to persist knowledge base")
	}
	return nil
}

// catalogEntries turns catalog packages into name-only aux entries, skipping
// packages the id table already describes.
func catalogEntries(entries []drivers.CatalogEntry, known map[string]Entry) []Entry {
	covered := make(map[string]bool)
	for _, e := range known {
		covered[e.Package()] = true
	}

	var out []Entry
	seen := make(map[string]bool)
	for _, c := range entries {
		if c.Name == "" || covered[c.Name] || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, Entry{
			Type:        TypeAux,
			Model:       c.Name,
			DriverName:  c.Name,
			PackageName: c.Name,
			Category:    c.Source,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverName < out[j].DriverName })
	return out
}

func (b *Base) save() error {
	if b.opts.CachePath == "" {
		return nil
	}

	b.mu.RLock()
	cf := cacheFile{LastUpdated: b.lastUpdated, Entries: b.byID, Drivers: b.byName}
	data, err := json.MarshalIndent(cf, "", "  ")
	b.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(b.opts.CachePath), 0755); err != nil {
		return err
	}
	tmp := b.opts.CachePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, b.opts.CachePath)
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// Lookup finds the entry for a vendor/product pair: exact match first, then
// the vendor wildcard.
func (b *Base) Lookup(vendorID, productID string) (Entry, bool) {
	vid := normalizeKey(vendorID)
	pid := normalizeKey(productID)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if e, ok := b.byID[vid+":"+pid]; ok {
		return e, true
	}
	if e, ok := b.byID[vid+":*"]; ok {
		return e, true
	}
	return Entry{}, false
}

// LookupByName finds the first entry whose model, alias or driver name occurs
// in name. Exact-id entries are searched before wildcards, then catalog
// drivers.
func (b *Base) LookupByName(name string) (Entry, bool) {
	query := squash(name)
	if len(query) < 3 {
		return Entry{}, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.byID))
	for k := range b.byID {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		wi, wj := strings.HasSuffix(keys[i], ":*"), strings.HasSuffix(keys[j], ":*")
		if wi != wj {
			return !wi
		}
		return keys[i] < keys[j]
	})

	for _, k := range keys {
		if matchesName(b.byID[k], query) {
			return b.byID[k], true
		}
	}
	for _, e := range b.byName {
		if matchesName(e, query) {
			return e, true
		}
	}
	return Entry{}, false
}

func matchesName(e Entry, query string) bool {
	candidates := append([]string{e.Model, e.DriverName}, e.Aliases...)
	for _, c := range candidates {
		s := squash(c)
		if len(s) >= 3 && strings.Contains(query, s) {
			return true
		}
	}
	return false
}

// squash lowercases and drops separators so "ASI294MC Pro" and
// "asi294mc-pro" compare equal.
func squash(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '-', '_', '.', '/':
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// KnownDrivers returns every driver name the database references, sorted.
func (b *Base) KnownDrivers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, e := range b.byID {
		add(e.DriverName)
		add(e.Package())
	}
	for _, e := range b.byName {
		add(e.DriverName)
	}
	sort.Strings(out)
	return out
}

// Entries returns a copy of the id-keyed table.
func (b *Base) Entries() map[string]Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]Entry, len(b.byID))
	for k, v := range b.byID {
		out[k] = v
	}
	return out
}

func (b *Base) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID) + len(b.byName)
}

func (b *Base) LastUpdated() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdated
}

// Stats counts entries by type and manufacturer.
func (b *Base) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := Stats{
		ByID:           len(b.byID),
		ByName:         len(b.byName),
		ByType:         make(map[Type]int),
		ByManufacturer: make(map[string]int),
		LastUpdated:    b.lastUpdated,
		Source:         b.source,
	}
	count := func(e Entry) {
		st.ByType[e.Type]++
		m := e.Manufacturer
		if m == "" {
			m = "Unknown"
		}
		st.ByManufacturer[m]++
	}
	for _, e := range b.byID {
		count(e)
	}
	for _, e := range b.byName {
		count(e)
	}
	st.Total = st.ByID + st.ByName
	return st
}
