// Package drivers locates INDI driver executables on disk, installs driver
// packages through the OS package manager and keeps track of which drivers
// are currently supervised.
package drivers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sigreer/astrogod/internal/cache"
	"github.com/sigreer/astrogod/internal/logger"
	"github.com/sigreer/astrogod/internal/system"
)

const catalogKey = "catalog:drivers"

// Catalog lists the driver packages published upstream.
type Catalog interface {
	Fetch(ctx context.Context) ([]CatalogEntry, error)
}

// Options configures a Resolver.
type Options struct {
	SearchPaths    []string
	PackageManager string
	UseSudo        bool
	CatalogTTL     time.Duration
}

// Resolver is the driver directory: search paths, installs, running set and
// the cached upstream catalog.
type Resolver struct {
	searchPaths    []string
	packageManager string
	useSudo        bool

	runner  system.Runner
	catalog Catalog
	cache   *cache.Cache[[]string]
	log     zerolog.Logger

	mu       sync.RWMutex
	running  map[string]bool
	fallback func() []string
	ttl      time.Duration
}

// New creates a resolver. catalog may be nil, in which case only the
// fallback source is consulted for available drivers.
func New(opts Options, runner system.Runner, catalog Catalog, c *cache.Cache[[]string], log zerolog.Logger) *Resolver {
	if c == nil {
		c = cache.New[[]string]()
	}
	pm := opts.PackageManager
	if pm == "" {
		pm = "apt-get"
	}
	return &Resolver{
		searchPaths:    append([]string(nil), opts.SearchPaths...),
		packageManager: pm,
		useSudo:        opts.UseSudo,
		runner:         runner,
		catalog:        catalog,
		cache:          c,
		log:            logger.WithComponent(log, "drivers"),
		running:        make(map[string]bool),
		ttl:            opts.CatalogTTL,
	}
}

// SetFallback installs the source of driver names used when the upstream
// catalog cannot be reached (normally the knowledge base).
func (r *Resolver) SetFallback(f func() []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = f
}

// candidates expands a driver identifier into executable names to try.
// "indi-asi" may be installed as indi-asi, indi_asi or indi_asi_ccd.
func candidates(name string) (exact []string, prefix string) {
	under := strings.ReplaceAll(name, "-", "_")
	exact = []string{name}
	if under != name {
		exact = append(exact, under)
	}
	return exact, under + "_"
}

// Resolve returns the absolute path of the driver executable, searching the
// configured directories in order.
func (r *Resolver) Resolve(name string) (string, error) {
	if name == "" {
		return "", ErrDriverNotFound
	}
	if filepath.IsAbs(name) {
		if isExecutable(name) {
			return name, nil
		}
		return "", fmt.Errorf("%s: %w", name, ErrDriverNotFound)
	}

	exact, prefix := candidates(name)

	for _, dir := range r.searchPaths {
		for _, c := range exact {
			p := filepath.Join(dir, c)
			if isExecutable(p) {
				return p, nil
			}
		}
	}

	// Packages ship per-kind binaries (indi_asi_ccd, indi_asi_wheel)
	for _, dir := range r.searchPaths {
		matches, _ := filepath.Glob(filepath.Join(dir, prefix+"*"))
		sort.Strings(matches)
		for _, m := range matches {
			if isExecutable(m) {
				return m, nil
			}
		}
	}

	return "", fmt.Errorf("%s: %w", name, ErrDriverNotFound)
}

// IsInstalled reports whether Resolve would succeed.
func (r *Resolver) IsInstalled(name string) bool {
	_, err := r.Resolve(name)
	return err == nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}

// ListInstalled returns the names of indi_* driver executables found in the
// search paths.
func (r *Resolver) ListInstalled() []string {
	seen := make(map[string]bool)
	var names []string

	for _, dir := range r.searchPaths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if !strings.HasPrefix(name, "indi_") || nonDriverTools[name] || seen[name] {
				continue
			}
			if !isExecutable(filepath.Join(dir, name)) {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names
}

// Install updates the package index and installs pkg. It blocks until the
// package manager exits.
func (r *Resolver) Install(ctx context.Context, pkg string) error {
	if pkg == "" {
		return fmt.Errorf("%w: empty package name", ErrInstallFailed)
	}

	log := r.log.With().Str("package", pkg).Logger()
	log.Info().Msg("installing driver package")

	if _, err := r.pm(ctx, "update"); err != nil {
		// A stale index is not fatal; the install may still succeed
		log.Warn().Err(err).Msg("package index update failed")
	}

	if _, err := r.pm(ctx, "install", "-y", pkg); err != nil {
		log.Error().Err(err).Msg("install failed")
		return fmt.Errorf("%w: %s: %w", ErrInstallFailed, pkg, err)
	}

	log.Info().Msg("driver package installed")
	return nil
}

func (r *Resolver) pm(ctx context.Context, args ...string) ([]byte, error) {
	if r.useSudo {
		return r.runner.Run(ctx, "sudo", append([]string{"-n", r.packageManager}, args...)...)
	}
	return r.runner.Run(ctx, r.packageManager, args...)
}

// key is the identity a driver is tracked under: its executable path when
// it resolves, otherwise the name as given. "indi-asi" and "indi_asi_ccd"
// share a key when they resolve to the same binary.
func (r *Resolver) key(name string) string {
	if p, err := r.Resolve(name); err == nil {
		return p
	}
	return name
}

func (r *Resolver) keys(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, r.key(n))
	}
	return out
}

// MarkRunning records drivers, by name or executable path, as supervised.
func (r *Resolver) MarkRunning(names ...string) {
	keys := r.keys(names)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		r.running[k] = true
	}
}

// MarkStopped removes drivers from the supervised set.
func (r *Resolver) MarkStopped(names ...string) {
	keys := r.keys(names)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.running, k)
	}
}

// SetRunning replaces the supervised set.
func (r *Resolver) SetRunning(names []string) {
	keys := r.keys(names)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = make(map[string]bool, len(keys))
	for _, k := range keys {
		r.running[k] = true
	}
}

// IsRunning reports whether name, or any name for the same executable, is
// currently supervised.
func (r *Resolver) IsRunning(name string) bool {
	k := r.key(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running[k]
}

// ListRunning returns the executable names of the supervised drivers, sorted.
func (r *Resolver) ListRunning() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.running))
	for k := range r.running {
		names = append(names, filepath.Base(k))
	}
	sort.Strings(names)
	return names
}

// RefreshCatalog drops the cached upstream listing so the next
// ListAvailable fetches it again.
func (r *Resolver) RefreshCatalog() {
	r.cache.Delete(catalogKey)
}

// ListAvailable returns the driver packages known upstream. The list is
// cached; when the catalog cannot be reached a stale list is reused, then the
// fallback source.
func (r *Resolver) ListAvailable(ctx context.Context) []string {
	if names, ok := r.cache.Get(catalogKey); ok {
		return names
	}

	var names []string
	var err error
	if r.catalog != nil {
		var entries []CatalogEntry
		entries, err = r.catalog.Fetch(ctx)
		if err == nil {
			names = make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name)
			}
		}
	} else {
		err = ErrNoSources
	}

	if err != nil {
		if stale, ok := r.cache.GetEntry(catalogKey); ok {
			r.log.Debug().Err(err).Msg("catalog unavailable, using stale listing")
			return stale.Value
		}
		if !errors.Is(err, ErrNoSources) {
			r.log.Warn().Err(err).Msg("driver catalog unavailable")
		}
		r.mu.RLock()
		fb := r.fallback
		r.mu.RUnlock()
		if fb == nil {
			return nil
		}
		// Fallback results are not cached so the catalog is retried next call
		return fb()
	}

	r.cache.Set(catalogKey, names, r.catalogTTL())
	return names
}

func (r *Resolver) catalogTTL() time.Duration {
	if r.ttl > 0 {
		return r.ttl
	}
	return cache.TTLCatalog
}

// IsAvailable reports whether name (or its package) is published upstream.
func (r *Resolver) IsAvailable(ctx context.Context, name string) bool {
	if name == "" {
		return false
	}
	under := strings.ReplaceAll(name, "_", "-")
	for _, n := range r.ListAvailable(ctx) {
		if n == name || n == under || strings.HasPrefix(under, n+"-") {
			return true
		}
	}
	return false
}

// Status classifies a driver: running > installed > found > not-found.
func (r *Resolver) Status(ctx context.Context, name string) Status {
	switch {
	case name == "":
		return StatusNotFound
	case r.IsRunning(name):
		return StatusRunning
	case r.IsInstalled(name):
		return StatusInstalled
	case r.IsAvailable(ctx, name):
		return StatusFound
	default:
		return StatusNotFound
	}
}
