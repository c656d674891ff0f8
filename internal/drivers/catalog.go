package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// CatalogClient reads driver directory listings from upstream source trees.
// Each source answers a GitHub contents API style JSON array; every
// directory named indi-* is a driver package.
type CatalogClient struct {
	Sources []string
	HTTP    *http.Client
}

// NewCatalogClient creates a client with a per-request timeout.
func NewCatalogClient(sources []string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{
		Sources: sources,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type listingItem struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Fetch returns the union of driver packages across all sources. A failing
// source is reported only when every source fails.
func (c *CatalogClient) Fetch(ctx context.Context) ([]CatalogEntry, error) {
	if len(c.Sources) == 0 {
		return nil, ErrNoSources
	}

	seen := make(map[string]bool)
	var entries []CatalogEntry
	var errs []string

	for _, src := range c.Sources {
		items, err := c.fetchOne(ctx, src)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		for _, it := range items {
			if it.Type != "" && it.Type != "dir" {
				continue
			}
			if !strings.HasPrefix(it.Name, "indi-") || seen[it.Name] {
				continue
			}
			seen[it.Name] = true
			entries = append(entries, CatalogEntry{Name: it.Name, Source: src})
		}
	}

	if len(errs) == len(c.Sources) {
		return nil, fmt.Errorf("all catalog sources failed: %s", strings.Join(errs, "; "))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (c *CatalogClient) fetchOne(ctx context.Context, url string) ([]listingItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "astrogod")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	var items []listingItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return items, nil
}
