// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package kev

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bonial-oss/vuln-assess/internal/cache"
	"github.com/bonial-oss/vuln-assess/internal/types"
)

const (
	cacheFilename   = "known_exploited_vulnerabilities.json"
	primaryURL      = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"
	fallbackURL     = "https://raw.githubusercontent.com/cisagov/kev-data/main/known_exploited_vulnerabilities.json"
	maxResponseSize = 50 * 1024 * 1024 // 50 MB
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Catalog is the CISA KEV catalog JSON document.
type Catalog struct {
	Title           string  `json:"title"`
	CatalogVersion  string  `json:"catalogVersion"`
	DateReleased    string  `json:"dateReleased"`
	Count           int     `json:"count"`
	Vulnerabilities []Entry `json:"vulnerabilities"`
}

// Entry is a single vulnerability record in the KEV catalog.
type Entry struct {
	CVEID                      string `json:"cveID"`
	VendorProject              string `json:"vendorProject"`
	Product                    string `json:"product"`
	VulnerabilityName          string `json:"vulnerabilityName"`
	DateAdded                  string `json:"dateAdded"`
	ShortDescription           string `json:"shortDescription"`
	RequiredAction             string `json:"requiredAction"`
	DueDate                    string `json:"dueDate"`
	KnownRansomwareCampaignUse string `json:"knownRansomwareCampaignUse"`
	Notes                      string `json:"notes"`
}

// Source provides access to CISA KEV data with caching support.
type Source struct {
	cache *cache.Cache

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewSource creates a new KEV data source with cache stored under cacheDir/kev/.
func NewSource(cacheDir string) *Source {
	return &Source{
		cache:   cache.New(filepath.Join(cacheDir, "kev")),
		entries: make(map[string]Entry),
	}
}

// Load fetches KEV data, using cache when appropriate.
//
// Logic:
//  1. If skipUpdate and cache exists -> load from cache, parse, return.
//  2. If cache is fresh -> load from cache, parse, return.
//  3. Download fresh data.
//  4. If download succeeds -> store in cache, parse, return.
//  5. If download fails and cache exists -> warn, load stale cache, parse, return.
//  6. If download fails and no cache -> return error.
func (s *Source) Load(skipUpdate bool) error {
	if skipUpdate && s.cache.Exists(cacheFilename) {
		return s.loadFromCache()
	}

	if s.cache.IsFresh() {
		return s.loadFromCache()
	}

	data, err := download()
	if err == nil {
		if storeErr := s.cache.Store(cacheFilename, data); storeErr != nil {
			return fmt.Errorf("storing KEV data in cache: %w", storeErr)
		}
		return s.parseJSON(data)
	}

	if s.cache.Exists(cacheFilename) {
		log.Warn().Err(err).Msg("failed to download KEV data, using stale cache")
		return s.loadFromCache()
	}

	return fmt.Errorf("downloading KEV data: %w", err)
}

// Lookup returns the raw KEV entry for the given CVE ID, or nil if not found.
func (s *Source) Lookup(cveID string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[cveID]
	if !ok {
		return nil
	}
	return &entry
}

// FetchKEV reports whether cveID is on the KEV list. A nil result with a
// nil error means the CVE is not listed.
func (s *Source) FetchKEV(_ context.Context, cveID string) (*types.KevInfo, error) {
	entry := s.Lookup(cveID)
	if entry == nil {
		return nil, nil
	}
	return &types.KevInfo{
		IsKEV:              true,
		DateAdded:          entry.DateAdded,
		DueDate:            entry.DueDate,
		RequiredAction:     entry.RequiredAction,
		KnownRansomwareUse: strings.EqualFold(entry.KnownRansomwareCampaignUse, "known"),
	}, nil
}

// Count returns the number of loaded KEV entries.
func (s *Source) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// loadFromCache loads and parses the cached JSON file.
func (s *Source) loadFromCache() error {
	data, err := s.cache.Load(cacheFilename)
	if err != nil {
		return fmt.Errorf("loading KEV data from cache: %w", err)
	}
	return s.parseJSON(data)
}

// download fetches the KEV catalog JSON from the primary URL.
// If the primary URL fails, it falls back to the GitHub mirror.
// If both fail, it returns an error.
func download() ([]byte, error) {
	data, err := downloadFrom(primaryURL)
	if err == nil {
		return data, nil
	}

	data, err2 := downloadFrom(fallbackURL)
	if err2 == nil {
		return data, nil
	}

	return nil, fmt.Errorf("primary (%s): %w; fallback (%s): %v", primaryURL, err, fallbackURL, err2)
}

// downloadFrom downloads the KEV JSON from the given URL.
func downloadFrom(url string) ([]byte, error) {
	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return data, nil
}

// parseJSON unmarshals the KEV catalog JSON and populates the entries map.
func (s *Source) parseJSON(data []byte) error {
	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("unmarshaling KEV catalog: %w", err)
	}

	entries := make(map[string]Entry, len(catalog.Vulnerabilities))
	for _, vuln := range catalog.Vulnerabilities {
		entries[vuln.CVEID] = vuln
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	return nil
}
