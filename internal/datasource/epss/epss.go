// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package epss

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bonial-oss/vuln-assess/internal/cache"
	"github.com/bonial-oss/vuln-assess/internal/types"
)

const (
	cacheFilename       = "epss_scores.csv"
	baseURL             = "https://epss.empiricalsecurity.com"
	maxDecompressedSize = 100 * 1024 * 1024 // 100 MB
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Entry is a single row of the EPSS scores CSV.
type Entry struct {
	CVE        string
	Score      float64
	Percentile float64
}

// Source provides access to EPSS data with caching support.
type Source struct {
	cache *cache.Cache

	mu           sync.RWMutex
	entries      map[string]Entry
	modelVersion string
	scoreDate    string
}

// NewSource creates a new EPSS data source with cache stored under cacheDir/epss/.
func NewSource(cacheDir string) *Source {
	return &Source{
		cache:   cache.New(filepath.Join(cacheDir, "epss")),
		entries: make(map[string]Entry),
	}
}

// Load fetches EPSS data, using cache when appropriate.
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
			return fmt.Errorf("storing EPSS data in cache: %w", storeErr)
		}
		return s.parseCSV(data)
	}

	if s.cache.Exists(cacheFilename) {
		log.Warn().Err(err).Msg("failed to download EPSS data, using stale cache")
		return s.loadFromCache()
	}

	return fmt.Errorf("downloading EPSS data: %w", err)
}

// Lookup returns the EPSS entry for the given CVE ID, or nil if not found.
func (s *Source) Lookup(cveID string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[cveID]
	if !ok {
		return nil
	}
	return &entry
}

// FetchEPSS returns the exploit prediction score for cveID. A nil result
// with a nil error means no score is published for the CVE.
func (s *Source) FetchEPSS(_ context.Context, cveID string) (*types.EpssInfo, error) {
	entry := s.Lookup(cveID)
	if entry == nil {
		return nil, nil
	}
	return &types.EpssInfo{
		Score:      entry.Score,
		Percentile: entry.Percentile,
		Date:       s.ScoreDate(),
	}, nil
}

// ModelVersion returns the model version string from the EPSS CSV header.
func (s *Source) ModelVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelVersion
}

// ScoreDate returns the score date string from the EPSS CSV header.
func (s *Source) ScoreDate() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scoreDate
}

// Count returns the number of loaded EPSS entries.
func (s *Source) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// loadFromCache loads and parses the cached CSV file.
func (s *Source) loadFromCache() error {
	data, err := s.cache.Load(cacheFilename)
	if err != nil {
		return fmt.Errorf("loading EPSS data from cache: %w", err)
	}
	return s.parseCSV(data)
}

// download fetches the gzip-compressed EPSS CSV for today's date.
// If today's file is not available, it falls back to yesterday's date.
func download() ([]byte, error) {
	now := time.Now().UTC()
	today := now.Format("2006-01-02")
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")

	data, err := downloadForDate(today)
	if err == nil {
		return data, nil
	}

	data, err2 := downloadForDate(yesterday)
	if err2 == nil {
		return data, nil
	}

	return nil, fmt.Errorf("today (%s): %w; yesterday (%s): %v", today, err, yesterday, err2)
}

// downloadForDate downloads and decompresses the EPSS CSV for the given date string.
func downloadForDate(date string) ([]byte, error) {
	url := fmt.Sprintf("%s/epss_scores-%s.csv.gz", baseURL, date)

	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(io.LimitReader(gz, maxDecompressedSize))
	if err != nil {
		return nil, fmt.Errorf("reading gzip data: %w", err)
	}

	return data, nil
}

// parseCSV parses the EPSS CSV data and populates the entries map.
// It extracts model_version and score_date from the comment header line.
func (s *Source) parseCSV(data []byte) error {
	entries := make(map[string]Entry)
	var modelVersion, scoreDate string

	lines := strings.Split(string(data), "\n")

	// Process comment lines starting with '#' to extract metadata.
	dataStart := 0
	for i, line := range lines {
		if !strings.HasPrefix(line, "#") {
			dataStart = i
			break
		}
		parseCommentLine(line, &modelVersion, &scoreDate)
	}

	// Parse the remaining CSV data (header + data rows).
	remaining := strings.Join(lines[dataStart:], "\n")
	reader := csv.NewReader(strings.NewReader(remaining))

	// Read and discard the CSV header line.
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			s.replace(entries, modelVersion, scoreDate)
			return nil
		}
		return fmt.Errorf("reading CSV header: %w", err)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading CSV record: %w", err)
		}

		if len(record) < 3 {
			continue
		}

		score, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return fmt.Errorf("parsing EPSS score for %s: %w", record[0], err)
		}

		percentile, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return fmt.Errorf("parsing EPSS percentile for %s: %w", record[0], err)
		}

		entries[record[0]] = Entry{
			CVE:        record[0],
			Score:      score,
			Percentile: percentile,
		}
	}

	s.replace(entries, modelVersion, scoreDate)
	return nil
}

func (s *Source) replace(entries map[string]Entry, modelVersion, scoreDate string) {
	s.mu.Lock()
	s.entries = entries
	s.modelVersion = modelVersion
	s.scoreDate = scoreDate
	s.mu.Unlock()
}

// parseCommentLine extracts metadata from a comment line like:
// #model_version:v2025.03.14,score_date:2026-02-12T00:00:00+0000
func parseCommentLine(line string, modelVersion, scoreDate *string) {
	line = strings.TrimPrefix(line, "#")
	parts := strings.Split(line, ",")
	for _, part := range parts {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		switch key {
		case "model_version":
			*modelVersion = value
		case "score_date":
			*scoreDate = value
		}
	}
}
