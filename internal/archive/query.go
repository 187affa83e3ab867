// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bonial-oss/vuln-assess/internal/types"
)

// SortField selects the vulnerability sort key.
type SortField string

const (
	SortByCVEID     SortField = "cve_id"
	SortBySeverity  SortField = "severity"
	SortByCVSSScore SortField = "cvss_score"
	SortByCachedAt  SortField = "cached_at"
)

// SortOrder selects the sort direction. Descending is the default.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// QueryFilters narrows the vulnerability set. All set fields must match
// (conjunctive); the zero value matches everything.
type QueryFilters struct {
	// Severity matches as a case-insensitive substring of the severity label.
	Severity string
	IsKEV    *bool
	MinCVSS  *float64
	MaxCVSS  *float64
	// CachedAfter/CachedBefore bound the archive timestamp, inclusive.
	CachedAfter  *time.Time
	CachedBefore *time.Time
}

// Matches reports whether the stored record passes every set filter.
func (f QueryFilters) Matches(v StoredVulnerability) bool {
	if f.Severity != "" &&
		!strings.Contains(strings.ToLower(v.Score.Severity().String()), strings.ToLower(f.Severity)) {
		return false
	}
	if f.IsKEV != nil && v.Score.IsKEV() != *f.IsKEV {
		return false
	}
	if f.MinCVSS != nil && v.Score.CVSSBaseScore() < *f.MinCVSS {
		return false
	}
	if f.MaxCVSS != nil && v.Score.CVSSBaseScore() > *f.MaxCVSS {
		return false
	}
	if f.CachedAfter != nil && v.CachedAt.Before(*f.CachedAfter) {
		return false
	}
	if f.CachedBefore != nil && v.CachedAt.After(*f.CachedBefore) {
		return false
	}
	return true
}

// ScanFilters narrows the scan set, conjunctively like QueryFilters.
type ScanFilters struct {
	// Target matches as a case-insensitive substring.
	Target string
	// Status matches case-insensitively against the lifecycle state.
	Status string
	// MinVulnerabilities drops scans with fewer total findings.
	MinVulnerabilities *int
	// StartedAfter/StartedBefore bound the start time, inclusive (Unix seconds).
	StartedAfter  *int64
	StartedBefore *int64
}

// Matches reports whether the scan passes every set filter.
func (f ScanFilters) Matches(m types.ScanMetadata) bool {
	if f.Target != "" && !strings.Contains(strings.ToLower(m.Target), strings.ToLower(f.Target)) {
		return false
	}
	if f.Status != "" && !strings.EqualFold(string(m.Status), f.Status) {
		return false
	}
	if f.MinVulnerabilities != nil && m.TotalVulnerabilities < *f.MinVulnerabilities {
		return false
	}
	if f.StartedAfter != nil && m.StartTime < *f.StartedAfter {
		return false
	}
	if f.StartedBefore != nil && m.StartTime > *f.StartedBefore {
		return false
	}
	return true
}

// Pagination is an offset+limit window applied after sorting. A zero or
// negative Limit means no limit.
type Pagination struct {
	Offset int
	Limit  int
}

func (p Pagination) slice(n int) (int, int) {
	start := p.Offset
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end := n
	if p.Limit > 0 && start+p.Limit < n {
		end = start + p.Limit
	}
	return start, end
}

// Query runs filtered reads over a full archive snapshot. It is cheap to
// construct; every call re-reads the archive.
type Query struct {
	archive *Archive
}

// NewQuery wraps an archive for querying.
func NewQuery(a *Archive) *Query {
	return &Query{archive: a}
}

// Vulnerabilities returns the filtered, sorted, paginated vulnerability
// snapshot. Sorting happens before pagination.
func (q *Query) Vulnerabilities(filters QueryFilters, field SortField, order SortOrder, page Pagination) ([]StoredVulnerability, error) {
	all, err := q.archive.ListVulnerabilities()
	if err != nil {
		return nil, err
	}

	filtered := all[:0:0]
	for _, v := range all {
		if filters.Matches(v) {
			filtered = append(filtered, v)
		}
	}

	sortVulnerabilities(filtered, field, order)

	start, end := page.slice(len(filtered))
	return filtered[start:end], nil
}

// CountVulnerabilities returns the number of records passing the filters,
// ignoring pagination.
func (q *Query) CountVulnerabilities(filters QueryFilters) (int, error) {
	all, err := q.archive.ListVulnerabilities()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, v := range all {
		if filters.Matches(v) {
			count++
		}
	}
	return count, nil
}

// Scans returns the filtered, paginated scan list, newest first.
func (q *Query) Scans(filters ScanFilters, page Pagination) ([]types.ScanMetadata, error) {
	all, err := q.archive.ListScans()
	if err != nil {
		return nil, err
	}

	filtered := all[:0:0]
	for _, m := range all {
		if filters.Matches(m) {
			filtered = append(filtered, m)
		}
	}

	start, end := page.slice(len(filtered))
	return filtered[start:end], nil
}

// CountScans returns the number of scans passing the filters, ignoring
// pagination.
func (q *Query) CountScans(filters ScanFilters) (int, error) {
	all, err := q.archive.ListScans()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range all {
		if filters.Matches(m) {
			count++
		}
	}
	return count, nil
}

// ExportJSON renders the filtered vulnerability set as pretty-printed JSON.
func (q *Query) ExportJSON(filters QueryFilters, field SortField, order SortOrder) (string, error) {
	results, err := q.Vulnerabilities(filters, field, order, Pagination{})
	if err != nil {
		return "", err
	}
	if results == nil {
		results = []StoredVulnerability{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return "", fmt.Errorf("encoding export: %w", err)
	}
	return buf.String(), nil
}

// ExportCSV renders the filtered vulnerability set as CSV with a fixed
// header row and RFC3339 timestamps.
func (q *Query) ExportCSV(filters QueryFilters, field SortField, order SortOrder) (string, error) {
	results, err := q.Vulnerabilities(filters, field, order, Pagination{})
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"CVE ID", "Severity", "CVSS Score", "Is KEV", "Cached At"}); err != nil {
		return "", fmt.Errorf("writing CSV header: %w", err)
	}
	for _, v := range results {
		record := []string{
			v.CVEID,
			v.Score.Severity().String(),
			fmt.Sprintf("%v", v.Score.CVSSBaseScore()),
			fmt.Sprintf("%v", v.Score.IsKEV()),
			v.CachedAt.Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("writing CSV record for %s: %w", v.CVEID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flushing CSV: %w", err)
	}
	return buf.String(), nil
}

func sortVulnerabilities(vulns []StoredVulnerability, field SortField, order SortOrder) {
	if field == "" {
		field = SortByCachedAt
	}
	asc := order == SortAscending

	sort.SliceStable(vulns, func(i, j int) bool {
		var less bool
		switch field {
		case SortByCVEID:
			less = vulns[i].CVEID < vulns[j].CVEID
		case SortBySeverity:
			less = vulns[i].Score.Severity() < vulns[j].Score.Severity()
		case SortByCVSSScore:
			less = vulns[i].Score.CVSSBaseScore() < vulns[j].Score.CVSSBaseScore()
		default:
			less = vulns[i].CachedAt.Before(vulns[j].CachedAt)
		}
		if asc {
			return less
		}
		return !less && !equalOn(vulns[i], vulns[j], field)
	})
}

// equalOn keeps the descending comparator irreflexive for equal keys.
func equalOn(a, b StoredVulnerability, field SortField) bool {
	switch field {
	case SortByCVEID:
		return a.CVEID == b.CVEID
	case SortBySeverity:
		return a.Score.Severity() == b.Score.Severity()
	case SortByCVSSScore:
		return a.Score.CVSSBaseScore() == b.Score.CVSSBaseScore()
	default:
		return a.CachedAt.Equal(b.CachedAt)
	}
}
