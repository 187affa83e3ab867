// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"sort"
	"time"

	"github.com/bonial-oss/vuln-assess/internal/cvss"
)

// ScannerVersion tags scan results with the producing scanner build.
const ScannerVersion = "vuln-assess 1.0.0"

// ScanStatus is the lifecycle state of a scan.
type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

// ScanResult is a single vulnerability detection event. Results are created
// once per detection and are immutable afterwards.
type ScanResult struct {
	CVEID       string `json:"cve_id"`
	Host        string `json:"host"`
	Port        uint16 `json:"port"`
	PluginOID   string `json:"plugin_oid"`
	Description string `json:"description"`

	VulnerabilityScore *VulnerabilityScore `json:"vulnerability_score,omitempty"`

	RemediationGuidance string `json:"remediation_guidance,omitempty"`

	DetectionTime  int64  `json:"detection_time"` // Unix seconds
	ScannerVersion string `json:"scanner_version"`
}

// NewScanResult creates a detection stamped with the current time.
func NewScanResult(cveID, host string, port uint16, pluginOID, description string) ScanResult {
	return ScanResult{
		CVEID:          cveID,
		Host:           host,
		Port:           port,
		PluginOID:      pluginOID,
		Description:    description,
		DetectionTime:  time.Now().Unix(),
		ScannerVersion: ScannerVersion,
	}
}

// CVSSBaseScore returns the attached CVSS base score, or false when the
// result was never assessed.
func (r *ScanResult) CVSSBaseScore() (float64, bool) {
	if r.VulnerabilityScore == nil {
		return 0, false
	}
	return r.VulnerabilityScore.CVSSBaseScore(), true
}

// IsKEV reports whether the detection is for a KEV-listed CVE.
func (r *ScanResult) IsKEV() bool {
	return r.VulnerabilityScore != nil && r.VulnerabilityScore.IsKEV()
}

// RiskScore returns the composite risk score of the attached assessment,
// or 0 when the result was never assessed.
func (r *ScanResult) RiskScore() float64 {
	if r.VulnerabilityScore == nil {
		return 0
	}
	return r.VulnerabilityScore.CompositeRiskScore()
}

// ScanReport aggregates the results of one scan. Severity and KEV counters
// are maintained incrementally by AddResult, so they always equal the counts
// over Results regardless of insertion order.
type ScanReport struct {
	ScanID    string     `json:"scan_id"`
	Target    string     `json:"target"`
	StartTime int64      `json:"start_time"` // Unix seconds
	EndTime   *int64     `json:"end_time,omitempty"`
	Status    ScanStatus `json:"status"`

	Results              []ScanResult `json:"scan_results"`
	TotalVulnerabilities int          `json:"total_vulnerabilities"`
	CriticalCount        int          `json:"critical_count"`
	HighCount            int          `json:"high_count"`
	MediumCount          int          `json:"medium_count"`
	LowCount             int          `json:"low_count"`
	KEVCount             int          `json:"kev_count"`

	TotalHosts      int `json:"total_hosts"`
	AIEnhancedCount int `json:"ai_enhanced_count"`
}

// ScanMetadata is the durable summary of a scan: the report without its
// result rows. Results are stored separately, keyed per detection.
type ScanMetadata struct {
	ScanID    string     `json:"scan_id"`
	Target    string     `json:"target"`
	StartTime int64      `json:"start_time"` // Unix seconds
	EndTime   *int64     `json:"end_time,omitempty"`
	Status    ScanStatus `json:"status"`

	TotalVulnerabilities int `json:"total_vulnerabilities"`
	CriticalCount        int `json:"critical_count"`
	HighCount            int `json:"high_count"`
	MediumCount          int `json:"medium_count"`
	LowCount             int `json:"low_count"`
	KEVCount             int `json:"kev_count"`

	TotalHosts      int `json:"total_hosts"`
	AIEnhancedCount int `json:"ai_enhanced_count"`
}

// Metadata extracts the durable summary of the report.
func (r *ScanReport) Metadata() ScanMetadata {
	return ScanMetadata{
		ScanID:               r.ScanID,
		Target:               r.Target,
		StartTime:            r.StartTime,
		EndTime:              r.EndTime,
		Status:               r.Status,
		TotalVulnerabilities: r.TotalVulnerabilities,
		CriticalCount:        r.CriticalCount,
		HighCount:            r.HighCount,
		MediumCount:          r.MediumCount,
		LowCount:             r.LowCount,
		KEVCount:             r.KEVCount,
		TotalHosts:           r.TotalHosts,
		AIEnhancedCount:      r.AIEnhancedCount,
	}
}

// NewScanReport creates a running report for the given scan.
func NewScanReport(scanID, target string) *ScanReport {
	return &ScanReport{
		ScanID:    scanID,
		Target:    target,
		StartTime: time.Now().Unix(),
		Status:    ScanRunning,
	}
}

// AddResult appends a detection and updates the running counters.
func (r *ScanReport) AddResult(result ScanResult) {
	if result.VulnerabilityScore != nil {
		switch result.VulnerabilityScore.Severity() {
		case cvss.SeverityCritical:
			r.CriticalCount++
		case cvss.SeverityHigh:
			r.HighCount++
		case cvss.SeverityMedium:
			r.MediumCount++
		case cvss.SeverityLow:
			r.LowCount++
		}
	}

	if result.IsKEV() {
		r.KEVCount++
	}
	if result.RemediationGuidance != "" {
		r.AIEnhancedCount++
	}

	r.TotalVulnerabilities++
	r.Results = append(r.Results, result)
}

// Complete marks the scan as finished and records the end time.
func (r *ScanReport) Complete() {
	now := time.Now().Unix()
	r.EndTime = &now
	r.Status = ScanCompleted
}

// Fail marks the scan as failed and records the end time.
func (r *ScanReport) Fail() {
	now := time.Now().Unix()
	r.EndTime = &now
	r.Status = ScanFailed
}

// Duration returns the scan duration, or false while the scan is running.
func (r *ScanReport) Duration() (time.Duration, bool) {
	if r.EndTime == nil {
		return 0, false
	}
	return time.Duration(*r.EndTime-r.StartTime) * time.Second, true
}

// TopVulnerabilities returns up to n results ordered by descending composite
// risk score.
func (r *ScanReport) TopVulnerabilities(n int) []ScanResult {
	results := make([]ScanResult, len(r.Results))
	copy(results, r.Results)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RiskScore() > results[j].RiskScore()
	})
	if n < len(results) {
		results = results[:n]
	}
	return results
}

// KEVResults returns only the detections for KEV-listed CVEs.
func (r *ScanReport) KEVResults() []ScanResult {
	var kev []ScanResult
	for i := range r.Results {
		if r.Results[i].IsKEV() {
			kev = append(kev, r.Results[i])
		}
	}
	return kev
}
