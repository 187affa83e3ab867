// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package types holds the vulnerability assessment data model shared by the
// assessor, the scan bridge and the archive.
package types

import (
	"math"

	"github.com/bonial-oss/vuln-assess/internal/cvss"
)

// KevInfo holds CISA Known Exploited Vulnerabilities catalog data for a CVE.
type KevInfo struct {
	IsKEV              bool   `json:"is_kev"`
	DateAdded          string `json:"date_added,omitempty"`
	DueDate            string `json:"due_date,omitempty"`
	RequiredAction     string `json:"required_action,omitempty"`
	KnownRansomwareUse bool   `json:"known_ransomware_use"`
}

// EpssInfo holds Exploit Prediction Scoring System data for a CVE.
// Score and Percentile are both in [0.0, 1.0].
type EpssInfo struct {
	Score      float64 `json:"score"`
	Percentile float64 `json:"percentile"`
	Date       string  `json:"date"`
}

// Advisory is the descriptive vulnerability data returned by an NVD-style
// enrichment source.
type Advisory struct {
	Name         string   `json:"name,omitempty"`
	Description  string   `json:"description,omitempty"`
	CVSSVector   string   `json:"cvss_vector,omitempty"`
	CWEIDs       []string `json:"cwe_ids,omitempty"`
	References   []string `json:"references,omitempty"`
	Published    string   `json:"published,omitempty"`
	LastModified string   `json:"last_modified,omitempty"`
}

// VulnerabilityScore aggregates all scoring data for a single CVE. A score
// starts out holding only the CVE ID and is progressively enriched by the
// assessor's pipeline steps; callers always receive value copies.
type VulnerabilityScore struct {
	CVEID       string `json:"cve_id"`
	Name        string `json:"vulnerability_name,omitempty"`
	Description string `json:"description,omitempty"`

	CVSSV3 *cvss.CVSSV3 `json:"cvss_v3,omitempty"`
	KEV    *KevInfo     `json:"kev,omitempty"`
	EPSS   *EpssInfo    `json:"epss,omitempty"`

	CWEIDs        []string `json:"cwe_ids,omitempty"`
	References    []string `json:"references,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	LastModified  string   `json:"last_modified,omitempty"`

	AIRiskScore          *float64 `json:"ai_risk_score,omitempty"`
	AIPriority           string   `json:"ai_priority,omitempty"`
	AIRemediationUrgency string   `json:"ai_remediation_urgency,omitempty"`
}

// NewVulnerabilityScore creates an empty score for the given CVE ID.
func NewVulnerabilityScore(cveID string) *VulnerabilityScore {
	return &VulnerabilityScore{CVEID: cveID}
}

// Clone returns a deep copy. Cached scores are handed out as clones so
// callers never share mutable state with a cache.
func (v *VulnerabilityScore) Clone() VulnerabilityScore {
	clone := *v
	if v.CVSSV3 != nil {
		c := *v.CVSSV3
		clone.CVSSV3 = &c
	}
	if v.KEV != nil {
		k := *v.KEV
		clone.KEV = &k
	}
	if v.EPSS != nil {
		e := *v.EPSS
		clone.EPSS = &e
	}
	if v.AIRiskScore != nil {
		r := *v.AIRiskScore
		clone.AIRiskScore = &r
	}
	clone.CWEIDs = append([]string(nil), v.CWEIDs...)
	clone.References = append([]string(nil), v.References...)
	return clone
}

// CVSSBaseScore returns the CVSS v3 base score, or 0 when no CVSS data is
// present.
func (v *VulnerabilityScore) CVSSBaseScore() float64 {
	if v.CVSSV3 == nil {
		return 0
	}
	return v.CVSSV3.BaseScore
}

// Severity returns the CVSS severity rating, or SeverityNone when no CVSS
// data is present.
func (v *VulnerabilityScore) Severity() cvss.Severity {
	if v.CVSSV3 == nil {
		return cvss.SeverityNone
	}
	return v.CVSSV3.Severity
}

// IsKEV reports whether the CVE is listed in the KEV catalog.
func (v *VulnerabilityScore) IsKEV() bool {
	return v.KEV != nil && v.KEV.IsKEV
}

// CompositeRiskScore blends CVSS, EPSS, KEV and the AI risk score into a
// single value in [0.0, 1.0].
//
// The blend order is load-bearing: the KEV multiplier applies before the AI
// blend, so the steps do not commute. Changing the order changes rankings
// for every KEV-listed CVE.
func (v *VulnerabilityScore) CompositeRiskScore() float64 {
	score := v.CVSSBaseScore() / 10.0

	if v.EPSS != nil {
		score = score*0.6 + v.EPSS.Score*0.4
	}

	if v.IsKEV() {
		score *= 1.5
	}

	if v.AIRiskScore != nil {
		score = score*0.7 + (*v.AIRiskScore/10.0)*0.3
	}

	return math.Max(0.0, math.Min(1.0, score))
}
