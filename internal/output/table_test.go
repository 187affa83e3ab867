// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonial-oss/vuln-assess/internal/archive"
	"github.com/bonial-oss/vuln-assess/internal/cvss"
	"github.com/bonial-oss/vuln-assess/internal/types"
)

func storedVuln(t *testing.T, cveID, vector string, isKEV bool) archive.StoredVulnerability {
	t.Helper()
	c, err := cvss.FromVector(vector)
	require.NoError(t, err)
	risk := 9.5
	score := types.NewVulnerabilityScore(cveID)
	score.Name = "Example Vulnerability With A Fairly Long Descriptive Name"
	score.CVSSV3 = &c
	if isKEV {
		score.KEV = &types.KevInfo{IsKEV: true}
	}
	score.EPSS = &types.EpssInfo{Score: 0.97, Percentile: 0.998}
	score.AIRiskScore = &risk
	score.AIPriority = "IMMEDIATE"
	return archive.StoredVulnerability{
		CVEID:    cveID,
		Score:    *score,
		CachedAt: time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC),
	}
}

func TestWriteVulnerabilityTable(t *testing.T) {
	vulns := []archive.StoredVulnerability{
		storedVuln(t, "CVE-2021-44228", "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H", true),
	}

	var buf bytes.Buffer
	cfg := TableConfig{ShowEPSS: true, ShowKEV: true, ShowAI: true}
	require.NoError(t, WriteVulnerabilityTable(&buf, vulns, cfg))

	out := buf.String()
	assert.Contains(t, out, "Total: 1 (NONE: 0, LOW: 0, MEDIUM: 0, HIGH: 0, CRITICAL: 1)")
	assert.Contains(t, out, "CVE-2021-44228")
	assert.Contains(t, out, "Critical")
	assert.Contains(t, out, "10.0")
	assert.Contains(t, out, "YES")
	assert.Contains(t, out, "0.97")
	assert.Contains(t, out, "99.8")
	assert.Contains(t, out, "IMMEDIATE")
	assert.Contains(t, out, "2026-02-12T10:00:00Z")
	assert.NotContains(t, out, "\x1b[", "non-terminal output must not contain ANSI escapes")
}

func TestWriteVulnerabilityTable_ColumnsFollowConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVulnerabilityTable(&buf, nil, TableConfig{}))

	out := buf.String()
	assert.Contains(t, out, "CVE ID")
	assert.NotContains(t, out, "EPSS")
	assert.NotContains(t, out, "KEV")
	assert.NotContains(t, out, "Priority")
}

func TestWriteScanTable(t *testing.T) {
	end := int64(1700000090)
	scans := []types.ScanMetadata{
		{
			ScanID:               "scan-1",
			Target:               "10.0.0.0/24",
			StartTime:            1700000000,
			EndTime:              &end,
			Status:               types.ScanCompleted,
			TotalVulnerabilities: 4,
			CriticalCount:        2,
			KEVCount:             1,
		},
		{ScanID: "scan-2", Target: "192.168.1.0/24", StartTime: 1700001000, Status: types.ScanRunning},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteScanTable(&buf, scans, TableConfig{}))

	out := buf.String()
	assert.Contains(t, out, "scan-1")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "scan-2")
	assert.Contains(t, out, "running")
}

func TestWriteScanReport(t *testing.T) {
	report := types.NewScanReport("scan-1", "10.0.0.0/24")
	result := types.NewScanResult("CVE-2021-44228", "10.0.0.5", 8080, "", "")
	vuln := storedVuln(t, "CVE-2021-44228", "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H", true)
	result.VulnerabilityScore = &vuln.Score
	result.RemediationGuidance = "Upgrade log4j-core to 2.17.1 or later."
	report.AddResult(result)
	report.Complete()

	var buf bytes.Buffer
	require.NoError(t, WriteScanReport(&buf, report, TableConfig{}))

	out := buf.String()
	assert.Contains(t, out, "Scan scan-1 (10.0.0.0/24)")
	assert.Contains(t, out, "Status: completed")
	assert.Contains(t, out, "CRITICAL: 1")
	assert.Contains(t, out, "KEV: 1")
	assert.Contains(t, out, "10.0.0.5")
	assert.Contains(t, out, "Upgrade log4j-core")
}

func TestWriteStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStats(&buf, archive.Stats{Scans: 2, Vulnerabilities: 5, ScanResults: 9}, nil, TableConfig{}))

	out := buf.String()
	assert.Contains(t, out, "Archived scans")
	assert.Contains(t, out, "5")
	assert.Contains(t, out, "9")
	assert.NotContains(t, out, "Active scans")
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "short text", truncateWords("short text", 12))
	assert.Equal(t, "a b c...", truncateWords("a b c d e", 3))
	assert.Equal(t, "", truncateWords("", 3))
}
