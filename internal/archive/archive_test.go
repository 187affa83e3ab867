// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonial-oss/vuln-assess/internal/cvss"
	"github.com/bonial-oss/vuln-assess/internal/types"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "data", "archive.db"))
	require.NoError(t, err, "Open() error")
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func criticalScore(t *testing.T, cveID string) types.VulnerabilityScore {
	t.Helper()
	c, err := cvss.FromVector("CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H")
	require.NoError(t, err)
	risk := 10.0
	score := types.NewVulnerabilityScore(cveID)
	score.Name = "Test Vulnerability"
	score.CVSSV3 = &c
	score.KEV = &types.KevInfo{IsKEV: true, DateAdded: "2024-01-15", KnownRansomwareUse: true}
	score.EPSS = &types.EpssInfo{Score: 0.95, Percentile: 0.99, Date: "2026-02-12"}
	score.AIRiskScore = &risk
	score.AIPriority = "IMMEDIATE"
	score.AIRemediationUrgency = "Patch within 24 hours"
	return *score
}

func TestOpen_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "archive.db")
	a, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	// Idempotent: reopening the same file works.
	a, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, a.Close())
}

func TestScanMetadata_RoundTrip(t *testing.T) {
	a := openTestArchive(t)

	end := int64(1700000100)
	meta := types.ScanMetadata{
		ScanID:               "scan-1",
		Target:               "10.0.0.0/24",
		StartTime:            1700000000,
		EndTime:              &end,
		Status:               types.ScanCompleted,
		TotalVulnerabilities: 3,
		CriticalCount:        1,
		HighCount:            2,
		KEVCount:             1,
		TotalHosts:           12,
		AIEnhancedCount:      3,
	}

	require.NoError(t, a.StoreScanMetadata(meta))

	got, err := a.GetScanMetadata("scan-1")
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestGetScanMetadata_NotFound(t *testing.T) {
	a := openTestArchive(t)

	_, err := a.GetScanMetadata("no-such-scan")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateScanMetadata(t *testing.T) {
	a := openTestArchive(t)

	require.NoError(t, a.StoreScanMetadata(types.ScanMetadata{
		ScanID: "scan-1",
		Status: types.ScanRunning,
	}))

	err := a.UpdateScanMetadata("scan-1", func(m *types.ScanMetadata) {
		m.Status = types.ScanCompleted
		m.TotalVulnerabilities = 7
	})
	require.NoError(t, err)

	got, err := a.GetScanMetadata("scan-1")
	require.NoError(t, err)
	assert.Equal(t, types.ScanCompleted, got.Status)
	assert.Equal(t, 7, got.TotalVulnerabilities)

	err = a.UpdateScanMetadata("no-such-scan", func(m *types.ScanMetadata) {})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListScans_NewestFirst(t *testing.T) {
	a := openTestArchive(t)

	require.NoError(t, a.StoreScanMetadata(types.ScanMetadata{ScanID: "old", StartTime: 100}))
	require.NoError(t, a.StoreScanMetadata(types.ScanMetadata{ScanID: "new", StartTime: 300}))
	require.NoError(t, a.StoreScanMetadata(types.ScanMetadata{ScanID: "mid", StartTime: 200}))

	scans, err := a.ListScans()
	require.NoError(t, err)
	require.Len(t, scans, 3)
	assert.Equal(t, "new", scans[0].ScanID)
	assert.Equal(t, "mid", scans[1].ScanID)
	assert.Equal(t, "old", scans[2].ScanID)
}

func TestScanResults_PrefixIsolation(t *testing.T) {
	a := openTestArchive(t)

	r1 := types.NewScanResult("CVE-2024-0001", "10.0.0.1", 443, "1.3.6.1", "tls issue")
	r2 := types.NewScanResult("CVE-2024-0002", "10.0.0.2", 22, "1.3.6.2", "ssh issue")
	other := types.NewScanResult("CVE-2024-0003", "10.0.0.3", 80, "1.3.6.3", "http issue")

	require.NoError(t, a.StoreScanResult("scan-1", r1))
	require.NoError(t, a.StoreScanResult("scan-1", r2))
	require.NoError(t, a.StoreScanResult("scan-10", other))

	results, err := a.GetScanResults("scan-1")
	require.NoError(t, err)
	require.Len(t, results, 2, "scan-10 results must not leak into the scan-1 prefix")

	cves := []string{results[0].CVEID, results[1].CVEID}
	assert.ElementsMatch(t, []string{"CVE-2024-0001", "CVE-2024-0002"}, cves)
}

func TestGetScanResults_UnknownScan(t *testing.T) {
	a := openTestArchive(t)

	results, err := a.GetScanResults("no-such-scan")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStoreScanResult_SameKeyOverwrites(t *testing.T) {
	a := openTestArchive(t)

	r := types.NewScanResult("CVE-2024-0001", "10.0.0.1", 443, "1.3.6.1", "first")
	require.NoError(t, a.StoreScanResult("scan-1", r))
	r.Description = "second"
	require.NoError(t, a.StoreScanResult("scan-1", r))

	results, err := a.GetScanResults("scan-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second", results[0].Description)
}

func TestVulnerability_RoundTrip(t *testing.T) {
	a := openTestArchive(t)

	score := criticalScore(t, "CVE-2021-44228")
	require.NoError(t, a.StoreVulnerability(score))

	stored, err := a.GetVulnerability("CVE-2021-44228")
	require.NoError(t, err)

	assert.Equal(t, "CVE-2021-44228", stored.CVEID)
	assert.Equal(t, score, stored.Score)
	assert.Equal(t, 10.0, stored.Score.CVSSBaseScore())
	assert.Equal(t, cvss.SeverityCritical, stored.Score.Severity())
	assert.True(t, stored.Score.IsKEV())
	assert.WithinDuration(t, time.Now(), stored.CachedAt, time.Minute)
}

func TestGetVulnerability_NotFound(t *testing.T) {
	a := openTestArchive(t)

	_, err := a.GetVulnerability("CVE-9999-0000")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListVulnerabilities(t *testing.T) {
	a := openTestArchive(t)

	require.NoError(t, a.StoreVulnerability(criticalScore(t, "CVE-2024-0001")))
	require.NoError(t, a.StoreVulnerability(criticalScore(t, "CVE-2024-0002")))

	all, err := a.ListVulnerabilities()
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestStatistics(t *testing.T) {
	a := openTestArchive(t)

	stats, err := a.Statistics()
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	require.NoError(t, a.StoreScanMetadata(types.ScanMetadata{ScanID: "scan-1"}))
	require.NoError(t, a.StoreVulnerability(criticalScore(t, "CVE-2024-0001")))
	require.NoError(t, a.StoreScanResult("scan-1", types.NewScanResult("CVE-2024-0001", "h", 1, "", "")))
	require.NoError(t, a.StoreScanResult("scan-1", types.NewScanResult("CVE-2024-0002", "h", 2, "", "")))

	stats, err = a.Statistics()
	require.NoError(t, err)
	assert.Equal(t, Stats{Scans: 1, Vulnerabilities: 1, ScanResults: 2}, stats)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")

	a, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, a.StoreVulnerability(criticalScore(t, "CVE-2021-44228")))
	require.NoError(t, a.Close())

	a, err = Open(path)
	require.NoError(t, err)
	defer a.Close()

	stored, err := a.GetVulnerability("CVE-2021-44228")
	require.NoError(t, err)
	assert.Equal(t, 10.0, stored.Score.CVSSBaseScore())
}
