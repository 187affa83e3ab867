// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoredResult(t *testing.T, cveID, vector string, kev bool) ScanResult {
	t.Helper()
	result := NewScanResult(cveID, "192.168.1.100", 443, "unknown", "test detection")
	score := NewVulnerabilityScore(cveID)
	if vector != "" {
		withCVSS(t, score, vector)
	}
	if kev {
		score.KEV = &KevInfo{IsKEV: true}
	}
	result.VulnerabilityScore = score
	return result
}

func TestNewScanResult(t *testing.T) {
	result := NewScanResult("CVE-2024-0001", "192.168.1.100", 443, "1.3.6.1.4.1.25623.1.0.12345", "Test vulnerability")

	assert.Equal(t, "CVE-2024-0001", result.CVEID)
	assert.Equal(t, "192.168.1.100", result.Host)
	assert.Equal(t, uint16(443), result.Port)
	assert.NotZero(t, result.DetectionTime)

	_, ok := result.CVSSBaseScore()
	assert.False(t, ok)
	assert.False(t, result.IsKEV())
	assert.Equal(t, 0.0, result.RiskScore())
}

func TestScanReport_Counters(t *testing.T) {
	results := []ScanResult{
		scoredResult(t, "CVE-CRIT", "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H", true),
		scoredResult(t, "CVE-HIGH", "CVSS:3.1/AV:N/AC:L/PR:L/UI:N/S:U/C:H/I:H/A:N", false),
		scoredResult(t, "CVE-MED", "CVSS:3.1/AV:N/AC:L/PR:L/UI:R/S:U/C:L/I:L/A:L", false),
		scoredResult(t, "CVE-LOW", "CVSS:3.1/AV:P/AC:H/PR:H/UI:R/S:U/C:L/I:N/A:N", false),
		scoredResult(t, "CVE-KEV", "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H", true),
		NewScanResult("CVE-UNSCORED", "10.0.0.1", 22, "unknown", "no assessment"),
	}

	// Counters must come out the same regardless of insertion order.
	for trial := 0; trial < 5; trial++ {
		shuffled := make([]ScanResult, len(results))
		copy(shuffled, results)
		rand.New(rand.NewSource(int64(trial))).Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		report := NewScanReport("scan-1", "192.168.1.0/24")
		for _, r := range shuffled {
			report.AddResult(r)
		}

		assert.Equal(t, 6, report.TotalVulnerabilities)
		assert.Equal(t, 2, report.CriticalCount)
		assert.Equal(t, 1, report.HighCount)
		assert.Equal(t, 1, report.MediumCount)
		assert.Equal(t, 1, report.LowCount)
		assert.Equal(t, 2, report.KEVCount)
	}
}

func TestScanReport_Lifecycle(t *testing.T) {
	report := NewScanReport("scan-1", "10.0.0.0/8")
	assert.Equal(t, ScanRunning, report.Status)
	assert.Nil(t, report.EndTime)

	_, done := report.Duration()
	assert.False(t, done)

	report.Complete()
	assert.Equal(t, ScanCompleted, report.Status)
	require.NotNil(t, report.EndTime)

	_, done = report.Duration()
	assert.True(t, done)
}

func TestScanReport_Fail(t *testing.T) {
	report := NewScanReport("scan-1", "10.0.0.0/8")
	report.Fail()

	assert.Equal(t, ScanFailed, report.Status)
	assert.NotNil(t, report.EndTime)
}

func TestScanReport_TopVulnerabilities(t *testing.T) {
	report := NewScanReport("scan-1", "192.168.1.0/24")
	report.AddResult(scoredResult(t, "CVE-LOW", "CVSS:3.1/AV:P/AC:H/PR:H/UI:R/S:U/C:L/I:N/A:N", false))
	report.AddResult(scoredResult(t, "CVE-CRIT", "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H", true))
	report.AddResult(scoredResult(t, "CVE-MED", "CVSS:3.1/AV:N/AC:L/PR:L/UI:R/S:U/C:L/I:L/A:L", false))

	top := report.TopVulnerabilities(2)
	require.Len(t, top, 2)
	assert.Equal(t, "CVE-CRIT", top[0].CVEID)

	// Original order is untouched.
	assert.Equal(t, "CVE-LOW", report.Results[0].CVEID)
}

func TestScanReport_KEVResults(t *testing.T) {
	report := NewScanReport("scan-1", "192.168.1.0/24")
	report.AddResult(scoredResult(t, "CVE-KEV", "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H", true))
	report.AddResult(scoredResult(t, "CVE-PLAIN", "CVSS:3.1/AV:N/AC:L/PR:L/UI:R/S:U/C:L/I:L/A:L", false))

	kev := report.KEVResults()
	require.Len(t, kev, 1)
	assert.Equal(t, "CVE-KEV", kev[0].CVEID)
}
