// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package bridge connects a running scanner to the assessment pipeline.
// It owns the scan lifecycle: scans are started, fed detection events
// one at a time, and ended, at which point the report is archived.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bonial-oss/vuln-assess/internal/ai"
	"github.com/bonial-oss/vuln-assess/internal/aicache"
	"github.com/bonial-oss/vuln-assess/internal/archive"
	"github.com/bonial-oss/vuln-assess/internal/assessor"
	"github.com/bonial-oss/vuln-assess/internal/cvss"
	"github.com/bonial-oss/vuln-assess/internal/types"
)

// ErrScanNotFound is returned for lifecycle calls against an unknown or
// already-ended scan.
var ErrScanNotFound = errors.New("bridge: scan not found")

// Stats counts bridge activity since construction.
type Stats struct {
	ScansStarted       int     `json:"scans_started"`
	ActiveScans        int     `json:"active_scans"`
	ResultsProcessed   int     `json:"results_processed"`
	KEVDetections      int     `json:"kev_detections"`
	CriticalDetections int     `json:"critical_detections"`
	GuidanceCacheHits  int     `json:"guidance_cache_hits"`
	GuidanceCacheMiss  int     `json:"guidance_cache_misses"`
	AvgEnhancementMS   float64 `json:"avg_enhancement_ms"`
}

// Bridge drives scans through assessment and into the archive.
type Bridge struct {
	assessor *assessor.Assessor
	advisor  ai.Advisor
	replies  *aicache.Cache
	archive  *archive.Archive

	mu    sync.RWMutex
	scans map[string]*types.ScanReport

	statsMu         sync.Mutex
	scansStarted    int
	resultsTotal    int
	kevTotal        int
	criticalTotal   int
	cacheHits       int
	cacheMisses     int
	enhancementMS   int64
	enhancedResults int
}

// New wires the bridge. advisor and replies may be nil to disable
// remediation guidance; archive may be nil to skip persistence.
func New(a *assessor.Assessor, advisor ai.Advisor, replies *aicache.Cache, arch *archive.Archive) *Bridge {
	return &Bridge{
		assessor: a,
		advisor:  advisor,
		replies:  replies,
		archive:  arch,
		scans:    make(map[string]*types.ScanReport),
	}
}

// StartScan opens a new scan against target and returns its id.
func (b *Bridge) StartScan(target string) string {
	scanID := uuid.NewString()
	report := types.NewScanReport(scanID, target)

	b.mu.Lock()
	b.scans[scanID] = report
	b.mu.Unlock()

	b.statsMu.Lock()
	b.scansStarted++
	b.statsMu.Unlock()

	log.Info().Str("scan", scanID).Str("target", target).Msg("scan started")
	return scanID
}

// OnVulnerabilityDetected handles one detection event: assess the CVE,
// attach remediation guidance, record the result on the report, and
// archive both the assessment and the result. Assessment failures are
// logged and the bare detection is still recorded.
func (b *Bridge) OnVulnerabilityDetected(ctx context.Context, scanID, cveID, host string, port uint16, pluginOID, description string) (types.ScanResult, error) {
	b.mu.RLock()
	report, ok := b.scans[scanID]
	b.mu.RUnlock()
	if !ok {
		return types.ScanResult{}, fmt.Errorf("scan %s: %w", scanID, ErrScanNotFound)
	}

	result := types.NewScanResult(cveID, host, port, pluginOID, description)

	start := time.Now()
	score, err := b.assessor.Assess(ctx, cveID)
	if err != nil {
		log.Warn().Str("scan", scanID).Str("cve", cveID).Err(err).
			Msg("assessment failed, recording bare detection")
	} else {
		result.VulnerabilityScore = &score
		result.RemediationGuidance = b.guidance(ctx, &score)

		if b.archive != nil {
			if err := b.archive.StoreVulnerability(score); err != nil {
				log.Warn().Str("cve", cveID).Err(err).Msg("archiving assessment failed")
			}
		}
	}
	elapsed := time.Since(start)

	b.mu.Lock()
	report.AddResult(result)
	b.mu.Unlock()

	b.statsMu.Lock()
	b.resultsTotal++
	if result.VulnerabilityScore != nil {
		if result.VulnerabilityScore.IsKEV() {
			b.kevTotal++
		}
		if result.VulnerabilityScore.Severity() == cvss.SeverityCritical {
			b.criticalTotal++
		}
	}
	if result.RemediationGuidance != "" {
		b.enhancementMS += elapsed.Milliseconds()
		b.enhancedResults++
	}
	b.statsMu.Unlock()

	return result, nil
}

// EndScan completes the scan, persists its metadata and results, and
// returns the final report. The scan id is no longer valid afterwards.
func (b *Bridge) EndScan(scanID string) (*types.ScanReport, error) {
	b.mu.Lock()
	report, ok := b.scans[scanID]
	if ok {
		delete(b.scans, scanID)
	}
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("scan %s: %w", scanID, ErrScanNotFound)
	}

	report.Complete()

	if b.archive != nil {
		if err := b.archive.StoreScanMetadata(report.Metadata()); err != nil {
			return nil, fmt.Errorf("archiving scan %s: %w", scanID, err)
		}
		for _, result := range report.Results {
			if err := b.archive.StoreScanResult(scanID, result); err != nil {
				return nil, fmt.Errorf("archiving result %s/%s: %w", scanID, result.CVEID, err)
			}
		}
	}

	log.Info().Str("scan", scanID).
		Int("vulnerabilities", report.TotalVulnerabilities).
		Int("kev", report.KEVCount).
		Msg("scan completed")
	return report, nil
}

// AbortScan marks the scan failed and persists what was collected.
func (b *Bridge) AbortScan(scanID string) (*types.ScanReport, error) {
	b.mu.Lock()
	report, ok := b.scans[scanID]
	if ok {
		delete(b.scans, scanID)
	}
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("scan %s: %w", scanID, ErrScanNotFound)
	}

	report.Fail()

	if b.archive != nil {
		if err := b.archive.StoreScanMetadata(report.Metadata()); err != nil {
			return nil, fmt.Errorf("archiving scan %s: %w", scanID, err)
		}
	}

	log.Warn().Str("scan", scanID).Msg("scan aborted")
	return report, nil
}

// ActiveScan returns the in-progress report for scanID.
func (b *Bridge) ActiveScan(scanID string) (*types.ScanReport, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	report, ok := b.scans[scanID]
	if !ok {
		return nil, fmt.Errorf("scan %s: %w", scanID, ErrScanNotFound)
	}
	return report, nil
}

// Statistics returns bridge activity counters.
func (b *Bridge) Statistics() Stats {
	b.mu.RLock()
	active := len(b.scans)
	b.mu.RUnlock()

	b.statsMu.Lock()
	defer b.statsMu.Unlock()

	stats := Stats{
		ScansStarted:       b.scansStarted,
		ActiveScans:        active,
		ResultsProcessed:   b.resultsTotal,
		KEVDetections:      b.kevTotal,
		CriticalDetections: b.criticalTotal,
		GuidanceCacheHits:  b.cacheHits,
		GuidanceCacheMiss:  b.cacheMisses,
	}
	if b.enhancedResults > 0 {
		stats.AvgEnhancementMS = float64(b.enhancementMS) / float64(b.enhancedResults)
	}
	return stats
}

// guidance produces remediation guidance through the advisor, memoized
// in the reply cache by inquiry fingerprint. Failures degrade to no
// guidance rather than failing the detection.
func (b *Bridge) guidance(ctx context.Context, score *types.VulnerabilityScore) string {
	if b.advisor == nil {
		return ""
	}

	input := ai.GuidanceInput{
		CVEID:     score.CVEID,
		Name:      score.Name,
		Severity:  score.Severity().String(),
		CVSSScore: score.CVSSBaseScore(),
		IsKEV:     score.IsKEV(),
	}
	if score.KEV != nil {
		input.DueDate = score.KEV.DueDate
	}

	inquiry, err := ai.NewInquiry(ai.TaskRemediationGuidance, input)
	if err != nil {
		log.Warn().Str("cve", score.CVEID).Err(err).Msg("building guidance inquiry failed")
		return ""
	}

	key := inquiry.Fingerprint()
	if b.replies != nil {
		if reply, ok := b.replies.Retrieve(key); ok {
			b.statsMu.Lock()
			b.cacheHits++
			b.statsMu.Unlock()
			return reply.Content
		}
	}

	reply, err := b.advisor.Advise(ctx, inquiry)
	if err != nil {
		log.Warn().Str("cve", score.CVEID).Err(err).Msg("remediation guidance failed")
		return ""
	}

	if b.replies != nil {
		b.replies.Store(key, reply)
		b.statsMu.Lock()
		b.cacheMisses++
		b.statsMu.Unlock()
	}
	return reply.Content
}
