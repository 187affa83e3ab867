// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package assessor produces comprehensive vulnerability scores by combining
// CVSS, CISA KEV and EPSS data with a heuristic risk rating.
package assessor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/bonial-oss/vuln-assess/internal/ai"
	"github.com/bonial-oss/vuln-assess/internal/cvss"
	"github.com/bonial-oss/vuln-assess/internal/types"
)

// NvdSource fetches descriptive advisory data for a CVE. A nil advisory
// with a nil error means the CVE is unknown to the source.
type NvdSource interface {
	FetchAdvisory(ctx context.Context, cveID string) (*types.Advisory, error)
}

// KevSource fetches KEV catalog data for a CVE; nil means not listed.
type KevSource interface {
	FetchKEV(ctx context.Context, cveID string) (*types.KevInfo, error)
}

// EpssSource fetches EPSS data for a CVE; nil means no score published.
type EpssSource interface {
	FetchEPSS(ctx context.Context, cveID string) (*types.EpssInfo, error)
}

// SourceError wraps a failure of one enrichment source, identifying which
// source failed. Single-item callers receive it as a hard error; batch
// callers log and continue.
type SourceError struct {
	Source string
	CVEID  string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s lookup for %s: %v", e.Source, e.CVEID, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Assessor coordinates CVSS scoring, external data enrichment and heuristic
// risk assessment. Scores are memoized in the injected ScoreCache for the
// lifetime of the assessor, so each CVE is enriched at most once.
//
// All sources may be nil, which disables the corresponding enrichment step.
type Assessor struct {
	nvd     NvdSource
	kev     KevSource
	epss    EpssSource
	advisor ai.Advisor
	cache   ScoreCache
}

// New creates an assessor from its collaborators. cache must not be nil.
func New(nvd NvdSource, kev KevSource, epss EpssSource, advisor ai.Advisor, cache ScoreCache) *Assessor {
	return &Assessor{
		nvd:     nvd,
		kev:     kev,
		epss:    epss,
		advisor: advisor,
		cache:   cache,
	}
}

// Assess produces a fully populated score for cveID. Repeated calls for the
// same CVE return the memoized score without re-running enrichment.
func (a *Assessor) Assess(ctx context.Context, cveID string) (types.VulnerabilityScore, error) {
	if score, ok := a.cache.Get(cveID); ok {
		log.Debug().Str("cve", cveID).Msg("score cache hit")
		return score, nil
	}

	score := types.NewVulnerabilityScore(cveID)

	if a.nvd != nil {
		if err := a.applyAdvisory(ctx, score); err != nil {
			return types.VulnerabilityScore{}, err
		}
	}
	if a.kev != nil {
		kev, err := a.kev.FetchKEV(ctx, cveID)
		if err != nil {
			return types.VulnerabilityScore{}, &SourceError{Source: "kev", CVEID: cveID, Err: err}
		}
		score.KEV = kev
	}
	if a.epss != nil {
		epss, err := a.epss.FetchEPSS(ctx, cveID)
		if err != nil {
			return types.VulnerabilityScore{}, &SourceError{Source: "epss", CVEID: cveID, Err: err}
		}
		score.EPSS = epss
	}
	if a.advisor != nil {
		if err := a.enhance(ctx, score); err != nil {
			return types.VulnerabilityScore{}, err
		}
	}

	a.cache.Put(cveID, *score)

	log.Info().
		Str("cve", cveID).
		Float64("cvss", score.CVSSBaseScore()).
		Stringer("severity", score.Severity()).
		Bool("kev", score.IsKEV()).
		Msg("vulnerability assessed")

	return score.Clone(), nil
}

// AssessMultiple assesses a batch of CVEs. Individual failures are logged
// and skipped; only successful assessments are returned, so partial
// completion shows up as a shorter result slice.
func (a *Assessor) AssessMultiple(ctx context.Context, cveIDs []string) []types.VulnerabilityScore {
	scores := make([]types.VulnerabilityScore, 0, len(cveIDs))
	for _, cveID := range cveIDs {
		score, err := a.Assess(ctx, cveID)
		if err != nil {
			log.Warn().Str("cve", cveID).Err(err).Msg("assessment failed, skipping")
			continue
		}
		scores = append(scores, score)
	}
	return scores
}

// ScoreFromVector builds a score directly from a CVSS vector string,
// bypassing enrichment. Used when a scanner already carries the vector.
func (a *Assessor) ScoreFromVector(cveID, vector string) (types.VulnerabilityScore, error) {
	c, err := cvss.FromVector(vector)
	if err != nil {
		return types.VulnerabilityScore{}, err
	}
	score := types.NewVulnerabilityScore(cveID)
	score.CVSSV3 = &c
	return *score, nil
}

// applyAdvisory copies NVD-style advisory data onto the score, computing the
// CVSS score from the advisory's vector when present.
func (a *Assessor) applyAdvisory(ctx context.Context, score *types.VulnerabilityScore) error {
	advisory, err := a.nvd.FetchAdvisory(ctx, score.CVEID)
	if err != nil {
		return &SourceError{Source: "nvd", CVEID: score.CVEID, Err: err}
	}
	if advisory == nil {
		return nil
	}

	score.Name = advisory.Name
	score.Description = advisory.Description
	score.CWEIDs = advisory.CWEIDs
	score.References = advisory.References
	score.PublishedDate = advisory.Published
	score.LastModified = advisory.LastModified

	if advisory.CVSSVector != "" {
		c, err := cvss.FromVector(advisory.CVSSVector)
		if err != nil {
			return fmt.Errorf("advisory for %s: %w", score.CVEID, err)
		}
		score.CVSSV3 = &c
	}
	return nil
}

// enhance runs the AI risk-assessment step through the configured advisor
// and copies the resulting fields onto the score.
func (a *Assessor) enhance(ctx context.Context, score *types.VulnerabilityScore) error {
	var epssScore float64
	if score.EPSS != nil {
		epssScore = score.EPSS.Score
	}

	inquiry, err := ai.NewInquiry(ai.TaskRiskAssessment, ai.RiskInput{
		CVEID:     score.CVEID,
		CVSSScore: score.CVSSBaseScore(),
		IsKEV:     score.IsKEV(),
		EPSSScore: epssScore,
	})
	if err != nil {
		return err
	}

	reply, err := a.advisor.Advise(ctx, inquiry)
	if err != nil {
		return fmt.Errorf("risk assessment for %s: %w", score.CVEID, err)
	}

	var out ai.RiskOutput
	if err := json.Unmarshal([]byte(reply.Content), &out); err != nil {
		return fmt.Errorf("decoding risk assessment for %s: %w", score.CVEID, err)
	}

	score.AIRiskScore = &out.RiskScore
	score.AIPriority = out.Priority
	score.AIRemediationUrgency = out.RemediationUrgency
	return nil
}

// FilterBySeverity returns the scores rated at or above min.
func FilterBySeverity(scores []types.VulnerabilityScore, min cvss.Severity) []types.VulnerabilityScore {
	var filtered []types.VulnerabilityScore
	for i := range scores {
		if scores[i].Severity() >= min {
			filtered = append(filtered, scores[i])
		}
	}
	return filtered
}

// FilterKEVOnly returns only KEV-listed scores.
func FilterKEVOnly(scores []types.VulnerabilityScore) []types.VulnerabilityScore {
	var filtered []types.VulnerabilityScore
	for i := range scores {
		if scores[i].IsKEV() {
			filtered = append(filtered, scores[i])
		}
	}
	return filtered
}

// SortByRisk orders scores by descending composite risk score.
func SortByRisk(scores []types.VulnerabilityScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].CompositeRiskScore() > scores[j].CompositeRiskScore()
	})
}

// TopByRisk returns up to n scores with the highest composite risk.
func TopByRisk(scores []types.VulnerabilityScore, n int) []types.VulnerabilityScore {
	sorted := make([]types.VulnerabilityScore, len(scores))
	copy(sorted, scores)
	SortByRisk(sorted)
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
