// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package assessor

import (
	"sync"

	"github.com/bonial-oss/vuln-assess/internal/types"
)

// ScoreCache memoizes computed vulnerability scores by CVE ID. The cache is
// passed into the Assessor explicitly, so its lifecycle is tied to the
// assessor instance rather than the process.
type ScoreCache interface {
	Get(cveID string) (types.VulnerabilityScore, bool)
	Put(cveID string, score types.VulnerabilityScore)
	Clear()
}

// MemoryScoreCache is a ScoreCache backed by a map under a reader-writer
// lock: many concurrent readers, single writer.
type MemoryScoreCache struct {
	mu     sync.RWMutex
	scores map[string]types.VulnerabilityScore
}

// NewMemoryScoreCache creates an empty in-memory score cache.
func NewMemoryScoreCache() *MemoryScoreCache {
	return &MemoryScoreCache{scores: make(map[string]types.VulnerabilityScore)}
}

// Get returns a copy of the cached score for cveID.
func (c *MemoryScoreCache) Get(cveID string) (types.VulnerabilityScore, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	score, ok := c.scores[cveID]
	if !ok {
		return types.VulnerabilityScore{}, false
	}
	return score.Clone(), true
}

// Put stores a copy of score under cveID.
func (c *MemoryScoreCache) Put(cveID string, score types.VulnerabilityScore) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scores[cveID] = score.Clone()
}

// Clear drops all memoized scores.
func (c *MemoryScoreCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scores = make(map[string]types.VulnerabilityScore)
}
