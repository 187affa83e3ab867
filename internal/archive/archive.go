// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package archive is the durable store for assessments and scans: a
// single-file embedded database with three buckets, all values
// CBOR-encoded. The archive is the source of truth; in-memory score
// caches are ephemeral and may be rebuilt from it.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"

	"github.com/bonial-oss/vuln-assess/internal/types"
)

// ErrNotFound is returned when a scan_id or cve_id has no record.
var ErrNotFound = errors.New("archive: record not found")

var (
	bucketScans           = []byte("scans")
	bucketVulnerabilities = []byte("vulnerabilities")
	bucketScanResults     = []byte("scan_results")
)

// StoredVulnerability wraps an assessment with the time it was archived.
type StoredVulnerability struct {
	CVEID    string                   `json:"cve_id"`
	Score    types.VulnerabilityScore `json:"score"`
	CachedAt time.Time                `json:"cached_at"`
}

// Stats reports per-bucket record counts.
type Stats struct {
	Scans           int `json:"scans"`
	Vulnerabilities int `json:"vulnerabilities"`
	ScanResults     int `json:"scan_results"`
}

// Archive is a bbolt-backed store. All methods are safe for concurrent
// use; each call is one transaction — callers must not assume atomicity
// across calls (UpdateScanMetadata is a documented read-then-write pair).
type Archive struct {
	db *bolt.DB
}

// Open creates or opens the archive file, creating parent directories
// and the buckets as needed.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating archive dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketScans, bucketVulnerabilities, bucketScanResults} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug().Str("path", path).Msg("archive opened")
	return &Archive{db: db}, nil
}

// Close releases the underlying database file.
func (a *Archive) Close() error {
	return a.db.Close()
}

// StoreScanMetadata writes the scan summary under its scan_id,
// overwriting any previous version.
func (a *Archive) StoreScanMetadata(meta types.ScanMetadata) error {
	data, err := cbor.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding scan %s: %w", meta.ScanID, err)
	}
	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketScans).Put([]byte(meta.ScanID), data)
	})
}

// GetScanMetadata returns the scan summary for scanID, or ErrNotFound.
func (a *Archive) GetScanMetadata(scanID string) (types.ScanMetadata, error) {
	var meta types.ScanMetadata
	err := a.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketScans).Get([]byte(scanID))
		if data == nil {
			return fmt.Errorf("scan %s: %w", scanID, ErrNotFound)
		}
		if err := cbor.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("decoding scan %s: %w", scanID, err)
		}
		return nil
	})
	return meta, err
}

// UpdateScanMetadata applies fn to the stored summary and writes it
// back. The read and the write are separate transactions; concurrent
// updaters of the same scan_id can race.
func (a *Archive) UpdateScanMetadata(scanID string, fn func(*types.ScanMetadata)) error {
	meta, err := a.GetScanMetadata(scanID)
	if err != nil {
		return err
	}
	fn(&meta)
	meta.ScanID = scanID
	return a.StoreScanMetadata(meta)
}

// ListScans returns all scan summaries, newest first.
func (a *Archive) ListScans() ([]types.ScanMetadata, error) {
	var scans []types.ScanMetadata
	err := a.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketScans).ForEach(func(k, v []byte) error {
			var meta types.ScanMetadata
			if err := cbor.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("decoding scan %s: %w", k, err)
			}
			scans = append(scans, meta)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(scans, func(i, j int) bool {
		return scans[i].StartTime > scans[j].StartTime
	})
	return scans, nil
}

// StoreScanResult writes a detection under the composite key
// scan_id:cve_id:host:port.
func (a *Archive) StoreScanResult(scanID string, result types.ScanResult) error {
	data, err := cbor.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result %s/%s: %w", scanID, result.CVEID, err)
	}
	key := resultKey(scanID, result)
	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketScanResults).Put(key, data)
	})
}

// GetScanResults returns all detections recorded for scanID, in key
// order. The scan itself not existing is not an error here; an unknown
// scan simply has no results.
func (a *Archive) GetScanResults(scanID string) ([]types.ScanResult, error) {
	prefix := []byte(scanID + ":")
	var results []types.ScanResult
	err := a.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketScanResults).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var result types.ScanResult
			if err := cbor.Unmarshal(v, &result); err != nil {
				return fmt.Errorf("decoding result %s: %w", k, err)
			}
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// StoreVulnerability archives an assessment under its cve_id, stamped
// with the current time.
func (a *Archive) StoreVulnerability(score types.VulnerabilityScore) error {
	stored := StoredVulnerability{
		CVEID:    score.CVEID,
		Score:    score,
		CachedAt: time.Now().UTC(),
	}
	data, err := cbor.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encoding vulnerability %s: %w", score.CVEID, err)
	}
	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVulnerabilities).Put([]byte(score.CVEID), data)
	})
}

// GetVulnerability returns the archived assessment for cveID together
// with its archive timestamp, or ErrNotFound.
func (a *Archive) GetVulnerability(cveID string) (StoredVulnerability, error) {
	var stored StoredVulnerability
	err := a.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketVulnerabilities).Get([]byte(cveID))
		if data == nil {
			return fmt.Errorf("vulnerability %s: %w", cveID, ErrNotFound)
		}
		if err := cbor.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("decoding vulnerability %s: %w", cveID, err)
		}
		return nil
	})
	return stored, err
}

// ListVulnerabilities returns every archived assessment, in key order.
func (a *Archive) ListVulnerabilities() ([]StoredVulnerability, error) {
	var all []StoredVulnerability
	err := a.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVulnerabilities).ForEach(func(k, v []byte) error {
			var stored StoredVulnerability
			if err := cbor.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("decoding vulnerability %s: %w", k, err)
			}
			all = append(all, stored)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// Statistics returns per-bucket record counts.
func (a *Archive) Statistics() (Stats, error) {
	var stats Stats
	err := a.db.View(func(tx *bolt.Tx) error {
		stats.Scans = tx.Bucket(bucketScans).Stats().KeyN
		stats.Vulnerabilities = tx.Bucket(bucketVulnerabilities).Stats().KeyN
		stats.ScanResults = tx.Bucket(bucketScanResults).Stats().KeyN
		return nil
	})
	return stats, err
}

func resultKey(scanID string, result types.ScanResult) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%d", scanID, result.CVEID, result.Host, result.Port))
}
