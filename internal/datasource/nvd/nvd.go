// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package nvd queries the NVD REST API 2.0 for per-CVE advisory data.
// Unlike the KEV and EPSS feeds it is not bulk-downloaded: each CVE is
// fetched on demand.
package nvd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bonial-oss/vuln-assess/internal/types"
)

const (
	defaultBaseURL  = "https://services.nvd.nist.gov/rest/json/cves/2.0"
	maxResponseSize = 10 * 1024 * 1024 // 10 MB
)

// Source fetches CVE advisories from the NVD REST API.
type Source struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewSource creates an NVD source. apiKey may be empty; NVD then applies
// its stricter anonymous rate limits.
func NewSource(apiKey string) *Source {
	return &Source{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// NewSourceWithURL is like NewSource but targets a custom API endpoint.
func NewSourceWithURL(baseURL, apiKey string) *Source {
	s := NewSource(apiKey)
	s.baseURL = baseURL
	return s
}

// apiResponse mirrors the slice of the NVD 2.0 response we consume.
type apiResponse struct {
	Vulnerabilities []struct {
		CVE struct {
			ID           string `json:"id"`
			Published    string `json:"published"`
			LastModified string `json:"lastModified"`
			Descriptions []struct {
				Lang  string `json:"lang"`
				Value string `json:"value"`
			} `json:"descriptions"`
			Metrics struct {
				CVSSMetricV31 []struct {
					Type     string `json:"type"`
					CVSSData struct {
						VectorString string `json:"vectorString"`
					} `json:"cvssData"`
				} `json:"cvssMetricV31"`
			} `json:"metrics"`
			Weaknesses []struct {
				Description []struct {
					Lang  string `json:"lang"`
					Value string `json:"value"`
				} `json:"description"`
			} `json:"weaknesses"`
			References []struct {
				URL string `json:"url"`
			} `json:"references"`
		} `json:"cve"`
	} `json:"vulnerabilities"`
}

// FetchAdvisory looks up a single CVE. A nil advisory with a nil error
// means NVD has no record for the ID.
func (s *Source) FetchAdvisory(ctx context.Context, cveID string) (*types.Advisory, error) {
	reqURL := fmt.Sprintf("%s?cveId=%s", s.baseURL, url.QueryEscape(cveID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building NVD request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("apiKey", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, reqURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling NVD response: %w", err)
	}
	if len(parsed.Vulnerabilities) == 0 {
		return nil, nil
	}

	cve := parsed.Vulnerabilities[0].CVE

	advisory := &types.Advisory{
		Name:         cve.ID,
		Published:    cve.Published,
		LastModified: cve.LastModified,
	}

	for _, desc := range cve.Descriptions {
		if desc.Lang == "en" {
			advisory.Description = desc.Value
			break
		}
	}

	// Prefer the Primary CVSS record; fall back to the first one.
	for _, metric := range cve.Metrics.CVSSMetricV31 {
		if advisory.CVSSVector == "" || metric.Type == "Primary" {
			advisory.CVSSVector = metric.CVSSData.VectorString
		}
		if metric.Type == "Primary" {
			break
		}
	}

	for _, weakness := range cve.Weaknesses {
		for _, desc := range weakness.Description {
			if desc.Lang == "en" {
				advisory.CWEIDs = append(advisory.CWEIDs, desc.Value)
			}
		}
	}

	for _, ref := range cve.References {
		advisory.References = append(advisory.References, ref.URL)
	}

	return advisory, nil
}
