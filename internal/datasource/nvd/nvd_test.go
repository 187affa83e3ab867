// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package nvd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "resultsPerPage": 1,
  "totalResults": 1,
  "vulnerabilities": [
    {
      "cve": {
        "id": "CVE-2021-44228",
        "published": "2021-12-10T10:15:09.143",
        "lastModified": "2023-11-07T04:02:30.197",
        "descriptions": [
          {"lang": "en", "value": "Apache Log4j2 JNDI features do not protect against attacker controlled LDAP."},
          {"lang": "es", "value": "Las caracteristicas JNDI de Apache Log4j2."}
        ],
        "metrics": {
          "cvssMetricV31": [
            {
              "type": "Secondary",
              "cvssData": {"vectorString": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"}
            },
            {
              "type": "Primary",
              "cvssData": {"vectorString": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H"}
            }
          ]
        },
        "weaknesses": [
          {"description": [{"lang": "en", "value": "CWE-502"}]},
          {"description": [{"lang": "en", "value": "CWE-917"}]}
        ],
        "references": [
          {"url": "https://logging.apache.org/log4j/2.x/security.html"}
        ]
      }
    }
  ]
}`

func TestFetchAdvisory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CVE-2021-44228", r.URL.Query().Get("cveId"))
		assert.Equal(t, "test-key", r.Header.Get("apiKey"))
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	s := NewSourceWithURL(srv.URL, "test-key")

	advisory, err := s.FetchAdvisory(context.Background(), "CVE-2021-44228")
	require.NoError(t, err)
	require.NotNil(t, advisory)

	assert.Equal(t, "CVE-2021-44228", advisory.Name)
	assert.Contains(t, advisory.Description, "Log4j2")
	assert.Equal(t, "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H", advisory.CVSSVector,
		"the Primary CVSS record must win over the Secondary one")
	assert.Equal(t, []string{"CWE-502", "CWE-917"}, advisory.CWEIDs)
	assert.Equal(t, []string{"https://logging.apache.org/log4j/2.x/security.html"}, advisory.References)
	assert.Equal(t, "2021-12-10T10:15:09.143", advisory.Published)
}

func TestFetchAdvisory_NoAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("apiKey"))
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	s := NewSourceWithURL(srv.URL, "")

	advisory, err := s.FetchAdvisory(context.Background(), "CVE-2021-44228")
	require.NoError(t, err)
	require.NotNil(t, advisory)
}

func TestFetchAdvisory_UnknownCVE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"resultsPerPage": 0, "totalResults": 0, "vulnerabilities": []}`))
	}))
	defer srv.Close()

	s := NewSourceWithURL(srv.URL, "")

	advisory, err := s.FetchAdvisory(context.Background(), "CVE-2099-0001")
	require.NoError(t, err)
	assert.Nil(t, advisory)
}

func TestFetchAdvisory_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewSourceWithURL(srv.URL, "")

	_, err := s.FetchAdvisory(context.Background(), "CVE-2021-44228")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestFetchAdvisory_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	s := NewSourceWithURL(srv.URL, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FetchAdvisory(ctx, "CVE-2021-44228")
	require.Error(t, err)
}
