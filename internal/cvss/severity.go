// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cvss

import (
	"fmt"
	"strings"
)

// Severity is a qualitative CVSS severity rating. The ordering of the
// constants matches the score bands, so severities compare with < and >.
type Severity int

const (
	SeverityNone     Severity = iota // 0.0
	SeverityLow                      // 0.1-3.9
	SeverityMedium                   // 4.0-6.9
	SeverityHigh                     // 7.0-8.9
	SeverityCritical                 // 9.0-10.0
)

// SeverityFromScore maps a base score to its qualitative rating.
func SeverityFromScore(score float64) Severity {
	switch {
	case score == 0:
		return SeverityNone
	case score < 4.0:
		return SeverityLow
	case score < 7.0:
		return SeverityMedium
	case score < 9.0:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "None"
	case SeverityLow:
		return "Low"
	case SeverityMedium:
		return "Medium"
	case SeverityHigh:
		return "High"
	case SeverityCritical:
		return "Critical"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// MarshalText renders the severity name, so JSON output carries "Critical"
// rather than an enum ordinal.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a severity name, case-insensitively.
func (s *Severity) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "none":
		*s = SeverityNone
	case "low":
		*s = SeverityLow
	case "medium":
		*s = SeverityMedium
	case "high":
		*s = SeverityHigh
	case "critical":
		*s = SeverityCritical
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}
