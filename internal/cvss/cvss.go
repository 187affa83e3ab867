// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package cvss implements CVSS v3.1 vector parsing and base score
// calculation according to the official specification
// (https://www.first.org/cvss/v3.1/specification-document).
package cvss

import (
	"fmt"
	"math"
	"strings"
)

// BaseMetrics holds the eight required CVSS v3.1 base metrics as their
// single-letter codes. Values are immutable once parsed.
type BaseMetrics struct {
	AttackVector       string `json:"attack_vector"`       // N/A/L/P
	AttackComplexity   string `json:"attack_complexity"`   // L/H
	PrivilegesRequired string `json:"privileges_required"` // N/L/H
	UserInteraction    string `json:"user_interaction"`    // N/R
	Scope              string `json:"scope"`               // U/C
	Confidentiality    string `json:"confidentiality"`     // N/L/H
	Integrity          string `json:"integrity"`           // N/L/H
	Availability       string `json:"availability"`        // N/L/H
}

// CVSSV3 is a fully computed CVSS v3.x score.
type CVSSV3 struct {
	Metrics   BaseMetrics `json:"base_metrics"`
	BaseScore float64     `json:"base_score"`
	Severity  Severity    `json:"severity"`
	Vector    string      `json:"vector_string"`
}

// ParseError reports a malformed CVSS vector string.
type ParseError struct {
	Vector string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid CVSS v3 vector %q: %s", e.Vector, e.Reason)
}

// ParseVector parses a CVSS v3.x vector string such as
// "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H".
//
// The vector must start with a "CVSS:3" prefix and contain all eight base
// metrics. Unknown keys are ignored, matching the tolerance of upstream
// scanners that emit vendor extensions.
func ParseVector(vector string) (BaseMetrics, error) {
	var m BaseMetrics

	parts := strings.Split(vector, "/")
	if len(parts) == 0 || !strings.HasPrefix(parts[0], "CVSS:3") {
		return m, &ParseError{Vector: vector, Reason: "missing CVSS:3 version prefix"}
	}

	for _, part := range parts[1:] {
		kv := strings.Split(part, ":")
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "AV":
			m.AttackVector = kv[1]
		case "AC":
			m.AttackComplexity = kv[1]
		case "PR":
			m.PrivilegesRequired = kv[1]
		case "UI":
			m.UserInteraction = kv[1]
		case "S":
			m.Scope = kv[1]
		case "C":
			m.Confidentiality = kv[1]
		case "I":
			m.Integrity = kv[1]
		case "A":
			m.Availability = kv[1]
		}
	}

	if m.AttackVector == "" || m.AttackComplexity == "" ||
		m.PrivilegesRequired == "" || m.UserInteraction == "" ||
		m.Scope == "" || m.Confidentiality == "" ||
		m.Integrity == "" || m.Availability == "" {
		return BaseMetrics{}, &ParseError{Vector: vector, Reason: "missing required base metrics"}
	}

	return m, nil
}

// FromVector parses a vector string and computes its full score.
func FromVector(vector string) (CVSSV3, error) {
	metrics, err := ParseVector(vector)
	if err != nil {
		return CVSSV3{}, err
	}
	score := BaseScore(metrics)
	return CVSSV3{
		Metrics:   metrics,
		BaseScore: score,
		Severity:  SeverityFromScore(score),
		Vector:    vector,
	}, nil
}

// BaseScore computes the CVSS v3.1 base score for the given metrics.
func BaseScore(m BaseMetrics) float64 {
	iscBase := 1.0 - (1.0-impactValue(m.Confidentiality))*
		(1.0-impactValue(m.Integrity))*
		(1.0-impactValue(m.Availability))

	var impact float64
	if m.Scope == "U" {
		impact = 6.42 * iscBase
	} else {
		impact = 7.52*(iscBase-0.029) - 3.25*math.Pow(iscBase-0.02, 15)
	}

	exploitability := 8.22 *
		attackVectorValue(m.AttackVector) *
		attackComplexityValue(m.AttackComplexity) *
		privilegesRequiredValue(m.PrivilegesRequired, m.Scope) *
		userInteractionValue(m.UserInteraction)

	if impact <= 0 {
		return 0
	}

	var score float64
	if m.Scope == "U" {
		score = math.Min(impact+exploitability, 10.0)
	} else {
		score = math.Min(1.08*(impact+exploitability), 10.0)
	}
	return roundup(score)
}

// Metric value lookups per the v3.1 specification, section 7.4.

func attackVectorValue(av string) float64 {
	switch av {
	case "N": // Network
		return 0.85
	case "A": // Adjacent
		return 0.62
	case "L": // Local
		return 0.55
	case "P": // Physical
		return 0.2
	default:
		return 0
	}
}

func attackComplexityValue(ac string) float64 {
	switch ac {
	case "L":
		return 0.77
	case "H":
		return 0.44
	default:
		return 0
	}
}

// privilegesRequiredValue depends on scope: Low and High are worth more
// when the scope is changed.
func privilegesRequiredValue(pr, scope string) float64 {
	switch {
	case pr == "N":
		return 0.85
	case pr == "L" && scope == "U":
		return 0.62
	case pr == "L" && scope == "C":
		return 0.68
	case pr == "H" && scope == "U":
		return 0.27
	case pr == "H" && scope == "C":
		return 0.50
	default:
		return 0
	}
}

func userInteractionValue(ui string) float64 {
	switch ui {
	case "N":
		return 0.85
	case "R":
		return 0.62
	default:
		return 0
	}
}

func impactValue(v string) float64 {
	switch v {
	case "H":
		return 0.56
	case "L":
		return 0.22
	default:
		return 0
	}
}

// roundup rounds up to one decimal place as required by the v3.1
// specification (7.33 -> 7.4, not 7.3).
func roundup(value float64) float64 {
	return math.Ceil(value*10.0) / 10.0
}
