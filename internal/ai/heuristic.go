// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// RiskInput is the payload for TaskRiskAssessment inquiries.
type RiskInput struct {
	CVEID     string  `json:"cve_id"`
	CVSSScore float64 `json:"cvss_score"`
	IsKEV     bool    `json:"is_kev"`
	EPSSScore float64 `json:"epss_score"`
}

// RiskOutput is the reply content for TaskRiskAssessment inquiries.
type RiskOutput struct {
	RiskScore          float64 `json:"risk_score"` // 0-10
	Priority           string  `json:"priority"`
	RemediationUrgency string  `json:"remediation_urgency"`
}

// GuidanceInput is the payload for TaskRemediationGuidance inquiries.
type GuidanceInput struct {
	CVEID     string  `json:"cve_id"`
	Name      string  `json:"name,omitempty"`
	Severity  string  `json:"severity"`
	CVSSScore float64 `json:"cvss_score"`
	IsKEV     bool    `json:"is_kev"`
	DueDate   string  `json:"due_date,omitempty"`
}

// HeuristicAdvisor is the in-tree Advisor implementation. It derives risk
// ratings and remediation guidance from the scoring signals alone, with no
// external provider. The risk thresholds and multipliers are contractual:
// downstream priority labels must match across deployments.
type HeuristicAdvisor struct{}

// NewHeuristicAdvisor creates the heuristic advisor.
func NewHeuristicAdvisor() *HeuristicAdvisor {
	return &HeuristicAdvisor{}
}

// Name implements Advisor.
func (a *HeuristicAdvisor) Name() string { return "heuristic" }

// Advise implements Advisor.
func (a *HeuristicAdvisor) Advise(_ context.Context, inquiry Inquiry) (Reply, error) {
	start := time.Now()

	var content string
	var certainty float64
	var err error

	switch inquiry.Task {
	case TaskRiskAssessment:
		content, certainty, err = a.assessRisk(inquiry.Payload)
	case TaskRemediationGuidance:
		content, certainty, err = a.guide(inquiry.Payload)
	default:
		return Reply{}, fmt.Errorf("heuristic advisor: unsupported task %q", inquiry.Task)
	}
	if err != nil {
		return Reply{}, err
	}

	return Reply{
		Content:    content,
		Certainty:  certainty,
		Model:      "heuristic-v1",
		DurationMS: time.Since(start).Milliseconds(),
	}, nil
}

// assessRisk implements the heuristic risk enhancement:
// start from the CVSS base score, boost by 1.3x for KEV-listed CVEs, add
// 2x the EPSS score when it exceeds 0.5, and cap at 10.
func (a *HeuristicAdvisor) assessRisk(payload json.RawMessage) (string, float64, error) {
	var in RiskInput
	if err := json.Unmarshal(payload, &in); err != nil {
		return "", 0, fmt.Errorf("decoding risk input: %w", err)
	}

	risk := in.CVSSScore
	if in.IsKEV {
		risk = math.Min(risk*1.3, 10.0)
	}
	if in.EPSSScore > 0.5 {
		risk = math.Min(risk+in.EPSSScore*2.0, 10.0)
	}

	var priority string
	switch {
	case risk >= 9.0:
		priority = "IMMEDIATE"
	case risk >= 7.0:
		priority = "HIGH"
	case risk >= 4.0:
		priority = "MEDIUM"
	default:
		priority = "LOW"
	}

	var urgency string
	switch {
	case in.IsKEV:
		urgency = "Patch within 24 hours"
	case risk >= 9.0:
		urgency = "Patch within 7 days"
	case risk >= 7.0:
		urgency = "Patch within 30 days"
	default:
		urgency = "Patch as part of regular cycle"
	}

	out, err := json.Marshal(RiskOutput{
		RiskScore:          risk,
		Priority:           priority,
		RemediationUrgency: urgency,
	})
	if err != nil {
		return "", 0, fmt.Errorf("encoding risk output: %w", err)
	}

	return string(out), a.riskCertainty(in), nil
}

// riskCertainty grows with the number of signals backing the rating.
func (a *HeuristicAdvisor) riskCertainty(in RiskInput) float64 {
	certainty := 0.5
	if in.CVSSScore > 0 {
		certainty += 0.2
	}
	if in.IsKEV {
		certainty += 0.15
	}
	if in.EPSSScore > 0 {
		certainty += 0.15
	}
	return math.Min(certainty, 1.0)
}

// guide produces a short remediation guidance text.
func (a *HeuristicAdvisor) guide(payload json.RawMessage) (string, float64, error) {
	var in GuidanceInput
	if err := json.Unmarshal(payload, &in); err != nil {
		return "", 0, fmt.Errorf("decoding guidance input: %w", err)
	}

	var b strings.Builder
	if in.Name != "" {
		fmt.Fprintf(&b, "%s (%s): ", in.CVEID, in.Name)
	} else {
		fmt.Fprintf(&b, "%s: ", in.CVEID)
	}

	switch {
	case in.IsKEV && in.DueDate != "":
		fmt.Fprintf(&b, "listed in the CISA KEV catalog with remediation due %s. Apply vendor updates immediately.", in.DueDate)
	case in.IsKEV:
		b.WriteString("listed in the CISA KEV catalog. Apply vendor updates immediately.")
	case in.CVSSScore >= 9.0:
		b.WriteString("critical severity. Apply vendor updates within 7 days and restrict network exposure in the meantime.")
	case in.CVSSScore >= 7.0:
		b.WriteString("high severity. Schedule vendor updates within 30 days.")
	case in.CVSSScore > 0:
		fmt.Fprintf(&b, "%s severity. Patch as part of the regular maintenance cycle.", strings.ToLower(in.Severity))
	default:
		b.WriteString("no scoring data available. Review the advisory manually.")
	}

	certainty := 0.6
	if in.CVSSScore > 0 {
		certainty = 0.8
	}
	return b.String(), certainty, nil
}
