// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package ai defines the capability boundary towards AI providers. The core
// only depends on the Advisor interface; provider integrations live behind
// it and are selected by configuration.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
)

// Task identifies the kind of analysis requested from an advisor.
type Task string

const (
	TaskRiskAssessment      Task = "risk_assessment"
	TaskRemediationGuidance Task = "remediation_guidance"
)

// Inquiry is a request for AI processing.
type Inquiry struct {
	Task    Task            `json:"task"`
	Payload json.RawMessage `json:"payload"`
	Context string          `json:"context,omitempty"`
}

// NewInquiry marshals data into an inquiry payload.
func NewInquiry(task Task, data any) (Inquiry, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Inquiry{}, fmt.Errorf("marshaling inquiry payload: %w", err)
	}
	return Inquiry{Task: task, Payload: payload}, nil
}

// Fingerprint returns a deterministic hash of the task and payload, used as
// the reply-cache key. Equal inquiries always produce equal fingerprints.
func (i Inquiry) Fingerprint() string {
	h := fnv.New64a()
	h.Write([]byte(i.Task))
	h.Write(i.Payload)
	return fmt.Sprintf("inquiry-%x", h.Sum64())
}

// Reply is the result of an inquiry.
type Reply struct {
	Content    string  `json:"content"`
	Certainty  float64 `json:"certainty"` // 0.0-1.0
	Model      string  `json:"model"`
	TokensUsed uint64  `json:"tokens_used,omitempty"`
	DurationMS int64   `json:"duration_ms"`
}

// Advisor is a single-method AI capability. Implementations must be safe for
// concurrent use.
type Advisor interface {
	// Advise processes an inquiry and returns a reply. Network-backed
	// implementations honor ctx cancellation.
	Advise(ctx context.Context, inquiry Inquiry) (Reply, error)

	// Name identifies the provider for logging and configuration.
	Name() string
}
