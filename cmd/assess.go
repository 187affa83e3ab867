// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/bonial-oss/vuln-assess/internal/archive"
	"github.com/bonial-oss/vuln-assess/internal/assessor"
	"github.com/bonial-oss/vuln-assess/internal/cvss"
	"github.com/bonial-oss/vuln-assess/internal/output"
	"github.com/bonial-oss/vuln-assess/internal/types"
)

var cveIDPattern = regexp.MustCompile(`^CVE-\d{4}-\d{4,}$`)

type assessFlags struct {
	noStore     bool
	minSeverity string
	kevOnly     bool
	top         int
}

func newAssessCommand(opts *Options) *cobra.Command {
	af := &assessFlags{}

	cmd := &cobra.Command{
		Use:   "assess CVE-ID [CVE-ID...]",
		Short: "Assess one or more CVEs and archive the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssess(cmd, opts, args, af)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&af.noStore, "no-store", false, "Do not write assessments to the archive")
	flags.StringVar(&af.minSeverity, "min-severity", "", "Only show CVEs at or above this severity")
	flags.BoolVar(&af.kevOnly, "kev-only", false, "Only show KEV-listed CVEs")
	flags.IntVar(&af.top, "top", 0, "Only show the N highest-risk CVEs (0 = all)")

	return cmd
}

func runAssess(cmd *cobra.Command, opts *Options, cveIDs []string, af *assessFlags) error {
	for _, cveID := range cveIDs {
		if !cveIDPattern.MatchString(cveID) {
			return &ExitError{Code: 2, Message: fmt.Sprintf("invalid CVE id: %s", cveID)}
		}
	}

	var minSeverity cvss.Severity
	if af.minSeverity != "" {
		if err := minSeverity.UnmarshalText([]byte(af.minSeverity)); err != nil {
			return &ExitError{Code: 2, Message: fmt.Sprintf("invalid severity: %s", af.minSeverity)}
		}
	}

	a, _, err := buildAssessor(opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	var assessed []types.VulnerabilityScore
	if len(cveIDs) == 1 {
		// Single-CVE assessment surfaces hard errors to the caller.
		score, err := a.Assess(ctx, cveIDs[0])
		if err != nil {
			return fmt.Errorf("assessing %s: %w", cveIDs[0], err)
		}
		assessed = append(assessed, score)
	} else {
		// Batch assessment logs and skips failures.
		assessed = a.AssessMultiple(ctx, cveIDs)
		if len(assessed) < len(cveIDs) {
			defer fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d of %d assessments failed\n",
				len(cveIDs)-len(assessed), len(cveIDs))
		}
	}

	if af.minSeverity != "" {
		assessed = assessor.FilterBySeverity(assessed, minSeverity)
	}
	if af.kevOnly {
		assessed = assessor.FilterKEVOnly(assessed)
	}
	if af.top > 0 {
		assessed = assessor.TopByRisk(assessed, af.top)
	} else {
		assessor.SortByRisk(assessed)
	}

	scores := make([]archive.StoredVulnerability, 0, len(assessed))
	for _, score := range assessed {
		scores = append(scores, archive.StoredVulnerability{CVEID: score.CVEID, Score: score})
	}

	if !af.noStore {
		arch, err := openArchive(opts)
		if err != nil {
			return err
		}
		defer arch.Close()

		for i := range scores {
			if err := arch.StoreVulnerability(scores[i].Score); err != nil {
				return fmt.Errorf("archiving %s: %w", scores[i].CVEID, err)
			}
			// Re-read so the rendered Cached At reflects the archive.
			stored, err := arch.GetVulnerability(scores[i].CVEID)
			if err != nil {
				return err
			}
			scores[i] = stored
		}
	}

	w, closeOutput, err := outputWriter(opts)
	if err != nil {
		return err
	}
	defer closeOutput()

	switch opts.Format {
	case "json":
		return output.WriteJSON(w, scores)
	case "table":
		return output.WriteVulnerabilityTable(w, scores, tableConfig(opts, w))
	default:
		return &ExitError{Code: 2, Message: fmt.Sprintf("unsupported output format: %s", opts.Format)}
	}
}
