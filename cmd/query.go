// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bonial-oss/vuln-assess/internal/archive"
	"github.com/bonial-oss/vuln-assess/internal/output"
)

type queryFlags struct {
	severity string
	kevOnly  bool
	minCVSS  float64
	maxCVSS  float64
	sortBy   string
	order    string
	offset   int
	limit    int
}

func (f *queryFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.severity, "severity", "", "Filter by severity (case-insensitive substring)")
	flags.BoolVar(&f.kevOnly, "kev-only", false, "Only KEV-listed CVEs")
	flags.Float64Var(&f.minCVSS, "min-cvss", -1, "Minimum CVSS base score")
	flags.Float64Var(&f.maxCVSS, "max-cvss", -1, "Maximum CVSS base score")
	flags.StringVar(&f.sortBy, "sort-by", "cached_at", "Sort by: cve_id, severity, cvss_score, cached_at")
	flags.StringVar(&f.order, "order", "desc", "Sort order: asc, desc")
	flags.IntVar(&f.offset, "offset", 0, "Skip the first N results")
	flags.IntVar(&f.limit, "limit", 0, "Return at most N results (0 = no limit)")
}

func (f *queryFlags) filters() archive.QueryFilters {
	filters := archive.QueryFilters{Severity: f.severity}
	if f.kevOnly {
		kev := true
		filters.IsKEV = &kev
	}
	if f.minCVSS >= 0 {
		min := f.minCVSS
		filters.MinCVSS = &min
	}
	if f.maxCVSS >= 0 {
		max := f.maxCVSS
		filters.MaxCVSS = &max
	}
	return filters
}

func (f *queryFlags) sort() (archive.SortField, archive.SortOrder, error) {
	field := archive.SortField(f.sortBy)
	switch field {
	case archive.SortByCVEID, archive.SortBySeverity, archive.SortByCVSSScore, archive.SortByCachedAt:
	default:
		return "", "", &ExitError{Code: 2, Message: fmt.Sprintf("unsupported sort field: %s", f.sortBy)}
	}

	order := archive.SortOrder(f.order)
	switch order {
	case archive.SortAscending, archive.SortDescending:
	default:
		return "", "", &ExitError{Code: 2, Message: fmt.Sprintf("unsupported sort order: %s", f.order)}
	}

	return field, order, nil
}

func newQueryCommand(opts *Options) *cobra.Command {
	qf := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Filter, sort, and paginate archived assessments",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runQuery(opts, qf)
		},
	}

	qf.register(cmd)
	return cmd
}

func runQuery(opts *Options, qf *queryFlags) error {
	field, order, err := qf.sort()
	if err != nil {
		return err
	}

	arch, err := openArchive(opts)
	if err != nil {
		return err
	}
	defer arch.Close()

	q := archive.NewQuery(arch)
	results, err := q.Vulnerabilities(qf.filters(), field, order,
		archive.Pagination{Offset: qf.offset, Limit: qf.limit})
	if err != nil {
		return err
	}

	w, closeOutput, err := outputWriter(opts)
	if err != nil {
		return err
	}
	defer closeOutput()

	switch opts.Format {
	case "json":
		return output.WriteJSON(w, results)
	case "table":
		return output.WriteVulnerabilityTable(w, results, tableConfig(opts, w))
	default:
		return &ExitError{Code: 2, Message: fmt.Sprintf("unsupported output format: %s", opts.Format)}
	}
}
