// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bonial-oss/vuln-assess/internal/archive"
	"github.com/bonial-oss/vuln-assess/internal/output"
)

func newScansCommand(opts *Options) *cobra.Command {
	var target, status string
	var minVulns, offset, limit int

	cmd := &cobra.Command{
		Use:   "scans",
		Short: "List archived scans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runScans(opts, target, status, minVulns, offset, limit)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&target, "target", "", "Filter by target (case-insensitive substring)")
	flags.StringVar(&status, "status", "", "Filter by status: pending, running, completed, failed")
	flags.IntVar(&minVulns, "min-vulns", 0, "Only show scans with at least N vulnerabilities")
	flags.IntVar(&offset, "offset", 0, "Skip the first N scans")
	flags.IntVar(&limit, "limit", 0, "Return at most N scans (0 = no limit)")

	return cmd
}

func runScans(opts *Options, target, status string, minVulns, offset, limit int) error {
	arch, err := openArchive(opts)
	if err != nil {
		return err
	}
	defer arch.Close()

	filters := archive.ScanFilters{Target: target, Status: status}
	if minVulns > 0 {
		filters.MinVulnerabilities = &minVulns
	}

	q := archive.NewQuery(arch)
	scans, err := q.Scans(filters, archive.Pagination{Offset: offset, Limit: limit})
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
		return output.WriteJSON(w, scans)
	case "table":
		return output.WriteScanTable(w, scans, tableConfig(opts, w))
	default:
		return &ExitError{Code: 2, Message: fmt.Sprintf("unsupported output format: %s", opts.Format)}
	}
}
