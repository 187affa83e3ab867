// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bonial-oss/vuln-assess/internal/archive"
)

func newExportCommand(opts *Options) *cobra.Command {
	qf := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export archived assessments as JSON or CSV",
		Long: `export renders the filtered assessment set in a machine-readable
format. --format json produces pretty-printed JSON; --format csv
produces rows with the header "CVE ID,Severity,CVSS Score,Is KEV,Cached At"
and RFC3339 timestamps.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runExport(opts, qf)
		},
	}

	qf.register(cmd)
	return cmd
}

func runExport(opts *Options, qf *queryFlags) error {
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

	var rendered string
	switch opts.Format {
	case "json", "table":
		// table is the global default; export treats it as JSON.
		rendered, err = q.ExportJSON(qf.filters(), field, order)
	case "csv":
		rendered, err = q.ExportCSV(qf.filters(), field, order)
	default:
		return &ExitError{Code: 2, Message: fmt.Sprintf("unsupported export format: %s", opts.Format)}
	}
	if err != nil {
		return err
	}

	w, closeOutput, err := outputWriter(opts)
	if err != nil {
		return err
	}
	defer closeOutput()

	_, err = io.WriteString(w, rendered)
	return err
}
