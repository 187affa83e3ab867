// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bonial-oss/vuln-assess/internal/output"
)

func newStatsCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show archive record counts",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runStats(opts)
		},
	}
	return cmd
}

func runStats(opts *Options) error {
	arch, err := openArchive(opts)
	if err != nil {
		return err
	}
	defer arch.Close()

	stats, err := arch.Statistics()
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
		return output.WriteJSON(w, stats)
	case "table":
		return output.WriteStats(w, stats, nil, tableConfig(opts, w))
	default:
		return &ExitError{Code: 2, Message: fmt.Sprintf("unsupported output format: %s", opts.Format)}
	}
}
