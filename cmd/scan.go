// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bonial-oss/vuln-assess/internal/output"
)

// detection is one scanner finding read from the --input file.
type detection struct {
	CVEID       string `json:"cve_id"`
	Host        string `json:"host"`
	Port        uint16 `json:"port"`
	PluginOID   string `json:"plugin_oid,omitempty"`
	Description string `json:"description,omitempty"`
}

func newScanCommand(opts *Options) *cobra.Command {
	var target string
	var inputPath string

	cmd := &cobra.Command{
		Use:   "scan --target TARGET --input FILE",
		Short: "Run detections from a scanner export through assessment and archive the scan",
		Long: `scan reads a JSON array of detections ({"cve_id","host","port",...}),
assesses each CVE, attaches remediation guidance, and stores the scan
report plus every result in the archive. Detections whose assessment
fails are still recorded, without a score.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, opts, target, inputPath)
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Scan target label (e.g. a CIDR or hostname)")
	cmd.Flags().StringVar(&inputPath, "input", "-", "Detections JSON file (- for stdin)")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func runScan(cmd *cobra.Command, opts *Options, target, inputPath string) error {
	detections, err := readDetections(inputPath)
	if err != nil {
		return err
	}
	if len(detections) == 0 {
		return &ExitError{Code: 2, Message: "no detections in input"}
	}

	arch, err := openArchive(opts)
	if err != nil {
		return err
	}
	defer arch.Close()

	b, err := buildBridge(opts, arch)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	scanID := b.StartScan(target)

	for _, d := range detections {
		if _, err := b.OnVulnerabilityDetected(ctx, scanID, d.CVEID, d.Host, d.Port, d.PluginOID, d.Description); err != nil {
			_, _ = b.AbortScan(scanID)
			return fmt.Errorf("processing detection %s: %w", d.CVEID, err)
		}
	}

	report, err := b.EndScan(scanID)
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
		return output.WriteJSON(w, report)
	case "table":
		return output.WriteScanReport(w, report, tableConfig(opts, w))
	default:
		return &ExitError{Code: 2, Message: fmt.Sprintf("unsupported output format: %s", opts.Format)}
	}
}

func readDetections(path string) ([]detection, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading detections: %w", err)
	}

	var detections []detection
	if err := json.Unmarshal(data, &detections); err != nil {
		return nil, fmt.Errorf("parsing detections: %w", err)
	}
	for i, d := range detections {
		if !cveIDPattern.MatchString(d.CVEID) {
			return nil, &ExitError{Code: 2, Message: fmt.Sprintf("detection %d: invalid CVE id: %q", i, d.CVEID)}
		}
		if d.Host == "" {
			return nil, &ExitError{Code: 2, Message: fmt.Sprintf("detection %d: missing host", i)}
		}
	}
	return detections, nil
}
