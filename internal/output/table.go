// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	aqtable "github.com/aquasecurity/table"
	"github.com/aquasecurity/tml"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/bonial-oss/vuln-assess/internal/archive"
	"github.com/bonial-oss/vuln-assess/internal/bridge"
	"github.com/bonial-oss/vuln-assess/internal/types"
)

const maxDescriptionWords = 12

// TableConfig controls which columns are displayed.
type TableConfig struct {
	ShowEPSS   bool
	ShowKEV    bool
	ShowAI     bool
	IsTerminal bool // true when output goes to a terminal (enables ANSI styling)
}

// IsOutputToTerminal returns true if the writer is stdout connected to a
// character device (TTY). Returns false on Windows.
func IsOutputToTerminal(output io.Writer) bool {
	return output == os.Stdout && term.IsTerminal(int(os.Stdout.Fd()))
}

// WriteVulnerabilityTable renders archived assessments as a table with a
// severity summary line above it.
func WriteVulnerabilityTable(w io.Writer, vulns []archive.StoredVulnerability, cfg TableConfig) error {
	fmt.Fprintln(w, severitySummary(vulns))
	fmt.Fprintln(w)

	tw := newTableWriter(w, cfg.IsTerminal)
	tw.SetHeaders(vulnHeaderNames(cfg)...)
	for i := range vulns {
		tw.AddRow(vulnRowCells(&vulns[i], cfg)...)
	}
	tw.Render()
	return nil
}

// WriteScanTable renders archived scan summaries, newest first as given.
func WriteScanTable(w io.Writer, scans []types.ScanMetadata, cfg TableConfig) error {
	tw := newTableWriter(w, cfg.IsTerminal)
	tw.SetHeaders("Scan ID", "Target", "Status", "Started", "Duration", "Vulns", "Critical", "KEV")
	for i := range scans {
		tw.AddRow(scanRowCells(&scans[i])...)
	}
	tw.Render()
	return nil
}

// WriteScanReport renders the final report of one scan: the header,
// counters, and the highest-risk findings.
func WriteScanReport(w io.Writer, report *types.ScanReport, cfg TableConfig) error {
	title := fmt.Sprintf("Scan %s (%s)", report.ScanID, report.Target)
	if cfg.IsTerminal {
		_ = tml.Fprintf(w, "<underline><bold>%s</bold></underline>\n", title)
	} else {
		fmt.Fprintln(w, title)
		fmt.Fprintln(w, strings.Repeat("=", utf8.RuneCountInString(title)))
	}

	fmt.Fprintf(w, "Status: %s", report.Status)
	if d, ok := report.Duration(); ok {
		fmt.Fprintf(w, "  Duration: %s", d)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total: %d (LOW: %d, MEDIUM: %d, HIGH: %d, CRITICAL: %d, KEV: %d)\n\n",
		report.TotalVulnerabilities, report.LowCount, report.MediumCount,
		report.HighCount, report.CriticalCount, report.KEVCount)

	tw := newTableWriter(w, cfg.IsTerminal)
	tw.SetHeaders("CVE", "Host", "Port", "Severity", "CVSS", "Risk", "KEV", "Remediation")
	for _, result := range report.TopVulnerabilities(len(report.Results)) {
		tw.AddRow(resultRowCells(&result, cfg)...)
	}
	tw.Render()
	return nil
}

// WriteStats renders archive and bridge counters as a flat table.
func WriteStats(w io.Writer, archiveStats archive.Stats, bridgeStats *bridge.Stats, cfg TableConfig) error {
	tw := newTableWriter(w, cfg.IsTerminal)
	tw.SetHeaders("Metric", "Value")
	tw.AddRow("Archived scans", fmt.Sprintf("%d", archiveStats.Scans))
	tw.AddRow("Archived vulnerabilities", fmt.Sprintf("%d", archiveStats.Vulnerabilities))
	tw.AddRow("Archived scan results", fmt.Sprintf("%d", archiveStats.ScanResults))
	if bridgeStats != nil {
		tw.AddRow("Active scans", fmt.Sprintf("%d", bridgeStats.ActiveScans))
		tw.AddRow("Results processed", fmt.Sprintf("%d", bridgeStats.ResultsProcessed))
		tw.AddRow("Guidance cache hits", fmt.Sprintf("%d", bridgeStats.GuidanceCacheHits))
		tw.AddRow("Guidance cache misses", fmt.Sprintf("%d", bridgeStats.GuidanceCacheMiss))
		tw.AddRow("Avg enhancement time", fmt.Sprintf("%.1f ms", bridgeStats.AvgEnhancementMS))
	}
	tw.Render()
	return nil
}

// newTableWriter creates a table writer with the standard configuration:
// borders, auto-merge, and row separators. When isTerminal is true,
// header and line styles use ANSI formatting.
func newTableWriter(w io.Writer, isTerminal bool) *aqtable.Table {
	tw := aqtable.New(w)
	if isTerminal {
		tw.SetHeaderStyle(aqtable.StyleBold)
		tw.SetLineStyle(aqtable.StyleDim)
	}
	tw.SetBorders(true)
	tw.SetAutoMerge(true)
	tw.SetRowLines(true)
	return tw
}

// vulnHeaderNames returns column header names based on config.
func vulnHeaderNames(cfg TableConfig) []string {
	cols := []string{"CVE ID", "Severity", "CVSS", "Name"}
	if cfg.ShowKEV {
		cols = append(cols, "KEV")
	}
	if cfg.ShowEPSS {
		cols = append(cols, "EPSS", "EPSS %ile")
	}
	if cfg.ShowAI {
		cols = append(cols, "Risk", "Priority")
	}
	return append(cols, "Cached At")
}

// vulnRowCells returns the cell values for a single archived assessment.
func vulnRowCells(v *archive.StoredVulnerability, cfg TableConfig) []string {
	severity := v.Score.Severity().String()
	if cfg.IsTerminal {
		severity = colorizeSeverity(severity)
	}
	cols := []string{
		v.CVEID,
		severity,
		fmt.Sprintf("%.1f", v.Score.CVSSBaseScore()),
		truncateWords(v.Score.Name, maxDescriptionWords),
	}
	if cfg.ShowKEV {
		cols = append(cols, formatKEV(v.Score.IsKEV()))
	}
	if cfg.ShowEPSS {
		cols = append(cols, formatEPSSScore(v.Score.EPSS), formatEPSSPercentile(v.Score.EPSS))
	}
	if cfg.ShowAI {
		cols = append(cols, formatRisk(v.Score.AIRiskScore), v.Score.AIPriority)
	}
	return append(cols, v.CachedAt.Format(time.RFC3339))
}

func scanRowCells(m *types.ScanMetadata) []string {
	duration := "-"
	if m.EndTime != nil {
		duration = (time.Duration(*m.EndTime-m.StartTime) * time.Second).String()
	}
	return []string{
		m.ScanID,
		m.Target,
		string(m.Status),
		time.Unix(m.StartTime, 0).UTC().Format(time.RFC3339),
		duration,
		fmt.Sprintf("%d", m.TotalVulnerabilities),
		fmt.Sprintf("%d", m.CriticalCount),
		fmt.Sprintf("%d", m.KEVCount),
	}
}

func resultRowCells(r *types.ScanResult, cfg TableConfig) []string {
	severity := "-"
	cvssScore := "-"
	risk := "-"
	kev := formatKEV(false)
	if r.VulnerabilityScore != nil {
		sev := r.VulnerabilityScore.Severity().String()
		if cfg.IsTerminal {
			sev = colorizeSeverity(sev)
		}
		severity = sev
		cvssScore = fmt.Sprintf("%.1f", r.VulnerabilityScore.CVSSBaseScore())
		risk = formatRisk(r.VulnerabilityScore.AIRiskScore)
		kev = formatKEV(r.IsKEV())
	}
	return []string{
		r.CVEID,
		r.Host,
		fmt.Sprintf("%d", r.Port),
		severity,
		cvssScore,
		risk,
		kev,
		truncateWords(r.RemediationGuidance, maxDescriptionWords),
	}
}

// severitySummary returns a line like:
// Total: 5 (NONE: 0, LOW: 2, MEDIUM: 1, HIGH: 1, CRITICAL: 1)
func severitySummary(vulns []archive.StoredVulnerability) string {
	counts := map[string]int{
		"NONE":     0,
		"LOW":      0,
		"MEDIUM":   0,
		"HIGH":     0,
		"CRITICAL": 0,
	}
	for i := range vulns {
		sev := strings.ToUpper(vulns[i].Score.Severity().String())
		if _, ok := counts[sev]; ok {
			counts[sev]++
		}
	}
	return fmt.Sprintf("Total: %d (NONE: %d, LOW: %d, MEDIUM: %d, HIGH: %d, CRITICAL: %d)",
		len(vulns), counts["NONE"], counts["LOW"], counts["MEDIUM"], counts["HIGH"], counts["CRITICAL"])
}

// severityColors maps severity names to color functions.
var severityColors = map[string]func(a ...any) string{
	"NONE":     color.New(color.FgCyan).SprintFunc(),
	"LOW":      color.New(color.FgBlue).SprintFunc(),
	"MEDIUM":   color.New(color.FgYellow).SprintFunc(),
	"HIGH":     color.New(color.FgHiRed).SprintFunc(),
	"CRITICAL": color.New(color.FgRed).SprintFunc(),
}

// colorizeSeverity returns the severity string wrapped in ANSI color codes.
func colorizeSeverity(severity string) string {
	if fn, ok := severityColors[strings.ToUpper(severity)]; ok {
		return fn(severity)
	}
	return severity
}

// truncateWords limits text to maxWords words, appending "..." if truncated.
func truncateWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

// formatRisk formats the AI risk score or returns "-" if absent.
func formatRisk(risk *float64) string {
	if risk == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *risk)
}

// formatEPSSScore formats the EPSS score or returns "-" if absent.
func formatEPSSScore(epss *types.EpssInfo) string {
	if epss == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", epss.Score)
}

// formatEPSSPercentile formats the EPSS percentile (0-1 scaled to 0-100) or returns "-" if absent.
func formatEPSSPercentile(epss *types.EpssInfo) string {
	if epss == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", epss.Percentile*100)
}

// formatKEV returns "YES" for KEV-listed CVEs, "NO" otherwise.
func formatKEV(listed bool) string {
	if listed {
		return "YES"
	}
	return "NO"
}
