// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bonial-oss/vuln-assess/internal/ai"
	"github.com/bonial-oss/vuln-assess/internal/aicache"
	"github.com/bonial-oss/vuln-assess/internal/archive"
	"github.com/bonial-oss/vuln-assess/internal/assessor"
	"github.com/bonial-oss/vuln-assess/internal/bridge"
	"github.com/bonial-oss/vuln-assess/internal/datasource/epss"
	"github.com/bonial-oss/vuln-assess/internal/datasource/kev"
	"github.com/bonial-oss/vuln-assess/internal/datasource/nvd"
	"github.com/bonial-oss/vuln-assess/internal/output"
)

// Version is set at build time via ldflags.
var Version = "dev"

// ExitError signals a non-zero exit code with an optional message.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// Options holds the persistent CLI flag values shared by all subcommands.
type Options struct {
	DBPath       string
	CacheDir     string
	SkipDBUpdate bool
	NoKEV        bool
	NoEPSS       bool
	NoAI         bool
	NVDAPIKey    string
	Format       string
	Output       string
	Debug        bool
}

// NewRootCommand creates the root cobra command with all subcommands.
func NewRootCommand() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:     "vuln-assess",
		Short:   "Assess, archive, and query CVE vulnerability data",
		Version: Version,
		Long: `vuln-assess scores CVEs with the CVSS v3.1 base metrics, enriches them
with CISA KEV status, EPSS probability, and a heuristic risk rating, and
keeps every assessment and scan in a local embedded archive.

Usage:
  vuln-assess assess CVE-2021-44228
  vuln-assess scan --target 10.0.0.0/24 --input detections.json
  vuln-assess query --severity critical --kev-only
  vuln-assess export --format csv -o report.csv`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogging(opts.Debug)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.DBPath, "db", "", "Archive database file (default ~/.vuln-assess/archive.db)")
	flags.StringVar(&opts.CacheDir, "cache-dir", "", "Override feed cache directory")
	flags.BoolVar(&opts.SkipDBUpdate, "skip-db-update", false, "Use cached feed data without update check")
	flags.BoolVar(&opts.NoKEV, "no-kev", false, "Disable KEV enrichment")
	flags.BoolVar(&opts.NoEPSS, "no-epss", false, "Disable EPSS enrichment")
	flags.BoolVar(&opts.NoAI, "no-ai", false, "Disable heuristic risk enhancement")
	flags.StringVar(&opts.NVDAPIKey, "nvd-api-key", "", "NVD API key (raises rate limits)")
	flags.StringVar(&opts.Format, "format", "table", "Output format: table, json")
	flags.StringVarP(&opts.Output, "output", "o", "", "Write to file instead of stdout")
	flags.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newAssessCommand(opts),
		newScanCommand(opts),
		newQueryCommand(opts),
		newScansCommand(opts),
		newExportCommand(opts),
		newStatsCommand(opts),
	)

	return cmd
}

func setupLogging(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

// dataDir resolves the base directory for the archive and feed caches.
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "vuln-assess"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, ".vuln-assess"), nil
}

func (o *Options) archivePath() (string, error) {
	if o.DBPath != "" {
		return o.DBPath, nil
	}
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "archive.db"), nil
}

func (o *Options) cacheDir() (string, error) {
	if o.CacheDir != "" {
		return o.CacheDir, nil
	}
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache"), nil
}

// openArchive opens the configured archive database.
func openArchive(opts *Options) (*archive.Archive, error) {
	path, err := opts.archivePath()
	if err != nil {
		return nil, err
	}
	return archive.Open(path)
}

// buildAssessor wires the enrichment sources according to the flags and
// loads the bulk feeds.
func buildAssessor(opts *Options) (*assessor.Assessor, ai.Advisor, error) {
	var kevSource assessor.KevSource
	var epssSource assessor.EpssSource
	var advisor ai.Advisor

	cacheDir, err := opts.cacheDir()
	if err != nil {
		return nil, nil, err
	}

	if !opts.NoKEV {
		src := kev.NewSource(cacheDir)
		if err := src.Load(opts.SkipDBUpdate); err != nil {
			return nil, nil, fmt.Errorf("loading KEV data: %w", err)
		}
		kevSource = src
	}
	if !opts.NoEPSS {
		src := epss.NewSource(cacheDir)
		if err := src.Load(opts.SkipDBUpdate); err != nil {
			return nil, nil, fmt.Errorf("loading EPSS data: %w", err)
		}
		epssSource = src
	}
	if !opts.NoAI {
		advisor = ai.NewHeuristicAdvisor()
	}

	nvdSource := nvd.NewSource(opts.NVDAPIKey)

	return assessor.New(nvdSource, kevSource, epssSource, advisor, assessor.NewMemoryScoreCache()), advisor, nil
}

// buildBridge wires the full scan pipeline on top of the assessor.
func buildBridge(opts *Options, arch *archive.Archive) (*bridge.Bridge, error) {
	a, advisor, err := buildAssessor(opts)
	if err != nil {
		return nil, err
	}
	return bridge.New(a, advisor, aicache.New(256, time.Hour), arch), nil
}

// outputWriter resolves the -o flag into a writer. The returned close
// function is a no-op for stdout.
func outputWriter(opts *Options) (io.Writer, func() error, error) {
	if opts.Output != "" && opts.Output != "-" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return nil, nil, fmt.Errorf("creating output file: %w", err)
		}
		return f, f.Close, nil
	}
	return os.Stdout, func() error { return nil }, nil
}

func tableConfig(opts *Options, w io.Writer) output.TableConfig {
	return output.TableConfig{
		ShowKEV:    !opts.NoKEV,
		ShowEPSS:   !opts.NoEPSS,
		ShowAI:     !opts.NoAI,
		IsTerminal: output.IsOutputToTerminal(w),
	}
}
