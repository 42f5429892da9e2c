package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scanCmd = &cobra.Command{
	Use:   "scan <org-id>",
	Short: "Scan open funding requests for an allocator org",
	Long: `Score every open funding request against one allocator organization's
mandate records and rank the compatible ones. The scan runs entirely on the
local pipeline; each request carries its best score across the org's
allocation years.

Examples:
  # Scan for an allocator with the default score floor
  scan org-delta

  # Persist the results under a scan id
  scan org-delta --save

  # Export the top 50 to a spreadsheet
  scan org-delta --limit 50 --format xlsx --output candidates.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	f := scanCmd.Flags()
	f.Int("min-score", -1, "minimum score threshold (overrides config)")
	f.Int("limit", 0, "maximum number of results (0=use config default)")
	f.String("output", "", "output file path (default: stdout)")
	f.String("format", "table", "output format: table, csv, json, or xlsx")
	f.Bool("save", false, "persist results to match_results")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orgID := args[0]
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	save, _ := cmd.Flags().GetBool("save")

	switch format {
	case "table", "csv", "json", "xlsx":
	default:
		return eris.Errorf("scan: --format must be table, csv, json, or xlsx (got %q)", format)
	}
	if format == "xlsx" && outputPath == "" {
		return eris.New("scan: --format xlsx requires --output")
	}

	if v, _ := cmd.Flags().GetInt("min-score"); v >= 0 {
		cfg.Match.ScanMinScore = v
	}
	if v, _ := cmd.Flags().GetInt("limit"); v > 0 {
		cfg.Match.MaxResults = v
	}

	env, err := initEngine(ctx, true)
	if err != nil {
		return err
	}
	defer env.Close()

	report, err := env.Engine.ScanForAllocator(ctx, orgID, save)
	if err != nil {
		return eris.Wrapf(err, "scan: org %s", orgID)
	}

	zap.L().Info("scan complete",
		zap.String("org_id", orgID),
		zap.String("scan_id", report.ScanID.String()),
		zap.Int("matches", len(report.Matches)),
		zap.Bool("saved", report.Saved),
	)

	if len(report.Matches) == 0 {
		fmt.Printf("No compatible open requests for org %s.\n", orgID)
		return nil
	}

	if err := outputScanMatches(report, format, outputPath); err != nil {
		return err
	}
	if report.Saved {
		fmt.Printf("Saved %d results under scan %s\n", len(report.Matches), report.ScanID)
	}
	return nil
}
