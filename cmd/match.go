package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var matchCmd = &cobra.Command{
	Use:   "match <request-id>",
	Short: "Rank allocators for a funding request",
	Long: `Rank allocator organizations for one funding request.

By default the authoritative scoring service is consulted when enabled in
config; an auth rejection or an unreachable service falls back to the local
pipeline over the registry. Each organization appears once, under its most
recent registration, carrying its best allocation-year score.

Examples:
  # Rank allocators for a request
  match req-8842

  # Force the local pipeline and keep only strong matches
  match req-8842 --local --min-score 65

  # Export the ranking to CSV
  match req-8842 --format csv --output matches.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	f := matchCmd.Flags()
	f.String("token", "", "bearer token forwarded to the remote scoring service")
	f.Bool("local", false, "skip the remote scoring service")
	f.Int("min-score", -1, "minimum score threshold (overrides config)")
	f.Int("limit", 0, "maximum number of results (0=use config default)")
	f.String("output", "", "output file path (default: stdout)")
	f.String("format", "table", "output format: table, csv, or json")

	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	requestID := args[0]
	token, _ := cmd.Flags().GetString("token")
	local, _ := cmd.Flags().GetBool("local")
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")

	if format != "table" && format != "csv" && format != "json" {
		return eris.Errorf("match: --format must be table, csv, or json (got %q)", format)
	}

	if v, _ := cmd.Flags().GetInt("min-score"); v >= 0 {
		cfg.Match.RankMinScore = v
	}
	if v, _ := cmd.Flags().GetInt("limit"); v > 0 {
		cfg.Match.MaxResults = v
	}

	env, err := initEngine(ctx, local)
	if err != nil {
		return err
	}
	defer env.Close()

	report, err := env.Engine.MatchAllocators(ctx, requestID, token)
	if err != nil {
		return eris.Wrapf(err, "match: request %s", requestID)
	}

	zap.L().Info("ranking complete",
		zap.String("request_id", requestID),
		zap.String("source", string(report.Source)),
		zap.Int("matches", len(report.Matches)),
	)

	if len(report.Matches) == 0 {
		fmt.Printf("No allocator matches for request %s.\n", requestID)
		return nil
	}

	return outputRankedMatches(report, format, outputPath)
}
