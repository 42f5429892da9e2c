package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/caprock-exchange/match-cli/internal/engine"
)

// moneyPrinter renders amounts with thousands separators.
var moneyPrinter = message.NewPrinter(language.AmericanEnglish)

func formatMoney(amount int64) string {
	return moneyPrinter.Sprintf("%d", amount)
}

func openOutput(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create output file %s", path)
	}
	return f, func() { _ = f.Close() }, nil
}

func outputRankedMatches(report *engine.RankReport, format, outputPath string) error {
	w, done, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer done()

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "csv":
		return writeRankedCSV(w, report)
	case "table":
		return writeRankedTable(w, report)
	default:
		return eris.Errorf("unsupported format %q", format)
	}
}

func writeRankedCSV(w *os.File, report *engine.RankReport) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"allocator_id", "org_id", "allocator_name", "score", "tier", "remaining_allocation", "reasons"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "write CSV header")
	}

	for _, m := range report.Matches {
		row := []string{
			m.AllocatorID,
			m.OrgID,
			m.AllocatorName,
			fmt.Sprintf("%d", m.Score),
			string(m.Tier),
			fmt.Sprintf("%d", m.RemainingAllocation),
			strings.Join(m.Reasons, "; "),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "write CSV row")
		}
	}
	return nil
}

func writeRankedTable(w *os.File, report *engine.RankReport) error {
	fmt.Fprintf(w, "Request %s (%s)\n\n", report.RequestID, report.Source)

	header := fmt.Sprintf("%-14s %-40s %6s %-10s %18s\n",
		"Allocator", "Name", "Score", "Tier", "Remaining")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 92)); err != nil {
		return eris.Wrap(err, "write table separator")
	}

	for _, m := range report.Matches {
		name := m.AllocatorName
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		line := fmt.Sprintf("%-14s %-40s %6d %-10s %18s\n",
			m.AllocatorID, name, m.Score, m.Tier, formatMoney(m.RemainingAllocation))
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "write table row")
		}
	}
	return nil
}

func outputScanMatches(report *engine.ScanReport, format, outputPath string) error {
	if format == "xlsx" {
		return writeScanXLSX(report, outputPath)
	}

	w, done, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer done()

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "csv":
		return writeScanCSV(w, report)
	case "table":
		return writeScanTable(w, report)
	default:
		return eris.Errorf("unsupported format %q", format)
	}
}

func writeScanCSV(w *os.File, report *engine.ScanReport) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"request_id", "project_name", "state", "amount", "score", "tier", "reasons"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "write CSV header")
	}

	for _, m := range report.Matches {
		row := []string{
			m.RequestID,
			m.ProjectName,
			m.State,
			fmt.Sprintf("%d", m.Amount),
			fmt.Sprintf("%d", m.Score),
			string(m.Tier),
			strings.Join(m.Reasons, "; "),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "write CSV row")
		}
	}
	return nil
}

func writeScanTable(w *os.File, report *engine.ScanReport) error {
	fmt.Fprintf(w, "Org %s, scan %s\n\n", report.OrgID, report.ScanID)

	header := fmt.Sprintf("%-14s %-40s %-5s %15s %6s %-10s\n",
		"Request", "Project", "State", "Amount", "Score", "Tier")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 95)); err != nil {
		return eris.Wrap(err, "write table separator")
	}

	for _, m := range report.Matches {
		name := m.ProjectName
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		line := fmt.Sprintf("%-14s %-40s %-5s %15s %6d %-10s\n",
			m.RequestID, name, m.State, formatMoney(m.Amount), m.Score, m.Tier)
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "write table row")
		}
	}
	return nil
}

func writeScanXLSX(report *engine.ScanReport, outputPath string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Scan Results")
	if err != nil {
		return eris.Wrap(err, "add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Request", "Project", "State", "Amount", "Score", "Tier", "Reasons"} {
		header.AddCell().Value = h
	}

	for _, m := range report.Matches {
		row := sheet.AddRow()
		row.AddCell().Value = m.RequestID
		row.AddCell().Value = m.ProjectName
		row.AddCell().Value = m.State
		row.AddCell().SetInt64(m.Amount)
		row.AddCell().SetInt(m.Score)
		row.AddCell().Value = string(m.Tier)
		row.AddCell().Value = strings.Join(m.Reasons, "; ")
	}

	if err := file.Save(outputPath); err != nil {
		return eris.Wrapf(err, "save xlsx %s", outputPath)
	}
	return nil
}
