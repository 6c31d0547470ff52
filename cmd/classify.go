package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rseng/rseng-activity/internal/longevity"
	"github.com/rseng/rseng-activity/internal/model"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify repositories by how long they stayed active",
	Long: "Reads a results.json written by collect, evaluates the month grid against --now, " +
		"and writes results.csv plus the highest-value reports next to it.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		resultsPath, _ := cmd.Flags().GetString("results")
		if resultsPath == "" {
			return eris.New("classify: --results is required")
		}
		nowFlag, _ := cmd.Flags().GetString("now")
		now, err := parseNow(nowFlag, time.Now())
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		if format != "table" && format != "json" {
			return eris.Errorf("classify: unknown --format %q (table, json)", format)
		}

		records, err := longevity.LoadResults(resultsPath)
		if err != nil {
			return err
		}

		opts := longevity.Options{
			MaxMonth:        cfg.Classify.MaxMonth,
			HighValueMonth:  cfg.Classify.HighValueMonth,
			ComputeRelative: cfg.Classify.ComputeRelative,
		}
		report := longevity.Classify(records, now, opts)
		if len(report.Excluded) > 0 {
			zap.L().Warn("classify: records without usable dates", zap.Int("count", len(report.Excluded)))
		}

		dir := filepath.Dir(resultsPath)
		if err := longevity.WriteArtifacts(dir, report, records); err != nil {
			return err
		}

		if format == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report.Months)
		}
		fmt.Println(formatMonths(report.Months))
		fmt.Printf("High value (any month >= %d, terminal): %d repositories\n", opts.HighValueMonth, len(report.Global))
		fmt.Printf("Reports written to %s\n", dir)
		return nil
	},
}

func init() {
	classifyCmd.Flags().String("results", "", "results.json produced by collect")
	classifyCmd.Flags().String("now", "", "reference date YYYY-MM-DD (default: current time)")
	classifyCmd.Flags().String("format", "table", "output format: table or json")
	rootCmd.AddCommand(classifyCmd)
}

// parseNow returns the reference time for classification. An empty value
// means fallback.
func parseNow(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback.UTC(), nil
	}
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "classify: invalid --now %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func formatMonths(months []longevity.MonthStat) string {
	headers := []string{"Month", "Updated", "Eligible", "Percent"}
	rows := make([][]string, 0, len(months))
	for _, m := range months {
		rows = append(rows, []string{
			strconv.Itoa(m.Month),
			strconv.Itoa(m.Updated),
			strconv.Itoa(m.Eligible),
			m.Percent.String(),
		})
	}
	aligns := []columnAlignment{alignRight, alignRight, alignRight, alignRight}
	return renderTable(headers, rows, aligns)
}
