package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rseng/rseng-activity/internal/model"
	"github.com/rseng/rseng-activity/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect collection run history",
	Long:  "Commands for listing collection runs and the entries each run skipped.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collection runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initLedger(ctx, outputRoot(cmd))
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		dir, _ := cmd.Flags().GetString("dir")

		filter := store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		}
		if dir != "" {
			// Runs record the absolute path of their directory.
			if filter.OutDir, err = filepath.Abs(dir); err != nil {
				return eris.Wrap(err, "runs list: resolve --dir")
			}
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		fmt.Println(formatRunsList(runs))
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initLedger(ctx, outputRoot(cmd))
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs skips --

var runsSkipsCmd = &cobra.Command{
	Use:   "skips <run-id>",
	Short: "List the entries a run skipped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initLedger(ctx, outputRoot(cmd))
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		skips, err := st.ListSkips(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs skips")
		}
		phase, _ := cmd.Flags().GetString("phase")
		if phase != "" {
			skips = filterSkips(skips, model.Phase(phase))
		}

		if len(skips) == 0 {
			fmt.Fprintln(os.Stderr, "No skipped entries.")
			return nil
		}
		fmt.Println(formatSkips(skips))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, exhausted, failed)")
	runsListCmd.Flags().Int("limit", 20, "max number of runs to display")
	runsListCmd.Flags().String("dir", "", "only runs that wrote to this output directory")

	runsSkipsCmd.Flags().String("phase", "", "filter by phase (dates, activity)")

	runsCmd.PersistentFlags().String("outdir", "", "output root holding ledger.db (default output.dir)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsSkipsCmd)
	rootCmd.AddCommand(runsCmd)
}

func formatRunsList(runs []model.Run) string {
	headers := []string{"ID", "Directory", "Status", "Started", "Duration"}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		dur := ""
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			truncateID(r.ID),
			r.OutDir,
			string(r.Status),
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
		})
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}
	return renderTable(headers, rows, aligns)
}

func filterSkips(skips []model.SkipRecord, phase model.Phase) []model.SkipRecord {
	out := skips[:0:0]
	for _, s := range skips {
		if s.Phase == phase {
			out = append(out, s)
		}
	}
	return out
}

func formatSkips(skips []model.SkipRecord) string {
	headers := []string{"Phase", "Reason", "Repository", "Type", "Error"}
	rows := make([][]string, 0, len(skips))
	for _, s := range skips {
		repo := s.URL
		if repo == "" {
			repo = s.UID
		}
		rows = append(rows, []string{
			string(s.Phase),
			string(s.Reason),
			repo,
			s.ErrorType,
			truncate(s.Error, 60),
		})
	}
	return renderTable(headers, rows, nil)
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
