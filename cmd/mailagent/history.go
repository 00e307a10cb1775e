package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nhle/mailagent/internal/app"
	"github.com/nhle/mailagent/internal/model"
	"github.com/nhle/mailagent/internal/store"
)

var (
	historyLimit  int
	historyStatus string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "only list runs with this status (success or failed)")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past task runs",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its step outcomes",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run from history",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

func openHistory() (*store.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.OpenStore(cfg.Store)
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	s, err := openHistory()
	if err != nil {
		return err
	}
	defer s.Close()

	filter := store.RunFilter{Limit: historyLimit}
	if historyStatus != "" {
		filter.Status = &historyStatus
	}

	runs, err := s.ListRuns(cmd.Context(), filter)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if outputJSON {
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tSTATUS\tSTEPS\tFAILED\tTASK")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Status, r.StepCount, r.FailureCount, truncate(r.Task, 50))
	}
	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	s, err := openHistory()
	if err != nil {
		return err
	}
	defer s.Close()

	run, err := s.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if outputJSON {
		return writeJSON(w, run)
	}
	printRun(w, run)
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	s, err := openHistory()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.DeleteRun(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
	return nil
}

func printRun(w io.Writer, run *model.RunRecord) {
	fmt.Fprintf(w, "Run:    %s\n", run.ID)
	fmt.Fprintf(w, "When:   %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Task:   %s\n", run.Task)
	fmt.Fprintf(w, "Status: %s\n\n", run.Status)
	fmt.Fprintf(w, "Plan:\n%s\n\n", indent(run.Plan))

	for _, s := range run.Steps {
		fmt.Fprintf(w, "%d. [%s] %s\n", s.Position, s.Status, s.RawText)
		if s.Error != "" {
			fmt.Fprintf(w, "   error: %s\n", s.Error)
		}
		if s.Diagnostics != "" {
			fmt.Fprintf(w, "   diagnostics: %s\n", s.Diagnostics)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
