package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/mailagent/internal/app"
	"github.com/nhle/mailagent/internal/model"
	"github.com/nhle/mailagent/internal/plan"
)

var parsePlanFile string

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVar(&parsePlanFile, "plan-file", "", "parse this plan text instead of asking the model (- for stdin)")
}

var parseCmd = &cobra.Command{
	Use:   "parse [task]",
	Short: "Show the parsed plan for a task without executing it",
	Long: `Dry run: generate a plan for the task and print the steps the executor
would run. No mailbox call is made.

Examples:
  mailagent parse "Read my last 3 emails and categorize them"
  mailagent parse --plan-file plan.txt`,
	RunE: runParse,
}

func runParse(cmd *cobra.Command, args []string) error {
	planText, err := loadPlanText(cmd, args)
	if err != nil {
		return err
	}

	steps, format := plan.ParseAuto(planText)
	return printSteps(cmd.OutOrStdout(), steps, format)
}

func loadPlanText(cmd *cobra.Command, args []string) (string, error) {
	switch parsePlanFile {
	case "":
	case "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading plan from stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(parsePlanFile)
		if err != nil {
			return "", fmt.Errorf("reading plan file %s: %w", parsePlanFile, err)
		}
		return string(data), nil
	}

	task, err := readTask(args, cmd.InOrStdin())
	if err != nil {
		return "", err
	}

	cfg, logger, err := setup()
	if err != nil {
		return "", err
	}
	defer func() { _ = logger.Sync() }()

	planner, err := app.NewPlanner(cfg.AI)
	if err != nil {
		return "", err
	}
	return planner.Generate(cmd.Context(), task)
}

func printSteps(w io.Writer, steps []model.StepDescriptor, format plan.Format) error {
	if outputJSON {
		return writeJSON(w, map[string]any{"format": format, "steps": steps})
	}

	fmt.Fprintf(w, "Format: %s\n", format)
	if len(steps) == 0 {
		fmt.Fprintln(w, "No steps.")
		return nil
	}
	for i, s := range steps {
		if !s.Operation.Known() {
			fmt.Fprintf(w, "  (skipped) %s\n", s.RawText)
			continue
		}
		fmt.Fprintf(w, "  %s\n", plan.RenderStep(i+1, s))
	}
	return nil
}
