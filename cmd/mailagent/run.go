package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/mailagent/internal/app"
	"github.com/nhle/mailagent/internal/model"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Plan and execute a task",
	Long: `Ask the language model for a plan, then execute every recognized step.
The task is read from the arguments, or from stdin when the only argument is "-".

Examples:
  mailagent run "Read my last 2 emails and categorize them"
  echo "Send bob@example.com a note saying I'm late" | mailagent run -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func runTask(cmd *cobra.Command, args []string) error {
	task, err := readTask(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Agent.ProcessTask(cmd.Context(), task)
	if err != nil {
		return err
	}

	if err := printResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	return resultError(result)
}

// resultError summarises a failed run. An auth failure stays in the
// chain so main can print the login hint.
func resultError(result *model.TaskResult) error {
	failures := result.Failures()
	if len(failures) == 0 {
		return nil
	}
	for _, o := range failures {
		if err := o.Err(); app.IsAuthError(err) {
			return fmt.Errorf("%d step(s) failed: %w", len(failures), err)
		}
	}
	return fmt.Errorf("%d step(s) failed", len(failures))
}

// readTask joins args into the task text, reading stdin for "-".
func readTask(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading task from stdin: %w", err)
		}
		args = []string{string(data)}
	}

	task := strings.TrimSpace(strings.Join(args, " "))
	if task == "" {
		return "", fmt.Errorf("empty task")
	}
	return task, nil
}

func printResult(w io.Writer, result *model.TaskResult) error {
	if outputJSON {
		return writeJSON(w, result)
	}

	fmt.Fprintf(w, "Plan:\n%s\n\n", indent(result.Plan))
	for i, o := range result.Results {
		mark := "ok"
		if o.IsFailure() {
			mark = "FAILED"
		}
		fmt.Fprintf(w, "%d. [%s] %s\n", i+1, mark, o.Step.Operation)
		if o.Error != "" {
			fmt.Fprintf(w, "   error: %s\n", o.Error)
		}
		printPayload(w, o.Result)
		for _, d := range o.Diagnostics {
			fmt.Fprintf(w, "   warning: %s %s: %s\n", d.Stage, d.MessageID, d.Error)
		}
	}
	fmt.Fprintf(w, "\nStatus: %s\n", result.Status)
	return nil
}

func printPayload(w io.Writer, payload any) {
	switch p := payload.(type) {
	case []model.Email:
		for _, e := range p {
			fmt.Fprintf(w, "   - %s  %-40.40s  %s  [%s]\n",
				e.ReceivedAt.Format("2006-01-02 15:04"),
				e.Subject,
				e.From,
				strings.Join(model.CategoryNames(e.Categories), ", "),
			)
		}
	case *model.Receipt:
		fmt.Fprintf(w, "   sent to %s\n", strings.Join(p.Recipients, ", "))
	case model.CategorizeResult:
		fmt.Fprintf(w, "   %s -> %s\n", p.MessageID, strings.Join(model.CategoryNames(p.Categories), ", "))
	}
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n  ")
}
