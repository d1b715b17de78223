package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/chazu/nodes/internal/logging"
	"github.com/chazu/nodes/internal/watch"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a session script and print its evaluations",
	Long: `Builds the graph described by a session script and prints the result of
every (eval-port ...) form in it. Variables given with --var are bound before
the script runs; the script's own (bind ...) forms take precedence. With
--watch the script is run again each time the file is saved.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vars, _ := cmd.Flags().GetStringArray("var")
		watchMode, _ := cmd.Flags().GetBool("watch")

		app, err := newAppFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := applyVars(app, vars); err != nil {
			return err
		}

		if !watchMode {
			return runScript(cmd, app, args[0])
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		logger := logging.FromContext(ctx)

		if err := runScript(cmd, app, args[0]); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
		logger.Info("watching for changes", "path", args[0])
		return watch.File(ctx, args[0], watch.DefaultDebounce, logger, func() {
			fmt.Fprintln(cmd.OutOrStdout(), "---")
			if err := runScript(cmd, app, args[0]); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
		})
	},
}

// runScript loads path into app and prints the result in the format the
// flags ask for.
func runScript(cmd *cobra.Command, app *App, path string) error {
	jsonMode, _ := cmd.Flags().GetBool("json")
	withMetrics, _ := cmd.Flags().GetBool("metrics")

	res, err := loadScriptFile(cmd, app, path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonMode {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printEvaluations(out, res.Evaluations)
	}
	if withMetrics {
		return app.metrics.WriteText(out)
	}
	return nil
}

func init() {
	runCmd.Flags().StringArray("var", nil, "Bind a context variable, as name=value (repeatable)")
	runCmd.Flags().Bool("json", false, "Print the result as JSON")
	runCmd.Flags().Bool("metrics", false, "Print evaluation metrics in the Prometheus text format")
	runCmd.Flags().BoolP("watch", "w", false, "Re-run the script whenever it changes")
	rootCmd.AddCommand(runCmd)
}

// applyVars parses name=value pairs and binds them on app.
func applyVars(app *App, vars []string) error {
	for _, kv := range vars {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid --var %q: want name=value", kv)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid --var %q: %w", kv, err)
		}
		if err := app.SetVariable(name, v); err != nil {
			return err
		}
	}
	return nil
}

func printEvaluations(w io.Writer, evals []EvaluationData) {
	for _, ev := range evals {
		switch {
		case ev.Error != "":
			fmt.Fprintf(w, "%s: %s\n", ev.Label, ev.Error)
		case ev.Value == nil:
			fmt.Fprintf(w, "%s = <none>\n", ev.Label)
		default:
			fmt.Fprintf(w, "%s = %s\n", ev.Label, strconv.FormatFloat(*ev.Value, 'g', -1, 64))
		}
	}
}
