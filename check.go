package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <script>",
	Short: "Check the graph built by a session script for consistency",
	Long: `Runs a session script and validates the resulting graph: dangling links,
outputs without evaluators and cycles are errors, unconnected inputs are
warnings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppFromFlags(cmd)
		if err != nil {
			return err
		}
		if _, err := loadScriptFile(cmd, app, args[0]); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		errs := 0
		for _, f := range app.Validate() {
			if f.Severity == "error" {
				errs++
			}
			target := ""
			switch {
			case !f.Port.IsZero():
				target = "port " + f.Port.String() + ": "
			case !f.Node.IsZero():
				target = "node " + f.Node.String() + ": "
			}
			fmt.Fprintf(out, "%s: %s%s\n", f.Severity, target, f.Message)
		}
		if errs > 0 {
			return fmt.Errorf("validation failed: %d error(s)", errs)
		}
		fmt.Fprintln(out, "Graph is valid!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
