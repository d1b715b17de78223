package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <script>",
	Short: "Export the graph built by a session script",
	Long: `Runs a session script and prints the resulting graph, either as a Mermaid
flowchart (graph LR) or as the JSON frame a frontend renders.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if format != "mermaid" && format != "json" {
			return fmt.Errorf("unknown format %q: want mermaid or json", format)
		}

		app, err := newAppFromFlags(cmd)
		if err != nil {
			return err
		}
		if _, err := loadScriptFile(cmd, app, args[0]); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if format == "mermaid" {
			_, err := fmt.Fprint(out, app.Mermaid())
			return err
		}
		frame, err := app.Frame()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(frame)
	},
}

func init() {
	graphCmd.Flags().StringP("format", "f", "mermaid", "Output format: mermaid or json")
	rootCmd.AddCommand(graphCmd)
}
