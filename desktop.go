package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

// shellPage is served when no frontend build is given. It only shows that
// the bindings are live; the real editor is a separate frontend build.
const shellPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>nodes</title></head>
<body><pre id="out">waiting for graph:changed</pre>
<script>
window.runtime.EventsOn("graph:changed", async () => {
  const frame = await window.go.main.App.Frame();
  document.getElementById("out").textContent = JSON.stringify(frame, null, 2);
});
</script></body></html>`

var desktopCmd = &cobra.Command{
	Use:   "desktop [script]",
	Short: "Open the graph editor window",
	Long: `Starts the desktop editor. If a script is given it is loaded before the
window opens. --assets points at a built frontend directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		assets, _ := cmd.Flags().GetString("assets")

		app, err := newAppFromFlags(cmd)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			if _, err := loadScriptFile(cmd, app, args[0]); err != nil {
				return err
			}
		}

		server := &assetserver.Options{
			Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				fmt.Fprint(w, shellPage)
			}),
		}
		if assets != "" {
			server = &assetserver.Options{Assets: os.DirFS(assets)}
		}

		return wails.Run(&options.App{
			Title:       "nodes",
			Width:       1280,
			Height:      800,
			AssetServer: server,
			OnStartup:   app.startup,
			Bind:        []interface{}{app},
		})
	},
}

func init() {
	desktopCmd.Flags().String("assets", "", "Directory with a built frontend")
	rootCmd.AddCommand(desktopCmd)
}
