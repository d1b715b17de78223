package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs rootCmd with args and returns what it wrote. Flags keep their
// values between Execute calls, so every flag is reset first.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		reset(c.Flags())
	}

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeScript(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.lisp")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func TestRunCommand(t *testing.T) {
	out, _, err := execute(t, "run", "examples/sum.lisp")
	require.NoError(t, err)
	assert.Equal(t, "sum = 5\nscaled = 50\n", out)
}

func TestRunCommandVars(t *testing.T) {
	path := writeScript(t, `
(def a (node "Attr" :name "k"))
(eval-port (out a) "k")
(eval-port (out a) "again")
`)
	out, _, err := execute(t, "run", path, "--var", "k=7")
	require.NoError(t, err)
	assert.Equal(t, "k = 7\nagain = 7\n", out)

	out, _, err = execute(t, "run", path)
	require.NoError(t, err)
	assert.Equal(t, "k = <none>\nagain = <none>\n", out, "vars do not leak between runs")

	_, _, err = execute(t, "run", path, "--var", "k")
	assert.ErrorContains(t, err, "want name=value")
	_, _, err = execute(t, "run", path, "--var", "k=abc")
	assert.ErrorContains(t, err, `invalid --var "k=abc"`)
}

func TestRunCommandCycle(t *testing.T) {
	out, _, err := execute(t, "run", "examples/cycle.lisp")
	require.NoError(t, err)
	assert.Contains(t, out, "loop: cyclic graph:")
}

func TestRunCommandJSON(t *testing.T) {
	out, _, err := execute(t, "run", "examples/sum.lisp", "--json")
	require.NoError(t, err)

	var res ScriptResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 6, res.Nodes)
	require.Len(t, res.Evaluations, 2)
	assert.Equal(t, "scaled", res.Evaluations[1].Label)
	require.NotNil(t, res.Evaluations[1].Value)
	assert.Equal(t, 50.0, *res.Evaluations[1].Value)
}

func TestRunCommandMetrics(t *testing.T) {
	out, _, err := execute(t, "run", "examples/sum.lisp", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, `nodes_script_runs_total{outcome="ok"} 1`)
	assert.Contains(t, out, "nodes_graph_nodes 6")
}

func TestRunCommandScriptErrors(t *testing.T) {
	path := writeScript(t, `(node "Nope")`)
	out, errOut, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 script error(s)")
	assert.Empty(t, out)
	assert.Contains(t, errOut, `unknown kind "Nope"`)

	_, _, err = execute(t, "run", filepath.Join(t.TempDir(), "missing.lisp"))
	assert.ErrorContains(t, err, "failed to read script")
}

func TestGraphCommand(t *testing.T) {
	out, _, err := execute(t, "graph", "examples/sum.lisp")
	require.NoError(t, err)
	assert.Contains(t, out, "graph LR\n")
	assert.Contains(t, out, `["Binary Math"]`)
	assert.Contains(t, out, "-->|Inp|")

	out, _, err = execute(t, "graph", "examples/sum.lisp", "--format", "json")
	require.NoError(t, err)
	var frame struct {
		Nodes []json.RawMessage `json:"nodes"`
		Links []json.RawMessage `json:"links"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &frame))
	assert.Len(t, frame.Nodes, 6)
	assert.Len(t, frame.Links, 5)

	_, _, err = execute(t, "graph", "examples/sum.lisp", "-f", "dot")
	assert.ErrorContains(t, err, `unknown format "dot"`)
}

func TestCheckCommand(t *testing.T) {
	out, _, err := execute(t, "check", "examples/sum.lisp")
	require.NoError(t, err)
	assert.Contains(t, out, "Graph is valid!")

	out, _, err = execute(t, "check", "examples/expr.lisp")
	require.NoError(t, err)
	assert.Contains(t, out, "warning: port ")
	assert.Contains(t, out, `input "b" is unconnected`)

	out, _, err = execute(t, "check", "examples/cycle.lisp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed: 1 error(s)")
	assert.Contains(t, out, "error: port ")
}

func TestKindsCommand(t *testing.T) {
	out, _, err := execute(t, "kinds")
	require.NoError(t, err)
	assert.Contains(t, out, "Constant\n")
	assert.Contains(t, out, "Binary Math\n")
}

func TestConfigFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "nodes.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("context:\n  k: 3\n"), 0o644))
	path := writeScript(t, `(eval-port (out (node "Attr" :name "k")) "k")`)

	out, _, err := execute(t, "run", path, "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "k = 3\n", out)

	_, errOut, err := execute(t, "run", path, "--log-level", "debug", "--log-format", "json")
	require.NoError(t, err)
	assert.Contains(t, errOut, `"msg":"script loaded"`)

	_, _, err = execute(t, "run", path, "--log-format", "xml")
	assert.ErrorContains(t, err, "log.format")
}

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]*cobra.Command)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = c
	}
	for _, want := range []string{"run", "graph", "check", "kinds", "desktop"} {
		assert.Contains(t, names, want)
	}
}

func TestRunCommandNonFinite(t *testing.T) {
	path := writeScript(t, `
(def k (node "Constant" :val 1000))
(def ex (node "Exp"))
(connect (in ex "Inp") (out k))
(eval-port (out ex) "big")
`)
	out, _, err := execute(t, "run", path)
	require.NoError(t, err)
	assert.Equal(t, "big: non-finite result +Inf\n", out)

	out, _, err = execute(t, "run", path, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"value": null`)

	_, _, err = execute(t, "graph", path, "--format", "json")
	assert.NoError(t, err)
}
