package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/chazu/nodes/internal/config"
	"github.com/chazu/nodes/internal/logging"
	"github.com/chazu/nodes/internal/metrics"
	"github.com/chazu/nodes/pkg/engine"
	"github.com/chazu/nodes/pkg/graph"
	"github.com/chazu/nodes/pkg/layout"
	"github.com/chazu/nodes/pkg/nodes"
	"github.com/chazu/nodes/pkg/storage"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// ErrGraphChanged is reported by LoadScript when a binding changed the graph
// or the variables while the script was running.
var ErrGraphChanged = errors.New("graph changed while the script ran")

// EventGraphChanged is emitted to the frontend after every change to the
// graph or to the evaluation variables.
const EventGraphChanged = "graph:changed"

// App is the desktop backend. It owns the current graph and exposes methods
// to the frontend via bindings. Bindings may be called from several
// goroutines; App serialises them.
type App struct {
	mu    sync.Mutex
	ctx   context.Context
	bound bool
	world *graph.World

	// base holds the config defaults and SetVariable bindings. Every script
	// run starts from it. vars is base plus the bindings of the last
	// script and is what Frame and EvaluatePort see.
	base    graph.Context
	vars    graph.Context
	rev     uint64 // bumped by every change, checked before a script swaps in
	engine  *engine.Engine
	metrics *metrics.Metrics
	logger  *slog.Logger
	emit    func(ctx context.Context, event string, data ...any)
}

// EvalErrorData is a JSON-serializable script error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvaluationData is one (eval-port ...) result of a script.
type EvaluationData struct {
	Label string     `json:"label"`
	Port  storage.ID `json:"port"`
	Value *float64   `json:"value"`
	Error string     `json:"error,omitempty"`
}

// ScriptResult is the full result of LoadScript returned to the frontend.
type ScriptResult struct {
	Errors      []EvalErrorData  `json:"errors"`
	Evaluations []EvaluationData `json:"evaluations"`
	Nodes       int              `json:"nodes"`
}

// PortValue is the result of evaluating a single output port.
type PortValue struct {
	Value *float64 `json:"value"`
	Error string   `json:"error,omitempty"`
}

// NewApp creates an App with an empty graph. The default evaluation
// variables and the script timeout come from cfg.
func NewApp(cfg config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &App{
		world:   graph.NewWorld(graph.WithLogger(logger)),
		base:    cfg.EvalContext(),
		vars:    cfg.EvalContext(),
		engine:  engine.NewEngine(engine.WithTimeout(cfg.Engine.Timeout), engine.WithLogger(logger)),
		metrics: metrics.New(),
		logger:  logger,
		emit:    runtime.EventsEmit,
	}
}

// startup is called by Wails on app startup. The context is saved so change
// events can be emitted through the Wails runtime.
func (a *App) startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctx = logging.WithLogger(ctx, a.logger)
	a.bound = true
	a.logger.Info("frontend attached")
}

// do runs fn under the lock. A panic inside fn, such as a stale ID sent by
// the frontend, is logged and returned as an error.
func (a *App) do(op string, fn func() error) (err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			perr, ok := r.(error)
			if !ok {
				perr = fmt.Errorf("%v", r)
			}
			err = fmt.Errorf("%s: %w", op, perr)
		}
		if err != nil {
			a.logger.Error("binding failed", "op", op, "err", err)
		}
	}()
	return fn()
}

// changed must be called with the lock held.
func (a *App) changed() {
	a.rev++
	a.metrics.SetGraphNodes(a.world.NodeCount())
	if a.bound {
		a.emit(a.ctx, EventGraphChanged)
	}
}

// Kinds lists the node kinds the frontend can create.
func (a *App) Kinds() []string {
	return nodes.Names()
}

// CreateNode places a new node of the named kind at (x, y).
func (a *App) CreateNode(kind string, x, y float64) (storage.ID, error) {
	var id storage.ID
	err := a.do("create node", func() error {
		proto, ok := nodes.Lookup(kind)
		if !ok {
			return fmt.Errorf("unknown node kind %q", kind)
		}
		id = a.world.CreateNode(v2.Vec{X: x, Y: y}, proto)
		a.logger.Debug("node created", "kind", kind, "id", id)
		a.changed()
		return nil
	})
	return id, err
}

// RemoveNode deletes a node and every link into or out of it.
func (a *App) RemoveNode(id storage.ID) error {
	return a.do("remove node", func() error {
		a.world.RemoveNode(id)
		a.changed()
		return nil
	})
}

// MoveNode moves a node to (x, y).
func (a *App) MoveNode(id storage.ID, x, y float64) error {
	return a.do("move node", func() error {
		a.world.MoveNode(id, v2.Vec{X: x, Y: y})
		a.changed()
		return nil
	})
}

// Connect links output to input, replacing the input's previous link.
func (a *App) Connect(input, output storage.ID) error {
	return a.do("connect", func() error {
		if err := a.world.Connect(input, output); err != nil {
			return err
		}
		a.changed()
		return nil
	})
}

// Disconnect removes the link into input.
func (a *App) Disconnect(input storage.ID) error {
	return a.do("disconnect", func() error {
		if err := a.world.Disconnect(input); err != nil {
			return err
		}
		a.changed()
		return nil
	})
}

// SetVariable binds name in the evaluation context used by Frame,
// EvaluatePort and every later script run.
func (a *App) SetVariable(name string, value float64) error {
	return a.do("set variable", func() error {
		if name == "" {
			return fmt.Errorf("variable name is empty")
		}
		a.base = a.base.With(name, value)
		a.vars = a.vars.With(name, value)
		a.changed()
		return nil
	})
}

// Variables returns the current evaluation context: the base bindings plus
// those of the last loaded script.
func (a *App) Variables() map[string]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.vars.Map()
}

// EvaluatePort evaluates one output port against the current variables.
func (a *App) EvaluatePort(port storage.ID) (PortValue, error) {
	var pv PortValue
	err := a.do("evaluate port", func() error {
		if !a.world.Port(port).IsOutput() {
			return fmt.Errorf("evaluate %s: %w", port, graph.ErrNotOutput)
		}
		v, ok, err := a.metrics.Evaluate(a.world, port, a.vars)
		pv.Value, pv.Error = layout.Value(v, ok)
		if err != nil {
			pv.Error = err.Error()
		}
		return nil
	})
	return pv, err
}

// Frame returns the render data for the current graph.
func (a *App) Frame() (*layout.Frame, error) {
	var f *layout.Frame
	err := a.do("frame", func() error {
		f = layout.Snapshot(a.world, a.vars, a.metrics.Evaluate)
		return nil
	})
	return f, err
}

// EditControl applies a control edit coming from the frontend and reports
// whether the node's state changed.
func (a *App) EditControl(node storage.ID, label string, value any) (bool, error) {
	var changed bool
	err := a.do("edit control", func() error {
		var err error
		changed, err = layout.Edit(a.world, node, label, value)
		if err != nil {
			return err
		}
		if changed {
			a.changed()
		}
		return nil
	})
	return changed, err
}

// LoadScript runs a session script. The script starts from the base
// bindings, never from those of an earlier script. On success its graph and
// bindings replace the current ones; on failure the current graph is kept.
// If a binding changes the graph while the script runs, the script result is
// dropped with ErrGraphChanged rather than overwriting that change.
func (a *App) LoadScript(source string) ScriptResult {
	result := ScriptResult{
		Errors:      []EvalErrorData{},
		Evaluations: []EvaluationData{},
	}

	a.mu.Lock()
	base := a.base
	rev := a.rev
	a.mu.Unlock()

	res, evalErrs, err := a.engine.Run(source, base)
	if err == nil && len(evalErrs) == 0 {
		err = a.commitScript(res, rev)
	}
	if err != nil {
		// Fatal error (panic, timeout, stale identifier, concurrent change).
		a.metrics.ScriptRun(metrics.OutcomeFatal)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		a.metrics.ScriptRun(metrics.OutcomeErrors)
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}

	a.metrics.ScriptRun(metrics.OutcomeOK)
	for _, ev := range res.Evaluations {
		d := EvaluationData{Label: ev.Label, Port: ev.Port}
		d.Value, d.Error = layout.Value(ev.Value, ev.OK)
		if ev.Err != nil {
			d.Error = ev.Err.Error()
		}
		result.Evaluations = append(result.Evaluations, d)
	}
	result.Nodes = res.World.NodeCount()

	a.logger.Info("script loaded", "nodes", result.Nodes, "evaluations", len(result.Evaluations))
	return result
}

// commitScript swaps in the world and bindings of a script run that started
// at revision rev.
func (a *App) commitScript(res *engine.Result, rev uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rev != rev {
		return fmt.Errorf("load script: %w", ErrGraphChanged)
	}
	a.world = res.World
	a.vars = res.Bindings
	a.changed()
	return nil
}

// Finding is one validation finding for the frontend.
type Finding struct {
	Node     storage.ID `json:"node"`
	Port     storage.ID `json:"port"`
	Message  string     `json:"message"`
	Severity string     `json:"severity"`
}

// Validate returns the structural findings for the current graph, errors
// first.
func (a *App) Validate() []Finding {
	a.mu.Lock()
	defer a.mu.Unlock()
	findings := graph.Validate(a.world)
	slices.SortStableFunc(findings, func(x, y graph.ValidationError) int {
		return int(x.Severity) - int(y.Severity)
	})
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		out = append(out, Finding{
			Node:     f.Node,
			Port:     f.Port,
			Message:  f.Message,
			Severity: f.Severity.String(),
		})
	}
	return out
}

// Mermaid returns a Mermaid flowchart of the current graph.
func (a *App) Mermaid() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return layout.Mermaid(a.world)
}
