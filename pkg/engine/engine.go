// Package engine runs session scripts: small sandboxed Lisp programs that
// build a node graph and evaluate its outputs through the same operations an
// interactive editor would use. Scripts only drive a World; nothing is ever
// written back as script source.
package engine

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/nodes/pkg/graph"
	"github.com/chazu/nodes/pkg/storage"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered while running a
// script, such as a parse error or a failing builtin call.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Evaluation is one (eval-port ...) call made by a script, in call order.
type Evaluation struct {
	Label string
	Port  storage.ID
	Value float64
	OK    bool
	Err   error // set when the walk hit a cycle
}

// Result is what a successful script run leaves behind.
type Result struct {
	World       *graph.World
	Bindings    graph.Context // the incoming context plus every (bind ...)
	Evaluations []Evaluation
}

// Engine runs session scripts. It is safe for concurrent use; each run gets a
// fresh sandbox and a fresh World.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout bounds the wall-clock time of a single run.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger for the engine and the worlds it builds.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a new Engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		timeout: DefaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes source against a new World, starting from the bindings in ctx.
//
// Return semantics:
//   - On success: returns result + nil errors + nil error
//   - On parse/eval failure: returns nil result + eval errors + nil error
//   - On fatal failure (timeout, panic, stale identifier): returns nil + nil + error
func (e *Engine) Run(source string, ctx graph.Context) (*Result, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan runResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- runResult{err: fmt.Errorf("panic during script run: %v", r)}
			}
		}()

		res, evalErrs, err := e.run(source, ctx)
		ch <- runResult{result: res, errors: evalErrs, err: err}
	}()

	res, evalErrs, err := waitWithTimeout(ch, e.timeout, gen, &e.mu, &e.generation)
	switch {
	case err != nil:
		e.logger.Error("script run failed", "err", err)
	case len(evalErrs) > 0:
		e.logger.Info("script has errors", "count", len(evalErrs), "first", evalErrs[0].Error())
	default:
		e.logger.Debug("script run complete",
			"nodes", res.World.NodeCount(),
			"evaluations", len(res.Evaluations),
		)
	}
	return res, evalErrs, err
}

// run performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) run(source string, ctx graph.Context) (*Result, []EvalError, error) {
	s := &session{
		world: graph.NewWorld(graph.WithLogger(e.logger)),
		ctx:   ctx,
	}

	// Empty source is a valid script that builds an empty graph.
	if strings.TrimSpace(source) == "" {
		return s.result(), nil, nil
	}

	// Sandbox mode prevents scripts from touching the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	s.register(env)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		if s.fatal != nil {
			return nil, nil, s.fatal
		}
		return nil, parseZygomysError(err), nil
	}

	return s.result(), nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values,
// extracting line information when the message carries it.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}

	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
