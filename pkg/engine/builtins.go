package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chazu/nodes/pkg/graph"
	"github.com/chazu/nodes/pkg/nodes"
	"github.com/chazu/nodes/pkg/storage"
	v2 "github.com/deadsy/sdfx/vec/v2"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// preprocessSource rewrites script source before it reaches zygomys:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords need
//     no global symbols and cannot clash with script variables.
//  2. kebab-case identifiers become snake_case, since zygomys reads the
//     hyphen as subtraction.
//  3. ; line comments become // comments.
//
// String literals are copied through untouched.
func preprocessSource(source string) string {
	b := []byte(source)
	out := make([]byte, 0, len(b)+len(b)/4)

	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == '"' || c == '`':
			j := skipString(b, i)
			out = append(out, b[i:j]...)
			i = j

		case c == ';':
			out = append(out, '/', '/')
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				out = append(out, b[i])
				i++
			}

		case c == ':' && i+1 < len(b) && b[i+1] == '=':
			out = append(out, ':', '=')
			i += 2

		case c == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			out = append(out, '"')
			out = append(out, kwPrefix...)
			out = append(out, b[i+1:j]...)
			out = append(out, '"')
			i = j

		case c == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			out = append(out, '_')
			i++

		default:
			out = append(out, c)
			i++
		}
	}
	return string(out)
}

// skipString returns the index just past the string literal starting at i.
// Double-quoted literals honour backslash escapes; backtick literals do not.
func skipString(b []byte, i int) int {
	quote := b[i]
	j := i + 1
	for j < len(b) && b[j] != quote {
		if quote == '"' && b[j] == '\\' && j+1 < len(b) {
			j++
		}
		j++
	}
	if j < len(b) {
		j++
	}
	return j
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing graph handles through the zygomys environment
// ---------------------------------------------------------------------------

// sexpNode wraps a node ID.
type sexpNode struct {
	id   storage.ID
	kind string
}

func (n *sexpNode) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(node %q %s)", n.kind, n.id)
}
func (n *sexpNode) Type() *zygo.RegisteredType { return nil }

// sexpPort wraps a port ID.
type sexpPort struct {
	id   storage.ID
	name string
}

func (p *sexpPort) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(port %q %s)", p.name, p.id)
}
func (p *sexpPort) Type() *zygo.RegisteredType { return nil }

// sexpPos wraps a canvas position.
type sexpPos struct {
	pos graph.Pos
}

func (p *sexpPos) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(pos %g %g)", p.pos.X, p.pos.Y)
}
func (p *sexpPos) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	order      []string // keyword names in source order
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if _, seen := result.kw[name]; !seen {
			result.order = append(result.order, name)
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			// Keyword at end with no value: treat as flag with nil.
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a Go string from a SexpStr.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString accepts either a keyword or a plain string.
func toKeywordString(s zygo.Sexp) (string, error) {
	if name, ok := isKW(s); ok {
		return name, nil
	}
	return toString(s)
}

func toNode(s zygo.Sexp) (*sexpNode, error) {
	if n, ok := s.(*sexpNode); ok {
		return n, nil
	}
	return nil, fmt.Errorf("expected node, got %T (%s)", s, s.SexpString(nil))
}

func toPort(s zygo.Sexp) (*sexpPort, error) {
	if p, ok := s.(*sexpPort); ok {
		return p, nil
	}
	return nil, fmt.Errorf("expected port, got %T (%s)", s, s.SexpString(nil))
}

func toPos(s zygo.Sexp) (graph.Pos, error) {
	if p, ok := s.(*sexpPos); ok {
		return p.pos, nil
	}
	return graph.Pos{}, fmt.Errorf("expected pos, got %T (%s)", s, s.SexpString(nil))
}

// setState stores a script value into an existing state entry, converting it
// to the kind already stored there.
func setState(state graph.State, key string, s zygo.Sexp) error {
	kind, ok := state.Kind(key)
	if !ok {
		return fmt.Errorf("no state %q", key)
	}
	switch kind {
	case graph.KindFloat:
		v, err := toFloat64(s)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		state.SetFloat(key, v)
	case graph.KindChar:
		v, err := toKeywordString(s)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if utf8.RuneCountInString(v) != 1 {
			return fmt.Errorf("%s: expected a single character, got %q", key, v)
		}
		r, _ := utf8.DecodeRuneInString(v)
		state.SetChar(key, r)
	case graph.KindString:
		v, err := toString(s)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		state.SetString(key, v)
	}
	return nil
}

func numberSexp(v float64, ok bool) zygo.Sexp {
	if !ok {
		return zygo.SexpNull
	}
	return &zygo.SexpFloat{Val: v}
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// session is the state one script run builds up.
type session struct {
	world       *graph.World
	ctx         graph.Context
	evaluations []Evaluation
	fatal       error // first contract violation raised by a builtin
}

type builtin func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)

// add registers fn under name. A panic inside fn, such as a stale ID, is
// recorded as the session's fatal error and aborts the script.
func (s *session) add(env *zygo.Zlisp, name string, fn builtin) {
	env.AddFunction(name, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (res zygo.Sexp, err error) {
		defer func() {
			if r := recover(); r != nil {
				perr, ok := r.(error)
				if !ok {
					perr = fmt.Errorf("%v", r)
				}
				if s.fatal == nil {
					s.fatal = fmt.Errorf("%s: %w", name, perr)
				}
				res, err = zygo.SexpNull, s.fatal
			}
		}()
		return fn(env, name, args)
	})
}

func (s *session) result() *Result {
	return &Result{World: s.world, Bindings: s.ctx, Evaluations: s.evaluations}
}

func (s *session) portRef(node *sexpNode, name string) (*sexpPort, error) {
	id, err := s.world.PortByName(node.id, name)
	if err != nil {
		return nil, err
	}
	return &sexpPort{id: id, name: name}, nil
}

// register installs the session builtins into a zygomys environment.
//
// Source must be preprocessed with preprocessSource() first so that :keyword
// tokens reach the builtins as recognizable string literals.
func (s *session) register(env *zygo.Zlisp) {
	// (pos x y)
	s.add(env, "pos", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("pos requires exactly 2 arguments, got %d", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pos: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pos: y: %w", err)
		}
		return &sexpPos{pos: v2.Vec{X: x, Y: y}}, nil
	})

	// (node "Kind" :at (pos x y) :key value ...)
	s.add(env, "node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		a := parseArgs(args)
		if len(a.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("node requires a kind name")
		}
		kind, err := toString(a.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("node: kind: %w", err)
		}
		proto, ok := nodes.Lookup(kind)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("node: unknown kind %q", kind)
		}

		var at graph.Pos
		if v, ok := a.kw["at"]; ok {
			if at, err = toPos(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("node: at: %w", err)
			}
		}
		// Validate state before touching the world so a bad call leaves no node.
		state := proto.State.Clone()
		for _, key := range a.order {
			if key == "at" {
				continue
			}
			if err := setState(state, key, a.kw[key]); err != nil {
				return zygo.SexpNull, fmt.Errorf("node %s: %w", kind, err)
			}
		}
		proto.State = state

		return &sexpNode{id: s.world.CreateNode(at, proto), kind: kind}, nil
	})

	// (in node "name")
	s.add(env, "in", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("in requires a node and a port name")
		}
		n, err := toNode(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("in: %w", err)
		}
		port, err := toString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("in: name: %w", err)
		}
		ref, err := s.portRef(n, port)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("in: %w", err)
		}
		if !s.world.Port(ref.id).IsInput() {
			return zygo.SexpNull, fmt.Errorf("in: %q: %w", port, graph.ErrNotInput)
		}
		return ref, nil
	})

	// (out node) or (out node "name")
	s.add(env, "out", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 || len(args) > 2 {
			return zygo.SexpNull, fmt.Errorf("out requires a node and an optional port name")
		}
		n, err := toNode(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("out: %w", err)
		}
		if len(args) == 1 {
			outs := s.world.OutputsOf(n.id)
			if len(outs) != 1 {
				return zygo.SexpNull, fmt.Errorf("out: %s has %d outputs, name one", n.kind, len(outs))
			}
			return &sexpPort{id: outs[0], name: s.world.Port(outs[0]).Info.Name}, nil
		}
		port, err := toString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("out: name: %w", err)
		}
		ref, err := s.portRef(n, port)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("out: %w", err)
		}
		if !s.world.Port(ref.id).IsOutput() {
			return zygo.SexpNull, fmt.Errorf("out: %q: %w", port, graph.ErrNotOutput)
		}
		return ref, nil
	})

	// (connect input output)
	s.add(env, "connect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("connect requires an input and an output port")
		}
		in, err := toPort(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("connect: input: %w", err)
		}
		out, err := toPort(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("connect: output: %w", err)
		}
		if err := s.world.Connect(in.id, out.id); err != nil {
			return zygo.SexpNull, err
		}
		return in, nil
	})

	// (disconnect input)
	s.add(env, "disconnect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("disconnect requires an input port")
		}
		in, err := toPort(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("disconnect: %w", err)
		}
		if err := s.world.Disconnect(in.id); err != nil {
			return zygo.SexpNull, err
		}
		return in, nil
	})

	// (set-state node :key value ...)
	s.add(env, "set_state", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		a := parseArgs(args)
		if len(a.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("set-state requires a node")
		}
		n, err := toNode(a.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-state: %w", err)
		}
		state := s.world.Node(n.id).State.Clone()
		for _, key := range a.order {
			if err := setState(state, key, a.kw[key]); err != nil {
				return zygo.SexpNull, fmt.Errorf("set-state %s: %w", n.kind, err)
			}
		}
		s.world.Node(n.id).State = state
		return n, nil
	})

	// (move node (pos x y))
	s.add(env, "move", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("move requires a node and a pos")
		}
		n, err := toNode(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move: %w", err)
		}
		p, err := toPos(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move: %w", err)
		}
		s.world.MoveNode(n.id, p)
		return n, nil
	})

	// (remove node)
	s.add(env, "remove", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("remove requires a node")
		}
		n, err := toNode(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("remove: %w", err)
		}
		s.world.RemoveNode(n.id)
		return zygo.SexpNull, nil
	})

	// (bind "name" value)
	s.add(env, "bind", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("bind requires a name and a value")
		}
		key, err := toKeywordString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("bind: name: %w", err)
		}
		v, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("bind: %s: %w", key, err)
		}
		s.ctx = s.ctx.With(key, v)
		return args[1], nil
	})

	// (eval-port port) or (eval-port port "label")
	s.add(env, "eval_port", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 || len(args) > 2 {
			return zygo.SexpNull, fmt.Errorf("eval-port requires a port and an optional label")
		}
		p, err := toPort(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("eval-port: %w", err)
		}
		label := p.name
		if len(args) == 2 {
			if label, err = toString(args[1]); err != nil {
				return zygo.SexpNull, fmt.Errorf("eval-port: label: %w", err)
			}
		}

		v, ok, err := s.world.Evaluate(p.id, s.ctx)
		s.evaluations = append(s.evaluations, Evaluation{
			Label: label,
			Port:  p.id,
			Value: v,
			OK:    ok,
			Err:   err,
		})
		return numberSexp(v, ok), nil
	})
}
