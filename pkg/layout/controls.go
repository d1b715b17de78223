package layout

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/chazu/nodes/pkg/graph"
	"github.com/chazu/nodes/pkg/storage"
)

var (
	// ErrNoControls is returned by Edit for nodes without a render hook.
	ErrNoControls = errors.New("node has no controls")
	// ErrUnknownControl is returned by Edit when the hook draws no control
	// with the requested label.
	ErrUnknownControl = errors.New("unknown control")
)

// ControlKind names the widget type of a Control.
type ControlKind string

const (
	ControlSlider ControlKind = "slider"
	ControlSelect ControlKind = "select"
	ControlText   ControlKind = "text"
)

// Control is one widget drawn by a render hook.
type Control struct {
	Kind    ControlKind    `json:"kind"`
	Label   string         `json:"label"`
	Value   any            `json:"value"`
	Choices []graph.Choice `json:"choices,omitempty"`
}

// Recorder is a graph.Widgets that writes down every control drawn and never
// reports a change.
type Recorder struct {
	Controls []Control
}

func (r *Recorder) Slider(label string, v *float64) bool {
	r.Controls = append(r.Controls, Control{Kind: ControlSlider, Label: label, Value: *v})
	return false
}

func (r *Recorder) Select(label string, v *rune, choices []graph.Choice) bool {
	r.Controls = append(r.Controls, Control{Kind: ControlSelect, Label: label, Value: string(*v), Choices: choices})
	return false
}

func (r *Recorder) Text(label string, v *string) bool {
	r.Controls = append(r.Controls, Control{Kind: ControlText, Label: label, Value: *v})
	return false
}

// Controls runs the node's render hook against a Recorder on a copy of its
// state and returns what it drew.
func Controls(w *graph.World, id storage.ID) []Control {
	n := w.Node(id)
	if n.Prototype.Render == nil {
		return []Control{}
	}
	rec := &Recorder{Controls: []Control{}}
	n.Prototype.Render(rec, n.State.Clone(), n.Pos)
	return rec.Controls
}

// editor is a graph.Widgets that applies one pending edit. Like an
// immediate-mode widget it reports true only when the value changes.
type editor struct {
	label   string
	value   any
	matched bool
	err     error
}

func (e *editor) Slider(label string, v *float64) bool {
	if label != e.label {
		return false
	}
	e.matched = true
	var x float64
	switch n := e.value.(type) {
	case float64:
		x = n
	case int:
		x = float64(n)
	default:
		e.err = fmt.Errorf("slider %q: expected number, got %T", label, e.value)
		return false
	}
	if x == *v {
		return false
	}
	*v = x
	return true
}

func (e *editor) Select(label string, v *rune, choices []graph.Choice) bool {
	if label != e.label {
		return false
	}
	e.matched = true
	var r rune
	switch x := e.value.(type) {
	case rune:
		r = x
	case string:
		if utf8.RuneCountInString(x) != 1 {
			e.err = fmt.Errorf("select %q: expected a single character, got %q", label, x)
			return false
		}
		r, _ = utf8.DecodeRuneInString(x)
	default:
		e.err = fmt.Errorf("select %q: expected character, got %T", label, e.value)
		return false
	}
	for _, c := range choices {
		if c.Value == r {
			if r == *v {
				return false
			}
			*v = r
			return true
		}
	}
	e.err = fmt.Errorf("select %q: %q is not one of the choices", label, string(r))
	return false
}

func (e *editor) Text(label string, v *string) bool {
	if label != e.label {
		return false
	}
	e.matched = true
	s, ok := e.value.(string)
	if !ok {
		e.err = fmt.Errorf("text %q: expected string, got %T", label, e.value)
		return false
	}
	if s == *v {
		return false
	}
	*v = s
	return true
}

// Edit runs the node's render hook with value pending for the control called
// label. The hook works on a copy of the state, which replaces the node's
// state only when the hook reports a change.
func Edit(w *graph.World, id storage.ID, label string, value any) (bool, error) {
	n := w.Node(id)
	if n.Prototype.Render == nil {
		return false, fmt.Errorf("%s: %w", n.Prototype.Name, ErrNoControls)
	}

	state := n.State.Clone()
	ed := &editor{label: label, value: value}
	changed := n.Prototype.Render(ed, state, n.Pos)
	switch {
	case ed.err != nil:
		return false, ed.err
	case !ed.matched:
		return false, fmt.Errorf("%s: %w %q", n.Prototype.Name, ErrUnknownControl, label)
	}
	if changed {
		n.State = state
	}
	return changed, nil
}
