package graph

// Choice is one entry of a Select control.
type Choice struct {
	Value rune
	Label string
}

// Widgets is the immediate-mode control surface a render hook draws on. Each
// method shows one control bound to *v and reports whether the user changed
// the value during this frame.
type Widgets interface {
	Slider(label string, v *float64) bool
	Select(label string, v *rune, choices []Choice) bool
	Text(label string, v *string) bool
}
