package canvas

// Session is the editing state that is not part of the document: which
// group receives new entities, which groups are shown, and the style applied
// to new lines.
type Session struct {
	ActiveGroupID    int
	ShowAllGroups    bool
	ShowMeasurements bool
	DecimalComma     bool

	Color   string
	Width   float64
	Opacity float64
	Dash    string
}

// NewSession returns the state of a freshly opened editor.
func NewSession() Session {
	return Session{
		ActiveGroupID:    1,
		ShowAllGroups:    true,
		ShowMeasurements: true,
		Color:            Colors[0],
		Width:            5,
		Opacity:          1,
		Dash:             DefaultDash,
	}
}

// Visible reports whether e is shown under the current group filter.
func (s Session) Visible(e Entity) bool {
	return s.ShowAllGroups || e.GroupID == s.ActiveGroupID
}

// LabelVisible reports whether the measurement labels of e are shown.
func (s Session) LabelVisible(e Entity) bool {
	return s.Visible(e) && s.ShowMeasurements
}

// LineStyle is the style a new line gets.
func (s Session) LineStyle() Style {
	return Style{Color: s.Color, Width: s.Width, Opacity: s.Opacity, Dash: s.Dash}
}
