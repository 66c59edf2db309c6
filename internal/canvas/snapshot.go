package canvas

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	appErr "github.com/neoncad/engine/pkg/errors"
)

// Snapshot is the persisted form of a project. Derived measurements are
// never part of it.
type Snapshot struct {
	Entities      []Entity `json:"entities"`
	Groups        []Group  `json:"groups"`
	ActiveGroupID int      `json:"activeGroupId"`
	ShowAllGroups bool     `json:"showAllGroups"`

	// Skipped counts legacy objects that could not be decoded.
	Skipped int `json:"-"`
}

// Capture copies the store and the session's group state into a snapshot.
func Capture(s *Store, sess Session) Snapshot {
	return Snapshot{
		Entities:      s.Entities(),
		Groups:        s.Groups(),
		ActiveGroupID: sess.ActiveGroupID,
		ShowAllGroups: sess.ShowAllGroups,
	}
}

// Blank is the snapshot of a new project.
func Blank() Snapshot {
	return Snapshot{
		Entities:      []Entity{},
		Groups:        DefaultGroups(),
		ActiveGroupID: 1,
		ShowAllGroups: true,
	}
}

func (s Snapshot) Encode() ([]byte, error) {
	if s.Entities == nil {
		s.Entities = []Entity{}
	}
	return json.Marshal(s)
}

// EncodeIndent is Encode with two-space indentation, used for files.
func (s Snapshot) EncodeIndent() ([]byte, error) {
	if s.Entities == nil {
		s.Entities = []Entity{}
	}
	return json.MarshalIndent(s, "", "  ")
}

// Normalize checks a snapshot before it is persisted and returns a copy
// with polygon rings closed and missing entity ids filled in. Geometry
// violations carry CodeInvalidGeometry; every other violation is
// CodeInvalid.
func (s Snapshot) Normalize() (Snapshot, error) {
	if len(s.Groups) == 0 {
		return Snapshot{}, appErr.New(appErr.CodeInvalid, "snapshot has no groups")
	}
	groups := make(map[int]bool, len(s.Groups))
	for _, g := range s.Groups {
		if g.ID <= 0 {
			return Snapshot{}, appErr.Newf(appErr.CodeInvalid, "group id %d must be positive", g.ID)
		}
		if groups[g.ID] {
			return Snapshot{}, appErr.Newf(appErr.CodeInvalid, "duplicate group %d", g.ID)
		}
		groups[g.ID] = true
	}
	out := s
	out.Groups = append([]Group(nil), s.Groups...)
	if out.ActiveGroupID == 0 {
		out.ActiveGroupID = out.Groups[0].ID
	}
	if !groups[out.ActiveGroupID] {
		return Snapshot{}, appErr.Newf(appErr.CodeInvalid, "active group %d does not exist", out.ActiveGroupID)
	}

	out.Entities = make([]Entity, 0, len(s.Entities))
	ids := make(map[string]bool, len(s.Entities))
	for i, e := range s.Entities {
		e = e.Clone()
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if ids[e.ID] {
			return Snapshot{}, appErr.Newf(appErr.CodeInvalid, "duplicate entity id %s", e.ID)
		}
		ids[e.ID] = true
		if !e.Kind.Valid() {
			return Snapshot{}, appErr.Newf(appErr.CodeInvalid, "entity %d: unknown entity kind %q", i, e.Kind)
		}
		geom, err := normalizeGeometry(e.Kind, e.Geometry)
		if err != nil {
			return Snapshot{}, appErr.Wrap(err, appErr.CodeInvalidGeometry, "entity "+e.ID)
		}
		e.Geometry = geom
		if e.GroupID == 0 {
			e.GroupID = out.Groups[0].ID
		}
		if !groups[e.GroupID] {
			return Snapshot{}, appErr.Newf(appErr.CodeInvalid, "entity %s: group %d does not exist", e.ID, e.GroupID)
		}
		out.Entities = append(out.Entities, e)
	}
	return out, nil
}

type wireSnapshot struct {
	Entities      []wireEntity   `json:"entities"`
	Objects       []legacyObject `json:"objects"`
	Groups        []Group        `json:"groups"`
	ActiveGroupID int            `json:"activeGroupId"`
	ShowAllGroups *bool          `json:"showAllGroups"`
}

// DecodeSnapshot parses a snapshot and fills in missing style and group
// values. It also accepts the older browser format keyed by "objects".
func DecodeSnapshot(b []byte) (*Snapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "decode snapshot")
	}

	snap := &Snapshot{
		Groups:        w.Groups,
		ActiveGroupID: w.ActiveGroupID,
		ShowAllGroups: true,
	}
	if w.ShowAllGroups != nil {
		snap.ShowAllGroups = *w.ShowAllGroups
	}
	if len(snap.Groups) == 0 {
		snap.Groups = DefaultGroups()
	}
	if snap.ActiveGroupID == 0 {
		snap.ActiveGroupID = snap.Groups[0].ID
	}

	switch {
	case w.Entities != nil:
		snap.Entities = make([]Entity, 0, len(w.Entities))
		for _, we := range w.Entities {
			snap.Entities = append(snap.Entities, we.entity(snap.Groups[0].ID))
		}
	case w.Objects != nil:
		snap.Entities = make([]Entity, 0, len(w.Objects))
		for _, o := range w.Objects {
			e, err := o.entity()
			if err != nil {
				snap.Skipped++
				continue
			}
			applyLegacyDefaults(&e, snap.Groups[0].ID)
			snap.Entities = append(snap.Entities, e)
		}
	default:
		snap.Entities = []Entity{}
	}
	return snap, nil
}

// wireStyle tells an absent style value from an explicit zero, so only
// missing values receive defaults.
type wireStyle struct {
	Color   string   `json:"color"`
	Width   *float64 `json:"width"`
	Opacity *float64 `json:"opacity"`
	Dash    *string  `json:"dash"`
}

type wireEntity struct {
	Entity
	Style *wireStyle `json:"style"`
}

func (w wireEntity) entity(firstGroup int) Entity {
	e := w.Entity
	if e.GroupID == 0 {
		e.GroupID = firstGroup
	}
	ws := wireStyle{}
	if w.Style != nil {
		ws = *w.Style
	}
	e.Style = Style{Color: ws.Color, Width: DefaultWidth, Opacity: defaultOpacity(e.Kind), Dash: DefaultDash}
	if ws.Width != nil {
		e.Style.Width = *ws.Width
	}
	if ws.Opacity != nil {
		e.Style.Opacity = *ws.Opacity
	}
	if ws.Dash != nil {
		e.Style.Dash = *ws.Dash
	}
	return e
}

func defaultOpacity(k Kind) float64 {
	if k == KindPolygon {
		return DefaultPolygonOpacity
	}
	return DefaultOpacity
}

// applyLegacyDefaults fills what the browser format left at zero. That
// format never stored explicit zero widths or opacities.
func applyLegacyDefaults(e *Entity, firstGroup int) {
	if e.GroupID == 0 {
		e.GroupID = firstGroup
	}
	if e.Style.Width == 0 {
		e.Style.Width = DefaultWidth
	}
	if e.Style.Opacity == 0 {
		e.Style.Opacity = defaultOpacity(e.Kind)
	}
	if e.Style.Dash == "" {
		e.Style.Dash = DefaultDash
	}
	if (e.Kind == KindPoint || e.Kind == KindText) && e.Meta.IconColor == "" && e.Meta.Task == nil {
		e.Meta.IconColor = Colors[0]
	}
}

type legacyCable struct {
	Type    string `json:"type"`
	Install string `json:"install"`
	Subtype string `json:"subtype"`
	Voltage string `json:"voltage"`
	Mark    string `json:"mark"`
}

type legacyObject struct {
	Type      string          `json:"type"`
	GroupID   int             `json:"groupId"`
	Coords    json.RawMessage `json:"coords"`
	Color     string          `json:"color"`
	Width     float64         `json:"width"`
	Opacity   float64         `json:"opacity"`
	Style     string          `json:"style"`
	Text      string          `json:"text"`
	Subtype   string          `json:"subtype"`
	IconColor string          `json:"iconColor"`
	CableData *legacyCable    `json:"cableData"`
	TaskData  *TaskState      `json:"taskData"`
}

func (o legacyObject) entity() (Entity, error) {
	e := Entity{
		GroupID: o.GroupID,
		Style:   Style{Color: o.Color, Width: o.Width, Opacity: o.Opacity, Dash: o.Style},
		Label:   o.Text,
	}

	var err error
	switch o.Type {
	case "Polyline":
		e.Kind = KindLine
		err = json.Unmarshal(o.Coords, &e.Geometry)
		if o.CableData != nil && o.CableData.Type != "" {
			e.Meta.Cable = &CableSpec{
				Category:      o.CableData.Type,
				InstallMethod: o.CableData.Install,
				Subcategory:   o.CableData.Subtype,
				Voltage:       o.CableData.Voltage,
				Mark:          o.CableData.Mark,
			}
		}
	case "Point":
		e.Kind = KindPoint
		e.Geometry, err = decodeSingle(o.Coords)
		e.Meta.Subtype = o.Subtype
		e.Meta.IconColor = o.IconColor
		e.Meta.Task = o.TaskData
	case "Text":
		e.Kind = KindText
		e.Geometry, err = decodeSingle(o.Coords)
		e.Meta.Subtype = "text"
		e.Meta.IconColor = o.IconColor
	case "Polygon":
		e.Kind = KindPolygon
		var rings [][]Coord
		if err = json.Unmarshal(o.Coords, &rings); err == nil && len(rings) > 0 {
			e.Geometry = rings[0]
		}
	default:
		return Entity{}, fmt.Errorf("unknown object type %q", o.Type)
	}
	return e, err
}

func decodeSingle(raw json.RawMessage) ([]Coord, error) {
	var c Coord
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return []Coord{c}, nil
}
