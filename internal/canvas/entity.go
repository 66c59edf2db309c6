// Package canvas holds the editor's document model: entities, groups, the
// store that owns them, the editing session and the snapshot codec.
package canvas

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Kind tags the entity variant. It never changes after creation.
type Kind string

const (
	KindPoint   Kind = "point"
	KindLine    Kind = "line"
	KindPolygon Kind = "polygon"
	KindText    Kind = "text"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPoint, KindLine, KindPolygon, KindText:
		return true
	}
	return false
}

// Coord is a map coordinate in degrees. It encodes as [lat, lng].
type Coord struct {
	Lat float64
	Lng float64
}

func C(lat, lng float64) Coord { return Coord{Lat: lat, Lng: lng} }

// Point converts to orb's x=lng, y=lat order.
func (c Coord) Point() orb.Point { return orb.Point{c.Lng, c.Lat} }

func (c Coord) finite() bool {
	return !math.IsNaN(c.Lat) && !math.IsNaN(c.Lng) && !math.IsInf(c.Lat, 0) && !math.IsInf(c.Lng, 0)
}

func (c Coord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lat, c.Lng})
}

func (c *Coord) UnmarshalJSON(b []byte) error {
	var pair []float64
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("coord: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("coord: want [lat, lng], got %d values", len(pair))
	}
	c.Lat, c.Lng = pair[0], pair[1]
	return nil
}

// LineString converts a coordinate path for geometry calls.
func LineString(cs []Coord) orb.LineString {
	ls := make(orb.LineString, len(cs))
	for i, c := range cs {
		ls[i] = c.Point()
	}
	return ls
}

// Ring converts a polygon outline for geometry calls.
func Ring(cs []Coord) orb.Ring {
	return orb.Ring(LineString(cs))
}

// Style is the stroke (and fill for polygons) appearance.
type Style struct {
	Color   string  `json:"color"`
	Width   float64 `json:"width"`
	Opacity float64 `json:"opacity"`
	Dash    string  `json:"dash"`
}

// CableSpec describes a cable line for BOM classification.
type CableSpec struct {
	Category      string `json:"category"`
	InstallMethod string `json:"installMethod"`
	Subcategory   string `json:"subcategory,omitempty"`
	Voltage       string `json:"voltage,omitempty"`
	Mark          string `json:"mark,omitempty"`
}

type TaskStatus string

const (
	TaskActive   TaskStatus = "active"
	TaskDone     TaskStatus = "done"
	TaskCanceled TaskStatus = "canceled"
)

func (s TaskStatus) Closed() bool { return s == TaskDone || s == TaskCanceled }

// TaskState is the metadata of a task point.
type TaskState struct {
	Status   TaskStatus `json:"status"`
	Text     string     `json:"text"`
	Comment  string     `json:"comment"`
	Reopened bool       `json:"reopened"`
}

// Metadata is the kind-specific record. Subtype and IconColor apply to
// points and text, Cable to lines, Task to task points.
type Metadata struct {
	Subtype   string     `json:"subtype,omitempty"`
	IconColor string     `json:"iconColor,omitempty"`
	Cable     *CableSpec `json:"cable,omitempty"`
	Task      *TaskState `json:"task,omitempty"`
}

func (m Metadata) clone() Metadata {
	out := m
	if m.Cable != nil {
		c := *m.Cable
		out.Cable = &c
	}
	if m.Task != nil {
		t := *m.Task
		out.Task = &t
	}
	return out
}

// Entity is one placed object. Derived measurements are not part of it.
type Entity struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"kind"`
	GroupID  int      `json:"groupId"`
	Geometry []Coord  `json:"geometry"`
	Style    Style    `json:"style"`
	Label    string   `json:"label,omitempty"`
	Meta     Metadata `json:"meta"`
}

// Clone returns a deep copy.
func (e Entity) Clone() Entity {
	out := e
	out.Geometry = append([]Coord(nil), e.Geometry...)
	out.Meta = e.Meta.clone()
	return out
}

// DisplayName is the label, or the default name for the entity's kind and
// subtype when no label is set.
func (e Entity) DisplayName() string {
	if e.Label != "" {
		return e.Label
	}
	return DefaultName(e.Kind, e.Meta.Subtype)
}

// Group partitions entities for visibility and reporting.
type Group struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// EntityInput is the argument of Store.Create. A zero GroupID places the
// entity in the first group.
type EntityInput struct {
	ID       string
	Kind     Kind
	GroupID  int
	Geometry []Coord
	Style    Style
	Label    string
	Meta     Metadata
}

// Patch lists the fields Update replaces. Nil fields are left as they are.
type Patch struct {
	Geometry []Coord
	Style    *Style
	Label    *string
	Meta     *Metadata
}
