// Package bom derives the bill of materials from the visible entities of a
// project.
package bom

import (
	"strconv"

	"github.com/neoncad/engine/internal/canvas"
	"github.com/neoncad/engine/internal/geometry"
	"github.com/neoncad/engine/internal/measure"
)

// AllGroupsName is the group column value when every group is shown.
const AllGroupsName = "Все"

// Equipment is the fixed order and naming of counted point subtypes.
var Equipment = []struct {
	Subtype string
	Name    string
}{
	{canvas.SubtypeSubscriber, "Абонент"},
	{canvas.SubtypeLight, "Светильники"},
	{canvas.SubtypePole, "Опоры"},
	{canvas.SubtypeCabinet, "Шкафы"},
	{canvas.SubtypeFlag, "Флаги"},
	{canvas.SubtypeStar, "Звезды"},
	{canvas.SubtypeSubstation, "ТП"},
}

// CableLine is the summed length of identical cables.
type CableLine struct {
	Key    string           `json:"key"`
	Spec   canvas.CableSpec `json:"spec"`
	Length float64          `json:"length"`
}

// ColorLine is the summed length of lines without a cable spec.
type ColorLine struct {
	Color  string  `json:"color"`
	Length float64 `json:"length"`
}

// Count is the number of points of one subtype.
type Count struct {
	Subtype string `json:"subtype"`
	Name    string `json:"name"`
	Count   int    `json:"count"`
}

// Report is the aggregated bill of materials.
type Report struct {
	GroupName  string      `json:"groupName"`
	Cables     []CableLine `json:"cables"`
	Generic    []ColorLine `json:"generic"`
	Area       float64     `json:"area"`
	Equipment  []Count     `json:"equipment"`
	TotalCable float64     `json:"totalCable"`
}

// Aggregate sums the entities visible under sess. Lines with a cable spec
// are grouped by CableSpec.Key, other lines by stroke color, both in the
// order first seen.
func Aggregate(entities []canvas.Entity, sess canvas.Session, groups []canvas.Group, geom geometry.Service) Report {
	if geom == nil {
		geom = geometry.Geodesic{}
	}
	r := Report{GroupName: groupName(sess, groups)}

	cableIdx := map[string]int{}
	colorIdx := map[string]int{}
	counts := map[string]int{}

	for _, e := range entities {
		if !sess.Visible(e) {
			continue
		}
		switch e.Kind {
		case canvas.KindPoint:
			counts[e.Meta.Subtype]++
		case canvas.KindLine:
			length := measure.Measure(geom, e.Geometry).Total
			r.TotalCable += length
			if c := e.Meta.Cable; c != nil && c.Category != "" {
				key := c.Key()
				i, ok := cableIdx[key]
				if !ok {
					i = len(r.Cables)
					cableIdx[key] = i
					r.Cables = append(r.Cables, CableLine{Key: key, Spec: *c})
				}
				r.Cables[i].Length += length
				continue
			}
			i, ok := colorIdx[e.Style.Color]
			if !ok {
				i = len(r.Generic)
				colorIdx[e.Style.Color] = i
				r.Generic = append(r.Generic, ColorLine{Color: e.Style.Color})
			}
			r.Generic[i].Length += length
		case canvas.KindPolygon:
			r.Area += geom.Area(canvas.Ring(e.Geometry))
		}
	}

	for _, eq := range Equipment {
		if n := counts[eq.Subtype]; n > 0 {
			r.Equipment = append(r.Equipment, Count{Subtype: eq.Subtype, Name: eq.Name, Count: n})
		}
	}
	return r
}

func groupName(sess canvas.Session, groups []canvas.Group) string {
	if sess.ShowAllGroups {
		return AllGroupsName
	}
	for _, g := range groups {
		if g.ID == sess.ActiveGroupID {
			return g.Name
		}
	}
	return canvas.GroupName(sess.ActiveGroupID)
}

// Description is the report text of a cable: translated category, voltage,
// subcategory and mark, e.g. "Силовой 10кВ (АСБ)".
func Description(c canvas.CableSpec) string {
	desc := canvas.Translate(c.Category)
	if c.Voltage != "" {
		desc += " " + c.Voltage + "кВ"
	}
	if c.Subcategory != "" {
		desc += " " + canvas.Translate(c.Subcategory)
	}
	if c.Mark != "" {
		desc += " (" + c.Mark + ")"
	}
	return desc
}

// EquipmentTotal is the number of counted points.
func (r Report) EquipmentTotal() int {
	n := 0
	for _, c := range r.Equipment {
		n += c.Count
	}
	return n
}

func itoa(n int) string { return strconv.Itoa(n) }
