// Package merge implements line drawing and continuation: a new drawing
// can be seeded at the nearest vertex of an existing line and, when that
// vertex is an end of the line, spliced into it on finish.
package merge

import (
	"math"
	"slices"

	"github.com/neoncad/engine/internal/canvas"
	"github.com/neoncad/engine/internal/geometry"
	appErr "github.com/neoncad/engine/pkg/errors"
)

// Store is the part of canvas.Store a drawing needs.
type Store interface {
	Create(in canvas.EntityInput) (string, error)
	Update(id string, p canvas.Patch) error
	Delete(id string) error
	Get(id string) (canvas.Entity, bool)
}

var _ Store = (*canvas.Store)(nil)

// NearestVertex returns the index of the vertex of coords closest to click,
// or -1 when coords is empty. Ties go to the lowest index.
func NearestVertex(geom geometry.Service, coords []canvas.Coord, click canvas.Coord) int {
	best, bestDist := -1, math.Inf(1)
	for i, c := range coords {
		if d := geom.Distance(c.Point(), click.Point()); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Result says what Finish did with the drawing.
type Result int

const (
	// Separate: the drawing stays its own line.
	Separate Result = iota
	// Appended: the drawing was added after the target's last vertex.
	Appended
	// Prepended: the drawing was reversed and put before the target's first vertex.
	Prepended
)

func (r Result) String() string {
	switch r {
	case Appended:
		return "appended"
	case Prepended:
		return "prepended"
	}
	return "separate"
}

// Outcome reports the result and the id of the line that holds the drawn
// points afterwards: the target for a splice, the new line otherwise.
type Outcome struct {
	Result   Result
	EntityID string
}

// Drawing is an in-progress line. It becomes a temporary line entity once
// it has two points.
type Drawing struct {
	store   Store
	style   canvas.Style
	groupID int

	points []canvas.Coord
	tempID string

	targetID  string
	seedIndex int

	done bool
}

// Start begins a plain drawing.
func Start(store Store, style canvas.Style, groupID int) *Drawing {
	return &Drawing{store: store, style: style, groupID: groupID, seedIndex: -1}
}

// Continue begins a drawing seeded at the vertex of line targetID nearest
// to click. The drawing takes the target's stroke.
func Continue(store Store, geom geometry.Service, targetID string, click canvas.Coord) (*Drawing, error) {
	target, ok := store.Get(targetID)
	if !ok {
		return nil, appErr.Newf(appErr.CodeNotFound, "entity %s not found", targetID)
	}
	if target.Kind != canvas.KindLine {
		return nil, appErr.Newf(appErr.CodeInvalid, "entity %s is a %s, only lines can be continued", targetID, target.Kind)
	}
	idx := NearestVertex(geom, target.Geometry, click)
	if idx < 0 {
		return nil, appErr.Newf(appErr.CodeInvalidGeometry, "line %s has no vertices", targetID)
	}
	return &Drawing{
		store:     store,
		style:     target.Style,
		groupID:   target.GroupID,
		points:    []canvas.Coord{target.Geometry[idx]},
		targetID:  targetID,
		seedIndex: idx,
	}, nil
}

// Points returns a copy of the drawn sequence, seed included.
func (d *Drawing) Points() []canvas.Coord { return slices.Clone(d.points) }

// TempID is the id of the temporary line, empty until two points exist.
func (d *Drawing) TempID() string { return d.tempID }

// Target is the line being continued and the seed vertex index, or "" and -1.
func (d *Drawing) Target() (string, int) { return d.targetID, d.seedIndex }

// Add appends a point to the drawing.
func (d *Drawing) Add(c canvas.Coord) error {
	if d.done {
		return appErr.New(appErr.CodeConflict, "drawing already finished")
	}
	next := append(slices.Clone(d.points), c)
	switch {
	case d.tempID != "":
		if err := d.store.Update(d.tempID, canvas.Patch{Geometry: next}); err != nil {
			return err
		}
	case len(next) >= 2:
		id, err := d.store.Create(canvas.EntityInput{
			Kind:     canvas.KindLine,
			GroupID:  d.groupID,
			Geometry: next,
			Style:    d.style,
		})
		if err != nil {
			return err
		}
		d.tempID = id
	}
	d.points = next
	return nil
}

// Cancel discards the drawing and its temporary line.
func (d *Drawing) Cancel() error {
	if d.done {
		return nil
	}
	d.done = true
	return d.dropTemp()
}

func (d *Drawing) dropTemp() error {
	if d.tempID == "" {
		return nil
	}
	id := d.tempID
	d.tempID = ""
	return d.store.Delete(id)
}

// Finish ends the drawing. A drawing with fewer than two points yields a
// MergeNoOp error and leaves nothing behind. A drawing seeded at an end of
// its target is spliced into the target; any other drawing stays a
// separate line.
func (d *Drawing) Finish() (Outcome, error) {
	if d.done {
		return Outcome{}, appErr.New(appErr.CodeConflict, "drawing already finished")
	}
	d.done = true

	if len(d.points) < 2 {
		if err := d.dropTemp(); err != nil {
			return Outcome{}, err
		}
		return Outcome{}, appErr.Newf(appErr.CodeMergeNoOp, "drawing has %d point(s), need at least 2", len(d.points))
	}

	separate := Outcome{Result: Separate, EntityID: d.tempID}
	if d.targetID == "" {
		return separate, nil
	}
	target, ok := d.store.Get(d.targetID)
	if !ok {
		return separate, nil
	}

	orig := target.Geometry
	tail := slices.Clone(d.points[1:])
	var (
		merged []canvas.Coord
		result Result
	)
	switch d.seedIndex {
	case len(orig) - 1:
		merged = append(slices.Clone(orig), tail...)
		result = Appended
	case 0:
		slices.Reverse(tail)
		merged = append(tail, orig...)
		result = Prepended
	default:
		return separate, nil
	}

	if err := d.store.Update(d.targetID, canvas.Patch{Geometry: merged}); err != nil {
		return separate, err
	}
	if err := d.dropTemp(); err != nil {
		return Outcome{}, err
	}
	return Outcome{Result: result, EntityID: d.targetID}, nil
}
