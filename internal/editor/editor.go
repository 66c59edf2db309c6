// Package editor is the headless NeonCAD editor. It wires the entity
// store, the editing session, the measurement engine and the sync engine,
// and exposes the operator gestures as methods.
package editor

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/neoncad/engine/internal/bom"
	"github.com/neoncad/engine/internal/canvas"
	"github.com/neoncad/engine/internal/debounce"
	"github.com/neoncad/engine/internal/geometry"
	"github.com/neoncad/engine/internal/measure"
	"github.com/neoncad/engine/internal/merge"
	"github.com/neoncad/engine/internal/syncer"
	appErr "github.com/neoncad/engine/pkg/errors"
	"github.com/neoncad/engine/pkg/logger"
)

// Zone half extents of the default rectangle placed by PlaceZone.
const (
	ZoneDLat = 0.0003
	ZoneDLon = 0.0005
)

type Options struct {
	Geometry  geometry.Service
	Scheduler debounce.Scheduler

	// Remote enables the sync engine. Without it the editor never
	// persists on its own.
	Remote   syncer.Persistence
	Local    syncer.Persistence
	Notifier syncer.Notifier

	MeasureDelay time.Duration
	SaveDelay    time.Duration
	SettleDelay  time.Duration
	DecimalComma bool

	Logger *zap.Logger
}

type Editor struct {
	store   *canvas.Store
	geom    geometry.Service
	measure *measure.Engine
	sync    *syncer.Engine
	log     *zap.Logger

	mu   sync.Mutex
	sess canvas.Session

	drawMu  sync.Mutex
	drawing *merge.Drawing

	detach func()
}

func New(opts Options) *Editor {
	if opts.Geometry == nil {
		opts.Geometry = geometry.Geodesic{}
	}
	log := logger.OrNop(opts.Logger)

	store := canvas.NewStore()
	sess := canvas.NewSession()
	sess.DecimalComma = opts.DecimalComma

	e := &Editor{
		store: store,
		geom:  opts.Geometry,
		log:   log.Named("editor"),
		sess:  sess,
	}
	e.measure = measure.NewEngine(store, opts.Geometry, measure.Options{
		Scheduler: opts.Scheduler,
		Delay:     opts.MeasureDelay,
		Logger:    log,
	})
	if opts.Remote != nil {
		e.sync = syncer.New(e, opts.Remote, syncer.Options{
			Local:       opts.Local,
			Notifier:    opts.Notifier,
			Scheduler:   opts.Scheduler,
			SaveDelay:   opts.SaveDelay,
			SettleDelay: opts.SettleDelay,
			Logger:      log,
		})
		e.detach = e.sync.Attach(store)
	}
	return e
}

// Store exposes the document for read access.
func (e *Editor) Store() *canvas.Store { return e.store }

// Sync is the sync engine, nil when no remote was configured.
func (e *Editor) Sync() *syncer.Engine { return e.sync }

// Session returns a copy of the editing session.
func (e *Editor) Session() canvas.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess
}

func (e *Editor) updateSession(f func(*canvas.Session)) {
	e.mu.Lock()
	f(&e.sess)
	e.mu.Unlock()
	if e.sync != nil {
		e.sync.Changed()
	}
}

// Load replaces the document through the sync engine.
func (e *Editor) Load(ctx context.Context) (syncer.Origin, error) {
	if e.sync == nil {
		return syncer.OriginNone, appErr.New(appErr.CodeUnavailable, "no persistence configured")
	}
	return e.sync.Load(ctx)
}

// Flush writes a pending save now.
func (e *Editor) Flush(ctx context.Context) error {
	if e.sync == nil {
		return nil
	}
	return e.sync.Flush(ctx)
}

// Close stops the engines. Pending saves are dropped; call Flush first.
func (e *Editor) Close() {
	e.CancelLine()
	if e.detach != nil {
		e.detach()
	}
	if e.sync != nil {
		e.sync.Close()
	}
	e.measure.Close()
}

// Placement

// PlacePoint places an infrastructure point of subtype in the active group.
// A task subtype starts as an active task whose text is label.
func (e *Editor) PlacePoint(subtype string, at canvas.Coord, label string) (string, error) {
	sess := e.Session()
	in := canvas.EntityInput{
		Kind:     canvas.KindPoint,
		GroupID:  sess.ActiveGroupID,
		Geometry: []canvas.Coord{at},
		Style:    sess.LineStyle(),
		Label:    strings.TrimSpace(label),
		Meta:     canvas.Metadata{Subtype: subtype, IconColor: sess.Color},
	}
	if subtype == canvas.SubtypeTask {
		task, text, color := canvas.ApplyTask(nil, canvas.TaskActive, in.Label, "")
		in.Meta.Task = &task
		in.Meta.IconColor = color
		in.Label = text
	}
	return e.store.Create(in)
}

func (e *Editor) PlaceText(at canvas.Coord, text string) (string, error) {
	sess := e.Session()
	return e.store.Create(canvas.EntityInput{
		Kind:     canvas.KindText,
		GroupID:  sess.ActiveGroupID,
		Geometry: []canvas.Coord{at},
		Style:    sess.LineStyle(),
		Label:    text,
		Meta:     canvas.Metadata{IconColor: sess.Color},
	})
}

func (e *Editor) PlacePolygon(ring []canvas.Coord) (string, error) {
	sess := e.Session()
	style := sess.LineStyle()
	style.Opacity = canvas.DefaultPolygonOpacity
	return e.store.Create(canvas.EntityInput{
		Kind:     canvas.KindPolygon,
		GroupID:  sess.ActiveGroupID,
		Geometry: ring,
		Style:    style,
	})
}

// PlaceZone places the default rectangle centered on at.
func (e *Editor) PlaceZone(at canvas.Coord) (string, error) {
	return e.PlacePolygon(ZoneRing(at))
}

// ZoneRing is the closed default zone rectangle around c.
func ZoneRing(c canvas.Coord) []canvas.Coord {
	return []canvas.Coord{
		canvas.C(c.Lat-ZoneDLat, c.Lng-ZoneDLon),
		canvas.C(c.Lat+ZoneDLat, c.Lng-ZoneDLon),
		canvas.C(c.Lat+ZoneDLat, c.Lng+ZoneDLon),
		canvas.C(c.Lat-ZoneDLat, c.Lng+ZoneDLon),
		canvas.C(c.Lat-ZoneDLat, c.Lng-ZoneDLon),
	}
}

// Drawing

// StartLine begins a new line in the active group with the session style.
// A drawing already in progress is canceled.
func (e *Editor) StartLine() *merge.Drawing {
	sess := e.Session()
	e.drawMu.Lock()
	defer e.drawMu.Unlock()
	e.cancelLocked()
	e.drawing = merge.Start(e.store, sess.LineStyle(), sess.ActiveGroupID)
	return e.drawing
}

// ContinueLine begins a drawing seeded at the vertex of targetID nearest
// to click.
func (e *Editor) ContinueLine(targetID string, click canvas.Coord) (*merge.Drawing, error) {
	e.drawMu.Lock()
	defer e.drawMu.Unlock()
	d, err := merge.Continue(e.store, e.geom, targetID, click)
	if err != nil {
		return nil, err
	}
	e.cancelLocked()
	e.drawing = d
	return d, nil
}

// AddPoint extends the drawing in progress.
func (e *Editor) AddPoint(c canvas.Coord) error {
	e.drawMu.Lock()
	defer e.drawMu.Unlock()
	if e.drawing == nil {
		return appErr.New(appErr.CodeConflict, "no line is being drawn")
	}
	return e.drawing.Add(c)
}

// FinishLine ends the drawing in progress.
func (e *Editor) FinishLine() (merge.Outcome, error) {
	e.drawMu.Lock()
	defer e.drawMu.Unlock()
	if e.drawing == nil {
		return merge.Outcome{}, appErr.New(appErr.CodeConflict, "no line is being drawn")
	}
	d := e.drawing
	e.drawing = nil
	out, err := d.Finish()
	if err != nil {
		return out, err
	}
	e.log.Debug("line finished", zap.Stringer("result", out.Result), zap.String("entity_id", out.EntityID))
	return out, nil
}

// CancelLine discards the drawing in progress, if any.
func (e *Editor) CancelLine() {
	e.drawMu.Lock()
	defer e.drawMu.Unlock()
	e.cancelLocked()
}

func (e *Editor) cancelLocked() {
	if e.drawing == nil {
		return
	}
	if err := e.drawing.Cancel(); err != nil && !appErr.IsCode(err, appErr.CodeNotFound) {
		e.log.Warn("cancel drawing", zap.Error(err))
	}
	e.drawing = nil
}

// Editing

func (e *Editor) Rename(id, label string) error {
	return e.store.Update(id, canvas.Patch{Label: &label})
}

// SetColor recolors an entity: the stroke of lines and polygons, the icon
// of points and text.
func (e *Editor) SetColor(id, color string) error {
	ent, ok := e.store.Get(id)
	if !ok {
		return appErr.Newf(appErr.CodeNotFound, "entity %s not found", id)
	}
	switch ent.Kind {
	case canvas.KindPoint, canvas.KindText:
		meta := ent.Meta
		meta.IconColor = color
		return e.store.Update(id, canvas.Patch{Meta: &meta})
	default:
		style := ent.Style
		style.Color = color
		return e.store.Update(id, canvas.Patch{Style: &style})
	}
}

// SetCable attaches a cable spec to a line and labels it after the spec.
func (e *Editor) SetCable(id string, spec canvas.CableSpec) error {
	ent, ok := e.store.Get(id)
	if !ok {
		return appErr.Newf(appErr.CodeNotFound, "entity %s not found", id)
	}
	if ent.Kind != canvas.KindLine {
		return appErr.Newf(appErr.CodeInvalid, "entity %s is a %s, cables are lines", id, ent.Kind)
	}
	meta := ent.Meta
	meta.Cable = &spec
	label := spec.Label()
	return e.store.Update(id, canvas.Patch{Meta: &meta, Label: &label})
}

// SetTask updates the task carried by a point. A closed task that becomes
// active again is marked reopened.
func (e *Editor) SetTask(id string, status canvas.TaskStatus, text, comment string) error {
	switch status {
	case canvas.TaskActive, canvas.TaskDone, canvas.TaskCanceled:
	default:
		return appErr.Newf(appErr.CodeInvalid, "unknown task status %q", status)
	}
	ent, ok := e.store.Get(id)
	if !ok {
		return appErr.Newf(appErr.CodeNotFound, "entity %s not found", id)
	}
	if ent.Kind != canvas.KindPoint {
		return appErr.Newf(appErr.CodeInvalid, "entity %s is a %s, tasks are points", id, ent.Kind)
	}
	task, label, color := canvas.ApplyTask(ent.Meta.Task, status, text, comment)
	meta := ent.Meta
	meta.Subtype = canvas.SubtypeTask
	meta.Task = &task
	meta.IconColor = color
	return e.store.Update(id, canvas.Patch{Meta: &meta, Label: &label})
}

// Erase removes a point or text. Lines and polygons are left alone.
func (e *Editor) Erase(id string) error {
	ent, ok := e.store.Get(id)
	if !ok {
		return appErr.Newf(appErr.CodeNotFound, "entity %s not found", id)
	}
	if ent.Kind != canvas.KindPoint && ent.Kind != canvas.KindText {
		return appErr.Newf(appErr.CodeInvalid, "the eraser only removes points, %s is a %s", id, ent.Kind)
	}
	return e.store.Delete(id)
}

func (e *Editor) Delete(id string) error {
	return e.store.Delete(id)
}

// MoveToGroup moves an entity to another group.
func (e *Editor) MoveToGroup(id string, groupID int) error {
	return e.store.SetGroup(id, groupID)
}

// Groups

// AddGroup creates a group and makes it the only visible one.
func (e *Editor) AddGroup(name string) canvas.Group {
	g := e.store.AddGroup(strings.TrimSpace(name))
	e.updateSession(func(s *canvas.Session) {
		s.ActiveGroupID = g.ID
		s.ShowAllGroups = false
	})
	return g
}

func (e *Editor) RenameGroup(id int, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return appErr.New(appErr.CodeInvalid, "group name is required")
	}
	return e.store.RenameGroup(id, name)
}

// DeleteGroup deletes a group with its entities. Deleting the active group
// shows all groups and activates the first one left.
func (e *Editor) DeleteGroup(id int) error {
	if err := e.store.DeleteGroup(id); err != nil {
		return err
	}
	groups := e.store.Groups()
	e.mu.Lock()
	if e.sess.ActiveGroupID == id {
		e.sess.ShowAllGroups = true
		e.sess.ActiveGroupID = groups[0].ID
	}
	e.mu.Unlock()
	return nil
}

// SetActiveGroup shows only group id and places new entities in it.
func (e *Editor) SetActiveGroup(id int) error {
	if _, ok := e.store.Group(id); !ok {
		return appErr.Newf(appErr.CodeNotFound, "group %d not found", id)
	}
	e.updateSession(func(s *canvas.Session) {
		s.ActiveGroupID = id
		s.ShowAllGroups = false
	})
	return nil
}

func (e *Editor) ShowAllGroups() {
	e.updateSession(func(s *canvas.Session) { s.ShowAllGroups = true })
}

// SetShowMeasurements toggles measurement labels. It is a view setting and
// does not mark the document changed.
func (e *Editor) SetShowMeasurements(on bool) {
	e.mu.Lock()
	e.sess.ShowMeasurements = on
	e.mu.Unlock()
}

// SetLineStyle sets the style new lines are drawn with.
func (e *Editor) SetLineStyle(style canvas.Style) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if style.Color != "" {
		e.sess.Color = style.Color
	}
	if style.Width > 0 {
		e.sess.Width = style.Width
	}
	if style.Opacity > 0 {
		e.sess.Opacity = style.Opacity
	}
	if style.Dash != "" {
		e.sess.Dash = style.Dash
	}
}

// Clear removes everything and resets the groups.
func (e *Editor) Clear() {
	e.CancelLine()
	e.store.Clear()
	e.mu.Lock()
	e.sess.ActiveGroupID = canvas.DefaultGroups()[0].ID
	e.sess.ShowAllGroups = true
	e.mu.Unlock()
}

// Views

// VisibleEntities lists the entities shown under the current group filter.
func (e *Editor) VisibleEntities() []canvas.Entity {
	sess := e.Session()
	var out []canvas.Entity
	e.store.ForEach(func(ent canvas.Entity) {
		if sess.Visible(ent) {
			out = append(out, ent)
		}
	})
	return out
}

// Measurements returns the labels of line id.
func (e *Editor) Measurements(id string) (measure.View, bool) {
	return e.measure.Labels(id, e.Session())
}

// FlushMeasurements runs pending recomputes now.
func (e *Editor) FlushMeasurements() int { return e.measure.Flush() }

// BOM aggregates the visible entities.
func (e *Editor) BOM() bom.Report {
	return bom.Aggregate(e.store.Entities(), e.Session(), e.store.Groups(), e.geom)
}

// Snapshots

// Capture implements syncer.Source.
func (e *Editor) Capture() canvas.Snapshot {
	return canvas.Capture(e.store, e.Session())
}

// Restore implements syncer.Source. Entities that fail validation are
// logged and skipped; the rest of the document is loaded.
func (e *Editor) Restore(snap canvas.Snapshot) error {
	e.CancelLine()
	if err := e.store.Replace(snap.Groups, snap.Entities); err != nil {
		e.log.Warn("snapshot restored with skipped entities", zap.Error(err))
	}
	if snap.Skipped > 0 {
		e.log.Warn("legacy objects skipped", zap.Int("skipped", snap.Skipped))
	}

	active := snap.ActiveGroupID
	if _, ok := e.store.Group(active); !ok {
		active = e.store.Groups()[0].ID
	}
	e.mu.Lock()
	e.sess.ActiveGroupID = active
	e.sess.ShowAllGroups = snap.ShowAllGroups
	e.mu.Unlock()
	return nil
}

var _ syncer.Source = (*Editor)(nil)
