// Package measure keeps the derived lengths and labels of line entities.
//
// The Engine listens to the canvas store and recomputes a line's
// measurement a short while after its geometry stops changing. Results live
// in a side-table; entities never carry them.
package measure

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/neoncad/engine/internal/canvas"
	"github.com/neoncad/engine/internal/debounce"
	"github.com/neoncad/engine/internal/geometry"
	"github.com/neoncad/engine/pkg/logger"
)

// DefaultDelay is the recompute debounce window.
const DefaultDelay = 50 * time.Millisecond

// Measurement is the geodesic length of a path.
type Measurement struct {
	Segments []float64
	Total    float64
}

// Measure computes per-segment distances of coords and their sum.
func Measure(geom geometry.Service, coords []canvas.Coord) Measurement {
	m := Measurement{}
	if len(coords) < 2 {
		return m
	}
	m.Segments = make([]float64, len(coords)-1)
	for i := 1; i < len(coords); i++ {
		d := geom.Distance(coords[i-1].Point(), coords[i].Point())
		m.Segments[i-1] = d
		m.Total += d
	}
	return m
}

// Label is a piece of text pinned to a map position.
type Label struct {
	Anchor canvas.Coord
	Text   string
}

// View is what the renderer draws for one line.
type View struct {
	Measurement
	Segments []Label
	Total    Label
	Visible  bool
}

type entry struct {
	coords []canvas.Coord
	label  string
	m      Measurement
}

// Options configures an Engine. Zero values pick the defaults.
type Options struct {
	Scheduler debounce.Scheduler
	Delay     time.Duration
	Logger    *zap.Logger
}

// Engine maintains the measurement side-table for every line in a store.
type Engine struct {
	store *canvas.Store
	geom  geometry.Service
	log   *zap.Logger
	deb   *debounce.Keyed

	mu    sync.RWMutex
	table map[string]entry

	unsubscribe func()
}

// NewEngine subscribes to store and measures the lines already in it.
func NewEngine(store *canvas.Store, geom geometry.Service, opts Options) *Engine {
	if geom == nil {
		geom = geometry.Geodesic{}
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	e := &Engine{
		store: store,
		geom:  geom,
		log:   logger.OrNop(opts.Logger).Named("measure"),
		deb:   debounce.NewKeyed(opts.Scheduler, opts.Delay),
		table: map[string]entry{},
	}
	e.unsubscribe = store.Subscribe(e.onChange)
	store.ForEach(func(ent canvas.Entity) {
		if ent.Kind == canvas.KindLine {
			e.schedule(ent.ID)
		}
	})
	return e
}

// Close stops listening and drops pending recomputes.
func (e *Engine) Close() {
	e.unsubscribe()
	e.deb.CancelAll()
}

func (e *Engine) onChange(ev canvas.ChangeEvent) {
	switch ev.Op {
	case canvas.OpCreated, canvas.OpUpdated:
		if ev.Kind == canvas.KindLine {
			e.schedule(ev.EntityID)
		}
	case canvas.OpDeleted:
		e.deb.Cancel(ev.EntityID)
		e.mu.Lock()
		delete(e.table, ev.EntityID)
		e.mu.Unlock()
	case canvas.OpCleared:
		e.deb.CancelAll()
		e.mu.Lock()
		e.table = map[string]entry{}
		e.mu.Unlock()
	}
}

func (e *Engine) schedule(id string) {
	e.deb.Trigger(id, func() { e.recompute(id) })
}

// recompute reads the geometry at fire time, so a burst of edits costs one
// computation over the latest shape.
func (e *Engine) recompute(id string) {
	ent, ok := e.store.Get(id)
	if !ok || ent.Kind != canvas.KindLine {
		e.mu.Lock()
		delete(e.table, id)
		e.mu.Unlock()
		return
	}
	m := Measure(e.geom, ent.Geometry)

	e.mu.Lock()
	e.table[id] = entry{coords: ent.Geometry, label: ent.Label, m: m}
	e.mu.Unlock()

	e.log.Debug("line measured",
		zap.String("entity_id", id),
		zap.Int("segments", len(m.Segments)),
		zap.Float64("total_m", m.Total),
	)
}

// Flush runs every pending recompute now and returns how many ran.
func (e *Engine) Flush() int {
	return e.deb.Flush()
}

// Pending lists entity ids with a recompute scheduled.
func (e *Engine) Pending() []string {
	return e.deb.Pending()
}

// Measurement returns the last computed measurement of a line.
func (e *Engine) Measurement(id string) (Measurement, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.table[id]
	return ent.m, ok
}

// Labels builds the label view of a line under the given session. The
// content is produced even when the labels are hidden.
func (e *Engine) Labels(id string, sess canvas.Session) (View, bool) {
	e.mu.RLock()
	ent, ok := e.table[id]
	e.mu.RUnlock()
	if !ok || len(ent.coords) < 2 {
		return View{}, false
	}

	v := View{Measurement: ent.m}
	for i, d := range ent.m.Segments {
		a, b := ent.coords[i], ent.coords[i+1]
		v.Segments = append(v.Segments, Label{
			Anchor: canvas.C((a.Lat+b.Lat)/2, (a.Lng+b.Lng)/2),
			Text:   FormatLength(d, sess.DecimalComma),
		})
	}
	v.Total = Label{
		Anchor: ent.coords[len(ent.coords)-1],
		Text:   TotalText(ent.label, ent.m.Total, sess.DecimalComma),
	}

	if current, ok := e.store.Get(id); ok {
		v.Visible = sess.LabelVisible(current)
	}
	return v, true
}

// TotalText is the caption of the total label: "∑ 1.25 км", prefixed with
// the user's label unless it already contains that text.
func TotalText(label string, total float64, comma bool) string {
	text := "∑ " + FormatLength(total, comma)
	if strings.TrimSpace(label) != "" && !strings.Contains(label, text) {
		text = label + " | " + text
	}
	return text
}
