package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/neoncad/engine/internal/canvas"
	"github.com/neoncad/engine/internal/debounce"
	appErr "github.com/neoncad/engine/pkg/errors"
)

type mockPersistence struct {
	mock.Mock
}

func (m *mockPersistence) Load(ctx context.Context) (*canvas.Snapshot, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*canvas.Snapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPersistence) Save(ctx context.Context, snap canvas.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

type note struct {
	msg     string
	isError bool
}

type recorder struct {
	mu    sync.Mutex
	notes []note
}

func (r *recorder) Notify(msg string, isError bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note{msg, isError})
}

func (r *recorder) all() []note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]note(nil), r.notes...)
}

type document struct {
	store *canvas.Store
	sess  canvas.Session
}

func (d *document) Capture() canvas.Snapshot { return canvas.Capture(d.store, d.sess) }

func (d *document) Restore(s canvas.Snapshot) error {
	d.sess.ActiveGroupID = s.ActiveGroupID
	d.sess.ShowAllGroups = s.ShowAllGroups
	return d.store.Replace(s.Groups, s.Entities)
}

type fixture struct {
	clock  *debounce.Manual
	doc    *document
	remote *mockPersistence
	local  *mockPersistence
	notes  *recorder
	eng    *Engine
}

func newFixture(t *testing.T, withLocal bool) *fixture {
	t.Helper()
	f := &fixture{
		clock:  debounce.NewManual(),
		doc:    &document{store: canvas.NewStore(), sess: canvas.NewSession()},
		remote: &mockPersistence{},
		notes:  &recorder{},
	}
	opts := Options{Notifier: f.notes, Scheduler: f.clock}
	if withLocal {
		f.local = &mockPersistence{}
		opts.Local = f.local
	}
	f.eng = New(f.doc, f.remote, opts)
	t.Cleanup(f.eng.Attach(f.doc.store))
	return f
}

func (f *fixture) addPoint(t *testing.T, lat float64) {
	t.Helper()
	_, err := f.doc.store.Create(canvas.EntityInput{Kind: canvas.KindPoint, Geometry: []canvas.Coord{canvas.C(lat, 37)}})
	require.NoError(t, err)
}

func entityCount(n int) any {
	return mock.MatchedBy(func(s canvas.Snapshot) bool { return len(s.Entities) == n })
}

func TestBurstOfChangesSavesOnce(t *testing.T) {
	f := newFixture(t, true)
	f.remote.On("Save", mock.Anything, entityCount(3)).Return(nil).Once()
	f.local.On("Save", mock.Anything, entityCount(3)).Return(nil).Once()

	for i := 0; i < 3; i++ {
		f.addPoint(t, float64(i))
		f.clock.Advance(500 * time.Millisecond)
	}
	f.remote.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.True(t, f.eng.Pending())

	f.clock.Advance(DefaultSaveDelay)
	f.remote.AssertExpectations(t)
	f.local.AssertExpectations(t)
	assert.Equal(t, Idle, f.eng.State())
	assert.Equal(t, 1, f.eng.Saves())
	assert.Equal(t, []note{{MsgSaved, false}}, f.notes.all())
}

func TestLoadSuppressesPendingAndConcurrentSaves(t *testing.T) {
	f := newFixture(t, false)
	f.addPoint(t, 1)
	f.clock.Advance(1500 * time.Millisecond)

	stored := canvas.Blank()
	stored.Entities = []canvas.Entity{
		{ID: "a", Kind: canvas.KindPoint, GroupID: 1, Geometry: []canvas.Coord{canvas.C(10, 10)}},
		{ID: "b", Kind: canvas.KindPoint, GroupID: 1, Geometry: []canvas.Coord{canvas.C(11, 11)}},
	}
	f.remote.On("Load", mock.Anything).Return(&stored, nil).Once().Run(func(mock.Arguments) {
		assert.Equal(t, Loading, f.eng.State())
		// an edit racing the load, and enough time for any armed save
		f.eng.Changed()
		f.clock.Advance(3 * time.Second)
	})

	origin, err := f.eng.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginRemote, origin)
	assert.Equal(t, 2, f.doc.store.Len())
	assert.Equal(t, Loading, f.eng.State())
	assert.GreaterOrEqual(t, f.eng.Suppressed(), 1)

	// restore events fall inside the settle window
	f.clock.Advance(5 * time.Second)
	f.remote.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Equal(t, Idle, f.eng.State())

	f.remote.On("Save", mock.Anything, entityCount(3)).Return(nil).Once()
	f.addPoint(t, 2)
	f.clock.Advance(DefaultSaveDelay)
	f.remote.AssertExpectations(t)
	assert.Equal(t, []note{{MsgLoaded, false}, {MsgSaved, false}}, f.notes.all())
}

func TestSaveFailureNotifiesWithoutRetry(t *testing.T) {
	f := newFixture(t, true)
	f.remote.On("Save", mock.Anything, mock.Anything).Return(errors.New("boom")).Once()

	f.addPoint(t, 1)
	f.clock.Advance(DefaultSaveDelay)
	f.clock.Advance(10 * DefaultSaveDelay)

	f.remote.AssertNumberOfCalls(t, "Save", 1)
	f.local.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Equal(t, []note{{MsgSaveFailed, true}}, f.notes.all())
	assert.Equal(t, 1, f.doc.store.Len())
	assert.Equal(t, Idle, f.eng.State())
}

func TestTimerFiringDuringSaveRearms(t *testing.T) {
	f := newFixture(t, false)
	f.remote.On("Save", mock.Anything, entityCount(1)).Return(nil).Once().Run(func(mock.Arguments) {
		assert.Equal(t, Saving, f.eng.State())
		f.eng.fire()
	})
	f.remote.On("Save", mock.Anything, entityCount(1)).Return(nil).Once()

	f.addPoint(t, 1)
	f.clock.Advance(DefaultSaveDelay)
	f.remote.AssertNumberOfCalls(t, "Save", 1)
	assert.True(t, f.eng.Pending())

	f.clock.Advance(DefaultSaveDelay)
	f.remote.AssertNumberOfCalls(t, "Save", 2)
	assert.False(t, f.eng.Pending())
}

func TestLoadFallsBackToLocal(t *testing.T) {
	f := newFixture(t, true)
	local := canvas.Blank()
	local.Entities = []canvas.Entity{{ID: "x", Kind: canvas.KindText, GroupID: 1, Label: "A", Geometry: []canvas.Coord{canvas.C(1, 1)}}}
	f.remote.On("Load", mock.Anything).Return(nil, errors.New("connection refused")).Once()
	f.local.On("Load", mock.Anything).Return(&local, nil).Once()

	origin, err := f.eng.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginLocal, origin)
	assert.Equal(t, 1, f.doc.store.Len())
	assert.Equal(t, []note{{MsgRemoteFailed, true}, {MsgLocalCopy, false}}, f.notes.all())
}

func TestLoadFailureLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t, false)
	f.addPoint(t, 1)
	f.eng.Close()
	f.remote.On("Load", mock.Anything).Return(nil, errors.New("timeout")).Once()

	origin, err := f.eng.Load(context.Background())
	assert.Equal(t, OriginNone, origin)
	assert.True(t, appErr.IsCode(err, appErr.CodeTransferFailed))
	assert.Equal(t, 1, f.doc.store.Len())

	f.clock.Advance(DefaultSettleDelay)
	assert.Equal(t, Idle, f.eng.State())
}

func TestLoadStartsBlankProject(t *testing.T) {
	f := newFixture(t, true)
	f.addPoint(t, 1)
	f.remote.On("Load", mock.Anything).Return(nil, nil).Once()
	f.local.On("Load", mock.Anything).Return(nil, nil).Once()

	origin, err := f.eng.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginBlank, origin)
	assert.Zero(t, f.doc.store.Len())
	assert.Equal(t, canvas.DefaultGroups(), f.doc.store.Groups())
	assert.Equal(t, []note{{MsgNewProject, false}}, f.notes.all())
}

func TestFlushSavesImmediately(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.eng.Flush(context.Background()))

	f.remote.On("Save", mock.Anything, entityCount(1)).Return(nil).Once()
	f.addPoint(t, 1)
	require.NoError(t, f.eng.Flush(context.Background()))
	f.remote.AssertExpectations(t)
	assert.False(t, f.eng.Pending())

	f.remote.On("Save", mock.Anything, mock.Anything).Return(errors.New("down")).Once()
	f.addPoint(t, 2)
	err := f.eng.Flush(context.Background())
	assert.True(t, appErr.IsCode(err, appErr.CodeTransferFailed))
}

func TestSaveInFlightDuringLoadSkipsLocalMirror(t *testing.T) {
	f := newFixture(t, true)
	f.addPoint(t, 1)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.remote.On("Save", mock.Anything, entityCount(1)).Return(nil).Once().Run(func(mock.Arguments) {
		close(entered)
		<-release
	})

	saveDone := make(chan error, 1)
	go func() { saveDone <- f.eng.Flush(context.Background()) }()
	<-entered

	f.remote.On("Load", mock.Anything).Return(nil, nil).Once().Run(func(mock.Arguments) {
		// the write completes while the load is running
		close(release)
		require.NoError(t, <-saveDone)
	})
	f.local.On("Load", mock.Anything).Return(nil, nil).Once()

	origin, err := f.eng.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OriginBlank, origin)
	f.local.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.GreaterOrEqual(t, f.eng.Suppressed(), 1)
	assert.Equal(t, 1, f.eng.Saves())
}
