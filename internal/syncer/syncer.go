// Package syncer persists the editor's document with a debounced writer
// and keeps reads and writes from overlapping.
//
// A save is armed by every change and fires after the save delay. While a
// load is in progress (and for a settle period after the restore) saves
// are suppressed, so a write never carries state the load is replacing.
package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/neoncad/engine/internal/canvas"
	"github.com/neoncad/engine/internal/debounce"
	appErr "github.com/neoncad/engine/pkg/errors"
	"github.com/neoncad/engine/pkg/logger"
)

const (
	DefaultSaveDelay   = 2 * time.Second
	DefaultSettleDelay = time.Second
)

// Notification texts shown to the operator.
const (
	MsgSaved        = "Сохранено"
	MsgSaveFailed   = "Ошибка сохранения"
	MsgLoaded       = "Загружено"
	MsgLocalCopy    = "Загружена локальная копия"
	MsgNewProject   = "Новый проект"
	MsgRemoteFailed = "Сервер недоступен"
)

type State int

const (
	Idle State = iota
	Loading
	Saving
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Saving:
		return "saving"
	}
	return "idle"
}

// Source captures and restores the document being synchronized.
type Source interface {
	Capture() canvas.Snapshot
	Restore(snap canvas.Snapshot) error
}

// Persistence reads and writes snapshots. Load returns nil, nil when
// nothing has been stored yet.
type Persistence interface {
	Load(ctx context.Context) (*canvas.Snapshot, error)
	Save(ctx context.Context, snap canvas.Snapshot) error
}

// Notifier surfaces transient messages to the operator.
type Notifier interface {
	Notify(message string, isError bool)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string, isError bool)

func (f NotifierFunc) Notify(message string, isError bool) { f(message, isError) }

// Origin says where Load took the document from.
type Origin int

const (
	OriginNone Origin = iota
	OriginRemote
	OriginLocal
	OriginBlank
)

func (o Origin) String() string {
	switch o {
	case OriginRemote:
		return "remote"
	case OriginLocal:
		return "local"
	case OriginBlank:
		return "blank"
	}
	return "none"
}

type Options struct {
	// Local is the fallback store. It mirrors every successful remote save
	// and is read when the remote has nothing or fails.
	Local       Persistence
	Notifier    Notifier
	Scheduler   debounce.Scheduler
	SaveDelay   time.Duration
	SettleDelay time.Duration
	Logger      *zap.Logger
}

// Engine is the save/load state machine.
type Engine struct {
	src    Source
	remote Persistence
	local  Persistence
	notify Notifier
	log    *zap.Logger

	saveTimer   *debounce.Debouncer
	settleTimer *debounce.Debouncer

	// saveMu serializes transfers; mu guards the fields below it.
	saveMu     sync.Mutex
	mu         sync.Mutex
	state      State
	dirty      bool
	suppressed int
	saves      int
}

func New(src Source, remote Persistence, opts Options) *Engine {
	if opts.SaveDelay <= 0 {
		opts.SaveDelay = DefaultSaveDelay
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(string, bool) {})
	}
	return &Engine{
		src:         src,
		remote:      remote,
		local:       opts.Local,
		notify:      opts.Notifier,
		log:         logger.OrNop(opts.Logger).Named("sync"),
		saveTimer:   debounce.New(opts.Scheduler, opts.SaveDelay),
		settleTimer: debounce.New(opts.Scheduler, opts.SettleDelay),
	}
}

// Attach calls Changed on every mutation of store. It returns the
// unsubscribe function.
func (e *Engine) Attach(store *canvas.Store) func() {
	return store.Subscribe(func(canvas.ChangeEvent) { e.Changed() })
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Suppressed is the number of saves dropped because a load was running.
func (e *Engine) Suppressed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.suppressed
}

// Saves is the number of successful remote saves.
func (e *Engine) Saves() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saves
}

// Pending reports whether a save is armed.
func (e *Engine) Pending() bool {
	return e.saveTimer.Pending()
}

// Changed records that the document changed and (re)arms the save timer.
func (e *Engine) Changed() {
	e.mu.Lock()
	if e.state == Loading {
		e.suppressLocked("change during load")
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	e.saveTimer.Trigger(e.fire)
}

func (e *Engine) suppressLocked(reason string) {
	e.suppressed++
	e.log.Debug("stale write suppressed",
		zap.String("reason", reason),
		zap.Int("suppressed", e.suppressed),
		zap.String("code", string(appErr.CodeStaleWrite)),
	)
}

func (e *Engine) fire() {
	e.mu.Lock()
	switch e.state {
	case Loading:
		e.suppressLocked("timer fired during load")
		e.mu.Unlock()
		return
	case Saving:
		// re-armed once the write in flight completes
		e.dirty = true
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	_ = e.save(context.Background())
}

func (e *Engine) save(ctx context.Context) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	e.mu.Lock()
	if e.state == Loading {
		e.suppressLocked("save during load")
		e.mu.Unlock()
		return nil
	}
	e.state = Saving
	e.mu.Unlock()

	snap := e.src.Capture()
	start := time.Now()
	err := e.remote.Save(ctx, snap)

	if err != nil {
		e.log.Error("save failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		e.notify.Notify(MsgSaveFailed, true)
		err = appErr.Wrap(err, appErr.CodeTransferFailed, "save snapshot")
	} else {
		// A load may have started while the write was in flight; the
		// snapshot is then older than what the load brings in.
		e.mu.Lock()
		loading := e.state == Loading
		if loading {
			e.suppressLocked("local mirror during load")
		}
		e.mu.Unlock()
		if e.local != nil && !loading {
			if lerr := e.local.Save(ctx, snap); lerr != nil {
				e.log.Warn("local mirror failed", zap.Error(lerr))
			}
		}
		e.log.Info("snapshot saved",
			zap.Int("entities", len(snap.Entities)),
			zap.Duration("elapsed", time.Since(start)),
		)
		e.notify.Notify(MsgSaved, false)
	}

	e.mu.Lock()
	if err == nil {
		e.saves++
	}
	if e.state == Saving {
		e.state = Idle
	}
	rearm := e.dirty
	e.dirty = false
	e.mu.Unlock()

	if rearm {
		e.saveTimer.Trigger(e.fire)
	}
	return err
}

// Flush performs a pending save now. It is the shutdown path; a pending
// save that would be suppressed stays suppressed.
func (e *Engine) Flush(ctx context.Context) error {
	pending := e.saveTimer.Cancel()
	e.mu.Lock()
	if e.dirty {
		pending = true
		e.dirty = false
	}
	e.mu.Unlock()
	if !pending {
		return nil
	}
	return e.save(ctx)
}

// Load replaces the document with the stored one. The remote is tried
// first; the local fallback is used when the remote fails or has nothing,
// and a blank project when neither has a snapshot. When the remote fails
// and there is no local copy the document is left untouched and a
// TransferFailed error is returned.
func (e *Engine) Load(ctx context.Context) (Origin, error) {
	e.saveTimer.Cancel()
	e.settleTimer.Cancel()
	e.mu.Lock()
	e.state = Loading
	e.dirty = false
	e.mu.Unlock()
	defer e.settleTimer.Trigger(e.settle)

	snap, err := e.remote.Load(ctx)
	if err != nil {
		e.log.Warn("remote load failed", zap.Error(err))
		e.notify.Notify(MsgRemoteFailed, true)

		local := e.loadLocal(ctx)
		if local == nil {
			return OriginNone, appErr.Wrap(err, appErr.CodeTransferFailed, "load snapshot")
		}
		if rerr := e.restore(*local); rerr != nil {
			return OriginNone, rerr
		}
		e.notify.Notify(MsgLocalCopy, false)
		return OriginLocal, nil
	}

	origin := OriginRemote
	msg := MsgLoaded
	if snap == nil {
		origin, msg = OriginLocal, MsgLocalCopy
		if snap = e.loadLocal(ctx); snap == nil {
			blank := canvas.Blank()
			snap = &blank
			origin, msg = OriginBlank, MsgNewProject
		}
	}
	if rerr := e.restore(*snap); rerr != nil {
		return OriginNone, rerr
	}
	e.notify.Notify(msg, false)
	e.log.Info("snapshot loaded", zap.Stringer("origin", origin), zap.Int("entities", len(snap.Entities)))
	return origin, nil
}

func (e *Engine) loadLocal(ctx context.Context) *canvas.Snapshot {
	if e.local == nil {
		return nil
	}
	snap, err := e.local.Load(ctx)
	if err != nil {
		e.log.Warn("local load failed", zap.Error(err))
		return nil
	}
	return snap
}

func (e *Engine) restore(snap canvas.Snapshot) error {
	if err := e.src.Restore(snap); err != nil {
		e.log.Error("restore failed", zap.Error(err))
		return err
	}
	return nil
}

func (e *Engine) settle() {
	e.mu.Lock()
	if e.state == Loading {
		e.state = Idle
	}
	e.mu.Unlock()
}

// Close drops pending timers without saving.
func (e *Engine) Close() {
	e.saveTimer.Cancel()
	e.settleTimer.Cancel()
}
