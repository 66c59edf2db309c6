package debounce

import (
	"sort"
	"sync"
	"time"
)

// Keyed keeps one independent Debouncer per key.
type Keyed struct {
	mu    sync.Mutex
	sched Scheduler
	delay time.Duration
	byKey map[string]*Debouncer
}

func NewKeyed(s Scheduler, delay time.Duration) *Keyed {
	if s == nil {
		s = RealScheduler{}
	}
	return &Keyed{sched: s, delay: delay, byKey: map[string]*Debouncer{}}
}

func (k *Keyed) get(key string) *Debouncer {
	k.mu.Lock()
	defer k.mu.Unlock()
	d, ok := k.byKey[key]
	if !ok {
		d = New(k.sched, k.delay)
		k.byKey[key] = d
	}
	return d
}

// Trigger (re)arms the timer for key.
func (k *Keyed) Trigger(key string, f func()) {
	k.get(key).Trigger(f)
}

// Cancel drops the pending call for key and forgets the key.
func (k *Keyed) Cancel(key string) {
	k.mu.Lock()
	d, ok := k.byKey[key]
	delete(k.byKey, key)
	k.mu.Unlock()
	if ok {
		d.Cancel()
	}
}

// CancelAll drops every pending call.
func (k *Keyed) CancelAll() {
	k.mu.Lock()
	all := k.byKey
	k.byKey = map[string]*Debouncer{}
	k.mu.Unlock()
	for _, d := range all {
		d.Cancel()
	}
}

// Pending returns the sorted keys with an armed timer.
func (k *Keyed) Pending() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	var keys []string
	for key, d := range k.byKey {
		if d.Pending() {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Flush runs every pending call now, in key order.
func (k *Keyed) Flush() int {
	n := 0
	for _, key := range k.Pending() {
		if k.get(key).Flush() {
			n++
		}
	}
	return n
}
