package canvas

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	appErr "github.com/neoncad/engine/pkg/errors"
)

// Op names the kind of mutation carried by a ChangeEvent.
type Op string

const (
	OpCreated   Op = "created"
	OpUpdated   Op = "updated"
	OpDeleted   Op = "deleted"
	OpRegrouped Op = "regrouped"
	OpGroups    Op = "groups"
	OpCleared   Op = "cleared"
)

// ChangeEvent is emitted once per mutation. EntityID and Kind are empty for
// OpGroups and OpCleared.
type ChangeEvent struct {
	Op       Op
	EntityID string
	Kind     Kind
	// Geometry is true when the entity's coordinates changed.
	Geometry bool
}

type Listener func(ChangeEvent)

// Store owns every entity and group. Mutations are serialized; listeners
// are called synchronously after the mutation is applied and the lock is
// released, so they may read the store.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*Entity
	order    []string
	groups   []Group

	lmu       sync.RWMutex
	listeners map[int]Listener
	nextLID   int
}

func NewStore() *Store {
	return &Store{
		entities:  map[string]*Entity{},
		groups:    DefaultGroups(),
		listeners: map[int]Listener{},
	}
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextLID
	s.nextLID++
	s.listeners[id] = l
	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store) emit(events ...ChangeEvent) {
	s.lmu.RLock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, s.listeners[id])
	}
	s.lmu.RUnlock()

	for _, ev := range events {
		for _, l := range ls {
			l(ev)
		}
	}
}

// Create validates and inserts a new entity and returns its id.
func (s *Store) Create(in EntityInput) (string, error) {
	s.mu.Lock()
	e, err := s.insertLocked(in)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	s.emit(ChangeEvent{Op: OpCreated, EntityID: e.ID, Kind: e.Kind, Geometry: true})
	return e.ID, nil
}

func (s *Store) insertLocked(in EntityInput) (*Entity, error) {
	if !in.Kind.Valid() {
		return nil, appErr.Newf(appErr.CodeInvalid, "unknown entity kind %q", in.Kind)
	}
	geom, err := normalizeGeometry(in.Kind, in.Geometry)
	if err != nil {
		return nil, err
	}
	gid := in.GroupID
	if gid == 0 {
		gid = s.groups[0].ID
	}
	if !s.hasGroupLocked(gid) {
		return nil, appErr.Newf(appErr.CodeInvalid, "group %d does not exist", gid)
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, dup := s.entities[id]; dup {
		return nil, appErr.Newf(appErr.CodeAlreadyExists, "entity %s already exists", id)
	}
	e := &Entity{
		ID:       id,
		Kind:     in.Kind,
		GroupID:  gid,
		Geometry: geom,
		Style:    in.Style,
		Label:    in.Label,
		Meta:     in.Meta.clone(),
	}
	s.entities[id] = e
	s.order = append(s.order, id)
	return e, nil
}

// Update replaces the fields set in p. Geometry goes through the same
// validation as Create.
func (s *Store) Update(id string, p Patch) error {
	s.mu.Lock()
	e, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		return appErr.Newf(appErr.CodeNotFound, "entity %s not found", id)
	}
	var geom []Coord
	if p.Geometry != nil {
		var err error
		if geom, err = normalizeGeometry(e.Kind, p.Geometry); err != nil {
			s.mu.Unlock()
			return err
		}
		e.Geometry = geom
	}
	if p.Style != nil {
		e.Style = *p.Style
	}
	if p.Label != nil {
		e.Label = *p.Label
	}
	if p.Meta != nil {
		e.Meta = p.Meta.clone()
	}
	kind := e.Kind
	s.mu.Unlock()

	s.emit(ChangeEvent{Op: OpUpdated, EntityID: id, Kind: kind, Geometry: geom != nil})
	return nil
}

// Delete removes an entity.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	e, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		return appErr.Newf(appErr.CodeNotFound, "entity %s not found", id)
	}
	s.removeLocked(id)
	s.mu.Unlock()

	s.emit(ChangeEvent{Op: OpDeleted, EntityID: id, Kind: e.Kind})
	return nil
}

func (s *Store) removeLocked(id string) {
	delete(s.entities, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// SetGroup moves an entity to another existing group.
func (s *Store) SetGroup(id string, groupID int) error {
	s.mu.Lock()
	e, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		return appErr.Newf(appErr.CodeNotFound, "entity %s not found", id)
	}
	if !s.hasGroupLocked(groupID) {
		s.mu.Unlock()
		return appErr.Newf(appErr.CodeInvalid, "group %d does not exist", groupID)
	}
	e.GroupID = groupID
	kind := e.Kind
	s.mu.Unlock()

	s.emit(ChangeEvent{Op: OpRegrouped, EntityID: id, Kind: kind})
	return nil
}

// Get returns a copy of the entity.
func (s *Store) Get(id string) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return Entity{}, false
	}
	return e.Clone(), true
}

// ForEach visits copies of all entities in creation order. The visitor
// runs without the store lock held.
func (s *Store) ForEach(visit func(Entity)) {
	for _, e := range s.Entities() {
		visit(e)
	}
}

// Entities returns copies of all entities in creation order.
func (s *Store) Entities() []Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entities[id].Clone())
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Groups returns a copy of the group list.
func (s *Store) Groups() []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Group(nil), s.groups...)
}

// Group looks up a group by id.
func (s *Store) Group(id int) (Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

func (s *Store) hasGroupLocked(id int) bool {
	for _, g := range s.groups {
		if g.ID == id {
			return true
		}
	}
	return false
}

// AddGroup appends a group with id max+1. An empty name becomes "Группа N".
func (s *Store) AddGroup(name string) Group {
	s.mu.Lock()
	next := 1
	for _, g := range s.groups {
		if g.ID >= next {
			next = g.ID + 1
		}
	}
	if name == "" {
		name = GroupName(next)
	}
	g := Group{ID: next, Name: name}
	s.groups = append(s.groups, g)
	s.mu.Unlock()

	s.emit(ChangeEvent{Op: OpGroups})
	return g
}

// RenameGroup changes a group's name.
func (s *Store) RenameGroup(id int, name string) error {
	s.mu.Lock()
	found := false
	for i := range s.groups {
		if s.groups[i].ID == id {
			s.groups[i].Name = name
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return appErr.Newf(appErr.CodeNotFound, "group %d not found", id)
	}
	s.emit(ChangeEvent{Op: OpGroups})
	return nil
}

// DeleteGroup removes a group and every entity in it. The last group cannot
// be deleted.
func (s *Store) DeleteGroup(id int) error {
	s.mu.Lock()
	idx := -1
	for i, g := range s.groups {
		if g.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return appErr.Newf(appErr.CodeNotFound, "group %d not found", id)
	}
	if len(s.groups) == 1 {
		s.mu.Unlock()
		return appErr.New(appErr.CodeConflict, "cannot delete the last group")
	}
	s.groups = append(s.groups[:idx], s.groups[idx+1:]...)

	var events []ChangeEvent
	for _, eid := range append([]string(nil), s.order...) {
		e := s.entities[eid]
		if e.GroupID != id {
			continue
		}
		s.removeLocked(eid)
		events = append(events, ChangeEvent{Op: OpDeleted, EntityID: eid, Kind: e.Kind})
	}
	s.mu.Unlock()

	s.emit(append(events, ChangeEvent{Op: OpGroups})...)
	return nil
}

// Clear removes every entity and resets the groups to the default list.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entities = map[string]*Entity{}
	s.order = nil
	s.groups = DefaultGroups()
	s.mu.Unlock()

	s.emit(ChangeEvent{Op: OpCleared})
}

// Replace clears the store and repopulates it from persisted data. Each
// entity is created as if freshly placed, so listeners see one created
// event per entity. Entities that fail validation are skipped and reported
// in the returned error; the valid ones are still loaded. Entities pointing
// at an unknown group land in the first group.
func (s *Store) Replace(groups []Group, entities []Entity) error {
	groups = sanitizeGroups(groups)

	s.mu.Lock()
	s.entities = map[string]*Entity{}
	s.order = nil
	s.groups = groups
	s.mu.Unlock()
	s.emit(ChangeEvent{Op: OpCleared}, ChangeEvent{Op: OpGroups})

	var errs []error
	for _, e := range entities {
		in := EntityInput{
			ID:       e.ID,
			Kind:     e.Kind,
			GroupID:  e.GroupID,
			Geometry: e.Geometry,
			Style:    e.Style,
			Label:    e.Label,
			Meta:     e.Meta,
		}
		s.mu.Lock()
		if !s.hasGroupLocked(in.GroupID) {
			in.GroupID = 0
		}
		if _, dup := s.entities[in.ID]; dup {
			in.ID = ""
		}
		s.mu.Unlock()
		if _, err := s.Create(in); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sanitizeGroups(groups []Group) []Group {
	seen := map[int]bool{}
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		if g.ID <= 0 || seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		if g.Name == "" {
			g.Name = GroupName(g.ID)
		}
		out = append(out, g)
	}
	if len(out) == 0 {
		return DefaultGroups()
	}
	return out
}
