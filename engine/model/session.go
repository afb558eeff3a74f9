package model

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/Sheetlar/arxml/engine/registry"
)

// group is one role-named list of owned children.
type group struct {
	role    Role
	members []registry.Handle
}

// Session is the write phase of a model: it registers entities by reference
// key and records ownership. Freeze ends the session and returns the
// read-only Model. A Session is safe for concurrent use.
type Session struct {
	reg    *registry.Registry[Entity]
	log    *slog.Logger
	frozen atomic.Bool

	mu       sync.Mutex
	parents  map[registry.Handle]registry.Handle
	groups   map[registry.Handle][]group
	roots    []registry.Handle
	diverged int
}

// NewSession creates an empty session. A nil logger uses slog.Default().
func NewSession(log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		reg:     registry.New[Entity](),
		log:     log,
		parents: make(map[registry.Handle]registry.Handle),
		groups:  make(map[registry.Handle][]group),
	}
}

// Add returns the entity registered under key, calling build only when the key
// is new. A new entity is owned by parent under role; a nil parent makes it a
// root. It panics when key already denotes an entity of another type, and
// after Freeze.
func Add[T Entity](s *Session, parent Entity, role Role, key string, build func() T) T {
	e, _ := add(s, parent, role, key, build)
	return e
}

// Intern registers a fully built entity. When key is already registered the
// existing instance wins; if its attributes differ from e the collision is
// logged.
func Intern[T Entity](s *Session, parent Entity, role Role, key string, e T) T {
	got, created := add(s, parent, role, key, func() T { return e })
	if created {
		return got
	}
	if !sameAttributes(got, e) {
		s.mu.Lock()
		s.diverged++
		s.mu.Unlock()
		s.log.Warn("reference registered twice with different attributes",
			"ref", key, "kind", got.Kind().String())
	}
	return got
}

func add[T Entity](s *Session, parent Entity, role Role, key string, build func() T) (T, bool) {
	if s.frozen.Load() {
		panic(fmt.Sprintf("model: register %q on frozen session", key))
	}
	ph := registry.None
	if parent != nil {
		ph = parent.element().handle
	}
	e, created := registry.GetOrCreateAs(s.reg, key, func(h registry.Handle) T {
		v := build()
		el := v.element()
		el.ref = key
		el.handle = h
		return v
	})
	h := e.element().handle

	s.mu.Lock()
	defer s.mu.Unlock()
	if !created {
		if prev := s.parents[h]; prev != ph {
			s.log.Debug("reference re-declared under another owner; keeping first",
				"ref", key, "owner", s.reg.Key(prev))
		}
		return e, false
	}
	if ph == registry.None {
		s.roots = append(s.roots, h)
		return e, true
	}
	s.parents[h] = ph
	groups := s.groups[ph]
	for i := range groups {
		if groups[i].role == role {
			groups[i].members = append(groups[i].members, h)
			return e, true
		}
	}
	s.groups[ph] = append(groups, group{role: role, members: []registry.Handle{h}})
	return e, true
}

// sameAttributes compares two entities ignoring registration metadata.
func sameAttributes[T Entity](existing, candidate T) bool {
	el := candidate.element()
	ref, h := el.ref, el.handle
	el.ref, el.handle = existing.element().ref, existing.element().handle
	same := reflect.DeepEqual(existing, candidate)
	el.ref, el.handle = ref, h
	return same
}

// Diverged reports how many Intern calls hit an existing key with different
// attributes.
func (s *Session) Diverged() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diverged
}

// Lookup returns an already registered entity. It is intended for builders
// that need to link to entities declared earlier in the same session.
func (s *Session) Lookup(key string) (Entity, bool) {
	return s.reg.Lookup(key)
}

// Freeze ends the write phase. Subsequent registrations panic.
func (s *Session) Freeze() *Model {
	s.frozen.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	m := &Model{
		reg:     s.reg,
		parents: make(map[registry.Handle]registry.Handle, len(s.parents)),
		groups:  make(map[registry.Handle][]group, len(s.groups)),
		roots:   append([]registry.Handle(nil), s.roots...),
	}
	for k, v := range s.parents {
		m.parents[k] = v
	}
	for k, gs := range s.groups {
		cp := make([]group, len(gs))
		for i, g := range gs {
			cp[i] = group{role: g.role, members: append([]registry.Handle(nil), g.members...)}
		}
		m.groups[k] = cp
	}
	return m
}
