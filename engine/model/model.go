// Package model holds the in-memory AUTOSAR element tree: referenceable
// entities registered by absolute reference key, ownership links kept in an
// arena beside them, and path lookup over that tree.
//
// A model is built through a Session and read through the frozen Model that
// Session.Freeze returns.
package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sheetlar/arxml/engine/registry"
)

var (
	// ErrUnresolved is returned when a reference does not name an entity.
	ErrUnresolved = errors.New("unresolved reference")
	// ErrWrongKind is returned when a reference names an entity of an unexpected kind.
	ErrWrongKind = errors.New("reference names wrong kind")
)

// Model is a read-only view of a frozen session. It is safe for concurrent
// use.
type Model struct {
	reg     *registry.Registry[Entity]
	parents map[registry.Handle]registry.Handle
	groups  map[registry.Handle][]group
	roots   []registry.Handle
}

// Len returns the number of registered entities.
func (m *Model) Len() int { return m.reg.Len() }

// Entity returns the entity stored at h.
func (m *Model) Entity(h registry.Handle) Entity { return m.reg.At(h) }

// Lookup returns the entity registered under the exact reference key.
func (m *Model) Lookup(ref string) (Entity, bool) { return m.reg.Lookup(ref) }

// Roots returns entities registered without an owner.
func (m *Model) Roots() []Entity {
	out := make([]Entity, len(m.roots))
	for i, h := range m.roots {
		out[i] = m.reg.At(h)
	}
	return out
}

// Parent returns the owner of e.
func (m *Model) Parent(e Entity) (Entity, bool) {
	ph, ok := m.parents[e.element().handle]
	if !ok {
		return nil, false
	}
	return m.reg.At(ph), true
}

// Children returns the children of e owned under role.
func (m *Model) Children(e Entity, role Role) []Entity {
	for _, g := range m.groups[e.element().handle] {
		if g.role == role {
			return m.entities(g.members)
		}
	}
	return nil
}

// AllChildren returns every child of e, grouped by role in declaration order.
func (m *Model) AllChildren(e Entity) []Entity {
	var out []Entity
	for _, g := range m.groups[e.element().handle] {
		out = append(out, m.entities(g.members)...)
	}
	return out
}

func (m *Model) entities(hs []registry.Handle) []Entity {
	out := make([]Entity, len(hs))
	for i, h := range hs {
		out[i] = m.reg.At(h)
	}
	return out
}

// Find walks a relative path of short names below from. The first segment is
// matched against the children of every role group; the remainder is
// resolved recursively. A nil from searches the roots.
func (m *Model) Find(from Entity, path string) (Entity, bool) {
	head, rest, _ := strings.Cut(path, "/")
	if head == "" {
		return nil, false
	}

	var candidates []registry.Handle
	if from == nil {
		candidates = m.roots
	} else {
		for _, g := range m.groups[from.element().handle] {
			candidates = append(candidates, g.members...)
		}
	}
	for _, h := range candidates {
		child := m.reg.At(h)
		if child.ShortName() != head {
			continue
		}
		if rest == "" {
			return child, true
		}
		return m.Find(child, rest)
	}
	return nil, false
}

// Resolve looks up an absolute reference such as "/Pkg/Cluster/Channel" by
// walking the tree from the roots.
func (m *Model) Resolve(ref string) (Entity, bool) {
	if !strings.HasPrefix(ref, "/") {
		return nil, false
	}
	return m.Find(nil, ref[1:])
}

// ResolveAs resolves ref and asserts its concrete type.
func ResolveAs[T Entity](m *Model, ref string) (T, error) {
	var zero T
	e, ok := m.Resolve(ref)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrUnresolved, ref)
	}
	t, ok := e.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %s, want %T", ErrWrongKind, ref, e.Kind(), zero)
	}
	return t, nil
}

// Systems returns every registered system in registration order.
func (m *Model) Systems() []*System {
	var out []*System
	for _, e := range m.reg.Values() {
		if s, ok := e.(*System); ok {
			out = append(out, s)
		}
	}
	return out
}
