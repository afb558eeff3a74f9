package model

import (
	"errors"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSample(t *testing.T) (*Session, *Package, *CanCluster, *CanPhysicalChannel, *CanFrameTriggering) {
	t.Helper()
	s := NewSession(nil)
	pkg := Add(s, nil, RolePackages, "/Cluster", func() *Package {
		return &Package{Element: Element{Name: "Cluster"}}
	})
	cluster := Add(s, pkg, RoleElements, "/Cluster/CAN1", func() *CanCluster {
		return &CanCluster{Element: Element{Name: "CAN1"}}
	})
	channel := Add(s, cluster, RoleChannels, "/Cluster/CAN1/CH1", func() *CanPhysicalChannel {
		return &CanPhysicalChannel{Element: Element{Name: "CH1"}}
	})
	ft := Add(s, channel, RoleFrameTriggerings, "/Cluster/CAN1/CH1/FT_Speed", func() *CanFrameTriggering {
		return &CanFrameTriggering{Element: Element{Name: "FT_Speed"}, FrameRef: "/Frames/Speed"}
	})
	Add(s, channel, RolePduTriggerings, "/Cluster/CAN1/CH1/PT_Speed", func() *PduTriggering {
		return &PduTriggering{Element: Element{Name: "PT_Speed"}}
	})
	return s, pkg, cluster, channel, ft
}

func TestFindSearchesAllRoleGroups(t *testing.T) {
	s, _, cluster, channel, ft := buildSample(t)
	m := s.Freeze()

	got, ok := m.Find(cluster, "CH1/FT_Speed")
	require.True(t, ok)
	assert.Same(t, ft, got)

	got, ok = m.Find(channel, "PT_Speed")
	require.True(t, ok)
	assert.Equal(t, KindPduTriggering, got.Kind())

	_, ok = m.Find(cluster, "CH1/Missing")
	assert.False(t, ok)
	_, ok = m.Find(cluster, "")
	assert.False(t, ok)
	_, ok = m.Find(cluster, "CH1//FT_Speed")
	assert.False(t, ok)
}

func TestResolveMatchesRegistryLookup(t *testing.T) {
	s, _, _, _, _ := buildSample(t)
	m := s.Freeze()

	for _, ref := range []string{"/Cluster", "/Cluster/CAN1", "/Cluster/CAN1/CH1", "/Cluster/CAN1/CH1/FT_Speed"} {
		walked, ok := m.Resolve(ref)
		require.True(t, ok, ref)
		indexed, ok := m.Lookup(ref)
		require.True(t, ok, ref)
		assert.Same(t, indexed, walked, ref)
		assert.Equal(t, ref, walked.Ref())
	}

	_, ok := m.Resolve("Cluster/CAN1")
	assert.False(t, ok, "relative reference must not resolve")
}

func TestParentAndChildren(t *testing.T) {
	s, pkg, cluster, channel, ft := buildSample(t)
	m := s.Freeze()

	p, ok := m.Parent(ft)
	require.True(t, ok)
	assert.Same(t, channel, p)

	p, ok = m.Parent(cluster)
	require.True(t, ok)
	assert.Same(t, pkg, p)

	_, ok = m.Parent(pkg)
	assert.False(t, ok)

	assert.Len(t, m.Children(channel, RoleFrameTriggerings), 1)
	assert.Len(t, m.Children(channel, RolePduTriggerings), 1)
	assert.Len(t, m.AllChildren(channel), 2)
	assert.Nil(t, m.Children(channel, RolePorts))
	assert.Len(t, m.Roots(), 1)
}

func TestResolveAs(t *testing.T) {
	s, _, cluster, _, _ := buildSample(t)
	m := s.Freeze()

	got, err := ResolveAs[*CanCluster](m, "/Cluster/CAN1")
	require.NoError(t, err)
	assert.Same(t, cluster, got)

	_, err = ResolveAs[*EcuInstance](m, "/Cluster/CAN1")
	assert.True(t, errors.Is(err, ErrWrongKind))

	_, err = ResolveAs[*EcuInstance](m, "/ECUs/Missing")
	assert.True(t, errors.Is(err, ErrUnresolved))
}

func TestAddIsIdempotentPerKey(t *testing.T) {
	s := NewSession(nil)
	calls := 0
	build := func() *EcuInstance {
		calls++
		return &EcuInstance{Element: Element{Name: "Gateway"}}
	}
	a := Add(s, nil, RoleElements, "/ECUs/Gateway", build)
	b := Add(s, nil, RoleElements, "/ECUs/Gateway", build)
	assert.Same(t, a, b)
	assert.Equal(t, 1, calls)
	assert.Len(t, s.Freeze().Roots(), 1)
}

func TestAddPanicsOnKindCollision(t *testing.T) {
	s := NewSession(nil)
	Add(s, nil, RoleElements, "/X", func() *EcuInstance { return &EcuInstance{Element: Element{Name: "X"}} })
	assert.Panics(t, func() {
		Add(s, nil, RoleElements, "/X", func() *CanFrame { return &CanFrame{Element: Element{Name: "X"}} })
	})
}

func TestAddPanicsAfterFreeze(t *testing.T) {
	s := NewSession(nil)
	s.Freeze()
	assert.Panics(t, func() {
		Add(s, nil, RoleElements, "/late", func() *Unit { return &Unit{Element: Element{Name: "late"}} })
	})
}

func TestInternKeepsFirstAndCountsDivergence(t *testing.T) {
	s := NewSession(nil)
	first := Intern(s, nil, RoleElements, "/Units/kmh", &Unit{Element: Element{Name: "kmh"}, DisplayName: "km/h"})

	same := Intern(s, nil, RoleElements, "/Units/kmh", &Unit{Element: Element{Name: "kmh"}, DisplayName: "km/h"})
	assert.Same(t, first, same)
	assert.Equal(t, 0, s.Diverged())

	other := Intern(s, nil, RoleElements, "/Units/kmh", &Unit{Element: Element{Name: "kmh"}, DisplayName: "mph"})
	assert.Same(t, first, other)
	assert.Equal(t, "km/h", other.DisplayName)
	assert.Equal(t, 1, s.Diverged())
}

func TestConcurrentAddYieldsOneInstance(t *testing.T) {
	s := NewSession(nil)
	pkg := Add(s, nil, RolePackages, "/ECUs", func() *Package { return &Package{Element: Element{Name: "ECUs"}} })

	var wg sync.WaitGroup
	got := make([]*EcuInstance, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = Add(s, pkg, RoleElements, "/ECUs/Body", func() *EcuInstance {
				return &EcuInstance{Element: Element{Name: "Body"}}
			})
		}(i)
	}
	wg.Wait()

	for _, e := range got {
		assert.Same(t, got[0], e)
	}
	m := s.Freeze()
	assert.Len(t, m.Children(pkg, RoleElements), 1)
}

func TestSystemsInRegistrationOrder(t *testing.T) {
	s := NewSession(nil)
	Add(s, nil, RoleElements, "/Sys/B", func() *System { return &System{Element: Element{Name: "B"}} })
	Add(s, nil, RoleElements, "/Units/u", func() *Unit { return &Unit{Element: Element{Name: "u"}} })
	Add(s, nil, RoleElements, "/Sys/A", func() *System { return &System{Element: Element{Name: "A"}} })

	systems := s.Freeze().Systems()
	require.Len(t, systems, 2)
	assert.Equal(t, "B", systems[0].Name)
	assert.Equal(t, "A", systems[1].Name)
}

func TestVariantsSingle(t *testing.T) {
	tests := []struct {
		name  string
		items []int
		want  int
		ok    bool
	}{
		{"empty", nil, 0, false},
		{"one", []int{7}, 7, true},
		{"two", []int{7, 8}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := VariantsOf(tt.items...).Single()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVariantsFromSequence(t *testing.T) {
	v := NewVariants(VariantsOf("a", "b", "c").All())
	assert.Equal(t, 3, v.Len())

	var seen []string
	for s := range v.All() {
		seen = append(seen, s)
		if s == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestVariantsSingleProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("single only for exactly one alternative", prop.ForAll(
		func(items []int) bool {
			got, ok := VariantsOf(items...).Single()
			if len(items) == 1 {
				return ok && got == items[0]
			}
			return !ok && got == 0
		},
		gen.SliceOf(gen.Int()),
	))

	properties.TestingRun(t)
}

func TestCompuScaleCoefficientDefaults(t *testing.T) {
	var empty CompuScale
	assert.Equal(t, 0.0, empty.Offset())
	assert.Equal(t, 0.0, empty.Factor())
	assert.Equal(t, 1.0, empty.Divisor())

	s := CompuScale{Rational: &RationalCoeffs{Numerator: []float64{-40, 0.5}, Denominator: []float64{2}}}
	assert.Equal(t, -40.0, s.Offset())
	assert.Equal(t, 0.5, s.Factor())
	assert.Equal(t, 2.0, s.Divisor())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "can-frame-triggering", KindCanFrameTriggering.String())
	assert.Equal(t, "unknown", Kind(250).String())
}
