package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ecu struct{ name string }
type frame struct{ name string }

func TestGetOrCreateReturnsSameInstance(t *testing.T) {
	r := New[*ecu]()
	calls := 0
	factory := func(Handle) *ecu { calls++; return &ecu{name: "A"} }

	first, h1, created := r.GetOrCreate("/ECUS/A", factory)
	require.True(t, created)
	second, h2, created := r.GetOrCreate("/ECUS/A", factory)
	assert.False(t, created)
	assert.Same(t, first, second)
	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, r.Len())
}

func TestHandlesAreStableAndOrdered(t *testing.T) {
	r := New[string]()
	_, ha, _ := r.GetOrCreate("a", func(Handle) string { return "A" })
	_, hb, _ := r.GetOrCreate("b", func(Handle) string { return "B" })

	assert.True(t, ha.Valid())
	assert.NotEqual(t, ha, hb)
	assert.Equal(t, "A", r.At(ha))
	assert.Equal(t, "b", r.Key(hb))
	assert.Equal(t, hb, r.HandleOf("b"))
	assert.Equal(t, None, r.HandleOf("missing"))
	assert.Equal(t, []string{"a", "b"}, r.Keys())
	assert.Equal(t, []string{"A", "B"}, r.Values())
}

func TestAtPanicsOnInvalidHandle(t *testing.T) {
	r := New[string]()
	assert.Panics(t, func() { r.At(None) })
	assert.Panics(t, func() { r.At(Handle(3)) })
}

func TestLookupMissing(t *testing.T) {
	r := New[*ecu]()
	v, ok := r.Lookup("/nope")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestConcurrentGetOrCreateRunsFactoryOnce(t *testing.T) {
	r := New[*ecu]()
	var calls atomic.Int32
	var wg sync.WaitGroup
	results := make([]*ecu, 64)

	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, _ = r.GetOrCreate("/ECUS/Shared", func(Handle) *ecu {
				calls.Add(1)
				return &ecu{name: "Shared"}
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, got := range results {
		assert.Same(t, results[0], got)
	}
}

func TestGetOrCreateAsPanicsOnKindCollision(t *testing.T) {
	r := New[any]()
	e, created := GetOrCreateAs(r, "/X", func(Handle) *ecu { return &ecu{name: "X"} })
	require.True(t, created)

	again, created := GetOrCreateAs(r, "/X", func(Handle) *ecu { return &ecu{name: "other"} })
	assert.False(t, created)
	assert.Same(t, e, again)
	assert.Equal(t, "X", again.name)

	assert.PanicsWithValue(t, `registry: key "/X" holds *registry.ecu, requested *registry.frame`, func() {
		GetOrCreateAs(r, "/X", func(Handle) *frame { return &frame{name: "X"} })
	})
}

func TestIdentityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("one value per key", prop.ForAll(
		func(ids []int) bool {
			r := New[*ecu]()
			seen := make(map[string]*ecu)
			for i, id := range ids {
				k := fmt.Sprintf("/PKG/E%d", id)
				v, _, _ := r.GetOrCreate(k, func(Handle) *ecu { return &ecu{name: fmt.Sprint(i)} })
				if prev, ok := seen[k]; ok && prev != v {
					return false
				}
				seen[k] = v
			}
			return r.Len() == len(seen)
		},
		gen.SliceOf(gen.IntRange(0, 5)),
	))

	properties.TestingRun(t)
}
