package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	uidWidget   TypeID = "demo.Widget"
	uidGreeter  TypeID = "demo.Greeter"
	uidStats    TypeID = "demo.Stats"
)

type greeter interface{ Greet() string }

type widget struct {
	*Base
	greeting string
	statsHit int
}

func (w *widget) Greet() string { return w.greeting }

func newWidget(greeting string, destroyed *bool) *widget {
	w := &widget{greeting: greeting}
	w.Base = NewHeap(uidWidget, []InterfaceEntry{
		{UID: uidGreeter, Resolver: Direct(greeter(w))},
		{UID: uidStats, Resolver: TearOff(uidStats, func(owner *Base) (any, error) {
			w.statsHit++
			return &statsTearOff{owner: owner}, nil
		})},
	}, func() {
		if destroyed != nil {
			*destroyed = true
		}
	})
	return w
}

type statsTearOff struct{ owner *Base }

func TestQuery_RootIsReflexive(t *testing.T) {
	w := newWidget("hi", nil)
	root, err := w.Query(RootUID)
	require.NoError(t, err)
	assert.Equal(t, 2, w.RefCount()) // 1 from NewHeap, 1 from this Query
	root.(Root).Release()
	assert.Equal(t, 1, w.RefCount())
}

func TestQuery_UnknownInterfaceFails(t *testing.T) {
	w := newWidget("hi", nil)
	_, err := w.Query("demo.NoSuchInterface")
	assert.Error(t, err)
}

func TestQuery_DirectInterfaceRetainsObject(t *testing.T) {
	w := newWidget("hello", nil)
	iface, err := w.Query(uidGreeter)
	require.NoError(t, err)
	g := iface.(greeter)
	assert.Equal(t, "hello", g.Greet())
	assert.Equal(t, 2, w.RefCount())
	w.Release()
}

func TestTearOff_ConstructsOnceAndCaches(t *testing.T) {
	w := newWidget("hi", nil)
	a, err := w.Query(uidStats)
	require.NoError(t, err)
	b, err := w.Query(uidStats)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, w.statsHit)
}

func TestRelease_RunsDestructorExactlyOnceAtZero(t *testing.T) {
	destroyed := false
	w := newWidget("hi", &destroyed)
	_, _ = w.Query(uidGreeter) // refcount now 2
	w.Release()
	assert.False(t, destroyed)
	w.Release()
	assert.True(t, destroyed)
}

func TestRelease_Unbalanced_Panics(t *testing.T) {
	w := newWidget("hi", nil)
	w.Release()
	assert.Panics(t, func() { w.Release() })
}

func TestQuery_OnReleasedObjectPanics(t *testing.T) {
	w := newWidget("hi", nil)
	w.Release()
	assert.Panics(t, func() { w.Query(RootUID) })
}

func TestStatic_RetainReleaseAreNoOps(t *testing.T) {
	b := NewStatic("demo.Registry", nil)
	assert.Equal(t, 1, b.RefCount())
	b.Retain()
	b.Release()
	b.Release()
	b.Release()
	assert.Equal(t, 1, b.RefCount())
}

// outer aggregates an inner widget as a member: every query forwards
// to outer, giving the pair one identity; the outer's own interface
// map delegates uidGreeter to the inner via inner.InnerRoot, which
// bypasses that forwarding rule.
type outerThing struct {
	*Base
	inner *widget
}

func newOuterThing() *outerThing {
	o := &outerThing{}
	o.Base = NewHeap("demo.Outer", nil, nil)

	o.inner = &widget{greeting: "from inner"}
	o.inner.Base = NewAggregated(o.Base, uidWidget, []InterfaceEntry{
		{UID: uidGreeter, Resolver: Direct(greeter(o.inner))},
	})

	o.interfaces = []InterfaceEntry{
		{UID: uidGreeter, Resolver: Aggregated(o.inner.InnerRoot, uidGreeter)},
	}
	return o
}

func TestAggregation_QueryOnInnerForwardsToOuter(t *testing.T) {
	o := newOuterThing()
	root, err := o.inner.Query(RootUID)
	require.NoError(t, err)
	assert.Same(t, o.Base, root)
	root.(Root).Release()
}

func TestAggregation_OuterDelegatesInterfaceToInner(t *testing.T) {
	o := newOuterThing()
	iface, err := o.Query(uidGreeter)
	require.NoError(t, err)
	assert.Equal(t, "from inner", iface.(greeter).Greet())
	o.Release()
}

func TestAggregation_RetainReleaseShareOuterCount(t *testing.T) {
	o := newOuterThing()
	assert.Equal(t, 1, o.RefCount())
	o.inner.Retain()
	assert.Equal(t, 2, o.RefCount())
	assert.Equal(t, 2, o.inner.RefCount())
	o.inner.Release()
	assert.Equal(t, 1, o.RefCount())
}

func TestMutual_DestructorRunsWithOuterInRegistrationOrder(t *testing.T) {
	var order []string
	outer := NewHeap("demo.Outer2", nil, func() { order = append(order, "outer") })
	NewMutual(outer, "demo.Mutual1", nil, func() { order = append(order, "mutual1") })
	NewMutual(outer, "demo.Mutual2", nil, func() { order = append(order, "mutual2") })

	outer.Release()
	assert.Equal(t, []string{"outer", "mutual1", "mutual2"}, order)
}

func TestRegistry_CreateAggregable(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(uidWidget, func(outer Root) (Root, error) {
		w := newWidget("registered", nil)
		return w, nil
	}, true))

	obj, err := r.Create(uidWidget, nil)
	require.NoError(t, err)
	assert.NotNil(t, obj)
}

func TestRegistry_CreateNonAggregableWithOuterFails(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(uidWidget, func(outer Root) (Root, error) {
		return newWidget("x", nil), nil
	}, false))

	outer := NewHeap("demo.SomeOuter", nil, nil)
	_, err := r.Create(uidWidget, outer)
	assert.Error(t, err)
}

func TestRegistry_DoubleRegisterFails(t *testing.T) {
	r := NewRegistry()
	factory := func(Root) (Root, error) { return newWidget("x", nil), nil }
	require.NoError(t, r.Register(uidWidget, factory, false))
	assert.Error(t, r.Register(uidWidget, factory, false))
}

func TestRegistry_ResolveUnknownFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("demo.Nope")
	assert.Error(t, err)
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(uidWidget, func(Root) (Root, error) { return nil, nil }, false))
	r.Clear()
	assert.False(t, r.IsRegistered(uidWidget))
}

func TestGlobal_IsASingleton(t *testing.T) {
	assert.Same(t, Global(), Global())
}
