// Package object implements the runtime's component model: UID-addressed
// classes, reference-counted objects, interface-map query dispatch, and
// four aggregation lifetime variants.
//
// There is no mutex anywhere in this package: reference counts and
// interface maps are mutated only from the single thread that owns the
// simulator.
package object

import (
	"fmt"

	"github.com/quartzsim/core/simerr"
)

// TypeID is an immutable reverse-DNS identifier for an interface or a
// concrete class, e.g. "org.example.Foo". Equality is string equality.
type TypeID string

// RootUID identifies the root interface every object exposes: reference
// counting (Retain/Release) plus interface query (Query). Querying for
// RootUID is reflexive and always succeeds.
const RootUID TypeID = "object.Root"

// Root is the interface every object exposes, aggregated or not.
// Query returns a reference-counted interface pointer: the caller must
// Release it when done. Retain/Release are balanced by convention, not
// enforced by the type system, an unbalanced caller is a programming
// error, not a recoverable condition.
type Root interface {
	Query(uid TypeID) (any, error)
	Retain()
	Release()
}

// Lifetime selects one of the four composition variants below. The
// choice is made once, at the declaration site that constructs a Base,
// never by the call site that later queries it.
type Lifetime int

const (
	// LifetimeHeap is a stand-alone object that owns its own reference
	// count and frees itself when that count reaches zero.
	LifetimeHeap Lifetime = iota
	// LifetimeStatic is a long-lived, usually process-wide, object
	// (e.g. a registry) for which Retain/Release are no-ops.
	LifetimeStatic
	// LifetimeMember is an object embedded as a field of its outer,
	// aggregated into the outer's identity and reference count with
	// zero extra heap allocation for the composition itself.
	LifetimeMember
	// LifetimeMutual is an auxiliary that shares its outer's reference
	// count but whose own destructor still runs exactly once, at the
	// moment the outer's count reaches zero.
	LifetimeMutual
)

// Resolver produces the interface value for one entry of a class's
// interface map. It receives the Base it was resolved against so direct
// resolvers can type-assert the owning concrete object.
type Resolver func(b *Base) (any, error)

// InterfaceEntry is one (UID, resolver) pair in a class's static,
// declaration-ordered interface map. Query walks the list in order;
// first match wins.
type InterfaceEntry struct {
	UID      TypeID
	Resolver Resolver
}

// Direct returns a resolver that simply returns iface, the "direct"
// resolver kind, used when the concrete object itself already
// implements the interface and the constructor captures the
// type-asserted value as a closure variable.
func Direct(iface any) Resolver {
	return func(*Base) (any, error) { return iface, nil }
}

// Aggregated returns a resolver that delegates to another object's root
// and re-queries it for uid, the "aggregated" resolver kind. getInner
// is evaluated lazily so it may reference a field not yet initialised
// when the interface map literal is constructed.
func Aggregated(getInner func() Root, uid TypeID) Resolver {
	return func(*Base) (any, error) {
		inner := getInner()
		if inner == nil {
			return nil, simerr.New("object.Aggregated", simerr.CodeNotInitialised, "inner root not set")
		}
		return inner.Query(uid)
	}
}

// TearOff returns a resolver that lazily constructs an auxiliary object
// on first query, caches it on the Base, and leaves its lifetime bound
// to the Base's own (it is destroyed, if ever, only as part of the
// owning object's teardown, there is no separate release path for a
// tear-off instance).
func TearOff(uid TypeID, construct func(owner *Base) (any, error)) Resolver {
	return func(b *Base) (any, error) {
		if b.tearoffs == nil {
			b.tearoffs = make(map[TypeID]any, 1)
		}
		if v, ok := b.tearoffs[uid]; ok {
			return v, nil
		}
		v, err := construct(b)
		if err != nil {
			return nil, err
		}
		b.tearoffs[uid] = v
		return v, nil
	}
}

// Base is embedded by every concrete object and implements Root plus the
// interface-map query dispatch shared by all four lifetime variants.
type Base struct {
	uid        TypeID
	interfaces []InterfaceEntry
	lifetime   Lifetime
	outer      *Base

	refcount   int
	destructor func()
	destroyed  bool

	tearoffs    map[TypeID]any
	mutualDtors []func()
}

// NewHeap constructs a stand-alone object with an initial reference
// count of one. destructor (may be nil) runs exactly once, when Release
// brings the count to zero.
func NewHeap(uid TypeID, interfaces []InterfaceEntry, destructor func()) *Base {
	return &Base{uid: uid, interfaces: interfaces, lifetime: LifetimeHeap, refcount: 1, destructor: destructor}
}

// NewStatic constructs a long-lived object for which Retain/Release are
// no-ops, the variant intended for registries and other singletons.
func NewStatic(uid TypeID, interfaces []InterfaceEntry) *Base {
	return &Base{uid: uid, interfaces: interfaces, lifetime: LifetimeStatic, refcount: 1}
}

// NewAggregated constructs an inner object whose identity and reference
// count are those of outer. Used both for heap-allocated aggregates
// (object.Registry.Create with a non-nil outer) and, via InitAggregated,
// for inner objects embedded by value as a field of outer (the "member"
// variant, at zero extra allocation for the composition).
func NewAggregated(outer *Base, uid TypeID, interfaces []InterfaceEntry) *Base {
	b := &Base{}
	b.InitAggregated(outer, uid, interfaces)
	return b
}

// InitAggregated initialises b in place as an aggregated inner of outer.
// Call this from a constructor when the inner Base is a plain struct
// field of outer rather than a separately allocated pointer.
func (b *Base) InitAggregated(outer *Base, uid TypeID, interfaces []InterfaceEntry) {
	b.uid = uid
	b.interfaces = interfaces
	b.lifetime = LifetimeMember
	b.outer = outer
}

// NewMutual constructs an auxiliary that shares outer's reference count
// (Retain/Release forward to outer) but whose own destructor is invoked
// exactly once, at the moment outer's count reaches zero, run after
// outer's own destructor, in registration order.
func NewMutual(outer *Base, uid TypeID, interfaces []InterfaceEntry, destructor func()) *Base {
	b := &Base{uid: uid, interfaces: interfaces, lifetime: LifetimeMutual, outer: outer}
	if destructor != nil {
		outer.registerMutualDestructor(destructor)
	}
	return b
}

func (b *Base) registerMutualDestructor(fn func()) {
	b.mutualDtors = append(b.mutualDtors, fn)
}

// UID returns the class identifier this Base was constructed with.
func (b *Base) UID() TypeID { return b.uid }

// Lifetime returns which of the four composition variants b uses.
func (b *Base) Lifetime() Lifetime { return b.lifetime }

// innerRoot is the Root an aggregated Base's InnerRoot returns: it
// dispatches against that Base's own interface map without ever
// forwarding to outer, even though the Base it wraps is aggregated.
// This is what lets an outer's interface map delegate an entry to an
// inner (via Aggregated(inner.InnerRoot, uid)) without that delegation
// itself looping back through the outer.
type innerRoot struct{ b *Base }

func (r innerRoot) Query(uid TypeID) (any, error) { return r.b.queryLocal(uid, r) }
func (r innerRoot) Retain()                       { r.b.Retain() }
func (r innerRoot) Release()                      { r.b.Release() }

// InnerRoot returns b's own root interface, bypassing aggregation
// forwarding, the mechanism an outer uses to wire an inner's interfaces
// into its own interface map (e.g. Aggregated(inner.InnerRoot, uid)).
func (b *Base) InnerRoot() Root {
	b.Retain()
	return innerRoot{b: b}
}

// queryLocal dispatches uid against b's own interface map, never
// forwarding to outer. self is the Root value returned for a RootUID
// query and retained on every successful resolution: Query passes b
// itself, innerRoot passes the wrapper, so a query answered through
// either always gets back the same kind of handle it queried through.
func (b *Base) queryLocal(uid TypeID, self Root) (any, error) {
	if b.destroyed {
		panic(fmt.Sprintf("object: Query(%s) on a released object", uid))
	}

	if uid == RootUID {
		b.Retain()
		return self, nil
	}

	for _, entry := range b.interfaces {
		if entry.UID != uid {
			continue
		}
		v, err := entry.Resolver(b)
		if err != nil {
			return nil, err
		}
		b.Retain()
		return v, nil
	}

	return nil, simerr.Newf("object.Query", simerr.CodeNoSuchInterface, "no interface %s on %s", uid, b.uid)
}

// Query resolves uid against b's effective interface map. If b is
// aggregated, every uid is forwarded to the outer, so the only
// observable identity is the outer's, this is the mechanism that
// gives an aggregate a single reflexive root regardless of which
// member object a query enters through. InnerRoot is the one sanctioned
// way to reach an inner's own, non-forwarding dispatch.
func (b *Base) Query(uid TypeID) (any, error) {
	if b.destroyed {
		panic(fmt.Sprintf("object: Query(%s) on a released object", uid))
	}
	if b.outer != nil {
		return b.outer.Query(uid)
	}
	return b.queryLocal(uid, Root(b))
}

// Retain increments the reference count of the object b belongs to
// (forwarding to the outer when aggregated). It is a no-op for
// LifetimeStatic objects.
func (b *Base) Retain() {
	if b.outer != nil {
		b.outer.Retain()
		return
	}
	if b.lifetime == LifetimeStatic {
		return
	}
	b.refcount++
}

// Release decrements the reference count of the object b belongs to,
// running its destructor (and any mutual tear-offs' destructors,
// registration order) exactly once when the count reaches zero. It is a
// no-op for LifetimeStatic objects. An unbalanced Release that would
// drive the count negative is a caller error and panics, the same way
// sync.WaitGroup panics on a negative counter.
func (b *Base) Release() {
	if b.outer != nil {
		b.outer.Release()
		return
	}
	if b.lifetime == LifetimeStatic {
		return
	}
	b.refcount--
	switch {
	case b.refcount == 0:
		if b.destructor != nil {
			b.destructor()
		}
		for _, fn := range b.mutualDtors {
			fn()
		}
		b.destroyed = true
	case b.refcount < 0:
		panic("object: Release called more often than Retain")
	}
}

// RefCount reports the current reference count of the object b belongs
// to. Intended for tests and diagnostics, not for control flow.
func (b *Base) RefCount() int {
	if b.outer != nil {
		return b.outer.RefCount()
	}
	return b.refcount
}
