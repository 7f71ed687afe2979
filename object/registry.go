package object

import (
	"sync"

	"github.com/quartzsim/core/simerr"
)

// Factory produces an instance of the class it is registered under.
// When outer is non-nil the factory must return an aggregated object
// (one whose Base was built with NewAggregated/InitAggregated against
// outer); a factory for a class that cannot be aggregated returns
// BadAggregation instead.
type Factory func(outer Root) (Root, error)

type classEntry struct {
	uid        TypeID
	factory    Factory
	aggregable bool
}

// Registry maps class UIDs to factories. It carries no internal
// synchronization: register/unregister races are the caller's
// responsibility, the same single-thread invariant the rest of the
// core relies on. Global() provides a process-wide singleton;
// NewRegistry gives tests an isolated instance instead of relying on
// Clear().
type Registry struct {
	classes map[TypeID]classEntry
}

// NewRegistry returns an empty, independent registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[TypeID]classEntry)}
}

// Register records factory under uid. Aggregable must be true if
// factory can honor a non-nil outer passed to Create.
func (r *Registry) Register(uid TypeID, factory Factory, aggregable bool) error {
	if factory == nil {
		return simerr.New("Registry.Register", simerr.CodeInvalidArgument, "nil factory")
	}
	if _, exists := r.classes[uid]; exists {
		return simerr.Newf("Registry.Register", simerr.CodeAlreadyRegistered, "%s", uid)
	}
	r.classes[uid] = classEntry{uid: uid, factory: factory, aggregable: aggregable}
	return nil
}

// Unregister removes uid, if present. It never fails.
func (r *Registry) Unregister(uid TypeID) {
	delete(r.classes, uid)
}

// UnregisterAll removes every registered class. It never fails.
func (r *Registry) UnregisterAll() {
	r.classes = make(map[TypeID]classEntry)
}

// Clear is an alias for UnregisterAll, named for test-isolation call
// sites that want to reset the registry between test cases.
func (r *Registry) Clear() { r.UnregisterAll() }

// Resolve looks up the factory registered for uid.
func (r *Registry) Resolve(uid TypeID) (Factory, error) {
	entry, ok := r.classes[uid]
	if !ok {
		return nil, simerr.Newf("Registry.Resolve", simerr.CodeNotRegistered, "%s", uid)
	}
	return entry.factory, nil
}

// Create resolves uid and invokes its factory, returning a handle that
// owns one reference. When outer is non-nil, uid's class must be
// aggregable or Create fails with BadAggregation before the factory is
// even invoked.
func (r *Registry) Create(uid TypeID, outer Root) (Root, error) {
	entry, ok := r.classes[uid]
	if !ok {
		return nil, simerr.Newf("Registry.Create", simerr.CodeNotRegistered, "%s", uid)
	}
	if outer != nil && !entry.aggregable {
		return nil, simerr.Newf("Registry.Create", simerr.CodeBadAggregation, "%s is not aggregable", uid)
	}
	obj, err := entry.factory(outer)
	if err != nil {
		return nil, simerr.Wrap("Registry.Create", simerr.CodeInvalidArgument, err)
	}
	return obj, nil
}

// IsRegistered reports whether uid currently has a factory.
func (r *Registry) IsRegistered(uid TypeID) bool {
	_, ok := r.classes[uid]
	return ok
}

// Registered returns every class UID currently registered, in no
// particular order. It exists for introspection call sites (demo
// dashboards, HTTP inspection endpoints) that want a snapshot of what a
// registry can Create; the core itself never calls it.
func (r *Registry) Registered() []TypeID {
	uids := make([]TypeID, 0, len(r.classes))
	for uid := range r.classes {
		uids = append(uids, uid)
	}
	return uids
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the lazily-initialised, process-wide registry
// singleton. sync.Once guards only the one-time allocation of the
// singleton itself; the registry's own operations remain unsynchronized,
// per the package doc.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}
