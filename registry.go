package ecsched

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Registry holds the declarations of all registered systems.
// Every mutation bumps Version, which is how the Manager notices that its
// cached plan is stale. Registry is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	// decls maps id -> normalized declaration
	decls map[SystemID]Declaration

	// bundles maps bundle name -> member ids
	bundles map[string][]SystemID

	// bundleOf maps member id -> bundle name
	bundleOf map[SystemID]string

	version uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		decls:    make(map[SystemID]Declaration),
		bundles:  make(map[string][]SystemID),
		bundleOf: make(map[SystemID]string),
	}
}

// Register adds a declaration. It fails with ErrDuplicateSystem if the id is
// taken and with ErrInvalidDeclaration if the declaration is malformed.
func (r *Registry) Register(decl Declaration) error {
	decl = decl.normalize()
	if err := decl.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.decls[decl.ID]; exists {
		return &DuplicateSystemError{ID: decl.ID}
	}
	r.decls[decl.ID] = decl
	r.version++
	return nil
}

// RegisterBundle registers every declaration of a bundle atomically: either
// all of them are added or none is.
func (r *Registry) RegisterBundle(b *Bundle) error {
	if b == nil {
		return fmt.Errorf("%w: nil bundle", ErrInvalidDeclaration)
	}
	if err := errors.Join(b.errs...); err != nil {
		return fmt.Errorf("bundle %s: %w", b.name, err)
	}

	decls := make([]Declaration, 0, len(b.decls))
	seen := make(map[SystemID]struct{}, len(b.decls))
	for _, d := range b.decls {
		d = d.normalize()
		if err := d.validate(); err != nil {
			return fmt.Errorf("bundle %s: %w", b.name, err)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("bundle %s: %w", b.name, &DuplicateSystemError{ID: d.ID})
		}
		seen[d.ID] = struct{}{}
		decls = append(decls, d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bundles[b.name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateBundle, b.name)
	}
	for _, d := range decls {
		if _, exists := r.decls[d.ID]; exists {
			return fmt.Errorf("bundle %s: %w", b.name, &DuplicateSystemError{ID: d.ID})
		}
	}

	ids := make([]SystemID, 0, len(decls))
	for _, d := range decls {
		r.decls[d.ID] = d
		r.bundleOf[d.ID] = b.name
		ids = append(ids, d.ID)
	}
	r.bundles[b.name] = ids
	r.version++
	return nil
}

// Unregister removes a system. It reports whether the system existed.
func (r *Registry) Unregister(id SystemID) bool {
	id = NormalizeID(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.decls[id]; !ok {
		return false
	}
	delete(r.decls, id)

	if name, ok := r.bundleOf[id]; ok {
		delete(r.bundleOf, id)
		members := slices.DeleteFunc(r.bundles[name], func(m SystemID) bool { return m == id })
		if len(members) == 0 {
			delete(r.bundles, name)
		} else {
			r.bundles[name] = members
		}
	}

	r.version++
	return true
}

// UnregisterBundle removes every system of the named bundle.
// It reports whether the bundle existed.
func (r *Registry) UnregisterBundle(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, ok := r.bundles[name]
	if !ok {
		return false
	}
	for _, id := range ids {
		delete(r.decls, id)
		delete(r.bundleOf, id)
	}
	delete(r.bundles, name)
	r.version++
	return true
}

// SetEnabled enables or disables a registered system.
// Changing the flag marks the plan stale; setting it to its current value
// does not.
func (r *Registry) SetEnabled(id SystemID, enabled bool) error {
	id = NormalizeID(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.decls[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSystem, id)
	}
	if d.Disabled == !enabled {
		return nil
	}
	d.Disabled = !enabled
	r.decls[id] = d
	r.version++
	return nil
}

// Lookup returns the declaration registered under id.
func (r *Registry) Lookup(id SystemID) (Declaration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decls[NormalizeID(id)]
	return d, ok
}

// Bundles returns the registered bundle names in sorted order.
func (r *Registry) Bundles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bundles))
	for name := range r.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered systems.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.decls)
}

// Version returns the registry version. It increases on every mutation.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Snapshot returns an immutable, id-sorted view of the registry.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decls := make([]Declaration, 0, len(r.decls))
	for _, d := range r.decls {
		decls = append(decls, d)
	}
	slices.SortFunc(decls, func(a, b Declaration) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return Snapshot{version: r.version, decls: decls}
}

// Snapshot is an immutable view of a registry at one version.
// Declarations are sorted by id.
type Snapshot struct {
	version uint64
	decls   []Declaration
}

// Version returns the registry version the snapshot was taken at.
func (s Snapshot) Version() uint64 {
	return s.version
}

// Len returns the number of declarations in the snapshot.
func (s Snapshot) Len() int {
	return len(s.decls)
}

// Declarations returns a copy of the id-sorted declarations.
func (s Snapshot) Declarations() []Declaration {
	return slices.Clone(s.decls)
}

// Lookup finds a declaration by id.
func (s Snapshot) Lookup(id SystemID) (Declaration, bool) {
	id = NormalizeID(id)
	i, found := slices.BinarySearchFunc(s.decls, id, func(d Declaration, target SystemID) int {
		switch {
		case d.ID < target:
			return -1
		case d.ID > target:
			return 1
		}
		return 0
	})
	if !found {
		return Declaration{}, false
	}
	return s.decls[i], true
}
