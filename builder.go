package ecsched

import (
	"fmt"
)

// Builder configures a Manager before initialization.
// Use NewBuilder() to create a builder and chain configuration methods.
type Builder struct {
	bundles []func(*Manager) *Bundle
	decls   []Declaration
	options []Option
}

// NewBuilder creates a new builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Bundle adds a bundle to the builder.
func (b *Builder) Bundle(callback func(*Manager) *Bundle) *Builder {
	b.bundles = append(b.bundles, callback)
	return b
}

// System adds standalone declarations outside any bundle.
func (b *Builder) System(decls ...Declaration) *Builder {
	b.decls = append(b.decls, decls...)
	return b
}

// Option adds manager options.
//
// Example:
//
//	builder.Option(ecsched.WithWorkers(4), ecsched.WithLogger(logger))
func (b *Builder) Option(opts ...Option) *Builder {
	b.options = append(b.options, opts...)
	return b
}

// Build creates the manager, registers every bundle and declaration and
// validates the resulting plan.
func (b *Builder) Build() (*Manager, error) {
	m := NewManager(b.options...)

	for _, f := range b.bundles {
		bund := f(m)
		if bund == nil {
			continue
		}
		if err := m.RegisterBundle(bund); err != nil {
			m.Close()
			return nil, err
		}
	}
	for _, d := range b.decls {
		if err := m.Register(d); err != nil {
			m.Close()
			return nil, err
		}
	}

	if _, err := m.Plan(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// Init is like Build but panics if the systems cannot be planned.
func (b *Builder) Init() *Manager {
	m, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("ecsched: failed to build systems: %v", err))
	}
	return m
}
