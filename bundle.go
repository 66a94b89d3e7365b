package ecsched

// Bundle groups related system declarations together.
// Bundles are registered and unregistered atomically, which is how a game
// stage brings its systems in and takes them out again.
type Bundle struct {
	name string

	// decls holds the declarations in insertion order
	decls []Declaration

	// errs holds Describe failures, surfaced at registration
	errs []error
}

// NewBundle creates a new bundle with the given name.
func NewBundle(name string) *Bundle {
	return &Bundle{
		name: name,
	}
}

// Name returns the bundle name.
func (b *Bundle) Name() string {
	return b.name
}

// Add adds declarations to the bundle.
func (b *Bundle) Add(decls ...Declaration) *Bundle {
	b.decls = append(b.decls, decls...)
	return b
}

// System adds a system whose declaration is derived with Describe.
// Describe errors are reported when the bundle is registered.
func (b *Bundle) System(sys System) *Bundle {
	decl, err := Describe(sys)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.decls = append(b.decls, decl)
	return b
}

// Func adds a function system with the given id; configure may fill in the
// rest of the declaration.
//
//	bundle.Func("decay", decay, func(d *ecsched.Declaration) {
//	    d.Writes = []ecsched.ComponentType{ecsched.Component[Lifetime]()}
//	})
func (b *Bundle) Func(id SystemID, fn SystemFunc, configure ...func(*Declaration)) *Bundle {
	decl := Declaration{ID: id}
	if fn != nil {
		decl.System = fn
	}
	for _, c := range configure {
		c(&decl)
	}
	b.decls = append(b.decls, decl)
	return b
}

// Declarations returns a copy of the bundle's declarations.
func (b *Bundle) Declarations() []Declaration {
	out := make([]Declaration, len(b.decls))
	copy(out, b.decls)
	return out
}

// Build returns a callback function that returns this bundle.
// This allows for cleaner inline bundle initialization:
//
//	bund := ecsched.NewBundle("particles").
//	    System(&DecaySystem{}).
//	    Build()
//
//	mngr := ecsched.NewBuilder().
//	    Bundle(bund).
//	    Init()
func (b *Bundle) Build() func(*Manager) *Bundle {
	return func(*Manager) *Bundle {
		return b
	}
}
