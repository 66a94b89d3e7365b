package table

import (
	"errors"

	"github.com/oriumgames/ecsched"
)

// ErrUnbound is returned by a Binder that has no hook for a row.
var ErrUnbound = errors.New("table: no update hook bound")

// Binder attaches update hooks to table rows.
type Binder interface {
	Bind(r Row) (ecsched.System, error)
}

// BinderFunc adapts a function to Binder.
type BinderFunc func(r Row) (ecsched.System, error)

func (f BinderFunc) Bind(r Row) (ecsched.System, error) {
	return f(r)
}

// Hooks binds rows to systems by id.
type Hooks map[ecsched.SystemID]ecsched.System

func (h Hooks) Bind(r Row) (ecsched.System, error) {
	if sys, ok := h[ecsched.NormalizeID(ecsched.SystemID(r.ID))]; ok {
		return sys, nil
	}
	return nil, ErrUnbound
}

// Chain tries each binder in order and returns the first hook found.
// It returns ErrUnbound only if every binder does.
func Chain(binders ...Binder) Binder {
	return BinderFunc(func(r Row) (ecsched.System, error) {
		for _, b := range binders {
			sys, err := b.Bind(r)
			if errors.Is(err, ErrUnbound) {
				continue
			}
			return sys, err
		}
		return nil, ErrUnbound
	})
}

// Optional turns ErrUnbound into a nil hook, so unbound rows are planned
// but skipped at run time.
func Optional(b Binder) Binder {
	return BinderFunc(func(r Row) (ecsched.System, error) {
		sys, err := b.Bind(r)
		if errors.Is(err, ErrUnbound) {
			return nil, nil
		}
		return sys, err
	})
}
