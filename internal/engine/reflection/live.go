package reflection

import (
	"staticreflect/internal/core/errors"
	"staticreflect/internal/shared/observability"
)

// LiveState tracks whether an entity has handed behavioural queries to a
// live runtime reflector. The transition is one-way.
type LiveState int

const (
	LiveUninitialized LiveState = iota
	LiveInitialized
)

func (s LiveState) String() string {
	if s == LiveInitialized {
		return "initialized"
	}
	return "uninitialized"
}

// Runtime builds live reflectors for entities whose behavioural operations
// need genuine execution. The engine never implements one itself.
type Runtime interface {
	Class(name string) (LiveClass, error)
	Method(class, name string) (LiveMethod, error)
	Property(class, name string) (LiveProperty, error)
	Function(name string) (LiveFunction, error)
}

type LiveClass interface {
	NewInstance(args ...any) (any, error)
	NewInstanceWithoutConstructor() (any, error)
}

type LiveMethod interface {
	Invoke(obj any, args ...any) (any, error)
	Closure(obj any) (any, error)
}

type LiveProperty interface {
	Value(obj any) (any, error)
	SetValue(obj, v any) error
}

type LiveFunction interface {
	Invoke(args ...any) (any, error)
}

// bridge holds the live reflector of one entity once it exists.
type bridge[T any] struct {
	state LiveState
	live  T
}

// open returns the live reflector, connecting on first use. A failed
// connection leaves the state untouched so a later call may retry.
func (b *bridge[T]) open(r *Reflector, entity, name string, connect func(Runtime) (T, error)) (T, error) {
	if b.state == LiveInitialized {
		return b.live, nil
	}
	var zero T
	if r.runtime == nil {
		err := errors.Newf(errors.CodeNotSupported, "%s %s needs a live runtime", entity, name)
		return zero, errors.AddContext(err, errors.CtxSymbol, name)
	}
	live, err := connect(r.runtime)
	if err != nil {
		return zero, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "connect live "+entity), errors.CtxSymbol, name)
	}
	b.live, b.state = live, LiveInitialized
	observability.LiveBridgeInitializations.WithLabelValues(entity).Inc()
	return live, nil
}

// memo caches the outcome of a computation, error included.
type memo[T any] struct {
	done bool
	val  T
	err  error
}

func (m *memo[T]) get(fn func() (T, error)) (T, error) {
	if !m.done {
		m.val, m.err = fn()
		m.done = true
	}
	return m.val, m.err
}
