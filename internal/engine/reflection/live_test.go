package reflection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staticreflect/internal/core/errors"
)

type fakeRuntime struct {
	classes, methods, properties, functions int
}

func (f *fakeRuntime) Class(name string) (LiveClass, error) {
	f.classes++
	return &fakeClass{name: name}, nil
}

func (f *fakeRuntime) Method(class, name string) (LiveMethod, error) {
	f.methods++
	return &fakeMethod{}, nil
}

func (f *fakeRuntime) Property(class, name string) (LiveProperty, error) {
	f.properties++
	return &fakeProperty{values: make(map[any]any)}, nil
}

func (f *fakeRuntime) Function(name string) (LiveFunction, error) {
	f.functions++
	return fakeFunction(name), nil
}

type fakeClass struct{ name string }

func (c *fakeClass) NewInstance(args ...any) (any, error)        { return c.name, nil }
func (c *fakeClass) NewInstanceWithoutConstructor() (any, error) { return c.name, nil }

type fakeMethod struct{ calls int }

func (m *fakeMethod) Invoke(obj any, args ...any) (any, error) {
	m.calls++
	return m, nil
}

func (m *fakeMethod) Closure(obj any) (any, error) { return m, nil }

type fakeProperty struct{ values map[any]any }

func (p *fakeProperty) Value(obj any) (any, error) { return p.values[obj], nil }

func (p *fakeProperty) SetValue(obj, v any) error {
	p.values[obj] = v
	return nil
}

type fakeFunction string

func (f fakeFunction) Invoke(args ...any) (any, error) { return string(f), nil }

const serviceSource = `<?php
class Service
{
    public $state;

    public function run() {}
}

function boot() {}
`

func TestLiveBridge_MethodInitializesOnce(t *testing.T) {
	rt := &fakeRuntime{}
	r := newTestReflector(t, map[string]string{"service.php": serviceSource}, func(o *Options) { o.Runtime = rt })

	c, err := r.ReflectClass("Service")
	require.NoError(t, err)
	run, err := c.Method("run")
	require.NoError(t, err)

	// structural queries stay static
	_ = run.Parameters()
	_ = run.Attributes()
	_ = run.DocComment()
	assert.Equal(t, LiveUninitialized, run.LiveState())

	first, err := run.Invoke(nil)
	require.NoError(t, err)
	assert.Equal(t, LiveInitialized, run.LiveState())

	second, err := run.Invoke(nil)
	require.NoError(t, err)
	closure, err := run.Closure(nil)
	require.NoError(t, err)

	assert.Equal(t, 1, rt.methods)
	assert.Same(t, first, second)
	assert.Same(t, first, closure)
	assert.Equal(t, 2, first.(*fakeMethod).calls)
}

func TestLiveBridge_OtherEntities(t *testing.T) {
	rt := &fakeRuntime{}
	r := newTestReflector(t, map[string]string{"service.php": serviceSource}, func(o *Options) { o.Runtime = rt })

	c, err := r.ReflectClass("Service")
	require.NoError(t, err)
	obj, err := c.NewInstance()
	require.NoError(t, err)
	assert.Equal(t, "Service", obj)
	_, err = c.NewInstanceWithoutConstructor()
	require.NoError(t, err)
	assert.Equal(t, 1, rt.classes)
	assert.Equal(t, LiveInitialized, c.LiveState())

	state, err := c.Property("state")
	require.NoError(t, err)
	require.NoError(t, state.SetValue(obj, 7))
	v, err := state.Value(obj)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, rt.properties)

	fn, err := r.ReflectFunction("boot")
	require.NoError(t, err)
	out, err := fn.Invoke()
	require.NoError(t, err)
	assert.Equal(t, "boot", out)
	assert.Equal(t, LiveInitialized, fn.LiveState())
	assert.Equal(t, 1, rt.functions)
}

func TestLiveBridge_WithoutRuntime(t *testing.T) {
	r := newTestReflector(t, map[string]string{"service.php": serviceSource})

	c, err := r.ReflectClass("Service")
	require.NoError(t, err)
	run, err := c.Method("run")
	require.NoError(t, err)

	_, err = run.Invoke(nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
	assert.Equal(t, LiveUninitialized, run.LiveState())

	_, err = c.NewInstance()
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
	assert.Equal(t, LiveUninitialized, c.LiveState())
	assert.Equal(t, "uninitialized", c.LiveState().String())
}
