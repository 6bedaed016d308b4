package patch

import (
	"fmt"
	"reflect"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// interceptedCalls counts Call invocations of patched methods by target
var interceptedCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "contractweave_intercepted_calls_total",
	Help: "Calls dispatched through installed patches by target method",
}, []string{"target"})

// Call invokes method on instance, running every installed hook around it.
//
// instance is usually *T; a T value is copied into a fresh *T first. Arguments
// follow Go call rules: a variadic tail is passed element by element. Prefixes
// run in installation order, postfixes in reverse order, finalizers last.
// Panics of the method or of a hook propagate to the caller after the
// finalizers ran.
func (r *Runtime) Call(instance any, method string, args ...any) ([]any, error) {
	recv := reflect.ValueOf(instance)
	if !recv.IsValid() {
		return nil, fmt.Errorf("call %s: nil instance", method)
	}
	if recv.Kind() != reflect.Pointer {
		p := reflect.New(recv.Type())
		p.Elem().Set(recv)
		recv = p
	}
	if recv.IsNil() {
		return nil, fmt.Errorf("call %s: nil %s", method, recv.Type())
	}

	m := recv.MethodByName(method)
	if !m.IsValid() {
		return nil, fmt.Errorf("call: %w: %s.%s", ErrNoMethod, recv.Type(), method)
	}
	mt := m.Type()
	in, err := packArgs(mt, args)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", recv.Type(), method, err)
	}

	target := Target{Type: recv.Type().Elem(), Method: method}
	r.mu.RLock()
	hooks := append([]*installed(nil), r.patches[target]...)
	r.mu.RUnlock()

	if len(hooks) > 0 {
		interceptedCalls.WithLabelValues(target.String()).Inc()
	}

	out := dispatch(recv, m, in, hooks)
	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, nil
}

func dispatch(recv, m reflect.Value, in []reflect.Value, hooks []*installed) []reflect.Value {
	states := make([]any, len(hooks))
	defer func() {
		for i := len(hooks) - 1; i >= 0; i-- {
			if hooks[i].finalizer != nil {
				hooks[i].finalizer(states[i])
			}
		}
	}()

	for i, h := range hooks {
		if h.prefix != nil {
			states[i] = h.prefix(recv, in)
		}
	}

	var out []reflect.Value
	if m.Type().IsVariadic() {
		out = m.CallSlice(in)
	} else {
		out = m.Call(in)
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		if hooks[i].postfix != nil {
			hooks[i].postfix(recv, in, states[i])
		}
	}
	return out
}

// packArgs converts args to the method's parameter types, packing a variadic
// tail into a slice.
func packArgs(mt reflect.Type, args []any) ([]reflect.Value, error) {
	n := mt.NumIn()
	if !mt.IsVariadic() {
		if len(args) != n {
			return nil, fmt.Errorf("%w: want %d argument(s), got %d", ErrArgs, n, len(args))
		}
		in := make([]reflect.Value, n)
		for i, a := range args {
			v, err := convert(a, mt.In(i), i)
			if err != nil {
				return nil, err
			}
			in[i] = v
		}
		return in, nil
	}

	if len(args) < n-1 {
		return nil, fmt.Errorf("%w: want at least %d argument(s), got %d", ErrArgs, n-1, len(args))
	}
	in := make([]reflect.Value, n)
	for i := 0; i < n-1; i++ {
		v, err := convert(args[i], mt.In(i), i)
		if err != nil {
			return nil, err
		}
		in[i] = v
	}
	tail := args[n-1:]
	st := mt.In(n - 1)
	s := reflect.MakeSlice(st, len(tail), len(tail))
	for j, a := range tail {
		v, err := convert(a, st.Elem(), n-1+j)
		if err != nil {
			return nil, err
		}
		s.Index(j).Set(v)
	}
	in[n-1] = s
	return in, nil
}

func convert(a any, t reflect.Type, pos int) (reflect.Value, error) {
	v := reflect.ValueOf(a)
	if !v.IsValid() {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: argument %d: nil for %s", ErrArgs, pos, t)
	}
	if !v.Type().AssignableTo(t) {
		return reflect.Value{}, fmt.Errorf("%w: argument %d: %s is not assignable to %s", ErrArgs, pos, v.Type(), t)
	}
	if v.Type() != t {
		c := reflect.New(t).Elem()
		c.Set(v)
		v = c
	}
	return v, nil
}
