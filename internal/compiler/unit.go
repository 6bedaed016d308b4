package compiler

import "reflect"

// Unit is a loaded guard unit. Its predicates are interpreted functions
// resolved once at load time; calls are safe from any goroutine.
type Unit struct {
	Name         string
	HookedMethod string

	// Source is the formatted source the unit was loaded from.
	Source []byte

	before reflect.Value
	after  reflect.Value
}

// BeforeCheck evaluates the precondition. instance is *T; args are the hooked
// method's arguments with a variadic tail packed into a slice.
func (u *Unit) BeforeCheck(instance reflect.Value, args []reflect.Value) bool {
	in := make([]reflect.Value, 0, 1+len(args))
	in = append(in, instance)
	return call(u.before, append(in, args...))
}

// AfterCheck evaluates the postcondition with the pre-call snapshot prior.
func (u *Unit) AfterCheck(instance, prior reflect.Value, args []reflect.Value) bool {
	in := make([]reflect.Value, 0, 2+len(args))
	in = append(in, instance, prior)
	return call(u.after, append(in, args...))
}

func call(fn reflect.Value, in []reflect.Value) bool {
	if fn.Type().IsVariadic() {
		return fn.CallSlice(in)[0].Bool()
	}
	return fn.Call(in)[0].Bool()
}
