// Package guard is the host side of a guard unit.
//
// A Unit wraps a Checker (the compiled predicates) with everything stateful:
// the snapshot store that carries pre-call state from entry to exit, the
// sticky planning-error flag and the reporter. Its hooks are exposed by name
// so the interception runtime can resolve them:
//
//	BeforeCall  evaluates the precondition, snapshots the instance and
//	            returns the call id as hook state
//	AfterCall   consumes that call's snapshot and evaluates the postcondition
//	Finalize    drops a snapshot left behind by a panicking call
//
// A false predicate is a planning error: the flag is raised and the violation
// reported, and the hooked call carries on.
package guard

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/roach88/contractweave/internal/ir"
	"github.com/roach88/contractweave/internal/patch"
	"github.com/roach88/contractweave/internal/report"
	"github.com/roach88/contractweave/internal/snapshot"
)

// Hook names resolvable through Unit.Hook.
const (
	HookBefore   = "BeforeCall"
	HookAfter    = "AfterCall"
	HookFinalize = "Finalize"
)

// Checker evaluates the predicates of one aspect. instance and prior are *T;
// args are the hooked method's arguments with a variadic tail as a slice.
type Checker interface {
	BeforeCheck(instance reflect.Value, args []reflect.Value) bool
	AfterCheck(instance, prior reflect.Value, args []reflect.Value) bool
}

// FuncChecker is a Checker written in Go. Nil functions always hold.
type FuncChecker struct {
	Before func(instance reflect.Value, args []reflect.Value) bool
	After  func(instance, prior reflect.Value, args []reflect.Value) bool
}

// BeforeCheck implements Checker.
func (f FuncChecker) BeforeCheck(instance reflect.Value, args []reflect.Value) bool {
	return f.Before == nil || f.Before(instance, args)
}

// AfterCheck implements Checker.
func (f FuncChecker) AfterCheck(instance, prior reflect.Value, args []reflect.Value) bool {
	return f.After == nil || f.After(instance, prior, args)
}

// Reporter receives violations. *report.Reporter implements it.
type Reporter interface {
	Report(v report.Violation) []ir.ViolationRecord
}

// Options configures a Unit.
type Options struct {
	// Snapshots defaults to a store with a fresh clock.
	Snapshots *snapshot.Store

	// Reporter defaults to discarding violations.
	Reporter Reporter

	Logger *zap.Logger
}

// Unit is one guard unit.
type Unit struct {
	name      string
	spec      ir.AspectSpec
	checker   Checker
	snapshots *snapshot.Store
	reporter  Reporter
	logger    *zap.Logger

	planningError atomic.Bool
}

// New creates a unit named name for spec.
func New(name string, spec ir.AspectSpec, checker Checker, opts Options) *Unit {
	u := &Unit{
		name:      name,
		spec:      spec,
		checker:   checker,
		snapshots: opts.Snapshots,
		reporter:  opts.Reporter,
		logger:    opts.Logger,
	}
	if u.snapshots == nil {
		u.snapshots = snapshot.NewStore(nil)
	}
	if u.logger == nil {
		u.logger = zap.NewNop()
	}
	return u
}

// Name returns the unit name, which is also its patch session.
func (u *Unit) Name() string { return u.name }

// Spec returns the aspect the unit guards.
func (u *Unit) Spec() ir.AspectSpec { return u.spec }

// Snapshots returns the unit's snapshot store.
func (u *Unit) Snapshots() *snapshot.Store { return u.snapshots }

// HasPlanningError reports whether any predicate of this unit ever failed.
func (u *Unit) HasPlanningError() bool {
	return u.planningError.Load()
}

// ResetPlanningError clears the flag. Intended for test isolation.
func (u *Unit) ResetPlanningError() {
	u.planningError.Store(false)
}

// BeforeCall is the prefix hook. It returns the call id as hook state.
// A panicking predicate propagates and leaves no snapshot behind.
func (u *Unit) BeforeCall(instance reflect.Value, args []reflect.Value) any {
	hookCalls.WithLabelValues(u.name, HookBefore).Inc()
	ok := u.checker.BeforeCheck(instance, args)
	id := u.snapshots.Push(snapshot.Clone(instance))
	if !ok {
		u.raise(ir.PhaseBefore, id, instance)
	}
	return id
}

// AfterCall is the postfix hook. It consumes the snapshot of its own call.
func (u *Unit) AfterCall(instance reflect.Value, args []reflect.Value, state any) {
	hookCalls.WithLabelValues(u.name, HookAfter).Inc()
	id, ok := state.(snapshot.CallID)
	if !ok {
		panic(fmt.Sprintf("guard %s: after hook got state %T, want a call id", u.name, state))
	}
	prior, ok := u.snapshots.Pop(id)
	if !ok {
		panic(fmt.Sprintf("guard %s: no snapshot for call %d", u.name, id))
	}
	if !u.checker.AfterCheck(instance, prior, args) {
		u.raise(ir.PhaseAfter, id, instance)
	}
}

// Finalize is the finalizer hook. It drops a snapshot the after hook never
// consumed.
func (u *Unit) Finalize(state any) {
	id, ok := state.(snapshot.CallID)
	if !ok {
		return
	}
	if u.snapshots.Discard(id) {
		u.logger.Debug("discarded snapshot of unwound call",
			zap.String("unit", u.name), zap.Int64("call_id", int64(id)))
	}
}

// Hook implements patch.Unit.
func (u *Unit) Hook(name string) (any, bool) {
	switch name {
	case HookBefore:
		return patch.PrefixFunc(u.BeforeCall), true
	case HookAfter:
		return patch.PostfixFunc(u.AfterCall), true
	case HookFinalize:
		return patch.FinalizerFunc(u.Finalize), true
	}
	return nil, false
}

// raise sets the flag before any tier is emitted.
func (u *Unit) raise(phase ir.Phase, id snapshot.CallID, instance reflect.Value) {
	if u.planningError.CompareAndSwap(false, true) {
		u.logger.Info("planning error flag raised", zap.String("unit", u.name), zap.String("phase", string(phase)))
	}
	if u.reporter == nil {
		return
	}
	var obj any
	if instance.IsValid() && instance.CanInterface() {
		obj = instance.Interface()
	}
	u.reporter.Report(report.Violation{
		Aspect:   u.spec.GuardClassName,
		Phase:    phase,
		CallID:   int64(id),
		Instance: obj,
	})
}
