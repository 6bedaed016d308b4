// Package patch is the interception runtime hooked methods are invoked through.
//
// Go cannot rewrite a compiled method, so interception is explicit: callers
// invoke a method through Runtime.Call, which runs every installed hook around
// the original. A patch belongs to a named session and consists of up to three
// hook methods, each named by (unit, hook):
//
//   - prefix runs before the original and returns a state value,
//   - postfix runs after the original returns and receives that state,
//   - finalizer runs last, even when the original or a hook panicked.
//
// Hook units are looked up in the runtime's own table first and then through
// the registered fallback resolvers, so units loaded at run time can be found
// although nobody registered them here.
package patch

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrNoMethod indicates the target type has no such method.
	ErrNoMethod = errors.New("no such method")

	// ErrUnresolved indicates a hook unit or hook name could not be found.
	ErrUnresolved = errors.New("hook not resolvable")

	// ErrHookType indicates a hook has the wrong function type.
	ErrHookType = errors.New("hook has wrong type")

	// ErrArgs indicates a Call argument list that does not fit the method.
	ErrArgs = errors.New("arguments do not match method")
)

// PrefixFunc runs before the original method. Its result is handed to the
// postfix and finalizer of the same patch and call.
type PrefixFunc func(instance reflect.Value, args []reflect.Value) any

// PostfixFunc runs after the original method returned normally.
type PostfixFunc func(instance reflect.Value, args []reflect.Value, state any)

// FinalizerFunc runs when the call unwinds, normally or by panic.
type FinalizerFunc func(state any)

// Unit owns named hook functions.
type Unit interface {
	Hook(name string) (any, bool)
}

// Resolver finds a hook unit by name.
type Resolver func(name string) (Unit, bool)

// HookMethod names one hook of a unit. The zero value means "no hook".
type HookMethod struct {
	Unit string
	Name string
}

// IsZero reports whether h names no hook.
func (h HookMethod) IsZero() bool {
	return h.Unit == "" && h.Name == ""
}

func (h HookMethod) String() string {
	return h.Unit + "." + h.Name
}

// Target is a method of a named type. Hooks receive *Type instances.
type Target struct {
	Type   reflect.Type
	Method string
}

func (t Target) String() string {
	if t.Type == nil {
		return "<nil>." + t.Method
	}
	return t.Type.String() + "." + t.Method
}

type installed struct {
	session   string
	prefix    PrefixFunc
	postfix   PostfixFunc
	finalizer FinalizerFunc
}

// Runtime holds installed patches. Safe for concurrent use; calls only take
// a read lock.
type Runtime struct {
	logger *zap.Logger

	mu        sync.RWMutex
	patches   map[Target][]*installed
	sessions  map[string][]Target
	units     map[string]Unit
	resolvers map[string]Resolver
	order     []string
}

// NewRuntime creates an empty runtime. A nil logger disables logging.
func NewRuntime(logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{
		logger:   logger,
		patches:  make(map[Target][]*installed),
		sessions: make(map[string][]Target),
		units:     make(map[string]Unit),
		resolvers: make(map[string]Resolver),
	}
}

// RegisterUnit adds a unit to the runtime's own table.
func (r *Runtime) RegisterUnit(name string, u Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[name] = u
}

// AddResolver registers a fallback consulted for units missing from the table.
// Resolvers are keyed; adding under an existing key replaces that resolver in
// place. Resolvers run under the runtime's read lock and must not call back
// into it.
func (r *Runtime) AddResolver(key string, res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resolvers[key]; !exists {
		r.order = append(r.order, key)
	}
	r.resolvers[key] = res
}

// RemoveResolver drops the resolver registered under key, if any.
func (r *Runtime) RemoveResolver(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resolvers[key]; !exists {
		return
	}
	delete(r.resolvers, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Resolvers returns the keys of the registered resolvers, in registration order.
func (r *Runtime) Resolvers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Patch installs hooks around target inside session. Hooks are resolved now;
// an unresolvable hook fails the whole patch and nothing is installed.
func (r *Runtime) Patch(session string, target Target, prefix, postfix, finalizer HookMethod) error {
	if target.Type == nil {
		return fmt.Errorf("patch %s: %w: nil target type", session, ErrNoMethod)
	}
	if _, ok := reflect.PointerTo(target.Type).MethodByName(target.Method); !ok {
		return fmt.Errorf("patch %s: %w: %s", session, ErrNoMethod, target)
	}

	p := &installed{session: session}
	if err := r.resolveInto(p, prefix, postfix, finalizer); err != nil {
		return fmt.Errorf("patch %s on %s: %w", session, target, err)
	}
	if p.prefix == nil && p.postfix == nil && p.finalizer == nil {
		// Nothing to install; HasAnyPatches stays false for this session.
		r.logger.Warn("patch request without hooks", zap.String("session", session), zap.Stringer("target", target))
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.patches[target] = append(r.patches[target], p)
	r.sessions[session] = append(r.sessions[session], target)
	r.logger.Debug("patch installed", zap.String("session", session), zap.Stringer("target", target))
	return nil
}

// HasAnyPatches reports whether session has at least one active patch.
func (r *Runtime) HasAnyPatches(session string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[session]) > 0
}

// Sessions returns the sessions patching target, in installation order.
func (r *Runtime) Sessions(target Target) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.patches[target]))
	for _, p := range r.patches[target] {
		out = append(out, p.session)
	}
	return out
}

// Unpatch removes every patch of session. Used to roll back a session whose
// installation could not be completed.
func (r *Runtime) Unpatch(session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, target := range r.sessions[session] {
		kept := r.patches[target][:0:0]
		for _, p := range r.patches[target] {
			if p.session != session {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			delete(r.patches, target)
		} else {
			r.patches[target] = kept
		}
	}
	delete(r.sessions, session)
	r.logger.Debug("session unpatched", zap.String("session", session))
}

func (r *Runtime) resolveInto(p *installed, prefix, postfix, finalizer HookMethod) error {
	if !prefix.IsZero() {
		h, err := r.resolve(prefix)
		if err != nil {
			return err
		}
		switch fn := h.(type) {
		case PrefixFunc:
			p.prefix = fn
		case func(reflect.Value, []reflect.Value) any:
			p.prefix = fn
		default:
			return fmt.Errorf("%w: prefix %s is %T", ErrHookType, prefix, h)
		}
	}
	if !postfix.IsZero() {
		h, err := r.resolve(postfix)
		if err != nil {
			return err
		}
		switch fn := h.(type) {
		case PostfixFunc:
			p.postfix = fn
		case func(reflect.Value, []reflect.Value, any):
			p.postfix = fn
		default:
			return fmt.Errorf("%w: postfix %s is %T", ErrHookType, postfix, h)
		}
	}
	if !finalizer.IsZero() {
		h, err := r.resolve(finalizer)
		if err != nil {
			return err
		}
		switch fn := h.(type) {
		case FinalizerFunc:
			p.finalizer = fn
		case func(any):
			p.finalizer = fn
		default:
			return fmt.Errorf("%w: finalizer %s is %T", ErrHookType, finalizer, h)
		}
	}
	return nil
}

func (r *Runtime) resolve(h HookMethod) (any, error) {
	r.mu.RLock()
	u, ok := r.units[h.Unit]
	for i := 0; !ok && i < len(r.order); i++ {
		u, ok = r.resolvers[r.order[i]](h.Unit)
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: unit %s", ErrUnresolved, h.Unit)
	}
	fn, ok := u.Hook(h.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnresolved, h)
	}
	return fn, nil
}
