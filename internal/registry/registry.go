// Package registry maps fully-qualified type identifiers to type handles.
//
// Weaving never scans loaded types by bare name. Every type an aspect may target is
// registered at configuration time, which also decides the symbols exported to the
// guard units compiled against it. Simple names are accepted as a convenience only
// while they stay unique; a second type with the same simple name turns the lookup
// into an ambiguity error instead of a first-match guess.
package registry

import (
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNotFound indicates no registered type matches a name.
	ErrNotFound = errors.New("type not registered")

	// ErrAmbiguous indicates more than one registered type matches a simple name.
	ErrAmbiguous = errors.New("ambiguous type name")

	// ErrDuplicate indicates a type identifier was registered twice.
	ErrDuplicate = errors.New("type already registered")
)

// Entry is one registered context type.
type Entry struct {
	// ID is the fully-qualified identifier, e.g. "github.com/acme/shop.Order".
	ID string

	// Type is the named, non-pointer type. Hooks receive *Type.
	Type reflect.Type

	// Package is the declared package name of Type.
	Package string

	params map[string][]string
}

// ParamNames returns the configured parameter names of a method, or nil.
func (e *Entry) ParamNames(method string) []string {
	return e.params[method]
}

// Module is a package exported to guard units: its import path, package name and
// the symbols guard source may reference.
type Module struct {
	Path    string
	Name    string
	Symbols map[string]reflect.Value
}

// Key returns the "path/name" key used for interpreter exports.
func (m Module) Key() string {
	return m.Path + "/" + m.Name
}

// Option configures a registered type.
type Option func(e *Entry) error

// WithParams names the parameters of a method in declaration order.
// Go reflection does not retain parameter names; without this option they
// default to arg0..argN.
func WithParams(method string, names ...string) Option {
	return func(e *Entry) error {
		m, ok := reflect.PointerTo(e.Type).MethodByName(method)
		if !ok {
			return fmt.Errorf("%s has no method %s", e.ID, method)
		}
		if want := m.Type.NumIn() - 1; want != len(names) {
			return fmt.Errorf("%s.%s takes %d parameter(s), got %d name(s)", e.ID, method, want, len(names))
		}
		for _, n := range names {
			if !token.IsIdentifier(n) {
				return fmt.Errorf("%s.%s: invalid parameter name %q", e.ID, method, n)
			}
		}
		e.params[method] = append([]string(nil), names...)
		return nil
	}
}

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	modules map[string]*Module
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		modules: make(map[string]*Module),
	}
}

// TypeID returns the fully-qualified identifier of a named type.
func TypeID(t reflect.Type) string {
	return t.PkgPath() + "." + t.Name()
}

// PackageName returns the declared package name of a named type.
// reflect spells a named type as "pkgname.Name", so the prefix is the package name.
func PackageName(t reflect.Type) string {
	s := t.String()
	if i := strings.IndexByte(s, '.'); i > 0 {
		return s[:i]
	}
	return s
}

// Register adds a type. v may be a value, a pointer, or a typed nil pointer:
//
//	reg.Register((*shop.Order)(nil), registry.WithParams("AddItem", "sku", "qty"))
func (r *Registry) Register(v any, opts ...Option) (*Entry, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, errors.New("register: nil value has no type")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return nil, fmt.Errorf("register: %s is not a named type of a package", t)
	}
	if t.Kind() == reflect.Interface {
		return nil, fmt.Errorf("register: %s is an interface; register its implementations", t)
	}
	if t.PkgPath() == "main" {
		return nil, fmt.Errorf("register: %s belongs to package main and cannot be imported", t)
	}
	if strings.ContainsRune(t.Name(), '[') {
		return nil, fmt.Errorf("register: %s is an instantiated generic type", t)
	}

	e := &Entry{
		ID:      TypeID(t),
		Type:    t,
		Package: PackageName(t),
		params:  make(map[string][]string),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("register: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.ID]; exists {
		return nil, fmt.Errorf("register: %w: %s", ErrDuplicate, e.ID)
	}
	r.entries[e.ID] = e
	r.moduleLocked(t.PkgPath(), e.Package).Symbols[t.Name()] = reflect.Zero(reflect.PointerTo(t))
	return e, nil
}

// MustRegister is like Register but panics on error.
// Use only during program initialization.
func (r *Registry) MustRegister(v any, opts ...Option) *Entry {
	e, err := r.Register(v, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// Export adds a non-type symbol (function, variable, constant) to a package module.
func (r *Registry) Export(pkgPath, pkgName, symbol string, v reflect.Value) error {
	if !token.IsIdentifier(pkgName) || !token.IsExported(symbol) {
		return fmt.Errorf("export: invalid symbol %s.%s", pkgName, symbol)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.moduleLocked(pkgPath, pkgName)
	if m.Name != pkgName {
		return fmt.Errorf("export: %s is already exported as package %s", pkgPath, m.Name)
	}
	m.Symbols[symbol] = v
	return nil
}

func (r *Registry) moduleLocked(path, name string) *Module {
	m, ok := r.modules[path]
	if !ok {
		m = &Module{Path: path, Name: name, Symbols: make(map[string]reflect.Value)}
		r.modules[path] = m
	}
	return m
}

// Resolve finds a type by fully-qualified identifier, by "pkg.Name", or by simple name.
// Returns ErrNotFound or ErrAmbiguous (wrapped) on failure.
func (r *Registry) Resolve(name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[name]; ok {
		return e, nil
	}

	var matches []*Entry
	for _, e := range r.entries {
		if e.Type.Name() == name || e.Package+"."+e.Type.Name() == name {
			matches = append(matches, e)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		sort.Strings(ids)
		return nil, fmt.Errorf("%w: %s matches %s", ErrAmbiguous, name, strings.Join(ids, ", "))
	}
}

// Lookup returns the entry registered for a type.
func (r *Registry) Lookup(t reflect.Type) (*Entry, bool) {
	if t == nil {
		return nil, false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[TypeID(t)]
	return e, ok
}

// Entries returns all registered types ordered by ID.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Module returns a copy of the module exported for an import path.
func (r *Registry) Module(path string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[path]
	if !ok {
		return Module{}, false
	}
	return m.clone(), true
}

// Modules returns copies of all exported modules ordered by import path.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// PackageNameOf returns the package name exported for an import path.
func (r *Registry) PackageNameOf(path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[path]
	if !ok {
		return "", false
	}
	return m.Name, true
}

func (m *Module) clone() Module {
	syms := make(map[string]reflect.Value, len(m.Symbols))
	for k, v := range m.Symbols {
		syms[k] = v
	}
	return Module{Path: m.Path, Name: m.Name, Symbols: syms}
}
