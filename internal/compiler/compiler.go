// Package compiler turns synthesized guard source into loaded, callable units.
//
// Compilation is a two-stage affair. go/parser runs first in AllErrors mode so
// every syntax diagnostic is reported at once; unused imports are then pruned
// and the file is formatted. The result is evaluated by an embedded yaegi
// interpreter that sees exactly the reference set: a fixed stdlib subset, the
// modules passed by the caller and guardlib. Nothing is registered unless every
// step succeeds.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/format"
	"go/parser"
	"go/scanner"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"go.uber.org/zap"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/roach88/contractweave/internal/ir"
	"github.com/roach88/contractweave/internal/registry"
	"github.com/roach88/contractweave/internal/synth"
)

// Options configures a Compiler.
type Options struct {
	// SourceDir, when set, receives a copy of every formatted unit source.
	SourceDir string

	Logger *zap.Logger
}

// Compiler compiles and keeps guard units. Safe for concurrent use.
type Compiler struct {
	sourceDir string
	logger    *zap.Logger

	mu    sync.RWMutex
	units map[string]*Unit
}

// New creates a Compiler.
func New(opts Options) *Compiler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{
		sourceDir: opts.SourceDir,
		logger:    logger,
		units:     make(map[string]*Unit),
	}
}

// Compile loads src against the reference set and registers the unit under
// src.UnitName. modules are the caller's target packages; the context type's
// package is always included. All failures are CompilationErrors.
func (c *Compiler) Compile(ctx context.Context, src *synth.Source, modules []registry.Module) (unit *Unit, err error) {
	class := src.Spec.GuardClassName
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		unitsCompiled.WithLabelValues(result).Inc()
		compileDuration.Observe(time.Since(start).Seconds())
	}()

	if _, exists := c.Lookup(src.UnitName); exists {
		return nil, ir.NewCompilationError(class, fmt.Sprintf("unit %s is already loaded", src.UnitName), nil, nil)
	}

	formatted, err := prepare(src)
	if err != nil {
		return nil, err
	}

	if c.sourceDir != "" {
		if err := c.persist(src.RelPath(), formatted); err != nil {
			// Not fatal: the unit still loads from memory.
			c.logger.Warn("could not write generated source",
				zap.String("unit", src.UnitName), zap.Error(err))
		}
	}

	exports := referenceSet(contextModule(src.Spec.ContextType, modules))
	i := interp.New(interp.Options{})
	if err := i.Use(exports); err != nil {
		return nil, ir.NewCompilationError(class, "reference set rejected by interpreter", nil, err)
	}
	if err := eval(ctx, i, string(formatted)); err != nil {
		return nil, ir.NewCompilationError(class, "unit did not compile", predicateDiagnostics(ctx, exports, src.FileName, formatted, err), err)
	}

	unit, err = load(i, src, formatted)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.units[unit.Name]; exists {
		return nil, ir.NewCompilationError(class, fmt.Sprintf("unit %s is already loaded", unit.Name), nil, nil)
	}
	c.units[unit.Name] = unit

	c.logger.Debug("guard unit loaded",
		zap.String("unit", unit.Name),
		zap.String("method", unit.HookedMethod),
		zap.Int("params", len(src.Descriptor.Params)))
	return unit, nil
}

// Lookup returns a loaded unit by name.
func (c *Compiler) Lookup(name string) (*Unit, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.units[name]
	return u, ok
}

// Units returns the names of all loaded units.
func (c *Compiler) Units() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.units))
	for n := range c.units {
		names = append(names, n)
	}
	return names
}

// prepare parses, prunes and formats the unit source.
func prepare(src *synth.Source) ([]byte, error) {
	class := src.Spec.GuardClassName
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, src.FileName, src.Text, parser.AllErrors|parser.ParseComments)
	if err != nil {
		return nil, ir.NewCompilationError(class, "unit did not parse", diagnostics(err), err)
	}

	pruneImports(fset, f)

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, f); err != nil {
		return nil, ir.NewCompilationError(class, "unit could not be formatted", diagnostics(err), err)
	}
	return buf.Bytes(), nil
}

func pruneImports(fset *token.FileSet, f *ast.File) {
	for _, imp := range append([]*ast.ImportSpec(nil), f.Imports...) {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		if astutil.UsesImport(f, path) {
			continue
		}
		name := ""
		if imp.Name != nil {
			name = imp.Name.Name
		}
		astutil.DeleteNamedImport(fset, f, name, path)
	}
}

func (c *Compiler) persist(rel string, text []byte) error {
	path := filepath.Join(c.sourceDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, text, 0o644)
}

// eval runs the interpreter, converting panics into errors.
func eval(ctx context.Context, i *interp.Interpreter, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("interpreter panic: %v", r)
		}
	}()
	_, err = i.EvalWithContext(ctx, text)
	return err
}

// predicateFuncs are the functions a unit's predicates are compiled into.
var predicateFuncs = []string{"BeforeCheck", "AfterCheck"}

// predicateDiagnostics collects the diagnostics of every predicate. The
// interpreter stops at its first error, so each predicate is evaluated again
// on its own with the others stubbed out. Line numbers are preserved.
func predicateDiagnostics(ctx context.Context, exports interp.Exports, filename string, text []byte, first error) []string {
	out := diagnostics(first)
	seen := make(map[string]bool, len(out))
	for _, d := range out {
		seen[d] = true
	}
	for _, keep := range predicateFuncs {
		variant, err := stubExcept(filename, text, keep)
		if err != nil {
			continue
		}
		i := interp.New(interp.Options{})
		if err := i.Use(exports); err != nil {
			continue
		}
		if err := eval(ctx, i, variant); err != nil {
			for _, d := range diagnostics(err) {
				if !seen[d] {
					seen[d] = true
					out = append(out, d)
				}
			}
		}
	}
	return out
}

// stubExcept replaces the bodies of every predicate function other than keep
// with "return true", keeping the line count of each body.
func stubExcept(filename string, text []byte, keep string) (string, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, text, parser.SkipObjectResolution)
	if err != nil {
		return "", err
	}
	type span struct{ from, to int }
	var stubs []span
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil || fn.Recv != nil || fn.Name.Name == keep || !isPredicate(fn.Name.Name) {
			continue
		}
		stubs = append(stubs, span{
			from: fset.Position(fn.Body.Lbrace).Offset + 1,
			to:   fset.Position(fn.Body.Rbrace).Offset,
		})
	}

	var b strings.Builder
	last := 0
	for _, sp := range stubs {
		b.Write(text[last:sp.from])
		b.WriteString(" return true ")
		b.WriteString(strings.Repeat("\n", bytes.Count(text[sp.from:sp.to], []byte("\n"))))
		last = sp.to
	}
	b.Write(text[last:])
	return blankUnusedImports(filename, b.String())
}

// blankUnusedImports renames imports that stubbing left unused to "_", in
// place so positions stay put.
func blankUnusedImports(filename, text string) (string, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, text, parser.SkipObjectResolution)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	last := 0
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || astutil.UsesImport(f, path) {
			continue
		}
		if imp.Name != nil && imp.Name.Name == "_" {
			continue
		}
		from := fset.Position(imp.Path.Pos()).Offset
		if imp.Name != nil {
			from = fset.Position(imp.Name.Pos()).Offset
		}
		to := fset.Position(imp.Path.Pos()).Offset
		b.WriteString(text[last:from])
		b.WriteString("_ ")
		last = to
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func isPredicate(name string) bool {
	for _, p := range predicateFuncs {
		if p == name {
			return true
		}
	}
	return false
}

// load resolves the unit's exported names and checks their shape.
func load(i *interp.Interpreter, src *synth.Source, text []byte) (*Unit, error) {
	class := src.Spec.GuardClassName
	fail := func(format string, args ...any) error {
		return ir.NewCompilationError(class, fmt.Sprintf(format, args...), nil, nil)
	}

	name, err := i.Eval("main.UnitName")
	if err != nil {
		return nil, ir.NewCompilationError(class, "unit exports no UnitName", diagnostics(err), err)
	}
	if got, ok := stringValue(name); !ok || got != src.UnitName {
		return nil, fail("unit name %v does not match expected %s", name, src.UnitName)
	}

	n := len(src.Descriptor.Params)
	before, err := lookupFunc(i, "main.BeforeCheck", 1+n)
	if err != nil {
		return nil, ir.NewCompilationError(class, "BeforeCheck", nil, err)
	}
	after, err := lookupFunc(i, "main.AfterCheck", 2+n)
	if err != nil {
		return nil, ir.NewCompilationError(class, "AfterCheck", nil, err)
	}

	return &Unit{
		Name:         src.UnitName,
		HookedMethod: src.Spec.HookedMethodName,
		Source:       text,
		before:       before,
		after:        after,
	}, nil
}

func lookupFunc(i *interp.Interpreter, name string, numIn int) (reflect.Value, error) {
	v, err := i.Eval(name)
	if err != nil {
		return reflect.Value{}, err
	}
	if v.Kind() != reflect.Func {
		return reflect.Value{}, fmt.Errorf("%s is a %s, not a function", name, v.Kind())
	}
	t := v.Type()
	if t.NumIn() != numIn || t.NumOut() != 1 || t.Out(0).Kind() != reflect.Bool {
		return reflect.Value{}, fmt.Errorf("%s has signature %s, want %d parameter(s) returning bool", name, t, numIn)
	}
	return v, nil
}

// stringValue reads a string constant, which the interpreter may hand back
// either as a string or as an untyped constant.
func stringValue(v reflect.Value) (string, bool) {
	if !v.IsValid() {
		return "", false
	}
	if v.Kind() == reflect.String {
		return v.String(), true
	}
	if cv, ok := v.Interface().(constant.Value); ok && cv.Kind() == constant.String {
		return constant.StringVal(cv), true
	}
	return "", false
}

// diagnostics flattens err into one line per diagnostic.
func diagnostics(err error) []string {
	var list scanner.ErrorList
	if errors.As(err, &list) {
		out := make([]string, len(list))
		for i, e := range list {
			out[i] = e.Error()
		}
		return out
	}
	var out []string
	for _, line := range strings.Split(err.Error(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
