// Package synth produces the source of one guard unit per aspect.
//
// A guard unit is a self-contained `package main` file exporting two predicates:
//
//	func BeforeCheck(self *T, <params>) bool
//	func AfterCheck(self *T, pre *T, <params>) bool
//
// plus the UnitName and HookedMethod constants the compiler uses to identify it.
// Everything stateful (snapshots, the planning-error flag, reporting) stays on the
// host side in package guard; the unit carries only the predicates. Output is a
// deterministic function of the aspect and the method signature, so it can be
// compared against golden files.
package synth

import (
	"bytes"
	_ "embed"
	"fmt"
	"go/token"
	"path/filepath"
	"text/template"

	"github.com/roach88/contractweave/internal/ir"
	"github.com/roach88/contractweave/internal/registry"
	"github.com/roach88/contractweave/internal/signature"
)

// GuardLibPath is the import path of the helper package every unit may use.
const GuardLibPath = "github.com/roach88/contractweave/internal/guardlib"

// UtilityImports are imported by every unit. Unused ones are pruned at compile time.
var UtilityImports = []string{"encoding/json", "fmt", "sort", "strings", GuardLibPath}

// reserved names are bound by the predicate functions themselves.
var reserved = map[string]bool{"self": true, "pre": true}

//go:embed guard.go.tmpl
var guardTemplate string

var tmpl = template.Must(template.New("guard").Parse(guardTemplate))

// Request is everything needed to synthesize one unit.
type Request struct {
	Spec ir.AspectSpec

	// ParamNames names the hooked method's parameters; nil means arg0..argN.
	ParamNames []string

	// PackageNames reports declared package names of import paths, typically
	// Registry.PackageNameOf. May be nil.
	PackageNames signature.NameFunc
}

// Source is a synthesized guard unit.
type Source struct {
	// UnitName is "guard_<import path>.<GuardClassName>".
	UnitName string

	// FileName is "<pkg>-<GuardClassName>_generated.go".
	FileName string

	// Dir is the import path of the context type as a relative directory.
	// Dumps are written to Dir/FileName so equally named packages do not clash.
	Dir string

	Spec       ir.AspectSpec
	Descriptor signature.Descriptor
	Imports    []signature.Import
	Text       []byte
}

// UnitName returns the deterministic unit name of an aspect on a type of the
// package at pkgPath.
func UnitName(pkgPath, class string) string {
	return "guard_" + pkgPath + "." + class
}

// RelPath returns Dir/FileName.
func (s *Source) RelPath() string {
	return filepath.Join(s.Dir, s.FileName)
}

// Generate renders the unit for req. All failures are SynthesisErrors.
func Generate(req Request) (*Source, error) {
	spec := req.Spec
	class := spec.GuardClassName

	if spec.ContextType == nil {
		return nil, ir.NewSynthesisError(class, "context type is nil", nil)
	}
	if !token.IsIdentifier(class) {
		return nil, ir.NewSynthesisError(class, fmt.Sprintf("guard class name %q is not an identifier", class), nil)
	}

	imports := signature.NewImportSet(req.PackageNames, UtilityImports...)
	ctxPath := spec.ContextType.PkgPath()
	ctxExpr, err := signature.TypeExpr(spec.ContextType, imports)
	if err != nil {
		return nil, ir.NewSynthesisError(class, "context type cannot be spelled in source", err)
	}

	desc, err := signature.Describe(spec.ContextType, spec.HookedMethodName, req.ParamNames, imports)
	if err != nil {
		return nil, ir.NewSynthesisError(class, "hooked method signature cannot be spelled in source", err)
	}
	seen := make(map[string]bool, len(desc.Params))
	for _, p := range desc.Params {
		if reserved[p.Name] {
			return nil, ir.NewSynthesisError(class, fmt.Sprintf("parameter name %q is reserved", p.Name), nil)
		}
		if seen[p.Name] {
			return nil, ir.NewSynthesisError(class, fmt.Sprintf("duplicate parameter name %q", p.Name), nil)
		}
		seen[p.Name] = true
	}

	pkg := registry.PackageName(spec.ContextType)
	if name, ok := lookupName(req.PackageNames, ctxPath); ok {
		pkg = name
	}

	src := &Source{
		UnitName:   UnitName(ctxPath, class),
		FileName:   pkg + "-" + class + "_generated.go",
		Dir:        filepath.FromSlash(ctxPath),
		Spec:       spec,
		Descriptor: desc,
		Imports:    imports.Imports(),
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, map[string]any{
		"Class":     class,
		"ContextID": registry.TypeID(spec.ContextType),
		"Method":    spec.HookedMethodName,
		"Imports":   src.Imports,
		"UnitName":  src.UnitName,
		"Context":   ctxExpr,
		"Suffix":    desc.FormalSuffix(),
		"Before":    spec.BeforeExpr,
		"After":     spec.AfterExpr,
	})
	if err != nil {
		return nil, ir.NewSynthesisError(class, "template execution failed", err)
	}
	src.Text = buf.Bytes()
	return src, nil
}

func lookupName(names signature.NameFunc, path string) (string, bool) {
	if names == nil {
		return "", false
	}
	return names(path)
}
