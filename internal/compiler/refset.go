package compiler

import (
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/roach88/contractweave/internal/guardlib"
	"github.com/roach88/contractweave/internal/registry"
)

// StdlibPackages is the fixed part of the reference set. Guard units may
// import these without the caller supplying them.
var StdlibPackages = []string{
	"bytes",
	"encoding/json",
	"errors",
	"fmt",
	"math",
	"sort",
	"strconv",
	"strings",
	"time",
	"unicode/utf8",
}

// referenceSet builds the interpreter exports for one compilation: the stdlib
// subset, every caller module, and guardlib.
func referenceSet(modules []registry.Module) interp.Exports {
	allowed := make(map[string]bool, len(StdlibPackages))
	for _, p := range StdlibPackages {
		allowed[p] = true
	}

	exports := make(interp.Exports, len(StdlibPackages)+len(modules)+1)
	for key, syms := range stdlib.Symbols {
		// Keys are "<path>/<name>"; yaegi also keeps a "." entry.
		if i := strings.LastIndexByte(key, '/'); i > 0 && allowed[key[:i]] {
			exports[key] = syms
		}
	}
	for _, m := range modules {
		syms := make(map[string]reflect.Value, len(m.Symbols))
		for name, v := range m.Symbols {
			syms[name] = v
		}
		exports[m.Key()] = syms
	}
	exports[guardlib.ImportPath+"/guardlib"] = guardlib.Symbols()
	return exports
}

// contextModule returns the module exporting t, synthesizing one from t alone
// when the caller did not pass it.
func contextModule(t reflect.Type, modules []registry.Module) []registry.Module {
	for _, m := range modules {
		if m.Path == t.PkgPath() {
			return modules
		}
	}
	m := registry.Module{
		Path:    t.PkgPath(),
		Name:    registry.PackageName(t),
		Symbols: map[string]reflect.Value{t.Name(): reflect.Zero(reflect.PointerTo(t))},
	}
	return append(append([]registry.Module(nil), modules...), m)
}
