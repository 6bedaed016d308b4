// Package guardlib holds helpers guard predicates may call.
//
// Every guard unit imports this package. The helpers read instances by field
// name and compare pre-call snapshots with live instances, which keeps
// predicates short:
//
//	guardlib.Unchanged(self, pre, "ID", "Owner") && self.Balance >= 0
package guardlib

import (
	"reflect"
	"strings"
)

// ImportPath is the path guard units import this package under.
const ImportPath = "github.com/roach88/contractweave/internal/guardlib"

// Field returns the value of an exported field, following pointers and
// dotted paths ("Customer.Name"). Missing fields and nil pointers yield nil.
func Field(v any, path string) any {
	rv := reflect.ValueOf(v)
	for _, name := range strings.Split(path, ".") {
		rv = indirect(rv)
		if !rv.IsValid() || rv.Kind() != reflect.Struct {
			return nil
		}
		sf, ok := rv.Type().FieldByName(name)
		if !ok || !sf.IsExported() {
			return nil
		}
		rv = rv.FieldByIndex(sf.Index)
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

// Len returns the length of a string, slice, array, map or channel, following
// pointers. Other values and nil have length 0.
func Len(v any) int {
	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return 0
	}
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return rv.Len()
	}
	return 0
}

// Equal reports deep equality.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// Unchanged reports whether the named fields are deeply equal on self and pre.
// With no field names every exported field is compared.
func Unchanged(self, pre any, fields ...string) bool {
	if len(fields) == 0 {
		rv := indirect(reflect.ValueOf(self))
		if !rv.IsValid() || rv.Kind() != reflect.Struct {
			return Equal(self, pre)
		}
		for _, sf := range reflect.VisibleFields(rv.Type()) {
			if sf.IsExported() && !sf.Anonymous {
				fields = append(fields, sf.Name)
			}
		}
	}
	for _, f := range fields {
		if !Equal(Field(self, f), Field(pre, f)) {
			return false
		}
	}
	return true
}

// Symbols returns the interpreter exports of this package.
func Symbols() map[string]reflect.Value {
	return map[string]reflect.Value{
		"Field":      reflect.ValueOf(Field),
		"Len":        reflect.ValueOf(Len),
		"Equal":      reflect.ValueOf(Equal),
		"Unchanged":  reflect.ValueOf(Unchanged),
		"ImportPath": reflect.ValueOf(ImportPath),
	}
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}
