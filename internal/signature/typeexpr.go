package signature

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// TypeExpr renders t as a Go type expression, registering every package it
// references in imports.
func TypeExpr(t reflect.Type, imports *ImportSet) (string, error) {
	expr, err := typeExpr(t, imports)
	if err != nil {
		return "", err
	}
	if err := validate(expr); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformed, t, err)
	}
	return expr, nil
}

func typeExpr(t reflect.Type, imports *ImportSet) (string, error) {
	if t.Name() != "" {
		if t.PkgPath() == "" {
			return t.Name(), nil
		}
		alias := imports.Add(t.PkgPath())
		return Normalize(alias+"."+t.Name(), imports)
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem, err := typeExpr(t.Elem(), imports)
		return "*" + elem, err

	case reflect.Slice:
		elem, err := typeExpr(t.Elem(), imports)
		return "[]" + elem, err

	case reflect.Array:
		elem, err := typeExpr(t.Elem(), imports)
		return "[" + strconv.Itoa(t.Len()) + "]" + elem, err

	case reflect.Map:
		key, err := typeExpr(t.Key(), imports)
		if err != nil {
			return "", err
		}
		elem, err := typeExpr(t.Elem(), imports)
		return "map[" + key + "]" + elem, err

	case reflect.Chan:
		return chanExpr(t, imports)

	case reflect.Func:
		sig, err := funcSignature(t, 0, imports)
		return "func" + sig, err

	case reflect.Struct:
		return structExpr(t, imports)

	case reflect.Interface:
		return interfaceExpr(t, imports)
	}
	return "", fmt.Errorf("%w: unsupported kind %s", ErrMalformed, t.Kind())
}

func chanExpr(t reflect.Type, imports *ImportSet) (string, error) {
	elem, err := typeExpr(t.Elem(), imports)
	if err != nil {
		return "", err
	}
	switch t.ChanDir() {
	case reflect.RecvDir:
		return "<-chan " + elem, nil
	case reflect.SendDir:
		return "chan<- " + elem, nil
	}
	if t.Elem().Kind() == reflect.Chan && t.Elem().Name() == "" && t.Elem().ChanDir() == reflect.RecvDir {
		return "chan (" + elem + ")", nil
	}
	return "chan " + elem, nil
}

// funcSignature renders "(params) results" of a func type, skipping the first
// skip inputs (1 for a method expression's receiver).
func funcSignature(t reflect.Type, skip int, imports *ImportSet) (string, error) {
	var params []string
	for i := skip; i < t.NumIn(); i++ {
		in := t.In(i)
		if t.IsVariadic() && i == t.NumIn()-1 {
			elem, err := typeExpr(in.Elem(), imports)
			if err != nil {
				return "", err
			}
			params = append(params, "..."+elem)
			continue
		}
		p, err := typeExpr(in, imports)
		if err != nil {
			return "", err
		}
		params = append(params, p)
	}

	results := make([]string, 0, t.NumOut())
	for i := 0; i < t.NumOut(); i++ {
		r, err := typeExpr(t.Out(i), imports)
		if err != nil {
			return "", err
		}
		results = append(results, r)
	}

	sig := "(" + strings.Join(params, ", ") + ")"
	switch len(results) {
	case 0:
	case 1:
		sig += " " + results[0]
	default:
		sig += " (" + strings.Join(results, ", ") + ")"
	}
	return sig, nil
}

func structExpr(t reflect.Type, imports *ImportSet) (string, error) {
	if t.NumField() == 0 {
		return "struct{}", nil
	}
	fields := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			return "", fmt.Errorf("%w: struct field %s is unexported", ErrMalformed, f.Name)
		}
		ft, err := typeExpr(f.Type, imports)
		if err != nil {
			return "", err
		}
		field := ft
		if !f.Anonymous {
			field = f.Name + " " + ft
		}
		if f.Tag != "" {
			field += " " + strconv.Quote(string(f.Tag))
		}
		fields = append(fields, field)
	}
	return "struct{ " + strings.Join(fields, "; ") + " }", nil
}

func interfaceExpr(t reflect.Type, imports *ImportSet) (string, error) {
	if t.NumMethod() == 0 {
		return "interface{}", nil
	}
	methods := make([]string, 0, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if m.PkgPath != "" {
			return "", fmt.Errorf("%w: interface method %s is unexported", ErrMalformed, m.Name)
		}
		sig, err := funcSignature(m.Type, 0, imports)
		if err != nil {
			return "", err
		}
		methods = append(methods, m.Name+sig)
	}
	return "interface{ " + strings.Join(methods, "; ") + " }", nil
}
