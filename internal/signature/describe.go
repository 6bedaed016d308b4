package signature

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/contractweave/internal/ir"
)

// Descriptor is the parameter list of one hooked method.
type Descriptor struct {
	Method string

	// Found is false when the type has no such method. Params is then empty;
	// synthesis still succeeds and Apply reports the missing method.
	Found bool

	Params []ir.ParameterDescriptor
}

// Describe looks up method on *t (declared or promoted) and describes its
// parameters. names supplies parameter names in declaration order; when nil
// they default to arg0..argN.
func Describe(t reflect.Type, method string, names []string, imports *ImportSet) (Descriptor, error) {
	d := Descriptor{Method: method}
	if t == nil {
		return d, nil
	}
	m, ok := reflect.PointerTo(t).MethodByName(method)
	if !ok {
		return d, nil
	}
	d.Found = true

	mt := m.Type
	n := mt.NumIn() - 1 // receiver
	if names != nil && len(names) != n {
		return Descriptor{}, fmt.Errorf("%s.%s takes %d parameter(s), got %d name(s)", t, method, n, len(names))
	}

	d.Params = make([]ir.ParameterDescriptor, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("arg%d", i)
		if names != nil {
			name = names[i]
		}
		expr, err := TypeExpr(mt.In(i+1), imports)
		if err != nil {
			return Descriptor{}, fmt.Errorf("%s.%s parameter %s: %w", t, method, name, err)
		}
		d.Params = append(d.Params, ir.ParameterDescriptor{
			Name:     name,
			Type:     expr,
			Variadic: mt.IsVariadic() && i == n-1,
		})
	}
	return d, nil
}

// FormalSuffix renders the parameters as a comma-prefixed formal list, e.g.
// ", amount int, tags ...string". Empty for zero parameters.
func (d Descriptor) FormalSuffix() string {
	var b strings.Builder
	for _, p := range d.Params {
		b.WriteString(", ")
		b.WriteString(p.Name)
		b.WriteByte(' ')
		if p.Variadic {
			b.WriteString("..." + strings.TrimPrefix(p.Type, "[]"))
		} else {
			b.WriteString(p.Type)
		}
	}
	return b.String()
}

// ParamNames returns the parameter names in declaration order.
func (d Descriptor) ParamNames() []string {
	names := make([]string, len(d.Params))
	for i, p := range d.Params {
		names[i] = p.Name
	}
	return names
}
