package guard

import (
	"fmt"
	"reflect"

	"github.com/roach88/contractweave/internal/ir"
	"github.com/roach88/contractweave/internal/patch"
)

// Bundle is everything needed to install a unit. Building it installs nothing.
type Bundle struct {
	// Session is the patch session, the unit name.
	Session string

	Target    patch.Target
	Prefix    patch.HookMethod
	Postfix   patch.HookMethod
	Finalizer patch.HookMethod
}

// Apply resolves the hooked method on contextType and returns the bundle.
// A nil type or a missing method is a ResolutionError.
func (u *Unit) Apply(contextType reflect.Type) (*Bundle, error) {
	class := u.spec.GuardClassName
	if contextType == nil {
		return nil, ir.NewResolutionError(class, "context type is nil")
	}
	if contextType.Kind() == reflect.Pointer {
		contextType = contextType.Elem()
	}
	method := u.spec.HookedMethodName
	if _, ok := reflect.PointerTo(contextType).MethodByName(method); !ok {
		return nil, ir.NewResolutionError(class, fmt.Sprintf("method %s not found on %s", method, contextType))
	}
	return &Bundle{
		Session:   u.name,
		Target:    patch.Target{Type: contextType, Method: method},
		Prefix:    patch.HookMethod{Unit: u.name, Name: HookBefore},
		Postfix:   patch.HookMethod{Unit: u.name, Name: HookAfter},
		Finalizer: patch.HookMethod{Unit: u.name, Name: HookFinalize},
	}, nil
}
