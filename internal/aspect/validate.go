package aspect

import (
	"fmt"
	"go/parser"
	"go/token"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/contractweave/internal/ir"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("goident", func(fl validator.FieldLevel) bool {
		return token.IsIdentifier(fl.Field().String())
	})
	return v
}

// Validate checks a request before any weaving happens: required fields,
// identifier shape of the guard and method names, and predicate syntax.
// It returns every problem found.
func Validate(req ir.AspectRequest) []error {
	var errs []error
	if err := validate.Struct(req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errs = append(errs, &CompileError{
					Field:   jsonField(fe.Field()),
					Message: fmt.Sprintf("failed %q check (value %q)", fe.Tag(), fe.Value()),
				})
			}
		} else {
			errs = append(errs, err)
		}
	}
	for _, p := range []struct{ field, expr string }{
		{"before", req.BeforeExpr},
		{"after", req.AfterExpr},
	} {
		if strings.TrimSpace(p.expr) == "" {
			continue
		}
		if _, err := parser.ParseExpr(p.expr); err != nil {
			errs = append(errs, &CompileError{
				Field:   p.field,
				Message: fmt.Sprintf("not a Go expression: %v", err),
			})
		}
	}
	return errs
}

func jsonField(name string) string {
	switch name {
	case "GuardClassName":
		return "aspect"
	case "ContextTypeName":
		return "context"
	case "HookedMethodName":
		return "method"
	case "BeforeExpr":
		return "before"
	case "AfterExpr":
		return "after"
	}
	return name
}
