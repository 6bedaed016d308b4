package aspect

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/contractweave/internal/ir"
)

// DefaultPredicate is used for an omitted before or after field.
const DefaultPredicate = "true"

// CompileAspect parses one aspect struct into a request. The guard class name
// is the struct's label.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`aspect: G: { context: "Account", method: "Deposit" }`)
//	req, err := CompileAspect(v.LookupPath(cue.ParsePath("aspect.G")))
func CompileAspect(v cue.Value) (*ir.AspectRequest, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: "aspect", Message: "must be a struct", Pos: v.Pos()}
	}

	req := &ir.AspectRequest{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		req.GuardClassName = labels[len(labels)-1].String()
	}

	var err error
	if req.ContextTypeName, err = requiredString(v, "context"); err != nil {
		return nil, err
	}
	if req.HookedMethodName, err = requiredString(v, "method"); err != nil {
		return nil, err
	}
	if req.BeforeExpr, err = predicate(v, "before"); err != nil {
		return nil, err
	}
	if req.AfterExpr, err = predicate(v, "after"); err != nil {
		return nil, err
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		switch iter.Label() {
		case "context", "method", "before", "after":
		default:
			return nil, &CompileError{
				Field:   "field",
				Message: fmt.Sprintf("unknown field %q", iter.Label()),
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return req, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: field + " must be a string", Pos: fv.Pos()}
	}
	if s == "" {
		return "", &CompileError{Field: field, Message: field + " must not be empty", Pos: fv.Pos()}
	}
	return s, nil
}

func predicate(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return DefaultPredicate, nil
	}
	if d, ok := fv.Default(); ok {
		fv = d
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: field + " must be a string", Pos: fv.Pos()}
	}
	if s == "" {
		return DefaultPredicate, nil
	}
	return s, nil
}

// CompileError is an aspect definition error with its CUE position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
