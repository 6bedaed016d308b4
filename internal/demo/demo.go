package demo

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/roach88/contractweave/internal/aspect"
	"github.com/roach88/contractweave/internal/ir"
	"github.com/roach88/contractweave/internal/registry"
)

//go:embed aspects.cue
var aspectsCUE []byte

// AspectSource returns the CUE source of the demo aspects.
func AspectSource() []byte { return aspectsCUE }

// Aspects returns the demo weaving requests.
func Aspects() ([]ir.AspectRequest, error) {
	result, errs := aspect.Parse("aspects.cue", aspectsCUE, aspect.LoadModeCollectAll)
	if len(errs) > 0 {
		return nil, fmt.Errorf("demo aspects: %w", errors.Join(errs...))
	}
	return result.Requests, nil
}

// Register adds the demo types to reg with their parameter names.
func Register(reg *registry.Registry) error {
	types := []struct {
		v    any
		opts []registry.Option
	}{
		{(*ProductionOrder)(nil), []registry.Option{
			registry.WithParams("AddOperation", "op"),
			registry.WithParams("Plan", "quantity"),
		}},
		{(*ProductionOrderOperation)(nil), []registry.Option{
			registry.WithParams("Schedule", "start"),
		}},
		{(*Machine)(nil), []registry.Option{
			registry.WithParams("Assign", "op"),
		}},
	}
	for _, t := range types {
		if _, err := reg.Register(t.v, t.opts...); err != nil {
			return fmt.Errorf("register demo types: %w", err)
		}
	}
	return nil
}
