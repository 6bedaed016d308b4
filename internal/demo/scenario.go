package demo

import (
	"fmt"
	"io"
)

// Caller invokes a method through the interception runtime.
// *patch.Runtime implements it.
type Caller interface {
	Call(instance any, method string, args ...any) ([]any, error)
}

// Step is one call of a scenario.
type Step struct {
	Description string
	Instance    any
	Method      string
	Args        []any

	// Violates names the aspect the step is expected to trip, if any.
	Violates string
}

// World holds the objects a scenario works on.
type World struct {
	Orders   []*ProductionOrder
	Machines []*Machine
}

// NewWorld returns two orders, one with a routing and one without, and a
// small machine.
func NewWorld() *World {
	return &World{
		Orders: []*ProductionOrder{
			{ID: 1, Name: "Gearbox housing"},
			{ID: 2, Name: "Drive shaft"},
		},
		Machines: []*Machine{
			{Name: "Mill-01", Capacity: 300},
		},
	}
}

// Steps returns the scenario calls against w. Three steps break a contract.
func Steps(w *World) []Step {
	housing, shaft := w.Orders[0], w.Orders[1]
	mill := w.Machines[0]
	milling := &ProductionOrderOperation{ID: 10, Name: "Milling", SetupTime: 30, UnitTime: 4}
	drilling := &ProductionOrderOperation{ID: 11, Name: "Drilling", SetupTime: 15, UnitTime: 2}

	return []Step{
		{Description: "route housing: milling", Instance: housing, Method: "AddOperation", Args: []any{milling}},
		{Description: "route housing: drilling", Instance: housing, Method: "AddOperation", Args: []any{drilling}},
		{Description: "plan housing for 50 pieces", Instance: housing, Method: "Plan", Args: []any{50}},
		{Description: "schedule milling at 0", Instance: milling, Method: "Schedule", Args: []any{0}},
		{Description: "schedule drilling after milling", Instance: drilling, Method: "Schedule", Args: []any{230}},
		{Description: "release housing", Instance: housing, Method: "Release"},
		{Description: "book milling on Mill-01", Instance: mill, Method: "Assign", Args: []any{milling}},
		{Description: "book drilling on Mill-01", Instance: mill, Method: "Assign", Args: []any{drilling}, Violates: "CapacityGuard"},
		{Description: "schedule drilling before the horizon", Instance: drilling, Method: "Schedule", Args: []any{-15}, Violates: "ScheduleGuard"},
		{Description: "release shaft without a routing", Instance: shaft, Method: "Release", Violates: "ReleaseGuard"},
	}
}

// Run executes steps through c, writing one line per step to out.
// A call error stops the run.
func Run(c Caller, steps []Step, out io.Writer) error {
	for i, s := range steps {
		if out != nil {
			fmt.Fprintf(out, "step %d: %s\n", i+1, s.Description)
		}
		if _, err := c.Call(s.Instance, s.Method, s.Args...); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, s.Description, err)
		}
	}
	return nil
}

// ExpectedViolations returns the aspects steps are expected to trip.
func ExpectedViolations(steps []Step) []string {
	var names []string
	seen := make(map[string]bool)
	for _, s := range steps {
		if s.Violates != "" && !seen[s.Violates] {
			seen[s.Violates] = true
			names = append(names, s.Violates)
		}
	}
	return names
}
