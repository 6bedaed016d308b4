// Package demo is a small production-planning domain woven with contracts.
// The contractweave demo command and the package tests run Scenario against it.
package demo

import "fmt"

// ProductionOrder is a planned order with its routing.
type ProductionOrder struct {
	ID         int                         `json:"id"`
	Name       string                      `json:"name"`
	Quantity   int                         `json:"quantity"`
	Released   bool                        `json:"released"`
	Operations []*ProductionOrderOperation `json:"operations,omitempty"`
}

// Describe implements report.Describer.
func (o *ProductionOrder) Describe() string {
	return fmt.Sprintf("Error at Production Order with Id: %d and Name: %s", o.ID, o.Name)
}

// AddOperation appends op to the routing.
func (o *ProductionOrder) AddOperation(op *ProductionOrderOperation) {
	o.Operations = append(o.Operations, op)
}

// Plan sets the order quantity and scales every operation's duration.
func (o *ProductionOrder) Plan(quantity int) {
	o.Quantity = quantity
	for _, op := range o.Operations {
		op.Duration = op.SetupTime + quantity*op.UnitTime
	}
}

// Release releases the order to the shop floor.
func (o *ProductionOrder) Release() {
	o.Released = true
}

// ProductionOrderOperation is one routing step, scheduled in minutes from
// the start of the planning horizon.
type ProductionOrderOperation struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	SetupTime int    `json:"setup_time"`
	UnitTime  int    `json:"unit_time"`
	Duration  int    `json:"duration"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
}

// Describe implements report.Describer.
func (op *ProductionOrderOperation) Describe() string {
	return fmt.Sprintf("Error at Production Order Operation with Id: %d and Name: %s", op.ID, op.Name)
}

// Schedule places the operation at start.
func (op *ProductionOrderOperation) Schedule(start int) {
	op.Start = start
	op.End = start + op.Duration
}

// Machine is a resource with a capacity in minutes.
type Machine struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Load     int    `json:"load"`
}

// Assign books op on the machine. Overbooking is allowed and left to the
// capacity contract to catch.
func (m *Machine) Assign(op *ProductionOrderOperation) {
	m.Load += op.Duration
}
