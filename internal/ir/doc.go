// Package ir provides the data model shared by the weaving pipeline.
//
// This package contains type definitions, coded errors and content-addressed
// identity only. All other internal packages import ir; ir imports nothing
// internal, so it stays the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - AspectRequest is what callers hand in; AspectSpec is the resolved,
//     immutable form with a concrete context type
//   - ParameterDescriptor lists are always in declaration order
//   - ViolationRecord values are emitted to sinks, never retained
//   - All JSON tags use snake_case
package ir
