package ir

import "reflect"

// AspectRequest is a weaving request as supplied by a caller or an aspect file.
// ContextTypeName is resolved through the type registry before anything else happens.
type AspectRequest struct {
	GuardClassName   string `json:"guard_class_name" validate:"required,goident"`
	ContextTypeName  string `json:"context_type" validate:"required"`
	HookedMethodName string `json:"hooked_method" validate:"required,goident"`
	BeforeExpr       string `json:"before" validate:"required"`
	AfterExpr        string `json:"after" validate:"required"`
}

// AspectSpec identifies one weaving request after its context type was resolved.
// Immutable once constructed.
type AspectSpec struct {
	GuardClassName   string
	ContextType      reflect.Type // named, non-pointer type; hooks receive *ContextType
	HookedMethodName string
	BeforeExpr       string
	AfterExpr        string
}

// NewAspectSpec binds a request to its resolved context type.
func NewAspectSpec(req AspectRequest, ctxType reflect.Type) AspectSpec {
	return AspectSpec{
		GuardClassName:   req.GuardClassName,
		ContextType:      ctxType,
		HookedMethodName: req.HookedMethodName,
		BeforeExpr:       req.BeforeExpr,
		AfterExpr:        req.AfterExpr,
	}
}

// ParameterDescriptor is one formal parameter of a hooked method, ready to be
// embedded in synthesized source.
type ParameterDescriptor struct {
	Name string `json:"name"`
	Type string `json:"type"` // normalized type expression, "[]T" for a variadic ...T

	// Variadic marks the final parameter of a variadic method.
	Variadic bool `json:"variadic,omitempty"`
}

// Phase names the hook a violation was detected in.
type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
)

// Tier is the detail level of one violation diagnostic line.
// All four tiers are emitted together for every violation.
type Tier int

const (
	TierAnnouncement Tier = 0 // plain planning-error announcement
	TierSerialized   Tier = 1 // structured dump of the failing instance
	TierDescribed    Tier = 2 // type-specific message, generic fallback
	TierDebugger     Tier = 3 // debugger signal
)

// ViolationRecord is one emitted diagnostic line of a violation burst.
type ViolationRecord struct {
	Tier       Tier   `json:"tier"`
	Aspect     string `json:"aspect"`
	Phase      Phase  `json:"phase"`
	CallID     int64  `json:"call_id"`
	TargetType string `json:"target_type"`
	Message    string `json:"message"`
}

// WeavingState is the installation state of a weaving session.
type WeavingState string

const (
	StateUnbuilt     WeavingState = "unbuilt"
	StateBundleReady WeavingState = "bundle_ready"
	StateInstalled   WeavingState = "installed"
	StateFailed      WeavingState = "failed"
)

// WeavingRecord is one journal entry of a weaving session state transition.
type WeavingRecord struct {
	SessionID   string       `json:"session_id"`
	AspectID    string       `json:"aspect_id"`
	Guard       string       `json:"guard"`
	ContextType string       `json:"context_type"`
	Method      string       `json:"method"`
	State       WeavingState `json:"state"`
	Detail      string       `json:"detail,omitempty"`
}
