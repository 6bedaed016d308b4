package ir

import (
	"errors"
	"fmt"
	"strings"
)

// WeaveError represents a fatal error of the weaving pipeline.
//
// Weave errors include:
//   - Synthesis: type-name normalization produced invalid syntax
//   - Compilation: the synthesized unit did not compile (all diagnostics attached)
//   - Resolution: context type or hooked method could not be found
//   - Installation: hooks were requested but no interception became active
//
// Contract violations are not WeaveErrors; they are reported and the hooked
// call continues.
type WeaveError struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Aspect is the guard class name of the failing weaving request.
	Aspect string

	// Message is a human-readable description.
	Message string

	// Diagnostics lists every compiler diagnostic, in source order.
	Diagnostics []string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorKind categorizes weave errors.
type ErrorKind string

const (
	// KindSynthesis indicates normalization or synthesis produced invalid source.
	KindSynthesis ErrorKind = "SYNTHESIS_ERROR"

	// KindCompilation indicates the guard unit failed to compile or load.
	KindCompilation ErrorKind = "COMPILATION_ERROR"

	// KindResolution indicates the context type or hooked method is absent.
	KindResolution ErrorKind = "RESOLUTION_ERROR"

	// KindInstallation indicates the interception did not become active.
	KindInstallation ErrorKind = "INSTALLATION_ERROR"
)

// Error implements the error interface.
func (e *WeaveError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	if e.Aspect != "" {
		fmt.Fprintf(&b, "[%s] ", e.Aspect)
	}
	b.WriteString(e.Message)
	if e.Err != nil && len(e.Diagnostics) == 0 {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Diagnostics) > 0 {
		fmt.Fprintf(&b, " (%d diagnostic(s))", len(e.Diagnostics))
		for _, d := range e.Diagnostics {
			b.WriteString("\n\t")
			b.WriteString(d)
		}
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *WeaveError) Unwrap() error {
	return e.Err
}

// NewSynthesisError creates a WeaveError for invalid synthesized source.
func NewSynthesisError(aspect, message string, err error) *WeaveError {
	return &WeaveError{Kind: KindSynthesis, Aspect: aspect, Message: message, Err: err}
}

// NewCompilationError creates a WeaveError carrying every compiler diagnostic.
func NewCompilationError(aspect, message string, diagnostics []string, err error) *WeaveError {
	return &WeaveError{Kind: KindCompilation, Aspect: aspect, Message: message, Diagnostics: diagnostics, Err: err}
}

// NewResolutionError creates a WeaveError for a missing context type or method.
func NewResolutionError(aspect, message string) *WeaveError {
	return &WeaveError{Kind: KindResolution, Aspect: aspect, Message: message}
}

// NewInstallationError creates a WeaveError for an interception that never became active.
func NewInstallationError(aspect, message string, err error) *WeaveError {
	return &WeaveError{Kind: KindInstallation, Aspect: aspect, Message: message, Err: err}
}

// IsSynthesisError returns true if err is a synthesis error.
// Uses errors.As to handle wrapped errors.
func IsSynthesisError(err error) bool {
	return hasKind(err, KindSynthesis)
}

// IsCompilationError returns true if err is a compilation error.
func IsCompilationError(err error) bool {
	return hasKind(err, KindCompilation)
}

// IsResolutionError returns true if err is a resolution error.
func IsResolutionError(err error) bool {
	return hasKind(err, KindResolution)
}

// IsInstallationError returns true if err is an installation error.
func IsInstallationError(err error) bool {
	return hasKind(err, KindInstallation)
}

func hasKind(err error, kind ErrorKind) bool {
	var we *WeaveError
	if errors.As(err, &we) {
		return we.Kind == kind
	}
	return false
}
