package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainAspect = "contractweave/aspect/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// AspectID computes the content-addressed ID of a weaving request.
// The ID is stable across restarts given the same request.
func AspectID(req AspectRequest) (string, error) {
	canonical, err := MarshalCanonical(map[string]string{
		"guard_class_name": req.GuardClassName,
		"context_type":     req.ContextTypeName,
		"hooked_method":    req.HookedMethodName,
		"before":           req.BeforeExpr,
		"after":            req.AfterExpr,
		"unit_version":     UnitVersion,
	})
	if err != nil {
		return "", fmt.Errorf("AspectID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAspect, canonical), nil
}

// MustAspectID is like AspectID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustAspectID(req AspectRequest) string {
	id, err := AspectID(req)
	if err != nil {
		panic(err)
	}
	return id
}
