package store

import (
	"context"
	"fmt"

	"github.com/roach88/contractweave/internal/ir"
)

// StoredViolation is a violation record with its storage position.
type StoredViolation struct {
	Seq   int64 `json:"seq"`
	Burst int64 `json:"burst"`
	ir.ViolationRecord
}

// ReadWeavings returns every transition of a session, oldest first.
// An empty sessionID returns the transitions of all sessions.
//
// Returns an empty slice (not nil) if no records exist.
func (s *Store) ReadWeavings(ctx context.Context, sessionID string) ([]ir.WeavingRecord, error) {
	query := `
		SELECT session_id, aspect_id, guard, context_type, method, state, detail
		FROM weavings
	`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query weavings: %w", err)
	}
	defer rows.Close()

	records := []ir.WeavingRecord{}
	for rows.Next() {
		var rec ir.WeavingRecord
		var state string
		if err := rows.Scan(&rec.SessionID, &rec.AspectID, &rec.Guard, &rec.ContextType, &rec.Method, &state, &rec.Detail); err != nil {
			return nil, fmt.Errorf("scan weaving: %w", err)
		}
		rec.State = ir.WeavingState(state)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weavings: %w", err)
	}
	return records, nil
}

// ReadViolations returns stored violation records, oldest first. An empty
// aspect returns every aspect's records; limit <= 0 means no limit.
//
// Returns an empty slice (not nil) if no records exist.
func (s *Store) ReadViolations(ctx context.Context, aspect string, limit int) ([]StoredViolation, error) {
	query := `
		SELECT seq, burst, tier, aspect, phase, call_id, target_type, message
		FROM violations
	`
	var args []any
	if aspect != "" {
		query += ` WHERE aspect = ?`
		args = append(args, aspect)
	}
	query += ` ORDER BY seq ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()

	out := []StoredViolation{}
	for rows.Next() {
		var v StoredViolation
		var tier int
		var phase string
		if err := rows.Scan(&v.Seq, &v.Burst, &tier, &v.Aspect, &phase, &v.CallID, &v.TargetType, &v.Message); err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		v.Tier = ir.Tier(tier)
		v.Phase = ir.Phase(phase)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate violations: %w", err)
	}
	return out, nil
}

// CountBursts returns the number of stored violation bursts per aspect.
func (s *Store) CountBursts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT aspect, COUNT(DISTINCT burst)
		FROM violations
		GROUP BY aspect
		ORDER BY aspect ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("count bursts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var aspect string
		var n int
		if err := rows.Scan(&aspect, &n); err != nil {
			return nil, fmt.Errorf("scan burst count: %w", err)
		}
		counts[aspect] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate burst counts: %w", err)
	}
	return counts, nil
}
