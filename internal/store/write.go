package store

import (
	"context"
	"fmt"

	"github.com/roach88/contractweave/internal/ir"
)

// RecordWeaving appends a weaving session state transition.
func (s *Store) RecordWeaving(ctx context.Context, rec ir.WeavingRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weavings
		(session_id, aspect_id, guard, context_type, method, state, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.SessionID,
		rec.AspectID,
		rec.Guard,
		rec.ContextType,
		rec.Method,
		string(rec.State),
		rec.Detail,
	)
	if err != nil {
		return fmt.Errorf("record weaving: %w", err)
	}
	return nil
}

// Emit appends the records of one violation burst in a single transaction.
// The burst number is one more than the highest stored burst.
func (s *Store) Emit(ctx context.Context, records []ir.ViolationRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("emit violation: %w", err)
	}
	defer tx.Rollback()

	var burst int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(burst), 0) + 1 FROM violations`).Scan(&burst); err != nil {
		return fmt.Errorf("emit violation: next burst: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO violations
		(burst, tier, aspect, phase, call_id, target_type, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("emit violation: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			burst,
			int(r.Tier),
			r.Aspect,
			string(r.Phase),
			r.CallID,
			r.TargetType,
			r.Message,
		); err != nil {
			return fmt.Errorf("emit violation tier %d: %w", r.Tier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("emit violation: commit: %w", err)
	}
	return nil
}
