package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/contractweave/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestBurst builds the four records of one violation.
func createTestBurst(aspect string, phase ir.Phase, callID int64) []ir.ViolationRecord {
	records := make([]ir.ViolationRecord, 4)
	for i := range records {
		records[i] = ir.ViolationRecord{
			Tier:       ir.Tier(i),
			Aspect:     aspect,
			Phase:      phase,
			CallID:     callID,
			TargetType: "testutil.Account",
			Message:    "tier message",
		}
	}
	return records
}
