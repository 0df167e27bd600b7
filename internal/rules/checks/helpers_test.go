package checks

import (
	"testing"

	"appaudit/internal/host"
)

func newSnapshot(t *testing.T, values map[string]any) *host.Snapshot {
	t.Helper()
	s, err := host.NewSnapshot(values)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return s
}
