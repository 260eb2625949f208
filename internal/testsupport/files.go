package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// WriteJSON marshals value into path, creating parent directories. Import
// tests use it to lay out roster files.
func WriteJSON(t testing.TB, path string, value any) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
