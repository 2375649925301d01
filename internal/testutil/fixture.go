package testutil

import (
	"archive/zip"
	"bytes"
	"testing"
)

// CreateTestArchive builds an in-memory zip from a path-to-content map.
// It's useful for emulating forge archive downloads in tests.
func CreateTestArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)
	for name, content := range files {
		entry, err := zipWriter.Create(name)
		if err != nil {
			t.Fatalf("Failed to create entry '%s' in zip: %v", name, err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write entry '%s' in zip: %v", name, err)
		}
	}
	if err := zipWriter.Close(); err != nil {
		t.Fatalf("Failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}
