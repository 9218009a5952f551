package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSizeOnDisk(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "model.gob")
	if err := os.WriteFile(artifact, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	index := filepath.Join(dir, "listings")
	if err := os.MkdirAll(filepath.Join(index, "store"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(index, "meta"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(index, "store", "seg"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"file", []string{artifact}, 5},
		{"directory tree", []string{index}, 3},
		{"file and directory", []string{artifact, index}, 8},
		{"missing path", []string{filepath.Join(dir, "nope")}, 0},
		{"empty path", []string{""}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SizeOnDisk(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("SizeOnDisk() = %d, want %d", got, tt.want)
			}
		})
	}
}
