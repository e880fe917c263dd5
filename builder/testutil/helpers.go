package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

// QuietLogger returns a logger that discards everything
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CreateTestFilesystemWithContent creates an in-memory filesystem with initial content
func CreateTestFilesystemWithContent(files map[string]string) afero.Fs {
	fs := afero.NewMemMapFs()
	for path, content := range files {
		WriteTestFile(fs, path, []byte(content))
	}
	return fs
}

// WriteTestFile writes a file, creating parent directories
func WriteTestFile(fs afero.Fs, path string, content []byte) {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		panic(err)
	}
	if err := afero.WriteFile(fs, path, content, 0644); err != nil {
		panic(err)
	}
}

// AssertFileExists checks if a file exists in the filesystem
func AssertFileExists(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	exists, err := afero.Exists(fs, path)
	if err != nil {
		t.Fatalf("Error checking file existence: %v", err)
	}
	if !exists {
		t.Errorf("Expected file to exist: %s", path)
	}
}

// AssertFileNotExists checks if a file does not exist
func AssertFileNotExists(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	exists, err := afero.Exists(fs, path)
	if err != nil {
		t.Fatalf("Error checking file existence: %v", err)
	}
	if exists {
		t.Errorf("Expected file to not exist: %s", path)
	}
}

// AssertFileContent checks if a file has the expected content
func AssertFileContent(t *testing.T, fs afero.Fs, path string, expected []byte) {
	t.Helper()
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	if string(content) != string(expected) {
		t.Errorf("File %s content mismatch:\nexpected: %s\ngot: %s", path, expected, content)
	}
}
