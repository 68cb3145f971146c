package providers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout is the on-disk format of the reload signal.
const TimestampLayout = "2006-01-02 15:04:05"

// FileSignal writes the reload signal as a single timestamp line in a file.
type FileSignal struct {
	path string
}

// NewFileSignal creates a file signal at path
func NewFileSignal(path string) *FileSignal {
	return &FileSignal{path: path}
}

// Path returns the signal file location.
func (f *FileSignal) Path() string {
	return f.path
}

// Signal overwrites the file with at formatted to the second and returns the written value.
func (f *FileSignal) Signal(at time.Time) (string, error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return "", fmt.Errorf("failed to create signal dir: %w", err)
	}

	value := at.Format(TimestampLayout)
	if err := os.WriteFile(f.path, []byte(value), 0644); err != nil {
		return "", fmt.Errorf("failed to write reload signal: %w", err)
	}
	return value, nil
}

// Read returns the current signal value. ok is false when no signal has
// been written yet.
func (f *FileSignal) Read() (value string, ok bool, err error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return strings.TrimSpace(string(data)), true, nil
}
