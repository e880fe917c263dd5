package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LockFile is the name of the lock file created in a locked directory
const LockFile = ".quill.lock"

// ErrLocked means another process holds the directory lock
var ErrLocked = errors.New("directory is locked by another process")

type FileLock struct {
	file *os.File
	path string
}

// AcquireLock takes an exclusive, non-blocking lock on dir, creating it if
// needed.
func AcquireLock(dir string) (*FileLock, error) {
	lockPath := filepath.Join(dir, LockFile)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	if err := tryLock(file); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w (lock file: %s)", ErrLocked, lockPath)
	}

	// Write PID for debugging
	pid := fmt.Sprintf("%d\n%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	_ = file.Truncate(0)
	_, _ = file.WriteAt([]byte(pid), 0)

	return &FileLock{file: file, path: lockPath}, nil
}

func (fl *FileLock) Release() error {
	if fl == nil || fl.file == nil {
		return nil
	}

	_ = unlock(fl.file)
	err := fl.file.Close()
	fl.file = nil

	_ = os.Remove(fl.path)
	return err
}
