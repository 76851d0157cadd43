package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func releaseLock(t *testing.T, lock *FileLock) {
	t.Helper()
	if err := lock.Release(); err != nil {
		t.Logf("Warning: Release failed: %v", err)
	}
}

func TestFileLock_Acquire(t *testing.T) {
	lock := NewFileLock(filepath.Join(t.TempDir(), "nested", LockFilename))
	defer releaseLock(t, lock)

	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !lock.Held() {
		t.Error("expected lock to be held")
	}
	// Re-acquiring on the same instance is a no-op.
	if err := lock.Acquire(); err != nil {
		t.Errorf("second Acquire on same instance failed: %v", err)
	}
}

func TestFileLock_Contention(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFilename)

	first := NewFileLock(path)
	if err := first.Acquire(); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	second := NewFileLock(path)
	err := second.Acquire()
	if !errors.Is(err, ErrDataDirLocked) {
		t.Fatalf("expected ErrDataDirLocked, got %v", err)
	}
	if second.Held() {
		t.Error("second lock should not be held")
	}

	releaseLock(t, first)
	if err := second.Acquire(); err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	releaseLock(t, second)
}

func TestFileLock_ReleaseUnheld(t *testing.T) {
	lock := NewFileLock(filepath.Join(t.TempDir(), LockFilename))
	if err := lock.Release(); err != nil {
		t.Errorf("Release on unheld lock should be a no-op, got %v", err)
	}
}
