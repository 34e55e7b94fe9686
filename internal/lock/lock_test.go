package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "LOCK")); err != nil {
		t.Fatalf("lock file missing: %v", err)
	}

	if err := l.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "LOCK")); !os.IsNotExist(err) {
		t.Error("lock file left behind after release")
	}
}

func TestReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Fatal(err)
	}

	l2, err := Acquire(dir)
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	_ = l2.Release()
}

func TestCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	l, err := Acquire(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = l.Release() }()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestReleaseNilSafe(t *testing.T) {
	var l *Lock
	if err := l.Release(); err != nil {
		t.Errorf("nil release: %v", err)
	}
}

func TestParsePID(t *testing.T) {
	if pid := parsePID("pid=1234\ntime=2024-01-01T00:00:00Z\n"); pid != 1234 {
		t.Errorf("pid = %d", pid)
	}
	if pid := parsePID("garbage"); pid != 0 {
		t.Errorf("pid = %d, want 0 for unparsable content", pid)
	}
}

func TestLockHeldErrorMessage(t *testing.T) {
	err := &LockHeldError{PID: 42, Path: "/tmp/LOCK"}
	var held *LockHeldError
	if !errors.As(err, &held) {
		t.Fatal("errors.As failed")
	}
	if held.PID != 42 {
		t.Errorf("pid = %d", held.PID)
	}
}
