package configstore

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireLockRoundTrip(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "rudi.json.lock")
	release, err := acquireLock(lockPath)
	if err != nil {
		t.Fatalf("acquireLock: %v", err)
	}
	if _, err := os.Stat(lockPath); err != nil {
		t.Fatalf("expected lock file to exist: %v", err)
	}
	release()
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("expected lock file removed after release, err=%v", err)
	}
}

func TestAcquireLockRemovesStaleOwner(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "rudi.json.lock")
	// A PID that is extremely unlikely to be alive.
	deadPID := 1 << 30
	if err := os.WriteFile(lockPath, []byte(strconv.Itoa(deadPID)), 0o644); err != nil {
		t.Fatal(err)
	}
	release, err := acquireLock(lockPath)
	if err != nil {
		t.Fatalf("acquireLock should reclaim a stale lock: %v", err)
	}
	release()
}
