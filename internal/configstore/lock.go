package configstore

import (
	"fmt"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/rudi-cli/rudi/internal/rudierr"
)

const (
	lockRetryInterval = 50 * time.Millisecond
	lockWaitTimeout   = 5 * time.Second
)

// acquireLock creates lockPath with O_CREATE|O_EXCL semantics, retrying on
// contention for up to lockWaitTimeout. A lock file owned by a process that
// no longer exists (probed with a zero signal) is treated as stale and
// removed before the next attempt, per spec.md §4.F.
func acquireLock(lockPath string) (func(), error) {
	deadline := time.Now().Add(lockWaitTimeout)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d", os.Getpid())
			_ = f.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}

		if removeIfStale(lockPath) {
			continue
		}

		if time.Now().After(deadline) {
			return nil, &rudierr.LockContention{Path: lockPath}
		}
		time.Sleep(lockRetryInterval)
	}
}

// removeIfStale reports whether it removed lockPath because the PID it
// names is no longer alive.
func removeIfStale(lockPath string) bool {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		// No such process: the lock is stale.
		_ = os.Remove(lockPath)
		return true
	}
	return false
}
