// Package lock guards work that must not overlap across thrive processes,
// such as a sync pass or a running sync daemon.
package lock

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
)

// ErrHeld is returned by TryAcquire when another holder has the lock.
var ErrHeld = errors.New("lock is held")

// FileLock is an exclusive flock on a file that records the holder's pid.
type FileLock struct {
	path     string
	file     *os.File
	released bool
	mu       sync.Mutex
}

// TryAcquire takes the lock without blocking. The lock is per open file, so
// two acquisitions inside one process also exclude each other.
func TryAcquire(path string) (*FileLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, ErrHeld
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if err := file.Truncate(0); err == nil {
		_, _ = file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &FileLock{path: path, file: file}, nil
}

// Release unlocks and closes the file. Calling it twice is harmless.
func (l *FileLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}
	l.released = true
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}

// Holder reports the pid recorded by the current holder. held is false when
// nobody has the lock; a stale pid left by a crashed holder is ignored.
func Holder(path string) (pid int, held bool, err error) {
	l, err := TryAcquire(path)
	switch {
	case err == nil:
		return 0, false, l.Release()
	case !errors.Is(err, ErrHeld):
		return 0, false, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, true, fmt.Errorf("read lock file: %w", err)
	}
	pid, err = strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, true, fmt.Errorf("lock file %s has no pid", path)
	}
	return pid, true, nil
}
