package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// WritePidFile writes the current process ID to path.
func WritePidFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// ReadPidFile reads and returns the PID stored at path.
func ReadPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID: %d", pid)
	}
	return pid, nil
}

// RemovePidFile removes path. A missing file is not an error.
func RemovePidFile(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// AlreadyRunningError is returned by ClaimPidFile when the pid file names a
// live process other than this one.
type AlreadyRunningError struct {
	Pid int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("already running as pid %d", e.Pid)
}

// ClaimPidFile writes the current PID to path unless path names another live
// process. A stale or unreadable file is replaced.
func ClaimPidFile(path string) error {
	pid, err := ReadPidFile(path)
	if err == nil && pid != os.Getpid() && isProcessRunning(pid) {
		return &AlreadyRunningError{Pid: pid}
	}
	if err != nil && !os.IsNotExist(err) {
		if rmErr := RemovePidFile(path); rmErr != nil {
			return rmErr
		}
	}
	return WritePidFile(path)
}

// StopPid asks the process in path to terminate and waits up to timeout for
// it to exit. It returns the stopped pid, or 0 if nothing was running. The
// pid file is removed once the process is gone.
func StopPid(path string, timeout time.Duration) (int, error) {
	pid, err := ReadPidFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if !isProcessRunning(pid) {
		return 0, RemovePidFile(path)
	}
	if err := terminate(pid); err != nil {
		return 0, fmt.Errorf("signal pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(timeout)
	for isProcessRunning(pid) {
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("pid %d still running after %s", pid, timeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
	return pid, RemovePidFile(path)
}
