package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
)

const lockFileName = "lock"

// VaultLock is an advisory lock held by an apply run for the whole
// plan/execute/update sequence. It only excludes other csfpub processes
// that honour it.
type VaultLock struct {
	path string
}

// AcquireLock creates <vault>/.csfpub/lock exclusively. A lock left by a
// process that no longer exists is removed and taken over once; otherwise
// it fails naming the holder PID and the lock file.
func AcquireLock(vaultPath string) (*VaultLock, error) {
	dir := filepath.Join(vaultPath, DataDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	p := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) && staleLock(p) {
		if rerr := os.Remove(p); rerr == nil || errors.Is(rerr, fs.ErrNotExist) {
			f, err = os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		}
	}
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, vaultLocked(fmt.Errorf("%w (lock file %s)", errLocked, p), lockHolder(p), p)
		}
		return nil, err
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(p)
		return nil, errors.Join(werr, cerr)
	}
	return &VaultLock{path: p}, nil
}

// Release removes the lock file. Calling it more than once is harmless.
func (l *VaultLock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func lockHolder(p string) string {
	data, err := os.ReadFile(p)
	if err != nil {
		return "unknown"
	}
	if pid := strings.TrimSpace(string(data)); pid != "" {
		return pid
	}
	return "unknown"
}

// staleLock reports whether the lock file names a PID with no live process.
// Unreadable or non-numeric contents are never treated as stale.
func staleLock(p string) bool {
	pid, err := strconv.Atoi(lockHolder(p))
	if err != nil || pid <= 0 || pid == os.Getpid() {
		return false
	}
	return !processAlive(pid)
}

func processAlive(pid int) bool {
	if runtime.GOOS == "windows" {
		// Signal 0 is unsupported there; assume the holder is alive.
		return true
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
