//go:build windows

package daemon

import (
	"os"
	"os/exec"
	"path/filepath"
)

// instanceLock is an exclusively created lock file, removed on release.
type instanceLock struct {
	f    *os.File
	path string
}

func acquireLock(path string) (*instanceLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrAlreadyRunning
		}
		return nil, err
	}
	return &instanceLock{f: f, path: path}, nil
}

func (l *instanceLock) release() {
	if l == nil || l.f == nil {
		return
	}
	_ = l.f.Close()
	_ = os.Remove(l.path)
}

func detach(*exec.Cmd) {}

// alive relies on FindProcess opening a handle, which fails for exited processes.
func alive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}

// terminate kills the process; Windows has no SIGTERM.
func terminate(proc *os.Process) error {
	return proc.Kill()
}
