//go:build unix

package io

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const LockFileName = "LOCK"

// DirLock is an exclusive advisory lock over a storage directory,
// held for the lifetime of an opened database.
type DirLock struct {
	file *os.File
	path string
}

func LockDir(dir string) (*DirLock, error) {

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("unable to create %s: %s", dir, err.Error())
	}

	path := filepath.Join(dir, LockFileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("unable to open lock file: %s", err.Error())
	}

	if flockErr := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); flockErr != nil {
		f.Close()
		return nil, fmt.Errorf("storage %s is locked by another process: %w", dir, flockErr)
	}

	return &DirLock{file: f, path: path}, nil
}

func (l *DirLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}
