//go:build !unix

package io

import (
	"fmt"
	"os"
)

const LockFileName = "LOCK"

// without flock the lock only guards against double opens inside one process
type DirLock struct {
	path string
}

func LockDir(dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("unable to create %s: %s", dir, err.Error())
	}
	return &DirLock{path: dir}, nil
}

func (l *DirLock) Release() error {
	return nil
}
