//go:build !unix

package sqlstore

import "errors"

var errLockUnsupported = errors.New("advisory file locks are not supported on this platform")

type FileLock struct {
	path string
}

func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

func (l *FileLock) Lock() (func() error, error) {
	return nil, errLockUnsupported
}
