//go:build unix

package linker

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// fileLock is an open module file with a shared advisory lock on it. Other
// loaders may share it; writers asking for an exclusive lock are refused
// until it is closed.
type fileLock struct {
	file *os.File
}

func openShared(path string) (*fileLock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &fileLock{file: f}, nil
}

// Close unlocks and closes the file. Subsequent calls are no-ops.
func (l *fileLock) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		Logger().Debug("flock unlock failed", zap.String("path", l.file.Name()), zap.Error(err))
	}
	err := l.file.Close()
	l.file = nil
	return err
}
