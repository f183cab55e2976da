//go:build !unix

package linker

import "os"

// fileLock keeps the module file open. Platforms without flock get no
// advisory lock.
type fileLock struct {
	file *os.File
}

func openShared(path string) (*fileLock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &fileLock{file: f}, nil
}

// Close closes the file. Subsequent calls are no-ops.
func (l *fileLock) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
