package gateway

import (
	"fmt"
	"os"
	"time"
)

const (
	lockRetries    = 50
	lockRetryDelay = 100 * time.Millisecond
	lockStaleAfter = 30 * time.Second
)

// sessionFileLock guards a session file across processes sharing it.
type sessionFileLock struct {
	file *os.File
	path string
}

// lockSessionFile takes an exclusive sidecar lock on path+".lock".
// A lock file older than lockStaleAfter is treated as abandoned.
func lockSessionFile(path string) (*sessionFileLock, error) {
	lockPath := path + ".lock"

	for range lockRetries {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			// owner pid, for whoever finds a leftover lock
			fmt.Fprintf(f, "%d", os.Getpid())
			return &sessionFileLock{file: f, path: lockPath}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		if info, statErr := os.Stat(lockPath); statErr == nil &&
			time.Since(info.ModTime()) > lockStaleAfter {
			if remErr := os.Remove(lockPath); remErr != nil && !os.IsNotExist(remErr) {
				return nil, fmt.Errorf("failed to remove stale lock file %s: %w", lockPath, remErr)
			}
			continue
		}

		time.Sleep(lockRetryDelay)
	}

	return nil, fmt.Errorf("timeout waiting for lock on %s after %v", path, lockRetries*lockRetryDelay)
}

func (l *sessionFileLock) unlock() error {
	if l.file != nil {
		l.file.Close()
	}
	return os.Remove(l.path)
}
