package gateway

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSessionFileLock_LockUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	lock, err := lockSessionFile(path)
	if err != nil {
		t.Fatalf("Failed to lock: %v", err)
	}
	if _, err := os.Stat(path + ".lock"); os.IsNotExist(err) {
		t.Errorf("Lock file was not created")
	}

	if err := lock.unlock(); err != nil {
		t.Errorf("Failed to unlock: %v", err)
	}
	if _, err := os.Stat(path + ".lock"); !os.IsNotExist(err) {
		t.Errorf("Lock file was not removed after unlock")
	}
}

func TestSessionFileLock_SerializesWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	const goroutines = 8
	var (
		holders atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()

			lock, err := lockSessionFile(path)
			if err != nil {
				t.Errorf("Goroutine %d: Failed to lock: %v", id, err)
				return
			}
			if holders.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(5 * time.Millisecond)
			holders.Add(-1)

			if err := lock.unlock(); err != nil {
				t.Errorf("Goroutine %d: Failed to unlock: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	if overlap.Load() {
		t.Errorf("Two goroutines held the lock at the same time")
	}
}

func TestSessionFileLock_RemovesStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	lockPath := path + ".lock"

	if err := os.WriteFile(lockPath, []byte("4242"), 0o600); err != nil {
		t.Fatalf("Failed to create stale lock: %v", err)
	}
	staleTime := time.Now().Add(-lockStaleAfter - 5*time.Second)
	if err := os.Chtimes(lockPath, staleTime, staleTime); err != nil {
		t.Fatalf("Failed to age lock: %v", err)
	}

	lock, err := lockSessionFile(path)
	if err != nil {
		t.Fatalf("Failed to lock over stale lock: %v", err)
	}
	defer lock.unlock()

	if lock.file == nil {
		t.Errorf("Lock file handle is nil")
	}
}

func TestSessionFileLock_WaitsForHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	first, err := lockSessionFile(path)
	if err != nil {
		t.Fatalf("Failed to take first lock: %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		second, err := lockSessionFile(path)
		if err == nil {
			second.unlock()
		}
		acquired <- err
	}()

	time.Sleep(200 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatalf("Second lock taken while first was held")
	default:
	}

	first.unlock()

	select {
	case err := <-acquired:
		if err != nil {
			t.Errorf("Second lock failed after release: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Errorf("Second lock timed out after release")
	}
}
