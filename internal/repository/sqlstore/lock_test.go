//go:build unix

package sqlstore

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registry.lock")

	first := NewFileLock(path)
	second := NewFileLock(path)

	unlock, err := first.Lock()
	require.NoError(t, err)
	assert.FileExists(t, path)

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		release, err := second.Lock()
		if err != nil {
			return
		}
		acquired.Store(true)
		_ = release()
	}()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, acquired.Load(), "second writer must wait")

	require.NoError(t, unlock())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("second writer never acquired the lock")
	}
	assert.True(t, acquired.Load())
}
