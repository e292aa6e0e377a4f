package process

import (
	"io"
	"sync"
)

// DynamicMultiWriter behaves like io.MultiWriter but writers can be appended and
// removed while the process is producing output. Without writers output is discarded.
type DynamicMultiWriter struct {
	mu      sync.RWMutex
	writers []io.Writer
}

func NewDynamicMultiWriter(writers ...io.Writer) *DynamicMultiWriter {
	w := make([]io.Writer, len(writers))
	copy(w, writers)
	return &DynamicMultiWriter{writers: w}
}

func (t *DynamicMultiWriter) Append(writers ...io.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writers = append(t.writers, writers...)
}

func (t *DynamicMultiWriter) Remove(writer io.Writer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, v := range t.writers {
		if v == writer {
			t.writers = append(t.writers[:i], t.writers[i+1:]...)
			return true
		}
	}
	return false
}

func (t *DynamicMultiWriter) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.writers)
}

// Write fans out to every writer. Errors of single writers are ignored, a closed
// pipe must not cut off the remaining outputs.
func (t *DynamicMultiWriter) Write(p []byte) (int, error) {
	t.mu.RLock()
	writers := make([]io.Writer, len(t.writers))
	copy(writers, t.writers)
	t.mu.RUnlock()

	for _, w := range writers {
		// This call may block, e.g. on an io.Pipe nobody reads from
		_, _ = w.Write(p)
	}
	return len(p), nil
}
