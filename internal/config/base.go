package config

import "sync"

type SectionManager interface {
	Verify() error
}

type BaseSectionManager[T any] struct {
	mu   sync.RWMutex
	conf *T
}

// Return the read-only configuration by value
func (a *BaseSectionManager[T]) C() T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return *a.conf
}
