package webcam

import (
	"sync"
)

// registry enforces that a device is held by at most one session (or one
// capability query) at a time within this process.
type registry struct {
	mu   sync.Mutex
	held map[string]bool
}

var devices = &registry{held: make(map[string]bool)}

// acquire claims key and returns the function that gives it back. The
// release function is safe to call more than once.
func (r *registry) acquire(key string) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.held[key] {
		return nil, ErrDeviceBusy
	}
	r.held[key] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.held, key)
			r.mu.Unlock()
		})
	}, nil
}

func (r *registry) busy(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held[key]
}
