package services

import "sync"

// Per-period exclusive locks, shared by every service in the process.
// Assignment, close and score submission for one period serialize on the
// same mutex, so a submission can never interleave with the close that
// freezes its period.
var periodLockRegistry = struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}{m: map[string]*sync.Mutex{}}

func lockPeriod(id string) func() {
	periodLockRegistry.mu.Lock()
	l, ok := periodLockRegistry.m[id]
	if !ok {
		l = &sync.Mutex{}
		periodLockRegistry.m[id] = l
	}
	periodLockRegistry.mu.Unlock()
	l.Lock()
	return l.Unlock
}
