package gse

import (
	"sync"
	"time"
)

// RunFlag is the shared running flag of all loops.
type RunFlag struct {
	lock    sync.RWMutex
	running bool
}

// NewRunFlag creates a RunFlag in running state.
func NewRunFlag() *RunFlag {
	return &RunFlag{running: true}
}

// Running reports if loops should keep running.
func (f *RunFlag) Running() bool {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.running
}

// Set updates the flag.
func (f *RunFlag) Set(running bool) {
	f.lock.Lock()
	f.running = running
	f.lock.Unlock()
}

// AckState tracks the last acknowledged valve state and whether
// acks were written since the last commit.
type AckState struct {
	lock       sync.Mutex
	valves     uint32
	count      int
	acked      bool
	lastCommit time.Time
}

// NewAckState creates AckState for count valves.
func NewAckState(count int, now time.Time) *AckState {
	return &AckState{count: count, lastCommit: now}
}

// Record stores the valve state reported by the hardware and marks acked.
func (s *AckState) Record(valves uint32) {
	s.lock.Lock()
	s.valves = valves
	s.acked = true
	s.lock.Unlock()
}

// Acked reports whether acks are pending commit.
func (s *AckState) Acked() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.acked
}

// Valves returns the acknowledged state per valve.
func (s *AckState) Valves() []bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	valves := make([]bool, s.count)
	for i := range valves {
		valves[i] = s.valves&(1<<uint(i)) != 0
	}
	return valves
}

// DueForCommit reports whether acks are pending and the last commit is
// older than threshold. When due, acked is cleared and now becomes the
// last commit time.
func (s *AckState) DueForCommit(now time.Time, threshold time.Duration) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.acked || now.Sub(s.lastCommit) <= threshold {
		return false
	}
	s.acked = false
	s.lastCommit = now
	return true
}
