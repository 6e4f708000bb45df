package service

import (
	"sync/atomic"
	"time"
)

// State is the shared health snapshot the trading loop feeds and the
// HTTP probes read. Every field is independently atomic; readers never
// block a tick.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	wsConnected   atomic.Bool
	lastTickUnix  atomic.Int64 // unix seconds
	tickErrors    atomic.Int64 // cumulative failed symbol passes
	openPositions atomic.Int64
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetWSConnected(v bool) { s.wsConnected.Store(v) }
func (s *State) WSConnected() bool     { return s.wsConnected.Load() }

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.Unix()) }
func (s *State) LastTick() time.Time {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) AddTickErrors(n int) { s.tickErrors.Add(int64(n)) }
func (s *State) TickErrors() int64   { return s.tickErrors.Load() }

func (s *State) SetOpenPositions(n int) { s.openPositions.Store(int64(n)) }
func (s *State) OpenPositions() int64   { return s.openPositions.Load() }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
