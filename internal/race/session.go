// Package race owns the session lifecycle: the start procedure, lap
// accounting, flags, and the final classification. It never touches car
// dynamics; the world feeds it per-tick arc observations and it hands back
// race state.
package race

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"apexgp/sim/internal/track"
)

// Phase is the session lifecycle stage.
type Phase int

const (
	PhasePreStart Phase = iota
	PhaseCountdown
	PhaseRacing
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhasePreStart:
		return "pre-start"
	case PhaseCountdown:
		return "countdown"
	case PhaseRacing:
		return "racing"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

const (
	startLights = 5
	// minLapTime rejects line-crossing glitches as impossible laps.
	minLapTime = 1.0

	blueFlagLapDelta = 3

	defaultCountdownStep = 1.0
)

var (
	// ErrUnknownCar indicates an observation for an unregistered car.
	ErrUnknownCar = errors.New("unknown car")
	// ErrDuplicateCar indicates a car id registered twice.
	ErrDuplicateCar = errors.New("car already registered")
	// ErrSessionLocked indicates a grid change after the start procedure began.
	ErrSessionLocked = errors.New("session no longer accepts entries")
	// ErrInvalidLaps indicates a race distance below one lap.
	ErrInvalidLaps = errors.New("race distance must be at least one lap")
)

// Result is one classified row of the final or live standings.
type Result struct {
	CarID    int
	Position int
	Laps     int
	// TotalTime is the race time at the finish, 0 while still running.
	TotalTime float64
	BestLap   float64
	LastLap   float64
	Finished  bool
	Retired   bool
	// RetireReason is empty unless Retired is set.
	RetireReason string
}

type entry struct {
	id int
	// armed is false until the car first crosses the line; that crossing
	// starts lap one instead of completing a lap.
	armed        bool
	lastArc      float64
	laps         int
	lapStart     float64
	bestLap      float64
	lastLap      float64
	finishTime   float64
	finished     bool
	retired      bool
	retireReason string
	// progress is laps plus lap fraction, used for gaps and DNF ordering.
	progress float64
	blueFlag bool
}

// Session tracks one race from grid to flag. Safe for concurrent reads; the
// world advances it from the single tick goroutine.
type Session struct {
	mu            sync.Mutex
	geo           *track.Geometry
	totalLaps     int
	countdownStep float64

	phase          Phase
	elapsed        float64
	countdownStart float64
	raceStart      float64

	entries map[int]*entry
	order   []int
}

// Option tweaks session construction.
type Option func(*Session)

// WithCountdownStep overrides the interval between start lights.
func WithCountdownStep(seconds float64) Option {
	return func(s *Session) {
		if seconds > 0 {
			s.countdownStep = seconds
		}
	}
}

// NewSession builds a session over the given track and race distance.
func NewSession(geo *track.Geometry, laps int, opts ...Option) (*Session, error) {
	if geo == nil {
		return nil, errors.New("track geometry is required")
	}
	if laps < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLaps, laps)
	}
	s := &Session{
		geo:           geo,
		totalLaps:     laps,
		countdownStep: defaultCountdownStep,
		entries:       make(map[int]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AddCar registers a car on the grid. The grid locks at StartCountdown.
func (s *Session) AddCar(id int, startArc float64) error {
	if s == nil {
		return errors.New("session is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhasePreStart {
		return ErrSessionLocked
	}
	if _, exists := s.entries[id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateCar, id)
	}
	//1.- Every car rolls to the line unscored; the first crossing opens the
	// scoring lap no matter where on the circuit the car gridded.
	s.entries[id] = &entry{
		id:      id,
		lastArc: startArc,
	}
	s.order = append(s.order, id)
	return nil
}

// RemoveCar withdraws a car from the grid. Only allowed before the
// countdown; once the lights start the grid is final.
func (s *Session) RemoveCar(id int) error {
	if s == nil {
		return errors.New("session is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhasePreStart {
		return ErrSessionLocked
	}
	if _, exists := s.entries[id]; !exists {
		return fmt.Errorf("%w: %d", ErrUnknownCar, id)
	}
	delete(s.entries, id)
	for i, other := range s.order {
		if other == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// StartCountdown begins the light sequence. A no-op outside pre-start.
func (s *Session) StartCountdown() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhasePreStart {
		return
	}
	s.phase = PhaseCountdown
	s.countdownStart = s.elapsed
}

// Advance moves session time forward and drives phase transitions.
func (s *Session) Advance(dt float64) {
	if s == nil || dt <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed += dt
	if s.phase == PhaseCountdown {
		//1.- Five lights come on one interval apart; the race goes green one
		// interval after the last light.
		if s.elapsed-s.countdownStart >= float64(startLights+1)*s.countdownStep {
			s.phase = PhaseRacing
			s.raceStart = s.elapsed
			for _, e := range s.entries {
				e.lapStart = s.elapsed
			}
		}
	}
	s.updateBlueFlagsLocked()
}

// LightsOn reports how many of the five start lights are lit.
func (s *Session) LightsOn() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseCountdown {
		return 0
	}
	lit := int((s.elapsed - s.countdownStart) / s.countdownStep)
	if lit > startLights {
		lit = startLights
	}
	return lit
}

// Phase returns the lifecycle stage.
func (s *Session) Phase() Phase {
	if s == nil {
		return PhasePreStart
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// RaceActive reports whether cars are free to race.
func (s *Session) RaceActive() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseRacing
}

// RaceTime returns seconds since the lights went out, 0 before that.
func (s *Session) RaceTime() float64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase < PhaseRacing {
		return 0
	}
	return s.elapsed - s.raceStart
}

// Observe records a car's arc position for this tick, detecting lap
// completions through start-line crossings.
func (s *Session) Observe(id int, arc float64) error {
	if s == nil {
		return errors.New("session is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCar, id)
	}
	if e.retired || e.finished {
		return nil
	}
	if s.phase >= PhaseRacing && s.geo.CrossedStartLine(e.lastArc, arc) {
		if !e.armed {
			//1.- First crossing from the grid: the flying lap starts here.
			e.armed = true
			e.lapStart = s.elapsed
			e.lastArc = arc
			if length := s.geo.Length(); length > 0 {
				e.progress = arc / length
			}
			return nil
		}
		lapTime := s.elapsed - e.lapStart
		//2.- Sub-second laps are sensor noise around the line, not laps.
		if lapTime >= minLapTime {
			e.laps++
			e.lastLap = lapTime
			if e.bestLap == 0 || lapTime < e.bestLap {
				e.bestLap = lapTime
			}
			e.lapStart = s.elapsed
			//3.- Covering the distance finishes the car; once the flag is
			// out every car finishes on the lap it is running.
			if e.laps >= s.totalLaps || s.phase == PhaseFinished {
				e.finished = true
				e.finishTime = s.elapsed - s.raceStart
			}
		}
	}
	e.lastArc = arc
	if length := s.geo.Length(); length > 0 {
		e.progress = float64(e.laps) + arc/length
		if !e.armed {
			//4.- Grid cars short of the line rank behind everyone on a lap.
			e.progress = arc/length - 1
		}
	}
	s.maybeFinishLocked()
	return nil
}

// Retire pulls a car out of the race with the given reason.
func (s *Session) Retire(id int, reason string) error {
	if s == nil {
		return errors.New("session is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCar, id)
	}
	if e.retired || e.finished {
		return nil
	}
	e.retired = true
	e.retireReason = reason
	s.maybeFinishLocked()
	return nil
}

// CarDone reports whether the car has finished or retired.
func (s *Session) CarDone(id int) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return ok && (e.finished || e.retired)
}

// CarRacing reports whether the car should still be driving: lights out and
// neither finished nor retired. Cars behind the leader keep racing after the
// flag until they complete the lap they are on.
func (s *Session) CarRacing(id int) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase < PhaseRacing {
		return false
	}
	e, ok := s.entries[id]
	return ok && !e.finished && !e.retired
}

// BlueFlagged reports whether the car must yield to a lapping rival.
func (s *Session) BlueFlagged(id int) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return ok && e.blueFlag
}

// ForceEnd abandons the session where it stands. Cars still on track are
// classified as retirements.
func (s *Session) ForceEnd() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseFinished
	for _, e := range s.entries {
		if e.finished || e.retired {
			continue
		}
		e.retired = true
		e.retireReason = "race abandoned"
	}
}

// Classification returns the standings: runners by laps and time, retired
// cars at the back ordered by how far they got.
func (s *Session) Classification() []Result {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]Result, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		results = append(results, Result{
			CarID:        e.id,
			Laps:         e.laps,
			TotalTime:    e.finishTime,
			BestLap:      e.bestLap,
			LastLap:      e.lastLap,
			Finished:     e.finished,
			Retired:      e.retired,
			RetireReason: e.retireReason,
		})
	}
	progress := func(id int) float64 { return s.entries[id].progress }
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		//1.- Retirements classify behind every runner, best progress first.
		if a.Retired != b.Retired {
			return !a.Retired
		}
		if a.Retired {
			return progress(a.CarID) > progress(b.CarID)
		}
		if a.Laps != b.Laps {
			return a.Laps > b.Laps
		}
		if a.Finished != b.Finished {
			return a.Finished
		}
		if a.Finished {
			return a.TotalTime < b.TotalTime
		}
		return progress(a.CarID) > progress(b.CarID)
	})
	for i := range results {
		results[i].Position = i + 1
	}
	return results
}

// Leader returns the car currently first in the classification.
func (s *Session) Leader() (int, bool) {
	standings := s.Classification()
	if len(standings) == 0 {
		return 0, false
	}
	return standings[0].CarID, true
}

// maybeFinishLocked drops the flag once the leader covers the distance, or
// when every car has retired.
func (s *Session) maybeFinishLocked() {
	if s.phase != PhaseRacing || len(s.entries) == 0 {
		return
	}
	running := 0
	for _, e := range s.entries {
		//1.- The first car over the distance ends the race for everyone;
		// the rest finish the lap they are on.
		if e.finished {
			s.phase = PhaseFinished
			return
		}
		if !e.retired {
			running++
		}
	}
	if running == 0 {
		s.phase = PhaseFinished
	}
}

// updateBlueFlagsLocked marks cars multiple laps down from a running rival.
// The flag is advisory race state; how urgently to yield is the driver's
// problem, not the session's.
func (s *Session) updateBlueFlagsLocked() {
	for _, slow := range s.entries {
		slow.blueFlag = false
		if slow.retired || slow.finished {
			continue
		}
		for _, fast := range s.entries {
			if fast == slow || fast.retired || fast.finished {
				continue
			}
			if fast.laps-slow.laps >= blueFlagLapDelta {
				slow.blueFlag = true
				break
			}
		}
	}
}
