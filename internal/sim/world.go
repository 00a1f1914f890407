// Package sim wires the layers together: it owns the car slots, runs the
// fixed-timestep tick, and routes state between the AI, physics, and race
// packages. The tick order is fixed: drivers decide, physics integrates,
// contacts resolve, then the session observes the results.
package sim

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"apexgp/sim/internal/ai"
	"apexgp/sim/internal/car"
	"apexgp/sim/internal/physics"
	"apexgp/sim/internal/race"
	"apexgp/sim/internal/track"
)

const (
	// gridSpacing is the along-track distance between grid slots.
	gridSpacing = 8.0
	// gridStagger alternates cars left and right of the centerline.
	gridStagger = 2.0
	// pitWindowM is the start-line window where a pit stop is serviced.
	pitWindowM = 6.0
	// pitServiceMaxSpeed is the fastest a car can roll through its box.
	pitServiceMaxSpeed = 30.0
	// nearbyRangeM bounds the traffic snapshot handed to each driver.
	nearbyRangeM = 60.0
)

var (
	// ErrRaceStarted indicates a grid change after the start procedure.
	ErrRaceStarted = errors.New("grid is locked")
	// ErrNoSuchCar indicates an operation against an unknown car id.
	ErrNoSuchCar = errors.New("no such car")
)

// slot binds one car's state to whoever controls it.
type slot struct {
	id     int
	spec   *car.Spec
	state  *physics.CarState
	driver *ai.Driver
	human  bool

	humanInput physics.ControlInput
	reported   bool
}

// World is the single authority over simulation state. All mutation happens
// on the tick goroutine; snapshot accessors are safe from anywhere.
type World struct {
	mu sync.Mutex

	geo     *track.Geometry
	engine  *physics.Engine
	session *race.Session
	weather *race.WeatherModel
	dt      float64

	slots  []*slot
	nextID int

	tick       uint64
	simTime    float64
	current    race.Weather
	started    bool
	onSnapshot func(Snapshot)
}

// NewWorld builds a world over the given track, session, and weather model.
func NewWorld(geo *track.Geometry, session *race.Session, weather *race.WeatherModel, tickRate int) (*World, error) {
	if geo == nil {
		return nil, errors.New("track geometry is required")
	}
	if session == nil {
		return nil, errors.New("race session is required")
	}
	if tickRate <= 0 {
		return nil, fmt.Errorf("tick rate must be positive, got %d", tickRate)
	}
	if weather == nil {
		weather = race.NewWeatherModel(race.WeatherDry, false, 0)
	}
	return &World{
		geo:     geo,
		engine:  physics.NewEngine(geo),
		session: session,
		weather: weather,
		dt:      1.0 / float64(tickRate),
		current: weather.Current(),
	}, nil
}

// OnSnapshot registers a callback invoked with every tick snapshot. Must be
// set before the loop starts; the callback runs on the tick goroutine.
func (w *World) OnSnapshot(fn func(Snapshot)) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onSnapshot = fn
}

// AddAICar places a computer-driven car on the next grid slot.
func (w *World) AddAICar(spec *car.Spec, personality ai.Personality, seed int64) (int, error) {
	return w.addCar(spec, personality, seed, false)
}

// AddHumanCar places a player car on the next grid slot. Its inputs come
// from SetHumanInput instead of an AI driver.
func (w *World) AddHumanCar(spec *car.Spec) (int, error) {
	return w.addCar(spec, ai.Personality{}, 0, true)
}

func (w *World) addCar(spec *car.Spec, personality ai.Personality, seed int64, human bool) (int, error) {
	if w == nil {
		return 0, errors.New("world is nil")
	}
	if spec == nil {
		return 0, errors.New("car spec is required")
	}
	if err := spec.Validate(); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return 0, ErrRaceStarted
	}
	id := w.nextID
	w.nextID++

	//1.- Stagger the grid backwards from the line, alternating sides.
	arc := w.geo.WrapArc(w.geo.Length() - float64(id+1)*gridSpacing)
	lateral := gridStagger
	if id%2 == 1 {
		lateral = -gridStagger
	}
	if err := w.session.AddCar(id, arc); err != nil {
		return 0, err
	}

	s := &slot{
		id:    id,
		spec:  spec,
		state: physics.NewCarState(spec, w.geo, arc, lateral),
		human: human,
	}
	if !human {
		s.driver = ai.NewDriver(personality, w.geo, seed, w.dt)
	}
	w.slots = append(w.slots, s)
	return id, nil
}

// SetCarCount resizes the grid before the race starts. Growing fills the
// tail with preset AI drivers in a shared chassis; shrinking withdraws the
// most recently added cars first.
func (w *World) SetCarCount(n int) error {
	if w == nil {
		return errors.New("world is nil")
	}
	if n < 1 {
		return fmt.Errorf("car count must be positive, got %d", n)
	}
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrRaceStarted
	}
	for len(w.slots) > n {
		last := w.slots[len(w.slots)-1]
		if err := w.session.RemoveCar(last.id); err != nil {
			w.mu.Unlock()
			return err
		}
		w.slots = w.slots[:len(w.slots)-1]
	}
	have := len(w.slots)
	w.mu.Unlock()

	//1.- Additions go through the public path so grid placement stays uniform.
	presets := ai.GridPresets(n)
	for i := have; i < n; i++ {
		personality := presets[i%len(presets)]
		spec := car.DefaultSpec(personality.Name, fmt.Sprintf("Garage %d", i/2+1))
		if _, err := w.AddAICar(spec, personality, int64(i)*31+1); err != nil {
			return err
		}
	}
	return nil
}

// StartRace locks the grid and begins the light sequence.
func (w *World) StartRace() {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	w.session.StartCountdown()
}

// ForceEnd abandons the race, classifying every running car as retired.
func (w *World) ForceEnd() {
	if w == nil {
		return
	}
	w.session.ForceEnd()
}

// SetHumanInput queues the controls for a player car; applied next tick.
func (w *World) SetHumanInput(id int, input physics.ControlInput) error {
	if w == nil {
		return errors.New("world is nil")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.slots {
		if s.id == id {
			if !s.human {
				return fmt.Errorf("%w: car %d is not player controlled", ErrNoSuchCar, id)
			}
			s.humanInput = input
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrNoSuchCar, id)
}

// Tick advances the whole simulation by one fixed step.
func (w *World) Tick() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.session.Advance(w.dt)
	w.current = w.weather.Step(w.dt)
	grip := w.current.Grip()
	wet := w.current.Wet()

	//1.- Freeze the traffic picture before anyone moves so every driver
	// reasons about the same tick.
	arcs := make([]float64, len(w.slots))
	speeds := make([]float64, len(w.slots))
	laterals := make([]float64, len(w.slots))
	retired := make([]bool, len(w.slots))
	for i, s := range w.slots {
		arcs[i] = s.state.Arc
		speeds[i] = s.state.Speed()
		laterals[i] = s.state.Lateral
		retired[i] = s.state.Retired
	}

	//2.- Decision phase: every controller sees the frozen snapshot.
	inputs := make([]physics.ControlInput, len(w.slots))
	for i, s := range w.slots {
		active := w.session.CarRacing(s.id)
		if s.human {
			if active {
				inputs[i] = s.humanInput
			} else {
				inputs[i] = physics.ControlInput{Brake: 1}
			}
			continue
		}
		obs := ai.Observation{
			Self:        s.state,
			Nearby:      w.nearbyLocked(i, arcs, speeds, laterals, retired),
			BlueFlag:    w.session.BlueFlagged(s.id),
			WeatherGrip: grip,
			Wet:         wet,
			RaceActive:  active,
		}
		inputs[i] = s.driver.Decide(obs, w.dt)
	}

	//3.- Integration phase, then contact resolution against walls and cars.
	states := make([]*physics.CarState, len(w.slots))
	for i, s := range w.slots {
		w.engine.Step(s.state, inputs[i], grip, w.dt)
		w.engine.ResolveWallContact(s.state)
		states[i] = s.state
	}
	w.engine.ResolveCarContacts(states)

	//4.- Pit service happens at the line at pit speed.
	for _, s := range w.slots {
		w.serviceLocked(s)
	}

	//5.- Race accounting sees the post-contact positions.
	for _, s := range w.slots {
		if s.state.Retired && !s.reported {
			s.reported = true
			_ = w.session.Retire(s.id, s.state.RetireReason)
			continue
		}
		if !s.state.Retired {
			_ = w.session.Observe(s.id, s.state.Arc)
		}
	}

	w.tick++
	w.simTime += w.dt
	if w.onSnapshot != nil {
		w.onSnapshot(w.snapshotLocked())
	}
}

// nearbyLocked assembles the rival picture for one slot from the frozen
// per-tick arrays.
func (w *World) nearbyLocked(idx int, arcs, speeds, laterals []float64, retired []bool) []ai.NearbyCar {
	length := w.geo.Length()
	var out []ai.NearbyCar
	for j := range w.slots {
		if j == idx {
			continue
		}
		//1.- Signed shortest along-track gap, positive when the rival is ahead.
		gap := math.Mod(arcs[j]-arcs[idx]+length, length)
		if gap > length/2 {
			gap -= length
		}
		if math.Abs(gap) > nearbyRangeM {
			continue
		}
		out = append(out, ai.NearbyCar{
			Gap:     gap,
			Lateral: laterals[j],
			Speed:   speeds[j],
			Retired: retired[j],
		})
	}
	return out
}

// serviceLocked performs an instant pit stop when a committed car rolls
// through the start-line window slowly enough.
func (w *World) serviceLocked(s *slot) {
	if s.human || s.driver == nil || !s.driver.WantsPitService() || s.state.Retired {
		return
	}
	length := w.geo.Length()
	arc := s.state.Arc
	nearLine := arc <= pitWindowM || length-arc <= pitWindowM
	if !nearLine || s.state.Speed() > pitServiceMaxSpeed {
		return
	}
	s.state.Tires.Service(car.CompoundMedium)
	s.state.Damage.Repair()
	s.driver.NotifyPitService()
}

// Session exposes the race session for command surfaces.
func (w *World) Session() *race.Session {
	if w == nil {
		return nil
	}
	return w.session
}

// Dt returns the fixed timestep in seconds.
func (w *World) Dt() float64 {
	if w == nil {
		return 0
	}
	return w.dt
}
