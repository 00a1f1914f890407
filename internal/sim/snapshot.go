package sim

import (
	"apexgp/sim/internal/race"
)

// CarSnapshot is the read-only per-car view published every tick.
type CarSnapshot struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Team     string  `json:"team"`
	X        float64 `json:"x"`
	Z        float64 `json:"z"`
	YawRad   float64 `json:"yaw_rad"`
	SpeedMps float64 `json:"speed_mps"`
	Gear     int     `json:"gear"`
	RPM      float64 `json:"rpm"`
	Arc      float64 `json:"arc"`
	Lateral  float64 `json:"lateral"`
	Lap      int     `json:"lap"`
	Surface  string  `json:"surface"`
	TireWear float64 `json:"tire_wear"`
	TireTemp float64 `json:"tire_temp_c"`
	Behavior string  `json:"behavior,omitempty"`
	BlueFlag bool    `json:"blue_flag,omitempty"`
	Retired  bool    `json:"retired,omitempty"`
	// RetireReason is only set for retired cars.
	RetireReason string `json:"retire_reason,omitempty"`
}

// Snapshot is one complete frame of world state.
type Snapshot struct {
	Tick      uint64        `json:"tick"`
	SimTime   float64       `json:"sim_time"`
	Phase     string        `json:"phase"`
	LightsOn  int           `json:"lights_on,omitempty"`
	Weather   string        `json:"weather"`
	Cars      []CarSnapshot `json:"cars"`
	Standings []race.Result `json:"standings,omitempty"`
}

// Snapshot returns the current frame; safe to call from any goroutine.
func (w *World) Snapshot() Snapshot {
	if w == nil {
		return Snapshot{}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *World) snapshotLocked() Snapshot {
	snap := Snapshot{
		Tick:     w.tick,
		SimTime:  w.simTime,
		Phase:    w.session.Phase().String(),
		LightsOn: w.session.LightsOn(),
		Weather:  w.current.String(),
		Cars:     make([]CarSnapshot, 0, len(w.slots)),
	}
	for _, s := range w.slots {
		state := s.state
		cs := CarSnapshot{
			ID:           s.id,
			Name:         s.spec.Name,
			Team:         s.spec.Team,
			X:            state.Position.X,
			Z:            state.Position.Z,
			YawRad:       state.Orientation.Yaw(),
			SpeedMps:     state.Speed(),
			Gear:         state.Gear,
			RPM:          state.RPM,
			Arc:          state.Arc,
			Lateral:      state.Lateral,
			Surface:      state.Surface.String(),
			TireWear:     state.Tires.AverageWear(),
			TireTemp:     state.AverageTireTempC(),
			BlueFlag:     w.session.BlueFlagged(s.id),
			Retired:      state.Retired,
			RetireReason: state.RetireReason,
		}
		if s.driver != nil {
			cs.Behavior = s.driver.Behavior().String()
		}
		snap.Cars = append(snap.Cars, cs)
	}
	//1.- Lap counts come from the session, which owns the crossings.
	standings := w.session.Classification()
	snap.Standings = standings
	for _, r := range standings {
		for i := range snap.Cars {
			if snap.Cars[i].ID == r.CarID {
				snap.Cars[i].Lap = r.Laps
			}
		}
	}
	return snap
}
