package replay

import (
	"encoding/json"

	"apexgp/sim/internal/logging"
	"apexgp/sim/internal/sim"
)

// Recorder derives replay events and frames from the per-tick world
// snapshots. Full frames go out at a reduced cadence; events fire whenever
// something notable changes between snapshots.
type Recorder struct {
	writer *Writer
	log    *logging.Logger
	// frameEvery thins the 60 Hz snapshot stream down to the frame cadence.
	frameEvery uint64

	primed      bool
	lastPhase   string
	lastWeather string
	lastLaps    map[int]int
	lastRetired map[int]bool
}

// NewRecorder wraps a writer. frameEvery is the snapshot decimation factor;
// 12 records five frames per second from a 60 Hz world.
func NewRecorder(writer *Writer, frameEvery uint64, logger *logging.Logger) *Recorder {
	if frameEvery == 0 {
		frameEvery = 12
	}
	if logger == nil {
		logger = logging.L()
	}
	return &Recorder{
		writer:      writer,
		log:         logger,
		frameEvery:  frameEvery,
		lastLaps:    make(map[int]int),
		lastRetired: make(map[int]bool),
	}
}

// Observe ingests one world snapshot. Designed to hang off World.OnSnapshot.
func (r *Recorder) Observe(snap sim.Snapshot) {
	if r == nil || r.writer == nil {
		return
	}
	//1.- Diff against the previous snapshot to surface discrete events.
	if !r.primed || snap.Phase != r.lastPhase {
		r.emit(snap, "phase", map[string]string{"phase": snap.Phase})
		r.lastPhase = snap.Phase
	}
	if !r.primed || snap.Weather != r.lastWeather {
		r.emit(snap, "weather", map[string]string{"weather": snap.Weather})
		r.lastWeather = snap.Weather
	}
	for _, c := range snap.Cars {
		if c.Lap > r.lastLaps[c.ID] {
			r.emit(snap, "lap", map[string]any{"car_id": c.ID, "lap": c.Lap})
			r.lastLaps[c.ID] = c.Lap
		}
		if c.Retired && !r.lastRetired[c.ID] {
			r.emit(snap, "retirement", map[string]any{"car_id": c.ID, "reason": c.RetireReason})
			r.lastRetired[c.ID] = true
		}
	}
	r.primed = true

	//2.- Frames are heavyweight, so only every Nth snapshot is kept.
	if snap.Tick%r.frameEvery != 0 {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		r.log.Warn("replay frame marshal failed", logging.Error(err))
		return
	}
	if err := r.writer.AppendFrame(payload); err != nil {
		r.log.Warn("replay frame write failed", logging.Error(err), logging.Uint64("tick", snap.Tick))
	}
}

// Close finalizes the underlying bundle.
func (r *Recorder) Close() error {
	if r == nil || r.writer == nil {
		return nil
	}
	return r.writer.Close()
}

func (r *Recorder) emit(snap sim.Snapshot, eventType string, payload any) {
	if err := r.writer.AppendEvent(snap.Tick, snap.SimTime, eventType, payload); err != nil {
		r.log.Warn("replay event write failed", logging.Error(err), logging.String("type", eventType))
	}
}
