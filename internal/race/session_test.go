package race

import (
	"errors"
	"math"
	"testing"

	"apexgp/sim/internal/track"
)

func squareTrack(t *testing.T) *track.Geometry {
	t.Helper()
	segments := []track.Segment{
		{Center: track.Point{X: 0, Z: 0}, Width: 10, Surface: track.SurfaceTarmac},
		{Center: track.Point{X: 100, Z: 0}, Width: 10, Surface: track.SurfaceTarmac},
		{Center: track.Point{X: 100, Z: 100}, Width: 10, Surface: track.SurfaceTarmac},
		{Center: track.Point{X: 0, Z: 100}, Width: 10, Surface: track.SurfaceTarmac},
	}
	geo, err := track.New("square", segments)
	if err != nil {
		t.Fatalf("failed to build square track: %v", err)
	}
	return geo
}

func startedSession(t *testing.T, geo *track.Geometry, laps int, carIDs ...int) *Session {
	t.Helper()
	s, err := NewSession(geo, laps)
	if err != nil {
		t.Fatalf("failed to build session: %v", err)
	}
	for _, id := range carIDs {
		if err := s.AddCar(id, 0); err != nil {
			t.Fatalf("failed to add car %d: %v", id, err)
		}
	}
	s.StartCountdown()
	//1.- Six intervals of the default one-second step turn the lights green.
	s.Advance(6.0)
	if !s.RaceActive() {
		t.Fatalf("expected racing after the countdown, phase %v", s.Phase())
	}
	//2.- Roll every car through its opening crossing so later tours score.
	for _, id := range carIDs {
		if err := s.Observe(id, 395); err != nil {
			t.Fatalf("observe: %v", err)
		}
		if err := s.Observe(id, 3); err != nil {
			t.Fatalf("observe: %v", err)
		}
	}
	return s
}

// lap walks a car across the start line with the given time in between.
func lap(t *testing.T, s *Session, id int, seconds float64) {
	t.Helper()
	s.Advance(seconds - 1)
	if err := s.Observe(id, 395); err != nil {
		t.Fatalf("observe: %v", err)
	}
	s.Advance(1)
	if err := s.Observe(id, 3); err != nil {
		t.Fatalf("observe: %v", err)
	}
}

func TestNewSessionValidation(t *testing.T) {
	if _, err := NewSession(nil, 3); err == nil {
		t.Fatalf("expected error for missing geometry")
	}
	if _, err := NewSession(squareTrack(t), 0); !errors.Is(err, ErrInvalidLaps) {
		t.Fatalf("expected ErrInvalidLaps, got %v", err)
	}
}

func TestStartLightSequence(t *testing.T) {
	geo := squareTrack(t)
	s, err := NewSession(geo, 3, WithCountdownStep(0.5))
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if err := s.AddCar(1, 0); err != nil {
		t.Fatalf("add car: %v", err)
	}
	s.StartCountdown()
	if s.Phase() != PhaseCountdown {
		t.Fatalf("expected countdown, got %v", s.Phase())
	}

	s.Advance(1.6)
	if got := s.LightsOn(); got != 3 {
		t.Fatalf("expected 3 lights at 1.6s of 0.5s steps, got %d", got)
	}
	if s.RaceActive() {
		t.Fatalf("race went green with lights still on")
	}
	//1.- Green comes one step after the fifth light: 6 steps of 0.5s.
	s.Advance(1.5)
	if !s.RaceActive() {
		t.Fatalf("expected green at 3.1s, phase %v", s.Phase())
	}
	if s.LightsOn() != 0 {
		t.Fatalf("lights should be out when racing")
	}
}

func TestGridLocksAtCountdown(t *testing.T) {
	geo := squareTrack(t)
	s, err := NewSession(geo, 3)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if err := s.AddCar(1, 0); err != nil {
		t.Fatalf("add car: %v", err)
	}
	if err := s.AddCar(1, 0); !errors.Is(err, ErrDuplicateCar) {
		t.Fatalf("expected ErrDuplicateCar, got %v", err)
	}
	s.StartCountdown()
	if err := s.AddCar(2, 0); !errors.Is(err, ErrSessionLocked) {
		t.Fatalf("expected ErrSessionLocked, got %v", err)
	}
}

func TestRemoveCarBeforeCountdown(t *testing.T) {
	geo := squareTrack(t)
	s, err := NewSession(geo, 3)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if err := s.AddCar(1, 0); err != nil {
		t.Fatalf("add car: %v", err)
	}
	if err := s.RemoveCar(2); !errors.Is(err, ErrUnknownCar) {
		t.Fatalf("expected ErrUnknownCar, got %v", err)
	}
	if err := s.RemoveCar(1); err != nil {
		t.Fatalf("remove car: %v", err)
	}
	if err := s.AddCar(1, 0); err != nil {
		t.Fatalf("expected the slot to be reusable: %v", err)
	}
	s.StartCountdown()
	if err := s.RemoveCar(1); !errors.Is(err, ErrSessionLocked) {
		t.Fatalf("expected ErrSessionLocked, got %v", err)
	}
}

func TestLapDetectionAndBestLap(t *testing.T) {
	geo := squareTrack(t)
	s := startedSession(t, geo, 5, 1)

	lap(t, s, 1, 80)
	lap(t, s, 1, 70)
	lap(t, s, 1, 75)

	standings := s.Classification()
	if standings[0].Laps != 3 {
		t.Fatalf("expected 3 laps, got %d", standings[0].Laps)
	}
	if math.Abs(standings[0].BestLap-70) > 1e-9 {
		t.Fatalf("expected best lap 70s, got %v", standings[0].BestLap)
	}
	if math.Abs(standings[0].LastLap-75) > 1e-9 {
		t.Fatalf("expected last lap 75s, got %v", standings[0].LastLap)
	}
}

func TestImpossiblyShortLapRejected(t *testing.T) {
	geo := squareTrack(t)
	s := startedSession(t, geo, 5, 1)

	//1.- A crossing half a second after the start cannot be a real lap.
	if err := s.Observe(1, 395); err != nil {
		t.Fatalf("observe: %v", err)
	}
	s.Advance(0.5)
	if err := s.Observe(1, 3); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if got := s.Classification()[0].Laps; got != 0 {
		t.Fatalf("expected the glitch lap rejected, got %d laps", got)
	}
}

func TestObserveUnknownCar(t *testing.T) {
	geo := squareTrack(t)
	s := startedSession(t, geo, 3, 1)
	if err := s.Observe(99, 10); !errors.Is(err, ErrUnknownCar) {
		t.Fatalf("expected ErrUnknownCar, got %v", err)
	}
}

func TestClassificationOrdersByLapsThenTime(t *testing.T) {
	geo := squareTrack(t)
	s := startedSession(t, geo, 2, 1, 2, 3)

	//1.- Car 1 wins both laps; car 2 finishes behind; car 3 parks early.
	if err := s.Retire(3, "gearbox failure"); err != nil {
		t.Fatalf("retire: %v", err)
	}
	lap(t, s, 1, 70)
	lap(t, s, 2, 12)
	lap(t, s, 1, 70)
	lap(t, s, 2, 15)

	standings := s.Classification()
	if standings[0].CarID != 1 || !standings[0].Finished {
		t.Fatalf("expected car 1 to win: %+v", standings)
	}
	if standings[1].CarID != 2 || !standings[1].Finished {
		t.Fatalf("expected car 2 second: %+v", standings)
	}
	if standings[1].TotalTime <= standings[0].TotalTime {
		t.Fatalf("winner should have the lower total time: %+v", standings)
	}
	last := standings[2]
	if last.CarID != 3 || !last.Retired || last.RetireReason != "gearbox failure" {
		t.Fatalf("expected car 3 classified last as a DNF: %+v", last)
	}
	for i, r := range standings {
		if r.Position != i+1 {
			t.Fatalf("positions not contiguous: %+v", standings)
		}
	}
	if s.Phase() != PhaseFinished {
		t.Fatalf("expected the session to finish with all cars done, phase %v", s.Phase())
	}
}

func TestLeader(t *testing.T) {
	geo := squareTrack(t)
	s := startedSession(t, geo, 5, 1, 2)
	lap(t, s, 1, 70)
	if id, ok := s.Leader(); !ok || id != 1 {
		t.Fatalf("expected car 1 leading, got %d %v", id, ok)
	}
}

func TestBlueFlagForLappedCar(t *testing.T) {
	geo := squareTrack(t)
	s := startedSession(t, geo, 10, 1, 2)

	//1.- Two laps in hand is still racing; the flag waits for the third.
	lap(t, s, 1, 20)
	lap(t, s, 1, 20)
	s.Advance(1.0 / 60)
	if s.BlueFlagged(2) {
		t.Fatalf("two laps down must not draw blue flags")
	}

	//2.- Three laps down flags the backmarker wherever the leader sits.
	lap(t, s, 1, 20)
	if err := s.Observe(1, 200); err != nil {
		t.Fatalf("observe: %v", err)
	}
	s.Advance(1.0 / 60)
	if !s.BlueFlagged(2) {
		t.Fatalf("expected the backmarker to see blue flags")
	}
	if s.BlueFlagged(1) {
		t.Fatalf("the lapping car must not see blue flags")
	}

	//3.- The flag withdraws once the backmarker claws a lap back.
	lap(t, s, 2, 70)
	s.Advance(1.0 / 60)
	if s.BlueFlagged(2) {
		t.Fatalf("expected the flag withdrawn at two laps down")
	}
}

func TestLeaderFinishEndsRaceForTheField(t *testing.T) {
	geo := squareTrack(t)
	s := startedSession(t, geo, 2, 1, 2)

	//1.- Car 1 covers the distance while car 2 is still on its first lap.
	lap(t, s, 1, 30)
	lap(t, s, 1, 30)
	if s.Phase() != PhaseFinished {
		t.Fatalf("expected the flag once the leader finished, phase %v", s.Phase())
	}
	standings := s.Classification()
	if standings[0].CarID != 1 || !standings[0].Finished {
		t.Fatalf("expected car 1 classified as the winner: %+v", standings)
	}

	if !s.CarDone(1) || s.CarRacing(1) {
		t.Fatalf("the winner must be done driving")
	}
	if s.CarDone(2) || !s.CarRacing(2) {
		t.Fatalf("the trailing car still has a lap to run")
	}

	//2.- The trailing car finishes the lap it is on instead of racing forever.
	lap(t, s, 2, 80)
	standings = s.Classification()
	if standings[1].CarID != 2 || !standings[1].Finished {
		t.Fatalf("expected car 2 flagged at the line: %+v", standings)
	}
	if standings[1].Laps != 1 {
		t.Fatalf("expected car 2 classified on one lap, got %d", standings[1].Laps)
	}
}

func TestForceEnd(t *testing.T) {
	geo := squareTrack(t)
	s := startedSession(t, geo, 5, 1)
	s.ForceEnd()
	if s.Phase() != PhaseFinished {
		t.Fatalf("expected finished, got %v", s.Phase())
	}
	if s.RaceActive() {
		t.Fatalf("race must not be active after a forced end")
	}
}

func TestForceEndRetiresRunningCars(t *testing.T) {
	geo := squareTrack(t)
	s := startedSession(t, geo, 5, 1, 2)
	lap(t, s, 1, 40)
	s.ForceEnd()

	//1.- Nobody covered the distance, so everyone goes down as a DNF.
	for _, row := range s.Classification() {
		if row.Finished {
			t.Fatalf("no car covered the distance: %+v", row)
		}
		if !row.Retired || row.RetireReason != "race abandoned" {
			t.Fatalf("expected car %d retired by the abandonment: %+v", row.CarID, row)
		}
	}
}

func TestRetiredCarIgnoresObservations(t *testing.T) {
	geo := squareTrack(t)
	s := startedSession(t, geo, 5, 1, 2)
	if err := s.Retire(1, "engine failure"); err != nil {
		t.Fatalf("retire: %v", err)
	}
	lap(t, s, 1, 70)
	if got := s.Classification(); got[len(got)-1].Laps != 0 {
		t.Fatalf("retired car must not gain laps: %+v", got)
	}
}

func TestGridCarFirstCrossingOpensLapOne(t *testing.T) {
	geo := squareTrack(t)
	s, err := NewSession(geo, 5)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	//1.- Gridded 10 metres short of the line.
	if err := s.AddCar(1, 390); err != nil {
		t.Fatalf("add car: %v", err)
	}
	s.StartCountdown()
	s.Advance(6.0)

	s.Advance(2)
	if err := s.Observe(1, 395); err != nil {
		t.Fatalf("observe: %v", err)
	}
	s.Advance(2)
	if err := s.Observe(1, 3); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if got := s.Classification()[0].Laps; got != 0 {
		t.Fatalf("reaching the line must not score a lap, got %d", got)
	}
	//2.- The next full tour is lap one.
	lap(t, s, 1, 70)
	standings := s.Classification()
	if standings[0].Laps != 1 {
		t.Fatalf("expected lap one complete, got %d", standings[0].Laps)
	}
	if math.Abs(standings[0].BestLap-70) > 1e-9 {
		t.Fatalf("expected a 70s lap, got %v", standings[0].BestLap)
	}
}

func TestMidfieldGridCarArmsOnFirstCrossing(t *testing.T) {
	geo := squareTrack(t)
	s, err := NewSession(geo, 5)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	//1.- Gridded a quarter of the way around the circuit.
	if err := s.AddCar(1, 100); err != nil {
		t.Fatalf("add car: %v", err)
	}
	s.StartCountdown()
	s.Advance(6.0)

	s.Advance(20)
	if err := s.Observe(1, 395); err != nil {
		t.Fatalf("observe: %v", err)
	}
	s.Advance(2)
	if err := s.Observe(1, 3); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if got := s.Classification()[0].Laps; got != 0 {
		t.Fatalf("the run to the line must not count as a lap, got %d", got)
	}
	//2.- Only the next full tour scores.
	lap(t, s, 1, 70)
	if got := s.Classification()[0].Laps; got != 1 {
		t.Fatalf("expected lap one after a full tour, got %d", got)
	}
}
