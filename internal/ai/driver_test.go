package ai

import (
	"math"
	"testing"

	"apexgp/sim/internal/car"
	"apexgp/sim/internal/physics"
	"apexgp/sim/internal/track"
)

const testDt = 1.0 / 60

func aiTrack(t *testing.T) *track.Geometry {
	t.Helper()
	geo, err := track.Circle("ai circuit", 400, 12, 256)
	if err != nil {
		t.Fatalf("failed to build test track: %v", err)
	}
	return geo
}

func instantDriver(geo *track.Geometry, aggression float64) *Driver {
	p := Personality{
		Name: "test", Skill: 0.9, Aggression: aggression, Consistency: 1,
		WetSkill: 0.9, ReactionTime: 0,
	}
	return NewDriver(p, geo, 42, testDt)
}

func carAt(geo *track.Geometry, arc, lateral float64) *physics.CarState {
	return physics.NewCarState(car.DefaultSpec("Car 1", "Team A"), geo, arc, lateral)
}

func TestPursuitSteeringPullsTowardLine(t *testing.T) {
	geo := aiTrack(t)
	offsetLeft := carAt(geo, 0, 3)
	offsetRight := carAt(geo, 0, -3)
	centered := carAt(geo, 0, 0)

	if got := pursuitSteering(geo, offsetLeft, 0); got <= 0 {
		t.Fatalf("expected right steer back to the line, got %v", got)
	}
	if got := pursuitSteering(geo, offsetRight, 0); got >= 0 {
		t.Fatalf("expected left steer back to the line, got %v", got)
	}
	//1.- On the line the circle only needs its gentle constant curvature.
	if got := math.Abs(pursuitSteering(geo, centered, 0)); got > 0.2 {
		t.Fatalf("expected near-neutral steering on the line, got %v", got)
	}
}

func TestSpeedControllerOutputBounded(t *testing.T) {
	var ctrl speedController
	//1.- A constant huge error must not wind the integral term up forever.
	out := 0.0
	for i := 0; i < 10000; i++ {
		out = ctrl.update(100, 0, testDt)
	}
	if out > pidKp*100+pidKi*pidIntegralLimit+0.01 {
		t.Fatalf("integral wind-up leaked into the output: %v", out)
	}
	if ctrl.update(0, 100, testDt) >= 0 {
		t.Fatalf("expected braking output when over the target")
	}
}

func TestCornerSpeedLimitScalesWithRadius(t *testing.T) {
	tight, err := track.Circle("tight", 80, 12, 128)
	if err != nil {
		t.Fatalf("tight track: %v", err)
	}
	open, err := track.Circle("open", 400, 12, 256)
	if err != nil {
		t.Fatalf("open track: %v", err)
	}
	tightLimit := cornerSpeedLimit(tight, 0, 1.0, 1.0)
	openLimit := cornerSpeedLimit(open, 0, 1.0, 1.0)
	if tightLimit >= openLimit {
		t.Fatalf("expected tighter corners to be slower: %v vs %v", tightLimit, openLimit)
	}
	//1.- Less grip has to lower the planned speed.
	wetLimit := cornerSpeedLimit(open, 0, 0.5, 1.0)
	if wetLimit >= openLimit {
		t.Fatalf("expected wet limit below dry: %v vs %v", wetLimit, openLimit)
	}
}

func TestDriverHoldsBrakesBeforeStart(t *testing.T) {
	geo := aiTrack(t)
	driver := instantDriver(geo, 0.5)
	input := driver.Decide(Observation{Self: carAt(geo, 0, 0), WeatherGrip: 1}, testDt)
	if input.Brake != 1 || input.Throttle != 0 {
		t.Fatalf("expected full brakes on the grid, got %+v", input)
	}
}

func TestDriverEntersOvertaking(t *testing.T) {
	geo := aiTrack(t)
	driver := instantDriver(geo, 1.0)
	state := carAt(geo, 0, 0)
	state.Velocity = state.Orientation.Forward().Scale(40)

	obs := Observation{
		Self:        state,
		Nearby:      []NearbyCar{{Gap: 10, Lateral: 1.5, Speed: 30}},
		WeatherGrip: 1,
		RaceActive:  true,
	}
	driver.Decide(obs, testDt)
	if driver.Behavior() != BehaviorOvertaking {
		t.Fatalf("expected overtaking, got %v", driver.Behavior())
	}
	//1.- The goal line must move to the free side of the car ahead.
	if offset := driver.lineOffset(obs); offset >= 0 {
		t.Fatalf("expected offset opposite the rival, got %v", offset)
	}
}

func TestDriverEntersDefending(t *testing.T) {
	geo := aiTrack(t)
	driver := instantDriver(geo, 1.0)
	state := carAt(geo, 100, 0)
	state.Velocity = state.Orientation.Forward().Scale(40)

	obs := Observation{
		Self:        state,
		Nearby:      []NearbyCar{{Gap: -8, Lateral: -1.0, Speed: 45}},
		WeatherGrip: 1,
		RaceActive:  true,
	}
	driver.Decide(obs, testDt)
	if driver.Behavior() != BehaviorDefending {
		t.Fatalf("expected defending, got %v", driver.Behavior())
	}
	if offset := driver.lineOffset(obs); offset >= 0 {
		t.Fatalf("expected to cover the attacking side, got %v", offset)
	}
}

func TestDriverOvertakingEndsWhenRivalClears(t *testing.T) {
	geo := aiTrack(t)
	driver := instantDriver(geo, 1.0)
	state := carAt(geo, 0, 0)
	state.Velocity = state.Orientation.Forward().Scale(40)

	obs := Observation{
		Self:        state,
		Nearby:      []NearbyCar{{Gap: 10, Lateral: 0, Speed: 39}},
		WeatherGrip: 1,
		RaceActive:  true,
	}
	driver.Decide(obs, testDt)
	if driver.Behavior() != BehaviorOvertaking {
		t.Fatalf("expected overtaking, got %v", driver.Behavior())
	}
	//1.- Once the rival is out of range the attack is over.
	obs.Nearby = []NearbyCar{{Gap: 30, Lateral: 0, Speed: 41}}
	driver.Decide(obs, testDt)
	if driver.Behavior() != BehaviorRacing {
		t.Fatalf("expected racing after the rival cleared, got %v", driver.Behavior())
	}
}

func TestBlueFlaggedDriverYieldsToCloseRival(t *testing.T) {
	geo := aiTrack(t)
	driver := instantDriver(geo, 0.5)
	state := carAt(geo, 0, 0)
	state.Velocity = state.Orientation.Forward().Scale(40)

	obs := Observation{
		Self:        state,
		Nearby:      []NearbyCar{{Gap: -20, Lateral: 0, Speed: 55}},
		BlueFlag:    true,
		WeatherGrip: 1,
		RaceActive:  true,
	}
	//1.- With the lapping car filling the mirrors the driver moves off line.
	if offset := driver.lineOffset(obs); offset != passOffset {
		t.Fatalf("expected the yield offset, got %v", offset)
	}
	//2.- The lowered target turns cruising throttle into a lift.
	clear := obs
	clear.BlueFlag = false
	flagged := driver.Decide(obs, testDt)
	unflagged := instantDriver(geo, 0.5).Decide(clear, testDt)
	if flagged.Brake <= 0 || flagged.Throttle > 0 {
		t.Fatalf("expected a lift under the flag, got %+v", flagged)
	}
	if unflagged.Throttle <= 0 {
		t.Fatalf("expected throttle without the flag, got %+v", unflagged)
	}
}

func TestBlueFlaggedDriverIgnoresDistantLeader(t *testing.T) {
	geo := aiTrack(t)
	driver := instantDriver(geo, 0.5)
	state := carAt(geo, 0, 0)
	state.Velocity = state.Orientation.Forward().Scale(40)

	//1.- Flagged with the leader well out of range there is nothing to do yet.
	obs := Observation{
		Self:        state,
		Nearby:      []NearbyCar{{Gap: -150, Lateral: 0, Speed: 55}},
		BlueFlag:    true,
		WeatherGrip: 1,
		RaceActive:  true,
	}
	if offset := driver.lineOffset(obs); offset != 0 {
		t.Fatalf("expected the driver to hold its line, got %v", offset)
	}
	obs.Nearby = nil
	if offset := driver.lineOffset(obs); offset != 0 {
		t.Fatalf("expected no yield with nobody behind, got %v", offset)
	}
}

func TestDriverRecoversOffTrack(t *testing.T) {
	geo := aiTrack(t)
	driver := instantDriver(geo, 0.5)
	state := carAt(geo, 0, 10)
	state.Surface = track.SurfaceGravel

	driver.Decide(Observation{Self: state, WeatherGrip: 1, RaceActive: true}, testDt)
	if driver.Behavior() != BehaviorRecovering {
		t.Fatalf("expected recovering, got %v", driver.Behavior())
	}
}

func TestDriverPitsOnWornTires(t *testing.T) {
	geo := aiTrack(t)
	driver := instantDriver(geo, 0.5)
	state := carAt(geo, 0, 0)
	state.Velocity = state.Orientation.Forward().Scale(40)
	//1.- Run the tires past the stop threshold.
	for state.Tires.AverageWear() <= pitWearThreshold {
		state.Tires.Update(80, 3, 10)
	}

	driver.Decide(Observation{Self: state, WeatherGrip: 1, RaceActive: true}, testDt)
	if !driver.WantsPitService() {
		t.Fatalf("expected a pit call on worn tires, got %v", driver.Behavior())
	}
	driver.NotifyPitService()
	if driver.Behavior() != BehaviorRacing {
		t.Fatalf("expected racing after service, got %v", driver.Behavior())
	}
}

func TestDriverReactionDelay(t *testing.T) {
	geo := aiTrack(t)
	p := Personality{
		Name: "slowhands", Skill: 0.9, Aggression: 0.5, Consistency: 1,
		WetSkill: 0.9, ReactionTime: 0.1,
	}
	driver := NewDriver(p, geo, 7, testDt)
	state := carAt(geo, 0, 0)
	obs := Observation{Self: state, WeatherGrip: 1, RaceActive: true}

	//1.- Six ticks of 1/60s cover the 0.1s reaction time.
	for i := 0; i < 6; i++ {
		if input := driver.Decide(obs, testDt); input != (physics.ControlInput{}) {
			t.Fatalf("expected empty input during the reaction window, got %+v at tick %d", input, i)
		}
	}
	if input := driver.Decide(obs, testDt); input.Throttle <= 0 {
		t.Fatalf("expected throttle once the delay elapsed, got %+v", input)
	}
}

func TestDriverEmptyNearbyStaysRacing(t *testing.T) {
	geo := aiTrack(t)
	driver := instantDriver(geo, 1.0)
	state := carAt(geo, 0, 0)
	state.Velocity = state.Orientation.Forward().Scale(30)

	input := driver.Decide(Observation{Self: state, WeatherGrip: 1, RaceActive: true}, testDt)
	if driver.Behavior() != BehaviorRacing {
		t.Fatalf("expected racing with a clear track, got %v", driver.Behavior())
	}
	if math.IsNaN(input.Steering) || math.Abs(input.Steering) > 1 {
		t.Fatalf("steering out of range: %v", input.Steering)
	}
}

func TestGridPresetsSpread(t *testing.T) {
	presets := GridPresets(8)
	if len(presets) != 8 {
		t.Fatalf("expected 8 presets, got %d", len(presets))
	}
	if presets[0].Name != "ace" {
		t.Fatalf("expected the ace on pole, got %q", presets[0].Name)
	}
	if presets[7].Name != "midfielder" {
		t.Fatalf("expected midfielder filler, got %q", presets[7].Name)
	}
	if GridPresets(0) != nil {
		t.Fatalf("expected nil for an empty grid")
	}
}
