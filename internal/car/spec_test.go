package car

import (
	"errors"
	"math"
	"testing"
)

func TestValidateAcceptsDefaultSpec(t *testing.T) {
	spec := DefaultSpec("Car 1", "Team A")
	if err := spec.Validate(); err != nil {
		t.Fatalf("expected default spec to validate, got %v", err)
	}
}

func TestValidateRejectsBadSpecs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Spec)
		want   error
	}{
		{"zero mass", func(s *Spec) { s.MassKg = 0 }, ErrInvalidMass},
		{"empty power curve", func(s *Spec) { s.Engine.PowerCurve = nil }, ErrEmptyPowerCurve},
		{"idle above redline", func(s *Spec) { s.Engine.IdleRPM = 20000 }, ErrInvalidRPMRange},
		{"no gears", func(s *Spec) { s.GearRatios = nil }, ErrInvalidGearRatios},
		{"negative ratio", func(s *Spec) { s.GearRatios[2] = -1 }, ErrInvalidGearRatios},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := DefaultSpec("Car 1", "Team A")
			tc.mutate(spec)
			if err := spec.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRatioFor(t *testing.T) {
	spec := DefaultSpec("Car 1", "Team A")
	if got := spec.RatioFor(1); math.Abs(got-10.5) > 1e-9 {
		t.Fatalf("expected first gear ratio 10.5, got %v", got)
	}
	if got := spec.RatioFor(-1); math.Abs(got-10.5) > 1e-9 {
		t.Fatalf("expected reverse to reuse first gear ratio, got %v", got)
	}
	if got := spec.RatioFor(0); got != 0 {
		t.Fatalf("expected neutral ratio 0, got %v", got)
	}
	if got := spec.RatioFor(7); got != 0 {
		t.Fatalf("expected out-of-range gear ratio 0, got %v", got)
	}
}

func TestPowerAtInterpolatesAndClamps(t *testing.T) {
	spec := DefaultSpec("Car 1", "Team A")
	if got := spec.PowerAt(1000); got != 180 {
		t.Fatalf("expected low clamp 180, got %v", got)
	}
	if got := spec.PowerAt(20000); got != 470 {
		t.Fatalf("expected high clamp 470, got %v", got)
	}
	//1.- Midpoint of the 7000..11000 segment should land halfway in power.
	if got := spec.PowerAt(9000); math.Abs(got-490) > 1e-9 {
		t.Fatalf("expected interpolated 490 kW, got %v", got)
	}
}

func TestTireSetWearReducesGrip(t *testing.T) {
	set := NewTireSet(CompoundSoft)
	fresh := set.GripMultiplier()
	if math.Abs(fresh-1.0) > 1e-9 {
		t.Fatalf("expected fresh softs at 1.0 grip, got %v", fresh)
	}
	//1.- Ten simulated kilometres of hard cornering must cost grip.
	for i := 0; i < 600; i++ {
		set.Update(70, 3.0, 1.0/60*14.3)
	}
	worn := set.GripMultiplier()
	if worn >= fresh {
		t.Fatalf("expected wear to reduce grip, fresh %v worn %v", fresh, worn)
	}
	if set.AverageWear() <= 0 {
		t.Fatalf("expected accumulated wear, got %v", set.AverageWear())
	}
}

func TestTireSetRearsWearFaster(t *testing.T) {
	set := NewTireSet(CompoundMedium)
	set.Update(80, 2.0, 10)
	wear := set.Wear()
	if wear[2] <= wear[0] || wear[3] <= wear[1] {
		t.Fatalf("expected rears to wear faster than fronts: %v", wear)
	}
}

func TestTireSetServiceResetsWear(t *testing.T) {
	set := NewTireSet(CompoundSoft)
	set.Update(80, 2.0, 10)
	set.Service(CompoundHard)
	if set.Compound() != CompoundHard {
		t.Fatalf("expected hard compound fitted, got %v", set.Compound())
	}
	if set.AverageWear() != 0 {
		t.Fatalf("expected fresh set after service, got wear %v", set.AverageWear())
	}
}

func TestCompoundTradeoffs(t *testing.T) {
	if CompoundSoft.GripMultiplier() <= CompoundMedium.GripMultiplier() {
		t.Fatalf("expected softs to grip harder than mediums")
	}
	if CompoundSoft.DegradationRate() <= CompoundHard.DegradationRate() {
		t.Fatalf("expected softs to degrade faster than hards")
	}
}

func TestDamageImpactPenalizesAero(t *testing.T) {
	damage := NewDamageState()
	if damage.DownforceMultiplier() != 1 {
		t.Fatalf("expected pristine downforce, got %v", damage.DownforceMultiplier())
	}
	damage.ApplyImpact(30)
	if damage.Level(ComponentFrontWing) <= 0 {
		t.Fatalf("expected front wing damage from impact")
	}
	if damage.DownforceMultiplier() >= 1 {
		t.Fatalf("expected downforce penalty, got %v", damage.DownforceMultiplier())
	}
	if damage.GripMultiplier() >= 1 {
		t.Fatalf("expected suspension grip penalty, got %v", damage.GripMultiplier())
	}
}

func TestDamageWearFailsEngineEventually(t *testing.T) {
	damage := NewDamageState()
	//1.- A fragile engine held on the limiter must eventually let go.
	for i := 0; i < 2_000_000 && damage.Level(ComponentEngine) < 1; i++ {
		damage.Wear(1.0, 0.0, 1.0/60)
	}
	component, failed := damage.FailedComponent()
	if !failed || component != ComponentEngine {
		t.Fatalf("expected engine failure, got %v %v", component, failed)
	}
	damage.Repair()
	if _, failed := damage.FailedComponent(); failed {
		t.Fatalf("expected repair to clear failures")
	}
}

func TestDamagePowerMultiplierScalesWithEngineDamage(t *testing.T) {
	damage := NewDamageState()
	damage.Apply(ComponentEngine, 0.5)
	if got := damage.PowerMultiplier(); math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("expected power multiplier 0.75, got %v", got)
	}
}
