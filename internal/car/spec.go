// Package car holds the static car data supplied by the external car-data
// loader: performance specs, tire compounds, and the component reliability
// model. Nothing in this package mutates a Spec after construction.
package car

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMass indicates a non-positive car mass.
	ErrInvalidMass = errors.New("car mass must be positive")
	// ErrEmptyPowerCurve indicates the engine has no sampled power curve.
	ErrEmptyPowerCurve = errors.New("engine power curve must not be empty")
	// ErrInvalidGearRatios indicates a missing or non-positive gear ratio.
	ErrInvalidGearRatios = errors.New("gear ratios must be positive")
	// ErrInvalidRPMRange indicates idle and redline RPM are inconsistent.
	ErrInvalidRPMRange = errors.New("idle RPM must be below redline RPM")
)

// PowerPoint is one sample of the engine power curve: output in kW at an RPM.
type PowerPoint struct {
	RPM float64
	KW  float64
}

// EngineSpec describes the engine performance envelope.
type EngineSpec struct {
	// PowerCurve samples must be ordered by ascending RPM.
	PowerCurve []PowerPoint
	IdleRPM    float64
	RedlineRPM float64
}

// AeroSpec holds the aerodynamic coefficients used by the force model.
type AeroSpec struct {
	// DragCoefficient scales the quadratic drag force.
	DragCoefficient float64
	// DownforceCoefficient scales the quadratic downforce.
	DownforceCoefficient float64
}

// Spec captures the static performance characteristics of one car. Supplied
// by the external car-data loader before the session starts.
type Spec struct {
	Name   string
	Team   string
	MassKg float64
	Engine EngineSpec
	Aero   AeroSpec
	// GearRatios holds forward gear ratios, index 0 = first gear.
	GearRatios []float64
	// FinalDrive multiplies every gear ratio on the way to the wheels.
	FinalDrive float64
	// WheelRadiusM converts wheel torque into tractive force.
	WheelRadiusM float64
	// ReliabilityRating scales component wear rates, 0..1 where 1 is bulletproof.
	ReliabilityRating float64
}

// Validate rejects specs the physics engine cannot safely simulate. Called at
// session setup so bad car data blocks the race from starting.
func (s *Spec) Validate() error {
	if s == nil {
		return errors.New("car spec is nil")
	}
	if s.MassKg <= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidMass, s.Name)
	}
	if len(s.Engine.PowerCurve) == 0 {
		return fmt.Errorf("%w: %q", ErrEmptyPowerCurve, s.Name)
	}
	if s.Engine.IdleRPM <= 0 || s.Engine.IdleRPM >= s.Engine.RedlineRPM {
		return fmt.Errorf("%w: %q", ErrInvalidRPMRange, s.Name)
	}
	if len(s.GearRatios) == 0 {
		return fmt.Errorf("%w: %q has no gears", ErrInvalidGearRatios, s.Name)
	}
	for i, ratio := range s.GearRatios {
		if ratio <= 0 {
			return fmt.Errorf("%w: %q gear %d", ErrInvalidGearRatios, s.Name, i+1)
		}
	}
	return nil
}

// TopGear returns the highest forward gear number.
func (s *Spec) TopGear() int {
	if s == nil {
		return 0
	}
	return len(s.GearRatios)
}

// RatioFor returns the combined gearbox+final-drive ratio for the gear, or 0
// for neutral and reverse (reverse is handled as a fixed slow ratio).
func (s *Spec) RatioFor(gear int) float64 {
	if s == nil {
		return 0
	}
	if gear == -1 {
		//1.- Reverse reuses the first gear ratio; the engine force model
		// negates the direction separately.
		return s.GearRatios[0] * s.FinalDrive
	}
	if gear < 1 || gear > len(s.GearRatios) {
		return 0
	}
	return s.GearRatios[gear-1] * s.FinalDrive
}

// PowerAt interpolates the engine power curve at the supplied RPM, clamping
// to the curve endpoints.
func (s *Spec) PowerAt(rpm float64) float64 {
	if s == nil || len(s.Engine.PowerCurve) == 0 {
		return 0
	}
	curve := s.Engine.PowerCurve
	if rpm <= curve[0].RPM {
		return curve[0].KW
	}
	if rpm >= curve[len(curve)-1].RPM {
		return curve[len(curve)-1].KW
	}
	//1.- Walk the curve to the surrounding pair and interpolate linearly.
	for i := 1; i < len(curve); i++ {
		if rpm <= curve[i].RPM {
			lo, hi := curve[i-1], curve[i]
			t := (rpm - lo.RPM) / (hi.RPM - lo.RPM)
			return lo.KW + (hi.KW-lo.KW)*t
		}
	}
	return curve[len(curve)-1].KW
}

// DefaultSpec returns the baseline 1991-era specification used when the
// loader does not override per-team data.
func DefaultSpec(name, team string) *Spec {
	return &Spec{
		Name:   name,
		Team:   team,
		MassKg: 505,
		Engine: EngineSpec{
			PowerCurve: []PowerPoint{
				{RPM: 3000, KW: 180},
				{RPM: 7000, KW: 420},
				{RPM: 11000, KW: 560},
				{RPM: 13000, KW: 520},
				{RPM: 14500, KW: 470},
			},
			IdleRPM:    1000,
			RedlineRPM: 14500,
		},
		Aero: AeroSpec{
			DragCoefficient:      0.9,
			DownforceCoefficient: 2.5,
		},
		GearRatios:        []float64{3.5, 2.5, 1.8, 1.4, 1.1, 0.9},
		FinalDrive:        3.0,
		WheelRadiusM:      0.33,
		ReliabilityRating: 0.9,
	}
}
