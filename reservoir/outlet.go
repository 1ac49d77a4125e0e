package reservoir

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-logr/logr"
)

// Kind selects the discharge law of an Outlet.
type Kind int

const (
	PowerLaw Kind = iota
	Linear
	Exponential
)

func (k Kind) String() string {
	switch k {
	case PowerLaw:
		return "power_law"
	case Linear:
		return "linear"
	case Exponential:
		return "exponential"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case PowerLaw, Linear, Exponential:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "power_law":
		*k = PowerLaw
	case "linear":
		*k = Linear
	case "exponential":
		*k = Exponential
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, string(text))
	}
	return nil
}

// Parameters are the storage bounds of a reservoir.
type Parameters struct {
	MinimumStorageMeters float64 `json:"minimum_storage_meters"`
	MaximumStorageMeters float64 `json:"maximum_storage_meters"`
}

// State is the mutable part of a reservoir.
type State struct {
	StorageHeightMeters float64 `json:"current_storage_height_meters"`
}

// Outlet is a single reservoir outlet. Coefficient is a for the power law and
// linear laws and c for the exponential law; Exponent is b or expon
// respectively and is ignored for Linear.
type Outlet struct {
	Kind                       Kind    `json:"kind"`
	Coefficient                float64 `json:"coefficient"`
	Exponent                   float64 `json:"exponent"`
	ActivationThresholdMeters  float64 `json:"activation_threshold_meters"`
	MaxVelocityMetersPerSecond float64 `json:"max_velocity_meters_per_second"`

	velocity float64
	log      logr.Logger
}

func NewPowerLawOutlet(a, b, activationThresholdMeters, maxVelocityMetersPerSecond float64) *Outlet {
	return &Outlet{
		Kind:                       PowerLaw,
		Coefficient:                a,
		Exponent:                   b,
		ActivationThresholdMeters:  activationThresholdMeters,
		MaxVelocityMetersPerSecond: maxVelocityMetersPerSecond,
		log:                        logr.Discard(),
	}
}

func NewLinearOutlet(a, activationThresholdMeters, maxVelocityMetersPerSecond float64) *Outlet {
	return &Outlet{
		Kind:                       Linear,
		Coefficient:                a,
		Exponent:                   1,
		ActivationThresholdMeters:  activationThresholdMeters,
		MaxVelocityMetersPerSecond: maxVelocityMetersPerSecond,
		log:                        logr.Discard(),
	}
}

func NewExponentialOutlet(c, expon, activationThresholdMeters, maxVelocityMetersPerSecond float64) *Outlet {
	return &Outlet{
		Kind:                       Exponential,
		Coefficient:                c,
		Exponent:                   expon,
		ActivationThresholdMeters:  activationThresholdMeters,
		MaxVelocityMetersPerSecond: maxVelocityMetersPerSecond,
		log:                        logr.Discard(),
	}
}

// Discharge evaluates the outlet law without gating or clamping.
func (o *Outlet) Discharge(p Parameters, s State) float64 {
	switch o.Kind {
	case Linear:
		return o.Coefficient * (s.StorageHeightMeters - o.ActivationThresholdMeters) /
			(p.MaximumStorageMeters - o.ActivationThresholdMeters)
	case Exponential:
		return o.Coefficient * (math.Exp(o.Exponent*s.StorageHeightMeters/p.MaximumStorageMeters) - 1)
	default:
		return o.Coefficient * math.Pow(
			(s.StorageHeightMeters-o.ActivationThresholdMeters)/(p.MaximumStorageMeters-o.ActivationThresholdMeters),
			o.Exponent)
	}
}

// VelocityMetersPerSecond returns the outlet velocity for the given storage.
// Storage at or below the activation threshold yields zero. The result is
// clamped to MaxVelocityMetersPerSecond and remembered for
// PreviouslyCalculatedVelocity.
func (o *Outlet) VelocityMetersPerSecond(p Parameters, s State) float64 {
	if s.StorageHeightMeters <= o.ActivationThresholdMeters {
		o.velocity = 0
		return o.velocity
	}

	v := o.Discharge(p, s)
	if v > o.MaxVelocityMetersPerSecond {
		o.logger().Info("warning: outlet velocity exceeds maximum, clamping",
			"kind", o.Kind.String(),
			"velocity", v,
			"max_velocity", o.MaxVelocityMetersPerSecond)
		v = o.MaxVelocityMetersPerSecond
	}

	o.velocity = v
	return o.velocity
}

// PreviouslyCalculatedVelocity returns the last velocity computed or set.
func (o *Outlet) PreviouslyCalculatedVelocity() float64 {
	return o.velocity
}

// AdjustVelocity overwrites the cached velocity, used when the reservoir
// throttles the outlet to keep storage at its minimum.
func (o *Outlet) AdjustVelocity(v float64) {
	o.velocity = v
}

func (o *Outlet) logger() logr.Logger {
	if o.log.GetSink() == nil {
		return logr.Discard()
	}
	return o.log
}
