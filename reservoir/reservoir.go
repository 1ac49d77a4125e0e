package reservoir

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-logr/logr"
)

var (
	ErrThresholdAboveMaximum = errors.New("outlet activation threshold exceeds maximum storage")
	ErrInvalidBounds         = errors.New("minimum storage exceeds maximum storage")
	ErrUnknownKind           = errors.New("unknown outlet kind")
	ErrNilOutlet             = errors.New("nil outlet")
	ErrInvalidStages         = errors.New("invalid cascade stages")
)

// Reservoir is a storage bucket drained by a set of outlets ordered by
// ascending activation threshold.
type Reservoir struct {
	params  Parameters
	state   State
	outlets []*Outlet
	log     logr.Logger
}

type Option func(*Reservoir)

// WithLogger sets the logger used for clamping and bound diagnostics.
func WithLogger(log logr.Logger) Option {
	return func(r *Reservoir) {
		r.log = log
	}
}

// WithOutlets adds outlets at construction time. Order does not matter.
func WithOutlets(outlets ...*Outlet) Option {
	return func(r *Reservoir) {
		r.outlets = append(r.outlets, outlets...)
	}
}

// New creates a reservoir with the given storage bounds and initial storage.
func New(minimumStorageMeters, maximumStorageMeters, storageMeters float64, opts ...Option) (*Reservoir, error) {
	if minimumStorageMeters > maximumStorageMeters {
		return nil, fmt.Errorf("%w: min=%v max=%v", ErrInvalidBounds, minimumStorageMeters, maximumStorageMeters)
	}

	r := &Reservoir{
		params: Parameters{
			MinimumStorageMeters: minimumStorageMeters,
			MaximumStorageMeters: maximumStorageMeters,
		},
		state: State{StorageHeightMeters: storageMeters},
		log:   logr.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, o := range r.outlets {
		if o == nil {
			return nil, ErrNilOutlet
		}
		o.log = r.log
	}

	if err := r.sortOutlets(); err != nil {
		return nil, err
	}

	return r, nil
}

// MustNew is like New but panics on error.
func MustNew(minimumStorageMeters, maximumStorageMeters, storageMeters float64, opts ...Option) *Reservoir {
	r, err := New(minimumStorageMeters, maximumStorageMeters, storageMeters, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// AddOutlet adds a prebuilt outlet and re-sorts the outlets. An outlet whose
// threshold exceeds the maximum storage is rejected and not added.
func (r *Reservoir) AddOutlet(o *Outlet) error {
	if o == nil {
		return ErrNilOutlet
	}
	if o.ActivationThresholdMeters > r.params.MaximumStorageMeters {
		return fmt.Errorf("%w: threshold=%v max=%v",
			ErrThresholdAboveMaximum, o.ActivationThresholdMeters, r.params.MaximumStorageMeters)
	}
	o.log = r.log
	r.outlets = append(r.outlets, o)
	return r.sortOutlets()
}

func (r *Reservoir) AddPowerLawOutlet(a, b, activationThresholdMeters, maxVelocityMetersPerSecond float64) error {
	return r.AddOutlet(NewPowerLawOutlet(a, b, activationThresholdMeters, maxVelocityMetersPerSecond))
}

func (r *Reservoir) AddLinearOutlet(a, activationThresholdMeters, maxVelocityMetersPerSecond float64) error {
	return r.AddOutlet(NewLinearOutlet(a, activationThresholdMeters, maxVelocityMetersPerSecond))
}

func (r *Reservoir) AddExponentialOutlet(c, expon, activationThresholdMeters, maxVelocityMetersPerSecond float64) error {
	return r.AddOutlet(NewExponentialOutlet(c, expon, activationThresholdMeters, maxVelocityMetersPerSecond))
}

// sortOutlets orders outlets by ascending activation threshold. The sort is
// stable so outlets with equal thresholds keep their insertion order.
func (r *Reservoir) sortOutlets() error {
	slices.SortStableFunc(r.outlets, func(a, b *Outlet) int {
		switch {
		case a.ActivationThresholdMeters < b.ActivationThresholdMeters:
			return -1
		case a.ActivationThresholdMeters > b.ActivationThresholdMeters:
			return 1
		default:
			return 0
		}
	})

	if n := len(r.outlets); n > 0 {
		highest := r.outlets[n-1].ActivationThresholdMeters
		if highest > r.params.MaximumStorageMeters {
			return fmt.Errorf("%w: threshold=%v max=%v",
				ErrThresholdAboveMaximum, highest, r.params.MaximumStorageMeters)
		}
	}
	return nil
}

// ResponseMetersPerSecond advances the reservoir by dtSeconds with the given
// influx and returns the summed outlet velocity and the excess water removed
// above maximum storage.
func (r *Reservoir) ResponseMetersPerSecond(influxMetersPerSecond, dtSeconds float64) (velocity, excessMeters float64) {
	r.state.StorageHeightMeters += influxMetersPerSecond * dtSeconds

	for _, o := range r.outlets {
		v := o.VelocityMetersPerSecond(r.params, r.state)
		r.state.StorageHeightMeters -= v * dtSeconds

		if r.state.StorageHeightMeters < r.params.MinimumStorageMeters {
			r.state.StorageHeightMeters += v * dtSeconds
			v = (r.state.StorageHeightMeters - r.params.MinimumStorageMeters) / dtSeconds
			o.AdjustVelocity(v)
			r.state.StorageHeightMeters = r.params.MinimumStorageMeters
			excessMeters = 0
		}

		velocity += v
	}

	if r.state.StorageHeightMeters > r.params.MaximumStorageMeters {
		excessMeters = r.state.StorageHeightMeters - r.params.MaximumStorageMeters
		r.state.StorageHeightMeters = r.params.MaximumStorageMeters
		r.log.Info("warning: reservoir storage above maximum, removing excess",
			"excess_meters", excessMeters,
			"maximum_storage_meters", r.params.MaximumStorageMeters)
	}

	return velocity, excessMeters
}

// ResponseMeters is the timeless form of ResponseMetersPerSecond: influx and
// outflow are expressed as meters per step.
func (r *Reservoir) ResponseMeters(influxMeters float64) (fluxMeters, excessMeters float64) {
	return r.ResponseMetersPerSecond(influxMeters, 1)
}

// StorageHeightMeters returns the current storage.
func (r *Reservoir) StorageHeightMeters() float64 {
	return r.state.StorageHeightMeters
}

// SetStorageHeightMeters overwrites the current storage without clamping.
func (r *Reservoir) SetStorageHeightMeters(s float64) {
	r.state.StorageHeightMeters = s
}

func (r *Reservoir) Parameters() Parameters {
	return r.params
}

// Outlets returns the outlets in activation order. The slice is a copy; the
// outlets are shared.
func (r *Reservoir) Outlets() []*Outlet {
	return slices.Clone(r.outlets)
}

// VelocityMetersPerSecondForOutlet returns the last velocity of outlet i.
// With no outlets it returns 0; an out of range index falls back to the first
// outlet. Both cases are logged.
func (r *Reservoir) VelocityMetersPerSecondForOutlet(i int) float64 {
	if len(r.outlets) == 0 {
		r.log.Info("warning: reservoir has no outlets, velocity is zero", "outlet", i)
		return 0
	}
	if i < 0 || i >= len(r.outlets) {
		r.log.Info("warning: outlet index out of range, using first outlet",
			"outlet", i, "outlets", len(r.outlets))
		return r.outlets[0].PreviouslyCalculatedVelocity()
	}
	return r.outlets[i].PreviouslyCalculatedVelocity()
}
