// Package reservoir implements the nonlinear multi-outlet reservoir used by
// conceptual catchment models.
//
// # Overview
//
// A Reservoir holds a storage height bounded by a minimum and a maximum and
// drains through zero or more Outlets. Each outlet activates once storage
// rises above its activation threshold and discharges according to one of
// three laws:
//
//   - PowerLaw:    a * ((s - t) / (max - t))^b
//   - Linear:      a * (s - t) / (max - t)
//   - Exponential: c * (exp(expon * s / max) - 1)
//
// where s is the storage height, t the activation threshold and max the
// maximum storage. Every outlet velocity is clamped to the outlet's maximum
// velocity.
//
// # Response
//
// ResponseMetersPerSecond adds influx*dt to storage and then drains the
// outlets in ascending threshold order. An outlet that would pull storage
// below the minimum is throttled to exactly the remaining water above the
// minimum and its cached velocity is adjusted to match. Storage above the
// maximum is removed and reported as excess. The sum of outlet velocities and
// the excess are returned to the caller.
//
//	r := reservoir.MustNew(0, 8, 3.5,
//	    reservoir.WithOutlets(reservoir.NewPowerLawOutlet(0.5, 0.7, 4, 100)),
//	)
//	velocity, excess := r.ResponseMetersPerSecond(0.2, 10)
//
// ResponseMeters is the timeless form of the same computation where fluxes are
// expressed as meters per step.
//
// # Cascades
//
// A Cascade chains several single-outlet reservoirs so that each stage's
// outflow becomes the next stage's inflow (a Nash cascade). The cascade owns
// all of its stage state; callers read it back through Storages.
//
// # Concurrency
//
// Reservoirs, outlets and cascades are owned by a single catchment model and
// are not safe for concurrent use.
package reservoir
