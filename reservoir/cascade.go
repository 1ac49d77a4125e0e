package reservoir

import (
	"fmt"

	"github.com/go-logr/logr"
)

// OutletFactory builds the outlet for stage i of a cascade.
type OutletFactory func(stage int) *Outlet

// Cascade is a chain of single-outlet reservoirs where the outflow of each
// stage feeds the next one.
type Cascade struct {
	stages []*Reservoir
}

// NewCascade builds one stage per entry of storagesMeters. Every stage shares
// the same bounds and receives the outlet built by outlet(i).
func NewCascade(minimumStorageMeters, maximumStorageMeters float64, storagesMeters []float64, outlet OutletFactory, log logr.Logger) (*Cascade, error) {
	if len(storagesMeters) == 0 {
		return nil, fmt.Errorf("%w: no stages", ErrInvalidStages)
	}
	if outlet == nil {
		return nil, fmt.Errorf("%w: nil outlet factory", ErrInvalidStages)
	}

	c := &Cascade{stages: make([]*Reservoir, 0, len(storagesMeters))}
	for i, s := range storagesMeters {
		r, err := New(minimumStorageMeters, maximumStorageMeters, s,
			WithLogger(log.WithValues("stage", i)),
			WithOutlets(outlet(i)),
		)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		c.stages = append(c.stages, r)
	}
	return c, nil
}

// Step routes influx through every stage and returns the outflow of the last
// stage. Water spilled above a stage's maximum is passed on as flow.
func (c *Cascade) Step(influxMetersPerSecond, dtSeconds float64) float64 {
	q := influxMetersPerSecond
	for _, stage := range c.stages {
		v, excess := stage.ResponseMetersPerSecond(q, dtSeconds)
		q = v + excess/dtSeconds
	}
	return q
}

func (c *Cascade) Len() int {
	return len(c.stages)
}

// Storages writes each stage's storage into dst, growing it if needed, and
// returns it.
func (c *Cascade) Storages(dst []float64) []float64 {
	dst = dst[:0]
	for _, stage := range c.stages {
		dst = append(dst, stage.StorageHeightMeters())
	}
	return dst
}

// Stage exposes stage i.
func (c *Cascade) Stage(i int) *Reservoir {
	return c.stages[i]
}
