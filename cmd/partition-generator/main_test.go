package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/NOAA-OWP/ngen-sub002/partition"
	"github.com/alecthomas/assert/v2"
	"github.com/go-logr/logr/testr"
)

const catchments = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "cat-1", "properties": {"toid": "nex-1"}, "geometry": null},
    {"type": "Feature", "id": "cat-2", "properties": {"toid": "nex-1"}, "geometry": null},
    {"type": "Feature", "id": "cat-3", "properties": {"id": "wb-3", "toid": "nex-3"}, "geometry": null},
    {"type": "Feature", "id": "cat-4", "properties": {"toid": "nex-3"}, "geometry": null}
  ]
}`

const nexuses = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "nex-1", "properties": {"toid": "wb-3"}, "geometry": {"type": "Point", "coordinates": [0, 0]}},
    {"type": "Feature", "id": "nex-3", "properties": {}, "geometry": {"type": "Point", "coordinates": [1, 0]}}
  ]
}`

func fixture(t *testing.T) *config {
	t.Helper()
	dir := t.TempDir()
	catPath := filepath.Join(dir, "catchments.geojson")
	nexPath := filepath.Join(dir, "nexus.geojson")
	assert.NoError(t, os.WriteFile(catPath, []byte(catchments), 0o644))
	assert.NoError(t, os.WriteFile(nexPath, []byte(nexuses), 0o644))
	return &config{
		catchmentPath: catPath,
		nexusPath:     nexPath,
		output:        filepath.Join(dir, "out", "partitions.json"),
		numPartitions: 2,
		linkKey:       "toid",
		altIDKey:      "id",
		strategy:      partition.StrategyDFS,
	}
}

func TestRun(t *testing.T) {
	cfg := fixture(t)
	assert.NoError(t, run(context.Background(), testr.New(t), cfg))

	parts, err := partition.ReadFile(cfg.output)
	assert.NoError(t, err)
	assert.Equal(t, []partition.Data{
		{
			ID:           0,
			CatchmentIDs: []string{"cat-1", "cat-3"},
			NexusIDs:     []string{"nex-1", "nex-3"},
			RemoteConnections: []partition.RemoteConnection{
				{Rank: 1, NexusID: "nex-1", CatchmentID: "cat-2", Direction: partition.OrigCatToNex},
			},
		},
		{
			ID:           1,
			CatchmentIDs: []string{"cat-2", "cat-4"},
			NexusIDs:     []string{"nex-1", "nex-3"},
			RemoteConnections: []partition.RemoteConnection{
				{Rank: 0, NexusID: "nex-1", CatchmentID: "cat-3", Direction: partition.NexToDestCat},
			},
		},
	}, parts)

	assert.NoError(t, validate(testr.New(t), cfg.output))
}

func TestRunStrategies(t *testing.T) {
	t.Run("one", func(t *testing.T) {
		cfg := fixture(t)
		cfg.strategy = partition.StrategyOne
		assert.NoError(t, run(context.Background(), testr.New(t), cfg))

		parts, err := partition.ReadFile(cfg.output)
		assert.NoError(t, err)
		assert.Equal(t, 1, len(parts))
		assert.Equal(t, []string{"cat-1", "cat-2", "cat-3", "cat-4"}, parts[0].CatchmentIDs)
	})

	t.Run("round robin", func(t *testing.T) {
		cfg := fixture(t)
		cfg.strategy = partition.StrategyRoundRobin
		assert.NoError(t, run(context.Background(), testr.New(t), cfg))

		parts, err := partition.ReadFile(cfg.output)
		assert.NoError(t, err)
		assert.Equal(t, 2, len(parts))
		assert.Equal(t, []string{"cat-1", "cat-3"}, parts[0].CatchmentIDs)
		assert.Equal(t, []string{"cat-2", "cat-4"}, parts[1].CatchmentIDs)
	})
}

func TestRunErrors(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		cfg := fixture(t)
		cfg.nexusPath = filepath.Join(t.TempDir(), "missing.geojson")
		assert.Error(t, run(context.Background(), testr.New(t), cfg))
	})

	t.Run("too many partitions", func(t *testing.T) {
		cfg := fixture(t)
		cfg.numPartitions = 5
		err := run(context.Background(), testr.New(t), cfg)
		assert.True(t, errors.Is(err, partition.ErrInvalidPartitionCount))
	})

	t.Run("catchment without nexus", func(t *testing.T) {
		cfg := fixture(t)
		cfg.nexusIDs = []string{"nex-1"}
		err := run(context.Background(), testr.New(t), cfg)
		assert.True(t, errors.Is(err, partition.ErrNoDestination))
	})
}

func TestParseArgs(t *testing.T) {
	cfg, err := parseArgs([]string{"c.geojson", "n.geojson", "out.json", "3", "cat-1, cat-2", ""})
	assert.NoError(t, err)
	assert.Equal(t, 3, cfg.numPartitions)
	assert.Equal(t, []string{"cat-1", "cat-2"}, cfg.catchmentIDs)
	assert.Equal(t, 0, len(cfg.nexusIDs))
	assert.Equal(t, partition.StrategyDFS, cfg.strategy)
	assert.Equal(t, "toid", cfg.linkKey)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "empty output", args: []string{"c", "n", "", "2"}, want: errUsage},
		{name: "zero partitions", args: []string{"c", "n", "o", "0"}, want: partition.ErrInvalidPartitionCount},
		{name: "not a number", args: []string{"c", "n", "o", "two"}, want: partition.ErrInvalidPartitionCount},
		{name: "too few", args: []string{"c", "n"}, want: errUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseArgs(tt.args)
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestValidateRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partitions.json")
	assert.NoError(t, partition.WriteFile(path, []partition.Data{
		{ID: 0, CatchmentIDs: []string{"cat-1"}, NexusIDs: []string{"nex-1"}, RemoteConnections: []partition.RemoteConnection{}},
		{ID: 1, CatchmentIDs: []string{"cat-1"}, NexusIDs: []string{"nex-1"}, RemoteConnections: []partition.RemoteConnection{}},
	}))
	err := validate(testr.New(t), path)
	assert.True(t, errors.Is(err, partition.ErrDuplicateCatchment))
}
