package partition

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func sampleParts() []Data {
	return []Data{
		{
			ID:           0,
			CatchmentIDs: []string{"cat-1", "cat-3"},
			NexusIDs:     []string{"nex-1", "nex-3"},
			RemoteConnections: []RemoteConnection{
				{Rank: 1, NexusID: "nex-1", CatchmentID: "cat-2", Direction: OrigCatToNex},
			},
		},
		{
			ID:           1,
			CatchmentIDs: []string{"cat-2", "cat-4"},
			NexusIDs:     []string{"nex-1", "nex-3"},
			RemoteConnections: []RemoteConnection{
				{Rank: 0, NexusID: "nex-1", CatchmentID: "cat-3", Direction: NexToDestCat},
			},
		},
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "partitions_2.json")

	assert.NoError(t, WriteFile(path, sampleParts()))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	parts, err := ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, sampleParts(), parts)

	// Overwrite in place.
	assert.NoError(t, WriteFile(path, sampleParts()[:1]))
	parts, err = ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(parts))
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, Encode(&buf, sampleParts()))

	out := buf.String()
	for _, key := range []string{`"partitions"`, `"cat-ids"`, `"nex-ids"`, `"remote-connections"`, `"mpi-rank"`, `"nex-id"`, `"cat-id"`, `"cat-direction": "orig_cat-to-nex"`, `"cat-direction": "nex-to-dest_cat"`} {
		assert.Contains(t, out, key)
	}

	buf.Reset()
	assert.NoError(t, Encode(&buf, nil))
	assert.Contains(t, buf.String(), `"partitions": []`)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expectedError error
	}{
		{
			name:          "missing partitions",
			input:         `{}`,
			expectedError: ErrMissingField,
		},
		{
			name:          "missing id",
			input:         `{"partitions":[{"cat-ids":[],"nex-ids":[],"remote-connections":[]}]}`,
			expectedError: ErrMissingField,
		},
		{
			name:          "missing cat-ids",
			input:         `{"partitions":[{"id":0,"nex-ids":[],"remote-connections":[]}]}`,
			expectedError: ErrMissingField,
		},
		{
			name:          "missing remote-connections",
			input:         `{"partitions":[{"id":0,"cat-ids":[],"nex-ids":[]}]}`,
			expectedError: ErrMissingField,
		},
		{
			name:          "connection missing rank",
			input:         `{"partitions":[{"id":0,"cat-ids":[],"nex-ids":[],"remote-connections":[{"nex-id":"nex-1","cat-id":"cat-1","cat-direction":"orig_cat-to-nex"}]}]}`,
			expectedError: ErrMissingField,
		},
		{
			name:          "unknown direction",
			input:         `{"partitions":[{"id":0,"cat-ids":[],"nex-ids":[],"remote-connections":[{"mpi-rank":1,"nex-id":"nex-1","cat-id":"cat-1","cat-direction":"sideways"}]}]}`,
			expectedError: ErrUnknownDirection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			assert.Error(t, err)
			assert.True(t, errors.Is(err, tt.expectedError))
		})
	}

	t.Run("not json", func(t *testing.T) {
		_, err := Decode(strings.NewReader("partitions"))
		assert.Error(t, err)
	})

	t.Run("valid", func(t *testing.T) {
		parts, err := Decode(strings.NewReader(`{"partitions":[{"id":3,"cat-ids":["cat-1"],"nex-ids":["nex-1"],"remote-connections":[]}]}`))
		assert.NoError(t, err)
		assert.Equal(t, []Data{{ID: 3, CatchmentIDs: []string{"cat-1"}, NexusIDs: []string{"nex-1"}, RemoteConnections: []RemoteConnection{}}}, parts)
	})
}

func TestWriteFileErrors(t *testing.T) {
	assert.True(t, errors.Is(WriteFile("", sampleParts()), ErrMissingField))

	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestIndex(t *testing.T) {
	x, err := NewIndex(sampleParts())
	assert.NoError(t, err)
	assert.Equal(t, 2, x.Len())
	assert.Equal(t, []int{0, 1}, x.IDs())

	p, err := x.Partition(1)
	assert.NoError(t, err)
	assert.Equal(t, []string{"cat-2", "cat-4"}, p.CatchmentIDs)

	_, err = x.Partition(7)
	assert.True(t, errors.Is(err, ErrInvalidPartition))

	id, err := x.PartitionOf("cat-3")
	assert.NoError(t, err)
	assert.Equal(t, 0, id)

	_, err = x.PartitionOf("cat-9")
	assert.True(t, errors.Is(err, ErrNotInAnyPartition))

	t.Run("duplicate partition id", func(t *testing.T) {
		parts := sampleParts()
		parts[1].ID = 0
		_, err := NewIndex(parts)
		assert.True(t, errors.Is(err, ErrInvalidPartition))
	})

	t.Run("duplicate catchment", func(t *testing.T) {
		parts := sampleParts()
		parts[1].CatchmentIDs = append(parts[1].CatchmentIDs, "cat-1")
		_, err := NewIndex(parts)
		assert.True(t, errors.Is(err, ErrDuplicateCatchment))
	})
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(sampleParts()))

	t.Run("unmatched send", func(t *testing.T) {
		parts := sampleParts()
		parts[0].RemoteConnections = []RemoteConnection{}
		err := Validate(parts)
		assert.True(t, errors.Is(err, ErrUnmatchedConnection))
	})

	t.Run("missing partition", func(t *testing.T) {
		parts := sampleParts()
		parts[0].RemoteConnections[0].Rank = 5
		err := Validate(parts)
		assert.True(t, errors.Is(err, ErrInvalidPartition))
	})

	t.Run("aggregates problems", func(t *testing.T) {
		parts := sampleParts()
		parts[1].CatchmentIDs = append(parts[1].CatchmentIDs, "cat-1")
		parts[0].RemoteConnections = []RemoteConnection{}
		err := Validate(parts)
		assert.True(t, errors.Is(err, ErrDuplicateCatchment))
		assert.True(t, errors.Is(err, ErrUnmatchedConnection))
	})
}

type catchment struct {
	id   string
	toid string
}

func (c catchment) ID() string { return c.id }

func (c catchment) Property(key string) (string, bool) {
	if key != "toid" || c.toid == "" {
		return "", false
	}
	return c.toid, true
}

func TestStrategies(t *testing.T) {
	cats := []catchment{
		{"cat-1", "nex-1"},
		{"cat-2", "nex-1"},
		{"cat-3", "nex-3"},
		{"cat-4", ""},
		{"cat-5", "nex-5"},
	}

	t.Run("one", func(t *testing.T) {
		p := One(cats, "toid")
		assert.Equal(t, 0, p.ID)
		assert.Equal(t, []string{"cat-1", "cat-2", "cat-3", "cat-4", "cat-5"}, p.CatchmentIDs)
		assert.Equal(t, []string{"nex-1", "nex-3", "nex-5"}, p.NexusIDs)
		assert.Equal(t, 0, len(p.RemoteConnections))
	})

	t.Run("round robin", func(t *testing.T) {
		parts, err := RoundRobin(cats, "toid", 2)
		assert.NoError(t, err)
		assert.Equal(t, 2, len(parts))
		assert.Equal(t, []string{"cat-1", "cat-3", "cat-5"}, parts[0].CatchmentIDs)
		assert.Equal(t, []string{"nex-1", "nex-3", "nex-5"}, parts[0].NexusIDs)
		assert.Equal(t, []string{"cat-2", "cat-4"}, parts[1].CatchmentIDs)
		assert.Equal(t, []string{"nex-1"}, parts[1].NexusIDs)
		assert.NoError(t, Validate(parts))
	})

	t.Run("round robin caps partitions", func(t *testing.T) {
		parts, err := RoundRobin(cats, "toid", 9)
		assert.NoError(t, err)
		assert.Equal(t, 5, len(parts))
	})

	t.Run("round robin invalid count", func(t *testing.T) {
		_, err := RoundRobin(cats, "toid", 0)
		assert.True(t, errors.Is(err, ErrInvalidPartitionCount))
	})

	t.Run("parse", func(t *testing.T) {
		s, err := ParseStrategy("round-robin")
		assert.NoError(t, err)
		assert.Equal(t, StrategyRoundRobin, s)
		_, err = ParseStrategy("metis")
		assert.True(t, errors.Is(err, ErrUnknownStrategy))
	})
}
