package partition

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File is the on-disk partition document.
type File struct {
	Partitions []Data `json:"partitions"`
}

// Encode writes parts as an indented partition document.
func Encode(w io.Writer, parts []Data) error {
	if parts == nil {
		parts = []Data{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(File{Partitions: parts}); err != nil {
		return fmt.Errorf("encode partitions: %w", err)
	}
	return nil
}

type rawFile struct {
	Partitions *[]rawPartition `json:"partitions"`
}

type rawPartition struct {
	ID                *int             `json:"id"`
	CatchmentIDs      *[]string        `json:"cat-ids"`
	NexusIDs          *[]string        `json:"nex-ids"`
	RemoteConnections *[]rawConnection `json:"remote-connections"`
}

type rawConnection struct {
	Rank        *int       `json:"mpi-rank"`
	NexusID     *string    `json:"nex-id"`
	CatchmentID *string    `json:"cat-id"`
	Direction   *Direction `json:"cat-direction"`
}

// Decode reads a partition document. Every field of every partition and
// connection is required.
func Decode(r io.Reader) ([]Data, error) {
	var raw rawFile
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode partitions: %w", err)
	}
	if raw.Partitions == nil {
		return nil, fmt.Errorf("%w: partitions", ErrMissingField)
	}

	parts := make([]Data, 0, len(*raw.Partitions))
	for i, rp := range *raw.Partitions {
		switch {
		case rp.ID == nil:
			return nil, fmt.Errorf("%w: partition %d: id", ErrMissingField, i)
		case rp.CatchmentIDs == nil:
			return nil, fmt.Errorf("%w: partition %d: cat-ids", ErrMissingField, i)
		case rp.NexusIDs == nil:
			return nil, fmt.Errorf("%w: partition %d: nex-ids", ErrMissingField, i)
		case rp.RemoteConnections == nil:
			return nil, fmt.Errorf("%w: partition %d: remote-connections", ErrMissingField, i)
		}

		d := Data{
			ID:                *rp.ID,
			CatchmentIDs:      *rp.CatchmentIDs,
			NexusIDs:          *rp.NexusIDs,
			RemoteConnections: make([]RemoteConnection, 0, len(*rp.RemoteConnections)),
		}
		for j, rc := range *rp.RemoteConnections {
			if rc.Rank == nil || rc.NexusID == nil || rc.CatchmentID == nil || rc.Direction == nil {
				return nil, fmt.Errorf("%w: partition %d: remote connection %d", ErrMissingField, d.ID, j)
			}
			d.RemoteConnections = append(d.RemoteConnections, RemoteConnection{
				Rank:        *rc.Rank,
				NexusID:     *rc.NexusID,
				CatchmentID: *rc.CatchmentID,
				Direction:   *rc.Direction,
			})
		}
		parts = append(parts, d)
	}
	return parts, nil
}

// ReadFile decodes the partition document at path.
func ReadFile(path string) ([]Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open partition file: %w", err)
	}
	defer func() { _ = f.Close() }()

	parts, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return parts, nil
}

// WriteFile writes parts to path atomically: the document is written to a
// temporary file, synced and renamed over path.
func WriteFile(path string, parts []Data) error {
	if path == "" {
		return fmt.Errorf("%w: empty output path", ErrMissingField)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create partition directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp partition file: %w", err)
	}

	w := bufio.NewWriter(file)
	if err := Encode(w, parts); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("flush partition file: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync partition file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close partition file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename partition file: %w", err)
	}

	// Persist the rename.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	return nil
}
