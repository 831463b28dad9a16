package vectorindex

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// snapshotEntry is one (id, vector) pair as persisted on disk.
type snapshotEntry struct {
	ID     int64
	Vector []float32
}

// Meta is the meta.json sidecar alongside a persisted index: everything
// needed to decide, on load, whether the snapshot is usable without
// inspecting the binary payload.
type Meta struct {
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	VectorCount    int       `json:"vector_count"`
	Checksum       string    `json:"checksum"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	vectorsFileName = "vectors.bin"
	idMapFileName   = "id_map"
	metaFileName    = "meta.json"
)

// ErrModelMismatch is returned by Load when the snapshot's recorded
// embedding model does not match the currently configured one.
var ErrModelMismatch = fmt.Errorf("vectorindex: snapshot embedding model does not match configured model")

// ErrChecksumMismatch is returned by Load when the payload's checksum does
// not match the recorded one in meta.json.
var ErrChecksumMismatch = fmt.Errorf("vectorindex: snapshot checksum mismatch")

// Snapshot writes f's contents to dir as <dir>/vectors.bin, <dir>/id_map,
// and <dir>/meta.json, overwriting any prior snapshot. embeddingModel is
// recorded so a later Load can reject a stale snapshot on model change.
func Snapshot(f *Flat, dir string, embeddingModel string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vectorindex: create snapshot dir: %w", err)
	}
	entries := f.snapshotEntries()

	payload, idMap := encodeEntries(entries, f.dimension)
	if err := os.WriteFile(filepath.Join(dir, vectorsFileName), payload, 0o644); err != nil {
		return fmt.Errorf("vectorindex: write vectors: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, idMapFileName), idMap, 0o644); err != nil {
		return fmt.Errorf("vectorindex: write id map: %w", err)
	}

	sum := sha256.Sum256(payload)
	meta := Meta{
		EmbeddingModel: embeddingModel,
		Dimension:      f.dimension,
		VectorCount:    len(entries),
		Checksum:       fmt.Sprintf("%x", sum),
		CreatedAt:      time.Now().UTC(),
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("vectorindex: marshal meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFileName), metaBytes, 0o644); err != nil {
		return fmt.Errorf("vectorindex: write meta: %w", err)
	}
	return nil
}

// Load reads a snapshot from dir into a fresh Flat index of the given
// dimension. It verifies the checksum and the embedding model identifier
// before accepting the payload; either mismatch rejects the snapshot and
// the caller must schedule a full rebuild (spec.md §3, §4.9).
func Load(dir string, dimension int, expectedModel string) (*Flat, *Meta, error) {
	metaBytes, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		return nil, nil, fmt.Errorf("vectorindex: read meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, nil, fmt.Errorf("vectorindex: unmarshal meta: %w", err)
	}
	if meta.EmbeddingModel != expectedModel {
		return nil, &meta, ErrModelMismatch
	}

	payload, err := os.ReadFile(filepath.Join(dir, vectorsFileName))
	if err != nil {
		return nil, &meta, fmt.Errorf("vectorindex: read vectors: %w", err)
	}
	sum := sha256.Sum256(payload)
	if fmt.Sprintf("%x", sum) != meta.Checksum {
		return nil, &meta, ErrChecksumMismatch
	}

	entries, err := decodeEntries(payload, meta.Dimension)
	if err != nil {
		return nil, &meta, fmt.Errorf("vectorindex: decode vectors: %w", err)
	}

	idx := NewFlat(dimension)
	idx.loadEntries(entries)
	return idx, &meta, nil
}

// encodeEntries serializes entries as a flat little-endian binary payload:
// for each entry, an int64 id followed by dimension float32 components.
// id_map is returned separately as newline-separated ids in payload order,
// matching the persisted layout named in spec.md §6.
func encodeEntries(entries []snapshotEntry, dimension int) (payload []byte, idMap []byte) {
	recordSize := 8 + dimension*4
	payload = make([]byte, len(entries)*recordSize)
	var idMapBuilder []byte
	for i, e := range entries {
		off := i * recordSize
		binary.LittleEndian.PutUint64(payload[off:], uint64(e.ID))
		for j, f := range e.Vector {
			binary.LittleEndian.PutUint32(payload[off+8+j*4:], math.Float32bits(f))
		}
		idMapBuilder = append(idMapBuilder, []byte(fmt.Sprintf("%d\n", e.ID))...)
	}
	return payload, idMapBuilder
}

func decodeEntries(payload []byte, dimension int) ([]snapshotEntry, error) {
	recordSize := 8 + dimension*4
	if recordSize == 0 || len(payload)%recordSize != 0 {
		return nil, fmt.Errorf("payload length %d not a multiple of record size %d", len(payload), recordSize)
	}
	count := len(payload) / recordSize
	entries := make([]snapshotEntry, count)
	for i := 0; i < count; i++ {
		off := i * recordSize
		id := int64(binary.LittleEndian.Uint64(payload[off:]))
		vec := make([]float32, dimension)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(payload[off+8+j*4:]))
		}
		entries[i] = snapshotEntry{ID: id, Vector: vec}
	}
	return entries, nil
}
