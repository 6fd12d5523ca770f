package index

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/raphaelgruber/ragbot/internal/models"
)

const (
	// FormatVersion is bumped whenever the on-disk layout changes.
	FormatVersion = 1

	manifestFile = "manifest.json"
	payloadFile  = "index.cbor"
)

// Manifest describes a persisted index. It is stored as JSON next to the
// CBOR payload so it can be inspected without decoding vectors.
type Manifest struct {
	FormatVersion    int       `json:"format_version"`
	EmbeddingModelID string    `json:"embedding_model_id"`
	Dimension        int       `json:"dimension"`
	Count            int       `json:"count"`
	Checksum         string    `json:"checksum"`
	CreatedAt        time.Time `json:"created_at"`
}

// payload is the CBOR-encoded body of a persisted index.
type payload struct {
	FormatVersion    int            `cbor:"1,keyasint"`
	EmbeddingModelID string         `cbor:"2,keyasint"`
	Dimension        int            `cbor:"3,keyasint"`
	Chunks           []models.Chunk `cbor:"4,keyasint"`
	Vectors          [][]float32    `cbor:"5,keyasint"`
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Persist writes the index to dir as manifest.json plus index.cbor.
// Files are written to temporaries and renamed into place.
func (idx *Index) Persist(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	data, err := encMode.Marshal(payload{
		FormatVersion:    FormatVersion,
		EmbeddingModelID: idx.modelID,
		Dimension:        idx.dimension,
		Chunks:           idx.chunks,
		Vectors:          idx.vectors,
	})
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	sum := sha256.Sum256(data)
	manifest := Manifest{
		FormatVersion:    FormatVersion,
		EmbeddingModelID: idx.modelID,
		Dimension:        idx.dimension,
		Count:            len(idx.chunks),
		Checksum:         hex.EncodeToString(sum[:]),
		CreatedAt:        time.Now().UTC(),
	}
	mdata, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	// Payload first: a manifest never points at a missing payload.
	if err := writeFileAtomic(filepath.Join(dir, payloadFile), data); err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(dir, manifestFile), mdata); err != nil {
		return err
	}

	slog.Info("index persisted", "dir", dir, "chunks", manifest.Count, "bytes", len(data))
	return nil
}

// ReadManifest reads only the manifest of a persisted index.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return m, fmt.Errorf("%w: no index at %s (run build first)", models.ErrArtifactNotFound, dir)
		}
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: manifest: %w", models.ErrArtifactCorrupted, err)
	}
	if m.FormatVersion != FormatVersion {
		return m, fmt.Errorf("%w: unsupported format version %d", models.ErrArtifactCorrupted, m.FormatVersion)
	}
	return m, nil
}

// Load reads an index from dir and validates it against expectModel.
//
// A missing index yields models.ErrArtifactNotFound; a payload that fails
// checksum or schema validation yields models.ErrArtifactCorrupted; an index
// built with a different embedding model yields models.ErrModelMismatch.
func Load(dir, expectModel string) (*Index, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}

	if expectModel != "" && m.EmbeddingModelID != expectModel {
		return nil, fmt.Errorf("%w: index built with %q, configured model is %q (rebuild the index)",
			models.ErrModelMismatch, m.EmbeddingModelID, expectModel)
	}

	data, err := os.ReadFile(filepath.Join(dir, payloadFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: manifest present but payload missing", models.ErrArtifactCorrupted)
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != m.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", models.ErrArtifactCorrupted)
	}

	var p payload
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %w", models.ErrArtifactCorrupted, err)
	}
	if err := validatePayload(p, m); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrArtifactCorrupted, err)
	}

	slog.Debug("index loaded", "dir", dir, "chunks", len(p.Chunks), "model", p.EmbeddingModelID)

	return &Index{
		modelID:   p.EmbeddingModelID,
		dimension: p.Dimension,
		chunks:    p.Chunks,
		vectors:   p.Vectors,
	}, nil
}

func validatePayload(p payload, m Manifest) error {
	switch {
	case p.FormatVersion != m.FormatVersion:
		return fmt.Errorf("payload version %d, manifest version %d", p.FormatVersion, m.FormatVersion)
	case p.EmbeddingModelID != m.EmbeddingModelID:
		return fmt.Errorf("payload model %q, manifest model %q", p.EmbeddingModelID, m.EmbeddingModelID)
	case len(p.Chunks) != m.Count || len(p.Vectors) != m.Count:
		return fmt.Errorf("expected %d entries, got %d chunks and %d vectors", m.Count, len(p.Chunks), len(p.Vectors))
	case p.Dimension != m.Dimension || p.Dimension <= 0:
		return fmt.Errorf("invalid dimension %d", p.Dimension)
	}
	for i, v := range p.Vectors {
		if len(v) != p.Dimension {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), p.Dimension)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
