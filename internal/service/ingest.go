package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/raphaelgruber/ragbot/internal/models"
	"github.com/raphaelgruber/ragbot/internal/parser"
)

// IngestService turns a directory of documents into a chunk set.
type IngestService struct {
	chunkCfg parser.ChunkConfig
	modelID  string
	logger   *slog.Logger
}

// NewIngestService creates an ingest service. modelID is stamped on the chunk
// set so that a later build can refuse a different embedding model.
func NewIngestService(chunkCfg parser.ChunkConfig, modelID string, logger *slog.Logger) (*IngestService, error) {
	if err := chunkCfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{chunkCfg: chunkCfg, modelID: modelID, logger: logger}, nil
}

// IngestOptions configures document ingestion.
type IngestOptions struct {
	// Recursive processes subdirectories
	Recursive bool
	// Concurrency sets number of parallel workers (default 4)
	Concurrency int
}

// IngestResult summarizes an ingestion run.
type IngestResult struct {
	FilesProcessed int
	FilesSkipped   int
	ChunksCreated  int
	Sources        []string
	Errors         []string
}

// CollectFiles walks a directory and returns every supported document, sorted.
func (s *IngestService) CollectFiles(dirPath string, recursive bool) ([]string, error) {
	var files []string
	walkFn := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && !recursive && path != dirPath {
			return filepath.SkipDir
		}
		if !d.IsDir() && parser.IsSupported(path) {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.WalkDir(dirPath, walkFn); err != nil {
		return nil, fmt.Errorf("scan directory: %w", err)
	}
	slices.Sort(files)
	return files, nil
}

type ingested struct {
	doc    parser.Document
	chunks []models.Chunk
}

// IngestDirectory loads and chunks every document under dirPath.
//
// Documents that fail to load or chunk are reported in IngestResult.Errors and
// skipped; the run only fails when no document produced any chunk. Chunks are
// ordered by source id, then sequence index, independent of worker scheduling.
func (s *IngestService) IngestDirectory(ctx context.Context, dirPath string, opts IngestOptions) (models.ChunkSet, *IngestResult, error) {
	files, err := s.CollectFiles(dirPath, opts.Recursive)
	if err != nil {
		return models.ChunkSet{}, nil, err
	}
	if len(files) == 0 {
		return models.ChunkSet{}, nil, fmt.Errorf("%w: no documents found in %s", models.ErrEmptyDocument, dirPath)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	s.logger.Info("starting ingestion", "files", len(files), "concurrency", concurrency)

	var (
		filesProcessed atomic.Int32
		mu             sync.Mutex
		done           []ingested
		errs           []string
	)

	fileChan := make(chan string, len(files))
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for file := range fileChan {
				if ctx.Err() != nil {
					return
				}

				processed := filesProcessed.Add(1)
				s.logger.Debug("processing file", "worker", workerID, "file", filepath.Base(file), "progress", fmt.Sprintf("%d/%d", processed, len(files)))

				item, err := s.ingestFile(file)
				mu.Lock()
				if err != nil {
					s.logger.Warn("skipping document", "file", file, "error", err)
					errs = append(errs, fmt.Sprintf("%s: %v", file, err))
				} else {
					done = append(done, item)
				}
				mu.Unlock()
			}
		}(i)
	}

	for _, file := range files {
		fileChan <- file
	}
	close(fileChan)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return models.ChunkSet{}, nil, err
	}

	slices.SortFunc(done, func(a, b ingested) int {
		if c := strings.Compare(a.doc.SourceID, b.doc.SourceID); c != 0 {
			return c
		}
		return strings.Compare(a.doc.Path, b.doc.Path)
	})

	set := models.ChunkSet{EmbeddingModelID: s.modelID}
	result := &IngestResult{Errors: errs}
	seen := make(map[string]string)
	for _, item := range done {
		if prev, dup := seen[item.doc.SourceID]; dup {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: source id %q already used by %s", item.doc.Path, item.doc.SourceID, prev))
			continue
		}
		seen[item.doc.SourceID] = item.doc.Path
		set.Chunks = append(set.Chunks, item.chunks...)
		result.Sources = append(result.Sources, item.doc.SourceID)
	}
	result.FilesProcessed = len(result.Sources)
	result.FilesSkipped = len(files) - result.FilesProcessed
	result.ChunksCreated = len(set.Chunks)

	s.logger.Info("ingestion complete", "sources", len(result.Sources), "chunks", result.ChunksCreated, "errors", len(result.Errors))

	if len(set.Chunks) == 0 {
		return models.ChunkSet{}, result, fmt.Errorf("%w: no chunks produced from %d files", models.ErrEmptyDocument, len(files))
	}
	return set, result, nil
}

func (s *IngestService) ingestFile(path string) (ingested, error) {
	doc, err := parser.LoadDocument(path)
	if err != nil {
		return ingested{}, err
	}
	chunks, err := parser.ChunkText(doc.Text, doc.SourceID, s.chunkCfg)
	if err != nil {
		return ingested{}, err
	}
	return ingested{doc: doc, chunks: chunks}, nil
}

// SaveChunkSet writes the chunk-set artifact as indented JSON.
func SaveChunkSet(path string, set models.ChunkSet) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chunk set: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write chunk set: %w", err)
	}
	return nil
}

// LoadChunkSet reads the chunk-set artifact written by SaveChunkSet.
func LoadChunkSet(path string) (models.ChunkSet, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.ChunkSet{}, fmt.Errorf("%w: chunk set %s (run `ragbot ingest` first)", models.ErrArtifactNotFound, path)
	}
	if err != nil {
		return models.ChunkSet{}, fmt.Errorf("read chunk set: %w", err)
	}

	var set models.ChunkSet
	if err := json.Unmarshal(data, &set); err != nil {
		return models.ChunkSet{}, fmt.Errorf("%w: decode chunk set %s: %w", models.ErrArtifactCorrupted, path, err)
	}
	if set.EmbeddingModelID == "" {
		return models.ChunkSet{}, fmt.Errorf("%w: chunk set %s has no embedding_model_id", models.ErrArtifactCorrupted, path)
	}
	for i, c := range set.Chunks {
		if c.ID == "" || c.SourceID == "" {
			return models.ChunkSet{}, fmt.Errorf("%w: chunk %d of %s lacks id or source_id", models.ErrArtifactCorrupted, i, path)
		}
	}
	return set, nil
}

// Preview returns the first n chunks of set, trimmed to width runes each.
func Preview(set models.ChunkSet, n, width int) []string {
	n = min(n, len(set.Chunks))
	out := make([]string, 0, n)
	for _, c := range set.Chunks[:n] {
		text := strings.Join(strings.Fields(c.Text), " ")
		if r := []rune(text); width > 0 && len(r) > width {
			text = string(r[:width]) + "..."
		}
		out = append(out, fmt.Sprintf("[%s] %s", c.ID, text))
	}
	return out
}
