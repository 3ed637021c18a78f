// Package ingest orchestrates the document ingestion pipeline:
// cleanup, stage, extract, chunk, embed. Steps run strictly in order
// within one call; each step commits independently and a failure aborts
// the remaining steps without rolling back completed ones.
package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuquery/backend/internal/ai"
	"github.com/docuquery/backend/internal/models"
)

// BlobStage is the staged-blob storage the pipeline writes through.
type BlobStage interface {
	Put(fileName string, r io.Reader) (*models.BlobInfo, error)
	Path(fileName string) (string, error)
	Remove(fileName string) error
}

// Catalog is the document/chunk persistence the pipeline writes through.
// Writes that carry a generation are conditioned on the run still holding
// it; a concurrent rebuild of the same file name aborts the stale run.
type Catalog interface {
	DeleteDocument(ctx context.Context, fileName string) error
	ClaimGeneration(ctx context.Context, fileName string) (int64, error)
	ReleaseClaim(ctx context.Context, fileName string, generation int64) error
	SetParsedText(ctx context.Context, fileName string, generation int64, text string) error
	InsertChunks(ctx context.Context, fileName string, generation int64, texts []string) error
	ChunksMissingEmbedding(ctx context.Context, fileName string) ([]models.Chunk, error)
	SetChunkEmbedding(ctx context.Context, fileName string, chunkID int, vector []float32) error
	SetStatus(ctx context.Context, fileName string, generation int64, status models.DocumentStatus) error
}

// Pipeline runs the replace-on-reprocess ingestion flow for one file at a
// time. Calls for different file names are fully independent.
type Pipeline struct {
	blobs      BlobStage
	catalog    Catalog
	extractor  ai.Extractor
	embedder   ai.Embedder
	dimensions int
	logger     *zap.Logger
}

// NewPipeline creates an ingestion pipeline. dimensions is the expected
// embedding vector size; vectors of any other size fail the embed step.
func NewPipeline(blobs BlobStage, catalog Catalog, extractor ai.Extractor, embedder ai.Embedder, dimensions int, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		blobs:      blobs,
		catalog:    catalog,
		extractor:  extractor,
		embedder:   embedder,
		dimensions: dimensions,
		logger:     logger.With(zap.String("component", "ingest")),
	}
}

// Ingest runs the full pipeline for fileName, calling progress with one
// human-readable line per completed step, as it happens. On failure the
// remaining steps are skipped and the document keeps whatever status the
// last completed step produced.
func (p *Pipeline) Ingest(ctx context.Context, fileName string, r io.Reader, progress func(string)) error {
	runID := uuid.New().String()
	log := p.logger.With(zap.String("run", runID), zap.String("file", fileName))
	emit := func(format string, args ...interface{}) {
		if progress != nil {
			progress(fmt.Sprintf(format, args...))
		}
	}

	log.Info("ingestion started")

	// Step 1: cleanup. Reprocessing is a destructive replace; absence of
	// prior state is not an error.
	if err := p.cleanup(ctx, fileName); err != nil {
		log.Error("cleanup failed", zap.Error(err))
		return fmt.Errorf("cleanup: %w", err)
	}
	emit("cleaned up any previous version of %q", fileName)

	generation, err := p.catalog.ClaimGeneration(ctx, fileName)
	if err != nil {
		log.Error("claim failed", zap.Error(err))
		return fmt.Errorf("stage: %w", err)
	}
	log = log.With(zap.Int64("generation", generation))

	// Step 2: stage the raw bytes. Until extraction persists text, the
	// claim row is bookkeeping only; a failure here releases it so the
	// catalog shows no trace of the run.
	info, err := p.blobs.Put(fileName, r)
	if err != nil {
		log.Error("staging failed", zap.Error(err))
		p.releaseClaim(ctx, fileName, generation, log)
		return fmt.Errorf("stage: %w", err)
	}
	emit("staged %d bytes for %q", info.Size, fileName)

	// Step 3: extract text.
	text, err := p.extract(ctx, fileName, generation)
	if err != nil {
		log.Error("extraction failed", zap.Error(err))
		p.releaseClaim(ctx, fileName, generation, log)
		return fmt.Errorf("extract: %w", err)
	}
	emit("extracted %d characters from %q", len(text), fileName)

	// Step 4: chunk into fixed windows and bulk-insert the survivors.
	segments := SplitWindows(text)
	if err := p.catalog.InsertChunks(ctx, fileName, generation, segments); err != nil {
		log.Error("chunking failed", zap.Error(err))
		return fmt.Errorf("chunk: %w", err)
	}
	if err := p.catalog.SetStatus(ctx, fileName, generation, models.StatusChunked); err != nil {
		log.Error("chunking failed", zap.Error(err))
		return fmt.Errorf("chunk: %w", err)
	}
	emit("indexed %d chunks for %q", len(segments), fileName)

	// Step 5: embed every chunk still lacking a vector. Re-running after a
	// partial failure only embeds what is missing.
	embedded, err := p.embedMissing(ctx, fileName, log)
	if err != nil {
		log.Error("embedding failed", zap.Error(err))
		return fmt.Errorf("embed: %w", err)
	}
	if err := p.catalog.SetStatus(ctx, fileName, generation, models.StatusEmbedded); err != nil {
		log.Error("embedding failed", zap.Error(err))
		return fmt.Errorf("embed: %w", err)
	}
	emit("embedded %d chunks for %q", embedded, fileName)

	emit("ingestion complete for %q", fileName)
	log.Info("ingestion complete", zap.Int("chunks", len(segments)))
	return nil
}

// Remove performs cleanup alone: the only supported hard-delete path.
func (p *Pipeline) Remove(ctx context.Context, fileName string, progress func(string)) error {
	log := p.logger.With(zap.String("file", fileName))

	if err := p.cleanup(ctx, fileName); err != nil {
		log.Error("removal failed", zap.Error(err))
		return fmt.Errorf("cleanup: %w", err)
	}

	if progress != nil {
		progress(fmt.Sprintf("removed %q and all of its chunks", fileName))
	}
	log.Info("document removed")
	return nil
}

// extract reads the staged blob, runs the extractor, and persists the
// resulting text under the run's generation.
func (p *Pipeline) extract(ctx context.Context, fileName string, generation int64) (string, error) {
	blobPath, err := p.blobs.Path(fileName)
	if err != nil {
		return "", err
	}
	text, err := p.extractor.ExtractText(ctx, blobPath)
	if err != nil {
		return "", err
	}
	if err := p.catalog.SetParsedText(ctx, fileName, generation, text); err != nil {
		return "", err
	}
	return text, nil
}

// releaseClaim is best effort: the run is already failing, so a release
// error is logged and otherwise swallowed.
func (p *Pipeline) releaseClaim(ctx context.Context, fileName string, generation int64, log *zap.Logger) {
	if err := p.catalog.ReleaseClaim(ctx, fileName, generation); err != nil {
		log.Warn("claim release failed", zap.Error(err))
	}
}

func (p *Pipeline) cleanup(ctx context.Context, fileName string) error {
	if err := p.catalog.DeleteDocument(ctx, fileName); err != nil {
		return err
	}
	return p.blobs.Remove(fileName)
}

func (p *Pipeline) embedMissing(ctx context.Context, fileName string, log *zap.Logger) (int, error) {
	missing, err := p.catalog.ChunksMissingEmbedding(ctx, fileName)
	if err != nil {
		return 0, err
	}

	for _, chunk := range missing {
		vector, err := p.embedder.EmbedText(ctx, chunk.Text)
		if err != nil {
			return 0, fmt.Errorf("chunk %d: %w", chunk.ChunkID, err)
		}
		if p.dimensions > 0 && len(vector) != p.dimensions {
			return 0, fmt.Errorf("chunk %d: embedding has %d dimensions, want %d", chunk.ChunkID, len(vector), p.dimensions)
		}
		if err := p.catalog.SetChunkEmbedding(ctx, fileName, chunk.ChunkID, vector); err != nil {
			return 0, fmt.Errorf("chunk %d: %w", chunk.ChunkID, err)
		}
	}

	log.Debug("embeddings computed", zap.Int("count", len(missing)))
	return len(missing), nil
}
