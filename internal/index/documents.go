package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/docuquery/backend/internal/models"
)

// DeleteDocument removes the document row and all of its chunks. Deleting
// an absent document is not an error, so pipeline cleanup stays idempotent.
func (s *Store) DeleteDocument(ctx context.Context, fileName string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE file_name = ?`, fileName); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE file_name = ?`, fileName); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	s.logger.Debug("document deleted", zap.String("file", fileName))
	return nil
}

// ClaimGeneration inserts a fresh staged document row for fileName and
// returns the generation the calling pipeline run now holds. Every later
// write from that run is conditioned on the same generation, which rejects
// interleaved runs for the same file name.
func (s *Store) ClaimGeneration(ctx context.Context, fileName string) (int64, error) {
	var generation int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (file_name, parsed_text, status, generation, updated_at)
		VALUES (?, NULL, ?, nextval('doc_generation_seq'), ?)
		RETURNING generation
	`, fileName, string(models.StatusStaged), time.Now()).Scan(&generation)
	if err != nil {
		return 0, fmt.Errorf("claiming generation: %w", err)
	}

	return generation, nil
}

// ReleaseClaim removes the claim row created by ClaimGeneration, provided
// the caller still holds its generation and no parsed text was persisted.
// A run that fails before extraction completes leaves no catalog trace;
// releasing a claim that was already replaced or parsed is a no-op.
func (s *Store) ReleaseClaim(ctx context.Context, fileName string, generation int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM documents
		WHERE file_name = ? AND generation = ? AND parsed_text IS NULL
	`, fileName, generation)
	if err != nil {
		return fmt.Errorf("releasing claim: %w", err)
	}

	s.logger.Debug("claim released", zap.String("file", fileName))
	return nil
}

// SetParsedText persists the extraction result and advances the document to
// parsed. Safe to re-run for the same generation; the write is a plain
// upsert of the text column.
func (s *Store) SetParsedText(ctx context.Context, fileName string, generation int64, text string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET parsed_text = ?, status = ?, updated_at = ?
		WHERE file_name = ? AND generation = ?
	`, text, string(models.StatusParsed), time.Now(), fileName, generation)
	if err != nil {
		return fmt.Errorf("saving parsed text: %w", err)
	}

	return requireGenerationHeld(res)
}

// SetStatus advances the document status, conditioned on the caller still
// holding its generation.
func (s *Store) SetStatus(ctx context.Context, fileName string, generation int64, status models.DocumentStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, updated_at = ?
		WHERE file_name = ? AND generation = ?
	`, string(status), time.Now(), fileName, generation)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	return requireGenerationHeld(res)
}

// ListFileNames returns the distinct cataloged file names in lexicographic
// order. Only documents whose text has been extracted are listed; a claim
// row belonging to an in-flight or failed run is not part of the catalog.
// This is a pure read; every call reflects the latest committed state.
func (s *Store) ListFileNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT file_name FROM documents
		WHERE parsed_text IS NOT NULL
		ORDER BY file_name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing file names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// GetText returns the parsed text of a document, or ErrNotFound if the
// document is absent or not yet parsed.
func (s *Store) GetText(ctx context.Context, fileName string) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `
		SELECT parsed_text FROM documents
		WHERE file_name = ? AND parsed_text IS NOT NULL
	`, fileName).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading parsed text: %w", err)
	}

	return text, nil
}

// GetDocumentState returns the observable pipeline state of a document.
func (s *Store) GetDocumentState(ctx context.Context, fileName string) (*models.DocumentState, error) {
	state := &models.DocumentState{FileName: fileName}

	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT status, updated_at FROM documents WHERE file_name = ?
	`, fileName).Scan(&status, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	state.Status = models.DocumentStatus(status)

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(embedding) FROM chunks WHERE file_name = ?
	`, fileName).Scan(&state.ChunkCount, &state.EmbeddedCount)
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}

	return state, nil
}

func requireGenerationHeld(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleGeneration
	}
	return nil
}
