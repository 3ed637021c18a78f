package index

import (
	"context"
	"fmt"
	"time"

	"database/sql/driver"

	"github.com/marcboeker/go-duckdb"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/docuquery/backend/internal/models"
)

// InsertChunks bulk-inserts the surviving segments for fileName using the
// DuckDB Appender, assigning contiguous 1-based chunk ids in slice order.
// The caller must still hold its generation. The generation check and the
// append run in one transaction that updates the claim row, so a concurrent
// rebuild of the same file conflicts at commit instead of interleaving with
// the append.
func (s *Store) InsertChunks(ctx context.Context, fileName string, generation int64, texts []string) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `BEGIN TRANSACTION`); err != nil {
		return fmt.Errorf("beginning chunk insert: %w", err)
	}
	rollback := func() {
		if _, err := conn.ExecContext(ctx, `ROLLBACK`); err != nil {
			s.logger.Error("rollback failed", zap.Error(err))
		}
	}

	res, err := conn.ExecContext(ctx, `
		UPDATE documents SET updated_at = ?
		WHERE file_name = ? AND generation = ?
	`, time.Now(), fileName, generation)
	if err != nil {
		rollback()
		return fmt.Errorf("checking generation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		rollback()
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if affected == 0 {
		rollback()
		return ErrStaleGeneration
	}

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to driver.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "chunks")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, text := range texts {
			// chunk_id ordinals are 1-based over surviving segments only.
			if err := appender.AppendRow(fileName, int32(i+1), text, nil); err != nil {
				return fmt.Errorf("failed to append chunk %d: %w", i+1, err)
			}
		}

		return appender.Flush()
	})
	if err != nil {
		rollback()
		return fmt.Errorf("appender error: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `COMMIT`); err != nil {
		return fmt.Errorf("committing chunk insert: %w", err)
	}

	s.logger.Debug("chunks inserted",
		zap.String("file", fileName),
		zap.Int("count", len(texts)))
	return nil
}

// ChunksMissingEmbedding returns the chunks of fileName whose embedding has
// not been computed yet, in chunk id order. Safe to re-run after a partial
// embed failure; already-embedded chunks are never returned again.
func (s *Store) ChunksMissingEmbedding(ctx context.Context, fileName string) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, chunk_text FROM chunks
		WHERE file_name = ? AND embedding IS NULL
		ORDER BY chunk_id
	`, fileName)
	if err != nil {
		return nil, fmt.Errorf("querying unembedded chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		c := models.Chunk{FileName: fileName}
		if err := rows.Scan(&c.ChunkID, &c.Text); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

// SetChunkEmbedding persists the embedding vector for one chunk.
func (s *Store) SetChunkEmbedding(ctx context.Context, fileName string, chunkID int, vector []float32) error {
	encoded, err := encodeEmbedding(vector)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE chunks SET embedding = ? WHERE file_name = ? AND chunk_id = ?
	`, encoded, fileName, chunkID)
	if err != nil {
		return fmt.Errorf("saving embedding: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetChunks returns all chunks of fileName in chunk id order, decoding any
// stored embeddings.
func (s *Store) GetChunks(ctx context.Context, fileName string) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, chunk_text, embedding FROM chunks
		WHERE file_name = ?
		ORDER BY chunk_id
	`, fileName)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		c := models.Chunk{FileName: fileName}
		var blob []byte
		if err := rows.Scan(&c.ChunkID, &c.Text, &blob); err != nil {
			return nil, err
		}
		if blob != nil {
			vector, err := decodeEmbedding(blob)
			if err != nil {
				return nil, err
			}
			c.Embedding = vector
		}
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

// EmbeddedChunks returns every chunk across the whole index that currently
// carries an embedding. This is the retrieval surface for the answering
// capability; documents mid-reindex contribute only their embedded chunks.
func (s *Store) EmbeddedChunks(ctx context.Context) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_name, chunk_id, chunk_text, embedding FROM chunks
		WHERE embedding IS NOT NULL
		ORDER BY file_name, chunk_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying embedded chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		var blob []byte
		if err := rows.Scan(&c.FileName, &c.ChunkID, &c.Text, &blob); err != nil {
			return nil, err
		}
		vector, err := decodeEmbedding(blob)
		if err != nil {
			return nil, err
		}
		c.Embedding = vector
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

// Embeddings are stored as msgpack-encoded float32 slices. The encoding is
// compact and round-trips exact bit patterns, which keeps the
// embed-at-most-once invariant checkable.
func encodeEmbedding(vector []float32) ([]byte, error) {
	data, err := msgpack.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("encoding embedding: %w", err)
	}
	return data, nil
}

func decodeEmbedding(data []byte) ([]float32, error) {
	var vector []float32
	if err := msgpack.Unmarshal(data, &vector); err != nil {
		return nil, fmt.Errorf("decoding embedding: %w", err)
	}
	return vector, nil
}
