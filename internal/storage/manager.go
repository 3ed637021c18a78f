package storage

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/docuquery/backend/internal/models"
)

// Store defines the interface for staged blob storage. Blobs are keyed by
// the exact uploaded file name; putting an existing name overwrites the
// previous blob without versioning.
type Store interface {
	Put(fileName string, r io.Reader) (*models.BlobInfo, error)
	Stat(fileName string) (*models.BlobInfo, error)
	Path(fileName string) (string, error)
	Remove(fileName string) error
}

// LocalStore implements Store using the local filesystem. Each blob is
// stored under an encoding of its file name alongside a msgpack metadata
// sidecar. Writes go through a temp file and rename so readers never
// observe a partial blob.
type LocalStore struct {
	mu      sync.RWMutex
	blobDir string
}

// NewLocalStore creates a new LocalStore rooted at blobDir.
func NewLocalStore(blobDir string) (*LocalStore, error) {
	if err := os.MkdirAll(blobDir, 0755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}

	return &LocalStore{blobDir: blobDir}, nil
}

// Put stages the bytes under fileName, replacing any existing blob.
func (s *LocalStore) Put(fileName string, r io.Reader) (*models.BlobInfo, error) {
	if fileName == "" {
		return nil, fmt.Errorf("file name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.blobDir, "stage-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("writing blob: %w", err)
	}

	if err := os.Rename(tmpPath, s.blobPath(fileName)); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("publishing blob: %w", err)
	}

	info := &models.BlobInfo{
		Ref:        uuid.New().String(),
		FileName:   fileName,
		Size:       size,
		SHA256:     hex.EncodeToString(hash.Sum(nil)),
		UploadedAt: time.Now(),
	}

	if err := s.writeSidecar(fileName, info); err != nil {
		return nil, err
	}

	return info, nil
}

// Stat returns the metadata sidecar for a staged blob.
func (s *LocalStore) Stat(fileName string) (*models.BlobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.metaPath(fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %s", fileName)
		}
		return nil, fmt.Errorf("reading blob metadata: %w", err)
	}

	var info models.BlobInfo
	if err := msgpack.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decoding blob metadata: %w", err)
	}

	return &info, nil
}

// Path returns the absolute path to a staged blob.
func (s *LocalStore) Path(fileName string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.blobPath(fileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("blob not found: %s", fileName)
		}
		return "", fmt.Errorf("checking blob: %w", err)
	}

	return path, nil
}

// Remove deletes the blob and its sidecar. Removing an absent blob is not
// an error, so pipeline cleanup stays idempotent.
func (s *LocalStore) Remove(fileName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.blobPath(fileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob: %w", err)
	}
	if err := os.Remove(s.metaPath(fileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob metadata: %w", err)
	}

	return nil
}

func (s *LocalStore) writeSidecar(fileName string, info *models.BlobInfo) error {
	data, err := msgpack.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding blob metadata: %w", err)
	}

	if err := os.WriteFile(s.metaPath(fileName), data, 0644); err != nil {
		return fmt.Errorf("writing blob metadata: %w", err)
	}

	return nil
}

// encodeName maps an arbitrary file name to a filesystem-safe key while
// preserving case and whitespace sensitivity exactly.
func encodeName(fileName string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(fileName))
}

func (s *LocalStore) blobPath(fileName string) string {
	return filepath.Join(s.blobDir, encodeName(fileName)+".blob")
}

func (s *LocalStore) metaPath(fileName string) string {
	return filepath.Join(s.blobDir, encodeName(fileName)+".meta")
}
