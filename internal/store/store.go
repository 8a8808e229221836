// Package store persists the camera dataset and its metadata in the
// resolved cache directory. The on-disk layout is two JSON files: the
// dataset (a list of camera records) and a cache-info file carrying the
// format version, content fingerprint, refresh timestamp and byte size.
// Writes are committed with an atomic rename so a crash mid-write never
// leaves a readable half-written cache.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/matchmove/camdb/internal/cachedir"
	"github.com/matchmove/camdb/internal/domain"
)

// CacheVersion is the persisted cache format version. A stored cache
// with a different version fails validation.
const CacheVersion = "1.0"

// Cache file names
const (
	datasetFile  = "camdb_cameras.json"
	metadataFile = "camdb_cache_info.json"
	sensorDBFile = "camdb_sensors.db"
)

// Store reads and writes the camera dataset cache. The location is
// re-resolved on every operation so a cache-location override takes
// effect for all subsequent calls.
type Store struct {
	resolver *cachedir.Resolver
	logger   *slog.Logger
}

func NewStore(resolver *cachedir.Resolver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{resolver: resolver, logger: logger}
}

// EncodeDataset produces the canonical serialized form of a camera list.
// Fingerprints are always computed over these bytes.
func EncodeDataset(cameras []domain.Camera) ([]byte, error) {
	return json.MarshalIndent(cameras, "", "  ")
}

// Fingerprint returns the hex-encoded sha256 digest of the serialized
// dataset bytes.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *Store) paths() (dataset, metadata string, err error) {
	dir, err := s.resolver.Dir()
	if err != nil {
		return "", "", err
	}
	return filepath.Join(dir, datasetFile), filepath.Join(dir, metadataFile), nil
}

// Read loads and validates the cached dataset. It returns
// domain.ErrCacheNotFound if either file is absent, and
// domain.ErrCacheCorrupt if the dataset fails to parse, the cache
// version is unsupported, or the recomputed fingerprint does not match
// the stored one.
func (s *Store) Read() ([]domain.Camera, domain.CacheMetadata, error) {
	datasetPath, metadataPath, err := s.paths()
	if err != nil {
		return nil, domain.CacheMetadata{}, err
	}

	meta, err := readMetadata(metadataPath)
	if err != nil {
		return nil, domain.CacheMetadata{}, err
	}

	data, err := os.ReadFile(datasetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.CacheMetadata{}, fmt.Errorf("%w: dataset file missing", domain.ErrCacheNotFound)
		}
		return nil, domain.CacheMetadata{}, fmt.Errorf("%w: %w", domain.ErrCacheCorrupt, err)
	}

	if meta.Version != CacheVersion {
		return nil, domain.CacheMetadata{}, fmt.Errorf("%w: unsupported cache version %q", domain.ErrCacheCorrupt, meta.Version)
	}
	if fp := Fingerprint(data); fp != meta.Fingerprint {
		return nil, domain.CacheMetadata{}, fmt.Errorf("%w: fingerprint mismatch", domain.ErrCacheCorrupt)
	}

	var cameras []domain.Camera
	if err := json.Unmarshal(data, &cameras); err != nil {
		return nil, domain.CacheMetadata{}, fmt.Errorf("%w: %w", domain.ErrCacheCorrupt, err)
	}

	return cameras, meta, nil
}

// Write persists the serialized dataset and its metadata. The dataset is
// written to a temporary path first, then the metadata is committed,
// then the dataset is renamed into place, so a reader never observes
// metadata referencing a dataset that is not fully written.
func (s *Store) Write(data []byte, meta domain.CacheMetadata) error {
	datasetPath, metadataPath, err := s.paths()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCacheWrite, err)
	}

	if err := os.MkdirAll(filepath.Dir(datasetPath), 0755); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCacheWrite, err)
	}

	tmp := datasetPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCacheWrite, err)
	}

	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", domain.ErrCacheWrite, err)
	}
	if err := writeFileAtomic(metadataPath, metaData); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", domain.ErrCacheWrite, err)
	}

	if err := os.Rename(tmp, datasetPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", domain.ErrCacheWrite, err)
	}

	s.logger.Debug("camera cache written", "path", datasetPath, "bytes", len(data), "fingerprint", meta.Fingerprint)
	return nil
}

// Touch updates only the refresh timestamp in the metadata, leaving the
// dataset bytes untouched. It fails with domain.ErrCacheNotFound when
// either file is missing, so callers fall back to a full write.
func (s *Store) Touch(now time.Time) error {
	datasetPath, metadataPath, err := s.paths()
	if err != nil {
		return err
	}

	meta, err := readMetadata(metadataPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(datasetPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: dataset file missing", domain.ErrCacheNotFound)
		}
		return fmt.Errorf("%w: %w", domain.ErrCacheCorrupt, err)
	}

	meta.UpdatedAt = now
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCacheWrite, err)
	}
	if err := writeFileAtomic(metadataPath, metaData); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCacheWrite, err)
	}

	s.logger.Debug("camera cache touched", "updated_at", now)
	return nil
}

// Info performs a cheap metadata-only read for display purposes, without
// deserializing the dataset.
func (s *Store) Info() (domain.CacheMetadata, error) {
	_, metadataPath, err := s.paths()
	if err != nil {
		return domain.CacheMetadata{}, err
	}
	return readMetadata(metadataPath)
}

// Clear removes the dataset, metadata and sensor cache files. Clearing
// an already-empty cache is not an error.
func (s *Store) Clear() error {
	dir, err := s.resolver.Dir()
	if err != nil {
		return err
	}

	for _, name := range []string{datasetFile, metadataFile, sensorDBFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w", domain.ErrCacheWrite, err)
		}
	}

	s.logger.Info("camera cache cleared", "dir", dir)
	return nil
}

func readMetadata(path string) (domain.CacheMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.CacheMetadata{}, fmt.Errorf("%w: cache info missing", domain.ErrCacheNotFound)
		}
		return domain.CacheMetadata{}, fmt.Errorf("%w: %w", domain.ErrCacheCorrupt, err)
	}

	var meta domain.CacheMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.CacheMetadata{}, fmt.Errorf("%w: %w", domain.ErrCacheCorrupt, err)
	}
	return meta, nil
}

// writeFileAtomic writes data to a temporary file in the target
// directory and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
