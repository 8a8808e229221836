// Package camsync decides when the on-disk camera cache is trustworthy
// and orchestrates the fetch client and cache store when it is not.
//
// Freshness is never time-based: a valid cache is Fresh until an
// explicit load or update action, and an update only rewrites the
// dataset when the remote content fingerprint actually changed.
package camsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/matchmove/camdb/internal/domain"
	"github.com/matchmove/camdb/internal/store"
)

// Engine orchestrates client + store. Concurrent identical refreshes
// are coalesced per dataset key, so at most one fetch per key is in
// flight at a time.
type Engine struct {
	client  domain.CatalogClient
	store   *store.Store
	sensors *store.SensorStore
	logger  *slog.Logger

	group singleflight.Group
	now   func() time.Time
}

func NewEngine(client domain.CatalogClient, st *store.Store, sensors *store.SensorStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:  client,
		store:   st,
		sensors: sensors,
		logger:  logger,
		now:     time.Now,
	}
}

// fetched carries one coalesced camera-list retrieval.
type fetched struct {
	cameras     []domain.Camera
	data        []byte
	fingerprint string
}

func (e *Engine) fetchCameras(ctx context.Context) (*fetched, error) {
	v, err, shared := e.group.Do("cameras", func() (interface{}, error) {
		cameras, err := e.client.FetchCameras(ctx)
		if err != nil {
			return nil, err
		}
		data, err := store.EncodeDataset(cameras)
		if err != nil {
			return nil, fmt.Errorf("encode camera dataset: %w", err)
		}
		return &fetched{cameras: cameras, data: data, fingerprint: store.Fingerprint(data)}, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		e.logger.Debug("coalesced concurrent camera fetch")
	}
	return v.(*fetched), nil
}

// LoadCameras implements the "Load All Cameras" action: it always
// fetches from the API, persists the result, and returns it.
func (e *Engine) LoadCameras(ctx context.Context) (domain.SyncResult, error) {
	res, err := e.fetchCameras(ctx)
	if err != nil {
		e.logger.Error("failed to load cameras", "error", err)
		return domain.SyncResult{}, err
	}
	return e.persist(res)
}

// Cameras returns the camera list, preferring a valid cache. An absent
// or corrupt cache triggers a fetch-and-persist; corruption is reported
// distinctly in the log but handled exactly like a miss.
func (e *Engine) Cameras(ctx context.Context) (domain.SyncResult, error) {
	cameras, meta, err := e.store.Read()
	if err == nil {
		e.logger.Debug("camera cache fresh", "count", len(cameras), "updated_at", meta.UpdatedAt)
		return domain.SyncResult{Cameras: cameras, Count: len(cameras), FromCache: true, Meta: meta}, nil
	}

	switch {
	case errors.Is(err, domain.ErrCacheNotFound):
		e.logger.Debug("camera cache absent, fetching")
	case errors.Is(err, domain.ErrCacheCorrupt):
		e.logger.Warn("camera cache corrupt, refetching", "error", err)
	default:
		return domain.SyncResult{}, err
	}

	res, fetchErr := e.fetchCameras(ctx)
	if fetchErr != nil {
		e.logger.Error("failed to fetch cameras", "error", fetchErr)
		return domain.SyncResult{}, fetchErr
	}
	return e.persist(res)
}

// UseCached implements the "Use Cached Data" action: it never touches
// the network and fails when no valid cache exists, regardless of age.
func (e *Engine) UseCached() ([]domain.Camera, domain.CacheMetadata, error) {
	cameras, meta, err := e.store.Read()
	if err != nil {
		e.logger.Debug("cached data unavailable", "error", err)
		return nil, domain.CacheMetadata{}, err
	}
	e.logger.Debug("loaded cameras from cache", "count", len(cameras), "updated_at", meta.UpdatedAt)
	return cameras, meta, nil
}

// UpdateCache implements the "Update Cache" action: fetch, then compare
// fingerprints. An unchanged remote dataset only advances the metadata
// timestamp; the dataset bytes stay untouched and Changed is false. A
// failed fetch leaves the existing cache exactly as it was.
func (e *Engine) UpdateCache(ctx context.Context) (domain.SyncResult, error) {
	res, err := e.fetchCameras(ctx)
	if err != nil {
		e.logger.Error("cache update failed", "error", err)
		return domain.SyncResult{}, err
	}

	if info, infoErr := e.store.Info(); infoErr == nil && info.Fingerprint == res.fingerprint {
		now := e.now()
		if touchErr := e.store.Touch(now); touchErr == nil {
			e.logger.Info("cache already up to date", "fingerprint", res.fingerprint)
			info.UpdatedAt = now
			return domain.SyncResult{
				Cameras: res.cameras,
				Count:   len(res.cameras),
				Changed: false,
				Meta:    info,
			}, nil
		}
		// Metadata matched but the pair is not intact; fall through to a
		// full write.
	}

	return e.persist(res)
}

func (e *Engine) persist(res *fetched) (domain.SyncResult, error) {
	meta := domain.CacheMetadata{
		Version:     store.CacheVersion,
		Fingerprint: res.fingerprint,
		UpdatedAt:   e.now(),
		SizeBytes:   int64(len(res.data)),
	}
	if err := e.store.Write(res.data, meta); err != nil {
		e.logger.Error("failed to persist camera cache", "error", err)
		return domain.SyncResult{}, err
	}
	e.logger.Info("camera cache refreshed", "count", len(res.cameras), "bytes", meta.SizeBytes)
	return domain.SyncResult{
		Cameras: res.cameras,
		Count:   len(res.cameras),
		Changed: true,
		Meta:    meta,
	}, nil
}

// SensorModes returns the sensor modes for one camera. The cached list
// is used unless refresh is set or nothing is cached; a refresh that
// fetches identical data keeps the stored record untouched. A failed
// fetch never disturbs an existing record.
func (e *Engine) SensorModes(ctx context.Context, cameraID int64, refresh bool) ([]domain.SensorMode, error) {
	if !refresh {
		if rec, ok := e.sensors.Get(cameraID); ok {
			e.logger.Debug("sensor cache hit", "cameraID", cameraID, "count", len(rec.Modes))
			return rec.Modes, nil
		}
	}

	key := "sensors:" + strconv.FormatInt(cameraID, 10)
	v, err, shared := e.group.Do(key, func() (interface{}, error) {
		modes, err := e.client.FetchSensorModes(ctx, cameraID)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(modes)
		if err != nil {
			return nil, fmt.Errorf("encode sensor modes: %w", err)
		}
		fp := store.Fingerprint(data)

		if rec, ok := e.sensors.Get(cameraID); ok && rec.Fingerprint == fp {
			e.logger.Debug("sensor modes unchanged", "cameraID", cameraID)
			return modes, nil
		}
		rec := store.SensorRecord{Modes: modes, Fingerprint: fp, FetchedAt: e.now()}
		if err := e.sensors.Save(cameraID, rec); err != nil {
			// Cache failure is not fatal for the caller; the fetched data
			// is still good.
			e.logger.Warn("failed to cache sensor modes", "cameraID", cameraID, "error", err)
		}
		return modes, nil
	})
	if err != nil {
		e.logger.Error("failed to fetch sensor modes", "cameraID", cameraID, "error", err)
		return nil, err
	}
	if shared {
		e.logger.Debug("coalesced concurrent sensor fetch", "cameraID", cameraID)
	}
	return v.([]domain.SensorMode), nil
}

// Info reports the cache metadata without loading the dataset.
func (e *Engine) Info() (domain.CacheMetadata, error) {
	return e.store.Info()
}

// Clear removes all cached data. The sensor database is closed first so
// its file can be deleted along with the dataset files.
func (e *Engine) Clear() error {
	if err := e.sensors.Close(); err != nil {
		e.logger.Warn("failed to close sensor cache", "error", err)
	}
	return e.store.Clear()
}
