package camsync

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchmove/camdb/internal/cachedir"
	"github.com/matchmove/camdb/internal/domain"
	"github.com/matchmove/camdb/internal/store"
)

// stubClient is a controllable domain.CatalogClient.
type stubClient struct {
	mu      sync.Mutex
	cameras []domain.Camera
	err     error
	modes   map[int64][]domain.SensorMode

	fetches       atomic.Int32
	sensorFetches atomic.Int32
	release       chan struct{} // when set, fetches block until closed
}

func (s *stubClient) FetchCameras(ctx context.Context) ([]domain.Camera, error) {
	s.fetches.Add(1)
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Camera, len(s.cameras))
	copy(out, s.cameras)
	return out, nil
}

func (s *stubClient) FetchSensorModes(ctx context.Context, cameraID int64) ([]domain.SensorMode, error) {
	s.sensorFetches.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.modes[cameraID], nil
}

func (s *stubClient) setError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *stubClient) setCameras(cameras []domain.Camera) {
	s.mu.Lock()
	s.cameras = cameras
	s.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCameras() []domain.Camera {
	return []domain.Camera{
		{ID: 1, Make: "ARRI", Name: "Alexa Mini", Type: "cinema"},
		{ID: 2, Make: "RED", Name: "Komodo 6K", Type: "cinema"},
	}
}

func newTestEngine(t *testing.T, client *stubClient) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	resolver := cachedir.NewResolver()
	require.NoError(t, resolver.SetOverride(dir))

	st := store.NewStore(resolver, discardLogger())
	sensors := store.NewSensorStore(resolver, discardLogger())
	t.Cleanup(func() { sensors.Close() })

	return NewEngine(client, st, sensors, discardLogger()), dir
}

func TestLoadCamerasPersists(t *testing.T) {
	client := &stubClient{cameras: testCameras()}
	engine, _ := newTestEngine(t, client)

	res, err := engine.LoadCameras(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.True(t, res.Changed)
	assert.False(t, res.FromCache)
	assert.Equal(t, store.CacheVersion, res.Meta.Version)

	cameras, meta, err := engine.UseCached()
	require.NoError(t, err)
	assert.Equal(t, testCameras(), cameras)
	assert.Equal(t, res.Meta.Fingerprint, meta.Fingerprint)
}

func TestCamerasShortCircuitsOnFreshCache(t *testing.T) {
	client := &stubClient{cameras: testCameras()}
	engine, _ := newTestEngine(t, client)

	_, err := engine.LoadCameras(context.Background())
	require.NoError(t, err)

	res, err := engine.Cameras(context.Background())
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, int32(1), client.fetches.Load(), "fresh cache must not trigger a fetch")
}

func TestCamerasFetchesWhenAbsent(t *testing.T) {
	client := &stubClient{cameras: testCameras()}
	engine, _ := newTestEngine(t, client)

	res, err := engine.Cameras(context.Background())
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 2, res.Count)

	res, err = engine.Cameras(context.Background())
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, int32(1), client.fetches.Load())
}

func TestCamerasTreatsCorruptAsAbsent(t *testing.T) {
	client := &stubClient{cameras: testCameras()}
	engine, dir := newTestEngine(t, client)

	_, err := engine.LoadCameras(context.Background())
	require.NoError(t, err)

	// Flip a byte in the dataset so the fingerprint no longer matches.
	path := filepath.Join(dir, "camdb_cameras.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0644))

	res, err := engine.Cameras(context.Background())
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, int32(2), client.fetches.Load())

	// The refetch healed the cache.
	_, _, err = engine.UseCached()
	require.NoError(t, err)
}

func TestUseCachedNeverFetches(t *testing.T) {
	client := &stubClient{cameras: testCameras()}
	engine, _ := newTestEngine(t, client)

	_, _, err := engine.UseCached()
	require.ErrorIs(t, err, domain.ErrCacheNotFound)
	assert.Equal(t, int32(0), client.fetches.Load())
}

func TestUpdateCacheUnchangedTouchesTimestampOnly(t *testing.T) {
	client := &stubClient{cameras: testCameras()}
	engine, dir := newTestEngine(t, client)

	t0 := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return t0 }
	first, err := engine.LoadCameras(context.Background())
	require.NoError(t, err)

	before, err := os.ReadFile(filepath.Join(dir, "camdb_cameras.json"))
	require.NoError(t, err)

	t1 := t0.Add(time.Hour)
	engine.now = func() time.Time { return t1 }
	res, err := engine.UpdateCache(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Changed)
	assert.Equal(t, first.Meta.Fingerprint, res.Meta.Fingerprint)
	assert.True(t, res.Meta.UpdatedAt.Equal(t1))

	after, err := os.ReadFile(filepath.Join(dir, "camdb_cameras.json"))
	require.NoError(t, err)
	assert.Equal(t, before, after, "unchanged remote data must not rewrite the dataset")

	info, err := engine.Info()
	require.NoError(t, err)
	assert.True(t, info.UpdatedAt.Equal(t1))
}

func TestUpdateCacheRewritesOnChange(t *testing.T) {
	client := &stubClient{cameras: testCameras()}
	engine, _ := newTestEngine(t, client)

	first, err := engine.LoadCameras(context.Background())
	require.NoError(t, err)

	client.setCameras(append(testCameras(), domain.Camera{ID: 3, Make: "Sony", Name: "Venice 2", Type: "cinema"}))

	res, err := engine.UpdateCache(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 3, res.Count)
	assert.NotEqual(t, first.Meta.Fingerprint, res.Meta.Fingerprint)
}

func TestFailedRefreshPreservesCache(t *testing.T) {
	client := &stubClient{cameras: testCameras()}
	engine, _ := newTestEngine(t, client)

	_, err := engine.LoadCameras(context.Background())
	require.NoError(t, err)

	client.setError(&domain.FetchError{Kind: domain.FetchUnreachable, Op: "cameras", Err: context.DeadlineExceeded})

	_, err = engine.UpdateCache(context.Background())
	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)

	cameras, _, err := engine.UseCached()
	require.NoError(t, err)
	assert.Equal(t, testCameras(), cameras)
}

func TestConcurrentFetchesAreCoalesced(t *testing.T) {
	client := &stubClient{cameras: testCameras(), release: make(chan struct{})}
	engine, _ := newTestEngine(t, client)

	var wg sync.WaitGroup
	results := make([]domain.SyncResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.Cameras(context.Background())
		}(i)
	}

	// Let both goroutines reach the in-flight fetch before releasing it.
	time.Sleep(100 * time.Millisecond)
	close(client.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int32(1), client.fetches.Load(), "concurrent requests must share one fetch")
	assert.Equal(t, results[0].Count, results[1].Count)
}

func TestSensorModesCachedAfterFirstFetch(t *testing.T) {
	client := &stubClient{modes: map[int64][]domain.SensorMode{
		7: {{ID: 10, CameraID: 7, ModeName: "Open Gate", ResWidth: 4448, ResHeight: 3096, SensorWidth: 28.25}},
	}}
	engine, _ := newTestEngine(t, client)

	modes, err := engine.SensorModes(context.Background(), 7, false)
	require.NoError(t, err)
	require.Len(t, modes, 1)
	assert.Equal(t, int32(1), client.sensorFetches.Load())

	modes, err = engine.SensorModes(context.Background(), 7, false)
	require.NoError(t, err)
	require.Len(t, modes, 1)
	assert.Equal(t, int32(1), client.sensorFetches.Load(), "cached modes must not refetch")
}

func TestSensorModesRefreshSkipsRewriteWhenUnchanged(t *testing.T) {
	client := &stubClient{modes: map[int64][]domain.SensorMode{
		7: {{ID: 10, CameraID: 7, ModeName: "Open Gate", SensorWidth: 28.25}},
	}}
	engine, _ := newTestEngine(t, client)

	t0 := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return t0 }
	_, err := engine.SensorModes(context.Background(), 7, false)
	require.NoError(t, err)

	rec0, ok := engine.sensors.Get(7)
	require.True(t, ok)

	engine.now = func() time.Time { return t0.Add(time.Hour) }
	_, err = engine.SensorModes(context.Background(), 7, true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), client.sensorFetches.Load())

	rec1, ok := engine.sensors.Get(7)
	require.True(t, ok)
	assert.True(t, rec1.FetchedAt.Equal(rec0.FetchedAt), "identical data must not rewrite the record")
}

func TestSensorModesFetchFailureKeepsRecord(t *testing.T) {
	client := &stubClient{modes: map[int64][]domain.SensorMode{
		7: {{ID: 10, CameraID: 7, ModeName: "Open Gate", SensorWidth: 28.25}},
	}}
	engine, _ := newTestEngine(t, client)

	_, err := engine.SensorModes(context.Background(), 7, false)
	require.NoError(t, err)

	client.setError(&domain.FetchError{Kind: domain.FetchHTTPStatus, Op: "sensors", Status: 503})

	_, err = engine.SensorModes(context.Background(), 7, true)
	require.Error(t, err)

	// The cached record still serves.
	client.setError(nil)
	modes, err := engine.SensorModes(context.Background(), 7, false)
	require.NoError(t, err)
	assert.Len(t, modes, 1)
	assert.Equal(t, int32(2), client.sensorFetches.Load())
}

func TestClearThenUseCachedFails(t *testing.T) {
	client := &stubClient{cameras: testCameras()}
	engine, _ := newTestEngine(t, client)

	res, err := engine.LoadCameras(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	require.NoError(t, engine.Clear())

	_, _, err = engine.UseCached()
	require.ErrorIs(t, err, domain.ErrCacheNotFound)

	_, err = engine.Info()
	require.ErrorIs(t, err, domain.ErrCacheNotFound)
}
