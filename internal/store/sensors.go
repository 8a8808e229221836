package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/matchmove/camdb/internal/cachedir"
	"github.com/matchmove/camdb/internal/domain"
)

var bucketSensors = []byte("sensors")

// SensorRecord is the cached sensor-mode list for one camera, with its
// own fingerprint so a refresh can detect an unchanged remote reply.
type SensorRecord struct {
	Modes       []domain.SensorMode `json:"modes"`
	Fingerprint string              `json:"fingerprint"`
	FetchedAt   time.Time           `json:"fetched_at"`
}

// SensorStore caches per-camera sensor-mode lists in a bbolt database
// next to the dataset files. The database is opened lazily and reopened
// if a cache-location override moves it.
type SensorStore struct {
	resolver *cachedir.Resolver
	logger   *slog.Logger

	mu     sync.Mutex
	db     *bolt.DB
	dbPath string
}

func NewSensorStore(resolver *cachedir.Resolver, logger *slog.Logger) *SensorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SensorStore{resolver: resolver, logger: logger}
}

// open ensures the database at the currently resolved location is open.
// Callers must hold s.mu.
func (s *SensorStore) open() (*bolt.DB, error) {
	dir, err := s.resolver.Dir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, sensorDBFile)

	if s.db != nil {
		if s.dbPath == path {
			return s.db, nil
		}
		// Location override moved the cache; reopen at the new path.
		s.db.Close()
		s.db = nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSensors)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	s.dbPath = path
	return db, nil
}

func sensorKey(cameraID int64) []byte {
	return []byte(strconv.FormatInt(cameraID, 10))
}

// Get returns the cached record for a camera, if present.
func (s *SensorStore) Get(cameraID int64) (SensorRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.open()
	if err != nil {
		s.logger.Debug("sensor cache unavailable", "error", err)
		return SensorRecord{}, false
	}

	var data []byte
	db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketSensors).Get(sensorKey(cameraID)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if data == nil {
		return SensorRecord{}, false
	}

	var rec SensorRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("discarding unreadable sensor record", "cameraID", cameraID, "error", err)
		return SensorRecord{}, false
	}
	return rec, true
}

// Save stores the sensor-mode list for a camera.
func (s *SensorStore) Save(cameraID int64, rec SensorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.open()
	if err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSensors).Put(sensorKey(cameraID), data)
	})
}

// Invalidate drops the cached record for one camera.
func (s *SensorStore) Invalidate(cameraID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.open()
	if err != nil {
		return
	}
	db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSensors).Delete(sensorKey(cameraID))
	})
}

// Close releases the underlying database. Callers that are about to
// remove the cache directory should Close first so the file handle does
// not outlive the file.
func (s *SensorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.dbPath = ""
	return err
}
