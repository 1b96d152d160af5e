// Package orphans tracks ad-hoc files indexed outside any registered
// project: a bbolt bucket caps how many are carried and evicts entries past
// the retention horizon so their subgraphs can be removed.
package orphans

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("orphans")

// ErrCapacity is returned when the tracker is full.
var ErrCapacity = fmt.Errorf("orphan file capacity reached")

// entry is the stored bookkeeping per orphan file.
type entry struct {
	FirstSeen   time.Time `json:"firstSeen"`
	LastTouched time.Time `json:"lastTouched"`
}

// Tracker is the bbolt-backed orphan registry.
type Tracker struct {
	db            *bolt.DB
	maxFiles      int
	retentionDays int
	logger        *logrus.Logger
}

// Open creates or opens the tracker database.
func Open(path string, maxFiles, retentionDays int, logger *logrus.Logger) (*Tracker, error) {
	if maxFiles <= 0 {
		maxFiles = 100
	}
	if retentionDays <= 0 {
		retentionDays = 7
	}
	if logger == nil {
		logger = logrus.New()
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open orphan db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create orphan bucket: %w", err)
	}

	return &Tracker{db: db, maxFiles: maxFiles, retentionDays: retentionDays, logger: logger}, nil
}

// Touch records an orphan file, refreshing its last-touched time. New files
// beyond the capacity cap are refused with ErrCapacity.
func (t *Tracker) Touch(absPath string, now time.Time) error {
	return t.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		key := []byte(absPath)

		var e entry
		if raw := b.Get(key); raw != nil {
			if err := json.Unmarshal(raw, &e); err != nil {
				e = entry{FirstSeen: now}
			}
		} else {
			if b.Stats().KeyN >= t.maxFiles {
				return ErrCapacity
			}
			e.FirstSeen = now
		}
		e.LastTouched = now

		raw, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(key, raw)
	})
}

// Forget removes one file from the registry.
func (t *Tracker) Forget(absPath string) error {
	return t.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(absPath))
	})
}

// List returns every tracked path.
func (t *Tracker) List() ([]string, error) {
	var out []string
	err := t.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	return out, err
}

// EvictStale removes entries untouched for longer than the retention
// horizon and returns their paths so the caller can delete the subgraphs.
func (t *Tracker) EvictStale(now time.Time) ([]string, error) {
	horizon := now.AddDate(0, 0, -t.retentionDays)
	var evicted []string

	err := t.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		c := b.Cursor()
		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e entry
			if err := json.Unmarshal(v, &e); err != nil {
				stale = append(stale, append([]byte{}, k...))
				continue
			}
			if e.LastTouched.Before(horizon) {
				stale = append(stale, append([]byte{}, k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			evicted = append(evicted, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("evict stale orphans: %w", err)
	}

	if len(evicted) > 0 {
		t.logger.WithField("count", len(evicted)).Info("evicted stale orphan files")
	}
	return evicted, nil
}

// Close closes the database.
func (t *Tracker) Close() error {
	return t.db.Close()
}
