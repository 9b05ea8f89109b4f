// Package history persists a bounded per-service trend of resource
// samples to a BoltDB file, so the doctor subcommand can show recent
// CPU/memory movement. One bucket per service, fixed-length ring.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// maxSamples bounds how many points are retained per service bucket.
const maxSamples = 120

var rootBucket = []byte("service_samples")

// Sample is one point on a service's resource trend line.
type Sample struct {
	Timestamp int64   `json:"ts"`
	CPU       float32 `json:"cpu"`
	Memory    uint64  `json:"mem"`
}

// Store is a BoltDB-backed ring of recent Sample values per service key.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the metrics history database at path for the
// daemon's own writer (the only process that calls Append).
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open metrics history: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init metrics history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenReadOnly opens the metrics history database for a reader (the
// `doctor` subcommand) that only ever reads trend data and must not
// contend with the daemon's own writer for the bucket-creation lock.
func OpenReadOnly(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("open metrics history: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func bucketKey(app, service string) []byte {
	return []byte(app + "/" + service)
}

// Append records one sample, dropping the oldest once a service's bucket
// exceeds maxSamples entries.
func (s *Store) Append(app, service string, sample Sample) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.Bucket(rootBucket).CreateBucketIfNotExists(bucketKey(app, service))
		if err != nil {
			return err
		}

		data, err := json.Marshal(sample)
		if err != nil {
			return err
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		if err := bucket.Put(seqKey(seq), data); err != nil {
			return err
		}

		return pruneOldest(bucket, maxSamples)
	})
}

// Recent returns the last n samples for a service, oldest first.
func (s *Store) Recent(app, service string, n int) ([]Sample, error) {
	var out []Sample
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(rootBucket)
		if root == nil {
			return nil
		}
		bucket := root.Bucket(bucketKey(app, service))
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()
		var all []Sample
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var sample Sample
			if err := json.Unmarshal(v, &sample); err != nil {
				continue
			}
			all = append(all, sample)
		}
		if n < len(all) {
			all = all[len(all)-n:]
		}
		out = all
		return nil
	})
	return out, err
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func pruneOldest(bucket *bolt.Bucket, keep int) error {
	// Count through a cursor: Bucket.Stats reads committed pages only and
	// would miss the sample put earlier in this same transaction.
	c := bucket.Cursor()
	count := 0
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		count++
	}
	if count <= keep {
		return nil
	}
	toDelete := count - keep
	for k, _ := c.First(); k != nil && toDelete > 0; k, _ = c.Next() {
		// Cursor.Delete keeps the iteration valid; Bucket.Delete would not.
		if err := c.Delete(); err != nil {
			return err
		}
		toDelete--
	}
	return nil
}
