package monitor

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"

	"QuadPilot/internal/model"
)

var (
	bucketEvents = []byte("events")
	bucketAlerts = []byte("alerts")
)

// Store persists events and alerts in BoltDB, newest last. Each bucket is
// pruned to the configured retention count on insert.
type Store struct {
	db     *bbolt.DB
	retain int
	seq    atomic.Uint64
}

// OpenStore opens (or creates) the database at path.
func OpenStore(path string, retain int) (*Store, error) {
	db, err := bbolt.Open(path, 0o666, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketEvents, bucketAlerts} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init store buckets: %w", err)
	}
	return &Store{db: db, retain: retain}, nil
}

// key builds a time-ordered unique key; the sequence suffix breaks same-instant
// ties.
func (s *Store) key(ts time.Time) []byte {
	return []byte(fmt.Sprintf("%020d-%08d", ts.UnixNano(), s.seq.Add(1)))
}

// AppendEvent persists one dispatch event.
func (s *Store) AppendEvent(ev model.Event) error {
	return s.append(bucketEvents, s.key(ev.Timestamp), ev)
}

// AppendAlert persists one raised alert.
func (s *Store) AppendAlert(al Alert) error {
	return s.append(bucketAlerts, s.key(al.Timestamp), al)
}

func (s *Store) append(bucket, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bk := tx.Bucket(bucket)
		if err := bk.Put(key, b); err != nil {
			return err
		}
		return pruneOldest(bk, s.retain)
	})
}

// pruneOldest trims the bucket down to retain entries from the front.
func pruneOldest(bk *bbolt.Bucket, retain int) error {
	count := 0
	c := bk.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		count++
	}
	for excess := count - retain; excess > 0; excess-- {
		k, _ := c.First()
		if k == nil {
			break
		}
		if err := bk.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// RecentEvents returns up to n events, newest first.
func (s *Store) RecentEvents(n int) ([]model.Event, error) {
	var out []model.Event
	err := s.scanNewest(bucketEvents, n, func(v []byte) error {
		var ev model.Event
		if err := json.Unmarshal(v, &ev); err != nil {
			return err
		}
		out = append(out, ev)
		return nil
	})
	return out, err
}

// RecentAlerts returns up to n alerts, newest first.
func (s *Store) RecentAlerts(n int) ([]Alert, error) {
	var out []Alert
	err := s.scanNewest(bucketAlerts, n, func(v []byte) error {
		var al Alert
		if err := json.Unmarshal(v, &al); err != nil {
			return err
		}
		out = append(out, al)
		return nil
	})
	return out, err
}

func (s *Store) scanNewest(bucket []byte, n int, fn func([]byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, v := c.Last(); k != nil && n > 0; k, v = c.Prev() {
			if err := fn(v); err != nil {
				return err
			}
			n--
		}
		return nil
	})
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
