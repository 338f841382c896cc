package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	publicationBucket = "publications"
	// first seen and expiry, both unix seconds
	entryBytes = 16
)

var errBucketMissing = errors.New("publication bucket missing")

// boltStore implements Store on a single bbolt file.
type boltStore struct {
	db              *bolt.DB
	now             func() time.Time
	ttl             time.Duration
	cleanupInterval time.Duration

	cleanupMu   sync.Mutex
	lastCleanup time.Time
}

type entry struct {
	firstSeen time.Time
	expires   time.Time
}

func openBolt(path string, opts Options, now func() time.Time) (*boltStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(publicationBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltStore{
		db:              db,
		now:             now,
		ttl:             opts.TTL,
		cleanupInterval: opts.CleanupInterval,
		lastCleanup:     now(),
	}, nil
}

func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// SeenPublication reports whether key was marked and has not expired.
func (b *boltStore) SeenPublication(key string) (bool, error) {
	if b == nil || b.db == nil {
		return false, nil
	}
	now := b.now()
	if err := b.maybeCleanup(now); err != nil {
		return false, err
	}

	var seen bool
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(publicationBucket))
		if bucket == nil {
			return errBucketMissing
		}
		e, ok := decodeEntry(bucket.Get([]byte(key)))
		seen = ok && e.expires.After(now)
		return nil
	})
	return seen, err
}

// MarkPublication records key and extends its expiry. The first-seen time
// of a live entry is kept.
func (b *boltStore) MarkPublication(key string) error {
	if b == nil || b.db == nil {
		return nil
	}
	now := b.now()
	if err := b.maybeCleanup(now); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(publicationBucket))
		if bucket == nil {
			return errBucketMissing
		}
		e, ok := decodeEntry(bucket.Get([]byte(key)))
		if !ok || !e.expires.After(now) {
			e.firstSeen = now
		}
		e.expires = now.Add(b.ttl)
		return bucket.Put([]byte(key), encodeEntry(e))
	})
}

// maybeCleanup drops expired entries at most once per cleanup interval.
func (b *boltStore) maybeCleanup(now time.Time) error {
	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	if now.Sub(b.lastCleanup) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(publicationBucket))
		if bucket == nil {
			return errBucketMissing
		}
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			e, ok := decodeEntry(v)
			if !ok || !e.expires.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup = now
	}
	return err
}

func encodeEntry(e entry) []byte {
	buf := make([]byte, entryBytes)
	binary.BigEndian.PutUint64(buf[:8], uint64(e.firstSeen.Unix()))
	binary.BigEndian.PutUint64(buf[8:], uint64(e.expires.Unix()))
	return buf
}

func decodeEntry(value []byte) (entry, bool) {
	if len(value) != entryBytes {
		return entry{}, false
	}
	first := int64(binary.BigEndian.Uint64(value[:8]))
	exp := int64(binary.BigEndian.Uint64(value[8:]))
	if first <= 0 || exp <= 0 {
		return entry{}, false
	}
	return entry{firstSeen: time.Unix(first, 0), expires: time.Unix(exp, 0)}, true
}
