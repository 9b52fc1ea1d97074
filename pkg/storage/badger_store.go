package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/readerview/pkg/log"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

const (
	pageKeyPrefix = "page:"
	defaultTTL    = 10 * time.Minute
)

// BadgerStore implements PageCache on an in-memory badger database.
// Nothing is written to disk.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
	log *logrus.Entry
}

// NewBadgerStore opens an in-memory store whose entries live for ttl
// (10 minutes when ttl is not positive)
func NewBadgerStore(ttl time.Duration, logger *logrus.Entry) (*BadgerStore, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(log.NewBadgerLogrusAdapter(logger)).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open page cache: %v", utils.ErrDatabase, err)
	}
	logger.WithField("ttl", ttl).Debug("Page cache initialized")
	return &BadgerStore{db: db, ttl: ttl, log: logger}, nil
}

// Key derives the cache key for a fetch of target in the given mode
func Key(mode, target string) string {
	sum := sha256.Sum256([]byte(target))
	return mode + ":" + hex.EncodeToString(sum[:])
}

const maxConflictRetries = 10

// dbUpdate retries db.Update on badger.ErrConflict, which resolves quickly
// once the competing transaction commits
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("Page cache transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// Get implements PageCache
func (s *BadgerStore) Get(key string) (string, bool, error) {
	var body []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(pageKeyPrefix + key))
		if err != nil {
			return err
		}
		body, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: read %s: %v", utils.ErrDatabase, key, err)
	}
	return string(body), true, nil
}

// Put implements PageCache
func (s *BadgerStore) Put(key, body string) error {
	err := s.dbUpdate(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(pageKeyPrefix+key), []byte(body)).WithTTL(s.ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", utils.ErrDatabase, key, err)
	}
	return nil
}

// Len implements PageCache
func (s *BadgerStore) Len() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(pageKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count entries: %v", utils.ErrDatabase, err)
	}
	return count, nil
}

// RunGC implements PageCache. Expired entries are dropped by badger on
// compaction; the periodic value log GC returns their space.
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db.IsClosed() {
				return
			}
			for s.db.RunValueLogGC(0.5) == nil {
			}
		case <-ctx.Done():
			s.log.Debug("Page cache GC stopped")
			return
		}
	}
}

// Close implements PageCache
func (s *BadgerStore) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close page cache: %v", utils.ErrDatabase, err)
	}
	return nil
}
