package zap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/eko/gocache/store"
	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/buntdb"
)

const (
	DefaultRetention = 24 * time.Hour
	keyPrefix        = "zap-request:"
	cacheExpiration  = 5 * time.Minute
)

var ErrNotFound = errors.New("zap request not found")

// Store keeps the verbatim zap requests that were turned into invoices.
// Invoices addressed by description hash do not carry the request back from
// phoenixd, so the reconciler falls back to this copy.
type Store struct {
	db        *buntdb.DB
	cache     *store.GoCacheStore
	retention time.Duration
}

// OpenStore opens the bunt database at path. ":memory:" keeps everything in
// memory.
func OpenStore(path string, retention time.Duration) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("could not create zap store directory: %w", err)
		}
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open zap store %s: %w", path, err)
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		db:        db,
		cache:     store.NewGoCache(gocache.New(cacheExpiration, 2*cacheExpiration), nil),
		retention: retention,
	}, nil
}

// Save stores raw under the zap request's event id until retention passes.
func (s *Store) Save(eventID, raw string) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(keyPrefix+eventID, raw, &buntdb.SetOptions{Expires: true, TTL: s.retention})
		return err
	})
	if err != nil {
		log.Errorf("[Bunt] could not set zap request %s: %v", eventID, err)
		return err
	}
	log.Tracef("[Bunt] set zap request %s", eventID)
	return s.cache.Set(eventID, raw, &store.Options{Expiration: cacheExpiration})
}

// Load returns the zap request saved for eventID or ErrNotFound.
func (s *Store) Load(eventID string) (string, error) {
	if cached, err := s.cache.Get(eventID); err == nil {
		log.Tracef("[Bunt Cache] get zap request %s", eventID)
		return cached.(string), nil
	}
	var raw string
	err := s.db.View(func(tx *buntdb.Tx) error {
		var err error
		raw, err = tx.Get(keyPrefix + eventID)
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	log.Tracef("[Bunt] get zap request %s", eventID)
	return raw, s.cache.Set(eventID, raw, &store.Options{Expiration: cacheExpiration})
}

func (s *Store) Close() error {
	return s.db.Close()
}
