package once

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
)

// Guard remembers keys for a while. Once succeeds only for the first caller
// of a key until the key expires.
type Guard struct {
	name string
	seen *gocache.Cache
	ttl  time.Duration
}

func New(name string, ttl time.Duration) *Guard {
	return &Guard{name: name, seen: gocache.New(ttl, ttl*2), ttl: ttl}
}

// Once returns an error if key was already consumed.
func (g *Guard) Once(key string) error {
	if err := g.seen.Add(key, time.Now(), g.ttl); err != nil {
		return fmt.Errorf("[%s] %s already consumed", g.name, key)
	}
	log.Tracef("[Once] %s consumed %s (len=%d)", g.name, key, g.seen.ItemCount())
	return nil
}

// Remove releases key so it can be consumed again.
func (g *Guard) Remove(key string) {
	g.seen.Delete(key)
}
