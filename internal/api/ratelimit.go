package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 10000
	idleClientTTL     = 10 * time.Minute
)

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	max     int
	clients map[string]*clientEntry
}

// newClientLimiter allows perMinute requests per client; zero or less disables limiting
func newClientLimiter(perMinute int) *clientLimiter {
	l := &clientLimiter{
		limit:   rate.Inf,
		burst:   1,
		max:     maxTrackedClients,
		clients: make(map[string]*clientEntry),
	}
	if perMinute > 0 {
		l.limit = rate.Every(time.Minute / time.Duration(perMinute))
		l.burst = perMinute
	}
	return l
}

func (l *clientLimiter) allow(key string, now time.Time) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= l.max {
			l.evict(now)
		}
		entry = &clientEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// evict drops idle clients and, when none are idle, the least recently seen
// ones until there is room for a new client. The caller holds mu.
func (l *clientLimiter) evict(now time.Time) {
	for key, entry := range l.clients {
		if now.Sub(entry.lastSeen) > idleClientTTL {
			delete(l.clients, key)
		}
	}

	for len(l.clients) >= l.max {
		var oldestKey string
		var oldest time.Time
		for key, entry := range l.clients {
			if oldestKey == "" || entry.lastSeen.Before(oldest) {
				oldestKey, oldest = key, entry.lastSeen
			}
		}
		delete(l.clients, oldestKey)
	}
}
