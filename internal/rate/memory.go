package rate

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter: mismo fixed window que RedisLimiter pero en proceso,
// sobre go-cache (el janitor poda las ventanas viejas). Para deploys de
// un solo nodo o tests.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	c *gocache.Cache
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:    int64(max),
		Window: window,
		c:      gocache.New(window, time.Minute),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)
	k := fmt.Sprintf("%s:%d", key, winStart.Unix())

	// Add falla si la clave ya existe: así el primer hit fija la ventana.
	if err := l.c.Add(k, int64(1), l.Window); err != nil {
		if _, incErr := l.c.IncrementInt64(k, 1); incErr != nil {
			// la ventana expiró entre Add e Increment; reintentar como primer hit
			l.c.Set(k, int64(1), l.Window)
		}
	}

	var hits int64 = 1
	if v, ok := l.c.Get(k); ok {
		if n, ok := v.(int64); ok {
			hits = n
		}
	}
	return verdict(hits, l.Max, l.Window-now.Sub(winStart)), nil
}
