// Package rate limita por ventana fija los arranques de flujo públicos
// (forgot, resend). La clave la arma el caller; acá siempre es IP + path.
package rate

import (
	"context"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Result es el veredicto de un hit contra la ventana vigente.
type Result struct {
	Allowed    bool
	Remaining  int64         // hits que quedan en la ventana
	RetryAfter time.Duration // > 0 solo cuando el hit rebotó
}

// Limiter decide si un hit identificado por key entra en la ventana actual.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter cuenta hits con INCR sobre una clave por ventana. Varias
// réplicas del servicio comparten el mismo presupuesto.
type RedisLimiter struct {
	client *rdb.Client
	prefix string
	max    int64
	window time.Duration
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "tsrl:"
	}
	return &RedisLimiter{client: client, prefix: prefix, max: int64(max), window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.window)
	k := fmt.Sprintf("%s%s:%d", l.prefix, key, winStart.Unix())

	hits, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Result{}, err
	}
	// Primer hit de la ventana: le ponemos vencimiento para que Redis la
	// deseche sola cuando cierre.
	if hits == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return Result{}, err
		}
	}
	return verdict(hits, l.max, l.window-now.Sub(winStart)), nil
}

// verdict arma el Result a partir del conteo y de lo que resta de ventana.
// Compartido por los dos limiters para que respondan igual.
func verdict(hits, max int64, left time.Duration) Result {
	remaining := max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{Allowed: hits <= max, Remaining: remaining}
	if !res.Allowed {
		res.RetryAfter = left
		if res.RetryAfter <= 0 {
			res.RetryAfter = time.Second
		}
	}
	return res
}
