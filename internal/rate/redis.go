package rate

import (
	"context"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// RedisCounter: fixed window compartido entre instancias.
// SET NX PX abre la ventana (solo si no existe), INCR cuenta y PTTL da el resto,
// todo en una transacción MULTI.
type RedisCounter struct {
	Client *rdb.Client
	Prefix string
}

func NewRedisCounter(client *rdb.Client, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisCounter{Client: client, Prefix: prefix}
}

func (r *RedisCounter) Hit(ctx context.Context, key string, win time.Duration) (int64, time.Time, error) {
	k := r.Prefix + key

	pipe := r.Client.TxPipeline()
	pipe.SetNX(ctx, k, 0, win)
	incr := pipe.Incr(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, err
	}

	rest := ttl.Val()
	if rest < 0 {
		// la clave quedó sin TTL (no debería pasar): forzar la ventana
		_ = r.Client.PExpire(ctx, k, win).Err()
		rest = win
	}
	return incr.Val(), time.Now().Add(rest), nil
}
