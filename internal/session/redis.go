package session

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const redisKeyPrefix = "citabot:session:"

// RedisStore shares sessions between several bot processes. Entries expire
// after ttl of inactivity; zero keeps them forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisStore{client: client, ttl: opts.TTL}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return errors.Wrap(r.client.Ping(ctx).Err(), "pinging redis")
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Get(ctx context.Context, userID string) (State, error) {
	b, err := r.client.Get(ctx, redisKeyPrefix+userID).Bytes()
	if err == redis.Nil {
		return State{}, nil
	}
	if err != nil {
		return State{}, errors.Wrap(err, "reading session from redis")
	}
	return Decode(b)
}

func (r *RedisStore) Set(ctx context.Context, userID string, st State) error {
	key := redisKeyPrefix + userID
	if st.Empty() {
		return errors.Wrap(r.client.Del(ctx, key).Err(), "deleting session from redis")
	}
	b, err := Encode(st)
	if err != nil {
		return err
	}
	return errors.Wrap(r.client.Set(ctx, key, b, r.ttl).Err(), "writing session to redis")
}
