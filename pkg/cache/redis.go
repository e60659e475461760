package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = redis.Nil

const scanBatch = 500

// Cache stores JSON-encoded values in redis.
type Cache struct {
	client *redis.Client
}

var _ Cacher = (*Cache)(nil)

type Options struct {
	URL         string
	Address     string
	Password    string
	DB          int
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

type Option func(*Options)

// WithURL configures the client from a redis:// or rediss:// URL. Address,
// password and DB options are ignored when a URL is set.
func WithURL(rawURL string) Option {
	return func(o *Options) { o.URL = rawURL }
}

func WithAddress(addr string) Option {
	return func(o *Options) { o.Address = addr }
}

func WithPassword(pass string) Option {
	return func(o *Options) { o.Password = pass }
}

func WithDB(db int) Option {
	return func(o *Options) { o.DB = db }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *Options) { o.DialTimeout = d }
}

// WithReadTimeout bounds every command so a slow redis degrades to a cache miss
// instead of stalling dashboard reads.
func WithReadTimeout(d time.Duration) Option {
	return func(o *Options) { o.ReadTimeout = d }
}

func (o *Options) clientOptions() (*redis.Options, error) {
	ro := &redis.Options{
		Addr:     o.Address,
		Password: o.Password,
		DB:       o.DB,
	}
	if o.URL != "" {
		parsed, err := redis.ParseURL(o.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		ro = parsed
	}
	ro.DialTimeout = o.DialTimeout
	ro.ReadTimeout = o.ReadTimeout
	ro.WriteTimeout = o.ReadTimeout
	return ro, nil
}

// New connects and pings redis. The returned error means no cache should be used.
func New(ctx context.Context, opts ...Option) (*Cache, error) {
	o := &Options{
		Address:     "localhost:6379",
		DialTimeout: 5 * time.Second,
		ReadTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}

	ro, err := o.clientOptions()
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(ro)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", ro.Addr, err)
	}
	return &Cache{client: client}, nil
}

// Addr is the host:port the client talks to.
func (c *Cache) Addr() string {
	return c.client.Options().Addr
}

// Get decodes the JSON value stored at key into dest.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(val, dest)
}

// TTL returns the remaining lifetime of key from PTTL. A key without expiry
// reports NoExpiry and a missing key ErrMiss.
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	left, err := c.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// go-redis passes the -1 and -2 sentinels through unscaled
	switch left {
	case -2:
		return 0, ErrMiss
	case -1:
		return NoExpiry, nil
	}
	return left, nil
}

func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

// InvalidatePrefix unlinks every key starting with prefix and reports how many
// were removed. Keys are collected with SCAN so redis is never blocked by KEYS.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) (int64, error) {
	var removed int64
	iter := c.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()

	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Unlink(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("unlink %d keys: %w", len(batch), err)
		}
		removed += n
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan %s*: %w", prefix, err)
	}
	return removed, flush()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// IsMiss reports whether err means the key was not found.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}
