package redis

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Config configures the Redis list reader.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	Timeout  time.Duration
}

// Reader takes a snapshot of a Redis list of audit records.
type Reader struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

// NewReader creates a reader for a list-based event buffer.
func NewReader(cfg Config) (*Reader, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
		ReadTimeout: cfg.Timeout,
		MaxRetries:  1,
	})

	return &Reader{
		client:  client,
		key:     cfg.Key,
		timeout: cfg.Timeout,
	}, nil
}

// Load returns every element of the list in order. The list is left intact
// so repeated runs see the same records.
func (r *Reader) Load(ctx context.Context) ([][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read redis list %s: %w", r.key, err)
	}

	lines := make([][]byte, 0, len(res))
	for _, item := range res {
		lines = append(lines, []byte(item))
	}
	return lines, nil
}

// Source describes the reader in logs.
func (r *Reader) Source() string {
	return "redis://" + r.client.Options().Addr + "/" + r.key
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.client.Close()
}
