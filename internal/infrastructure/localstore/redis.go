package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultKeyPrefix    = "storefront:"
	defaultCloseTimeout = 5 * time.Second
)

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis is a Store kept in Redis. Every write is announced on a pub/sub
// channel so that other storefront processes sharing the keyspace observe
// logins, logouts and cart edits made elsewhere.
type Redis struct {
	client     *redis.Client
	ownsClient bool
	prefix     string
	origin     string
	logger     *zap.Logger
	changes    *fanout
	cancelFn   context.CancelFunc
	doneCh     chan struct{}
	closeOnce  sync.Once
}

// RedisOption configures a Redis store
type RedisOption func(*Redis)

// WithKeyPrefix namespaces keys and the change channel
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithRedisLogger sets the logger
func WithRedisLogger(l *zap.Logger) RedisOption {
	return func(r *Redis) {
		if l != nil {
			r.logger = l
		}
	}
}

// OpenRedis connects to Redis and starts listening for changes
func OpenRedis(cfg RedisConfig, opts ...RedisOption) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r := NewRedisWithClient(client, opts...)
	r.ownsClient = true
	return r, nil
}

// NewRedisWithClient creates a store on an existing client. The caller keeps
// ownership of the client. Call Start to begin receiving changes.
func NewRedisWithClient(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client:  client,
		prefix:  defaultKeyPrefix,
		origin:  uuid.NewString(),
		logger:  zap.NewNop(),
		changes: newFanout(),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func (r *Redis) channel() string {
	return r.prefix + "changes"
}

// Get implements Store
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("localstore: get %s: %w", key, err)
	}
	return v, true, nil
}

// Set implements Store
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("localstore: set %s: %w", key, err)
	}
	r.announce(ctx, Change{Key: key, Value: value, Origin: r.origin})
	return nil
}

// Remove implements Store
func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("localstore: remove %s: %w", key, err)
	}
	r.announce(ctx, Change{Key: key, Removed: true, Origin: r.origin})
	return nil
}

// announce publishes a change. The write itself already succeeded, so a
// publish failure only costs other tabs their signal and is logged.
func (r *Redis) announce(ctx context.Context, c Change) {
	payload, err := encodeChange(c)
	if err != nil {
		r.logger.Error("Failed to encode storage change", zap.String("key", c.Key), zap.Error(err))
		return
	}
	if err := r.client.Publish(ctx, r.channel(), payload).Err(); err != nil {
		r.logger.Warn("Failed to publish storage change",
			zap.String("channel", r.channel()),
			zap.String("key", c.Key),
			zap.Error(err))
	}
}

// Watch implements Store
func (r *Redis) Watch(ctx context.Context) <-chan Change {
	return r.changes.watch(ctx)
}

// Start subscribes to the change channel. It returns once the subscription
// is confirmed; messages are handled on a background goroutine until Close.
func (r *Redis) Start(ctx context.Context) error {
	subCtx, cancel := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(subCtx, r.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}
	r.cancelFn = cancel

	r.logger.Info("Subscribed to local storage changes", zap.String("channel", r.channel()))

	go func() {
		defer close(r.doneCh)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					r.logger.Warn("Local storage change channel closed")
					return
				}
				r.handleMessage(msg.Payload)
			}
		}
	}()
	return nil
}

func (r *Redis) handleMessage(payload string) {
	c, err := decodeChange(payload)
	if err != nil {
		r.logger.Error("Failed to decode storage change", zap.String("payload", payload), zap.Error(err))
		return
	}
	if c.Origin == r.origin {
		return
	}
	r.changes.publish(c)
}

// Close stops the subscription and closes the client when it owns it
func (r *Redis) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.cancelFn != nil {
			r.cancelFn()
			select {
			case <-r.doneCh:
			case <-time.After(defaultCloseTimeout):
				r.logger.Warn("Timeout waiting for storage subscription to stop")
			}
		}
		r.changes.close()
		if r.ownsClient {
			err = r.client.Close()
		}
	})
	return err
}

func encodeChange(c Change) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeChange(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, err
	}
	if c.Key == "" {
		return Change{}, errors.New("change without key")
	}
	return c, nil
}

var _ Store = (*Redis)(nil)
