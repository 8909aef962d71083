package serverstate

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gaspardpetit/agentbridge/internal/logx"
)

// DefaultRedisKey holds the shared state when no key is configured.
const DefaultRedisKey = "agentbridge:state"

const redisTimeout = 2 * time.Second

// RedisStore keeps State as JSON under a single key.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore connects to addr (host:port or a redis://, rediss://,
// redis-sentinel:// URL) and seeds key with not_ready if it is absent.
func NewRedisStore(ctx context.Context, addr, key string) (*RedisStore, error) {
	opts, err := parseRedisURL(addr)
	if err != nil {
		return nil, err
	}
	if key == "" {
		key = DefaultRedisKey
	}
	c := redis.NewUniversalClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	b, _ := json.Marshal(State{Status: StatusNotReady})
	if err := c.SetNX(ctx, key, b, 0).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis seed: %w", err)
	}
	return &RedisStore{client: c, key: key}, nil
}

func parseDB(s string) (int, error) {
	db, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("redis: invalid db: %v", err)
	}
	return db, nil
}

// parseRedisURL supports single, cluster (comma separated hosts) and
// sentinel deployments. A value without a scheme is a plain host:port.
func parseRedisURL(addr string) (*redis.UniversalOptions, error) {
	if !strings.Contains(addr, "://") {
		return &redis.UniversalOptions{Addrs: []string{addr}}, nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}
	opts := &redis.UniversalOptions{Addrs: strings.Split(u.Host, ",")}
	if u.User != nil {
		opts.Username = u.User.Username()
		opts.Password, _ = u.User.Password()
	}
	q := u.Query()
	path := strings.TrimPrefix(u.Path, "/")

	switch u.Scheme {
	case "redis", "rediss":
		switch {
		case path != "":
			if opts.DB, err = parseDB(path); err != nil {
				return nil, err
			}
		case q.Get("db") != "":
			if opts.DB, err = parseDB(q.Get("db")); err != nil {
				return nil, err
			}
		}
	case "redis-sentinel", "rediss-sentinel":
		opts.MasterName = path
		if v := q.Get("db"); v != "" {
			if opts.DB, err = parseDB(v); err != nil {
				return nil, err
			}
		}
		opts.SentinelUsername = q.Get("sentinel_username")
		opts.SentinelPassword = q.Get("sentinel_password")
	default:
		return nil, fmt.Errorf("redis: invalid URL scheme: %s", u.Scheme)
	}
	if strings.HasPrefix(u.Scheme, "rediss") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

// Load reads the shared state. Read failures report unknown.
func (r *RedisStore) Load() State {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	b, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{Status: StatusNotReady}
		}
		logx.Log.Warn().Err(err).Str("key", r.key).Msg("redis state load")
		return State{Status: StatusUnknown}
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return State{Status: StatusUnknown}
	}
	return st
}

// Store writes the shared state.
func (r *RedisStore) Store(s State) {
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := r.client.Set(ctx, r.key, b, 0).Err(); err != nil {
		logx.Log.Warn().Err(err).Str("key", r.key).Msg("redis state store")
	}
}

// Close releases the client.
func (r *RedisStore) Close() error { return r.client.Close() }
