package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var (
	//go:embed scripts/release_lock.lua
	releaseLockScript string
	//go:embed scripts/set_comparison.lua
	setComparisonScript string
)

// comparisonGenerationTTL outlives any single read of the comparison view.
const comparisonGenerationTTL = 24 * time.Hour

type Client struct {
	rdb              *redis.Client
	releaseScript    *redis.Script
	comparisonScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:              rdb,
		releaseScript:    redis.NewScript(releaseLockScript),
		comparisonScript: redis.NewScript(setComparisonScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks Redis connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireLock acquires a distributed lock. The returned token must be passed
// to ReleaseLock so only the owner can release it.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock releases a distributed lock if it is still held by token
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

func comparisonKey(requestID int64) string {
	return fmt.Sprintf("quotation:comparison:%d", requestID)
}

func comparisonGenerationKey(requestID int64) string {
	return fmt.Sprintf("quotation:comparison:%d:gen", requestID)
}

// GetComparison loads a cached comparison view into dest. It also returns the
// current generation, which SetComparison needs; found is false on a miss.
func (c *Client) GetComparison(ctx context.Context, requestID int64, dest interface{}) (int64, bool, error) {
	vals, err := c.rdb.MGet(ctx, comparisonGenerationKey(requestID), comparisonKey(requestID)).Result()
	if err != nil {
		return 0, false, err
	}

	var generation int64
	if raw, ok := vals[0].(string); ok {
		if generation, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return 0, false, fmt.Errorf("malformed comparison generation %q: %w", raw, err)
		}
	}
	raw, ok := vals[1].(string)
	if !ok {
		return generation, false, nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return generation, false, fmt.Errorf("decode cached comparison: %w", err)
	}
	return generation, true, nil
}

// SetComparison caches a comparison view built after generation was read. The
// write is skipped, with stored=false, if an invalidation happened since.
func (c *Client) SetComparison(ctx context.Context, requestID, generation int64, value interface{}, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode comparison: %w", err)
	}
	keys := []string{comparisonGenerationKey(requestID), comparisonKey(requestID)}
	stored, err := c.comparisonScript.Run(ctx, c.rdb, keys, generation, raw, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("set comparison script failed: %w", err)
	}
	return stored == 1, nil
}

// InvalidateComparison drops a cached comparison view and bumps its
// generation so in-flight readers cannot write back stale data.
func (c *Client) InvalidateComparison(ctx context.Context, requestID int64) error {
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, comparisonGenerationKey(requestID))
	pipe.Expire(ctx, comparisonGenerationKey(requestID), comparisonGenerationTTL)
	pipe.Del(ctx, comparisonKey(requestID))
	_, err := pipe.Exec(ctx)
	return err
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

// StoreSession records a bearer token issued by the identity provider
func (c *Client) StoreSession(ctx context.Context, token, role string, id int64, ttl time.Duration) error {
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, sessionKey(token), "role", role, "id", id)
	pipe.Expire(ctx, sessionKey(token), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// LookupSession resolves a bearer token into a role and numeric id
func (c *Client) LookupSession(ctx context.Context, token string) (string, int64, bool, error) {
	result, err := c.rdb.HGetAll(ctx, sessionKey(token)).Result()
	if err != nil {
		return "", 0, false, err
	}
	if len(result) == 0 {
		return "", 0, false, nil
	}

	id, err := strconv.ParseInt(result["id"], 10, 64)
	if err != nil {
		return "", 0, false, fmt.Errorf("malformed session %q: %w", token, err)
	}
	return result["role"], id, true, nil
}
