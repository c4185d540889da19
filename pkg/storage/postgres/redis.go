package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/workbench/pkg/storage"
)

const keyPrefix = "workbench:"

// RedisClient handles list caching operations
type RedisClient struct {
	client *redis.Client
	config storage.Config
}

// NewRedisClient creates a new Redis client
func NewRedisClient(config storage.Config) (*RedisClient, error) {
	// Parse Redis URL or use default options
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Override with config values if provided
	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB >= 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{
		client: client,
		config: config,
	}, nil
}

func workspaceListKey() string {
	return keyPrefix + "workspaces:list"
}

func fileListKey(workspaceID string) string {
	return keyPrefix + "files:" + workspaceID
}

func permissionsKey(userID string) string {
	return keyPrefix + "permissions:" + userID
}

// getJSON loads a cached value; ok is false on a miss
func (c *RedisClient) getJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		// Drop corrupt data so the next read repopulates it
		c.client.Del(ctx, key)
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}

	return true, nil
}

func (c *RedisClient) setJSON(ctx context.Context, key, ttlKey string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, c.config.CacheTTL[ttlKey]).Err()
}

// GetWorkspaces retrieves the cached workspace list
func (c *RedisClient) GetWorkspaces(ctx context.Context) ([]*storage.Workspace, bool, error) {
	var list []*storage.Workspace
	ok, err := c.getJSON(ctx, workspaceListKey(), &list)
	return list, ok, err
}

// SetWorkspaces caches the workspace list
func (c *RedisClient) SetWorkspaces(ctx context.Context, list []*storage.Workspace) error {
	return c.setJSON(ctx, workspaceListKey(), "workspace_list", list)
}

// InvalidateWorkspaces removes the cached workspace list
func (c *RedisClient) InvalidateWorkspaces(ctx context.Context) error {
	return c.client.Del(ctx, workspaceListKey()).Err()
}

// GetFiles retrieves the cached file list of a workspace
func (c *RedisClient) GetFiles(ctx context.Context, workspaceID string) ([]*storage.File, bool, error) {
	var list []*storage.File
	ok, err := c.getJSON(ctx, fileListKey(workspaceID), &list)
	return list, ok, err
}

// SetFiles caches the file list of a workspace
func (c *RedisClient) SetFiles(ctx context.Context, workspaceID string, list []*storage.File) error {
	return c.setJSON(ctx, fileListKey(workspaceID), "file_list", list)
}

// GetPermissions retrieves the cached grants of a user
func (c *RedisClient) GetPermissions(ctx context.Context, userID string) ([]*storage.WorkspacePermission, bool, error) {
	var list []*storage.WorkspacePermission
	ok, err := c.getJSON(ctx, permissionsKey(userID), &list)
	return list, ok, err
}

// SetPermissions caches the grants of a user
func (c *RedisClient) SetPermissions(ctx context.Context, userID string, list []*storage.WorkspacePermission) error {
	return c.setJSON(ctx, permissionsKey(userID), "permissions", list)
}

// InvalidatePatterns removes keys matching patterns
func (c *RedisClient) InvalidatePatterns(ctx context.Context, patterns ...string) error {
	for _, pattern := range patterns {
		iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan failed for pattern %s: %w", pattern, err)
		}
	}
	return nil
}

// Ping checks Redis connectivity
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetClient returns the underlying Redis client for health checks and
// token revocation
func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	return c.client.Close()
}
