package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/platinummonkey/workbench/pkg/observability"
	"github.com/platinummonkey/workbench/pkg/storage"
)

// permissionGranter is implemented by stores that can write grants
type permissionGranter interface {
	GrantPermission(ctx context.Context, p *storage.WorkspacePermission) error
}

// allFileLists matches every cached file list
const allFileLists = keyPrefix + "files:*"

// CachedStore wraps a MetadataStore with a Redis cache for list reads.
// Every write drops the affected list before returning, so a
// mutate-then-reload sequence sees its own write.
//
// Once the inner write has committed, the write succeeds even if Redis
// does not. The undropped key is kept in stale and reads bypass it until
// a later delete goes through.
type CachedStore struct {
	storage.MetadataStore
	redis   *RedisClient
	metrics *observability.Metrics
	logger  *observability.Logger

	mu    sync.Mutex
	stale map[string]struct{}
}

// NewCachedStore creates the cache layer
func NewCachedStore(inner storage.MetadataStore, redis *RedisClient, metrics *observability.Metrics, logger *observability.Logger) *CachedStore {
	return &CachedStore{
		MetadataStore: inner,
		redis:         redis,
		metrics:       metrics,
		logger:        logger,
		stale:         make(map[string]struct{}),
	}
}

func (c *CachedStore) hit(keyType string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues("redis", keyType).Inc()
	}
}

func (c *CachedStore) miss(keyType string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues("redis", keyType).Inc()
	}
}

func (c *CachedStore) warn(err error, msg string) {
	if c.logger != nil {
		c.logger.WithError(err).Warn(msg)
	}
}

func (c *CachedStore) drop(ctx context.Context, key string) error {
	if strings.HasSuffix(key, "*") {
		return c.redis.InvalidatePatterns(ctx, key)
	}
	return c.redis.client.Del(ctx, key).Err()
}

// invalidate drops key after a committed write. Failures are logged,
// counted and remembered; they are never returned to the writer.
func (c *CachedStore) invalidate(ctx context.Context, keyType, key string) {
	err := c.drop(ctx, key)

	c.mu.Lock()
	if err != nil {
		c.stale[key] = struct{}{}
	} else {
		delete(c.stale, key)
	}
	c.mu.Unlock()

	if err != nil {
		c.metrics.RecordCacheInvalidationFailure("redis", keyType)
		c.warn(fmt.Errorf("invalidate %s: %w", key, err), "cache invalidation failed after write, bypassing entry")
	}
}

// usable reports whether the cache may serve keys. Stale keys are retried
// and cleared once their delete succeeds.
func (c *CachedStore) usable(ctx context.Context, keys ...string) bool {
	c.mu.Lock()
	var pending []string
	for _, key := range keys {
		if _, ok := c.stale[key]; ok {
			pending = append(pending, key)
		}
	}
	c.mu.Unlock()

	ok := true
	for _, key := range pending {
		if err := c.drop(ctx, key); err != nil {
			ok = false
			continue
		}
		c.mu.Lock()
		delete(c.stale, key)
		c.mu.Unlock()
	}
	return ok
}

func (c *CachedStore) ListWorkspaces(ctx context.Context) ([]*storage.Workspace, error) {
	if !c.usable(ctx, workspaceListKey()) {
		c.miss("workspace_list")
		return c.MetadataStore.ListWorkspaces(ctx)
	}
	if list, ok, err := c.redis.GetWorkspaces(ctx); err == nil && ok {
		c.hit("workspace_list")
		return list, nil
	} else if err != nil {
		c.warn(err, "workspace list cache read failed")
	}
	c.miss("workspace_list")

	list, err := c.MetadataStore.ListWorkspaces(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.redis.SetWorkspaces(ctx, list); err != nil {
		c.warn(err, "workspace list cache write failed")
	}
	return list, nil
}

func (c *CachedStore) CreateWorkspace(ctx context.Context, ws *storage.Workspace) error {
	if err := c.MetadataStore.CreateWorkspace(ctx, ws); err != nil {
		return err
	}
	c.invalidate(ctx, "workspace_list", workspaceListKey())
	return nil
}

func (c *CachedStore) ListPermissionsForUser(ctx context.Context, userID string) ([]*storage.WorkspacePermission, error) {
	if !c.usable(ctx, permissionsKey(userID)) {
		c.miss("permissions")
		return c.MetadataStore.ListPermissionsForUser(ctx, userID)
	}
	if list, ok, err := c.redis.GetPermissions(ctx, userID); err == nil && ok {
		c.hit("permissions")
		return list, nil
	} else if err != nil {
		c.warn(err, "permission cache read failed")
	}
	c.miss("permissions")

	list, err := c.MetadataStore.ListPermissionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.redis.SetPermissions(ctx, userID, list); err != nil {
		c.warn(err, "permission cache write failed")
	}
	return list, nil
}

// GrantPermission writes a grant through the inner store and drops the
// user's cached permission map
func (c *CachedStore) GrantPermission(ctx context.Context, p *storage.WorkspacePermission) error {
	granter, ok := c.MetadataStore.(permissionGranter)
	if !ok {
		return fmt.Errorf("grant permission: underlying store %T cannot grant permissions", c.MetadataStore)
	}
	if err := granter.GrantPermission(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx, "permissions", permissionsKey(p.UserID))
	return nil
}

func (c *CachedStore) ListFiles(ctx context.Context, workspaceID string) ([]*storage.File, error) {
	if !c.usable(ctx, fileListKey(workspaceID), allFileLists) {
		c.miss("file_list")
		return c.MetadataStore.ListFiles(ctx, workspaceID)
	}
	if list, ok, err := c.redis.GetFiles(ctx, workspaceID); err == nil && ok {
		c.hit("file_list")
		return list, nil
	} else if err != nil {
		c.warn(err, "file list cache read failed")
	}
	c.miss("file_list")

	list, err := c.MetadataStore.ListFiles(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := c.redis.SetFiles(ctx, workspaceID, list); err != nil {
		c.warn(err, "file list cache write failed")
	}
	return list, nil
}

func (c *CachedStore) CreateFile(ctx context.Context, f *storage.File) error {
	if err := c.MetadataStore.CreateFile(ctx, f); err != nil {
		return err
	}
	c.invalidate(ctx, "file_list", fileListKey(f.WorkspaceID))
	return nil
}

func (c *CachedStore) DeleteFile(ctx context.Context, id string) error {
	existing, lookupErr := c.MetadataStore.GetFile(ctx, id)

	if err := c.MetadataStore.DeleteFile(ctx, id); err != nil {
		return err
	}

	if lookupErr == nil {
		c.invalidate(ctx, "file_list", fileListKey(existing.WorkspaceID))
	} else {
		c.invalidate(ctx, "file_list", allFileLists)
	}
	return nil
}

// HealthCheck checks the inner store and Redis
func (c *CachedStore) HealthCheck(ctx context.Context) error {
	if err := c.MetadataStore.HealthCheck(ctx); err != nil {
		return err
	}
	return c.redis.Ping(ctx)
}

// Close closes the inner store and the Redis connection
func (c *CachedStore) Close() error {
	innerErr := c.MetadataStore.Close()
	redisErr := c.redis.Close()
	if innerErr != nil {
		return innerErr
	}
	return redisErr
}
