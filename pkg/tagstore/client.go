package tagstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the tag store.
// All keys are automatically namespaced with the instance name. The client
// is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb      *redis.Client
	instance string
}

// NewClient creates a new tag store client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instance: grove instance identifier (must not be empty)
//
// Returns an error if instance is empty.
func NewClient(redisOpts *redis.Options, instance string) (*Client, error) {
	if instance == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:      redis.NewClient(redisOpts),
		instance: instance,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Instance returns the instance name this client is scoped to.
func (c *Client) Instance() string {
	return c.instance
}

// RedisClient exposes the underlying Redis client for SCAN-based
// operations (short-ID resolution, listing).
func (c *Client) RedisClient() *redis.Client {
	return c.rdb
}

// getHash reads a full entity hash, translating the empty-map result that
// HGetAll returns for missing keys into ErrNotFound.
func (c *Client) getHash(ctx context.Context, key string) (map[string]string, error) {
	hash, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if len(hash) == 0 {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return hash, nil
}

// GetAsset retrieves an asset by ID. Returns ErrNotFound if absent.
func (c *Client) GetAsset(ctx context.Context, assetID string) (*Asset, error) {
	hash, err := c.getHash(ctx, AssetKey(c.instance, assetID))
	if err != nil {
		return nil, err
	}
	return HashToAsset(hash), nil
}

// GetSubgroup retrieves a subgroup by ID. Returns ErrNotFound if absent.
func (c *Client) GetSubgroup(ctx context.Context, subgroupID string) (*Subgroup, error) {
	hash, err := c.getHash(ctx, SubgroupKey(c.instance, subgroupID))
	if err != nil {
		return nil, err
	}
	return HashToSubgroup(hash), nil
}

// GetMasterlist retrieves a masterlist by ID. Returns ErrNotFound if absent.
func (c *Client) GetMasterlist(ctx context.Context, fileID string) (*Masterlist, error) {
	hash, err := c.getHash(ctx, MasterlistKey(c.instance, fileID))
	if err != nil {
		return nil, err
	}
	return HashToMasterlist(hash), nil
}

// GetMasterTag retrieves a master tag by ID. Returns ErrNotFound if absent.
func (c *Client) GetMasterTag(ctx context.Context, masterTagID string) (*MasterTag, error) {
	hash, err := c.getHash(ctx, MasterTagKey(c.instance, masterTagID))
	if err != nil {
		return nil, err
	}
	return HashToMasterTag(hash), nil
}

// GetFormula retrieves a formula by ID. Returns ErrNotFound if absent.
func (c *Client) GetFormula(ctx context.Context, formulaID string) (*Formula, error) {
	hash, err := c.getHash(ctx, FormulaKey(c.instance, formulaID))
	if err != nil {
		return nil, err
	}
	return HashToFormula(hash), nil
}

// GetVariable retrieves a variable by ID. Returns ErrNotFound if absent.
func (c *Client) GetVariable(ctx context.Context, variableID string) (*Variable, error) {
	hash, err := c.getHash(ctx, VariableKey(c.instance, variableID))
	if err != nil {
		return nil, err
	}
	return HashToVariable(hash), nil
}

// GetTag retrieves a tag by ID. Returns ErrNotFound if absent.
func (c *Client) GetTag(ctx context.Context, tagID string) (*Tag, error) {
	hash, err := c.getHash(ctx, TagKey(c.instance, tagID))
	if err != nil {
		return nil, err
	}
	return HashToTag(hash), nil
}

// GetBinding retrieves a binding by ID. Returns ErrNotFound if absent.
func (c *Client) GetBinding(ctx context.Context, bindingID string) (*Binding, error) {
	hash, err := c.getHash(ctx, BindingKey(c.instance, bindingID))
	if err != nil {
		return nil, err
	}
	return HashToBinding(hash), nil
}

// GetTemplate retrieves a template by ID. Returns ErrNotFound if absent.
func (c *Client) GetTemplate(ctx context.Context, templateID string) (*Template, error) {
	hash, err := c.getHash(ctx, TemplateKey(c.instance, templateID))
	if err != nil {
		return nil, err
	}
	return HashToTemplate(hash), nil
}

// TagExists checks tag existence without fetching the full hash.
func (c *Client) TagExists(ctx context.Context, tagID string) (bool, error) {
	exists, err := c.rdb.Exists(ctx, TagKey(c.instance, tagID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check tag existence: %w", err)
	}
	return exists > 0, nil
}

// VariableExists checks variable existence without fetching the full hash.
func (c *Client) VariableExists(ctx context.Context, variableID string) (bool, error) {
	exists, err := c.rdb.Exists(ctx, VariableKey(c.instance, variableID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check variable existence: %w", err)
	}
	return exists > 0, nil
}

// LookupBinding resolves the binding for a (variable, context) pair via the
// context hash index. Absence is not an error: callers branch on ok.
func (c *Client) LookupBinding(ctx context.Context, variableID, contextTagID string) (*Binding, bool, error) {
	bindingID, err := c.rdb.HGet(ctx, TagBindingsKey(c.instance, contextTagID), variableID).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up binding: %w", err)
	}

	binding, err := c.GetBinding(ctx, bindingID)
	if err != nil {
		// Index entry without a record means a broken invariant, not absence.
		return nil, false, fmt.Errorf("binding index points at missing binding %s: %w", bindingID, err)
	}
	return binding, true, nil
}

// ScanEntityIDs returns the IDs of all entities of the given kind whose ID
// begins with prefix. Uses Redis SCAN to iterate without blocking the
// server. An empty prefix matches every entity of that kind.
func (c *Client) ScanEntityIDs(ctx context.Context, entity, prefix string) ([]string, error) {
	keyPrefix := fmt.Sprintf("grove:%s:%s:", c.instance, entity)
	pattern := keyPrefix + prefix + "*"

	var ids []string
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		id := key[len(keyPrefix):]
		// Index keys share the entity prefix (e.g. tag:{id}:children);
		// entity hashes are the ones whose suffix is a bare ID.
		if isValidUUID(id) {
			ids = append(ids, id)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s keys: %w", entity, err)
	}
	return ids, nil
}
