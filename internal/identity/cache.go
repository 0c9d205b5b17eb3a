// Package identity resolves usernames to numeric uids through a local
// cache with an explicit lifecycle: load the persisted mapping, or fetch
// it once from a directory service and persist it for reuse. The mapping
// is reference data, not live.
package identity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ohler55/ojg/oj"
)

// Directory is the one-time source of the username→uid mapping when no
// persisted cache exists, typically an LDAP or similar lookup supplied by
// the caller.
type Directory interface {
	Usernames(ctx context.Context) (map[string]int, error)
}

// Cache is an immutable username→uid mapping.
type Cache struct {
	uids map[string]int
}

// Lookup returns the uid for a username, defaulting to the superuser id 0
// for unknown names.
func (c *Cache) Lookup(username string) int {
	if uid, ok := c.uids[username]; ok {
		return uid
	}
	return 0
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.uids)
}

// Load builds the cache: seed entries first (root is always present),
// then the persisted mapping at path if it exists, otherwise a single
// directory fetch whose result is persisted to path. With no persisted
// file and a nil directory, the seeds alone serve.
func Load(ctx context.Context, path string, dir Directory, seed map[string]int) (*Cache, error) {
	uids := map[string]int{"root": 0}
	for name, uid := range seed {
		uids[name] = uid
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		parsed, err := oj.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse uid cache %s: %w", path, err)
		}
		m, ok := parsed.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("uid cache %s: not a json object", path)
		}
		for name, v := range m {
			switch uid := v.(type) {
			case int64:
				uids[name] = int(uid)
			case float64:
				uids[name] = int(uid)
			default:
				return nil, fmt.Errorf("uid cache %s: entry %q is not a number", path, name)
			}
		}

	case errors.Is(err, fs.ErrNotExist) && dir != nil:
		fetched, err := dir.Usernames(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch directory usernames: %w", err)
		}
		for name, uid := range fetched {
			uids[name] = uid
		}
		if err := os.WriteFile(path, []byte(oj.JSON(uids)), 0o644); err != nil {
			return nil, fmt.Errorf("persist uid cache %s: %w", path, err)
		}

	case errors.Is(err, fs.ErrNotExist):
		// No persisted mapping and no directory: run with seeds only.

	default:
		return nil, fmt.Errorf("read uid cache %s: %w", path, err)
	}

	return &Cache{uids: uids}, nil
}
