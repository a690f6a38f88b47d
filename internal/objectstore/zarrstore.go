package objectstore

import (
	"context"
	"errors"
	"strings"

	"cmip6-pipeline/internal/zarr"
)

// zarrStore scopes the client to one dataset prefix and adapts it to the
// zarr.Store interface.
type zarrStore struct {
	client *Client
	prefix string
}

// ZarrStore returns a zarr.Store rooted at the given key prefix.
func (c *Client) ZarrStore(prefix string) zarr.Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &zarrStore{client: c, prefix: prefix}
}

func (s *zarrStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+key)
	if errors.Is(err, ErrNoMatch) {
		return nil, zarr.ErrKeyNotFound
	}
	return data, err
}

func (s *zarrStore) Put(ctx context.Context, key string, data []byte) error {
	return s.client.Put(ctx, s.prefix+key, data)
}

func (s *zarrStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.client.ListKeys(ctx, s.prefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, s.prefix))
	}
	return out, nil
}

func (s *zarrStore) Delete(ctx context.Context, key string) error {
	return s.client.Delete(ctx, s.prefix+key)
}
