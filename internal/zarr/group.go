package zarr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	zgroupKey    = ".zgroup"
	zmetadataKey = ".zmetadata"
)

// Group is a flat Zarr group: a set of named arrays under one store
// root, the shape xarray writes datasets in.
type Group struct {
	store  Store
	attrs  Attrs
	arrays map[string]*Array
}

// CreateGroup wipes whatever lives at the store root and starts a fresh
// group there.
func CreateGroup(ctx context.Context, store Store, attrs Attrs) (*Group, error) {
	existing, err := store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list existing store keys: %w", err)
	}
	for _, key := range existing {
		if err := store.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("failed to clear key %q: %w", key, err)
		}
	}

	doc, err := json.Marshal(map[string]int{"zarr_format": zarrFormat})
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, zgroupKey, doc); err != nil {
		return nil, err
	}

	if attrs == nil {
		attrs = Attrs{}
	}
	attrsDoc, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal group attrs: %w", err)
	}
	if err := store.Put(ctx, ".zattrs", attrsDoc); err != nil {
		return nil, err
	}

	return &Group{store: store, attrs: attrs, arrays: make(map[string]*Array)}, nil
}

// OpenGroup opens an existing group, preferring consolidated metadata
// when present so an object-store open costs one read.
func OpenGroup(ctx context.Context, store Store) (*Group, error) {
	g := &Group{store: store, attrs: Attrs{}, arrays: make(map[string]*Array)}

	if doc, err := store.Get(ctx, zmetadataKey); err == nil {
		return g, g.loadConsolidated(doc)
	} else if !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}

	if doc, err := store.Get(ctx, ".zattrs"); err == nil {
		if err := json.Unmarshal(doc, &g.attrs); err != nil {
			return nil, fmt.Errorf("failed to parse group attrs: %w", err)
		}
	} else if !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}

	keys, err := store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		name, ok := strings.CutSuffix(key, "/.zarray")
		if !ok || strings.Contains(name, "/") {
			continue
		}
		arr, err := OpenArray(ctx, store, name)
		if err != nil {
			return nil, err
		}
		g.arrays[name] = arr
	}
	if len(g.arrays) == 0 {
		return nil, fmt.Errorf("store holds no zarr arrays")
	}
	return g, nil
}

func (g *Group) loadConsolidated(doc []byte) error {
	var consolidated struct {
		Metadata map[string]json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(doc, &consolidated); err != nil {
		return fmt.Errorf("failed to parse consolidated metadata: %w", err)
	}

	for key, raw := range consolidated.Metadata {
		switch {
		case key == ".zattrs":
			if err := json.Unmarshal(raw, &g.attrs); err != nil {
				return fmt.Errorf("failed to parse group attrs: %w", err)
			}
		case strings.HasSuffix(key, "/.zarray"):
			name := strings.TrimSuffix(key, "/.zarray")
			var meta ArrayMeta
			if err := json.Unmarshal(raw, &meta); err != nil {
				return fmt.Errorf("failed to parse consolidated .zarray for %q: %w", name, err)
			}
			if err := meta.Validate(); err != nil {
				return fmt.Errorf("array %q: %w", name, err)
			}
			arr := g.arrays[name]
			if arr == nil {
				arr = &Array{store: g.store, name: name, attrs: Attrs{}}
				g.arrays[name] = arr
			}
			arr.meta = meta
		case strings.HasSuffix(key, "/.zattrs"):
			name := strings.TrimSuffix(key, "/.zattrs")
			attrs := Attrs{}
			if err := json.Unmarshal(raw, &attrs); err != nil {
				return fmt.Errorf("failed to parse consolidated .zattrs for %q: %w", name, err)
			}
			arr := g.arrays[name]
			if arr == nil {
				arr = &Array{store: g.store, name: name}
				g.arrays[name] = arr
			}
			arr.attrs = attrs
		}
	}

	for name, arr := range g.arrays {
		if len(arr.meta.Shape) == 0 {
			return fmt.Errorf("consolidated metadata has attrs but no .zarray for %q", name)
		}
		if arr.attrs == nil {
			arr.attrs = Attrs{}
		}
	}
	if len(g.arrays) == 0 {
		return fmt.Errorf("consolidated metadata holds no arrays")
	}
	return nil
}

// Attrs returns the group-level attributes.
func (g *Group) Attrs() Attrs { return g.attrs }

// Array looks up one array by name.
func (g *Group) Array(name string) (*Array, bool) {
	a, ok := g.arrays[name]
	return a, ok
}

// ArrayNames lists the group's arrays, sorted.
func (g *Group) ArrayNames() []string {
	names := make([]string, 0, len(g.arrays))
	for n := range g.arrays {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Create adds an array to the group.
func (g *Group) Create(ctx context.Context, name string, meta ArrayMeta, attrs Attrs) (*Array, error) {
	arr, err := CreateArray(ctx, g.store, name, meta, attrs)
	if err != nil {
		return nil, err
	}
	g.arrays[name] = arr
	return arr, nil
}

// Consolidate writes .zmetadata so readers can open the group with a
// single object fetch.
func (g *Group) Consolidate(ctx context.Context) error {
	metadata := map[string]interface{}{
		zgroupKey: map[string]int{"zarr_format": zarrFormat},
		".zattrs": g.attrs,
	}
	for name, arr := range g.arrays {
		metadata[name+"/.zarray"] = arr.meta
		metadata[name+"/.zattrs"] = arr.attrs
	}
	doc, err := json.Marshal(map[string]interface{}{
		"zarr_consolidated_format": 1,
		"metadata":                 metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal consolidated metadata: %w", err)
	}
	return g.store.Put(ctx, zmetadataKey, doc)
}
