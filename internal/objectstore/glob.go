package objectstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Glob expands a path pattern whose segments may be the wildcard "*"
// against the bucket's key hierarchy, e.g.
//
//	CMIP6/*/*/*/ssp245/*/Amon/tasmax/
//
// Only whole-segment wildcards are supported. The result is the sorted
// list of matching prefixes (each ending in "/"); an empty result is not
// an error.
func (c *Client) Glob(ctx context.Context, pattern string) ([]string, error) {
	segments := strings.Split(strings.Trim(pattern, "/"), "/")
	frontier := []string{""}

	for _, seg := range segments {
		if strings.Contains(seg, "*") && seg != "*" {
			return nil, fmt.Errorf("unsupported glob segment %q: only whole-segment wildcards are allowed", seg)
		}

		var next []string
		for _, prefix := range frontier {
			if seg != "*" {
				next = append(next, prefix+seg+"/")
				continue
			}
			children, err := c.ListPrefixes(ctx, prefix)
			if err != nil {
				return nil, err
			}
			next = append(next, children...)
		}
		frontier = next
	}

	// Fixed segments were appended without checking the store; keep only
	// prefixes that actually hold something.
	var matches []string
	for _, prefix := range frontier {
		ok, err := c.prefixExists(ctx, prefix)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, prefix)
		}
	}
	sort.Strings(matches)

	c.log.Debug("glob expanded",
		zap.String("pattern", pattern),
		zap.Int("matches", len(matches)))
	return matches, nil
}

// ResolveDeepest descends `levels` wildcard segments below prefix and
// returns the last match in listing order. The CMIP6 layout keeps grid
// and version below the variable directory, so levels=2 resolves a
// variable prefix to a concrete versioned dataset.
func (c *Client) ResolveDeepest(ctx context.Context, prefix string, levels int) (string, error) {
	pattern := strings.Trim(prefix, "/")
	for i := 0; i < levels; i++ {
		pattern += "/*"
	}
	matches, err := c.Glob(ctx, pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: s3://%s/%s", ErrNoMatch, c.bucket, prefix)
	}
	return matches[len(matches)-1], nil
}

func (c *Client) prefixExists(ctx context.Context, prefix string) (bool, error) {
	children, err := c.ListPrefixes(ctx, prefix)
	if err != nil {
		return false, err
	}
	if len(children) > 0 {
		return true, nil
	}
	keys, err := c.ListKeys(ctx, prefix)
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}
