package objectstore

import (
	"context"
	"sync"

	"cmip6-pipeline/internal/cmip6"
	"cmip6-pipeline/internal/zarr"

	"go.uber.org/zap"
)

// Factory opens zarr stores addressed by s3:// URL, keeping one client
// per bucket. Input and output datasets usually live in different
// buckets, so a single bucket-scoped client is not enough for a batch
// run.
type Factory struct {
	cfg Config
	log *zap.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

// NewFactory builds a factory from a base config. The config's Bucket is
// ignored; each URL supplies its own.
func NewFactory(cfg Config, log *zap.Logger) *Factory {
	return &Factory{cfg: cfg, log: log, clients: make(map[string]*Client)}
}

// OpenStore returns a zarr.Store rooted at the URL's key prefix.
func (f *Factory) OpenStore(ctx context.Context, url string) (zarr.Store, error) {
	bucket, key, err := cmip6.SplitURL(url)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	client, ok := f.clients[bucket]
	if !ok {
		cfg := f.cfg
		cfg.Bucket = bucket
		client, err = New(ctx, cfg, f.log)
		if err != nil {
			return nil, err
		}
		f.clients[bucket] = client
	}
	return client.ZarrStore(key), nil
}
