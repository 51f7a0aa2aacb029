package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/samvad-hq/openshare-counts/internal/config"
	"github.com/samvad-hq/openshare-counts/internal/logger"
	"github.com/samvad-hq/openshare-counts/internal/storage"
	"github.com/samvad-hq/openshare-counts/pkg/counter"
	"github.com/samvad-hq/openshare-counts/pkg/httpclient"
	"github.com/samvad-hq/openshare-counts/pkg/providers"
	"github.com/samvad-hq/openshare-counts/pkg/publishers"
)

// runtime holds the components shared by the counter and renderer commands.
type runtime struct {
	cfg      *config.Config
	registry *providers.Registry
	fetchers providers.FetcherRegistry
	store    storage.Store
	policy   counter.CachePolicy
	fanout   *publishers.Fanout
	log      logger.Logger
}

// newRuntime builds the provider registry, count cache and publishers from cfg.
func newRuntime(ctx context.Context, cfg *config.Config, log logger.Logger) (*runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	policy, err := counter.ParseCachePolicy(cfg.CachePolicy)
	if err != nil {
		return nil, err
	}

	registry := providers.DefaultRegistry()
	if err := registry.LoadOverrides(cfg.ProvidersFile); err != nil {
		return nil, fmt.Errorf("load provider overrides: %w", err)
	}
	log.InfoObj("providers registry loaded", "providers_meta", map[string]any{
		"count":          len(registry.IDs()),
		"ids":            registry.IDs(),
		"overrides_file": cfg.ProvidersFile,
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath)
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":         cfg.StorageType,
		"path":         cfg.BBoltPath,
		"cache_policy": policy.String(),
	})

	client := httpclient.NewRestyClient(cfg.HTTPTimeout)

	return &runtime{
		cfg:      cfg,
		registry: registry,
		fetchers: providers.DefaultFetcherRegistry(client),
		store:    store,
		policy:   policy,
		fanout:   fanout,
		log:      log,
	}, nil
}

// buildFanout loads publishers when a publishers file is configured. Without
// one, events are dropped.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if cfg.PublishersFile == "" {
		log.InfoObj("publishers disabled", "publishers_file", cfg.PublishersFile)
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := publisherReg.Enabled()

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// counterOptions returns the resolver options shared by every count.
func (r *runtime) counterOptions() []counter.Option {
	return []counter.Option{
		counter.WithFetchers(r.fetchers),
		counter.WithStore(r.store),
		counter.WithCachePolicy(r.policy),
		counter.WithLogger(r.log),
	}
}

// Close releases the storage backend and publisher clients.
func (r *runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if err := r.fanout.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
