package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/nbouchiba/allure/internal/cache"
	"github.com/nbouchiba/allure/internal/config"
	"github.com/nbouchiba/allure/internal/logger"
	"github.com/nbouchiba/allure/internal/store"
)

type runtimeEnv struct {
	Config *config.Config
	Store  *store.Store
	Log    logrus.FieldLogger

	dataDir string
}

func (r *runtimeEnv) Close() {
	if r.Store != nil {
		r.Store.Close()
	}
}

// IndexPath returns the location of the search index.
func (r *runtimeEnv) IndexPath() string {
	return filepath.Join(r.dataDir, "search.bleve")
}

// Cache connects to Redis using the configured URL. Only the sync
// commands need it; chat works without Redis entirely.
func (r *runtimeEnv) Cache(ctx context.Context) (cache.Cache, error) {
	addr := r.Config.RedisURL
	if addr == "" {
		addr = os.Getenv("REDIS_URL")
	}
	if addr == "" {
		return nil, fmt.Errorf("no redis URL configured (set redis_url in config or REDIS_URL)")
	}
	return cache.NewRedisCache(ctx, addr)
}

func prepareRuntimeEnv(ctx context.Context, dbFlag string) (*runtimeEnv, error) {
	cfgManager, err := config.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config manager: %w", err)
	}

	cfg, err := cfgManager.Load()
	if err != nil {
		log.Printf("failed to load user config: %v (continuing with defaults)", err)
		cfg = &config.Config{}
	}

	// Config takes precedence over possibly stale shell environment.
	if cfg.LLMProvider != "" {
		os.Setenv("LLM_PROVIDER", cfg.LLMProvider)
	}
	if cfg.APIKey != "" {
		switch cfg.LLMProvider {
		case "anthropic":
			os.Setenv("ANTHROPIC_API_KEY", cfg.APIKey)
			if cfg.Model != "" {
				os.Setenv("ANTHROPIC_MODEL", cfg.Model)
			}
		default:
			os.Setenv("OPENAI_API_KEY", cfg.APIKey)
			if cfg.Model != "" {
				os.Setenv("OPENAI_MODEL", cfg.Model)
			}
			if cfg.BaseURL != "" {
				os.Setenv("OPENAI_BASE_URL", cfg.BaseURL)
			}
		}
	}

	dbPath := dbFlag
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	if dbPath == "" {
		dbPath = filepath.Join(cfgManager.DataDir(), "allure.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.New(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	return &runtimeEnv{
		Config:  cfg,
		Store:   st,
		Log:     logger.New(),
		dataDir: cfgManager.DataDir(),
	}, nil
}
