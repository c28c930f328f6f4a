// ABOUTME: Wires configuration, storage, the model client and the service for commands
// ABOUTME: One app per command invocation, closed when the command returns
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/refinery/internal/config"
	"github.com/harper/refinery/internal/export"
	"github.com/harper/refinery/internal/llm"
	"github.com/harper/refinery/internal/metrics"
	"github.com/harper/refinery/internal/models"
	"github.com/harper/refinery/internal/refine"
	"github.com/harper/refinery/internal/storage/sqlite"
)

type app struct {
	cfg      *config.Config
	store    *sqlite.Store
	svc      *refine.Service
	exporter *export.Exporter
	registry *prometheus.Registry
}

// openApp loads configuration and builds every collaborator
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	catalog, err := models.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	client, err := llm.NewClient(llm.ClientConfig{
		APIBase:        cfg.APIBase,
		APIKey:         cfg.APIKey,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		MaxAttempts:    cfg.MaxAttempts,
		BackoffBase:    cfg.BackoffBase,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    float32(cfg.Temperature),
		Observer:       recorder,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing model client: %w", err)
	}

	store, err := sqlite.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	svc, err := refine.New(refine.ConfigFrom(cfg), refine.Deps{
		Units:       store,
		Sources:     store,
		Refinements: store,
		Leases:      store,
		Generator:   client,
		Catalog:     catalog,
		Metrics:     recorder,
		Logger:      logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Debug("storage opened", zap.String("path", cfg.DBPath))
	return &app{
		cfg:      cfg,
		store:    store,
		svc:      svc,
		exporter: export.New(store),
		registry: registry,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.Warn("closing storage", zap.Error(err))
	}
}

// printJSON writes v as indented JSON to the command's output
func printJSON(cmd *cobra.Command, v interface{}) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", jsonData)
	return nil
}
