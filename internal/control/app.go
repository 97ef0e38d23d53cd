package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/tryon/internal/api"
	"github.com/vietddude/tryon/internal/core/config"
	"github.com/vietddude/tryon/internal/encoding"
	"github.com/vietddude/tryon/internal/generation"
	"github.com/vietddude/tryon/internal/infra/gemini"
	"github.com/vietddude/tryon/internal/infra/storage/memory"
)

// App owns every long-lived component of the service.
type App struct {
	cfg       *config.AppConfig
	Generator *generation.Generator
	// Bridge serves local commands and may read files. The API gets its own
	// bridge limited to data URLs and remote URLs.
	Bridge *encoding.Bridge
	store  *memory.MemoryStorage
	server *api.Server
	log    *slog.Logger
}

// NewApp wires the generation core, the session stores and the HTTP API.
func NewApp(cfg *config.AppConfig) (*App, error) {
	log := slog.Default().With("component", "app")

	apiKey := cfg.ResolveAPIKey()
	if apiKey == "" {
		// Not fatal: every generation call reports InvalidCredentials instead.
		log.Warn("No API key configured; set gemini.api_key or GEMINI_API_KEY")
	}

	transport, err := gemini.New(cfg.Gemini, apiKey)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	generator := generation.NewGenerator(transport, generation.Config{
		Credential: apiKey,
		Retry: generation.RetryPolicy{
			MaxRetries:   cfg.Retry.Retries(),
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
		},
	})

	store := memory.NewMemoryStorage()
	if err := store.SeedPresets(cfg.Catalog); err != nil {
		return nil, fmt.Errorf("seed catalog: %w", err)
	}

	bridge := encoding.NewBridge(cfg.Bridge, encoding.AllowLocalFiles())

	var remoteOpts []encoding.BridgeOption
	if !cfg.Bridge.AllowPrivateNetworks {
		remoteOpts = append(remoteOpts, encoding.BlockPrivateNetworks())
	}

	server := api.NewServer(api.Deps{
		Generator:     generator,
		Loader:        encoding.NewBridge(cfg.Bridge, remoteOpts...),
		History:       memory.NewHistoryRepo(store),
		Assets:        memory.NewAssetRepo(store),
		CredentialSet: apiKey != "",
	}, cfg.Server.Port)

	log.Info("Application initialized",
		"transport", cfg.Gemini.Transport,
		"model", cfg.Gemini.Model,
		"max_retries", cfg.Retry.Retries(),
		"initial_delay", cfg.Retry.InitialDelay,
	)

	return &App{
		cfg:       cfg,
		Generator: generator,
		Bridge:    bridge,
		store:     store,
		server:    server,
		log:       log,
	}, nil
}

// Start serves the HTTP API in the background.
func (a *App) Start(ctx context.Context) error {
	go func() {
		a.serverExited(a.server.Start())
	}()
	a.log.Info("API server listening", "port", a.cfg.Server.Port)
	return nil
}

func (a *App) serverExited(err error) {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		a.log.Debug("API server closed")
		return
	}
	a.log.Error("API server stopped", "error", err)
}

// Stop shuts the HTTP API down.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping service...")
	return a.server.Stop(ctx)
}
