package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/clinwave/clinwave/internal/agents"
	"github.com/clinwave/clinwave/internal/config"
	"github.com/clinwave/clinwave/internal/conversation"
	"github.com/clinwave/clinwave/internal/db"
	"github.com/clinwave/clinwave/internal/evolution"
	"github.com/clinwave/clinwave/internal/handlers"
	"github.com/clinwave/clinwave/internal/ingest"
	"github.com/clinwave/clinwave/internal/logger"
	"github.com/clinwave/clinwave/internal/media"
	"github.com/clinwave/clinwave/internal/media/providers/supabase"
	"github.com/clinwave/clinwave/internal/message"
	"github.com/clinwave/clinwave/internal/queue"
	"github.com/clinwave/clinwave/internal/server"
	"github.com/clinwave/clinwave/internal/tenant"
	"github.com/clinwave/clinwave/internal/ws"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideTenantStore,
			provideConversationService,
			provideMessageService,
			provideStorage,
			provideMediaService,
			provideAgentsService,
			provideGatewayClient,
			provideHub,
			provideProducer,
			provideIngestService,
			provideChatAPI,
			handlers.NewRequestValidator,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideAuthHandler),
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(provideChatHandler),
			provideServerHandler(provideWSHandler),
			provideServer,
		),
		fx.Invoke(
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideTenantStore(log *slog.Logger, conn *pgxpool.Pool) tenant.Directory {
	return tenant.NewStore(log, conn)
}

func provideConversationService(log *slog.Logger, conn *pgxpool.Pool) *conversation.Service {
	return conversation.NewService(log, conversation.NewStore(log, conn))
}

func provideMessageService(log *slog.Logger, conn *pgxpool.Pool) *message.Service {
	return message.NewService(log, message.NewStore(log, conn))
}

func provideStorage(log *slog.Logger, cfg config.Config) (media.Storage, error) {
	if cfg.Storage.BaseURL == "" {
		log.Warn("object storage not configured, media will not be materialized")
		return nil, nil
	}
	return supabase.New(cfg.Storage.BaseURL, cfg.Storage.APIKey, cfg.Storage.Bucket)
}

func provideMediaService(log *slog.Logger, conn *pgxpool.Pool, storage media.Storage) *media.Service {
	return media.NewService(log, media.NewStore(log, conn), storage)
}

func provideAgentsService(log *slog.Logger, conn *pgxpool.Pool, cfg config.Config) (*agents.Service, error) {
	expiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("parse jwt_expires_in: %w", err)
	}
	return agents.NewService(log, agents.NewStore(log, conn), cfg.Auth.JWTSecret, expiresIn), nil
}

func provideGatewayClient(log *slog.Logger) *evolution.Client {
	return evolution.NewClient(log)
}

func provideHub(log *slog.Logger) *ws.Hub {
	return ws.NewHub(log)
}

func provideProducer(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (queue.Producer, error) {
	producer, err := queue.New(cfg.Queue, log)
	if err != nil {
		return nil, fmt.Errorf("queue connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return producer.Close() }})
	return producer, nil
}

func provideIngestService(
	log *slog.Logger,
	tenants tenant.Directory,
	conversations *conversation.Service,
	messages *message.Service,
	mediaService *media.Service,
	gateway *evolution.Client,
	hub *ws.Hub,
	producer queue.Producer,
) *ingest.Service {
	return ingest.NewService(log, tenants, conversations, messages, mediaService, gateway, hub, producer)
}

func provideChatAPI(
	conversations *conversation.Service,
	messages *message.Service,
	ingestService *ingest.Service,
	hub *ws.Hub,
) *handlers.ChatAPI {
	return handlers.NewChatAPI(conversations, messages, ingestService, hub)
}

func provideAuthHandler(log *slog.Logger, agentsService *agents.Service) *handlers.AuthHandler {
	return handlers.NewAuthHandler(log, agentsService)
}

func provideWebhookHandler(log *slog.Logger, ingestService *ingest.Service) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, ingestService)
}

func provideChatHandler(log *slog.Logger, conversations *conversation.Service, api *handlers.ChatAPI) *handlers.ChatHandler {
	return handlers.NewChatHandler(log, conversations, api)
}

func provideWSHandler(log *slog.Logger, hub *ws.Hub, api *handlers.ChatAPI) *handlers.WSHandler {
	return handlers.NewWSHandler(log, hub, api)
}

type serverParams struct {
	fx.In

	Config         config.Config
	Validator      *handlers.RequestValidator
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(
		params.Config.Server.Addr,
		params.Config.Auth.JWTSecret,
		params.Validator,
		params.ServerHandlers...,
	)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
