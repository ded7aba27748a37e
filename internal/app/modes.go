package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/openpredict/marketd/internal/blob/s3"
	"github.com/openpredict/marketd/internal/server"
	"github.com/openpredict/marketd/internal/server/handler"
	"github.com/openpredict/marketd/internal/server/ws"
	"github.com/openpredict/marketd/internal/service"
)

func utcNow() time.Time { return time.Now().UTC() }

// ServeMode runs the full stack: the trading core fronted by the market
// service, the write-behind journal against Postgres, Redis fan-out, the
// expiry sweeper, the WebSocket hub, and the HTTP API.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	svc := service.New(utcNow, service.Deps{
		Stores:    deps.Stores,
		Prices:    deps.PriceCache,
		Bus:       deps.SignalBus,
		Archiver:  deps.Archiver,
		Reader:    deps.BlobReader,
		Notifier:  deps.Notifier,
		Logger:    a.logger,
		QueueSize: a.cfg.Market.JournalBuffer,
	})
	g.Go(func() error {
		return svc.Run(ctx)
	})

	// Expiry sweeper: void conditional IOUs whose deadline has passed.
	expiry := service.NewExpiryJob(svc, a.cfg.Market.ExpiryInterval.Duration, utcNow, a.logger)
	g.Go(func() error {
		return expiry.Run(ctx)
	})

	// WebSocket hub bridges Redis channels to browser clients.
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: utcNow(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := a.buildHandlers(svc)
	handlers.Settlements = handler.NewSettlementHandler(svc, s3blob.SettlementPrefix(), a.logger)

	a.startHTTPServer(ctx, g, handlers, hub, deps)

	return g.Wait()
}

// MemoryMode runs the trading core and HTTP API with no backing services.
// Nothing is journaled, cached, published, or archived; state lives for the
// lifetime of the process. Useful for local development and integration
// tests.
func (a *App) MemoryMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting memory mode")

	g, ctx := errgroup.WithContext(ctx)

	svc := service.New(utcNow, service.Deps{
		Notifier:  deps.Notifier,
		Logger:    a.logger,
		QueueSize: a.cfg.Market.JournalBuffer,
	})
	g.Go(func() error {
		return svc.Run(ctx)
	})

	expiry := service.NewExpiryJob(svc, a.cfg.Market.ExpiryInterval.Duration, utcNow, a.logger)
	g.Go(func() error {
		return expiry.Run(ctx)
	})

	a.startHTTPServer(ctx, g, a.buildHandlers(svc), nil, deps)

	return g.Wait()
}

// buildHandlers constructs the REST handlers common to every mode. The
// settlement handler is added separately because it needs blob storage.
func (a *App) buildHandlers(svc *service.MarketService) server.Handlers {
	return server.Handlers{
		Health:     handler.NewHealthHandler(a.cfg.Mode, utcNow(), a.logger),
		Conditions: handler.NewConditionHandler(svc, a.logger),
		IOUs:       handler.NewIOUHandler(svc, a.logger),
		Offers:     handler.NewOfferHandler(svc, a.logger),
		Players:    handler.NewPlayerHandler(svc, a.logger),
	}
}

// startHTTPServer adds the HTTP server goroutine plus a shutdown watcher to
// the given errgroup. hub may be nil when WebSocket support is unavailable.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	handlers server.Handlers,
	hub *ws.Hub,
	deps *Dependencies,
) {
	srv := server.NewServer(server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		AdminToken:   a.cfg.Server.AdminToken,
		RateLimitRPS: a.cfg.Server.RateLimitRPS,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			a.logger.Warn("HTTP server shutdown", slog.String("error", err.Error()))
		}
		return ctx.Err()
	})
}
