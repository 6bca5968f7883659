package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	router "github.com/dkeye/Together/internal/adapters/http"
	signaling "github.com/dkeye/Together/internal/adapters/signal"
	"github.com/dkeye/Together/internal/app"
	"github.com/dkeye/Together/internal/app/orch"
	"github.com/dkeye/Together/internal/config"
	"github.com/dkeye/Together/internal/core"
	"github.com/dkeye/Together/internal/storage/sqlite"
	"github.com/dkeye/Together/internal/video"
	"github.com/dkeye/Together/internal/video/providers"
)

const shutdownTimeout = 5 * time.Second

// AppOptions is the whole dependency graph of the server.
var AppOptions = fx.Options(
	fx.Provide(
		config.Load,
		newDirectory,
		newVideoRegistry,
		newResolver,
		app.NewRegistry,
		newRoomManager,
		newPolicy,
		orch.New,
		newSignalController,
		newRouter,
		newHTTPServer,
	),
	fx.Invoke(
		setLogLevel,
		authenticateProviders,
		func(*http.Server) {},
	),
)

func main() {
	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	fxApp := fx.New(
		AppOptions,
		fx.WithLogger(func() fxevent.Logger { return &zerologEventLogger{} }),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, fx.DefaultTimeout)
	defer startCancel()
	if err := fxApp.Start(startCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

func setLogLevel(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func newDirectory(lc fx.Lifecycle, cfg *config.Config) (*sqlite.Directory, error) {
	dir, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(dir.Close))
	return dir, nil
}

type adapters struct {
	fx.Out

	Registry *video.Registry
	Spotify  *providers.Spotify
}

func newVideoRegistry(cfg *config.Config) adapters {
	client := providers.NewHTTPClient()
	spotify := providers.NewSpotify(providers.SpotifyOptions{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		APIURL:       cfg.Spotify.APIURL,
		TokenURL:     cfg.Spotify.TokenURL,
	}, client)

	// Direct files match any URL with a video extension, so it goes last.
	reg := video.NewRegistry(
		providers.NewYouTube(cfg.YouTube.APIKey, cfg.YouTube.APIURL, client),
		providers.NewVimeo(cfg.Vimeo.OEmbedURL, client),
		spotify,
		providers.NewDirect(client),
	)
	log.Info().Strs("services", reg.Services()).Msg("video providers registered")
	return adapters{Registry: reg, Spotify: spotify}
}

// authenticateProviders fetches a Spotify token up front when credentials are
// configured. Failure is not fatal; the adapter retries on first use.
func authenticateProviders(lc fx.Lifecycle, cfg *config.Config, spotify *providers.Spotify) {
	if cfg.Spotify.ClientID == "" {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := spotify.Authenticate(ctx); err != nil {
				log.Warn().Err(err).Str("service", providers.SpotifyServiceID).Msg("initial authentication failed")
			}
			return nil
		},
	})
}

func newResolver(cfg *config.Config, reg *video.Registry) core.Resolver {
	return video.NewService(reg, video.NewCache(cfg.CacheTTL), video.Options{
		FetchTimeout:      cfg.ResolveTimeout,
		MaxCollectionSize: cfg.MaxCollectionSize,
		Workers:           cfg.ResolveWorkers,
	})
}

func newRoomManager(lc fx.Lifecycle, cfg *config.Config, dir *sqlite.Directory, resolver core.Resolver) *app.RoomManagerImpl {
	rooms := app.NewRoomManager(dir, core.RoomOptions{
		Clock:           core.SystemClock,
		Resolver:        resolver,
		HeartbeatPeriod: cfg.HeartbeatPeriod,
	})
	lc.Append(fx.StopHook(rooms.Shutdown))
	return rooms
}

func newPolicy(cfg *config.Config) (app.Policy, error) {
	return app.PolicyFromString(cfg.BackpressurePolicy)
}

func newSignalController(cfg *config.Config, o *orch.Orchestrator) *signaling.SignalWSController {
	limiter := signaling.NewRoomRateLimiter(cfg.RateLimit.Count, cfg.RateLimit.Interval)
	return signaling.NewSignalWSController(o, limiter, signaling.ConnConfig{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
	})
}

// newRouter builds the gin engine. Websocket connections live under a context
// that is cancelled when the app stops.
func newRouter(
	lc fx.Lifecycle,
	cfg *config.Config,
	o *orch.Orchestrator,
	ctrl *signaling.SignalWSController,
	resolver core.Resolver,
) *gin.Engine {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.StopHook(cancel))
	return router.SetupRouter(ctx, cfg, o, ctrl, resolver)
}

func newHTTPServer(lc fx.Lifecycle, cfg *config.Config, engine *gin.Engine) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info().Str("addr", ln.Addr().String()).Msg("Together server started")
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("server error")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
	return srv
}
