package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meethub/internal/adapters/auth"
	router "github.com/dkeye/meethub/internal/adapters/http"
	"github.com/dkeye/meethub/internal/adapters/rtc"
	"github.com/dkeye/meethub/internal/adapters/store"
	"github.com/dkeye/meethub/internal/app"
	"github.com/dkeye/meethub/internal/app/orch"
	"github.com/dkeye/meethub/internal/config"
	"github.com/dkeye/meethub/internal/core"
	"github.com/dkeye/meethub/internal/domain"
	"github.com/dkeye/meethub/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	meetings, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open meeting store")
	}
	ice, err := rtc.ICEServers(cfg.ICEServers)
	if err != nil {
		log.Fatal().Err(err).Msg("bad ice_servers")
	}

	var gatherer prometheus.Gatherer
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		gatherer = reg
	}

	live := make([]domain.MeetingStatus, 0, len(cfg.Validator.LiveStatuses))
	for _, s := range cfg.Validator.LiveStatuses {
		live = append(live, domain.MeetingStatus(s))
	}
	validator := app.NewCachedValidatorSize(app.NewMeetingValidator(meetings, live...), cfg.Validator.CacheTTL, cfg.Validator.CacheSize)

	hub := orch.NewHub(
		auth.NewJWTVerifier(cfg.Auth.Secret, cfg.Auth.Issuer),
		validator,
		orch.WithPolicy(app.SimplePolicy{}),
		orch.WithMetrics(m),
		orch.WithICEServers(ice),
	)
	monitor := orch.NewMonitor(hub, cfg.Liveness.Interval)
	go monitor.Run(ctx)

	r := router.SetupRouter(ctx, cfg, hub, gatherer)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("meethub started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

func openStore(cfg *config.Config) (core.MeetingStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		db, err := store.OpenPostgres(cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		return store.NewGormStore(db), nil
	default:
		seed := make([]domain.Meeting, 0, len(cfg.Store.Meetings))
		for _, mc := range cfg.Store.Meetings {
			seed = append(seed, domain.Meeting{
				ID:            domain.MeetingID(mc.ID),
				Status:        domain.MeetingStatus(mc.Status),
				HasJoinedHost: mc.HostJoined,
			})
		}
		log.Info().Int("meetings", len(seed)).Msg("using in-memory meeting store")
		return store.NewMemoryStore(seed...), nil
	}
}
