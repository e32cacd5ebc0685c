package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"consultorio/backend/internal/calendar"
	"consultorio/backend/internal/config"
	"consultorio/backend/internal/domain"
	"consultorio/backend/internal/events"
	"consultorio/backend/internal/service/appointments"
	"consultorio/backend/internal/service/availability"
	"consultorio/backend/internal/service/settings"
	"consultorio/backend/internal/service/unavailability"
	"consultorio/backend/internal/store"
	"consultorio/backend/internal/store/memory"
	"consultorio/backend/internal/store/postgres"
	grpcTransport "consultorio/backend/internal/transport/grpc"
	"consultorio/backend/internal/transport/httpapi"
)

const serviceName = "consultorio-server"

func main() {
	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Appointment booking backend for the consultorio",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(syncCmd())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the gRPC health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if cfg.DatabaseDriver != config.DriverPostgres {
				return fmt.Errorf("migrate requires the %s driver", config.DriverPostgres)
			}

			log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
			db, err := postgres.Open(cmd.Context(), cfg.DatabaseURL, poolConfig(cfg))
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer func() {
				if err := postgres.Close(db); err != nil {
					log.Warn("database close failed", slog.Any("err", err))
				}
			}()

			applied, err := postgres.Migrate(cmd.Context(), db)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied", slog.Any("versions", applied), slog.Int("count", len(applied)))
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import the external calendar events of one date",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")

			cfg, log, err := setup()
			if err != nil {
				return err
			}
			a, err := wire(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			if date == "" {
				date = a.zone.Today()
			}
			if _, err := domain.ParseDate(date); err != nil {
				return err
			}
			res, err := a.mirror.SyncDate(cmd.Context(), date)
			if err != nil {
				return fmt.Errorf("sync %s: %w", date, err)
			}
			log.Info("calendar sync finished",
				slog.String("date", res.Date),
				slog.Int("fetched", res.Fetched),
				slog.Int("imported", res.Imported),
				slog.Int("skipped", res.Skipped),
			)
			return nil
		},
	}
	cmd.Flags().String("date", "", "Date to sync (YYYY-MM-DD), defaults to today")
	return cmd
}

func setup() (config.Config, *slog.Logger, error) {
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, log, fmt.Errorf("config load failed: %w", err)
	}

	log = newLogger(parseLogLevel(cfg.LogLevel))
	slog.SetDefault(log)
	return cfg, log, nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With(
		slog.String("service", serviceName),
	)
}

type app struct {
	zone         *domain.Zone
	store        store.Store
	mirror       *calendar.Mirror
	booking      *appointments.Service
	availability *availability.Resolver
	closers      []func() error
	log          *slog.Logger
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", slog.Any("err", err))
		}
	}
}

// wire builds the store and every collaborator the commands need. Optional
// integrations (redis, kafka, google calendar) are enabled by their config
// keys and fall back to in-process no-ops when unset.
func wire(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{log: log}

	zone, err := domain.LoadZone(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}
	a.zone = zone

	hours, ok := domain.BusinessHoursByName(cfg.SlotsGrid)
	if !ok {
		return nil, fmt.Errorf("slots.grid: unknown grid %q", cfg.SlotsGrid)
	}

	switch cfg.DatabaseDriver {
	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on restart")
		a.store = memory.New().Store()
	default:
		log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
		db, err := postgres.Open(ctx, cfg.DatabaseURL, poolConfig(cfg))
		if err != nil {
			args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
			log.Error("database connection failed", args...)
			return nil, err
		}
		a.store = postgres.NewStore(db)
	}
	a.closers = append(a.closers, a.store.Close)

	var gate calendar.Gate = calendar.AlwaysGate{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("redis.url: %w", err)
		}
		rdb := redis.NewClient(opts)
		a.closers = append(a.closers, rdb.Close)
		gate = calendar.NewRedisGate(rdb, cfg.CalendarSyncTTL)
		log.Info("calendar sync gate enabled", slog.String("redis_addr", opts.Addr), slog.Duration("ttl", cfg.CalendarSyncTTL))
	}

	var client calendar.Client = calendar.Disabled{}
	if cfg.CalendarID != "" {
		gc, err := calendar.NewGoogleClient(ctx, calendar.GoogleConfig{
			CalendarID:      cfg.CalendarID,
			CredentialsFile: cfg.CalendarCredentialsFile,
			Location:        zone.Location(),
		})
		if err != nil {
			log.Warn("google calendar unavailable; running without calendar mirror", slog.Any("err", err))
		} else {
			client = gc
			log.Info("google calendar enabled", slog.String("calendar_id", cfg.CalendarID))
		}
	}
	a.mirror = calendar.NewMirror(client, a.store, zone, gate, log, calendar.MirrorConfig{
		Timeout:     cfg.CalendarTimeout,
		PushRetries: uint(cfg.CalendarPushRetries),
	})

	var pub events.Publisher = events.Noop{}
	if brokers := events.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kp := events.NewKafkaPublisher(brokers, cfg.KafkaTopic, log)
		a.closers = append(a.closers, kp.Close)
		pub = kp
		log.Info("event publishing enabled", slog.Any("brokers", brokers), slog.String("topic", cfg.KafkaTopic))
	}

	a.booking = appointments.NewService(a.store, a.mirror, pub, log)
	a.availability = availability.NewResolver(a.store, a.mirror, zone, hours)
	return a, nil
}

func runServer() error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("grpc_addr", cfg.GRPCAddr),
		slog.String("log_level", cfg.LogLevel),
		slog.String("database_driver", cfg.DatabaseDriver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	handler := httpapi.NewHandler(httpapi.Deps{
		Booking:        a.booking,
		Availability:   a.availability,
		Unavailability: unavailability.NewService(a.store.Unavailability),
		Settings:       settings.NewService(a.store.Settings),
		Calendar:       a.mirror,
		Ping:           a.store.Ping,
	}, log)
	e := httpapi.NewServer(handler, log, httpapi.ServerConfig{
		RequestTimeout: cfg.HTTPRequestTimeout,
		AllowOrigins:   cfg.CORSOrigins,
	})

	health := grpcTransport.NewHealthServer(a.store.Ping, log)
	grpcServer := grpcTransport.NewServer(cfg.GRPCRequestTimeout, health)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		health.Watch(gctx, 10*time.Second)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")
		shutdown(log, e.Shutdown, grpcServer, cfg.ShutdownTimeout)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", slog.Any("err", err))
		return err
	}
	log.Info("server stopped")
	return nil
}

func shutdown(log *slog.Logger, httpShutdown func(context.Context) error, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := httpShutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed", slog.Any("err", err))
	}

	if !grpcTransport.Shutdown(s, timeout) {
		log.Warn("grpc graceful shutdown timed out; forcing stop")
	}
}

func poolConfig(cfg config.Config) postgres.PoolConfig {
	return postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
