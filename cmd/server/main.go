// Command clinic-server starts the clinic gRPC server.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/clinic-keeper/internal/api"
	"github.com/and161185/clinic-keeper/internal/config"
	"github.com/and161185/clinic-keeper/internal/limiter"
	"github.com/and161185/clinic-keeper/internal/migrate"
	"github.com/and161185/clinic-keeper/internal/model"
	"github.com/and161185/clinic-keeper/internal/repository/postgres"
	grpcserver "github.com/and161185/clinic-keeper/internal/server/grpc"
	"github.com/and161185/clinic-keeper/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:           "clinic-server",
		Short:         "Clinic administration gRPC server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(root.PersistentFlags())
	root.AddCommand(serveCmd(root), migrateCmd(root))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(root *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(root.PersistentFlags())
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serveCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and serve the gRPC API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := newLogger(cfg.Dev)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func migrateCmd(root *cobra.Command) *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Manage the database schema"}
	run := func(fn func(context.Context, string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			return fn(cmd.Context(), cfg.DSN)
		}
	}
	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply pending migrations", RunE: run(migrate.Up)},
		&cobra.Command{Use: "down", Short: "Roll back the last migration", RunE: run(migrate.Down)},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: run(func(ctx context.Context, dsn string) error {
				v, err := migrate.Version(ctx, dsn)
				if err != nil {
					return err
				}
				fmt.Println(v)
				return nil
			}),
		},
	)
	return cmd
}

// serve runs migrations, wires repositories and services, and blocks until
// ctx is cancelled or the listener fails.
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	db, err := postgres.New(ctx, cfg.DSN, cfg.MaxConns)
	if err != nil {
		return err
	}
	defer db.Close()

	// Repositories
	staffRepo := postgres.NewStaffRepo(db)
	patientRepo := postgres.NewPatientRepo(db)
	apptRepo := postgres.NewAppointmentRepo(db)

	lim := limiter.NewPG(db.Pool, cfg.LimiterWindow, cfg.LimiterMaxFails, cfg.LimiterBlock)

	method, err := cfg.SigningMethod()
	if err != nil {
		return err
	}
	var hours *service.WorkingHours
	if start, end, loc, err := cfg.Hours(); err != nil {
		return err
	} else if loc != nil {
		hours = &service.WorkingHours{Start: start, End: end, Loc: loc}
	}

	// Services
	clock := service.SystemClock{}
	tokenCfg := service.TokenConfig{Key: []byte(cfg.JWTKey), Method: method, TTL: cfg.AccessTTL}
	authSvc := service.NewAuthService(staffRepo, patientRepo, tokenCfg, lim, clock, logger)
	patientSvc := service.NewPatientService(patientRepo, clock, logger)
	apptSvc := service.NewAppointmentService(apptRepo, patientRepo, staffRepo, hours, clock, logger)
	staffSvc := service.NewStaffService(staffRepo, logger)

	if cfg.AdminSeed() {
		created, err := staffSvc.EnsureAdmin(ctx, model.NewStaff{
			Username: cfg.AdminUsername,
			CPF:      cfg.AdminCPF,
			Password: cfg.AdminPassword,
		})
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		logger.Info("bootstrap admin", zap.Bool("created", created))
	}

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.AuthUnary(authSvc),
		),
	}
	if !cfg.Insecure {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("load TLS cert/key: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		logger.Warn("serving without TLS")
	}
	s := grpc.NewServer(opts...)

	// App service
	api.RegisterClinicServer(s, grpcserver.New(authSvc, patientSvc, apptSvc, staffSvc, logger))

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", !cfg.Insecure))
		errCh <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		hs.Shutdown()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
