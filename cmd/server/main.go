// Command ditrix-server starts the attendance API.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/credentials"

	"github.com/ditrix/ditrix-server/internal/config"
	"github.com/ditrix/ditrix-server/internal/health"
	"github.com/ditrix/ditrix-server/internal/limiter"
	"github.com/ditrix/ditrix-server/internal/mail"
	"github.com/ditrix/ditrix-server/internal/migrate"
	"github.com/ditrix/ditrix-server/internal/repository"
	"github.com/ditrix/ditrix-server/internal/repository/memory"
	"github.com/ditrix/ditrix-server/internal/repository/postgres"
	redisrepo "github.com/ditrix/ditrix-server/internal/repository/redis"
	grpcserver "github.com/ditrix/ditrix-server/internal/server/grpc"
	httpserver "github.com/ditrix/ditrix-server/internal/server/http"
	"github.com/ditrix/ditrix-server/internal/service"
	"github.com/ditrix/ditrix-server/internal/storage"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func newLogger(c config.Log) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	lvl, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// repos is the storage backend chosen by configuration.
type repos struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	verifs   repository.VerificationRepository
	captures repository.CaptureRepository
	sync     repository.SyncRepository
	limiter  limiter.Limiter
	closers  []func()
}

func (r *repos) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg *config.Config, checker *health.Checker, log *zap.Logger) (*repos, error) {
	r := &repos{}
	a := cfg.Auth

	switch cfg.Database.Driver {
	case "memory":
		store := memory.NewStore()
		checker.Register("db", store)
		r.users = memory.NewUserRepo(store)
		r.sessions = memory.NewSessionRepo(store)
		r.verifs = memory.NewVerificationRepo(store)
		r.captures = memory.NewCaptureRepo(store)
		r.sync = memory.NewSyncRepo(store)
		r.limiter = limiter.NewMemory(a.LoginWindow, a.LoginMaxFails, a.LoginBlockFor)
		log.Warn("using in-memory storage; data is lost on restart")

	default:
		db, err := postgres.Connect(ctx, cfg.Database.DSN, postgres.ConnectOptions{
			MaxConns: cfg.Database.MaxConns,
			Attempts: cfg.Database.ConnectAttempts,
			Backoff:  cfg.Database.ConnectBackoff,
		}, log)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, db.Close)
		if cfg.Database.Migrate {
			if err := migrate.Up(ctx, cfg.Database.DSN, log); err != nil {
				r.close()
				return nil, err
			}
		}
		checker.Register("db", db)
		r.users = postgres.NewUserRepo(db)
		r.sessions = postgres.NewSessionRepo(db)
		r.verifs = postgres.NewVerificationRepo(db)
		r.captures = postgres.NewCaptureRepo(db)
		r.sync = postgres.NewSyncRepo(db)
		r.limiter = limiter.NewPG(db.Pool, a.LoginWindow, a.LoginMaxFails, a.LoginBlockFor)
	}

	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		r.closers = append(r.closers, func() { _ = rdb.Close() })
		checker.Register("redis", redisrepo.Pinger{Client: rdb})
		r.sessions = redisrepo.NewSessionRepo(rdb, redisrepo.DefaultRetention)
		r.verifs = redisrepo.NewVerificationRepo(rdb, redisrepo.DefaultRetention)
		log.Info("sessions and codes stored in redis", zap.String("addr", cfg.Redis.Addr))
	}
	return r, nil
}

func newMailer(c config.Mail, log *zap.Logger) mail.Sender {
	if c.BrevoAPIKey == "" {
		log.Warn("no mail API key; verification codes are logged, not sent")
		return mail.NewLogSender(log)
	}
	return mail.NewBrevo(mail.BrevoConfig{
		APIKey:      c.BrevoAPIKey,
		URL:         c.BrevoURL,
		SenderEmail: c.SenderEmail,
		SenderName:  c.SenderName,
		Timeout:     c.Timeout,
	}, log)
}

func newAvatarStore(ctx context.Context, c config.Avatars) (storage.AvatarStore, error) {
	if c.Bucket == "" {
		return nil, nil
	}
	return storage.NewS3(ctx, storage.S3Config{
		Bucket:          c.Bucket,
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		PublicBaseURL:   c.PublicBaseURL,
	})
}

func serveGRPC(ctx context.Context, cfg config.GRPC, checker *health.Checker, log *zap.Logger) error {
	opts := grpcserver.Options{Reflection: cfg.Reflection}
	if cfg.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return err
		}
		opts.Creds = creds
	}
	gs := grpcserver.New(checker, log, opts)
	lis, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("grpc listening", zap.String("addr", cfg.HealthAddr), zap.Bool("tls", cfg.TLSCert != ""))
		errCh <- gs.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		gs.Stop()
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	checker := health.New(cfg.Health.Timeout, cfg.Health.CacheTTL)

	backend, err := openBackend(ctx, cfg, checker, log)
	if err != nil {
		return err
	}
	defer backend.close()

	avatars, err := newAvatarStore(ctx, cfg.Avatars)
	if err != nil {
		return err
	}

	creds := service.NewCredentialStore(backend.users)
	sessions := service.NewSessionRegistry(backend.sessions, []byte(cfg.Auth.JWTKey), cfg.Auth.SessionTTL)
	api := httpserver.New(httpserver.Deps{
		Auth: service.NewAuthService(service.AuthDeps{
			Credentials:   creds,
			Sessions:      sessions,
			Verifications: service.NewVerificationStore(backend.verifs),
			Limiter:       backend.limiter,
			Mailer:        newMailer(cfg.Mail, log),
			Log:           log,
			CodeTTL:       cfg.Verification.TTL,
			MaxAttempts:   cfg.Verification.MaxAttempts,
		}),
		Sessions:    sessions,
		Profiles:    service.NewProfileService(creds, avatars),
		Captures:    service.NewCaptureService(backend.captures, backend.users),
		Sync:        service.NewSyncService(backend.sync, cfg.SyncMaxBatch),
		Health:      checker,
		Log:         log,
		CORSOrigins: cfg.HTTP.CORSOrigins,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := httpserver.Run(ctx, cfg.HTTP.Addr, api.Routes(), cfg.HTTP.ReadHeaderTimeout, log)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	if cfg.GRPC.HealthAddr != "" {
		g.Go(func() error { return serveGRPC(ctx, cfg.GRPC, checker, log) })
	}
	g.Go(func() error {
		service.RunJanitor(ctx, sessions, cfg.Auth.SessionCleanupInterval, log)
		return nil
	})
	return g.Wait()
}

func main() {
	cfgPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("http", cfg.HTTP.Addr),
		zap.String("driver", cfg.Database.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
