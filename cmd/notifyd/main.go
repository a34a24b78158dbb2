// Command notifyd runs the HR notification engine: the admin HTTP API and
// the queue dispatcher in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/hrnotify/handler"
	notifyapi "github.com/dmitrymomot/hrnotify/modules/notifications"
	"github.com/dmitrymomot/hrnotify/pkg/circuitbreaker"
	"github.com/dmitrymomot/hrnotify/pkg/config"
	"github.com/dmitrymomot/hrnotify/pkg/email"
	"github.com/dmitrymomot/hrnotify/pkg/httpserver"
	"github.com/dmitrymomot/hrnotify/pkg/logger"
	"github.com/dmitrymomot/hrnotify/pkg/notifications"
	"github.com/dmitrymomot/hrnotify/pkg/notifications/pgstore"
	"github.com/dmitrymomot/hrnotify/pkg/pg"
	"github.com/dmitrymomot/hrnotify/pkg/push"
	"github.com/dmitrymomot/hrnotify/pkg/redis"
	"github.com/dmitrymomot/hrnotify/pkg/requestid"
	"github.com/dmitrymomot/hrnotify/pkg/sms"
)

type appConfig struct {
	Logger        logger.Config
	HTTP          httpserver.Config
	Postgres      pg.Config
	Redis         redis.Config
	Notifications notifications.Config
	Email         email.Config
	SMS           sms.Config
	Push          push.Config
	Breaker       circuitbreaker.Config
	ContactQuery  string `env:"DIRECTORY_CONTACT_QUERY"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log := logger.New(append(logger.FromConfig(cfg.Logger),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)...)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.Postgres, log); err != nil {
		return err
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	store := pgstore.New(pool)
	templates := notifications.NewCachedTemplateStore(store,
		redis.NewStorage(rdb, cfg.Redis.KeyPrefix),
		cfg.Notifications.TemplateCacheTTL,
		log,
	)

	if path := cfg.Notifications.TemplatesFile; path != "" {
		seed, err := notifications.LoadTemplatesFile(path)
		if err != nil {
			return err
		}
		n, err := notifications.SeedTemplates(ctx, templates, seed)
		if err != nil {
			return err
		}
		log.LogAttrs(ctx, slog.LevelInfo, "templates seeded",
			slog.String("file", path),
			logger.Count("templates", n),
		)
	}

	senders, closers, err := buildSenders(ctx, cfg, store, log)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.LogAttrs(context.Background(), slog.LevelWarn, "close transport", logger.Error(err))
			}
		}
	}()

	svc := notifications.NewService(store, pgstore.NewDirectory(pool, cfg.ContactQuery),
		notifications.WithLogger(log),
		notifications.WithTemplateStore(templates),
		notifications.WithDefaultMaxAttempts(cfg.Notifications.MaxAttempts),
	)

	dispatcherOpts, err := cfg.Notifications.DispatcherOptions()
	if err != nil {
		return err
	}
	dispatcherOpts = append(dispatcherOpts,
		notifications.WithDispatcherLogger(log),
		notifications.WithLocker(redis.NewLocker(rdb, cfg.Redis.KeyPrefix), cfg.Notifications.TickLockTTL),
	)
	dispatcher := notifications.NewDispatcher(store, senders, dispatcherOpts...)

	router := notifyapi.Router(notifyapi.RouterOptions{
		API: notifyapi.NewAPI(svc, handler.NewErrorHandler(log, notifyapi.ClassifyError)),
		ReadinessChecks: []httpserver.Check{
			{Name: "postgres", Fn: pg.Healthcheck(pool)},
			{Name: "redis", Fn: redis.Healthcheck(rdb)},
		},
		Logger: log,
	})
	server := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx, router) })
	g.Go(dispatcher.Run(ctx))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.LogAttrs(context.Background(), slog.LevelInfo, "notifyd stopped")
	return nil
}

// buildSenders picks a transport per channel from config and guards the
// external ones with a circuit breaker.
func buildSenders(ctx context.Context, cfg appConfig, store *pgstore.Store, log *slog.Logger) ([]notifications.Sender, []io.Closer, error) {
	var closers []io.Closer

	var mailer email.EmailSender
	if cfg.Email.Enabled() {
		client, err := email.NewPostmarkClient(cfg.Email)
		if err != nil {
			return nil, nil, err
		}
		mailer = client
	} else {
		log.LogAttrs(ctx, slog.LevelWarn, "postmark not configured, writing emails to disk",
			slog.String("dir", cfg.Email.DevOutputDir),
		)
		mailer = email.NewDevSender(cfg.Email.DevOutputDir)
	}

	var texter sms.Sender
	if cfg.SMS.Enabled() {
		client, err := sms.NewTwilioClient(cfg.SMS)
		if err != nil {
			return nil, nil, err
		}
		texter = client
	} else {
		texter = sms.NewLogSender(log)
	}

	var pusher push.Sender
	switch cfg.Push.Provider {
	case push.ProviderFCM:
		client, err := push.NewFCMClient(ctx, cfg.Push)
		if err != nil {
			return nil, nil, err
		}
		pusher = client
	case push.ProviderAMQP:
		relay, err := push.NewAMQPRelay(cfg.Push)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, relay)
		pusher = relay
	default:
		pusher = push.NewLogSender(log)
	}

	breaker := func(name string) notifications.Breaker {
		return circuitbreaker.New(name, cfg.Breaker, log)
	}

	return []notifications.Sender{
		notifications.WithCircuitBreaker(notifications.NewEmailSender(mailer), breaker("email")),
		notifications.WithCircuitBreaker(notifications.NewSMSSender(texter), breaker("sms")),
		notifications.WithCircuitBreaker(notifications.NewPushSender(pusher,
			notifications.WithDeviceCleanup(store),
			notifications.WithPushLogger(log),
		), breaker("push")),
		notifications.NewInAppSender(store),
	}, closers, nil
}
