package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"amazon-orders/internal/amazon/orders"
	"amazon-orders/internal/amazon/session"
	"amazon-orders/internal/amazon/transactions"
	"amazon-orders/internal/components/chrono"
	"amazon-orders/internal/components/telemetry"
	"amazon-orders/internal/config"
	"amazon-orders/internal/store"
)

type credentials struct {
	Username     string
	Password     string
	OtpSecretKey string
}

func flagCredentials() credentials {
	return credentials{Username: *username, Password: *password, OtpSecretKey: *otpSecretKey}
}

// app is everything a command needs, built from the config file and the global flags.
type app struct {
	cfg     config.Config
	tel     telemetry.API
	clock   chrono.TimeAPI
	session *session.Session
	cache   *orders.DetailsCache
	closers []func() error
}

func newCookieStore(cfg config.Config) (session.CookieStore, func() error, error) {
	switch cfg.CookieStore.Kind {
	case config.CookieStoreRedis:
		s, err := session.NewRedisCookieStore(cfg.CookieStore.RedisUrl, cfg.CookieStore.RedisKey)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return session.NewFileCookieStore(cfg.CookieJarPath), nil, nil
	}
}

// sessionOptions translates the config into session options, the cookie store and IO are
// supplied by the caller.
func sessionOptions(cfg config.Config, creds credentials, cookies session.CookieStore, prompts session.IO, clock chrono.TimeAPI) (session.Options, error) {
	constants, err := cfg.StorefrontConstants()
	if err != nil {
		return session.Options{}, err
	}
	sel, err := cfg.PageSelectors()
	if err != nil {
		return session.Options{}, err
	}

	if creds.OtpSecretKey != "" {
		prompts = session.NewTOTPIO(creds.OtpSecretKey, prompts, clock)
	}

	opts := session.Options{
		Username:              creds.Username,
		Password:              creds.Password,
		Constants:             constants,
		Selectors:             sel,
		MaxAuthAttempts:       cfg.MaxAuthAttempts,
		AuthRetryWait:         cfg.AuthRetryWaitDuration(),
		MaxCookieAttempts:     cfg.MaxCookieAttempts,
		RequestTimeout:        cfg.RequestTimeoutDuration(),
		RequestsPerSecond:     cfg.RequestsPerSecond,
		ConnectionPoolSize:    cfg.ConnectionPoolSize,
		WarnOnMissingRequired: cfg.WarnOnMissingRequiredField,
		CookieStore:           cookies,
		IO:                    prompts,
	}
	if cfg.OutputDir != "" {
		output, err := telemetry.NewFilesystemOutput(cfg.OutputDir, "")
		if err != nil {
			return session.Options{}, fmt.Errorf("create output dir: %w", err)
		}
		opts.Output = &output
	}
	return opts, nil
}

func newApp(ctx context.Context, in io.Reader, out io.Writer) (*app, error) {
	telemetry.InitSlog(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:   cfg,
		tel:   telemetry.NewSlogAPI(nil),
		clock: chrono.NewStandardTime(nil),
	}

	otel, err := telemetry.Setup(ctx, serviceName, cfg.Otlp)
	if err != nil {
		a.tel.ReportWarning("otel", err)
	} else {
		a.closers = append(a.closers, func() error { return otel.Shutdown(context.Background()) })
	}

	cookies, closeCookies, err := newCookieStore(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if closeCookies != nil {
		a.closers = append(a.closers, closeCookies)
	}

	opts, err := sessionOptions(cfg, flagCredentials(), cookies, session.NewConsoleIO(in, out), a.clock)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.session, err = session.New(ctx, opts, a.tel)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.CacheDir != "" {
		namespace := defaultCacheName
		if *username != "" {
			namespace = *username
		}
		a.cache, err = orders.OpenDetailsCache(cfg.CacheDir, namespace, cfg.CacheLifetimeDuration(), a.clock)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open details cache: %w", err)
		}
		a.closers = append(a.closers, a.cache.Close)
	}
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		err := a.closers[i]()
		if err != nil {
			slog.Warn("failed to close", "err", err)
		}
	}
	a.closers = nil
}

// ensureLogin signs in unless the stored cookies already did.
func (a *app) ensureLogin(ctx context.Context) error {
	if a.session.IsAuthenticated() {
		return nil
	}
	if flagCredentials().Username == "" || flagCredentials().Password == "" {
		return errors.New("not signed in, give --username and --password (or set " + envUsername + " and " + envPassword + ") or run login first")
	}
	return a.session.Login(ctx)
}

func (a *app) history() orders.History {
	return orders.NewHistory(a.session, a.tel, a.clock, a.cache)
}

func (a *app) transactions() transactions.Client {
	return transactions.NewClient(a.session, a.tel, a.clock)
}

// openStore opens the export database named by --db or the db setting, ok is false when
// neither is set.
func (a *app) openStore(ctx context.Context) (store.Store, bool, error) {
	dsn := *dbPath
	if dsn == "" {
		dsn = a.cfg.DB
	}
	if dsn == "" {
		return store.Store{}, false, nil
	}
	s, err := store.Open(ctx, dsn, a.clock)
	if err != nil {
		return store.Store{}, false, err
	}
	return s, true, nil
}
