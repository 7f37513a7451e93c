package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"poscli/internal/broker"
	"poscli/internal/config"
	"poscli/internal/infrastructure"
	"poscli/internal/license"
	custommw "poscli/internal/middleware"
	"poscli/internal/onboarding"
	"poscli/internal/security"
	transport "poscli/internal/transport/http"
)

const (
	// Version is the daemon version reported on /healthz.
	Version = "1.4.0"
	AppName = "posd"
)

// Application is the daemon's dependency container.
type Application struct {
	Config *config.Config
	Paths  *config.Paths
	Logger *slog.Logger
	OTel   *infrastructure.OTelProviders

	Fingerprints *security.FingerprintManager
	Credentials  *security.CredentialStore
	Activation   *license.ActivationService
	Authority    *license.FileAuthority
	Broker       *broker.TrustBroker
	ConnStore    *onboarding.ConfigStore
	Flow         *onboarding.Flow

	Router chi.Router
	Server *http.Server
}

// NewApplication loads configuration and wires every service. It does not
// start anything; Run does.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("daemon starting",
		slog.String("name", AppName),
		slog.String("version", Version),
	)

	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	paths.Resolve(cfg.Paths)
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	otelProviders, err := infrastructure.InitOTel(AppName, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	app := &Application{
		Config: cfg,
		Paths:  paths,
		Logger: logger,
		OTel:   otelProviders,
	}
	if err := app.initServices(); err != nil {
		return nil, err
	}
	app.setupRouter()
	app.createServer()

	return app, nil
}

func (a *Application) initServices() error {
	a.Fingerprints = security.NewFingerprintManager()
	a.Credentials = security.NewCredentialStore(a.Paths.CredentialsFile)

	codec := license.NewCodec()
	store := license.NewStore(codec, a.Paths.LicenseFile, a.Paths.SalesKeyFile)
	a.Authority = license.NewFileAuthority(a.Paths.CardLedgerFile, a.Logger)
	a.Activation = license.NewActivationService(
		codec, store, a.Authority, a.Fingerprints, a.Config.License, a.Logger)

	a.ConnStore = onboarding.NewConfigStore(a.Paths.ConnectionFile)

	brokerMetrics, err := broker.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create broker metrics: %w", err)
	}

	hostname, _ := os.Hostname()
	a.Broker = broker.New(a.Activation, broker.HostInfo{
		HostName:          hostname,
		HostIP:            localIP(),
		DatabasePath:      filepath.Join(a.Paths.BaseDir, a.Config.Trust.DatabaseShareName, "pos.db"),
		DatabaseShareName: a.Config.Trust.DatabaseShareName,
	}, a.Config.Trust, a.Logger, brokerMetrics)

	a.Flow = onboarding.NewFlow(a.Activation, a.dialHost, a.Fingerprints, a.ConnStore, a.Logger)
	return nil
}

// dialHost builds a trust client for a host address, used by onboarding and
// by the client-mode launch check.
func (a *Application) dialHost(hostAddr string) onboarding.TrustDialer {
	return broker.NewClient(hostAddr, a.Config.Trust.RequestTimeout, a.Logger)
}

func (a *Application) setupRouter() {
	licenseHandler := transport.NewLicenseHandler(a.Activation, a.Credentials, a.Logger)
	trustHandler := transport.NewTrustHandler(a.Broker, a.Logger)
	storeHandler := transport.NewStoreHandler(a.Broker.Host(), a.Logger)
	healthHandler := transport.NewHealthHandler(Version, a.Activation, a.ConnStore, a.Logger)

	gate := custommw.NewTrustGate(a.gateValidator(), a.Logger)

	r := chi.NewRouter()
	r.Use(custommw.RequestID)
	r.Use(custommw.StructuredLogger(a.Logger))
	r.Use(custommw.Recoverer(a.Logger))
	// Shared-store routes re-validate the caller's token on every request;
	// license, trust, health and metrics stay open for negotiation.
	r.Use(gate.Handler)

	r.Mount("/", transport.NewRouter(transport.RouterOptions{
		License:  licenseHandler,
		Trust:    trustHandler,
		Store:    storeHandler,
		Health:   healthHandler,
		Registry: a.OTel.Registry,
	}))

	a.Router = r
}

// gateValidator picks who vouches for shared-store callers: hosts and
// standalone terminals ask their own broker, clients ask the host they
// attached to.
func (a *Application) gateValidator() custommw.TokenValidator {
	if cfg, err := a.ConnStore.Load(); err == nil && cfg.IsClient {
		return broker.NewClient(cfg.HostIP, a.Config.Trust.RequestTimeout, a.Logger)
	}
	return a.Broker
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Run starts the daemon and blocks until the context ends or a fatal error
// occurs. SIGINT/SIGTERM trigger graceful shutdown.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := a.unlock(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening",
			slog.String("addr", a.Server.Addr),
			slog.String("mode", mode),
		)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	switch mode {
	case "host":
		// Reclaim seats from silent clients for as long as we serve tokens.
		g.Go(func() error {
			a.Broker.RunReaper(ctx)
			return nil
		})
	case "client":
		g.Go(func() error {
			a.runClientHeartbeat(ctx)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

// unlock runs the launch-time entitlement check and reports the mode the
// daemon operates in: "host", "client" or "unactivated". The daemon always
// serves the local API; an unactivated or failing terminal simply stays
// locked until the UI completes setup or renewal through it.
func (a *Application) unlock(ctx context.Context) string {
	cfg, err := a.Flow.Unlock(ctx)
	switch {
	case err == nil:
		a.Logger.Info("terminal unlocked", slog.String("mode", string(cfg.Mode())))
		return string(cfg.Mode())

	case errors.Is(err, onboarding.ErrNotConfigured):
		a.Logger.Warn("terminal not configured, first-run setup required")
		return "unactivated"

	case errors.Is(err, onboarding.ErrCorruptState):
		a.Logger.Error("connection state unreadable, terminal must be set up again",
			slog.String("error", err.Error()))
		return "unactivated"

	default:
		// Known mode but currently not entitled (expired license, rejected
		// token). The local API stays up so the operator can fix it.
		mode := "unactivated"
		if cfg, loadErr := a.ConnStore.Load(); loadErr == nil {
			mode = string(cfg.Mode())
		}
		a.Logger.Warn("entitlement check failed, application locked",
			slog.String("mode", mode),
			slog.String("error", err.Error()),
		)
		return mode
	}
}

// runClientHeartbeat keeps this client's seat alive on the host.
func (a *Application) runClientHeartbeat(ctx context.Context) {
	cfg, err := a.ConnStore.Load()
	if err != nil || cfg.Token == nil {
		return
	}
	fingerprint, err := a.Fingerprints.GenerateID()
	if err != nil {
		a.Logger.Error("cannot fingerprint terminal for heartbeat", slog.String("error", err.Error()))
		return
	}

	client := broker.NewClient(cfg.HostIP, a.Config.Trust.RequestTimeout, a.Logger)
	client.RunHeartbeat(ctx, fingerprint, a.Config.Trust.HeartbeatInterval)
}

func (a *Application) shutdown() error {
	a.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
	}
	if err := a.OTel.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("log file close: %w", err))
	}
	return errors.Join(errs...)
}

// localIP returns this machine's primary LAN address, falling back to
// loopback when no interface is up. No packets are sent; the UDP dial only
// selects a route.
func localIP() string {
	conn, err := net.Dial("udp", "192.168.0.1:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}
