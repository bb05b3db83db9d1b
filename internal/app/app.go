// Package app wires all voxfolio subsystems into a running client.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems (frame codec, control router, session controller, portfolio
// API client, session log store), Run serves the metrics listener and the
// interactive command loop, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithDialer,
// WithRegistry, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/KabeerThockchom/voxfolio/internal/account"
	"github.com/KabeerThockchom/voxfolio/internal/config"
	"github.com/KabeerThockchom/voxfolio/internal/control"
	"github.com/KabeerThockchom/voxfolio/internal/health"
	"github.com/KabeerThockchom/voxfolio/internal/logstore"
	"github.com/KabeerThockchom/voxfolio/internal/observe"
	"github.com/KabeerThockchom/voxfolio/internal/session"
	"github.com/KabeerThockchom/voxfolio/internal/transport"
	"github.com/KabeerThockchom/voxfolio/pkg/audio"
	"github.com/KabeerThockchom/voxfolio/pkg/audio/miniaudio"
	"github.com/KabeerThockchom/voxfolio/pkg/frame"
)

// App owns all subsystem lifetimes.
type App struct {
	cfgMu sync.Mutex
	cfg   *config.Config

	codec      *frame.Codec
	router     *control.Router
	controller *session.Controller
	accounts   *account.Client
	logs       *logstore.Store
	metrics    *observe.Metrics
	registry   *config.Registry
	level      *slog.LevelVar

	dial       transport.DialFunc
	httpClient *http.Client

	cmdIn  io.Reader
	cmdOut io.Writer

	// user is the authenticated backend user, zero until login.
	userMu sync.Mutex
	user   account.User

	// balance caches the last cash balance fetch. Invalidated when the
	// backend pushes a trade_response or user_portfolio message.
	balanceMu    sync.Mutex
	balance      float64
	balanceValid bool

	// sessionStart feeds the session-duration histogram.
	startMu      sync.Mutex
	sessionStart time.Time

	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithDialer injects a transport dialer instead of the real WebSocket one.
func WithDialer(d transport.DialFunc) Option {
	return func(a *App) { a.dial = d }
}

// WithRegistry injects an audio backend registry instead of the default
// miniaudio-only one.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithHTTPClient injects the HTTP client used for portfolio API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) { a.httpClient = c }
}

// WithLogStore injects a session log store instead of opening one from config.
func WithLogStore(s *logstore.Store) Option {
	return func(a *App) { a.logs = s }
}

// WithCommandIO redirects the interactive command loop. Defaults to
// os.Stdin/os.Stdout.
func WithCommandIO(in io.Reader, out io.Writer) Option {
	return func(a *App) { a.cmdIn = in; a.cmdOut = out }
}

// WithLogLevelVar injects the level var controlling the process logger, so
// config reloads can adjust verbosity.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// New creates an App by wiring all subsystems together.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		metrics: observe.DefaultMetrics(),
		cmdIn:   os.Stdin,
		cmdOut:  os.Stdout,
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initCodec(); err != nil {
		return nil, fmt.Errorf("app: init frame codec: %w", err)
	}
	a.initRegistry()
	a.initAccounts()
	if err := a.initLogs(ctx); err != nil {
		return nil, fmt.Errorf("app: init session logs: %w", err)
	}
	a.initRouter()
	if err := a.initController(); err != nil {
		return nil, fmt.Errorf("app: init session controller: %w", err)
	}

	return a, nil
}

// initCodec loads the frame schema: an on-disk descriptor set when
// configured, the compiled-in one otherwise.
func (a *App) initCodec() error {
	a.codec = &frame.Codec{}
	if path := a.cfg.Schema.Path; path != "" {
		slog.Info("loading frame schema", "path", path)
		return a.codec.LoadFile(path)
	}
	return a.codec.LoadBuiltin()
}

// initRegistry registers the real audio backend unless a registry was
// injected.
func (a *App) initRegistry() {
	if a.registry != nil {
		return
	}
	r := config.NewRegistry()
	r.RegisterSource("miniaudio", func(cfg audio.DeviceConfig) (audio.Source, error) {
		return miniaudio.OpenSource(cfg)
	})
	r.RegisterSink("miniaudio", func(f audio.Format) (audio.Sink, error) {
		return miniaudio.OpenSink(f)
	})
	a.registry = r
}

// initAccounts builds the portfolio API client with an instrumented HTTP
// transport, when a backend base URL is configured.
func (a *App) initAccounts() {
	if a.cfg.Server.APIBaseURL == "" {
		return
	}
	if a.httpClient == nil {
		a.httpClient = &http.Client{
			Timeout:   15 * time.Second,
			Transport: observe.Transport(nil, a.metrics),
		}
	}
	a.accounts = account.NewClient(a.cfg.Server.APIBaseURL, a.httpClient)
}

// initLogs opens the session log store and prunes expired entries.
func (a *App) initLogs(ctx context.Context) error {
	if a.logs != nil || !a.cfg.Logs.Enabled {
		return nil
	}
	path := a.cfg.Logs.Path
	if path == "" {
		path = logstore.DefaultPath()
	}
	store, err := logstore.Open(path)
	if err != nil {
		return err
	}
	a.logs = store
	a.closers = append(a.closers, store.Close)

	if days := a.cfg.Logs.RetentionDays; days > 0 {
		cutoff := time.Now().AddDate(0, 0, -days)
		n, err := store.Prune(ctx, cutoff)
		if err != nil {
			slog.Warn("pruning session logs failed", "err", err)
		} else if n > 0 {
			slog.Info("pruned session logs", "removed", n, "cutoff", cutoff)
		}
	}
	return nil
}

// initRouter builds the control message router: session log persistence and
// the cash balance invalidation hook.
func (a *App) initRouter() {
	a.router = control.NewRouter(control.WithValidation())

	a.router.OnBalanceInvalidated(func() {
		a.balanceMu.Lock()
		a.balanceValid = false
		a.balanceMu.Unlock()
		slog.Debug("cash balance cache invalidated")
	})

	if a.logs != nil {
		a.router.Handle(control.SessionLogs, func(env control.Envelope) {
			entry, err := env.SessionLog()
			if err != nil {
				slog.Warn("undecodable session log", "err", err)
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := a.logs.Append(ctx, a.controller.ID(), entry.Type, entry.Datetime, entry.Message); err != nil {
				slog.Warn("persisting session log failed", "err", err)
			}
		})
	}
}

// initController wires the session controller to the audio registry, the
// codec and the metrics instruments.
func (a *App) initController() error {
	dial := a.dial
	if dial == nil {
		dial = transport.Dial
	}

	ctrl, err := session.New(session.Deps{
		Dial: dial,
		OpenSource: func(dc audio.DeviceConfig) (audio.Source, error) {
			return a.registry.CreateSource(a.currentConfig().Audio.Backend, dc)
		},
		OpenSink: func(f audio.Format) (audio.Sink, error) {
			return a.registry.CreateSink(a.currentConfig().Audio.Backend, f)
		},
		Codec:  a.codec,
		Router: a.router,
		OnScheduled: func(_, catchUp time.Duration) {
			a.metrics.RecordCatchUp(context.Background(), catchUp)
		},
		OnFrameSent: func() {
			a.metrics.FramesSent.Add(context.Background(), 1)
		},
		OnFrameReceived: func(kind string) {
			a.metrics.RecordFrameReceived(context.Background(), kind)
		},
		OnFrameDropped: func(reason string) {
			a.metrics.RecordFrameDropped(context.Background(), reason)
		},
	})
	if err != nil {
		return err
	}

	ctrl.OnStateChange = func(old, new session.State) {
		ctx := context.Background()
		switch {
		case old == session.StateConnecting && new == session.StateActive:
			a.metrics.ActiveSessions.Add(ctx, 1)
			a.startMu.Lock()
			a.sessionStart = time.Now()
			a.startMu.Unlock()
		case old == session.StateClosing && new == session.StateIdle:
			a.metrics.ActiveSessions.Add(ctx, -1)
			a.startMu.Lock()
			started := a.sessionStart
			a.sessionStart = time.Time{}
			a.startMu.Unlock()
			if !started.IsZero() {
				a.metrics.SessionDuration.Record(ctx, time.Since(started).Seconds())
			}
		}
	}

	a.controller = ctrl
	return nil
}

// currentConfig returns the config snapshot under the config lock.
func (a *App) currentConfig() *config.Config {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	return a.cfg
}

// sessionConfig translates the app config into session parameters.
func (a *App) sessionConfig() session.Config {
	cfg := a.currentConfig()
	return session.Config{
		Transport: transport.Options{
			URL:         cfg.Server.WSURL,
			PhoneNumber: cfg.Session.PhoneNumber,
			Voice:       cfg.Session.Voice,
			LogNeeded:   cfg.Session.LogNeeded,
			Realtime:    cfg.Session.Realtime,
		},
		Device: cfg.Audio.DeviceConfig(),
		Output: cfg.Audio.Format(),
	}
}

// Controller exposes the session controller, mainly for tests.
func (a *App) Controller() *session.Controller {
	return a.controller
}

// StartSession establishes a voice session with the current config.
func (a *App) StartSession(ctx context.Context) error {
	return a.controller.Start(ctx, a.sessionConfig())
}

// StopSession tears the current session down, if any.
func (a *App) StopSession() error {
	return a.controller.Stop()
}

// SetRealtime flips the backend pipeline mode. A live session is restarted
// so the new mode takes effect.
func (a *App) SetRealtime(ctx context.Context, on bool) error {
	a.cfgMu.Lock()
	a.cfg.Session.Realtime = on
	a.cfgMu.Unlock()

	if a.controller.State() == session.StateIdle {
		return nil
	}
	return a.controller.Reconfigure(ctx, a.sessionConfig())
}

// ApplyConfig reacts to a config file reload: log level changes apply
// immediately, session or audio changes restart a live session.
func (a *App) ApplyConfig(ctx context.Context, old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Any() {
		return
	}

	a.cfgMu.Lock()
	a.cfg = new
	a.cfgMu.Unlock()

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.ServerChanged {
		slog.Warn("server endpoints changed; restart the process to apply")
	}
	if d.RequiresSessionRestart() && a.controller.State() != session.StateIdle {
		slog.Info("session parameters changed, restarting session")
		if err := a.controller.Reconfigure(ctx, a.sessionConfig()); err != nil {
			slog.Error("session restart after config reload failed", "err", err)
		}
	}
}

// slogLevel maps a config log level onto slog's scale.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Run serves the metrics listener and the command loop until ctx is
// cancelled or the command loop quits.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if addr := a.currentConfig().Server.MetricsAddr; addr != "" {
		srv := a.metricsServer(addr)
		g.Go(func() error {
			slog.Info("metrics listener started", "addr", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: metrics listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
	}

	g.Go(func() error {
		// Quitting the command loop brings the whole app down.
		defer cancel()
		return a.commandLoop(ctx)
	})

	err := g.Wait()
	a.Shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// metricsServer builds the HTTP server carrying /metrics, /healthz and
// /readyz.
func (a *App) metricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	checkers := []health.Checker{
		{Name: "frame_schema", Check: func(context.Context) error {
			if !a.codec.Ready() {
				return errors.New("schema not loaded")
			}
			return nil
		}},
	}
	if a.logs != nil {
		checkers = append(checkers, health.Checker{Name: "session_logs", Check: a.logs.Ping})
	}
	health.New(checkers...).Register(mux)

	return &http.Server{Addr: addr, Handler: mux}
}

// Shutdown stops the session and closes all subsystems. Safe to call more
// than once.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		if err := a.controller.Stop(); err != nil {
			slog.Warn("session teardown during shutdown", "err", err)
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				slog.Warn("closer failed during shutdown", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
}
