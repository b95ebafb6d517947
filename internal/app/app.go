package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"rubswatch/internal/alerting"
	"rubswatch/internal/anomaly"
	"rubswatch/internal/config"
	"rubswatch/internal/logging"
	"rubswatch/internal/scheduler"
	"rubswatch/internal/service"
	"rubswatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app"), Out: os.Stdout}
}

func (a *App) newDetector() *anomaly.Detector {
	return anomaly.NewDetector(a.Config.Anomaly.DetectorConfig())
}

// newNotifier builds the notifier for the configured channels. It returns nil when no channel
// is usable.
func (a *App) newNotifier() alerting.Notifier {
	var notifiers alerting.Multi
	for _, channel := range a.Config.Alerting.Channels {
		switch channel {
		case alerting.ChannelTelegram:
			cfg := a.Config.Alerting.Telegram
			if !cfg.Enabled {
				continue
			}
			notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger))
		case alerting.ChannelLog:
			notifiers = append(notifiers, alerting.NewLogNotifier(a.Logger))
		default:
			a.Logger.Warn().Str("channel", channel).Msg("unknown alert channel ignored")
		}
	}
	switch len(notifiers) {
	case 0:
		return nil
	case 1:
		return notifiers[0]
	default:
		return notifiers
	}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database, a.Config.App.Name)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// requireStore opens the store and fails when no database is configured.
func (a *App) requireStore(ctx context.Context, action string) (*storage.Store, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, errors.New("database not configured; cannot " + action)
	}
	return store, closeStore, nil
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.requireStore(ctx, "run the monitor")
	if err != nil {
		return err
	}
	defer closeStore()

	sched := scheduler.New(scheduler.Options{
		Interval:       a.Config.Scheduler.Interval,
		AlignToStart:   a.Config.Scheduler.AlignToStart,
		StartupDelay:   a.Config.Scheduler.StartupDelay,
		RunImmediately: a.Config.Scheduler.RunImmediately,
	}, a.Logger)

	notifier := a.newNotifier()
	if a.Config.Alerting.Enabled && notifier == nil {
		a.Logger.Warn().Msg("alerting enabled but no channel configured; alerts will only be logged by the monitor")
	}

	monitor := service.New(a.Config, sched, a.newDetector(), store, store, notifier, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting monitoring service")
	err = monitor.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// AllocateOptions configure the allocate command.
type AllocateOptions struct {
	TenantsPath string
	Total       string
	Strategy    string
	Period      string
	PropertyID  string
	Save        bool
	JSON        bool
}

// DetectOptions configure the detect command.
type DetectOptions struct {
	UsagePath string
	Notify    bool
	Save      bool
	Progress  bool
	JSON      bool
}

// ExportOptions hold parameters for exporting a usage series.
type ExportOptions struct {
	PropertyID string
	Utility    anomaly.UtilityType
	PNGPath    string
	CSVPath    string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
