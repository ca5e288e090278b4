package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/telebridge/internal/logger"
	"github.com/marmos91/telebridge/internal/telemetry"
	"github.com/marmos91/telebridge/pkg/authserver"
	"github.com/marmos91/telebridge/pkg/bot"
	"github.com/marmos91/telebridge/pkg/config"
	"github.com/marmos91/telebridge/pkg/logsweep"
	"github.com/marmos91/telebridge/pkg/metrics"
	"github.com/marmos91/telebridge/pkg/onedrive"
	"github.com/marmos91/telebridge/pkg/pacer"
	"github.com/marmos91/telebridge/pkg/progress"
	"github.com/marmos91/telebridge/pkg/scheduler"
	"github.com/marmos91/telebridge/pkg/session"
	"github.com/marmos91/telebridge/pkg/store"
	"github.com/marmos91/telebridge/pkg/telegram/botapi"
	"github.com/marmos91/telebridge/pkg/telegram/mtproto"
	"github.com/marmos91/telebridge/pkg/transfer"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/telebridge/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Telebridge bot",
	Long: `Start the Telebridge bot with the specified configuration.

Credentials can come from the config file, TELEBRIDGE_* environment
variables, or the flags below. Flags win over the environment, which
wins over the file.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/telebridge/config.yaml.

Examples:
  # Start with the default config file
  telebridge start

  # Start with credentials on the command line (no config file needed)
  telebridge start --tg-api-id 12345 --tg-api-hash abc... --tg-bot-token 123:abc... \
    --tg-user-phone +15551234567 --od-client-id ... --od-client-secret ...

  # Start with environment variable overrides
  TELEBRIDGE_LOGGING_LEVEL=DEBUG telebridge start`,
	RunE: runStart,
}

func init() {
	f := startCmd.Flags()
	f.Int("tg-api-id", 0, "Telegram application API id (from my.telegram.org)")
	f.String("tg-api-hash", "", "Telegram application API hash")
	f.String("tg-bot-token", "", "bot token (from @BotFather)")
	f.String("tg-user-phone", "", "user account phone number in international format")
	f.String("tg-user-password", "", "user account two-step verification password")
	f.String("tg-user-name", "", "user account username; also the default allow-list")
	f.String("od-client-id", "", "OneDrive OAuth client id")
	f.String("od-client-secret", "", "OneDrive OAuth client secret")
	f.String("od-root-path", "", "default upload folder on the drive")
	f.String("server-url", "", "public base URL of the login callback server")
	f.Bool("auto-delete", false, "delete trigger messages after successful uploads")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFlags(GetConfigFile(), cmd.Flags())
	if err != nil {
		return err
	}

	if err := checkCredentials(cfg); err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "telebridge",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "telebridge",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("Telebridge - Telegram to OneDrive transfer bridge")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	// Watch the config file so log level changes apply without a restart
	if err := config.Watch(GetConfigFile(), func(updated *config.Config, err error) {
		if err != nil {
			logger.Warn("Ignoring config reload", "error", err)
			return
		}
		logger.SetLevel(updated.Logging.Level)
		logger.Info("Log level updated", "level", updated.Logging.Level)
	}); err != nil {
		logger.Warn("Config watch unavailable", "error", err)
	}

	// Initialize metrics (if enabled)
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		metricsServer, err = metrics.NewServer(cfg.Metrics.Port)
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Open the task queue. Without resume the table is truncated: upload
	// session URLs from the previous run expire too fast to be worth
	// keeping across anything but a quick restart.
	st, err := store.New(&store.Config{
		Path:   filepath.Join(cfg.Storage.StateDir, "tasks.db"),
		Resume: cfg.Storage.Resume,
	})
	if err != nil {
		return fmt.Errorf("failed to open task store: %w", err)
	}
	defer st.Close()

	sessions, err := session.New(&session.Config{
		Path: filepath.Join(cfg.Storage.StateDir, "sessions.db"),
	})
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer sessions.Close()

	drive := onedrive.NewClient(onedrive.Config{
		ClientID:     cfg.Drive.ClientID,
		ClientSecret: cfg.Drive.ClientSecret,
		RedirectURL:  cfg.Server.URL + "/auth",
	})

	authSrv := authserver.New(authserver.Config{
		Listen:   cfg.Server.Listen,
		CertFile: cfg.Server.CertFile,
		KeyFile:  cfg.Server.KeyFile,
	})

	botClient, err := botapi.New(botapi.Config{Token: cfg.Telegram.BotToken})
	if err != nil {
		return err
	}

	// gotd's file storage expects the parent directory to exist.
	if err := os.MkdirAll(cfg.Telegram.SessionDir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	userClient := mtproto.New(mtproto.Config{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		Phone:       cfg.Telegram.User.Phone,
		Password:    cfg.Telegram.User.Password,
		SessionFile: filepath.Join(cfg.Telegram.SessionDir, "user.session"),
	}, authSrv)

	pacerCfg := pacer.Config{MinDelay: cfg.Pacer.MinDelay, MaxDelay: cfg.Pacer.MaxDelay}
	botPacer := pacer.New("bot", botClient, pacerCfg, metrics.NewPacerMetrics("bot"))
	userPacer := pacer.New("user", userClient, pacerCfg, metrics.NewPacerMetrics("user"))

	urls := transfer.NewSourceClient()
	runner := transfer.New(drive, st, transfer.Config{
		PartSize:   cfg.Transfer.PartSize,
		RetryMax:   cfg.Transfer.RetryMax,
		RetrySleep: cfg.Transfer.RetrySleep,
	}, metrics.NewTransferMetrics())

	aborters := scheduler.NewAborters()
	sched := scheduler.New(st, runner, userClient, aborters, urls, scheduler.Config{
		Workers: cfg.Transfer.Workers,
	})

	agg := progress.New(st, botPacer, userPacer, userClient, progress.Config{
		Tick: cfg.Progress.Tick,
	})

	b := bot.New(bot.Deps{
		Store:    st,
		Sessions: sessions,
		Drive:    drive,
		Aborters: aborters,
		Auth:     bot.NewAuthServer(authSrv),
		Client:   botClient,
		User:     userClient,
		Out:      botPacer,
		URLs:     urls,
	}, bot.Config{
		AllowedUsers:    cfg.Telegram.AllowedUsers,
		ServerURL:       cfg.Server.URL,
		DefaultRootPath: cfg.Drive.RootPath,
		Version:         Version,
		AutoDelete:      cfg.AutoDelete,
	})

	// Sweep rotated log files when logging goes to a file
	if dir := logger.Dir(); dir != "" {
		sweeper, err := logsweep.New(logsweep.Config{
			Dir:       dir,
			LiveFile:  logger.FilePath(),
			Retention: time.Duration(cfg.Logging.MaxAge) * 24 * time.Hour,
		})
		if err != nil {
			return fmt.Errorf("failed to create log sweeper: %w", err)
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	botPacer.Start(ctx)
	userPacer.Start(ctx)
	sched.Start(ctx)
	agg.Start(ctx)
	b.Start()

	// Run the two transports (and the metrics server) until one fails or
	// the context ends
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return botClient.Run(gctx) })
	g.Go(func() error { return userClient.Run(gctx) })
	if metricsServer != nil {
		g.Go(func() error { return metricsServer.Start(gctx) })
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- g.Wait()
	}()

	// Wait for interrupt signal or transport error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Bridge is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Transport shutdown error", "error", err)
		}

	case err := <-serverDone:
		signal.Stop(sigChan)
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Transport error", "error", err)
			stopPipeline(cfg.ShutdownTimeout, b, sched, agg, botPacer, userPacer)
			return err
		}
	}

	stopPipeline(cfg.ShutdownTimeout, b, sched, agg, botPacer, userPacer)
	logger.Info("Bridge stopped gracefully")

	return nil
}

// stopPipeline drains the moving parts in dependency order: commands
// first, then the transfer workers, then the progress loop, and the
// pacers last so final replies still flush.
func stopPipeline(timeout time.Duration, b *bot.Bot, sched *scheduler.Scheduler, agg *progress.Aggregator, pacers ...*pacer.Pacer) {
	b.Stop(timeout)
	sched.Stop(timeout)
	agg.Stop(timeout)
	for _, p := range pacers {
		p.Stop(timeout)
	}
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
