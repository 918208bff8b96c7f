package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/zalando/go-keyring"

	"github.com/calorbit/birthday-sync/internal/config"
	"github.com/calorbit/birthday-sync/internal/directory"
	"github.com/calorbit/birthday-sync/internal/engine"
	"github.com/calorbit/birthday-sync/internal/feed"
	"github.com/calorbit/birthday-sync/internal/server"
	"github.com/calorbit/birthday-sync/internal/store"
	"github.com/calorbit/birthday-sync/internal/syncer"
)

// main is the application entry point.
// It delegates execution to runMain to ensure that deferred function calls
// (like closing log files) are executed before the process terminates.
// os.Exit() does not run defers, so we must return an integer code first.
func main() {
	os.Exit(runMain())
}

// cliFlags holds parsed command-line values.
type cliFlags struct {
	showVersion bool
	debugMode   bool
	configPath  string
	once        bool
	personKey   string
}

// runMain manages the application lifecycle, argument parsing, and exit codes.
// Returns config.ExitCodeSuccess on success, config.ExitCodeError on failure.
func runMain() int {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return config.ExitCodeSuccess
	}

	// Configure structured logging (slog) early to capture startup issues.
	logCloser := setupLogging(flags.debugMode)
	if logCloser != nil {
		defer func() {
			_ = logCloser.Close() // Best effort close
		}()
	}

	// Root context that cancels on SIGINT (Ctrl+C) or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logStartupInfo()

	if err := run(ctx, flags); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

func parseFlags() cliFlags {
	var flags cliFlags
	flag.BoolVar(&flags.showVersion, config.FlagVersion, false, config.FlagDescVersion)
	flag.BoolVar(&flags.debugMode, config.FlagDebug, false, config.FlagDescDebug)
	flag.StringVar(&flags.configPath, config.FlagConfig, config.DefaultSettingsFile, config.FlagDescConfig)
	flag.BoolVar(&flags.once, config.FlagOnce, false, config.FlagDescOnce)
	flag.StringVar(&flags.personKey, config.FlagPerson, "", config.FlagDescPerson)
	flag.Parse()
	return flags
}

// run wires dependencies and drives either a one-shot pass or the daemon
// loop (periodic sync plus the ICS feed server).
func run(ctx context.Context, flags cliFlags) error {
	settings, err := config.LoadSettings(flags.configPath)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	st, err := store.OpenSQLite(settings.StorePath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	dir := &directory.VCardDirectory{
		Source:  directorySource(settings),
		Fetcher: directory.NewHTTPFetcher(),
	}

	orch := syncer.NewOrchestrator(dir, st, syncer.Options{
		Horizon: engine.Horizon{
			Past:   settings.HorizonPast,
			Future: settings.HorizonFuture,
		},
		Policy:          engine.LeapPolicyFromName(settings.LeapPolicy),
		ReminderMinutes: settings.ReminderMinutes,
		BatchCeiling:    settings.BatchCeiling,
		NarrowLookahead: settings.HorizonFuture,
	})

	// Narrow mode: ensure one person's next occurrences and exit.
	if flags.personKey != "" {
		_, err := orch.SyncOne(ctx, flags.personKey)
		return err
	}

	renderer := &feed.Renderer{Reader: st, Clock: engine.RealClock{}}
	srv := server.NewFeedServer(settings.FeedPort)

	runPass := func() {
		if _, err := orch.SyncAll(ctx); err != nil {
			slog.Error(config.ErrStoreApply,
				config.LogKeyComponent, config.CompMain,
				config.LogKeyError, err,
			)
			return
		}
		data, err := renderer.Render(ctx)
		if err != nil {
			slog.Error(config.ErrICalEncode,
				config.LogKeyComponent, config.CompMain,
				config.LogKeyError, err,
			)
			return
		}
		srv.Update(data)
	}

	if flags.once {
		_, err := orch.SyncAll(ctx)
		return err
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(settings.SyncCron, runPass); err != nil {
		return fmt.Errorf("%s: %w", config.ErrCronSchedule, err)
	}
	slog.Info(config.MsgCronScheduled,
		config.LogKeyComponent, config.CompMain,
		config.LogKeySchedule, settings.SyncCron,
	)

	// Initial pass so the feed is populated before the first tick.
	runPass()

	scheduler.Start()
	defer scheduler.Stop()

	// Blocks until the context is cancelled.
	return srv.Start(ctx)
}

// directorySource maps settings to a directory source, resolving the web
// password from the OS keyring (it is never stored in the settings file).
func directorySource(settings *config.Settings) directory.Source {
	src := directory.Source{
		Mode:      settings.Directory.Mode,
		LocalPath: settings.Directory.Path,
		WebURL:    settings.Directory.URL,
		WebUser:   settings.Directory.Username,
	}
	if src.Mode == config.SourceModeWeb && src.WebUser != "" {
		if pass, err := keyring.Get(config.KeyringService, src.WebUser); err == nil {
			src.WebPass = pass
		} else {
			slog.Warn(config.MsgPassFail,
				config.LogKeyComponent, config.CompMain,
				config.LogKeyUser, src.WebUser,
				config.LogKeyError, err,
			)
		}
	}
	return src
}

// printVersion outputs the build information to stdout and exits.
func printVersion() {
	fmt.Printf(config.MsgVersionOutput,
		config.AppName,
		config.Version,
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}

// setupLogging configures the default slog logger.
func setupLogging(debugMode bool) io.Closer {
	var writers []io.Writer
	var logFile *os.File

	// 1. Always write to Stdout.
	writers = append(writers, os.Stdout)

	// 2. Attempt to set up a file writer in the user's cache directory.
	if logPath, err := getLogFilePath(); err == nil {
		// O_TRUNC resets logs on restart to prevent indefinite growth.
		f, err := os.OpenFile(logPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, config.FilePermUserRW)
		if err == nil {
			writers = append(writers, f)
			logFile = f
		} else {
			fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, logPath, err)
		}
	}

	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debugMode,
	}

	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), opts))
	slog.SetDefault(logger)

	if logFile == nil {
		return nil
	}
	return logFile
}

// getLogFilePath determines the platform-specific cache directory for logs.
func getLogFilePath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}

	appDir := filepath.Join(cacheDir, config.AppID)

	if err := os.MkdirAll(appDir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}

	return filepath.Join(appDir, config.LogFileName), nil
}
