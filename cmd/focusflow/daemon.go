package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/focusflow/internal/api"
	"github.com/eliteGoblin/focusd/focusflow/internal/daemon"
	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
	"github.com/eliteGoblin/focusd/focusflow/internal/infra"
	"github.com/eliteGoblin/focusd/focusflow/internal/usecase"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the timer daemon",
	Long: `Runs the timer daemon: the timer state machine, the encrypted store
and the local HTTP control surface. Use --detach to run it in the background.`,
	RunE: runDaemon,
}

// Hidden audio command - self-exec'd by the daemon when the gong has to play
var audioCmd = &cobra.Command{
	Use:    "audio",
	Hidden: true,
	RunE:   runAudio,
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Stop the background processes",
	Long:  `Asks the timer daemon and the audio host to exit. The running session is kept and resumes on next start.`,
	RunE:  runShutdown,
}

var autostartCmd = &cobra.Command{
	Use:   "autostart <enable|disable|status>",
	Short: "Start the timer daemon at login",
	Long: `Installs the timer daemon as a login service: a LaunchAgent on macOS
(LaunchDaemon as root), a systemd unit elsewhere.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"enable", "disable", "status"},
	RunE:      runAutostart,
}

var detach bool

func init() {
	daemonCmd.Flags().BoolVar(&detach, "detach", false, "Run in the background")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(audioCmd)
	rootCmd.AddCommand(shutdownCmd)
	rootCmd.AddCommand(autostartCmd)
}

// signalContext is canceled on SIGINT/SIGTERM.
func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func runDaemon(cmd *cobra.Command, args []string) error {
	paths, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(cfg.DataDir, pm)
	if alive, _ := registry.IsAlive(domain.RoleTimer); alive {
		fmt.Println("focusflow daemon is already running")
		return nil
	}

	if detach {
		pid, err := daemon.StartTimerDaemon(globalArgs(paths)...)
		if err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
		fmt.Printf("focusflow daemon started (pid %d)\n", pid)
		fmt.Printf("Listening on %s, logs in %s\n", cfg.ListenAddr, paths.LogPath)
		return nil
	}

	logger := createLogger(paths, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	key, err := infra.EnsureKey(infra.NewFileKeyProvider(cfg.DataDir))
	if err != nil {
		logger.Error("failed to load store key", zap.Error(err))
		return err
	}
	store, err := infra.NewEncryptedStore(cfg.DataDir, key, cfg.Namespace, logger)
	if err != nil {
		logger.Error("failed to open store", zap.Error(err))
		return err
	}
	defer store.Close()

	scheduler := infra.NewTickerScheduler(logger)
	defer scheduler.Stop()

	badge := infra.NewMemoryBadge()
	notifier := infra.NewDesktopNotifier(logger)
	audio := infra.NewAudioHostClient(cfg.AudioSocket, registry, daemon.AudioHostSpawner(globalArgs(paths)...), logger)

	records := usecase.NewRecords(store)
	timer := usecase.NewTimerManager(records, scheduler, badge, notifier, audio, logger).
		WithTickPeriod(cfg.TickPeriod)

	d := domain.Daemon{
		PID:        os.Getpid(),
		Role:       domain.RoleTimer,
		StartedAt:  time.Now(),
		AppVersion: Version,
	}
	timerDaemon := daemon.NewTimerDaemon(daemon.DefaultTimerConfig(), timer, records, scheduler, badge, registry, d, logger)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", zap.String("addr", cfg.ListenAddr), zap.Error(err))
		return err
	}
	server := api.NewServer(timerDaemon, store, logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	logger.Info("control surface listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("mode", paths.Mode.String()),
		zap.String("store", store.GetStorePath()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return timerDaemon.Run(ctx)
	})
	g.Go(func() error {
		return server.Serve(ctx, ln)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("timer daemon exited", zap.Error(err))
		return err
	}
	return nil
}

func runAudio(cmd *cobra.Command, args []string) error {
	paths, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := createLogger(paths, cfg.LogLevel).With(zap.String("role", string(domain.RoleAudio)))
	defer func() { _ = logger.Sync() }()

	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(cfg.DataDir, pm)
	player := infra.NewCommandPlayer(cfg.DataDir, logger)

	d := domain.Daemon{
		PID:        os.Getpid(),
		Role:       domain.RoleAudio,
		StartedAt:  time.Now(),
		AppVersion: Version,
	}
	host := daemon.NewAudioHost(cfg.AudioSocket, registry, pm, player, d, logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	err = host.Run(ctx)
	if errors.Is(err, domain.ErrAudioContextExists) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runShutdown(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(cfg.DataDir, pm)

	entry, err := registry.GetAll()
	if err != nil {
		return fmt.Errorf("failed to read registry: %w", err)
	}

	stopped := 0
	for _, role := range []domain.DaemonRole{domain.RoleTimer, domain.RoleAudio} {
		pid := entry.PIDFor(role)
		if pid == 0 || !pm.IsRunning(pid) {
			continue
		}
		if err := pm.Terminate(pid); err != nil {
			fmt.Printf("Could not stop %s (pid %d): %v\n", role, pid, err)
			continue
		}
		fmt.Printf("Stopped %s (pid %d)\n", role, pid)
		stopped++
	}

	if stopped == 0 {
		fmt.Println("focusflow is not running")
	}
	return nil
}

func runAutostart(cmd *cobra.Command, args []string) error {
	paths := resolvePaths()
	autostart := infra.NewServiceAutostart(paths)

	switch args[0] {
	case "enable":
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		if err := os.MkdirAll(paths.DataDir, 0700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		if err := autostart.Install(execPath, append([]string{"daemon"}, globalArgs(paths)...)); err != nil {
			return fmt.Errorf("failed to install autostart: %w", err)
		}
		fmt.Printf("Autostart enabled (%s)\n", autostart.GetUnitPath())

	case "disable":
		if err := autostart.Uninstall(); err != nil {
			return fmt.Errorf("failed to remove autostart: %w", err)
		}
		fmt.Println("Autostart disabled")

	case "status":
		fmt.Printf("Execution mode: %s\n", paths.Mode)
		if autostart.IsInstalled() {
			fmt.Printf("Autostart: enabled (%s)\n", autostart.GetUnitPath())
		} else {
			fmt.Println("Autostart: disabled")
		}

	default:
		return fmt.Errorf("unknown action %q (want enable, disable or status)", args[0])
	}
	return nil
}
