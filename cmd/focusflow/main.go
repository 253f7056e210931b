// Package main is the CLI entry point for focusflow.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/focusflow/internal/api"
	"github.com/eliteGoblin/focusd/focusflow/internal/config"
	"github.com/eliteGoblin/focusd/focusflow/internal/infra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "focusflow",
	Short: "Pomodoro focus timer with site blocking",
	Long: `focusflow runs a Pomodoro timer in the background. While a focus
session is running, every watched site that is not on your whitelist
is covered by a block overlay. Completed focus sessions are counted.

Run 'focusflow daemon --detach' once, then use start/stop/status.`,
	Version:      Version,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath string
	dataDir    string
	verbose    bool
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default ~/.focusflow, /var/lib/focusflow as root)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(versionCmd)
}

// resolvePaths applies --data-dir and --config on top of exec mode detection.
func resolvePaths() *infra.Paths {
	paths := infra.DetectPaths()
	if dataDir != "" {
		paths = infra.PathsFor(dataDir)
	}
	if configPath != "" {
		paths.ConfigPath = configPath
	}
	return paths
}

func loadConfig() (*infra.Paths, *config.Config, error) {
	paths := resolvePaths()
	cfg, err := config.Load(paths.ConfigPath, paths.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return paths, cfg, nil
}

// globalArgs passes the resolved locations on to self-exec'd children.
func globalArgs(paths *infra.Paths) []string {
	return []string{"--data-dir", paths.DataDir, "--config", paths.ConfigPath}
}

// createLogger builds the file logger used by background processes.
func createLogger(paths *infra.Paths, level zapcore.Level) *zap.Logger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{paths.LogPath}
	config.ErrorOutputPaths = []string{paths.ErrorLogPath}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

// cliLogger is quiet unless --verbose is set.
func cliLogger(level zapcore.Level) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment(zap.IncreaseLevel(level))
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// newClient loads config and returns a client for the running daemon.
func newClient() (*api.Client, *config.Config, *zap.Logger, error) {
	_, cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := cliLogger(cfg.LogLevel)
	return api.NewClient(cfg.ListenAddr, logger), cfg, logger, nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("focusflow %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
