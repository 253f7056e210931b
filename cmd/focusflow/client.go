package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/focusflow/internal/api"
	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
	"github.com/eliteGoblin/focusd/focusflow/internal/infra"
	"github.com/eliteGoblin/focusd/focusflow/internal/usecase"
)

var startCmd = &cobra.Command{
	Use:       "start <focus|short_break|long_break>",
	Short:     "Start a session",
	Long:      `Starts a session of the given kind. A running session is replaced.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(domain.StatusFocus), string(domain.StatusShortBreak), string(domain.StatusLongBreak)},
	RunE:      runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running session",
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the timer",
	Long:  `Shows the running session, the remaining time and the number of completed focus sessions.`,
	RunE:  runStatus,
}

var soundCmd = &cobra.Command{
	Use:   "sound",
	Short: "Play the completion gong",
	RunE:  runSound,
}

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Manage sites allowed during focus sessions",
}

var whitelistAddCmd = &cobra.Command{
	Use:   "add <domain|url>",
	Short: "Allow a site (subdomains included)",
	Args:  cobra.ExactArgs(1),
	RunE:  runWhitelistAdd,
}

var whitelistRemoveCmd = &cobra.Command{
	Use:   "remove <domain|url>",
	Short: "Remove a site from the whitelist",
	Args:  cobra.ExactArgs(1),
	RunE:  runWhitelistRemove,
}

var whitelistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List whitelisted sites",
	RunE:  runWhitelistList,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change session durations",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change session durations (minutes)",
	Long: `Changes session durations in minutes. Out-of-range values fall back
to the default (focus 1-120, short break 1-30, long break 1-60).
Durations apply from the next started session.`,
	RunE: runSettingsSet,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch one site and cover it while focusing",
	Long: `Acts as one browsing context for --host. The block overlay is shown
whenever a focus session is running and the host is not whitelisted,
and hidden as soon as that stops being true.`,
	RunE: runWatch,
}

var (
	focusMinutes      int
	shortBreakMinutes int
	longBreakMinutes  int
	watchHost         string
)

func init() {
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	settingsSetCmd.Flags().IntVar(&focusMinutes, "focus", 0, "Focus session length")
	settingsSetCmd.Flags().IntVar(&shortBreakMinutes, "short", 0, "Short break length")
	settingsSetCmd.Flags().IntVar(&longBreakMinutes, "long", 0, "Long break length")
	watchCmd.Flags().StringVar(&watchHost, "host", "", "Host of the watched site")
	_ = watchCmd.MarkFlagRequired("host")

	whitelistCmd.AddCommand(whitelistAddCmd, whitelistRemoveCmd, whitelistListCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(soundCmd)
	rootCmd.AddCommand(whitelistCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(watchCmd)
}

// notRunningHint turns a refused connection into a readable message.
func notRunningHint(err error) error {
	if errors.Is(err, domain.ErrDaemonNotRunning) {
		return fmt.Errorf("%w (run 'focusflow daemon --detach')", err)
	}
	return err
}

func runStart(cmd *cobra.Command, args []string) error {
	kind, err := domain.ParseSessionKind(args[0])
	if err != nil {
		return err
	}

	client, _, _, err := newClient()
	if err != nil {
		return err
	}

	state, err := client.Start(cmd.Context(), kind)
	if err != nil {
		return notRunningHint(err)
	}

	fmt.Printf("Started %s (%s), ends at %s\n",
		state.Status,
		time.Duration(state.Duration)*time.Millisecond,
		state.EndTime.Local().Format("15:04"))
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	client, _, _, err := newClient()
	if err != nil {
		return err
	}
	if _, err := client.Stop(cmd.Context()); err != nil {
		return notRunningHint(err)
	}
	fmt.Println("Stopped. Timer is idle.")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, _, _, err := newClient()
	if err != nil {
		return err
	}

	report, err := client.Status(cmd.Context())
	if errors.Is(err, domain.ErrDaemonNotRunning) {
		if jsonOutput {
			fmt.Println(`{"running":false}`)
			return nil
		}
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'focusflow daemon --detach' to start the timer daemon.")
		return nil
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Println("\n=== focusflow Status ===")
	if report.State.Status == domain.StatusIdle {
		fmt.Println("Timer: idle")
	} else {
		remaining := time.Duration(report.RemainingMs) * time.Millisecond
		fmt.Printf("Timer: %s (%s)\n", report.State.Status, report.Badge)
		fmt.Printf("Remaining: %s\n", remaining.Round(time.Second))
		if report.State.EndTime != nil {
			fmt.Printf("Ends at: %s\n", report.State.EndTime.Local().Format("15:04:05"))
		}
	}
	fmt.Printf("Focus sessions completed: %d\n", report.SessionsCompleted)
	fmt.Printf("Daemon: pid %d, version %s\n", report.PID, report.Version)
	fmt.Println("========================")
	return nil
}

func runSound(cmd *cobra.Command, args []string) error {
	client, _, _, err := newClient()
	if err != nil {
		return err
	}
	if err := client.TestSound(cmd.Context()); err != nil {
		return notRunningHint(err)
	}
	fmt.Println("Gong sent to the audio host")
	return nil
}

// newSettingsEditor edits settings through the daemon's store.
func newSettingsEditor() (*usecase.SettingsEditor, error) {
	client, cfg, logger, err := newClient()
	if err != nil {
		return nil, err
	}
	records := usecase.NewRecords(api.NewRemoteStore(client, cfg.Namespace))
	return usecase.NewSettingsEditor(records, logger), nil
}

func runWhitelistAdd(cmd *cobra.Command, args []string) error {
	editor, err := newSettingsEditor()
	if err != nil {
		return err
	}

	normalized, added, err := editor.AddDomain(cmd.Context(), args[0])
	if err != nil {
		return notRunningHint(err)
	}
	if !added {
		fmt.Printf("%s is already whitelisted\n", normalized)
		return nil
	}
	fmt.Printf("Whitelisted %s\n", normalized)
	return nil
}

func runWhitelistRemove(cmd *cobra.Command, args []string) error {
	editor, err := newSettingsEditor()
	if err != nil {
		return err
	}

	removed, err := editor.RemoveDomain(cmd.Context(), args[0])
	if err != nil {
		return notRunningHint(err)
	}
	if !removed {
		fmt.Printf("%s is not whitelisted\n", args[0])
		return nil
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}

func runWhitelistList(cmd *cobra.Command, args []string) error {
	editor, err := newSettingsEditor()
	if err != nil {
		return err
	}

	domains, err := editor.Whitelist(cmd.Context())
	if err != nil {
		return notRunningHint(err)
	}

	fmt.Println("\n=== Whitelisted Sites ===")
	if len(domains) == 0 {
		fmt.Println("(none - every site is blocked during focus)")
	}
	for _, d := range domains {
		fmt.Printf("  - %s\n", d)
	}
	fmt.Println("=========================")
	return nil
}

func printSettings(settings domain.Settings) {
	fmt.Println("\n=== Settings ===")
	fmt.Printf("Focus:       %d min\n", settings.FocusTime)
	fmt.Printf("Short break: %d min\n", settings.ShortBreak)
	fmt.Printf("Long break:  %d min\n", settings.LongBreak)
	fmt.Printf("Whitelist:   %d sites\n", len(settings.Whitelist))
	fmt.Println("================")
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	editor, err := newSettingsEditor()
	if err != nil {
		return err
	}

	settings, err := editor.Settings(cmd.Context())
	if err != nil {
		return notRunningHint(err)
	}
	printSettings(settings)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	editor, err := newSettingsEditor()
	if err != nil {
		return err
	}

	current, err := editor.Settings(cmd.Context())
	if err != nil {
		return notRunningHint(err)
	}

	// Unset flags keep the current value.
	focus, short, long := current.FocusTime, current.ShortBreak, current.LongBreak
	if cmd.Flags().Changed("focus") {
		focus = focusMinutes
	}
	if cmd.Flags().Changed("short") {
		short = shortBreakMinutes
	}
	if cmd.Flags().Changed("long") {
		long = longBreakMinutes
	}

	settings, err := editor.SaveDurations(cmd.Context(), focus, short, long)
	if err != nil {
		return notRunningHint(err)
	}
	printSettings(settings)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	client, cfg, logger, err := newClient()
	if err != nil {
		return err
	}

	page, err := infra.ParseStaticPage(watchHost)
	if err != nil {
		return err
	}
	overlay := infra.NewTerminalOverlay(page.Address())
	records := usecase.NewRecords(api.NewRemoteStore(client, cfg.Namespace))
	reactor := usecase.NewEnforcementReactor(records, page, overlay, logger)

	fmt.Printf("Watching %s (Ctrl-C to quit)\n", page.Address())

	ctx, cancel := signalContext(logger)
	defer cancel()

	err = reactor.Watch(ctx, time.Second)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
