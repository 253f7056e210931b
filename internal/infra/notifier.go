package infra

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

// DesktopNotifier implements domain.Notifier with the platform notification
// tool: osascript on macOS, notify-send elsewhere.
type DesktopNotifier struct {
	goos      string
	cmdRunner CommandRunner
	logger    *zap.Logger
}

// NewDesktopNotifier creates a notifier for the current platform.
func NewDesktopNotifier(logger *zap.Logger) *DesktopNotifier {
	return NewDesktopNotifierWithDeps(runtime.GOOS, &RealCommandRunner{}, logger)
}

// NewDesktopNotifierWithDeps creates a notifier with injectable dependencies (for testing)
func NewDesktopNotifierWithDeps(goos string, cmdRunner CommandRunner, logger *zap.Logger) *DesktopNotifier {
	return &DesktopNotifier{
		goos:      goos,
		cmdRunner: cmdRunner,
		logger:    logger,
	}
}

// Notify shows a banner with title and body.
func (n *DesktopNotifier) Notify(ctx context.Context, title, body string) error {
	if n.goos == "darwin" {
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			appleScriptEscape(body), appleScriptEscape(title))
		if err := n.cmdRunner.Run(ctx, "osascript", "-e", script); err != nil {
			return fmt.Errorf("osascript notification: %w", err)
		}
		return nil
	}

	if _, err := n.cmdRunner.LookPath("notify-send"); err != nil {
		return fmt.Errorf("no notification tool available: %w", err)
	}
	if err := n.cmdRunner.Run(ctx, "notify-send", "--app-name=focusflow", title, body); err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}
	n.logger.Debug("notification sent", zap.String("title", title))
	return nil
}

func appleScriptEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

var _ domain.Notifier = (*DesktopNotifier)(nil)
