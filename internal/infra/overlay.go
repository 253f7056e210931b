package infra

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
	"github.com/eliteGoblin/focusd/focusflow/internal/policy"
)

// Block overlay texts.
const (
	OverlayHeader    = "VOID"
	OverlayPrimary   = "You chose to focus."
	OverlaySecondary = "This site is not part of your study session."
)

var (
	overlayBox = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#000000")).
			Padding(1, 6).
			Align(lipgloss.Center)
	overlayHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	overlayMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// TerminalOverlay implements domain.Overlay for a terminal browsing context.
// Show and Hide only write when visibility actually changes.
type TerminalOverlay struct {
	mu      sync.Mutex
	out     io.Writer
	address string
	styled  bool
	visible bool
}

// NewTerminalOverlay creates an overlay writing to stdout. Styling is used
// only when stdout is a terminal.
func NewTerminalOverlay(address string) *TerminalOverlay {
	return NewTerminalOverlayWithWriter(os.Stdout, address, term.IsTerminal(int(os.Stdout.Fd())))
}

// NewTerminalOverlayWithWriter creates an overlay on any writer (for testing).
func NewTerminalOverlayWithWriter(out io.Writer, address string, styled bool) *TerminalOverlay {
	return &TerminalOverlay{out: out, address: address, styled: styled}
}

func (o *TerminalOverlay) Show() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.visible {
		return
	}
	o.visible = true
	fmt.Fprintln(o.out, o.render())
}

func (o *TerminalOverlay) Hide() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.visible {
		return
	}
	o.visible = false
	fmt.Fprintf(o.out, "[%s] unblocked\n", o.address)
}

func (o *TerminalOverlay) Visible() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.visible
}

func (o *TerminalOverlay) render() string {
	if !o.styled {
		return strings.Join([]string{
			fmt.Sprintf("[%s] %s", o.address, OverlayHeader),
			OverlayPrimary,
			OverlaySecondary,
		}, "\n")
	}
	body := lipgloss.JoinVertical(lipgloss.Center,
		overlayHeaderStyle.Render(OverlayHeader),
		"",
		OverlayPrimary,
		overlayMutedStyle.Render(OverlaySecondary),
		"",
		overlayMutedStyle.Render(o.address),
	)
	return overlayBox.Render(body)
}

// StaticPage implements domain.BrowsingContext for a fixed address.
type StaticPage struct {
	address string
}

// NewStaticPage creates a browsing context showing host.
func NewStaticPage(host string) *StaticPage {
	return &StaticPage{address: strings.ToLower(strings.TrimSpace(host))}
}

// ParseStaticPage accepts a URL or a bare host and normalizes it the same
// way whitelist entries are normalized.
func ParseStaticPage(input string) (*StaticPage, error) {
	host, err := policy.NormalizeDomain(input)
	if err != nil {
		return nil, err
	}
	return &StaticPage{address: host}, nil
}

func (p *StaticPage) Address() string { return p.address }

var (
	_ domain.Overlay         = (*TerminalOverlay)(nil)
	_ domain.BrowsingContext = (*StaticPage)(nil)
)
