package infra

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
	"github.com/eliteGoblin/focusd/focusflow/internal/policy"
)

func TestTerminalOverlay_ShowIsIdempotent(t *testing.T) {
	var out bytes.Buffer
	o := NewTerminalOverlayWithWriter(&out, "youtube.com", false)

	o.Show()
	o.Show()

	assert.True(t, o.Visible())
	assert.Equal(t, 1, strings.Count(out.String(), OverlayHeader))
	assert.Contains(t, out.String(), OverlayPrimary)
	assert.Contains(t, out.String(), OverlaySecondary)
	assert.Contains(t, out.String(), "youtube.com")
}

func TestTerminalOverlay_HideOnlyWhenVisible(t *testing.T) {
	var out bytes.Buffer
	o := NewTerminalOverlayWithWriter(&out, "youtube.com", false)

	o.Hide()
	assert.Empty(t, out.String())

	o.Show()
	o.Hide()
	o.Hide()

	assert.False(t, o.Visible())
	assert.Equal(t, 1, strings.Count(out.String(), "unblocked"))
}

func TestTerminalOverlay_StyledRendering(t *testing.T) {
	var out bytes.Buffer
	o := NewTerminalOverlayWithWriter(&out, "youtube.com", true)

	o.Show()

	assert.Contains(t, out.String(), OverlayHeader)
	assert.Contains(t, out.String(), OverlayPrimary)
}

func TestStaticPage_NormalizesHost(t *testing.T) {
	assert.Equal(t, "docs.example.com", NewStaticPage("  Docs.Example.COM ").Address())
}

func TestParseStaticPage(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://Docs.Example.com/x?y=1", "docs.example.com"},
		{"docs.example.com", "docs.example.com"},
		{"http://localhost:8080/", "localhost"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			page, err := ParseStaticPage(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.Address())
			assert.True(t, policy.IsAllowed(page.Address(), []string{"example.com", "localhost"}))
		})
	}

	_, err := ParseStaticPage("not a host")
	assert.ErrorIs(t, err, domain.ErrInvalidDomain)
}
