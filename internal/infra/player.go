package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

const gongFileName = "gong.wav"

// ErrNoPlayer is returned when no audio player is installed.
var ErrNoPlayer = errors.New("no audio player found")

// CommandPlayer plays the gong through the platform audio player
// (afplay on macOS, paplay or aplay on Linux).
type CommandPlayer struct {
	wavPath   string
	goos      string
	cmdRunner CommandRunner
	logger    *zap.Logger

	prepareOnce sync.Once
	prepareErr  error
}

// NewCommandPlayer creates a player that renders the gong into dir.
func NewCommandPlayer(dir string, logger *zap.Logger) *CommandPlayer {
	return NewCommandPlayerWithDeps(dir, runtime.GOOS, &RealCommandRunner{}, logger)
}

// NewCommandPlayerWithDeps creates a player with injectable dependencies (for testing)
func NewCommandPlayerWithDeps(dir, goos string, cmdRunner CommandRunner, logger *zap.Logger) *CommandPlayer {
	return &CommandPlayer{
		wavPath:   filepath.Join(dir, gongFileName),
		goos:      goos,
		cmdRunner: cmdRunner,
		logger:    logger,
	}
}

// Play renders the gong on first use and plays it to completion.
func (p *CommandPlayer) Play(ctx context.Context) error {
	p.prepareOnce.Do(func() { p.prepareErr = p.prepare() })
	if p.prepareErr != nil {
		return p.prepareErr
	}

	tool, args, err := p.command()
	if err != nil {
		return err
	}
	p.logger.Debug("playing gong", zap.String("player", tool))
	if err := p.cmdRunner.Run(ctx, tool, args...); err != nil {
		return fmt.Errorf("%s: %w", tool, err)
	}
	return nil
}

// WavPath returns where the rendered gong lives.
func (p *CommandPlayer) WavPath() string {
	return p.wavPath
}

func (p *CommandPlayer) command() (string, []string, error) {
	if p.goos == "darwin" {
		return "afplay", []string{p.wavPath}, nil
	}
	tool, ok := firstAvailable(p.cmdRunner, "paplay", "aplay")
	if !ok {
		return "", nil, ErrNoPlayer
	}
	if tool == "aplay" {
		return tool, []string{"-q", p.wavPath}, nil
	}
	return tool, []string{p.wavPath}, nil
}

func (p *CommandPlayer) prepare() error {
	if err := os.MkdirAll(filepath.Dir(p.wavPath), 0700); err != nil {
		return fmt.Errorf("failed to create sound directory: %w", err)
	}
	tmpPath := fmt.Sprintf("%s.%d.tmp", p.wavPath, os.Getpid())
	if err := os.WriteFile(tmpPath, GongWAV(), 0600); err != nil {
		return fmt.Errorf("failed to write gong: %w", err)
	}
	if err := os.Rename(tmpPath, p.wavPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write gong: %w", err)
	}
	return nil
}
