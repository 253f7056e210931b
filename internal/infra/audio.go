package infra

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

// PlaySoundCommand is the line sent to the audio host to play the gong.
const PlaySoundCommand = "PLAY_SOUND"

// defaultReadyWait bounds the wait for a freshly spawned host to listen.
// A host that is slower than this still registers, and the play signal for
// that completion is lost.
const defaultReadyWait = 500 * time.Millisecond

// SpawnFunc starts a detached audio host and returns its pid.
type SpawnFunc func() (int, error)

// AudioHostClient implements domain.AudioSink on top of a separate audio host
// process reached over a unix socket.
type AudioHostClient struct {
	socketPath  string
	registry    domain.DaemonRegistry
	spawn       SpawnFunc
	dialTimeout time.Duration
	readyWait   time.Duration
	logger      *zap.Logger
}

// NewAudioHostClient creates an audio sink client.
func NewAudioHostClient(socketPath string, registry domain.DaemonRegistry, spawn SpawnFunc, logger *zap.Logger) *AudioHostClient {
	return &AudioHostClient{
		socketPath:  socketPath,
		registry:    registry,
		spawn:       spawn,
		dialTimeout: time.Second,
		readyWait:   defaultReadyWait,
		logger:      logger,
	}
}

// EnsureContext spawns the audio host unless one is already live, in which
// case it returns domain.ErrAudioContextExists.
func (c *AudioHostClient) EnsureContext(ctx context.Context) error {
	if alive, err := c.registry.IsAlive(domain.RoleAudio); err == nil && alive {
		return domain.ErrAudioContextExists
	}
	if c.reachable() {
		return domain.ErrAudioContextExists
	}

	pid, err := c.spawn()
	if err != nil {
		return fmt.Errorf("spawn audio host: %w", err)
	}
	c.logger.Info("audio host spawned", zap.Int("pid", pid))

	return c.waitReady(ctx)
}

// PlaySignal asks the audio host to play the gong. Fire-and-forget.
func (c *AudioHostClient) PlaySignal(ctx context.Context) error {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial audio host: %w", err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(c.dialTimeout))
	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(PlaySoundCommand + "\n"); err != nil {
		return fmt.Errorf("send play signal: %w", err)
	}
	return w.Flush()
}

func (c *AudioHostClient) reachable() bool {
	conn, err := net.DialTimeout("unix", c.socketPath, c.dialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (c *AudioHostClient) waitReady(ctx context.Context) error {
	deadline := time.NewTimer(c.readyWait)
	defer deadline.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.reachable() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("audio host not listening on %s after %s", c.socketPath, c.readyWait)
		case <-ticker.C:
		}
	}
}

var _ domain.AudioSink = (*AudioHostClient)(nil)
