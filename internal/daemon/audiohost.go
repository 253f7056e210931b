package daemon

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
	"github.com/eliteGoblin/focusd/focusflow/internal/infra"
)

// Player plays the completion sound.
type Player interface {
	Play(ctx context.Context) error
}

// AudioHost is the audio presentation context: a small process that listens
// for play signals on a unix socket and plays the gong.
type AudioHost struct {
	socketPath     string
	registry       domain.DaemonRegistry
	processManager domain.ProcessManager
	player         Player
	daemon         domain.Daemon
	plays          chan struct{}
	logger         *zap.Logger
}

// NewAudioHost creates a new audio host.
func NewAudioHost(
	socketPath string,
	registry domain.DaemonRegistry,
	pm domain.ProcessManager,
	player Player,
	daemon domain.Daemon,
	logger *zap.Logger,
) *AudioHost {
	return &AudioHost{
		socketPath:     socketPath,
		registry:       registry,
		processManager: pm,
		player:         player,
		daemon:         daemon,
		plays:          make(chan struct{}, 1),
		logger:         logger,
	}
}

// Run listens until ctx is canceled. It returns domain.ErrAudioContextExists
// without listening when another audio host is already live.
func (h *AudioHost) Run(ctx context.Context) error {
	if h.anotherHostAlive() {
		h.logger.Info("audio host already running, exiting")
		return domain.ErrAudioContextExists
	}

	ln, err := h.listen()
	if err != nil {
		h.logger.Error("failed to listen", zap.String("socket", h.socketPath), zap.Error(err))
		return err
	}
	defer os.Remove(h.socketPath)
	defer ln.Close()

	if err := h.registry.Register(h.daemon); err != nil {
		h.logger.Error("failed to register audio host", zap.Error(err))
		return err
	}
	defer func() {
		if err := h.registry.Unregister(domain.RoleAudio, h.daemon.PID); err != nil {
			h.logger.Warn("failed to unregister audio host", zap.Error(err))
		}
	}()

	h.logger.Info("audio host started",
		zap.Int("pid", h.daemon.PID),
		zap.String("socket", h.socketPath))

	go h.acceptLoop(ln)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("audio host stopping")
			return ctx.Err()

		case <-h.plays:
			if err := h.player.Play(ctx); err != nil {
				h.logger.Warn("failed to play gong", zap.Error(err))
			}
		}
	}
}

func (h *AudioHost) anotherHostAlive() bool {
	entry, err := h.registry.GetAll()
	if err != nil || entry == nil {
		return false
	}
	pid := entry.PIDFor(domain.RoleAudio)
	return pid != 0 && pid != h.daemon.PID && h.processManager.IsRunning(pid)
}

// listen binds the socket, clearing a stale one left by a crashed host.
func (h *AudioHost) listen() (net.Listener, error) {
	if _, err := os.Stat(h.socketPath); err == nil {
		if conn, err := net.DialTimeout("unix", h.socketPath, time.Second); err == nil {
			conn.Close()
			return nil, domain.ErrAudioContextExists
		}
		h.logger.Info("removing stale socket", zap.String("socket", h.socketPath))
		if err := os.Remove(h.socketPath); err != nil {
			return nil, err
		}
	}

	ln, err := net.Listen("unix", h.socketPath)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(h.socketPath, 0600); err != nil {
		ln.Close()
		return nil, err
	}
	return ln, nil
}

func (h *AudioHost) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				h.logger.Warn("accept failed", zap.Error(err))
			}
			return
		}
		go h.handle(conn)
	}
}

func (h *AudioHost) handle(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		msg := strings.TrimSpace(scanner.Text())
		if msg != infra.PlaySoundCommand {
			h.logger.Debug("ignoring message", zap.String("msg", msg))
			continue
		}
		// One pending play is enough; extra signals while playing are dropped.
		select {
		case h.plays <- struct{}{}:
		default:
		}
	}
}
