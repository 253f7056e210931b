// Package api exposes the timer daemon over HTTP: control endpoints, raw
// record access for settings, and a server-sent change stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

// Stream event names.
const (
	EventReady  = "ready"
	EventChange = "change"
	EventPing   = "ping"
)

const heartbeatInterval = 15 * time.Second

// Controller is the timer side of the control surface.
// Implemented by the daemon event loop and by Client.
type Controller interface {
	Start(ctx context.Context, kind domain.TimerStatus) (domain.TimerState, error)
	Stop(ctx context.Context) (domain.TimerState, error)
	Status(ctx context.Context) (domain.StatusReport, error)
	TestSound(ctx context.Context) error
}

// Server serves the control surface.
type Server struct {
	engine     *gin.Engine
	controller Controller
	store      domain.Store
	logger     *zap.Logger
}

type startRequest struct {
	Kind string `json:"kind"`
}

type putRequest struct {
	Records map[string]json.RawMessage `json:"records"`
}

type recordResponse struct {
	Key   string          `json:"key"`
	Found bool            `json:"found"`
	Value json.RawMessage `json:"value,omitempty"`
}

// NewServer builds the router.
func NewServer(controller Controller, store domain.Store, logger *zap.Logger) *Server {
	s := &Server{
		controller: controller,
		store:      store,
		logger:     logger,
	}

	engine := gin.New()
	engine.Use(requestLogger(logger), gin.Recovery())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	timer := api.Group("/timer")
	timer.POST("/start", s.start)
	timer.POST("/stop", s.stop)
	timer.GET("/state", s.status)

	api.POST("/sound/test", s.testSound)

	records := api.Group("/store")
	records.GET("/changes", s.streamChanges)
	records.GET("/:key", s.getRecord)
	records.PUT("", s.putRecords)

	s.engine = engine
	return s
}

// Handler returns the HTTP handler (for tests).
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve handles requests on ln until ctx is done. Request contexts derive
// from ctx so open change streams end with it.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest("invalid_json", "invalid request body"))
		return
	}
	kind, err := domain.ParseSessionKind(req.Kind)
	if err != nil {
		writeError(c, fromError(err))
		return
	}

	state, err := s.controller.Start(c.Request.Context(), kind)
	if err != nil {
		writeError(c, fromError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (s *Server) stop(c *gin.Context) {
	state, err := s.controller.Stop(c.Request.Context())
	if err != nil {
		writeError(c, fromError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (s *Server) status(c *gin.Context) {
	report, err := s.controller.Status(c.Request.Context())
	if err != nil {
		writeError(c, fromError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": report})
}

func (s *Server) testSound(c *gin.Context) {
	if err := s.controller.TestSound(c.Request.Context()); err != nil {
		writeError(c, fromError(err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"played": true})
}

func (s *Server) getRecord(c *gin.Context) {
	key := c.Param("key")
	value, found, err := s.store.Get(c.Request.Context(), key)
	if err != nil {
		writeError(c, fromError(err))
		return
	}
	c.JSON(http.StatusOK, recordResponse{Key: key, Found: found, Value: value})
}

// putRecords accepts whole-record writes for settings only. The timer and
// stats records have a single writer, the timer daemon.
func (s *Server) putRecords(c *gin.Context) {
	var req putRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Records) == 0 {
		writeError(c, badRequest("invalid_json", "invalid request body"))
		return
	}

	records := make(map[string][]byte, len(req.Records))
	for key, raw := range req.Records {
		if key != domain.KeySettings {
			writeError(c, fromError(domain.ErrReadOnlyKey))
			return
		}
		var settings domain.Settings
		if err := json.Unmarshal(raw, &settings); err != nil {
			writeError(c, badRequest("malformed_record", "settings: "+err.Error()))
			return
		}
		records[key] = raw
	}

	if err := s.store.Set(c.Request.Context(), records); err != nil {
		s.logger.Error("store write failed", zap.Error(err))
		writeError(c, fromError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// streamChanges subscribes before sending the ready event, so a client that
// reconciles after ready cannot miss a write.
func (s *Server) streamChanges(c *gin.Context) {
	ctx := c.Request.Context()
	changes, cancel, err := s.store.Subscribe(ctx, splitKeys(c.Query("keys"))...)
	if err != nil {
		writeError(c, fromError(err))
		return
	}
	defer cancel()

	streamID := uuid.NewString()
	logger := s.logger.With(zap.String("stream", streamID))
	logger.Debug("change stream opened", zap.String("keys", c.Query("keys")))
	defer logger.Debug("change stream closed")

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent(EventReady, streamID)
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case change, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent(EventChange, change)
			return true
		case <-heartbeat.C:
			c.SSEvent(EventPing, streamID)
			return true
		}
	})
}

func splitKeys(raw string) []string {
	if raw == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
