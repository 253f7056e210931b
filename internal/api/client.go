package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

// Client talks to the timer daemon's control surface.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
	logger  *zap.Logger
}

// NewClient creates a client for addr (host:port or a full URL).
func NewClient(addr string, logger *zap.Logger) *Client {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		// Change streams are long-lived; they end with their context.
		stream: &http.Client{},
		logger: logger,
	}
}

// Start begins a session of kind.
func (c *Client) Start(ctx context.Context, kind domain.TimerStatus) (domain.TimerState, error) {
	var resp struct {
		State domain.TimerState `json:"state"`
	}
	err := c.do(ctx, http.MethodPost, "/api/timer/start", startRequest{Kind: string(kind)}, &resp)
	return resp.State, err
}

// Stop forces the timer to idle.
func (c *Client) Stop(ctx context.Context) (domain.TimerState, error) {
	var resp struct {
		State domain.TimerState `json:"state"`
	}
	err := c.do(ctx, http.MethodPost, "/api/timer/stop", nil, &resp)
	return resp.State, err
}

// Status returns the daemon's view of the timer.
func (c *Client) Status(ctx context.Context) (domain.StatusReport, error) {
	var resp struct {
		Status domain.StatusReport `json:"status"`
	}
	err := c.do(ctx, http.MethodGet, "/api/timer/state", nil, &resp)
	return resp.Status, err
}

// TestSound plays the completion gong.
func (c *Client) TestSound(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/sound/test", nil, nil)
}

// Get reads one raw record.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var resp recordResponse
	if err := c.do(ctx, http.MethodGet, "/api/store/"+url.PathEscape(key), nil, &resp); err != nil {
		return nil, false, err
	}
	if !resp.Found {
		return nil, false, nil
	}
	return resp.Value, true, nil
}

// Put writes whole records. Only settings are accepted by the daemon.
func (c *Client) Put(ctx context.Context, records map[string][]byte) error {
	req := putRequest{Records: make(map[string]json.RawMessage, len(records))}
	for k, v := range records {
		req.Records[k] = v
	}
	return c.do(ctx, http.MethodPut, "/api/store", req, nil)
}

// Changes opens a change stream for keys (all keys when empty). It returns
// once the daemon has confirmed the subscription; the channel is closed when
// the stream ends or ctx is done.
func (c *Client) Changes(ctx context.Context, keys ...string) (<-chan domain.Change, error) {
	endpoint := c.baseURL + "/api/store/changes"
	if len(keys) > 0 {
		endpoint += "?keys=" + url.QueryEscape(strings.Join(keys, ","))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	events := newEventReader(resp.Body)
	first, err := events.next()
	if err != nil || first.name != EventReady {
		resp.Body.Close()
		return nil, fmt.Errorf("change stream handshake failed: %v", err)
	}
	c.logger.Debug("change stream ready", zap.String("stream", first.data))

	out := make(chan domain.Change, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		for {
			ev, err := events.next()
			if err != nil {
				if ctx.Err() == nil {
					c.logger.Debug("change stream ended", zap.Error(err))
				}
				return
			}
			if ev.name != EventChange {
				continue
			}
			var change domain.Change
			if err := json.Unmarshal([]byte(ev.data), &change); err != nil {
				c.logger.Warn("bad change event", zap.Error(err))
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) transportError(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w at %s", domain.ErrDaemonNotRunning, c.baseURL)
	}
	return err
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Code == "" {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body.Error.Status = resp.StatusCode
	return &body.Error
}

type event struct {
	name string
	data string
}

// eventReader parses a text/event-stream body.
type eventReader struct {
	scanner *bufio.Scanner
}

func newEventReader(r io.Reader) *eventReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &eventReader{scanner: scanner}
}

func (r *eventReader) next() (event, error) {
	var ev event
	var data []string
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if ev.name == "" && len(data) == 0 {
				continue
			}
			ev.data = strings.Join(data, "\n")
			return ev, nil
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.name = value
		case "data":
			data = append(data, value)
		}
	}
	if err := r.scanner.Err(); err != nil {
		return event{}, err
	}
	return event{}, io.EOF
}

var _ Controller = (*Client)(nil)
