package worker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/vk/flowgrid/internal/coordinator"
	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// ErrNotConnected is returned by Submit when the socket is down.
var ErrNotConnected = errors.New("worker is not connected")

// DefaultConnectTimeout bounds Dial when Options.ConnectTimeout is zero.
const DefaultConnectTimeout = 15 * time.Second

// Options configures the connection to the worker.
type Options struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// Client is a connected worker session. It implements coordinator.Transport.
type Client struct {
	io     *socket.Socket
	sink   chan<- coordinator.Event
	logger *slog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the worker and forwards its events to sink until Close.
func Dial(ctx context.Context, opts Options, sink chan<- coordinator.Event) (*Client, error) {
	logger := ctxlog.FromContext(ctx).With("component", "worker", "url", opts.URL)
	logger.Debug("Connecting to worker...")

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse worker URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("worker URL %q needs a scheme and a host", opts.URL)
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	sopts := socket.DefaultOptions()
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		sopts.SetPath(parsedURL.Path)
	}
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sopts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sopts.SetTransports(types.NewSet(transports.WebSocket))
	sopts.SetTimeout(timeout)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sopts)
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "/"
	}
	io := manager.Socket(namespace, sopts)

	c := &Client{
		io:     io,
		sink:   sink,
		logger: logger,
		closed: make(chan struct{}),
	}
	c.listen()

	connectChan := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error = errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		c.Close()
		return nil, fmt.Errorf("waiting for worker connection: %w", ctx.Err())
	case <-time.After(timeout):
		c.Close()
		return nil, fmt.Errorf("timed out after %s waiting for worker connection", timeout)
	}

	logger.Info("🔌 Connected to worker.", "sid", io.Id())
	return c, nil
}

// listen registers the handlers that translate worker messages.
func (c *Client) listen() {
	c.io.On(types.EventName(EventProgress), func(args ...any) {
		ev, err := decodeProgress(args)
		if err != nil {
			c.logger.Warn("Dropping malformed progress event.", "error", err)
			return
		}
		c.forward(ev)
	})
	c.io.On(types.EventName(EventCurrentNode), func(args ...any) {
		ev, err := decodeCurrentNode(args)
		if err != nil {
			c.logger.Warn("Dropping malformed current node event.", "error", err)
			return
		}
		c.forward(ev)
	})
	c.io.On(types.EventName(EventError), func(args ...any) {
		c.forward(decodeError(args))
	})
	c.io.On(types.EventName(EventRunEnd), func(...any) {
		c.forward(coordinator.RunEndEvent{})
	})
	c.io.On(types.EventName(EventDisconnect), func(args ...any) {
		c.forward(decodeDisconnect(args))
	})
}

func (c *Client) forward(ev coordinator.Event) {
	select {
	case c.sink <- ev:
	case <-c.closed:
		c.logger.Debug("Client closed, event dropped.", "event", fmt.Sprintf("%T", ev))
	}
}

// Submit emits the submission to the worker. It does not wait for the run.
func (c *Client) Submit(ctx context.Context, s coordinator.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.Connected() {
		return ErrNotConnected
	}

	event, payload, err := submitPayload(s)
	if err != nil {
		return err
	}
	c.logger.Debug("Emitting submission.", "event", event, "sid", c.io.Id(), "nodes", len(s.Document.Nodes))
	if err := c.io.Emit(event, payload); err != nil {
		return fmt.Errorf("emitting %s: %w", event, err)
	}
	return nil
}

// Connected reports whether the socket is up. A closed client is never
// connected.
func (c *Client) Connected() bool {
	select {
	case <-c.closed:
		return false
	default:
		return c.io.Connected()
	}
}

// Close disconnects from the worker. Events arriving afterwards are dropped.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.logger.Debug("Disconnecting from worker.", "sid", c.io.Id())
		c.io.Disconnect()
	})
	return nil
}
