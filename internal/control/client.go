package control

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// The server may hold a command on the handler for dispatchTimeout before it
// answers; the client waits longer so a slow handler never costs the binding.
const defaultRequestTimeout = dispatchTimeout + time.Second

// Client is the toggle side of the binding. All methods are safe for
// concurrent use; requests are serialized on the single connection.
type Client struct {
	sockPath string
	id       string
	timeout  time.Duration
	log      *slog.Logger

	mu   sync.Mutex
	conn net.Conn
	enc  *msgpack.Encoder
	dec  *msgpack.Decoder
}

func NewClient(sockPath string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()
	return &Client{
		sockPath: sockPath,
		id:       id,
		timeout:  defaultRequestTimeout,
		log:      log.With("component", "control-client", "client", id),
	}
}

// Bind connects to the service and reports whether a binding exists
// afterwards. Binding twice keeps the first connection.
func (c *Client) Bind(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return true
	}
	var d net.Dialer
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	conn, err := d.DialContext(dialCtx, "unix", c.sockPath)
	if err != nil {
		c.log.Debug("bind failed", "path", c.sockPath, "error", err)
		return false
	}
	c.conn = conn
	c.enc = msgpack.NewEncoder(conn)
	c.dec = msgpack.NewDecoder(conn)
	c.log.Debug("service connected", "path", c.sockPath)
	return true
}

// Unbind drops the binding. Safe to call when unbound.
func (c *Client) Unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
}

func (c *Client) Bound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Start asks the service to start reading.
func (c *Client) Start() error {
	_, err := c.Send(CmdStart)
	return err
}

// Stop asks the service to stop reading.
func (c *Client) Stop() error {
	_, err := c.Send(CmdStop)
	return err
}

// IsRunning queries the service. Unbound, timed out or failed queries answer
// false rather than blocking.
func (c *Client) IsRunning() bool {
	resp, err := c.Send(CmdStatus)
	if err != nil {
		return false
	}
	return resp.Running
}

// Send issues cmd and waits for its response. Transport failures drop the
// binding; a rejected command returns its response together with an error.
func (c *Client) Send(cmd string) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return Response{}, ErrNotBound
	}

	req := Request{ID: uuid.NewString(), Client: c.id, Cmd: cmd}
	c.conn.SetDeadline(time.Now().Add(c.timeout))
	defer func() {
		if c.conn != nil {
			c.conn.SetDeadline(time.Time{})
		}
	}()

	if err := c.enc.Encode(&req); err != nil {
		c.log.Debug("service disconnected", "error", err)
		c.dropLocked()
		return Response{}, fmt.Errorf("control send %s: %w", cmd, err)
	}
	var resp Response
	if err := c.dec.Decode(&resp); err != nil {
		c.log.Debug("service disconnected", "error", err)
		c.dropLocked()
		return Response{}, fmt.Errorf("control read %s: %w", cmd, err)
	}
	if resp.ID != req.ID {
		c.dropLocked()
		return Response{}, fmt.Errorf("control %s: response id mismatch", cmd)
	}
	if !resp.OK() {
		return resp, fmt.Errorf("control %s: %s", cmd, resp.Message)
	}
	return resp, nil
}

func (c *Client) dropLocked() {
	if c.conn == nil {
		return
	}
	c.conn.Close()
	c.conn = nil
	c.enc = nil
	c.dec = nil
}
