package watchman

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	auditerrors "github.com/Aman-CERP/indexaudit/internal/errors"
)

// SocketEnvVar names the environment variable the index service sets
// for clients that should not spawn it to discover the socket.
const SocketEnvVar = "WATCHMAN_SOCK"

// DefaultTimeout bounds a single round-trip when the caller's context
// carries no deadline of its own.
const DefaultTimeout = 30 * time.Second

// configCacheSize bounds the per-root configuration cache.
const configCacheSize = 64

// Options configures a Client.
type Options struct {
	// SockPath is the unix socket path. Empty falls back to the
	// WATCHMAN_SOCK environment variable.
	SockPath string

	// Timeout bounds each round-trip. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Client issues structured queries against the index service.
// Methods are safe for concurrent use; each call opens its own
// connection and is bounded by the caller's context.
type Client struct {
	sockPath string
	timeout  time.Duration
	retry    auditerrors.RetryConfig

	// configCache is an explicit lookup-or-populate cache of per-root
	// configuration, not process-global state.
	configCache *lru.Cache[string, map[string]any]
}

// NewClient creates a client for the index service socket.
func NewClient(opts Options) (*Client, error) {
	sockPath := opts.SockPath
	if sockPath == "" {
		sockPath = os.Getenv(SocketEnvVar)
	}
	if sockPath == "" {
		return nil, auditerrors.ValidationError(
			fmt.Sprintf("no index service socket: pass --sockname or set %s", SocketEnvVar), nil)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cache, err := lru.New[string, map[string]any](configCacheSize)
	if err != nil {
		return nil, auditerrors.InternalError("failed to create config cache", err)
	}

	return &Client{
		sockPath:    sockPath,
		timeout:     timeout,
		retry:       auditerrors.DefaultRetryConfig(),
		configCache: cache,
	}, nil
}

// SockPath returns the resolved socket path.
func (c *Client) SockPath() string {
	return c.sockPath
}

// GetConfig fetches the service's root-level configuration for root.
// Results are cached per root for the lifetime of the client.
func (c *Client) GetConfig(ctx context.Context, root string) (map[string]any, error) {
	if config, ok := c.configCache.Get(root); ok {
		return config, nil
	}

	resp, err := c.roundTrip(ctx, []any{opGetConfig, root})
	if err != nil {
		return nil, err
	}

	config := resp.Config
	if config == nil {
		// The service reports an absent configuration as an empty
		// object; normalize so callers never see nil.
		config = map[string]any{}
	}

	c.configCache.Add(root, config)
	return config, nil
}

// Query evaluates expr against the service's current index of root and
// returns records projected to fields, in the order the service
// returned them.
func (c *Client) Query(ctx context.Context, root string, expr Expr, fields []string) (*QueryResult, error) {
	request := []any{opQuery, root, map[string]any{
		"expression": expr,
		"fields":     fields,
	}}

	resp, err := c.roundTrip(ctx, request)
	if err != nil {
		return nil, err
	}

	files, err := decodeFiles(resp.Files)
	if err != nil {
		return nil, err
	}

	return &QueryResult{Files: files, Clock: resp.Clock}, nil
}

// WatchList returns the roots the service currently watches.
func (c *Client) WatchList(ctx context.Context) ([]string, error) {
	resp, err := c.roundTrip(ctx, []any{opWatchList})
	if err != nil {
		return nil, err
	}
	return resp.Roots, nil
}

// roundTrip performs one command exchange: connect, send the request
// PDU, and read response PDUs until the command response arrives,
// skipping unilateral traffic. Any transport-level failure is fatal to
// the run and must never be mistaken for an empty result.
func (c *Client) roundTrip(ctx context.Context, request []any) (*pdu, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, auditerrors.New(auditerrors.ErrCodeSocketUnavailable,
			fmt.Sprintf("failed to set socket deadline: %v", err), err)
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, auditerrors.InternalError("failed to encode request", err)
	}
	payload = append(payload, '\n')
	if _, err := conn.Write(payload); err != nil {
		return nil, c.transportError("failed to send request", err)
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && (len(line) == 0 || !errors.Is(err, io.EOF)) {
			return nil, c.transportError("failed to read response", err)
		}

		var resp pdu
		if err := json.Unmarshal(line, &resp); err != nil {
			return nil, auditerrors.New(auditerrors.ErrCodeMalformedResponse,
				fmt.Sprintf("malformed response from index service: %v", err), err)
		}

		// Log and subscription PDUs may arrive ahead of the command
		// response; they are not ours.
		if resp.unilateral() {
			continue
		}

		if resp.Error != "" {
			return nil, auditerrors.New(auditerrors.ErrCodeServiceError,
				fmt.Sprintf("index service error: %s", resp.Error), nil)
		}
		return &resp, nil
	}
}

// connect dials the socket, retrying briefly in case the service is
// mid-restart.
func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	return auditerrors.RetryWithResult(ctx, c.retry, func() (net.Conn, error) {
		conn, err := net.DialTimeout("unix", c.sockPath, c.timeout)
		if err != nil {
			return nil, auditerrors.New(auditerrors.ErrCodeSocketUnavailable,
				fmt.Sprintf("cannot reach index service at %s: %v", c.sockPath, err), err)
		}
		return conn, nil
	})
}

// transportError classifies an I/O failure, distinguishing deadline
// expiry from other socket trouble.
func (c *Client) transportError(message string, err error) *auditerrors.AuditError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return auditerrors.New(auditerrors.ErrCodeSocketTimeout,
			fmt.Sprintf("%s: index service did not respond within %s", message, c.timeout), err)
	}
	return auditerrors.New(auditerrors.ErrCodeSocketUnavailable,
		fmt.Sprintf("%s: %v", message, err), err)
}
