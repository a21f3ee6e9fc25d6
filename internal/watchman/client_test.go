package watchman

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditerrors "github.com/Aman-CERP/indexaudit/internal/errors"
)

// fakeService runs a one-line-JSON protocol server on a unix socket.
// The handler returns the PDUs to write for each request, in order.
func fakeService(t *testing.T, handler func(req []any) []map[string]any) string {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "sock")

	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				line, err := bufio.NewReader(conn).ReadBytes('\n')
				if err != nil {
					return
				}
				var req []any
				if err := json.Unmarshal(line, &req); err != nil {
					return
				}
				for _, resp := range handler(req) {
					payload, _ := json.Marshal(resp)
					_, _ = conn.Write(append(payload, '\n'))
				}
			}(conn)
		}
	}()

	return sock
}

func newTestClient(t *testing.T, sock string) *Client {
	t.Helper()
	client, err := NewClient(Options{SockPath: sock, Timeout: 2 * time.Second})
	require.NoError(t, err)
	// Connection retries only slow down failure tests.
	client.retry.MaxRetries = 0
	return client
}

func TestNewClient_SocketResolution(t *testing.T) {
	t.Run("explicit path wins", func(t *testing.T) {
		t.Setenv(SocketEnvVar, "/env/sock")
		client, err := NewClient(Options{SockPath: "/explicit/sock"})
		require.NoError(t, err)
		assert.Equal(t, "/explicit/sock", client.SockPath())
	})

	t.Run("environment fallback", func(t *testing.T) {
		t.Setenv(SocketEnvVar, "/env/sock")
		client, err := NewClient(Options{})
		require.NoError(t, err)
		assert.Equal(t, "/env/sock", client.SockPath())
	})

	t.Run("no socket is a validation error", func(t *testing.T) {
		t.Setenv(SocketEnvVar, "")
		_, err := NewClient(Options{})
		require.Error(t, err)
		assert.Equal(t, auditerrors.ErrCodeInvalidInput, auditerrors.GetCode(err))
	})
}

func TestClient_GetConfig(t *testing.T) {
	var connections atomic.Int32
	sock := fakeService(t, func(req []any) []map[string]any {
		connections.Add(1)
		require.Equal(t, "get-config", req[0])
		require.Equal(t, "/repo", req[1])
		return []map[string]any{{
			"version": "2024.01.01.00",
			"config":  map[string]any{"ignore_dirs": []any{"node_modules"}},
		}}
	})

	client := newTestClient(t, sock)
	config, err := client.GetConfig(context.Background(), "/repo")
	require.NoError(t, err)
	assert.Equal(t, []any{"node_modules"}, config["ignore_dirs"])

	// Second fetch for the same root is served from the cache.
	_, err = client.GetConfig(context.Background(), "/repo")
	require.NoError(t, err)
	assert.EqualValues(t, 1, connections.Load())
}

func TestClient_GetConfig_AbsentConfigIsEmpty(t *testing.T) {
	sock := fakeService(t, func(req []any) []map[string]any {
		return []map[string]any{{"version": "2024.01.01.00"}}
	})

	config, err := newTestClient(t, sock).GetConfig(context.Background(), "/repo")
	require.NoError(t, err)
	assert.NotNil(t, config)
	assert.Empty(t, config)
}

func TestClient_Query(t *testing.T) {
	sock := fakeService(t, func(req []any) []map[string]any {
		require.Equal(t, "query", req[0])
		require.Equal(t, "/repo", req[1])

		args, ok := req[2].(map[string]any)
		require.True(t, ok)
		assert.Equal(t,
			[]any{"allof", "exists", []any{"not", []any{"anyof", []any{"dirname", ".git"}}}},
			args["expression"])
		assert.Equal(t, []any{"name", "mode", "size", "mtime_f", "oclock"}, args["fields"])

		return []map[string]any{{
			"version": "2024.01.01.00",
			"clock":   "c:1700000000:42:1:100",
			"files": []any{
				map[string]any{"name": "a.txt", "mode": 33188.0, "size": 5.0, "mtime_f": 1700000000.5, "oclock": "c:1:1"},
				map[string]any{"name": "src", "mode": 16877.0, "size": 4096.0, "mtime_f": 1700000001.0, "oclock": "c:1:2"},
			},
		}}
	})

	client := newTestClient(t, sock)
	result, err := client.Query(context.Background(), "/repo",
		AuditExpression([]string{".git"}), QueryFields(false))
	require.NoError(t, err)

	assert.Equal(t, "c:1700000000:42:1:100", result.Clock)
	require.Len(t, result.Files, 2)
	assert.Equal(t, "a.txt", result.Files[0].Name)
	assert.EqualValues(t, 33188, result.Files[0].Mode)
	assert.Equal(t, "src", result.Files[1].Name)
}

func TestClient_Query_EmptyResultIsValid(t *testing.T) {
	sock := fakeService(t, func(req []any) []map[string]any {
		return []map[string]any{{"version": "2024.01.01.00", "clock": "c:1:1", "files": []any{}}}
	})

	result, err := newTestClient(t, sock).Query(context.Background(), "/repo",
		AuditExpression(nil), QueryFields(false))
	require.NoError(t, err)
	assert.Empty(t, result.Files)
}

func TestClient_SkipsUnilateralPDUs(t *testing.T) {
	sock := fakeService(t, func(req []any) []map[string]any {
		return []map[string]any{
			{"log": "recrawl in progress", "level": "info"},
			{"subscription": "other-client", "files": []any{}},
			{"version": "2024.01.01.00", "roots": []any{"/repo"}},
		}
	})

	roots, err := newTestClient(t, sock).WatchList(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/repo"}, roots)
}

func TestClient_ServiceErrorIsFatal(t *testing.T) {
	sock := fakeService(t, func(req []any) []map[string]any {
		return []map[string]any{{"error": "unable to resolve root /repo"}}
	})

	_, err := newTestClient(t, sock).Query(context.Background(), "/repo",
		AuditExpression(nil), QueryFields(false))
	require.Error(t, err)
	assert.Equal(t, auditerrors.ErrCodeServiceError, auditerrors.GetCode(err))
	assert.True(t, auditerrors.IsFatal(err))
	assert.Contains(t, err.Error(), "unable to resolve root")
}

func TestClient_MalformedResponse(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "sock")
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadBytes('\n')
		_, _ = conn.Write([]byte("this is not json\n"))
	}()

	_, err = newTestClient(t, sock).WatchList(context.Background())
	require.Error(t, err)
	assert.Equal(t, auditerrors.ErrCodeMalformedResponse, auditerrors.GetCode(err))
}

func TestClient_UnreachableSocket(t *testing.T) {
	client := newTestClient(t, filepath.Join(t.TempDir(), "absent"))
	_, err := client.WatchList(context.Background())
	require.Error(t, err)
	assert.Equal(t, auditerrors.ErrCodeSocketUnavailable, auditerrors.GetCode(err))
	assert.True(t, auditerrors.IsFatal(err))
}

func TestClient_Timeout(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "sock")
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// Never respond.
		<-release
	}()

	client, err := NewClient(Options{SockPath: sock, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.WatchList(context.Background())
	require.Error(t, err)
	assert.Equal(t, auditerrors.ErrCodeSocketTimeout, auditerrors.GetCode(err))
}

func TestClient_ContextDeadlineBoundsCall(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "sock")
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		<-release
	}()

	// Client timeout is generous; the context deadline must win.
	client, err := NewClient(Options{SockPath: sock, Timeout: time.Minute})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = client.WatchList(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, auditerrors.ErrCodeSocketTimeout, auditerrors.GetCode(err))
}
