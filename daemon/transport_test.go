package daemon

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const fakeContainerID = "c0ffee"

// fakeEngine answers the subset of the Engine API a run uses.
type fakeEngine struct {
	t *testing.T

	createError string
	output      []byte

	mu       sync.Mutex
	image    string
	name     string
	started  bool
	removed  bool
	received map[string]any
}

func (f *fakeEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path
	switch {
	case strings.HasSuffix(p, "/_ping"):
		w.Header().Set("Api-Version", "1.41")
		w.Header().Set("OSType", "linux")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte("OK"))
		}

	case r.Method == http.MethodPost && strings.HasSuffix(p, "/containers/create"):
		if f.createError != "" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": f.createError})
			return
		}
		var body struct {
			Image string `json:"Image"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.image = body.Image
		f.name = r.URL.Query().Get("name")
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"Id": fakeContainerID, "Warnings": []string{}})

	case r.Method == http.MethodPost && strings.HasSuffix(p, "/containers/"+fakeContainerID+"/start"):
		f.mu.Lock()
		f.started = true
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPost && strings.HasSuffix(p, "/containers/"+fakeContainerID+"/attach"):
		f.attach(w)

	case r.Method == http.MethodDelete && strings.HasSuffix(p, "/containers/"+fakeContainerID):
		f.mu.Lock()
		f.removed = true
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "page not found: " + p})
	}
}

func (f *fakeEngine) attach(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		f.t.Errorf("response writer cannot hijack")
		return
	}
	conn, rw, err := hj.Hijack()
	if err != nil {
		f.t.Errorf("hijack: %v", err)
		return
	}
	defer conn.Close()

	_, _ = rw.WriteString("HTTP/1.1 101 UPGRADED\r\n" +
		"Content-Type: application/vnd.docker.raw-stream\r\n" +
		"Connection: Upgrade\r\n" +
		"Upgrade: tcp\r\n\r\n")
	_ = rw.Flush()

	var payload map[string]any
	if err := json.NewDecoder(rw).Decode(&payload); err != nil {
		f.t.Errorf("decode stdin payload: %v", err)
		return
	}
	f.mu.Lock()
	f.received = payload
	f.mu.Unlock()

	_, _ = conn.Write(f.output)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func startFakeEngine(t *testing.T, f *fakeEngine) string {
	t.Helper()
	f.t = t

	dir, err := os.MkdirTemp("", "dkr")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	socket := filepath.Join(dir, "engine.sock")
	ln, err := net.Listen("unix", socket)
	require.NoError(t, err)

	srv := &http.Server{Handler: f, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	return socket
}

func TestDialerConnectFailure(t *testing.T) {
	dialer := NewDialer(zaptest.NewLogger(t), filepath.Join(t.TempDir(), "missing.sock"), "1.41")

	_, err := dialer.Connect(context.Background())
	var ce *ConnectError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "missing.sock")
}

func TestConnCreateContainerDaemonError(t *testing.T) {
	socket := startFakeEngine(t, &fakeEngine{createError: "No such image: missing:latest"})
	ctx := context.Background()

	conn, err := NewDialer(zaptest.NewLogger(t), socket, "1.41").Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.CreateContainer(ctx, DefaultContainerConfig("missing:latest", Defaults{}), "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such image: missing:latest")
}

func TestConnFullLifecycle(t *testing.T) {
	engine := &fakeEngine{output: append(frame(2, "note\n"), frame(1, `{"ok":true}`)...)}
	socket := startFakeEngine(t, engine)
	ctx := context.Background()

	conn, err := NewDialer(zaptest.NewLogger(t), socket, "1.41").Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()

	id, err := conn.CreateContainer(ctx, DefaultContainerConfig("alpine:3", Defaults{User: "nobody"}), "run-1")
	require.NoError(t, err)
	assert.Equal(t, fakeContainerID, id)

	require.NoError(t, conn.StartContainer(ctx, id))

	stream, err := conn.AttachContainer(ctx, id)
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, stream.SetReadTimeout(50*time.Millisecond))
	_, err = stream.Write([]byte(`{"code":"print(1)"}`))
	require.NoError(t, err)
	require.NoError(t, stream.CloseWrite())

	out, err := Demultiplex(ctx, stream.Reader(), 1024, NewDeadline(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(out.Stdout))
	assert.Equal(t, "note\n", string(out.Stderr))

	require.NoError(t, conn.RemoveContainer(ctx, id))

	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.Equal(t, "alpine:3", engine.image)
	assert.Equal(t, "run-1", engine.name)
	assert.True(t, engine.started)
	assert.True(t, engine.removed)
	assert.Equal(t, map[string]any{"code": "print(1)"}, engine.received)
}
