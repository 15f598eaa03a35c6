package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupong/adapters/sse"
	"coupong/config"
	"coupong/core"
	"coupong/realtime"
)

func newRedis(t *testing.T) *goredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}

func TestSetupSnapshots(t *testing.T) {
	client := newRedis(t)
	for _, adapter := range []string{"memory", "redis", "file"} {
		t.Run(adapter, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Snapshots.Adapter = adapter
			cfg.Snapshots.File.Path = filepath.Join(t.TempDir(), "boards.json")

			store, cleanup, err := setupSnapshots(cfg, client)
			require.NoError(t, err)
			defer cleanup()

			ctx := context.Background()
			require.NoError(t, store.Save(ctx, core.NewSnapshot("promoA", []core.MemberID{"alice"}, core.Float64(1))))
			snap, err := store.Load(ctx, "promoA")
			require.NoError(t, err)
			assert.Equal(t, []core.MemberID{"alice"}, snap.Members)
		})
	}

	cfg := config.DefaultConfig()
	cfg.Snapshots.Adapter = "etcd"
	_, _, err := setupSnapshots(cfg, client)
	assert.Error(t, err)
}

func TestAssembledHandlerServesStoredLeaderboard(t *testing.T) {
	cfg := config.DefaultConfig()
	client := newRedis(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := provideMetrics(provideRegistry(cfg))
	hub := provideHub(logger, m)

	snaps, cleanupSnaps, err := provideSnapshotStore(cfg, client)
	require.NoError(t, err)
	defer cleanupSnaps()

	q, cleanupQueue, err := provideQueue(cfg, client, snaps, hub, logger, m)
	require.NoError(t, err)
	defer cleanupQueue()

	_, err = q.AddToZSet(context.Background(), "promoA", "alice", 100)
	require.NoError(t, err)

	h := provideHandler(cfg, q, snaps, hub, logger)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboards/promoA", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alice"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsServerDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Nil(t, provideMetricsServer(cfg, provideRegistry(cfg)))

	cfg.Metrics.Enabled = true
	srv := provideMetricsServer(cfg, provideRegistry(cfg))
	require.NotNil(t, srv)
	assert.Equal(t, ":9090", srv.Addr)
}

func TestServerShutdownEndsOpenStreams(t *testing.T) {
	cfg := config.DefaultConfig()
	srv := provideServer(cfg, sse.Handler(realtime.NewHub(), sse.Options{Heartbeat: time.Hour}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String())
	require.NoError(t, err)
	defer resp.Body.Close()
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Less(t, time.Since(start), time.Second)
}
