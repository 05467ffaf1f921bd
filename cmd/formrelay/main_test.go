package main

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/formrelay/pkg/common/config"
	"github.com/synaptica-ai/formrelay/pkg/common/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.HTTPHost = "127.0.0.1"
	cfg.HTTPPort = 0
	cfg.SocketPort = 0
	cfg.DocumentRoot = t.TempDir()
	cfg.StoragePath = filepath.Join(t.TempDir(), "data.json")
	return cfg
}

func TestRunStopsOnCancel(t *testing.T) {
	logger.Discard()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, testConfig(t), nil) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, "both services should stop cleanly")
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}

func TestRunFailsWhenHTTPPortTaken(t *testing.T) {
	logger.Discard()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "Setup: Listen should not fail")
	defer ln.Close()

	cfg := testConfig(t)
	cfg.HTTPPort = ln.Addr().(*net.TCPAddr).Port

	require.Error(t, run(context.Background(), cfg, nil))
}

func TestRunFailsWhenSocketPortTaken(t *testing.T) {
	logger.Discard()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err, "Setup: ListenPacket should not fail")
	defer pc.Close()

	cfg := testConfig(t)
	cfg.SocketPort = pc.LocalAddr().(*net.UDPAddr).Port

	require.Error(t, run(context.Background(), cfg, nil))
}

func TestSetupSinksNoneConfigured(t *testing.T) {
	logger.Discard()

	sinks, closeSinks := setupSinks(context.Background(), testConfig(t))
	require.Empty(t, sinks)
	closeSinks()
	closeSinks()
}
