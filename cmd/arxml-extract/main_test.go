package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sheetlar/arxml/engine/topology"
	"github.com/Sheetlar/arxml/pkg/config"
	"github.com/Sheetlar/arxml/pkg/natsutil"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixture = filepath.Join("testdata", "vehicle.arxml")

func testConfig() *config.Config {
	return &config.Config{
		Log:     config.LogConfig{Level: "info", Format: "text"},
		Extract: config.ExtractConfig{Workers: 2},
		NATS:    config.NATSConfig{Subject: config.DefaultSubject},
	}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func decode(t *testing.T, out *bytes.Buffer) []topology.Summary {
	t.Helper()
	var got []topology.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	return got
}

func TestRunPrintsSummary(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), testConfig(), quiet(), []string{fixture}, &out))

	got := decode(t, &out)
	require.Len(t, got, 1)
	s := got[0]
	assert.Equal(t, "Car", s.System)
	assert.Equal(t, "/Vehicle/Systems/Car", s.Ref)
	assert.ElementsMatch(t, []string{"Engine", "Dash"}, s.Ecus)
	assert.Equal(t, 2, s.Signals)
	assert.Equal(t, 1, s.Frames)
	assert.Equal(t, 1, s.Diagnostics)

	require.Len(t, s.Channels, 1)
	ch := s.Channels[0]
	assert.Equal(t, "CH1", ch.Name)
	assert.Equal(t, "CAN1", ch.Cluster)
	assert.Equal(t, uint64(500000), ch.Baudrate)
	require.Len(t, ch.Frames, 1)
	assert.Equal(t, topology.FrameSummary{
		Name:     "FT_Speed",
		ID:       0x123,
		Length:   8,
		Sender:   "Engine",
		Receiver: "Dash",
		Signals:  []string{"VehicleSpeed", "EngineState"},
	}, ch.Frames[0])
}

func TestRunStrictFailsOnWarnings(t *testing.T) {
	cfg := testConfig()
	cfg.Extract.Strict = true

	var out bytes.Buffer
	err := run(context.Background(), cfg, quiet(), []string{fixture}, &out)
	require.Error(t, err)
	assert.ErrorContains(t, err, "Car/")
	// the summary is still printed
	assert.Len(t, decode(t, &out), 1)
}

func TestRunInputErrors(t *testing.T) {
	var out bytes.Buffer
	assert.EqualError(t, run(context.Background(), testConfig(), quiet(), nil, &out), "no input files")

	err := run(context.Background(), testConfig(), quiet(), []string{filepath.Join(t.TempDir(), "none.arxml")}, &out)
	assert.Error(t, err)
	assert.Zero(t, out.Len())
}

func TestRunPublishesSummaries(t *testing.T) {
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	require.NoError(t, err)
	srv.Start()
	t.Cleanup(srv.Shutdown)
	require.True(t, srv.ReadyForConnections(3*time.Second))

	nc, err := natsutil.Connect(srv.ClientURL(), "listener", nil)
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	got := make(chan topology.Summary, 1)
	sub, err := natsutil.Subscribe(nc, config.DefaultSubject, nil, func(_ context.Context, s topology.Summary) {
		got <- s
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, nc.Flush())

	cfg := testConfig()
	cfg.NATS.Enabled = true
	cfg.NATS.URL = srv.ClientURL()

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, quiet(), []string{fixture}, &out))

	select {
	case s := <-got:
		assert.Equal(t, "Car", s.System)
		assert.Equal(t, 1, s.Frames)
	case <-time.After(2 * time.Second):
		t.Fatal("no summary published")
	}
}
