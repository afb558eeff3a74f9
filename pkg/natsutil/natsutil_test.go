package natsutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type summary struct {
	System string `json:"system"`
	Frames int    `json:"frames"`
}

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	require.NoError(t, err)
	srv.Start()
	require.True(t, srv.ReadyForConnections(3*time.Second), "nats not ready")

	nc, err := Connect(srv.ClientURL(), "natsutil-test", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

func TestHeaderCarrier(t *testing.T) {
	h := make(nats.Header)
	c := headerCarrier(h)
	c.Set("traceparent", "00-abc-def-01")
	c.Set("tracestate", "a=1")
	c.Set("tracestate", "a=2")

	assert.Equal(t, "00-abc-def-01", c.Get("traceparent"))
	assert.Equal(t, "a=2", h.Get("tracestate"))
	assert.ElementsMatch(t, []string{"traceparent", "tracestate"}, c.Keys())
	assert.Empty(t, c.Get("missing"))
}

func TestExtractWithoutHeaders(t *testing.T) {
	ctx := extract(&nats.Msg{})
	assert.False(t, trace.SpanContextFromContext(ctx).IsValid())
}

func TestConnectFails(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "x", nil)
	assert.ErrorContains(t, err, "nats connect nats://127.0.0.1:1")
}

func TestPublishSubscribe(t *testing.T) {
	nc := startTestNATS(t)

	got := make(chan summary, 1)
	sub, err := Subscribe(nc, "arxml.topology.extracted", nil, func(_ context.Context, s summary) {
		got <- s
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, Publish(context.Background(), nc, "arxml.topology.extracted", summary{System: "Car", Frames: 3}))

	select {
	case s := <-got:
		assert.Equal(t, summary{System: "Car", Frames: 3}, s)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestTraceContextPropagates(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	nc := startTestNATS(t)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	got := make(chan trace.SpanContext, 1)
	sub, err := Subscribe(nc, "traced", nil, func(ctx context.Context, _ summary) {
		got <- trace.SpanContextFromContext(ctx)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, Publish(ctx, nc, "traced", summary{}))

	select {
	case remote := <-got:
		assert.Equal(t, sc.TraceID(), remote.TraceID())
		assert.Equal(t, sc.SpanID(), remote.SpanID())
		assert.True(t, remote.IsRemote())
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSubscribeDropsMalformed(t *testing.T) {
	nc := startTestNATS(t)

	called := make(chan struct{}, 1)
	sub, err := Subscribe(nc, "malformed", nil, func(context.Context, summary) {
		called <- struct{}{}
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, nc.Publish("malformed", []byte("{bad")))
	require.NoError(t, nc.Flush())

	select {
	case <-called:
		t.Fatal("handler called for malformed data")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRequest(t *testing.T) {
	nc := startTestNATS(t)

	sub, err := nc.Subscribe("summaries.count", func(msg *nats.Msg) {
		var req summary
		_ = json.Unmarshal(msg.Data, &req)
		data, _ := json.Marshal(summary{System: req.System, Frames: req.Frames * 2})
		_ = msg.Respond(data)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	resp, err := Request[summary, summary](context.Background(), nc, "summaries.count", summary{System: "Car", Frames: 5})
	require.NoError(t, err)
	assert.Equal(t, summary{System: "Car", Frames: 10}, resp)
}

func TestRequestErrors(t *testing.T) {
	nc := startTestNATS(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := Request[summary, summary](ctx, nc, "nobody.listens", summary{})
	assert.Error(t, err)

	_, err = Request[chan int, summary](context.Background(), nc, "x", make(chan int))
	assert.ErrorContains(t, err, "request x")

	sub, err := nc.Subscribe("bad.reply", func(msg *nats.Msg) { _ = msg.Respond([]byte("{invalid")) })
	require.NoError(t, err)
	defer sub.Unsubscribe()
	_, err = Request[summary, summary](context.Background(), nc, "bad.reply", summary{})
	assert.ErrorContains(t, err, "decode reply")
}

func TestPublishMarshalError(t *testing.T) {
	nc := startTestNATS(t)
	assert.Error(t, Publish(context.Background(), nc, "x", make(chan int)))
}
