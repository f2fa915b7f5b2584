package queue

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/omniengine/internal/dispatcher"
	"github.com/joeycumines/omniengine/internal/job"
	"github.com/joeycumines/omniengine/internal/telemetry"
	"github.com/joeycumines/omniengine/internal/wire"
)

func startMiniredis(t *testing.T) *redis.Client {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func testLogger() *telemetry.Logger {
	return telemetry.New(telemetry.Config{Output: io.Discard})
}

type recordingSubmitter struct {
	received chan job.Job
}

func (r *recordingSubmitter) Submit(_ context.Context, j job.Job) error {
	r.received <- j
	return nil
}

func TestNewClient_ParsesURL(t *testing.T) {
	c, err := NewClient(Config{URL: "redis://localhost:6379/0", PopTimeout: time.Second})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "localhost:6379", c.Options().Addr)
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient(Config{URL: "not-a-url"})
	assert.Error(t, err)
}

func TestIngress_DecodesAndDispatches(t *testing.T) {
	client := startMiniredis(t)
	defer client.Close()

	sub := &recordingSubmitter{received: make(chan job.Job, 1)}
	disp := dispatcher.New([]dispatcher.Submitter{sub})

	cfg := Config{InKey: "inference_queue", OutPrefix: "results:", PopTimeout: 200 * time.Millisecond}
	in := NewIngress(client, cfg, disp, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	raw, err := cbor.Marshal(wire.JobPayload{
		ID:    "req-1",
		Shape: []int{1, 2},
		DType: "f32",
		Input: make([]byte, 8),
	})
	require.NoError(t, err)
	require.NoError(t, client.RPush(context.Background(), "inference_queue", raw).Err())

	select {
	case j := <-sub.received:
		assert.Equal(t, "req-1", j.ID)
		assert.Equal(t, "results:req-1", j.ReplyKey)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched job")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ingress did not stop after cancel")
	}
}

func TestIngress_DropsMalformedPayload(t *testing.T) {
	client := startMiniredis(t)
	defer client.Close()

	sub := &recordingSubmitter{received: make(chan job.Job, 1)}
	disp := dispatcher.New([]dispatcher.Submitter{sub})

	cfg := Config{InKey: "inference_queue", OutPrefix: "results:", PopTimeout: 100 * time.Millisecond}
	in := NewIngress(client, cfg, disp, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go in.Run(ctx)

	require.NoError(t, client.RPush(context.Background(), "inference_queue", []byte("not-cbor")).Err())

	select {
	case <-sub.received:
		t.Fatal("malformed payload should not have been dispatched")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestEgress_PublishesResult(t *testing.T) {
	client := startMiniredis(t)
	defer client.Close()

	eg := NewEgress(client, testLogger())
	r := job.Result{Job: job.Job{ID: "req-1", ReplyKey: "results:req-1"}, CompletedAt: time.Now()}
	eg.Publish(context.Background(), r)

	val, err := client.Get(context.Background(), "results:req-1").Result()
	require.NoError(t, err)
	assert.NotEmpty(t, val)
}

func TestEgress_SkipsDummyAndEmptyKey(t *testing.T) {
	client := startMiniredis(t)
	defer client.Close()

	eg := NewEgress(client, testLogger())
	eg.Publish(context.Background(), job.Result{Job: job.Job{ID: "dummy", IsDummy: true}})
	eg.Publish(context.Background(), job.Result{Job: job.Job{ID: "no-key"}})

	keys, err := client.Keys(context.Background(), "*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
