package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/omniengine/internal/job"
)

type recordingSubmitter struct {
	received []job.Job
}

func (r *recordingSubmitter) Submit(_ context.Context, j job.Job) error {
	r.received = append(r.received, j)
	return nil
}

func TestDispatcher_RoundRobinOrder(t *testing.T) {
	a, b, c := &recordingSubmitter{}, &recordingSubmitter{}, &recordingSubmitter{}
	d := New([]Submitter{a, b, c})
	require.Equal(t, 3, d.Len())

	for i := 0; i < 7; i++ {
		require.NoError(t, d.Submit(context.Background(), job.Job{ID: string(rune('a' + i))}))
	}

	assert.Len(t, a.received, 3) // indices 0, 3, 6
	assert.Len(t, b.received, 2) // indices 1, 4
	assert.Len(t, c.received, 2) // indices 2, 5
	assert.Equal(t, "a", a.received[0].ID)
	assert.Equal(t, "d", a.received[1].ID)
	assert.Equal(t, "g", a.received[2].ID)
}

func TestDispatcher_SingleWorker(t *testing.T) {
	only := &recordingSubmitter{}
	d := New([]Submitter{only})
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Submit(context.Background(), job.Job{}))
	}
	assert.Len(t, only.received, 5)
}
