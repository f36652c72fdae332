package ingest

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/coldbrook/fleetwatch/internal/alert"
	"github.com/coldbrook/fleetwatch/internal/bus"
	"github.com/coldbrook/fleetwatch/internal/calib"
	"github.com/coldbrook/fleetwatch/internal/clock"
	"github.com/coldbrook/fleetwatch/internal/fleet"
	"github.com/coldbrook/fleetwatch/internal/history"
)

// fakeAdapter is an in-memory bus.Adapter: each fileName maps to a FIFO
// queue of pre-loaded notes, and Enqueue just records what was sent.
type fakeAdapter struct {
	queues   map[string][]bus.Note
	sent     []sentNote
	drainErr error
	nowEpoch float64
	nowOK    bool
}

type sentNote struct {
	fileName string
	body     map[string]any
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{queues: make(map[string][]bus.Note)}
}

func (f *fakeAdapter) Drain(ctx context.Context, fileName string, maxPerCall int) ([]bus.Note, error) {
	if f.drainErr != nil {
		return nil, f.drainErr
	}
	q := f.queues[fileName]
	if len(q) > maxPerCall {
		q, f.queues[fileName] = q[:maxPerCall], q[maxPerCall:]
	} else {
		delete(f.queues, fileName)
	}
	return q, nil
}

func (f *fakeAdapter) Enqueue(ctx context.Context, fileName string, body map[string]any, sync bool) error {
	f.sent = append(f.sent, sentNote{fileName: fileName, body: body})
	return nil
}

func (f *fakeAdapter) CurrentTime() (float64, bool) { return f.nowEpoch, f.nowOK }

func newTestPipeline(t *testing.T, adapter *fakeAdapter) *Pipeline {
	t.Helper()
	fleetStore, err := fleet.NewStore(64, 16)
	require.NoError(t, err)

	return &Pipeline{
		Bus:      adapter,
		Clock:    clock.New(),
		Fleet:    fleetStore,
		Calib:    calib.NewStore(32),
		Config:   NewConfigCache(zerolog.Nop()),
		History:  history.NewStore(7, nil, nil, zerolog.Nop()),
		Alert:    alert.NewEngine(adapter, alert.Policy{}, zerolog.Nop()),
		Sched:    alert.NewScheduler(7, 0, "", 0),
		Contacts: alert.NewContactsStore(alert.Contacts{}),
		Log:      zerolog.Nop(),
	}
}

func TestPipelinePauseSkipsDraining(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.queues[bus.FileTelemetry] = []bus.Note{
		{Body: map[string]any{"device": "dev:1"}, Epoch: 100},
	}
	p := newTestPipeline(t, adapter)

	require.False(t, p.Paused())
	p.Pause(true)
	require.True(t, p.Paused())

	p.RunOnce(context.Background())

	require.Len(t, adapter.queues[bus.FileTelemetry], 1, "paused pipeline must not drain any notefile")
}

func TestPipelineRunOnceDrainsEveryInboundFileWhenUnpaused(t *testing.T) {
	adapter := newFakeAdapter()
	for _, f := range bus.InboundFiles {
		adapter.queues[f] = []bus.Note{{Body: map[string]any{}, Epoch: 1}}
	}
	p := newTestPipeline(t, adapter)

	p.RunOnce(context.Background())

	for _, f := range bus.InboundFiles {
		require.Empty(t, adapter.queues[f], "expected %s to be fully drained", f)
	}
}

func TestPipelineDispatchRecoversFromHandlerPanic(t *testing.T) {
	adapter := newFakeAdapter()
	p := newTestPipeline(t, adapter)

	require.NotPanics(t, func() {
		p.dispatch(context.Background(), HandlerName("not-a-real-handler"), bus.Note{})
	})
}

func TestPipelineRunOnceToleratesDrainError(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.drainErr = context.DeadlineExceeded
	p := newTestPipeline(t, adapter)

	require.NotPanics(t, func() {
		p.RunOnce(context.Background())
	})
}
