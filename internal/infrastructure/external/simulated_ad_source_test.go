package external

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/pkg/logger"
)

type loadResult struct {
	handle ad.Handle
	err    error
}

func load(t *testing.T, s *SimulatedSource, ctx context.Context, format ad.Format) loadResult {
	t.Helper()
	ch := make(chan loadResult, 1)
	s.Load(ctx, ad.LoadRequest{UnitID: "unit", Format: format}, func(h ad.Handle, err error) {
		ch <- loadResult{h, err}
	})
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("load did not complete")
		return loadResult{}
	}
}

type recordingListener struct {
	mu     sync.Mutex
	events []string
	done   chan struct{}
	last   string
}

func newRecordingListener(last string) *recordingListener {
	return &recordingListener{done: make(chan struct{}), last: last}
}

func (l *recordingListener) record(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, name)
	if name == l.last {
		close(l.done)
	}
}

func (l *recordingListener) OnWillPresent()                 { l.record("will_present") }
func (l *recordingListener) OnDismissed()                   { l.record("dismissed") }
func (l *recordingListener) OnPresentationFailed(err error) { l.record("failed") }
func (l *recordingListener) OnRewardEarned()                { l.record("reward") }
func (l *recordingListener) OnPaidImpression(ad.PaidValue)  { l.record("paid") }

func (l *recordingListener) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-l.done:
	case <-time.After(2 * time.Second):
		t.Fatal("presentation did not finish")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func TestSimulatedSource_Fill(t *testing.T) {
	s := NewSimulatedSource(SimulatedOptions{FillRate: 1, MaxLatency: time.Millisecond, TestMode: true, Seed: 1}, logger.Discard())

	r := load(t, s, context.Background(), ad.FormatRewarded)
	require.NoError(t, r.err)
	require.NotNil(t, r.handle)
	assert.NotEmpty(t, r.handle.ID())

	isTest, known := ad.IsTestAd(r.handle)
	assert.True(t, known)
	assert.True(t, isTest)
}

func TestSimulatedSource_NoFill(t *testing.T) {
	s := NewSimulatedSource(SimulatedOptions{FillRate: 0, Seed: 1}, logger.Discard())

	r := load(t, s, context.Background(), ad.FormatSplash)
	assert.Nil(t, r.handle)
	assert.Equal(t, CodeNoFill, ad.ErrorCode(r.err))
}

func TestSimulatedSource_Cancelled(t *testing.T) {
	s := NewSimulatedSource(SimulatedOptions{FillRate: 1, MinLatency: time.Hour, Seed: 1}, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := load(t, s, ctx, ad.FormatSplash)
	assert.ErrorIs(t, r.err, context.Canceled)
}

func TestSimulatedSource_PresentRewarded(t *testing.T) {
	s := NewSimulatedSource(SimulatedOptions{
		FillRate:        1,
		DisplayDuration: 2 * time.Millisecond,
		Revenue:         decimal.New(1500, -6),
		Seed:            1,
	}, logger.Discard())

	r := load(t, s, context.Background(), ad.FormatRewarded)
	require.NoError(t, r.err)

	l := newRecordingListener("dismissed")
	s.Present(r.handle, nil, l)
	assert.Equal(t, []string{"will_present", "paid", "reward", "dismissed"}, l.wait(t))
}

func TestSimulatedSource_PresentAppOpenHasNoReward(t *testing.T) {
	s := NewSimulatedSource(SimulatedOptions{FillRate: 1, Seed: 1}, logger.Discard())

	r := load(t, s, context.Background(), ad.FormatAppOpen)
	require.NoError(t, r.err)

	l := newRecordingListener("dismissed")
	s.Present(r.handle, nil, l)
	assert.Equal(t, []string{"will_present", "paid", "dismissed"}, l.wait(t))
}

func TestSimulatedSource_PresentFailure(t *testing.T) {
	s := NewSimulatedSource(SimulatedOptions{FillRate: 1, PresentFailRate: 1, Seed: 1}, logger.Discard())

	r := load(t, s, context.Background(), ad.FormatSplash)
	require.NoError(t, r.err)

	l := newRecordingListener("failed")
	s.Present(r.handle, nil, l)
	assert.Equal(t, []string{"failed"}, l.wait(t))
}
