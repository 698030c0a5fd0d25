package lifecycle

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/testutil"
	"github.com/personal/ad-lifecycle/pkg/logger"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type screenLock struct {
	holder string
}

func (l *screenLock) TryAcquire(owner string) bool {
	if l.holder == "" || l.holder == owner {
		l.holder = owner
		return true
	}
	return false
}

func (l *screenLock) Release(owner string) {
	if l.holder == owner {
		l.holder = ""
	}
}

type harness struct {
	t      *testing.T
	sched  *ManualScheduler
	source *testutil.FakeSource
	sink   *testutil.RecordingSink
	lock   *screenLock
	ctrl   *Controller
	name   string
	nextID int
}

func newHarness(t *testing.T, format ad.Format, opts ad.UnitOptions) *harness {
	t.Helper()

	unit, err := ad.NewUnitConfig(format, "unit-"+string(format), string(format), true, opts)
	require.NoError(t, err)
	policy, err := ad.ResolvePolicy(format, unit)
	require.NoError(t, err)

	h := &harness{
		t:      t,
		sched:  NewManualScheduler(epoch),
		source: testutil.NewFakeSource(),
		sink:   &testutil.RecordingSink{},
		lock:   &screenLock{},
		name:   unit.Name(),
	}
	h.ctrl = NewController(policy, Dependencies{
		Source:    h.source,
		Scheduler: h.sched,
		Sink:      h.sink,
		Screen:    h.lock,
		Logger:    logger.Discard(),
	})
	return h
}

func (h *harness) configure() {
	h.ctrl.Configure(Identity{UnitID: "unit-" + h.name, Name: h.name})
	h.sched.RunPending()
}

func (h *harness) succeed() *testutil.FakeHandle {
	h.t.Helper()
	h.nextID++
	handle := &testutil.FakeHandle{AdID: fmt.Sprintf("ad-%d", h.nextID), Source: "Network"}
	require.NotNil(h.t, h.source.LastLoad())
	h.source.LastLoad().Succeed(handle)
	h.sched.RunPending()
	return handle
}

func (h *harness) fail() {
	h.t.Helper()
	require.NotNil(h.t, h.source.LastLoad())
	h.source.LastLoad().Fail(&ad.SourceError{Code: 3, Message: "no fill"})
	h.sched.RunPending()
}

func (h *harness) event(suffix string) string {
	return "AM_" + h.name + "_" + suffix
}

type showRecorder struct {
	calls []string
	err   error
}

func (r *showRecorder) callbacks() ShowCallbacks {
	return ShowCallbacks{
		DidFail:       func(err error) { r.calls = append(r.calls, "fail"); r.err = err },
		WillPresent:   func() { r.calls = append(r.calls, "present") },
		DidEarnReward: func() { r.calls = append(r.calls, "reward") },
		DidHide:       func() { r.calls = append(r.calls, "hide") },
	}
}

func (h *harness) show(placement string) *showRecorder {
	rec := &showRecorder{}
	h.ctrl.Show(testutil.FakeHost{Name: "home"}, placement, rec.callbacks())
	h.sched.RunPending()
	return rec
}

func (h *harness) present() *testutil.PresentCall {
	h.t.Helper()
	call := h.source.LastPresent()
	require.NotNil(h.t, call)
	return call
}

func TestLoad_NotConfigured(t *testing.T) {
	h := newHarness(t, ad.FormatRewarded, ad.UnitOptions{})

	var gotErr error
	h.ctrl.Load(LoadCallbacks{DidFail: func(err error) { gotErr = err }})

	assert.ErrorIs(t, gotErr, ad.ErrNotConfigured)
	assert.Equal(t, 0, h.source.LoadCount())
	assert.Equal(t, PhaseIdle, h.ctrl.Status().Phase)
}

func TestLoad_SingleFlight(t *testing.T) {
	h := newHarness(t, ad.FormatRewarded, ad.UnitOptions{})
	h.configure()
	require.Equal(t, 1, h.source.LoadCount())

	loaded := 0
	for i := 0; i < 3; i++ {
		h.ctrl.Load(LoadCallbacks{DidLoad: func() { loaded++ }})
	}
	assert.Equal(t, 1, h.source.LoadCount())
	assert.True(t, h.ctrl.Status().Loading)

	h.succeed()

	assert.Equal(t, 3, loaded)
	assert.Equal(t, 1, h.source.LoadCount())
	assert.Equal(t, PhaseLoaded, h.ctrl.Status().Phase)
}

func TestLoad_HandleHeld(t *testing.T) {
	h := newHarness(t, ad.FormatRewarded, ad.UnitOptions{})
	h.configure()
	h.succeed()

	loaded := false
	h.ctrl.Load(LoadCallbacks{DidLoad: func() { loaded = true }})

	assert.True(t, loaded)
	assert.Equal(t, 1, h.source.LoadCount())
}

func TestLoad_Success(t *testing.T) {
	h := newHarness(t, ad.FormatRewarded, ad.UnitOptions{})
	h.configure()

	req := h.source.LastLoad().Request
	assert.Equal(t, "unit-rewarded", req.UnitID)
	assert.Equal(t, ad.FormatRewarded, req.Format)

	h.sched.Advance(1500 * time.Millisecond)
	h.succeed()

	status := h.ctrl.Status()
	assert.True(t, status.Ready)
	assert.Equal(t, 0, status.RetryAttempt)
	assert.Equal(t, epoch.Add(1500*time.Millisecond), status.LastLoadAt)
	assert.Equal(t, []string{h.event("Load_Request"), h.event("Load_Success")}, h.sink.Names())

	success, ok := h.sink.Find(h.event("Load_Success"))
	require.True(t, ok)
	assert.InDelta(t, 1.5, success.Attributes["time"], 0.001)
}

func TestLoad_RetryBoundedFormat(t *testing.T) {
	h := newHarness(t, ad.FormatRewarded, ad.UnitOptions{})
	h.configure()

	var failures []error
	h.ctrl.Load(LoadCallbacks{DidFail: func(err error) { failures = append(failures, err) }})

	h.fail()
	assert.Empty(t, failures)
	assert.Equal(t, 1, h.sched.PendingTimers())
	assert.True(t, h.ctrl.Status().RetryScheduled)
	assert.Equal(t, PhaseLoadFailed, h.ctrl.Status().Phase)

	h.sched.Advance(4 * time.Second)
	assert.Equal(t, 1, h.source.LoadCount())

	h.sched.Advance(time.Second)
	require.Equal(t, 2, h.source.LoadCount())

	h.fail()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ad.ErrLoadFailed)
	assert.Equal(t, 3, ad.ErrorCode(failures[0]))
	assert.Equal(t, 0, h.sched.PendingTimers())
	assert.Equal(t, 2, h.ctrl.Status().RetryAttempt)

	assert.Equal(t, 1, h.sink.Count(h.event("Load_Fail")))
	assert.Equal(t, 1, h.sink.Count(h.event("Load_TryFail")))

	h.sched.Advance(time.Minute)
	assert.Equal(t, 2, h.source.LoadCount())
}

func TestLoad_NoRetryFormatSurfacesEveryFailure(t *testing.T) {
	h := newHarness(t, ad.FormatSplash, ad.UnitOptions{})
	h.configure()

	var failures int
	h.ctrl.Observe(LoadCallbacks{DidFail: func(error) { failures++ }})

	h.fail()
	assert.Equal(t, 1, failures)
	assert.Equal(t, 0, h.sched.PendingTimers())
	assert.Equal(t, 1, h.sink.Count(h.event("Load_Fail")))
	assert.Equal(t, 0, h.sink.Count(h.event("Load_TryFail")))

	h.ctrl.Load(LoadCallbacks{})
	h.fail()
	assert.Equal(t, 2, failures)
	assert.Equal(t, 2, h.source.LoadCount())
}

func TestLoad_TimeoutDiscardsLateSuccess(t *testing.T) {
	h := newHarness(t, ad.FormatSplash, ad.UnitOptions{Timeout: 3 * time.Second})
	h.configure()

	var gotErr error
	h.ctrl.Load(LoadCallbacks{DidFail: func(err error) { gotErr = err }})
	first := h.source.LastLoad()

	h.sched.Advance(3 * time.Second)

	assert.ErrorIs(t, gotErr, ad.ErrLoadTimeout)
	assert.Equal(t, PhaseLoadTimedOut, h.ctrl.Status().Phase)
	assert.False(t, h.ctrl.Status().Loading)
	assert.Error(t, first.Ctx.Err())
	assert.Equal(t, 1, h.sink.Count(h.event("Load_Timeout")))

	first.Succeed(&testutil.FakeHandle{AdID: "late"})
	h.sched.RunPending()

	assert.False(t, h.ctrl.IsReadyToShow())
	assert.Equal(t, PhaseLoadTimedOut, h.ctrl.Status().Phase)
	assert.Equal(t, 0, h.sink.Count(h.event("Load_Success")))
}

func TestLoad_WatchdogCancelledOnSuccess(t *testing.T) {
	h := newHarness(t, ad.FormatAppOpen, ad.UnitOptions{Timeout: 3 * time.Second})
	h.configure()

	h.sched.Advance(time.Second)
	h.succeed()
	assert.Equal(t, 0, h.sched.PendingTimers())

	h.show("open")
	h.present().Listener.OnDismissed()
	h.sched.RunPending()
	require.Equal(t, 2, h.source.LoadCount())

	// The first cycle's watchdog would have fired here.
	h.sched.Advance(2500 * time.Millisecond)
	assert.True(t, h.ctrl.Status().Loading)
	assert.Equal(t, 0, h.sink.Count(h.event("Load_Timeout")))

	h.sched.Advance(time.Second)
	assert.Equal(t, 1, h.sink.Count(h.event("Load_Timeout")))
}

func TestLoad_StaleTimersIgnored(t *testing.T) {
	h := newHarness(t, ad.FormatRewarded, ad.UnitOptions{Timeout: 3 * time.Second})
	h.configure()
	staleGen := h.ctrl.generation

	h.fail()
	h.sched.Advance(5 * time.Second)
	require.Equal(t, 2, h.source.LoadCount())
	require.True(t, h.ctrl.Status().Loading)

	// Timers from the first cycle that escaped cancellation.
	h.ctrl.onLoadTimeout(staleGen)
	h.ctrl.onRetry(staleGen)
	h.ctrl.onLoadResult(staleGen, &testutil.FakeHandle{AdID: "stale"}, nil)

	assert.True(t, h.ctrl.Status().Loading)
	assert.False(t, h.ctrl.IsReadyToShow())
	assert.Equal(t, 2, h.source.LoadCount())
	assert.Equal(t, 0, h.sink.Count(h.event("Load_Timeout")))
}

func TestShow_MinShowInterval(t *testing.T) {
	h := newHarness(t, ad.FormatAppOpen, ad.UnitOptions{MinShowInterval: 30 * time.Second})
	h.configure()
	h.succeed()

	h.sched.Advance(10 * time.Second)
	rec := h.show("open")
	assert.ErrorIs(t, rec.err, ad.ErrIntervalNotElapsed)
	assert.Equal(t, 0, h.source.PresentCount())
	assert.False(t, h.ctrl.Status().Presenting)
	assert.Equal(t, PhaseLoaded, h.ctrl.Status().Phase)

	h.sched.Advance(21 * time.Second)
	rec = h.show("open")
	assert.NoError(t, rec.err)
	assert.Equal(t, 1, h.source.PresentCount())
	assert.Equal(t, PhaseShowing, h.ctrl.Status().Phase)
}

func TestShow_NotReady(t *testing.T) {
	h := newHarness(t, ad.FormatSplash, ad.UnitOptions{})
	h.configure()

	rec := h.show("launch")

	assert.Equal(t, []string{"fail"}, rec.calls)
	assert.ErrorIs(t, rec.err, ad.ErrNotReady)
	assert.Equal(t, 1, h.sink.Count("AM_launch_Show_Request"))
	assert.Equal(t, 1, h.sink.Count("AM_launch_Show_NoReady"))
	assert.Equal(t, 0, h.sink.Count("AM_launch_Show_Ready"))

	req, ok := h.sink.Find("AM_launch_Show_Request")
	require.True(t, ok)
	assert.Equal(t, "home", req.Attributes["screen"])
}

func TestShow_AlreadyShowing(t *testing.T) {
	h := newHarness(t, ad.FormatRewarded, ad.UnitOptions{})
	h.configure()
	h.succeed()

	first := h.show("reward")
	require.Empty(t, first.calls)

	second := h.show("reward")
	assert.ErrorIs(t, second.err, ad.ErrAlreadyShowing)
	assert.Equal(t, 1, h.source.PresentCount())
	assert.True(t, h.ctrl.Status().Presenting)
}

func TestShow_RewardedFlow(t *testing.T) {
	h := newHarness(t, ad.FormatRewarded, ad.UnitOptions{})
	h.configure()
	handle := h.succeed()

	rec := h.show("reward")
	call := h.present()
	assert.Same(t, handle, call.Handle)
	assert.Equal(t, "home", call.Host.Screen())

	call.Listener.OnWillPresent()
	h.sched.RunPending()
	assert.True(t, h.ctrl.IsPresent())

	call.Listener.OnRewardEarned()
	call.Listener.OnDismissed()
	h.sched.RunPending()

	assert.Equal(t, []string{"present", "reward", "hide"}, rec.calls)
	assert.False(t, h.ctrl.IsPresent())
	assert.Equal(t, "", h.lock.holder)
	assert.Equal(t, 2, h.source.LoadCount())
	assert.Equal(t, PhaseLoading, h.ctrl.Status().Phase)
	for _, name := range []string{"Show_Ready", "Show_Success", "Earn_Reward", "Show_Hide"} {
		assert.Equal(t, 1, h.sink.Count("AM_reward_"+name), name)
	}
}

func TestDismiss_ReusableReloadsExactlyOnce(t *testing.T) {
	h := newHarness(t, ad.FormatRewardedInterstitial, ad.UnitOptions{})
	h.configure()
	h.succeed()

	h.show("bonus")
	call := h.present()
	call.Listener.OnWillPresent()
	call.Listener.OnDismissed()
	call.Listener.OnDismissed()
	h.sched.RunPending()

	assert.Equal(t, 2, h.source.LoadCount())
}

func TestDismiss_SingleUseDoesNotReload(t *testing.T) {
	h := newHarness(t, ad.FormatSplash, ad.UnitOptions{})
	h.configure()
	h.succeed()

	rec := h.show("launch")
	call := h.present()
	call.Listener.OnWillPresent()
	call.Listener.OnDismissed()
	h.sched.RunPending()

	assert.Equal(t, []string{"present", "hide"}, rec.calls)
	assert.Equal(t, 1, h.source.LoadCount())
	assert.Equal(t, PhaseHidden, h.ctrl.Status().Phase)
	assert.False(t, h.ctrl.IsReadyToShow())
}

func TestShow_SplashDoesNotEarnReward(t *testing.T) {
	h := newHarness(t, ad.FormatSplash, ad.UnitOptions{})
	h.configure()
	h.succeed()

	rec := h.show("launch")
	h.present().Listener.OnRewardEarned()
	h.sched.RunPending()

	assert.Empty(t, rec.calls)
	assert.Equal(t, 0, h.sink.Count("AM_launch_Earn_Reward"))
}

func TestPresentationFailed(t *testing.T) {
	h := newHarness(t, ad.FormatAppOpen, ad.UnitOptions{})
	h.configure()
	h.succeed()

	rec := h.show("open")
	h.present().Listener.OnPresentationFailed(&ad.SourceError{Code: 7, Message: "expired"})
	h.sched.RunPending()

	require.Equal(t, []string{"fail"}, rec.calls)
	assert.ErrorIs(t, rec.err, ad.ErrPresentationFailed)
	assert.Equal(t, 7, ad.ErrorCode(rec.err))
	assert.False(t, h.ctrl.Status().Presenting)
	assert.Equal(t, "", h.lock.holder)
	assert.Equal(t, 2, h.source.LoadCount())
	assert.Equal(t, PhaseLoading, h.ctrl.Status().Phase)

	fail, ok := h.sink.Find("AM_open_Show_Fail")
	require.True(t, ok)
	assert.Equal(t, 7, fail.Attributes["error_code"])
}

func TestPresentationFailed_SingleUseIsHidden(t *testing.T) {
	h := newHarness(t, ad.FormatSplash, ad.UnitOptions{})
	h.configure()
	h.succeed()

	h.show("launch")
	h.present().Listener.OnPresentationFailed(&ad.SourceError{Code: 3, Message: "no fill"})
	h.sched.RunPending()

	status := h.ctrl.Status()
	assert.Equal(t, PhaseHidden, status.Phase)
	assert.True(t, status.Configured)
	assert.False(t, status.Ready)
	assert.Equal(t, 1, h.source.LoadCount())
}

func TestPaidImpression_ReportedOncePerPresentation(t *testing.T) {
	h := newHarness(t, ad.FormatRewarded, ad.UnitOptions{})
	h.configure()
	h.succeed()

	h.show("reward")
	call := h.present()
	value := ad.PaidValue{Value: decimal.RequireFromString("0.0125"), Currency: "USD"}

	// Paid impressions may arrive before the presentation starts.
	call.Listener.OnPaidImpression(value)
	call.Listener.OnWillPresent()
	call.Listener.OnPaidImpression(value)
	call.Listener.OnDismissed()
	call.Listener.OnPaidImpression(value)
	h.sched.RunPending()

	assert.Equal(t, 1, h.sink.Count("AM_reward_Pay_Revenue"))
	assert.Equal(t, 0, h.sink.Count("AM_reward_No_Revenue"))

	paid, ok := h.sink.Find("AM_reward_Pay_Revenue")
	require.True(t, ok)
	assert.InDelta(t, 0.0125, paid.Attributes["value"], 1e-9)
	assert.Equal(t, "USD", paid.Attributes["currency"])
}

func TestPaidImpression_ZeroValue(t *testing.T) {
	h := newHarness(t, ad.FormatAppOpen, ad.UnitOptions{})
	h.configure()
	h.succeed()

	h.show("open")
	h.present().Listener.OnPaidImpression(ad.PaidValue{Value: decimal.Zero, Currency: "USD"})
	h.sched.RunPending()

	assert.Equal(t, 1, h.sink.Count("AM_open_Pay_Revenue"))
	assert.Equal(t, 1, h.sink.Count("AM_open_No_Revenue"))
}

func TestIsReadyToShow_AppOpenReloadsAfterFailure(t *testing.T) {
	h := newHarness(t, ad.FormatAppOpen, ad.UnitOptions{})
	h.configure()
	h.fail()
	require.Equal(t, 0, h.sched.PendingTimers())

	assert.False(t, h.ctrl.IsReadyToShow())
	assert.Equal(t, 2, h.source.LoadCount())
	assert.Equal(t, 1, h.ctrl.Status().PreShowReloads)

	// A load is in flight; checking again does not start another.
	assert.False(t, h.ctrl.IsReadyToShow())
	assert.Equal(t, 2, h.source.LoadCount())
}

func TestIsReadyToShow_RewardedReloadsAfterSurfacedFailure(t *testing.T) {
	h := newHarness(t, ad.FormatRewarded, ad.UnitOptions{})
	h.configure()

	h.fail()
	assert.False(t, h.ctrl.IsReadyToShow())
	assert.Equal(t, 1, h.source.LoadCount())

	h.sched.Advance(5 * time.Second)
	h.fail()
	require.Equal(t, 2, h.source.LoadCount())

	assert.False(t, h.ctrl.IsReadyToShow())
	assert.Equal(t, 3, h.source.LoadCount())

	h.succeed()
	assert.True(t, h.ctrl.IsReadyToShow())
	assert.Equal(t, 0, h.ctrl.Status().RetryAttempt)
}

func TestConfigure_Idempotent(t *testing.T) {
	h := newHarness(t, ad.FormatRewarded, ad.UnitOptions{})
	h.configure()
	h.configure()

	assert.Equal(t, 1, h.source.LoadCount())
	assert.True(t, h.ctrl.Status().Configured)
	assert.Equal(t, "unit-rewarded", h.ctrl.Status().UnitID)
}

func TestReconfigure_AbandonsCurrentCycle(t *testing.T) {
	h := newHarness(t, ad.FormatRewarded, ad.UnitOptions{})
	h.configure()
	h.fail()
	require.Equal(t, 1, h.sched.PendingTimers())
	stale := h.source.LastLoad()

	h.ctrl.Reconfigure(Identity{UnitID: "unit-new", Name: h.name})
	h.sched.RunPending()

	require.Equal(t, 2, h.source.LoadCount())
	assert.Equal(t, "unit-new", h.source.LastLoad().Request.UnitID)
	assert.Equal(t, 0, h.ctrl.Status().RetryAttempt)
	assert.Equal(t, 0, h.sched.PendingTimers())

	stale.Succeed(&testutil.FakeHandle{AdID: "stale"})
	h.sched.RunPending()
	assert.False(t, h.ctrl.IsReadyToShow())

	h.succeed()
	assert.True(t, h.ctrl.IsReadyToShow())
}

func TestReconfigure_DuringPresentationKeepsNewCycle(t *testing.T) {
	h := newHarness(t, ad.FormatRewarded, ad.UnitOptions{})
	h.configure()
	h.succeed()

	rec := h.show("reward")
	old := h.present()
	old.Listener.OnWillPresent()
	h.sched.RunPending()

	h.ctrl.Reconfigure(Identity{UnitID: "unit-new", Name: h.name})
	h.sched.RunPending()
	require.Equal(t, 2, h.source.LoadCount())
	assert.Equal(t, PhaseLoading, h.ctrl.Status().Phase)

	h.succeed()
	old.Listener.OnDismissed()
	h.sched.RunPending()

	status := h.ctrl.Status()
	assert.Equal(t, PhaseLoaded, status.Phase)
	assert.True(t, status.Ready)
	assert.False(t, status.Presenting)
	assert.Equal(t, []string{"present", "hide"}, rec.calls)
	assert.Equal(t, 2, h.source.LoadCount())
}

func TestObserve_Unsubscribe(t *testing.T) {
	h := newHarness(t, ad.FormatAppOpen, ad.UnitOptions{})

	loads := 0
	unsubscribe := h.ctrl.Observe(LoadCallbacks{DidLoad: func() { loads++ }})
	h.configure()
	h.succeed()
	assert.Equal(t, 1, loads)

	unsubscribe()
	h.show("open")
	h.present().Listener.OnDismissed()
	h.sched.RunPending()
	h.succeed()
	assert.Equal(t, 1, loads)
}

func TestScreenLock_FullScreenExclusive(t *testing.T) {
	a := newHarness(t, ad.FormatRewarded, ad.UnitOptions{})
	b := newHarness(t, ad.FormatAppOpen, ad.UnitOptions{})
	b.ctrl.screen = a.lock
	b.lock = a.lock

	a.configure()
	a.succeed()
	b.configure()
	b.succeed()

	a.show("reward")
	rec := b.show("open")
	assert.ErrorIs(t, rec.err, ad.ErrAlreadyShowing)
	assert.Equal(t, 0, b.source.PresentCount())
	assert.True(t, b.ctrl.IsReadyToShow())

	a.present().Listener.OnDismissed()
	a.sched.RunPending()

	rec = b.show("open")
	assert.NoError(t, rec.err)
	assert.Equal(t, 1, b.source.PresentCount())
}

func TestNative(t *testing.T) {
	t.Run("bound before load", func(t *testing.T) {
		h := newHarness(t, ad.FormatNative, ad.UnitOptions{})

		var received ad.Handle
		h.ctrl.BindNative(testutil.FakeHost{Name: "feed"}, "feed_native", NativeCallbacks{
			DidReceive: func(handle ad.Handle) { received = handle },
		})
		h.configure()
		handle := h.succeed()

		assert.Same(t, handle, received)
		require.Equal(t, 1, h.source.PresentCount())
		assert.Equal(t, "feed", h.present().Host.Screen())

		h.present().Listener.OnPaidImpression(ad.PaidValue{Value: decimal.NewFromFloat(0.002), Currency: "EUR"})
		h.sched.RunPending()
		assert.Equal(t, 1, h.sink.Count("AM_feed_native_Pay_Revenue"))
	})

	t.Run("bound after load", func(t *testing.T) {
		h := newHarness(t, ad.FormatNative, ad.UnitOptions{})
		h.configure()
		handle := h.succeed()

		var received ad.Handle
		h.ctrl.BindNative(testutil.FakeHost{Name: "feed"}, "feed_native", NativeCallbacks{
			DidReceive: func(handle ad.Handle) { received = handle },
		})
		assert.Same(t, handle, received)
		assert.Equal(t, 1, h.source.PresentCount())
	})

	t.Run("load error", func(t *testing.T) {
		h := newHarness(t, ad.FormatNative, ad.UnitOptions{Timeout: 2 * time.Second})

		var gotErr error
		h.ctrl.BindNative(testutil.FakeHost{Name: "feed"}, "feed_native", NativeCallbacks{
			DidError: func(err error) { gotErr = err },
		})
		h.configure()
		h.sched.Advance(2 * time.Second)

		assert.ErrorIs(t, gotErr, ad.ErrLoadTimeout)
		assert.Equal(t, 1, h.source.LoadCount())
	})

	t.Run("show rejected", func(t *testing.T) {
		h := newHarness(t, ad.FormatNative, ad.UnitOptions{})
		h.configure()
		h.succeed()

		rec := h.show("feed_native")
		assert.ErrorIs(t, rec.err, ad.ErrInvalidConfiguration)
		assert.Equal(t, 0, h.source.PresentCount())
	})
}

func TestStatus_TestMode(t *testing.T) {
	h := newHarness(t, ad.FormatRewarded, ad.UnitOptions{})
	h.configure()
	assert.Nil(t, h.ctrl.Status().TestMode)

	h.source.LastLoad().Succeed(&testutil.FakeHandle{AdID: "t", Source: "Test Network"})
	h.sched.RunPending()

	status := h.ctrl.Status()
	require.NotNil(t, status.TestMode)
	assert.True(t, *status.TestMode)
}

func TestEmit_InvalidEventNameStillDelivered(t *testing.T) {
	h := newHarness(t, ad.FormatRewarded, ad.UnitOptions{})
	h.configure()
	h.succeed()

	h.show("placement with spaces")
	assert.Equal(t, 1, h.sink.Count("AM_placement with spaces_Show_Request"))
	assert.True(t, h.ctrl.warnedEvents["AM_placement with spaces_Show_Request"])
}

func TestLoad_EmptyResultIsFailure(t *testing.T) {
	h := newHarness(t, ad.FormatSplash, ad.UnitOptions{})
	h.configure()

	var gotErr error
	h.ctrl.Load(LoadCallbacks{DidFail: func(err error) { gotErr = err }})
	h.source.LastLoad().Succeed(nil)
	h.sched.RunPending()

	assert.True(t, errors.Is(gotErr, ad.ErrLoadFailed))
}
