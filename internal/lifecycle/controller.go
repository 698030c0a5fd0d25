package lifecycle

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/event"
	"github.com/personal/ad-lifecycle/pkg/logger"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// Identity is what Configure assigns to a controller
type Identity struct {
	UnitID          string
	Name            string
	FullScreenMedia bool
}

// Dependencies are the collaborators of a Controller
type Dependencies struct {
	Source    ad.Source
	Scheduler Scheduler
	Sink      event.Sink
	Screen    ScreenLock
	Logger    *logger.Logger
}

// Controller owns the lifecycle of one ad unit: single-flight loading,
// retry and timeout handling, show gating and presentation events.
//
// Every method must be called on the controller's scheduler. Results of
// asynchronous work are posted back onto it before any state changes.
// Status may be called from any goroutine.
type Controller struct {
	policy ad.Policy
	source ad.Source
	sched  Scheduler
	sink   event.Sink
	screen ScreenLock
	logger *logger.Logger

	identity   Identity
	configured bool

	phase        Phase
	handle       ad.Handle
	retryAttempt int
	lastLoadAt   time.Time

	// generation identifies the current load cycle. Timers and load results
	// carry the generation they were created for and are ignored once it moves on.
	generation     uint64
	inFlight       bool
	loadStartedAt  time.Time
	cancelLoad     context.CancelFunc
	watchdog       Timer
	retryTimer     Timer
	pending        []LoadCallbacks
	observers      map[int]LoadCallbacks
	nextObserverID int

	current        *presentation
	presenting     bool
	present        bool
	preShowReloads int

	native       NativeCallbacks
	nativeHost   ad.Host
	nativePlace  string
	nativeBound  bool
	nativeShown  ad.Handle
	warnedEvents map[string]bool

	status atomic.Pointer[Status]
}

// NewController creates an unconfigured controller for the policy's format
func NewController(policy ad.Policy, deps Dependencies) *Controller {
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	c := &Controller{
		policy:       policy,
		source:       deps.Source,
		sched:        deps.Scheduler,
		sink:         deps.Sink,
		screen:       deps.Screen,
		logger:       log,
		observers:    make(map[int]LoadCallbacks),
		warnedEvents: make(map[string]bool),
	}
	c.publish()
	return c
}

// Policy returns the controller's policy
func (c *Controller) Policy() ad.Policy { return c.policy }

// Status returns the latest snapshot of the controller
func (c *Controller) Status() Status {
	return *c.status.Load()
}

// Configure sets the unit identity once and starts the first load.
// Calls after the first are ignored.
func (c *Controller) Configure(id Identity) {
	defer c.publish()

	if c.configured {
		c.log().Debug("Ignoring duplicate configuration")
		return
	}
	if id.UnitID == "" {
		c.log().Warn("Cannot configure without an ad unit id")
		return
	}
	c.identity = id
	c.configured = true
	c.log().Info("Ad unit configured")
	c.Load(LoadCallbacks{})
}

// Reconfigure replaces the unit identity, abandons any in-flight load and
// pending timers, drops the held ad and starts a fresh load.
func (c *Controller) Reconfigure(id Identity) {
	defer c.publish()

	if id.UnitID == "" {
		c.log().Warn("Cannot reconfigure without an ad unit id")
		return
	}
	c.abandonCycle()
	c.handle = nil
	c.retryAttempt = 0
	c.lastLoadAt = time.Time{}
	c.identity = id
	c.configured = true
	c.phase = PhaseIdle
	c.log().Info("Ad unit reconfigured")
	c.Load(LoadCallbacks{})
}

// Observe registers callbacks invoked at the end of every load cycle.
// The returned function removes them.
func (c *Controller) Observe(cb LoadCallbacks) (unsubscribe func()) {
	id := c.nextObserverID
	c.nextObserverID++
	c.observers[id] = cb
	return func() {
		delete(c.observers, id)
	}
}

// Load starts a load cycle unless one is in flight or an ad is already held.
// cb joins the in-flight cycle if there is one; it is called immediately if
// an ad is already held.
func (c *Controller) Load(cb LoadCallbacks) {
	defer c.publish()

	if !c.configured {
		c.log().Warn("Failed to load - unit not configured")
		cb.finish(ad.ErrNotConfigured)
		return
	}
	if c.handle != nil {
		cb.finish(nil)
		return
	}
	if !cb.empty() {
		c.pending = append(c.pending, cb)
	}
	if c.inFlight {
		return
	}
	c.startLoad()
}

// IsReadyToShow reports whether an ad is held. When none is held and the
// policy allows a pre-show reload at the current retry attempt, a load is
// started first; its outcome arrives asynchronously.
func (c *Controller) IsReadyToShow() bool {
	defer c.publish()

	if c.handle == nil && c.configured && !c.inFlight &&
		c.policy.PreShowReloadAfter > 0 && c.retryAttempt >= c.policy.PreShowReloadAfter {
		c.preShowReloads++
		c.log().WithField("retryAttempt", c.retryAttempt).Debug("Reloading before show")
		c.Load(LoadCallbacks{})
	}
	return c.handle != nil
}

// IsPresent reports whether an ad is on screen, between the will-present and
// dismissed signals
func (c *Controller) IsPresent() bool {
	return c.present
}

// Show presents the held ad on host. Every rejection is reported through
// cb.DidFail and leaves the controller unchanged.
func (c *Controller) Show(host ad.Host, placement string, cb ShowCallbacks) {
	defer c.publish()

	log := c.log().WithField("placement", placement)
	format := string(c.policy.Format)

	if !c.policy.Presentable {
		log.Warn("Display failure - format is bound to a view, not shown")
		monitoring.RecordShow(format, "not_presentable")
		cb.fail(ad.Wrap(ad.ErrInvalidConfiguration, errNotPresentable))
		return
	}
	if c.presenting {
		log.Warn("Display failure - ads are being displayed")
		monitoring.RecordShow(format, "already_showing")
		cb.fail(ad.ErrAlreadyShowing)
		return
	}

	screen := screenOf(host)
	c.emit(event.ShowRequest(placement, screen))

	if !c.IsReadyToShow() {
		log.Warn("Display failure - not ready to show")
		c.emit(event.ShowNoReady(placement, screen))
		monitoring.RecordShow(format, "not_ready")
		cb.fail(ad.ErrNotReady)
		return
	}
	if !c.intervalElapsed() {
		log.Warn("Display failure - load time is less than interval")
		monitoring.RecordShow(format, "interval_not_elapsed")
		cb.fail(ad.ErrIntervalNotElapsed)
		return
	}
	if c.policy.FullScreen && c.screen != nil && !c.screen.TryAcquire(c.key()) {
		log.Warn("Display failure - another ad is on screen")
		monitoring.RecordShow(format, "already_showing")
		cb.fail(ad.ErrAlreadyShowing)
		return
	}

	c.emit(event.ShowReady(placement, screen))
	log.Info("Requested to show")
	monitoring.RecordShow(format, "requested")

	p := newPresentation(placement, c.handle, cb)
	c.current = p
	c.presenting = true
	c.phase = PhaseShowing
	c.source.Present(c.handle, host, &listener{c: c, p: p})
}

// BindNative attaches a native ad's host view and callbacks. If the ad has
// already arrived it is delivered immediately.
func (c *Controller) BindNative(host ad.Host, placement string, cb NativeCallbacks) {
	defer c.publish()

	c.nativeHost = host
	c.nativePlace = placement
	c.native = cb
	c.nativeBound = true

	switch {
	case c.handle != nil:
		c.deliverNative()
	case c.phase == PhaseLoadFailed || c.phase == PhaseLoadTimedOut:
		if cb.DidError != nil {
			cb.DidError(ad.ErrNotReady)
		}
	}
}

func (c *Controller) startLoad() {
	c.stopRetryTimer()
	c.generation++
	gen := c.generation

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelLoad = cancel
	c.inFlight = true
	c.phase = PhaseLoading
	c.loadStartedAt = c.sched.Now()

	c.log().Info("Start load")
	c.emit(event.LoadRequest(c.identity.Name))

	if c.policy.LoadTimeout > 0 {
		c.watchdog = c.sched.AfterFunc(c.policy.LoadTimeout, func() {
			c.onLoadTimeout(gen)
		})
	}

	req := ad.LoadRequest{
		UnitID:          c.identity.UnitID,
		Format:          c.policy.Format,
		FullScreenMedia: c.identity.FullScreenMedia,
	}
	c.source.Load(ctx, req, func(h ad.Handle, err error) {
		c.sched.Post(func() {
			c.onLoadResult(gen, h, err)
		})
	})
}

func (c *Controller) onLoadResult(gen uint64, h ad.Handle, err error) {
	defer c.publish()

	if gen != c.generation || !c.inFlight {
		c.log().WithField("staleGeneration", gen).Debug("Discarding late load result")
		return
	}
	c.endCycle()
	elapsed := c.sched.Now().Sub(c.loadStartedAt)

	if err != nil || h == nil {
		if err == nil {
			err = errEmptyLoad
		}
		monitoring.RecordLoad(string(c.policy.Format), "failure", elapsed)
		c.onLoadFailure(gen, err)
		return
	}

	c.handle = h
	c.retryAttempt = 0
	c.lastLoadAt = c.sched.Now()
	c.phase = PhaseLoaded
	c.log().WithField("elapsed", elapsed).Info("Did load")
	c.emit(event.LoadSuccess(c.identity.Name, elapsed))
	monitoring.RecordLoad(string(c.policy.Format), "success", elapsed)

	c.finishCycle(nil)
	if c.nativeBound {
		c.deliverNative()
	}
}

func (c *Controller) onLoadFailure(gen uint64, err error) {
	c.retryAttempt++
	c.phase = PhaseLoadFailed
	log := c.log().WithError(err).WithField("retryAttempt", c.retryAttempt)

	if c.retryAttempt <= c.policy.MaxLoadRetries {
		log.WithField("backoff", c.policy.RetryBackoff).Warn("Did fail to load, retry scheduled")
		c.emit(event.LoadFail(c.identity.Name, err))
		monitoring.RecordRetryScheduled(string(c.policy.Format))
		c.retryTimer = c.sched.AfterFunc(c.policy.RetryBackoff, func() {
			c.onRetry(gen)
		})
		return
	}

	log.Warn("Load fail")
	if c.policy.MaxLoadRetries > 0 {
		c.emit(event.LoadTryFail(c.identity.Name, err))
	} else {
		c.emit(event.LoadFail(c.identity.Name, err))
	}
	c.finishCycle(ad.Wrap(ad.ErrLoadFailed, err))
	c.notifyNativeError(ad.Wrap(ad.ErrLoadFailed, err))
}

func (c *Controller) onRetry(gen uint64) {
	defer c.publish()

	if gen != c.generation || c.inFlight || c.handle != nil {
		return
	}
	c.retryTimer = nil
	c.startLoad()
}

func (c *Controller) onLoadTimeout(gen uint64) {
	defer c.publish()

	if gen != c.generation || !c.inFlight {
		return
	}
	c.watchdog = nil
	c.endCycle()
	// Move past this cycle so a late result is discarded.
	c.generation++
	c.phase = PhaseLoadTimedOut

	elapsed := c.sched.Now().Sub(c.loadStartedAt)
	c.log().WithField("timeout", c.policy.LoadTimeout).Warn("Load fail - time out")
	c.emit(event.LoadTimeout(c.identity.Name))
	monitoring.RecordLoad(string(c.policy.Format), "timeout", elapsed)

	c.finishCycle(ad.ErrLoadTimeout)
	c.notifyNativeError(ad.ErrLoadTimeout)
}

// endCycle clears the in-flight state of the current load
func (c *Controller) endCycle() {
	c.inFlight = false
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
}

// abandonCycle drops the current load cycle and its timers
func (c *Controller) abandonCycle() {
	c.endCycle()
	c.stopRetryTimer()
	c.generation++
}

func (c *Controller) stopRetryTimer() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// finishCycle publishes the snapshot first so callbacks observe the outcome
// in Status.
func (c *Controller) finishCycle(err error) {
	c.publish()
	pending := c.pending
	c.pending = nil
	for _, cb := range pending {
		cb.finish(err)
	}
	for _, cb := range c.observers {
		cb.finish(err)
	}
}

func (c *Controller) deliverNative() {
	if c.native.DidReceive != nil {
		c.native.DidReceive(c.handle)
	}
	// A handle is bound to its host view once.
	if c.nativeHost != nil && c.nativeShown != c.handle {
		c.nativeShown = c.handle
		p := newPresentation(c.nativePlace, c.handle, ShowCallbacks{})
		c.source.Present(c.handle, c.nativeHost, &listener{c: c, p: p})
	}
}

func (c *Controller) notifyNativeError(err error) {
	if c.nativeBound && c.native.DidError != nil {
		c.native.DidError(err)
	}
}

func (c *Controller) intervalElapsed() bool {
	if c.policy.MinShowInterval <= 0 || c.lastLoadAt.IsZero() {
		return true
	}
	return c.sched.Now().Sub(c.lastLoadAt) >= c.policy.MinShowInterval
}

func (c *Controller) key() string {
	return ad.Key{Format: c.policy.Format, Name: c.identity.Name}.String()
}

func (c *Controller) emit(e event.Event) {
	if err := event.CheckName(e.Name, event.MaxEventNameLength); err != nil && !c.warnedEvents[e.Name] {
		c.warnedEvents[e.Name] = true
		c.log().WithError(err).Warn("Emitting event with an invalid analytics name")
		monitoring.RecordConfigWarning("event_name")
	}
	if c.sink != nil {
		c.sink.Emit(e.Name, e.Attributes)
	}
}

func (c *Controller) log() *logger.Entry {
	return c.logger.WithFields(logger.Fields{
		"format":     c.policy.Format,
		"name":       c.identity.Name,
		"generation": c.generation,
	})
}

func (c *Controller) publish() {
	s := &Status{
		Format:         c.policy.Format,
		Name:           c.identity.Name,
		UnitID:         c.identity.UnitID,
		Configured:     c.configured,
		Phase:          c.phase,
		Ready:          c.handle != nil && !c.presenting,
		Loading:        c.inFlight,
		RetryScheduled: c.retryTimer != nil,
		Presenting:     c.presenting,
		Present:        c.present,
		RetryAttempt:   c.retryAttempt,
		PreShowReloads: c.preShowReloads,
		Generation:     c.generation,
		LastLoadAt:     c.lastLoadAt,
		Handle:         c.handle,
	}
	if testMode, known := ad.IsTestAd(c.handle); known {
		s.TestMode = &testMode
	}
	c.status.Store(s)
}

func screenOf(host ad.Host) string {
	if host == nil {
		return ""
	}
	return host.Screen()
}
