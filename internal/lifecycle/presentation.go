package lifecycle

import (
	"errors"

	"github.com/google/uuid"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/event"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

var (
	errNotPresentable = errors.New("format is not presentable")
	errEmptyLoad      = errors.New("ad source returned neither an ad nor an error")
)

// presentation correlates the asynchronous events of one show call
type presentation struct {
	id           string
	placement    string
	handle       ad.Handle
	callbacks    ShowCallbacks
	ended        bool
	paidReported bool
}

func newPresentation(placement string, handle ad.Handle, cb ShowCallbacks) *presentation {
	return &presentation{
		id:        uuid.New().String(),
		placement: placement,
		handle:    handle,
		callbacks: cb,
	}
}

// listener marshals source events for one presentation onto the scheduler
type listener struct {
	c *Controller
	p *presentation
}

func (l *listener) OnWillPresent() {
	l.c.sched.Post(func() { l.c.onWillPresent(l.p) })
}

func (l *listener) OnDismissed() {
	l.c.sched.Post(func() { l.c.onDismissed(l.p) })
}

func (l *listener) OnPresentationFailed(err error) {
	l.c.sched.Post(func() { l.c.onPresentationFailed(l.p, err) })
}

func (l *listener) OnRewardEarned() {
	l.c.sched.Post(func() { l.c.onRewardEarned(l.p) })
}

func (l *listener) OnPaidImpression(value ad.PaidValue) {
	l.c.sched.Post(func() { l.c.onPaidImpression(l.p, value) })
}

// active reports whether p is the controller's live presentation
func (c *Controller) active(p *presentation) bool {
	return c.current == p && !p.ended
}

func (c *Controller) onWillPresent(p *presentation) {
	defer c.publish()

	if !c.active(p) {
		return
	}
	c.present = true
	monitoring.SetPresenting(string(c.policy.Format), true)
	c.log().WithField("presentation", p.id).Info("Will present")
	c.emit(event.ShowSuccess(p.placement))
	if p.callbacks.WillPresent != nil {
		p.callbacks.WillPresent()
	}
}

func (c *Controller) onRewardEarned(p *presentation) {
	if !c.active(p) || !c.policy.Rewarding {
		return
	}
	c.log().WithField("presentation", p.id).Info("User earned reward")
	c.emit(event.EarnReward(p.placement))
	if p.callbacks.DidEarnReward != nil {
		p.callbacks.DidEarnReward()
	}
}

func (c *Controller) onDismissed(p *presentation) {
	defer c.publish()

	if !c.active(p) {
		return
	}
	c.endPresentation(p)
	c.settlePhase()
	c.log().WithField("presentation", p.id).Info("Did hide")
	c.emit(event.ShowHide(p.placement))
	if p.callbacks.DidHide != nil {
		p.callbacks.DidHide()
	}
	c.refill()
}

func (c *Controller) onPresentationFailed(p *presentation, err error) {
	defer c.publish()

	if !c.active(p) {
		return
	}
	c.endPresentation(p)
	c.settlePhase()
	c.log().WithError(err).WithField("presentation", p.id).Warn("Did fail to present")
	c.emit(event.ShowFail(p.placement, err))
	monitoring.RecordShow(string(c.policy.Format), "presentation_failed")
	p.callbacks.fail(ad.Wrap(ad.ErrPresentationFailed, err))
	c.refill()
}

// onPaidImpression is accepted for the presentation that produced it, even
// after it ended, but at most once.
func (c *Controller) onPaidImpression(p *presentation, value ad.PaidValue) {
	if p.paidReported {
		c.log().WithField("presentation", p.id).Debug("Ignoring duplicate paid impression")
		return
	}
	p.paidReported = true

	c.emit(event.PayRevenue(p.placement, value))
	monitoring.RecordPaidImpression(string(c.policy.Format), value.Currency, value.Value)
	if value.Value.IsZero() {
		c.emit(event.NoRevenue(p.placement))
	}
}

// endPresentation releases everything p held
func (c *Controller) endPresentation(p *presentation) {
	p.ended = true
	c.current = nil
	c.presenting = false
	if c.present {
		c.present = false
		monitoring.SetPresenting(string(c.policy.Format), false)
	}
	if c.handle == p.handle {
		c.handle = nil
	}
	if c.policy.FullScreen && c.screen != nil {
		c.screen.Release(c.key())
	}
}

// settlePhase marks the unit hidden after a presentation ends. A cycle
// started while the ad was on screen keeps its own phase.
func (c *Controller) settlePhase() {
	if c.handle == nil && !c.inFlight {
		c.phase = PhaseHidden
	}
}

// refill starts the next load for reusable formats
func (c *Controller) refill() {
	if !c.policy.Reusable {
		return
	}
	c.Load(LoadCallbacks{})
}
