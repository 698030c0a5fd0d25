package event

import (
	"time"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
)

// Event is a structured lifecycle or revenue event
type Event struct {
	Name       string
	Attributes map[string]interface{}
}

// Sink receives emitted events. Emit must not block for long; it is called
// from the lifecycle execution context.
type Sink interface {
	Emit(name string, attributes map[string]interface{})
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(name string, attributes map[string]interface{})

// Emit calls f
func (f SinkFunc) Emit(name string, attributes map[string]interface{}) {
	f(name, attributes)
}

// MultiSink fans every event out to all of its sinks in order
type MultiSink []Sink

// Emit forwards the event to every sink
func (m MultiSink) Emit(name string, attributes map[string]interface{}) {
	for _, s := range m {
		if s != nil {
			s.Emit(name, attributes)
		}
	}
}

func named(subject, suffix string, attrs map[string]interface{}) Event {
	return Event{Name: "AM_" + subject + "_" + suffix, Attributes: attrs}
}

func screenAttrs(screen string) map[string]interface{} {
	if screen == "" {
		return nil
	}
	return map[string]interface{}{"screen": screen}
}

func errorAttrs(err error) map[string]interface{} {
	return map[string]interface{}{"error_code": ad.ErrorCode(err)}
}

// Load events are keyed by unit name.

// LoadRequest reports the start of a load attempt
func LoadRequest(name string) Event {
	return named(name, "Load_Request", nil)
}

// LoadSuccess reports a loaded ad with the seconds the attempt took
func LoadSuccess(name string, elapsed time.Duration) Event {
	return named(name, "Load_Success", map[string]interface{}{"time": elapsed.Seconds()})
}

// LoadFail reports a load cycle that ended without an ad
func LoadFail(name string, err error) Event {
	return named(name, "Load_Fail", errorAttrs(err))
}

// LoadTryFail reports a failed attempt that will be retried
func LoadTryFail(name string, err error) Event {
	return named(name, "Load_TryFail", errorAttrs(err))
}

// LoadTimeout reports a load attempt abandoned by the watchdog
func LoadTimeout(name string) Event {
	return named(name, "Load_Timeout", nil)
}

// Show events are keyed by placement.

// ShowRequest reports a show call
func ShowRequest(placement, screen string) Event {
	return named(placement, "Show_Request", screenAttrs(screen))
}

// ShowReady reports a show call that found an ad
func ShowReady(placement, screen string) Event {
	return named(placement, "Show_Ready", screenAttrs(screen))
}

// ShowNoReady reports a show call made without an ad
func ShowNoReady(placement, screen string) Event {
	return named(placement, "Show_NoReady", screenAttrs(screen))
}

// ShowSuccess reports that the ad is about to appear
func ShowSuccess(placement string) Event {
	return named(placement, "Show_Success", nil)
}

// ShowFail reports a presentation the source could not start
func ShowFail(placement string, err error) Event {
	return named(placement, "Show_Fail", errorAttrs(err))
}

// ShowHide reports that the ad was dismissed
func ShowHide(placement string) Event {
	return named(placement, "Show_Hide", nil)
}

// EarnReward reports that the user earned the reward
func EarnReward(placement string) Event {
	return named(placement, "Earn_Reward", nil)
}

// NoRevenue reports a paid impression worth zero
func NoRevenue(placement string) Event {
	return named(placement, "No_Revenue", nil)
}

// PayRevenue reports the value of a paid impression
func PayRevenue(placement string, value ad.PaidValue) Event {
	return named(placement, "Pay_Revenue", map[string]interface{}{
		"value":    value.Value.InexactFloat64(),
		"currency": value.Currency,
	})
}
