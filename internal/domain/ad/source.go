package ad

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// LoadRequest describes one load attempt sent to the ad network
type LoadRequest struct {
	UnitID          string
	Format          Format
	FullScreenMedia bool
}

// Handle is a loaded ad held by a controller until it is shown.
type Handle interface {
	// ID uniquely identifies the loaded ad
	ID() string

	// AdSourceName is the mediation ad source that served the ad, if known
	AdSourceName() string
}

// IsTestAd reports whether the handle was served by a test ad source.
// The second result is false when the source name is unknown.
func IsTestAd(h Handle) (bool, bool) {
	if h == nil || h.AdSourceName() == "" {
		return false, false
	}
	return strings.Contains(strings.ToLower(h.AdSourceName()), "test"), true
}

// Host is the surface an ad is presented on
type Host interface {
	// Screen names the host screen for analytics
	Screen() string
}

// PaidValue is the monetary value of a paid impression
type PaidValue struct {
	Value    decimal.Decimal
	Currency string
}

// PresentationListener receives presentation lifecycle events. Events may
// arrive on any goroutine and paid impressions may arrive in any order
// relative to the others.
type PresentationListener interface {
	OnWillPresent()
	OnDismissed()
	OnPresentationFailed(err error)
	OnRewardEarned()
	OnPaidImpression(value PaidValue)
}

// Source is the network-bound ad-serving capability.
type Source interface {
	// Load requests an ad. done is called exactly once, on any goroutine,
	// with either a handle or an error. Cancelling ctx abandons the request.
	Load(ctx context.Context, req LoadRequest, done func(Handle, error))

	// Present displays a loaded ad on host and reports events to listener.
	// Native ads are presented by binding them to their host view.
	Present(handle Handle, host Host, listener PresentationListener)
}
