package ad

import (
	"fmt"
	"time"
)

// Format identifies one of the supported ad formats
type Format string

const (
	FormatSplash               Format = "splash"
	FormatAppOpen              Format = "app_open"
	FormatRewarded             Format = "rewarded"
	FormatRewardedInterstitial Format = "rewarded_interstitial"
	FormatNative               Format = "native"
)

// Formats lists every known format in a stable order.
var Formats = []Format{
	FormatSplash,
	FormatAppOpen,
	FormatRewarded,
	FormatRewardedInterstitial,
	FormatNative,
}

// ParseFormat parses a format tag
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unknown format %q", ErrInvalidConfiguration, s)
}

// Policy holds the per-format load, retry and show rules.
//
// MaxLoadRetries is the number of delayed retries scheduled after consecutive
// failures before the failure is surfaced. PreShowReloadAfter, when positive,
// makes a readiness check start a fresh load once retryAttempt has reached it
// and no ad is held.
type Policy struct {
	Format             Format
	MaxLoadRetries     int
	RetryBackoff       time.Duration
	LoadTimeout        time.Duration
	MinShowInterval    time.Duration
	PreShowReloadAfter int
	Reusable           bool
	FullScreen         bool
	Presentable        bool
	Rewarding          bool
}

// basePolicies are the format defaults before unit overrides.
var basePolicies = map[Format]Policy{
	FormatSplash: {
		Format:      FormatSplash,
		FullScreen:  true,
		Presentable: true,
	},
	FormatAppOpen: {
		Format:             FormatAppOpen,
		PreShowReloadAfter: 1,
		Reusable:           true,
		FullScreen:         true,
		Presentable:        true,
	},
	FormatRewarded: {
		Format:             FormatRewarded,
		MaxLoadRetries:     1,
		RetryBackoff:       5 * time.Second,
		PreShowReloadAfter: 2,
		Reusable:           true,
		FullScreen:         true,
		Presentable:        true,
		Rewarding:          true,
	},
	FormatRewardedInterstitial: {
		Format:             FormatRewardedInterstitial,
		MaxLoadRetries:     1,
		RetryBackoff:       5 * time.Second,
		PreShowReloadAfter: 2,
		Reusable:           true,
		FullScreen:         true,
		Presentable:        true,
		Rewarding:          true,
	},
	FormatNative: {
		Format: FormatNative,
	},
}

// ResolvePolicy returns the policy for a format with the unit's timeout and
// reuse interval applied.
func ResolvePolicy(format Format, unit UnitConfig) (Policy, error) {
	policy, ok := basePolicies[format]
	if !ok {
		return Policy{}, fmt.Errorf("%w: no policy for format %q", ErrInvalidConfiguration, format)
	}
	if unit.Timeout() > 0 {
		policy.LoadTimeout = unit.Timeout()
	}
	if unit.MinShowInterval() > 0 {
		policy.MinShowInterval = unit.MinShowInterval()
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// Validate checks the policy invariants
func (p Policy) Validate() error {
	if p.MaxLoadRetries < 0 || p.MaxLoadRetries > 2 {
		return fmt.Errorf("%w: max load retries must be between 0 and 2, got %d", ErrInvalidConfiguration, p.MaxLoadRetries)
	}
	if p.MaxLoadRetries > 0 && p.RetryBackoff <= 0 {
		return fmt.Errorf("%w: retry backoff required when retries are enabled", ErrInvalidConfiguration)
	}
	if p.LoadTimeout < 0 || p.MinShowInterval < 0 {
		return fmt.Errorf("%w: negative durations are not allowed", ErrInvalidConfiguration)
	}
	if p.FullScreen && !p.Presentable {
		return fmt.Errorf("%w: full-screen format must be presentable", ErrInvalidConfiguration)
	}
	return nil
}
