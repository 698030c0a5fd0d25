package ad

import (
	"fmt"
	"strings"
	"time"
)

// UnitConfig identifies one configured ad slot. It is immutable after creation.
type UnitConfig struct {
	unitID          string
	name            string
	placement       string
	format          Format
	enabled         bool
	timeout         time.Duration
	minShowInterval time.Duration
	fullScreenMedia bool
}

// UnitOptions carries the optional per-unit parameters
type UnitOptions struct {
	Placement       string
	Timeout         time.Duration
	MinShowInterval time.Duration
	FullScreenMedia bool
}

// NewUnitConfig creates a UnitConfig from external configuration data.
// Disabled units only need a format and a name.
func NewUnitConfig(format Format, unitID, name string, enabled bool, opts UnitOptions) (UnitConfig, error) {
	if _, ok := basePolicies[format]; !ok {
		return UnitConfig{}, fmt.Errorf("%w: unknown format %q", ErrInvalidConfiguration, format)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return UnitConfig{}, fmt.Errorf("%w: unit name cannot be empty", ErrInvalidConfiguration)
	}
	if enabled && strings.TrimSpace(unitID) == "" {
		return UnitConfig{}, fmt.Errorf("%w: unit %q has no ad unit id", ErrInvalidConfiguration, name)
	}
	if opts.Timeout < 0 || opts.MinShowInterval < 0 {
		return UnitConfig{}, fmt.Errorf("%w: unit %q has a negative duration", ErrInvalidConfiguration, name)
	}

	placement := strings.TrimSpace(opts.Placement)
	if placement == "" {
		placement = name
	}

	return UnitConfig{
		unitID:          unitID,
		name:            name,
		placement:       placement,
		format:          format,
		enabled:         enabled,
		timeout:         opts.Timeout,
		minShowInterval: opts.MinShowInterval,
		fullScreenMedia: opts.FullScreenMedia,
	}, nil
}

// Getters
func (u UnitConfig) UnitID() string                 { return u.unitID }
func (u UnitConfig) Name() string                   { return u.name }
func (u UnitConfig) Placement() string              { return u.placement }
func (u UnitConfig) Format() Format                 { return u.format }
func (u UnitConfig) Enabled() bool                  { return u.enabled }
func (u UnitConfig) Timeout() time.Duration         { return u.timeout }
func (u UnitConfig) MinShowInterval() time.Duration { return u.minShowInterval }
func (u UnitConfig) FullScreenMedia() bool          { return u.fullScreenMedia }

// WithTimings returns u with the timeout and reuse interval of from
func (u UnitConfig) WithTimings(from UnitConfig) UnitConfig {
	u.timeout = from.timeout
	u.minShowInterval = from.minShowInterval
	return u
}

// Key returns the registry key of the unit
func (u UnitConfig) Key() Key {
	return Key{Format: u.format, Name: u.name}
}

// Key identifies a unit inside the registry
type Key struct {
	Format Format
	Name   string
}

func (k Key) String() string {
	return string(k.Format) + "/" + k.Name
}
