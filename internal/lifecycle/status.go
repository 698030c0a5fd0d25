package lifecycle

import (
	"time"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
)

// Status is a point-in-time snapshot of a controller. It is safe to read
// from any goroutine.
type Status struct {
	Format         ad.Format `json:"format"`
	Name           string    `json:"name"`
	UnitID         string    `json:"unitId,omitempty"`
	Configured     bool      `json:"configured"`
	Phase          Phase     `json:"phase"`
	Ready          bool      `json:"ready"`
	Loading        bool      `json:"loading"`
	RetryScheduled bool      `json:"retryScheduled"`
	Presenting     bool      `json:"presenting"`
	Present        bool      `json:"present"`
	RetryAttempt   int       `json:"retryAttempt"`
	PreShowReloads int       `json:"preShowReloads"`
	Generation     uint64    `json:"generation"`
	LastLoadAt     time.Time `json:"lastLoadAt"`
	TestMode       *bool     `json:"testMode,omitempty"`

	Handle ad.Handle `json:"-"`
}
