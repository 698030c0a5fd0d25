package ad

import (
	"errors"
	"fmt"
)

// Domain errors for the ad lifecycle
var (
	ErrNotConfigured        = errors.New("ad unit is not configured")
	ErrAlreadyShowing       = errors.New("an ad is already being displayed")
	ErrNotReady             = errors.New("ad is not ready to show")
	ErrIntervalNotElapsed   = errors.New("minimum show interval has not elapsed")
	ErrLoadTimeout          = errors.New("ad load timed out")
	ErrLoadFailed           = errors.New("ad load failed")
	ErrPresentationFailed   = errors.New("ad presentation failed")
	ErrNotFound             = errors.New("ad unit not found")
	ErrInvalidConfiguration = errors.New("invalid ad configuration")
)

// SourceError is a failure reported by the ad network
type SourceError struct {
	Code    int
	Message string
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("ad source error %d: %s", e.Code, e.Message)
}

// ErrorCode extracts the ad network error code from err, or -1 when err carries none.
func ErrorCode(err error) int {
	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return srcErr.Code
	}
	return -1
}

// Wrap attaches an underlying cause to a domain error.
func Wrap(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}
