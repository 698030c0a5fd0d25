package lifecycle

import "github.com/personal/ad-lifecycle/internal/domain/ad"

// LoadCallbacks report the outcome of a load cycle. Either field may be nil.
type LoadCallbacks struct {
	DidLoad func()
	DidFail func(error)
}

func (cb LoadCallbacks) empty() bool {
	return cb.DidLoad == nil && cb.DidFail == nil
}

func (cb LoadCallbacks) finish(err error) {
	if err == nil {
		if cb.DidLoad != nil {
			cb.DidLoad()
		}
		return
	}
	if cb.DidFail != nil {
		cb.DidFail(err)
	}
}

// ShowCallbacks report the progress of one presentation. Any field may be nil.
type ShowCallbacks struct {
	DidFail       func(error)
	WillPresent   func()
	DidEarnReward func()
	DidHide       func()
}

func (cb ShowCallbacks) fail(err error) {
	if cb.DidFail != nil {
		cb.DidFail(err)
	}
}

// NativeCallbacks receive the outcome of a native ad load
type NativeCallbacks struct {
	DidReceive func(ad.Handle)
	DidError   func(error)
}

// ScreenLock arbitrates which full-screen controller may be on screen.
// It is confined to the controllers' scheduler.
type ScreenLock interface {
	// TryAcquire claims the screen for owner. Re-acquiring by the holder succeeds.
	TryAcquire(owner string) bool

	// Release frees the screen if owner holds it
	Release(owner string)
}
