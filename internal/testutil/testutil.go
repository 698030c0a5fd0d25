// Package testutil provides fakes for the ad source, host and event sink.
package testutil

import (
	"context"
	"sync"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
)

// FakeHandle is a loaded ad returned by FakeSource
type FakeHandle struct {
	AdID   string
	Source string
}

func (h *FakeHandle) ID() string           { return h.AdID }
func (h *FakeHandle) AdSourceName() string { return h.Source }

// FakeHost is a presentation surface
type FakeHost struct {
	Name string
}

func (h FakeHost) Screen() string { return h.Name }

// LoadCall is one Load invocation captured by FakeSource
type LoadCall struct {
	Ctx     context.Context
	Request ad.LoadRequest
	done    func(ad.Handle, error)
}

// Succeed completes the load with handle
func (l *LoadCall) Succeed(handle ad.Handle) {
	l.done(handle, nil)
}

// Fail completes the load with err
func (l *LoadCall) Fail(err error) {
	l.done(nil, err)
}

// PresentCall is one Present invocation captured by FakeSource. Its listener
// is used to drive presentation events.
type PresentCall struct {
	Handle   ad.Handle
	Host     ad.Host
	Listener ad.PresentationListener
}

// FakeSource records calls and lets tests decide every outcome.
type FakeSource struct {
	mu       sync.Mutex
	loads    []*LoadCall
	presents []*PresentCall
}

// NewFakeSource creates an empty FakeSource
func NewFakeSource() *FakeSource {
	return &FakeSource{}
}

// Load records the request; complete it through LastLoad or Loads
func (s *FakeSource) Load(ctx context.Context, req ad.LoadRequest, done func(ad.Handle, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads = append(s.loads, &LoadCall{Ctx: ctx, Request: req, done: done})
}

// Present records the presentation
func (s *FakeSource) Present(handle ad.Handle, host ad.Host, listener ad.PresentationListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presents = append(s.presents, &PresentCall{Handle: handle, Host: host, Listener: listener})
}

// LoadCount returns how many loads were requested
func (s *FakeSource) LoadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loads)
}

// LastLoad returns the most recent load, or nil
func (s *FakeSource) LastLoad() *LoadCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.loads) == 0 {
		return nil
	}
	return s.loads[len(s.loads)-1]
}

// Loads returns every recorded load
func (s *FakeSource) Loads() []*LoadCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*LoadCall(nil), s.loads...)
}

// PresentCount returns how many presentations were requested
func (s *FakeSource) PresentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.presents)
}

// LastPresent returns the most recent presentation, or nil
func (s *FakeSource) LastPresent() *PresentCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.presents) == 0 {
		return nil
	}
	return s.presents[len(s.presents)-1]
}

// EmittedEvent is one event captured by RecordingSink
type EmittedEvent struct {
	Name       string
	Attributes map[string]interface{}
}

// RecordingSink captures emitted events
type RecordingSink struct {
	mu     sync.Mutex
	events []EmittedEvent
}

// Emit records the event
func (s *RecordingSink) Emit(name string, attributes map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, EmittedEvent{Name: name, Attributes: attributes})
}

// Events returns every recorded event
func (s *RecordingSink) Events() []EmittedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EmittedEvent(nil), s.events...)
}

// Names returns the recorded event names in order
func (s *RecordingSink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.events))
	for _, e := range s.events {
		names = append(names, e.Name)
	}
	return names
}

// Count returns how many events named name were recorded
func (s *RecordingSink) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

// Find returns the first event named name
func (s *RecordingSink) Find(name string) (EmittedEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.Name == name {
			return e, true
		}
	}
	return EmittedEvent{}, false
}

// Reset drops every recorded event
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
