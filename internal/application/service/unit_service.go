package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/event"
	"github.com/personal/ad-lifecycle/internal/lifecycle"
)

// ErrNoOutcome is returned when a request was accepted but no outcome
// arrived before the caller stopped waiting
var ErrNoOutcome = errors.New("no outcome before deadline")

// UnitService exposes the dispatcher to request/response callers such as
// the HTTP API. Each call waits for the first asynchronous outcome.
type UnitService struct {
	dispatcher *Dispatcher
	events     event.Repository
	wait       time.Duration
}

// NewUnitService creates a new UnitService. wait bounds how long a call
// waits for an outcome.
func NewUnitService(dispatcher *Dispatcher, events event.Repository, wait time.Duration) *UnitService {
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &UnitService{
		dispatcher: dispatcher,
		events:     events,
		wait:       wait,
	}
}

// RegisterUnitRequest represents a request to register an ad unit
type RegisterUnitRequest struct {
	Format                 string  `json:"format" validate:"required,oneof=splash app_open rewarded rewarded_interstitial native"`
	Name                   string  `json:"name" validate:"required,max=64"`
	UnitID                 string  `json:"unitId"`
	Enabled                *bool   `json:"enabled,omitempty"`
	Placement              string  `json:"placement,omitempty" validate:"omitempty,max=64"`
	TimeoutSeconds         float64 `json:"timeoutSeconds,omitempty" validate:"gte=0"`
	MinShowIntervalSeconds float64 `json:"minShowIntervalSeconds,omitempty" validate:"gte=0"`
	FullScreenMedia        bool    `json:"fullScreenMedia,omitempty"`
}

// UnitResponse describes a registered unit
type UnitResponse struct {
	Placement string           `json:"placement"`
	Status    lifecycle.Status `json:"status"`
}

// RegisterUnit registers a unit, or reconfigures it when it already exists
func (s *UnitService) RegisterUnit(ctx context.Context, req *RegisterUnitRequest) (*UnitResponse, error) {
	format, err := ad.ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}
	enabled := req.Enabled == nil || *req.Enabled

	unit, err := ad.NewUnitConfig(format, req.UnitID, req.Name, enabled, ad.UnitOptions{
		Placement:       req.Placement,
		Timeout:         seconds(req.TimeoutSeconds),
		MinShowInterval: seconds(req.MinShowIntervalSeconds),
		FullScreenMedia: req.FullScreenMedia,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.dispatcher.Unit(format, unit.Name()); err == nil {
		if err := s.dispatcher.Reconfigure(unit); err != nil {
			return nil, err
		}
	} else if err := s.dispatcher.Register(unit); err != nil {
		return nil, err
	}

	return s.GetUnit(ctx, req.Format, unit.Name())
}

// GetUnit returns one unit
func (s *UnitService) GetUnit(ctx context.Context, formatTag, name string) (*UnitResponse, error) {
	format, err := ad.ParseFormat(formatTag)
	if err != nil {
		return nil, err
	}
	unit, err := s.dispatcher.Unit(format, name)
	if err != nil {
		return nil, err
	}
	status, err := s.dispatcher.Status(format, name)
	if err != nil {
		return nil, err
	}
	return &UnitResponse{Placement: unit.Placement(), Status: status}, nil
}

// ListUnits returns the status of every unit
func (s *UnitService) ListUnits(ctx context.Context) []lifecycle.Status {
	return s.dispatcher.Units()
}

// LoadResponse represents the outcome of a load request
type LoadResponse struct {
	Loaded bool             `json:"loaded"`
	Error  string           `json:"error,omitempty"`
	Status lifecycle.Status `json:"status"`
}

// LoadUnit requests a load and waits for the cycle to finish
func (s *UnitService) LoadUnit(ctx context.Context, formatTag, name string) (*LoadResponse, error) {
	format, err := ad.ParseFormat(formatTag)
	if err != nil {
		return nil, err
	}

	outcome := make(chan error, 1)
	err = s.dispatcher.RequestLoad(format, name, lifecycle.LoadCallbacks{
		DidLoad: func() { outcome <- nil },
		DidFail: func(err error) { outcome <- err },
	})
	if err != nil {
		return nil, err
	}

	loadErr, err := s.await(ctx, outcome)
	if err != nil {
		return nil, err
	}

	status, _ := s.dispatcher.Status(format, name)
	resp := &LoadResponse{Loaded: loadErr == nil, Status: status}
	if loadErr != nil {
		resp.Error = loadErr.Error()
	}
	return resp, nil
}

// ShowRequest represents a request to show an ad
type ShowRequest struct {
	Screen    string `json:"screen" validate:"omitempty,max=64"`
	Placement string `json:"placement,omitempty" validate:"omitempty,max=64"`
}

// ShowResponse represents the first outcome of a show request
type ShowResponse struct {
	Presented bool   `json:"presented"`
	Error     string `json:"error,omitempty"`
}

// ShowUnit requests a presentation and waits until it starts or fails.
// The returned error wraps the rejection reason when the show failed.
func (s *UnitService) ShowUnit(ctx context.Context, formatTag, name string, req *ShowRequest) (*ShowResponse, error) {
	format, err := ad.ParseFormat(formatTag)
	if err != nil {
		return nil, err
	}

	outcome := make(chan error, 1)
	report := func(err error) {
		select {
		case outcome <- err:
		default:
		}
	}
	err = s.dispatcher.RequestShow(format, name, host{screen: req.Screen}, req.Placement, lifecycle.ShowCallbacks{
		WillPresent: func() { report(nil) },
		DidFail:     report,
	})
	if err != nil {
		return nil, err
	}

	showErr, err := s.await(ctx, outcome)
	if err != nil {
		return nil, err
	}
	if showErr != nil {
		return &ShowResponse{Error: showErr.Error()}, showErr
	}
	return &ShowResponse{Presented: true}, nil
}

// NativeResponse represents the outcome of binding a native unit
type NativeResponse struct {
	Received bool   `json:"received"`
	AdID     string `json:"adId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BindNative binds a native unit to a screen and waits for the ad
func (s *UnitService) BindNative(ctx context.Context, name, screen string) (*NativeResponse, error) {
	type result struct {
		handle ad.Handle
		err    error
	}
	outcome := make(chan result, 1)
	report := func(r result) {
		select {
		case outcome <- r:
		default:
		}
	}

	err := s.dispatcher.BindNative(name, host{screen: screen}, lifecycle.NativeCallbacks{
		DidReceive: func(h ad.Handle) { report(result{handle: h}) },
		DidError:   func(err error) { report(result{err: err}) },
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()

	select {
	case r := <-outcome:
		if r.err != nil {
			return &NativeResponse{Error: r.err.Error()}, nil
		}
		return &NativeResponse{Received: true, AdID: r.handle.ID()}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrNoOutcome, ctx.Err())
	}
}

// RecentEvents returns the most recent lifecycle events, newest first
func (s *UnitService) RecentEvents(ctx context.Context, limit int) ([]event.Record, error) {
	return s.events.FindRecent(ctx, limit)
}

// CountEvents returns how many events carry the name
func (s *UnitService) CountEvents(ctx context.Context, name string) (int64, error) {
	return s.events.CountByName(ctx, name)
}

func (s *UnitService) await(ctx context.Context, outcome <-chan error) (error, error) {
	ctx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()

	select {
	case err := <-outcome:
		return err, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrNoOutcome, ctx.Err())
	}
}

// host is an ad.Host identified by screen name
type host struct {
	screen string
}

func (h host) Screen() string { return h.screen }
