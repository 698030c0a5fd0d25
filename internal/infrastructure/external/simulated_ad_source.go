package external

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/pkg/logger"
)

// Error codes reported by the simulated network
const (
	CodeInternalError     = 0
	CodeNoFill            = 3
	CodePresentationError = 18
)

// SimulatedOptions tunes the simulated network
type SimulatedOptions struct {
	FillRate        float64
	MinLatency      time.Duration
	MaxLatency      time.Duration
	DisplayDuration time.Duration
	PresentFailRate float64
	Revenue         decimal.Decimal
	Currency        string
	TestMode        bool
	Seed            int64
}

// SimulatedSource is an ad.Source that fills requests after a random
// latency and plays a scripted presentation. It stands in for a real ad
// network in local runs and the adctl simulator.
type SimulatedSource struct {
	opts   SimulatedOptions
	logger *logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

type simulatedHandle struct {
	id     string
	format ad.Format
	source string
}

func (h *simulatedHandle) ID() string           { return h.id }
func (h *simulatedHandle) AdSourceName() string { return h.source }

// NewSimulatedSource creates a new SimulatedSource
func NewSimulatedSource(opts SimulatedOptions, log *logger.Logger) *SimulatedSource {
	if opts.MaxLatency < opts.MinLatency {
		opts.MaxLatency = opts.MinLatency
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &SimulatedSource{
		opts:   opts,
		logger: log,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Load fills or fails the request after a random latency. A cancelled
// request completes with the context error.
func (s *SimulatedSource) Load(ctx context.Context, req ad.LoadRequest, done func(ad.Handle, error)) {
	latency := s.latency()
	filled := s.roll() < s.opts.FillRate

	go func() {
		timer := time.NewTimer(latency)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			done(nil, ctx.Err())
			return
		case <-timer.C:
		}

		if !filled {
			s.logger.WithField("unitId", req.UnitID).Debug("Simulated no fill")
			done(nil, &ad.SourceError{Code: CodeNoFill, Message: "No fill."})
			return
		}
		done(s.newHandle(req.Format), nil)
	}()
}

// Present plays the presentation script for handle on host
func (s *SimulatedSource) Present(handle ad.Handle, host ad.Host, listener ad.PresentationListener) {
	h, ok := handle.(*simulatedHandle)
	fail := s.roll() < s.opts.PresentFailRate
	paid := ad.PaidValue{Value: s.opts.Revenue, Currency: s.opts.Currency}

	go func() {
		if !ok {
			listener.OnPresentationFailed(&ad.SourceError{Code: CodeInternalError, Message: "Unknown ad."})
			return
		}
		if h.format == ad.FormatNative {
			listener.OnPaidImpression(paid)
			return
		}
		if fail {
			listener.OnPresentationFailed(&ad.SourceError{Code: CodePresentationError, Message: "Ad failed to present."})
			return
		}

		listener.OnWillPresent()
		listener.OnPaidImpression(paid)
		time.Sleep(s.opts.DisplayDuration / 2)
		if h.format == ad.FormatRewarded || h.format == ad.FormatRewardedInterstitial {
			listener.OnRewardEarned()
		}
		time.Sleep(s.opts.DisplayDuration - s.opts.DisplayDuration/2)
		listener.OnDismissed()
	}()
}

func (s *SimulatedSource) newHandle(format ad.Format) *simulatedHandle {
	source := "Simulated Network"
	if s.opts.TestMode {
		source = "Simulated Test Network"
	}
	return &simulatedHandle{id: uuid.New().String(), format: format, source: source}
}

func (s *SimulatedSource) latency() time.Duration {
	spread := s.opts.MaxLatency - s.opts.MinLatency
	if spread <= 0 {
		return s.opts.MinLatency
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.MinLatency + time.Duration(s.rng.Int63n(int64(spread)))
}

func (s *SimulatedSource) roll() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
