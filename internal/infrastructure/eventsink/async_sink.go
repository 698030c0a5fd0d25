package eventsink

import (
	"context"
	"sync"
	"time"

	"github.com/personal/ad-lifecycle/internal/domain/event"
	"github.com/personal/ad-lifecycle/pkg/logger"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// Options tunes an AsyncSink
type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = 1024
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 500 * time.Millisecond
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	return o
}

// AsyncSink is an event.Sink that hands events to a background writer.
// Emit never blocks: when the buffer is full the event is dropped and counted.
type AsyncSink struct {
	name    string
	writer  event.Writer
	opts    Options
	records chan event.Record
	logger  *logger.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAsyncSink creates a sink writing batches to writer. name labels its metrics.
func NewAsyncSink(name string, writer event.Writer, opts Options, log *logger.Logger) *AsyncSink {
	opts = opts.withDefaults()
	if log == nil {
		log = logger.Discard()
	}
	return &AsyncSink{
		name:     name,
		writer:   writer,
		opts:     opts,
		records:  make(chan event.Record, opts.BufferSize),
		logger:   log,
		stopChan: make(chan struct{}),
	}
}

// Emit queues the event for writing
func (s *AsyncSink) Emit(name string, attributes map[string]interface{}) {
	rec := event.NewRecord(name, copyAttributes(attributes), time.Now().UTC())
	select {
	case s.records <- rec:
	default:
		monitoring.RecordEventsDropped(s.name, 1)
	}
}

// Start starts the writer goroutine
func (s *AsyncSink) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop writes what is buffered and stops the writer
func (s *AsyncSink) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *AsyncSink) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]event.Record, 0, s.opts.BatchSize)
	for {
		select {
		case <-ctx.Done():
			s.drain(batch)
			return
		case <-s.stopChan:
			s.drain(batch)
			return
		case rec := <-s.records:
			batch = append(batch, rec)
			if len(batch) >= s.opts.BatchSize {
				batch = s.flush(batch)
			}
		case <-ticker.C:
			batch = s.flush(batch)
		}
	}
}

// drain writes everything still buffered
func (s *AsyncSink) drain(batch []event.Record) {
	for {
		select {
		case rec := <-s.records:
			batch = append(batch, rec)
			if len(batch) >= s.opts.BatchSize {
				batch = s.flush(batch)
			}
		default:
			s.flush(batch)
			return
		}
	}
}

func (s *AsyncSink) flush(batch []event.Record) []event.Record {
	if len(batch) == 0 {
		return batch
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := s.writer.Write(ctx, batch)
	monitoring.RecordEventWrite(s.name, time.Since(start), err)
	if err != nil {
		s.logger.WithError(err).WithFields(logger.Fields{
			"sink":  s.name,
			"count": len(batch),
		}).Error("Failed to write events")
		monitoring.RecordEventsDropped(s.name, len(batch))
	}
	return batch[:0]
}

func copyAttributes(attributes map[string]interface{}) map[string]interface{} {
	if attributes == nil {
		return nil
	}
	out := make(map[string]interface{}, len(attributes))
	for k, v := range attributes {
		out[k] = v
	}
	return out
}
