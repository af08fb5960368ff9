// Package delivery relays generated text to the end user's messaging channel.
// Deliveries are fire-and-forget: they never block or fail the request that
// produced the text, and their failures are reported through a supervised
// channel instead.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"bothelp.app/voiceover/common/logger"
	"bothelp.app/voiceover/internal/metrics"
	"bothelp.app/voiceover/internal/queue"
)

const (
	ChannelText  = "text"
	ChannelVoice = "voice"
)

// Messenger sends a text message to a destination.
type Messenger interface {
	SendMessage(ctx context.Context, destination, text string) error
}

// VoiceSender sends encoded audio as a voice message.
type VoiceSender interface {
	SendVoice(ctx context.Context, destination string, audio []byte, caption string) error
}

// Synthesizer turns text into encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// EventPublisher records delivery failures outside the process.
type EventPublisher interface {
	Publish(ctx context.Context, event queue.DeliveryEvent) error
}

type Delivery struct {
	Destination string
	Text        string
	RequestID   int64
	JobID       string
	RunID       string
}

// Failure is one delivery channel that did not complete.
type Failure struct {
	Delivery Delivery
	Channel  string
	Err      error
	At       time.Time
}

type Config struct {
	Timeout          time.Duration // per delivery, detached from the request
	MaxMessageLength int
	BufferSize       int
}

func DefaultConfig() Config {
	return Config{
		Timeout:          30 * time.Second,
		MaxMessageLength: 4096,
		BufferSize:       64,
	}
}

type Option func(*Sink)

// WithVoice also sends every delivery as a synthesized voice message.
func WithVoice(synth Synthesizer, sender VoiceSender) Option {
	return func(s *Sink) {
		s.synth = synth
		s.voice = sender
	}
}

// WithEventIDs sets the generator for failure event IDs.
func WithEventIDs(next func() string) Option {
	return func(s *Sink) {
		s.nextEventID = next
	}
}

type Sink struct {
	messenger   Messenger
	synth       Synthesizer
	voice       VoiceSender
	events      EventPublisher
	cfg         Config
	nextEventID func() string

	mu       sync.Mutex
	stopping bool
	inflight sync.WaitGroup
	failures chan Failure
	stopOnce sync.Once

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewSink(messenger Messenger, events EventPublisher, cfg Config, opts ...Option) *Sink {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = def.MaxMessageLength
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}

	s := &Sink{
		messenger: messenger,
		events:    events,
		cfg:       cfg,
		failures:  make(chan Failure, cfg.BufferSize),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	var seq atomic.Int64
	s.nextEventID = func() string {
		return strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + strconv.FormatInt(seq.Add(1), 36)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver starts sending d in the background and returns immediately.
// The send outlives ctx; only its values (log fields, trace) are kept.
func (s *Sink) Deliver(ctx context.Context, d Delivery) {
	ctx = logger.WithLogFields(context.WithoutCancel(ctx), logger.LogFields{
		Destination: logger.Ptr(d.Destination),
		Component:   "voiceover.delivery.sink",
	})

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		slog.ErrorContext(ctx, "delivery rejected, sink is stopping", "text_length", len(d.Text))
		metrics.Deliveries.WithLabelValues(ChannelText, "rejected").Inc()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	metrics.DeliveriesInFlight.Inc()
	go func() {
		defer s.inflight.Done()
		defer metrics.DeliveriesInFlight.Dec()

		ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
		s.send(ctx, d)
	}()
}

func (s *Sink) send(ctx context.Context, d Delivery) {
	s.attempt(ctx, d, ChannelText, func(ctx context.Context) error {
		return s.messenger.SendMessage(ctx, d.Destination, Truncate(d.Text, s.cfg.MaxMessageLength))
	})

	if s.synth == nil || s.voice == nil {
		return
	}
	s.attempt(ctx, d, ChannelVoice, func(ctx context.Context) error {
		audio, err := s.synth.Synthesize(ctx, d.Text)
		if err != nil {
			return fmt.Errorf("synthesizing voice: %w", err)
		}
		return s.voice.SendVoice(ctx, d.Destination, audio, "")
	})
}

func (s *Sink) attempt(ctx context.Context, d Delivery, channel string, fn func(context.Context) error) {
	start := time.Now()
	err := safeCall(ctx, fn)
	if err != nil {
		metrics.Deliveries.WithLabelValues(channel, "failed").Inc()
		s.fail(ctx, Failure{Delivery: d, Channel: channel, Err: err, At: time.Now()})
		return
	}

	metrics.Deliveries.WithLabelValues(channel, "delivered").Inc()
	slog.InfoContext(ctx, "delivered",
		"channel", channel,
		"duration_ms", time.Since(start).Milliseconds())
}

func safeCall(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery panic: %v", r)
		}
	}()
	return fn(ctx)
}

// fail hands f to the supervisor. When nobody can take it, it is logged here.
func (s *Sink) fail(ctx context.Context, f Failure) {
	select {
	case <-s.stoppedCh:
	default:
		select {
		case s.failures <- f:
			return
		default:
		}
	}
	slog.ErrorContext(ctx, "delivery failed",
		"channel", f.Channel,
		"error", f.Err,
		"supervised", false)
}

// Run supervises delivery failures until Stop is called or ctx is done.
func (s *Sink) Run(ctx context.Context) error {
	defer close(s.stoppedCh)

	slog.InfoContext(ctx, "delivery supervisor started")

	for {
		select {
		case f := <-s.failures:
			s.handle(ctx, f)
		case <-s.stopCh:
			s.drain(ctx)
			slog.InfoContext(ctx, "delivery supervisor stopped")
			return nil
		case <-ctx.Done():
			s.drain(context.WithoutCancel(ctx))
			return ctx.Err()
		}
	}
}

// Stop rejects new deliveries, waits for in-flight ones, then stops Run.
// Run must have been started.
func (s *Sink) Stop() {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	s.inflight.Wait()
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.stoppedCh
}

// Wait blocks until every delivery started so far has finished.
func (s *Sink) Wait() {
	s.inflight.Wait()
}

func (s *Sink) drain(ctx context.Context) {
	for {
		select {
		case f := <-s.failures:
			s.handle(ctx, f)
		default:
			return
		}
	}
}

func (s *Sink) handle(ctx context.Context, f Failure) {
	d := f.Delivery
	fields := logger.LogFields{
		Destination: logger.Ptr(d.Destination),
		Component:   "voiceover.delivery.supervisor",
	}
	if d.RequestID != 0 {
		fields.RequestID = logger.Ptr(d.RequestID)
	}
	if d.JobID != "" {
		fields.JobID = logger.Ptr(d.JobID)
	}
	if d.RunID != "" {
		fields.RunID = logger.Ptr(d.RunID)
	}
	ctx = logger.WithLogFields(ctx, fields)

	slog.ErrorContext(ctx, "delivery failed",
		"channel", f.Channel,
		"error", f.Err,
		"supervised", true)

	if s.events == nil {
		return
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.events.Publish(pctx, queue.DeliveryEvent{
		ID:          s.nextEventID(),
		RequestID:   d.RequestID,
		Channel:     f.Channel,
		Destination: d.Destination,
		Outcome:     "failed",
		Error:       f.Err.Error(),
		JobID:       d.JobID,
		RunID:       d.RunID,
		OccurredAt:  f.At,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to record delivery failure", "error", err)
	}
}
