// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/relabs-tech/frame_recorder/internal/frame"
	"github.com/relabs-tech/frame_recorder/internal/record"
)

var (
	ErrAlreadyRecording = errors.New("a recording is already in progress")
	ErrNotRecording     = errors.New("no recording in progress")
	ErrUnknownSession   = errors.New("no failed flush for session")
	ErrClosed           = errors.New("controller is shut down")
)

// State is the controller lifecycle state.
type State int

const (
	Idle State = iota
	Recording
	Flushing
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Flushing:
		return "flushing"
	default:
		return "idle"
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Persister writes a frozen sequence to durable storage.
type Persister interface {
	Persist(ctx context.Context, f *record.Frozen) (*record.Report, error)
}

// EventKind names a controller notification.
type EventKind string

const (
	EventStarted      EventKind = "started"
	EventStopped      EventKind = "stopped"
	EventCaptureFault EventKind = "capture_fault"
	EventFlushStarted EventKind = "flush_started"
	EventFlushDone    EventKind = "flush_done"
	EventFlushFailed  EventKind = "flush_failed"
	EventFrameSaved   EventKind = "frame_saved"
)

// Event is published to subscribers on every lifecycle change.
type Event struct {
	Kind       EventKind `json:"kind"`
	At         time.Time `json:"at"`
	SessionID  string    `json:"session_id"`
	RecordKind string    `json:"record_kind"`
	Records    int       `json:"records"`
	StartedAt  time.Time `json:"started_at"`
	StoppedAt  time.Time `json:"stopped_at,omitempty"`
	Dir        string    `json:"dir,omitempty"`
	Missing    int       `json:"missing,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// ControllerOptions configure a Controller.
type ControllerOptions struct {
	Session              Options
	MaxConcurrentFlushes int // flushes writing at the same time; others queue
}

// Status is a point-in-time view of the controller.
type Status struct {
	State         State    `json:"state"`
	SessionID     string   `json:"session_id,omitempty"`
	Stats         *Stats   `json:"stats,omitempty"`
	FlushesActive int      `json:"flushes_active"`
	FailedFlushes []string `json:"failed_flushes,omitempty"`
	Depth         float64  `json:"depth"`
}

// Controller owns the recording lifecycle: Idle -> Recording on Start,
// Recording -> Flushing on Stop, and back to Idle as soon as the frozen
// records are handed to a flush. At most one session records at a time;
// any number of flushes may be in flight.
type Controller struct {
	src       frame.Source
	imu       IMUReader
	depth     DepthReader
	persister Persister
	opts      ControllerOptions
	logger    *slog.Logger

	flushSem    *semaphore.Weighted
	flushCtx    context.Context
	flushCancel context.CancelFunc
	flushes     sync.WaitGroup

	mu        sync.Mutex
	active    *Session
	stopLoop  context.CancelFunc
	inFlight  int
	failed    map[string]*record.Frozen
	frameSeq  int
	listeners map[int]func(Event)
	nextSub   int
	closed    bool
}

// NewController returns an idle controller. src is serialized so single-frame
// saves and the capture loop never read it concurrently.
func NewController(src frame.Source, hold IMUReader, depth DepthReader, p Persister, opts ControllerOptions, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxConcurrentFlushes <= 0 {
		opts.MaxConcurrentFlushes = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		src:         frame.Serialized(src),
		imu:         hold,
		depth:       depth,
		persister:   p,
		opts:        opts,
		logger:      logger,
		flushSem:    semaphore.NewWeighted(int64(opts.MaxConcurrentFlushes)),
		flushCtx:    ctx,
		flushCancel: cancel,
		failed:      make(map[string]*record.Frozen),
		listeners:   make(map[int]func(Event)),
	}
}

// Subscribe registers fn for every Event. fn runs on the goroutine that
// caused the event and must not block. The returned func unsubscribes.
func (c *Controller) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Controller) emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	c.mu.Lock()
	fns := make([]func(Event), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}

// Start begins a new recording and returns its session id.
func (c *Controller) Start() (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	if c.active != nil {
		c.mu.Unlock()
		return "", ErrAlreadyRecording
	}
	s := New(c.src, c.imu, c.depth, c.opts.Session, c.logger)
	ctx, cancel := context.WithCancel(context.Background())
	c.active = s
	c.stopLoop = cancel
	c.mu.Unlock()

	c.logger.Info("recording started", "session", s.ID)
	c.emit(Event{Kind: EventStarted, SessionID: s.ID, RecordKind: record.KindRecording.String(), StartedAt: s.StartedAt})
	go c.captureLoop(ctx, s)
	return s.ID, nil
}

// Stop freezes the active recording, hands it to a flush and returns the
// controller to Idle without waiting for the flush.
func (c *Controller) Stop() (*record.Frozen, error) {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s == nil {
		return nil, ErrNotRecording
	}
	f, err := c.end(s)
	if err != nil {
		return nil, ErrNotRecording
	}
	return f, nil
}

// end detaches s if it is still the active session, freezes it and submits
// the flush.
func (c *Controller) end(s *Session) (*record.Frozen, error) {
	c.mu.Lock()
	if c.active != s {
		c.mu.Unlock()
		return nil, ErrFrozen
	}
	c.active = nil
	stop := c.stopLoop
	c.stopLoop = nil
	c.reserveLocked()
	c.mu.Unlock()

	stop()
	f, err := s.Freeze()
	if err != nil {
		c.release()
		return nil, err
	}
	log := c.logger.With("session", f.SessionID, "records", f.Len())
	if f.Cause != nil {
		log.Warn("recording ended by capture fault", "err", f.Cause)
	} else {
		log.Info("recording stopped")
	}
	c.emit(eventFor(EventStopped, f))
	c.launch(f)
	return f, nil
}

func (c *Controller) captureLoop(ctx context.Context, s *Session) {
	for ctx.Err() == nil {
		err := s.Tick(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrFrozen) || ctx.Err() != nil:
			return
		case IsFatal(err):
			c.logger.Error("capture fault, ending recording", "session", s.ID, "records", s.Len(), "err", err)
			c.emit(Event{Kind: EventCaptureFault, SessionID: s.ID, RecordKind: record.KindRecording.String(),
				Records: s.Len(), StartedAt: s.StartedAt, Error: err.Error()})
			c.end(s)
			return
		default:
			c.logger.Debug("transient capture fault", "session", s.ID, "err", err)
			// Back off briefly so a source failing fast does not spin.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Millisecond):
			}
		}
	}
}

// SaveFrame captures one frame with the current IMU sample and depth and
// submits it as a single-record flush. It does not touch the active recording.
// The returned id identifies the flush in events.
func (c *Controller) SaveFrame(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	c.mu.Unlock()

	img, capturedAt, err := c.src.NextFrame(ctx)
	if err != nil {
		return "", fmt.Errorf("save frame: %w", err)
	}
	if img == nil {
		return "", fmt.Errorf("save frame: %w", frame.ErrFrameUnavailable)
	}
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	rec := record.Record{
		Frame: frame.Frame{CapturedAt: capturedAt, Image: img},
		IMU:   c.imu.Read(),
		Depth: c.depth.Get(),
	}

	// Shutdown may have run while NextFrame was blocked.
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	rec.Frame.Index = c.frameSeq
	c.frameSeq++
	c.reserveLocked()
	c.mu.Unlock()

	f := &record.Frozen{
		SessionID:  uuid.NewString(),
		Kind:       record.KindSingleFrame,
		StartedAt:  capturedAt,
		StoppedAt:  capturedAt,
		Dimensions: c.opts.Session.Dimensions,
		Records:    []record.Record{rec},
	}
	c.launch(f)
	return f.SessionID, nil
}

// Retry resubmits a flush that previously failed.
func (c *Controller) Retry(sessionID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	f, ok := c.failed[sessionID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w %s", ErrUnknownSession, sessionID)
	}
	delete(c.failed, sessionID)
	c.reserveLocked()
	c.mu.Unlock()

	c.logger.Info("retrying flush", "session", sessionID, "records", f.Len())
	c.launch(f)
	return nil
}

// reserveLocked counts a flush before it is launched. It runs under c.mu in
// the same critical section that checks closed or detaches the session, so
// Shutdown's Wait always covers it.
func (c *Controller) reserveLocked() {
	c.inFlight++
	c.flushes.Add(1)
}

// release undoes a reservation that was never launched.
func (c *Controller) release() {
	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()
	c.flushes.Done()
}

// launch starts a flush reserved with reserveLocked.
func (c *Controller) launch(f *record.Frozen) {
	c.emit(eventFor(EventFlushStarted, f))

	go func() {
		defer c.flushes.Done()
		rep, err := c.flush(f)

		c.mu.Lock()
		c.inFlight--
		if err != nil {
			c.failed[f.SessionID] = f
		}
		c.mu.Unlock()

		if err != nil {
			c.logger.Error("flush failed, records kept for retry", "session", f.SessionID, "records", f.Len(), "err", err)
			e := eventFor(EventFlushFailed, f)
			e.Error = err.Error()
			c.emit(e)
			return
		}
		kind := EventFlushDone
		if f.Kind == record.KindSingleFrame {
			kind = EventFrameSaved
		}
		e := eventFor(kind, f)
		e.Dir = rep.Dir
		e.Missing = len(rep.Missing)
		c.emit(e)
	}()
}

func (c *Controller) flush(f *record.Frozen) (*record.Report, error) {
	if err := c.flushSem.Acquire(c.flushCtx, 1); err != nil {
		return nil, err
	}
	defer c.flushSem.Release(1)
	return c.persister.Persist(c.flushCtx, f)
}

func eventFor(kind EventKind, f *record.Frozen) Event {
	e := Event{
		Kind:       kind,
		SessionID:  f.SessionID,
		RecordKind: f.Kind.String(),
		Records:    f.Len(),
		StartedAt:  f.StartedAt,
		StoppedAt:  f.StoppedAt,
	}
	if f.Cause != nil {
		e.Error = f.Cause.Error()
	}
	return e
}

// State returns Recording while a session is active, Flushing while any flush
// is in flight, and Idle otherwise.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	switch {
	case c.active != nil:
		return Recording
	case c.inFlight > 0:
		return Flushing
	default:
		return Idle
	}
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{State: c.stateLocked(), FlushesActive: c.inFlight, Depth: c.depth.Get()}
	s := c.active
	for id := range c.failed {
		st.FailedFlushes = append(st.FailedFlushes, id)
	}
	c.mu.Unlock()

	sort.Strings(st.FailedFlushes)
	if s != nil {
		stats := s.Stats()
		st.SessionID = s.ID
		st.Stats = &stats
	}
	return st
}

// Wait blocks until every submitted flush has finished.
func (c *Controller) Wait() {
	c.flushes.Wait()
}

// Shutdown stops an active recording, which is flushed, and waits for all
// in-flight flushes. If ctx expires first the remaining flushes are cancelled
// and ctx's error is returned.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	s := c.active
	c.mu.Unlock()
	if s != nil {
		c.end(s)
	}

	done := make(chan struct{})
	go func() {
		c.flushes.Wait()
		close(done)
	}()
	select {
	case <-done:
		c.flushCancel()
		return nil
	case <-ctx.Done():
		c.flushCancel()
		<-done
		return ctx.Err()
	}
}
