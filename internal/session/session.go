// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session pairs captured frames with IMU samples and manages the
// recording lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/frame_recorder/internal/frame"
	"github.com/relabs-tech/frame_recorder/internal/imu"
	"github.com/relabs-tech/frame_recorder/internal/record"
)

var (
	// ErrFrozen is returned by Tick and Freeze once the session has been frozen.
	ErrFrozen = errors.New("session is frozen")
	// ErrTooManyFaults ends capture after too many consecutive transient faults.
	ErrTooManyFaults = errors.New("too many consecutive transient capture faults")
)

// IsFatal reports whether a Tick error ends the recording.
func IsFatal(err error) bool {
	return frame.IsFatal(err) || errors.Is(err, ErrTooManyFaults)
}

// IMUReader is the read side of the sample hold buffer.
type IMUReader interface {
	Read() imu.Sample
}

// Options tune a single session.
type Options struct {
	Dimensions         frame.Dimensions // configured capture dimensions
	MaxTransientFaults int              // consecutive transient faults before giving up; 0 = unlimited
	SoftRecordLimit    int              // warn once past this many records; 0 = never
}

// Stats are capture counters for one session.
type Stats struct {
	Ticks           uint64  `json:"ticks"`
	Records         int     `json:"records"`
	TransientFaults uint64  `json:"transient_faults"`
	FPS             float64 `json:"fps"`
}

// Session is one recording: an append-only sequence of records built by Tick
// until Freeze hands it off.
type Session struct {
	ID        string
	StartedAt time.Time

	src    frame.Source
	imu    IMUReader
	depth  DepthReader
	opts   Options
	logger *slog.Logger

	mu          sync.Mutex
	records     []record.Record
	frozen      bool
	cause       error
	ticks       uint64
	faults      uint64
	consecutive int
	limitWarned bool
}

// New starts an empty session.
func New(src frame.Source, hold IMUReader, depth DepthReader, opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		ID:        id,
		StartedAt: time.Now(),
		src:       src,
		imu:       hold,
		depth:     depth,
		opts:      opts,
		logger:    logger.With("session", id),
	}
}

// Tick runs one capture cycle: pull a frame, snapshot the held IMU sample and
// the depth, and append one record.
//
// A transient source fault is returned unchanged and nothing is appended, so
// the next successful tick reuses the same index. A fatal fault is returned
// and also recorded as the session's cause. Tick returns ErrFrozen if the
// session was frozen before or during the cycle; a frame pulled by a tick
// that loses that race is discarded.
func (s *Session) Tick(ctx context.Context) error {
	s.mu.Lock()
	if s.frozen {
		s.mu.Unlock()
		return ErrFrozen
	}
	s.ticks++
	s.mu.Unlock()

	img, capturedAt, err := s.src.NextFrame(ctx)
	if err == nil && img == nil {
		err = fmt.Errorf("%w: source returned no image", frame.ErrFrameUnavailable)
	}
	if err != nil {
		return s.fault(err)
	}
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	sample := s.imu.Read()
	depth := s.depth.Get()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return ErrFrozen
	}
	s.consecutive = 0
	s.records = append(s.records, record.Record{
		Frame: frame.Frame{
			Index:      len(s.records),
			CapturedAt: capturedAt,
			Image:      img,
		},
		IMU:   sample,
		Depth: depth,
	})
	if n := len(s.records); s.opts.SoftRecordLimit > 0 && n > s.opts.SoftRecordLimit && !s.limitWarned {
		s.limitWarned = true
		s.logger.Warn("recording past soft record limit, memory keeps growing",
			"records", n, "limit", s.opts.SoftRecordLimit)
	}
	return nil
}

func (s *Session) fault(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return ErrFrozen
	}
	if frame.IsFatal(err) {
		s.cause = err
		return err
	}
	s.faults++
	s.consecutive++
	if s.opts.MaxTransientFaults > 0 && s.consecutive >= s.opts.MaxTransientFaults {
		s.cause = fmt.Errorf("%w (%d): %v", ErrTooManyFaults, s.consecutive, err)
		return s.cause
	}
	return err
}

// Freeze ends the session and transfers ownership of its records. No further
// records are appended after Freeze returns.
func (s *Session) Freeze() (*record.Frozen, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return nil, ErrFrozen
	}
	s.frozen = true
	f := &record.Frozen{
		SessionID:  s.ID,
		Kind:       record.KindRecording,
		StartedAt:  s.StartedAt,
		StoppedAt:  time.Now(),
		Dimensions: s.opts.Dimensions,
		Records:    s.records,
		Cause:      s.cause,
	}
	s.records = nil
	return f, nil
}

// Len returns the number of records appended so far.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Stats returns the capture counters. FPS is measured from the first to the
// last captured frame.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Ticks: s.ticks, Records: len(s.records), TransientFaults: s.faults}
	if n := len(s.records); n > 1 {
		span := s.records[n-1].Frame.CapturedAt.Sub(s.records[0].Frame.CapturedAt)
		if span > 0 {
			st.FPS = float64(n-1) / span.Seconds()
		}
	}
	return st
}
