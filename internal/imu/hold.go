// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// HoldBuffer keeps the most recently received IMU sample.
//
// Update overwrites the held value unconditionally and Read returns it without
// blocking. No history is kept: if samples arrive faster than they are read the
// intermediate ones are lost, and if they arrive slower the same sample is
// returned to several readers. Before the first Update, after Disconnect, and
// once the held sample is older than the stale limit, Read returns Zero().
type HoldBuffer struct {
	latest     atomic.Pointer[Sample]
	staleAfter time.Duration
	logger     *slog.Logger

	updates atomic.Uint64
	warned  atomic.Bool // disconnect/stale warning issued for the current episode
}

// NewHoldBuffer returns an empty buffer. staleAfter <= 0 disables the stale check.
func NewHoldBuffer(staleAfter time.Duration, logger *slog.Logger) *HoldBuffer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HoldBuffer{staleAfter: staleAfter, logger: logger}
}

// Update publishes s as the held sample. A zero ReceivedAt is stamped with the
// current time.
func (b *HoldBuffer) Update(s Sample) {
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = time.Now()
	}
	b.latest.Store(&s)
	b.updates.Add(1)
	b.warned.Store(false)
}

// Disconnect drops the held sample so readers get the sentinel from now on.
// The warning is logged once per episode; a later Update starts a new one.
func (b *HoldBuffer) Disconnect(reason error) {
	b.latest.Store(nil)
	if b.warned.CompareAndSwap(false, true) {
		b.logger.Warn("imu disconnected, using zero samples", "err", reason)
	}
}

// Read returns the held sample as of now.
func (b *HoldBuffer) Read() Sample {
	return b.ReadAt(time.Now())
}

// ReadAt returns the held sample, or Zero() if none is held or it is older
// than the stale limit at now.
func (b *HoldBuffer) ReadAt(now time.Time) Sample {
	p := b.latest.Load()
	if p == nil {
		return Zero()
	}
	if b.staleAfter > 0 && now.Sub(p.ReceivedAt) > b.staleAfter {
		if b.warned.CompareAndSwap(false, true) {
			b.logger.Warn("imu samples stopped arriving, using zero samples",
				"last", p.ReceivedAt, "stale_after", b.staleAfter)
		}
		return Zero()
	}
	return *p
}

// Held reports whether a sample has been published and not dropped.
func (b *HoldBuffer) Held() bool {
	return b.latest.Load() != nil
}

// Updates returns the number of samples published so far.
func (b *HoldBuffer) Updates() uint64 {
	return b.updates.Load()
}
