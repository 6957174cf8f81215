// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package frame

import (
	"context"
	"time"
)

// pacer spaces calls at a fixed interval, like a device delivering frames at
// its own rate.
type pacer struct {
	interval time.Duration
	next     time.Time
}

func newPacer(fps int) *pacer {
	if fps <= 0 {
		fps = 30
	}
	return &pacer{interval: time.Second / time.Duration(fps)}
}

// wait blocks until the next slot or until ctx is done.
func (p *pacer) wait(ctx context.Context) error {
	now := time.Now()
	if p.next.IsZero() || now.After(p.next) {
		p.next = now.Add(p.interval)
		return ctx.Err()
	}
	t := time.NewTimer(p.next.Sub(now))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		p.next = p.next.Add(p.interval)
		return nil
	}
}
