// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package frame

import (
	"context"
	"image"
	"sync"
	"time"
)

type serialized struct {
	mu  sync.Mutex
	src Source
}

// Serialized wraps src so NextFrame calls from the capture loop and from
// single-frame saves never overlap on the device.
func Serialized(src Source) Source {
	if s, ok := src.(*serialized); ok {
		return s
	}
	return &serialized{src: src}
}

func (s *serialized) NextFrame(ctx context.Context) (image.Image, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.NextFrame(ctx)
}
