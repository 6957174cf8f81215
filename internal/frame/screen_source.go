// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package frame

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/vova616/screenshot"
)

type screenSource struct {
	rect image.Rectangle
	pace *pacer
}

// NewScreenSource captures a dims-sized region of the screen with its top-left
// corner at offset. It is used when the scanner's video output is mirrored on a
// monitor rather than through a capture card.
func NewScreenSource(offset image.Point, dims Dimensions, fps int) (Source, error) {
	screen, err := screenshot.ScreenRect()
	if err != nil {
		return nil, fmt.Errorf("screen source: %w: %v", ErrDisconnected, err)
	}
	rect := image.Rectangle{Min: offset, Max: offset.Add(image.Pt(dims.Width, dims.Height))}
	if !rect.In(screen) {
		return nil, fmt.Errorf("screen source: region %v outside screen %v", rect, screen)
	}
	return &screenSource{rect: rect, pace: newPacer(fps)}, nil
}

func (s *screenSource) NextFrame(ctx context.Context) (image.Image, time.Time, error) {
	if err := s.pace.wait(ctx); err != nil {
		return nil, time.Time{}, fmt.Errorf("screen source: %w: %v", ErrFrameUnavailable, err)
	}
	img, err := screenshot.CaptureRect(s.rect)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("screen source: %w: %v", ErrFrameUnavailable, err)
	}
	return img, time.Now(), nil
}
