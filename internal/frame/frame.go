// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package frame defines captured image frames and the sources that produce them.
package frame

import (
	"context"
	"errors"
	"image"
	"time"
)

var (
	// ErrFrameUnavailable is a transient fault: the source had no frame this
	// cycle and the caller should try again on the next one.
	ErrFrameUnavailable = errors.New("frame unavailable")
	// ErrDisconnected is a fatal fault: the device is gone.
	ErrDisconnected = errors.New("frame source disconnected")
)

// IsFatal reports whether err ends capture. Anything that does not wrap
// ErrDisconnected is considered transient.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDisconnected)
}

// Frame is one captured image. It is immutable once created; callers must not
// modify Image after handing the frame on.
type Frame struct {
	Index      int
	CapturedAt time.Time
	Image      image.Image
}

// Width returns the image width in pixels.
func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// Source yields host-timestamped frames on demand. NextFrame may block for up
// to one frame interval. Implementations return errors wrapping
// ErrFrameUnavailable or ErrDisconnected.
type Source interface {
	NextFrame(ctx context.Context) (image.Image, time.Time, error)
}

// Dimensions is a width/height pair in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
