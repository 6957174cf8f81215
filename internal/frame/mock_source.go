// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package frame

import (
	"context"
	"fmt"
	"image"
	"time"
)

type mockSource struct {
	dims  Dimensions
	pace  *pacer
	count int
}

// NewMockSource creates a synthetic grayscale source: a bar sweeping across a
// gradient at the requested frame rate.
func NewMockSource(dims Dimensions, fps int) Source {
	return &mockSource{dims: dims, pace: newPacer(fps)}
}

func (m *mockSource) NextFrame(ctx context.Context) (image.Image, time.Time, error) {
	if err := m.pace.wait(ctx); err != nil {
		return nil, time.Time{}, fmt.Errorf("mock source: %w: %v", ErrFrameUnavailable, err)
	}
	w, h := m.dims.Width, m.dims.Height
	img := image.NewGray(image.Rect(0, 0, w, h))
	bar := m.count % w
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for x := range row {
			if x >= bar && x < bar+8 {
				row[x] = 255
			} else {
				row[x] = uint8((x + y) * 255 / (w + h))
			}
		}
	}
	m.count++
	return img, time.Now(), nil
}
