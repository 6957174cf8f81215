// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package frame

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
	"time"
)

func TestIsFatal(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{ErrDisconnected, true},
		{fmt.Errorf("usb: %w", ErrDisconnected), true},
		{ErrFrameUnavailable, false},
		{errors.New("checksum"), false},
	}
	for _, c := range cases {
		if got := IsFatal(c.err); got != c.want {
			t.Errorf("IsFatal(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestMockSourceDimensionsAndTimestamps(t *testing.T) {
	src := NewMockSource(Dimensions{Width: 64, Height: 48}, 200)
	ctx := context.Background()
	var last time.Time
	for i := 0; i < 3; i++ {
		img, at, err := src.NextFrame(ctx)
		if err != nil {
			t.Fatalf("NextFrame: %v", err)
		}
		if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
			t.Fatalf("bounds = %v", img.Bounds())
		}
		if !at.After(last) {
			t.Fatalf("timestamps not increasing: %v then %v", last, at)
		}
		last = at
	}
}

func TestMockSourceCancelled(t *testing.T) {
	src := NewMockSource(Dimensions{Width: 8, Height: 8}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	if _, _, err := src.NextFrame(ctx); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	cancel()
	_, _, err := src.NextFrame(ctx)
	if !errors.Is(err, ErrFrameUnavailable) {
		t.Fatalf("err = %v, want ErrFrameUnavailable", err)
	}
}

func TestNormalize(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 32, 16))
	same := Normalize(src, Dimensions{Width: 32, Height: 16})
	if same != image.Image(src) {
		t.Fatal("matching image should be returned unchanged")
	}

	scaled := Normalize(src, Dimensions{Width: 64, Height: 48})
	if scaled.Bounds() != image.Rect(0, 0, 64, 48) {
		t.Fatalf("scaled bounds = %v", scaled.Bounds())
	}
	if _, ok := scaled.(*image.Gray); !ok {
		t.Fatalf("scaled type = %T, want *image.Gray", scaled)
	}

	offset := image.NewRGBA(image.Rect(10, 10, 42, 26))
	moved := Normalize(offset, Dimensions{Width: 32, Height: 16})
	if moved.Bounds() != image.Rect(0, 0, 32, 16) {
		t.Fatalf("offset bounds = %v", moved.Bounds())
	}
}

type countingSource struct{ active, max int }

func (c *countingSource) NextFrame(context.Context) (image.Image, time.Time, error) {
	c.active++
	if c.active > c.max {
		c.max = c.active
	}
	time.Sleep(time.Millisecond)
	c.active--
	return image.NewGray(image.Rect(0, 0, 1, 1)), time.Now(), nil
}

func TestSerializedNeverOverlaps(t *testing.T) {
	inner := &countingSource{}
	src := Serialized(inner)
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				src.NextFrame(context.Background())
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	if inner.max != 1 {
		t.Fatalf("max concurrent calls = %d, want 1", inner.max)
	}
	if Serialized(src) != src {
		t.Fatal("wrapping twice should be a no-op")
	}
}
