// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/relabs-tech/frame_recorder/internal/frame"
	"github.com/relabs-tech/frame_recorder/internal/imu"
	"github.com/relabs-tech/frame_recorder/internal/record"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var testDims = frame.Dimensions{Width: 32, Height: 24}

func newTestWriter(t *testing.T, format string) (*Writer, string) {
	t.Helper()
	enc, err := NewEncoder(format)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	root := t.TempDir()
	w := NewWriter(root, enc, 2, discardLogger)
	if err := w.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return w, root
}

func frozenWith(n int, sample imu.Sample) *record.Frozen {
	t0 := time.UnixMilli(1760875200000)
	f := &record.Frozen{
		SessionID:  "0123456789abcdef",
		StartedAt:  t0,
		StoppedAt:  t0.Add(time.Second),
		Dimensions: testDims,
	}
	for i := 0; i < n; i++ {
		f.Records = append(f.Records, record.Record{
			Frame: frame.Frame{
				Index:      i,
				CapturedAt: t0.Add(time.Duration(i*10) * time.Millisecond),
				Image:      image.NewGray(image.Rect(0, 0, testDims.Width, testDims.Height)),
			},
			IMU:   sample,
			Depth: 150,
		})
	}
	return f
}

func TestPersistThreeFrameRecording(t *testing.T) {
	w, _ := newTestWriter(t, "png")
	sample := imu.Sample{Acceleration: imu.Vec3{0, 0, 1}, Orientation: imu.Quaternion{1, 0, 0, 0}}
	f := frozenWith(3, sample)

	rep, err := w.Persist(context.Background(), f)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if rep.Records != 3 || len(rep.Missing) != 0 {
		t.Fatalf("report = %+v", rep)
	}

	lines, err := ReadSidecar(filepath.Join(rep.Dir, SidecarName))
	if err != nil {
		t.Fatalf("ReadSidecar: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for i, l := range lines {
		idx, _, err := ParseFrameName(l.FrameName)
		if err != nil || idx != i {
			t.Errorf("line %d name %q: idx=%d err=%v", i, l.FrameName, idx, err)
		}
		if l.Acceleration != sample.Acceleration || l.Quaternion != sample.Orientation {
			t.Errorf("line %d imu = %v %v", i, l.Acceleration, l.Quaternion)
		}
		if l.Dimensions != testDims {
			t.Errorf("line %d dims = %+v", i, l.Dimensions)
		}
		if _, err := os.Stat(filepath.Join(rep.Dir, l.FrameName+".png")); err != nil {
			t.Errorf("line %d: %v", i, err)
		}
	}

	v, err := Verify(rep.Dir)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !v.OK() {
		t.Fatalf("Verify issues: %v", v.Issues)
	}
	if v.Duration != 20*time.Millisecond {
		t.Fatalf("duration = %v, want 20ms", v.Duration)
	}
	if math.Abs(v.FPS-100) > 1e-9 {
		t.Fatalf("fps = %v, want 100 (3 frames 10ms apart)", v.FPS)
	}
}

func TestPersistResizesToConfiguredDimensions(t *testing.T) {
	w, _ := newTestWriter(t, "bmp")
	f := frozenWith(2, imu.Zero())
	f.Records[1].Frame.Image = image.NewRGBA(image.Rect(0, 0, 64, 64))

	rep, err := w.Persist(context.Background(), f)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	v, err := Verify(rep.Dir)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !v.OK() {
		t.Fatalf("Verify issues: %v", v.Issues)
	}
}

func TestPersistMarksMissingImage(t *testing.T) {
	w, _ := newTestWriter(t, "tiff")
	f := frozenWith(3, imu.Zero())
	f.Records[1].Frame.Image = nil

	rep, err := w.Persist(context.Background(), f)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if len(rep.Missing) != 1 || rep.Missing[0] != 1 {
		t.Fatalf("Missing = %v, want [1]", rep.Missing)
	}
	lines, err := ReadSidecar(filepath.Join(rep.Dir, SidecarName))
	if err != nil {
		t.Fatalf("ReadSidecar: %v", err)
	}
	if len(lines) != 3 || !lines[1].Missing || lines[0].Missing || lines[2].Missing {
		t.Fatalf("lines = %+v", lines)
	}
	v, err := Verify(rep.Dir)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !v.OK() || v.Missing != 1 || v.Images != 2 {
		t.Fatalf("verification = %+v", v)
	}
}

func TestPersistSidecarFailureIsFatal(t *testing.T) {
	root := t.TempDir()
	// A regular file where the Videos directory should be.
	if err := os.WriteFile(filepath.Join(root, VideosDir), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	enc, _ := NewEncoder("png")
	w := NewWriter(root, enc, 1, discardLogger)

	f := frozenWith(2, imu.Zero())
	_, err := w.Persist(context.Background(), f)
	if !errors.Is(err, ErrSidecar) {
		t.Fatalf("err = %v, want ErrSidecar", err)
	}
	if f.Len() != 2 {
		t.Fatal("frozen sequence must be left intact")
	}
}

func TestPersistSingleFrameHasNoSidecar(t *testing.T) {
	w, root := newTestWriter(t, "png")
	f := frozenWith(1, imu.Zero())
	f.Kind = record.KindSingleFrame

	rep, err := w.Persist(context.Background(), f)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if rep.Sidecar != "" {
		t.Fatalf("single frame produced sidecar %q", rep.Sidecar)
	}
	entries, err := os.ReadDir(filepath.Join(root, SingleFramesDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d files, want 1", len(entries))
	}
	videos, _ := os.ReadDir(filepath.Join(root, VideosDir))
	if len(videos) != 0 {
		t.Fatalf("Videos dir has %d entries, want 0", len(videos))
	}
}

func TestPersistCancelled(t *testing.T) {
	w, _ := newTestWriter(t, "png")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.Persist(ctx, frozenWith(4, imu.Zero())); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
