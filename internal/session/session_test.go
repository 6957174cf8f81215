// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/frame_recorder/internal/frame"
	"github.com/relabs-tech/frame_recorder/internal/imu"
	"github.com/relabs-tech/frame_recorder/internal/store"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var testDims = frame.Dimensions{Width: 16, Height: 12}

// scriptedSource returns frames with strictly increasing timestamps. fail,
// when set, is consulted before every pull with the 0-based call number.
type scriptedSource struct {
	mu    sync.Mutex
	calls int
	t0    time.Time
	delay time.Duration
	fail  func(call int) error
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{t0: time.UnixMilli(1760875200000)}
}

func (s *scriptedSource) NextFrame(ctx context.Context) (image.Image, time.Time, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, time.Time{}, fmt.Errorf("%w: %v", frame.ErrFrameUnavailable, ctx.Err())
		case <-time.After(s.delay):
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	call := s.calls
	s.calls++
	if s.fail != nil {
		if err := s.fail(call); err != nil {
			return nil, time.Time{}, err
		}
	}
	at := s.t0.Add(time.Duration(call) * 10 * time.Millisecond)
	return image.NewGray(image.Rect(0, 0, testDims.Width, testDims.Height)), at, nil
}

func newTestSession(src frame.Source, hold IMUReader, opts Options) *Session {
	if opts.Dimensions == (frame.Dimensions{}) {
		opts.Dimensions = testDims
	}
	return New(src, hold, NewDepth(150), opts, discardLogger)
}

func tickN(t *testing.T, s *Session, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := s.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
}

func TestTickIndicesAreGapless(t *testing.T) {
	s := newTestSession(newScriptedSource(), imu.NewHoldBuffer(0, discardLogger), Options{})
	tickN(t, s, 25)

	f, err := s.Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if f.Len() != 25 {
		t.Fatalf("records = %d, want 25", f.Len())
	}
	for i, r := range f.Records {
		if r.Frame.Index != i {
			t.Fatalf("record %d has index %d", i, r.Frame.Index)
		}
		if i > 0 && !r.Frame.CapturedAt.After(f.Records[i-1].Frame.CapturedAt) {
			t.Fatalf("record %d timestamp not increasing", i)
		}
	}
	if f.Cause != nil {
		t.Fatalf("Cause = %v", f.Cause)
	}
}

func TestTickWithoutIMUUsesSentinel(t *testing.T) {
	s := newTestSession(newScriptedSource(), imu.NewHoldBuffer(0, discardLogger), Options{})
	tickN(t, s, 5)
	f, _ := s.Freeze()
	for i, r := range f.Records {
		if r.IMU != imu.Zero() {
			t.Fatalf("record %d imu = %+v, want sentinel", i, r.IMU)
		}
	}
}

func TestTickLastValueHold(t *testing.T) {
	hold := imu.NewHoldBuffer(0, discardLogger)
	s := newTestSession(newScriptedSource(), hold, Options{})

	a := imu.Sample{ReceivedAt: time.Now(), Acceleration: imu.Vec3{0, 0, 1}, Orientation: imu.Identity}
	b := imu.Sample{ReceivedAt: time.Now(), Acceleration: imu.Vec3{0, 1, 0}, Orientation: imu.Quaternion{0, 0, 0, 1}}

	hold.Update(a)
	tickN(t, s, 2)
	hold.Update(b)
	tickN(t, s, 1)

	f, _ := s.Freeze()
	if f.Records[0].IMU != a || f.Records[1].IMU != a {
		t.Fatalf("records 0,1 should both hold %+v", a)
	}
	if f.Records[2].IMU != b {
		t.Fatalf("record 2 = %+v, want %+v", f.Records[2].IMU, b)
	}
}

func TestTickCarriesDepthPerRecord(t *testing.T) {
	depth := NewDepth(150)
	s := New(newScriptedSource(), imu.NewHoldBuffer(0, discardLogger), depth, Options{Dimensions: testDims}, discardLogger)
	tickN(t, s, 1)
	if err := depth.Set(90); err != nil {
		t.Fatal(err)
	}
	tickN(t, s, 1)
	f, _ := s.Freeze()
	if f.Records[0].Depth != 150 || f.Records[1].Depth != 90 {
		t.Fatalf("depths = %v, %v", f.Records[0].Depth, f.Records[1].Depth)
	}
}

func TestTickTransientFaultKeepsIndex(t *testing.T) {
	src := newScriptedSource()
	src.fail = func(call int) error {
		if call == 1 || call == 2 {
			return frame.ErrFrameUnavailable
		}
		return nil
	}
	s := newTestSession(src, imu.NewHoldBuffer(0, discardLogger), Options{})

	var errs int
	for i := 0; i < 5; i++ {
		if err := s.Tick(context.Background()); err != nil {
			if IsFatal(err) {
				t.Fatalf("transient fault reported as fatal: %v", err)
			}
			errs++
		}
	}
	if errs != 2 {
		t.Fatalf("transient errors = %d, want 2", errs)
	}
	st := s.Stats()
	if st.Ticks != 5 || st.TransientFaults != 2 || st.Records != 3 {
		t.Fatalf("stats = %+v", st)
	}
	f, _ := s.Freeze()
	for i, r := range f.Records {
		if r.Frame.Index != i {
			t.Fatalf("record %d has index %d", i, r.Frame.Index)
		}
	}
}

func TestTickEscalatesRepeatedTransientFaults(t *testing.T) {
	src := newScriptedSource()
	src.fail = func(call int) error {
		if call >= 2 {
			return errors.New("read timeout")
		}
		return nil
	}
	s := newTestSession(src, imu.NewHoldBuffer(0, discardLogger), Options{MaxTransientFaults: 3})
	tickN(t, s, 2)

	var err error
	for i := 0; i < 3; i++ {
		err = s.Tick(context.Background())
	}
	if !errors.Is(err, ErrTooManyFaults) || !IsFatal(err) {
		t.Fatalf("err = %v, want ErrTooManyFaults", err)
	}
	f, _ := s.Freeze()
	if f.Len() != 2 || !errors.Is(f.Cause, ErrTooManyFaults) {
		t.Fatalf("frozen = %d records, cause %v", f.Len(), f.Cause)
	}
}

func TestFatalFaultPreservesRecords(t *testing.T) {
	src := newScriptedSource()
	src.fail = func(call int) error {
		if call == 5 {
			return fmt.Errorf("usb: %w", frame.ErrDisconnected)
		}
		return nil
	}
	s := newTestSession(src, imu.NewHoldBuffer(0, discardLogger), Options{})
	tickN(t, s, 5)

	err := s.Tick(context.Background())
	if !IsFatal(err) {
		t.Fatalf("err = %v, want fatal", err)
	}
	f, err := s.Freeze()
	if err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if f.Len() != 5 || !errors.Is(f.Cause, frame.ErrDisconnected) {
		t.Fatalf("frozen = %d records, cause %v", f.Len(), f.Cause)
	}
}

func TestFreezeStopsAppends(t *testing.T) {
	s := newTestSession(newScriptedSource(), imu.NewHoldBuffer(0, discardLogger), Options{})
	tickN(t, s, 2)
	f, err := s.Freeze()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Tick(context.Background()); !errors.Is(err, ErrFrozen) {
		t.Fatalf("Tick after Freeze = %v, want ErrFrozen", err)
	}
	if _, err := s.Freeze(); !errors.Is(err, ErrFrozen) {
		t.Fatalf("second Freeze = %v, want ErrFrozen", err)
	}
	if f.Len() != 2 {
		t.Fatalf("frozen sequence changed: %d records", f.Len())
	}
}

// blockingSource parks every pull until release is closed.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) NextFrame(context.Context) (image.Image, time.Time, error) {
	b.entered <- struct{}{}
	<-b.release
	return image.NewGray(image.Rect(0, 0, 1, 1)), time.Now(), nil
}

func TestFreezeDuringTickDiscardsFrame(t *testing.T) {
	src := &blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	s := newTestSession(src, imu.NewHoldBuffer(0, discardLogger), Options{})

	result := make(chan error)
	go func() { result <- s.Tick(context.Background()) }()
	<-src.entered
	f, err := s.Freeze()
	if err != nil {
		t.Fatal(err)
	}
	close(src.release)
	if err := <-result; !errors.Is(err, ErrFrozen) {
		t.Fatalf("in-flight Tick = %v, want ErrFrozen", err)
	}
	if f.Len() != 0 {
		t.Fatalf("frozen sequence has %d records, want 0", f.Len())
	}
}

func TestSoftRecordLimitNeverTruncates(t *testing.T) {
	s := newTestSession(newScriptedSource(), imu.NewHoldBuffer(0, discardLogger), Options{SoftRecordLimit: 3})
	tickN(t, s, 10)
	if s.Len() != 10 {
		t.Fatalf("records = %d, want 10", s.Len())
	}
}

func TestStatsFPS(t *testing.T) {
	s := newTestSession(newScriptedSource(), imu.NewHoldBuffer(0, discardLogger), Options{})
	tickN(t, s, 11) // 10 ms apart
	if fps := s.Stats().FPS; fps < 99.9 || fps > 100.1 {
		t.Fatalf("fps = %v, want 100", fps)
	}
}

func TestDepthRejectsInvalid(t *testing.T) {
	d := NewDepth(150)
	for _, v := range []float64{0, -1} {
		if err := d.Set(v); err == nil {
			t.Errorf("Set(%v) accepted", v)
		}
	}
	if d.Get() != 150 {
		t.Fatalf("depth = %v after rejected sets", d.Get())
	}
}

// Three frames captured after a single IMU sample all carry that sample in
// data.txt.
func TestThreeFrameScenarioOnDisk(t *testing.T) {
	hold := imu.NewHoldBuffer(0, discardLogger)
	src := newScriptedSource()
	hold.Update(imu.Sample{
		ReceivedAt:   src.t0.Add(-time.Millisecond),
		Acceleration: imu.Vec3{0, 0, 1},
		Orientation:  imu.Quaternion{1, 0, 0, 0},
	})
	s := newTestSession(src, hold, Options{})
	tickN(t, s, 3)
	f, err := s.Freeze()
	if err != nil {
		t.Fatal(err)
	}

	enc, _ := store.NewEncoder("png")
	w := store.NewWriter(t.TempDir(), enc, 2, discardLogger)
	rep, err := w.Persist(context.Background(), f)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	lines, err := store.ReadSidecar(filepath.Join(rep.Dir, store.SidecarName))
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 {
		t.Fatalf("data.txt has %d lines, want 3", len(lines))
	}
	for i, l := range lines {
		idx, _, err := store.ParseFrameName(l.FrameName)
		if err != nil || idx != i {
			t.Fatalf("line %d: name %q", i, l.FrameName)
		}
		if l.Acceleration != (imu.Vec3{0, 0, 1}) || l.Quaternion != (imu.Quaternion{1, 0, 0, 0}) {
			t.Fatalf("line %d: acc %v q %v", i, l.Acceleration, l.Quaternion)
		}
		if _, err := os.Stat(filepath.Join(rep.Dir, l.FrameName+".png")); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
	}
}
