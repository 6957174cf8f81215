// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/frame_recorder/internal/frame"
	"github.com/relabs-tech/frame_recorder/internal/record"
)

// ErrSidecar marks a flush that failed as a whole: the recording directory or
// data.txt could not be created or written. The frozen sequence is still
// intact and the flush can be retried.
var ErrSidecar = errors.New("sidecar write failed")

// Writer persists frozen record sequences under an output root.
//
// Each recording gets its own directory holding one image per record and a
// data.txt with one line per record in index order. Single frames go to the
// SingleFrames directory without a data.txt line. A Writer holds no per-flush
// state, so concurrent Persist calls on distinct sequences are safe.
type Writer struct {
	root    string
	enc     Encoder
	workers int
	logger  *slog.Logger
}

// NewWriter returns a Writer rooted at root. workers bounds the number of
// images encoded in parallel within one flush.
func NewWriter(root string, enc Encoder, workers int, logger *slog.Logger) *Writer {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{root: root, enc: enc, workers: workers, logger: logger}
}

// Prepare creates the Videos and SingleFrames directories.
func (w *Writer) Prepare() error {
	for _, d := range []string{VideosDir, SingleFramesDir} {
		if err := os.MkdirAll(filepath.Join(w.root, d), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// RecordingDir returns the directory a frozen recording is written to.
func (w *Writer) RecordingDir(f *record.Frozen) string {
	return filepath.Join(w.root, VideosDir, RecordingDirName(f.StartedAt, f.SessionID))
}

// Persist writes f to disk. Per-image failures are logged and reported in
// Report.Missing; only failures of the directory or data.txt return an error
// (wrapping ErrSidecar) or cancellation of ctx.
func (w *Writer) Persist(ctx context.Context, f *record.Frozen) (*record.Report, error) {
	if f.Kind == record.KindSingleFrame {
		return w.persistSingle(ctx, f)
	}
	start := time.Now()
	dir := w.RecordingDir(f)
	rep := &record.Report{SessionID: f.SessionID, Kind: f.Kind.String(), Dir: dir, Records: f.Len()}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create recording dir: %v", ErrSidecar, err)
	}
	sidecarPath := filepath.Join(dir, SidecarName)
	sidecar, err := os.OpenFile(sidecarPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrSidecar, sidecarPath, err)
	}
	defer sidecar.Close()
	rep.Sidecar = sidecarPath

	names := make([]string, f.Len())
	failed := make([]error, f.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	for i := range f.Records {
		rec := &f.Records[i]
		names[i] = FrameName(rec.Frame.Index, rec.Frame.CapturedAt)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			failed[i] = w.writeImage(filepath.Join(dir, names[i]+w.enc.Ext()), rec.Frame, f.Dimensions)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("flush %s cancelled: %w", f.SessionID, err)
	}

	bw := bufio.NewWriter(sidecar)
	cw := csv.NewWriter(bw)
	for i, rec := range f.Records {
		line := Line{
			FrameName:    names[i],
			Acceleration: rec.IMU.Acceleration,
			Quaternion:   rec.IMU.Orientation,
			Dimensions:   f.Dimensions,
			Depth:        rec.Depth,
		}
		if failed[i] != nil {
			line.Missing = true
			rep.Missing = append(rep.Missing, rec.Frame.Index)
			w.logger.Warn("frame image not written", "session", f.SessionID, "index", rec.Frame.Index, "err", failed[i])
		}
		if err := cw.Write(line.Row()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSidecar, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSidecar, err)
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSidecar, err)
	}
	if err := sidecar.Sync(); err != nil {
		return nil, fmt.Errorf("%w: sync: %v", ErrSidecar, err)
	}
	if err := sidecar.Close(); err != nil {
		return nil, fmt.Errorf("%w: close: %v", ErrSidecar, err)
	}

	rep.Elapsed = time.Since(start)
	w.logger.Info("recording written", "session", f.SessionID, "dir", dir,
		"records", rep.Records, "missing", len(rep.Missing), "elapsed", rep.Elapsed)
	return rep, nil
}

func (w *Writer) persistSingle(ctx context.Context, f *record.Frozen) (*record.Report, error) {
	start := time.Now()
	dir := filepath.Join(w.root, SingleFramesDir)
	rep := &record.Report{SessionID: f.SessionID, Kind: f.Kind.String(), Dir: dir, Records: f.Len()}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	for _, rec := range f.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, FrameName(rec.Frame.Index, rec.Frame.CapturedAt)+w.enc.Ext())
		if err := w.writeImage(path, rec.Frame, f.Dimensions); err != nil {
			return nil, fmt.Errorf("save frame: %w", err)
		}
	}
	rep.Elapsed = time.Since(start)
	return rep, nil
}

func (w *Writer) writeImage(path string, fr frame.Frame, dims frame.Dimensions) error {
	if fr.Image == nil {
		return fmt.Errorf("frame %d has no image data", fr.Index)
	}
	img := fr.Image
	if dims.Width > 0 && dims.Height > 0 {
		img = frame.Normalize(img, dims)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(out)
	if err := w.enc.Encode(bw, img); err != nil {
		out.Close()
		os.Remove(path)
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := bw.Flush(); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}
