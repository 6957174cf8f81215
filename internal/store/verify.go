// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Verification summarises the consistency of a recording directory.
type Verification struct {
	Dir      string
	Lines    int
	Images   int
	Missing  int // lines flagged as missing an image
	Duration time.Duration
	FPS      float64
	Issues   []string
}

// OK reports whether no issues were found.
func (v *Verification) OK() bool { return len(v.Issues) == 0 }

func (v *Verification) issuef(format string, args ...any) {
	v.Issues = append(v.Issues, fmt.Sprintf(format, args...))
}

// Verify checks a recording directory: every data.txt line must name an
// existing image whose pixel size matches the declared dimensions, indices
// must run 0..n-1, and the number of images must match the number of lines
// that have one.
func Verify(dir string) (*Verification, error) {
	lines, err := ReadSidecar(filepath.Join(dir, SidecarName))
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read recording dir: %w", err)
	}
	images := map[string]string{} // base name -> file name
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		for _, known := range imageExts {
			if strings.EqualFold(ext, known) {
				images[strings.TrimSuffix(e.Name(), ext)] = e.Name()
			}
		}
	}

	v := &Verification{Dir: dir, Lines: len(lines), Images: len(images)}
	var first, last time.Time
	for i, l := range lines {
		index, at, err := ParseFrameName(l.FrameName)
		if err != nil {
			v.issuef("line %d: %v", i+1, err)
			continue
		}
		if index != i {
			v.issuef("line %d: index %d, want %d", i+1, index, i)
		}
		if i == 0 {
			first = at
		}
		last = at

		file, ok := images[l.FrameName]
		if l.Missing {
			v.Missing++
			if ok {
				v.issuef("line %d: marked missing but %s exists", i+1, file)
			}
			continue
		}
		if !ok {
			v.issuef("line %d: no image for %s", i+1, l.FrameName)
			continue
		}
		cfg, err := decodeConfig(filepath.Join(dir, file))
		if err != nil {
			v.issuef("line %d: %s: %v", i+1, file, err)
			continue
		}
		if cfg.Width != l.Dimensions.Width || cfg.Height != l.Dimensions.Height {
			v.issuef("line %d: %s is %dx%d, data.txt says %dx%d", i+1, file,
				cfg.Width, cfg.Height, l.Dimensions.Width, l.Dimensions.Height)
		}
	}
	if want := v.Lines - v.Missing; v.Images != want {
		v.issuef("%d images in directory, %d lines reference one", v.Images, want)
	}

	// N frames span N-1 intervals.
	v.Duration = last.Sub(first)
	if v.Lines >= 2 && v.Duration > 0 {
		v.FPS = float64(v.Lines-1) / v.Duration.Seconds()
	}
	return v, nil
}

func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	return cfg, err
}
