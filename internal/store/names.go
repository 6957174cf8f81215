// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Directory names under the output root.
const (
	VideosDir       = "Videos"
	SingleFramesDir = "SingleFrames"
	SidecarName     = "data.txt"
)

// FrameName returns the base name shared by a frame's image file and its
// data.txt line: the zero-padded index and the capture time in unix
// milliseconds. Padding keeps lexical order equal to capture order.
func FrameName(index int, capturedAt time.Time) string {
	return fmt.Sprintf("%06d_%d", index, capturedAt.UnixMilli())
}

// ParseFrameName is the inverse of FrameName. An image extension, if
// present, is ignored.
func ParseFrameName(name string) (int, time.Time, error) {
	if dot := strings.IndexByte(name, '.'); dot >= 0 {
		name = name[:dot]
	}
	idx, ms, ok := strings.Cut(name, "_")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("frame name %q: missing separator", name)
	}
	index, err := strconv.Atoi(idx)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("frame name %q: index: %w", name, err)
	}
	millis, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("frame name %q: timestamp: %w", name, err)
	}
	return index, time.UnixMilli(millis), nil
}

// RecordingDirName names a recording directory after its start time, with a
// short session id suffix so two sessions started in the same millisecond
// never collide.
func RecordingDirName(startedAt time.Time, sessionID string) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return startedAt.Format("2006-01-02_15-04-05.000") + "_" + short
}
