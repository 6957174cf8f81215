// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/relabs-tech/frame_recorder/internal/frame"
	"github.com/relabs-tech/frame_recorder/internal/imu"
)

// ErrMalformedLine is returned for data.txt rows that do not follow the layout.
var ErrMalformedLine = errors.New("malformed data.txt line")

// A data.txt line is a CSV row with bracket markers around each component list:
//
//	<name>,:acc[,ax,ay,az,]q[,w,x,y,z,]dimensions[,w,h,]depth[,d,]
//
// which gives 16 columns with the values at fixed positions.
const (
	colName     = 0
	colAccel    = 2  // 2..4
	colQuat     = 6  // 6..9
	colDims     = 11 // 11..12
	colDepth    = 14
	lineColumns = 16
)

var markers = map[int]string{
	1:  ":acc[",
	5:  "]q[",
	10: "]dimensions[",
	13: "]depth[",
	15: "]",
}

// Line is one parsed data.txt row.
type Line struct {
	FrameName    string
	Acceleration imu.Vec3
	Quaternion   imu.Quaternion
	Dimensions   frame.Dimensions
	Missing      bool // image failed to write; dimension columns are empty
	Depth        float64
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// Row returns the CSV columns for l.
func (l Line) Row() []string {
	row := make([]string, lineColumns)
	for i, m := range markers {
		row[i] = m
	}
	row[colName] = l.FrameName
	for i, v := range l.Acceleration {
		row[colAccel+i] = ftoa(v)
	}
	for i, v := range l.Quaternion {
		row[colQuat+i] = ftoa(v)
	}
	if !l.Missing {
		row[colDims] = strconv.Itoa(l.Dimensions.Width)
		row[colDims+1] = strconv.Itoa(l.Dimensions.Height)
	}
	row[colDepth] = ftoa(l.Depth)
	return row
}

// FormatLine renders l as a single data.txt line without the trailing newline.
func FormatLine(l Line) string {
	var out []byte
	for i, col := range l.Row() {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, col...)
	}
	return string(out)
}

// ParseLine decodes one data.txt row.
func ParseLine(row []string) (Line, error) {
	if len(row) != lineColumns {
		return Line{}, fmt.Errorf("%w: %d columns, want %d", ErrMalformedLine, len(row), lineColumns)
	}
	for i, m := range markers {
		if row[i] != m {
			return Line{}, fmt.Errorf("%w: column %d is %q, want %q", ErrMalformedLine, i, row[i], m)
		}
	}

	l := Line{FrameName: row[colName]}
	if l.FrameName == "" {
		return Line{}, fmt.Errorf("%w: empty frame name", ErrMalformedLine)
	}

	var err error
	parse := func(col int) float64 {
		if err != nil {
			return 0
		}
		var v float64
		v, err = strconv.ParseFloat(row[col], 64)
		if err != nil {
			err = fmt.Errorf("%w: column %d: %v", ErrMalformedLine, col, err)
		}
		return v
	}
	for i := range l.Acceleration {
		l.Acceleration[i] = parse(colAccel + i)
	}
	for i := range l.Quaternion {
		l.Quaternion[i] = parse(colQuat + i)
	}
	l.Depth = parse(colDepth)
	if err != nil {
		return Line{}, err
	}

	if row[colDims] == "" && row[colDims+1] == "" {
		l.Missing = true
		return l, nil
	}
	w, werr := strconv.Atoi(row[colDims])
	h, herr := strconv.Atoi(row[colDims+1])
	if werr != nil || herr != nil {
		return Line{}, fmt.Errorf("%w: dimensions %q x %q", ErrMalformedLine, row[colDims], row[colDims+1])
	}
	l.Dimensions = frame.Dimensions{Width: w, Height: h}
	return l, nil
}

// ParseSidecar reads every line from r.
func ParseSidecar(r io.Reader) ([]Line, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	var lines []Line
	for n := 1; ; n++ {
		row, err := cr.Read()
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, fmt.Errorf("data.txt line %d: %w", n, err)
		}
		l, err := ParseLine(row)
		if err != nil {
			return nil, fmt.Errorf("data.txt line %d: %w", n, err)
		}
		lines = append(lines, l)
	}
}

// ReadSidecar opens and parses a data.txt file.
func ReadSidecar(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sidecar: %w", err)
	}
	defer f.Close()
	return ParseSidecar(f)
}
