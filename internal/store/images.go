// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Encoder writes frames in one image format.
type Encoder interface {
	Ext() string
	Encode(w io.Writer, img image.Image) error
}

type pngEncoder struct{ enc png.Encoder }

func (pngEncoder) Ext() string { return ".png" }
func (e pngEncoder) Encode(w io.Writer, img image.Image) error {
	return e.enc.Encode(w, img)
}

type bmpEncoder struct{}

func (bmpEncoder) Ext() string                               { return ".bmp" }
func (bmpEncoder) Encode(w io.Writer, img image.Image) error { return bmp.Encode(w, img) }

type tiffEncoder struct{}

func (tiffEncoder) Ext() string { return ".tiff" }
func (tiffEncoder) Encode(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}

// NewEncoder returns the encoder for format: "png", "bmp" or "tiff".
// PNG uses fast compression since flush time matters more than disk space.
func NewEncoder(format string) (Encoder, error) {
	switch format {
	case "", "png":
		return pngEncoder{enc: png.Encoder{CompressionLevel: png.BestSpeed}}, nil
	case "bmp":
		return bmpEncoder{}, nil
	case "tiff":
		return tiffEncoder{}, nil
	default:
		return nil, fmt.Errorf("unknown image format %q", format)
	}
}

// imageExts are the extensions Verify looks for.
var imageExts = []string{".png", ".bmp", ".tiff"}
