// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package frame

import (
	"image"

	"golang.org/x/image/draw"
)

// Normalize returns img scaled to dims. Images that already match are returned
// unchanged. Grayscale input stays grayscale.
func Normalize(img image.Image, dims Dimensions) image.Image {
	b := img.Bounds()
	if b.Dx() == dims.Width && b.Dy() == dims.Height && b.Min == (image.Point{}) {
		return img
	}
	dst := image.Rect(0, 0, dims.Width, dims.Height)
	var out draw.Image
	if _, ok := img.(*image.Gray); ok {
		out = image.NewGray(dst)
	} else {
		out = image.NewRGBA(dst)
	}
	if b.Dx() == dims.Width && b.Dy() == dims.Height {
		draw.Copy(out, image.Point{}, img, b, draw.Src, nil)
		return out
	}
	draw.ApproxBiLinear.Scale(out, dst, img, b, draw.Src, nil)
	return out
}
