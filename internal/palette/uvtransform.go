package palette

import mathpkg "github.com/hearthforge/palettizer/pkg/math"

// uvTransform computes the 3x3 affine UV remap for a reference mapped
// onto placed, baked onto an atlas of size (atlasW, atlasH). The
// formula is fixed by compatibility with existing assets and is
// reproduced verbatim, including its asymmetric treatment of x/y
// (note the −1 terms in the y formula only).
func uvTransform(placed PlacedRect, atlasW, atlasH int) mathpkg.Mat3 {
	w, h, margin := float32(placed.XSize), float32(placed.YSize), float32(placed.Margin)
	innerW := w - 2*margin
	innerH := h - 2*margin

	rangeU := placed.MaxUV.X - placed.MinUV.X
	rangeV := placed.MaxUV.Y - placed.MinUV.Y
	if rangeU == 0 {
		rangeU = 1
	}
	if rangeV == 0 {
		rangeV = 1
	}

	ox := round32(placed.MinUV.X * innerW / rangeU)
	oy := round32(placed.MinUV.Y * innerH / rangeV)
	sw := round32(innerW / rangeU)
	sh := round32(innerH / rangeV)

	x, y := float32(placed.X), float32(placed.Y)
	W, H := float32(atlasW), float32(atlasH)

	tx := (x + margin - ox) / W
	ty := (H - 1 - ((h - 1) - (-y + margin - oy))) / H
	sx := sw / W
	sy := sh / H

	return mathpkg.UVTransform(sx, sy, tx, ty)
}
