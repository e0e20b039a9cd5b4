package palette

import (
	"math"

	mathpkg "github.com/hearthforge/palettizer/pkg/math"
)

// OmitReason records why a placement is not (or is) resident in an
// atlas this run. Working is a transient state during a run; None
// means successfully placed; every other value is a terminal reason
// the texture did not make it into an atlas.
type OmitReason int

const (
	OmitWorking OmitReason = iota
	OmitNone
	OmitSolitary
	OmitSize
	OmitRepeats
	OmitOmitted
	OmitUnknown
	OmitCoverage
)

func (o OmitReason) String() string {
	switch o {
	case OmitWorking:
		return "working"
	case OmitNone:
		return "none"
	case OmitSolitary:
		return "solitary"
	case OmitSize:
		return "size"
	case OmitRepeats:
		return "repeats"
	case OmitOmitted:
		return "omitted"
	case OmitUnknown:
		return "unknown"
	case OmitCoverage:
		return "coverage"
	default:
		return "working"
	}
}

// Placed reports whether this omit reason leaves the placement
// resident on an atlas: true exactly when omit_reason is none or
// solitary, which is exactly when the placement has an Image.
func (o OmitReason) Placed() bool {
	return o == OmitNone || o == OmitSolitary
}

// Rect is the shape of a placement slot: its size, the UV box it was
// derived from, and the wrap modes and margin that apply to it.
type Rect struct {
	XSize, YSize int
	MinUV, MaxUV mathpkg.Vec2
	WrapU, WrapV WrapMode
	Margin       int
}

// PlacedRect is a Rect that has actually been baked into an atlas,
// with the (x, y) origin of its slot.
type PlacedRect struct {
	Rect
	X, Y int
}

// Placement is one texture's residency in one group: its desired
// size (recomputed every run from current scene coverage), its
// placed size/position (what's actually baked into an atlas right
// now, kept separate so drift can be detected), and its terminal
// status.
type Placement struct {
	Texture *Texture
	Group   *Group

	Desired Rect
	Placed  PlacedRect
	HasPlaced bool

	OmitReason OmitReason
	// Note is a human-readable explanation of the omit reason or of
	// a drift decision, recomputed each run and not persisted. The CLI
	// does not print it.
	Note string

	Image *AtlasImage
	// Filled reports whether this placement's pixels have actually
	// been composited into Image's bitmap yet.
	Filled bool
}

// sizeFloor is the minimum x/y size of a desired rectangle, a floor
// to avoid filter degeneracy.
const sizeFloor = 4

// foldUV folds a set of scene references into a single UV box and
// combined wrap mode pair.
func foldUV(refs []*SceneRef) (minUV, maxUV mathpkg.Vec2, wrapU, wrapV WrapMode, ok bool) {
	first := true
	for _, r := range refs {
		if first {
			minUV, maxUV = r.UVMin, r.UVMax
			wrapU, wrapV = r.WrapU, r.WrapV
			first = false
			continue
		}
		minUV = minUV.Min(r.UVMin)
		maxUV = maxUV.Max(r.UVMax)
		wrapU = wrapU.Combine(r.WrapU)
		wrapV = wrapV.Combine(r.WrapV)
	}
	return minUV, maxUV, wrapU, wrapV, !first
}

// roundOutward rounds v outward to a grid of size unit, with fuzz
// folded into the floor/ceil argument rather than snapped on
// afterward: a box's minimum edge floors (v+fuzz)/unit, its maximum
// edge ceils (v-fuzz)/unit, so an edge within fuzz of a grid line
// rounds to that line instead of the next one out.
func roundOutward(v, unit, fuzz float32, outward int) float32 {
	if unit <= 0 {
		return v
	}
	if outward < 0 {
		return float32(math.Floor(float64((v+fuzz)/unit))) * unit
	}
	return float32(math.Ceil(float64((v-fuzz)/unit))) * unit
}

// computeDesired computes a Placement's desired Rect from the
// texture's current scene references: fold the UV box, round it to
// the configured grid, convert to pixel size, apply the size floor,
// then promote interior margins to exterior where they dominate the
// size. ok is false if the texture has no UV-bearing references at
// all (nothing to size).
func computeDesired(t *Texture, roundUnit, roundFuzz float32) (Rect, bool) {
	minUV, maxUV, wrapU, wrapV, ok := foldUV(t.References)
	if !ok {
		return Rect{}, false
	}

	if roundUnit > 0 {
		minUV.X = roundOutward(minUV.X, roundUnit, roundFuzz, -1)
		minUV.Y = roundOutward(minUV.Y, roundUnit, roundFuzz, -1)
		maxUV.X = roundOutward(maxUV.X, roundUnit, roundFuzz, 1)
		maxUV.Y = roundOutward(maxUV.Y, roundUnit, roundFuzz, 1)
	}

	xSize := int(round32(float32(t.Width) * (maxUV.X - minUV.X)))
	ySize := int(round32(float32(t.Height) * (maxUV.Y - minUV.Y)))
	if xSize < sizeFloor {
		xSize = sizeFloor
	}
	if ySize < sizeFloor {
		ySize = sizeFloor
	}

	margin := t.Margin
	marginX, marginY := margin, margin
	// If margin/size > 10% on an axis, convert that axis's margins
	// from interior to exterior.
	exteriorX := float64(marginX)/float64(xSize) > 0.10
	exteriorY := float64(marginY)/float64(ySize) > 0.10
	if exteriorX {
		xSize += 2 * marginX
	}
	if exteriorY {
		ySize += 2 * marginY
	}

	return Rect{
		XSize:  xSize,
		YSize:  ySize,
		MinUV:  minUV,
		MaxUV:  maxUV,
		WrapU:  wrapU,
		WrapV:  wrapV,
		Margin: margin,
	}, true
}

func round32(v float32) float32 {
	if v < 0 {
		return float32(int(v - 0.5))
	}
	return float32(int(v + 0.5))
}

// assignOmitReason applies the omit-reason tie-break ordering:
// first matching rule wins.
func assignOmitReason(t *Texture, desired Rect, haveDesired bool, pageMaxX, pageMaxY int) OmitReason {
	if !t.DimensionsKnown {
		return OmitUnknown
	}
	if t.OmitFlag {
		return OmitOmitted
	}
	if !haveDesired {
		return OmitCoverage
	}
	uvArea := float64((desired.MaxUV.X - desired.MinUV.X) * (desired.MaxUV.Y - desired.MinUV.Y))
	if uvArea > t.RepeatThresholdPct/100 {
		return OmitRepeats
	}
	if desired.XSize > pageMaxX || desired.YSize > pageMaxY ||
		(desired.XSize == pageMaxX && desired.YSize == pageMaxY) {
		return OmitSize
	}
	return OmitWorking
}

// fitsExistingPlaced reports whether desired would still fit inside
// the previously placed rectangle without expanding the UV coverage
// (same pixel size, new UV box contained in the old one), the drift
// policy that keeps a placement's baked rect stable across
// trivial UV edits.
func fitsExistingPlaced(desired Rect, placed PlacedRect) bool {
	if desired.XSize != placed.XSize || desired.YSize != placed.YSize {
		return false
	}
	// "UV box not expanded": the new box must be contained in the old.
	if desired.MinUV.X < placed.MinUV.X || desired.MinUV.Y < placed.MinUV.Y {
		return false
	}
	if desired.MaxUV.X > placed.MaxUV.X || desired.MaxUV.Y > placed.MaxUV.Y {
		return false
	}
	return true
}
