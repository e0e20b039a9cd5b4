package palette

import (
	"testing"

	mathpkg "github.com/hearthforge/palettizer/pkg/math"
)

func ref(minU, minV, maxU, maxV float32, wu, wv WrapMode) *SceneRef {
	return &SceneRef{
		UVMin: mathpkg.Vec2{X: minU, Y: minV},
		UVMax: mathpkg.Vec2{X: maxU, Y: maxV},
		WrapU: wu, WrapV: wv,
	}
}

func TestFoldUVUnion(t *testing.T) {
	refs := []*SceneRef{
		ref(0.1, 0.2, 0.4, 0.5, WrapClamp, WrapClamp),
		ref(0.0, 0.3, 0.6, 0.45, WrapRepeat, WrapClamp),
	}
	minUV, maxUV, wu, wv, ok := foldUV(refs)
	if !ok {
		t.Fatal("expected ok")
	}
	if minUV != (mathpkg.Vec2{X: 0, Y: 0.2}) {
		t.Errorf("minUV = %v", minUV)
	}
	if maxUV != (mathpkg.Vec2{X: 0.6, Y: 0.5}) {
		t.Errorf("maxUV = %v", maxUV)
	}
	if wu != WrapRepeat || wv != WrapClamp {
		t.Errorf("wrap = %v, %v", wu, wv)
	}
}

func TestFoldUVEmpty(t *testing.T) {
	if _, _, _, _, ok := foldUV(nil); ok {
		t.Error("expected ok=false for no refs")
	}
}

func TestRoundOutward(t *testing.T) {
	if got := roundOutward(0.23, 0.1, 0.01, -1); got != float32(0.2) {
		t.Errorf("round down = %v", got)
	}
	// 0.21 is within fuzz (0.01) of the 0.2 grid line, so it snaps to
	// 0.2 rather than rounding out to the next line at 0.3.
	if got := roundOutward(0.21, 0.1, 0.01, 1); got != float32(0.2) {
		t.Errorf("snap within fuzz at boundary = %v", got)
	}
	if got := roundOutward(0.2001, 0.1, 0.01, 1); got != float32(0.2) {
		t.Errorf("snap within fuzz = %v", got)
	}
	// Clearly outside fuzz range: rounds out to the next line.
	if got := roundOutward(0.25, 0.1, 0.01, 1); got != float32(0.3) {
		t.Errorf("round up = %v", got)
	}
}

func TestComputeDesiredSizeFloor(t *testing.T) {
	tex := NewTexture("tiny.png")
	tex.Width, tex.Height = 10, 10
	tex.References = []*SceneRef{ref(0, 0, 0.01, 0.01, WrapClamp, WrapClamp)}

	desired, ok := computeDesired(tex, 0, 0)
	if !ok {
		t.Fatal("expected ok")
	}
	if desired.XSize < sizeFloor || desired.YSize < sizeFloor {
		t.Errorf("expected sizes >= floor, got %d x %d", desired.XSize, desired.YSize)
	}
}

func TestComputeDesiredExteriorMargin(t *testing.T) {
	tex := NewTexture("walled.png")
	tex.Width, tex.Height = 100, 100
	tex.Margin = 20
	tex.References = []*SceneRef{ref(0, 0, 0.5, 0.5, WrapClamp, WrapClamp)}

	desired, ok := computeDesired(tex, 0, 0)
	if !ok {
		t.Fatal("expected ok")
	}
	// base size 50x50, margin 20 is >10% of 50 on both axes so it
	// becomes exterior: size grows by 2*margin on each axis.
	if desired.XSize != 90 || desired.YSize != 90 {
		t.Errorf("desired = %dx%d, want 90x90", desired.XSize, desired.YSize)
	}
}

func TestAssignOmitReasonPriority(t *testing.T) {
	tex := NewTexture("x.png")
	tex.DimensionsKnown = false
	if got := assignOmitReason(tex, Rect{}, false, 512, 512); got != OmitUnknown {
		t.Errorf("unknown dims -> %v", got)
	}

	tex.DimensionsKnown = true
	tex.OmitFlag = true
	if got := assignOmitReason(tex, Rect{}, true, 512, 512); got != OmitOmitted {
		t.Errorf("omit flag -> %v", got)
	}

	tex.OmitFlag = false
	if got := assignOmitReason(tex, Rect{}, false, 512, 512); got != OmitCoverage {
		t.Errorf("no coverage -> %v", got)
	}

	tex.RepeatThresholdPct = 10
	desired := Rect{MinUV: mathpkg.Vec2{}, MaxUV: mathpkg.Vec2{X: 1, Y: 1}, XSize: 4, YSize: 4}
	if got := assignOmitReason(tex, desired, true, 512, 512); got != OmitRepeats {
		t.Errorf("over repeat threshold -> %v", got)
	}

	tex.RepeatThresholdPct = 1000
	desired = Rect{MinUV: mathpkg.Vec2{}, MaxUV: mathpkg.Vec2{X: 1, Y: 1}, XSize: 1024, YSize: 1024}
	if got := assignOmitReason(tex, desired, true, 512, 512); got != OmitSize {
		t.Errorf("too big -> %v", got)
	}

	desired = Rect{MinUV: mathpkg.Vec2{}, MaxUV: mathpkg.Vec2{X: 1, Y: 1}, XSize: 64, YSize: 64}
	if got := assignOmitReason(tex, desired, true, 512, 512); got != OmitWorking {
		t.Errorf("fits -> %v", got)
	}
}

func TestFitsExistingPlaced(t *testing.T) {
	placed := PlacedRect{
		Rect: Rect{XSize: 64, YSize: 64, MinUV: mathpkg.Vec2{X: 0, Y: 0}, MaxUV: mathpkg.Vec2{X: 1, Y: 1}},
	}
	shrunk := Rect{XSize: 64, YSize: 64, MinUV: mathpkg.Vec2{X: 0.1, Y: 0.1}, MaxUV: mathpkg.Vec2{X: 0.9, Y: 0.9}}
	if !fitsExistingPlaced(shrunk, placed) {
		t.Error("expected a shrunk UV box within placed bounds to fit")
	}

	expanded := Rect{XSize: 64, YSize: 64, MinUV: mathpkg.Vec2{X: -0.1, Y: 0}, MaxUV: mathpkg.Vec2{X: 1, Y: 1}}
	if fitsExistingPlaced(expanded, placed) {
		t.Error("expected an expanded UV box to not fit")
	}

	resized := Rect{XSize: 32, YSize: 64, MinUV: mathpkg.Vec2{X: 0, Y: 0}, MaxUV: mathpkg.Vec2{X: 1, Y: 1}}
	if fitsExistingPlaced(resized, placed) {
		t.Error("expected a different size to not fit")
	}
}
