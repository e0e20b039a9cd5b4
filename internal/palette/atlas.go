package palette

import "sort"

// AtlasImage is one packed output raster: an ordered list of
// placements, the rectangle each occupies, and the bin-packer state
// needed to search for room for the next one.
type AtlasImage struct {
	Width, Height, Channels int
	Basename                string
	Index                   int
	Placements              []*Placement
	VacatedRegions          []Rectangle
	New                     bool
	Filled                  bool
}

// Rectangle is an axis-aligned pixel rectangle within an atlas.
type Rectangle struct {
	X, Y, W, H int
}

func (r Rectangle) intersects(other Rectangle) bool {
	return r.X < other.X+other.W && other.X < r.X+r.W &&
		r.Y < other.Y+other.H && other.Y < r.Y+r.H
}

// placeInAtlas performs a top-left skyline-style hole search.
// It returns (x, y, true) on success.
func placeInAtlas(atlas *AtlasImage, w, h int) (int, int, bool) {
	y := 0
	for y+h <= atlas.Height {
		nextY := atlas.Height
		x := 0
		for x+w <= atlas.Width {
			ov := firstIntersecting(atlas, Rectangle{X: x, Y: y, W: w, H: h})
			if ov == nil {
				return x, y, true
			}
			x = ov.Placed.X + ov.Placed.XSize
			if cand := ov.Placed.Y + ov.Placed.YSize; cand < nextY {
				nextY = cand
			}
		}
		y = nextY
	}
	return 0, 0, false
}

func firstIntersecting(atlas *AtlasImage, rect Rectangle) *Placement {
	for _, p := range atlas.Placements {
		pr := Rectangle{X: p.Placed.X, Y: p.Placed.Y, W: p.Placed.XSize, H: p.Placed.YSize}
		if pr.intersects(rect) {
			return p
		}
	}
	return nil
}

// packPlacement places a single placement onto the first existing
// atlas with room, in creation order, or a fresh one.
func packPlacement(page *Page, pl *Placement, maxX, maxY int) {
	for _, img := range page.Images {
		if x, y, ok := placeInAtlas(img, pl.Desired.XSize, pl.Desired.YSize); ok {
			commitPlacement(img, pl, x, y)
			return
		}
	}
	img := page.nextImage(maxX, maxY)
	x, y, ok := placeInAtlas(img, pl.Desired.XSize, pl.Desired.YSize)
	if !ok {
		// A placement that doesn't even fit an empty page-sized atlas
		// should already have been routed to OmitSize; defensive only.
		pl.OmitReason = OmitSize
		pl.Note = "placement does not fit an empty page"
		return
	}
	commitPlacement(img, pl, x, y)
}

func commitPlacement(img *AtlasImage, pl *Placement, x, y int) {
	pl.Placed = PlacedRect{Rect: pl.Desired, X: x, Y: y}
	pl.HasPlaced = true
	pl.Image = img
	pl.OmitReason = OmitNone
	pl.Filled = false
	img.Placements = append(img.Placements, pl)
}

// sortForPacking orders placements by area descending, ties broken
// by larger max-dimension, then by stable texture name.
func sortForPacking(placements []*Placement) {
	sort.SliceStable(placements, func(i, j int) bool {
		a, b := placements[i], placements[j]
		areaA := a.Desired.XSize * a.Desired.YSize
		areaB := b.Desired.XSize * b.Desired.YSize
		if areaA != areaB {
			return areaA > areaB
		}
		maxA := max(a.Desired.XSize, a.Desired.YSize)
		maxB := max(b.Desired.XSize, b.Desired.YSize)
		if maxA != maxB {
			return maxA > maxB
		}
		return a.Texture.Name < b.Texture.Name
	})
}

// PackPage packs every working placement in a page: sort, pack each
// into the first atlas with room (else a fresh one), then try to
// shrink each atlas with optimalResize.
func PackPage(page *Page, working []*Placement, maxX, maxY int) {
	sortForPacking(working)
	for _, pl := range working {
		packPlacement(page, pl, maxX, maxY)
	}
	for _, img := range page.Images {
		optimalResize(img)
	}
	applySolitaryRule(page)
}

// optimalResize repeatedly halves an atlas's width, then height,
// keeping the shrink only if every current placement still repacks
// successfully at the smaller size.
func optimalResize(img *AtlasImage) {
	for {
		if !tryHalve(img, true) {
			break
		}
	}
	for {
		if !tryHalve(img, false) {
			break
		}
	}
}

func tryHalve(img *AtlasImage, widthAxis bool) bool {
	origW, origH := img.Width, img.Height
	newW, newH := origW, origH
	if widthAxis {
		newW = origW / 2
	} else {
		newH = origH / 2
	}
	if newW < 1 || newH < 1 || (newW == origW && newH == origH) {
		return false
	}

	trial := &AtlasImage{Width: newW, Height: newH}
	placements := make([]*Placement, len(img.Placements))
	copy(placements, img.Placements)
	sortForPacking(placements)

	positions := make([]struct{ x, y int }, 0, len(placements))
	for _, pl := range placements {
		if pl.Desired.XSize > newW || pl.Desired.YSize > newH {
			return false
		}
		x, y, ok := placeInAtlas(trial, pl.Desired.XSize, pl.Desired.YSize)
		if !ok {
			return false
		}
		trial.Placements = append(trial.Placements, &Placement{
			Placed: PlacedRect{Rect: pl.Desired, X: x, Y: y},
		})
		positions = append(positions, struct{ x, y int }{x, y})
	}

	img.Width, img.Height = newW, newH
	for i, pl := range placements {
		pl.Placed.X, pl.Placed.Y = positions[i].x, positions[i].y
		pl.Filled = false
	}
	return true
}

// applySolitaryRule marks the single placement on any atlas that
// holds exactly one placement as solitary. It is the caller's
// responsibility (the driver) to clear previously solitary marks
// when omit_solitary is disabled.
func applySolitaryRule(page *Page) {
	for _, img := range page.Images {
		if len(img.Placements) == 1 {
			pl := img.Placements[0]
			if pl.OmitReason == OmitNone {
				pl.OmitReason = OmitSolitary
				pl.Note = "only placement on its atlas"
			}
		}
	}
}

// checkNoOverlap verifies, for one atlas, that no two placements
// intersect and that every rectangle lies wholly within bounds.
func checkNoOverlap(img *AtlasImage) error {
	for i, a := range img.Placements {
		ar := Rectangle{X: a.Placed.X, Y: a.Placed.Y, W: a.Placed.XSize, H: a.Placed.YSize}
		if ar.X < 0 || ar.Y < 0 || ar.X+ar.W > img.Width || ar.Y+ar.H > img.Height {
			return &Error{Kind: KindInvariant, Op: "bounds check", Path: a.Texture.Name, Err: ErrOverlap}
		}
		for _, b := range img.Placements[i+1:] {
			br := Rectangle{X: b.Placed.X, Y: b.Placed.Y, W: b.Placed.XSize, H: b.Placed.YSize}
			if ar.intersects(br) {
				return &Error{Kind: KindInvariant, Op: "overlap check",
					Path: a.Texture.Name + " / " + b.Texture.Name, Err: ErrOverlap}
			}
		}
	}
	return nil
}
