package palette

import (
	"sort"

	mathpkg "github.com/hearthforge/palettizer/pkg/math"
)

// Driver orchestrates one full run of the placement engine (C7):
// assigning textures to groups, sizing them, packing each group's
// pages, detecting solitary placements, and resizing pages to fit.
type Driver struct {
	Groups   *GroupSet
	Textures map[string]*Texture

	PageMaxX, PageMaxY int
	RoundUnit          float32
	RoundFuzz          float32
	OmitSolitary       bool
}

// NewDriver builds a Driver over the given group set and texture
// registry.
func NewDriver(groups *GroupSet, textures map[string]*Texture) *Driver {
	return &Driver{Groups: groups, Textures: textures, PageMaxX: 512, PageMaxY: 512, OmitSolitary: true}
}

type pageKey struct {
	group *Group
	props TextureProperties
}

// Run executes one full placement pass and returns the set of Pages
// produced, one per (group, TextureProperties) combination that has
// at least one placement, in deterministic order.
func (d *Driver) Run(seedDirectoryOrder map[string]int) ([]*Page, error) {
	d.computeSceneCounts()

	if err := d.Groups.Resolve(seedDirectoryOrder); err != nil {
		return nil, err
	}

	d.assignGroups()

	pages, working := d.buildPages()
	for _, page := range pages {
		PackPage(page, working[page], d.PageMaxX, d.PageMaxY)
		if !d.OmitSolitary {
			clearSolitary(page)
		}
	}

	d.emitRemaps()

	if err := d.checkInvariants(pages); err != nil {
		return nil, err
	}

	return pages, nil
}

// emitRemaps computes each resident placement's UV transform and
// wires it back onto the scene references that feed the texture, so
// the scene writer knows which atlas (if any) to point them at.
// Solitary placements keep referencing their original texture
// directly (UsesAtlas left empty, identity Matrix) since they gain
// nothing from being routed through their lone atlas.
func (d *Driver) emitRemaps() {
	for _, t := range sortedTextures(d.Textures) {
		var winner string
		for name := range t.AssignedGroups {
			winner = name
		}
		if winner == "" {
			continue
		}
		pl := t.Placements[winner]
		if pl == nil || pl.Image == nil || !pl.OmitReason.Placed() {
			continue
		}

		matrix := mathpkg.Identity3()
		usesAtlas := ""
		if pl.OmitReason == OmitNone {
			matrix = uvTransform(pl.Placed, pl.Image.Width, pl.Image.Height)
			usesAtlas = pl.Image.Basename
		}

		for _, ref := range t.References {
			ref.Matrix = matrix
			ref.UsesAtlas = usesAtlas
			if usesAtlas != "" && ref.Scene != nil {
				ref.Scene.Stale = true
			}
		}
	}
}

// computeSceneCounts recomputes Group.SceneCount fresh from the
// current scene set for every group a texture directly requests
// (DESIGN.md: this is not accumulated across runs).
func (d *Driver) computeSceneCounts() {
	sceneSets := make(map[string]map[*SceneFile]bool)
	for _, t := range d.Textures {
		for groupName := range t.RequestedGroups {
			set := sceneSets[groupName]
			if set == nil {
				set = make(map[*SceneFile]bool)
				sceneSets[groupName] = set
			}
			for _, ref := range t.References {
				if ref.Scene != nil {
					set[ref.Scene] = true
				}
			}
		}
	}
	for _, g := range d.Groups.All() {
		g.SceneCount = len(sceneSets[g.Name])
	}
}

// assignGroups picks, for every texture, the single most specific
// eligible group and creates or updates its Placement, applying
// sizing and the drift policy.
func (d *Driver) assignGroups() {
	for _, t := range sortedTextures(d.Textures) {
		if len(t.References) == 0 {
			// A texture that lost every scene reference since the last
			// run (fully dereferenced) keeps no Placement: vacate its
			// slot so the image updater blanks it, rather than leaving
			// a stale entry that never reaches sizeAndClassify.
			for name, pl := range t.Placements {
				vacateIfPlaced(pl)
				delete(t.Placements, name)
			}
			t.AssignedGroups = make(map[string]bool)
			continue
		}
		candidates := d.Groups.eligibleGroups(t.RequestedGroups)
		winner := mostSpecific(candidates)
		if winner == nil {
			continue
		}

		for name, pl := range t.Placements {
			if name != winner.Name {
				vacateIfPlaced(pl)
				delete(t.Placements, name)
			}
		}
		t.AssignedGroups = map[string]bool{winner.Name: true}

		pl, existed := t.Placements[winner.Name]
		if !existed {
			pl = &Placement{Texture: t, Group: winner, OmitReason: OmitWorking}
			t.Placements[winner.Name] = pl
		} else {
			pl.Group = winner
		}
		d.sizeAndClassify(t, pl)
	}
}

// sizeAndClassify applies sizing, omit-reason assignment, and the
// drift policy for a single placement.
func (d *Driver) sizeAndClassify(t *Texture, pl *Placement) {
	desired, ok := computeDesired(t, d.RoundUnit, d.RoundFuzz)
	reason := assignOmitReason(t, desired, ok, d.PageMaxX, d.PageMaxY)

	if reason != OmitWorking {
		vacateIfPlaced(pl)
		pl.Desired = desired
		pl.OmitReason = reason
		pl.Note = ""
		return
	}

	if pl.Image != nil {
		if fitsExistingPlaced(desired, pl.Placed) {
			pl.Desired = pl.Placed.Rect
			pl.Note = "drift: kept prior placed rect, desired unchanged in size/coverage"
			return
		}
		if unrounded, uok := computeDesired(t, 0, 0); uok && fitsExistingPlaced(unrounded, pl.Placed) {
			pl.Desired = pl.Placed.Rect
			pl.Note = "drift: kept prior placed rect via un-rounded fit"
			return
		}
		vacateIfPlaced(pl)
	}

	pl.Desired = desired
	pl.OmitReason = OmitWorking
	pl.Note = ""
}

// vacateIfPlaced detaches a placement from its current atlas, if
// any, recording its old rectangle as a vacated region so the image
// updater can blank it without rewriting the whole atlas.
func vacateIfPlaced(pl *Placement) {
	if pl.Image == nil {
		return
	}
	img := pl.Image
	removePlacement(img, pl)
	img.VacatedRegions = append(img.VacatedRegions, Rectangle{
		X: pl.Placed.X, Y: pl.Placed.Y, W: pl.Placed.XSize, H: pl.Placed.YSize,
	})
	pl.Image = nil
}

func removePlacement(img *AtlasImage, target *Placement) {
	for i, pl := range img.Placements {
		if pl == target {
			img.Placements = append(img.Placements[:i], img.Placements[i+1:]...)
			return
		}
	}
}

// buildPages groups every texture's winning Placement into Pages
// keyed by (group, TextureProperties), and splits out the placements
// that still need packing (OmitWorking) per page.
func (d *Driver) buildPages() ([]*Page, map[*Page][]*Placement) {
	pageByKey := make(map[pageKey]*Page)
	working := make(map[*Page][]*Placement)
	var order []*Page

	for _, t := range sortedTextures(d.Textures) {
		for _, pl := range t.Placements {
			key := pageKey{group: pl.Group, props: t.Properties()}
			page := pageByKey[key]
			if page == nil {
				page = &Page{Group: pl.Group, Properties: key.props}
				pageByKey[key] = page
				order = append(order, page)
			}
			if pl.Image != nil && !containsImage(page.Images, pl.Image) {
				page.Images = append(page.Images, pl.Image)
			}
			if pl.OmitReason == OmitWorking {
				working[page] = append(working[page], pl)
			}
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].Group.Name != order[j].Group.Name {
			return order[i].Group.Name < order[j].Group.Name
		}
		return order[i].Properties.Less(order[j].Properties)
	})
	return order, working
}

func containsImage(list []*AtlasImage, img *AtlasImage) bool {
	for _, x := range list {
		if x == img {
			return true
		}
	}
	return false
}

func clearSolitary(page *Page) {
	for _, img := range page.Images {
		for _, pl := range img.Placements {
			if pl.OmitReason == OmitSolitary {
				pl.OmitReason = OmitNone
				pl.Note = ""
			}
		}
	}
}

func sortedTextures(m map[string]*Texture) []*Texture {
	out := make([]*Texture, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (d *Driver) checkInvariants(pages []*Page) error {
	for _, page := range pages {
		for _, img := range page.Images {
			if err := checkNoOverlap(img); err != nil {
				return err
			}
			for _, pl := range img.Placements {
				if pl.Image != img {
					return &Error{Kind: KindInvariant, Op: "atlas consistency", Path: pl.Texture.Name, Err: ErrNoGroup}
				}
			}
		}
	}
	return nil
}
