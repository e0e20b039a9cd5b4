package palette

import (
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hearthforge/palettizer/pkg/rasterimage"
)

// errorColor fills a placement's rectangle when its source image
// failed to load, so broken assets are visible in output.
var errorColor = color.RGBA{R: 0xff, G: 0, B: 0, A: 0xff}

// ImageUpdater is the C8 component: it decides which atlas images
// are stale and (re)renders them, and handles deletions for vacated
// rectangles.
type ImageUpdater struct {
	Background        color.RGBA
	AggressivelyClean bool
	RedoAll           bool
	ImagePattern      string
	OutputDir         string
	QuantizeColors    int

	Load func(path string) (*rasterimage.RGBA, error)
	Save func(path string, r *rasterimage.RGBA, opts rasterimage.SaveOptions) error

	// sourceCache avoids reloading the same source texture for every
	// placement that references it within one run.
	sourceCache map[string]*rasterimage.RGBA
	sourceErr   map[string]error
}

// NewImageUpdater builds an ImageUpdater with the stdlib
// rasterimage.Load/Save as its I/O hooks.
func NewImageUpdater(outputDir, pattern string, background color.RGBA) *ImageUpdater {
	return &ImageUpdater{
		Background:   background,
		ImagePattern: pattern,
		OutputDir:    outputDir,
		Load:         rasterimage.Load,
		Save:         rasterimage.Save,
		sourceCache:  make(map[string]*rasterimage.RGBA),
		sourceErr:    make(map[string]error),
	}
}

// UpdateAll walks every page's atlas images and brings each one
// up to date. It returns the count of atlases actually (re)written,
// and a non-nil error only for IoError conditions (callers should
// continue to the next atlas on those).
func (u *ImageUpdater) UpdateAll(pages []*Page) (written int, err error) {
	if u.sourceCache == nil {
		u.sourceCache = make(map[string]*rasterimage.RGBA)
	}
	if u.sourceErr == nil {
		u.sourceErr = make(map[string]error)
	}

	var firstErr error
	for pageIdx, page := range pages {
		for _, img := range page.Images {
			did, ierr := u.updateAtlas(page, pageIdx, img)
			if ierr != nil && firstErr == nil {
				firstErr = ierr
			}
			if did {
				written++
			}
		}
		u.ReleaseSources()
	}
	return written, firstErr
}

// resolveName expands the --image-pattern template for one atlas:
// %g -> group directory name, %p -> page properties
// string, %i -> 1-based page index, %% -> literal percent. A
// trailing '.' is appended if the result has none, to avoid
// misparsing embedded dots as extensions.
func resolveName(pattern string, page *Page, img *AtlasImage) string {
	dirName := page.Group.DirectoryName
	if dirName == "" {
		dirName = page.Group.Name
	}

	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '%' || i+1 >= len(pattern) {
			b.WriteByte(c)
			continue
		}
		i++
		switch pattern[i] {
		case 'g':
			b.WriteString(dirName)
		case 'p':
			b.WriteString(page.Properties.String())
		case 'i':
			b.WriteString(strconv.Itoa(img.Index))
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(pattern[i])
		}
	}
	name := b.String()
	if !strings.Contains(filepath.Base(name), ".") {
		name += "."
	}
	return name
}

func isEmpty(img *AtlasImage) bool {
	return len(img.Placements) == 0
}

// updateAtlas brings one atlas image up to date: deleting it if it
// ended up empty, rewriting it if stale, or leaving it untouched.
func (u *ImageUpdater) updateAtlas(page *Page, pageIdx int, img *AtlasImage) (bool, error) {
	if isEmpty(img) && u.AggressivelyClean {
		if img.Basename != "" {
			path := filepath.Join(u.OutputDir, img.Basename)
			if _, err := os.Stat(path); err == nil {
				_ = os.Remove(path)
			}
		}
		return false, nil
	}

	newName := resolveName(u.ImagePattern, page, img)
	if newName != img.Basename {
		if img.Basename != "" {
			oldPath := filepath.Join(u.OutputDir, img.Basename)
			if _, err := os.Stat(oldPath); err == nil {
				_ = os.Remove(oldPath)
			}
		}
		for _, pl := range img.Placements {
			for _, ref := range pl.Texture.References {
				if ref.Scene != nil {
					ref.Scene.Stale = true
				}
				// A placement routed to this atlas (not solitary) had
				// its UsesAtlas set to the placeholder name the driver
				// saw before this atlas's basename was resolved; bring
				// it in line with the name actually written below.
				if pl.OmitReason == OmitNone {
					ref.UsesAtlas = newName
				}
			}
		}
		img.Basename = newName
		img.New = true
	}

	outPath := filepath.Join(u.OutputDir, img.Basename)
	_, statErr := os.Stat(outPath)
	exists := statErr == nil

	needsUpdate := u.RedoAll || img.New || !exists || len(img.VacatedRegions) > 0
	if !needsUpdate {
		for _, pl := range img.Placements {
			if !pl.Filled {
				needsUpdate = true
				break
			}
		}
	}
	if !needsUpdate && exists {
		atlasInfo, _ := os.Stat(outPath)
		for _, pl := range img.Placements {
			if srcInfo, err := os.Stat(pl.Texture.Name); err == nil {
				if srcInfo.ModTime().After(atlasInfo.ModTime()) {
					needsUpdate = true
					break
				}
			}
		}
	}

	if !needsUpdate {
		return false, nil
	}

	var canvas *rasterimage.RGBA
	if exists && !u.RedoAll {
		loaded, err := rasterimage.Load(outPath)
		if err == nil {
			canvas = loaded
		}
	}
	if canvas == nil {
		canvas = rasterimage.NewCanvas(img.Width, img.Height, u.Background)
	}

	for _, region := range img.VacatedRegions {
		blankRegion(canvas, region, u.Background)
	}
	img.VacatedRegions = nil

	for _, pl := range img.Placements {
		if pl.Filled {
			continue
		}
		u.fillPlacement(canvas, img, pl)
		pl.Filled = true
	}
	img.Filled = true
	img.New = false

	if err := os.MkdirAll(u.OutputDir, 0755); err != nil {
		return false, &Error{Kind: KindIoError, Op: "mkdir", Path: u.OutputDir, Err: err}
	}
	if err := u.Save(outPath, canvas, rasterimage.SaveOptions{QuantizeColors: u.QuantizeColors}); err != nil {
		return false, &Error{Kind: KindIoError, Op: "save atlas", Path: outPath, Err: err}
	}
	return true, nil
}

func blankRegion(canvas *rasterimage.RGBA, r Rectangle, background color.RGBA) {
	for y := r.Y; y < r.Y+r.H; y++ {
		for x := r.X; x < r.X+r.W; x++ {
			canvas.Set(x, y, background)
		}
	}
}

// fillPlacement resamples one placement's source texture into its
// rectangle on the atlas canvas, including its exterior margin and
// wrap/clamp edge handling.
func (u *ImageUpdater) fillPlacement(canvas *rasterimage.RGBA, atlas *AtlasImage, pl *Placement) {
	placed := pl.Placed
	w, h, margin := placed.XSize, placed.YSize, placed.Margin
	innerW := w - 2*margin
	innerH := h - 2*margin
	if innerW < 1 {
		innerW = 1
	}
	if innerH < 1 {
		innerH = 1
	}

	rangeU := placed.MaxUV.X - placed.MinUV.X
	rangeV := placed.MaxUV.Y - placed.MinUV.Y
	if rangeU == 0 {
		rangeU = 1
	}
	if rangeV == 0 {
		rangeV = 1
	}
	ox := int(round32(placed.MinUV.X * float32(innerW) / rangeU))
	oy := int(round32(placed.MinUV.Y * float32(innerH) / rangeV))
	sw := int(round32(float32(innerW) / rangeU))
	sh := int(round32(float32(innerH) / rangeV))
	if sw < 1 {
		sw = 1
	}
	if sh < 1 {
		sh = 1
	}

	src, err := u.loadSource(pl.Texture.Name)
	if err != nil {
		fillRect(canvas, placed.X, placed.Y, w, h, errorColor)
		return
	}
	resampled := src.Resample(sw, sh)

	hasAlpha := atlas.Channels == 4 || atlas.Channels == 2

	for ly := 0; ly < h; ly++ {
		for lx := 0; lx < w; lx++ {
			sx := lx - margin - ox
			sy := ly - margin - oy

			sx = wrapCoord(sx, sw, pl.Placed.WrapU)
			sy = wrapCoord(sy, sh, pl.Placed.WrapV)

			c := resampled.At(sx, sy)
			if hasAlpha && !resampled.HasAlpha {
				c.A = 0xff
			}
			canvas.Set(placed.X+lx, placed.Y+ly, c)
		}
	}
}

func wrapCoord(v, size int, mode WrapMode) int {
	if size <= 0 {
		return 0
	}
	if mode == WrapRepeat {
		m := v % size
		if m < 0 {
			m += size
		}
		return m
	}
	if v < 0 {
		return 0
	}
	if v >= size {
		return size - 1
	}
	return v
}

func fillRect(canvas *rasterimage.RGBA, x, y, w, h int, c color.RGBA) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			canvas.Set(xx, yy, c)
		}
	}
}

func (u *ImageUpdater) loadSource(path string) (*rasterimage.RGBA, error) {
	if img, ok := u.sourceCache[path]; ok {
		return img, nil
	}
	if err, ok := u.sourceErr[path]; ok {
		return nil, err
	}
	img, err := u.Load(path)
	if err != nil {
		wrapped := &Error{Kind: KindMissingSource, Op: "load source texture", Path: path, Err: err}
		u.sourceErr[path] = wrapped
		return nil, wrapped
	}
	u.sourceCache[path] = img
	return img, nil
}

// ReleaseSources frees the per-run source image cache; UpdateAll
// calls it once each page's atlases are composed, so peak memory
// stays bounded to one page's worth of source textures.
func (u *ImageUpdater) ReleaseSources() {
	u.sourceCache = make(map[string]*rasterimage.RGBA)
	u.sourceErr = make(map[string]error)
}
