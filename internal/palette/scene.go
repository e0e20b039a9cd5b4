package palette

import (
	"time"

	mathpkg "github.com/hearthforge/palettizer/pkg/math"
)

// SceneRef is the opaque external unit of work this package consumes:
// one texture reference inside one scene file, with the UV box and
// wrap modes the scene graph applies to it. The scene-graph reader
// (pkg/sceneio) produces these; the placement driver fills in Matrix
// once a placement exists, and the scene-graph writer consumes it
// back out.
type SceneRef struct {
	ID         string
	Scene      *SceneFile
	TextureRef string
	UVMin      mathpkg.Vec2
	UVMax      mathpkg.Vec2
	WrapU      WrapMode
	WrapV      WrapMode

	// Matrix is the UV remap this run computed for this reference, or
	// the identity matrix if the reference's texture wasn't placed
	// (solitary, or any other terminal omit reason).
	Matrix mathpkg.Mat3
	// UsesAtlas names the atlas basename the scene writer should
	// point this reference at, or "" to keep referencing TextureRef
	// directly (not placed, or solitary).
	UsesAtlas string
}

// SceneFile is one input scene description, tracked across runs so
// that a change to its mtime (or its removal) can invalidate the
// textures and placements it fed.
type SceneFile struct {
	Path       string
	ModTime    time.Time
	References []*SceneRef
	// Stale is set by the placement driver when a reference is routed
	// to a named atlas, and by the image updater when an atlas a
	// reference points at is renamed, so the scene writer knows to
	// re-emit this file even if nothing else about it changed.
	Stale bool
}
