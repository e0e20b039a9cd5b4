package palette

import (
	"fmt"
	"os"

	mathpkg "github.com/hearthforge/palettizer/pkg/math"
	"github.com/hearthforge/palettizer/pkg/sceneio"
)

// LoadSceneFile reads the scene document at path via pkg/sceneio and
// builds a SceneFile with one SceneRef per record, registering each
// reference on the named texture's References (creating the Texture
// if textures does not already have an entry for it).
func LoadSceneFile(path string, textures map[string]*Texture) (*SceneFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Kind: KindIoError, Op: "stat scene file", Path: path, Err: err}
	}
	doc, err := sceneio.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: KindBadConfig, Op: "parse scene file", Path: path, Err: err}
	}

	scene := &SceneFile{Path: path, ModTime: info.ModTime()}

	for _, rec := range doc.Refs {
		texPath := doc.Textures[rec.TextureIndex]
		t := textures[texPath]
		if t == nil {
			t = NewTexture(texPath)
			textures[texPath] = t
		}

		ref := &SceneRef{
			ID:         fmt.Sprintf("%s#%s", path, rec.ID),
			Scene:      scene,
			TextureRef: texPath,
			UVMin:      rec.UVMin,
			UVMax:      rec.UVMax,
			WrapU:      translateWrap(rec.WrapU),
			WrapV:      translateWrap(rec.WrapV),
			Matrix:     mathpkg.Identity3(),
		}
		scene.References = append(scene.References, ref)
		t.References = append(t.References, ref)
	}

	return scene, nil
}

func translateWrap(w sceneio.WrapMode) WrapMode {
	if w == sceneio.WrapRepeat {
		return WrapRepeat
	}
	return WrapClamp
}

func translateWrapBack(w WrapMode) sceneio.WrapMode {
	if w == WrapRepeat {
		return sceneio.WrapRepeat
	}
	return sceneio.WrapClamp
}

// SaveSceneFile re-serializes scene back to its original path, used
// after a run to persist each reference's UsesAtlas rewrite. The
// driver itself never touches scene files; it rewrites UV coordinates
// and texture references, not the remap matrix itself, so callers
// rewrite a reference's UV box to the matrix's image before calling
// this.
func SaveSceneFile(scene *SceneFile) error {
	doc := &sceneio.Document{}
	for _, ref := range scene.References {
		texPath := ref.TextureRef
		if ref.UsesAtlas != "" {
			texPath = ref.UsesAtlas
		}
		doc.Refs = append(doc.Refs, sceneio.Ref{
			ID:           refLocalID(ref.ID),
			TextureIndex: doc.TextureIndex(texPath),
			UVMin:        ref.UVMin,
			UVMax:        ref.UVMax,
			WrapU:        translateWrapBack(ref.WrapU),
			WrapV:        translateWrapBack(ref.WrapV),
		})
	}
	if err := sceneio.WriteFile(scene.Path, doc); err != nil {
		return &Error{Kind: KindIoError, Op: "write scene file", Path: scene.Path, Err: err}
	}
	scene.Stale = false
	return nil
}

func refLocalID(id string) string {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '#' {
			return id[i+1:]
		}
	}
	return id
}
